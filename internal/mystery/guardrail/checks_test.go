package guardrail

import (
	"testing"

	"github.com/caseforge/moriarty/internal/mystery"
)

func guardCase() *mystery.Case {
	return &mystery.Case{
		Title:           "The Winding Clock",
		Culprit:         "Edmund Hale",
		FalseAssumption: "The murder happened at seven o'clock",
		Cast: []mystery.Suspect{
			{Name: "Edmund Hale", Eligible: true},
			{Name: "Vera Lockwood", Eligible: true},
			{Name: "Father Brennan", Eligible: true},
			{Name: "Dr. Quill", Role: "victim", Eligible: false},
		},
		InferencePath: []mystery.Step{
			{Number: 1, Observation: "The library clock chimed seven while the Hale study windows stood open", Correction: "The clock had been wound fifteen minutes fast", Effect: "The alibi window collapses"},
			{Number: 2, Observation: "Mud on the conservatory step matched the east garden after the 9pm rain", Correction: "Only the gardener's path crosses the east garden", Effect: "Access narrows to one route"},
		},
		Constraints: []mystery.Constraint{
			{Kind: mystery.ConstraintContradiction, Description: "Hale claims he heard the clock chime from the garden"},
			{Kind: mystery.ConstraintAccess, Description: "The east gate was bolted from inside"},
			{Kind: mystery.ConstraintPhysical, Description: "The mud was still wet at discovery"},
		},
		Test: mystery.Test{Description: "Rewinding the library clock against the church bells exposes the fifteen minute gap"},
	}
}

func guardClues() []mystery.Evidence {
	return []mystery.Evidence{
		{ID: "ev1", Description: "The library clock chimed seven while Vera Lockwood aired the study windows", Placement: mystery.PlaceEarly, Criticality: mystery.CritSupporting, StepRef: 1, Role: mystery.RoleObservation},
		{ID: "ev2", Description: "Rewinding the library clock against the church bells shows it runs fifteen minutes fast, a gap in the alibi", Placement: mystery.PlaceMid, Criticality: mystery.CritEssential, StepRef: 1, Role: mystery.RoleContradiction},
		{ID: "ev3", Description: "Mud on the conservatory step matched the east garden soil", Placement: mystery.PlaceEarly, Criticality: mystery.CritSupporting, StepRef: 2, Role: mystery.RoleObservation},
		{ID: "ev4", Description: "Father Brennan was ringing the church bells at seven and could not have crossed the garden", Placement: mystery.PlaceMid, Criticality: mystery.CritSupporting, StepRef: 2, Role: mystery.RoleElimination},
	}
}

func TestCheck_CompleteClueSetPasses(t *testing.T) {
	rep := NewEngine().Check(guardCase(), guardClues(), []mystery.RedHerring{
		{ID: "rh1", Description: "A torn betting slip in Dr. Quill's coat pointed to gambling debts", Placement: mystery.PlaceEarly},
	})
	if len(rep.Issues) != 0 {
		t.Fatalf("expected no issues, got %+v", rep.Issues)
	}
	if rep.HasCritical() {
		t.Fatal("complete clue set must not have critical issues")
	}
	if rep.Coverage.HasCriticalGaps() {
		t.Fatalf("unexpected coverage gaps: %v", rep.Coverage.CriticalGaps)
	}
	if rep.Coverage.StepEvidenceCount[1] != 2 || rep.Coverage.StepEvidenceCount[2] != 2 {
		t.Fatalf("unexpected coverage counts: %v", rep.Coverage.StepEvidenceCount)
	}
}

func TestCheck_UncoveredStepIsCritical(t *testing.T) {
	clues := guardClues()[:2] // step 2 has nothing
	rep := NewEngine().Check(guardCase(), clues, nil)

	if !rep.HasCritical() {
		t.Fatal("uncovered inference step must be critical")
	}
	if len(rep.Coverage.CriticalGaps) != 1 || rep.Coverage.CriticalGaps[0] != 2 {
		t.Fatalf("CriticalGaps = %v, want [2]", rep.Coverage.CriticalGaps)
	}
	foundRule := false
	for _, is := range rep.Critical() {
		if is.Rule == RuleInferenceCoverage {
			foundRule = true
		}
	}
	if !foundRule {
		t.Fatalf("missing %s critical issue: %+v", RuleInferenceCoverage, rep.Issues)
	}
}

func TestCheck_UncontestedFalseAssumptionIsCritical(t *testing.T) {
	clues := guardClues()
	for i := range clues {
		clues[i].Role = mystery.RoleObservation
	}
	rep := NewEngine().Check(guardCase(), clues, nil)

	critical := false
	for _, is := range rep.Critical() {
		if is.Rule == RuleFalseAssumption {
			critical = true
		}
	}
	if !critical {
		t.Fatalf("no contradiction-tagged evidence must raise a critical %s issue: %+v", RuleFalseAssumption, rep.Issues)
	}
	// Pairing degrades to warnings for each step without a challenge clue.
	pairing := 0
	for _, is := range rep.Issues {
		if is.Rule == RuleContradictionPairing && is.Severity == SeverityWarning {
			pairing++
		}
	}
	if pairing != 2 {
		t.Fatalf("got %d pairing warnings, want 2", pairing)
	}
}

func TestCheck_UnreachableTestIsCritical(t *testing.T) {
	clues := guardClues()
	clues[1].Description = "A ledger entry showed a withdrawal made on Tuesday morning"
	rep := NewEngine().Check(guardCase(), clues, nil)

	found := false
	for _, is := range rep.Critical() {
		if is.Rule == RuleTestReachability {
			found = true
		}
	}
	if !found {
		t.Fatalf("no clue leading to the discriminating test must be critical: %+v", rep.Issues)
	}
}

func TestCheck_LateOnlyTestEvidenceIsWarning(t *testing.T) {
	clues := guardClues()
	clues[1].Placement = mystery.PlaceLate
	rep := NewEngine().Check(guardCase(), clues, nil)

	for _, is := range rep.Issues {
		if is.Rule == RuleTestReachability {
			if is.Severity != SeverityWarning {
				t.Fatalf("late-only test evidence must be a warning, got %s", is.Severity)
			}
			return
		}
	}
	t.Fatalf("expected a %s warning: %+v", RuleTestReachability, rep.Issues)
}

func TestCheck_MissingTestDescriptionIsCritical(t *testing.T) {
	c := guardCase()
	c.Test.Description = "  "
	rep := NewEngine().Check(c, guardClues(), nil)
	found := false
	for _, is := range rep.Critical() {
		if is.Rule == RuleTestReachability {
			found = true
		}
	}
	if !found {
		t.Fatalf("empty test description must be critical: %+v", rep.Issues)
	}
}

func TestCheck_RedHerringSupportingTrueSolutionIsWarning(t *testing.T) {
	rep := NewEngine().Check(guardCase(), guardClues(), []mystery.RedHerring{
		{ID: "rh1", Description: "The clock was wound fast by the maid", Placement: mystery.PlaceEarly},
	})
	found := false
	for _, is := range rep.Issues {
		if is.Rule == RuleFalseAssumption && is.Severity == SeverityWarning {
			found = true
		}
	}
	if !found {
		t.Fatalf("red herring overlapping a correction must warn: %+v", rep.Issues)
	}
}

func TestCheck_UnmentionedSuspectIsWarning(t *testing.T) {
	clues := guardClues()
	clues[3].Description = "The sexton was ringing the church bells at seven" // drops Father Brennan
	rep := NewEngine().Check(guardCase(), clues, nil)

	found := false
	for _, is := range rep.Issues {
		if is.Rule == RuleSuspectElimination && is.Severity == SeverityWarning {
			found = true
		}
	}
	if !found {
		t.Fatalf("unmentioned eligible suspect must warn: %+v", rep.Issues)
	}
	if rep.HasCritical() {
		t.Fatalf("suspect elimination is warning-only: %+v", rep.Critical())
	}
}

func TestReportRuleNames_Distinct(t *testing.T) {
	rep := Report{Issues: []Issue{
		{Rule: RuleInferenceCoverage},
		{Rule: RuleInferenceCoverage},
		{Rule: RuleSuspectElimination},
	}}
	names := rep.RuleNames()
	if len(names) != 2 || names[0] != RuleInferenceCoverage || names[1] != RuleSuspectElimination {
		t.Fatalf("RuleNames = %v", names)
	}
}
