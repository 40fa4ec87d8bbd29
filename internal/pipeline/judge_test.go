package pipeline

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/caseforge/moriarty/internal/mystery"
)

func judgeCase() *mystery.Case {
	return &mystery.Case{
		Title:           "The Winding Clock",
		Culprit:         "Edmund Hale",
		Mechanism:       "He rewound the library clock to fake the alibi",
		FalseAssumption: "The murder happened at seven o'clock",
		Cast: []mystery.Suspect{
			{Name: "Edmund Hale", Eligible: true},
			{Name: "Vera Lockwood", Eligible: true},
			{Name: "Dr. Quill", Role: "victim", Eligible: false},
		},
		InferencePath: []mystery.Step{
			{Number: 1, Observation: "The clock chimed seven", Correction: "It ran fifteen minutes fast", Effect: "The alibi collapses"},
		},
	}
}

// The blind judge's value comes entirely from not holding the answer
// key: the payload must never contain the culprit, the mechanism, or
// any step's correction or effect.
func TestBlindPayload_ExcludesSolution(t *testing.T) {
	c := judgeCase()
	clues := &mystery.ClueSet{
		Evidence: []mystery.Evidence{
			{ID: "ev1", Description: "The clock chimed seven", Placement: mystery.PlaceEarly, Criticality: mystery.CritEssential, Role: mystery.RoleObservation},
		},
		RedHerrings: []mystery.RedHerring{
			{ID: "rh1", Description: "A torn betting slip", Placement: mystery.PlaceEarly},
		},
	}
	raw, err := json.Marshal(BlindPayload(c, clues))
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	payload := string(raw)

	for _, forbidden := range []string{
		c.Mechanism,
		c.InferencePath[0].Correction,
		c.InferencePath[0].Effect,
	} {
		if strings.Contains(payload, forbidden) {
			t.Fatalf("blind payload leaks solution text %q", forbidden)
		}
	}
	// The culprit appears only as one undistinguished name in the
	// suspect list, never marked as the answer.
	if strings.Contains(payload, `"culprit"`) || strings.Contains(payload, `"mechanism"`) {
		t.Fatalf("blind payload carries solution keys: %s", payload)
	}
	if !strings.Contains(payload, "false_assumption") {
		t.Fatal("blind payload must include the false assumption, which is reader-visible")
	}
}

func TestBlindPayload_SuspectsAreEligibleNamesOnly(t *testing.T) {
	p := BlindPayload(judgeCase(), &mystery.ClueSet{})
	suspects, ok := p["suspects"].([]string)
	if !ok {
		t.Fatalf("suspects = %T", p["suspects"])
	}
	if len(suspects) != 2 {
		t.Fatalf("suspects = %v, want the two eligible names", suspects)
	}
	for _, s := range suspects {
		if s == "Dr. Quill" {
			t.Fatal("ineligible cast members must not appear")
		}
	}
}

func TestAuditFeedback_ViolationsAndRecommendations(t *testing.T) {
	v := mystery.AuditVerdict{
		Status: mystery.VerdictNeedsRevision,
		Violations: []mystery.Violation{
			{Rule: "Clue Visibility", Severity: "critical", Detail: "step 2 clue never surfaces"},
			{Rule: "Test Timing", Severity: "warning"},
		},
		Recommendations: []string{"move the mud clue earlier"},
	}
	fb := auditFeedback(v)
	if len(fb) != 3 {
		t.Fatalf("feedback = %v", fb)
	}
	if !strings.Contains(fb[0], "Clue Visibility") || !strings.Contains(fb[0], "step 2 clue never surfaces") {
		t.Fatalf("violation detail lost: %q", fb[0])
	}
	if fb[2] != "move the mud clue earlier" {
		t.Fatalf("recommendations must pass through verbatim: %q", fb[2])
	}
}

func TestBlindFeedback_MissingInformationVerbatim(t *testing.T) {
	v := mystery.BlindVerdict{
		GuessedCulprit:     "Vera Lockwood",
		Confidence:         mystery.ConfidenceGuess,
		MissingInformation: []string{"nothing ties the clock to Hale", "no clue rules out Lockwood"},
	}
	fb := blindFeedback(v)
	if len(fb) != 2 || fb[0] != "nothing ties the clock to Hale" {
		t.Fatalf("missing information must pass through verbatim: %v", fb)
	}
}

func TestBlindFeedback_FallbackWhenJudgeGaveNoList(t *testing.T) {
	fb := blindFeedback(mystery.BlindVerdict{GuessedCulprit: "Vera Lockwood", Confidence: mystery.ConfidenceGuess})
	if len(fb) != 1 || !strings.Contains(fb[0], "Vera Lockwood") {
		t.Fatalf("fallback feedback = %v", fb)
	}
}

func TestJudgeBudget_AttemptAndCostCeilings(t *testing.T) {
	b := judgeBudget{maxRegens: 2, ceilingUSD: 1.0}
	if !b.allow() {
		t.Fatal("fresh budget must allow")
	}
	b.charge(0.30)
	b.charge(0.30)
	if b.allow() {
		t.Fatal("attempt cap must bind at 2 regens")
	}

	// The cost ceiling binds even with attempts remaining.
	b = judgeBudget{maxRegens: 10, ceilingUSD: 0.50}
	b.charge(0.60)
	if b.allow() {
		t.Fatal("cost ceiling must bind before the attempt cap")
	}
}
