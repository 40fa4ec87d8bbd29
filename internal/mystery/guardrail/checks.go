// Package guardrail implements the deterministic completeness checks run
// against a generated clue set before any LLM judge. The checks are pure
// functions over (case, evidence, red herrings): cheap to run, and they
// catch the common "structurally valid but logically incomplete" defects
// without spending a model call.
package guardrail

import (
	"fmt"
	"sort"
	"strings"

	"github.com/caseforge/moriarty/internal/mystery"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
)

// Issue is the output of one check. Issues are consumed immediately by
// the failure classifier and orchestrator; they are never persisted
// beyond the run.
type Issue struct {
	Severity Severity `json:"severity"`
	Rule     string   `json:"rule"`
	Message  string   `json:"message"`
}

// Rule names, referenced verbatim in regeneration feedback.
const (
	RuleInferenceCoverage    = "inference_coverage"
	RuleContradictionPairing = "contradiction_pairing"
	RuleFalseAssumption      = "false_assumption_challenge"
	RuleTestReachability     = "discriminating_test_reachability"
	RuleSuspectElimination   = "suspect_elimination"
)

// MatchThreshold is the minimum word-overlap score for a clue to count
// as covering an inference step or the discriminating test by text.
const MatchThreshold = 0.40

// Engine runs every check with a shared overlap strategy.
type Engine struct {
	Overlap Overlap
}

func NewEngine() *Engine { return &Engine{Overlap: WordOverlap{}} }

// Report bundles all issues plus the coverage summary the classifier
// needs to pick a retry target.
type Report struct {
	Issues   []Issue
	Coverage mystery.CoverageResult
}

func (r Report) Critical() []Issue {
	var out []Issue
	for _, is := range r.Issues {
		if is.Severity == SeverityCritical {
			out = append(out, is)
		}
	}
	return out
}

func (r Report) HasCritical() bool { return len(r.Critical()) > 0 }

// RuleNames returns the distinct violated rule names in report order.
func (r Report) RuleNames() []string {
	seen := map[string]bool{}
	var out []string
	for _, is := range r.Issues {
		if seen[is.Rule] {
			continue
		}
		seen[is.Rule] = true
		out = append(out, is.Rule)
	}
	return out
}

// Check runs all checks against the live case and clue set.
func (e *Engine) Check(c *mystery.Case, evidence []mystery.Evidence, herrings []mystery.RedHerring) Report {
	ov := e.Overlap
	if ov == nil {
		ov = WordOverlap{}
	}

	rep := Report{Coverage: mystery.CoverageResult{StepEvidenceCount: map[int]int{}}}

	mapped := mapEvidenceToSteps(c, evidence, ov)
	for step, items := range mapped {
		rep.Coverage.StepEvidenceCount[step] = len(items)
	}

	rep.Issues = append(rep.Issues, checkInferenceCoverage(c, mapped, &rep.Coverage)...)
	rep.Issues = append(rep.Issues, checkContradictionPairing(c, mapped)...)
	rep.Issues = append(rep.Issues, checkFalseAssumption(c, evidence, herrings, ov)...)
	rep.Issues = append(rep.Issues, checkTestReachability(c, evidence, ov)...)
	rep.Issues = append(rep.Issues, checkSuspectElimination(c, evidence)...)
	return rep
}

// mapEvidenceToSteps assigns each evidence item to every inference step
// it supports, by explicit step reference or by text overlap against the
// step's observation and correction.
func mapEvidenceToSteps(c *mystery.Case, evidence []mystery.Evidence, ov Overlap) map[int][]mystery.Evidence {
	out := map[int][]mystery.Evidence{}
	for _, step := range c.InferencePath {
		out[step.Number] = nil
	}
	for _, ev := range evidence {
		for _, step := range c.InferencePath {
			if ev.StepRef == step.Number {
				out[step.Number] = append(out[step.Number], ev)
				continue
			}
			stepText := step.Observation + " " + step.Correction
			if ov.Score(stepText, ev.Description) >= MatchThreshold {
				out[step.Number] = append(out[step.Number], ev)
			}
		}
	}
	return out
}

func checkInferenceCoverage(c *mystery.Case, mapped map[int][]mystery.Evidence, cov *mystery.CoverageResult) []Issue {
	var gaps []int
	for _, step := range c.InferencePath {
		if len(mapped[step.Number]) == 0 {
			gaps = append(gaps, step.Number)
		}
	}
	sort.Ints(gaps)
	cov.CriticalGaps = gaps

	var issues []Issue
	for _, n := range gaps {
		issues = append(issues, Issue{
			Severity: SeverityCritical,
			Rule:     RuleInferenceCoverage,
			Message:  fmt.Sprintf("inference step %d has no supporting evidence item", n),
		})
	}
	return issues
}

func checkContradictionPairing(c *mystery.Case, mapped map[int][]mystery.Evidence) []Issue {
	var issues []Issue
	for _, step := range c.InferencePath {
		items := mapped[step.Number]
		if len(items) == 0 {
			continue // already a critical coverage gap
		}
		hasChallenge := false
		for _, ev := range items {
			if ev.Role == mystery.RoleContradiction || ev.Role == mystery.RoleElimination {
				hasChallenge = true
				break
			}
		}
		if len(items) < 2 || !hasChallenge {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Rule:     RuleContradictionPairing,
				Message: fmt.Sprintf(
					"inference step %d should have at least 2 mapped clues with one tagged contradiction or elimination (have %d)",
					step.Number, len(items)),
			})
		}
	}
	return issues
}

func checkFalseAssumption(c *mystery.Case, evidence []mystery.Evidence, herrings []mystery.RedHerring, ov Overlap) []Issue {
	var issues []Issue

	hasContradiction := false
	for _, ev := range evidence {
		if ev.Role == mystery.RoleContradiction {
			hasContradiction = true
			break
		}
	}
	if !hasContradiction {
		issues = append(issues, Issue{
			Severity: SeverityCritical,
			Rule:     RuleFalseAssumption,
			Message:  "no evidence item is tagged contradiction; the false assumption is never challenged on the page",
		})
	}

	// A red herring whose text overlaps a step's correction silently
	// supports the true solution instead of the false assumption.
	for _, rh := range herrings {
		for _, step := range c.InferencePath {
			if ov.Score(step.Correction, rh.Description) >= MatchThreshold {
				issues = append(issues, Issue{
					Severity: SeverityWarning,
					Rule:     RuleFalseAssumption,
					Message: fmt.Sprintf(
						"red herring %s overlaps the correction of inference step %d; it supports the true solution rather than the false assumption",
						rh.ID, step.Number),
				})
			}
		}
	}
	return issues
}

func checkTestReachability(c *mystery.Case, evidence []mystery.Evidence, ov Overlap) []Issue {
	desc := strings.TrimSpace(c.Test.Description)
	if desc == "" {
		return []Issue{{
			Severity: SeverityCritical,
			Rule:     RuleTestReachability,
			Message:  "case has no discriminating test description",
		}}
	}

	var reachable []mystery.Evidence
	for _, ev := range evidence {
		if ov.Score(desc, ev.Description) >= MatchThreshold {
			reachable = append(reachable, ev)
		}
	}
	if len(reachable) == 0 {
		return []Issue{{
			Severity: SeverityCritical,
			Rule:     RuleTestReachability,
			Message:  "no evidence item leads the reader to the discriminating test",
		}}
	}

	earlyOrMid := false
	for _, ev := range reachable {
		if ev.Placement == mystery.PlaceEarly || ev.Placement == mystery.PlaceMid {
			earlyOrMid = true
			break
		}
	}
	if !earlyOrMid {
		return []Issue{{
			Severity: SeverityWarning,
			Rule:     RuleTestReachability,
			Message:  "all evidence for the discriminating test is placed late; the reader cannot anticipate it",
		}}
	}
	return nil
}

func checkSuspectElimination(c *mystery.Case, evidence []mystery.Evidence) []Issue {
	var issues []Issue
	for _, s := range c.EligibleSuspects() {
		name := strings.ToLower(strings.TrimSpace(s.Name))
		if name == "" {
			continue
		}
		mentioned := false
		for _, ev := range evidence {
			if strings.Contains(strings.ToLower(ev.Description), name) {
				mentioned = true
				break
			}
		}
		if !mentioned {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Rule:     RuleSuspectElimination,
				Message:  fmt.Sprintf("suspect %s is never mentioned in any evidence item; the reader cannot eliminate them", s.Name),
			})
		}
	}
	return issues
}
