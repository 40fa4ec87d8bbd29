package mystery

import "strings"

// Classification thresholds. An inference path where half the steps have
// observations shorter than minObservationLen (or no concrete evidence
// reference) cannot ground clues no matter how many times the clue stage
// reruns, so those cases route to structural revision instead.
const (
	minObservationLen    = 20
	minConcreteFacts     = 3
	abstractStepFraction = 0.5
)

// CoverageResult is the guardrail engine's summary consumed by Classify.
type CoverageResult struct {
	// CriticalGaps holds the numbers of inference steps with no mapped
	// evidence. Empty when coverage passed.
	CriticalGaps []int
	// StepEvidenceCount maps step number -> number of mapped items.
	StepEvidenceCount map[int]int
}

func (r CoverageResult) HasCriticalGaps() bool { return len(r.CriticalGaps) > 0 }

// Classify maps a failed gate to a FailureClass. Pure and deterministic:
// no LLM call, identical inputs always yield the identical class.
//
// Decision order matters. Structural defects are checked before coverage
// gaps because an abstract inference path produces coverage gaps as a
// symptom; regenerating clues against it loops uselessly.
func Classify(coverage CoverageResult, verdict *AuditVerdict, c *Case) FailureClass {
	if c != nil {
		if inferencePathTooAbstract(c, coverage) {
			return FailureInferenceTooAbstract
		}
		if countConcreteFacts(c) < minConcreteFacts {
			return FailureConstraintsInsufficient
		}
	}
	if coverage.HasCriticalGaps() {
		return FailureClueCoverageGap
	}
	return FailureUnclassified
}

func inferencePathTooAbstract(c *Case, coverage CoverageResult) bool {
	total := len(c.InferencePath)
	if total == 0 {
		return true
	}
	abstract := 0
	for _, step := range c.InferencePath {
		obs := strings.TrimSpace(step.Observation)
		if len(obs) < minObservationLen {
			abstract++
			continue
		}
		if coverage.StepEvidenceCount != nil && coverage.StepEvidenceCount[step.Number] == 0 && !hasConcreteAnchor(step) {
			abstract++
		}
	}
	return float64(abstract) >= abstractStepFraction*float64(total)
}

// hasConcreteAnchor reports whether the step's observation names anything
// a clue could attach to: a quoted phrase, a number, or a capitalized
// proper noun past the sentence start.
func hasConcreteAnchor(step Step) bool {
	obs := step.Observation
	if strings.ContainsAny(obs, "\"'0123456789") {
		return true
	}
	words := strings.Fields(obs)
	for i, w := range words {
		if i == 0 {
			continue
		}
		r := rune(w[0])
		if r >= 'A' && r <= 'Z' {
			return true
		}
	}
	return false
}

func countConcreteFacts(c *Case) int {
	n := 0
	for _, con := range c.Constraints {
		switch con.Kind {
		case ConstraintContradiction, ConstraintAccess, ConstraintPhysical:
			if strings.TrimSpace(con.Description) != "" {
				n++
			}
		}
	}
	return n
}
