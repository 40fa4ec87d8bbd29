// Package mystery defines the canonical data model for a generated
// fair-play mystery: the structural case document, its inference path,
// reader-visible evidence, and the verdict/failure types exchanged
// between the pipeline stages.
package mystery

import "strings"

// Case is the canonical machine-readable description of the mystery.
// It is produced by the structure stage, consumed by nearly every later
// stage, and may be replaced wholesale by a structural revision (same
// run, new version). Individual fields are never patched in place.
type Case struct {
	Title           string       `json:"title"`
	Setting         string       `json:"setting"`
	Premise         string       `json:"premise,omitempty"`
	Cast            []Suspect    `json:"cast"`
	Culprit         string       `json:"culprit"`
	Mechanism       string       `json:"mechanism"`
	FalseAssumption string       `json:"false_assumption"`
	InferencePath   []Step       `json:"inference_path"`
	Constraints     []Constraint `json:"constraints"`
	Test            Test         `json:"discriminating_test"`
}

// Step is one link in the solver's reasoning chain: something the reader
// observes, the correction that breaks the false assumption, and the
// effect that follows.
type Step struct {
	Number      int    `json:"number"`
	Observation string `json:"observation"`
	Correction  string `json:"correction"`
	Effect      string `json:"effect"`
}

// Constraint kinds match the structure schema's closed set.
const (
	ConstraintContradiction = "contradiction"
	ConstraintAccess        = "access"
	ConstraintPhysical      = "physical"
	ConstraintTemporal      = "temporal"
)

type Constraint struct {
	Kind        string `json:"kind"`
	Description string `json:"description"`
}

// Test is the discriminating test: the decisive scene or piece of
// evidence that separates the true culprit from every other suspect.
type Test struct {
	Description string `json:"description"`
	Timing      string `json:"timing,omitempty"`
}

type Suspect struct {
	Name string `json:"name"`
	Role string `json:"role,omitempty"`
	// Eligible marks suspects the reader is expected to seriously
	// consider; ineligible cast members (victim, narrator) are exempt
	// from the elimination guardrail.
	Eligible bool `json:"eligible"`
}

// EligibleSuspects returns the cast members the reader must be able to
// eliminate, excluding the culprit.
func (c *Case) EligibleSuspects() []Suspect {
	var out []Suspect
	for _, s := range c.Cast {
		if !s.Eligible {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(s.Name), strings.TrimSpace(c.Culprit)) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// StepByNumber returns the inference step with the given number, or nil.
func (c *Case) StepByNumber(n int) *Step {
	for i := range c.InferencePath {
		if c.InferencePath[i].Number == n {
			return &c.InferencePath[i]
		}
	}
	return nil
}

type Placement string

const (
	PlaceEarly Placement = "early"
	PlaceMid   Placement = "mid"
	PlaceLate  Placement = "late"
)

type Criticality string

const (
	CritEssential  Criticality = "essential"
	CritSupporting Criticality = "supporting"
	CritOptional   Criticality = "optional"
)

// Role tags describe how a clue functions in the reasoning chain.
type Role string

const (
	RoleObservation   Role = "observation"
	RoleContradiction Role = "contradiction"
	RoleElimination   Role = "elimination"
)

// Evidence is one reader-visible fact derived from the case. Evidence is
// batch-produced from a Case and regenerated wholesale on guardrail or
// judge failure, never mutated field by field.
type Evidence struct {
	ID          string      `json:"id"`
	Description string      `json:"description"`
	Category    string      `json:"category,omitempty"`
	Placement   Placement   `json:"placement"`
	Criticality Criticality `json:"criticality"`
	// StepRef is the number of the inference step this clue supports,
	// or 0 when the clue maps only by text overlap.
	StepRef int  `json:"step_ref,omitempty"`
	Role    Role `json:"role"`
}

// RedHerring is a reader-visible fact engineered to support the false
// assumption. Same lifecycle as Evidence, disjoint set.
type RedHerring struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Placement   Placement `json:"placement"`
}

// ClueSet is the versioned unit of clue regeneration.
type ClueSet struct {
	Evidence    []Evidence   `json:"evidence"`
	RedHerrings []RedHerring `json:"red_herrings"`
}

type VerdictStatus string

const (
	VerdictPass          VerdictStatus = "pass"
	VerdictNeedsRevision VerdictStatus = "needs-revision"
	VerdictFail          VerdictStatus = "fail"
)

type Violation struct {
	Rule     string `json:"rule"`
	Severity string `json:"severity"`
	Detail   string `json:"detail,omitempty"`
}

// AuditVerdict is the result of the full-context fair-play audit.
type AuditVerdict struct {
	Status          VerdictStatus `json:"status"`
	Violations      []Violation   `json:"violations"`
	Recommendations []string      `json:"recommendations,omitempty"`
	CostUSD         float64       `json:"cost_usd,omitempty"`
}

func (v AuditVerdict) Passed() bool { return v.Status == VerdictPass }

// Confidence tiers for the blind simulation, lowest first.
type Confidence string

const (
	ConfidenceGuess    Confidence = "guess"
	ConfidenceProbable Confidence = "probable"
	ConfidenceCertain  Confidence = "certain"
)

// BlindVerdict is the result of the blind solvability simulation. The
// blind judge never sees the true mechanism or culprit; its guess is the
// higher-signal check precisely because it cannot rationalize weak clues
// against the answer key.
type BlindVerdict struct {
	GuessedCulprit     string     `json:"guessed_culprit"`
	Confidence         Confidence `json:"confidence"`
	Reasoning          string     `json:"reasoning,omitempty"`
	MissingInformation []string   `json:"missing_information,omitempty"`
	CostUSD            float64    `json:"cost_usd,omitempty"`
}

// Solved reports whether the blind judge identified the true culprit
// with more than lowest-tier confidence.
func (v BlindVerdict) Solved(trueCulprit string) bool {
	if v.Confidence == ConfidenceGuess {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(v.GuessedCulprit), strings.TrimSpace(trueCulprit))
}

// FailureClass routes a failed gate to a retry target: the clue stage or
// the structural document itself.
type FailureClass string

const (
	FailureClueCoverageGap         FailureClass = "clue_coverage_gap"
	FailureInferenceTooAbstract    FailureClass = "inference_path_too_abstract"
	FailureConstraintsInsufficient FailureClass = "constraint_space_insufficient"
	FailureUnclassified            FailureClass = "unclassified"
)

// Structural reports whether the class indicates a defect in the case
// document that clue regeneration cannot fix.
func (f FailureClass) Structural() bool {
	return f == FailureInferenceTooAbstract || f == FailureConstraintsInsufficient
}
