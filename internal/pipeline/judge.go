package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/caseforge/moriarty/internal/mystery"
	"github.com/caseforge/moriarty/internal/mystery/schema"
)

// auditRules is the fixed checklist the full-context audit must score.
var auditRules = []string{
	"Clue Visibility",
	"Information Parity",
	"No Special Knowledge",
	"Logical Deducibility",
	"Test Timing",
	"No Withholding",
	"Constraint Consistency",
	"Red Herring Alignment",
	"Solution Uniqueness",
}

// maxAuditRuns bounds the full-context audit to 2 runs per run; each
// failure feeds a clue regeneration in between.
const maxAuditRuns = 2

// judgeBudget tracks spend and attempts for judge-driven clue
// regenerations across both judge types combined. The cost ceiling
// binds even when attempts remain: judge retries are the pipeline's
// most expensive loop.
type judgeBudget struct {
	regens     int
	maxRegens  int
	spentUSD   float64
	ceilingUSD float64
}

func (b *judgeBudget) allow() bool {
	if b.maxRegens > 0 && b.regens >= b.maxRegens {
		return false
	}
	if b.ceilingUSD > 0 && b.spentUSD >= b.ceilingUSD {
		return false
	}
	return true
}

func (b *judgeBudget) charge(cost float64) {
	b.regens++
	b.spentUSD += cost
}

// runFullAudit executes one full-context fair-play audit pass.
func (e *Engine) runFullAudit(ctx context.Context) (mystery.AuditVerdict, error) {
	inputs := map[string]any{
		"case":           e.caseDoc,
		"evidence":       e.clues.Evidence,
		"red_herrings":   e.clues.RedHerrings,
		"rule_checklist": auditRules,
	}
	raw, cost, err := e.generateValidated(ctx, StageFairPlayAudit, schema.KindAuditVerdict, inputs, nil)
	if err != nil {
		return mystery.AuditVerdict{}, err
	}
	var v mystery.AuditVerdict
	if err := json.Unmarshal(raw, &v); err != nil {
		return mystery.AuditVerdict{}, fmt.Errorf("decode audit verdict: %w", err)
	}
	v.CostUSD = cost
	return v, nil
}

// BlindPayload builds the blind simulation's inputs. It must never
// contain the true culprit, the mechanism, or any inference step's
// correction/effect text: the blind judge's value comes entirely from
// not holding the answer key.
func BlindPayload(c *mystery.Case, clues *mystery.ClueSet) map[string]any {
	suspects := make([]string, 0, len(c.Cast))
	for _, s := range c.Cast {
		if s.Eligible {
			suspects = append(suspects, s.Name)
		}
	}
	return map[string]any{
		"evidence":         clues.Evidence,
		"red_herrings":     clues.RedHerrings,
		"false_assumption": c.FalseAssumption,
		"suspects":         suspects,
	}
}

// runBlindSimulation executes the blind solvability pass.
func (e *Engine) runBlindSimulation(ctx context.Context) (mystery.BlindVerdict, error) {
	inputs := BlindPayload(e.caseDoc, e.clues)
	raw, cost, err := e.generateValidated(ctx, StageBlindSim, schema.KindBlindVerdict, inputs, nil)
	if err != nil {
		return mystery.BlindVerdict{}, err
	}
	var v mystery.BlindVerdict
	if err := json.Unmarshal(raw, &v); err != nil {
		return mystery.BlindVerdict{}, fmt.Errorf("decode blind verdict: %w", err)
	}
	v.CostUSD = cost
	return v, nil
}

// auditFeedback renders an audit verdict's violations as regeneration
// feedback lines.
func auditFeedback(v mystery.AuditVerdict) []string {
	var out []string
	for _, viol := range v.Violations {
		line := fmt.Sprintf("fair-play rule violated: %s (%s)", viol.Rule, viol.Severity)
		if strings.TrimSpace(viol.Detail) != "" {
			line += ": " + viol.Detail
		}
		out = append(out, line)
	}
	out = append(out, v.Recommendations...)
	return out
}

// blindFeedback passes the blind judge's own stated missing information
// back verbatim; that list is the highest-signal description of what
// the clue set lacks.
func blindFeedback(v mystery.BlindVerdict) []string {
	out := append([]string{}, v.MissingInformation...)
	if len(out) == 0 {
		out = append(out, fmt.Sprintf(
			"a reader without the solution guessed %q with confidence %q; the true chain of reasoning is not on the page",
			v.GuessedCulprit, v.Confidence))
	}
	return out
}
