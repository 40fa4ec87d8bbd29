package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/caseforge/moriarty/internal/mystery"
	"github.com/caseforge/moriarty/internal/mystery/schema"
)

// runStructuralRevision regenerates the case document wholesale, guided
// by the failure class and the accumulated judge feedback. At most one
// revision happens per run; the caller re-runs the clue phase after it.
// An unusable revision keeps the prior case document and leaves
// e.revised false.
func (e *Engine) runStructuralRevision(ctx context.Context) error {
	feedback := revisionFeedback(e.failureClass, e.lastAudit, e.lastBlind, e.coverage)
	so, err := e.generateStage(ctx, StageRevision, schema.KindCase, map[string]any{
		"case":          e.caseDoc,
		"failure_class": e.failureClass,
	}, feedback)
	if err != nil {
		return err
	}
	if !so.valid {
		e.ledger.Warn("structural revision produced an invalid case document; keeping the prior version")
		return nil
	}
	var c mystery.Case
	if err := json.Unmarshal(so.raw, &c); err != nil {
		e.ledger.Warn("structural revision undecodable; keeping the prior version")
		return nil
	}
	e.caseDoc = &c
	e.revised = true
	// New version of the same stage: the live pointer advances, the old
	// document stays on disk for the run record.
	if _, err := e.store.Put(StageStructure, so.raw); err != nil {
		e.ledger.Warn("persist " + StageStructure + ": " + err.Error())
	}
	e.progress.emit(StageRevision, "case document revised", map[string]any{
		"class": string(e.failureClass),
	})
	e.checkpoint(StageRevision)
	return nil
}

// revisionFeedback turns the classified failure into concrete rewrite
// instructions, then appends the judges' own findings.
func revisionFeedback(class mystery.FailureClass, audit *mystery.AuditVerdict, blind *mystery.BlindVerdict, coverage mystery.CoverageResult) []string {
	var out []string
	switch class {
	case mystery.FailureInferenceTooAbstract:
		out = append(out,
			"rewrite each inference step's observation as a concrete, physical, checkable fact: a named object, place, time, or statement",
			"every step must be realizable as a clue a reader can see on the page")
	case mystery.FailureConstraintsInsufficient:
		out = append(out,
			"add concrete constraints (contradiction, access, physical, temporal) until the case carries at least three",
			"each constraint must be specific enough to pin one suspect's account against observable fact")
	}
	for _, step := range coverage.CriticalGaps {
		out = append(out, fmt.Sprintf("inference step %d could not be supported by any clue; make it concrete or replace it", step))
	}
	if audit != nil {
		out = append(out, auditFeedback(*audit)...)
	}
	if blind != nil && len(blind.MissingInformation) > 0 {
		out = append(out, blind.MissingInformation...)
	}
	return out
}
