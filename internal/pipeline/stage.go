// Package pipeline contains the generation orchestrator: the state
// machine that sequences the mystery-generation stages, runs the
// deterministic and LLM-based gates between them, classifies failures,
// and decides whether a retry regenerates the failed artifact or revises
// the structural document upstream.
package pipeline

// Stage names, in execution order.
const (
	StageSetting           = "setting"
	StageCast              = "cast"
	StageStructure         = "structure_build"
	StageStructureValidate = "structure_validate"
	StageNovelty           = "novelty_check"
	StageClues             = "clue_build"
	StageGuardrail         = "guardrail_gate"
	StageFairPlayAudit     = "fair_play_audit"
	StageBlindSim          = "blind_simulation"
	StageClassify          = "failure_classification"
	StageRevision          = "structural_revision"
	StageOutline           = "outline"
	StageProse             = "prose"
	StageValidation        = "story_validation"
)

// stagePercent maps each stage to its progress target. Progress is
// clamped to be monotonic, so re-entering an earlier stage (structural
// revision re-running clue_build) never moves the bar backward.
var stagePercent = map[string]int{
	StageSetting:           8,
	StageCast:              16,
	StageStructure:         28,
	StageStructureValidate: 34,
	StageNovelty:           38,
	StageClues:             48,
	StageGuardrail:         56,
	StageFairPlayAudit:     68,
	StageBlindSim:          76,
	StageClassify:          80,
	StageRevision:          82,
	StageOutline:           86,
	StageProse:             94,
	StageValidation:        98,
}
