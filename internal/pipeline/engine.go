package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/caseforge/moriarty/internal/mystery"
	"github.com/caseforge/moriarty/internal/mystery/guardrail"
	"github.com/caseforge/moriarty/internal/mystery/schema"
)

// Request is the user's generation request. Every field is advisory
// context for the setting stage; none is required.
type Request struct {
	Theme          string `json:"theme,omitempty" yaml:"theme"`
	Era            string `json:"era,omitempty" yaml:"era"`
	TargetLength   string `json:"target_length,omitempty" yaml:"target_length"`
	NarrativeStyle string `json:"narrative_style,omitempty" yaml:"narrative_style"`
	Seed           string `json:"seed,omitempty" yaml:"seed"`
}

// Options carries the cross-run resources the engine does not own.
type Options struct {
	// Limiter bounds concurrent generation calls across runs. Nil means
	// unlimited.
	Limiter *Limiter
	// Progress receives stage events. Nil discards them.
	Progress ProgressSink
	// PriorPremises feeds the novelty check with premises from archived
	// runs. Ignored unless the novelty stage is enabled.
	PriorPremises []string
	// RunID overrides the generated ULID, used when resuming.
	RunID string
	// ExampleDigests maps stage -> digest of the few-shot example set the
	// generator saw, recorded in every checkpoint for attribution.
	ExampleDigests map[string]string
}

// Engine drives one run through the full stage machine. An Engine is
// single-use: construct, Run once, read the Result.
type Engine struct {
	cfg      Config
	req      Request
	runID    string
	gen      Generator
	schemas  *schema.Validator
	guard    *guardrail.Engine
	store    *Store
	ledger   *Ledger
	invoker  *Invoker
	progress progressReporter

	priorPremises  []string
	exampleDigests map[string]string

	caseDoc      *mystery.Case
	clues        *mystery.ClueSet
	coverage     mystery.CoverageResult
	lastAudit    *mystery.AuditVerdict
	lastBlind    *mystery.BlindVerdict
	budget       judgeBudget
	revised      bool
	failureClass mystery.FailureClass
	fairPlayOK   bool
	blindOK      bool
	prose        *Prose
}

func NewEngine(cfg Config, req Request, gen Generator, opts Options) (*Engine, error) {
	schemas, err := schema.New()
	if err != nil {
		return nil, fmt.Errorf("compile schemas: %w", err)
	}
	runID := opts.RunID
	if runID == "" {
		runID, err = NewRunID()
		if err != nil {
			return nil, fmt.Errorf("generate run id: %w", err)
		}
	}
	store, err := NewStore(filepath.Join(cfg.LogsRoot, runID))
	if err != nil {
		return nil, fmt.Errorf("run store: %w", err)
	}
	e := &Engine{
		cfg:            cfg,
		req:            req,
		runID:          runID,
		gen:            gen,
		schemas:        schemas,
		guard:          guardrail.NewEngine(),
		store:          store,
		ledger:         NewLedger(),
		priorPremises:  opts.PriorPremises,
		exampleDigests: opts.ExampleDigests,
		budget: judgeBudget{
			maxRegens:  cfg.JudgeMaxRegens,
			ceilingUSD: cfg.JudgeCostCeilingUSD,
		},
	}
	e.progress.sink = opts.Progress
	e.invoker = &Invoker{
		Gen:                  gen,
		Limiter:              opts.Limiter,
		Timeout:              cfg.StageTimeout(),
		MaxTransientAttempts: cfg.MaxTransientAttempts,
		Backoff:              cfg.Backoff,
		RunID:                runID,
		onRetry: func(stage string, attempt int, delay time.Duration, cause error) {
			e.progress.emit(stage, "transient failure, retrying", map[string]any{
				"attempt":  attempt,
				"delay_ms": delay.Milliseconds(),
				"cause":    cause.Error(),
			})
		},
	}
	return e, nil
}

func (e *Engine) RunID() string { return e.runID }

// ArtifactRoot returns the directory holding this run's artifacts.
func (e *Engine) ArtifactRoot() string { return e.store.Root() }

// Artifact returns the live version of a stage artifact, or (nil, 0)
// when the stage has produced nothing yet.
func (e *Engine) Artifact(stage string) ([]byte, int, error) { return e.store.Live(stage) }

// ArtifactDigest returns the blake3 hex digest of a stage's live
// artifact, empty when the stage has produced nothing yet.
func (e *Engine) ArtifactDigest(stage string) string { return e.store.Digest(stage) }

// Run executes the full pipeline. The returned Result is non-nil even on
// failure so callers can persist and report partial runs. A non-nil
// error means the run did not reach a completed terminal state.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	start := time.Now().UTC()
	runErr := e.run(ctx)
	res := e.buildResult(start, runErr)

	if err := e.store.SaveResult(res); err != nil {
		e.ledger.Warn("persist result: " + err.Error())
	}
	e.checkpoint("terminal")

	if runErr != nil {
		e.progress.terminal(res.Status, runErr.Error())
		return res, runErr
	}
	e.progress.terminal(StatusCompleted, "mystery generated")
	return res, nil
}

func (e *Engine) run(ctx context.Context) error {
	// Setting and cast are soft stages: schema failure downgrades to a
	// warning because nothing downstream parses them structurally.
	settingRaw, err := e.runSoftStage(ctx, StageSetting, schema.KindSetting, map[string]any{
		"request": e.req,
	})
	if err != nil {
		return err
	}

	castRaw, err := e.runSoftStage(ctx, StageCast, schema.KindCast, map[string]any{
		"request": e.req,
		"setting": json.RawMessage(settingRaw),
	})
	if err != nil {
		return err
	}

	if err := e.buildStructure(ctx, settingRaw, castRaw); err != nil {
		return err
	}

	if e.cfg.NoveltyCheck {
		if err := e.runNoveltyCheck(ctx, settingRaw, castRaw); err != nil {
			return err
		}
	}

	if err := e.cluePhase(ctx, nil); err != nil {
		return err
	}

	if err := e.classifyAndMaybeRevise(ctx); err != nil {
		return err
	}

	if e.cfg.StrictFairPlay && !(e.fairPlayOK && e.blindOK) {
		return fmt.Errorf("fair-play gates still failing after revision and regeneration (class %s)", e.failureClass)
	}

	if err := e.writeStory(ctx); err != nil {
		return err
	}
	return nil
}

// cancelled converts a context error into a run error; checked at every
// stage boundary so cancellation lands between stages, not mid-call.
func (e *Engine) cancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("run stopped: %w", err)
	}
	return nil
}

// stageOutcome is one generation stage's output after the validation
// retry wrapper has done its work.
type stageOutcome struct {
	raw      []byte
	cost     float64
	attempts int
	valid    bool
	verrs    []string
}

// generateStage runs one generation call under the validation-retry
// wrapper, recording cost and duration per attempt. Validation failure
// is returned in the outcome, never as an error.
func (e *Engine) generateStage(ctx context.Context, stage, kind string, inputs map[string]any, feedback []string) (stageOutcome, error) {
	if err := e.cancelled(ctx); err != nil {
		return stageOutcome{}, err
	}
	e.progress.emit(stage, "generating", nil)

	generate := func(ctx context.Context, attempt int, priorErrors []string) ([]byte, float64, error) {
		fb := append(append([]string{}, feedback...), priorErrors...)
		if attempt > 1 {
			e.progress.emit(stage, "regenerating after validation failure", map[string]any{"attempt": attempt})
		}
		res, d, err := e.invoker.Invoke(ctx, GenerateRequest{
			Stage:    stage,
			Inputs:   inputs,
			Feedback: fb,
			Attempt:  attempt,
		})
		e.ledger.Record(stage, res.CostUSD, d)
		if err != nil {
			return nil, res.CostUSD, err
		}
		return ExtractJSON(res.Text), res.CostUSD, nil
	}
	validate := func(artifact []byte) Validation {
		r := e.schemas.Validate(kind, artifact)
		return Validation{Valid: r.Valid, Errors: r.Errors, Warnings: r.Warnings}
	}

	out, err := RunWithValidation(ctx, generate, validate, e.cfg.MaxValidationAttempts)
	if err != nil {
		return stageOutcome{}, err
	}
	for _, w := range out.Final.Warnings {
		e.ledger.Warn(stage + ": " + w)
	}
	return stageOutcome{
		raw:      out.Artifact,
		cost:     out.TotalCost,
		attempts: out.Attempts,
		valid:    out.Final.Valid,
		verrs:    out.Final.Errors,
	}, nil
}

// generateValidated is generateStage with invalidity downgraded to a
// warning; used by the judges, whose artifacts are consumed best-effort.
func (e *Engine) generateValidated(ctx context.Context, stage, kind string, inputs map[string]any, feedback []string) ([]byte, float64, error) {
	so, err := e.generateStage(ctx, stage, kind, inputs, feedback)
	if err != nil {
		return nil, 0, err
	}
	if !so.valid {
		e.warnInvalid(stage, so)
	}
	return so.raw, so.cost, nil
}

func (e *Engine) warnInvalid(stage string, so stageOutcome) {
	e.ledger.Warn(fmt.Sprintf("%s: artifact failed schema validation after %d attempt(s): %s",
		stage, so.attempts, strings.Join(so.verrs, "; ")))
}

// runSoftStage generates, warns on invalidity, and stores the artifact.
func (e *Engine) runSoftStage(ctx context.Context, stage, kind string, inputs map[string]any) ([]byte, error) {
	so, err := e.generateStage(ctx, stage, kind, inputs, nil)
	if err != nil {
		return nil, err
	}
	if !so.valid {
		e.warnInvalid(stage, so)
	}
	if _, err := e.store.Put(stage, so.raw); err != nil {
		e.ledger.Warn("persist " + stage + ": " + err.Error())
	}
	e.checkpoint(stage)
	return so.raw, nil
}

// buildStructure generates the case document. Structure is the one
// stage where exhausted validation is fatal: everything downstream
// parses this artifact.
func (e *Engine) buildStructure(ctx context.Context, settingRaw, castRaw []byte) error {
	so, err := e.generateStage(ctx, StageStructure, schema.KindCase, map[string]any{
		"request": e.req,
		"setting": json.RawMessage(settingRaw),
		"cast":    json.RawMessage(castRaw),
	}, nil)
	if err != nil {
		return err
	}
	e.progress.emit(StageStructureValidate, "validating structural document", map[string]any{
		"attempts": so.attempts,
	})
	if !so.valid {
		return fmt.Errorf("structural document invalid after %d attempt(s): %s",
			so.attempts, strings.Join(so.verrs, "; "))
	}
	var c mystery.Case
	if err := json.Unmarshal(so.raw, &c); err != nil {
		return fmt.Errorf("decode case document: %w", err)
	}
	e.caseDoc = &c
	if _, err := e.store.Put(StageStructure, so.raw); err != nil {
		e.ledger.Warn("persist " + StageStructure + ": " + err.Error())
	}
	e.checkpoint(StageStructureValidate)
	return nil
}

// NoveltyVerdict is the novelty judge's output.
type NoveltyVerdict struct {
	Status          mystery.VerdictStatus `json:"status"`
	SimilarPremises []string              `json:"similar_premises,omitempty"`
	Notes           string                `json:"notes,omitempty"`
}

// runNoveltyCheck compares the fresh premise against archived ones and
// regenerates the structure once when it is too close to a prior run.
func (e *Engine) runNoveltyCheck(ctx context.Context, settingRaw, castRaw []byte) error {
	inputs := map[string]any{
		"premise":          e.caseDoc.Premise,
		"mechanism":        e.caseDoc.Mechanism,
		"false_assumption": e.caseDoc.FalseAssumption,
		"prior_premises":   e.priorPremises,
	}
	raw, _, err := e.generateValidated(ctx, StageNovelty, schema.KindNovelty, inputs, nil)
	if err != nil {
		return err
	}
	var v NoveltyVerdict
	if err := json.Unmarshal(raw, &v); err != nil {
		e.ledger.Warn("novelty verdict undecodable; skipping novelty gate")
		return nil
	}
	if _, err := e.store.Put(StageNovelty, raw); err != nil {
		e.ledger.Warn("persist " + StageNovelty + ": " + err.Error())
	}
	if v.Status == mystery.VerdictPass {
		return nil
	}

	feedback := []string{"the premise is too similar to previously generated mysteries; produce a structurally different mechanism and false assumption"}
	for _, p := range v.SimilarPremises {
		feedback = append(feedback, "too similar to: "+p)
	}
	if strings.TrimSpace(v.Notes) != "" {
		feedback = append(feedback, v.Notes)
	}
	so, err := e.generateStage(ctx, StageStructure, schema.KindCase, map[string]any{
		"request": e.req,
		"setting": json.RawMessage(settingRaw),
		"cast":    json.RawMessage(castRaw),
	}, feedback)
	if err != nil {
		return err
	}
	var c mystery.Case
	if !so.valid || json.Unmarshal(so.raw, &c) != nil {
		e.ledger.Warn("novelty regeneration produced an invalid case document; keeping the original")
		return nil
	}
	e.caseDoc = &c
	if _, err := e.store.Put(StageStructure, so.raw); err != nil {
		e.ledger.Warn("persist " + StageStructure + ": " + err.Error())
	}
	e.checkpoint(StageNovelty)
	return nil
}

// buildClues generates a fresh clue set wholesale. Returns the cost so
// judge-driven regenerations can be charged against the budget.
func (e *Engine) buildClues(ctx context.Context, feedback []string) (float64, error) {
	so, err := e.generateStage(ctx, StageClues, schema.KindClues, map[string]any{
		"case": e.caseDoc,
	}, feedback)
	if err != nil {
		return 0, err
	}
	if !so.valid {
		e.warnInvalid(StageClues, so)
	}
	var cs mystery.ClueSet
	if err := json.Unmarshal(so.raw, &cs); err != nil {
		return so.cost, fmt.Errorf("decode clue set: %w", err)
	}
	e.clues = &cs
	if _, err := e.store.Put(StageClues, so.raw); err != nil {
		e.ledger.Warn("persist " + StageClues + ": " + err.Error())
	}
	return so.cost, nil
}

// guardrailFeedback turns a failing report into regeneration
// instructions: the violated rules plus the uncovered steps, quoted so
// the generator sees the exact observation it failed to realize.
func guardrailFeedback(c *mystery.Case, rep guardrail.Report) []string {
	var out []string
	for _, is := range rep.Critical() {
		out = append(out, fmt.Sprintf("guardrail %s: %s", is.Rule, is.Message))
	}
	for _, n := range rep.Coverage.CriticalGaps {
		if step := c.StepByNumber(n); step != nil {
			out = append(out, fmt.Sprintf("inference step %d (%q) has no supporting evidence; add a clue that concretely realizes it", n, step.Observation))
			continue
		}
		out = append(out, fmt.Sprintf("inference step %d has no supporting evidence; add a clue that concretely realizes it", n))
	}
	return out
}

// cluePhase runs clue_build through blind_simulation. It is re-entered
// in full after a structural revision; the judge budget persists across
// entries.
func (e *Engine) cluePhase(ctx context.Context, feedback []string) error {
	if _, err := e.buildClues(ctx, feedback); err != nil {
		return err
	}

	// Deterministic guardrail gate: one clue regeneration on critical
	// issues, then proceed with warnings if they persist.
	e.progress.emit(StageGuardrail, "running deterministic guardrails", nil)
	report := e.guard.Check(e.caseDoc, e.clues.Evidence, e.clues.RedHerrings)
	e.coverage = report.Coverage
	if report.HasCritical() {
		if _, err := e.buildClues(ctx, guardrailFeedback(e.caseDoc, report)); err != nil {
			return err
		}
		report = e.guard.Check(e.caseDoc, e.clues.Evidence, e.clues.RedHerrings)
		e.coverage = report.Coverage
		if report.HasCritical() {
			e.ledger.Warn("guardrail critical issues persist after clue regeneration; continuing")
		}
	}
	for _, is := range report.Issues {
		e.ledger.Warn(fmt.Sprintf("guardrail %s (%s): %s", is.Rule, is.Severity, is.Message))
	}
	e.progress.emit(StageGuardrail, "guardrails done", map[string]any{
		"issues":   len(report.Issues),
		"critical": len(report.Critical()),
	})
	e.checkpoint(StageGuardrail)

	if err := e.auditLoop(ctx); err != nil {
		return err
	}
	if err := e.blindLoop(ctx); err != nil {
		return err
	}
	e.checkpoint(StageBlindSim)
	return nil
}

// auditLoop runs the full-context audit up to maxAuditRuns times, with a
// budgeted clue regeneration after every failure. The final failure
// still gets its regeneration; it just does not get a third audit.
func (e *Engine) auditLoop(ctx context.Context) error {
	e.fairPlayOK = false
	for run := 1; run <= maxAuditRuns; run++ {
		e.progress.emit(StageFairPlayAudit, "running fair-play audit", map[string]any{"audit_run": run})
		v, err := e.runFullAudit(ctx)
		if err != nil {
			return err
		}
		e.lastAudit = &v
		e.putJSON(StageFairPlayAudit, v)
		if v.Passed() {
			e.fairPlayOK = true
			return nil
		}
		for _, viol := range v.Violations {
			e.ledger.Warn(fmt.Sprintf("fair-play audit: %s (%s): %s", viol.Rule, viol.Severity, viol.Detail))
		}
		if !e.budget.allow() {
			e.ledger.Warn("judge retry budget exhausted; accepting failing audit verdict")
			return nil
		}
		cost, err := e.buildClues(ctx, auditFeedback(v))
		if err != nil {
			return err
		}
		e.budget.charge(cost)
	}
	e.ledger.Warn(fmt.Sprintf("fair-play audit failed %d run(s); continuing with regenerated clues unaudited", maxAuditRuns))
	return nil
}

// blindLoop runs the blind solvability simulation with at most one
// budgeted regeneration-and-retry.
func (e *Engine) blindLoop(ctx context.Context) error {
	e.progress.emit(StageBlindSim, "running blind solvability simulation", nil)
	v, err := e.runBlindSimulation(ctx)
	if err != nil {
		return err
	}
	e.lastBlind = &v
	e.putJSON(StageBlindSim, v)
	e.blindOK = v.Solved(e.caseDoc.Culprit)
	if e.blindOK {
		return nil
	}
	e.ledger.Warn(fmt.Sprintf("blind simulation unsolved: guessed %q with confidence %q", v.GuessedCulprit, v.Confidence))
	if !e.budget.allow() {
		e.ledger.Warn("judge retry budget exhausted; accepting unsolvable blind verdict")
		return nil
	}
	cost, err := e.buildClues(ctx, blindFeedback(v))
	if err != nil {
		return err
	}
	e.budget.charge(cost)

	v2, err := e.runBlindSimulation(ctx)
	if err != nil {
		return err
	}
	e.lastBlind = &v2
	e.putJSON(StageBlindSim, v2)
	e.blindOK = v2.Solved(e.caseDoc.Culprit)
	if !e.blindOK {
		e.ledger.Warn("blind simulation still unsolved after clue regeneration")
	}
	return nil
}

// classifyAndMaybeRevise runs failure classification when any gate
// failed, and on a structural class performs one structural revision
// followed by a full re-run of the clue phase.
func (e *Engine) classifyAndMaybeRevise(ctx context.Context) error {
	if e.fairPlayOK && e.blindOK && !e.coverage.HasCriticalGaps() {
		return nil
	}
	e.failureClass = mystery.Classify(e.coverage, e.lastAudit, e.caseDoc)
	e.progress.emit(StageClassify, "classified failure", map[string]any{
		"class": string(e.failureClass),
	})
	if !e.failureClass.Structural() || e.revised {
		return nil
	}

	if err := e.runStructuralRevision(ctx); err != nil {
		return err
	}
	if !e.revised {
		// Revision produced nothing usable; keep the prior verdicts.
		return nil
	}
	if err := e.cluePhase(ctx, nil); err != nil {
		return err
	}
	if e.fairPlayOK && e.blindOK {
		e.failureClass = ""
	} else {
		e.failureClass = mystery.Classify(e.coverage, e.lastAudit, e.caseDoc)
	}
	return nil
}

// writeStory runs outline, prose, and story validation with its single
// repair retry.
func (e *Engine) writeStory(ctx context.Context) error {
	outlineSO, err := e.generateStage(ctx, StageOutline, schema.KindOutline, map[string]any{
		"case":         e.caseDoc,
		"evidence":     e.clues.Evidence,
		"red_herrings": e.clues.RedHerrings,
	}, nil)
	if err != nil {
		return err
	}
	if !outlineSO.valid {
		e.warnInvalid(StageOutline, outlineSO)
	}
	if _, err := e.store.Put(StageOutline, outlineSO.raw); err != nil {
		e.ledger.Warn("persist " + StageOutline + ": " + err.Error())
	}
	e.checkpoint(StageOutline)

	proseInputs := map[string]any{
		"request": e.req,
		"case":    e.caseDoc,
		"clues":   e.clues,
		"outline": json.RawMessage(outlineSO.raw),
	}
	proseSO, err := e.generateStage(ctx, StageProse, schema.KindProse, proseInputs, nil)
	if err != nil {
		return err
	}
	if !proseSO.valid {
		e.warnInvalid(StageProse, proseSO)
	}
	var p Prose
	if err := json.Unmarshal(proseSO.raw, &p); err != nil {
		return fmt.Errorf("decode prose: %w", err)
	}
	e.prose = &p
	if _, err := e.store.Put(StageProse, proseSO.raw); err != nil {
		e.ledger.Warn("persist " + StageProse + ": " + err.Error())
	}
	e.checkpoint(StageProse)

	return e.runStoryValidation(ctx, proseInputs)
}

// runStoryValidation validates the prose and performs exactly one repair
// retry on recoverable gaps, keeping the repaired prose only when it is
// measurably better. A final failure is delivered with warnings, never
// discarded.
func (e *Engine) runStoryValidation(ctx context.Context, proseInputs map[string]any) error {
	ov := e.guard.Overlap
	if ov == nil {
		ov = guardrail.WordOverlap{}
	}
	e.progress.emit(StageValidation, "validating story", nil)
	report := ValidateStoryWithClues(e.prose, e.caseDoc, e.clues, ov)
	e.putJSON(StageValidation, report)

	if report.Status != "passed" && report.hasRecoverableGaps() {
		e.progress.emit(StageValidation, "repairing prose", map[string]any{
			"gaps": len(report.Errors),
		})
		so, err := e.generateStage(ctx, StageProse, schema.KindProse, proseInputs, repairGuardrails(report))
		if err != nil {
			return err
		}
		var repaired Prose
		if so.valid && json.Unmarshal(so.raw, &repaired) == nil {
			second := ValidateStoryWithClues(&repaired, e.caseDoc, e.clues, ov)
			if second.Improved(report) {
				e.prose = &repaired
				if _, err := e.store.Put(StageProse, so.raw); err != nil {
					e.ledger.Warn("persist " + StageProse + ": " + err.Error())
				}
				e.putJSON(StageValidation, second)
				report = second
			} else {
				e.ledger.Warn("prose repair did not improve the story; keeping the original prose")
			}
		} else {
			e.ledger.Warn("prose repair produced an invalid artifact; keeping the original prose")
		}
	}

	if report.Status != "passed" {
		for _, is := range report.Errors {
			e.ledger.Warn("story validation: " + is.Kind + ": " + is.Message)
		}
		e.ledger.Warn("story validation did not pass; delivering prose with warnings")
	}
	e.checkpoint(StageValidation)
	return nil
}

// putJSON marshals and stores an artifact, downgrading persistence
// failures to warnings.
func (e *Engine) putJSON(stage string, v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		e.ledger.Warn("encode " + stage + " artifact: " + err.Error())
		return
	}
	if _, err := e.store.Put(stage, b); err != nil {
		e.ledger.Warn("persist " + stage + ": " + err.Error())
	}
}

func (e *Engine) checkpoint(stage string) {
	err := e.store.SaveCheckpoint(Checkpoint{
		RunID:          e.runID,
		Stage:          stage,
		ExampleDigests: e.exampleDigests,
		Warnings:       e.ledger.Warnings(),
		CostUSD:        e.ledger.TotalCost(),
	})
	if err != nil {
		e.ledger.Warn("checkpoint at " + stage + ": " + err.Error())
	}
}

func (e *Engine) buildResult(start time.Time, runErr error) *Result {
	durations := map[string]int64{}
	for stage, d := range e.ledger.DurationByStage() {
		durations[stage] = d.Milliseconds()
	}
	warnings := e.ledger.Warnings()
	errs := e.ledger.Errors()

	status := StatusCompleted
	if runErr != nil {
		status = StatusFailed
		errs = append(errs, runErr.Error())
	}

	res := &Result{
		RunID:            e.runID,
		Status:           status,
		Clean:            status == StatusCompleted && len(warnings) == 0,
		FailureClass:     e.failureClass,
		Revised:          e.revised,
		ArtifactVersions: e.store.Versions(),
		Warnings:         warnings,
		Errors:           errs,
		TotalCostUSD:     e.ledger.TotalCost(),
		CostByStage:      e.ledger.CostByStage(),
		DurationMS:       durations,
		StartedAt:        start,
		FinishedAt:       time.Now().UTC(),
	}
	if e.caseDoc != nil {
		res.Title = e.caseDoc.Title
		res.Premise = e.caseDoc.Premise
	}
	return res
}
