package pipeline

import (
	"time"

	"github.com/caseforge/moriarty/internal/mystery"
)

// Terminal run statuses. The set is closed: cancellation is a failure
// whose cause lands in Errors, not a third state.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Result is the terminal record of a run: what was produced, what it
// cost, and every warning accumulated along the way. Clean is true only
// when the run finished with zero warnings; a mystery delivered with
// downgraded gate failures is completed but not clean.
type Result struct {
	RunID   string `json:"run_id"`
	Status  string `json:"status"`
	Clean   bool   `json:"clean"`
	Title   string `json:"title,omitempty"`
	Premise string `json:"premise,omitempty"`

	FailureClass mystery.FailureClass `json:"failure_class,omitempty"`
	Revised      bool                 `json:"structural_revision,omitempty"`

	ArtifactVersions map[string]int `json:"artifact_versions,omitempty"`

	Warnings []string `json:"warnings,omitempty"`
	Errors   []string `json:"errors,omitempty"`

	TotalCostUSD float64            `json:"total_cost_usd"`
	CostByStage  map[string]float64 `json:"cost_by_stage,omitempty"`
	DurationMS   map[string]int64   `json:"duration_ms_by_stage,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

func (r *Result) Completed() bool { return r.Status == StatusCompleted }
