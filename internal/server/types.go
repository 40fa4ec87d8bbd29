package server

import (
	"time"

	"github.com/caseforge/moriarty/internal/pipeline"
)

// SubmitRunRequest is the POST /runs request body. Every field is
// optional; an empty body starts a fully model-chosen mystery.
type SubmitRunRequest struct {
	Theme          string `json:"theme,omitempty"`
	Era            string `json:"era,omitempty"`
	TargetLength   string `json:"target_length,omitempty"`
	NarrativeStyle string `json:"narrative_style,omitempty"`
	Seed           string `json:"seed,omitempty"`

	// RunID is optional; a ULID is generated when empty.
	RunID string `json:"run_id,omitempty"`
}

// RunStatus is returned by GET /runs/{id}.
type RunStatus struct {
	RunID         string     `json:"run_id"`
	State         string     `json:"state"`
	Stage         string     `json:"stage,omitempty"`
	Percent       int        `json:"percent"`
	LastEventAt   *time.Time `json:"last_event_at,omitempty"`
	FailureReason string     `json:"failure_reason,omitempty"`
	ArtifactRoot  string     `json:"artifact_root,omitempty"`
	Clean         bool       `json:"clean,omitempty"`
	TotalCostUSD  float64    `json:"total_cost_usd,omitempty"`
	Warnings      []string   `json:"warnings,omitempty"`
}

// RunResult is returned by GET /runs/{id}/result once the run reaches a
// terminal state.
type RunResult struct {
	*pipeline.Result
	ArtifactRoot string `json:"artifact_root,omitempty"`
}

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
