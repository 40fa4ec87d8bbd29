package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/caseforge/moriarty/internal/pipeline"
)

// ArtifactSource serves a run's live stage artifacts; the pipeline
// engine satisfies it.
type ArtifactSource interface {
	Artifact(stage string) ([]byte, int, error)
	ArtifactDigest(stage string) string
}

// RunState tracks a single running or completed generation run.
type RunState struct {
	RunID        string
	Broadcaster  *Broadcaster
	Cancel       context.CancelCauseFunc
	StartedAt    time.Time
	ArtifactRoot string
	Artifacts    ArtifactSource

	mu     sync.Mutex
	result *pipeline.Result
	err    error
	done   bool
}

// SetResult records the terminal outcome of the run.
func (rs *RunState) SetResult(res *pipeline.Result, err error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.result = res
	rs.err = err
	rs.done = true
}

// Result returns the terminal result, or (nil, false) while running.
func (rs *RunState) Result() (*pipeline.Result, bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if !rs.done {
		return nil, false
	}
	return rs.result, true
}

// Status builds the HTTP status view. While the run is live, the
// current stage and percent come from the latest progress event.
func (rs *RunState) Status() RunStatus {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	status := RunStatus{
		RunID:        rs.RunID,
		State:        "running",
		ArtifactRoot: rs.ArtifactRoot,
	}
	if rs.done {
		status.State = pipeline.StatusFailed
		if rs.err != nil {
			status.FailureReason = rs.err.Error()
		}
		if rs.result != nil {
			status.State = rs.result.Status
			status.Clean = rs.result.Clean
			status.TotalCostUSD = rs.result.TotalCostUSD
			status.Warnings = rs.result.Warnings
			status.Percent = 100
		}
		return status
	}

	if rs.Broadcaster != nil {
		history := rs.Broadcaster.History()
		if len(history) > 0 {
			last := history[len(history)-1]
			if stage, ok := last["stage"].(string); ok {
				status.Stage = stage
			}
			if pct, ok := last["percent"].(int); ok {
				status.Percent = pct
			}
			if ts, ok := last["ts"].(string); ok {
				if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
					status.LastEventAt = &t
				}
			}
		}
	}
	return status
}

// RunRegistry tracks every run managed by this server instance.
type RunRegistry struct {
	mu   sync.RWMutex
	runs map[string]*RunState
}

func NewRunRegistry() *RunRegistry {
	return &RunRegistry{runs: make(map[string]*RunState)}
}

// Register adds a run. Duplicate run IDs are an error.
func (r *RunRegistry) Register(runID string, rs *RunState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.runs[runID]; exists {
		return fmt.Errorf("run %s already exists", runID)
	}
	r.runs[runID] = rs
	return nil
}

// Get returns a run by ID.
func (r *RunRegistry) Get(runID string) (*RunState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rs, ok := r.runs[runID]
	return rs, ok
}

// List returns all run IDs.
func (r *RunRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.runs))
	for id := range r.runs {
		ids = append(ids, id)
	}
	return ids
}

// CancelAll cancels every running run with the given reason.
func (r *RunRegistry) CancelAll(reason string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rs := range r.runs {
		if rs.Cancel != nil {
			rs.Cancel(fmt.Errorf("%s", reason))
		}
	}
}
