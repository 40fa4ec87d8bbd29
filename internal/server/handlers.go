package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/caseforge/moriarty/internal/pipeline"
)

// validRunID matches ULIDs and other safe identifiers: alphanumeric,
// dashes, underscores only.
var validRunID = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]{0,127}$`)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"runs":   len(s.registry.List()),
	})
}

func (s *Server) handleSubmitRun(w http.ResponseWriter, r *http.Request) {
	var req SubmitRunRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
	}

	runID := strings.TrimSpace(req.RunID)
	if runID == "" {
		id, err := pipeline.NewRunID()
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("generate run id: %v", err))
			return
		}
		runID = id
	}
	if !validRunID.MatchString(runID) {
		writeError(w, http.StatusBadRequest, "run_id must be alphanumeric with dashes/underscores, 1-128 chars")
		return
	}

	var priorPremises []string
	if s.archive != nil && s.runCfg.NoveltyCheck {
		premises, err := s.archive.RecentPremises(r.Context(), 20)
		if err != nil {
			s.logger.Printf("archive premises unavailable: %v", err)
		} else {
			priorPremises = premises
		}
	}

	broadcaster := NewBroadcaster()
	ctx, cancel := context.WithCancelCause(s.baseCtx)

	eng, err := pipeline.NewEngine(s.runCfg, pipeline.Request{
		Theme:          req.Theme,
		Era:            req.Era,
		TargetLength:   req.TargetLength,
		NarrativeStyle: req.NarrativeStyle,
		Seed:           req.Seed,
	}, s.gen, pipeline.Options{
		Limiter:       s.limiter,
		Progress:      broadcaster.Send,
		PriorPremises: priorPremises,
		RunID:         runID,
	})
	if err != nil {
		cancel(nil)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("start run: %v", err))
		return
	}

	rs := &RunState{
		RunID:        runID,
		Broadcaster:  broadcaster,
		Cancel:       cancel,
		StartedAt:    time.Now().UTC(),
		ArtifactRoot: eng.ArtifactRoot(),
		Artifacts:    eng,
	}
	if err := s.registry.Register(runID, rs); err != nil {
		cancel(nil)
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	go func() {
		defer broadcaster.Close()

		res, runErr := eng.Run(ctx)
		rs.SetResult(res, runErr)

		if s.archive != nil && res != nil {
			actx, acancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer acancel()
			if err := s.archive.Record(actx, res); err != nil {
				s.logger.Printf("archive run %s: %v", runID, err)
			}
		}
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{
		"run_id": runID,
		"status": "accepted",
	})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	ids := s.registry.List()
	statuses := make([]RunStatus, 0, len(ids))
	for _, id := range ids {
		if rs, ok := s.registry.Get(id); ok {
			statuses = append(statuses, rs.Status())
		}
	}
	writeJSON(w, http.StatusOK, statuses)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	rs, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, rs.Status())
}

func (s *Server) handleRunEvents(w http.ResponseWriter, r *http.Request) {
	rs, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	WriteSSE(w, r, rs.Broadcaster)
}

func (s *Server) handleRunResult(w http.ResponseWriter, r *http.Request) {
	rs, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	res, done := rs.Result()
	if !done || res == nil {
		writeError(w, http.StatusConflict, "run has not finished")
		return
	}
	writeJSON(w, http.StatusOK, RunResult{Result: res, ArtifactRoot: rs.ArtifactRoot})
}

func (s *Server) handleRunArtifact(w http.ResponseWriter, r *http.Request) {
	rs, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	stage := r.PathValue("stage")
	if !validRunID.MatchString(stage) {
		writeError(w, http.StatusBadRequest, "invalid stage name")
		return
	}
	if rs.Artifacts == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("run %s exposes no artifacts", rs.RunID))
		return
	}
	b, version, err := rs.Artifacts.Artifact(stage)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if version == 0 {
		writeError(w, http.StatusNotFound, fmt.Sprintf("stage %s has produced no artifact", stage))
		return
	}
	w.Header().Set("X-Artifact-Version", strconv.Itoa(version))
	if d := rs.Artifacts.ArtifactDigest(stage); d != "" {
		w.Header().Set("X-Artifact-Digest", d)
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(b)
}

func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	rs, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	rs.Cancel(fmt.Errorf("cancelled via HTTP API"))
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelling"})
}

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeError(w, http.StatusNotFound, "archive not configured")
		return
	}
	entries, err := s.archive.List(r.Context(), 50)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) lookupRun(w http.ResponseWriter, r *http.Request) (*RunState, bool) {
	runID := r.PathValue("id")
	if runID == "" {
		writeError(w, http.StatusBadRequest, "run_id is required")
		return nil, false
	}
	rs, ok := s.registry.Get(runID)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("run %s not found", runID))
		return nil, false
	}
	return rs, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
