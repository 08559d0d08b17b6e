package rest

import (
	"net/http"
	"path/filepath"

	"go.uber.org/zap"
)

type readyEntry struct {
	Path string `json:"path"`
	Name string `json:"name"`
}

type statusResponse struct {
	SourceDir string       `json:"source_dir"`
	TargetDir string       `json:"target_dir"`
	Counts    countsJSON   `json:"counts"`
	Processed int          `json:"processed"`
	Total     int          `json:"total"`
	Ready     []readyEntry `json:"ready"`
}

// countsJSON mirrors ports.JobCounts with the lowercase JSON keys the
// original status payload used.
type countsJSON struct {
	Queued    int `json:"queued"`
	Analyzing int `json:"analyzing"`
	Ready     int `json:"ready"`
	Accepted  int `json:"accepted"`
	Moving    int `json:"moving"`
	Skipped   int `json:"skipped"`
	Completed int `json:"completed"`
	Error     int `json:"error"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	counts, err := s.store.Counts(ctx)
	if err != nil {
		s.logger.Error("status: counts failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read job counts")
		return
	}
	readyJobs, err := s.store.FetchReady(ctx)
	if err != nil {
		s.logger.Error("status: fetch ready failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read ready jobs")
		return
	}

	ready := make([]readyEntry, 0, len(readyJobs))
	for _, j := range readyJobs {
		ready = append(ready, readyEntry{Path: j.FolderPath, Name: filepath.Base(j.FolderPath)})
	}

	stats := s.tracker.Snapshot()
	writeJSON(w, http.StatusOK, statusResponse{
		SourceDir: s.SourceDir(),
		TargetDir: s.mover.TargetDir(),
		Counts: countsJSON{
			Queued:    counts.Queued,
			Analyzing: counts.Analyzing,
			Ready:     counts.Ready,
			Accepted:  counts.Accepted,
			Moving:    counts.Moving,
			Skipped:   counts.Skipped,
			Completed: counts.Completed,
			Error:     counts.Error,
		},
		Processed: stats.TotalProcessed,
		Total:     topLevelEntryCount(s.SourceDir()),
		Ready:     ready,
	})
}
