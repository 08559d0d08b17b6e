package rest

import (
	"net/http"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"
)

// handleReady lists folders currently ready for a human decision.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	jobs, err := s.store.FetchReady(r.Context())
	if err != nil {
		s.logger.Error("ready: fetch ready failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read ready jobs")
		return
	}
	if len(jobs) > limit {
		jobs = jobs[:limit]
	}

	out := make([]readyEntry, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, readyEntry{Path: j.FolderPath, Name: filepath.Base(j.FolderPath)})
	}
	writeJSON(w, http.StatusOK, out)
}
