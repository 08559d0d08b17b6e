package rest

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/ewilliams-labs/soundsorter/internal/core/domain"
)

type pathsPair struct {
	SourceDir string `json:"source_dir"`
	TargetDir string `json:"target_dir"`
}

type pathsResponse struct {
	Current pathsPair `json:"current"`
	Staged  pathsPair `json:"staged"`
}

func (s *Server) handleGetPaths(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	staged := pathsPair{SourceDir: s.stagedSource, TargetDir: s.stagedTarget}
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, pathsResponse{
		Current: pathsPair{SourceDir: s.SourceDir(), TargetDir: s.mover.TargetDir()},
		Staged:  staged,
	})
}

type postPathsRequest struct {
	SourceDir string `json:"source_dir"`
	TargetDir string `json:"target_dir"`
	Action    string `json:"action"`
}

// handlePostPaths stages, cancels, or confirms a source/target directory
// change. Confirming applies the staged paths and kicks off a fresh scan
// of the new source.
func (s *Server) handlePostPaths(w http.ResponseWriter, r *http.Request) {
	var req postPathsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	action := req.Action
	if action == "" {
		action = "stage"
	}

	switch action {
	case "stage":
		s.mu.Lock()
		if req.SourceDir != "" {
			s.stagedSource = req.SourceDir
		}
		if req.TargetDir != "" {
			s.stagedTarget = req.TargetDir
		}
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})

	case "cancel":
		s.mu.Lock()
		s.stagedSource = ""
		s.stagedTarget = ""
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})

	case "confirm":
		s.mu.Lock()
		newSource := s.stagedSource
		newTarget := s.stagedTarget
		if newSource == "" {
			newSource = s.sourceDir
		}
		if newTarget == "" {
			newTarget = s.mover.TargetDir()
		}
		s.stagedSource = ""
		s.stagedTarget = ""
		s.mu.Unlock()

		s.setSourceDir(newSource)
		s.mover.SetTargetDir(newTarget)
		if s.pool != nil {
			s.pool.SetSourceDir(newSource)
		}

		if _, err := s.store.Enqueue(r.Context(), domain.Job{FolderPath: newSource, JobType: domain.JobTypeScan}); err != nil {
			s.logger.Warn("enqueue rescan after confirm failed", zap.Error(err))
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})

	default:
		writeError(w, http.StatusBadRequest, "invalid action")
	}
}
