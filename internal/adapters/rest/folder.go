package rest

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ewilliams-labs/soundsorter/internal/core/domain"
	"github.com/ewilliams-labs/soundsorter/internal/core/services/shape"
)

// resultStatuses are the statuses a folder can carry a usable proposal
// under: still awaiting a decision, already decided, or already moved.
var resultStatuses = []domain.Status{
	domain.StatusReady,
	domain.StatusAccepted,
	domain.StatusMoving,
	domain.StatusCompleted,
}

type folderResponse struct {
	Metadata domain.FolderSummary `json:"metadata"`
	Proposal domain.Proposal      `json:"proposal"`
}

// handleFolder returns the aggregated metadata and current proposal for
// ?path=, used by the review UI before a decision is made.
func (s *Server) handleFolder(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	job, err := s.store.FindLatestByFolder(r.Context(), path, resultStatuses)
	if err != nil {
		s.logger.Error("folder: find latest by folder failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to look up folder")
		return
	}
	if job == nil || job.ResultJSON == "" {
		writeError(w, http.StatusNotFound, "no completed proposal for path")
		return
	}
	proposal, err := domain.ParseProposal(job.ResultJSON)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "stored proposal is malformed")
		return
	}

	folderShape, err := shape.Build(path)
	if err != nil {
		writeError(w, http.StatusNotFound, "path not found")
		return
	}
	files, err := shape.MusicFiles(path)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	var tags []domain.FileTags
	for _, f := range files {
		t, err := s.tagReader.ReadFile(f)
		if err != nil {
			continue
		}
		tags = append(tags, t)
	}
	summary := s.tagReader.AggregateFolder(folderShape, tags)

	writeJSON(w, http.StatusOK, folderResponse{Metadata: summary, Proposal: proposal})
}
