package rest

import (
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ewilliams-labs/soundsorter/internal/core/domain"
)

type debugJob struct {
	ID         int64  `json:"id"`
	FolderPath string `json:"folder_path"`
	JobType    string `json:"job_type"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

type debugResponse struct {
	Counts countsJSON `json:"counts"`
	Recent []debugJob `json:"recent"`
}

// handleDebugJobs returns the most recent jobs, optionally filtered to a
// comma-separated list of statuses, for operator troubleshooting.
func (s *Server) handleDebugJobs(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	var wanted map[domain.Status]bool
	if raw := r.URL.Query().Get("statuses"); raw != "" {
		wanted = make(map[domain.Status]bool)
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				wanted[domain.Status(part)] = true
			}
		}
	}

	counts, err := s.store.Counts(r.Context())
	if err != nil {
		s.logger.Error("debug: counts failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read counts")
		return
	}

	jobs, err := s.store.RecentJobs(r.Context(), limit)
	if err != nil {
		s.logger.Error("debug: recent jobs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read recent jobs")
		return
	}

	recent := make([]debugJob, 0, len(jobs))
	for _, j := range jobs {
		if wanted != nil && !wanted[j.Status] {
			continue
		}
		recent = append(recent, debugJob{
			ID:         j.ID,
			FolderPath: j.FolderPath,
			JobType:    string(j.JobType),
			Status:     string(j.Status),
			Error:      j.Error,
			CreatedAt:  j.CreatedAt.Format(timeFormat),
			UpdatedAt:  j.UpdatedAt.Format(timeFormat),
		})
	}

	writeJSON(w, http.StatusOK, debugResponse{
		Counts: countsJSON{
			Queued: counts.Queued, Analyzing: counts.Analyzing, Ready: counts.Ready,
			Accepted: counts.Accepted, Moving: counts.Moving, Skipped: counts.Skipped,
			Completed: counts.Completed, Error: counts.Error,
		},
		Recent: recent,
	})
}
