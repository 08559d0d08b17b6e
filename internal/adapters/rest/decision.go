package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/ewilliams-labs/soundsorter/internal/core/domain"
)

// anyStatus is every status a job can hold, used to look a folder's job
// up regardless of its current status so a decision rejected for being
// in the wrong state can be reported as an InvalidTransitionError rather
// than a bare "not found".
var anyStatus = []domain.Status{
	domain.StatusQueued, domain.StatusAnalyzing, domain.StatusReady,
	domain.StatusAccepted, domain.StatusMoving, domain.StatusSkipped,
	domain.StatusCompleted, domain.StatusError,
}

// rejectWrongState looks up folderPath's job regardless of status. If
// one exists but isn't in a state the requested decision permits, it
// logs an InvalidTransitionError and responds 409; if no job exists for
// the folder at all, it responds 404.
func (s *Server) rejectWrongState(w http.ResponseWriter, ctx context.Context, folderPath string, want domain.Status) {
	job, err := s.store.FindLatestByFolder(ctx, folderPath, anyStatus)
	if err != nil {
		s.logger.Error("decision: lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to look up folder")
		return
	}
	if job == nil {
		writeError(w, http.StatusNotFound, "no job for path")
		return
	}
	if domain.CanTransition(job.Status, want) {
		// Legal edge but FindLatestByFolder missed it (a race with another
		// request); nothing for the caller to fix by retrying with a
		// different action, so report it the same as "not found".
		writeError(w, http.StatusNotFound, "no job for path")
		return
	}
	ite := &domain.InvalidTransitionError{JobID: job.ID, From: job.Status, To: want}
	s.logger.Warn("decision rejected", zap.Int64("job_id", job.ID), zap.Error(ite))
	writeError(w, http.StatusConflict, ite.Error())
}

type decisionRequest struct {
	Path               string          `json:"path"`
	Action             string          `json:"action"`
	Proposal           json.RawMessage `json:"proposal"`
	Feedback           string          `json:"feedback"`
	UserClassification string          `json:"user_classification"`
}

// handleDecision applies a human decision to a ready job: accept it
// (optionally with an edited proposal), send it back for reconsideration
// with feedback, or skip it entirely.
func (s *Server) handleDecision(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	switch req.Action {
	case "accept":
		s.decisionAccept(w, r, req)
	case "reconsider":
		s.decisionReconsider(w, r, req)
	case "skip":
		s.decisionSkip(w, r, req)
	default:
		writeError(w, http.StatusBadRequest, "invalid action")
	}
}

func (s *Server) decisionAccept(w http.ResponseWriter, r *http.Request, req decisionRequest) {
	if len(req.Proposal) == 0 {
		writeError(w, http.StatusBadRequest, "proposal required for accept")
		return
	}
	var proposal domain.Proposal
	if err := json.Unmarshal(req.Proposal, &proposal); err != nil {
		writeError(w, http.StatusBadRequest, "invalid proposal")
		return
	}
	if err := proposal.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := s.store.FindLatestByFolder(r.Context(), req.Path, []domain.Status{domain.StatusReady})
	if err != nil {
		s.logger.Error("decision accept: lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to look up folder")
		return
	}
	if job == nil {
		s.rejectWrongState(w, r.Context(), req.Path, domain.StatusAccepted)
		return
	}

	resultJSON, err := json.Marshal(proposal)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to encode proposal")
		return
	}
	if err := s.store.Accept(r.Context(), job.ID, string(resultJSON)); err != nil {
		s.logger.Error("decision accept: accept failed", zap.Int64("job_id", job.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to accept proposal")
		return
	}
	s.tracker.IncrementProcessed()
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) decisionSkip(w http.ResponseWriter, r *http.Request, req decisionRequest) {
	job, err := s.store.FindLatestByFolder(r.Context(), req.Path, []domain.Status{domain.StatusReady})
	if err != nil {
		s.logger.Error("decision skip: lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to look up folder")
		return
	}
	if job == nil {
		s.rejectWrongState(w, r.Context(), req.Path, domain.StatusSkipped)
		return
	}
	if err := s.store.Skip(r.Context(), job.ID); err != nil {
		s.logger.Error("decision skip: skip failed", zap.Int64("job_id", job.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to skip folder")
		return
	}
	s.tracker.IncrementProcessed()
	s.tracker.IncrementSkipped()
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// reconsiderLookupStatuses are the statuses a folder can be reconsidered
// from: normally ready, but also mid-flight states a stuck UI might retry.
var reconsiderLookupStatuses = []domain.Status{
	domain.StatusReady, domain.StatusAccepted, domain.StatusAnalyzing,
	domain.StatusQueued, domain.StatusError,
}

func (s *Server) decisionReconsider(w http.ResponseWriter, r *http.Request, req decisionRequest) {
	target := req.Path
	if req.UserClassification == "multi_disc_album" {
		target = filepath.Dir(req.Path)
	}

	job, err := s.store.FindLatestByFolder(r.Context(), target, reconsiderLookupStatuses)
	if err != nil {
		s.logger.Error("decision reconsider: lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to look up folder")
		return
	}

	if job != nil {
		if err := s.store.RequeueForReconsideration(r.Context(), job.ID, req.Feedback, job.ArtistHint); err != nil {
			s.logger.Error("decision reconsider: requeue failed", zap.Int64("job_id", job.ID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to requeue folder")
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
		return
	}

	if _, err := s.store.Enqueue(r.Context(), domain.Job{
		FolderPath:   target,
		JobType:      domain.JobTypeAnalyze,
		UserFeedback: req.Feedback,
	}); err != nil {
		s.logger.Error("decision reconsider: enqueue failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to enqueue folder")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
