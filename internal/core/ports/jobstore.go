// Package ports defines the interfaces the core services depend on:
// durable job storage, the LLM oracle, and tag reading.
package ports

import (
	"context"
	"time"

	"github.com/ewilliams-labs/soundsorter/internal/core/domain"
)

// JobCounts is a snapshot of how many jobs sit in each status, used by the
// control plane's status, events and debug endpoints.
type JobCounts struct {
	Queued    int
	Analyzing int
	Ready     int
	Accepted  int
	Moving    int
	Skipped   int
	Completed int
	Error     int
}

// Total reports the count across every status.
func (c JobCounts) Total() int {
	return c.Queued + c.Analyzing + c.Ready + c.Accepted + c.Moving + c.Skipped + c.Completed + c.Error
}

// JobStore is the durable queue the Scanner, Classifier and FileMover read
// from and write to. Every mutating method is expected to be safe for
// concurrent use by multiple worker goroutines.
type JobStore interface {
	// Enqueue inserts a new job in StatusQueued. If a non-scan job already
	// exists for the same folder path, implementations may choose to skip
	// the insert; callers should check HasAnyForFolder first when that
	// matters.
	Enqueue(ctx context.Context, job domain.Job) (int64, error)

	// HasAnyForFolder reports whether any job (of any status) already
	// references the given folder path, used to avoid re-enqueueing a
	// folder the Scanner has already visited.
	HasAnyForFolder(ctx context.Context, folderPath string) (bool, error)

	// ClaimQueuedForAnalysis atomically selects a StatusQueued job (scan
	// jobs ahead of any other type, then oldest first) and moves it to
	// StatusAnalyzing, returning nil with no error if the queue is empty.
	ClaimQueuedForAnalysis(ctx context.Context) (*domain.Job, error)

	// ClaimAcceptedForMove atomically selects the oldest StatusAccepted job
	// and moves it to StatusMoving, returning nil with no error if there is
	// nothing to move.
	ClaimAcceptedForMove(ctx context.Context) (*domain.Job, error)

	// CompleteAnalysis records the outcome of an analyze job: resultJSON
	// and StatusReady on success, or errMsg and StatusError on failure.
	CompleteAnalysis(ctx context.Context, jobID int64, resultJSON string, errMsg string) error

	// CompleteMove records the outcome of a move job: StatusCompleted on
	// success, or errMsg and StatusError on failure.
	CompleteMove(ctx context.Context, jobID int64, errMsg string) error

	// CompleteScan records the outcome of a scan job: StatusCompleted on
	// success, or errMsg and StatusError on failure. A scan job never
	// produces a result and never passes through StatusReady.
	CompleteScan(ctx context.Context, jobID int64, errMsg string) error

	// Accept transitions a StatusReady job to StatusAccepted, optionally
	// overwriting its stored result with an edited proposal.
	Accept(ctx context.Context, jobID int64, resultJSON string) error

	// Skip transitions a StatusReady job to StatusSkipped.
	Skip(ctx context.Context, jobID int64) error

	// RequeueForReconsideration moves a StatusReady job back to
	// StatusQueued, attaching feedback and/or an artist hint that the next
	// analysis pass should take into account.
	RequeueForReconsideration(ctx context.Context, jobID int64, feedback, artistHint string) error

	// GetByID fetches a single job by its id.
	GetByID(ctx context.Context, jobID int64) (*domain.Job, error)

	// FetchReady returns every job currently in StatusReady, most recently
	// completed first.
	FetchReady(ctx context.Context) ([]domain.Job, error)

	// RecentJobs returns the most recently updated jobs, newest first,
	// bounded by limit, for the debug/introspection endpoint.
	RecentJobs(ctx context.Context, limit int) ([]domain.Job, error)

	// Counts returns a snapshot of job counts per status.
	Counts(ctx context.Context) (JobCounts, error)

	// ResetStaleAnalyzing moves any StatusAnalyzing job whose StartedAt is
	// older than maxAge back to StatusQueued, returning how many rows were
	// reset. Guards against a crashed worker leaving a job stuck forever.
	ResetStaleAnalyzing(ctx context.Context, maxAge time.Duration) (int, error)

	// DeleteJob permanently removes a job row, used when a folder is no
	// longer reachable or a stale job needs to be cleared.
	DeleteJob(ctx context.Context, jobID int64) error

	// FindLatestByFolder returns the most recently updated job for
	// folderPath whose status is one of statuses, or nil if none match.
	// Used by the control plane to resolve a folder path into a job id
	// before a decision (accept/skip/reconsider).
	FindLatestByFolder(ctx context.Context, folderPath string, statuses []domain.Status) (*domain.Job, error)
}
