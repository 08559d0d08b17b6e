package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ewilliams-labs/soundsorter/internal/core/domain"
)

func newTestAdapter(t *testing.T) *Adapter {
	t.Helper()
	a, err := NewAdapter(":memory:")
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestAdapter_EnqueueAndClaim(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	id, err := a.Enqueue(ctx, domain.Job{FolderPath: "/music/Weezer/Raditude", JobType: domain.JobTypeAnalyze})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if id == 0 {
		t.Fatalf("expected non-zero job id")
	}

	job, err := a.ClaimQueuedForAnalysis(ctx)
	if err != nil {
		t.Fatalf("claim queued: %v", err)
	}
	if job == nil {
		t.Fatalf("expected a claimed job, got nil")
	}
	if job.Status != domain.StatusAnalyzing {
		t.Fatalf("expected status analyzing, got %s", job.Status)
	}
	if job.StartedAt == nil {
		t.Fatalf("expected started_at to be stamped")
	}

	again, err := a.ClaimQueuedForAnalysis(ctx)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if again != nil {
		t.Fatalf("expected no job left to claim, got %+v", again)
	}
}

func TestAdapter_AnalysisToAcceptToMoveLifecycle(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	id, err := a.Enqueue(ctx, domain.Job{FolderPath: "/music/Weezer/Raditude", JobType: domain.JobTypeAnalyze})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := a.ClaimQueuedForAnalysis(ctx); err != nil {
		t.Fatalf("claim: %v", err)
	}

	result := `{"artist":"Weezer","album":"Raditude","year":"2009","release_type":"Album"}`
	if err := a.CompleteAnalysis(ctx, id, result, ""); err != nil {
		t.Fatalf("complete analysis: %v", err)
	}

	ready, err := a.FetchReady(ctx)
	if err != nil {
		t.Fatalf("fetch ready: %v", err)
	}
	if len(ready) != 1 || ready[0].ID != id {
		t.Fatalf("expected job %d in ready list, got %+v", id, ready)
	}

	if err := a.Accept(ctx, id, ""); err != nil {
		t.Fatalf("accept: %v", err)
	}

	moveJob, err := a.ClaimAcceptedForMove(ctx)
	if err != nil {
		t.Fatalf("claim accepted for move: %v", err)
	}
	if moveJob == nil || moveJob.ID != id {
		t.Fatalf("expected to claim job %d for move, got %+v", id, moveJob)
	}
	if moveJob.Status != domain.StatusMoving {
		t.Fatalf("expected status moving, got %s", moveJob.Status)
	}

	if err := a.CompleteMove(ctx, id, ""); err != nil {
		t.Fatalf("complete move: %v", err)
	}

	final, err := a.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if final.Status != domain.StatusCompleted {
		t.Fatalf("expected status completed, got %s", final.Status)
	}
}

func TestAdapter_SkipAndReconsider(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	id, _ := a.Enqueue(ctx, domain.Job{FolderPath: "/music/Unknown Artist/Boxset"})
	if _, err := a.ClaimQueuedForAnalysis(ctx); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := a.CompleteAnalysis(ctx, id, `{"artist":"?","album":"?","year":"?","release_type":"Album"}`, ""); err != nil {
		t.Fatalf("complete analysis: %v", err)
	}

	if err := a.RequeueForReconsideration(ctx, id, "it's actually a box set", "The Mystery Band"); err != nil {
		t.Fatalf("requeue: %v", err)
	}
	job, err := a.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if job.Status != domain.StatusQueued {
		t.Fatalf("expected status queued after reconsideration, got %s", job.Status)
	}
	if job.UserFeedback != "it's actually a box set" {
		t.Fatalf("expected feedback to persist, got %q", job.UserFeedback)
	}
	if job.ArtistHint != "The Mystery Band" {
		t.Fatalf("expected artist hint to persist, got %q", job.ArtistHint)
	}

	if _, err := a.ClaimQueuedForAnalysis(ctx); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := a.CompleteAnalysis(ctx, id, `{"artist":"The Mystery Band","album":"Boxset","year":"2001","release_type":"Compilation"}`, ""); err != nil {
		t.Fatalf("complete analysis: %v", err)
	}
	if err := a.Skip(ctx, id); err != nil {
		t.Fatalf("skip: %v", err)
	}
	job, err = a.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if job.Status != domain.StatusSkipped {
		t.Fatalf("expected status skipped, got %s", job.Status)
	}
}

func TestAdapter_ResetStaleAnalyzing(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	id, _ := a.Enqueue(ctx, domain.Job{FolderPath: "/music/Stuck/Forever"})
	if _, err := a.ClaimQueuedForAnalysis(ctx); err != nil {
		t.Fatalf("claim: %v", err)
	}
	// back-date started_at so it looks orphaned
	if _, err := a.db.ExecContext(ctx,
		"UPDATE jobs SET started_at=datetime('now', '-1 hour') WHERE id=?", id); err != nil {
		t.Fatalf("back-date: %v", err)
	}

	n, err := a.ResetStaleAnalyzing(ctx, 5*time.Minute)
	if err != nil {
		t.Fatalf("reset stale: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 row reset, got %d", n)
	}

	job, err := a.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if job.Status != domain.StatusQueued {
		t.Fatalf("expected status queued after stale reset, got %s", job.Status)
	}
	if job.StartedAt != nil {
		t.Fatalf("expected started_at to be cleared")
	}
}

func TestAdapter_GetByID_NotFound(t *testing.T) {
	a := newTestAdapter(t)
	_, err := a.GetByID(context.Background(), 999)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAdapter_Counts(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	a.Enqueue(ctx, domain.Job{FolderPath: "/a"})
	a.Enqueue(ctx, domain.Job{FolderPath: "/b"})
	if _, err := a.ClaimQueuedForAnalysis(ctx); err != nil {
		t.Fatalf("claim: %v", err)
	}

	counts, err := a.Counts(ctx)
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if counts.Queued != 1 {
		t.Fatalf("expected 1 queued, got %d", counts.Queued)
	}
	if counts.Analyzing != 1 {
		t.Fatalf("expected 1 analyzing, got %d", counts.Analyzing)
	}
	if counts.Total() != 2 {
		t.Fatalf("expected total 2, got %d", counts.Total())
	}
}

func TestAdapter_FindLatestByFolder(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	id, _ := a.Enqueue(ctx, domain.Job{FolderPath: "/music/Weezer/Raditude"})
	if _, err := a.ClaimQueuedForAnalysis(ctx); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := a.CompleteAnalysis(ctx, id, `{"artist":"Weezer","album":"Raditude","year":"2009","release_type":"Album"}`, ""); err != nil {
		t.Fatalf("complete analysis: %v", err)
	}

	job, err := a.FindLatestByFolder(ctx, "/music/Weezer/Raditude", []domain.Status{domain.StatusReady})
	if err != nil {
		t.Fatalf("find latest by folder: %v", err)
	}
	if job == nil || job.ID != id {
		t.Fatalf("expected to find job %d, got %+v", id, job)
	}

	none, err := a.FindLatestByFolder(ctx, "/music/Weezer/Raditude", []domain.Status{domain.StatusAccepted})
	if err != nil {
		t.Fatalf("find latest by folder: %v", err)
	}
	if none != nil {
		t.Fatalf("expected no match for accepted status, got %+v", none)
	}
}

func TestAdapter_HasAnyForFolder(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	got, err := a.HasAnyForFolder(context.Background(), "/music/nowhere")
	if err != nil {
		t.Fatalf("has any: %v", err)
	}
	if got {
		t.Fatalf("expected false for unseen folder")
	}

	a.Enqueue(ctx, domain.Job{FolderPath: "/music/nowhere"})
	got, err = a.HasAnyForFolder(ctx, "/music/nowhere")
	if err != nil {
		t.Fatalf("has any: %v", err)
	}
	if !got {
		t.Fatalf("expected true after enqueue")
	}
}

func TestAdapter_ClaimQueuedForAnalysis_ScanBeforeAnalyze(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	if _, err := a.Enqueue(ctx, domain.Job{FolderPath: "/music/older-analyze", JobType: domain.JobTypeAnalyze}); err != nil {
		t.Fatalf("enqueue analyze: %v", err)
	}
	scanID, err := a.Enqueue(ctx, domain.Job{FolderPath: "/music", JobType: domain.JobTypeScan})
	if err != nil {
		t.Fatalf("enqueue scan: %v", err)
	}

	job, err := a.ClaimQueuedForAnalysis(ctx)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if job == nil || job.ID != scanID {
		t.Fatalf("expected the scan job (inserted second) to be claimed first, got %+v", job)
	}
	if job.JobType != domain.JobTypeScan {
		t.Fatalf("expected job_type scan, got %s", job.JobType)
	}
}

func TestAdapter_CompleteScan(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	id, err := a.Enqueue(ctx, domain.Job{FolderPath: "/music", JobType: domain.JobTypeScan})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := a.ClaimQueuedForAnalysis(ctx); err != nil {
		t.Fatalf("claim: %v", err)
	}

	if err := a.CompleteScan(ctx, id, ""); err != nil {
		t.Fatalf("complete scan: %v", err)
	}
	job, err := a.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if job.Status != domain.StatusCompleted {
		t.Fatalf("expected completed, got %s", job.Status)
	}
	if job.CompletedAt == nil {
		t.Fatalf("expected completed_at to be stamped")
	}
}

func TestAdapter_CompleteScan_Error(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	id, err := a.Enqueue(ctx, domain.Job{FolderPath: "/music", JobType: domain.JobTypeScan})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := a.ClaimQueuedForAnalysis(ctx); err != nil {
		t.Fatalf("claim: %v", err)
	}

	if err := a.CompleteScan(ctx, id, "permission denied"); err != nil {
		t.Fatalf("complete scan: %v", err)
	}
	job, err := a.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if job.Status != domain.StatusError {
		t.Fatalf("expected error status, got %s", job.Status)
	}
	if job.Error != "permission denied" {
		t.Fatalf("expected error message recorded, got %q", job.Error)
	}
}

func TestNewAdapter_OpenFailureWrapsErrStoreUnavailable(t *testing.T) {
	_, err := NewAdapter("/nonexistent-directory/does-not-exist.db")
	if err == nil {
		t.Fatalf("expected an error opening a db under a missing directory")
	}
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected error to wrap domain.ErrStoreUnavailable, got %v", err)
	}
}
