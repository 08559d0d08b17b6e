// Package sqlite provides a SQLite-backed implementation of the JobStore
// port: a durable, process-crash-safe queue for scan, analyze, and move
// jobs.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ewilliams-labs/soundsorter/internal/core/domain"
	"github.com/ewilliams-labs/soundsorter/internal/core/ports"
	_ "github.com/mattn/go-sqlite3" // import the driver anonymously
)

// Adapter implements ports.JobStore for SQLite.
type Adapter struct {
	db *sql.DB
}

// NewAdapter opens storagePath, enables WAL journaling, and runs the
// schema migration. storagePath may be ":memory:" for tests.
func NewAdapter(storagePath string) (*Adapter, error) {
	dsn := storagePath
	if !strings.Contains(dsn, "?") {
		dsn += "?_txlock=immediate"
	} else {
		dsn += "&_txlock=immediate"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w: %w", storagePath, domain.ErrStoreUnavailable, err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: enable WAL: %w: %w", domain.ErrStoreUnavailable, err)
	}
	if _, err := db.Exec("PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: set synchronous: %w: %w", domain.ErrStoreUnavailable, err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=30000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: set busy_timeout: %w: %w", domain.ErrStoreUnavailable, err)
	}

	// :memory: can't share WAL state across connections; a single
	// connection keeps the in-process test DB coherent.
	if storagePath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w: %w", domain.ErrStoreUnavailable, err)
	}

	a := &Adapter{db: db}
	if err := a.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}
	return a, nil
}

// Close releases the underlying database handle.
func (a *Adapter) Close() error {
	return a.db.Close()
}

func (a *Adapter) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS jobs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		folder_path TEXT NOT NULL,
		metadata_json TEXT NOT NULL DEFAULT '{}',
		user_feedback TEXT,
		artist_hint TEXT,
		status TEXT NOT NULL DEFAULT 'queued',
		job_type TEXT NOT NULL DEFAULT 'analyze',
		error TEXT,
		result_json TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		started_at DATETIME,
		completed_at DATETIME
	);
	CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
	CREATE INDEX IF NOT EXISTS idx_jobs_folder ON jobs(folder_path);
	CREATE INDEX IF NOT EXISTS idx_jobs_type ON jobs(job_type);
	`
	if _, err := a.db.Exec(schema); err != nil {
		return err
	}

	// One-time forward migration of pre-existing rows written under the
	// historical status set. "completed" meant what is now "ready" under
	// that scheme; it is rewritten here, before this package (or domain.
	// NormalizeStatus) ever has to reason about the collision with the
	// current StatusCompleted value.
	legacy := []string{
		"UPDATE jobs SET status='analyzing' WHERE status='in_progress';",
		"UPDATE jobs SET status='ready' WHERE status='completed' AND result_json IS NOT NULL AND completed_at IS NULL;",
		"UPDATE jobs SET status='error' WHERE status='failed';",
		"UPDATE jobs SET status='ready' WHERE status='approved';",
	}
	for _, stmt := range legacy {
		if _, err := a.db.Exec(stmt); err != nil {
			return fmt.Errorf("legacy status migration: %w", err)
		}
	}

	return nil
}

func isDuplicateColumnError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "duplicate column") || strings.Contains(err.Error(), "already exists"))
}

const jobColumns = "id, folder_path, metadata_json, user_feedback, artist_hint, status, job_type, error, result_json, created_at, updated_at, started_at, completed_at"

func scanJob(row interface{ Scan(...any) error }) (domain.Job, error) {
	var j domain.Job
	var userFeedback, artistHint, errMsg, resultJSON sql.NullString
	var startedAt, completedAt sql.NullTime

	if err := row.Scan(
		&j.ID, &j.FolderPath, &j.MetadataJSON, &userFeedback, &artistHint,
		&j.Status, &j.JobType, &errMsg, &resultJSON,
		&j.CreatedAt, &j.UpdatedAt, &startedAt, &completedAt,
	); err != nil {
		return domain.Job{}, err
	}

	j.Status = domain.NormalizeStatus(j.Status)
	if userFeedback.Valid {
		j.UserFeedback = userFeedback.String
	}
	if artistHint.Valid {
		j.ArtistHint = artistHint.String
	}
	if errMsg.Valid {
		j.Error = errMsg.String
	}
	if resultJSON.Valid {
		j.ResultJSON = resultJSON.String
	}
	if startedAt.Valid {
		t := startedAt.Time
		j.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		j.CompletedAt = &t
	}
	return j, nil
}

// Enqueue inserts a new job in StatusQueued.
func (a *Adapter) Enqueue(ctx context.Context, job domain.Job) (int64, error) {
	if job.MetadataJSON == "" {
		job.MetadataJSON = "{}"
	}
	if job.JobType == "" {
		job.JobType = domain.JobTypeAnalyze
	}
	res, err := a.db.ExecContext(ctx,
		`INSERT INTO jobs(folder_path, metadata_json, user_feedback, artist_hint, job_type, status)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		job.FolderPath, job.MetadataJSON, nullableString(job.UserFeedback), nullableString(job.ArtistHint),
		job.JobType, domain.StatusQueued,
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: enqueue: %w", err)
	}
	return res.LastInsertId()
}

// HasAnyForFolder reports whether any job already references folderPath.
func (a *Adapter) HasAnyForFolder(ctx context.Context, folderPath string) (bool, error) {
	row := a.db.QueryRowContext(ctx, "SELECT 1 FROM jobs WHERE folder_path=? LIMIT 1", folderPath)
	var one int
	if err := row.Scan(&one); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("sqlite: has any for folder: %w", err)
	}
	return true, nil
}

// claimOne atomically selects and transitions one job. The connection's
// _txlock=immediate DSN option makes BeginTx issue BEGIN IMMEDIATE rather
// than SQLite's default deferred BEGIN, taking the write lock up front so
// two workers racing to claim the same job never both see it as available.
func (a *Adapter) claimOne(ctx context.Context, fromStatus, toStatus domain.Status, stampStarted bool) (*domain.Job, error) {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: begin claim: %w", err)
	}
	defer tx.Rollback()

	// Scan jobs unblock the whole pipeline for a folder tree, so the
	// queued->analyzing claim prioritizes them ahead of any analyze job,
	// regardless of enqueue order.
	orderClause := "ORDER BY id LIMIT 1"
	if fromStatus == domain.StatusQueued {
		orderClause = "ORDER BY CASE WHEN job_type='scan' THEN 0 ELSE 1 END, id LIMIT 1"
	}
	row := tx.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM jobs WHERE status=? %s", jobColumns, orderClause),
		fromStatus,
	)
	job, err := scanJob(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, tx.Commit()
		}
		return nil, fmt.Errorf("sqlite: claim scan: %w", err)
	}

	if stampStarted {
		_, err = tx.ExecContext(ctx,
			"UPDATE jobs SET status=?, started_at=CURRENT_TIMESTAMP, updated_at=CURRENT_TIMESTAMP WHERE id=?",
			toStatus, job.ID)
	} else {
		_, err = tx.ExecContext(ctx,
			"UPDATE jobs SET status=?, updated_at=CURRENT_TIMESTAMP WHERE id=?",
			toStatus, job.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: claim update: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite: claim commit: %w", err)
	}

	job.Status = toStatus
	return &job, nil
}

// ClaimQueuedForAnalysis atomically moves a queued job to analyzing: scan
// jobs first, then the oldest by id.
func (a *Adapter) ClaimQueuedForAnalysis(ctx context.Context) (*domain.Job, error) {
	return a.claimOne(ctx, domain.StatusQueued, domain.StatusAnalyzing, true)
}

// ClaimAcceptedForMove atomically moves the oldest accepted job to moving.
func (a *Adapter) ClaimAcceptedForMove(ctx context.Context) (*domain.Job, error) {
	return a.claimOne(ctx, domain.StatusAccepted, domain.StatusMoving, false)
}

// CompleteAnalysis records the outcome of an analyze job.
func (a *Adapter) CompleteAnalysis(ctx context.Context, jobID int64, resultJSON string, errMsg string) error {
	if errMsg != "" {
		_, err := a.db.ExecContext(ctx,
			"UPDATE jobs SET status=?, error=?, updated_at=CURRENT_TIMESTAMP WHERE id=?",
			domain.StatusError, errMsg, jobID)
		if err != nil {
			return fmt.Errorf("sqlite: complete analysis (error): %w", err)
		}
		return nil
	}
	_, err := a.db.ExecContext(ctx,
		"UPDATE jobs SET status=?, result_json=?, completed_at=CURRENT_TIMESTAMP, updated_at=CURRENT_TIMESTAMP WHERE id=?",
		domain.StatusReady, resultJSON, jobID)
	if err != nil {
		return fmt.Errorf("sqlite: complete analysis: %w", err)
	}
	return nil
}

// CompleteMove records the outcome of a move job.
func (a *Adapter) CompleteMove(ctx context.Context, jobID int64, errMsg string) error {
	if errMsg != "" {
		_, err := a.db.ExecContext(ctx,
			"UPDATE jobs SET status=?, error=?, updated_at=CURRENT_TIMESTAMP WHERE id=?",
			domain.StatusError, errMsg, jobID)
		if err != nil {
			return fmt.Errorf("sqlite: complete move (error): %w", err)
		}
		return nil
	}
	_, err := a.db.ExecContext(ctx,
		"UPDATE jobs SET status=?, completed_at=CURRENT_TIMESTAMP, updated_at=CURRENT_TIMESTAMP WHERE id=?",
		domain.StatusCompleted, jobID)
	if err != nil {
		return fmt.Errorf("sqlite: complete move: %w", err)
	}
	return nil
}

// CompleteScan records the outcome of a scan job. Scan jobs never produce
// a result_json and never pass through ready; they move straight from
// analyzing to completed or error.
func (a *Adapter) CompleteScan(ctx context.Context, jobID int64, errMsg string) error {
	if errMsg != "" {
		_, err := a.db.ExecContext(ctx,
			"UPDATE jobs SET status=?, error=?, updated_at=CURRENT_TIMESTAMP WHERE id=?",
			domain.StatusError, errMsg, jobID)
		if err != nil {
			return fmt.Errorf("sqlite: complete scan (error): %w", err)
		}
		return nil
	}
	_, err := a.db.ExecContext(ctx,
		"UPDATE jobs SET status=?, completed_at=CURRENT_TIMESTAMP, updated_at=CURRENT_TIMESTAMP WHERE id=?",
		domain.StatusCompleted, jobID)
	if err != nil {
		return fmt.Errorf("sqlite: complete scan: %w", err)
	}
	return nil
}

// Accept transitions a ready job to accepted, optionally overwriting its result.
func (a *Adapter) Accept(ctx context.Context, jobID int64, resultJSON string) error {
	if resultJSON != "" {
		_, err := a.db.ExecContext(ctx,
			"UPDATE jobs SET status=?, result_json=?, updated_at=CURRENT_TIMESTAMP WHERE id=? AND status=?",
			domain.StatusAccepted, resultJSON, jobID, domain.StatusReady)
		if err != nil {
			return fmt.Errorf("sqlite: accept: %w", err)
		}
		return nil
	}
	_, err := a.db.ExecContext(ctx,
		"UPDATE jobs SET status=?, updated_at=CURRENT_TIMESTAMP WHERE id=? AND status=?",
		domain.StatusAccepted, jobID, domain.StatusReady)
	if err != nil {
		return fmt.Errorf("sqlite: accept: %w", err)
	}
	return nil
}

// Skip transitions a ready job to skipped.
func (a *Adapter) Skip(ctx context.Context, jobID int64) error {
	_, err := a.db.ExecContext(ctx,
		"UPDATE jobs SET status=?, updated_at=CURRENT_TIMESTAMP WHERE id=? AND status=?",
		domain.StatusSkipped, jobID, domain.StatusReady)
	if err != nil {
		return fmt.Errorf("sqlite: skip: %w", err)
	}
	return nil
}

// RequeueForReconsideration moves a ready job back to queued with updated feedback/hint.
func (a *Adapter) RequeueForReconsideration(ctx context.Context, jobID int64, feedback, artistHint string) error {
	_, err := a.db.ExecContext(ctx,
		`UPDATE jobs
		 SET status=?, user_feedback=?, artist_hint=?, result_json=NULL, error=NULL,
		     started_at=NULL, completed_at=NULL, updated_at=CURRENT_TIMESTAMP
		 WHERE id=?`,
		domain.StatusQueued, nullableString(feedback), nullableString(artistHint), jobID)
	if err != nil {
		return fmt.Errorf("sqlite: requeue for reconsideration: %w", err)
	}
	return nil
}

// GetByID fetches a single job by id.
func (a *Adapter) GetByID(ctx context.Context, jobID int64) (*domain.Job, error) {
	row := a.db.QueryRowContext(ctx, fmt.Sprintf("SELECT %s FROM jobs WHERE id=?", jobColumns), jobID)
	job, err := scanJob(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("sqlite: get by id: %w", err)
	}
	return &job, nil
}

// FindLatestByFolder returns the most recently updated job for folderPath
// whose status is one of statuses, or nil if none match.
func (a *Adapter) FindLatestByFolder(ctx context.Context, folderPath string, statuses []domain.Status) (*domain.Job, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(statuses)), ",")
	args := make([]any, 0, len(statuses)+1)
	args = append(args, folderPath)
	for _, s := range statuses {
		args = append(args, s)
	}

	query := fmt.Sprintf("SELECT %s FROM jobs WHERE folder_path=? AND status IN (%s) ORDER BY updated_at DESC LIMIT 1", jobColumns, placeholders)
	row := a.db.QueryRowContext(ctx, query, args...)
	job, err := scanJob(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("sqlite: find latest by folder: %w", err)
	}
	return &job, nil
}

// FetchReady returns every ready job, most recently completed first.
func (a *Adapter) FetchReady(ctx context.Context) ([]domain.Job, error) {
	rows, err := a.db.QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM jobs WHERE status=? ORDER BY completed_at DESC", jobColumns),
		domain.StatusReady)
	if err != nil {
		return nil, fmt.Errorf("sqlite: fetch ready: %w", err)
	}
	defer rows.Close()

	var out []domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: fetch ready scan: %w", err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// RecentJobs returns the most recently updated jobs, newest first.
func (a *Adapter) RecentJobs(ctx context.Context, limit int) ([]domain.Job, error) {
	rows, err := a.db.QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM jobs ORDER BY updated_at DESC, id DESC LIMIT ?", jobColumns),
		limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: recent jobs: %w", err)
	}
	defer rows.Close()

	var out []domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: recent jobs scan: %w", err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// Counts returns a snapshot of job counts per status.
func (a *Adapter) Counts(ctx context.Context) (ports.JobCounts, error) {
	rows, err := a.db.QueryContext(ctx, "SELECT status, COUNT(1) FROM jobs GROUP BY status")
	if err != nil {
		return ports.JobCounts{}, fmt.Errorf("sqlite: counts: %w", err)
	}
	defer rows.Close()

	var c ports.JobCounts
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return ports.JobCounts{}, fmt.Errorf("sqlite: counts scan: %w", err)
		}
		switch domain.NormalizeStatus(domain.Status(status)) {
		case domain.StatusQueued:
			c.Queued += n
		case domain.StatusAnalyzing:
			c.Analyzing += n
		case domain.StatusReady:
			c.Ready += n
		case domain.StatusAccepted:
			c.Accepted += n
		case domain.StatusMoving:
			c.Moving += n
		case domain.StatusSkipped:
			c.Skipped += n
		case domain.StatusCompleted:
			c.Completed += n
		case domain.StatusError:
			c.Error += n
		}
	}
	return c, rows.Err()
}

// ResetStaleAnalyzing moves analyzing jobs older than maxAge back to queued.
func (a *Adapter) ResetStaleAnalyzing(ctx context.Context, maxAge time.Duration) (int, error) {
	res, err := a.db.ExecContext(ctx,
		`UPDATE jobs
		 SET status=?, started_at=NULL, updated_at=CURRENT_TIMESTAMP
		 WHERE status=? AND started_at IS NOT NULL
		   AND (strftime('%s','now') - strftime('%s', started_at)) > ?`,
		domain.StatusQueued, domain.StatusAnalyzing, int(maxAge.Seconds()))
	if err != nil {
		return 0, fmt.Errorf("sqlite: reset stale analyzing: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: reset stale analyzing rows affected: %w", err)
	}
	return int(n), nil
}

// DeleteJob permanently removes a job row.
func (a *Adapter) DeleteJob(ctx context.Context, jobID int64) error {
	if _, err := a.db.ExecContext(ctx, "DELETE FROM jobs WHERE id=?", jobID); err != nil {
		return fmt.Errorf("sqlite: delete job: %w", err)
	}
	return nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

var _ ports.JobStore = (*Adapter)(nil)
