// Package worker runs the claim-dispatch loop that turns queued jobs into
// proposals and accepted proposals into organized folders, plus the
// periodic scan and stale-job recovery sweeps that feed it.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ewilliams-labs/soundsorter/internal/core/domain"
	"github.com/ewilliams-labs/soundsorter/internal/core/ports"
	"github.com/ewilliams-labs/soundsorter/internal/core/services/classify"
	"github.com/ewilliams-labs/soundsorter/internal/core/services/progress"
	"github.com/ewilliams-labs/soundsorter/internal/core/services/shape"
	"github.com/ewilliams-labs/soundsorter/internal/filemover"
	"github.com/ewilliams-labs/soundsorter/internal/scanner"
)

// idlePoll is how long a worker goroutine sleeps after finding neither an
// analyze nor a move job to claim.
const idlePoll = 500 * time.Millisecond

// Config wires a Pool's dependencies. Oracle may be nil, in which case
// every analyze job falls back to the metadata-only proposal.
type Config struct {
	Store           ports.JobStore
	Oracle          ports.Oracle
	TagReader       ports.TagReader
	Mover           *filemover.Mover
	Tracker         *progress.Tracker
	Scanner         *scanner.Scanner
	SourceDir       string
	Workers         int
	ScanInterval    time.Duration
	ResetStaleAge   time.Duration
	ResetStaleEvery time.Duration
	Logger          *zap.Logger
}

// Pool runs Workers goroutines claiming scan, analyze, and move jobs,
// alongside a periodic source-directory scan enqueue and a
// stale-analyzing sweep.
type Pool struct {
	cfg Config
	wg  sync.WaitGroup

	mu        sync.RWMutex
	sourceDir string
}

// New builds a Pool from cfg, filling in defaults for anything left zero.
func New(cfg Config) *Pool {
	if cfg.Workers < 1 {
		cfg.Workers = 4
	}
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = 30 * time.Second
	}
	if cfg.ResetStaleAge <= 0 {
		cfg.ResetStaleAge = 5 * time.Minute
	}
	if cfg.ResetStaleEvery <= 0 {
		cfg.ResetStaleEvery = time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Pool{cfg: cfg, sourceDir: cfg.SourceDir}
}

// SourceDir returns the directory the periodic scan currently enqueues
// scan jobs for.
func (p *Pool) SourceDir() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sourceDir
}

// SetSourceDir repoints the periodic scan at a new root, used when the
// control plane confirms a staged source directory change.
func (p *Pool) SetSourceDir(dir string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sourceDir = dir
}

// Start launches the worker goroutines, the scan ticker, and the
// stale-reset ticker. It returns immediately; call Stop (or cancel ctx) to
// shut everything down.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.runClaimLoop(ctx, i)
	}

	if p.cfg.Scanner != nil {
		p.wg.Add(1)
		go p.runScanLoop(ctx)
	}

	p.wg.Add(1)
	go p.runStaleResetLoop(ctx)
}

// Stop blocks until every Pool goroutine has exited. Callers cancel the
// context passed to Start first.
func (p *Pool) Stop() {
	p.wg.Wait()
}

// runScanLoop enqueues a scan job for the current source directory at
// boot and then every ScanInterval, skipping a tick if a scan job for
// that directory is already queued or in flight. The actual scan work
// happens in processScan once a worker claims the job.
func (p *Pool) runScanLoop(ctx context.Context) {
	defer p.wg.Done()

	p.enqueueScan(ctx)
	ticker := time.NewTicker(p.cfg.ScanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.enqueueScan(ctx)
		}
	}
}

func (p *Pool) enqueueScan(ctx context.Context) {
	dir := p.SourceDir()

	inFlight, err := p.cfg.Store.FindLatestByFolder(ctx, dir, []domain.Status{domain.StatusQueued, domain.StatusAnalyzing})
	if err != nil {
		p.cfg.Logger.Warn("check in-flight scan failed", zap.Error(err))
		return
	}
	if inFlight != nil && inFlight.JobType == domain.JobTypeScan {
		return
	}

	if _, err := p.cfg.Store.Enqueue(ctx, domain.Job{
		FolderPath: dir,
		JobType:    domain.JobTypeScan,
	}); err != nil {
		p.cfg.Logger.Warn("enqueue scan failed", zap.Error(err))
	}
}

func (p *Pool) runStaleResetLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.ResetStaleEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.cfg.Store.ResetStaleAnalyzing(ctx, p.cfg.ResetStaleAge)
			if err != nil {
				p.cfg.Logger.Warn("reset stale analyzing failed", zap.Error(err))
				continue
			}
			if n > 0 {
				p.cfg.Logger.Info("reset stale analyzing jobs", zap.Int("count", n))
			}
		}
	}
}

// runClaimLoop is one worker goroutine: prefer new scan/analyze work
// (scan jobs are claimed ahead of analyze jobs by the store), then
// accepted work waiting to be moved, then idle briefly before retrying.
func (p *Pool) runClaimLoop(ctx context.Context, id int) {
	defer p.wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}

		job, err := p.cfg.Store.ClaimQueuedForAnalysis(ctx)
		if err != nil {
			p.cfg.Logger.Warn("claim analyze failed", zap.Int("worker", id), zap.Error(err))
		} else if job != nil {
			if job.JobType == domain.JobTypeScan {
				p.processScan(ctx, *job)
			} else {
				p.processAnalyze(ctx, *job)
			}
			continue
		}

		move, err := p.cfg.Store.ClaimAcceptedForMove(ctx)
		if err != nil {
			p.cfg.Logger.Warn("claim move failed", zap.Int("worker", id), zap.Error(err))
		} else if move != nil {
			p.processMove(ctx, *move)
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(idlePoll):
		}
	}
}

func (p *Pool) processAnalyze(ctx context.Context, job domain.Job) {
	p.cfg.Tracker.IncrementProcessed()
	p.cfg.Logger.Info("analyzing", zap.Int64("job_id", job.ID), zap.String("folder", job.FolderPath))

	folderShape, err := shape.Build(job.FolderPath)
	if err != nil {
		p.fail(ctx, job.ID, fmt.Errorf("build folder shape: %w", err))
		return
	}

	var tags []domain.FileTags
	files, err := shape.MusicFiles(job.FolderPath)
	if err != nil {
		p.fail(ctx, job.ID, fmt.Errorf("collect music files: %w", err))
		return
	}
	for _, f := range files {
		t, err := p.cfg.TagReader.ReadFile(f)
		if err != nil {
			continue
		}
		tags = append(tags, t)
	}
	summary := p.cfg.TagReader.AggregateFolder(folderShape, tags)

	shapeClass := classify.ClassifyShape(ctx, p.cfg.Oracle, folderShape)
	p.cfg.Logger.Debug("classified shape", zap.Int64("job_id", job.ID), zap.String("shape", string(shapeClass)))
	if shapeClass == classify.ShapeArtistCollection && summary.CommonArtist == "" {
		summary.LikelyCompilation = true
	}

	proposal := classify.GenerateProposal(ctx, p.cfg.Oracle, summary, job.UserFeedback, job.ArtistHint)
	resultJSON, err := json.Marshal(proposal)
	if err != nil {
		p.fail(ctx, job.ID, fmt.Errorf("marshal proposal: %w", err))
		return
	}

	if err := p.cfg.Store.CompleteAnalysis(ctx, job.ID, string(resultJSON), ""); err != nil {
		p.cfg.Logger.Error("complete analysis failed", zap.Int64("job_id", job.ID), zap.Error(err))
	}
}

// processScan runs the Scanner over a claimed scan job's folder and
// marks the job completed (or error) once the walk finishes. It never
// touches job.ResultJSON: a scan job's only output is the analyze jobs
// the Scanner enqueues along the way.
func (p *Pool) processScan(ctx context.Context, job domain.Job) {
	p.cfg.Logger.Info("scanning", zap.Int64("job_id", job.ID), zap.String("folder", job.FolderPath))

	errMsg := ""
	if err := p.cfg.Scanner.Scan(ctx, job.FolderPath); err != nil {
		p.cfg.Logger.Warn("scan failed", zap.Int64("job_id", job.ID), zap.Error(err))
		errMsg = err.Error()
	}
	if err := p.cfg.Store.CompleteScan(ctx, job.ID, errMsg); err != nil {
		p.cfg.Logger.Error("complete scan failed", zap.Int64("job_id", job.ID), zap.Error(err))
	}
}

func (p *Pool) processMove(ctx context.Context, job domain.Job) {
	p.cfg.Logger.Info("moving", zap.Int64("job_id", job.ID), zap.String("folder", job.FolderPath))

	proposal, err := domain.ParseProposal(job.ResultJSON)
	if err != nil {
		p.failMove(ctx, job.ID, fmt.Errorf("parse proposal: %w", err))
		return
	}

	if _, err := p.cfg.Mover.OrganizeFolder(job.FolderPath, proposal); err != nil {
		p.failMove(ctx, job.ID, fmt.Errorf("organize folder: %w", err))
		return
	}
	if err := p.cfg.Mover.WriteSingleAlbumMark(job.FolderPath, proposal, time.Now()); err != nil {
		p.cfg.Logger.Warn("write tracker mark failed", zap.Int64("job_id", job.ID), zap.Error(err))
	}

	if err := p.cfg.Store.CompleteMove(ctx, job.ID, ""); err != nil {
		p.cfg.Logger.Error("complete move failed", zap.Int64("job_id", job.ID), zap.Error(err))
		return
	}
	p.cfg.Tracker.IncrementSuccessful(proposal)
}

func (p *Pool) fail(ctx context.Context, jobID int64, err error) {
	p.cfg.Logger.Error("analysis failed", zap.Int64("job_id", jobID), zap.Error(err))
	p.cfg.Tracker.IncrementErrors()
	if serr := p.cfg.Store.CompleteAnalysis(ctx, jobID, "", err.Error()); serr != nil {
		p.cfg.Logger.Error("record analysis failure failed", zap.Int64("job_id", jobID), zap.Error(serr))
	}
}

func (p *Pool) failMove(ctx context.Context, jobID int64, err error) {
	p.cfg.Logger.Error("move failed", zap.Int64("job_id", jobID), zap.Error(err))
	p.cfg.Tracker.IncrementErrors()
	if serr := p.cfg.Store.CompleteMove(ctx, jobID, err.Error()); serr != nil {
		p.cfg.Logger.Error("record move failure failed", zap.Int64("job_id", jobID), zap.Error(serr))
	}
}
