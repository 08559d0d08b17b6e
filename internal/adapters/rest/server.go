// Package rest exposes the job pipeline over HTTP: status polling, staged
// path changes, directory browsing, the ready-for-review queue, and the
// accept/reconsider/skip decision surface, plus a Server-Sent Events
// stream for live status updates.
package rest

import (
	"net/http"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/ewilliams-labs/soundsorter/internal/core/ports"
	"github.com/ewilliams-labs/soundsorter/internal/core/services/progress"
	"github.com/ewilliams-labs/soundsorter/internal/filemover"
	"github.com/ewilliams-labs/soundsorter/internal/worker"
)

// Server is the HTTP adapter over the job pipeline.
type Server struct {
	store     ports.JobStore
	tagReader ports.TagReader
	tracker   *progress.Tracker
	pool      *worker.Pool
	mover     *filemover.Mover
	logger    *zap.Logger
	router    *http.ServeMux

	mu           sync.RWMutex
	sourceDir    string
	stagedSource string
	stagedTarget string
}

// Config wires a Server's dependencies.
type Config struct {
	Store     ports.JobStore
	TagReader ports.TagReader
	Tracker   *progress.Tracker
	Pool      *worker.Pool
	Mover     *filemover.Mover
	SourceDir string
	Logger    *zap.Logger
}

// NewServer builds a Server and registers its routes.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		store:     cfg.Store,
		tagReader: cfg.TagReader,
		tracker:   cfg.Tracker,
		pool:      cfg.Pool,
		mover:     cfg.Mover,
		sourceDir: cfg.SourceDir,
		logger:    logger,
		router:    http.NewServeMux(),
	}
	s.routes()
	return s
}

// ServeHTTP satisfies http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.HandleFunc("GET /api/status", s.handleStatus)
	s.router.HandleFunc("GET /api/paths", s.handleGetPaths)
	s.router.HandleFunc("POST /api/paths", s.handlePostPaths)
	s.router.HandleFunc("GET /api/list", s.handleList)
	s.router.HandleFunc("GET /api/ready", s.handleReady)
	s.router.HandleFunc("GET /api/folder", s.handleFolder)
	s.router.HandleFunc("POST /api/decision", s.handleDecision)
	s.router.HandleFunc("GET /api/events", s.handleEvents)
	s.router.HandleFunc("GET /api/debug/jobs", s.handleDebugJobs)
}

// SourceDir returns the server's current source directory.
func (s *Server) SourceDir() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sourceDir
}

func (s *Server) setSourceDir(dir string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sourceDir = dir
}

// topLevelEntryCount counts every immediate child of dir (files and
// directories alike), used for the status endpoint's "total" field.
func topLevelEntryCount(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	return len(entries)
}
