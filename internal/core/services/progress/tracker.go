// Package progress tracks how many folders the pipeline has processed and
// how each one was resolved, for the control plane's status endpoint and
// SSE stream.
package progress

import (
	"sync"

	"github.com/ewilliams-labs/soundsorter/internal/core/domain"
)

// Stats is an immutable snapshot of a Tracker's counters.
type Stats struct {
	TotalProcessed  int
	Successful      int
	Skipped         int
	Errors          int
	OrganizedAlbums []domain.Proposal
}

// Tracker accumulates organization outcomes across a run. Safe for
// concurrent use by multiple worker goroutines.
type Tracker struct {
	mu    sync.Mutex
	stats Stats
}

// New returns a zeroed Tracker.
func New() *Tracker {
	return &Tracker{}
}

// IncrementProcessed records that one more folder was picked up for work.
func (t *Tracker) IncrementProcessed() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.TotalProcessed++
}

// IncrementSuccessful records a completed organization and its proposal.
func (t *Tracker) IncrementSuccessful(p domain.Proposal) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.Successful++
	t.stats.OrganizedAlbums = append(t.stats.OrganizedAlbums, p)
}

// IncrementSkipped records a folder the user chose to skip.
func (t *Tracker) IncrementSkipped() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.Skipped++
}

// IncrementErrors records a folder that failed analysis or move.
func (t *Tracker) IncrementErrors() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.Errors++
}

// Snapshot returns a copy of the current stats.
func (t *Tracker) Snapshot() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	albums := make([]domain.Proposal, len(t.stats.OrganizedAlbums))
	copy(albums, t.stats.OrganizedAlbums)
	return Stats{
		TotalProcessed:  t.stats.TotalProcessed,
		Successful:      t.stats.Successful,
		Skipped:         t.stats.Skipped,
		Errors:          t.stats.Errors,
		OrganizedAlbums: albums,
	}
}

// Reset zeroes every counter.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats = Stats{}
}
