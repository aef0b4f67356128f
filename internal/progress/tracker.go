// Package progress reports per-job extraction progress as a percentage.
package progress

import (
	"log/slog"
	"sync"
)

// Tracker accumulates processed pages for one job. Reads are non-decreasing and
// stay at or below 99 until the job is marked complete.
type Tracker struct {
	mu        sync.Mutex
	processed int
	total     int
	completed bool
	last      int
	logger    *slog.Logger
}

func NewTracker(total int, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Tracker{logger: logger}
	t.Reset(total)
	return t
}

// Reset starts a new job on the tracker.
func (t *Tracker) Reset(total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.processed = 0
	t.total = total
	t.completed = false
	t.last = 0
}

// Update adds pagesInChunk to the processed count and returns the new
// percentage. A non-positive totalPages leaves state untouched.
func (t *Tracker) Update(pagesInChunk, totalPages int, completed bool) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if totalPages <= 0 {
		t.logger.Error("progress.update.ignored", "reason", "total pages not positive", "total_pages", totalPages)
		return t.last
	}
	t.total = totalPages
	if pagesInChunk > 0 {
		t.processed += pagesInChunk
	}
	if t.processed > t.total {
		t.processed = t.total
	}
	if completed {
		t.completed = true
	}
	return t.percentLocked()
}

// Complete marks the job finished; Read returns 100 afterwards.
func (t *Tracker) Complete() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.completed = true
	t.last = 100
}

// Read returns the current percentage.
func (t *Tracker) Read() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.completed {
		return 100
	}
	return t.last
}

// Done reports whether the job was marked complete.
func (t *Tracker) Done() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.completed
}

func (t *Tracker) percentLocked() int {
	if t.completed {
		t.last = 100
		return 100
	}
	pct := 0
	if t.total > 0 {
		pct = t.processed * 100 / t.total
	}
	if pct > 99 {
		pct = 99
	}
	if pct > t.last {
		t.last = pct
	}
	return t.last
}
