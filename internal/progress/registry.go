package progress

import (
	"log/slog"
	"sync"
)

// Registry holds the trackers of in-flight jobs so pollers can read them by job ID.
type Registry struct {
	mu       sync.Mutex
	trackers map[string]*Tracker
	logger   *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{trackers: make(map[string]*Tracker), logger: logger}
}

// Start registers a fresh tracker for jobID, replacing any previous one.
func (r *Registry) Start(jobID string, totalPages int) *Tracker {
	t := NewTracker(totalPages, r.logger)
	r.mu.Lock()
	r.trackers[jobID] = t
	r.mu.Unlock()
	return t
}

// Read returns the job's percentage. Unknown jobs read as 0 with ok=false.
// A tracker read at 100 is torn down.
func (r *Registry) Read(jobID string) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.trackers[jobID]
	if !ok {
		return 0, false
	}
	pct := t.Read()
	if pct == 100 {
		delete(r.trackers, jobID)
		r.logger.Debug("progress.tracker.released", "job_id", jobID)
	}
	return pct, true
}

// Len is the number of live trackers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.trackers)
}
