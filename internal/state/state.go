package state

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"subdigest/internal/aggregator"
	"subdigest/internal/scheduler"
	"subdigest/internal/types"
)

// Tracker owns the mutable state the UI side reads: the current
// subreddit list, the in-progress flag, the latest digest and the last
// error. It also owns the active scheduler handle, so swapping the
// subreddit list is always stop-then-start.
type Tracker struct {
	scheduler *scheduler.Scheduler
	interval  time.Duration

	mu         sync.RWMutex
	subreddits []string
	handle     *scheduler.Handle
	digest     *types.Digest
	lastError  string
	loading    bool
	updatedAt  time.Time
}

// Snapshot is a consistent read of the tracker for one request.
type Snapshot struct {
	Subreddits []string      `json:"subreddits"`
	InProgress bool          `json:"in_progress"`
	Digest     *types.Digest `json:"digest,omitempty"`
	Error      string        `json:"error,omitempty"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

func NewTracker(sched *scheduler.Scheduler, interval time.Duration) *Tracker {
	return &Tracker{
		scheduler: sched,
		interval:  interval,
	}
}

// Prime seeds the tracker with a previously cached digest so the
// server has something to show before the first cycle completes.
func (t *Tracker) Prime(digest *types.Digest) {
	if digest == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.digest == nil {
		t.digest = digest
		t.updatedAt = digest.FetchedAt
		slog.Info("Primed state from cached digest", "posts", len(digest.Posts), "fetched_at", digest.FetchedAt)
	}
}

// SetSubreddits replaces the active schedule with one for the new
// list. An empty list stops aggregation and records the validation
// error without touching the network.
func (t *Tracker) SetSubreddits(ctx context.Context, subreddits []string) error {
	names := aggregator.Normalize(subreddits)

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.handle != nil {
		t.handle.Stop()
		t.handle = nil
	}

	t.subreddits = names
	t.updatedAt = time.Now()

	if len(names) == 0 {
		t.lastError = types.ErrNoSubreddits.Error()
		t.loading = false
		return types.ErrNoSubreddits
	}

	handle, err := t.scheduler.Start(ctx, names, t.interval)
	if err != nil {
		t.lastError = err.Error()
		t.loading = false
		return err
	}

	t.handle = handle
	t.loading = true
	t.lastError = ""

	go t.consume(handle)

	return nil
}

// consume applies outcomes from one handle until it is stopped. A
// stale handle's outcomes are ignored once a new schedule supersedes
// it.
func (t *Tracker) consume(h *scheduler.Handle) {
	for {
		select {
		case out := <-h.Outcomes():
			t.apply(h, out)
		case <-h.Done():
			return
		}
	}
}

func (t *Tracker) apply(h *scheduler.Handle, out scheduler.Outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.handle != h {
		return
	}

	t.loading = false
	t.updatedAt = time.Now()

	if out.Err != nil {
		t.lastError = out.Err.Error()
		return
	}

	t.lastError = ""
	t.digest = out.Digest
}

// Refresh requests one extra cycle immediately.
func (t *Tracker) Refresh() error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.handle == nil {
		return types.ErrNoSubreddits
	}

	t.handle.Kick()
	return nil
}

func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.handle != nil {
		t.handle.Stop()
		t.handle = nil
	}
	t.loading = false
}

func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	inProgress := t.loading
	if t.handle != nil && t.handle.InFlight() {
		inProgress = true
	}

	return Snapshot{
		Subreddits: append([]string(nil), t.subreddits...),
		InProgress: inProgress,
		Digest:     t.digest,
		Error:      t.lastError,
		UpdatedAt:  t.updatedAt,
	}
}
