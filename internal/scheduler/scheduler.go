package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"subdigest/internal/types"
)

// Outcome is what one triggered cycle produced: a digest or an error.
type Outcome struct {
	Digest *types.Digest
	Err    error
}

// RunFunc executes one aggregation cycle over the given subreddits.
type RunFunc func(ctx context.Context, subreddits []string) Outcome

// Scheduler triggers a RunFunc once immediately on Start and again at
// a fixed interval until the handle is stopped.
type Scheduler struct {
	run RunFunc
}

// Handle is one active schedule. Changing the subreddit list means
// stopping the handle and starting a new one; a running schedule's
// list is never mutated in place.
type Handle struct {
	subreddits []string
	interval   time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	kickCh   chan struct{}
	outcomes chan Outcome
	inFlight atomic.Bool
}

func New(run RunFunc) *Scheduler {
	return &Scheduler{run: run}
}

// Start begins a schedule: one immediate cycle, then one per interval.
// Failed cycles surface on the outcome channel and do not stop the
// schedule.
func (s *Scheduler) Start(ctx context.Context, subreddits []string, interval time.Duration) (*Handle, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("scheduler: interval must be positive, got %v", interval)
	}

	h := &Handle{
		subreddits: append([]string(nil), subreddits...),
		interval:   interval,
		stopCh:     make(chan struct{}),
		kickCh:     make(chan struct{}, 1),
		outcomes:   make(chan Outcome, 16),
	}

	go s.loop(ctx, h)

	slog.Info("Schedule started", "subreddits", h.subreddits, "interval", interval)

	return h, nil
}

func (s *Scheduler) loop(ctx context.Context, h *Handle) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	go s.trigger(ctx, h)

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.stopCh:
			return
		case <-ticker.C:
			go s.trigger(ctx, h)
		case <-h.kickCh:
			go s.trigger(ctx, h)
		}
	}
}

// trigger runs one cycle. A tick that fires while the previous cycle
// is still in flight is skipped rather than stacked.
func (s *Scheduler) trigger(ctx context.Context, h *Handle) {
	if !h.inFlight.CompareAndSwap(false, true) {
		slog.Warn("Previous cycle still in flight, skipping trigger")
		return
	}
	defer h.inFlight.Store(false)

	out := s.run(ctx, h.subreddits)

	select {
	case h.outcomes <- out:
	default:
		slog.Warn("Outcome channel full, dropping oldest outcome")
		select {
		case <-h.outcomes:
		default:
		}
		select {
		case h.outcomes <- out:
		default:
		}
	}
}

// Stop cancels all future triggers. A cycle already in flight runs to
// completion; its outcome may still be delivered.
func (h *Handle) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopCh)
		slog.Info("Schedule stopped", "subreddits", h.subreddits)
	})
}

// Kick requests one extra cycle now without disturbing the interval.
func (h *Handle) Kick() {
	select {
	case h.kickCh <- struct{}{}:
	default:
	}
}

func (h *Handle) Outcomes() <-chan Outcome {
	return h.outcomes
}

// Done is closed once the handle has been stopped.
func (h *Handle) Done() <-chan struct{} {
	return h.stopCh
}

func (h *Handle) InFlight() bool {
	return h.inFlight.Load()
}

func (h *Handle) Subreddits() []string {
	return append([]string(nil), h.subreddits...)
}
