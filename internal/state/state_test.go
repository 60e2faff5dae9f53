package state

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subdigest/internal/scheduler"
	"subdigest/internal/types"
)

func digestRun(t *testing.T) scheduler.RunFunc {
	t.Helper()
	return func(ctx context.Context, subreddits []string) scheduler.Outcome {
		posts := make([]types.Post, 0, len(subreddits))
		for _, s := range subreddits {
			posts = append(posts, types.Post{ID: s + "_0", Subreddit: s})
		}
		return scheduler.Outcome{Digest: &types.Digest{
			Posts:      posts,
			Subreddits: subreddits,
			Hash:       "h",
			FetchedAt:  time.Now(),
		}}
	}
}

func TestSetSubredditsStartsScheduleAndAppliesOutcome(t *testing.T) {
	tracker := NewTracker(scheduler.New(digestRun(t)), time.Hour)
	defer tracker.Stop()

	err := tracker.SetSubreddits(context.Background(), []string{" golang ", "rust", ""})
	require.NoError(t, err)

	snap := tracker.Snapshot()
	assert.Equal(t, []string{"golang", "rust"}, snap.Subreddits)

	require.Eventually(t, func() bool {
		s := tracker.Snapshot()
		return s.Digest != nil && !s.InProgress
	}, time.Second, 10*time.Millisecond)

	snap = tracker.Snapshot()
	assert.Empty(t, snap.Error)
	assert.Len(t, snap.Digest.Posts, 2)
}

func TestSetSubredditsEmptyListIsValidationError(t *testing.T) {
	tracker := NewTracker(scheduler.New(digestRun(t)), time.Hour)
	defer tracker.Stop()

	err := tracker.SetSubreddits(context.Background(), []string{"", "   "})
	require.ErrorIs(t, err, types.ErrNoSubreddits)

	snap := tracker.Snapshot()
	assert.Equal(t, types.ErrNoSubreddits.Error(), snap.Error)
	assert.False(t, snap.InProgress)
}

func TestFailedCycleSurfacesErrorAndKeepsLastDigest(t *testing.T) {
	var fail atomic.Bool
	run := func(ctx context.Context, subreddits []string) scheduler.Outcome {
		if fail.Load() {
			return scheduler.Outcome{Err: errors.New("Subreddit not found: r/gone")}
		}
		return digestRun(t)(ctx, subreddits)
	}

	tracker := NewTracker(scheduler.New(run), time.Hour)
	defer tracker.Stop()

	require.NoError(t, tracker.SetSubreddits(context.Background(), []string{"golang"}))
	require.Eventually(t, func() bool { return tracker.Snapshot().Digest != nil }, time.Second, 10*time.Millisecond)

	fail.Store(true)
	require.NoError(t, tracker.Refresh())

	require.Eventually(t, func() bool { return tracker.Snapshot().Error != "" }, time.Second, 10*time.Millisecond)

	snap := tracker.Snapshot()
	assert.Contains(t, snap.Error, "gone")
	assert.NotNil(t, snap.Digest, "last good digest survives a failed cycle")
}

func TestReplacingListSupersedesOldSchedule(t *testing.T) {
	tracker := NewTracker(scheduler.New(digestRun(t)), time.Hour)
	defer tracker.Stop()

	require.NoError(t, tracker.SetSubreddits(context.Background(), []string{"golang"}))
	require.NoError(t, tracker.SetSubreddits(context.Background(), []string{"rust"}))

	require.Eventually(t, func() bool {
		s := tracker.Snapshot()
		return s.Digest != nil && len(s.Digest.Subreddits) == 1 && s.Digest.Subreddits[0] == "rust"
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, []string{"rust"}, tracker.Snapshot().Subreddits)
}

func TestRefreshWithoutScheduleFails(t *testing.T) {
	tracker := NewTracker(scheduler.New(digestRun(t)), time.Hour)
	require.Error(t, tracker.Refresh())
}

func TestPrimeSeedsDigestOnce(t *testing.T) {
	tracker := NewTracker(scheduler.New(digestRun(t)), time.Hour)

	cached := &types.Digest{Hash: "cached", FetchedAt: time.Now().Add(-time.Hour)}
	tracker.Prime(cached)
	assert.Equal(t, "cached", tracker.Snapshot().Digest.Hash)

	// A second prime must not clobber existing state.
	tracker.Prime(&types.Digest{Hash: "other"})
	assert.Equal(t, "cached", tracker.Snapshot().Digest.Hash)
}
