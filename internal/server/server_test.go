package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subdigest/internal/scheduler"
	"subdigest/internal/state"
	"subdigest/internal/storage"
	"subdigest/internal/types"
)

type fakeCycleStore struct {
	records []storage.CycleRecord
}

func (f *fakeCycleStore) Record(ctx context.Context, rec storage.CycleRecord) (int64, error) {
	f.records = append(f.records, rec)
	return int64(len(f.records)), nil
}

func (f *fakeCycleStore) Recent(ctx context.Context, limit int) ([]storage.CycleRecord, error) {
	return f.records, nil
}

func (f *fakeCycleStore) LastDigestHash(ctx context.Context) (string, error) {
	return "", nil
}

func testDigest() *types.Digest {
	return &types.Digest{
		Posts: []types.Post{
			{ID: "a1", Title: "Generics &amp; you", Score: 420, CommentCount: 69, Permalink: "/r/golang/comments/a1/", Subreddit: "golang"},
			{ID: "b2", Title: "Borrow checker tips", Score: 300, CommentCount: 12, Permalink: "/r/rust/comments/b2/", Subreddit: "rust"},
		},
		Subreddits: []string{"golang", "rust"},
		Hash:       "deadbeef",
		FetchedAt:  time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC),
	}
}

func newTestServer(t *testing.T) (*Server, *state.Tracker) {
	t.Helper()

	run := func(ctx context.Context, subreddits []string) scheduler.Outcome {
		return scheduler.Outcome{Digest: &types.Digest{Subreddits: subreddits, Hash: "h", FetchedAt: time.Now()}}
	}

	tracker := state.NewTracker(scheduler.New(run), time.Hour)
	t.Cleanup(tracker.Stop)

	return New(Config{Port: "0", FeedSize: 50}, tracker, &fakeCycleStore{}), tracker
}

func TestDigestEndpointServesPosts(t *testing.T) {
	srv, tracker := newTestServer(t)
	tracker.Prime(testDigest())

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/digest.json", nil))

	require.Equal(t, http.StatusOK, rr.Code)

	var resp digestResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.False(t, resp.InProgress)
	assert.Empty(t, resp.Error)
	require.Len(t, resp.Posts, 2)
	assert.Equal(t, "golang", resp.Posts[0].Subreddit)
	assert.Equal(t, "rust", resp.Posts[1].Subreddit)
}

func TestDigestEndpointServesError(t *testing.T) {
	srv, tracker := newTestServer(t)

	// An empty list records the validation error on the tracker.
	_ = tracker.SetSubreddits(context.Background(), nil)

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/digest.json", nil))

	var resp digestResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Empty(t, resp.Posts)
	assert.Contains(t, resp.Error, "at least one subreddit")
}

func TestRSSFeedRendersSanitizedTitles(t *testing.T) {
	srv, tracker := newTestServer(t)
	tracker.Prime(testDigest())

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/feed.rss", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "rss+xml")

	body := rr.Body.String()
	assert.Contains(t, body, "Generics")
	assert.Contains(t, body, "Borrow checker tips")
	assert.Contains(t, body, "https://www.reddit.com/r/golang/comments/a1/")
	assert.NotContains(t, body, "&amp;amp;", "entities must be resolved before re-encoding")
}

func TestAtomFeedRenders(t *testing.T) {
	srv, tracker := newTestServer(t)
	tracker.Prime(testDigest())

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/feed.atom", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "atom+xml")
	assert.Contains(t, rr.Body.String(), "<feed")
}

func TestFeedUnavailableBeforeFirstDigest(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/feed.rss", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestSetSubredditsSplitsRawInput(t *testing.T) {
	srv, tracker := newTestServer(t)

	body := strings.NewReader(`{"subreddits": " golang , rust ,,zig "}`)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/subreddits", body))

	require.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, []string{"golang", "rust", "zig"}, tracker.Snapshot().Subreddits)
}

func TestSetSubredditsRejectsBlankInput(t *testing.T) {
	srv, _ := newTestServer(t)

	body := strings.NewReader(`{"subreddits": " , , "}`)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/subreddits", body))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "at least one subreddit")
}

func TestRefreshWithoutScheduleConflicts(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/refresh", nil))

	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestRefreshTriggersCycle(t *testing.T) {
	srv, tracker := newTestServer(t)

	require.NoError(t, tracker.SetSubreddits(context.Background(), []string{"golang"}))

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/refresh", nil))

	assert.Equal(t, http.StatusAccepted, rr.Code)
}

func TestCyclesEndpoint(t *testing.T) {
	run := func(ctx context.Context, subreddits []string) scheduler.Outcome {
		return scheduler.Outcome{}
	}
	tracker := state.NewTracker(scheduler.New(run), time.Hour)
	t.Cleanup(tracker.Stop)

	cycles := &fakeCycleStore{records: []storage.CycleRecord{
		{ID: 1, StartedAt: time.Now(), Subreddits: []string{"golang"}, PostCount: 10},
	}}

	srv := New(Config{}, tracker, cycles)

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/cycles", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"post_count":10`)
}

func TestHealthEndpoint(t *testing.T) {
	srv, tracker := newTestServer(t)
	tracker.Prime(testDigest())

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rr.Code)

	var resp map[string]any
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, float64(2), resp["posts"])
}
