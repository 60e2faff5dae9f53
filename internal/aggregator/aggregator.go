package aggregator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"subdigest/internal/types"
	"subdigest/internal/utils/hash"
)

const defaultFetchCap = 8

// Aggregator fans one fetch per subreddit out to the Fetcher and joins
// all outcomes into a single result. It holds no state between cycles.
type Aggregator struct {
	fetcher  types.Fetcher
	fetchCap int
}

// Report is the full record of one aggregation cycle, including the
// per-subreddit outcomes that the surfaced error message collapses.
type Report struct {
	Subreddits []string
	Sources    []SourceReport
	Posts      []types.Post
	Err        error
	StartedAt  time.Time
	Duration   time.Duration
}

type SourceReport struct {
	Subreddit string
	PostCount int
	Err       error
}

func New(fetcher types.Fetcher, fetchCap int) *Aggregator {
	if fetchCap <= 0 {
		fetchCap = defaultFetchCap
	}

	return &Aggregator{
		fetcher:  fetcher,
		fetchCap: fetchCap,
	}
}

// Aggregate merges the top posts of every named subreddit, in input
// order. Any single fetch failure fails the whole cycle.
func (a *Aggregator) Aggregate(ctx context.Context, subreddits []string) ([]types.Post, error) {
	report := a.Run(ctx, subreddits)
	return report.Posts, report.Err
}

// Run executes one cycle and returns the detailed report. Every
// dispatched fetch runs to completion even when a sibling has already
// failed; only an external cancellation cuts fetches short.
func (a *Aggregator) Run(ctx context.Context, subreddits []string) *Report {
	report := &Report{
		Subreddits: Normalize(subreddits),
		StartedAt:  time.Now(),
	}
	defer func() { report.Duration = time.Since(report.StartedAt) }()

	names := report.Subreddits
	if len(names) == 0 {
		report.Err = types.ErrNoSubreddits
		return report
	}

	posts := make([][]types.Post, len(names))
	errs := make([]error, len(names))

	var wg sync.WaitGroup
	sem := make(chan struct{}, a.fetchCap)

	for i, name := range names {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, name string) {
			defer wg.Done()
			defer func() { <-sem }()

			fetched, err := a.fetcher.Fetch(ctx, name)
			if err != nil {
				errs[i] = err
				return
			}
			posts[i] = fetched
		}(i, name)
	}
	wg.Wait()

	report.Sources = make([]SourceReport, len(names))
	for i, name := range names {
		report.Sources[i] = SourceReport{
			Subreddit: name,
			PostCount: len(posts[i]),
			Err:       errs[i],
		}
	}

	if err := ctx.Err(); err != nil {
		report.Err = fmt.Errorf("aggregation cancelled: %w", err)
		return report
	}

	if err := composeError(report.Sources); err != nil {
		report.Err = err
		return report
	}

	total := 0
	for _, p := range posts {
		total += len(p)
	}

	merged := make([]types.Post, 0, total)
	for _, p := range posts {
		merged = append(merged, p...)
	}
	report.Posts = merged

	return report
}

// Digest wraps a successful report's posts with the cycle metadata
// used by the cache, the feed server and the notifier.
func (r *Report) Digest() *types.Digest {
	if r.Err != nil {
		return nil
	}

	return &types.Digest{
		Posts:      r.Posts,
		Subreddits: r.Subreddits,
		Hash:       hash.Posts(r.Posts),
		FetchedAt:  r.StartedAt,
	}
}

// composeError folds per-subreddit failures into the one message shown
// to the caller. A not-found failure names its subreddit; anything
// else collapses to a generic message. The full failure list still
// lands in the log and the cycle history.
func composeError(sources []SourceReport) error {
	failed := 0
	var notFound string

	for _, src := range sources {
		if src.Err == nil {
			continue
		}
		failed++
		slog.Error("Subreddit fetch failed", "subreddit", src.Subreddit, "error", src.Err)
		if notFound == "" && types.IsNotFound(src.Err) {
			notFound = src.Subreddit
		}
	}

	if failed == 0 {
		return nil
	}

	if notFound != "" {
		return fmt.Errorf("Subreddit not found: r/%s", notFound)
	}

	return fmt.Errorf("could not load top posts: %d of %d subreddits failed", failed, len(sources))
}

// Normalize trims every name and drops blanks. Duplicates survive and
// are fetched independently.
func Normalize(subreddits []string) []string {
	names := make([]string, 0, len(subreddits))
	for _, name := range subreddits {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		names = append(names, name)
	}
	return names
}
