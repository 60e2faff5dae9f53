package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"subdigest/internal/aggregator"
	"subdigest/internal/cache"
	"subdigest/internal/config"
	"subdigest/internal/scheduler"
	"subdigest/internal/server"
	"subdigest/internal/sources"
	"subdigest/internal/state"
	"subdigest/internal/storage"
	_ "subdigest/internal/storage/sqlite"
	"subdigest/internal/targets/discord"
	"subdigest/internal/types"
)

// App wires the fixed component set together: reddit source →
// aggregator → scheduler → state tracker, with storage, cache, HTTP
// server and the discord notifier hanging off the cycle runner.
type App struct {
	cfg *config.Config

	aggregator *aggregator.Aggregator
	scheduler  *scheduler.Scheduler
	tracker    *state.Tracker
	store      storage.StorageInterface
	digests    *cache.DigestCache
	notifier   *discord.Notifier
	server     *server.Server
}

func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	source := sources.NewRedditSource(
		cfg.Reddit.BaseURL,
		cfg.Reddit.UserAgent,
		cfg.Reddit.TimeWindow,
		cfg.Reddit.Limit,
		cfg.Reddit.TimeoutDuration(),
	)

	a := &App{
		cfg:        cfg,
		store:      store,
		aggregator: aggregator.New(source, cfg.App.FetchCap),
	}

	a.scheduler = scheduler.New(a.runCycle)
	a.tracker = state.NewTracker(a.scheduler, cfg.App.IntervalDuration())

	if cfg.Cache.Enabled {
		a.digests = cache.NewDigestCache(cfg.Cache)
		a.warmStart(ctx)
	}

	if cfg.Discord.Enabled {
		notifier, err := discord.New(cfg.Discord)
		if err != nil {
			return nil, err
		}
		if err := notifier.Initialize(ctx); err != nil {
			return nil, err
		}
		a.notifier = notifier
	}

	if cfg.Server.Enabled {
		a.server = server.New(server.Config{
			Port:     cfg.Server.Port,
			FeedSize: cfg.Server.FeedSize,
		}, a.tracker, store.Cycles())
	}

	return a, nil
}

// warmStart seeds the tracker from the cached digest, if any, so the
// server isn't empty while the first cycle runs.
func (a *App) warmStart(ctx context.Context) {
	names := aggregator.Normalize(a.cfg.Subreddits)
	if len(names) == 0 {
		return
	}

	digest, err := a.digests.LoadDigest(ctx, names)
	if err != nil {
		slog.Warn("Failed to load cached digest", "error", err)
		return
	}

	a.tracker.Prime(digest)
}

func (a *App) Start(ctx context.Context) error {
	if a.server != nil {
		if err := a.server.Start(ctx); err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
	}

	if a.cfg.App.RunOnce {
		out := a.runCycle(ctx, aggregator.Normalize(a.cfg.Subreddits))
		if out.Err != nil {
			return out.Err
		}
		slog.Info("Single cycle complete", "posts", len(out.Digest.Posts))
		return nil
	}

	if len(aggregator.Normalize(a.cfg.Subreddits)) > 0 {
		if err := a.tracker.SetSubreddits(ctx, a.cfg.Subreddits); err != nil {
			return err
		}
	} else {
		slog.Info("No subreddits configured, waiting for POST /subreddits")
	}

	<-ctx.Done()
	return ctx.Err()
}

// runCycle is the scheduler's RunFunc: one aggregation pass plus the
// side effects that hang off it (history row, cache write, discord
// announcement for a changed digest).
func (a *App) runCycle(ctx context.Context, subreddits []string) scheduler.Outcome {
	report := a.aggregator.Run(ctx, subreddits)
	digest := report.Digest()

	lastHash, err := a.store.Cycles().LastDigestHash(ctx)
	if err != nil {
		slog.Warn("Failed to read last digest hash", "error", err)
	}

	a.recordCycle(ctx, report, digest)

	if digest != nil {
		if a.digests != nil {
			if err := a.digests.StoreDigest(ctx, digest); err != nil {
				slog.Warn("Failed to cache digest", "error", err)
			}
		}

		if a.notifier != nil && digest.Hash != lastHash {
			if err := a.notifier.Notify(ctx, digest); err != nil {
				slog.Error("Failed to send discord notification", "error", err)
			}
		}
	}

	return scheduler.Outcome{Digest: digest, Err: report.Err}
}

func (a *App) recordCycle(ctx context.Context, report *aggregator.Report, digest *types.Digest) {
	rec := storage.CycleRecord{
		StartedAt:  report.StartedAt,
		Duration:   report.Duration,
		Subreddits: report.Subreddits,
		PostCount:  len(report.Posts),
		Sources:    make([]storage.SourceRecord, 0, len(report.Sources)),
	}

	if report.Err != nil {
		rec.Error = report.Err.Error()
	}
	if digest != nil {
		rec.DigestHash = digest.Hash
	}

	for _, src := range report.Sources {
		srcRec := storage.SourceRecord{
			Subreddit: src.Subreddit,
			PostCount: src.PostCount,
		}
		if src.Err != nil {
			srcRec.Error = src.Err.Error()
		}
		rec.Sources = append(rec.Sources, srcRec)
	}

	if _, err := a.store.Cycles().Record(ctx, rec); err != nil {
		slog.Warn("Failed to record cycle history", "error", err)
	}
}

func (a *App) Stop(ctx context.Context) error {
	a.tracker.Stop()

	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			slog.Error("Error shutting down server", "error", err)
		}
	}

	if a.notifier != nil {
		if err := a.notifier.Close(ctx); err != nil {
			slog.Error("Error closing discord session", "error", err)
		}
	}

	if a.digests != nil {
		if err := a.digests.Close(); err != nil {
			slog.Error("Error closing digest cache", "error", err)
		}
	}

	closeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := a.store.Close(closeCtx); err != nil {
		return fmt.Errorf("failed to close storage: %w", err)
	}

	return nil
}

func (a *App) Name() string {
	return a.cfg.App.Name
}

func (a *App) Tracker() *state.Tracker {
	return a.tracker
}
