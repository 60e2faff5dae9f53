package storage

import (
	"context"
	"time"
)

// CycleRecord is the history row for one aggregation cycle. The digest
// itself is rebuilt every cycle and never persisted; this is
// operational history only.
type CycleRecord struct {
	ID         int64
	StartedAt  time.Time
	Duration   time.Duration
	Subreddits []string
	PostCount  int
	DigestHash string
	Error      string
	Sources    []SourceRecord
}

type SourceRecord struct {
	Subreddit string
	PostCount int
	Error     string
}

type CycleStore interface {
	Record(ctx context.Context, rec CycleRecord) (int64, error)
	Recent(ctx context.Context, limit int) ([]CycleRecord, error)
	LastDigestHash(ctx context.Context) (string, error)
}

type StorageInterface interface {
	Cycles() CycleStore
	Close(ctx context.Context) error
}
