package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"subdigest/internal/storage"
)

type cycleStore struct {
	db *sql.DB
}

func newCycleStore(db *sql.DB) storage.CycleStore {
	return &cycleStore{db: db}
}

func (s *cycleStore) Record(ctx context.Context, rec storage.CycleRecord) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO cycles (started_at, duration_ms, subreddits, post_count, digest_hash, error)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.StartedAt, rec.Duration.Milliseconds(), strings.Join(rec.Subreddits, ","), rec.PostCount, rec.DigestHash, rec.Error)
	if err != nil {
		return 0, fmt.Errorf("failed to record cycle: %w", err)
	}

	cycleID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read cycle id: %w", err)
	}

	for _, src := range rec.Sources {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO cycle_sources (cycle_id, subreddit, post_count, error)
			VALUES (?, ?, ?, ?)
		`, cycleID, src.Subreddit, src.PostCount, src.Error)
		if err != nil {
			return 0, fmt.Errorf("failed to record source outcome: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit cycle record: %w", err)
	}

	return cycleID, nil
}

func (s *cycleStore) Recent(ctx context.Context, limit int) ([]storage.CycleRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, duration_ms, subreddits, post_count, digest_hash, error
		FROM cycles
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query cycles: %w", err)
	}
	defer rows.Close()

	var records []storage.CycleRecord
	for rows.Next() {
		var rec storage.CycleRecord
		var durationMS int64
		var subreddits string

		if err := rows.Scan(&rec.ID, &rec.StartedAt, &durationMS, &subreddits, &rec.PostCount, &rec.DigestHash, &rec.Error); err != nil {
			return nil, fmt.Errorf("failed to scan cycle: %w", err)
		}

		rec.Duration = time.Duration(durationMS) * time.Millisecond
		if subreddits != "" {
			rec.Subreddits = strings.Split(subreddits, ",")
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cycles: %w", err)
	}

	return records, nil
}

func (s *cycleStore) LastDigestHash(ctx context.Context) (string, error) {
	var hash string
	err := s.db.QueryRowContext(ctx, `
		SELECT digest_hash FROM cycles
		WHERE error = '' AND digest_hash != ''
		ORDER BY id DESC
		LIMIT 1
	`).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query last digest hash: %w", err)
	}
	return hash, nil
}
