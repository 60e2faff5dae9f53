package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"subdigest/internal/config"
	"subdigest/internal/types"
)

// DigestCache keeps the last successful digest in redis so a restart
// (or a request racing the first cycle) has something to serve. It is
// a warm-start read-side cache, not result persistence: entries expire
// on their TTL and are rebuilt by the next cycle.
type DigestCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewDigestCache(cfg config.CacheConfig) *DigestCache {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &DigestCache{
		client: client,
		ttl:    cfg.TTLDuration(),
	}
}

// Key identifies a digest by its ordered subreddit list.
func Key(subreddits []string) string {
	return "subdigest:digest:" + strings.ToLower(strings.Join(subreddits, ","))
}

func (c *DigestCache) StoreDigest(ctx context.Context, digest *types.Digest) error {
	data, err := json.Marshal(digest)
	if err != nil {
		return fmt.Errorf("failed to marshal digest: %w", err)
	}

	key := Key(digest.Subreddits)
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store digest in redis: %w", err)
	}

	slog.Debug("Cached digest", "key", key, "posts", len(digest.Posts))
	return nil
}

// LoadDigest returns the cached digest for the subreddit list, or nil
// when nothing (valid) is cached.
func (c *DigestCache) LoadDigest(ctx context.Context, subreddits []string) (*types.Digest, error) {
	data, err := c.client.Get(ctx, Key(subreddits)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load digest from redis: %w", err)
	}

	var digest types.Digest
	if err := json.Unmarshal(data, &digest); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached digest: %w", err)
	}

	return &digest, nil
}

func (c *DigestCache) Close() error {
	return c.client.Close()
}
