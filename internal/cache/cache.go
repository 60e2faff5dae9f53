package cache

import (
	"log/slog"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Cache is a typed wrapper over an in-process TTL cache. The server
// uses it for rendered feed documents.
type Cache[K comparable, V any] struct {
	cache       *gocache.Cache
	mu          sync.RWMutex
	keyToString func(K) string
}

type Config struct {
	TTL time.Duration
}

func NewCache[K comparable, V any](config Config, keyToString func(K) string) *Cache[K, V] {
	if config.TTL == 0 {
		config.TTL = 1 * time.Hour
	}

	return &Cache[K, V]{
		cache:       gocache.New(config.TTL, config.TTL/2),
		keyToString: keyToString,
	}
}

func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	value, found := c.cache.Get(c.keyToString(key))
	if !found {
		var zero V
		return zero, false
	}

	if typedValue, ok := value.(V); ok {
		return typedValue, true
	}

	var zero V
	return zero, false
}

func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stringKey := c.keyToString(key)
	c.cache.Set(stringKey, value, gocache.DefaultExpiration)
	slog.Debug("Cache stored key", "key", stringKey)
}

func (c *Cache[K, V]) InvalidatePattern(patternPrefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	items := c.cache.Items()
	for key := range items {
		if len(key) >= len(patternPrefix) && key[:len(patternPrefix)] == patternPrefix {
			c.cache.Delete(key)
		}
	}
	slog.Debug("Cache invalidated pattern", "prefix", patternPrefix)
}

func (c *Cache[K, V]) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache.Flush()
	return nil
}
