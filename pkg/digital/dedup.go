package digital

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/ticnexus/nexus/pkg/config"
)

// Deduper suppresses repeated events for the same key within a window.
type Deduper interface {
	// First marks key as seen and reports whether it was not already seen
	// within window.
	First(ctx context.Context, key string, window time.Duration) (bool, error)
	Close() error
}

// NewDeduper returns a redis-backed deduper when redis_url is configured, so
// that several API processes share one window, and an in-process one
// otherwise.
func NewDeduper(ctx context.Context, cfg *config.Config) (Deduper, error) {
	if cfg.RedisURL == "" {
		return NewMemoryDeduper(), nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid redis_url")
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "failed to connect to redis")
	}
	return &redisDeduper{rdb: rdb}, nil
}

type redisDeduper struct {
	rdb *redis.Client
}

func (d *redisDeduper) First(ctx context.Context, key string, window time.Duration) (bool, error) {
	ok, err := d.rdb.SetNX(ctx, key, "1", window).Result()
	return ok, errors.WithStack(err)
}

func (d *redisDeduper) Close() error {
	return errors.WithStack(d.rdb.Close())
}

type memoryDeduper struct {
	mu   sync.Mutex
	seen map[string]time.Time
	now  func() time.Time
}

func NewMemoryDeduper() Deduper {
	return &memoryDeduper{seen: map[string]time.Time{}, now: time.Now}
}

func (d *memoryDeduper) First(_ context.Context, key string, window time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	for k, expires := range d.seen {
		if !now.Before(expires) {
			delete(d.seen, k)
		}
	}

	if _, ok := d.seen[key]; ok {
		return false, nil
	}
	d.seen[key] = now.Add(window)
	return true, nil
}

func (d *memoryDeduper) Close() error {
	return nil
}
