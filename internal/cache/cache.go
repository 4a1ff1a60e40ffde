package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"myautowhiz-backend/internal/metrics"
)

// Cache stores JSON-encoded values with a TTL.
type Cache interface {
	// Get decodes the cached value into dest and reports whether it was found.
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Ping(ctx context.Context) error
}

// Connect opens a Redis client from a redis:// URL and verifies it answers.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.MaxRetries = 2

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// RedisCache is a Cache backed by Redis.
type RedisCache struct {
	client    *redis.Client
	namespace string
	timeout   time.Duration
}

// NewRedisCache wraps client; keys are prefixed with namespace.
func NewRedisCache(client *redis.Client, namespace string) *RedisCache {
	return &RedisCache{client: client, namespace: namespace, timeout: 2 * time.Second}
}

func (r *RedisCache) key(k string) string {
	return r.namespace + ":" + k
}

func (r *RedisCache) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

func wrapRedisError(operation string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s redis operation timed out: %w", operation, err)
	}
	return fmt.Errorf("%s redis operation failed: %w", operation, err)
}

// Get implements Cache.
func (r *RedisCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.CacheLookups.WithLabelValues(r.namespace, "miss").Inc()
		return false, nil
	}
	if err != nil {
		metrics.CacheLookups.WithLabelValues(r.namespace, "error").Inc()
		return false, wrapRedisError("get", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		metrics.CacheLookups.WithLabelValues(r.namespace, "error").Inc()
		return false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	metrics.CacheLookups.WithLabelValues(r.namespace, "hit").Inc()
	return true, nil
}

// Set implements Cache.
func (r *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	if err := r.client.Set(ctx, r.key(key), data, ttl).Err(); err != nil {
		return wrapRedisError("set", err)
	}
	return nil
}

// Ping implements Cache.
func (r *RedisCache) Ping(ctx context.Context) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	return r.client.Ping(ctx).Err()
}

// Noop is used when no Redis is configured; every lookup misses.
type Noop struct{}

func (Noop) Get(context.Context, string, interface{}) (bool, error)        { return false, nil }
func (Noop) Set(context.Context, string, interface{}, time.Duration) error { return nil }
func (Noop) Ping(context.Context) error                                    { return nil }

// GetOrLoad returns the cached value for key, calling load and caching its result on a miss.
// Cache failures are logged and never fail the lookup.
func GetOrLoad[T any](ctx context.Context, c Cache, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var cached T
	found, err := c.Get(ctx, key, &cached)
	if err != nil {
		logrus.WithError(err).WithField("key", key).Warn("cache read failed")
	}
	if found {
		return cached, nil
	}

	value, err := load(ctx)
	if err != nil {
		return value, err
	}
	if err := c.Set(ctx, key, value, ttl); err != nil {
		logrus.WithError(err).WithField("key", key).Warn("cache write failed")
	}
	return value, nil
}
