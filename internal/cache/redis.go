package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/HyperAST/HyperAST-sub006/internal/pkg/errors"
)

// Redis stores entries as JSON strings with a TTL.
type Redis struct {
	client  *redis.Client
	prefix  string
	ttl     time.Duration
	metrics Metrics
	hits    atomic.Int64
	misses  atomic.Int64
}

// NewRedis connects to url. Returns error if connection fails.
func NewRedis(url, namespace string, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return newRedis(client, namespace, ttl), nil
}

func newRedis(client *redis.Client, namespace string, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Redis{
		client: client,
		prefix: "hyperast:diff:" + namespace + ":",
		ttl:    ttl,
	}
}

// SetMetrics sets the metrics recorder for this cache.
func (c *Redis) SetMetrics(metrics Metrics) {
	c.metrics = metrics
}

// Get retrieves an entry.
func (c *Redis) Get(ctx context.Context, key string) (Entry, bool, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err == redis.Nil {
		c.misses.Add(1)
		if c.metrics != nil {
			c.metrics.RecordCacheMiss("diff")
		}
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, errors.CacheError("reading diff entry", err)
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, false, errors.CacheError("decoding diff entry", err).WithDetail("key", key)
	}
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.RecordCacheHit("diff")
	}
	return e, true, nil
}

// Set stores an entry.
func (c *Redis) Set(ctx context.Context, key string, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return errors.CacheError("encoding diff entry", err)
	}
	if err := c.client.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
		return errors.CacheError("writing diff entry", err)
	}
	return nil
}

// Stats returns cache statistics. Size is not tracked for Redis.
func (c *Redis) Stats() Stats {
	return Stats{
		Type:   "redis",
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
	}
}

// Close closes the Redis connection.
func (c *Redis) Close() error {
	return c.client.Close()
}
