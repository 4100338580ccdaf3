// Package cache keeps the outcome of diff queries keyed by the pair of
// compared nodes, in memory or in Redis.
package cache

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/HyperAST/HyperAST-sub006/internal/actions"
	"github.com/HyperAST/HyperAST-sub006/internal/pkg/errors"
)

// Metrics is the interface for recording cache metrics.
// This allows the cache to be decoupled from the metrics package.
type Metrics interface {
	RecordCacheHit(cacheType string)
	RecordCacheMiss(cacheType string)
	UpdateCacheSize(cacheType string, size int)
}

// Entry is a cached diff outcome.
type Entry struct {
	Summary actions.Summary  `json:"summary"`
	Mapped  int              `json:"mapped"`
	SrcSize int              `json:"src_size"`
	DstSize int              `json:"dst_size"`
	Actions []actions.Action `json:"actions,omitempty"`
}

// Cache stores diff outcomes. Node ids are only meaningful for one store, so
// a cache must not outlive the stores its keys were computed on, unless
// keys are namespaced per store.
type Cache interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, e Entry) error
	Stats() Stats
	Close() error
}

// Stats holds cache statistics.
type Stats struct {
	Type    string `json:"type"`
	Size    int    `json:"size"`
	MaxSize int    `json:"max_size"`
	Hits    int64  `json:"hits"`
	Misses  int64  `json:"misses"`
}

// LRU is an in-memory cache evicting the least recently used entry.
type LRU struct {
	mu      sync.RWMutex
	entries map[string]Entry
	maxSize int
	order   []string // LRU order
	metrics Metrics
	hits    int64
	misses  int64
}

// NewLRU creates a new in-memory cache.
func NewLRU(maxSize int) *LRU {
	if maxSize <= 0 {
		maxSize = 10000
	}
	return &LRU{
		entries: make(map[string]Entry),
		maxSize: maxSize,
		order:   make([]string, 0, maxSize),
	}
}

// SetMetrics sets the metrics recorder for this cache.
func (c *LRU) SetMetrics(metrics Metrics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics = metrics
}

// Get retrieves an entry.
func (c *LRU) Get(_ context.Context, key string) (Entry, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		if c.metrics != nil {
			c.metrics.RecordCacheMiss("diff")
		}
		return Entry{}, false, nil
	}
	c.hits++
	if c.metrics != nil {
		c.metrics.RecordCacheHit("diff")
	}
	c.moveToEnd(key)
	return clone(e), true, nil
}

// Set stores an entry.
func (c *LRU) Set(_ context.Context, key string, e Entry) error {
	e = clone(e)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; exists {
		c.entries[key] = e
		c.moveToEnd(key)
		return nil
	}

	for len(c.entries) >= c.maxSize && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	c.entries[key] = e
	c.order = append(c.order, key)

	if c.metrics != nil {
		c.metrics.UpdateCacheSize("diff", len(c.entries))
	}
	return nil
}

// moveToEnd moves a key to the end of the LRU order (must hold lock).
func (c *LRU) moveToEnd(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			c.order = append(c.order, key)
			return
		}
	}
}

// Clear clears the cache.
func (c *LRU) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]Entry)
	c.order = make([]string, 0, c.maxSize)
	if c.metrics != nil {
		c.metrics.UpdateCacheSize("diff", 0)
	}
}

// Stats returns cache statistics.
func (c *LRU) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		Type:    "memory",
		Size:    len(c.entries),
		MaxSize: c.maxSize,
		Hits:    c.hits,
		Misses:  c.misses,
	}
}

// Close is a no-op.
func (c *LRU) Close() error { return nil }

// clone copies the actions so callers cannot mutate cached entries.
func clone(e Entry) Entry {
	if e.Actions == nil {
		return e
	}
	as := make([]actions.Action, len(e.Actions))
	for i, a := range e.Actions {
		a.Path.Ori = slices.Clone(a.Path.Ori)
		a.Path.Mid = slices.Clone(a.Path.Mid)
		if a.From != nil {
			from := *a.From
			from.Ori = slices.Clone(from.Ori)
			from.Mid = slices.Clone(from.Mid)
			a.From = &from
		}
		as[i] = a
	}
	e.Actions = as
	return e
}

// Open creates the cache of the given type: "memory" or "redis".
func Open(typ, redisURL, namespace string, size int, ttl time.Duration) (Cache, error) {
	switch typ {
	case "", "memory":
		return NewLRU(size), nil
	case "redis":
		return NewRedis(redisURL, namespace, ttl)
	default:
		return nil, errors.ValidationError(fmt.Sprintf("unknown cache type %q", typ))
	}
}
