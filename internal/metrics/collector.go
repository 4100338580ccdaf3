package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// StoreSizes are the sizes of the interning stores and of the revision
// tracker.
type StoreSizes struct {
	Nodes     int `json:"nodes"`
	Labels    int `json:"labels"`
	Types     int `json:"types"`
	Revisions int `json:"revisions"`
	Files     int `json:"files"`
}

// Snapshot is a point-in-time view of the main metrics.
type Snapshot struct {
	Store StoreSizes `json:"store"`

	FilesGenerated int64   `json:"files_generated"`
	NodesInterned  int64   `json:"nodes_interned"`
	NodesReused    int64   `json:"nodes_reused"`
	DiffRequests   int64   `json:"diff_requests"`
	DiffLatencyMs  float64 `json:"diff_latency_avg_ms"`
	CacheHits      int64   `json:"cache_hits"`
	CacheMisses    int64   `json:"cache_misses"`

	Goroutines    int64 `json:"goroutines"`
	MemoryBytes   int64 `json:"memory_bytes"`
	UptimeSeconds int64 `json:"uptime_seconds"`

	// History is set when the metrics history is persisted to Redis.
	History *StorageStats `json:"history_storage,omitempty"`
}

// Collector samples the stores into the store gauges.
type Collector struct {
	metrics *Metrics
	sizes   func() StoreSizes
}

// NewCollector creates a collector reading sizes from the given function.
func NewCollector(metrics *Metrics, sizes func() StoreSizes) *Collector {
	return &Collector{
		metrics: metrics,
		sizes:   sizes,
	}
}

// Collect updates the store gauges and returns a snapshot.
func (c *Collector) Collect(ctx context.Context) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	var s Snapshot
	if c.sizes != nil {
		s.Store = c.sizes()
		c.metrics.UpdateStoreStats(s.Store.Nodes, s.Store.Labels, s.Store.Types, s.Store.Revisions)
	}

	m := c.metrics
	s.FilesGenerated = m.FilesGenerated.Value()
	s.NodesInterned = m.NodesInterned.Value()
	s.NodesReused = m.NodesReused.Value()
	s.DiffRequests = m.DiffRequests.Value()
	if n := m.DiffLatency.Count(); n > 0 {
		s.DiffLatencyMs = m.DiffLatency.Sum() / float64(n)
	}
	for _, h := range m.CacheHits.GetAll() {
		s.CacheHits += h.Value()
	}
	for _, h := range m.CacheMisses.GetAll() {
		s.CacheMisses += h.Value()
	}

	s.Goroutines = int64(m.GoroutineCount.Value())
	s.MemoryBytes = int64(m.MemoryUsage.Value())
	s.UptimeSeconds = int64(time.Since(m.StartTime()).Seconds())
	// an unreachable Redis only hides the storage section
	if st, err := m.StorageStats(ctx); err == nil {
		s.History = st
	}
	return s, nil
}

// Run collects every interval until ctx is done.
func (c *Collector) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := c.Collect(ctx); err != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Summary returns a human-readable summary of current metrics.
func (c *Collector) Summary(ctx context.Context) string {
	s, err := c.Collect(ctx)
	if err != nil {
		return "Error collecting metrics"
	}

	var sb strings.Builder
	sb.WriteString("HyperAST Metrics Summary\n")
	sb.WriteString("========================\n\n")
	fmt.Fprintf(&sb, "Nodes: %s (%s labels, %s types)\n", formatInt(int64(s.Store.Nodes)), formatInt(int64(s.Store.Labels)), formatInt(int64(s.Store.Types)))
	fmt.Fprintf(&sb, "Files: %s (%s revisions)\n", formatInt(int64(s.Store.Files)), formatInt(int64(s.Store.Revisions)))
	fmt.Fprintf(&sb, "Generations: %s (%s nodes interned, %s reused)\n", formatInt(s.FilesGenerated), formatInt(s.NodesInterned), formatInt(s.NodesReused))
	fmt.Fprintf(&sb, "Diffs: %s (avg %.1f ms)\n", formatInt(s.DiffRequests), s.DiffLatencyMs)
	fmt.Fprintf(&sb, "Cache: %s hits, %s misses\n", formatInt(s.CacheHits), formatInt(s.CacheMisses))
	fmt.Fprintf(&sb, "Memory Usage: %s\n", formatBytes(s.MemoryBytes))
	fmt.Fprintf(&sb, "Uptime: %s\n", formatDuration(s.UptimeSeconds))
	return sb.String()
}

func formatInt(n int64) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 1000000 {
		return fmt.Sprintf("%.1fk", float64(n)/1000)
	}
	return fmt.Sprintf("%.1fM", float64(n)/1000000)
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func formatDuration(seconds int64) string {
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	if seconds < 3600 {
		return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
	}
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	return fmt.Sprintf("%dh %dm", hours, minutes)
}
