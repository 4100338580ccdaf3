package metrics

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/HyperAST/HyperAST-sub006/internal/actions"
	"github.com/HyperAST/HyperAST-sub006/internal/pkg/errors"
	"github.com/HyperAST/HyperAST-sub006/internal/pkg/logger"
)

// Metrics holds all application metrics.
type Metrics struct {
	// Generation metrics
	FilesGenerated    *Counter
	GenerationLatency *Histogram
	NodesInterned     *Counter
	NodesReused       *Counter
	GenerationErrors  *CounterVec // labels: code

	// Store metrics
	StoreNodes  *Gauge
	StoreLabels *Gauge
	StoreTypes  *Gauge
	Revisions   *Gauge

	// Diff metrics
	DiffRequests      *Counter
	DiffLatency       *Histogram
	DiffPhaseDuration *HistogramVec // labels: phase
	DiffActions       *CounterVec   // labels: kind
	DiffScriptSize    *Histogram
	DiffErrors        *CounterVec // labels: code

	// System metrics
	GoroutineCount *Gauge
	MemoryUsage    *Gauge // in bytes
	Uptime         *Counter

	// Cache metrics
	CacheHits   *CounterVec // labels: type
	CacheMisses *CounterVec // labels: type
	CacheSize   *GaugeVec   // labels: type

	// Bus metrics
	BusEventsPublished *CounterVec   // labels: topic
	BusEventLatency    *HistogramVec // labels: topic
	BusErrors          *CounterVec   // labels: topic

	// HTTP metrics
	HTTPRequests         *CounterVec   // labels: method, path, status
	HTTPDuration         *HistogramVec // labels: method, path
	HTTPRequestsInFlight *Gauge
	HTTPRequestSize      *HistogramVec // labels: method, path

	// Time-series data for charts
	TimeSeries *TimeSeriesData

	// Redis storage (optional)
	redisStorage *RedisStorage

	startTime time.Time
	stop      chan struct{}
	closeOnce sync.Once
	mu        sync.RWMutex
}

// New creates a new metrics instance with in-memory history.
func New() *Metrics {
	return NewWithConfig("memory", "", logger.Discard())
}

// NewWithConfig creates a new metrics instance with the given history
// persistence, "memory" or "redis". When Redis cannot be reached the
// history stays in memory.
func NewWithConfig(persistence, redisURL string, log *logger.Logger) *Metrics {
	log = logger.OrDefault(log)

	var redisStorage *RedisStorage
	var timeSeries *TimeSeriesData

	if persistence == "redis" && redisURL != "" {
		storage, err := NewRedisStorage(redisURL)
		if err != nil {
			log.Warn("Redis unavailable for metrics history, keeping it in memory",
				"error", err.Error(),
			)
		} else {
			redisStorage = storage
			timeSeries = NewTimeSeriesDataWithRedis(redisStorage)
		}
	}

	if timeSeries == nil {
		timeSeries = NewTimeSeriesData()
	}

	m := &Metrics{
		FilesGenerated: NewCounter(
			"hyperast_files_generated_total",
			"Total number of files turned into trees",
			nil,
		),
		GenerationLatency: NewHistogram(
			"hyperast_generation_latency_ms",
			"Tree generation latency in milliseconds per file",
			[]float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		),
		NodesInterned: NewCounter(
			"hyperast_nodes_interned_total",
			"Total number of new nodes added to the store",
			nil,
		),
		NodesReused: NewCounter(
			"hyperast_nodes_reused_total",
			"Total number of generated nodes found already in the store",
			nil,
		),
		GenerationErrors: NewCounterVec(
			"hyperast_generation_errors_total",
			"Total number of failed generations",
			[]string{"code"},
		),

		StoreNodes: NewGauge(
			"hyperast_store_nodes",
			"Number of distinct nodes in the store",
			nil,
		),
		StoreLabels: NewGauge(
			"hyperast_store_labels",
			"Number of distinct labels in the store",
			nil,
		),
		StoreTypes: NewGauge(
			"hyperast_store_types",
			"Number of distinct node types",
			nil,
		),
		Revisions: NewGauge(
			"hyperast_revisions",
			"Number of file revisions tracked",
			nil,
		),

		DiffRequests: NewCounter(
			"hyperast_diff_requests_total",
			"Total number of diff queries",
			nil,
		),
		DiffLatency: NewHistogram(
			"hyperast_diff_latency_ms",
			"Diff query latency in milliseconds",
			[]float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		),
		DiffPhaseDuration: NewHistogramVec(
			"hyperast_diff_phase_duration_ms",
			"Diff phase duration in milliseconds",
			[]string{"phase"},
			[]float64{0.1, 0.5, 1, 5, 10, 25, 50, 100, 250, 1000, 5000},
		),
		DiffActions: NewCounterVec(
			"hyperast_diff_actions_total",
			"Total number of edit actions produced",
			[]string{"kind"},
		),
		DiffScriptSize: NewHistogram(
			"hyperast_diff_script_size",
			"Number of actions per edit script",
			[]float64{0, 1, 5, 10, 25, 50, 100, 250, 1000, 5000},
		),
		DiffErrors: NewCounterVec(
			"hyperast_diff_errors_total",
			"Total number of failed diff queries",
			[]string{"code"},
		),

		GoroutineCount: NewGauge(
			"hyperast_goroutines",
			"Number of goroutines",
			nil,
		),
		MemoryUsage: NewGauge(
			"hyperast_memory_bytes",
			"Memory usage in bytes",
			nil,
		),
		Uptime: NewCounter(
			"hyperast_uptime_seconds",
			"Application uptime in seconds",
			nil,
		),

		CacheHits: NewCounterVec(
			"hyperast_cache_hits_total",
			"Total number of diff cache hits",
			[]string{"type"},
		),
		CacheMisses: NewCounterVec(
			"hyperast_cache_misses_total",
			"Total number of diff cache misses",
			[]string{"type"},
		),
		CacheSize: NewGaugeVec(
			"hyperast_cache_size",
			"Current diff cache size",
			[]string{"type"},
		),

		BusEventsPublished: NewCounterVec(
			"hyperast_bus_events_published_total",
			"Total number of events published to the bus",
			[]string{"topic"},
		),
		BusEventLatency: NewHistogramVec(
			"hyperast_bus_event_latency_seconds",
			"Event bus latency in seconds",
			[]string{"topic"},
			[]float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		),
		BusErrors: NewCounterVec(
			"hyperast_bus_errors_total",
			"Total number of event bus errors",
			[]string{"topic"},
		),

		HTTPRequests: NewCounterVec(
			"hyperast_http_requests_total",
			"Total number of HTTP requests",
			[]string{"method", "path", "status"},
		),
		HTTPDuration: NewHistogramVec(
			"hyperast_http_request_duration_seconds",
			"HTTP request duration in seconds",
			[]string{"method", "path"},
			[]float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		),
		HTTPRequestsInFlight: NewGauge(
			"hyperast_http_requests_in_flight",
			"Number of HTTP requests currently being processed",
			nil,
		),
		HTTPRequestSize: NewHistogramVec(
			"hyperast_http_request_size_bytes",
			"HTTP request size in bytes",
			[]string{"method", "path"},
			[]float64{100, 1000, 10000, 100000, 1000000, 10000000},
		),

		TimeSeries:   timeSeries,
		redisStorage: redisStorage,
		startTime:    time.Now(),
		stop:         make(chan struct{}),
	}

	go m.collectSystemMetrics(15 * time.Second)

	return m
}

// collectSystemMetrics periodically collects system metrics until Close.
func (m *Metrics) collectSystemMetrics(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
		}
		m.GoroutineCount.Set(float64(runtime.NumGoroutine()))

		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)
		m.MemoryUsage.Set(float64(memStats.Alloc))

		m.Uptime.Add(int64(every / time.Second))
	}
}

// RecordGeneration records one file generation.
func (m *Metrics) RecordGeneration(latencyMs int64, interned, reused int, err error) {
	if err != nil {
		m.GenerationErrors.WithLabels(errorType(err)).Inc()
		return
	}
	m.FilesGenerated.Inc()
	m.GenerationLatency.Observe(float64(latencyMs))
	m.NodesInterned.Add(int64(interned))
	m.NodesReused.Add(int64(reused))

	if m.TimeSeries != nil {
		m.TimeSeries.RecordGeneration(interned)
	}
}

// RecordDiff records one diff query. Cached answers count as requests but
// not as latency samples of the algorithms.
func (m *Metrics) RecordDiff(latencyMs int64, summary actions.Summary, cached bool, err error) {
	m.DiffRequests.Inc()
	if err != nil {
		m.DiffErrors.WithLabels(errorType(err)).Inc()
		return
	}
	if !cached {
		m.DiffLatency.Observe(float64(latencyMs))
	}
	m.DiffScriptSize.Observe(float64(summary.Total()))
	for kind, n := range map[string]int{
		"insert":      summary.Inserts,
		"delete":      summary.Deletes,
		"update":      summary.Updates,
		"move":        summary.Moves,
		"move-update": summary.MoveUpdates,
	} {
		if n > 0 {
			m.DiffActions.WithLabels(kind).Add(int64(n))
		}
	}

	if m.TimeSeries != nil {
		m.TimeSeries.RecordDiff(float64(latencyMs), summary.Total())
	}
}

// RecordDiffPhases records the duration of the phases of one diff.
func (m *Metrics) RecordDiffPhases(phases map[string]float64) {
	for phase, ms := range phases {
		m.DiffPhaseDuration.WithLabels(phase).Observe(ms)
	}
}

// UpdateStoreStats updates the store size gauges.
func (m *Metrics) UpdateStoreStats(nodes, labels, types, revisions int) {
	m.StoreNodes.Set(float64(nodes))
	m.StoreLabels.Set(float64(labels))
	m.StoreTypes.Set(float64(types))
	m.Revisions.Set(float64(revisions))
}

// RecordBusPublish records event bus publish metrics.
func (m *Metrics) RecordBusPublish(topic string, latencyMs int64, err error) {
	m.BusEventsPublished.WithLabels(topic).Inc()
	m.BusEventLatency.WithLabels(topic).Observe(float64(latencyMs) / 1000.0)

	if err != nil {
		m.BusErrors.WithLabels(topic).Inc()
	}
}

// RecordCacheHit records a cache hit.
func (m *Metrics) RecordCacheHit(cacheType string) {
	m.CacheHits.WithLabels(cacheType).Inc()
}

// RecordCacheMiss records a cache miss.
func (m *Metrics) RecordCacheMiss(cacheType string) {
	m.CacheMisses.WithLabels(cacheType).Inc()
}

// UpdateCacheSize updates the cache size.
func (m *Metrics) UpdateCacheSize(cacheType string, size int) {
	m.CacheSize.WithLabels(cacheType).Set(float64(size))
}

// RecordHTTP records HTTP request metrics.
// This is called by the HTTP middleware.
func (m *Metrics) RecordHTTP(method, path string, status int, durationSeconds float64, sizeBytes int64) {
	normalizedPath := normalizePath(path)

	m.HTTPRequests.WithLabels(method, normalizedPath, statusCode(status)).Inc()
	m.HTTPDuration.WithLabels(method, normalizedPath).Observe(durationSeconds)

	if sizeBytes > 0 {
		m.HTTPRequestSize.WithLabels(method, normalizedPath).Observe(float64(sizeBytes))
	}
}

// errorType labels errors by their code.
func errorType(err error) string {
	if code := errors.CodeOf(err); code != "" {
		return code
	}
	return "generic"
}

// Close stops the system collector, flushes the history buckets not yet
// persisted and releases the Redis connection.
func (m *Metrics) Close() error {
	var err error
	m.closeOnce.Do(func() {
		close(m.stop)
		if m.redisStorage == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if m.TimeSeries != nil {
			err = m.TimeSeries.Flush(ctx)
		}
		if cerr := m.redisStorage.Close(); err == nil {
			err = cerr
		}
	})
	return err
}

// SetHistoryTTL sets how long persisted history points are kept. It has no
// effect on in-memory history, whose retention is fixed.
func (m *Metrics) SetHistoryTTL(ttl time.Duration) {
	if m.redisStorage != nil && ttl > 0 {
		m.redisStorage.SetTTL(ttl)
	}
}

// StorageStats describes the Redis history backend, nil when the history
// lives in memory.
func (m *Metrics) StorageStats(ctx context.Context) (*StorageStats, error) {
	if m.redisStorage == nil {
		return nil, nil
	}
	st, err := m.redisStorage.GetStats(ctx)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// StartTime returns when the metrics were created.
func (m *Metrics) StartTime() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.startTime
}
