package metrics

import (
	"context"
	"sync"
	"time"
)

// DataPoint represents a single time-series data point.
type DataPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// MetricHistory stores time-series data with automatic bucketing and retention.
type MetricHistory struct {
	mu          sync.RWMutex
	buckets     []DataPoint
	bucketSize  time.Duration // Duration per bucket (e.g., 5 minutes)
	maxBuckets  int           // Max buckets to retain (e.g., 12 = 1 hour at 5-min buckets)
	accumulator float64       // Current bucket accumulator
	count       int64         // Current bucket count
	lastBucket  time.Time     // Start time of current bucket
	storage     *RedisStorage // Optional Redis backend
	metricName  string        // Metric name for Redis storage
	sums        bool          // Buckets hold sums instead of averages
}

// NewMetricHistory creates a new metric history with specified bucket size and retention.
// bucketSize: duration per data point (e.g., 5*time.Minute)
// maxBuckets: number of buckets to retain (e.g., 12 for 1 hour at 5-min buckets)
func NewMetricHistory(bucketSize time.Duration, maxBuckets int) *MetricHistory {
	return &MetricHistory{
		buckets:    make([]DataPoint, 0, maxBuckets),
		bucketSize: bucketSize,
		maxBuckets: maxBuckets,
		lastBucket: time.Now().Truncate(bucketSize),
	}
}

// NewMetricHistoryWithRedis creates a new metric history with Redis persistence.
// If Redis connection fails, falls back to in-memory only (logs warning).
func NewMetricHistoryWithRedis(bucketSize time.Duration, maxBuckets int, storage *RedisStorage, metricName string) *MetricHistory {
	h := &MetricHistory{
		buckets:    make([]DataPoint, 0, maxBuckets),
		bucketSize: bucketSize,
		maxBuckets: maxBuckets,
		lastBucket: time.Now().Truncate(bucketSize),
		storage:    storage,
		metricName: metricName,
	}

	// Try to load existing data from Redis
	if storage != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		since := time.Now().Add(-time.Duration(maxBuckets) * bucketSize)
		if dataPoints, err := storage.LoadHistory(ctx, metricName, since); err == nil && len(dataPoints) > 0 {
			h.buckets = dataPoints
		}
	}

	return h
}

// Record adds a value to the current bucket.
func (h *MetricHistory) Record(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := time.Now()
	currentBucket := now.Truncate(h.bucketSize)

	// Check if we need to finalize the previous bucket
	if currentBucket.After(h.lastBucket) {
		h.finalizeBucket()
		h.lastBucket = currentBucket
	}

	h.accumulator += value
	h.count++
}

// RecordCount increments the count for the current bucket (for rate metrics).
func (h *MetricHistory) RecordCount() {
	h.RecordSum(1)
}

// finalizeBucket saves the current bucket and starts a new one.
// Must be called with lock held.
func (h *MetricHistory) finalizeBucket() {
	if h.count == 0 {
		return
	}

	dp := DataPoint{
		Timestamp: h.lastBucket,
		Value:     h.value(),
	}

	h.buckets = append(h.buckets, dp)

	// Persist to Redis if available (non-blocking)
	if h.storage != nil && h.metricName != "" {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = h.storage.SaveDataPoint(ctx, h.metricName, dp)
		}()
	}

	// Trim to max buckets
	if len(h.buckets) > h.maxBuckets {
		h.buckets = h.buckets[len(h.buckets)-h.maxBuckets:]
	}

	h.accumulator = 0
	h.count = 0
}

// value is the current bucket value. Must be called with lock held.
func (h *MetricHistory) value() float64 {
	if h.sums {
		return h.accumulator
	}
	return h.accumulator / float64(h.count)
}

// RecordSum adds to the sum of the current bucket (for count metrics). A
// history should be fed either through Record or through RecordSum.
func (h *MetricHistory) RecordSum(value float64) {
	h.mu.Lock()
	h.sums = true
	h.mu.Unlock()
	h.Record(value)
}

// GetHistory returns a copy of the finalized time-series data.
func (h *MetricHistory) GetHistory() []DataPoint {
	h.mu.Lock()
	defer h.mu.Unlock()

	currentBucket := time.Now().Truncate(h.bucketSize)
	if currentBucket.After(h.lastBucket) && h.count > 0 {
		h.finalizeBucket()
		h.lastBucket = currentBucket
	}

	result := make([]DataPoint, len(h.buckets))
	copy(result, h.buckets)
	return result
}

// GetHistoryWithCurrent returns history including any unflushed current bucket data.
func (h *MetricHistory) GetHistoryWithCurrent() []DataPoint {
	h.mu.RLock()
	defer h.mu.RUnlock()

	result := make([]DataPoint, len(h.buckets))
	copy(result, h.buckets)

	// Add current bucket if it has data
	if h.count > 0 {
		result = append(result, DataPoint{
			Timestamp: h.lastBucket,
			Value:     h.value(),
		})
	}

	return result
}

// Flush writes every retained bucket, the current one included, to the
// Redis backend. It does nothing for in-memory histories.
func (h *MetricHistory) Flush(ctx context.Context) error {
	if h.storage == nil || h.metricName == "" {
		return nil
	}
	return h.storage.SaveBatch(ctx, h.metricName, h.GetHistoryWithCurrent())
}

// GetHistorySince returns data points since the given time.
func (h *MetricHistory) GetHistorySince(since time.Time) []DataPoint {
	all := h.GetHistoryWithCurrent()
	result := make([]DataPoint, 0, len(all))
	for _, dp := range all {
		if !dp.Timestamp.Before(since) {
			result = append(result, dp)
		}
	}
	return result
}

// TimeSeriesData holds the series served by the history endpoint.
type TimeSeriesData struct {
	Generations  *MetricHistory // Nodes interned per bucket
	DiffRate     *MetricHistory // Diffs per bucket
	DiffLatency  *MetricHistory // Average diff latency per bucket
	ScriptLength *MetricHistory // Average edit script length per bucket
}

const (
	historyBucket  = 5 * time.Minute
	historyBuckets = 12 // 1 hour retention
)

// NewTimeSeriesData creates an in-memory time-series collection with 5-minute
// buckets and one hour of retention.
func NewTimeSeriesData() *TimeSeriesData {
	return &TimeSeriesData{
		Generations:  NewMetricHistory(historyBucket, historyBuckets),
		DiffRate:     NewMetricHistory(historyBucket, historyBuckets),
		DiffLatency:  NewMetricHistory(historyBucket, historyBuckets),
		ScriptLength: NewMetricHistory(historyBucket, historyBuckets),
	}
}

// NewTimeSeriesDataWithRedis creates a time-series collection persisted to
// storage and reloaded from it.
func NewTimeSeriesDataWithRedis(storage *RedisStorage) *TimeSeriesData {
	return &TimeSeriesData{
		Generations:  NewMetricHistoryWithRedis(historyBucket, historyBuckets, storage, "generations"),
		DiffRate:     NewMetricHistoryWithRedis(historyBucket, historyBuckets, storage, "diff_rate"),
		DiffLatency:  NewMetricHistoryWithRedis(historyBucket, historyBuckets, storage, "diff_latency"),
		ScriptLength: NewMetricHistoryWithRedis(historyBucket, historyBuckets, storage, "script_length"),
	}
}

// RecordGeneration records the nodes interned by one generation.
func (t *TimeSeriesData) RecordGeneration(interned int) {
	t.Generations.RecordSum(float64(interned))
}

// RecordDiff records one diff query.
func (t *TimeSeriesData) RecordDiff(latencyMs float64, actions int) {
	t.DiffRate.RecordCount()
	t.DiffLatency.Record(latencyMs)
	t.ScriptLength.Record(float64(actions))
}

// Flush persists the pending buckets of every series.
func (t *TimeSeriesData) Flush(ctx context.Context) error {
	for _, h := range []*MetricHistory{t.Generations, t.DiffRate, t.DiffLatency, t.ScriptLength} {
		if err := h.Flush(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Series returns the history named name.
func (t *TimeSeriesData) Series(name string) (*MetricHistory, bool) {
	switch name {
	case "generations":
		return t.Generations, true
	case "diff_rate":
		return t.DiffRate, true
	case "diff_latency":
		return t.DiffLatency, true
	case "script_length":
		return t.ScriptLength, true
	}
	return nil, false
}
