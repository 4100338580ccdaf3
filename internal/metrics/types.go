// Package metrics provides Prometheus-compatible metrics for tree generation
// and diff queries.
package metrics

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// desc names a metric family.
type desc struct {
	name   string
	help   string
	labels map[string]string
}

// Name returns the metric name.
func (d *desc) Name() string { return d.name }

// Help returns the metric help text.
func (d *desc) Help() string { return d.help }

// Labels returns a copy of the metric labels.
func (d *desc) Labels() map[string]string {
	if d.labels == nil {
		return map[string]string{}
	}
	return maps.Clone(d.labels)
}

// Counter represents a monotonically increasing counter.
type Counter struct {
	desc
	value atomic.Int64
}

// NewCounter creates a new counter.
func NewCounter(name, help string, labels map[string]string) *Counter {
	return &Counter{desc: desc{name: name, help: help, labels: labels}}
}

// Inc increments the counter by 1.
func (c *Counter) Inc() {
	c.value.Add(1)
}

// Add adds delta to the counter. Negative deltas are ignored.
func (c *Counter) Add(delta int64) {
	if delta < 0 {
		return
	}
	c.value.Add(delta)
}

// Value returns the current counter value.
func (c *Counter) Value() int64 {
	return c.value.Load()
}

// floatBits is a float64 updated atomically through its bit pattern.
type floatBits struct {
	bits atomic.Uint64
}

func (f *floatBits) load() float64 {
	return math.Float64frombits(f.bits.Load())
}

func (f *floatBits) store(v float64) {
	f.bits.Store(math.Float64bits(v))
}

func (f *floatBits) add(delta float64) {
	for {
		old := f.bits.Load()
		next := math.Float64bits(math.Float64frombits(old) + delta)
		if f.bits.CompareAndSwap(old, next) {
			return
		}
	}
}

// Gauge represents a value that can go up and down.
type Gauge struct {
	desc
	value floatBits
}

// NewGauge creates a new gauge.
func NewGauge(name, help string, labels map[string]string) *Gauge {
	return &Gauge{desc: desc{name: name, help: help, labels: labels}}
}

// Set sets the gauge to value.
func (g *Gauge) Set(value float64) { g.value.store(value) }

// Inc increments the gauge by 1.
func (g *Gauge) Inc() { g.value.add(1) }

// Dec decrements the gauge by 1.
func (g *Gauge) Dec() { g.value.add(-1) }

// Add adds delta to the gauge.
func (g *Gauge) Add(delta float64) { g.value.add(delta) }

// Value returns the current gauge value.
func (g *Gauge) Value() float64 { return g.value.load() }

// Histogram counts observations into cumulative buckets.
type Histogram struct {
	desc
	buckets []float64

	mu     sync.Mutex
	counts []int64 // per bucket, last one is +Inf
	sum    float64
	count  int64
}

// DefaultBuckets are latency buckets in milliseconds.
var DefaultBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

// NewHistogram creates a new histogram with the given bucket upper bounds.
func NewHistogram(name, help string, buckets []float64) *Histogram {
	if len(buckets) == 0 {
		buckets = DefaultBuckets
	}
	buckets = slices.Clone(buckets)
	sort.Float64s(buckets)
	return &Histogram{
		desc:    desc{name: name, help: help},
		buckets: buckets,
		counts:  make([]int64, len(buckets)+1),
	}
}

// Observe adds a single observation.
func (h *Histogram) Observe(value float64) {
	i := sort.SearchFloat64s(h.buckets, value)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.sum += value
	h.count++
	h.counts[i]++
}

// Count returns the total count of observations.
func (h *Histogram) Count() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// Sum returns the sum of all observed values.
func (h *Histogram) Sum() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sum
}

// Buckets returns the bucket upper bounds.
func (h *Histogram) Buckets() []float64 {
	return slices.Clone(h.buckets)
}

// BucketCounts returns the cumulative count of each bucket, +Inf last.
func (h *Histogram) BucketCounts() []int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]int64, len(h.counts))
	var acc int64
	for i, c := range h.counts {
		acc += c
		out[i] = acc
	}
	return out
}

// Vec is a family of metrics of one kind partitioned by label values.
type Vec[M any] struct {
	name       string
	help       string
	labelNames []string
	newMember  func(labels map[string]string) M

	mu      sync.RWMutex
	members map[string]M
}

// CounterVec represents a counter with labels.
type CounterVec = Vec[*Counter]

// GaugeVec represents a gauge with labels.
type GaugeVec = Vec[*Gauge]

// HistogramVec represents a histogram with labels.
type HistogramVec = Vec[*Histogram]

// NewCounterVec creates a new counter vector.
func NewCounterVec(name, help string, labelNames []string) *CounterVec {
	return newVec(name, help, labelNames, func(l map[string]string) *Counter {
		return NewCounter(name, help, l)
	})
}

// NewGaugeVec creates a new gauge vector.
func NewGaugeVec(name, help string, labelNames []string) *GaugeVec {
	return newVec(name, help, labelNames, func(l map[string]string) *Gauge {
		return NewGauge(name, help, l)
	})
}

// NewHistogramVec creates a new histogram vector.
func NewHistogramVec(name, help string, labelNames []string, buckets []float64) *HistogramVec {
	return newVec(name, help, labelNames, func(l map[string]string) *Histogram {
		h := NewHistogram(name, help, buckets)
		h.labels = l
		return h
	})
}

func newVec[M any](name, help string, labelNames []string, mk func(map[string]string) M) *Vec[M] {
	return &Vec[M]{
		name:       name,
		help:       help,
		labelNames: labelNames,
		newMember:  mk,
		members:    make(map[string]M),
	}
}

// WithLabels returns the member with the given label values, creating it on
// first use. It panics if the number of values does not match the labels.
func (v *Vec[M]) WithLabels(labelValues ...string) M {
	if len(labelValues) != len(v.labelNames) {
		panic(fmt.Sprintf("%s: expected %d label values, got %d", v.name, len(v.labelNames), len(labelValues)))
	}
	labels := make(map[string]string, len(v.labelNames))
	for i, name := range v.labelNames {
		labels[name] = labelValues[i]
	}
	key := labelsToKey(labels)

	v.mu.RLock()
	m, ok := v.members[key]
	v.mu.RUnlock()
	if ok {
		return m
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if m, ok := v.members[key]; ok {
		return m
	}
	m = v.newMember(labels)
	v.members[key] = m
	return m
}

// GetAll returns the members ordered by label values.
func (v *Vec[M]) GetAll() []M {
	v.mu.RLock()
	defer v.mu.RUnlock()
	keys := slices.Sorted(maps.Keys(v.members))
	out := make([]M, len(keys))
	for i, k := range keys {
		out[i] = v.members[k]
	}
	return out
}

// Name returns the metric name.
func (v *Vec[M]) Name() string { return v.name }

// Help returns the metric help text.
func (v *Vec[M]) Help() string { return v.help }

// labelsToKey creates a stable key from a label map.
func labelsToKey(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, k := range slices.Sorted(maps.Keys(labels)) {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(k)
		sb.WriteString("=")
		sb.WriteString(labels[k])
	}
	return sb.String()
}
