package metrics

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// DefaultQuantiles are the percentile ranks reported in every Stats.
var DefaultQuantiles = []float64{50, 75, 90, 95, 99, 99.9}

// Collector aggregates iteration reports. It is fed by a single consumer
// goroutine (see Consume) and may be read concurrently through Stats.
type Collector struct {
	mu           sync.Mutex
	hist         *hdrhistogram.Histogram
	successes    int64
	failures     int64
	warmup       int64
	bytes        uint64
	items        uint64
	minLatency   time.Duration
	maxLatency   time.Duration
	sumLatency   time.Duration
	errorsByType map[string]int64
	start        time.Time
	end          time.Time
	lastReport   time.Time
}

// Stats represents aggregated metrics.
type Stats struct {
	Total            int64         `json:"total" yaml:"total"`
	Successes        int64         `json:"successes" yaml:"successes"`
	Failures         int64         `json:"failures" yaml:"failures"`
	Warmup           int64         `json:"warmup" yaml:"warmup"`
	Bytes            uint64        `json:"bytes" yaml:"bytes"`
	Items            uint64        `json:"items" yaml:"items"`
	FailureRate      float64       `json:"failure_rate" yaml:"failure_rate"`
	MinLatency       time.Duration `json:"-" yaml:"-"`
	MaxLatency       time.Duration `json:"-" yaml:"-"`
	MeanLatency      time.Duration `json:"-" yaml:"-"`
	P50Latency       time.Duration `json:"-" yaml:"-"`
	P90Latency       time.Duration `json:"-" yaml:"-"`
	P95Latency       time.Duration `json:"-" yaml:"-"`
	P99Latency       time.Duration `json:"-" yaml:"-"`
	P999Latency      time.Duration `json:"-" yaml:"-"`
	Duration         time.Duration `json:"-" yaml:"-"`
	IterationsPerSec float64       `json:"iterations_per_sec" yaml:"iterations_per_sec"`
	BytesPerSec      float64       `json:"bytes_per_sec" yaml:"bytes_per_sec"`
	ItemsPerSec      float64       `json:"items_per_sec" yaml:"items_per_sec"`
	Percentiles      []Percentile  `json:"percentiles" yaml:"percentiles"`

	// JSON-friendly millisecond fields.
	MinLatencyMs  float64        `json:"min_latency_ms" yaml:"min_latency_ms"`
	MaxLatencyMs  float64        `json:"max_latency_ms" yaml:"max_latency_ms"`
	MeanLatencyMs float64        `json:"mean_latency_ms" yaml:"mean_latency_ms"`
	P50LatencyMs  float64        `json:"p50_latency_ms" yaml:"p50_latency_ms"`
	P90LatencyMs  float64        `json:"p90_latency_ms" yaml:"p90_latency_ms"`
	P95LatencyMs  float64        `json:"p95_latency_ms" yaml:"p95_latency_ms"`
	P99LatencyMs  float64        `json:"p99_latency_ms" yaml:"p99_latency_ms"`
	P999LatencyMs float64        `json:"p999_latency_ms" yaml:"p999_latency_ms"`
	DurationMs    float64        `json:"duration_ms" yaml:"duration_ms"`
	Errors        map[string]int `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// Percentile is one latency quantile of a Stats.
type Percentile struct {
	Quantile  float64       `json:"quantile" yaml:"quantile"`
	Latency   time.Duration `json:"-" yaml:"-"`
	LatencyMs float64       `json:"latency_ms" yaml:"latency_ms"`
}

func NewCollector() *Collector {
	// Track latencies from 1µs up to 60s with 3 significant figures.
	h := hdrhistogram.New(1, 60_000_000, 3)
	return &Collector{
		hist:         h,
		errorsByType: make(map[string]int64),
		start:        time.Now(),
	}
}

// Start marks the beginning of the measured window and unfreezes the clock.
func (c *Collector) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.start = time.Now()
	c.end = time.Time{}
}

// Stop freezes the measured window; later Stats calls report the same elapsed time.
func (c *Collector) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.end.IsZero() {
		c.end = time.Now()
	}
}

// Elapsed returns the length of the measured window so far.
func (c *Collector) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.elapsedLocked()
}

func (c *Collector) elapsedLocked() time.Duration {
	end := c.end
	if end.IsZero() {
		end = time.Now()
	}
	if d := end.Sub(c.start); d > 0 {
		return d
	}
	return 0
}

// Consume records every report received on reports until the channel is closed.
func (c *Collector) Consume(reports <-chan IterationReport) {
	for r := range reports {
		c.Record(r)
	}
}

// Record adds a single report. Warmup reports only advance the warmup counter.
func (c *Collector) Record(r IterationReport) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if finished := r.StartedAt.Add(r.Duration); finished.After(c.lastReport) {
		c.lastReport = finished
	}
	if r.Warmup {
		c.warmup++
		return
	}

	latency := r.Duration
	if latency < 0 {
		latency = 0
	}
	us := latency.Microseconds()
	if us < c.hist.LowestTrackableValue() {
		us = c.hist.LowestTrackableValue()
	}
	if us > c.hist.HighestTrackableValue() {
		us = c.hist.HighestTrackableValue()
	}
	_ = c.hist.RecordValue(us)
	c.sumLatency += latency

	if c.successes+c.failures == 0 || latency < c.minLatency {
		c.minLatency = latency
	}
	if latency > c.maxLatency {
		c.maxLatency = latency
	}

	if r.Err == nil {
		c.successes++
		c.bytes += r.Bytes
		c.items += r.Items
		return
	}
	c.failures++
	errorType := ErrorCategory(r.Err)
	c.errorsByType[errorType]++
}

// Snapshot returns Stats over the collector's own measured window.
func (c *Collector) Snapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statsLocked(c.elapsedLocked())
}

// Stats computes aggregated statistics using the given elapsed time for rates.
func (c *Collector) Stats(elapsed time.Duration) Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statsLocked(elapsed)
}

func (c *Collector) statsLocked(elapsed time.Duration) Stats {
	total := c.successes + c.failures
	stats := Stats{
		Total:      total,
		Successes:  c.successes,
		Failures:   c.failures,
		Warmup:     c.warmup,
		Bytes:      c.bytes,
		Items:      c.items,
		MinLatency: c.minLatency,
		MaxLatency: c.maxLatency,
	}

	if total > 0 {
		stats.MeanLatency = time.Duration(int64(c.sumLatency) / total)
		stats.FailureRate = float64(c.failures) / float64(total) * 100
	}

	stats.Percentiles = make([]Percentile, 0, len(DefaultQuantiles))
	for _, q := range DefaultQuantiles {
		latency := c.quantileLocked(q)
		stats.Percentiles = append(stats.Percentiles, Percentile{
			Quantile:  q,
			Latency:   latency,
			LatencyMs: toMs(latency),
		})
	}
	stats.P50Latency = c.quantileLocked(50)
	stats.P90Latency = c.quantileLocked(90)
	stats.P95Latency = c.quantileLocked(95)
	stats.P99Latency = c.quantileLocked(99)
	stats.P999Latency = c.quantileLocked(99.9)

	stats.MinLatencyMs = toMs(stats.MinLatency)
	stats.MaxLatencyMs = toMs(stats.MaxLatency)
	stats.MeanLatencyMs = toMs(stats.MeanLatency)
	stats.P50LatencyMs = toMs(stats.P50Latency)
	stats.P90LatencyMs = toMs(stats.P90Latency)
	stats.P95LatencyMs = toMs(stats.P95Latency)
	stats.P99LatencyMs = toMs(stats.P99Latency)
	stats.P999LatencyMs = toMs(stats.P999Latency)

	if elapsed < 0 {
		elapsed = 0
	}
	stats.Duration = elapsed
	stats.DurationMs = toMs(elapsed)
	if elapsed > 0 {
		secs := elapsed.Seconds()
		stats.IterationsPerSec = float64(total) / secs
		stats.BytesPerSec = float64(c.bytes) / secs
		stats.ItemsPerSec = float64(c.items) / secs
	}

	if len(c.errorsByType) > 0 {
		stats.Errors = make(map[string]int, len(c.errorsByType))
		for k, v := range c.errorsByType {
			stats.Errors[k] = int(v)
		}
	}

	return stats
}

// quantileLocked reads the histogram and clamps the estimate into the
// observed [min, max] range; bucket upper bounds can otherwise overshoot max.
func (c *Collector) quantileLocked(q float64) time.Duration {
	if c.hist.TotalCount() == 0 {
		return 0
	}
	v := time.Duration(c.hist.ValueAtQuantile(q)) * time.Microsecond
	if v < c.minLatency {
		v = c.minLatency
	}
	if v > c.maxLatency {
		v = c.maxLatency
	}
	return v
}

// LastReportAt returns the finish time of the latest report seen, warmup included.
func (c *Collector) LastReportAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastReport
}

// GetErrorBreakdown returns a map of error types to their counts.
func (c *Collector) GetErrorBreakdown() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := make(map[string]int)
	for k, v := range c.errorsByType {
		result[k] = int(v)
	}
	return result
}

// Latency returns the latency at quantile q if it is one of the reported ranks.
func (s Stats) Latency(q float64) (time.Duration, bool) {
	for _, p := range s.Percentiles {
		if p.Quantile == q {
			return p.Latency, true
		}
	}
	return 0, false
}

func toMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
