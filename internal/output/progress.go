package output

import (
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/torosent/crankdb/internal/metrics"
)

// DefaultProgressInterval is how often the status line is redrawn.
const DefaultProgressInterval = 250 * time.Millisecond

// Target is what the run is expected to reach; zero fields are unbounded.
type Target struct {
	Iterations int64
	Duration   time.Duration
}

// ProgressReporter displays real-time progress updates on a single line.
type ProgressReporter struct {
	collector *metrics.Collector
	target    Target
	interval  time.Duration
	done      chan struct{}
	finished  chan struct{}
	writer    io.Writer
	active    int32
}

// NewProgressReporter creates a progress reporter that updates at the given interval.
func NewProgressReporter(collector *metrics.Collector, interval time.Duration, writer io.Writer, target Target) *ProgressReporter {
	if writer == nil {
		writer = io.Discard
	}
	if interval <= 0 {
		interval = DefaultProgressInterval
	}
	return &ProgressReporter{
		collector: collector,
		target:    target,
		interval:  interval,
		done:      make(chan struct{}),
		finished:  make(chan struct{}),
		writer:    writer,
	}
}

// Start begins displaying progress updates in a background goroutine.
func (p *ProgressReporter) Start() {
	if !atomic.CompareAndSwapInt32(&p.active, 0, 1) {
		return // already running
	}
	go p.run()
}

// Stop draws the last line, ends it with a newline and halts updates.
func (p *ProgressReporter) Stop() {
	if atomic.CompareAndSwapInt32(&p.active, 1, 0) {
		close(p.done)
		<-p.finished
	}
}

func (p *ProgressReporter) run() {
	defer close(p.finished)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			fmt.Fprint(p.writer, "\r"+p.Line(p.collector.Snapshot()))
		case <-p.done:
			fmt.Fprintln(p.writer, "\r"+p.Line(p.collector.Snapshot()))
			return
		}
	}
}

// Line renders one status line for stats.
func (p *ProgressReporter) Line(stats metrics.Stats) string {
	parts := make([]string, 0, 7)

	elapsed := stats.Duration.Round(time.Second)
	if p.target.Duration > 0 {
		parts = append(parts, fmt.Sprintf("Elapsed: %s/%s", elapsed, p.target.Duration))
	} else {
		parts = append(parts, fmt.Sprintf("Elapsed: %s", elapsed))
	}
	if p.target.Iterations > 0 {
		pct := float64(stats.Total) / float64(p.target.Iterations) * 100
		parts = append(parts, fmt.Sprintf("Iterations: %d/%d (%.0f%%)", stats.Total, p.target.Iterations, pct))
	} else {
		parts = append(parts, fmt.Sprintf("Iterations: %d", stats.Total))
	}
	if stats.Warmup > 0 {
		parts = append(parts, fmt.Sprintf("Warmup: %d", stats.Warmup))
	}
	parts = append(parts,
		fmt.Sprintf("It/s: %.1f", stats.IterationsPerSec),
		fmt.Sprintf("Bandwidth: %s", FormatRate(stats.BytesPerSec)),
		fmt.Sprintf("P50: %.1fms P99: %.1fms", stats.P50LatencyMs, stats.P99LatencyMs),
		fmt.Sprintf("Failures: %d", stats.Failures),
	)
	return strings.Join(parts, " | ")
}
