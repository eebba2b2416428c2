// Package metrics aggregates per-iteration measurements of a benchmark run.
//
// Workers produce an [IterationReport] for every finished iteration. A single
// consumer goroutine feeds them into a [Collector]:
//
//	collector := metrics.NewCollector()
//	go collector.Consume(reports)
//
//	// Any goroutine may read a consistent view while ingestion continues.
//	stats := collector.Snapshot()
//
// # Statistics
//
// The [Stats] type carries:
//   - Iteration counts (total, successes, failures) and the warmup count
//   - Byte and item totals with per-second rates
//   - Latency min/mean/max and percentiles (P50, P75, P90, P95, P99, P99.9)
//   - A breakdown of failures by error type
//
// Warmup reports are counted separately and never contribute to any other
// statistic.
//
// # Latency distribution
//
// Latencies are kept in an HDR histogram (1µs to 60s, three significant
// digits), so memory stays constant for arbitrarily long runs. Percentile
// estimates are clamped to the observed minimum and maximum.
//
// # Prometheus
//
// [Exporter] exposes a Collector as a prometheus.Collector for scraping during
// a run.
package metrics
