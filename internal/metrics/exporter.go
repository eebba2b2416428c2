package metrics

import (
	"math"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "crankdb"

// Exporter publishes a Collector's statistics to Prometheus. Values are read
// from a fresh snapshot on every scrape.
type Exporter struct {
	collector *Collector

	iterations  *prometheus.Desc
	warmup      *prometheus.Desc
	bytes       *prometheus.Desc
	items       *prometheus.Desc
	latency     *prometheus.Desc
	throughput  *prometheus.Desc
	bandwidth   *prometheus.Desc
	elapsed     *prometheus.Desc
	errorsByTyp *prometheus.Desc
}

// NewExporter creates an Exporter; constLabels are attached to every series.
func NewExporter(collector *Collector, constLabels prometheus.Labels) *Exporter {
	return &Exporter{
		collector: collector,
		iterations: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "iterations_total"),
			"Measured iterations by outcome.",
			[]string{"outcome"}, constLabels),
		warmup: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "warmup_iterations_total"),
			"Warmup iterations excluded from statistics.",
			nil, constLabels),
		bytes: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "bytes_total"),
			"Payload bytes moved by successful iterations.",
			nil, constLabels),
		items: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "items_total"),
			"Rows processed by successful iterations.",
			nil, constLabels),
		latency: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "iteration_latency_seconds"),
			"Iteration latency at the given quantile.",
			[]string{"quantile"}, constLabels),
		throughput: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "iterations_per_second"),
			"Average measured iterations per second since the bench started.",
			nil, constLabels),
		bandwidth: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "bytes_per_second"),
			"Average bytes per second since the bench started.",
			nil, constLabels),
		elapsed: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "elapsed_seconds"),
			"Time since the bench started.",
			nil, constLabels),
		errorsByTyp: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "errors_total"),
			"Failed iterations by error type.",
			[]string{"type"}, constLabels),
	}
}

func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	ch <- e.iterations
	ch <- e.warmup
	ch <- e.bytes
	ch <- e.items
	ch <- e.latency
	ch <- e.throughput
	ch <- e.bandwidth
	ch <- e.elapsed
	ch <- e.errorsByTyp
}

func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	stats := e.collector.Snapshot()

	ch <- prometheus.MustNewConstMetric(e.iterations, prometheus.CounterValue, float64(stats.Successes), "success")
	ch <- prometheus.MustNewConstMetric(e.iterations, prometheus.CounterValue, float64(stats.Failures), "failure")
	ch <- prometheus.MustNewConstMetric(e.warmup, prometheus.CounterValue, float64(stats.Warmup))
	ch <- prometheus.MustNewConstMetric(e.bytes, prometheus.CounterValue, float64(stats.Bytes))
	ch <- prometheus.MustNewConstMetric(e.items, prometheus.CounterValue, float64(stats.Items))
	for _, p := range stats.Percentiles {
		ch <- prometheus.MustNewConstMetric(e.latency, prometheus.GaugeValue,
			p.Latency.Seconds(), quantileLabel(p.Quantile))
	}
	ch <- prometheus.MustNewConstMetric(e.throughput, prometheus.GaugeValue, stats.IterationsPerSec)
	ch <- prometheus.MustNewConstMetric(e.bandwidth, prometheus.GaugeValue, stats.BytesPerSec)
	ch <- prometheus.MustNewConstMetric(e.elapsed, prometheus.GaugeValue, stats.Duration.Seconds())
	for _, row := range FlattenErrors(stats.Errors) {
		ch <- prometheus.MustNewConstMetric(e.errorsByTyp, prometheus.CounterValue, float64(row.Count), row.Type)
	}
}

// quantileLabel renders a percentile rank (99.9) as a Prometheus quantile (0.999).
func quantileLabel(q float64) string {
	return strconv.FormatFloat(math.Round(q*10)/1000, 'g', -1, 64)
}
