package dashboard

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gizak/termui/v3/widgets"

	"github.com/torosent/crankdb/internal/metrics"
)

func newTestDashboard(cfg RunConfig) *Dashboard {
	sparkline := widgets.NewSparkline()
	return &Dashboard{
		latencySparkle:  widgets.NewSparklineGroup(sparkline),
		percentileTable: widgets.NewTable(),
		throughputGauge: widgets.NewGauge(),
		errorList:       widgets.NewList(),
		summaryPara:     widgets.NewParagraph(),
		metricsPara:     widgets.NewParagraph(),
		runConfig:       cfg,
	}
}

func sampleStats() metrics.Stats {
	c := metrics.NewCollector()
	for i := 1; i <= 20; i++ {
		c.Record(metrics.NewIterationReport(0, uint64(i), time.Now(), time.Duration(i)*time.Millisecond,
			metrics.Outcome{Bytes: 1024, Items: 10}, nil, false))
	}
	c.Record(metrics.NewIterationReport(0, 21, time.Now(), time.Millisecond, metrics.Outcome{}, errors.New("boom"), false))
	return c.Stats(2 * time.Second)
}

func TestUpdatePopulatesWidgets(t *testing.T) {
	d := newTestDashboard(RunConfig{Workload: "select", Target: "localhost:4000/test", Table: "bench_table", TxMode: "optimistic", Concurrency: 4})

	d.update(sampleStats())

	if !strings.Contains(d.summaryPara.Text, "SELECT on localhost:4000/test (table bench_table, optimistic)") {
		t.Errorf("unexpected summary %q", d.summaryPara.Text)
	}
	if !strings.Contains(d.metricsPara.Text, "Failed:            1") {
		t.Errorf("expected failure count in metrics, got %q", d.metricsPara.Text)
	}
	if !strings.Contains(d.metricsPara.Text, "Bandwidth:         10.00 KiB/s") {
		t.Errorf("expected bandwidth in metrics, got %q", d.metricsPara.Text)
	}
	if len(d.latencyHistory) != 1 {
		t.Errorf("expected one latency sample, got %d", len(d.latencyHistory))
	}
	if d.throughputGauge.Percent != 100 {
		t.Errorf("first sample is the peak and should fill the gauge, got %d", d.throughputGauge.Percent)
	}
	if d.throughputGauge.Label != "10.5 it/s" {
		t.Errorf("unexpected gauge label %q", d.throughputGauge.Label)
	}
	if len(d.errorList.Rows) != 1 || !strings.Contains(d.errorList.Rows[0], "Error") {
		t.Errorf("unexpected error rows %v", d.errorList.Rows)
	}
}

func TestLatencyHistoryIsBounded(t *testing.T) {
	d := newTestDashboard(RunConfig{})
	stats := sampleStats()
	for i := 0; i < historySize+20; i++ {
		d.update(stats)
	}
	if len(d.latencyHistory) != historySize {
		t.Errorf("expected %d samples, got %d", historySize, len(d.latencyHistory))
	}
}

func TestGaugePercent(t *testing.T) {
	tests := []struct {
		value, scale float64
		want         int
	}{
		{0, 100, 0},
		{50, 100, 50},
		{150, 100, 100},
		{10, 0, 0},
	}
	for _, tt := range tests {
		if got := gaugePercent(tt.value, tt.scale); got != tt.want {
			t.Errorf("gaugePercent(%v, %v) = %d, want %d", tt.value, tt.scale, got, tt.want)
		}
	}
}

func TestFormatPercentileRows(t *testing.T) {
	rows := formatPercentileRows(sampleStats())
	if len(rows) != len(metrics.DefaultQuantiles)+4 {
		t.Fatalf("expected %d rows, got %d", len(metrics.DefaultQuantiles)+4, len(rows))
	}
	if rows[0][0] != "Quantile" || rows[1][0] != "min" || rows[len(rows)-1][0] != "max" {
		t.Errorf("unexpected row order %v", rows)
	}
	found := false
	for _, r := range rows {
		if r[0] == "P99.9" {
			found = true
		}
	}
	if !found {
		t.Error("expected a P99.9 row")
	}
}

func TestFormatErrorRows(t *testing.T) {
	if rows := formatErrorRows(nil); len(rows) != 1 || !strings.Contains(rows[0], "No failures") {
		t.Fatalf("unexpected empty rows %v", rows)
	}

	errs := make(map[string]int)
	for i := 0; i < maxErrorRows+5; i++ {
		errs[string(rune('A'+i))] = i + 1
	}
	rows := formatErrorRows(errs)
	if len(rows) != maxErrorRows {
		t.Fatalf("expected %d rows, got %d", maxErrorRows, len(rows))
	}
	if !strings.Contains(rows[0], "O") {
		t.Errorf("expected most frequent error first, got %s", rows[0])
	}
}

func TestFormatRunParams(t *testing.T) {
	tests := []struct {
		name     string
		config   RunConfig
		contains []string
		excludes []string
	}{
		{
			name:     "basic config",
			config:   RunConfig{Concurrency: 10, Rate: 100, Duration: 30 * time.Second},
			contains: []string{"Workers: 10", "Rate: 100/s", "Duration: 30s"},
			excludes: []string{"Iterations:", "Warmup:"},
		},
		{
			name:     "unlimited rate",
			config:   RunConfig{Concurrency: 5},
			contains: []string{"Workers: 5", "Rate: unlimited"},
		},
		{
			name:     "iterations and warmup",
			config:   RunConfig{Concurrency: 5, Iterations: 1000, Warmup: 50},
			contains: []string{"Iterations: 1000", "Warmup: 50"},
		},
		{
			name:     "with config file",
			config:   RunConfig{Concurrency: 5, ConfigFile: "bench.yml"},
			contains: []string{"Config: bench.yml"},
		},
		{
			name:     "with timeout",
			config:   RunConfig{Concurrency: 5, Timeout: 10 * time.Second},
			contains: []string{"Timeout: 10s"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &Dashboard{runConfig: tt.config}
			result := d.formatRunParams()

			for _, s := range tt.contains {
				if !strings.Contains(result, s) {
					t.Errorf("expected result to contain %q, got %q", s, result)
				}
			}
			for _, s := range tt.excludes {
				if strings.Contains(result, s) {
					t.Errorf("expected result NOT to contain %q, got %q", s, result)
				}
			}
		})
	}
}
