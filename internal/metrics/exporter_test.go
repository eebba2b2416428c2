package metrics_test

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/torosent/crankdb/internal/metrics"
)

func TestExporterPublishesCounters(t *testing.T) {
	c := metrics.NewCollector()
	c.Record(report(2*time.Millisecond, nil))
	c.Record(report(3*time.Millisecond, nil))

	exp := metrics.NewExporter(c, prometheus.Labels{"workload": "select"})
	reg := prometheus.NewPedanticRegistry()
	if err := reg.Register(exp); err != nil {
		t.Fatalf("register exporter: %v", err)
	}

	expected := `
# HELP crankdb_bytes_total Payload bytes moved by successful iterations.
# TYPE crankdb_bytes_total counter
crankdb_bytes_total{workload="select"} 200
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "crankdb_bytes_total"); err != nil {
		t.Fatalf("unexpected metrics: %v", err)
	}
	if n := testutil.CollectAndCount(exp, "crankdb_iteration_latency_seconds"); n != len(metrics.DefaultQuantiles) {
		t.Fatalf("expected %d latency series, got %d", len(metrics.DefaultQuantiles), n)
	}
}
