package output

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"

	"github.com/torosent/crankdb/internal/config"
	"github.com/torosent/crankdb/internal/metrics"
)

func sampleReport() Report {
	c := metrics.NewCollector()
	start := time.Now()
	for i := 1; i <= 10; i++ {
		c.Record(metrics.NewIterationReport(0, uint64(i), start, time.Duration(i)*time.Millisecond,
			metrics.Outcome{Bytes: 2048, Items: 100}, nil, false))
	}
	c.Record(metrics.NewIterationReport(0, 11, start, time.Millisecond, metrics.Outcome{}, assert.AnError, false))

	cfg := config.Defaults(config.WorkloadInsert)
	cfg.Concurrency = 4
	cfg.Iterations = 11
	md := NewMetadata(cfg)
	md.StopReason = "iterations"
	md.StartedAt = start
	md.FinishedAt = start.Add(2 * time.Second)
	return Report{Metadata: md, Stats: c.Stats(2 * time.Second)}
}

func TestPrintReportBasic(t *testing.T) {
	var buf bytes.Buffer
	PrintReport(&buf, sampleReport())

	out := buf.String()
	for _, want := range []string{
		"--- Benchmark Results ---",
		"Workload:          insert (table bench_table, auto-commit)",
		"Iterations:        11",
		"Failed:            1",
		"Stopped by:        iterations",
		"P99.9:",
		"Errors:",
	} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "Teardown error")
}

func TestPrintReportShowsTeardownError(t *testing.T) {
	r := sampleReport()
	r.Metadata.TeardownError = "drop table bench_table: gone"
	var buf bytes.Buffer
	PrintReport(&buf, r)
	assert.Contains(t, buf.String(), "Teardown error:    drop table bench_table: gone")
}

func TestRenderJSON(t *testing.T) {
	data, err := Render(config.OutputFormatJSON, sampleReport())
	require.NoError(t, err)

	doc := string(data)
	assert.True(t, gjson.Valid(doc))
	assert.Len(t, gjson.Get(doc, "metadata.run_id").String(), 26)
	assert.Equal(t, "insert", gjson.Get(doc, "metadata.workload").String())
	assert.Equal(t, int64(4), gjson.Get(doc, "metadata.concurrency").Int())
	assert.Equal(t, int64(11), gjson.Get(doc, "stats.total").Int())
	assert.Equal(t, int64(1), gjson.Get(doc, "stats.failures").Int())
	assert.Equal(t, int64(20480), gjson.Get(doc, "stats.bytes").Int())
	assert.Equal(t, 6, len(gjson.Get(doc, "stats.percentiles").Array()))
	assert.Equal(t, 99.9, gjson.Get(doc, "stats.percentiles.5.quantile").Float())
	assert.False(t, gjson.Get(doc, "metadata.teardown_error").Exists())
}

func TestRenderYAML(t *testing.T) {
	data, err := Render(config.OutputFormatYAML, sampleReport())
	require.NoError(t, err)

	var parsed map[string]map[string]interface{}
	require.NoError(t, yaml.Unmarshal(data, &parsed))
	assert.Equal(t, "iterations", parsed["metadata"]["stop_reason"])
	assert.Equal(t, 11, parsed["stats"]["total"])
}

func TestRenderRejectsUnknownFormat(t *testing.T) {
	_, err := Render("xml", sampleReport())
	require.Error(t, err)
}

func TestRunIDsAreUnique(t *testing.T) {
	assert.NotEqual(t, NewRunID(), NewRunID())
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.00 KiB", FormatBytes(1024))
	assert.Equal(t, "1.50 MiB", FormatBytes(3*512*1024))
	assert.Equal(t, "0 B/s", FormatRate(-1))
}

func TestWriteFileOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("x", 4096)), 0o644))

	require.NoError(t, WriteFile(path, []byte("{}\n")))
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{}\n", string(got))
}

func TestDeliverToStdoutWhenNoPath(t *testing.T) {
	var stdout bytes.Buffer
	require.NoError(t, Deliver("", []byte("report"), &stdout))
	assert.Equal(t, "report", stdout.String())
}

func TestDeliverToFileSkipsStdout(t *testing.T) {
	var stdout bytes.Buffer
	path := filepath.Join(t.TempDir(), "out.txt")
	require.NoError(t, Deliver(path, []byte("report"), &stdout))
	assert.Empty(t, stdout.String())
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "report", string(got))
}
