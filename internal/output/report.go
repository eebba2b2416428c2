package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/oklog/ulid/v2"
	"gopkg.in/yaml.v3"

	"github.com/torosent/crankdb/internal/config"
	"github.com/torosent/crankdb/internal/metrics"
)

// Metadata describes the run a report belongs to.
type Metadata struct {
	RunID          string    `json:"run_id" yaml:"run_id"`
	Workload       string    `json:"workload" yaml:"workload"`
	Table          string    `json:"table" yaml:"table"`
	TxMode         string    `json:"tx_mode" yaml:"tx_mode"`
	Concurrency    int       `json:"concurrency" yaml:"concurrency"`
	Iterations     int64     `json:"iterations,omitempty" yaml:"iterations,omitempty"`
	TargetDuration string    `json:"target_duration,omitempty" yaml:"target_duration,omitempty"`
	Warmup         int64     `json:"warmup,omitempty" yaml:"warmup,omitempty"`
	Rate           int       `json:"rate,omitempty" yaml:"rate,omitempty"`
	StopReason     string    `json:"stop_reason" yaml:"stop_reason"`
	StartedAt      time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt     time.Time `json:"finished_at" yaml:"finished_at"`
	TeardownError  string    `json:"teardown_error,omitempty" yaml:"teardown_error,omitempty"`
}

// Report is the final result of a run.
type Report struct {
	Metadata Metadata      `json:"metadata" yaml:"metadata"`
	Stats    metrics.Stats `json:"stats" yaml:"stats"`
}

// NewRunID returns a lexically sortable identifier for a run.
func NewRunID() string {
	return ulid.Make().String()
}

// NewMetadata fills the configuration half of a report's metadata.
func NewMetadata(cfg *config.Config) Metadata {
	md := Metadata{
		RunID:       NewRunID(),
		Workload:    string(cfg.Workload),
		Table:       cfg.DB.Table,
		TxMode:      string(cfg.DB.TxMode),
		Concurrency: cfg.Concurrency,
		Iterations:  cfg.Iterations,
		Warmup:      cfg.Warmup,
		Rate:        cfg.Rate,
	}
	if cfg.Duration > 0 {
		md.TargetDuration = cfg.Duration.String()
	}
	return md
}

// Render formats the report once in the requested format.
func Render(format config.OutputFormat, report Report) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case config.OutputFormatJSON:
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return nil, fmt.Errorf("encode json report: %w", err)
		}
	case config.OutputFormatYAML:
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return nil, fmt.Errorf("encode yaml report: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("encode yaml report: %w", err)
		}
	case config.OutputFormatText, "":
		PrintReport(&buf, report)
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
	return buf.Bytes(), nil
}

// PrintReport outputs a human-readable summary report.
func PrintReport(w io.Writer, report Report) {
	md := report.Metadata
	stats := report.Stats

	fmt.Fprintln(w, "\n--- Benchmark Results ---")
	fmt.Fprintf(w, "Run:               %s\n", md.RunID)
	fmt.Fprintf(w, "Workload:          %s (table %s, %s)\n", md.Workload, md.Table, md.TxMode)
	fmt.Fprintf(w, "Concurrency:       %d\n", md.Concurrency)
	fmt.Fprintf(w, "Stopped by:        %s\n", md.StopReason)
	fmt.Fprintf(w, "Iterations:        %d\n", stats.Total)
	fmt.Fprintf(w, "Successful:        %d\n", stats.Successes)
	fmt.Fprintf(w, "Failed:            %d (%.2f%%)\n", stats.Failures, stats.FailureRate)
	if stats.Warmup > 0 {
		fmt.Fprintf(w, "Warmup:            %d\n", stats.Warmup)
	}
	fmt.Fprintf(w, "Duration:          %s\n", stats.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "Iterations/sec:    %.2f\n", stats.IterationsPerSec)
	fmt.Fprintf(w, "Rows:              %d (%.2f/s)\n", stats.Items, stats.ItemsPerSec)
	fmt.Fprintf(w, "Bandwidth:         %s (%s total)\n", FormatRate(stats.BytesPerSec), FormatBytes(stats.Bytes))

	fmt.Fprintln(w, "\nLatency:")
	fmt.Fprintf(w, "  Min:             %s\n", stats.MinLatency)
	fmt.Fprintf(w, "  Max:             %s\n", stats.MaxLatency)
	fmt.Fprintf(w, "  Mean:            %s\n", stats.MeanLatency)
	for _, p := range stats.Percentiles {
		fmt.Fprintf(w, "  %-17s%s\n", fmt.Sprintf("P%g:", p.Quantile), p.Latency)
	}

	if len(stats.Errors) > 0 {
		fmt.Fprintln(w, "\nErrors:")
		for _, row := range metrics.FlattenErrors(stats.Errors) {
			fmt.Fprintf(w, "  %s: %d\n", row.Type, row.Count)
		}
	}
	if md.TeardownError != "" {
		fmt.Fprintf(w, "\nTeardown error:    %s\n", md.TeardownError)
	}
}

// FormatBytes renders a byte count with a binary unit.
func FormatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// FormatRate renders a bytes-per-second figure.
func FormatRate(bytesPerSec float64) string {
	if bytesPerSec < 0 {
		bytesPerSec = 0
	}
	return FormatBytes(uint64(bytesPerSec)) + "/s"
}
