package config

import (
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RegisterFlags registers the flags shared by every workload as persistent
// flags of cmd.
func RegisterFlags(cmd *cobra.Command) {
	configureFlags(cmd.PersistentFlags())
}

// RegisterWorkloadFlags registers the flags specific to one workload.
func RegisterWorkloadFlags(cmd *cobra.Command, workload Workload) {
	configureWorkloadFlags(cmd.Flags(), workload)
}

// configureFlags sets up the shared CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	// Connection flags
	flags.String("host", "localhost", "Database host")
	flags.Int("port", DefaultPort, "Database port")
	flags.String("user", "root", "Database user")
	flags.String("password", "", "Database password")
	flags.String("database", "test", "Database (schema) name")
	flags.String("table", "bench_table", "Table created and dropped by the benchmark")
	flags.StringP("tx-mode", "m", string(TxModeAutoCommit), "Transaction mode: auto-commit, optimistic or pessimistic")

	// Load control flags
	flags.IntP("concurrency", "c", 1, "Number of concurrent workers")
	flags.IntP("rate", "r", 0, "Iterations per second limit across all workers (0 means unlimited)")
	flags.DurationP("duration", "d", 0, "How long to run the bench phase (e.g. 30s, 1m)")
	flags.Int64P("iterations", "n", 0, "Measured iterations to run (0 means unlimited)")
	flags.Int64P("warmup", "w", 0, "Warmup iterations excluded from the report")
	flags.Duration("timeout", 0, "Per-iteration timeout (0 means none)")
	flags.Duration("graceful-shutdown", DefaultGracefulShutdown, "Max time to wait for in-flight iterations after the run stops (0=default, negative=cancel immediately)")
	flags.String("arrival-model", string(ArrivalModelUniform), "Arrival model to use when pacing iterations (uniform or poisson)")

	// Output flags
	flags.BoolP("quiet", "q", false, "Suppress live progress; print only the final report")
	flags.Bool("dashboard", false, "Show live terminal dashboard with metrics")
	flags.StringP("output-format", "o", string(OutputFormatText), "Report format: text, json or yaml")
	flags.String("output", "", "Write the final report to this file instead of stdout")
	flags.Bool("log-errors", false, "Log each failed iteration to stderr")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("log-format", "text", "Log format: text or json")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	flags.String("config", "", "Path to configuration file (JSON or YAML)")

	// Tracing flags
	flags.String("tracing-endpoint", "", "OTLP endpoint for span export (host:port)")
	flags.String("tracing-protocol", "grpc", "OTLP protocol: grpc or http")
	flags.Bool("tracing-insecure", false, "Disable TLS for the OTLP exporter")
	flags.Float64("tracing-sample-rate", 1.0, "Fraction of traces to sample (0.0-1.0)")
}

func configureWorkloadFlags(flags *pflag.FlagSet, workload Workload) {
	switch workload {
	case WorkloadSelect:
		flags.Int("select-count", DefaultSelectCount, "Rows read per iteration (the table is seeded with twice as many)")
	case WorkloadInsert:
		flags.IntP("batch-size", "b", DefaultBatchSize, "Rows inserted per iteration")
		flags.String("feeder-path", "", "Path to CSV or JSON file supplying row data")
		flags.String("feeder-type", "", "Type of feeder file: 'csv' or 'json'")
	}
}

// applyFlagOverrides applies command-line flag values to the config, overriding
// values from the config file.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	if err := applyStringFlag(fs, "host", func(v string) { cfg.DB.Host = strings.TrimSpace(v) }); err != nil {
		return err
	}
	if fs.Changed("port") {
		val, err := fs.GetInt("port")
		if err != nil {
			return err
		}
		cfg.DB.Port = val
	}
	if err := applyStringFlag(fs, "user", func(v string) { cfg.DB.User = v }); err != nil {
		return err
	}
	if err := applyStringFlag(fs, "password", func(v string) { cfg.DB.Password = v }); err != nil {
		return err
	}
	if err := applyStringFlag(fs, "database", func(v string) { cfg.DB.Database = v }); err != nil {
		return err
	}
	if err := applyStringFlag(fs, "table", func(v string) { cfg.DB.Table = strings.TrimSpace(v) }); err != nil {
		return err
	}
	if err := applyStringFlag(fs, "tx-mode", func(v string) { cfg.DB.TxMode = TxMode(normalizeEnum(v)) }); err != nil {
		return err
	}
	if fs.Changed("select-count") {
		val, err := fs.GetInt("select-count")
		if err != nil {
			return err
		}
		cfg.SelectCount = val
	}
	if fs.Changed("batch-size") {
		val, err := fs.GetInt("batch-size")
		if err != nil {
			return err
		}
		cfg.BatchSize = val
	}
	if err := applyStringFlag(fs, "feeder-path", func(v string) { cfg.Feeder.Path = strings.TrimSpace(v) }); err != nil {
		return err
	}
	if err := applyStringFlag(fs, "feeder-type", func(v string) { cfg.Feeder.Type = normalizeEnum(v) }); err != nil {
		return err
	}
	if fs.Changed("concurrency") {
		val, err := fs.GetInt("concurrency")
		if err != nil {
			return err
		}
		cfg.Concurrency = val
	}
	if fs.Changed("rate") {
		val, err := fs.GetInt("rate")
		if err != nil {
			return err
		}
		cfg.Rate = val
	}
	if err := applyDurationFlag(fs, "duration", func(v time.Duration) { cfg.Duration = v }); err != nil {
		return err
	}
	if fs.Changed("iterations") {
		val, err := fs.GetInt64("iterations")
		if err != nil {
			return err
		}
		cfg.Iterations = val
	}
	if fs.Changed("warmup") {
		val, err := fs.GetInt64("warmup")
		if err != nil {
			return err
		}
		cfg.Warmup = val
	}
	if err := applyDurationFlag(fs, "timeout", func(v time.Duration) { cfg.Timeout = v }); err != nil {
		return err
	}
	if err := applyDurationFlag(fs, "graceful-shutdown", func(v time.Duration) { cfg.GracefulShutdown = v }); err != nil {
		return err
	}
	if err := applyStringFlag(fs, "arrival-model", func(v string) { cfg.Arrival.Model = ArrivalModel(normalizeEnum(v)) }); err != nil {
		return err
	}
	if err := applyBoolFlag(fs, "quiet", func(v bool) { cfg.Quiet = v }); err != nil {
		return err
	}
	if err := applyBoolFlag(fs, "dashboard", func(v bool) { cfg.Dashboard = v }); err != nil {
		return err
	}
	if err := applyStringFlag(fs, "output-format", func(v string) { cfg.OutputFormat = OutputFormat(normalizeEnum(v)) }); err != nil {
		return err
	}
	if err := applyStringFlag(fs, "output", func(v string) { cfg.OutputFile = strings.TrimSpace(v) }); err != nil {
		return err
	}
	if err := applyBoolFlag(fs, "log-errors", func(v bool) { cfg.LogErrors = v }); err != nil {
		return err
	}
	if err := applyStringFlag(fs, "log-level", func(v string) { cfg.LogLevel = normalizeEnum(v) }); err != nil {
		return err
	}
	if err := applyStringFlag(fs, "log-format", func(v string) { cfg.LogFormat = normalizeEnum(v) }); err != nil {
		return err
	}
	if err := applyStringFlag(fs, "metrics-addr", func(v string) { cfg.MetricsAddr = strings.TrimSpace(v) }); err != nil {
		return err
	}
	if err := applyStringFlag(fs, "tracing-endpoint", func(v string) { cfg.Tracing.Endpoint = strings.TrimSpace(v) }); err != nil {
		return err
	}
	if err := applyStringFlag(fs, "tracing-protocol", func(v string) { cfg.Tracing.Protocol = normalizeEnum(v) }); err != nil {
		return err
	}
	if err := applyBoolFlag(fs, "tracing-insecure", func(v bool) { cfg.Tracing.Insecure = v }); err != nil {
		return err
	}
	if fs.Changed("tracing-sample-rate") {
		val, err := fs.GetFloat64("tracing-sample-rate")
		if err != nil {
			return err
		}
		cfg.Tracing.SampleRate = val
	}
	return nil
}

func applyStringFlag(fs *pflag.FlagSet, name string, set func(string)) error {
	if !fs.Changed(name) {
		return nil
	}
	val, err := fs.GetString(name)
	if err != nil {
		return err
	}
	set(val)
	return nil
}

func applyBoolFlag(fs *pflag.FlagSet, name string, set func(bool)) error {
	if !fs.Changed(name) {
		return nil
	}
	val, err := fs.GetBool(name)
	if err != nil {
		return err
	}
	set(val)
	return nil
}

func applyDurationFlag(fs *pflag.FlagSet, name string, set func(time.Duration)) error {
	if !fs.Changed(name) {
		return nil
	}
	val, err := fs.GetDuration(name)
	if err != nil {
		return err
	}
	set(val)
	return nil
}

func normalizeEnum(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
