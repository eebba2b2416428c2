package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Workload names the benchmark a run drives.
type Workload string

const (
	WorkloadSelect Workload = "select"
	WorkloadInsert Workload = "insert"
)

// TxMode is the transaction discipline applied to every iteration.
type TxMode string

const (
	TxModeAutoCommit  TxMode = "auto-commit"
	TxModeOptimistic  TxMode = "optimistic"
	TxModePessimistic TxMode = "pessimistic"
)

type OutputFormat string

const (
	OutputFormatText OutputFormat = "text"
	OutputFormatJSON OutputFormat = "json"
	OutputFormatYAML OutputFormat = "yaml"
)

type ArrivalModel string

const (
	ArrivalModelUniform ArrivalModel = "uniform"
	ArrivalModelPoisson ArrivalModel = "poisson"
)

const (
	DefaultPort             = 4000
	DefaultSelectCount      = 1000
	DefaultBatchSize        = 100
	DefaultGracefulShutdown = 5 * time.Second
)

type Config struct {
	Workload         Workload      `mapstructure:"-"`
	DB               DBConfig      `mapstructure:"db"`
	SelectCount      int           `mapstructure:"select_count"`
	BatchSize        int           `mapstructure:"batch_size"`
	Feeder           FeederConfig  `mapstructure:"feeder"`
	Concurrency      int           `mapstructure:"concurrency"`
	Duration         time.Duration `mapstructure:"duration"`
	Iterations       int64         `mapstructure:"iterations"`
	Warmup           int64         `mapstructure:"warmup"`
	Rate             int           `mapstructure:"rate"`
	Arrival          ArrivalConfig `mapstructure:"arrival"`
	GracefulShutdown time.Duration `mapstructure:"graceful_shutdown"`
	Timeout          time.Duration `mapstructure:"timeout"`
	Quiet            bool          `mapstructure:"quiet"`
	Dashboard        bool          `mapstructure:"dashboard"`
	OutputFormat     OutputFormat  `mapstructure:"output_format"`
	OutputFile       string        `mapstructure:"output"`
	LogErrors        bool          `mapstructure:"log_errors"`
	LogLevel         string        `mapstructure:"log_level"`
	LogFormat        string        `mapstructure:"log_format"`
	MetricsAddr      string        `mapstructure:"metrics_addr"`
	Tracing          TracingConfig `mapstructure:"tracing"`
	ConfigFile       string        `mapstructure:"-"`
}

type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	Table    string `mapstructure:"table"`
	TxMode   TxMode `mapstructure:"tx_mode"`
}

// Addr returns host:port.
func (d DBConfig) Addr() string {
	return fmt.Sprintf("%s:%d", d.Host, d.Port)
}

type ArrivalConfig struct {
	Model ArrivalModel `mapstructure:"model"`
}

type FeederConfig struct {
	Path string `mapstructure:"path"`
	Type string `mapstructure:"type"`
}

// TracingConfig configures OpenTelemetry span export.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"`
	Insecure    bool    `mapstructure:"insecure"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	ServiceName string  `mapstructure:"service_name"`
}

// Enabled reports whether spans should be exported.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != "" || os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != ""
}

// Defaults returns the configuration used when neither a file nor flags set a value.
func Defaults(workload Workload) *Config {
	return &Config{
		Workload: workload,
		DB: DBConfig{
			Host:     "localhost",
			Port:     DefaultPort,
			User:     "root",
			Database: "test",
			Table:    "bench_table",
			TxMode:   TxModeAutoCommit,
		},
		SelectCount:      DefaultSelectCount,
		BatchSize:        DefaultBatchSize,
		Concurrency:      1,
		Arrival:          ArrivalConfig{Model: ArrivalModelUniform},
		GracefulShutdown: DefaultGracefulShutdown,
		OutputFormat:     OutputFormatText,
		LogLevel:         "info",
		LogFormat:        "text",
		Tracing:          TracingConfig{Protocol: "grpc", SampleRate: 1.0},
	}
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (c Config) Validate() error {
	var issues []string

	switch c.Workload {
	case WorkloadSelect, WorkloadInsert:
	default:
		issues = append(issues, fmt.Sprintf("workload %q is not supported", c.Workload))
	}

	if c.Concurrency < 1 {
		issues = append(issues, "concurrency must be >= 1")
	}
	if c.Rate < 0 {
		issues = append(issues, "rate must be >= 0")
	}
	if c.Iterations < 0 {
		issues = append(issues, "iterations must be >= 0")
	}
	if c.Warmup < 0 {
		issues = append(issues, "warmup must be >= 0")
	}
	if c.Timeout < 0 {
		issues = append(issues, "timeout must be >= 0")
	}
	if c.Duration < 0 {
		issues = append(issues, "duration must be >= 0")
	}
	if c.Dashboard && c.Quiet {
		issues = append(issues, "dashboard and quiet are mutually exclusive")
	}

	issues = append(issues, validateDBConfig(c.DB)...)
	issues = append(issues, validateWorkloadConfig(c)...)
	issues = append(issues, validateArrivalConfig(c.Arrival)...)
	issues = append(issues, validateFeederConfig(c.Feeder)...)
	issues = append(issues, validateOutputConfig(c)...)
	issues = append(issues, validateTracingConfig(c.Tracing)...)

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}

	return nil
}

// highConcurrency is the worker count above which Warnings flags the run.
const highConcurrency = 500

// Warnings lists settings that are valid but likely to hurt the run.
func (c Config) Warnings() []string {
	var warnings []string
	if c.Concurrency > highConcurrency {
		warnings = append(warnings, fmt.Sprintf("high concurrency configured (%d workers); each worker holds its own database connection", c.Concurrency))
	}
	return warnings
}

func validateDBConfig(db DBConfig) []string {
	var issues []string
	if strings.TrimSpace(db.Host) == "" {
		issues = append(issues, "host is required")
	}
	if db.Port < 1 || db.Port > 65535 {
		issues = append(issues, fmt.Sprintf("port must be between 1 and 65535, got %d", db.Port))
	}
	if strings.TrimSpace(db.User) == "" {
		issues = append(issues, "user is required")
	}
	if strings.TrimSpace(db.Database) == "" {
		issues = append(issues, "database is required")
	}
	if !validIdentifier(db.Table) {
		issues = append(issues, fmt.Sprintf("table %q must be a plain identifier (letters, digits, underscore)", db.Table))
	}
	switch db.TxMode {
	case TxModeAutoCommit, TxModeOptimistic, TxModePessimistic:
	default:
		issues = append(issues, fmt.Sprintf("tx-mode must be one of auto-commit, optimistic, pessimistic, got %q", db.TxMode))
	}
	return issues
}

func validateWorkloadConfig(c Config) []string {
	var issues []string
	switch c.Workload {
	case WorkloadSelect:
		if c.SelectCount < 1 {
			issues = append(issues, "select-count must be >= 1")
		}
		if strings.TrimSpace(c.Feeder.Path) != "" {
			issues = append(issues, "feeder is only supported by the insert workload")
		}
	case WorkloadInsert:
		if c.BatchSize < 1 {
			issues = append(issues, "batch-size must be >= 1")
		}
	}
	return issues
}

func validateArrivalConfig(arr ArrivalConfig) []string {
	model := arr.Model
	if model == "" {
		model = ArrivalModelUniform
	}
	switch model {
	case ArrivalModelUniform, ArrivalModelPoisson:
		return nil
	default:
		return []string{fmt.Sprintf("arrival model %q is not supported", model)}
	}
}

func validateFeederConfig(feeder FeederConfig) []string {
	var issues []string
	if strings.TrimSpace(feeder.Path) == "" {
		return nil // No feeder configured
	}

	if strings.TrimSpace(feeder.Type) == "" {
		issues = append(issues, "feeder: type is required when path is specified")
	} else if feeder.Type != "csv" && feeder.Type != "json" {
		issues = append(issues, fmt.Sprintf("feeder: type must be 'csv' or 'json', got %q", feeder.Type))
	}

	return issues
}

func validateOutputConfig(c Config) []string {
	var issues []string
	switch c.OutputFormat {
	case OutputFormatText, OutputFormatJSON, OutputFormatYAML:
	default:
		issues = append(issues, fmt.Sprintf("output-format must be text, json or yaml, got %q", c.OutputFormat))
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		issues = append(issues, fmt.Sprintf("log-format must be text or json, got %q", c.LogFormat))
	}
	return issues
}

func validateTracingConfig(t TracingConfig) []string {
	var issues []string
	switch strings.ToLower(t.Protocol) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing protocol must be grpc or http, got %q", t.Protocol))
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		issues = append(issues, fmt.Sprintf("tracing sample rate must be between 0.0 and 1.0, got %g", t.SampleRate))
	}
	return issues
}

// validIdentifier keeps table names safe to interpolate into DDL.
func validIdentifier(name string) bool {
	if name == "" || len(name) > 64 {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
