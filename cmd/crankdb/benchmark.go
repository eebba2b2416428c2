package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/torosent/crankdb/internal/config"
	"github.com/torosent/crankdb/internal/dashboard"
	"github.com/torosent/crankdb/internal/logging"
	"github.com/torosent/crankdb/internal/metrics"
	"github.com/torosent/crankdb/internal/output"
	"github.com/torosent/crankdb/internal/runner"
	"github.com/torosent/crankdb/internal/tracing"
	"github.com/torosent/crankdb/internal/workload"
)

const (
	tracingShutdownTimeout = 5 * time.Second
	// heldLogLimit caps log output buffered while a live view is drawing.
	heldLogLimit = 1 << 20
)

// benchmark wires one CLI invocation: configuration, logging, tracing, the
// metrics endpoint, the workload, the runner and the final report.
type benchmark struct {
	cfg    *config.Config
	stdout io.Writer
	stderr io.Writer
	exit   func(int)
	log    *logrus.Logger
}

// reporter is a live view that runs for the duration of the bench.
type reporter interface {
	Start()
	Stop()
}

func (b *benchmark) run(parent context.Context) error {
	cfg := b.cfg
	if err := cfg.Validate(); err != nil {
		return &exitError{code: exitConfig, err: err}
	}

	logger, err := logging.Configure(cfg.LogLevel, cfg.LogFormat, b.stderr)
	if err != nil {
		return &exitError{code: exitConfig, err: err}
	}
	b.log = logger
	for _, w := range cfg.Warnings() {
		logger.Warn(w)
	}

	provider, err := tracing.Init(parent, cfg.Tracing)
	if err != nil {
		logger.WithError(err).Warn("tracing disabled")
		provider = &tracing.Provider{}
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), tracingShutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(ctx); err != nil {
			logger.WithError(err).Warn("tracing shutdown")
		}
	}()

	collector := metrics.NewCollector()

	if cfg.MetricsAddr != "" {
		registry := prometheus.NewRegistry()
		shutdown, err := serveMetrics(cfg.MetricsAddr, registry, collector, cfg, logger)
		if err != nil {
			return &exitError{code: exitConfig, err: err}
		}
		defer shutdown()
	}

	db, err := workload.Open(cfg.DB, cfg.Concurrency)
	if err != nil {
		return &exitError{code: exitSetup, err: err}
	}
	defer db.Close()

	wl, err := workload.New(cfg, db, logger)
	if err != nil {
		return &exitError{code: exitSetup, err: err}
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)
	watchDone := make(chan struct{})
	defer close(watchDone)
	go watchSignals(sigs, watchDone, cancel, b.exit, logger)

	opts := runner.Options{
		Concurrency:      cfg.Concurrency,
		Iterations:       cfg.Iterations,
		Duration:         cfg.Duration,
		Warmup:           cfg.Warmup,
		RatePerSecond:    cfg.Rate,
		ArrivalModel:     toRunnerArrivalModel(cfg.Arrival.Model),
		IterationTimeout: cfg.Timeout,
		GracePeriod:      cfg.GracefulShutdown,
		Interruptible:    true,
		Workload:         wl,
		Collector:        collector,
		Logger:           logger,
		Tracer:           provider.Tracer(),
	}
	if cfg.LogErrors {
		opts.FailureLogger = logging.FailureLogger{Logger: logger}
	}

	live, err := b.liveReporter(collector, cancel)
	if err != nil {
		return &exitError{code: exitConfig, err: err}
	}
	release := func() {}
	if live != nil {
		release = b.holdLogs(logger)
		live.Start()
	}

	logger.WithFields(logrus.Fields{
		"workload":    cfg.Workload,
		"target":      cfg.DB.Addr(),
		"table":       cfg.DB.Table,
		"tx_mode":     cfg.DB.TxMode,
		"concurrency": cfg.Concurrency,
	}).Debug("starting benchmark")

	result, runErr := runner.New(opts).Run(ctx)
	if live != nil {
		live.Stop()
	}
	release()

	var teardownErr *runner.TeardownError
	switch {
	case runErr == nil:
	case runner.IsConfigError(runErr):
		return &exitError{code: exitConfig, err: runErr}
	case errors.As(runErr, &teardownErr):
		// The result is complete; the failure is reported after it.
	default:
		return &exitError{code: exitSetup, err: runErr}
	}

	report := output.Report{Metadata: output.NewMetadata(cfg), Stats: result.Stats}
	report.Metadata.StopReason = string(result.StopReason)
	report.Metadata.StartedAt = result.StartedAt
	report.Metadata.FinishedAt = result.FinishedAt
	if teardownErr != nil {
		report.Metadata.TeardownError = teardownErr.Err.Error()
	}

	data, err := output.Render(cfg.OutputFormat, report)
	if err != nil {
		return &exitError{code: exitConfig, err: err}
	}
	if err := output.Deliver(cfg.OutputFile, data, b.stdout); err != nil {
		return &exitError{code: exitSetup, err: fmt.Errorf("deliver report: %w", err)}
	}

	if teardownErr != nil {
		logger.WithError(teardownErr.Err).Error("teardown failed")
	}
	return nil
}

// holdLogs routes logger output into a buffer until the returned func is
// called, so log lines do not tear the progress line or dashboard.
func (b *benchmark) holdLogs(logger *logrus.Logger) func() {
	held := logging.NewHeldWriter(b.stderr, heldLogLimit)
	logger.SetOutput(held)
	return func() {
		if err := held.Release(); err != nil {
			logger.SetOutput(b.stderr)
			logger.WithError(err).Warn("flush held log output")
		}
	}
}

func (b *benchmark) liveReporter(collector *metrics.Collector, cancel context.CancelFunc) (reporter, error) {
	cfg := b.cfg
	switch {
	case cfg.Quiet:
		return nil, nil
	case cfg.Dashboard:
		return dashboard.New(collector, dashboard.RunConfig{
			Workload:    string(cfg.Workload),
			Target:      cfg.DB.Addr() + "/" + cfg.DB.Database,
			Table:       cfg.DB.Table,
			TxMode:      string(cfg.DB.TxMode),
			Concurrency: cfg.Concurrency,
			Duration:    cfg.Duration,
			Iterations:  cfg.Iterations,
			Warmup:      cfg.Warmup,
			Rate:        cfg.Rate,
			Timeout:     cfg.Timeout,
			ConfigFile:  cfg.ConfigFile,
		}, cancel)
	default:
		return output.NewProgressReporter(collector, output.DefaultProgressInterval, b.stderr, output.Target{
			Iterations: cfg.Iterations,
			Duration:   cfg.Duration,
		}), nil
	}
}

func toRunnerArrivalModel(model config.ArrivalModel) runner.ArrivalModel {
	switch model {
	case config.ArrivalModelPoisson:
		return runner.ArrivalModelPoisson
	default:
		return runner.ArrivalModelUniform
	}
}
