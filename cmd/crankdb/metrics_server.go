package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/torosent/crankdb/internal/config"
	"github.com/torosent/crankdb/internal/logging"
	"github.com/torosent/crankdb/internal/metrics"
)

const metricsShutdownTimeout = 2 * time.Second

// serveMetrics registers the run's collectors with registry and serves them
// on addr under /metrics. The returned function stops the server.
func serveMetrics(addr string, registry *prometheus.Registry, collector *metrics.Collector, cfg *config.Config, logger *logrus.Logger) (func(), error) {
	exporter := metrics.NewExporter(collector, prometheus.Labels{
		"workload": string(cfg.Workload),
		"table":    cfg.DB.Table,
	})
	if err := registry.Register(exporter); err != nil {
		return nil, fmt.Errorf("register exporter: %w", err)
	}
	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("register go collector: %w", err)
	}
	hook, err := logging.NewPrometheusHook(registry)
	if err != nil {
		return nil, fmt.Errorf("register log hook: %w", err)
	}
	logger.AddHook(hook)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("metrics server stopped")
		}
	}()
	logger.WithField("addr", listener.Addr().String()).Info("serving metrics")

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.WithError(err).Warn("metrics server shutdown")
		}
	}, nil
}
