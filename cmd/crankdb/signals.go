package main

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"
)

// watchSignals turns the first interrupt into a graceful stop and the second
// into an immediate exit without a report.
func watchSignals(sigs <-chan os.Signal, done <-chan struct{}, cancel context.CancelFunc, exit func(int), logger logrus.FieldLogger) {
	select {
	case sig := <-sigs:
		logger.WithField("signal", sig.String()).Warn("stopping; in-flight iterations are draining, interrupt again to abort")
		cancel()
	case <-done:
		return
	}
	select {
	case <-sigs:
		logger.Error("aborted")
		exit(exitInterrupt)
	case <-done:
	}
}
