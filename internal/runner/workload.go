package runner

import (
	"context"

	"github.com/torosent/crankdb/internal/metrics"
)

// Workload is the unit of work a Runner drives. Setup runs once before any
// worker exists and Teardown runs once after every worker has drained.
type Workload interface {
	Setup(ctx context.Context) error
	NewWorker(ctx context.Context, id int) (Worker, error)
	Teardown(ctx context.Context) error
}

// Worker holds the per-worker state of a Workload (a dedicated connection,
// counters, buffers). A Worker is only ever used by one goroutine.
type Worker interface {
	// RunIteration performs one unit of work. A returned error marks the
	// iteration as failed; the run continues.
	RunIteration(ctx context.Context) (metrics.Outcome, error)
	Close() error
}

// WorkerFunc adapts a function to a stateless Worker.
type WorkerFunc func(ctx context.Context) (metrics.Outcome, error)

func (f WorkerFunc) RunIteration(ctx context.Context) (metrics.Outcome, error) {
	return f(ctx)
}

func (f WorkerFunc) Close() error { return nil }
