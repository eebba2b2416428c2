package runner

import (
	"context"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/torosent/crankdb/internal/metrics"
	"github.com/torosent/crankdb/internal/tracing"
)

// benchWorker drives one Worker through the bench phase.
type benchWorker struct {
	id      int
	impl    Worker
	warmup  int64 // warmup iterations this worker still owes
	seq     uint64
	run     *runState
	reports chan<- metrics.IterationReport
}

// runState is shared by every benchWorker of one run.
type runState struct {
	opt     Options
	arrival arrivalController
	tracer  trace.Tracer

	stopCtx  context.Context // done once no new iteration may start
	iterCtx  context.Context // done once in-flight iterations must abort
	stop     func(StopReason)
	reserved atomic.Int64 // measured iteration slots handed out
}

// reserve claims one measured iteration slot. It returns false once the
// iteration budget is spent; the caller claiming the last slot stops the run.
func (s *runState) reserve() bool {
	if s.opt.Iterations <= 0 {
		return true
	}
	n := s.reserved.Add(1)
	if n > s.opt.Iterations {
		return false
	}
	if n == s.opt.Iterations {
		s.stop(StopIterations)
	}
	return true
}

func (w *benchWorker) loop() {
	for {
		if err := w.run.arrival.Wait(w.run.stopCtx); err != nil {
			return
		}
		if w.run.stopCtx.Err() != nil {
			return
		}
		warmup := w.warmup > 0
		if warmup {
			w.warmup--
		} else if !w.run.reserve() {
			return
		}
		w.reports <- w.iterate(warmup)
	}
}

func (w *benchWorker) iterate(warmup bool) metrics.IterationReport {
	w.seq++
	ctx := w.run.iterCtx
	if timeout := w.run.opt.IterationTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	ctx, span := tracing.StartIterationSpan(ctx, w.run.tracer, w.id, w.seq, warmup)

	started := time.Now()
	outcome, err := w.impl.RunIteration(ctx)
	elapsed := time.Since(started)

	if err != nil {
		tracing.EndSpan(span, err)
		if w.run.opt.FailureLogger != nil {
			w.run.opt.FailureLogger.LogFailure(w.id, err)
		}
	} else {
		tracing.EndSpan(span, nil, tracing.IterationVolume(outcome.Bytes, outcome.Items)...)
	}

	return metrics.NewIterationReport(w.id, w.seq, started, elapsed, outcome, err, warmup)
}
