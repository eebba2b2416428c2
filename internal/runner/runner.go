package runner

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"github.com/torosent/crankdb/internal/metrics"
	"github.com/torosent/crankdb/internal/tracing"
)

// StopReason records which condition ended the bench phase.
type StopReason string

const (
	StopIterations StopReason = "iterations"
	StopDuration   StopReason = "duration"
	StopCancelled  StopReason = "cancelled"
	StopDrained    StopReason = "drained" // every worker returned on its own
)

// Result captures execution summary.
type Result struct {
	Stats      metrics.Stats
	StartedAt  time.Time // barrier release
	FinishedAt time.Time // last worker drained
	Duration   time.Duration
	StopReason StopReason
}

// Runner coordinates concurrent execution of a Workload.
type Runner struct {
	opt Options
}

func New(opt Options) *Runner {
	return &Runner{opt: opt}
}

// Collector returns the collector the run reports into, creating it if the
// options did not provide one. It is safe to read Stats from it while Run is
// in progress.
func (r *Runner) Collector() *metrics.Collector {
	if r.opt.Collector == nil {
		r.opt.Collector = metrics.NewCollector()
	}
	return r.opt.Collector
}

// Run executes Setup, the bench phase and Teardown. A *ConfigError or
// *SetupError comes with a zero Result. A *TeardownError comes with a
// complete Result. Iteration failures are never returned; they are counted.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	if err := r.opt.validate(); err != nil {
		return Result{}, err
	}
	r.Collector()
	r.opt.normalize()

	log := r.opt.Logger
	tracer := r.opt.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("crankdb")
	}

	ctx, span := tracing.StartPhaseSpan(ctx, tracer, "run",
		attribute.Int("concurrency", r.opt.Concurrency),
		attribute.Int64("iterations", r.opt.Iterations),
		attribute.Int64("warmup", r.opt.Warmup),
	)
	defer span.End()

	log.WithField("phase", "setup").Info("running workload setup")
	if err := r.phase(ctx, tracer, "setup", r.opt.Workload.Setup); err != nil {
		return Result{}, &SetupError{Err: err}
	}

	workers, err := r.buildWorkers(ctx)
	if err != nil {
		if tdErr := r.teardown(ctx, tracer, nil); tdErr != nil {
			log.WithError(tdErr).Error("teardown after failed worker setup")
		}
		return Result{}, &SetupError{Err: err}
	}

	res := r.bench(ctx, tracer, workers)
	span.SetAttributes(attribute.String("stop_reason", string(res.StopReason)))

	if err := r.teardown(ctx, tracer, workers); err != nil {
		return res, &TeardownError{Err: err}
	}
	return res, nil
}

func (r *Runner) phase(ctx context.Context, tracer trace.Tracer, name string, fn func(context.Context) error) error {
	ctx, span := tracing.StartPhaseSpan(ctx, tracer, name)
	err := fn(ctx)
	tracing.EndSpan(span, err)
	return err
}

func (r *Runner) buildWorkers(ctx context.Context) ([]Worker, error) {
	workers := make([]Worker, r.opt.Concurrency)
	g, gctx := errgroup.WithContext(ctx)
	for i := range workers {
		id := i
		g.Go(func() error {
			w, err := r.opt.Workload.NewWorker(gctx, id)
			if err != nil {
				return err
			}
			workers[id] = w
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, w := range workers {
			if w != nil {
				_ = w.Close()
			}
		}
		return nil, err
	}
	return workers, nil
}

func (r *Runner) bench(ctx context.Context, tracer trace.Tracer, workers []Worker) Result {
	log := r.opt.Logger
	collector := r.opt.Collector

	stopCtx, cancelStop := context.WithCancel(ctx)
	defer cancelStop()
	// In-flight iterations outlive the stop signal by the grace period.
	iterCtx, cancelIter := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelIter()

	var (
		reasonOnce sync.Once
		reason     StopReason
	)
	stop := func(why StopReason) {
		reasonOnce.Do(func() {
			reason = why
			log.WithField("reason", why).Debug("stop condition reached")
		})
		cancelStop()
	}
	unwatch := context.AfterFunc(ctx, func() { stop(StopCancelled) })
	defer unwatch()

	state := &runState{
		opt:     r.opt,
		arrival: newArrivalController(r.opt),
		tracer:  tracer,
		stopCtx: stopCtx,
		iterCtx: iterCtx,
		stop:    stop,
	}

	reports := make(chan metrics.IterationReport, r.opt.Concurrency*reportsPerWorker)
	consumed := make(chan struct{})
	go func() {
		collector.Consume(reports)
		close(consumed)
	}()

	drained := make(chan struct{})
	go func() {
		select {
		case <-stopCtx.Done():
		case <-drained:
			return
		}
		if r.opt.GracePeriod < 0 {
			cancelIter()
			return
		}
		t := time.NewTimer(r.opt.GracePeriod)
		defer t.Stop()
		select {
		case <-t.C:
			log.WithField("grace", r.opt.GracePeriod).Warn("grace period elapsed; cancelling in-flight iterations")
			cancelIter()
		case <-drained:
		}
	}()

	var (
		startedAt     time.Time
		durationTimer *time.Timer
	)
	start := newBarrier(len(workers), func() {
		startedAt = time.Now()
		collector.Start()
		if r.opt.Duration > 0 {
			durationTimer = time.AfterFunc(r.opt.Duration, func() { stop(StopDuration) })
		}
		log.WithFields(logrus.Fields{
			"phase":   "bench",
			"workers": len(workers),
			"warmup":  r.opt.Warmup,
		}).Info("bench started")
	})

	var wg sync.WaitGroup
	wg.Add(len(workers))
	for i, impl := range workers {
		bw := &benchWorker{
			id:      i,
			impl:    impl,
			warmup:  r.opt.warmupShare(i),
			run:     state,
			reports: reports,
		}
		go func() {
			defer wg.Done()
			if err := start.Wait(stopCtx); err != nil {
				return
			}
			bw.loop()
		}()
	}
	wg.Wait()
	close(drained)
	finishedAt := time.Now()

	if durationTimer != nil {
		durationTimer.Stop()
	}
	stop(StopDrained)

	close(reports)
	<-consumed
	collector.Stop()

	log.WithFields(logrus.Fields{
		"phase":   "drain",
		"reason":  reason,
		"elapsed": finishedAt.Sub(startedAt).Round(time.Millisecond),
	}).Info("bench drained")

	return Result{
		Stats:      collector.Snapshot(),
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		Duration:   finishedAt.Sub(startedAt),
		StopReason: reason,
	}
}

// teardown closes every worker, then runs Workload.Teardown exactly once.
// It uses a context detached from ctx so an interrupted run still cleans up.
func (r *Runner) teardown(ctx context.Context, tracer trace.Tracer, workers []Worker) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.opt.TeardownTimeout)
	defer cancel()

	var result *multierror.Error
	for _, w := range workers {
		if err := w.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := r.phase(ctx, tracer, "teardown", r.opt.Workload.Teardown); err != nil {
		result = multierror.Append(result, err)
	}
	if err := result.ErrorOrNil(); err != nil {
		return err
	}
	r.opt.Logger.WithField("phase", "teardown").Info("teardown complete")
	return nil
}

// IsConfigError reports whether err is (or wraps) a *ConfigError.
func IsConfigError(err error) bool {
	var target *ConfigError
	return errors.As(err, &target)
}
