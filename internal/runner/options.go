package runner

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/torosent/crankdb/internal/metrics"
)

// ArrivalModel selects how iteration starts are spaced when a rate is set.
type ArrivalModel string

const (
	ArrivalModelUniform ArrivalModel = "uniform"
	ArrivalModelPoisson ArrivalModel = "poisson"
)

const (
	defaultGracePeriod     = 5 * time.Second
	defaultTeardownTimeout = time.Minute
	reportsPerWorker       = 64
)

// Options configure the Runner.
type Options struct {
	Concurrency      int           // number of worker goroutines (must be >= 1)
	Iterations       int64         // measured iterations to execute (0 means no count cap)
	Duration         time.Duration // bench time limit measured from barrier release (0 means no duration cap)
	Warmup           int64         // iterations excluded from statistics, spread across workers
	RatePerSecond    int           // global iteration starts per second (0 means unlimited)
	ArrivalModel     ArrivalModel
	RandomSeed       int64
	PoissonSampler   func() float64
	IterationTimeout time.Duration // per-iteration deadline (0 means none)
	GracePeriod      time.Duration // how long in-flight iterations may run after stop (0 = default, negative = cancel immediately)
	TeardownTimeout  time.Duration
	Interruptible    bool // an external cancellation signal is wired to the run context

	Workload       Workload           // workload to drive (required)
	Collector      *metrics.Collector // optional; created when nil
	FailureLogger  FailureLogger      // optional per-iteration failure sink
	Logger         logrus.FieldLogger
	Tracer         trace.Tracer
	LimiterFactory func(rps int) *rate.Limiter // optional injection for tests
}

// FailureLogger receives failed iterations after they have been timed.
type FailureLogger interface {
	LogFailure(worker int, err error)
}

func (o Options) validate() error {
	var issues []string
	if o.Concurrency < 1 {
		issues = append(issues, "concurrency must be >= 1")
	}
	if o.Iterations < 0 {
		issues = append(issues, "iterations must be >= 0")
	}
	if o.Duration < 0 {
		issues = append(issues, "duration must be >= 0")
	}
	if o.Warmup < 0 {
		issues = append(issues, "warmup must be >= 0")
	}
	if o.RatePerSecond < 0 {
		issues = append(issues, "rate must be >= 0")
	}
	if o.IterationTimeout < 0 {
		issues = append(issues, "iteration timeout must be >= 0")
	}
	switch o.ArrivalModel {
	case "", ArrivalModelUniform, ArrivalModelPoisson:
	default:
		issues = append(issues, fmt.Sprintf("arrival model %q is not supported", o.ArrivalModel))
	}
	if o.Iterations == 0 && o.Duration == 0 && !o.Interruptible {
		issues = append(issues, "no termination condition: set iterations or duration, or wire a cancellation signal")
	}
	if o.Workload == nil {
		issues = append(issues, "workload is required")
	}
	if len(issues) > 0 {
		return &ConfigError{Issues: issues}
	}
	return nil
}

func (o *Options) normalize() {
	if o.ArrivalModel == "" {
		o.ArrivalModel = ArrivalModelUniform
	}
	if o.RandomSeed == 0 {
		o.RandomSeed = time.Now().UnixNano()
	}
	if o.GracePeriod == 0 {
		o.GracePeriod = defaultGracePeriod
	}
	if o.TeardownTimeout <= 0 {
		o.TeardownTimeout = defaultTeardownTimeout
	}
	if o.Collector == nil {
		o.Collector = metrics.NewCollector()
	}
	if o.Logger == nil {
		o.Logger = logrus.StandardLogger()
	}
	if o.LimiterFactory == nil {
		o.LimiterFactory = func(rps int) *rate.Limiter {
			if rps <= 0 {
				return rate.NewLimiter(rate.Inf, 0)
			}
			// Burst of one keeps the global rate from overshooting at start.
			return rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// warmupShare returns how many warmup iterations worker id performs.
func (o Options) warmupShare(id int) int64 {
	n := int64(o.Concurrency)
	share := o.Warmup / n
	if int64(id) < o.Warmup%n {
		share++
	}
	return share
}
