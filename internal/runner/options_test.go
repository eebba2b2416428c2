package runner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/torosent/crankdb/internal/metrics"
)

var noopWorkload = workloadFuncs{}

type workloadFuncs struct{}

func (workloadFuncs) Setup(context.Context) error { return nil }
func (workloadFuncs) NewWorker(context.Context, int) (Worker, error) {
	return WorkerFunc(func(context.Context) (metrics.Outcome, error) { return metrics.Outcome{}, nil }), nil
}
func (workloadFuncs) Teardown(context.Context) error { return nil }

func TestOptionsNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    Options
		validate func(*testing.T, Options)
	}{
		{
			name:  "defaults",
			input: Options{Concurrency: 1, Iterations: 1, Workload: noopWorkload},
			validate: func(t *testing.T, o Options) {
				if o.ArrivalModel != ArrivalModelUniform {
					t.Errorf("ArrivalModel = %q, want %q", o.ArrivalModel, ArrivalModelUniform)
				}
				if o.RandomSeed == 0 {
					t.Error("RandomSeed should be non-zero")
				}
				if o.LimiterFactory == nil {
					t.Error("LimiterFactory should not be nil")
				}
				if o.GracePeriod != defaultGracePeriod {
					t.Errorf("GracePeriod = %s, want %s", o.GracePeriod, defaultGracePeriod)
				}
				if o.Collector == nil || o.Logger == nil {
					t.Error("Collector and Logger should be set")
				}
			},
		},
		{
			name: "preserve valid values",
			input: Options{
				Concurrency:   10,
				Iterations:    100,
				RatePerSecond: 50,
				ArrivalModel:  ArrivalModelPoisson,
				RandomSeed:    12345,
				GracePeriod:   -1,
			},
			validate: func(t *testing.T, o Options) {
				if o.Concurrency != 10 || o.Iterations != 100 || o.RatePerSecond != 50 {
					t.Errorf("values changed: %+v", o)
				}
				if o.ArrivalModel != ArrivalModelPoisson {
					t.Errorf("ArrivalModel = %q, want %q", o.ArrivalModel, ArrivalModelPoisson)
				}
				if o.RandomSeed != 12345 {
					t.Errorf("RandomSeed = %d, want 12345", o.RandomSeed)
				}
				if o.GracePeriod != -1 {
					t.Errorf("negative GracePeriod should be kept, got %s", o.GracePeriod)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := tt.input
			opts.normalize()
			tt.validate(t, opts)
		})
	}
}

func TestDefaultLimiterFactory(t *testing.T) {
	opts := Options{}
	opts.normalize()

	limiter := opts.LimiterFactory(100)
	if limiter.Burst() != 1 {
		t.Errorf("Burst = %d, want 1", limiter.Burst())
	}
	if limiter.Limit() != 100 {
		t.Errorf("Limit = %v, want 100", limiter.Limit())
	}
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name   string
		input  Options
		issues int
	}{
		{"zero concurrency", Options{Concurrency: 0, Iterations: 1, Workload: noopWorkload}, 1},
		{"no stop condition", Options{Concurrency: 1, Workload: noopWorkload}, 1},
		{"interruptible needs no cap", Options{Concurrency: 1, Interruptible: true, Workload: noopWorkload}, 0},
		{"negative values", Options{Concurrency: 1, Iterations: -1, Duration: time.Second, Warmup: -1, RatePerSecond: -5, Workload: noopWorkload}, 3},
		{"unknown arrival", Options{Concurrency: 1, Iterations: 1, ArrivalModel: "burst", Workload: noopWorkload}, 1},
		{"missing workload", Options{Concurrency: 1, Iterations: 1}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.input.validate()
			if tt.issues == 0 {
				assert.NoError(t, err)
				return
			}
			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Len(t, cfgErr.Issues, tt.issues)
		})
	}
}

func TestWarmupShare(t *testing.T) {
	opts := Options{Concurrency: 4, Warmup: 10}
	var total int64
	for id := 0; id < 4; id++ {
		total += opts.warmupShare(id)
	}
	assert.Equal(t, int64(10), total)
	assert.Equal(t, int64(3), opts.warmupShare(0))
	assert.Equal(t, int64(3), opts.warmupShare(1))
	assert.Equal(t, int64(2), opts.warmupShare(2))
	assert.Equal(t, int64(2), opts.warmupShare(3))
}
