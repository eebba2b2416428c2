package runner

import (
	"context"
	"testing"
	"time"
)

func TestPoissonArrivalNextDelayUsesSampler(t *testing.T) {
	ctrl := &poissonArrival{rate: 200, sample: func() float64 { return 1 }}
	delay := ctrl.nextDelay()
	expected := time.Second / 200
	if delay != expected {
		t.Fatalf("expected delay %s, got %s", expected, delay)
	}
}

func TestPoissonArrivalWaitCancelledContext(t *testing.T) {
	ctrl := &poissonArrival{rate: 0.000001, sample: func() float64 { return 1 }}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// The first arrival is immediate; the second lands far in the future.
	_ = ctrl.Wait(ctx)
	if err := ctrl.Wait(ctx); err == nil {
		t.Fatalf("expected context error when cancelled")
	}
}

func TestPoissonArrivalSharesTimelineAcrossCallers(t *testing.T) {
	ctrl := &poissonArrival{rate: 100, sample: func() float64 { return 1 }}
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 5; i++ {
		if err := ctrl.Wait(ctx); err != nil {
			t.Fatalf("wait: %v", err)
		}
	}
	// Five arrivals at 100/s with a constant sample need at least four gaps of 10ms.
	if elapsed := time.Since(start); elapsed < 35*time.Millisecond {
		t.Fatalf("arrivals not spaced: %s", elapsed)
	}
}

func TestUnlimitedArrivalWhenNoRate(t *testing.T) {
	opt := Options{Concurrency: 1}
	opt.normalize()
	if _, ok := newArrivalController(opt).(unlimitedArrival); !ok {
		t.Fatalf("expected unlimited arrival when rate is zero")
	}
	opt.RatePerSecond = 10
	if _, ok := newArrivalController(opt).(*uniformArrival); !ok {
		t.Fatalf("expected uniform arrival by default")
	}
	opt.ArrivalModel = ArrivalModelPoisson
	if _, ok := newArrivalController(opt).(*poissonArrival); !ok {
		t.Fatalf("expected poisson arrival")
	}
}
