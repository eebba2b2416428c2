package runner

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// arrivalController gates iteration starts. One controller is shared by all
// workers, so the configured rate is global rather than per worker.
type arrivalController interface {
	Wait(ctx context.Context) error
}

func newArrivalController(opt Options) arrivalController {
	if opt.RatePerSecond <= 0 {
		return unlimitedArrival{}
	}
	switch opt.ArrivalModel {
	case ArrivalModelPoisson:
		sampler := opt.PoissonSampler
		if sampler == nil {
			seeded := rand.New(rand.NewSource(opt.RandomSeed))
			sampler = seeded.ExpFloat64
		}
		return &poissonArrival{rate: float64(opt.RatePerSecond), sample: sampler}
	default:
		return &uniformArrival{limiter: opt.LimiterFactory(opt.RatePerSecond)}
	}
}

type unlimitedArrival struct{}

func (unlimitedArrival) Wait(ctx context.Context) error {
	return ctx.Err()
}

// uniformArrival delegates pacing to a rate.Limiter (uniform spacing).
type uniformArrival struct {
	limiter *rate.Limiter
}

func (u *uniformArrival) Wait(ctx context.Context) error {
	if u.limiter == nil {
		return ctx.Err()
	}
	return u.limiter.Wait(ctx)
}

// poissonArrival samples exponential inter-arrival times to approximate a
// Poisson process. Arrivals are scheduled on a shared timeline so concurrent
// workers do not multiply the rate.
type poissonArrival struct {
	mu     sync.Mutex
	rate   float64
	sample func() float64
	next   time.Time
}

func (p *poissonArrival) Wait(ctx context.Context) error {
	p.mu.Lock()
	now := time.Now()
	if p.next.Before(now) {
		p.next = now
	}
	at := p.next
	p.next = p.next.Add(p.nextDelay())
	p.mu.Unlock()

	delay := time.Until(at)
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (p *poissonArrival) nextDelay() time.Duration {
	if p.rate <= 0 || p.sample == nil {
		return 0
	}
	value := p.sample()
	delay := float64(time.Second) * value / p.rate
	if delay > math.MaxInt64 {
		delay = math.MaxInt64
	}
	return time.Duration(delay)
}
