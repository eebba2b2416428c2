package runner

import (
	"context"
	"errors"
	"sync"
)

var errBarrierReleased = errors.New("runner: barrier already released")

// barrier is a single-use rendezvous for a fixed number of parties. The last
// party to arrive runs onRelease before anyone is let through.
type barrier struct {
	mu        sync.Mutex
	remaining int
	released  chan struct{}
	onRelease func()
}

func newBarrier(parties int, onRelease func()) *barrier {
	return &barrier{
		remaining: parties,
		released:  make(chan struct{}),
		onRelease: onRelease,
	}
}

// Wait arrives at the barrier and blocks until every party has arrived or ctx
// is done. Arrival is counted even when ctx is already done.
func (b *barrier) Wait(ctx context.Context) error {
	b.mu.Lock()
	if b.remaining == 0 {
		b.mu.Unlock()
		return errBarrierReleased
	}
	b.remaining--
	last := b.remaining == 0
	b.mu.Unlock()

	if last {
		if b.onRelease != nil {
			b.onRelease()
		}
		close(b.released)
		return nil
	}

	select {
	case <-b.released:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
