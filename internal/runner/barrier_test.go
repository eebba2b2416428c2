package runner

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBarrierReleasesAllPartiesOnce(t *testing.T) {
	var releases atomic.Int32
	var arrived atomic.Int32
	b := newBarrier(8, func() {
		releases.Add(1)
		assert.Equal(t, int32(8), arrived.Load(), "release ran before every party arrived")
	})

	var wg sync.WaitGroup
	wg.Add(8)
	for i := 0; i < 8; i++ {
		go func() {
			defer wg.Done()
			arrived.Add(1)
			assert.NoError(t, b.Wait(context.Background()))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), releases.Load())
	assert.ErrorIs(t, b.Wait(context.Background()), errBarrierReleased)
}

func TestBarrierWaitHonoursContext(t *testing.T) {
	b := newBarrier(2, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := b.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// The cancelled party still counted; the next arrival releases.
	require.NoError(t, b.Wait(context.Background()))
}
