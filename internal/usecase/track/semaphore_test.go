package track_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getpanelist/panelist/internal/usecase/track"
)

func TestSemaphore_LimitsConcurrency(t *testing.T) {
	// Given a 2-slot gate and 10 workers
	sem := track.NewSemaphore(2)

	var inFlight, peak int64
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, sem.Acquire(context.Background()))
			defer sem.Release()

			now := atomic.AddInt64(&inFlight, 1)
			for {
				old := atomic.LoadInt64(&peak)
				if now <= old || atomic.CompareAndSwapInt64(&peak, old, now) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt64(&inFlight, -1)
		}()
	}
	wg.Wait()

	// Then no more than 2 workers ever ran at once
	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(2))
}

func TestSemaphore_FIFOWakeOrder(t *testing.T) {
	sem := track.NewSemaphore(1)
	require.NoError(t, sem.Acquire(context.Background()))

	var order []int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 1; i <= 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			require.NoError(t, sem.Acquire(context.Background()))
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			sem.Release()
		}(i)
		// Stagger arrivals so the waiter queue order is deterministic.
		time.Sleep(10 * time.Millisecond)
	}

	sem.Release()
	wg.Wait()

	assert.Equal(t, []int{1, 2, 3}, order, "waiters wake in arrival order")
}

func TestSemaphore_AcquireRespectsContext(t *testing.T) {
	sem := track.NewSemaphore(1)
	require.NoError(t, sem.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := sem.Acquire(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The slot must still be usable after the abandoned wait.
	sem.Release()
	assert.NoError(t, sem.Acquire(context.Background()))
}
