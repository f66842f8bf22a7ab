package track

import (
	"context"
	"sync"
)

// Semaphore is a FIFO counting semaphore gating platform mutation calls.
// Release hands a freed slot directly to the oldest waiter, so waiters are
// served in arrival order.
type Semaphore struct {
	mu      sync.Mutex
	slots   int
	waiters []chan struct{}
}

// NewSemaphore creates a semaphore with n available slots.
func NewSemaphore(n int) *Semaphore {
	return &Semaphore{slots: n}
}

// Acquire blocks until a slot is available or the context is done.
func (s *Semaphore) Acquire(ctx context.Context) error {
	s.mu.Lock()
	if s.slots > 0 {
		s.slots--
		s.mu.Unlock()
		return nil
	}

	ready := make(chan struct{}, 1)
	s.waiters = append(s.waiters, ready)
	s.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		s.mu.Lock()
		for i, w := range s.waiters {
			if w == ready {
				s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
				s.mu.Unlock()
				return ctx.Err()
			}
		}
		s.mu.Unlock()
		// A slot was handed over concurrently with cancellation.
		// Take it and give it back.
		<-ready
		s.Release()
		return ctx.Err()
	}
}

// Release frees a slot, waking the oldest waiter if any.
func (s *Semaphore) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.waiters) > 0 {
		ready := s.waiters[0]
		s.waiters = s.waiters[1:]
		ready <- struct{}{}
		return
	}
	s.slots++
}
