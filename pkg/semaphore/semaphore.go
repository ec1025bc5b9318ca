// Package semaphore provides a timeout-aware semaphore implementation
// for controlling concurrent connections with proper timeout handling.
package semaphore

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout is returned by Acquire when no slot became free in time.
var ErrTimeout = errors.New("timeout acquiring connection slot")

// ConnSemaphore controls concurrent access with timeout support.
// It uses a buffered channel to limit the number of concurrent operations.
type ConnSemaphore struct {
	sem     chan struct{}
	timeout time.Duration
}

// New creates a semaphore with capacity n and default timeout.
// The semaphore starts with all n slots available. A timeout <= 0 waits
// until a slot frees up or the context ends.
func New(n int, timeout time.Duration) *ConnSemaphore {
	sem := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		sem <- struct{}{}
	}
	return &ConnSemaphore{sem: sem, timeout: timeout}
}

// Acquire attempts to acquire the semaphore within the timeout period.
// Returns an error wrapping ErrTimeout if the timeout expires, or the
// context error if ctx is cancelled first.
// If the semaphore is nil, this is a no-op and returns nil.
func (s *ConnSemaphore) Acquire(ctx context.Context) error {
	if s == nil {
		return nil // no-op if semaphore not provided
	}

	waitCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	select {
	case <-s.sem:
		return nil
	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w after %v", ErrTimeout, s.timeout)
	}
}

// Release releases the semaphore slot.
// If the semaphore is nil, this is a no-op.
func (s *ConnSemaphore) Release() {
	if s == nil {
		return // no-op if semaphore not provided
	}
	s.sem <- struct{}{}
}

// InUse returns the number of slots currently held.
func (s *ConnSemaphore) InUse() int {
	if s == nil {
		return 0
	}
	return cap(s.sem) - len(s.sem)
}
