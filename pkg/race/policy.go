package race

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrNoWinner is returned by First when no task succeeded.
	ErrNoWinner = errors.New("no task succeeded")
	// ErrTimeout is returned by tasks wrapped with WithTimeout that ran out of time.
	ErrTimeout = errors.New("task timed out")
)

// First runs all tasks concurrently and returns the result of the first one
// to succeed. The moment a task succeeds, the others are cancelled. First
// returns only after every task has returned.
//
// If no task succeeds the error wraps ErrNoWinner and every task error.
func First[T any](ctx context.Context, tasks ...Task[T]) (T, error) {
	var zero T
	if len(tasks) == 0 {
		return zero, ErrNoWinner
	}

	s := NewScope(ctx)

	var (
		once   sync.Once
		won    bool
		winner T
	)

	subtasks := make([]*Subtask[T], 0, len(tasks))
	for _, task := range tasks {
		subtasks = append(subtasks, Fork(s, func(ctx context.Context) (T, error) {
			v, err := task(ctx)
			if err == nil {
				once.Do(func() {
					won, winner = true, v
					s.Shutdown()
				})
			}
			return v, err
		}))
	}

	joinErr := s.Join()
	if won {
		return winner, nil
	}
	if joinErr != nil {
		return zero, joinErr
	}

	errs := make([]error, 0, len(subtasks))
	for _, st := range subtasks {
		if _, err := st.Get(); err != nil {
			errs = append(errs, err)
		}
	}
	return zero, fmt.Errorf("%w: %w", ErrNoWinner, errors.Join(errs...))
}

// All runs all tasks concurrently and returns their results in the order
// of tasks. The first failure cancels the remaining tasks and is returned
// once they have all stopped.
func All[T any](ctx context.Context, tasks ...Task[T]) ([]T, error) {
	g, gctx := errgroup.WithContext(ctx)

	results := make([]T, len(tasks))
	for i, task := range tasks {
		g.Go(func() error {
			v, err := task(gctx)
			if err != nil {
				return err
			}
			results[i] = v
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// WithTimeout wraps task so that it is cancelled if it has not returned
// within d, in which case it fails with ErrTimeout.
func WithTimeout[T any](clock clockwork.Clock, d time.Duration, task Task[T]) Task[T] {
	return func(ctx context.Context) (T, error) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		type result struct {
			v   T
			err error
		}
		done := make(chan result, 1)
		go func() {
			v, err := task(ctx)
			done <- result{v, err}
		}()

		timer := clock.NewTimer(d)
		defer timer.Stop()

		select {
		case r := <-done:
			return r.v, r.err
		case <-timer.Chan():
			cancel()
			r := <-done
			if r.err == nil {
				return r.v, nil
			}
			var zero T
			return zero, fmt.Errorf("%w after %s", ErrTimeout, d)
		}
	}
}

// Delayed wraps task so that it starts only after d. If ctx ends first the
// task never runs and the context error is returned.
func Delayed[T any](clock clockwork.Clock, d time.Duration, task Task[T]) Task[T] {
	return func(ctx context.Context) (T, error) {
		if d > 0 {
			timer := clock.NewTimer(d)
			defer timer.Stop()

			select {
			case <-ctx.Done():
				var zero T
				return zero, ctx.Err()
			case <-timer.Chan():
			}
		}
		return task(ctx)
	}
}
