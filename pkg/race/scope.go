// Package race provides structured concurrency for racing tasks.
//
// A Scope owns the tasks forked into it. Join waits for all of them, so no
// task outlives the code that started it. First and All build the two
// common shutdown policies on top of a Scope: the first success wins and
// cancels the rest, or the first failure cancels the rest.
package race

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ErrScopeClosed is returned by subtasks forked after Join was called.
var ErrScopeClosed = errors.New("scope is closed")

// Task is a unit of work run inside a scope. It must return once ctx is done.
type Task[T any] func(ctx context.Context) (T, error)

// State describes the progress of a subtask.
type State int

const (
	Running State = iota
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Scope owns a set of concurrently running tasks.
type Scope struct {
	parent context.Context
	ctx    context.Context
	cancel context.CancelFunc

	g errgroup.Group

	mu     sync.Mutex
	closed bool
}

// NewScope creates a scope whose tasks observe a child of ctx.
func NewScope(ctx context.Context) *Scope {
	child, cancel := context.WithCancel(ctx)
	return &Scope{parent: ctx, ctx: child, cancel: cancel}
}

// Context returns the context handed to forked tasks.
func (s *Scope) Context() context.Context {
	return s.ctx
}

// Shutdown cancels every running task. Tasks still have to return before
// Join does.
func (s *Scope) Shutdown() {
	s.cancel()
}

// Join closes the scope to new forks and waits for every forked task.
// It returns the parent's error if the parent context ended, nil otherwise.
func (s *Scope) Join() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	_ = s.g.Wait()
	s.cancel()

	return s.parent.Err()
}

// Subtask is the handle of a forked task.
type Subtask[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// Fork starts task in the scope.
func Fork[T any](s *Scope, task Task[T]) *Subtask[T] {
	st := &Subtask[T]{done: make(chan struct{})}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		var zero T
		st.finish(zero, ErrScopeClosed)
		return st
	}

	s.g.Go(func() error {
		v, err := task(s.ctx)
		st.finish(v, err)
		return nil
	})

	return st
}

func (st *Subtask[T]) finish(v T, err error) {
	st.value, st.err = v, err
	close(st.done)
}

// Get blocks until the task returned and yields its result.
func (st *Subtask[T]) Get() (T, error) {
	<-st.done
	return st.value, st.err
}

// Done is closed when the task returned.
func (st *Subtask[T]) Done() <-chan struct{} {
	return st.done
}

// State reports whether the task is still running and how it ended.
func (st *Subtask[T]) State() State {
	select {
	case <-st.done:
		if st.err != nil {
			return Failed
		}
		return Succeeded
	default:
		return Running
	}
}
