package race

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// hang blocks until cancelled and records that it was.
func hang(cancelled *atomic.Int32) Task[string] {
	return func(ctx context.Context) (string, error) {
		<-ctx.Done()
		cancelled.Add(1)
		return "", ctx.Err()
	}
}

func value(v string) Task[string] {
	return func(ctx context.Context) (string, error) { return v, nil }
}

func fail(err error) Task[string] {
	return func(ctx context.Context) (string, error) { return "", err }
}

func TestFirst_WinnerCancelsLosers(t *testing.T) {
	t.Parallel()

	var cancelled atomic.Int32
	got, err := First(context.Background(), hang(&cancelled), value("right"), hang(&cancelled))

	require.NoError(t, err)
	assert.Equal(t, "right", got)
	// First only returns after losers have returned
	assert.Equal(t, int32(2), cancelled.Load())
}

func TestFirst_FailuresDoNotWin(t *testing.T) {
	t.Parallel()

	slowRight := func(ctx context.Context) (string, error) {
		select {
		case <-time.After(20 * time.Millisecond):
			return "right", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	got, err := First(context.Background(), fail(errors.New("500")), slowRight, fail(errors.New("conn reset")))

	require.NoError(t, err)
	assert.Equal(t, "right", got)
}

func TestFirst_OnlyOneWinner(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	task := func(ctx context.Context) (int32, error) {
		return calls.Add(1), nil
	}

	tasks := make([]Task[int32], 100)
	for i := range tasks {
		tasks[i] = task
	}

	got, err := First(context.Background(), tasks...)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, got, int32(1))
	assert.LessOrEqual(t, got, int32(100))
}

func TestFirst_NoWinner(t *testing.T) {
	t.Parallel()

	errA := errors.New("a")
	errB := errors.New("b")

	_, err := First(context.Background(), fail(errA), fail(errB))

	require.ErrorIs(t, err, ErrNoWinner)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
}

func TestFirst_NoTasks(t *testing.T) {
	t.Parallel()

	_, err := First[string](context.Background())
	assert.ErrorIs(t, err, ErrNoWinner)
}

func TestFirst_ParentCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	var cancelled atomic.Int32

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := First(ctx, hang(&cancelled), hang(&cancelled))

	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrNoWinner)
	assert.Equal(t, int32(2), cancelled.Load())
}

func TestFirst_ManyRacers(t *testing.T) {
	t.Parallel()

	const n = 10000
	var cancelled atomic.Int32

	tasks := make([]Task[string], n)
	for i := range tasks {
		tasks[i] = hang(&cancelled)
	}
	tasks[n/2] = value("right")

	got, err := First(context.Background(), tasks...)

	require.NoError(t, err)
	assert.Equal(t, "right", got)
	assert.Equal(t, int32(n-1), cancelled.Load())
}

func TestAll_ResultsInOrder(t *testing.T) {
	t.Parallel()

	tasks := []Task[int]{}
	for i := 0; i < 10; i++ {
		tasks = append(tasks, func(ctx context.Context) (int, error) {
			time.Sleep(time.Duration(10-i) * time.Millisecond)
			return i, nil
		})
	}

	got, err := All(context.Background(), tasks...)

	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
}

func TestAll_FailureCancelsRest(t *testing.T) {
	t.Parallel()

	errBoom := errors.New("boom")
	var cancelled atomic.Int32

	_, err := All(context.Background(), hang(&cancelled), fail(errBoom), hang(&cancelled))

	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, int32(2), cancelled.Load())
}

func TestAll_Empty(t *testing.T) {
	t.Parallel()

	got, err := All[int](context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestWithTimeout_Expires(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	var cancelled atomic.Int32
	task := WithTimeout(clock, time.Second, hang(&cancelled))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		_, err := task(ctx)
		errCh <- err
	}()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Second)

	err := <-errCh
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, int32(1), cancelled.Load())
}

func TestWithTimeout_FinishesInTime(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	task := WithTimeout(clock, time.Second, value("right"))

	got, err := task(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "right", got)
}

func TestWithTimeout_PassesThroughErrors(t *testing.T) {
	t.Parallel()

	errBoom := errors.New("boom")
	task := WithTimeout(clockwork.NewFakeClock(), time.Second, fail(errBoom))

	_, err := task(context.Background())
	assert.ErrorIs(t, err, errBoom)
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestFirst_TimeoutLoserAgainstPlainRequest(t *testing.T) {
	t.Parallel()

	// mirrors scenario 4: a request with a timeout races a plain one; the
	// timed out racer must not win but its cancellation unblocks the other
	clock := clockwork.NewFakeClock()
	released := make(chan struct{})

	timed := WithTimeout(clock, time.Second, func(ctx context.Context) (string, error) {
		<-ctx.Done()
		close(released)
		return "", ctx.Err()
	})
	plain := func(ctx context.Context) (string, error) {
		select {
		case <-released:
			return "right", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resCh := make(chan string, 1)
	go func() {
		v, _ := First(ctx, timed, plain)
		resCh <- v
	}()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Second)

	assert.Equal(t, "right", <-resCh)
}

func TestDelayed_StartsAfterDelay(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	var started atomic.Bool
	task := Delayed(clock, 3*time.Second, func(ctx context.Context) (string, error) {
		started.Store(true)
		return "hedge", nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resCh := make(chan string, 1)
	go func() {
		v, _ := task(ctx)
		resCh <- v
	}()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(2 * time.Second)
	assert.False(t, started.Load(), "task started before its delay")

	clock.Advance(time.Second)
	assert.Equal(t, "hedge", <-resCh)
	assert.True(t, started.Load())
}

func TestDelayed_CancelledBeforeStart(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	var started atomic.Bool
	task := Delayed(clock, time.Hour, func(ctx context.Context) (string, error) {
		started.Store(true)
		return "", nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := task(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, started.Load())
}

func TestDelayed_ZeroDelay(t *testing.T) {
	t.Parallel()

	got, err := Delayed(clockwork.NewFakeClock(), 0, value("now"))(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "now", got)
}

func TestFirst_HedgedRequest(t *testing.T) {
	t.Parallel()

	// mirrors scenario 7: the first request never answers, the hedge sent
	// after the delay does
	clock := clockwork.NewFakeClock()
	var cancelled atomic.Int32

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resCh := make(chan string, 1)
	go func() {
		v, _ := First(ctx, hang(&cancelled), Delayed(clock, 3*time.Second, value("right")))
		resCh <- v
	}()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(3 * time.Second)

	assert.Equal(t, "right", <-resCh)
	assert.Equal(t, int32(1), cancelled.Load())
}
