package scenario

import (
	"context"
	"crypto/rand"
	"crypto/sha512"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/retroryan/easyracer/pkg/httpclient"
	"github.com/retroryan/easyracer/pkg/log"
	"github.com/retroryan/easyracer/pkg/race"
)

// scenario1 races two requests; the first response wins.
func (r *Runner) scenario1(ctx context.Context) (string, error) {
	return race.First(ctx, r.get("/1"), r.get("/1"))
}

// scenario2 races two requests, one of which fails with a connection error.
func (r *Runner) scenario2(ctx context.Context) (string, error) {
	return race.First(ctx, r.get("/2"), r.get("/2"))
}

func (r *Runner) scenario3(ctx context.Context) (string, error) {
	tasks := make([]race.Task[string], r.cfg.Fanout)
	for i := range tasks {
		tasks[i] = r.get("/3")
	}
	return race.First(ctx, tasks...)
}

// scenario4 races a request that times out against one that does not.
func (r *Runner) scenario4(ctx context.Context) (string, error) {
	return race.First(ctx,
		race.WithTimeout(r.clock, r.cfg.ScenarioTimeout, r.get("/4")),
		r.get("/4"),
	)
}

// scenario5 ignores responses that are not 200.
func (r *Runner) scenario5(ctx context.Context) (string, error) {
	return race.First(ctx, r.getOK("/5"), r.getOK("/5"))
}

func (r *Runner) scenario6(ctx context.Context) (string, error) {
	return race.First(ctx, r.getOK("/6"), r.getOK("/6"), r.getOK("/6"))
}

// scenario7 hedges a slow request with a second one sent later.
func (r *Runner) scenario7(ctx context.Context) (string, error) {
	return race.First(ctx,
		r.get("/7"),
		race.Delayed(r.clock, r.cfg.HedgeDelay, r.get("/7")),
	)
}

// scenario8 races two users of a resource that must always be closed,
// including when the user lost the race and was cancelled.
func (r *Runner) scenario8(ctx context.Context) (string, error) {
	return race.First(ctx, r.useResource, r.useResource)
}

func (r *Runner) useResource(ctx context.Context) (string, error) {
	id, err := httpclient.GetOK(ctx, r.client, "/8?open")
	if err != nil {
		return "", fmt.Errorf("opening resource: %w", err)
	}

	ctx = log.WithField(ctx, "resource", id)
	logger := log.FromContext(ctx)
	logger.VerboseMsg("Opened resource")

	defer func() {
		closeCtx, cancel := r.detached(ctx)
		defer cancel()

		if _, err := httpclient.GetOK(closeCtx, r.client, "/8?close="+id); err != nil {
			logger.ErrorMsg("Closing resource: %v", err)
			return
		}
		logger.VerboseMsg("Closed resource")
	}()

	return httpclient.GetOK(ctx, r.client, "/8?use="+id)
}

// detached returns a context that keeps ctx's values but not its
// cancellation, bounded by the configured timeout.
func (r *Runner) detached(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithoutCancel(ctx)
	if r.cfg.Timeout > 0 {
		return context.WithTimeout(ctx, r.cfg.Timeout)
	}
	return context.WithCancel(ctx)
}

type letter struct {
	n    int
	at   time.Time
	body string
}

// scenario9 collects ten responses; the successful ones spell the answer
// in the order they arrived.
func (r *Runner) scenario9(ctx context.Context) (string, error) {
	tasks := make([]race.Task[letter], 10)
	for i := range tasks {
		tasks[i] = func(ctx context.Context) (letter, error) {
			body, err := httpclient.GetOK(ctx, r.client, "/9")
			var se *httpclient.StatusError
			if errors.As(err, &se) {
				return letter{n: i}, nil
			}
			if err != nil {
				return letter{}, err
			}
			return letter{n: i, at: r.clock.Now(), body: body}, nil
		}
	}

	letters, err := race.All(ctx, tasks...)
	if err != nil {
		return "", err
	}

	letters = slices.DeleteFunc(letters, func(l letter) bool { return l.body == "" })
	slices.SortStableFunc(letters, func(a, b letter) int {
		if c := a.at.Compare(b.at); c != 0 {
			return c
		}
		return a.n - b.n
	})

	var sb strings.Builder
	for _, l := range letters {
		sb.WriteString(l.body)
	}
	return sb.String(), nil
}

// scenario10 keeps a core busy while a blocking request is open, and
// reports the process load until the server is satisfied.
func (r *Runner) scenario10(ctx context.Context) (string, error) {
	id := uuid.NewString()
	ctx = log.WithField(ctx, "id", id)

	s := race.NewScope(ctx)
	blocker := race.Fork(s, func(ctx context.Context) (string, error) {
		v, err := r.blocker(ctx, id)
		if err != nil {
			s.Shutdown()
		}
		return v, err
	})
	reporter := race.Fork(s, func(ctx context.Context) (string, error) {
		v, err := r.reporter(ctx, id)
		if err != nil {
			s.Shutdown()
		}
		return v, err
	})

	if err := s.Join(); err != nil {
		return "", err
	}

	v, err := reporter.Get()
	if errors.Is(err, context.Canceled) {
		if _, berr := blocker.Get(); berr != nil && !errors.Is(berr, context.Canceled) {
			return "", fmt.Errorf("blocking request: %w", berr)
		}
	}
	return v, err
}

// blocker holds a request open and burns CPU until the request returns.
func (r *Runner) blocker(ctx context.Context, id string) (string, error) {
	s := race.NewScope(ctx)
	req := race.Fork(s, func(ctx context.Context) (string, error) {
		defer s.Shutdown()
		return httpclient.Get(ctx, r.client, "/10?"+id)
	})
	race.Fork(s, func(ctx context.Context) (struct{}, error) {
		burn(ctx)
		return struct{}{}, nil
	})

	if err := s.Join(); err != nil {
		return "", err
	}
	return req.Get()
}

// burn hashes random data until ctx is done.
func burn(ctx context.Context) {
	var sum [sha512.Size]byte
	_, _ = rand.Read(sum[:])
	for ctx.Err() == nil {
		for i := 0; i < 1000; i++ {
			sum = sha512.Sum512(sum[:])
		}
	}
}

// reporter sends the process load until the server answers 2xx.
func (r *Runner) reporter(ctx context.Context, id string) (string, error) {
	logger := log.FromContext(ctx)
	for {
		l := r.sampler.Load()
		resp, err := r.client.Do(ctx, "/10?"+id+"="+strconv.FormatFloat(l, 'f', -1, 64))
		if err != nil {
			return "", err
		}

		switch {
		case resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices:
			return resp.Body, nil
		case resp.StatusCode >= http.StatusMultipleChoices && resp.StatusCode < http.StatusBadRequest:
			logger.VerboseMsg("Reported load %.2f, server wants more", l)
		default:
			return "", fmt.Errorf("load report rejected: %w", &httpclient.StatusError{Code: resp.StatusCode, Body: resp.Body})
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-r.clock.After(r.cfg.ReportInterval):
		}
	}
}
