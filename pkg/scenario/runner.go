// Package scenario implements the ten EasyRacer races against a scenario
// server.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/retroryan/easyracer/pkg/config"
	"github.com/retroryan/easyracer/pkg/httpclient"
	"github.com/retroryan/easyracer/pkg/load"
	"github.com/retroryan/easyracer/pkg/log"
	"github.com/retroryan/easyracer/pkg/race"
)

// Expected is the body every scenario must produce to pass.
const Expected = "right"

var (
	// All lists every scenario.
	All = []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	// Default leaves out scenario 3 (thousands of sockets) and
	// scenario 10 (keeps a core busy).
	Default = []int{1, 2, 4, 5, 6, 7, 8, 9}
)

// ErrUnknownScenario is returned for scenario numbers outside 1..10.
var ErrUnknownScenario = errors.New("unknown scenario")

// Result is the outcome of one scenario.
type Result struct {
	Number  int
	Value   string
	Err     error
	Elapsed time.Duration
}

// Won reports whether the scenario produced the expected body.
func (r Result) Won() bool {
	return r.Err == nil && r.Value == Expected
}

// Runner runs scenarios.
type Runner struct {
	cfg     *config.Client
	client  httpclient.Doer
	clock   clockwork.Clock
	sampler load.Sampler
	logger  *log.Logger
}

// NewRunner creates a runner that talks HTTP to cfg.URL. Close the returned
// client when done.
func NewRunner(cfg *config.Client) (*Runner, *httpclient.Client, error) {
	client, err := httpclient.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	return NewRunnerWith(cfg, client), client, nil
}

// NewRunnerWith creates a runner that sends its requests through d.
func NewRunnerWith(cfg *config.Client, d httpclient.Doer) *Runner {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Discard()
	}
	return &Runner{
		cfg:     cfg,
		client:  d,
		clock:   config.GetClock(cfg.Deps),
		sampler: config.GetLoadSampler(cfg.Deps),
		logger:  logger,
	}
}

// Scenario runs scenario n and returns its body.
func (r *Runner) Scenario(ctx context.Context, n int) (string, error) {
	fn, ok := r.scenarios()[n]
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrUnknownScenario, n)
	}

	ctx = log.NewContext(ctx, r.logger.With("operation", fmt.Sprintf("SCENARIO_%d", n)))
	return fn(ctx)
}

// Run runs the scenarios one after the other. It stops early only when ctx
// ends; a failing scenario does not keep the next one from running.
func (r *Runner) Run(ctx context.Context, ns ...int) []Result {
	results := make([]Result, 0, len(ns))
	for _, n := range ns {
		if ctx.Err() != nil {
			break
		}

		r.logger.VerboseMsg("Starting scenario %d", n)
		start := r.clock.Now()
		v, err := r.Scenario(ctx, n)
		res := Result{Number: n, Value: v, Err: err, Elapsed: r.clock.Since(start)}

		if err != nil {
			r.logger.VerboseMsg("Scenario %d failed after %s: %v", n, res.Elapsed, err)
		} else {
			r.logger.VerboseMsg("Scenario %d returned %q after %s", n, v, res.Elapsed)
		}
		results = append(results, res)
	}
	return results
}

func (r *Runner) scenarios() map[int]func(context.Context) (string, error) {
	return map[int]func(context.Context) (string, error){
		1:  r.scenario1,
		2:  r.scenario2,
		3:  r.scenario3,
		4:  r.scenario4,
		5:  r.scenario5,
		6:  r.scenario6,
		7:  r.scenario7,
		8:  r.scenario8,
		9:  r.scenario9,
		10: r.scenario10,
	}
}

// get and getOK build race tasks for a fixed path.
func (r *Runner) get(pathAndQuery string) race.Task[string] {
	return func(ctx context.Context) (string, error) {
		return httpclient.Get(ctx, r.client, pathAndQuery)
	}
}

func (r *Runner) getOK(pathAndQuery string) race.Task[string] {
	return func(ctx context.Context) (string, error) {
		return httpclient.GetOK(ctx, r.client, pathAndQuery)
	}
}
