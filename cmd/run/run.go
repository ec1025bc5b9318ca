// Package run provides the run command, which races the scenarios against
// a scenario server and reports which ones produced the right answer.
package run

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/retroryan/easyracer/cmd/shared"
	"github.com/retroryan/easyracer/pkg/config"
	"github.com/retroryan/easyracer/pkg/log"
	"github.com/retroryan/easyracer/pkg/prompt"
	"github.com/retroryan/easyracer/pkg/scenario"
)

// GetCommand returns the CLI command running scenarios.
func GetCommand() *cli.Command {
	return newCommand(nil)
}

func newCommand(deps *config.Dependencies) *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Race scenarios against a scenario server",
		Description: "Without --scenario or --all, asks which scenario to run when attached to a\n" +
			"terminal and runs the default set (all but 3 and 10) otherwise.",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := config.DefaultClient()
			if err := shared.LoadConfigFile(cmd, cfg); err != nil {
				return err
			}
			applyFlags(cmd, cfg)
			cfg.Logger = log.New(cfg.Verbose)
			cfg.Deps = deps

			if err := shared.CheckConfig(cfg.Logger, cfg); err != nil {
				return err
			}

			in := config.GetStdinFunc(deps)()
			out := config.GetStdoutFunc(deps)()

			ns, err := choose(ctx, cmd.Bool(shared.AllFlag), cmd.StringSlice(shared.ScenarioFlag), isTerminal(in), in, out)
			if err != nil {
				return err
			}

			return execute(ctx, cfg, ns, out)
		},
		Flags: getFlags(),
	}
}

// applyFlags copies explicitly set flags over the configuration.
func applyFlags(cmd *cli.Command, cfg *config.Client) {
	if cmd.IsSet(shared.URLFlag) {
		cfg.URL = cmd.String(shared.URLFlag)
	}
	if cmd.IsSet(shared.TimeoutFlag) {
		cfg.Timeout = shared.Timeout(cmd)
	}
	if cmd.IsSet(shared.VerboseFlag) {
		cfg.Verbose = cmd.Bool(shared.VerboseFlag)
	}
	if cmd.IsSet(shared.LogFileFlag) {
		cfg.LogFile = cmd.String(shared.LogFileFlag)
	}
	if cmd.IsSet(shared.FanoutFlag) {
		cfg.Fanout = int(cmd.Int(shared.FanoutFlag))
	}
	if cmd.IsSet(shared.HedgeFlag) {
		cfg.HedgeDelay = cmd.Duration(shared.HedgeFlag)
	}
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && prompt.IsInteractive(f)
}

// choose decides which scenarios to run from the flags, or by asking.
func choose(ctx context.Context, all bool, specs []string, interactive bool, in io.Reader, out io.Writer) ([]int, error) {
	switch {
	case all:
		return scenario.All, nil
	case len(specs) > 0:
		return shared.ParseScenarios(specs)
	case !interactive:
		return scenario.Default, nil
	}

	n, err := prompt.Ask(ctx, in, out)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return scenario.Default, nil
	}
	return []int{n}, nil
}

func execute(ctx context.Context, cfg *config.Client, ns []int, out io.Writer) error {
	runner, client, err := scenario.NewRunner(cfg)
	if err != nil {
		return fmt.Errorf("creating client: %w", err)
	}
	defer client.Close()

	cfg.Logger.VerboseMsg("Racing scenarios %v against %s", ns, cfg.URL)

	failed := 0
	for _, res := range runner.Run(ctx, ns...) {
		elapsed := res.Elapsed.Round(time.Millisecond)
		switch {
		case res.Won():
			fmt.Fprintf(out, "Scenario %d: %s (%s)\n", res.Number, res.Value, elapsed)
		case res.Err != nil:
			failed++
			fmt.Fprintf(out, "Scenario %d: failed after %s: %s\n", res.Number, elapsed, res.Err)
		default:
			failed++
			fmt.Fprintf(out, "Scenario %d: got %q, want %q (%s)\n", res.Number, res.Value, scenario.Expected, elapsed)
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d scenarios failed", failed, len(ns))
	}
	return nil
}

func getFlags() []cli.Flag {
	flags := []cli.Flag{}

	flags = append(flags, shared.GetCommonFlags()...)
	flags = append(flags, shared.GetRunFlags()...)

	return flags
}
