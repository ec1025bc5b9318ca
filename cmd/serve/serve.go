// Package serve provides the serve command, which runs a local scenario
// server to race against.
package serve

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/retroryan/easyracer/cmd/shared"
	"github.com/retroryan/easyracer/pkg/config"
	"github.com/retroryan/easyracer/pkg/log"
	"github.com/retroryan/easyracer/pkg/server"
)

// GetCommand returns the CLI command running the scenario server.
func GetCommand() *cli.Command {
	return newCommand(nil)
}

func newCommand(deps *config.Dependencies) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run a local scenario server",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := config.DefaultServer()
			if err := shared.LoadConfigFile(cmd, cfg); err != nil {
				return err
			}
			applyFlags(cmd, cfg)
			cfg.Logger = log.New(cfg.Verbose)
			cfg.Deps = deps

			if err := shared.CheckConfig(cfg.Logger, cfg); err != nil {
				return err
			}

			return server.New(cfg).ListenAndServe(ctx)
		},
		Flags: getFlags(),
	}
}

// applyFlags copies explicitly set flags over the configuration.
func applyFlags(cmd *cli.Command, cfg *config.Server) {
	if cmd.IsSet(shared.HostFlag) {
		cfg.Host = cmd.String(shared.HostFlag)
	}
	if cmd.IsSet(shared.PortFlag) {
		cfg.Port = int(cmd.Int(shared.PortFlag))
	}
	if cmd.IsSet(shared.VerboseFlag) {
		cfg.Verbose = cmd.Bool(shared.VerboseFlag)
	}
	if cmd.IsSet(shared.TimeoutFlag) {
		cfg.Timeout = shared.Timeout(cmd)
	}
	if cmd.IsSet(shared.MaxConnsFlag) {
		cfg.MaxConns = int(cmd.Int(shared.MaxConnsFlag))
	}
	if cmd.IsSet(shared.HedgeFlag) {
		cfg.HedgeDelay = cmd.Duration(shared.HedgeFlag)
	}
}

func getFlags() []cli.Flag {
	flags := []cli.Flag{}

	flags = append(flags, shared.GetCommonFlags()...)
	flags = append(flags, shared.GetServeFlags()...)

	return flags
}
