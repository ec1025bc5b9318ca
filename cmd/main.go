package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/retroryan/easyracer/cmd/run"
	"github.com/retroryan/easyracer/cmd/serve"
	"github.com/retroryan/easyracer/cmd/shared"
	"github.com/retroryan/easyracer/cmd/version"
	"github.com/retroryan/easyracer/pkg/log"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := shared.SetupSignalHandling(cancel)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		log.ErrorMsg("%s", err)
		stop()
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "easyracer",
		Usage: "race HTTP requests with structured concurrency",
		Commands: []*cli.Command{
			run.GetCommand(),
			serve.GetCommand(),
			version.GetCommand(),
		},
	}
}
