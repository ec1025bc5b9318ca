// Package version provides the version command.
package version

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"
)

// Version is set at build time with -ldflags "-X ...version.Version=...".
var Version = "unknown"

// GetCommand returns the CLI command printing the version.
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Program version",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			var w io.Writer = os.Stdout
			if cmd.Root() != nil && cmd.Root().Writer != nil {
				w = cmd.Root().Writer
			}
			_, err := fmt.Fprintln(w, Version)
			return err
		},
		Flags: []cli.Flag{},
	}
}
