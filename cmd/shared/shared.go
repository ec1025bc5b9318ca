// Package shared provides common CLI flag definitions and utility functions
// used across easyracer's command-line interface.
package shared

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/retroryan/easyracer/pkg/config"
	"github.com/retroryan/easyracer/pkg/log"
)

const categoryCommon = "common"

// VerboseFlag is the name of the flag to enable verbose logging.
const VerboseFlag = "verbose"

// ConfigFlag is the name of the flag to specify a YAML config file.
const ConfigFlag = "config"

// TimeoutFlag is the name of the flag to specify the connect timeout in milliseconds.
const TimeoutFlag = "timeout"

// HedgeFlag is the name of the flag to specify the scenario 7 hedge delay.
const HedgeFlag = "hedge"

// GetCommonFlags returns the flags used by both the runner and the server.
func GetCommonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:     VerboseFlag,
			Aliases:  []string{"v"},
			Usage:    "Verbose logging",
			Category: categoryCommon,
			Value:    false,
			Required: false,
		},
		&cli.StringFlag{
			Name:     ConfigFlag,
			Aliases:  []string{"c"},
			Usage:    "YAML config file, flags override its values",
			Category: categoryCommon,
			Value:    "",
			Required: false,
		},
		&cli.IntFlag{
			Name:     TimeoutFlag,
			Aliases:  []string{"t"},
			Usage:    "Timeout in milliseconds (connection setup, waiting for a connection slot)",
			Category: categoryCommon,
			Value:    10000, // 10 seconds default
			Required: false,
		},
		&cli.DurationFlag{
			Name:     HedgeFlag,
			Usage:    "Delay between the two scenario 7 requests",
			Category: categoryCommon,
			Value:    config.DefaultHedgeDelay,
			Required: false,
		},
	}
}

const categoryRun = "run"

// URLFlag is the name of the flag to specify the scenario server.
const URLFlag = "url"

// LogFileFlag is the name of the flag to specify a traffic log file.
const LogFileFlag = "log"

// ScenarioFlag is the name of the flag to select scenarios.
const ScenarioFlag = "scenario"

// AllFlag is the name of the flag to run every scenario.
const AllFlag = "all"

// FanoutFlag is the name of the flag to specify the scenario 3 fan-out.
const FanoutFlag = "fanout"

// GetRunFlags returns the flags specific to the scenario runner.
func GetRunFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     URLFlag,
			Aliases:  []string{"u"},
			Usage:    "Base URL of the scenario server",
			Category: categoryRun,
			Value:    config.DefaultURL,
			Required: false,
		},
		&cli.StringFlag{
			Name:     LogFileFlag,
			Aliases:  []string{"l"},
			Usage:    "Log file receiving all HTTP traffic",
			Category: categoryRun,
			Value:    "",
			Required: false,
		},
		&cli.StringSliceFlag{
			Name:     ScenarioFlag,
			Aliases:  []string{"s"},
			Usage:    "Scenarios to run, e.g. -s 1 -s 5-7 or -s 2,4",
			Category: categoryRun,
			Value:    []string{},
			Required: false,
		},
		&cli.BoolFlag{
			Name:     AllFlag,
			Aliases:  []string{"a"},
			Usage:    "Run all ten scenarios, including 3 and 10",
			Category: categoryRun,
			Value:    false,
			Required: false,
		},
		&cli.IntFlag{
			Name:     FanoutFlag,
			Usage:    "Number of concurrent requests in scenario 3",
			Category: categoryRun,
			Value:    config.DefaultFanout,
			Required: false,
		},
	}
}

const categoryServe = "serve"

// HostFlag is the name of the flag to specify the address to bind to.
const HostFlag = "host"

// PortFlag is the name of the flag to specify the port to listen on.
const PortFlag = "port"

// MaxConnsFlag is the name of the flag to cap concurrent connections.
const MaxConnsFlag = "max-conns"

// GetServeFlags returns the flags specific to the scenario server.
func GetServeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     HostFlag,
			Usage:    "Address to bind to, empty for all interfaces",
			Category: categoryServe,
			Value:    "",
			Required: false,
		},
		&cli.IntFlag{
			Name:     PortFlag,
			Aliases:  []string{"p"},
			Usage:    "Port to listen on",
			Category: categoryServe,
			Value:    config.DefaultPort,
			Required: false,
		},
		&cli.IntFlag{
			Name:     MaxConnsFlag,
			Usage:    "Maximum number of concurrent connections",
			Category: categoryServe,
			Value:    config.DefaultMaxConns,
			Required: false,
		},
	}
}

// Timeout converts the timeout flag to a duration.
func Timeout(cmd *cli.Command) time.Duration {
	return time.Duration(cmd.Int(TimeoutFlag)) * time.Millisecond
}

// LoadConfigFile decodes the file named by the config flag into cfg, if
// the flag is set.
func LoadConfigFile(cmd *cli.Command, cfg config.ValidatableConfig) error {
	path := cmd.String(ConfigFlag)
	if path == "" {
		return nil
	}
	return config.LoadFile(path, cfg)
}

// CheckConfig validates cfgs and prints every problem found.
func CheckConfig(logger *log.Logger, cfgs ...config.ValidatableConfig) error {
	errors := config.Validate(cfgs...)
	if len(errors) == 0 {
		return nil
	}

	logger.ErrorMsg("Argument validation errors:")
	for _, err := range errors {
		logger.ErrorMsg(" - %s", err)
	}
	return fmt.Errorf("exiting")
}
