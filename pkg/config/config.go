// Package config holds the settings of the scenario client and the local
// scenario server, their validation and the injectable dependencies.
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/retroryan/easyracer/pkg/log"
)

// Defaults for the scenario client.
const (
	DefaultURL             = "http://localhost:8080"
	DefaultTimeout         = 10 * time.Second
	DefaultFanout          = 10000
	DefaultHedgeDelay      = 3 * time.Second
	DefaultScenarioTimeout = 1 * time.Second
	DefaultReportInterval  = 1 * time.Second
)

// Client configures the scenario runner.
type Client struct {
	// URL is the base URL of the scenario server.
	URL string `yaml:"url"`
	// Timeout bounds connection establishment, not whole requests: losing
	// racers are expected to hang until they are cancelled.
	Timeout time.Duration `yaml:"timeout"`
	Verbose bool          `yaml:"verbose"`
	// LogFile receives a copy of all HTTP traffic when set.
	LogFile string `yaml:"log"`

	// Fanout is the number of concurrent requests in scenario 3.
	Fanout int `yaml:"fanout"`
	// HedgeDelay is how long scenario 7 waits before sending its hedge.
	HedgeDelay time.Duration `yaml:"hedge_delay"`
	// ScenarioTimeout is the per-request timeout of scenario 4.
	ScenarioTimeout time.Duration `yaml:"scenario4_timeout"`
	// ReportInterval is the pause between scenario 10 load reports.
	ReportInterval time.Duration `yaml:"report_interval"`

	Logger *log.Logger    `yaml:"-"`
	Deps   *Dependencies `yaml:"-"`
}

// DefaultClient returns a client configuration with every default applied.
func DefaultClient() *Client {
	return &Client{
		URL:             DefaultURL,
		Timeout:         DefaultTimeout,
		Fanout:          DefaultFanout,
		HedgeDelay:      DefaultHedgeDelay,
		ScenarioTimeout: DefaultScenarioTimeout,
		ReportInterval:  DefaultReportInterval,
	}
}

// Validate checks the client configuration.
func (c *Client) Validate() []error {
	var errors []error

	u, err := url.Parse(c.URL)
	if err != nil {
		errors = append(errors, fmt.Errorf("'--url' is invalid: %w", err))
	} else if u.Scheme != "http" || u.Host == "" {
		errors = append(errors, fmt.Errorf("'--url' must look like http://host:port, got %q", c.URL))
	}

	if c.Timeout < 0 {
		errors = append(errors, fmt.Errorf("'--timeout' must not be negative"))
	}

	if c.Fanout < 1 {
		errors = append(errors, fmt.Errorf("'--fanout' must be at least 1"))
	}

	if c.HedgeDelay < 0 {
		errors = append(errors, fmt.Errorf("'--hedge' must not be negative"))
	}

	if c.ScenarioTimeout <= 0 {
		errors = append(errors, fmt.Errorf("scenario 4 timeout must be positive"))
	}

	if c.ReportInterval < 0 {
		errors = append(errors, fmt.Errorf("scenario 10 report interval must not be negative"))
	}

	return errors
}
