package config

import (
	"fmt"
	"time"

	"github.com/retroryan/easyracer/pkg/log"
)

// Defaults for the local scenario server.
const (
	DefaultPort              = 8080
	DefaultMaxConns          = 20000
	DefaultResponseDelay     = 200 * time.Millisecond
	DefaultScenario10Reports = 3
	// DefaultMinHedgeDelay leaves a client hedging after DefaultHedgeDelay
	// room for request latency.
	DefaultMinHedgeDelay = 2 * time.Second
)

// Server configures the local scenario server.
type Server struct {
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	Verbose bool   `yaml:"verbose"`

	// MaxConns caps concurrent connections. It must leave room for the
	// scenario 3 fan-out.
	MaxConns int `yaml:"max_conns"`
	// Timeout bounds the wait for a free connection slot.
	Timeout time.Duration `yaml:"timeout"`

	// Scenario3Requests is how many requests must be in flight on /3
	// before one of them is answered.
	Scenario3Requests int `yaml:"scenario3_requests"`
	// HedgeDelay is the minimum gap between the two /7 requests.
	HedgeDelay time.Duration `yaml:"hedge_delay"`
	// ResponseDelay staggers winning responses.
	ResponseDelay time.Duration `yaml:"response_delay"`
	// Scenario10Reports is how many load reports /10 wants before it
	// answers.
	Scenario10Reports int `yaml:"scenario10_reports"`

	Logger *log.Logger    `yaml:"-"`
	Deps   *Dependencies `yaml:"-"`
}

// DefaultServer returns a server configuration with every default applied.
func DefaultServer() *Server {
	return &Server{
		Port:              DefaultPort,
		MaxConns:          DefaultMaxConns,
		Timeout:           DefaultTimeout,
		Scenario3Requests: DefaultFanout,
		HedgeDelay:        DefaultMinHedgeDelay,
		ResponseDelay:     DefaultResponseDelay,
		Scenario10Reports: DefaultScenario10Reports,
	}
}

// Validate checks the server configuration.
func (c *Server) Validate() []error {
	var errors []error

	if err := validatePort(c.Port); err != nil {
		errors = append(errors, fmt.Errorf("'--port': %w", err))
	}

	if c.Scenario3Requests < 1 {
		errors = append(errors, fmt.Errorf("scenario 3 needs at least one request"))
	}

	if c.MaxConns < c.Scenario3Requests {
		errors = append(errors, fmt.Errorf("'--max-conns' (%d) must be >= scenario 3 requests (%d)", c.MaxConns, c.Scenario3Requests))
	}

	if c.HedgeDelay < 0 || c.ResponseDelay < 0 {
		errors = append(errors, fmt.Errorf("delays must not be negative"))
	}

	if c.Scenario10Reports < 1 {
		errors = append(errors, fmt.Errorf("scenario 10 needs at least one report"))
	}

	return errors
}
