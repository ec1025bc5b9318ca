// Package helpers provides common utilities for integration and end-to-end tests.
package helpers

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/retroryan/easyracer/mocks"
	"github.com/retroryan/easyracer/pkg/config"
	"github.com/retroryan/easyracer/pkg/server"
)

// ServerConfig returns a scenario server configuration with delays short
// enough for tests.
func ServerConfig() *config.Server {
	cfg := config.DefaultServer()
	cfg.Host = "127.0.0.1"
	cfg.MaxConns = 1000
	cfg.Scenario3Requests = 100
	cfg.HedgeDelay = 100 * time.Millisecond
	cfg.ResponseDelay = 20 * time.Millisecond
	cfg.Scenario10Reports = 3
	return cfg
}

// ClientConfig returns a runner configuration matching ServerConfig.
func ClientConfig(url string) *config.Client {
	cfg := config.DefaultClient()
	cfg.URL = url
	cfg.Timeout = 5 * time.Second
	cfg.Fanout = 100
	cfg.HedgeDelay = 150 * time.Millisecond
	cfg.ScenarioTimeout = 200 * time.Millisecond
	cfg.ReportInterval = 10 * time.Millisecond
	return cfg
}

// StartServer serves cfg on a random local port until the test ends and
// returns the base URL.
func StartServer(t *testing.T, cfg *config.Server) (string, *server.Server) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen() error = %v", err)
	}

	s := server.New(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Serve() error = %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	})

	return "http://" + ln.Addr().String(), s
}

// SetupMockDependencies creates dependencies with mocked stdio.
func SetupMockDependencies() (*mocks.MockStdio, *config.Dependencies) {
	mockStdio := mocks.NewMockStdio()

	deps := &config.Dependencies{
		Stdin:  func() io.Reader { return mockStdio.GetStdin() },
		Stdout: func() io.Writer { return mockStdio.GetStdout() },
	}

	return mockStdio, deps
}
