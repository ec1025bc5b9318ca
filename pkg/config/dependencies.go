package config

import (
	"context"
	"io"
	"net"
	"os"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/retroryan/easyracer/pkg/load"
)

// Dependencies contains injectable dependencies for testing and customization.
// All fields are optional and will use default implementations if nil.
type Dependencies struct {
	Dialer      DialerFunc
	Listener    ListenerFunc
	Clock       clockwork.Clock
	LoadSampler load.Sampler
	Stdin       StdinFunc
	Stdout      StdoutFunc
}

// DialerFunc dials a network connection.
type DialerFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// ListenerFunc creates a listener.
type ListenerFunc func(network, addr string) (net.Listener, error)

// StdinFunc is a function that returns a reader for stdin.
// It returns an io.Reader to allow for mock implementations.
type StdinFunc func() io.Reader

// StdoutFunc is a function that returns a writer for stdout.
// It returns an io.Writer to allow for mock implementations.
type StdoutFunc func() io.Writer

// GetDialerFunc returns the dialer from dependencies, or a net.Dialer with
// the given connect timeout.
func GetDialerFunc(deps *Dependencies, timeout time.Duration) DialerFunc {
	if deps != nil && deps.Dialer != nil {
		return deps.Dialer
	}
	d := &net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}
	return d.DialContext
}

// GetListenerFunc returns the listener function from dependencies, or net.Listen.
func GetListenerFunc(deps *Dependencies) ListenerFunc {
	if deps != nil && deps.Listener != nil {
		return deps.Listener
	}
	return net.Listen
}

// GetClock returns the clock from dependencies, or the real clock.
func GetClock(deps *Dependencies) clockwork.Clock {
	if deps != nil && deps.Clock != nil {
		return deps.Clock
	}
	return clockwork.NewRealClock()
}

// GetLoadSampler returns the load sampler from dependencies, or one backed
// by process CPU accounting.
func GetLoadSampler(deps *Dependencies) load.Sampler {
	if deps != nil && deps.LoadSampler != nil {
		return deps.LoadSampler
	}
	return load.NewSampler()
}

// GetStdinFunc returns the stdin function from dependencies, or a default implementation.
// If deps is nil or deps.Stdin is nil, returns a function that uses os.Stdin.
func GetStdinFunc(deps *Dependencies) StdinFunc {
	if deps != nil && deps.Stdin != nil {
		return deps.Stdin
	}
	return func() io.Reader {
		return os.Stdin
	}
}

// GetStdoutFunc returns the stdout function from dependencies, or a default implementation.
// If deps is nil or deps.Stdout is nil, returns a function that uses os.Stdout.
func GetStdoutFunc(deps *Dependencies) StdoutFunc {
	if deps != nil && deps.Stdout != nil {
		return deps.Stdout
	}
	return func() io.Writer {
		return os.Stdout
	}
}
