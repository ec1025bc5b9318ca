package shared

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"
)

// ShutdownGrace is how long a cancelled run may take to wind down before
// the process exits anyway.
var ShutdownGrace = 5 * time.Second

// SetupSignalHandling calls cancel on the first interrupt. A second
// interrupt, or a shutdown slower than ShutdownGrace, exits the process.
// The returned function stops listening for signals.
func SetupSignalHandling(cancel context.CancelFunc) (stop func()) {
	sigCh := make(chan os.Signal, 2)

	// always handle Interrupt (portable)
	sigs := []os.Signal{os.Interrupt}

	// add Unix-only signals
	if runtime.GOOS != "windows" {
		sigs = append(sigs, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGQUIT)
		// a racer whose connection is dropped must not kill the process
		signal.Ignore(syscall.SIGPIPE)
	}

	signal.Notify(sigCh, sigs...)
	done := make(chan struct{})

	go func() {
		var s os.Signal
		select {
		case s = <-sigCh:
		case <-done:
			return
		}
		cancel()

		select {
		case <-sigCh:
			// try to map to POSIX exit code 128+sig if possible
			if ss, ok := s.(syscall.Signal); ok {
				os.Exit(128 + int(ss))
			}
			os.Exit(1)
		case <-time.After(ShutdownGrace):
			os.Exit(1)
		case <-done:
		}
	}()

	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}
