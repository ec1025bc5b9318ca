// Package mocks provides mock implementations for testing.
package mocks

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// MockStdio provides mock implementations of stdin and stdout for testing.
// Stdin is a pipe so tests can type answers while the command waits for
// them; stdout is collected in a buffer.
type MockStdio struct {
	stdinReader *io.PipeReader
	stdinWriter *io.PipeWriter

	mu        sync.Mutex
	outputBuf bytes.Buffer
}

// NewMockStdio creates a new mock stdio.
func NewMockStdio() *MockStdio {
	r, w := io.Pipe()
	return &MockStdio{stdinReader: r, stdinWriter: w}
}

// WriteToStdin simulates user input.
func (m *MockStdio) WriteToStdin(data []byte) (int, error) {
	return m.stdinWriter.Write(data)
}

// ReadFromStdout returns everything written to stdout so far.
func (m *MockStdio) ReadFromStdout() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outputBuf.String()
}

// GetStdin returns a reader for stdin (used by the dependency injection).
func (m *MockStdio) GetStdin() io.Reader {
	return m.stdinReader
}

// GetStdout returns a writer for stdout (used by the dependency injection).
func (m *MockStdio) GetStdout() io.Writer {
	return stdoutWriter{m}
}

// WaitForOutput waits for expected to appear in stdout within timeout.
func (m *MockStdio) WaitForOutput(expected string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		out := m.ReadFromStdout()
		if strings.Contains(out, expected) {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("timeout waiting for output %q, got: %q", expected, out)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// Close closes stdin, so pending reads see EOF.
func (m *MockStdio) Close() error {
	return m.stdinWriter.Close()
}

type stdoutWriter struct {
	m *MockStdio
}

func (w stdoutWriter) Write(p []byte) (int, error) {
	w.m.mu.Lock()
	defer w.m.mu.Unlock()
	return w.m.outputBuf.Write(p)
}
