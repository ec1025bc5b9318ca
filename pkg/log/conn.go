package log

import (
	"fmt"
	"io"
	"net"
	"os"
	"sync"
)

// loggedConn wraps a net.Conn and copies all read/write traffic to a shared writer.
type loggedConn struct {
	net.Conn

	mu *sync.Mutex
	w  io.Writer
}

func (lc *loggedConn) Read(b []byte) (int, error) {
	n, err := lc.Conn.Read(b)
	if n > 0 {
		if werr := lc.record(b[:n]); werr != nil {
			return n, fmt.Errorf("logging read: %w", werr)
		}
	}
	return n, err
}

func (lc *loggedConn) Write(b []byte) (int, error) {
	n, err := lc.Conn.Write(b)
	if n > 0 {
		if werr := lc.record(b[:n]); werr != nil {
			return n, fmt.Errorf("logging write: %w", werr)
		}
	}
	return n, err
}

func (lc *loggedConn) record(b []byte) error {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	_, err := lc.w.Write(b)
	return err
}

// TrafficLog is an append-only traffic log shared by many connections.
type TrafficLog struct {
	mu   sync.Mutex
	file *os.File
}

// OpenTrafficLog creates or appends to the log file at path.
func OpenTrafficLog(path string) (*TrafficLog, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening traffic log %s: %w", path, err)
	}
	return &TrafficLog{file: f}, nil
}

// Wrap returns a connection whose traffic is appended to the log.
// A nil TrafficLog returns conn unchanged.
func (t *TrafficLog) Wrap(conn net.Conn) net.Conn {
	if t == nil {
		return conn
	}
	return NewLoggedConn(conn, t.file, &t.mu)
}

// Close closes the underlying file.
func (t *TrafficLog) Close() error {
	if t == nil {
		return nil
	}
	return t.file.Close()
}

// NewLoggedConn wraps a network connection to log all data read from and
// written to it. Writes to w are serialized with mu.
func NewLoggedConn(conn net.Conn, w io.Writer, mu *sync.Mutex) net.Conn {
	if mu == nil {
		mu = &sync.Mutex{}
	}
	return &loggedConn{Conn: conn, w: w, mu: mu}
}
