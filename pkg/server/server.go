// Package server is a local EasyRacer scenario server. Each endpoint /1 to
// /10 only answers "right" to a client that races its requests correctly.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/jonboulle/clockwork"

	"github.com/retroryan/easyracer/pkg/config"
	"github.com/retroryan/easyracer/pkg/log"
	"github.com/retroryan/easyracer/pkg/semaphore"
)

// Server holds the state of every scenario endpoint.
type Server struct {
	cfg    *config.Server
	logger *log.Logger
	clock  clockwork.Clock
	sem    *semaphore.ConnSemaphore

	s1  pairGate
	s2  counter
	s3  fanIn
	s4  abandonGate
	s5  counter
	s6  counter
	s7  hedge
	s8  resources
	s9  counter
	s10 loadGate
}

// Stats counts what clients did to the stateful endpoints.
type Stats struct {
	// Opened and Closed count /8 resources.
	Opened int
	Closed int
	// Reports counts accepted /10 load reports.
	Reports int
}

// New creates a server.
func New(cfg *config.Server) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Discard()
	}
	return &Server{
		cfg:    cfg,
		logger: logger,
		clock:  config.GetClock(cfg.Deps),
		sem:    semaphore.New(cfg.MaxConns, cfg.Timeout),
		s8:     resources{open: map[string]bool{}},
		s10:    loadGate{blockers: map[string]*blocker{}},
	}
}

// Stats returns a snapshot of the counters.
func (s *Server) Stats() Stats {
	s.s8.mu.Lock()
	opened, closed := s.s8.opened, s.s8.closed
	s.s8.mu.Unlock()

	s.s10.mu.Lock()
	reports := s.s10.reports
	s.s10.mu.Unlock()

	return Stats{Opened: opened, Closed: closed, Reports: reports}
}

// Handler returns the HTTP handler serving every scenario.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.index)
	mux.HandleFunc("GET /1", s.scenario1)
	mux.HandleFunc("GET /2", s.scenario2)
	mux.HandleFunc("GET /3", s.scenario3)
	mux.HandleFunc("GET /4", s.scenario4)
	mux.HandleFunc("GET /5", s.scenario5)
	mux.HandleFunc("GET /6", s.scenario6)
	mux.HandleFunc("GET /7", s.scenario7)
	mux.HandleFunc("GET /8", s.scenario8)
	mux.HandleFunc("GET /9", s.scenario9)
	mux.HandleFunc("GET /10", s.scenario10)

	var h http.Handler = mux
	if s.logger.Verbose() {
		h = handlers.LoggingHandler(s.logger.Writer(), h)
	}
	return handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{s.logger}),
	)(h)
}

// ListenAndServe listens on the configured address and serves until ctx
// is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))

	ln, err := config.GetListenerFunc(s.cfg.Deps)("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen(tcp, %s): %w", addr, err)
	}

	s.logger.InfoMsg("Serving scenarios on http://%s", ln.Addr())
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled. It closes ln.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler: s.Handler(),
		// requests of a cancelled server stop hanging
		BaseContext:       func(net.Listener) context.Context { return ctx },
		ReadHeaderTimeout: 10 * time.Second,
	}

	return serveWithContext(ctx, server, newLimitListener(ctx, ln, s.sem, s.logger))
}

// serveWithContext runs the HTTP server until ctx is cancelled.
func serveWithContext(ctx context.Context, server *http.Server, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		_ = server.Close()
		err := <-errCh
		if err == nil || errors.Is(err, http.ErrServerClosed) || errors.Is(err, net.ErrClosed) {
			return nil
		}
		return fmt.Errorf("serving after cancellation: %w", err)

	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		if ctx.Err() != nil && errors.Is(err, net.ErrClosed) {
			_ = server.Close()
			return nil
		}
		return fmt.Errorf("http.Server.Serve(): %w", err)
	}
}

type recoveryLogger struct {
	l *log.Logger
}

func (r recoveryLogger) Println(v ...interface{}) {
	r.l.ErrorMsg("handler panic: %s", fmt.Sprint(v...))
}

func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	text(w, http.StatusOK, "easyracer scenario server")
}

func text(w http.ResponseWriter, code int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(body))
}

// sleep waits d on the server clock. It returns false if the request ended
// first.
func (s *Server) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-s.clock.After(d):
		return true
	}
}
