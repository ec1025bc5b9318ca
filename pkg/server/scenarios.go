package server

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const (
	right = "right"
	wrong = "wrong"
)

type counter struct {
	n atomic.Int64
}

// next returns 1 for the first request, 2 for the second and so on.
func (c *counter) next() int64 {
	return c.n.Add(1)
}

// pairGate lets the first request of a pair wait for the second.
type pairGate struct {
	mu      sync.Mutex
	waiting chan struct{}
}

// scenario1 answers one request of a pair; the other hangs.
func (s *Server) scenario1(w http.ResponseWriter, r *http.Request) {
	g := &s.s1

	g.mu.Lock()
	if g.waiting == nil {
		ch := make(chan struct{})
		g.waiting = ch
		g.mu.Unlock()

		select {
		case <-ch:
			text(w, http.StatusOK, right)
		case <-r.Context().Done():
			g.mu.Lock()
			if g.waiting == ch {
				g.waiting = nil
			}
			g.mu.Unlock()
		}
		return
	}

	close(g.waiting)
	g.waiting = nil
	g.mu.Unlock()

	<-r.Context().Done()
}

// scenario2 drops the connection of the first request of a pair.
func (s *Server) scenario2(w http.ResponseWriter, r *http.Request) {
	if s.s2.next()%2 == 1 {
		hj, ok := w.(http.Hijacker)
		if !ok {
			text(w, http.StatusInternalServerError, "cannot drop connection")
			return
		}
		conn, _, err := hj.Hijack()
		if err != nil {
			s.logger.ErrorMsg("hijacking /2 connection: %s", err)
			return
		}
		_ = conn.Close()
		return
	}

	if s.sleep(r.Context(), s.cfg.ResponseDelay) {
		text(w, http.StatusOK, right)
	}
}

// fanIn counts requests in flight.
type fanIn struct {
	mu       sync.Mutex
	inFlight int
}

// scenario3 answers the request that brings the number of requests in
// flight to the configured fan-out. All others hang.
func (s *Server) scenario3(w http.ResponseWriter, r *http.Request) {
	f := &s.s3

	f.mu.Lock()
	f.inFlight++
	won := f.inFlight == s.cfg.Scenario3Requests
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if won {
		text(w, http.StatusOK, right)
		return
	}
	<-r.Context().Done()
}

// abandonGate releases waiting requests when one of them is cancelled.
type abandonGate struct {
	mu        sync.Mutex
	abandoned chan struct{}
}

// scenario4 hangs until the client gives up on one request, then answers
// the remaining one.
func (s *Server) scenario4(w http.ResponseWriter, r *http.Request) {
	g := &s.s4

	g.mu.Lock()
	if g.abandoned == nil {
		g.abandoned = make(chan struct{})
	}
	ch := g.abandoned
	g.mu.Unlock()

	select {
	case <-ch:
		text(w, http.StatusOK, right)
	case <-r.Context().Done():
		g.mu.Lock()
		if g.abandoned == ch {
			g.abandoned = nil
			close(ch)
		}
		g.mu.Unlock()
	}
}

// scenario5 fails the first request of a pair.
func (s *Server) scenario5(w http.ResponseWriter, r *http.Request) {
	if s.s5.next()%2 == 1 {
		text(w, http.StatusInternalServerError, wrong)
		return
	}
	if s.sleep(r.Context(), s.cfg.ResponseDelay) {
		text(w, http.StatusOK, right)
	}
}

// scenario6 fails the first of three requests and hangs on the third.
func (s *Server) scenario6(w http.ResponseWriter, r *http.Request) {
	switch s.s6.next() % 3 {
	case 1:
		text(w, http.StatusInternalServerError, wrong)
	case 2:
		if s.sleep(r.Context(), s.cfg.ResponseDelay) {
			text(w, http.StatusOK, right)
		}
	default:
		<-r.Context().Done()
	}
}

// hedge remembers when the request being hedged arrived.
type hedge struct {
	mu     sync.Mutex
	active bool
	first  time.Time
}

// scenario7 hangs on the first request and answers a later one only if it
// was sent after the hedge delay.
func (s *Server) scenario7(w http.ResponseWriter, r *http.Request) {
	h := &s.s7
	now := s.clock.Now()

	h.mu.Lock()
	if !h.active {
		h.active, h.first = true, now
		h.mu.Unlock()

		<-r.Context().Done()

		h.mu.Lock()
		if h.first.Equal(now) {
			h.active = false
		}
		h.mu.Unlock()
		return
	}
	elapsed := now.Sub(h.first)
	h.mu.Unlock()

	if elapsed < s.cfg.HedgeDelay {
		text(w, http.StatusBadRequest, "hedge sent after "+elapsed.String()+", expected at least "+s.cfg.HedgeDelay.String())
		return
	}
	text(w, http.StatusOK, right)
}

// resources tracks the /8 resources clients open and close.
type resources struct {
	mu     sync.Mutex
	open   map[string]bool
	uses   int
	opened int
	closed int
}

// scenario8 manages resources: ?open, ?use=<id> and ?close=<id>. The first
// use of a pair fails.
func (s *Server) scenario8(w http.ResponseWriter, r *http.Request) {
	res := &s.s8
	q := r.URL.Query()

	switch {
	case q.Has("open"):
		id := uuid.NewString()
		res.mu.Lock()
		res.open[id] = true
		res.opened++
		res.mu.Unlock()
		s.logger.VerboseMsg("Opened resource %s", id)
		text(w, http.StatusOK, id)

	case q.Has("use"):
		id := q.Get("use")
		res.mu.Lock()
		known := res.open[id]
		if known {
			res.uses++
		}
		first := res.uses%2 == 1
		res.mu.Unlock()

		switch {
		case !known:
			text(w, http.StatusNotFound, "unknown resource")
		case first:
			text(w, http.StatusInternalServerError, wrong)
		default:
			if s.sleep(r.Context(), s.cfg.ResponseDelay) {
				text(w, http.StatusOK, right)
			}
		}

	case q.Has("close"):
		id := q.Get("close")
		res.mu.Lock()
		known := res.open[id]
		if known {
			delete(res.open, id)
			res.closed++
		}
		res.mu.Unlock()

		if !known {
			text(w, http.StatusNotFound, "unknown resource")
			return
		}
		s.logger.VerboseMsg("Closed resource %s", id)
		text(w, http.StatusOK, "")

	default:
		text(w, http.StatusBadRequest, "expected open, use or close")
	}
}

// scenario9 answers every group of ten requests with the letters of
// "right", one per even request and in order of time, and 500 to the rest.
func (s *Server) scenario9(w http.ResponseWriter, r *http.Request) {
	i := int((s.s9.next() - 1) % 10)
	if i%2 == 1 {
		text(w, http.StatusInternalServerError, wrong)
		return
	}

	k := i / 2
	if s.sleep(r.Context(), time.Duration(k+1)*s.cfg.ResponseDelay) {
		text(w, http.StatusOK, right[k:k+1])
	}
}

type blocker struct {
	release chan struct{}
	reports int
}

// loadGate tracks /10 blockers by id.
type loadGate struct {
	mu       sync.Mutex
	blockers map[string]*blocker
	reports  int
}

// scenario10 holds /10?<id> open until /10?<id>=<load> was reported often
// enough. A report that arrives before its blocker is asked to retry.
func (s *Server) scenario10(w http.ResponseWriter, r *http.Request) {
	g := &s.s10
	id, value, isReport := strings.Cut(r.URL.RawQuery, "=")
	if id == "" {
		text(w, http.StatusBadRequest, "missing id")
		return
	}

	if !isReport {
		b := &blocker{release: make(chan struct{})}
		g.mu.Lock()
		g.blockers[id] = b
		g.mu.Unlock()

		select {
		case <-b.release:
			text(w, http.StatusOK, "released")
		case <-r.Context().Done():
			g.mu.Lock()
			if g.blockers[id] == b {
				delete(g.blockers, id)
			}
			g.mu.Unlock()
		}
		return
	}

	load, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(load) || math.IsInf(load, 0) || load < 0 {
		text(w, http.StatusBadRequest, "invalid load "+strconv.Quote(value))
		return
	}

	g.mu.Lock()
	b, ok := g.blockers[id]
	if !ok {
		g.mu.Unlock()
		http.Redirect(w, r, r.URL.RequestURI(), http.StatusFound)
		return
	}
	b.reports++
	g.reports++
	done := b.reports >= s.cfg.Scenario10Reports
	if done {
		delete(g.blockers, id)
		close(b.release)
	}
	g.mu.Unlock()

	s.logger.VerboseMsg("Load report %s for %s", value, id)
	if !done {
		http.Redirect(w, r, r.URL.RequestURI(), http.StatusFound)
		return
	}
	text(w, http.StatusOK, right)
}
