package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retroryan/easyracer/pkg/config"
)

func testConfig() *config.Server {
	cfg := config.DefaultServer()
	cfg.Host = "127.0.0.1"
	cfg.Port = 0
	cfg.MaxConns = 100
	cfg.Scenario3Requests = 5
	cfg.HedgeDelay = 50 * time.Millisecond
	cfg.ResponseDelay = 20 * time.Millisecond
	return cfg
}

// start serves s on a random port and returns its base URL.
func start(t *testing.T, s *Server) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	})
	return "http://" + ln.Addr().String()
}

var client = &http.Client{
	Transport: &http.Transport{DisableKeepAlives: true},
	CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	},
}

func get(ctx context.Context, url string) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body), err
}

type reply struct {
	code int
	body string
	err  error
}

func goGet(ctx context.Context, url string) <-chan reply {
	ch := make(chan reply, 1)
	go func() {
		code, body, err := get(ctx, url)
		ch <- reply{code, body, err}
	}()
	return ch
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond)
}

func TestIndex(t *testing.T) {
	t.Parallel()

	url := start(t, New(testConfig()))
	code, _, err := get(context.Background(), url+"/")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, code)

	code, _, err = get(context.Background(), url+"/11")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestScenario1(t *testing.T) {
	t.Parallel()

	s := New(testConfig())
	url := start(t, s)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := goGet(ctx, url+"/1")
	waitFor(t, func() bool {
		s.s1.mu.Lock()
		defer s.s1.mu.Unlock()
		return s.s1.waiting != nil
	})
	b := goGet(ctx, url+"/1")

	first := <-a
	require.NoError(t, first.err)
	assert.Equal(t, right, first.body)

	select {
	case <-b:
		t.Fatal("second request of the pair must hang")
	case <-time.After(50 * time.Millisecond):
	}
	cancel()
	assert.Error(t, (<-b).err)
}

func TestScenario2(t *testing.T) {
	t.Parallel()

	url := start(t, New(testConfig()))

	_, _, err := get(context.Background(), url+"/2")
	assert.Error(t, err, "first request loses its connection")

	code, body, err := get(context.Background(), url+"/2")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, right, body)
}

func TestScenario3(t *testing.T) {
	t.Parallel()

	s := New(testConfig())
	url := start(t, s)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	replies := make([]<-chan reply, 0, 5)
	for i := 0; i < 4; i++ {
		replies = append(replies, goGet(ctx, url+"/3"))
	}
	waitFor(t, func() bool {
		s.s3.mu.Lock()
		defer s.s3.mu.Unlock()
		return s.s3.inFlight == 4
	})

	r := <-goGet(ctx, url+"/3")
	require.NoError(t, r.err)
	assert.Equal(t, right, r.body)

	cancel()
	for _, ch := range replies {
		assert.Error(t, (<-ch).err)
	}
	waitFor(t, func() bool {
		s.s3.mu.Lock()
		defer s.s3.mu.Unlock()
		return s.s3.inFlight == 0
	})
}

func TestScenario4(t *testing.T) {
	t.Parallel()

	url := start(t, New(testConfig()))

	short, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	kept := goGet(context.Background(), url+"/4")
	abandoned := goGet(short, url+"/4")

	assert.Error(t, (<-abandoned).err)

	select {
	case r := <-kept:
		require.NoError(t, r.err)
		assert.Equal(t, right, r.body)
	case <-time.After(2 * time.Second):
		t.Fatal("remaining request was not answered")
	}
}

func TestScenario5(t *testing.T) {
	t.Parallel()

	url := start(t, New(testConfig()))

	code, body, err := get(context.Background(), url+"/5")
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, wrong, body)

	code, body, err = get(context.Background(), url+"/5")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, right, body)
}

func TestScenario6(t *testing.T) {
	t.Parallel()

	url := start(t, New(testConfig()))

	code, _, err := get(context.Background(), url+"/6")
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, code)

	code, body, err := get(context.Background(), url+"/6")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, right, body)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, _, err = get(ctx, url+"/6")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestScenario7(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	cfg := testConfig()
	cfg.HedgeDelay = 3 * time.Second
	cfg.Deps = &config.Dependencies{Clock: clock}

	s := New(cfg)
	url := start(t, s)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := goGet(ctx, url+"/7")
	waitFor(t, func() bool {
		s.s7.mu.Lock()
		defer s.s7.mu.Unlock()
		return s.s7.active
	})

	code, _, err := get(context.Background(), url+"/7")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, code, "hedge sent too early")

	clock.Advance(3 * time.Second)

	code, body, err := get(context.Background(), url+"/7")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, right, body)

	cancel()
	assert.Error(t, (<-first).err)
	waitFor(t, func() bool {
		s.s7.mu.Lock()
		defer s.s7.mu.Unlock()
		return !s.s7.active
	})
}

func TestScenario8(t *testing.T) {
	t.Parallel()

	s := New(testConfig())
	url := start(t, s)
	ctx := context.Background()

	code, id, err := get(ctx, url+"/8?open")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, code)
	require.NotEmpty(t, id)

	code, _, err = get(ctx, url+"/8?use="+id)
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, code)

	code, body, err := get(ctx, url+"/8?use="+id)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, right, body)

	code, _, err = get(ctx, url+"/8?close="+id)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, code)

	assert.Equal(t, Stats{Opened: 1, Closed: 1}, s.Stats())

	for _, q := range []string{"use=" + id, "close=" + id, "use=nope"} {
		code, _, err = get(ctx, url+"/8?"+q)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, code, q)
	}

	code, _, err = get(ctx, url+"/8")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestScenario9(t *testing.T) {
	t.Parallel()

	url := start(t, New(testConfig()))

	var (
		mu      sync.Mutex
		letters strings.Builder
		fails   int
		wg      sync.WaitGroup
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			code, body, err := get(context.Background(), url+"/9")
			if !assert.NoError(t, err) {
				return
			}

			mu.Lock()
			defer mu.Unlock()
			if code == http.StatusOK {
				letters.WriteString(body)
			} else {
				fails++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, right, letters.String())
	assert.Equal(t, 5, fails)
}

func TestScenario10(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Scenario10Reports = 3
	s := New(cfg)
	url := start(t, s)
	ctx := context.Background()

	code, _, err := get(ctx, url+"/10?abc=0.5")
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, code, "report before blocker is retried")

	blocked := goGet(ctx, url+"/10?abc")
	waitFor(t, func() bool {
		s.s10.mu.Lock()
		defer s.s10.mu.Unlock()
		return s.s10.blockers["abc"] != nil
	})

	for _, load := range []string{"nan-ish", "NaN", "Inf", "+Inf", "-1"} {
		code, _, err = get(ctx, url+"/10?abc="+load)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, code, "load %q", load)
	}

	for i := 0; i < 2; i++ {
		code, _, err = get(ctx, url+"/10?abc=1.5")
		require.NoError(t, err)
		assert.Equal(t, http.StatusFound, code)
	}

	code, body, err := get(ctx, url+"/10?abc=1.5")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, right, body)

	r := <-blocked
	require.NoError(t, r.err)
	assert.Equal(t, http.StatusOK, r.code)
	assert.Equal(t, 3, s.Stats().Reports)
}

func TestScenario10_MissingID(t *testing.T) {
	t.Parallel()

	url := start(t, New(testConfig()))
	code, _, err := get(context.Background(), url+"/10")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestListenAndServe(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	cfg := testConfig()
	cfg.Deps = &config.Dependencies{
		Listener: func(network, addr string) (net.Listener, error) {
			assert.Equal(t, "tcp", network)
			assert.Equal(t, "127.0.0.1:0", addr)
			return ln, nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(cfg).ListenAndServe(ctx) }()

	require.Eventually(t, func() bool {
		code, _, err := get(context.Background(), "http://"+ln.Addr().String()+"/")
		return err == nil && code == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestListenAndServe_ListenError(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Deps = &config.Dependencies{
		Listener: func(network, addr string) (net.Listener, error) {
			return nil, assert.AnError
		},
	}

	err := New(cfg).ListenAndServe(context.Background())
	assert.ErrorIs(t, err, assert.AnError)
}

func TestShutdownEndsHangingRequests(t *testing.T) {
	t.Parallel()

	s := New(testConfig())
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	// a lone /1 request waits for a partner that never comes
	hanging := goGet(context.Background(), "http://"+ln.Addr().String()+"/1")
	waitFor(t, func() bool {
		s.s1.mu.Lock()
		defer s.s1.mu.Unlock()
		return s.s1.waiting != nil
	})

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return")
	}

	select {
	case <-hanging:
	case <-time.After(5 * time.Second):
		t.Fatal("hanging request survived shutdown")
	}
}
