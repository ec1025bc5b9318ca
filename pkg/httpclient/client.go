// Package httpclient sends the GET requests of the racing scenarios to a
// scenario server.
package httpclient

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/retroryan/easyracer/pkg/config"
	"github.com/retroryan/easyracer/pkg/log"
)

// StatusError is returned by GetOK for any response other than 200.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.Code)
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Body       string
}

// Client talks to one scenario server.
type Client struct {
	base    *url.URL
	http    *http.Client
	traffic *log.TrafficLog
}

// New creates a client for cfg.URL.
func New(cfg *config.Client) (*Client, error) {
	base, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing url %q: %w", cfg.URL, err)
	}

	var traffic *log.TrafficLog
	if cfg.LogFile != "" {
		traffic, err = log.OpenTrafficLog(cfg.LogFile)
		if err != nil {
			return nil, err
		}
	}

	dial := config.GetDialerFunc(cfg.Deps, cfg.Timeout)
	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			conn, err := dial(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			return traffic.Wrap(conn), nil
		},
		// one connection per request: the server tells racers apart by
		// connection, and a cancelled racer must release its socket
		DisableKeepAlives:   true,
		MaxIdleConnsPerHost: -1,
	}

	return &Client{
		base: base,
		http: &http.Client{
			Transport: transport,
			// 3xx is a meaningful answer in scenario 10, never follow it
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		traffic: traffic,
	}, nil
}

// Close releases idle connections and the traffic log.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return c.traffic.Close()
}

// URL resolves a path with optional query against the base URL.
func (c *Client) URL(pathAndQuery string) (string, error) {
	ref, err := url.Parse(pathAndQuery)
	if err != nil {
		return "", fmt.Errorf("parsing %q: %w", pathAndQuery, err)
	}
	if !strings.HasPrefix(ref.Path, "/") {
		ref.Path = "/" + ref.Path
	}

	u := *c.base
	u.Path = strings.TrimSuffix(c.base.Path, "/") + ref.Path
	u.RawQuery = ref.RawQuery
	return u.String(), nil
}

// Do sends a GET and reads the whole response, whatever its status.
func (c *Client) Do(ctx context.Context, pathAndQuery string) (*Response, error) {
	u, err := c.URL(pathAndQuery)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	logger := log.FromContext(ctx)
	logger.VerboseMsg("Sending request %s", pathAndQuery)

	resp, err := c.http.Do(req)
	if err != nil {
		logger.VerboseMsg("Request %s failed: %v", pathAndQuery, err)
		return nil, fmt.Errorf("GET %s: %w", pathAndQuery, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading body of %s: %w", pathAndQuery, err)
	}

	logger.VerboseMsg("Request %s answered %d", pathAndQuery, resp.StatusCode)
	return &Response{StatusCode: resp.StatusCode, Body: string(body)}, nil
}

// Doer sends a GET for a path relative to some base URL.
type Doer interface {
	Do(ctx context.Context, pathAndQuery string) (*Response, error)
}

// Get returns the body of the response regardless of its status.
func Get(ctx context.Context, d Doer, pathAndQuery string) (string, error) {
	resp, err := d.Do(ctx, pathAndQuery)
	if err != nil {
		return "", err
	}
	return resp.Body, nil
}

// GetOK returns the body of a 200 response, and a *StatusError otherwise.
func GetOK(ctx context.Context, d Doer, pathAndQuery string) (string, error) {
	resp, err := d.Do(ctx, pathAndQuery)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{Code: resp.StatusCode, Body: resp.Body}
	}
	return resp.Body, nil
}
