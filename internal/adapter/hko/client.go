// Package hko fetches observatory documents over HTTP and discovers candidate
// data endpoints on HTML pages.
package hko

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/couchcryptid/rainfall-etl/internal/observability"
	"github.com/sony/gobreaker"
)

const (
	// maxBodyBytes caps a single response body.
	maxBodyBytes = 8 << 20

	userAgent = "rainfall-etl/1.0 (+https://github.com/couchcryptid/rainfall-etl)"

	breakerFailures = 5
	breakerCooldown = 30 * time.Second
)

var (
	// ErrStatus is wrapped when the upstream answers with a non-2xx status.
	ErrStatus = errors.New("unexpected status")
	// ErrTooLarge is returned when a body exceeds the size limit.
	ErrTooLarge = errors.New("response body too large")
)

// Client fetches raw documents. Successful bodies are cached by URL until the
// next Reset and every host sits behind its own circuit breaker. Requests are
// never retried.
type Client struct {
	httpClient *http.Client
	cache      *lruCache[[]byte]
	logger     *slog.Logger
	metrics    *observability.Metrics

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewClient creates a client with the given per-request timeout and cache size.
func NewClient(timeout time.Duration, cacheSize int, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		cache:      newLRUCache[[]byte](cacheSize),
		logger:     logger,
		metrics:    metrics,
		breakers:   make(map[string]*gobreaker.CircuitBreaker),
	}
}

// statusError carries a non-2xx status through the breaker without counting
// it as a failure. Only transport errors and 5xx responses trip the breaker.
type statusError struct {
	code int
}

// Fetch returns the body at rawURL.
func (c *Client) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if body, ok := c.cache.get(rawURL); ok {
		c.metrics.FetchCache.WithLabelValues("hit").Inc()
		return body, nil
	}
	c.metrics.FetchCache.WithLabelValues("miss").Inc()

	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		c.metrics.FetchRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("invalid url %q", rawURL)
	}

	start := time.Now()
	result, err := c.breaker(u.Host).Execute(func() (interface{}, error) {
		return c.do(ctx, rawURL)
	})
	c.metrics.FetchDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.metrics.FetchRequests.WithLabelValues("breaker_open").Inc()
			return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
		}
		if errors.Is(err, ErrStatus) {
			c.metrics.FetchRequests.WithLabelValues("status").Inc()
		} else {
			c.metrics.FetchRequests.WithLabelValues("error").Inc()
		}
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}

	switch v := result.(type) {
	case statusError:
		c.metrics.FetchRequests.WithLabelValues("status").Inc()
		return nil, fmt.Errorf("fetch %s: %w: %d", rawURL, ErrStatus, v.code)
	case []byte:
		c.metrics.FetchRequests.WithLabelValues("success").Inc()
		c.cache.put(rawURL, v)
		return v, nil
	default:
		return nil, fmt.Errorf("fetch %s: unexpected result type %T", rawURL, result)
	}
}

// Reset drops every cached body.
func (c *Client) Reset() {
	c.cache.reset()
}

func (c *Client) do(ctx context.Context, rawURL string) (interface{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json, text/xml, */*")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return statusError{code: resp.StatusCode}, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(body) > maxBodyBytes {
		return nil, ErrTooLarge
	}
	return body, nil
}

func (c *Client) breaker(host string) *gobreaker.CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cb, ok := c.breakers[host]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        host,
		MaxRequests: 1,
		Timeout:     breakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state change", "host", name, "from", from.String(), "to", to.String())
		},
	})
	c.breakers[host] = cb
	return cb
}
