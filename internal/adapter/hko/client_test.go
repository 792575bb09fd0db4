package hko

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/rainfall-etl/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(cacheSize int) (*Client, *observability.Metrics) {
	metrics := observability.NewMetricsForTesting()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewClient(5*time.Second, cacheSize, logger, metrics), metrics
}

func TestClient_Fetch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "20240501", r.URL.Query().Get("date"))
		assert.Contains(t, r.Header.Get("User-Agent"), "rainfall-etl")
		_, _ = w.Write([]byte(`{"20240501": {"A": 1}}`))
	}))
	defer srv.Close()

	c, metrics := testClient(8)
	body, err := c.Fetch(context.Background(), srv.URL+"/rain.json?date=20240501")
	require.NoError(t, err)
	assert.JSONEq(t, `{"20240501": {"A": 1}}`, string(body))
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.FetchRequests.WithLabelValues("success")), 0)
}

func TestClient_Fetch_CacheHit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c, metrics := testClient(8)
	for range 3 {
		_, err := c.Fetch(context.Background(), srv.URL+"/a.json")
		require.NoError(t, err)
	}

	assert.Equal(t, int32(1), calls.Load(), "should only hit upstream once")
	assert.InDelta(t, 2.0, testutil.ToFloat64(metrics.FetchCache.WithLabelValues("hit")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.FetchCache.WithLabelValues("miss")), 0)
}

func TestClient_Reset(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := calls.Add(1)
		_, _ = w.Write([]byte(fmt.Sprintf(`{"n": %d}`, n)))
	}))
	defer srv.Close()

	c, _ := testClient(8)
	first, err := c.Fetch(context.Background(), srv.URL+"/a.json")
	require.NoError(t, err)

	c.Reset()
	assert.Zero(t, c.cache.len())

	second, err := c.Fetch(context.Background(), srv.URL+"/a.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"n": 1}`, string(first))
	assert.JSONEq(t, `{"n": 2}`, string(second))
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_Fetch_NotFoundIsNotCachedAndDoesNotTrip(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.NotFound(w, nil)
	}))
	defer srv.Close()

	c, metrics := testClient(8)
	for range breakerFailures + 2 {
		_, err := c.Fetch(context.Background(), srv.URL+"/missing.json")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrStatus)
	}

	assert.Equal(t, int32(breakerFailures+2), calls.Load())
	assert.InDelta(t, float64(breakerFailures+2), testutil.ToFloat64(metrics.FetchRequests.WithLabelValues("status")), 0)
	assert.Zero(t, testutil.ToFloat64(metrics.FetchRequests.WithLabelValues("breaker_open")))
}

func TestClient_Fetch_BreakerOpensOnServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c, metrics := testClient(8)
	for range breakerFailures {
		_, err := c.Fetch(context.Background(), srv.URL+"/a.json")
		require.ErrorIs(t, err, ErrStatus)
	}

	_, err := c.Fetch(context.Background(), srv.URL+"/b.json")
	require.Error(t, err)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(breakerFailures), calls.Load(), "open breaker should short-circuit")
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.FetchRequests.WithLabelValues("breaker_open")), 0)
}

func TestClient_Fetch_BodyLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(make([]byte, maxBodyBytes+10))
	}))
	defer srv.Close()

	c, _ := testClient(8)
	_, err := c.Fetch(context.Background(), srv.URL+"/big.json")
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestClient_Fetch_InvalidURL(t *testing.T) {
	c, _ := testClient(8)
	_, err := c.Fetch(context.Background(), "not a url")
	require.Error(t, err)
}

func TestClient_Fetch_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c, _ := testClient(8)
	_, err := c.Fetch(ctx, srv.URL+"/a.json")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLRUCache_Eviction(t *testing.T) {
	c := newLRUCache[int](2)
	c.put("a", 1)
	c.put("b", 2)

	_, ok := c.get("a") // a becomes most recent
	require.True(t, ok)

	c.put("c", 3) // evicts b
	_, ok = c.get("b")
	assert.False(t, ok)

	v, ok := c.get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 2, c.len())

	c.put("a", 10)
	v, _ = c.get("a")
	assert.Equal(t, 10, v)
}

func TestLRUCache_ZeroSizeDisables(t *testing.T) {
	c := newLRUCache[string](0)
	c.put("a", "x")
	_, ok := c.get("a")
	assert.False(t, ok)
}
