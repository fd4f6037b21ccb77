package client

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/investrun/internal/net/circuit"
	"github.com/sawpanic/investrun/internal/net/ratelimit"
)

func newClient(cfg WrapperConfig) *http.Client {
	return &http.Client{Transport: NewWrapper(cfg, nil), Timeout: 5 * time.Second}
}

func TestWrapper_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newClient(WrapperConfig{Provider: "yahoo", MaxRetries: 3, RetryBackoff: time.Millisecond})
	resp, err := c.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestWrapper_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "No data found, symbol may be delisted", http.StatusNotFound)
	}))
	defer srv.Close()

	c := newClient(WrapperConfig{Provider: "yahoo", MaxRetries: 3, RetryBackoff: time.Millisecond})
	_, err := c.Get(srv.URL)
	require.Error(t, err)

	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, http.StatusNotFound, perr.StatusCode)
	assert.ErrorIs(t, err, circuit.ErrPermanent)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestWrapper_OpenBreakerShortCircuits(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	breakers := circuit.NewManager()
	cfg := circuit.DefaultConfig()
	cfg.ConsecutiveFailures = 2
	cfg.Timeout = time.Hour
	breakers.AddProvider("yahoo", cfg)

	c := newClient(WrapperConfig{
		Provider:     "yahoo",
		Breakers:     breakers,
		RateLimiter:  ratelimit.NewLimiter(1000, 10),
		MaxRetries:   5,
		RetryBackoff: time.Millisecond,
	})

	_, err := c.Get(srv.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, circuit.ErrOpen)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestProviderError_Retryable(t *testing.T) {
	assert.True(t, (&ProviderError{Type: "http_error", StatusCode: 429}).Retryable())
	assert.True(t, (&ProviderError{Type: "http_error", StatusCode: 500}).Retryable())
	assert.False(t, (&ProviderError{Type: "http_error", StatusCode: 404}).Retryable())
	assert.True(t, (&ProviderError{Type: "transport"}).Retryable())
	assert.False(t, (&ProviderError{Type: "circuit"}).Retryable())
}
