package client

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/investrun/internal/net/circuit"
	"github.com/sawpanic/investrun/internal/net/ratelimit"
)

// WrapperConfig configures the provider transport.
type WrapperConfig struct {
	Provider     string
	UserAgent    string
	RateLimiter  *ratelimit.Limiter
	Breakers     *circuit.Manager
	MaxRetries   int
	RetryBackoff time.Duration
}

// Wrapper is an http.RoundTripper that rate limits per host, retries
// throttled and 5xx responses with exponential backoff, and runs every
// attempt through the provider's circuit breaker.
type Wrapper struct {
	config    WrapperConfig
	transport http.RoundTripper
}

// NewWrapper wraps transport; a nil transport uses http.DefaultTransport.
func NewWrapper(config WrapperConfig, transport http.RoundTripper) *Wrapper {
	if transport == nil {
		transport = http.DefaultTransport
	}
	if config.UserAgent == "" {
		config.UserAgent = "Mozilla/5.0 (compatible; investrun/1.0)"
	}
	if config.RetryBackoff == 0 {
		config.RetryBackoff = 500 * time.Millisecond
	}
	return &Wrapper{config: config, transport: transport}
}

// RoundTrip implements http.RoundTripper.
func (w *Wrapper) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", w.config.UserAgent)
	}

	var lastErr error
	for attempt := 0; attempt <= w.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := w.config.RetryBackoff * time.Duration(1<<(attempt-1))
			log.Debug().
				Str("provider", w.config.Provider).
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Err(lastErr).
				Msg("Retrying provider request")

			select {
			case <-req.Context().Done():
				return nil, req.Context().Err()
			case <-time.After(backoff):
			}
		}

		resp, err := w.attempt(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		perr, ok := err.(*ProviderError)
		if !ok || !perr.Retryable() {
			return nil, err
		}
	}
	return nil, lastErr
}

func (w *Wrapper) attempt(req *http.Request) (*http.Response, error) {
	if w.config.RateLimiter != nil {
		if err := w.config.RateLimiter.Wait(req.Context(), req.URL.Host); err != nil {
			return nil, &ProviderError{Provider: w.config.Provider, Type: "rate_limit", Err: err}
		}
	}

	exec := func() (interface{}, error) {
		resp, err := w.transport.RoundTrip(req)
		if err != nil {
			return nil, &ProviderError{Provider: w.config.Provider, Type: "transport", Err: err}
		}
		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()

			perr := &ProviderError{
				Provider:   w.config.Provider,
				Type:       "http_error",
				StatusCode: resp.StatusCode,
				Err:        fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body)),
			}
			if !perr.Retryable() {
				// client errors are not the provider's fault
				perr.Err = fmt.Errorf("%v: %w", perr.Err, circuit.ErrPermanent)
			}
			return nil, perr
		}
		return resp, nil
	}

	var out interface{}
	var err error
	if w.config.Breakers != nil {
		out, err = w.config.Breakers.Execute(w.config.Provider, exec)
	} else {
		out, err = exec()
	}
	if err != nil {
		if _, ok := err.(*ProviderError); !ok {
			err = &ProviderError{Provider: w.config.Provider, Type: "circuit", Err: err}
		}
		return nil, err
	}
	return out.(*http.Response), nil
}

// ProviderError describes a failed provider request.
type ProviderError struct {
	Provider   string `json:"provider"`
	Type       string `json:"type"` // rate_limit, circuit, transport, http_error
	StatusCode int    `json:"status_code,omitempty"`
	Err        error  `json:"-"`
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider %s %s error (HTTP %d): %v", e.Provider, e.Type, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("provider %s %s error: %v", e.Provider, e.Type, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Retryable reports whether repeating the request may succeed.
func (e *ProviderError) Retryable() bool {
	switch e.Type {
	case "transport":
		return true
	case "http_error":
		return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
	default:
		return false
	}
}
