package http

import (
	"time"

	"github.com/sawpanic/investrun/internal/montecarlo"
	"github.com/sawpanic/investrun/internal/net/circuit"
	"github.com/sawpanic/investrun/internal/net/ratelimit"
	"github.com/sawpanic/investrun/internal/persistence"
)

// ErrorResponse is the body of every non-2xx JSON response
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Code      string    `json:"code"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status     string                   `json:"status"` // healthy, degraded
	Timestamp  time.Time                `json:"timestamp"`
	Uptime     string                   `json:"uptime"`
	Version    string                   `json:"version"`
	Breakers   []circuit.Status         `json:"breakers,omitempty"`
	RateLimits []ratelimit.HostStats    `json:"rate_limits,omitempty"`
	Database   *persistence.HealthCheck `json:"database,omitempty"`
}

// MonteCarloRequest is the body of POST /montecarlo/{symbol}
type MonteCarloRequest struct {
	Iterations       int     `json:"iterations"`
	TimesPerYear     int     `json:"times_per_year"`
	TradingMonth     int     `json:"trading_month"`
	YearlyInvestment float64 `json:"yearly_investment"`
	Seed             int64   `json:"seed"`
	IncludeSamples   bool    `json:"include_samples"`
}

// Config converts the request to a simulation config.
func (r MonteCarloRequest) Config() montecarlo.Config {
	return montecarlo.Config{
		Iterations:       r.Iterations,
		TimesPerYear:     r.TimesPerYear,
		TradingMonth:     r.TradingMonth,
		YearlyInvestment: r.YearlyInvestment,
		Seed:             r.Seed,
	}
}

// RunsResponse is returned by GET /runs
type RunsResponse struct {
	Runs  []persistence.Run `json:"runs"`
	Count int               `json:"count"`
}

// RunResponse is returned by GET /runs/{id}
type RunResponse struct {
	Run     persistence.Run      `json:"run"`
	Samples []persistence.Sample `json:"samples"`
}

// StreamFrame is one websocket message of a streamed simulation
type StreamFrame struct {
	Type   string             `json:"type"` // sample, result, error
	Sample *montecarlo.Sample `json:"sample,omitempty"`
	Result *montecarlo.Result `json:"result,omitempty"`
	Error  string             `json:"error,omitempty"`
}
