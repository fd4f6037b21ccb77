// Package metrics exposes Prometheus metrics for data loading, caching and
// simulations. A nil *Registry is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker"
)

// Registry holds all investrun metrics on a private Prometheus registry.
type Registry struct {
	reg *prometheus.Registry

	FetchDuration   *prometheus.HistogramVec
	CacheRequests   *prometheus.CounterVec
	Simulations     *prometheus.CounterVec
	MonteCarloIters *prometheus.CounterVec
	Ratios          *prometheus.HistogramVec
	BreakerState    *prometheus.GaugeVec
	HTTPRequests    *prometheus.CounterVec
}

// NewRegistry creates and registers every metric, plus Go runtime collectors.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		FetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "investrun_fetch_duration_seconds",
				Help:    "Duration of daily history downloads by symbol and result",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"symbol", "result"},
		),

		CacheRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "investrun_cache_requests_total",
				Help: "Price cache lookups by result (hit, miss, error)",
			},
			[]string{"result"},
		),

		Simulations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "investrun_simulations_total",
				Help: "Completed simulations by kind (compare, montecarlo, horizon)",
			},
			[]string{"kind"},
		),

		MonteCarloIters: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "investrun_montecarlo_iterations_total",
				Help: "Monte Carlo iterations completed by symbol",
			},
			[]string{"symbol"},
		),

		Ratios: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "investrun_ratio",
				Help:    "Yearly over sub-annual share ratios observed",
				Buckets: []float64{0.8, 0.9, 0.95, 0.98, 1, 1.02, 1.05, 1.1, 1.2, 1.5},
			},
			[]string{"symbol"},
		),

		BreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "investrun_breaker_state",
				Help: "Provider circuit breaker state (0 closed, 1 half-open, 2 open)",
			},
			[]string{"provider"},
		),

		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "investrun_http_requests_total",
				Help: "HTTP API requests by route and status code",
			},
			[]string{"route", "code"},
		),
	}

	r.reg.MustRegister(
		r.FetchDuration,
		r.CacheRequests,
		r.Simulations,
		r.MonteCarloIters,
		r.Ratios,
		r.BreakerState,
		r.HTTPRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// ObserveFetch records a download.
func (r *Registry) ObserveFetch(symbol string, d time.Duration, err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.FetchDuration.WithLabelValues(symbol, result).Observe(d.Seconds())
}

// CacheResult records a cache lookup outcome.
func (r *Registry) CacheResult(result string) {
	if r == nil {
		return
	}
	r.CacheRequests.WithLabelValues(result).Inc()
}

// SimulationDone records a finished simulation.
func (r *Registry) SimulationDone(kind string) {
	if r == nil {
		return
	}
	r.Simulations.WithLabelValues(kind).Inc()
}

// ObserveSample records one Monte Carlo iteration and its ratio.
func (r *Registry) ObserveSample(symbol string, ratio float64) {
	if r == nil {
		return
	}
	r.MonteCarloIters.WithLabelValues(symbol).Inc()
	r.Ratios.WithLabelValues(symbol).Observe(ratio)
}

// SetBreakerState records a breaker transition.
func (r *Registry) SetBreakerState(provider string, state gobreaker.State) {
	if r == nil {
		return
	}
	var v float64
	switch state {
	case gobreaker.StateHalfOpen:
		v = 1
	case gobreaker.StateOpen:
		v = 2
	}
	r.BreakerState.WithLabelValues(provider).Set(v)
}

// HTTPRequest records an API request.
func (r *Registry) HTTPRequest(route, code string) {
	if r == nil {
		return
	}
	r.HTTPRequests.WithLabelValues(route, code).Inc()
}
