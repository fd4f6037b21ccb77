package metrics

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, r *Registry, name string, labels map[string]string) float64 {
	t.Helper()

	families, err := r.Gatherer().Gather()
	require.NoError(t, err)

	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			if matches(m, labels) {
				switch {
				case m.Counter != nil:
					return m.GetCounter().GetValue()
				case m.Gauge != nil:
					return m.GetGauge().GetValue()
				case m.Histogram != nil:
					return float64(m.GetHistogram().GetSampleCount())
				}
			}
		}
	}
	return 0
}

func matches(m *dto.Metric, labels map[string]string) bool {
	found := 0
	for _, lp := range m.GetLabel() {
		if v, ok := labels[lp.GetName()]; ok && v == lp.GetValue() {
			found++
		}
	}
	return found == len(labels)
}

func TestRegistry_Records(t *testing.T) {
	r := NewRegistry()

	r.ObserveFetch("^GSPC", 200*time.Millisecond, nil)
	r.ObserveFetch("^GSPC", time.Second, errors.New("boom"))
	r.CacheResult("hit")
	r.CacheResult("hit")
	r.CacheResult("miss")
	r.SimulationDone("montecarlo")
	r.ObserveSample("TQQQ", 1.04)
	r.SetBreakerState("yahoo", gobreaker.StateOpen)

	assert.Equal(t, 1.0, counterValue(t, r, "investrun_fetch_duration_seconds", map[string]string{"symbol": "^GSPC", "result": "ok"}))
	assert.Equal(t, 1.0, counterValue(t, r, "investrun_fetch_duration_seconds", map[string]string{"symbol": "^GSPC", "result": "error"}))
	assert.Equal(t, 2.0, counterValue(t, r, "investrun_cache_requests_total", map[string]string{"result": "hit"}))
	assert.Equal(t, 1.0, counterValue(t, r, "investrun_simulations_total", map[string]string{"kind": "montecarlo"}))
	assert.Equal(t, 1.0, counterValue(t, r, "investrun_montecarlo_iterations_total", map[string]string{"symbol": "TQQQ"}))
	assert.Equal(t, 2.0, counterValue(t, r, "investrun_breaker_state", map[string]string{"provider": "yahoo"}))
}

func TestRegistry_NilIsNoop(t *testing.T) {
	var r *Registry
	assert.NotPanics(t, func() {
		r.ObserveFetch("x", time.Second, nil)
		r.CacheResult("hit")
		r.SimulationDone("compare")
		r.ObserveSample("x", 1)
		r.SetBreakerState("yahoo", gobreaker.StateClosed)
		r.HTTPRequest("/health", "200")
	})
}

func TestRegistry_Handler(t *testing.T) {
	r := NewRegistry()
	r.SimulationDone("compare")

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `investrun_simulations_total{kind="compare"} 1`)
}
