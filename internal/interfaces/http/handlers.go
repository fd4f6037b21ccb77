package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/investrun/internal/application"
	"github.com/sawpanic/investrun/internal/compare"
	"github.com/sawpanic/investrun/internal/data"
	"github.com/sawpanic/investrun/internal/invest"
	"github.com/sawpanic/investrun/internal/market"
	"github.com/sawpanic/investrun/internal/montecarlo"
	"github.com/sawpanic/investrun/internal/net/circuit"
	"github.com/sawpanic/investrun/internal/persistence"
	"github.com/sawpanic/investrun/internal/providers/yahoo"
)

// writeJSON writes JSON response with proper error handling
func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// writeError writes standardized error response
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Error:     http.StatusText(status),
		Message:   message,
		Code:      code,
		RequestID: RequestID(r.Context()),
		Timestamp: time.Now().UTC(),
	})
}

// writeDomainError maps domain errors to status codes
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("request_id", RequestID(r.Context())).Msg("Request failed")
	}
	writeError(w, r, status, code, err.Error())
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, invest.ErrInvalidFrequency),
		errors.Is(err, invest.ErrInvalidAmount),
		errors.Is(err, market.ErrYearOutOfRange),
		errors.Is(err, market.ErrMonthOutOfRange),
		errors.Is(err, market.ErrInvalidRange),
		errors.Is(err, invest.ErrNoRandomSource),
		errors.Is(err, montecarlo.ErrInvalidIterations),
		errors.Is(err, data.ErrStartYear):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, invest.ErrNoTradingMonth),
		errors.Is(err, market.ErrNoTradingDay),
		errors.Is(err, market.ErrNoFullYear),
		errors.Is(err, market.ErrEmptySeries),
		errors.Is(err, yahoo.ErrNoData):
		return http.StatusUnprocessableEntity, "insufficient_data"
	case errors.Is(err, circuit.ErrOpen):
		return http.StatusServiceUnavailable, "provider_unavailable"
	case errors.Is(err, application.ErrRunNotFound):
		return http.StatusNotFound, "run_not_found"
	case errors.Is(err, application.ErrPersistenceDisabled):
		return http.StatusNotImplemented, "persistence_disabled"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusBadGateway, "upstream_error"
	}
}

// intParam reads an optional integer query parameter
func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.New(name + " must be an integer")
	}
	return n, nil
}

// health handles GET /health
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		Version:   s.config.Version,
	}

	if s.deps.Breakers != nil {
		providers := s.deps.Breakers.Providers()
		sort.Strings(providers)
		for _, p := range providers {
			st, _ := s.deps.Breakers.Status(p)
			if st.State != "closed" {
				resp.Status = "degraded"
			}
			resp.Breakers = append(resp.Breakers, st)
		}
	}

	if s.deps.RateLimits != nil {
		stats := s.deps.RateLimits()
		hosts := make([]string, 0, len(stats))
		for host := range stats {
			hosts = append(hosts, host)
		}
		sort.Strings(hosts)
		for _, host := range hosts {
			resp.RateLimits = append(resp.RateLimits, stats[host])
		}
	}

	if s.deps.Database != nil {
		db := s.deps.Database(r.Context())
		if !db.Healthy {
			resp.Status = "degraded"
		}
		resp.Database = &db
	}

	writeJSON(w, http.StatusOK, resp)
}

// compare handles GET /compare/{symbol}?start&end&freq&month&amount
func (s *Server) compare(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	var req compare.Request
	var err error
	for _, p := range []struct {
		name string
		dst  *int
	}{
		{"start", &req.StartYear},
		{"end", &req.EndYear},
		{"freq", &req.TimesPerYear},
		{"month", &req.TradingMonth},
	} {
		if *p.dst, err = intParam(r, p.name, 0); err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_parameter", err.Error())
			return
		}
	}
	if req.TradingMonth < 0 || req.TradingMonth > 12 {
		writeError(w, r, http.StatusBadRequest, "invalid_parameter", "month must be between 1 and 12")
		return
	}
	if v := r.URL.Query().Get("amount"); v != "" {
		if req.YearlyInvestment, err = strconv.ParseFloat(v, 64); err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_parameter", "amount must be a number")
			return
		}
	}

	row, err := s.deps.Service.Compare(r.Context(), symbol, req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func (s *Server) decodeMonteCarlo(w http.ResponseWriter, r *http.Request) (MonteCarloRequest, bool) {
	req := MonteCarloRequest{Iterations: 1000, TimesPerYear: 12}
	if r.Body != nil && r.ContentLength != 0 {
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_body", err.Error())
			return req, false
		}
	}
	if req.Iterations > s.config.MaxIterations {
		writeError(w, r, http.StatusBadRequest, "too_many_iterations",
			"iterations must not exceed "+strconv.Itoa(s.config.MaxIterations))
		return req, false
	}
	return req, true
}

// monteCarlo handles POST /montecarlo/{symbol}
func (s *Server) monteCarlo(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	req, ok := s.decodeMonteCarlo(w, r)
	if !ok {
		return
	}

	res, err := s.deps.Service.MonteCarlo(r.Context(), symbol, req.Config(), nil)
	if err != nil && res == nil {
		writeDomainError(w, r, err)
		return
	}
	if err != nil {
		// the simulation finished; only persisting it failed
		log.Warn().Err(err).Str("run_id", res.ID.String()).Msg("Run not persisted")
	}
	if !req.IncludeSamples {
		res.Samples = nil
	}
	writeJSON(w, http.StatusOK, res)
}

// runs handles GET /runs?symbol&limit
func (s *Server) runs(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", 50)
	if err != nil || limit <= 0 || limit > 1000 {
		writeError(w, r, http.StatusBadRequest, "invalid_parameter", "limit must be between 1 and 1000")
		return
	}

	runs, err := s.deps.Service.ListRuns(r.Context(), r.URL.Query().Get("symbol"), limit)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RunsResponse{Runs: runs, Count: len(runs)})
}

// run handles GET /runs/{id}
func (s *Server) run(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_parameter", "run id must be a UUID")
		return
	}

	run, samples, err := s.deps.Service.Run(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if samples == nil {
		samples = []persistence.Sample{}
	}
	writeJSON(w, http.StatusOK, RunResponse{Run: *run, Samples: samples})
}

// notFound handles 404 responses
func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusNotFound, "endpoint_not_found", "The requested endpoint does not exist")
}
