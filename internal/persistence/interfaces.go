package persistence

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Run is a persisted simulation: a Monte Carlo study, a single comparison or
// a multi-index horizon table.
type Run struct {
	ID               uuid.UUID       `json:"id" db:"id"`
	Kind             string          `json:"kind" db:"kind"`
	Symbol           string          `json:"symbol" db:"symbol"`
	StartedAt        time.Time       `json:"started_at" db:"started_at"`
	FinishedAt       time.Time       `json:"finished_at" db:"finished_at"`
	YearlyInvestment decimal.Decimal `json:"yearly_investment" db:"yearly_investment"`
	TimesPerYear     int             `json:"times_per_year" db:"times_per_year"`
	Iterations       int             `json:"iterations" db:"iterations"`
	Seed             int64           `json:"seed" db:"seed"`
	TrendSlope       *float64        `json:"trend_slope,omitempty" db:"trend_slope"`
	TrendIntercept   *float64        `json:"trend_intercept,omitempty" db:"trend_intercept"`
	MeanRatio        float64         `json:"mean_ratio" db:"mean_ratio"`
	Summary          json.RawMessage `json:"summary" db:"summary"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
}

// Sample is one Monte Carlo iteration or one comparison row belonging to a run.
type Sample struct {
	RunID        uuid.UUID `json:"run_id" db:"run_id"`
	Iteration    int       `json:"iteration" db:"iteration"`
	Symbol       string    `json:"symbol" db:"symbol"`
	StartYear    int       `json:"start_year" db:"start_year"`
	EndYear      int       `json:"end_year" db:"end_year"`
	TimesPerYear int       `json:"times_per_year" db:"times_per_year"`
	Ratio        float64   `json:"ratio" db:"ratio"`
}

// RunsRepo stores simulation runs and their samples.
type RunsRepo interface {
	// InsertRun stores a run header and its samples in one transaction
	InsertRun(ctx context.Context, run Run, samples []Sample) error

	// GetRun returns the run with id, or nil when absent
	GetRun(ctx context.Context, id uuid.UUID) (*Run, error)

	// ListRuns returns the latest runs, optionally filtered by symbol
	ListRuns(ctx context.Context, symbol string, limit int) ([]Run, error)

	// Samples returns a run's samples ordered by iteration
	Samples(ctx context.Context, id uuid.UUID) ([]Sample, error)
}

// HealthCheck represents repository health status
type HealthCheck struct {
	Healthy        bool           `json:"healthy"`
	Errors         []string       `json:"errors,omitempty"`
	ConnectionPool map[string]int `json:"connection_pool"`
	LastCheck      time.Time      `json:"last_check"`
	ResponseTimeMS int64          `json:"response_time_ms"`
}
