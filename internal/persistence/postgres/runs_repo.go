package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sawpanic/investrun/internal/persistence"
)

// ErrDuplicateRun is returned when a run id is already stored.
var ErrDuplicateRun = errors.New("run already exists")

// runsRepo implements RunsRepo for PostgreSQL
type runsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewRunsRepo creates a new PostgreSQL runs repository
func NewRunsRepo(db *sqlx.DB, timeout time.Duration) persistence.RunsRepo {
	return &runsRepo{db: db, timeout: timeout}
}

const runColumns = `id, kind, symbol, started_at, finished_at, yearly_investment, times_per_year,
	iterations, seed, trend_slope, trend_intercept, mean_ratio, summary, created_at`

// InsertRun stores the run header and its samples in a single transaction, so
// a run is never visible without its samples.
func (r *runsRepo) InsertRun(ctx context.Context, run persistence.Run, samples []persistence.Sample) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout*time.Duration(len(samples)/1000+1))
	defer cancel()

	if len(run.Summary) == 0 {
		run.Summary = []byte("{}")
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, kind, symbol, started_at, finished_at, yearly_investment, times_per_year,
			iterations, seed, trend_slope, trend_intercept, mean_ratio, summary)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		run.ID, run.Kind, run.Symbol, run.StartedAt, run.FinishedAt, run.YearlyInvestment,
		run.TimesPerYear, run.Iterations, run.Seed, run.TrendSlope, run.TrendIntercept,
		run.MeanRatio, []byte(run.Summary))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("%w: %s", ErrDuplicateRun, run.ID)
		}
		return fmt.Errorf("failed to insert run: %w", err)
	}

	if len(samples) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO run_samples (run_id, iteration, symbol, start_year, end_year, times_per_year, ratio)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, s := range samples {
			if _, err := stmt.ExecContext(ctx, run.ID, s.Iteration, s.Symbol,
				s.StartYear, s.EndYear, s.TimesPerYear, s.Ratio); err != nil {
				return fmt.Errorf("failed to insert sample %d: %w", s.Iteration, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by id
func (r *runsRepo) GetRun(ctx context.Context, id uuid.UUID) (*persistence.Run, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var run persistence.Run
	err := r.db.GetContext(ctx, &run, `SELECT `+runColumns+` FROM runs WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &run, nil
}

// ListRuns returns the most recent runs
func (r *runsRepo) ListRuns(ctx context.Context, symbol string, limit int) ([]persistence.Run, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if limit <= 0 {
		limit = 50
	}

	var runs []persistence.Run
	var err error
	if symbol == "" {
		err = r.db.SelectContext(ctx, &runs,
			`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT $1`, limit)
	} else {
		err = r.db.SelectContext(ctx, &runs,
			`SELECT `+runColumns+` FROM runs WHERE symbol = $1 ORDER BY started_at DESC LIMIT $2`, symbol, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// Samples returns a run's samples in iteration order
func (r *runsRepo) Samples(ctx context.Context, id uuid.UUID) ([]persistence.Sample, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var samples []persistence.Sample
	err := r.db.SelectContext(ctx, &samples, `
		SELECT run_id, iteration, symbol, start_year, end_year, times_per_year, ratio
		FROM run_samples
		WHERE run_id = $1
		ORDER BY iteration`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list samples: %w", err)
	}
	return samples, nil
}
