package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Schema creates the tables used by the runs repository.
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
	id                UUID PRIMARY KEY,
	kind              TEXT NOT NULL,
	symbol            TEXT NOT NULL,
	started_at        TIMESTAMPTZ NOT NULL,
	finished_at       TIMESTAMPTZ NOT NULL,
	yearly_investment NUMERIC(14,2) NOT NULL,
	times_per_year    INTEGER NOT NULL,
	iterations        INTEGER NOT NULL,
	seed              BIGINT NOT NULL,
	trend_slope       DOUBLE PRECISION,
	trend_intercept   DOUBLE PRECISION,
	mean_ratio        DOUBLE PRECISION NOT NULL,
	summary           JSONB NOT NULL DEFAULT '{}',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS runs_symbol_started_idx ON runs (symbol, started_at DESC);

CREATE TABLE IF NOT EXISTS run_samples (
	run_id         UUID NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	iteration      INTEGER NOT NULL,
	symbol         TEXT NOT NULL,
	start_year     INTEGER NOT NULL,
	end_year       INTEGER NOT NULL,
	times_per_year INTEGER NOT NULL,
	ratio          DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (run_id, iteration)
);
`

// Migrate applies Schema.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
