package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/investrun/internal/persistence"
)

func newMockRepo(t *testing.T) (persistence.RunsRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRunsRepo(sqlx.NewDb(db, "sqlmock"), time.Second), mock
}

func sampleRun() persistence.Run {
	slope := 0.0123
	intercept := 0.98
	started := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return persistence.Run{
		ID:               uuid.MustParse("6f1c4bb8-5a7e-4d1c-9a55-0d6f2d1f4a10"),
		Kind:             "montecarlo",
		Symbol:           "^GSPC",
		StartedAt:        started,
		FinishedAt:       started.Add(3 * time.Second),
		YearlyInvestment: decimal.NewFromInt(12000),
		TimesPerYear:     12,
		Iterations:       1000,
		Seed:             42,
		TrendSlope:       &slope,
		TrendIntercept:   &intercept,
		MeanRatio:        1.07,
		Summary:          []byte(`{"count":1000}`),
	}
}

func expectRunInsert(mock sqlmock.Sqlmock, run persistence.Run) *sqlmock.ExpectedExec {
	return mock.ExpectExec("INSERT INTO runs").
		WithArgs(run.ID, run.Kind, run.Symbol, run.StartedAt, run.FinishedAt, run.YearlyInvestment,
			run.TimesPerYear, run.Iterations, run.Seed, run.TrendSlope, run.TrendIntercept,
			run.MeanRatio, []byte(run.Summary))
}

func TestInsertRun(t *testing.T) {
	repo, mock := newMockRepo(t)
	run := sampleRun()
	samples := []persistence.Sample{
		{Iteration: 0, Symbol: "^GSPC", StartYear: 1990, EndYear: 2000, TimesPerYear: 12, Ratio: 1.05},
		{Iteration: 1, Symbol: "^GSPC", StartYear: 2001, EndYear: 2003, TimesPerYear: 12, Ratio: 0.93},
	}

	mock.ExpectBegin()
	expectRunInsert(mock, run).WillReturnResult(sqlmock.NewResult(0, 1))
	prep := mock.ExpectPrepare("INSERT INTO run_samples")
	for _, s := range samples {
		prep.ExpectExec().
			WithArgs(run.ID, s.Iteration, s.Symbol, s.StartYear, s.EndYear, s.TimesPerYear, s.Ratio).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	require.NoError(t, repo.InsertRun(context.Background(), run, samples))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertRunWithoutSamples(t *testing.T) {
	repo, mock := newMockRepo(t)
	run := sampleRun()

	mock.ExpectBegin()
	expectRunInsert(mock, run).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.InsertRun(context.Background(), run, nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertRunDefaultsSummary(t *testing.T) {
	repo, mock := newMockRepo(t)
	run := sampleRun()
	run.Summary = nil

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO runs").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), []byte("{}")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.InsertRun(context.Background(), run, nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertRunDuplicate(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO runs").WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	err := repo.InsertRun(context.Background(), sampleRun(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateRun))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertRunRollsBackHeaderWhenSampleFails(t *testing.T) {
	repo, mock := newMockRepo(t)
	run := sampleRun()

	mock.ExpectBegin()
	expectRunInsert(mock, run).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectPrepare("INSERT INTO run_samples").
		ExpectExec().WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := repo.InsertRun(context.Background(), run, []persistence.Sample{{Iteration: 7}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sample 7")
	// no commit was issued, so the header insert is rolled back with the samples
	assert.NoError(t, mock.ExpectationsWereMet())
}

func runRows(run persistence.Run) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "kind", "symbol", "started_at", "finished_at", "yearly_investment", "times_per_year",
		"iterations", "seed", "trend_slope", "trend_intercept", "mean_ratio", "summary", "created_at",
	}).AddRow(run.ID.String(), run.Kind, run.Symbol, run.StartedAt, run.FinishedAt, "12000.00",
		run.TimesPerYear, run.Iterations, run.Seed, *run.TrendSlope, nil, run.MeanRatio,
		[]byte(run.Summary), run.FinishedAt)
}

func TestGetRun(t *testing.T) {
	repo, mock := newMockRepo(t)
	want := sampleRun()

	mock.ExpectQuery("SELECT (.+) FROM runs WHERE id").
		WithArgs(want.ID).
		WillReturnRows(runRows(want))

	got, err := repo.GetRun(context.Background(), want.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, "^GSPC", got.Symbol)
	assert.True(t, decimal.NewFromInt(12000).Equal(got.YearlyInvestment))
	require.NotNil(t, got.TrendSlope)
	assert.InDelta(t, 0.0123, *got.TrendSlope, 1e-12)
	assert.Nil(t, got.TrendIntercept)
	assert.JSONEq(t, `{"count":1000}`, string(got.Summary))
}

func TestGetRunMissing(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM runs WHERE id").WithArgs(id).WillReturnError(sql.ErrNoRows)

	got, err := repo.GetRun(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestListRuns(t *testing.T) {
	t.Run("all symbols", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery("SELECT (.+) FROM runs ORDER BY started_at DESC LIMIT").
			WithArgs(50).
			WillReturnRows(runRows(sampleRun()))

		runs, err := repo.ListRuns(context.Background(), "", 0)
		require.NoError(t, err)
		assert.Len(t, runs, 1)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("by symbol", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery("SELECT (.+) FROM runs WHERE symbol").
			WithArgs("TQQQ", 5).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		runs, err := repo.ListRuns(context.Background(), "TQQQ", 5)
		require.NoError(t, err)
		assert.Empty(t, runs)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSamples(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := sampleRun().ID

	mock.ExpectQuery("SELECT (.+) FROM run_samples").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"run_id", "iteration", "symbol", "start_year", "end_year", "times_per_year", "ratio"}).
			AddRow(id.String(), 0, "^GSPC", 1990, 2000, 4, 1.02).
			AddRow(id.String(), 1, "^GSPC", 1995, 1995, 4, 0.99))

	samples, err := repo.Samples(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, 1995, samples[1].StartYear)
	assert.Equal(t, id, samples[0].RunID)
}

func TestMigrate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS runs").WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, Migrate(context.Background(), sqlx.NewDb(db, "sqlmock")))
	assert.NoError(t, mock.ExpectationsWereMet())
}
