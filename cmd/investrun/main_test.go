package main

import (
	"bytes"
	"context"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/investrun/internal/application"
	"github.com/sawpanic/investrun/internal/config"
	"github.com/sawpanic/investrun/internal/data/csvstore"
	"github.com/sawpanic/investrun/internal/invest"
	"github.com/sawpanic/investrun/internal/market"
	"github.com/sawpanic/investrun/internal/montecarlo"
)

// writeFixtures stores weekday bars from 2010 through 2024 for each symbol
func writeFixtures(t *testing.T, dir string, symbols ...string) {
	t.Helper()
	store := csvstore.New(dir)
	for i, symbol := range symbols {
		series := &market.Series{Symbol: symbol}
		n := 0
		for d := time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC); d.Year() <= 2024; d = d.AddDate(0, 0, 1) {
			n++
			if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
				continue
			}
			p := 50 * float64(i+1) * math.Exp(0.0002*float64(n)) * (1 + 0.1*math.Sin(float64(n)/45))
			series.Bars = append(series.Bars, market.Bar{
				Date: market.DateOf(d), Open: p, High: p * 1.01, Low: p * 0.99, Close: p, Volume: 1000,
			})
		}
		_, err := store.Save(series)
		require.NoError(t, err)
	}
}

type env struct {
	dataDir string
	outDir  string
	config  string
}

func newEnv(t *testing.T) env {
	t.Helper()
	root := t.TempDir()
	e := env{
		dataDir: filepath.Join(root, "data"),
		outDir:  filepath.Join(root, "out"),
		config:  filepath.Join(root, "missing.yaml"),
	}
	writeFixtures(t, e.dataDir, "^GSPC", "TQQQ", "HIBL", "BTC-USD")
	return e
}

func (e env) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{
		"--config", e.config,
		"--data-dir", e.dataDir,
		"--out", e.outDir,
		"--color", "never",
		"--log-level", "error",
	}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCompareCommand(t *testing.T) {
	e := newEnv(t)

	out, err := e.run(t, "compare", "^GSPC", "--start", "2015", "--freq", "quarterly")
	require.NoError(t, err)

	assert.Contains(t, out, "^GSPC 2015-2024: yearly vs quarterly")
	assert.Contains(t, out, "$120000.00")
	assert.FileExists(t, filepath.Join(e.outDir, "gspc_portfolio_2015-2024.png"))
}

func TestCompareCommandRejectsBadFrequency(t *testing.T) {
	e := newEnv(t)

	_, err := e.run(t, "compare", "^GSPC", "--freq", "5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid investment frequency")
}

func TestMonteCarloCommand(t *testing.T) {
	e := newEnv(t)

	out, err := e.run(t, "montecarlo", "^GSPC", "-n", "20", "--freq", "4,12", "--seed", "5", "--chart=false")
	require.NoError(t, err)

	assert.Contains(t, out, "^GSPC Monte Carlo: yearly vs quarterly (20 iterations)")
	assert.Contains(t, out, "^GSPC Monte Carlo: yearly vs monthly (20 iterations)")
	assert.NoFileExists(t, filepath.Join(e.outDir, "gspc_monte_carlo.png"))
}

func TestHorizonCommand(t *testing.T) {
	e := newEnv(t)
	md := filepath.Join(t.TempDir(), "horizon.md")

	out, err := e.run(t, "horizon", "--markdown", md)
	require.NoError(t, err)

	assert.Contains(t, out, "HIBL investor started investing in")
	assert.Contains(t, out, "BTC-USD investor ratio")

	body, err := os.ReadFile(md)
	require.NoError(t, err)
	assert.Contains(t, string(body), "| TQQQ | 2014 | 2024 |")
}

func TestStudyCommand(t *testing.T) {
	e := newEnv(t)

	out, err := e.run(t, "study", "-n", "10", "--seed", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Study written to")

	body, err := os.ReadFile(filepath.Join(e.outDir, "study.md"))
	require.NoError(t, err)
	assert.Contains(t, string(body), "## Horizon from 2014")
	assert.Contains(t, string(body), "## High beta Monte Carlo")
	assert.FileExists(t, filepath.Join(e.outDir, "gspc_monte_carlo.png"))
	assert.FileExists(t, filepath.Join(e.outDir, "high_beta_monte_carlo.png"))
}

func TestRunsCommandWithoutDatabase(t *testing.T) {
	e := newEnv(t)

	_, err := e.run(t, "runs")
	assert.ErrorIs(t, err, application.ErrPersistenceDisabled)
}

func TestRunsShowCommand(t *testing.T) {
	e := newEnv(t)

	_, err := e.run(t, "runs", "show", "6f1c4bb8-5a7e-4d1c-9a55-0d6f2d1f4a10")
	assert.ErrorIs(t, err, application.ErrPersistenceDisabled)

	_, err = e.run(t, "runs", "show", "not-a-uuid")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid run id")
}

func TestConfigCommand(t *testing.T) {
	e := newEnv(t)

	out, err := e.run(t, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "study:")
	assert.Contains(t, out, "end_year: 2024")

	path := filepath.Join(t.TempDir(), "effective.yaml")
	out, err = e.run(t, "config", "--write", path)
	require.NoError(t, err)
	assert.Empty(t, out)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2024, cfg.Study.EndYear)
	assert.Equal(t, 12000.0, cfg.Study.YearlyInvestment)
}

func TestInvalidLogLevel(t *testing.T) {
	e := newEnv(t)

	_, err := e.run(t, "--log-level", "loud", "horizon")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestParseFrequency(t *testing.T) {
	tests := []struct {
		in          string
		allowRandom bool
		want        int
		wantErr     bool
	}{
		{"monthly", false, 12, false},
		{"Quarterly", false, 4, false},
		{"6", false, 6, false},
		{"1", false, 1, false},
		{"random", true, montecarlo.RandomFrequency, false},
		{"random", false, 0, true},
		{"-1", false, 0, true},
		{"5", false, 0, true},
		{"weekly", false, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseFrequency(tt.in, tt.allowRandom)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := parseFrequency("5", false)
	assert.ErrorIs(t, err, invest.ErrInvalidFrequency)
}

func TestFrequencyListValue(t *testing.T) {
	var freqs []int
	v := newFrequencyListValue([]int{2, 4, 12}, &freqs)
	assert.Equal(t, "[2,4,12]", v.String())

	require.NoError(t, v.Set("quarterly,6"))
	require.NoError(t, v.Set("random"))
	assert.Equal(t, []int{4, 6, montecarlo.RandomFrequency}, freqs)

	assert.Error(t, v.Set("yearly"))
	assert.Equal(t, "frequencies", v.Type())
}

func TestUnique(t *testing.T) {
	assert.Equal(t, []string{"^GSPC", "TQQQ"}, unique([]string{"^GSPC", "TQQQ", "", "^GSPC"}))
}
