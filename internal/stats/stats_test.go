package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFitTrend_ExactLine(t *testing.T) {
	xs := []float64{0, 1, 2, 3, 4}
	ys := []float64{1, 1.5, 2, 2.5, 3}

	tr, err := FitTrend(xs, ys)
	require.NoError(t, err)

	assert.InDelta(t, 0.5, tr.Slope, 1e-12)
	assert.InDelta(t, 1.0, tr.Intercept, 1e-12)
	assert.InDelta(t, 1.0, tr.R2, 1e-12)
	assert.InDelta(t, 6.0, tr.At(10), 1e-12)
}

func TestFitTrend_Degenerate(t *testing.T) {
	_, err := FitTrend([]float64{1}, []float64{1})
	assert.ErrorIs(t, err, ErrDegenerate)

	_, err = FitTrend([]float64{3, 3, 3}, []float64{1, 2, 3})
	assert.ErrorIs(t, err, ErrDegenerate)

	_, err = FitTrend([]float64{1, 2}, []float64{1})
	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	points := []Point{
		{Horizon: 0, Ratio: 1.02},
		{Horizon: 0, Ratio: 0.98},
		{Horizon: 5, Ratio: 1.10},
		{Horizon: 10, Ratio: 0.90},
	}

	s := Summarize(points)
	assert.Equal(t, 4, s.Count)
	assert.InDelta(t, 1.0, s.MeanRatio, 1e-12)
	assert.Equal(t, 0.90, s.Min)
	assert.Equal(t, 1.10, s.Max)
	assert.InDelta(t, 0.5, s.LumpSumWinShare, 1e-12)
	assert.Greater(t, s.StdDev, 0.0)

	require.Len(t, s.ByHorizon, 3)
	assert.Equal(t, HorizonBucket{Horizon: 0, Count: 2, MeanRatio: 1.0}, roundBucket(s.ByHorizon[0]))
	assert.Equal(t, 10, s.ByHorizon[2].Horizon)
}

func TestSummarize_Empty(t *testing.T) {
	assert.Equal(t, Summary{}, Summarize(nil))
}

func TestSplit(t *testing.T) {
	xs, ys := Split([]Point{{Horizon: 3, Ratio: 1.1}, {Horizon: 7, Ratio: 0.9}})
	assert.Equal(t, []float64{3, 7}, xs)
	assert.Equal(t, []float64{1.1, 0.9}, ys)
}

func roundBucket(b HorizonBucket) HorizonBucket {
	b.MeanRatio = float64(int(b.MeanRatio*1e9+0.5)) / 1e9
	return b
}
