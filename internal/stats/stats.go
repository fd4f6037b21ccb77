// Package stats fits trend lines and summarizes yearly/sub-annual share ratios.
package stats

import (
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrDegenerate is returned when a fit has too few points or no spread in x.
var ErrDegenerate = errors.New("degenerate input for trend fit")

// Trend is a least-squares line y = Slope*x + Intercept.
type Trend struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
	R2        float64 `json:"r2"`
}

// At evaluates the line at x.
func (t Trend) At(x float64) float64 {
	return t.Slope*x + t.Intercept
}

// FitTrend fits a first-degree polynomial to the points.
func FitTrend(xs, ys []float64) (Trend, error) {
	if len(xs) != len(ys) {
		return Trend{}, errors.New("x and y length mismatch")
	}
	if len(xs) < 2 {
		return Trend{}, ErrDegenerate
	}
	if floats.Max(xs) == floats.Min(xs) {
		return Trend{}, ErrDegenerate
	}

	intercept, slope := stat.LinearRegression(xs, ys, nil, false)
	r2 := stat.RSquared(xs, ys, nil, intercept, slope)
	if math.IsNaN(r2) {
		r2 = 0
	}
	return Trend{Slope: slope, Intercept: intercept, R2: r2}, nil
}

// Point is a horizon (years between first and last purchase) and its ratio.
type Point struct {
	Horizon int
	Ratio   float64
}

// Summary describes a set of ratios.
type Summary struct {
	Count           int             `json:"count"`
	MeanRatio       float64         `json:"mean_ratio"`
	StdDev          float64         `json:"std_dev"`
	Min             float64         `json:"min"`
	Max             float64         `json:"max"`
	Median          float64         `json:"median"`
	LumpSumWinShare float64         `json:"lump_sum_win_share"`
	ByHorizon       []HorizonBucket `json:"by_horizon,omitempty"`
}

// HorizonBucket is the mean ratio for one horizon length.
type HorizonBucket struct {
	Horizon   int     `json:"horizon"`
	Count     int     `json:"count"`
	MeanRatio float64 `json:"mean_ratio"`
}

// Summarize computes descriptive statistics over points. A ratio above one
// counts as a lump-sum win.
func Summarize(points []Point) Summary {
	if len(points) == 0 {
		return Summary{}
	}

	ratios := make([]float64, len(points))
	wins := 0
	buckets := make(map[int][]float64)
	for i, p := range points {
		ratios[i] = p.Ratio
		if p.Ratio > 1 {
			wins++
		}
		buckets[p.Horizon] = append(buckets[p.Horizon], p.Ratio)
	}

	mean, std := stat.MeanStdDev(ratios, nil)
	if len(ratios) < 2 {
		std = 0
	}

	sorted := append([]float64(nil), ratios...)
	sort.Float64s(sorted)

	s := Summary{
		Count:           len(points),
		MeanRatio:       mean,
		StdDev:          std,
		Min:             sorted[0],
		Max:             sorted[len(sorted)-1],
		Median:          stat.Quantile(0.5, stat.Empirical, sorted, nil),
		LumpSumWinShare: float64(wins) / float64(len(points)),
	}

	horizons := make([]int, 0, len(buckets))
	for h := range buckets {
		horizons = append(horizons, h)
	}
	sort.Ints(horizons)
	for _, h := range horizons {
		s.ByHorizon = append(s.ByHorizon, HorizonBucket{
			Horizon:   h,
			Count:     len(buckets[h]),
			MeanRatio: stat.Mean(buckets[h], nil),
		})
	}
	return s
}

// Split returns the x (horizon) and y (ratio) columns of points.
func Split(points []Point) (xs, ys []float64) {
	xs = make([]float64, len(points))
	ys = make([]float64, len(points))
	for i, p := range points {
		xs[i] = float64(p.Horizon)
		ys[i] = p.Ratio
	}
	return xs, ys
}
