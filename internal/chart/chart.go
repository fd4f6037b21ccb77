// Package chart renders Monte Carlo scatter plots and portfolio value lines.
package chart

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/sawpanic/investrun/internal/invest"
	"github.com/sawpanic/investrun/internal/stats"
)

// ErrNoSeries is returned when a chart has nothing to draw.
var ErrNoSeries = errors.New("chart has no series")

const (
	width  = 10 * vg.Inch
	height = 6 * vg.Inch
)

// RatioSeries is one Monte Carlo sample cloud: horizon in years against
// yearly/sub-annual share ratio.
type RatioSeries struct {
	Label  string
	Points []stats.Point
	Trend  *stats.Trend
}

// ValueLine is a portfolio value history.
type ValueLine struct {
	Label  string
	Values []invest.ValuePoint
}

// MonteCarlo builds a scatter of every series with its dashed trend line.
func MonteCarlo(title string, series []RatioSeries) (*plot.Plot, error) {
	if len(series) == 0 {
		return nil, ErrNoSeries
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Investment horizon (years)"
	p.Y.Label.Text = "Total shares ratio (yearly / sub-annual)"
	p.Add(plotter.NewGrid())
	p.Legend.Top = false
	p.Legend.Left = false

	for i, s := range series {
		xys := make(plotter.XYs, len(s.Points))
		for j, pt := range s.Points {
			xys[j].X = float64(pt.Horizon)
			xys[j].Y = pt.Ratio
		}

		scatter, err := plotter.NewScatter(xys)
		if err != nil {
			return nil, fmt.Errorf("series %q: %w", s.Label, err)
		}
		scatter.GlyphStyle.Color = plotutil.Color(i)
		scatter.GlyphStyle.Radius = vg.Points(2)
		p.Add(scatter)
		p.Legend.Add(s.Label, scatter)

		if s.Trend == nil || len(xys) == 0 {
			continue
		}
		lo, hi, _, _ := plotter.XYRange(xys)
		line, err := plotter.NewLine(plotter.XYs{
			{X: lo, Y: s.Trend.At(lo)},
			{X: hi, Y: s.Trend.At(hi)},
		})
		if err != nil {
			return nil, fmt.Errorf("trend %q: %w", s.Label, err)
		}
		line.LineStyle.Color = plotutil.Color(i)
		line.LineStyle.Width = vg.Points(1.5)
		line.LineStyle.Dashes = []vg.Length{vg.Points(6), vg.Points(4)}
		p.Add(line)
		p.Legend.Add(s.Label+" trend", line)
	}

	return p, nil
}

// Portfolio builds a value-over-time line per investor.
func Portfolio(title string, lines []ValueLine) (*plot.Plot, error) {
	if len(lines) == 0 {
		return nil, ErrNoSeries
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Date"
	p.Y.Label.Text = "Portfolio value"
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006"}
	p.Add(plotter.NewGrid())
	p.Legend.Top = true
	p.Legend.Left = true

	for i, l := range lines {
		if len(l.Values) == 0 {
			continue
		}
		xys := make(plotter.XYs, len(l.Values))
		for j, v := range l.Values {
			xys[j].X = float64(v.Date.Time().Unix())
			xys[j].Y = v.Value
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return nil, fmt.Errorf("line %q: %w", l.Label, err)
		}
		line.LineStyle.Color = plotutil.Color(i)
		line.LineStyle.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add(l.Label, line)
	}

	return p, nil
}

// Save writes p to path; the extension selects the format (png, svg, pdf).
func Save(p *plot.Plot, path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create chart dir: %w", err)
		}
	}
	if err := p.Save(width, height, path); err != nil {
		return fmt.Errorf("save chart %s: %w", path, err)
	}
	return nil
}

// WritePNG renders p as PNG to w.
func WritePNG(p *plot.Plot, w io.Writer) error {
	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}

// FileName turns a chart title into a file-system friendly name.
func FileName(title, ext string) string {
	r := strings.NewReplacer("^", "", "/", "-", " ", "_", ":", "", "(", "", ")", "")
	return strings.ToLower(r.Replace(title)) + "." + ext
}
