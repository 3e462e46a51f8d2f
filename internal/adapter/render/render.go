// Package render draws PNG charts of weather series, damage samples and
// region shares with gonum/plot.
package render

import (
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/couchcryptid/ecorisk-service/internal/domain"
)

// Default canvas size.
const (
	Width  = 8 * vg.Inch
	Height = 4 * vg.Inch
)

var (
	lineColor = color.RGBA{R: 0, G: 100, B: 0, A: 255}
	barColor  = color.RGBA{R: 70, G: 130, B: 180, A: 255}
)

// LineChart draws a temperature series over time.
func LineChart(w io.Writer, series []domain.SeriesPoint, title string) error {
	if len(series) == 0 {
		return fmt.Errorf("%w: no readings to plot", domain.ErrInvalidParameter)
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Date"
	p.Y.Label.Text = "Temperature (°C)"
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01-02"}

	points := make(plotter.XYs, len(series))
	for i, pt := range series {
		points[i].X = float64(pt.Date.Unix())
		points[i].Y = pt.Temperature
	}

	line, err := plotter.NewLine(points)
	if err != nil {
		return fmt.Errorf("line chart: %w", err)
	}
	line.Color = lineColor
	line.Width = vg.Points(1)

	p.Add(plotter.NewGrid(), line)
	return write(w, p)
}

// Histogram draws the distribution of a damage sample. A non-positive bin
// count lets gonum pick one from the sample size.
func Histogram(w io.Writer, sample domain.DamageSample, bins int, unit string) error {
	if len(sample) == 0 {
		return fmt.Errorf("%w: empty sample", domain.ErrInvalidParameter)
	}

	p := plot.New()
	p.Title.Text = "Projected damage distribution"
	p.X.Label.Text = "Damage (" + unit + ")"
	p.Y.Label.Text = "Frequency"

	h, err := plotter.NewHist(plotter.Values(sample), max(bins, 0))
	if err != nil {
		return fmt.Errorf("histogram: %w", err)
	}
	h.FillColor = barColor

	p.Add(h)
	return write(w, p)
}

// ShareChart draws each ranked region's share of the ranking total as a
// percentage bar.
func ShareChart(w io.Writer, ranking domain.RegionRanking) error {
	if len(ranking) == 0 {
		return fmt.Errorf("%w: empty ranking", domain.ErrInvalidParameter)
	}

	shares := ranking.Shares()
	values := make(plotter.Values, len(shares))
	labels := make([]string, len(shares))
	for i, s := range shares {
		values[i] = s.Share * 100
		labels[i] = s.Region
	}

	p := plot.New()
	p.Title.Text = "Share of total damage, top regions"
	p.Y.Label.Text = "Share (%)"
	p.Y.Min = 0

	bars, err := plotter.NewBarChart(values, vg.Points(30))
	if err != nil {
		return fmt.Errorf("share chart: %w", err)
	}
	bars.Color = barColor
	bars.LineStyle.Width = vg.Length(0)

	p.Add(bars)
	p.NominalX(labels...)

	labelPoints := make(plotter.XYs, len(values))
	texts := make([]string, len(values))
	for i, v := range values {
		labelPoints[i] = plotter.XY{X: float64(i), Y: v}
		texts[i] = fmt.Sprintf("%.1f%%", v)
	}
	valueLabels, err := plotter.NewLabels(plotter.XYLabels{XYs: labelPoints, Labels: texts})
	if err != nil {
		return fmt.Errorf("share chart labels: %w", err)
	}
	p.Add(valueLabels)

	return write(w, p)
}

func write(w io.Writer, p *plot.Plot) error {
	wt, err := p.WriterTo(Width, Height, "png")
	if err != nil {
		return fmt.Errorf("render png: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	return nil
}
