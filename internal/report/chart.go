// Package report renders run artifacts meant for people: the loss chart and
// mask snapshots.
package report

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/haskel/segtrain/internal/checkpoint"
)

// LossChart draws train and test loss per epoch.
type LossChart struct {
	Title  string
	Width  vg.Length
	Height vg.Length
}

func NewLossChart() *LossChart {
	return &LossChart{
		Title:  "Loss",
		Width:  8 * vg.Inch,
		Height: 5 * vg.Inch,
	}
}

// Render writes the chart to path. The image format follows the extension.
// NaN and infinite losses are left out of the curves. A history without a
// single finite loss draws nothing.
func (c *LossChart) Render(h checkpoint.History, path string) error {
	if h.Len() == 0 {
		return nil
	}

	p := plot.New()
	p.Title.Text = c.Title
	p.X.Label.Text = "epoch"
	p.Y.Label.Text = "loss"
	p.Add(plotter.NewGrid())

	series := []struct {
		name   string
		values []float64
	}{
		{"train", h.TrainLosses()},
		{"test", h.TestLosses()},
	}
	drawn := 0
	for i, s := range series {
		pts := points(s.values)
		if len(pts) == 0 {
			continue
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("build %s line: %w", s.name, err)
		}
		line.Color = plotutil.Color(i)
		line.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add(s.name, line)
		drawn++
	}
	if drawn == 0 {
		return nil
	}
	p.Legend.Top = true
	p.Y.Min = 0

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create chart directory: %w", err)
		}
	}
	if err := p.Save(c.Width, c.Height, path); err != nil {
		return fmt.Errorf("save chart: %w", err)
	}
	return nil
}

// points keeps the epoch index of every finite value.
func points(values []float64) plotter.XYs {
	pts := make(plotter.XYs, 0, len(values))
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		pts = append(pts, plotter.XY{X: float64(i), Y: v})
	}
	return pts
}
