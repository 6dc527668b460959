package telemetry

import (
	"errors"
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// PlotFitness draws best, mean and worst score per epoch and saves it to
// path. The format follows the file extension.
func PlotFitness(history []EpochStats, title, path string) error {
	if len(history) == 0 {
		return errors.New("no epochs to plot")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Epoch"
	p.Y.Label.Text = "Score"

	best := make(plotter.XYs, len(history))
	mean := make(plotter.XYs, len(history))
	worst := make(plotter.XYs, len(history))
	for i, s := range history {
		x := float64(s.Epoch)
		best[i] = plotter.XY{X: x, Y: s.Best}
		mean[i] = plotter.XY{X: x, Y: s.Mean}
		worst[i] = plotter.XY{X: x, Y: s.Worst}
	}

	bestLine, err := plotter.NewLine(best)
	if err != nil {
		return err
	}
	meanLine, err := plotter.NewLine(mean)
	if err != nil {
		return err
	}
	meanLine.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	worstLine, err := plotter.NewLine(worst)
	if err != nil {
		return err
	}
	worstLine.LineStyle.Dashes = []vg.Length{vg.Points(1), vg.Points(2)}

	p.Add(bestLine, meanLine, worstLine)
	p.Legend.Add("best", bestLine)
	p.Legend.Add("mean", meanLine)
	p.Legend.Add("worst", worstLine)
	p.Legend.Top = true
	p.Legend.Left = true

	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("saving fitness plot: %w", err)
	}
	return nil
}
