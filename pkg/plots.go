package hitfinder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// histogramGrid exposes a 2D histogram as a plotter.GridXYZ.
type histogramGrid struct {
	h *Histogram
}

func (g histogramGrid) Dims() (int, int)       { return g.h.X.Bins, g.h.Y.Bins }
func (g histogramGrid) X(c int) float64        { return g.h.X.Center(c) }
func (g histogramGrid) Y(r int) float64        { return g.h.Y.Center(r) }
func (g histogramGrid) Z(c int, r int) float64 { return g.h.Counts[r*g.h.X.Bins+c] }

func plotHistogram(h *Histogram) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = h.Title
	p.X.Label.Text = h.X.Label

	if h.Y != nil {
		p.Y.Label.Text = h.Y.Label
		p.Add(plotter.NewHeatMap(histogramGrid{h}, palette.Heat(16, 1)))
		return p, nil
	}

	p.Y.Label.Text = "entries"
	points := make(plotter.XYs, h.X.Bins)
	for i, c := range h.Counts {
		points[i] = plotter.XY{X: h.X.Center(i), Y: c}
	}
	bars, err := plotter.NewHistogram(points, h.X.Bins)
	if err != nil {
		return nil, err
	}
	p.Add(bars)
	return p, nil
}

// SavePlots writes one PNG per non-empty histogram into dir.
func SavePlots(histos *Histograms, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &ErrOpenFile{Filename: dir, Err: err}
	}
	var errs []error
	for _, name := range histos.Names() {
		h, _ := histos.Get(name)
		if h.Entries() == 0 {
			continue
		}
		p, err := plotHistogram(h)
		if err != nil {
			errs = append(errs, fmt.Errorf("error plotting %s: %w", name, err))
			continue
		}
		file := filepath.Join(dir, name+".png")
		if err := p.Save(8*vg.Inch, 6*vg.Inch, file); err != nil {
			errs = append(errs, fmt.Errorf("error saving %s: %w", file, err))
			continue
		}
		mean, std := h.MeanStdDev()
		logger.Info(fmt.Sprintf("%s: entries %.0f, mean %.2f, std %.2f", name, h.Entries(), mean, std), "plots")
	}
	return errors.Join(errs...)
}
