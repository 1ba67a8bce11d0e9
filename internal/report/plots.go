// Package report renders binning results as PNG plots and as an HTML page
// of interactive charts.
package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/roll.survey/internal/analysis"
	"github.com/banshee-data/roll.survey/internal/binning"
	"github.com/banshee-data/roll.survey/internal/monitoring"
)

var logf = monitoring.Tagged("report")

// ErrGridTooSmall is returned for maps with fewer than two cells along an
// axis.
var ErrGridTooSmall = errors.New("map needs at least 2 x 2 cells")

// Set is what a report draws. Nil members are skipped.
type Set struct {
	Name       string
	Output     *binning.Output
	RMS        *analysis.RMS
	OffsetHist *analysis.Histogram
	AziHist    *analysis.AzimuthHistogram
}

// grid adapts a column/row function to plotter.GridXYZ. Columns are inline
// bin indices, rows crossline.
type grid struct {
	cols, rows int
	z          func(c, r int) float64
	x, y       func(i int) float64
}

func (g grid) Dims() (c, r int)   { return g.cols, g.rows }
func (g grid) Z(c, r int) float64 { return g.z(c, r) }
func (g grid) X(c int) float64    { return g.x(c) }
func (g grid) Y(r int) float64    { return g.y(r) }

func index(i int) float64 { return float64(i) }

func heatMap(title, xLabel, yLabel string, g grid) (*plot.Plot, error) {
	if g.cols < 2 || g.rows < 2 {
		return nil, fmt.Errorf("%s: %w", title, ErrGridTooSmall)
	}
	hm := plotter.NewHeatMap(g, palette.Heat(16, 1))
	if hm.Max <= hm.Min {
		hm.Max = hm.Min + 1
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	p.Add(hm)
	return p, nil
}

// FoldMap draws the fold of every bin.
func FoldMap(out *binning.Output) (*plot.Plot, error) {
	return heatMap(fmt.Sprintf("Fold (max %d)", out.MaxFoldSeen()), "Inline bin", "Crossline bin", grid{
		cols: out.Nx, rows: out.Ny,
		z: func(c, r int) float64 { return float64(out.FoldAt(c, r)) },
		x: index, y: index,
	})
}

// RMSMap draws the rms offset increment of every bin.
func RMSMap(rms *analysis.RMS) (*plot.Plot, error) {
	return heatMap("RMS offset increment (m)", "Inline bin", "Crossline bin", grid{
		cols: rms.Nx, rows: rms.Ny,
		z: rms.At,
		x: index, y: index,
	})
}

// AzimuthOffsetMap draws trace counts over azimuth (x) and offset (y).
func AzimuthOffsetMap(h *analysis.AzimuthHistogram) (*plot.Plot, error) {
	na, no := h.Counts.Dims()
	centre := func(edges []float64) func(int) float64 {
		return func(i int) float64 { return (edges[i] + edges[i+1]) / 2 }
	}
	return heatMap("Traces by azimuth and offset", "Azimuth (deg)", "Offset (m)", grid{
		cols: na, rows: no,
		z: h.At,
		x: centre(h.AzimuthEdges), y: centre(h.OffsetEdges),
	})
}

// OffsetBars draws the offset histogram.
func OffsetBars(h *analysis.Histogram) (*plot.Plot, error) {
	if len(h.Counts) == 0 {
		return nil, errors.New("empty offset histogram")
	}
	bars, err := plotter.NewBarChart(plotter.Values(h.Counts), vg.Points(8))
	if err != nil {
		return nil, err
	}
	bars.LineStyle.Width = vg.Length(0)

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Offsets (%.0f traces)", h.Total())
	p.X.Label.Text = "Offset bin"
	p.Y.Label.Text = "Traces"
	p.Add(bars)
	return p, nil
}

// SavePlots writes one PNG per member of set into dir and returns the file
// paths.
func SavePlots(dir string, set Set) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	type job struct {
		file string
		make func() (*plot.Plot, error)
	}
	var jobs []job
	if set.Output != nil {
		jobs = append(jobs, job{"fold.png", func() (*plot.Plot, error) { return FoldMap(set.Output) }})
	}
	if set.RMS != nil {
		jobs = append(jobs, job{"rms.png", func() (*plot.Plot, error) { return RMSMap(set.RMS) }})
	}
	if set.OffsetHist != nil {
		jobs = append(jobs, job{"offsets.png", func() (*plot.Plot, error) { return OffsetBars(set.OffsetHist) }})
	}
	if set.AziHist != nil {
		jobs = append(jobs, job{"azimuth_offset.png", func() (*plot.Plot, error) { return AzimuthOffsetMap(set.AziHist) }})
	}

	var files []string
	for _, j := range jobs {
		p, err := j.make()
		if err != nil {
			return files, err
		}
		path := filepath.Join(dir, j.file)
		if err := p.Save(8*vg.Inch, 6*vg.Inch, path); err != nil {
			return files, fmt.Errorf("save %s: %w", j.file, err)
		}
		files = append(files, path)
	}
	logf("wrote %d plots to %s", len(files), dir)
	return files, nil
}
