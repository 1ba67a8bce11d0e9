package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

var viridis = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

func labels(n int, f func(i int) string) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = f(i)
	}
	return out
}

func binHeatMap(title, series string, nx, ny int, z func(ix, iy int) float64) *charts.HeatMap {
	data := make([]opts.HeatMapData, 0, nx*ny)
	hi := 0.0
	for ix := 0; ix < nx; ix++ {
		for iy := 0; iy < ny; iy++ {
			v := z(ix, iy)
			hi = max(hi, v)
			data = append(data, opts.HeatMapData{Value: [3]interface{}{ix, iy, v}})
		}
	}

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "700px"}),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Name: "Inline bin", Data: labels(nx, func(i int) string { return fmt.Sprint(i) })}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Name: "Crossline bin", Data: labels(ny, func(i int) string { return fmt.Sprint(i) })}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(hi),
			InRange:    &opts.VisualMapInRange{Color: viridis},
		}),
	)
	hm.AddSeries(series, data)
	return hm
}

func offsetBar(set Set) *charts.Bar {
	h := set.OffsetHist
	x := labels(len(h.Counts), func(i int) string { return fmt.Sprintf("%.0f", h.Edges[i]) })
	y := make([]opts.BarData, len(h.Counts))
	for i, c := range h.Counts {
		y[i] = opts.BarData{Value: c}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{Title: "Offsets", Subtitle: fmt.Sprintf("%.0f traces", h.Total())}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Offset (m)"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Traces"}),
	)
	bar.SetXAxis(x).AddSeries("traces", y)
	return bar
}

// WriteHTML renders the members of set as one page of charts.
func WriteHTML(w io.Writer, set Set) error {
	page := components.NewPage()
	page.PageTitle = "Survey " + set.Name

	n := 0
	if out := set.Output; out != nil {
		page.AddCharts(binHeatMap(fmt.Sprintf("Fold %s", set.Name), "fold", out.Nx, out.Ny,
			func(ix, iy int) float64 { return float64(out.FoldAt(ix, iy)) }))
		n++
	}
	if set.RMS != nil {
		page.AddCharts(binHeatMap("RMS offset increment (m)", "rms", set.RMS.Nx, set.RMS.Ny, set.RMS.At))
		n++
	}
	if set.OffsetHist != nil && len(set.OffsetHist.Counts) > 0 {
		page.AddCharts(offsetBar(set))
		n++
	}
	if n == 0 {
		return fmt.Errorf("nothing to render for %q", set.Name)
	}
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render error: %w", err)
	}
	return nil
}
