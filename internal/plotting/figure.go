package plotting

import (
	"fmt"
	"image/color"
	"math"
	"strings"
	"sync"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// Figure is an explicit plot handle. Drawing calls accumulate plotters which
// are laid out when the figure is rendered.
type Figure struct {
	rt *Runtime

	mu     sync.Mutex
	plot   *plot.Plot
	width  float64
	height float64

	plotters  []plot.Plotter
	bars      []*plotter.BarChart
	hlines    []float64
	legend    []legendEntry
	legendOn  bool
	legendLoc string
	grid      bool
	xlim      *[2]float64
	ylim      *[2]float64
	xscale    string
	yscale    string
	nominal   []string
	cycle     int
	closed    bool
	finalized bool
}

type legendEntry struct {
	label  string
	thumbs []plot.Thumbnailer
}

func (f *Figure) check() error {
	if f.closed {
		return ErrClosed
	}
	return nil
}

func (f *Figure) nextColor(st Style) color.Color {
	if st.Color != nil {
		return st.Color
	}
	c := plotutil.Color(f.cycle)
	f.cycle++
	return c
}

// addLegend records every series so that unlabeled ones can be named later
// by SetLegendLabels.
func (f *Figure) addLegend(label string, thumbs ...plot.Thumbnailer) {
	f.legend = append(f.legend, legendEntry{label: label, thumbs: thumbs})
}

func toXYs(xs, ys []float64) (plotter.XYs, error) {
	if len(xs) != len(ys) {
		return nil, fmt.Errorf("x and y must have same first dimension, but have shapes (%d,) and (%d,)", len(xs), len(ys))
	}
	pts := make(plotter.XYs, len(xs))
	for i := range xs {
		pts[i].X, pts[i].Y = xs[i], ys[i]
	}
	return pts, nil
}

// Plot draws ys against xs as a line, markers or both depending on st.
func (f *Figure) Plot(xs, ys []float64, st Style, label string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(); err != nil {
		return err
	}
	pts, err := toXYs(xs, ys)
	if err != nil {
		return err
	}
	c := f.nextColor(st)
	if len(pts) == 0 {
		return nil
	}
	var thumbs []plot.Thumbnailer
	if st.drawLine() {
		l, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		l.LineStyle = st.lineStyle(c)
		f.plotters = append(f.plotters, l)
		thumbs = append(thumbs, l)
	}
	if st.drawMarker() {
		s, err := plotter.NewScatter(pts)
		if err != nil {
			return err
		}
		s.GlyphStyle = st.glyphStyle(c)
		f.plotters = append(f.plotters, s)
		thumbs = append(thumbs, s)
	}
	f.addLegend(label, thumbs...)
	return nil
}

// Scatter draws unconnected markers.
func (f *Figure) Scatter(xs, ys []float64, st Style, label string) error {
	if st.Marker == "" {
		st.Marker = "o"
	}
	st.LineStyle = "none"
	return f.Plot(xs, ys, st, label)
}

// Bar draws one bar per height at numeric positions xs.
func (f *Figure) Bar(xs, heights []float64, st Style, label string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(); err != nil {
		return err
	}
	if len(xs) != len(heights) {
		return fmt.Errorf("bar positions and heights differ in length: %d and %d", len(xs), len(heights))
	}
	return f.addBars(xs, heights, st, label)
}

// NominalBar draws bars against category names. Repeated names share a
// position across calls.
func (f *Figure) NominalBar(names []string, heights []float64, st Style, label string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(); err != nil {
		return err
	}
	if len(names) != len(heights) {
		return fmt.Errorf("bar categories and heights differ in length: %d and %d", len(names), len(heights))
	}
	xs := make([]float64, len(names))
	for i, n := range names {
		pos := -1
		for j, existing := range f.nominal {
			if existing == n {
				pos = j
				break
			}
		}
		if pos < 0 {
			pos = len(f.nominal)
			f.nominal = append(f.nominal, n)
		}
		xs[i] = float64(pos)
	}
	return f.addBars(xs, heights, st, label)
}

func (f *Figure) addBars(xs, heights []float64, st Style, label string) error {
	c := f.nextColor(st)
	var first *plotter.BarChart
	for i := range xs {
		b, err := plotter.NewBarChart(plotter.Values{heights[i]}, vg.Points(20))
		if err != nil {
			return err
		}
		b.XMin = xs[i]
		b.Color = c
		b.LineStyle.Width = 0
		f.plotters = append(f.plotters, b)
		f.bars = append(f.bars, b)
		if first == nil {
			first = b
		}
	}
	if first != nil {
		f.addLegend(label, first)
	}
	return nil
}

// MaxBins bounds histogram bin counts.
const MaxBins = 10_000

// Hist draws a histogram of values with the given number of bins.
func (f *Figure) Hist(values []float64, bins int, st Style, label string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(); err != nil {
		return err
	}
	if len(values) == 0 {
		return fmt.Errorf("hist: no data")
	}
	if bins <= 0 {
		bins = 10
	}
	if bins > MaxBins {
		return fmt.Errorf("hist: %d bins exceeds the limit of %d", bins, MaxBins)
	}
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("hist: data must be finite, got %g", v)
		}
	}
	h, err := plotter.NewHist(plotter.Values(values), bins)
	if err != nil {
		return err
	}
	h.FillColor = f.nextColor(st)
	h.LineStyle.Width = vg.Points(0.5)
	h.LineStyle.Color = color.Black
	f.plotters = append(f.plotters, h)
	f.addLegend(label, h)
	return nil
}

// AxHLine draws a horizontal line across the whole x range.
func (f *Figure) AxHLine(y float64, st Style, label string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(); err != nil {
		return err
	}
	if math.IsNaN(y) || math.IsInf(y, 0) {
		return fmt.Errorf("axhline: invalid y %v", y)
	}
	fn := plotter.NewFunction(func(float64) float64 { return y })
	fn.LineStyle = st.lineStyle(f.nextColor(st))
	f.plotters = append(f.plotters, fn)
	f.hlines = append(f.hlines, y)
	f.addLegend(label, fn)
	return nil
}

// SetTitle sets the figure title.
func (f *Figure) SetTitle(s string) error {
	return f.with(func() { f.plot.Title.Text = s })
}

// SetXLabel sets the x axis label.
func (f *Figure) SetXLabel(s string) error {
	return f.with(func() { f.plot.X.Label.Text = s })
}

// SetYLabel sets the y axis label.
func (f *Figure) SetYLabel(s string) error {
	return f.with(func() { f.plot.Y.Label.Text = s })
}

// SetXLim fixes the x axis range.
func (f *Figure) SetXLim(lo, hi float64) error {
	r, err := limits(lo, hi)
	if err != nil {
		return err
	}
	return f.with(func() { f.xlim = r })
}

// SetYLim fixes the y axis range.
func (f *Figure) SetYLim(lo, hi float64) error {
	r, err := limits(lo, hi)
	if err != nil {
		return err
	}
	return f.with(func() { f.ylim = r })
}

// limits validates an axis range. A NaN bound leaves that side automatic.
func limits(lo, hi float64) (*[2]float64, error) {
	if math.IsInf(lo, 0) || math.IsInf(hi, 0) {
		return nil, fmt.Errorf("axis limits must be finite, got (%v, %v)", lo, hi)
	}
	if math.IsNaN(lo) && math.IsNaN(hi) {
		return nil, fmt.Errorf("axis limits need at least one bound")
	}
	if lo == hi {
		return nil, fmt.Errorf("axis limits must differ, got (%v, %v)", lo, hi)
	}
	if lo > hi {
		lo, hi = hi, lo
	}
	return &[2]float64{lo, hi}, nil
}

// SetXScale selects "linear" or "log" scaling for the x axis.
func (f *Figure) SetXScale(s string) error {
	if err := validScale(s); err != nil {
		return err
	}
	return f.with(func() { f.xscale = s })
}

// SetYScale selects "linear" or "log" scaling for the y axis.
func (f *Figure) SetYScale(s string) error {
	if err := validScale(s); err != nil {
		return err
	}
	return f.with(func() { f.yscale = s })
}

func validScale(s string) error {
	switch s {
	case "linear", "log":
		return nil
	}
	return fmt.Errorf("unsupported axis scale %q", s)
}

// ShowLegend enables the legend at a matplotlib location name.
func (f *Figure) ShowLegend(loc string) error {
	switch loc {
	case "", "best", "upper right", "upper left", "lower left", "lower right",
		"right", "center left", "center right", "lower center", "upper center", "center":
	default:
		return fmt.Errorf("unrecognized legend location %q", loc)
	}
	return f.with(func() {
		f.legendOn = true
		f.legendLoc = loc
	})
}

// SetLegendLabels names series in drawing order, as plt.legend(["a", "b"]) does.
func (f *Figure) SetLegendLabels(labels []string) error {
	return f.with(func() {
		for i := range f.legend {
			if i >= len(labels) {
				break
			}
			f.legend[i].label = labels[i]
		}
		f.legendOn = true
	})
}

// SetGrid toggles grid lines.
func (f *Figure) SetGrid(on bool) error {
	return f.with(func() { f.grid = on })
}

func (f *Figure) with(fn func()) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(); err != nil {
		return err
	}
	fn()
	return nil
}

// finalize lays the accumulated plotters onto the plot. It runs once.
func (f *Figure) finalize() error {
	if f.finalized {
		return nil
	}
	f.finalized = true
	p := f.plot

	if f.grid {
		p.Add(plotter.NewGrid())
	}
	p.Add(f.plotters...)

	if n := len(f.bars); n > 0 {
		w := vg.Length(f.width) * vg.Inch * 0.6 / vg.Length(n)
		w = vg.Length(math.Max(2, math.Min(float64(w), 40)))
		for _, b := range f.bars {
			b.Width = w
		}
	}
	for _, y := range f.hlines {
		p.Y.Min = math.Min(p.Y.Min, y)
		p.Y.Max = math.Max(p.Y.Max, y)
	}
	if len(f.nominal) > 0 {
		p.NominalX(f.nominal...)
	}

	if f.xscale == "log" {
		p.X.Scale = plot.LogScale{}
		p.X.Tick.Marker = plot.LogTicks{Prec: -1}
	}
	if f.yscale == "log" {
		p.Y.Scale = plot.LogScale{}
		p.Y.Tick.Marker = plot.LogTicks{Prec: -1}
	}
	applyLimits(&p.X, f.xlim)
	applyLimits(&p.Y, f.ylim)

	if f.legendOn {
		loc := f.legendLoc
		p.Legend.Top = !strings.Contains(loc, "lower")
		p.Legend.Left = strings.Contains(loc, "left")
		for _, e := range f.legend {
			if e.label == "" || strings.HasPrefix(e.label, "_") {
				continue
			}
			p.Legend.Add(e.label, e.thumbs...)
		}
	}
	return nil
}

func applyLimits(ax *plot.Axis, lim *[2]float64) {
	if lim == nil {
		return
	}
	if !math.IsNaN(lim[0]) {
		ax.Min = lim[0]
	}
	if !math.IsNaN(lim[1]) {
		ax.Max = lim[1]
	}
}
