package sandbox

import (
	"fmt"
	"math"
	"sort"

	"go.starlark.net/starlark"

	"github.com/petasbytes/fig2code/internal/plotting"
)

// method implements one plotting call against an explicit figure.
type method func(s *session, args starlark.Tuple, k kwargs) (starlark.Value, error)

// session binds the plt handle, the figure and its axes for one execution.
type session struct {
	fig  *plotting.Figure
	figV *handle
	axV  *handle
}

const maxSequence = 1_000_000

// drawing calls shared by plt.* and Axes methods.
var drawing = map[string]method{
	"plot":    plotFn,
	"scatter": scatterFn,
	"bar":     barFn,
	"hist":    histFn,
	"axhline": axhlineFn,
	"legend":  legendFn,
	"grid":    gridFn,
}

// pyplot-only names, alongside drawing.
var pyplotOnly = map[string]method{
	"title":    textFn((*plotting.Figure).SetTitle),
	"suptitle": textFn((*plotting.Figure).SetTitle),
	"xlabel":   textFn((*plotting.Figure).SetXLabel),
	"ylabel":   textFn((*plotting.Figure).SetYLabel),
	"xlim":     limFn((*plotting.Figure).SetXLim, "left", "right"),
	"ylim":     limFn((*plotting.Figure).SetYLim, "bottom", "top"),
	"xscale":   scaleFn((*plotting.Figure).SetXScale),
	"yscale":   scaleFn((*plotting.Figure).SetYScale),
	"figure":   figureFn,
	"subplots": subplotsFn,
	"gcf":      func(s *session, _ starlark.Tuple, _ kwargs) (starlark.Value, error) { return s.figV, nil },
	"gca":      func(s *session, _ starlark.Tuple, _ kwargs) (starlark.Value, error) { return s.axV, nil },
	"linspace": linspaceFn,
	"arange":   arangeFn,
}

var axesOnly = map[string]method{
	"set_title":  textFn((*plotting.Figure).SetTitle),
	"set_xlabel": textFn((*plotting.Figure).SetXLabel),
	"set_ylabel": textFn((*plotting.Figure).SetYLabel),
	"set_xlim":   limFn((*plotting.Figure).SetXLim, "left", "right"),
	"set_ylim":   limFn((*plotting.Figure).SetYLim, "bottom", "top"),
	"set_xscale": scaleFn((*plotting.Figure).SetXScale),
	"set_yscale": scaleFn((*plotting.Figure).SetYScale),
}

var figureMethods = map[string]method{
	"suptitle":        textFn((*plotting.Figure).SetTitle),
	"set_size_inches": sizeFn,
	"add_subplot":     func(s *session, _ starlark.Tuple, _ kwargs) (starlark.Value, error) { return s.axV, nil },
	"gca":             func(s *session, _ starlark.Tuple, _ kwargs) (starlark.Value, error) { return s.axV, nil },
}

// Accepted for compatibility; they have no effect on the rendered artifact.
var noops = []string{
	"show", "savefig", "tight_layout", "close", "clf", "cla", "draw",
	"xticks", "yticks", "subplots_adjust", "text", "annotate", "tick_params",
	"set_xticks", "set_yticks", "set_xticklabels", "set_yticklabels",
	"axis", "margins", "set_aspect",
}

func noop(*session, starlark.Tuple, kwargs) (starlark.Value, error) { return starlark.None, nil }

func merged(tables ...map[string]method) map[string]method {
	out := map[string]method{}
	for _, n := range noops {
		out[n] = noop
	}
	for _, t := range tables {
		for k, v := range t {
			out[k] = v
		}
	}
	return out
}

var (
	pyplotTable = merged(drawing, pyplotOnly)
	axesTable   = merged(drawing, axesOnly)
	figureTable = merged(figureMethods)
)

func sortedNames(t map[string]method) []string {
	names := make([]string, 0, len(t))
	for n := range t {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

type group struct {
	x, y []float64
	fmt  string
}

// plotGroups splits plot(*args) into [x], y, [fmt] groups.
func plotGroups(args starlark.Tuple) ([]group, error) {
	var out []group
	for i := 0; i < len(args); {
		if isString(args[i]) {
			return nil, fmt.Errorf("plot: unexpected format string %s", args[i])
		}
		first, err := toFloats(args[i])
		if err != nil {
			return nil, fmt.Errorf("plot: %w", err)
		}
		i++
		var g group
		if i < len(args) && !isString(args[i]) {
			ys, err := toFloats(args[i])
			if err != nil {
				return nil, fmt.Errorf("plot: %w", err)
			}
			g.x, g.y = first, ys
			i++
		} else {
			g.y = first
			g.x = make([]float64, len(first))
			for j := range g.x {
				g.x[j] = float64(j)
			}
		}
		if i < len(args) && isString(args[i]) {
			g.fmt, _ = starlark.AsString(args[i])
			i++
		}
		out = append(out, g)
	}
	return out, nil
}

func label(k kwargs) string {
	s, _ := k.str("label")
	return s
}

func plotFn(s *session, args starlark.Tuple, k kwargs) (starlark.Value, error) {
	groups, err := plotGroups(args)
	if err != nil {
		return nil, err
	}
	for _, g := range groups {
		base, err := plotting.ParseFormat(g.fmt)
		if err != nil {
			return nil, fmt.Errorf("plot: %w", err)
		}
		st, err := styleFromKwargs(base, k)
		if err != nil {
			return nil, fmt.Errorf("plot: %w", err)
		}
		if err := s.fig.Plot(g.x, g.y, st, label(k)); err != nil {
			return nil, fmt.Errorf("plot: %w", err)
		}
	}
	return starlark.None, nil
}

func scatterFn(s *session, args starlark.Tuple, k kwargs) (starlark.Value, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("scatter: expected x and y")
	}
	xs, err := toFloats(args[0])
	if err != nil {
		return nil, fmt.Errorf("scatter: %w", err)
	}
	ys, err := toFloats(args[1])
	if err != nil {
		return nil, fmt.Errorf("scatter: %w", err)
	}
	st, err := styleFromKwargs(plotting.Style{Marker: "o"}, k)
	if err != nil {
		return nil, fmt.Errorf("scatter: %w", err)
	}
	// s is the marker area in points squared.
	area, ok, err := k.float("s")
	if err != nil {
		return nil, fmt.Errorf("scatter: %w", err)
	}
	if !ok && len(args) > 2 {
		if f, ferr := toFloat(args[2]); ferr == nil {
			area, ok = f, true
		}
	}
	if ok && area > 0 {
		st.MarkerSize = math.Sqrt(area) / 2
	}
	if err := s.fig.Scatter(xs, ys, st, label(k)); err != nil {
		return nil, fmt.Errorf("scatter: %w", err)
	}
	return starlark.None, nil
}

func barFn(s *session, args starlark.Tuple, k kwargs) (starlark.Value, error) {
	if len(args) < 2 {
		hv, ok := k.get("height")
		if len(args) != 1 || !ok {
			return nil, fmt.Errorf("bar: expected x and height")
		}
		args = starlark.Tuple{args[0], hv}
	}
	heights, err := toFloats(args[1])
	if err != nil {
		return nil, fmt.Errorf("bar: %w", err)
	}
	st, err := styleFromKwargs(plotting.Style{}, k)
	if err != nil {
		return nil, fmt.Errorf("bar: %w", err)
	}
	if names, ok := toStrings(args[0]); ok {
		err = s.fig.NominalBar(names, heights, st, label(k))
	} else {
		var xs []float64
		if xs, err = toFloats(args[0]); err == nil {
			err = s.fig.Bar(xs, heights, st, label(k))
		}
	}
	if err != nil {
		return nil, fmt.Errorf("bar: %w", err)
	}
	return starlark.None, nil
}

func histFn(s *session, args starlark.Tuple, k kwargs) (starlark.Value, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("hist: expected data")
	}
	vals, err := toFloats(args[0])
	if err != nil {
		return nil, fmt.Errorf("hist: %w", err)
	}
	bins := 10
	bv, ok := k.get("bins")
	if !ok && len(args) > 1 {
		bv, ok = args[1], true
	}
	if ok {
		n, err := starlark.AsInt32(bv)
		if err != nil {
			return nil, fmt.Errorf("hist: bins must be an int: %w", err)
		}
		if n > plotting.MaxBins {
			return nil, fmt.Errorf("hist: too many bins: %d (limit %d)", n, plotting.MaxBins)
		}
		bins = n
	}
	st, err := styleFromKwargs(plotting.Style{}, k)
	if err != nil {
		return nil, fmt.Errorf("hist: %w", err)
	}
	if err := s.fig.Hist(vals, bins, st, label(k)); err != nil {
		return nil, fmt.Errorf("hist: %w", err)
	}
	return starlark.None, nil
}

func axhlineFn(s *session, args starlark.Tuple, k kwargs) (starlark.Value, error) {
	y := 0.0
	if len(args) > 0 {
		f, err := toFloat(args[0])
		if err != nil {
			return nil, fmt.Errorf("axhline: %w", err)
		}
		y = f
	} else if f, ok, err := k.float("y"); err != nil {
		return nil, fmt.Errorf("axhline: %w", err)
	} else if ok {
		y = f
	}
	st, err := styleFromKwargs(plotting.Style{}, k)
	if err != nil {
		return nil, fmt.Errorf("axhline: %w", err)
	}
	if err := s.fig.AxHLine(y, st, label(k)); err != nil {
		return nil, err
	}
	return starlark.None, nil
}

func legendFn(s *session, args starlark.Tuple, k kwargs) (starlark.Value, error) {
	if len(args) > 0 {
		if names, ok := toStrings(args[0]); ok {
			if err := s.fig.SetLegendLabels(names); err != nil {
				return nil, err
			}
		}
	}
	loc, _ := k.str("loc")
	if err := s.fig.ShowLegend(loc); err != nil {
		return nil, fmt.Errorf("legend: %w", err)
	}
	return starlark.None, nil
}

func gridFn(s *session, args starlark.Tuple, k kwargs) (starlark.Value, error) {
	on := true
	if len(args) > 0 && args[0] != starlark.None {
		on = bool(args[0].Truth())
	}
	on = k.truth(on, "visible", "b")
	return starlark.None, s.fig.SetGrid(on)
}

func textFn(set func(*plotting.Figure, string) error) method {
	return func(s *session, args starlark.Tuple, k kwargs) (starlark.Value, error) {
		var text string
		if len(args) > 0 {
			if str, ok := starlark.AsString(args[0]); ok {
				text = str
			} else {
				text = args[0].String()
			}
		} else if str, ok := k.str("label", "t", "s"); ok {
			text = str
		}
		return starlark.None, set(s.fig, text)
	}
}

func limFn(set func(*plotting.Figure, float64, float64) error, loName, hiName string) method {
	return func(s *session, args starlark.Tuple, k kwargs) (starlark.Value, error) {
		if len(args) == 0 && len(k) == 0 {
			return starlark.None, nil
		}
		lo, hi, err := bounds(args, k, loName, hiName)
		if err != nil {
			return nil, err
		}
		return starlark.None, set(s.fig, lo, hi)
	}
}

func scaleFn(set func(*plotting.Figure, string) error) method {
	return func(s *session, args starlark.Tuple, k kwargs) (starlark.Value, error) {
		if len(args) < 1 {
			return nil, fmt.Errorf("expected a scale name")
		}
		name, ok := starlark.AsString(args[0])
		if !ok {
			return nil, fmt.Errorf("scale must be a string, got %s", args[0].Type())
		}
		return starlark.None, set(s.fig, name)
	}
}

func applyFigsize(s *session, k kwargs) error {
	v, ok := k.get("figsize")
	if !ok {
		return nil
	}
	fs, err := toFloats(v)
	if err != nil || len(fs) != 2 {
		return fmt.Errorf("figsize must be a (width, height) pair")
	}
	return s.fig.SetSize(fs[0], fs[1])
}

func figureFn(s *session, _ starlark.Tuple, k kwargs) (starlark.Value, error) {
	if err := applyFigsize(s, k); err != nil {
		return nil, err
	}
	return s.figV, nil
}

func subplotsFn(s *session, args starlark.Tuple, k kwargs) (starlark.Value, error) {
	rows, cols := 1, 1
	if len(args) > 0 {
		n, err := starlark.AsInt32(args[0])
		if err != nil {
			return nil, fmt.Errorf("subplots: nrows: %w", err)
		}
		rows = n
	}
	if len(args) > 1 {
		n, err := starlark.AsInt32(args[1])
		if err != nil {
			return nil, fmt.Errorf("subplots: ncols: %w", err)
		}
		cols = n
	}
	if v, ok := k.get("nrows"); ok {
		if n, err := starlark.AsInt32(v); err == nil {
			rows = n
		}
	}
	if v, ok := k.get("ncols"); ok {
		if n, err := starlark.AsInt32(v); err == nil {
			cols = n
		}
	}
	if rows != 1 || cols != 1 {
		return nil, fmt.Errorf("subplots: only a single axes is supported, got %dx%d", rows, cols)
	}
	if err := applyFigsize(s, k); err != nil {
		return nil, err
	}
	return starlark.Tuple{s.figV, s.axV}, nil
}

func sizeFn(s *session, args starlark.Tuple, k kwargs) (starlark.Value, error) {
	var fs []float64
	for _, a := range args {
		more, err := toFloats(a)
		if err != nil {
			return nil, err
		}
		fs = append(fs, more...)
	}
	if len(fs) != 2 {
		return nil, fmt.Errorf("set_size_inches: expected width and height")
	}
	return starlark.None, s.fig.SetSize(fs[0], fs[1])
}

func floatList(fs []float64) *starlark.List {
	elems := make([]starlark.Value, len(fs))
	for i, f := range fs {
		elems[i] = starlark.Float(f)
	}
	return starlark.NewList(elems)
}

func linspaceFn(_ *session, args starlark.Tuple, k kwargs) (starlark.Value, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("linspace: expected start and stop")
	}
	start, err := toFloat(args[0])
	if err != nil {
		return nil, fmt.Errorf("linspace: %w", err)
	}
	stop, err := toFloat(args[1])
	if err != nil {
		return nil, fmt.Errorf("linspace: %w", err)
	}
	num := 50
	nv, ok := k.get("num")
	if !ok && len(args) > 2 {
		nv, ok = args[2], true
	}
	if ok {
		if num, err = starlark.AsInt32(nv); err != nil {
			return nil, fmt.Errorf("linspace: num: %w", err)
		}
	}
	if num < 0 || num > maxSequence {
		return nil, fmt.Errorf("linspace: num out of range: %d", num)
	}
	endpoint := k.truth(true, "endpoint")
	out := make([]float64, num)
	div := float64(num)
	if endpoint {
		div = float64(num - 1)
	}
	for i := range out {
		if div == 0 {
			out[i] = start
			continue
		}
		out[i] = start + (stop-start)*float64(i)/div
	}
	return floatList(out), nil
}

func arangeFn(_ *session, args starlark.Tuple, k kwargs) (starlark.Value, error) {
	var nums []float64
	for _, a := range args {
		f, err := toFloat(a)
		if err != nil {
			return nil, fmt.Errorf("arange: %w", err)
		}
		nums = append(nums, f)
	}
	start, stop, step := 0.0, 0.0, 1.0
	switch len(nums) {
	case 1:
		stop = nums[0]
	case 2:
		start, stop = nums[0], nums[1]
	case 3:
		start, stop, step = nums[0], nums[1], nums[2]
	default:
		return nil, fmt.Errorf("arange: expected 1 to 3 arguments, got %d", len(nums))
	}
	if f, ok, err := k.float("step"); err != nil {
		return nil, fmt.Errorf("arange: %w", err)
	} else if ok {
		step = f
	}
	if step == 0 || math.IsNaN(step) {
		return nil, fmt.Errorf("arange: step must be non-zero")
	}
	n := math.Ceil((stop - start) / step)
	if n < 0 {
		n = 0
	}
	if math.IsNaN(n) || math.IsInf(n, 0) || n > maxSequence {
		return nil, fmt.Errorf("arange: cannot produce %g elements from start=%g stop=%g step=%g", n, start, stop, step)
	}
	out := make([]float64, int(n))
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return floatList(out), nil
}
