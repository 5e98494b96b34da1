package plotting

import (
	"bytes"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/plot/plotutil"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func TestRuntimeTracksOpenFigures(t *testing.T) {
	rt := NewRuntime()
	a := rt.NewFigure()
	b := rt.NewFigure()
	assert.Equal(t, 2, rt.Open())

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
	assert.Equal(t, 1, rt.Open())
	assert.True(t, a.Closed())

	require.NoError(t, b.Close())
	assert.Equal(t, 0, rt.Open())
}

func TestRenderPNG(t *testing.T) {
	rt := NewRuntime()
	f := rt.NewFigure()
	defer f.Close()

	require.NoError(t, f.Plot([]float64{0, 1, 2}, []float64{1, 2, 3}, Style{LineStyle: "--", Marker: "o"}, "series"))
	require.NoError(t, f.Scatter([]float64{0, 1}, []float64{3, 1}, Style{}, ""))
	require.NoError(t, f.AxHLine(2.5, Style{Color: color.Black}, ""))
	require.NoError(t, f.SetTitle("Title"))
	require.NoError(t, f.SetXLabel("x"))
	require.NoError(t, f.SetYLabel("y"))
	require.NoError(t, f.SetXLim(-1, 3))
	require.NoError(t, f.ShowLegend("upper left"))
	require.NoError(t, f.SetGrid(true))

	var buf bytes.Buffer
	require.NoError(t, f.Render(&buf, "png"))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))
}

func TestRenderBarsAndHist(t *testing.T) {
	rt := NewRuntime()
	f := rt.NewFigure()
	defer f.Close()

	require.NoError(t, f.NominalBar([]string{"a", "b", "c"}, []float64{3, 1, 2}, Style{}, "first"))
	require.NoError(t, f.NominalBar([]string{"b", "d"}, []float64{2, 2}, Style{}, "second"))
	assert.Equal(t, []string{"a", "b", "c", "d"}, f.nominal)

	g := rt.NewFigure()
	defer g.Close()
	require.NoError(t, g.Hist([]float64{1, 2, 2, 3, 3, 3}, 3, Style{}, ""))
	require.NoError(t, g.Bar([]float64{1, 2}, []float64{4, 5}, Style{}, ""))

	var buf bytes.Buffer
	require.NoError(t, f.Render(&buf, ".PNG"))
	buf.Reset()
	require.NoError(t, g.Render(&buf, "svg"))
	assert.Contains(t, buf.String(), "<svg")
}

func TestRenderErrors(t *testing.T) {
	rt := NewRuntime()
	f := rt.NewFigure()

	var buf bytes.Buffer
	assert.ErrorIs(t, f.Render(&buf, "bmp"), ErrUnsupportedFormat)

	require.NoError(t, f.Plot([]float64{-1, 1}, []float64{-1, 1}, Style{}, ""))
	require.NoError(t, f.SetYScale("log"))
	assert.Error(t, f.Render(&buf, "png"), "log scale over negative data should fail")

	require.NoError(t, f.Close())
	assert.ErrorIs(t, f.Render(&buf, "png"), ErrClosed)
	assert.ErrorIs(t, f.SetTitle("x"), ErrClosed)
	assert.Equal(t, 0, rt.Open())
}

func TestCheckFormat(t *testing.T) {
	for _, f := range []string{"png", ".PNG", "svg", "pdf", "jpeg", "tiff", "eps"} {
		assert.NoError(t, CheckFormat(f), f)
	}
	for _, f := range []string{"bmp", "gif", "webp", ""} {
		assert.ErrorIs(t, CheckFormat(f), ErrUnsupportedFormat, f)
	}
}

func TestHistRejectsUnsafeInput(t *testing.T) {
	rt := NewRuntime()
	f := rt.NewFigure()
	defer f.Close()

	assert.ErrorContains(t, f.Hist([]float64{math.NaN(), 1}, 3, Style{}, ""), "finite")
	assert.ErrorContains(t, f.Hist([]float64{math.Inf(-1), 1}, 3, Style{}, ""), "finite")
	assert.ErrorContains(t, f.Hist([]float64{1, 2}, MaxBins+1, Style{}, ""), "exceeds")
	assert.NoError(t, f.Hist([]float64{1, 2, 2}, MaxBins, Style{}, ""))
}

func TestPlotValidation(t *testing.T) {
	f := NewRuntime().NewFigure()
	defer f.Close()

	err := f.Plot([]float64{1, 2, 3}, []float64{1, 2}, Style{}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "same first dimension")

	assert.Error(t, f.Hist(nil, 5, Style{}, ""))
	assert.Error(t, f.SetXLim(1, 1))
	assert.Error(t, f.SetXScale("symlog"))
	assert.Error(t, f.ShowLegend("somewhere"))
	assert.Error(t, f.SetSize(0, 3))
	require.NoError(t, f.SetSize(8, 3))
	w, h := f.Size()
	assert.Equal(t, 8.0, w)
	assert.Equal(t, 3.0, h)
}

func TestLimits(t *testing.T) {
	r, err := limits(5, 1)
	require.NoError(t, err)
	assert.Equal(t, [2]float64{1, 5}, *r)

	r, err = limits(0, math.NaN())
	require.NoError(t, err)
	assert.Equal(t, 0.0, r[0])
	assert.True(t, math.IsNaN(r[1]))

	_, err = limits(math.NaN(), math.NaN())
	assert.Error(t, err)
	_, err = limits(math.Inf(-1), 1)
	assert.Error(t, err)
}

func TestSetLegendLabels(t *testing.T) {
	f := NewRuntime().NewFigure()
	defer f.Close()
	require.NoError(t, f.Plot([]float64{1, 2}, []float64{1, 2}, Style{}, ""))
	require.NoError(t, f.Plot([]float64{1, 2}, []float64{2, 1}, Style{}, "keep"))
	require.NoError(t, f.SetLegendLabels([]string{"a"}))
	require.Len(t, f.legend, 2)
	assert.Equal(t, "a", f.legend[0].label)
	assert.Equal(t, "keep", f.legend[1].label)
	assert.True(t, f.legendOn)
}

func TestParseFormat(t *testing.T) {
	cases := []struct {
		in   string
		want Style
	}{
		{"", Style{}},
		{"r", Style{Color: letterColors['r']}},
		{"--", Style{LineStyle: "--"}},
		{"r--o", Style{Color: letterColors['r'], LineStyle: "--", Marker: "o"}},
		{"o-", Style{Marker: "o", LineStyle: "-"}},
		{"k:", Style{Color: letterColors['k'], LineStyle: ":"}},
		{"C2-.", Style{Color: plotutil.Color(2), LineStyle: "-."}},
		{"^", Style{Marker: "^"}},
	}
	for _, tc := range cases {
		got, err := ParseFormat(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}

	_, err := ParseFormat("rq")
	assert.Error(t, err)
}

func TestStyleDrawFlags(t *testing.T) {
	assert.True(t, Style{}.drawLine())
	assert.False(t, Style{}.drawMarker())
	assert.False(t, Style{Marker: "o"}.drawLine())
	assert.True(t, Style{Marker: "o", LineStyle: "-"}.drawLine())
	assert.False(t, Style{LineStyle: "none"}.drawLine())
}

func TestParseColor(t *testing.T) {
	for _, s := range []string{"r", "C0", "C11", "#f00", "#ff0000", "#ff000080", "steelblue", "tab:blue", "Red"} {
		c, err := ParseColor(s)
		require.NoError(t, err, s)
		assert.NotNil(t, c, s)
	}
	c, err := ParseColor("#ff0000")
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 0xff, A: 0xff}, c)

	for _, s := range []string{"", "#ff", "#zzzzzz", "notacolour"} {
		_, err := ParseColor(s)
		assert.Error(t, err, s)
	}
}

func TestFormatFromPath(t *testing.T) {
	assert.Equal(t, "png", FormatFromPath("out/20240101_1200_plot.PNG"))
	assert.Equal(t, "svg", FormatFromPath("a.svg"))
	assert.Equal(t, "", FormatFromPath("noext"))
}
