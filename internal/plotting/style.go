package plotting

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"golang.org/x/image/colornames"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// Style describes how a series is drawn. Zero fields take defaults.
type Style struct {
	Color      color.Color
	LineStyle  string // "-", "--", ":", "-.", "none"
	LineWidth  float64
	Marker     string
	MarkerSize float64
}

const (
	defaultLineWidth  = 1.5
	defaultMarkerSize = 3
)

var letterColors = map[byte]color.Color{
	'b': color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff},
	'g': color.RGBA{G: 0x80, A: 0xff},
	'r': color.RGBA{R: 0xff, A: 0xff},
	'c': color.RGBA{G: 0xbf, B: 0xbf, A: 0xff},
	'm': color.RGBA{R: 0xbf, B: 0xbf, A: 0xff},
	'y': color.RGBA{R: 0xbf, G: 0xbf, A: 0xff},
	'k': color.Black,
	'w': color.White,
}

var markerGlyphs = map[string]draw.GlyphDrawer{
	"o": draw.CircleGlyph{},
	".": draw.CircleGlyph{},
	"s": draw.BoxGlyph{},
	"D": draw.BoxGlyph{},
	"^": draw.PyramidGlyph{},
	"v": draw.PyramidGlyph{},
	"x": draw.CrossGlyph{},
	"+": draw.PlusGlyph{},
	"*": draw.RingGlyph{},
}

var lineDashes = map[string][]vg.Length{
	"-":  nil,
	"--": {vg.Points(6), vg.Points(3)},
	":":  {vg.Points(1), vg.Points(3)},
	"-.": {vg.Points(6), vg.Points(3), vg.Points(1), vg.Points(3)},
}

// ParseColor accepts single-letter codes, cycle references (C0..C9), hex
// strings (#rgb, #rrggbb, #rrggbbaa) and CSS colour names.
func ParseColor(s string) (color.Color, error) {
	s = strings.TrimSpace(s)
	if len(s) == 1 {
		if c, ok := letterColors[s[0]]; ok {
			return c, nil
		}
	}
	if len(s) >= 2 && s[0] == 'C' {
		if n, err := strconv.Atoi(s[1:]); err == nil && n >= 0 {
			return plotutil.Color(n), nil
		}
	}
	if strings.HasPrefix(s, "#") {
		return parseHex(s[1:])
	}
	name := strings.ToLower(strings.ReplaceAll(s, "tab:", ""))
	if c, ok := colornames.Map[name]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("invalid color %q", s)
}

func parseHex(h string) (color.Color, error) {
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) == 6 {
		h += "ff"
	}
	if len(h) != 8 {
		return nil, fmt.Errorf("invalid color %q", "#"+h)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid color %q", "#"+h)
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

// ParseFormat parses a matplotlib style format string such as "r--o".
func ParseFormat(f string) (Style, error) {
	var st Style
	for i := 0; i < len(f); {
		rest := f[i:]
		switch {
		case strings.HasPrefix(rest, "--"), strings.HasPrefix(rest, "-."):
			st.LineStyle = rest[:2]
			i += 2
		case rest[0] == '-' || rest[0] == ':':
			st.LineStyle = rest[:1]
			i++
		case rest[0] == 'C' && len(rest) > 1 && rest[1] >= '0' && rest[1] <= '9':
			st.Color = plotutil.Color(int(rest[1] - '0'))
			i += 2
		case letterColors[rest[0]] != nil:
			st.Color = letterColors[rest[0]]
			i++
		case markerGlyphs[rest[:1]] != nil:
			st.Marker = rest[:1]
			i++
		default:
			return Style{}, fmt.Errorf("unrecognized character %q in format string %q", rest[0], f)
		}
	}
	return st, nil
}

// ValidLineStyle reports whether s names a supported line style.
func ValidLineStyle(s string) bool {
	if s == "" || s == "none" || s == "None" {
		return true
	}
	_, ok := lineDashes[s]
	return ok
}

// ValidMarker reports whether s names a supported marker.
func ValidMarker(s string) bool {
	if s == "" || s == "none" || s == "None" {
		return true
	}
	_, ok := markerGlyphs[s]
	return ok
}

func (st Style) drawLine() bool {
	switch st.LineStyle {
	case "none", "None":
		return false
	case "":
		return st.Marker == "" || st.Marker == "none" || st.Marker == "None"
	}
	return true
}

func (st Style) drawMarker() bool {
	return st.Marker != "" && st.Marker != "none" && st.Marker != "None"
}

func (st Style) lineStyle(c color.Color) draw.LineStyle {
	w := st.LineWidth
	if w <= 0 {
		w = defaultLineWidth
	}
	return draw.LineStyle{Color: c, Width: vg.Points(w), Dashes: lineDashes[st.LineStyle]}
}

func (st Style) glyphStyle(c color.Color) draw.GlyphStyle {
	r := st.MarkerSize
	if r <= 0 {
		r = defaultMarkerSize
	}
	if st.Marker == "." {
		r /= 2
	}
	return draw.GlyphStyle{Color: c, Radius: vg.Points(r), Shape: markerGlyphs[st.Marker]}
}
