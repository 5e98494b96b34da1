package sandbox

import (
	"fmt"
	"image/color"
	"math"

	"go.starlark.net/starlark"

	"github.com/petasbytes/fig2code/internal/plotting"
)

// kwargs indexes keyword arguments by name. Unknown names are ignored by
// callers, matching how plotting code passes many cosmetic options.
type kwargs map[string]starlark.Value

func newKwargs(kv []starlark.Tuple) kwargs {
	m := make(kwargs, len(kv))
	for _, t := range kv {
		if k, ok := starlark.AsString(t[0]); ok {
			m[k] = t[1]
		}
	}
	return m
}

// get returns the first present value among aliases.
func (k kwargs) get(names ...string) (starlark.Value, bool) {
	for _, n := range names {
		if v, ok := k[n]; ok && v != starlark.None {
			return v, true
		}
	}
	return nil, false
}

func (k kwargs) str(names ...string) (string, bool) {
	v, ok := k.get(names...)
	if !ok {
		return "", false
	}
	if s, ok := starlark.AsString(v); ok {
		return s, true
	}
	return v.String(), true
}

func (k kwargs) float(names ...string) (float64, bool, error) {
	v, ok := k.get(names...)
	if !ok {
		return 0, false, nil
	}
	f, err := toFloat(v)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", names[0], err)
	}
	return f, true, nil
}

func (k kwargs) truth(def bool, names ...string) bool {
	v, ok := k.get(names...)
	if !ok {
		return def
	}
	return bool(v.Truth())
}

func toFloat(v starlark.Value) (float64, error) {
	if b, ok := v.(starlark.Bool); ok {
		if b {
			return 1, nil
		}
		return 0, nil
	}
	f, ok := starlark.AsFloat(v)
	if !ok {
		return 0, fmt.Errorf("expected a number, got %s", v.Type())
	}
	return f, nil
}

// toFloats flattens a number or an iterable of numbers.
func toFloats(v starlark.Value) ([]float64, error) {
	if _, ok := v.(starlark.String); ok {
		return nil, fmt.Errorf("expected numbers, got string %s", v)
	}
	if f, err := toFloat(v); err == nil {
		return []float64{f}, nil
	}
	iter := starlark.Iterate(v)
	if iter == nil {
		return nil, fmt.Errorf("expected a sequence of numbers, got %s", v.Type())
	}
	defer iter.Done()
	var out []float64
	var x starlark.Value
	for iter.Next(&x) {
		f, err := toFloat(x)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// toStrings returns the elements of v if every one is a string.
func toStrings(v starlark.Value) ([]string, bool) {
	if _, ok := v.(starlark.String); ok {
		return nil, false
	}
	iter := starlark.Iterate(v)
	if iter == nil {
		return nil, false
	}
	defer iter.Done()
	var out []string
	var x starlark.Value
	for iter.Next(&x) {
		s, ok := starlark.AsString(x)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, len(out) > 0
}

func isString(v starlark.Value) bool {
	_, ok := v.(starlark.String)
	return ok
}

// toColor accepts a colour string or an RGB(A) tuple of floats in [0, 1].
func toColor(v starlark.Value) (color.Color, error) {
	if s, ok := starlark.AsString(v); ok {
		return plotting.ParseColor(s)
	}
	fs, err := toFloats(v)
	if err != nil || (len(fs) != 3 && len(fs) != 4) {
		return nil, fmt.Errorf("invalid color %s", v)
	}
	if len(fs) == 3 {
		fs = append(fs, 1)
	}
	var c [4]uint8
	for i, f := range fs {
		if f < 0 || f > 1 {
			return nil, fmt.Errorf("invalid color %s: components must be within [0, 1]", v)
		}
		c[i] = uint8(math.Round(f * 255))
	}
	return color.NRGBA{R: c[0], G: c[1], B: c[2], A: c[3]}, nil
}

var namedLineStyles = map[string]string{
	"solid":   "-",
	"dashed":  "--",
	"dotted":  ":",
	"dashdot": "-.",
}

// styleFromKwargs overlays keyword styling onto base.
func styleFromKwargs(base plotting.Style, k kwargs) (plotting.Style, error) {
	st := base
	if v, ok := k.get("color", "c"); ok {
		// Per-point colour sequences are not supported; keep the cycle colour.
		if _, isList := v.(*starlark.List); !isList {
			c, err := toColor(v)
			if err != nil {
				return st, err
			}
			st.Color = c
		}
	}
	if s, ok := k.str("linestyle", "ls"); ok {
		if named, ok := namedLineStyles[s]; ok {
			s = named
		}
		if !plotting.ValidLineStyle(s) {
			return st, fmt.Errorf("invalid linestyle %q", s)
		}
		st.LineStyle = s
	}
	if s, ok := k.str("marker"); ok {
		if !plotting.ValidMarker(s) {
			return st, fmt.Errorf("invalid marker %q", s)
		}
		st.Marker = s
	}
	if f, ok, err := k.float("linewidth", "lw"); err != nil {
		return st, err
	} else if ok {
		st.LineWidth = f
	}
	if f, ok, err := k.float("markersize", "ms"); err != nil {
		return st, err
	} else if ok {
		st.MarkerSize = f / 2
	}
	return st, nil
}

// bounds reads an axis range from (lo, hi), ((lo, hi),) or keyword names.
// Missing bounds are NaN.
func bounds(args starlark.Tuple, k kwargs, loName, hiName string) (float64, float64, error) {
	lo, hi := math.NaN(), math.NaN()
	switch len(args) {
	case 0:
	case 1:
		if fs, err := toFloats(args[0]); err == nil && len(fs) == 2 {
			lo, hi = fs[0], fs[1]
		} else if len(fs) == 1 {
			lo = fs[0]
		} else {
			return 0, 0, fmt.Errorf("expected (%s, %s), got %s", loName, hiName, args[0])
		}
	case 2:
		var err error
		if args[0] != starlark.None {
			if lo, err = toFloat(args[0]); err != nil {
				return 0, 0, err
			}
		}
		if args[1] != starlark.None {
			if hi, err = toFloat(args[1]); err != nil {
				return 0, 0, err
			}
		}
	default:
		return 0, 0, fmt.Errorf("expected at most 2 positional arguments, got %d", len(args))
	}
	if f, ok, err := k.float(loName); err != nil {
		return 0, 0, err
	} else if ok {
		lo = f
	}
	if f, ok, err := k.float(hiName); err != nil {
		return 0, 0, err
	} else if ok {
		hi = f
	}
	return lo, hi, nil
}
