package sandbox

import "go.starlark.net/starlark"

func toTuple(vals ...float64) starlark.Tuple {
	out := make(starlark.Tuple, len(vals))
	for i, v := range vals {
		out[i] = starlark.Float(v)
	}
	return out
}

func intValue(n int) starlark.Value { return starlark.MakeInt(n) }
