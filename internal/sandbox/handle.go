package sandbox

import (
	"fmt"

	"go.starlark.net/starlark"
)

// handle exposes a method table as a Starlark value (a Figure or an Axes).
type handle struct {
	typ     string
	s       *session
	methods map[string]method
}

var _ starlark.HasAttrs = (*handle)(nil)

func (h *handle) String() string        { return "<" + h.typ + ">" }
func (h *handle) Type() string          { return h.typ }
func (h *handle) Freeze()               {}
func (h *handle) Truth() starlark.Bool  { return starlark.True }
func (h *handle) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: %s", h.typ) }

func (h *handle) Attr(name string) (starlark.Value, error) {
	m, ok := h.methods[name]
	if !ok {
		return nil, nil
	}
	return builtin(h.s, name, m), nil
}

func (h *handle) AttrNames() []string { return sortedNames(h.methods) }

func builtin(s *session, name string, m method) *starlark.Builtin {
	return starlark.NewBuiltin(name, func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kv []starlark.Tuple) (starlark.Value, error) {
		return m(s, args, newKwargs(kv))
	})
}
