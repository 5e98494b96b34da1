package sandbox

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"go.starlark.net/lib/math"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
	"go.starlark.net/syntax"
	"go.uber.org/zap"

	"github.com/petasbytes/fig2code/internal/plotting"
)

// Filename is the name generated programs are reported under in backtraces.
const Filename = "plot.star"

// HandleName is the single predeclared global.
const HandleName = "plt"

// pyplotImport matches the conventional import line; the handle is already
// bound, so the line is blanked to keep line numbers stable.
var pyplotImport = regexp.MustCompile(`(?m)^[ \t]*(import[ \t]+matplotlib\.pyplot[ \t]+as[ \t]+plt|from[ \t]+matplotlib[ \t]+import[ \t]+pyplot[ \t]+as[ \t]+plt)[ \t]*(#.*)?$`)

var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
	Recursion:       true,
}

// ScriptError is a failure raised by the generated program. Message carries
// the interpreter backtrace when one is available.
type ScriptError struct {
	Message string
	Err     error
}

func (e *ScriptError) Error() string { return e.Message }
func (e *ScriptError) Unwrap() error { return e.Err }

// Executor runs generated programs against a fresh figure per call.
type Executor struct {
	rt     *plotting.Runtime
	logger *zap.Logger
}

// New returns an Executor drawing figures from rt.
func New(rt *plotting.Runtime, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{rt: rt, logger: logger}
}

// StripImports blanks the pyplot import lines.
func StripImports(code string) string {
	return pyplotImport.ReplaceAllString(code, "")
}

// Execute runs code with only plt predeclared. On success the caller owns the
// returned figure and must close it; on failure the figure is already closed.
func (e *Executor) Execute(ctx context.Context, code string) (_ *plotting.Figure, err error) {
	fig := e.rt.NewFigure()
	// A builtin that panics is reported like any other script failure.
	defer func() {
		if r := recover(); r != nil {
			fig.Close()
			e.logger.Warn("script panicked", zap.Any("panic", r))
			err = &ScriptError{Message: fmt.Sprintf("%s: internal error: %v", Filename, r)}
		}
	}()
	s := &session{fig: fig}
	s.figV = &handle{typ: "Figure", s: s, methods: figureTable}
	s.axV = &handle{typ: "Axes", s: s, methods: axesTable}

	thread := &starlark.Thread{
		Name: "fig2code",
		Print: func(_ *starlark.Thread, msg string) {
			e.logger.Debug("script output", zap.String("msg", msg))
		},
	}
	stop := context.AfterFunc(ctx, func() { thread.Cancel(context.Cause(ctx).Error()) })
	defer stop()

	predeclared := starlark.StringDict{HandleName: pyplotModule(s)}
	_, err = starlark.ExecFileOptions(fileOptions, thread, Filename, StripImports(code), predeclared)
	if err != nil {
		fig.Close()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, scriptError(err)
	}
	if err := ctx.Err(); err != nil {
		fig.Close()
		return nil, err
	}
	return fig, nil
}

func pyplotModule(s *session) *starlarkstruct.Module {
	members := make(starlark.StringDict, len(pyplotTable)+1)
	for name, m := range pyplotTable {
		members[name] = builtin(s, name, m)
	}
	members["math"] = math.Module
	return &starlarkstruct.Module{Name: HandleName, Members: members}
}

func scriptError(err error) error {
	var evalErr *starlark.EvalError
	if errors.As(err, &evalErr) {
		return &ScriptError{Message: evalErr.Backtrace(), Err: err}
	}
	return &ScriptError{Message: err.Error(), Err: err}
}
