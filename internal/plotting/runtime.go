package plotting

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
)

const (
	// DefaultWidth and DefaultHeight are the figure size in inches.
	DefaultWidth  = 6.4
	DefaultHeight = 4.8

	maxInches = 40
)

// ErrClosed is returned by operations on a closed figure.
var ErrClosed = errors.New("figure is closed")

// ErrUnsupportedFormat is returned for render formats gonum/plot cannot write.
var ErrUnsupportedFormat = errors.New("unsupported render format")

var renderFormats = map[string]bool{
	"png": true, "jpg": true, "jpeg": true, "tif": true, "tiff": true,
	"svg": true, "pdf": true, "eps": true,
}

// CheckFormat reports ErrUnsupportedFormat unless format (with or without a
// leading dot, any case) can be rendered.
func CheckFormat(format string) error {
	if !renderFormats[normalizeFormat(format)] {
		return fmt.Errorf("%w %q", ErrUnsupportedFormat, format)
	}
	return nil
}

// Runtime hands out figures and counts the ones still open.
type Runtime struct {
	mu   sync.Mutex
	open int
}

// NewRuntime returns an empty runtime.
func NewRuntime() *Runtime { return &Runtime{} }

// NewFigure opens a new figure with the default size.
func (r *Runtime) NewFigure() *Figure {
	r.mu.Lock()
	r.open++
	r.mu.Unlock()
	return &Figure{
		rt:     r,
		plot:   plot.New(),
		width:  DefaultWidth,
		height: DefaultHeight,
	}
}

// Open returns the number of figures not yet closed.
func (r *Runtime) Open() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.open
}

func (r *Runtime) release() {
	r.mu.Lock()
	r.open--
	r.mu.Unlock()
}

// Close releases the figure. Calling it more than once is a no-op.
func (f *Figure) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	f.plot = nil
	f.plotters = nil
	f.rt.release()
	return nil
}

// Closed reports whether Close has been called.
func (f *Figure) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// SetSize sets the figure size in inches.
func (f *Figure) SetSize(w, h float64) error {
	if !(w > 0 && h > 0 && w <= maxInches && h <= maxInches) {
		return fmt.Errorf("figure size must be within (0, %d] inches, got (%g, %g)", maxInches, w, h)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.width, f.height = w, h
	return nil
}

// Size returns the figure size in inches.
func (f *Figure) Size() (w, h float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.width, f.height
}

// FormatFromPath returns the render format implied by a file name.
func FormatFromPath(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return ""
	}
	return normalizeFormat(name[i+1:])
}

func normalizeFormat(format string) string {
	return strings.ToLower(strings.TrimPrefix(format, "."))
}

// Render draws the figure to w in the given raster or vector format.
// Panics raised while drawing (for example a log axis over non-positive
// data) are returned as errors.
func (f *Figure) Render(w io.Writer, format string) (err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	if err := CheckFormat(format); err != nil {
		return err
	}
	format = normalizeFormat(format)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("render: %v", r)
		}
	}()
	if err := f.finalize(); err != nil {
		return err
	}
	wt, err := f.plot.WriterTo(vg.Length(f.width)*vg.Inch, vg.Length(f.height)*vg.Inch, format)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("render: write: %w", err)
	}
	return nil
}
