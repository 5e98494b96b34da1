// Package batch runs several images through sessions concurrently.
package batch

import (
	"context"
	"errors"
	"os"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/petasbytes/fig2code/internal/runner"
	"github.com/petasbytes/fig2code/internal/session"
)

// Generator is the part of session.Service batch needs.
type Generator interface {
	Generate(ctx context.Context, req session.Request) (*session.Outcome, error)
}

// Item is the result for one input path. Exactly one of Outcome and Err is set.
type Item struct {
	Path    string
	Outcome *session.Outcome
	Err     error
}

// Options tune a batch run.
type Options struct {
	Concurrency int
	// Observer, when set, builds a per-image observer.
	Observer func(path string) runner.Observer
	Logger   *zap.Logger
}

// Run processes paths with at most Concurrency sessions in flight. Per-image
// failures land in the returned items. A transport error means the model is
// unreachable, so it cancels the remaining work and is returned.
func Run(ctx context.Context, gen Generator, paths []string, o Options) ([]Item, error) {
	if o.Concurrency < 1 {
		o.Concurrency = 1
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}

	items := make([]Item, len(paths))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(o.Concurrency)
	for i, path := range paths {
		items[i].Path = path
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				items[i].Err = err
				return nil
			}
			data, err := os.ReadFile(path)
			if err != nil {
				items[i].Err = err
				return nil
			}
			req := session.Request{ImageName: path, Image: data}
			if o.Observer != nil {
				req.Observer = o.Observer(path)
			}
			out, err := gen.Generate(egCtx, req)
			if err != nil {
				items[i].Err = err
				o.Logger.Warn("image failed", zap.String("path", path), zap.Error(err))
				var te *runner.TransportError
				if errors.As(err, &te) {
					return err
				}
				return nil
			}
			items[i].Outcome = out
			return nil
		})
	}
	return items, eg.Wait()
}

// Failed counts the items that did not produce an outcome.
func Failed(items []Item) int {
	n := 0
	for _, it := range items {
		if it.Err != nil {
			n++
		}
	}
	return n
}
