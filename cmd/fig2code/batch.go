package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/petasbytes/fig2code/internal/batch"
	"github.com/petasbytes/fig2code/internal/presenter"
	"github.com/petasbytes/fig2code/internal/runner"
)

const batchLongDesc = `Generate code for several images concurrently.

Each image gets its own conversation, artifact and record. A failed image does
not stop the others; an unreachable model stops the whole batch.

Examples:
  fig2code batch --concurrency 4 -o out charts/*.png`

type batchCommander struct {
	app         *app
	concurrency int
	noDoc       bool
}

func newBatchCmd(a *app) *cobra.Command {
	cmder := &batchCommander{app: a}

	cmd := &cobra.Command{
		Use:   "batch <image>...",
		Short: "Generate code for several images",
		Long:  batchLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd, args)
		},
	}

	cmd.Flags().IntVarP(&cmder.concurrency, "concurrency", "c", 0, "Images processed at once (default from config)")
	cmd.Flags().BoolVar(&cmder.noDoc, "no-doc", false, "Skip the documentation step")

	return cmd
}

func (c *batchCommander) run(ctx context.Context, cmd *cobra.Command, paths []string) error {
	if c.noDoc {
		c.app.cfg.GenerateDoc = false
	}
	concurrency := c.app.cfg.Batch.Concurrency
	if c.concurrency > 0 {
		concurrency = c.concurrency
	}
	svc, store, err := c.app.newService()
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	pricing := c.app.cfg.MetricsPricing()
	items, err := batch.Run(ctx, svc, paths, batch.Options{
		Concurrency: concurrency,
		Logger:      c.app.logger,
		Observer: func(path string) runner.Observer {
			return presenter.NewConsole(w, filepath.Base(path), pricing)
		},
	})

	for _, it := range items {
		switch {
		case it.Outcome != nil:
			fmt.Fprintf(w, "ok    %s -> %s (%d attempts)\n", it.Path, filepath.Join(store.Root(), it.Outcome.Record), it.Outcome.Result.Attempts)
		case it.Err != nil:
			fmt.Fprintf(w, "fail  %s: %v\n", it.Path, it.Err)
		}
	}
	if err != nil {
		return err
	}
	if n := batch.Failed(items); n > 0 {
		return fmt.Errorf("%d of %d images failed", n, len(items))
	}
	return nil
}
