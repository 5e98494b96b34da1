package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/petasbytes/fig2code/internal/presenter"
	"github.com/petasbytes/fig2code/internal/session"
)

const runLongDesc = `Generate plotting code for one image.

The image type is taken from its extension (.png, .jpg, .jpeg, .gif, .webp).
With --interactive, each rendered figure is shown by path and you either
accept it or type extra instructions to regenerate; revisions use the same
retry budget as repairs.

Examples:
  fig2code run chart.png
  fig2code run --interactive --max-retries 5 -o out chart.jpg`

const runShortDesc = "Generate code for one image"

type runCommander struct {
	app            *app
	interactive    bool
	confirmRepairs bool
	maxRetries     int
	format         string
	noDoc          bool
	instruction    string
}

func newRunCmd(a *app) *cobra.Command {
	cmder := &runCommander{app: a}

	cmd := &cobra.Command{
		Use:     "run <image>",
		Aliases: []string{"generate"},
		Short:   runShortDesc,
		Long:    runLongDesc,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd, args[0])
		},
	}

	cmd.Flags().BoolVarP(&cmder.interactive, "interactive", "i", false, "Ask to accept or revise after each rendered figure")
	cmd.Flags().BoolVar(&cmder.confirmRepairs, "confirm-repairs", false, "With --interactive, ask before each repair")
	cmd.Flags().IntVar(&cmder.maxRetries, "max-retries", 0, "Model invocations allowed (default from config)")
	cmd.Flags().StringVar(&cmder.format, "format", "", "Artifact format: png, svg, pdf, jpg, tif, eps")
	cmd.Flags().BoolVar(&cmder.noDoc, "no-doc", false, "Skip the generate_figure documentation step")
	cmd.Flags().StringVar(&cmder.instruction, "instruction-file", "", "Replace the first-turn instruction with this file's contents")

	return cmd
}

// applyFlags copies loop flags over the loaded config.
func (c *runCommander) applyFlags() error {
	cfg := &c.app.cfg
	if c.maxRetries > 0 {
		cfg.MaxRetries = c.maxRetries
	}
	if c.format != "" {
		cfg.Format = c.format
	}
	if c.noDoc {
		cfg.GenerateDoc = false
	}
	text, err := readInstruction(c.instruction)
	if err != nil {
		return err
	}
	if text != "" {
		cfg.Instruction = text
	}
	return cfg.Validate()
}

func (c *runCommander) run(ctx context.Context, cmd *cobra.Command, path string) error {
	if err := c.applyFlags(); err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}
	svc, store, err := c.app.newService()
	if err != nil {
		return err
	}

	console := presenter.NewConsole(cmd.OutOrStdout(), "", c.app.cfg.MetricsPricing())
	req := session.Request{ImageName: path, Image: data, Observer: console}
	if c.interactive {
		policy := presenter.NewInteractive(cmd.InOrStdin(), cmd.OutOrStdout())
		policy.ConfirmRepairs = c.confirmRepairs
		policy.Root = store.Root()
		req.Policy = policy
	}

	out, err := svc.Generate(ctx, req)
	if err != nil {
		return err
	}
	console.Summary(store.Root(), out)
	return nil
}
