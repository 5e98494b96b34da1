package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/petasbytes/fig2code/internal/config"
	"github.com/petasbytes/fig2code/internal/docgen"
	"github.com/petasbytes/fig2code/internal/fsops"
	"github.com/petasbytes/fig2code/internal/logger"
	"github.com/petasbytes/fig2code/internal/provider"
	"github.com/petasbytes/fig2code/internal/session"
)

const rootLongDesc = `fig2code recreates a plot from an image.

It sends the image to a vision model, runs the returned plotting code in a
restricted interpreter, and feeds any error back to the model until the code
renders or the retry budget is spent. The rendered figure and a JSON record
(code, documentation, conversation) are written to the output directory.

Settings come from fig2code.toml (or --config), then F2C_* environment
variables and a .env file, then flags.`

// app carries what every subcommand shares once flags are parsed.
type app struct {
	configPath string
	outputDir  string
	debug      bool

	cfg    config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:           "fig2code",
		Short:         "Turn a plot image into plotting code",
		Long:          rootLongDesc,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to a TOML config file (default ./"+config.DefaultFile+" if present)")
	cmd.PersistentFlags().StringVarP(&a.outputDir, "output-dir", "o", "", "Directory for artifacts and records")
	cmd.PersistentFlags().BoolVar(&a.debug, "debug", false, "Enable debug logging")

	cmd.AddCommand(
		newRunCmd(a),
		newBatchCmd(a),
		newServeCmd(a),
		newShowCmd(),
		newSchemaCmd(),
	)
	return cmd
}

func (a *app) load(cmd *cobra.Command) error {
	// A missing .env is normal.
	_ = godotenv.Load()

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("output-dir") {
		cfg.OutputDir = a.outputDir
	}
	if a.debug {
		cfg.Debug = true
	}
	a.cfg = cfg
	a.logger = logger.NewLogger(cfg.Debug)
	return nil
}

// newService wires the model client, the doc backend and the output store.
func (a *app) newService() (*session.Service, *fsops.Store, error) {
	if a.cfg.APIKey == "" {
		return nil, nil, errors.New("ANTHROPIC_API_KEY is not set; export it or add it to .env")
	}
	store, err := fsops.NewStore(a.cfg.OutputDir)
	if err != nil {
		return nil, nil, err
	}

	client := provider.NewAnthropicClient(provider.Options{
		APIKey:     a.cfg.APIKey,
		BaseURL:    a.cfg.BaseURL,
		MaxRetries: a.cfg.SDKRetries,
	})
	inv := provider.NewInvoker(client, a.cfg.Model, a.cfg.RequestsPerMinute)

	var doc docgen.Generator
	if a.cfg.GenerateDoc {
		switch a.cfg.DocBackend {
		case config.DocBackendGollm:
			model := a.cfg.DocModel
			if model == "" {
				model = a.cfg.Model
			}
			g, err := docgen.NewGollmGenerator(docgen.GollmOptions{
				Provider:  "anthropic",
				Model:     model,
				APIKey:    a.cfg.APIKey,
				MaxTokens: int(a.cfg.MaxTokens),
			})
			if err != nil {
				return nil, nil, err
			}
			doc = g
		default:
			docInv := inv
			if a.cfg.DocModel != "" {
				docInv = provider.NewInvoker(client, a.cfg.DocModel, a.cfg.RequestsPerMinute)
			}
			doc = docgen.NewModelGenerator(docInv, a.cfg.MaxTokens)
		}
	}

	svc := session.New(inv, store, doc, session.Options{
		MaxRetries:  a.cfg.MaxRetries,
		MaxTokens:   a.cfg.MaxTokens,
		Language:    a.cfg.Language,
		Format:      a.cfg.Format,
		Instruction: a.cfg.Instruction,
		Pricing:     a.cfg.MetricsPricing(),
	}, a.logger)

	a.logger.Debug("service ready",
		zap.String("model", a.cfg.Model),
		zap.String("output_dir", store.Root()),
		zap.Int("max_retries", a.cfg.MaxRetries),
		zap.Bool("generate_doc", a.cfg.GenerateDoc),
		zap.String("doc_backend", a.cfg.DocBackend),
	)
	return svc, store, nil
}

func readInstruction(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read instruction: %w", err)
	}
	return string(b), nil
}
