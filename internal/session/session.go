// Package session runs one image through the repair loop and persists the
// outcome: the rendered artifact and a JSON record next to it.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/petasbytes/fig2code/internal/conversation"
	"github.com/petasbytes/fig2code/internal/docgen"
	"github.com/petasbytes/fig2code/internal/fsops"
	"github.com/petasbytes/fig2code/internal/metrics"
	"github.com/petasbytes/fig2code/internal/plotting"
	"github.com/petasbytes/fig2code/internal/runner"
	"github.com/petasbytes/fig2code/internal/sandbox"
	"github.com/petasbytes/fig2code/internal/telemetry"
	"github.com/petasbytes/fig2code/memory"
)

// Options are the per-service loop settings.
type Options struct {
	MaxRetries  int
	MaxTokens   int64
	Language    string
	Format      string
	Instruction string
	Pricing     metrics.Pricing
}

// Service is safe for concurrent use; each Generate call owns its
// conversation and figures.
type Service struct {
	invoker runner.Invoker
	rt      *plotting.Runtime
	exec    *sandbox.Executor
	store   *fsops.Store
	doc     docgen.Generator
	opts    Options
	logger  *zap.Logger
	now     func() time.Time
}

// New returns a Service writing into store. A nil doc skips documentation.
func New(inv runner.Invoker, store *fsops.Store, doc docgen.Generator, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Instruction == "" {
		opts.Instruction = conversation.DefaultInstruction
	}
	if opts.Format == "" {
		opts.Format = runner.DefaultFormat
	}
	if opts.Pricing == (metrics.Pricing{}) {
		opts.Pricing = metrics.DefaultPricing
	}
	rt := plotting.NewRuntime()
	return &Service{
		invoker: inv,
		rt:      rt,
		exec:    sandbox.New(rt, logger.Named("sandbox")),
		store:   store,
		doc:     doc,
		opts:    opts,
		logger:  logger,
		now:     time.Now,
	}
}

// Runtime exposes the plotting runtime, mainly for open-figure checks.
func (s *Service) Runtime() *plotting.Runtime { return s.rt }

// Request is one uploaded image.
type Request struct {
	ImageName string
	Image     []byte
	// MediaType overrides the type derived from ImageName.
	MediaType string
	Policy    runner.Policy
	Observer  runner.Observer
}

// Outcome describes a persisted session.
type Outcome struct {
	RunID string
	// Record and Artifact are paths relative to the output root.
	Record   string
	Artifact string
	Result   *runner.Result
	Doc      string
	Cost     metrics.Cost
}

// Generate runs the loop for req. Loop errors are returned unchanged so
// callers can match them with errors.Is/As.
func (s *Service) Generate(ctx context.Context, req Request) (*Outcome, error) {
	// Checked up front so a bad setting never reaches the model.
	if err := plotting.CheckFormat(s.opts.Format); err != nil {
		return nil, err
	}
	mediaType := req.MediaType
	if mediaType == "" {
		mt, err := conversation.MediaTypeFromPath(req.ImageName)
		if err != nil {
			return nil, err
		}
		mediaType = mt
	}
	conv, err := conversation.Initialize(req.Image, mediaType, s.opts.Instruction)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	ctx = telemetry.WithRunID(ctx, runID)
	log := s.logger.With(zap.String("run_id", runID), zap.String("image", req.ImageName))

	now := s.now()
	artifact := memory.ArtifactFilename(now, req.ImageName, s.opts.Format)
	recordName := memory.RecordFilename(now, req.ImageName)

	opts := []runner.Option{runner.WithLogger(log)}
	if req.Policy != nil {
		opts = append(opts, runner.WithPolicy(req.Policy))
	}
	if req.Observer != nil {
		opts = append(opts, runner.WithObserver(req.Observer))
	}
	r := runner.New(s.invoker, Executor(s.exec), s.store, runner.Config{
		MaxRetries: s.opts.MaxRetries,
		MaxTokens:  s.opts.MaxTokens,
		Language:   s.opts.Language,
		OutputPath: artifact,
		Format:     s.opts.Format,
	}, opts...)

	log.Info("session started", zap.Int("bytes", len(req.Image)), zap.String("media_type", mediaType))
	result, err := r.Run(ctx, conv)
	if err != nil {
		log.Warn("session failed", zap.Int("attempts", r.AttemptCount()), zap.Error(err))
		return nil, err
	}

	doc := ""
	if s.doc != nil {
		if doc, err = s.doc.Document(ctx, result.Code); err != nil {
			log.Warn("documentation step failed", zap.Error(err))
			doc = ""
		}
	}

	cost := metrics.EstimateCost(result.Usage.InputTokens, result.Usage.OutputTokens, s.opts.Pricing)
	rec := &memory.Record{
		Code:                result.Code,
		Doc:                 doc,
		ConversationHistory: result.Conversation.Turns(),
		Image:               req.ImageName,
		Artifact:            artifact,
		RunID:               runID,
		CreatedAt:           now.UTC(),
		Attempts:            result.Attempts,
		Usage:               result.Usage,
		CostUSD:             cost.USD,
	}
	b, err := memory.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	if err := s.store.WriteFile(recordName, b); err != nil {
		return nil, fmt.Errorf("write record: %w", err)
	}
	telemetry.EmitContext(ctx, "session_saved", map[string]any{"record": recordName, "attempts": result.Attempts})
	log.Info("session saved",
		zap.String("record", recordName),
		zap.String("artifact", artifact),
		zap.Int("attempts", result.Attempts),
		zap.Float64("cost_usd", cost.USD),
	)

	return &Outcome{
		RunID:    runID,
		Record:   recordName,
		Artifact: artifact,
		Result:   result,
		Doc:      doc,
		Cost:     cost,
	}, nil
}

// Executor adapts the sandbox to the loop. A failed execution returns an
// untyped nil so the loop never sees a nil *plotting.Figure as a figure.
func Executor(ex *sandbox.Executor) runner.Executor {
	return runner.ExecutorFunc(func(ctx context.Context, code string) (runner.Figure, error) {
		fig, err := ex.Execute(ctx, code)
		if err != nil {
			return nil, err
		}
		return fig, nil
	})
}
