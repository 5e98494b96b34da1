package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/petasbytes/fig2code/internal/conversation"
	"github.com/petasbytes/fig2code/internal/extract"
	"github.com/petasbytes/fig2code/internal/telemetry"
)

// Invoker sends a conversation to a model and returns its reply.
type Invoker interface {
	Invoke(ctx context.Context, conv *conversation.Conversation, maxTokens int64) (*conversation.Response, error)
}

// Figure is the explicit plot handle produced by executing code.
type Figure interface {
	Render(w io.Writer, format string) error
	Close() error
}

// Executor runs extracted code. On error it must release any figure itself.
type Executor interface {
	Execute(ctx context.Context, code string) (Figure, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, code string) (Figure, error)

func (f ExecutorFunc) Execute(ctx context.Context, code string) (Figure, error) { return f(ctx, code) }

// ArtifactSink materializes a rendered artifact at path.
type ArtifactSink interface {
	WriteArtifact(path string, render func(io.Writer) error) error
}

// State is the loop's position in the attempt cycle.
type State int

const (
	Ready State = iota
	Invoking
	Executing
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case Invoking:
		return "invoking"
	case Executing:
		return "executing"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Config holds the per-loop settings.
type Config struct {
	MaxRetries int
	MaxTokens  int64
	// Language is the fence tag code is extracted from.
	Language string
	// OutputPath is where the artifact is written on success.
	OutputPath string
	// Format is the render format; empty means PNG.
	Format string
}

const (
	DefaultMaxRetries = 3
	DefaultMaxTokens  = 2048
	DefaultFormat     = "png"
)

// noTextPlaceholder stands in for a reply that carried no text, keeping
// assistant turns non-empty.
const noTextPlaceholder = "(the previous response contained no text)"

// Result describes a successful run.
type Result struct {
	Code string
	// Attempt is the 0-based index of the accepted attempt.
	Attempt int
	// Attempts is the number of model invocations made.
	Attempts     int
	Usage        conversation.Usage
	ArtifactPath string
	Conversation *conversation.Conversation
}

// Runner owns one generate-execute-repair loop.
type Runner struct {
	invoker  Invoker
	exec     Executor
	sink     ArtifactSink
	cfg      Config
	policy   Policy
	observer Observer
	logger   *zap.Logger

	mu       sync.Mutex
	state    State
	conv     *conversation.Conversation
	code     string
	attempts int
}

// Option configures a Runner.
type Option func(*Runner)

// WithPolicy sets the between-attempt policy. The default is FixedRetries.
func WithPolicy(p Policy) Option { return func(r *Runner) { r.policy = p } }

// WithObserver sets the attempt observer.
func WithObserver(o Observer) Option { return func(r *Runner) { r.observer = o } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(r *Runner) { r.logger = l } }

// New returns a Runner in the Ready state.
func New(inv Invoker, exec Executor, sink ArtifactSink, cfg Config, opts ...Option) *Runner {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Language == "" {
		cfg.Language = extract.DefaultLanguage
	}
	if cfg.Format == "" {
		cfg.Format = DefaultFormat
	}
	r := &Runner{
		invoker:  inv,
		exec:     exec,
		sink:     sink,
		cfg:      cfg,
		policy:   FixedRetries{},
		observer: NopObserver{},
		logger:   zap.NewNop(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// State returns the current loop state.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Conversation returns a snapshot of the conversation being driven.
func (r *Runner) Conversation() *conversation.Conversation {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conv == nil {
		return nil
	}
	return r.conv.Clone()
}

// CurrentCode returns the most recently extracted code.
func (r *Runner) CurrentCode() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.code
}

// AttemptCount returns the number of model invocations made so far.
func (r *Runner) AttemptCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempts
}

func (r *Runner) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// Run drives conv until an attempt is accepted or the budget is spent. conv
// is appended to in place.
func (r *Runner) Run(ctx context.Context, conv *conversation.Conversation) (*Result, error) {
	r.mu.Lock()
	r.state, r.conv, r.code, r.attempts = Ready, conv, "", 0
	r.mu.Unlock()

	var total conversation.Usage
	var lastErr error

	for i := 0; i < r.cfg.MaxRetries; i++ {
		actx := telemetry.WithAttempt(ctx, i)
		r.observer.AttemptStarted(i)
		telemetry.EmitContext(actx, "attempt_started", map[string]any{"turns": conv.Len()})
		start := time.Now()

		r.mu.Lock()
		r.state = Invoking
		r.attempts = i + 1
		r.mu.Unlock()

		resp, err := r.invoker.Invoke(actx, conv, r.cfg.MaxTokens)
		if err != nil {
			r.setState(Failed)
			telemetry.EmitContext(actx, "attempt_failed", map[string]any{"kind": "transport", "duration_ms": time.Since(start).Milliseconds()})
			return nil, &TransportError{Err: err}
		}
		total.InputTokens += resp.Usage.InputTokens
		total.OutputTokens += resp.Usage.OutputTokens

		r.setState(Executing)
		a := r.attempt(actx, i, resp)
		if ctxErr := ctx.Err(); ctxErr != nil {
			r.setState(Failed)
			return nil, ctxErr
		}

		if a.Err != nil {
			lastErr = a.Err
			r.observer.AttemptFailed(a)
			r.logger.Info("attempt failed", zap.Int("attempt", i), zap.String("error", a.Err.Error()))
			telemetry.EmitContext(actx, "attempt_failed", map[string]any{"kind": errorKind(a.Err), "duration_ms": time.Since(start).Milliseconds()})

			if i+1 >= r.cfg.MaxRetries {
				break
			}
			cont, err := r.policy.AfterFailure(ctx, a)
			if err != nil {
				r.setState(Failed)
				return nil, err
			}
			if !cont {
				r.setState(Failed)
				return nil, fmt.Errorf("%w: %w", ErrStopped, a.Err)
			}
			r.mu.Lock()
			conv.AppendRepairTurn(assistantText(resp), a.Err.Error())
			r.state = Ready
			r.mu.Unlock()
			continue
		}

		r.observer.AttemptSucceeded(a)
		r.logger.Info("attempt succeeded", zap.Int("attempt", i), zap.String("artifact", r.cfg.OutputPath))
		telemetry.EmitContext(actx, "attempt_succeeded", map[string]any{"duration_ms": time.Since(start).Milliseconds()})
		r.setState(Succeeded)

		result := &Result{
			Code:         a.Code,
			Attempt:      i,
			Attempts:     i + 1,
			Usage:        total,
			ArtifactPath: r.cfg.OutputPath,
			Conversation: conv,
		}
		dec, err := r.policy.AfterSuccess(ctx, a)
		if err != nil {
			return nil, err
		}
		if !dec.Revise {
			return result, nil
		}
		if i+1 >= r.cfg.MaxRetries {
			r.logger.Warn("revision requested with no attempts left; keeping last result")
			return result, nil
		}
		r.mu.Lock()
		conv.AppendRevisionTurn(assistantText(resp), dec.Feedback)
		r.state = Ready
		r.mu.Unlock()
	}

	r.setState(Failed)
	return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, r.cfg.MaxRetries, lastErr)
}

// attempt extracts, executes and renders. Any failure lands in Attempt.Err.
func (r *Runner) attempt(ctx context.Context, i int, resp *conversation.Response) Attempt {
	a := Attempt{Index: i, Response: resp, Usage: resp.Usage}
	code, err := extract.FromResponse(resp, r.cfg.Language)
	if err != nil {
		a.Err = err
		return a
	}
	a.Code = code
	r.mu.Lock()
	r.code = code
	r.mu.Unlock()
	telemetry.EmitCodeFeatures(ctx, code)

	if err := r.execute(ctx, code); err != nil {
		a.Err = err
		return a
	}
	a.Artifact = r.cfg.OutputPath
	return a
}

func (r *Runner) execute(ctx context.Context, code string) (err error) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Warn("executor panicked", zap.Any("panic", p))
			err = &ExecutionError{Message: fmt.Sprintf("execution panicked: %v", p)}
		}
	}()
	fig, err := r.exec.Execute(ctx, code)
	if err != nil {
		return executionError(err)
	}
	if fig == nil {
		return &ExecutionError{Message: "execution produced no figure"}
	}
	defer func() {
		if cerr := fig.Close(); cerr != nil && err == nil {
			err = executionError(cerr)
		}
	}()
	render := func(w io.Writer) error { return fig.Render(w, r.cfg.Format) }
	if err := r.sink.WriteArtifact(r.cfg.OutputPath, render); err != nil {
		return executionError(err)
	}
	return nil
}

func assistantText(resp *conversation.Response) string {
	if text, ok := resp.Text(); ok && text != "" {
		return text
	}
	return noTextPlaceholder
}

func errorKind(err error) string {
	if errors.Is(err, ErrMalformedResponse) {
		return "malformed_response"
	}
	return "execution"
}
