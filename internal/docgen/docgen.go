// Package docgen turns accepted plotting code into a documented
// generate_figure function.
package docgen

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/petasbytes/fig2code/internal/conversation"
	"github.com/petasbytes/fig2code/internal/runner"
)

// ErrEmptyDoc is returned when the model replies without text.
var ErrEmptyDoc = errors.New("documentation reply contained no text")

// Generator documents working code.
type Generator interface {
	Document(ctx context.Context, code string) (string, error)
}

// ModelGenerator sends a single-turn documentation request through the
// same invoker the repair loop uses.
type ModelGenerator struct {
	invoker   runner.Invoker
	maxTokens int64
}

// NewModelGenerator returns a ModelGenerator. maxTokens <= 0 uses the loop default.
func NewModelGenerator(inv runner.Invoker, maxTokens int64) *ModelGenerator {
	if maxTokens <= 0 {
		maxTokens = runner.DefaultMaxTokens
	}
	return &ModelGenerator{invoker: inv, maxTokens: maxTokens}
}

// Document returns the model's full reply text.
func (g *ModelGenerator) Document(ctx context.Context, code string) (string, error) {
	resp, err := g.invoker.Invoke(ctx, conversation.NewPrompt(conversation.DocPrompt(code)), g.maxTokens)
	if err != nil {
		return "", fmt.Errorf("doc request: %w", err)
	}
	text, ok := resp.Text()
	if !ok || strings.TrimSpace(text) == "" {
		return "", ErrEmptyDoc
	}
	return text, nil
}
