package docgen

import (
	"context"
	"fmt"
	"strings"

	"github.com/teilomillet/gollm"

	"github.com/petasbytes/fig2code/internal/conversation"
)

const systemPrompt = "You turn working matplotlib scripts into reusable, documented functions."

// GollmOptions configures the gollm documentation backend.
type GollmOptions struct {
	// Provider is a gollm provider name such as "anthropic" or "openai".
	Provider  string
	Model     string
	APIKey    string
	MaxTokens int
}

// GollmGenerator documents code through any provider gollm supports.
type GollmGenerator struct {
	generate func(ctx context.Context, prompt *gollm.Prompt) (string, error)
}

// NewGollmGenerator builds the gollm client. Retries are left to the caller.
func NewGollmGenerator(o GollmOptions) (*GollmGenerator, error) {
	if o.Provider == "" {
		o.Provider = "anthropic"
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = 2048
	}
	opts := []gollm.ConfigOption{
		gollm.SetProvider(o.Provider),
		gollm.SetMaxTokens(o.MaxTokens),
		gollm.SetMaxRetries(0),
		gollm.SetLogLevel(gollm.LogLevelWarn),
	}
	if o.Model != "" {
		opts = append(opts, gollm.SetModel(o.Model))
	}
	if o.APIKey != "" {
		opts = append(opts, gollm.SetAPIKey(o.APIKey))
	}
	llm, err := gollm.NewLLM(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gollm LLM for provider %s: %w", o.Provider, err)
	}
	return &GollmGenerator{
		generate: func(ctx context.Context, p *gollm.Prompt) (string, error) { return llm.Generate(ctx, p) },
	}, nil
}

// Document returns the generated text.
func (g *GollmGenerator) Document(ctx context.Context, code string) (string, error) {
	prompt := gollm.NewPrompt(conversation.DocPrompt(code),
		gollm.WithSystemPrompt(systemPrompt, gollm.CacheTypeEphemeral))
	text, err := g.generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("doc request: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyDoc
	}
	return text, nil
}
