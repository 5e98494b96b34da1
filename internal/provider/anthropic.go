package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/time/rate"

	"github.com/petasbytes/fig2code/internal/conversation"
	"github.com/petasbytes/fig2code/internal/telemetry"
)

const DefaultModel = anthropic.ModelClaude3_7SonnetLatest
const APIVersion = "2023-06-01"

// Options configures the Anthropic client.
type Options struct {
	APIKey  string
	BaseURL string
	// HTTPClient overrides the transport; tests inject a fake RoundTripper here.
	HTTPClient *http.Client
	// MaxRetries is the SDK's own retry count for transient HTTP failures.
	// The repair loop never retries invocation errors itself.
	MaxRetries int
}

// NewAnthropicClient returns a client. An empty APIKey falls back to the
// ANTHROPIC_API_KEY environment variable read by the SDK.
func NewAnthropicClient(o Options) *anthropic.Client {
	var opts []option.RequestOption
	if o.APIKey != "" {
		opts = append(opts, option.WithAPIKey(o.APIKey))
	}
	if o.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(o.BaseURL))
	}
	if o.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(o.HTTPClient))
	}
	opts = append(opts, option.WithMaxRetries(o.MaxRetries))
	c := anthropic.NewClient(opts...)
	return &c
}

// Invoker sends conversations through the Messages API.
type Invoker struct {
	Client  *anthropic.Client
	Model   anthropic.Model
	limiter *rate.Limiter
}

// NewInvoker returns an Invoker. requestsPerMinute <= 0 disables throttling.
func NewInvoker(client *anthropic.Client, model string, requestsPerMinute int) *Invoker {
	inv := &Invoker{Client: client, Model: anthropic.Model(model)}
	if model == "" {
		inv.Model = DefaultModel
	}
	if requestsPerMinute > 0 {
		inv.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), 1)
	}
	return inv
}

// Invoke sends the whole conversation and converts the reply.
func (i *Invoker) Invoke(ctx context.Context, conv *conversation.Conversation, maxTokens int64) (*conversation.Response, error) {
	if i.limiter != nil {
		if err := i.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}
	params := anthropic.MessageNewParams{
		Model:     i.Model,
		MaxTokens: maxTokens,
		Messages:  ToMessageParams(conv),
	}
	if telemetry.PersistPayloadsEnabled() {
		if b, err := json.Marshal(params); err == nil {
			telemetry.PersistPayload(ctx, "request", b)
		}
	}

	msg, err := i.Client.Messages.New(ctx, params)
	if err != nil {
		return nil, err
	}
	telemetry.PersistPayload(ctx, "response", []byte(msg.RawJSON()))
	return FromMessage(msg), nil
}

// ToMessageParams converts conversation turns to SDK message params.
func ToMessageParams(conv *conversation.Conversation) []anthropic.MessageParam {
	turns := conv.Turns()
	out := make([]anthropic.MessageParam, 0, len(turns))
	for _, t := range turns {
		blocks := make([]anthropic.ContentBlockParamUnion, 0, len(t.Content))
		for _, b := range t.Content {
			switch b.Kind {
			case conversation.KindImage:
				blocks = append(blocks, anthropic.NewImageBlockBase64(b.MediaType, b.Data))
			case conversation.KindText:
				blocks = append(blocks, anthropic.NewTextBlock(b.Text))
			}
		}
		if t.Role == conversation.RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		} else {
			out = append(out, anthropic.NewUserMessage(blocks...))
		}
	}
	return out
}

// FromMessage converts an SDK reply, keeping block order.
func FromMessage(msg *anthropic.Message) *conversation.Response {
	resp := &conversation.Response{
		StopReason: string(msg.StopReason),
		Usage: conversation.Usage{
			InputTokens:  msg.Usage.InputTokens,
			OutputTokens: msg.Usage.OutputTokens,
		},
	}
	for _, block := range msg.Content {
		switch v := block.AsAny().(type) {
		case anthropic.TextBlock:
			resp.Content = append(resp.Content, conversation.TextBlock(v.Text))
		default:
			resp.Content = append(resp.Content, conversation.ContentBlock{Kind: conversation.KindOther, Type: block.Type})
		}
	}
	return resp
}
