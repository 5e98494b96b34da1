package conversation

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Role identifies the author of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Kind tags a ContentBlock variant.
type Kind string

const (
	KindImage Kind = "image"
	KindText  Kind = "text"
	// KindOther marks provider blocks we do not interpret (tool use, thinking, ...).
	KindOther Kind = "other"
)

// ErrUnsupportedMediaType is returned for images outside the accepted set.
var ErrUnsupportedMediaType = errors.New("unsupported media type")

var supportedMediaTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

var extMediaTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// ContentBlock is one element of a turn. Data holds the base64 payload of an
// image block; Type keeps the provider tag for KindOther blocks.
type ContentBlock struct {
	Kind      Kind
	MediaType string
	Data      string
	Text      string
	Type      string
}

// ImageBlock returns an image block carrying base64 data.
func ImageBlock(mediaType, data string) ContentBlock {
	return ContentBlock{Kind: KindImage, MediaType: mediaType, Data: data}
}

// TextBlock returns a text block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Kind: KindText, Text: text}
}

// Turn is a single message in the conversation.
type Turn struct {
	Role    Role           `json:"role"`
	Content []ContentBlock `json:"content"`
}

// Usage reports token counts for one model call.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// Response is a model reply as seen by the repair loop.
type Response struct {
	Content    []ContentBlock
	StopReason string
	Usage      Usage
}

// Text returns the first block's text if it is a text block.
func (r *Response) Text() (string, bool) {
	if r == nil || len(r.Content) == 0 || r.Content[0].Kind != KindText {
		return "", false
	}
	return r.Content[0].Text, true
}

// Conversation is an append-only sequence of turns.
type Conversation struct {
	turns []Turn
}

// MediaTypeFromPath maps a file extension to an image media type.
func MediaTypeFromPath(name string) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	mt, ok := extMediaTypes[ext]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedMediaType, ext)
	}
	return mt, nil
}

// Initialize seeds a conversation with a single user turn holding the image
// (base64 encoded here) followed by the instruction text.
func Initialize(image []byte, mediaType, instruction string) (*Conversation, error) {
	if !supportedMediaTypes[mediaType] {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMediaType, mediaType)
	}
	return &Conversation{turns: []Turn{{
		Role: RoleUser,
		Content: []ContentBlock{
			ImageBlock(mediaType, encodeBase64(image)),
			TextBlock(instruction),
		},
	}}}, nil
}

// NewPrompt returns a text-only single-turn conversation.
func NewPrompt(text string) *Conversation {
	return &Conversation{turns: []Turn{{
		Role:    RoleUser,
		Content: []ContentBlock{TextBlock(text)},
	}}}
}

// AppendRepairTurn records a failed reply and asks the model to fix it.
func (c *Conversation) AppendRepairTurn(assistantText, errorMessage string) {
	c.appendPair(assistantText, RepairPrompt(errorMessage))
}

// AppendRevisionTurn records an accepted reply followed by operator feedback.
func (c *Conversation) AppendRevisionTurn(assistantText, feedback string) {
	c.appendPair(assistantText, feedback)
}

func (c *Conversation) appendPair(assistantText, userText string) {
	c.turns = append(c.turns,
		Turn{Role: RoleAssistant, Content: []ContentBlock{TextBlock(assistantText)}},
		Turn{Role: RoleUser, Content: []ContentBlock{TextBlock(userText)}},
	)
}

// Turns returns a copy of the turn slice. Blocks are shared.
func (c *Conversation) Turns() []Turn {
	out := make([]Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

// Len returns the number of turns.
func (c *Conversation) Len() int { return len(c.turns) }

// Clone returns an independent copy suitable for handing to another goroutine.
func (c *Conversation) Clone() *Conversation {
	out := &Conversation{turns: make([]Turn, len(c.turns))}
	for i, t := range c.turns {
		blocks := make([]ContentBlock, len(t.Content))
		copy(blocks, t.Content)
		out.turns[i] = Turn{Role: t.Role, Content: blocks}
	}
	return out
}

// FromTurns rebuilds a conversation from persisted turns.
func FromTurns(turns []Turn) *Conversation {
	c := &Conversation{turns: make([]Turn, len(turns))}
	copy(c.turns, turns)
	return c
}
