package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/petasbytes/fig2code/internal/conversation"
	"github.com/petasbytes/fig2code/internal/docgen"
	"github.com/petasbytes/fig2code/internal/fsops"
	"github.com/petasbytes/fig2code/internal/plotting"
	"github.com/petasbytes/fig2code/internal/runner"
	"github.com/petasbytes/fig2code/memory"
)

const (
	goodReply = "```python\nimport matplotlib.pyplot as plt\nplt.plot([1, 2, 3], label='a')\nplt.legend()\n```"
	badReply  = "```python\nplt.plot(missing)\n```"
)

// turnInvoker answers by conversation length, so it is safe to share.
type turnInvoker struct {
	mu      sync.Mutex
	byTurns map[int]string
	err     error
	calls   int
}

func (s *turnInvoker) Invoke(_ context.Context, conv *conversation.Conversation, _ int64) (*conversation.Response, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	reply, ok := s.byTurns[conv.Len()]
	if !ok {
		reply = badReply
	}
	return &conversation.Response{
		Content: []conversation.ContentBlock{conversation.TextBlock(reply)},
		Usage:   conversation.Usage{InputTokens: 1000, OutputTokens: 100},
	}, nil
}

type docFunc func(ctx context.Context, code string) (string, error)

func (f docFunc) Document(ctx context.Context, code string) (string, error) { return f(ctx, code) }

var stamp = time.Date(2025, 1, 2, 3, 4, 0, 0, time.UTC)

func newService(t *testing.T, inv runner.Invoker, doc docFunc) *Service {
	t.Helper()
	store, err := fsops.NewStore(t.TempDir())
	require.NoError(t, err)
	var g docgen.Generator
	if doc != nil {
		g = doc
	}
	s := New(inv, store, g, Options{MaxRetries: 3}, zap.NewNop())
	s.now = func() time.Time { return stamp }
	return s
}

func TestGenerate_RepairsThenPersists(t *testing.T) {
	inv := &turnInvoker{byTurns: map[int]string{3: goodReply}}
	s := newService(t, inv, func(_ context.Context, code string) (string, error) {
		return "def generate_figure():\n" + code, nil
	})

	out, err := s.Generate(context.Background(), Request{ImageName: "uploads/chart.PNG", Image: []byte("img")})
	require.NoError(t, err)
	assert.Equal(t, 2, inv.calls)
	assert.Equal(t, "20250102_0304_chart.json", out.Record)
	assert.Equal(t, "20250102_0304_chart.png", out.Artifact)
	assert.NotEmpty(t, out.RunID)
	assert.Equal(t, 0, s.Runtime().Open())

	png, err := os.ReadFile(filepath.Join(s.store.Root(), out.Artifact))
	require.NoError(t, err)
	assert.Equal(t, "\x89PNG", string(png[:4]))

	rec, err := memory.LoadRecord(filepath.Join(s.store.Root(), out.Record))
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Contains(t, rec.Code, "plt.plot([1, 2, 3]")
	assert.Contains(t, rec.Doc, "generate_figure")
	assert.Len(t, rec.ConversationHistory, 3)
	assert.Equal(t, 2, rec.Attempts)
	assert.Equal(t, int64(2000), rec.Usage.InputTokens)
	assert.InDelta(t, 0.009, rec.CostUSD, 1e-9)
	assert.Equal(t, out.RunID, rec.RunID)
}

func TestGenerate_DocFailureStillSaves(t *testing.T) {
	inv := &turnInvoker{byTurns: map[int]string{1: goodReply}}
	s := newService(t, inv, func(context.Context, string) (string, error) {
		return "", errors.New("doc backend down")
	})

	out, err := s.Generate(context.Background(), Request{ImageName: "a.jpg", Image: []byte("img")})
	require.NoError(t, err)
	assert.Empty(t, out.Doc)

	rec, err := memory.LoadRecord(filepath.Join(s.store.Root(), out.Record))
	require.NoError(t, err)
	assert.Empty(t, rec.Doc)
	assert.Len(t, rec.ConversationHistory, 1)
}

func TestGenerate_Failures(t *testing.T) {
	cases := []struct {
		name  string
		inv   *turnInvoker
		req   Request
		check func(t *testing.T, err error)
		calls int
	}{
		{
			name:  "unsupported media type",
			inv:   &turnInvoker{},
			req:   Request{ImageName: "scan.bmp", Image: []byte("x")},
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, conversation.ErrUnsupportedMediaType) },
			calls: 0,
		},
		{
			name: "transport",
			inv:  &turnInvoker{err: errors.New("connection refused")},
			req:  Request{ImageName: "a.png", Image: []byte("x")},
			check: func(t *testing.T, err error) {
				var te *runner.TransportError
				assert.ErrorAs(t, err, &te)
			},
			calls: 1,
		},
		{
			name:  "exhausted",
			inv:   &turnInvoker{},
			req:   Request{ImageName: "a.webp", Image: []byte("x")},
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, runner.ErrRetriesExhausted) },
			calls: 3,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newService(t, tc.inv, nil)
			out, err := s.Generate(context.Background(), tc.req)
			require.Error(t, err)
			assert.Nil(t, out)
			tc.check(t, err)
			assert.Equal(t, tc.calls, tc.inv.calls)
			assert.Equal(t, 0, s.Runtime().Open())

			names, err := s.store.ListFiles("", "")
			require.NoError(t, err)
			assert.Empty(t, names, "nothing is persisted for a failed session")
		})
	}
}

func TestGenerate_MediaTypeOverride(t *testing.T) {
	inv := &turnInvoker{byTurns: map[int]string{1: goodReply}}
	s := newService(t, inv, nil)
	_, err := s.Generate(context.Background(), Request{ImageName: "upload", MediaType: "image/gif", Image: []byte("x")})
	require.NoError(t, err)
}

func TestGenerate_UnknownFormatMakesNoCalls(t *testing.T) {
	inv := &turnInvoker{byTurns: map[int]string{1: goodReply}}
	s := newService(t, inv, nil)
	s.opts.Format = "bmp"

	out, err := s.Generate(context.Background(), Request{ImageName: "a.png", Image: []byte("x")})
	require.Error(t, err)
	assert.Nil(t, out)
	assert.ErrorIs(t, err, plotting.ErrUnsupportedFormat)
	assert.Zero(t, inv.calls, "the model must not be called for a bad format")
	assert.Equal(t, 0, s.Runtime().Open())
}
