package presenter

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petasbytes/fig2code/internal/conversation"
	"github.com/petasbytes/fig2code/internal/metrics"
	"github.com/petasbytes/fig2code/internal/runner"
	"github.com/petasbytes/fig2code/internal/session"
)

func TestConsole_ReportsAttemptsAndCost(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, "chart.png", metrics.DefaultPricing)

	usage := conversation.Usage{InputTokens: 1_000_000, OutputTokens: 0}
	c.AttemptStarted(0)
	c.AttemptFailed(runner.Attempt{Index: 0, Err: errors.New("Traceback\nplot.star:1: undefined: x"), Usage: usage})
	c.AttemptStarted(1)
	c.AttemptSucceeded(runner.Attempt{Index: 1, Usage: conversation.Usage{OutputTokens: 1_000_000}})

	out := buf.String()
	assert.Contains(t, out, "chart.png")
	assert.Contains(t, out, "attempt 1 failed")
	assert.Contains(t, out, "undefined: x")
	assert.Contains(t, out, "attempt 2 succeeded")
	assert.Contains(t, out, "$3.0000")
	assert.Contains(t, out, "$15.0000")
	assert.InDelta(t, 18.0, c.Total().USD, 1e-9)
}

func TestConsole_Summary(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, "", metrics.DefaultPricing)
	c.Summary("out", &session.Outcome{
		Artifact: "x.png",
		Record:   "x.json",
		Doc:      "def generate_figure(): ...",
		Result:   &runner.Result{Code: "plt.plot([1])\n", Attempts: 1},
	})
	out := buf.String()
	assert.Contains(t, out, "plt.plot([1])")
	assert.Contains(t, out, "generate_figure")
	assert.Contains(t, out, "out/x.png")
	assert.Contains(t, out, "out/x.json")
}

func TestClipKeepsTail(t *testing.T) {
	lines := clip("a\nb\nc\nd", 2)
	assert.Equal(t, []string{"... 2 lines omitted", "c", "d"}, lines)
	assert.Equal(t, []string{"one"}, clip("one\n", 5))
}

func TestInteractive_AfterSuccess(t *testing.T) {
	var out bytes.Buffer
	p := NewInteractive(strings.NewReader("make the bars red\n\n"), &out)
	p.Root = "out"
	ctx := context.Background()

	d, err := p.AfterSuccess(ctx, runner.Attempt{Artifact: "fig.png"})
	require.NoError(t, err)
	assert.True(t, d.Revise)
	assert.Equal(t, "make the bars red", d.Feedback)

	d, err = p.AfterSuccess(ctx, runner.Attempt{})
	require.NoError(t, err)
	assert.False(t, d.Revise)

	// Input exhausted: accept.
	d, err = p.AfterSuccess(ctx, runner.Attempt{})
	require.NoError(t, err)
	assert.False(t, d.Revise)
	assert.Contains(t, out.String(), "Satisfied?")
	assert.Contains(t, out.String(), "Figure written to out/fig.png")
}

func TestInteractive_AfterFailure(t *testing.T) {
	p := NewInteractive(strings.NewReader(""), io.Discard)
	ok, err := p.AfterFailure(context.Background(), runner.Attempt{})
	require.NoError(t, err)
	assert.True(t, ok, "repairs are automatic by default")

	p = NewInteractive(strings.NewReader("n\n"), io.Discard)
	p.ConfirmRepairs = true
	ok, err = p.AfterFailure(context.Background(), runner.Attempt{})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInteractive_HonoursContext(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	p := NewInteractive(r, io.Discard)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.AfterSuccess(ctx, runner.Attempt{})
	assert.ErrorIs(t, err, context.Canceled)
}
