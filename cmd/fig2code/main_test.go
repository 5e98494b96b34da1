package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petasbytes/fig2code/internal/conversation"
	"github.com/petasbytes/fig2code/memory"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("ANTHROPIC_API_KEY", "")
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeRecord(t *testing.T) string {
	t.Helper()
	conv, err := conversation.Initialize([]byte("img"), "image/png", "recreate")
	require.NoError(t, err)
	conv.AppendRepairTurn("bad", "undefined: x")
	rec := &memory.Record{
		Code:                "plt.plot([1, 2])",
		Doc:                 "def generate_figure(): ...",
		ConversationHistory: conv.Turns(),
		Image:               "chart.png",
		CreatedAt:           time.Date(2025, 5, 6, 7, 8, 0, 0, time.UTC),
		Attempts:            2,
	}
	p := filepath.Join(t.TempDir(), "rec.json")
	require.NoError(t, memory.SaveRecord(p, rec))
	return p
}

func TestShow_WholeRecord(t *testing.T) {
	p := writeRecord(t)
	out, err := execute(t, "show", p)
	require.NoError(t, err)
	assert.Contains(t, out, "chart.png")
	assert.Contains(t, out, "turns:     3")
	assert.Contains(t, out, "plt.plot([1, 2])")
	assert.Contains(t, out, "generate_figure")
}

func TestShow_Field(t *testing.T) {
	p := writeRecord(t)
	cases := []struct {
		field string
		want  string
	}{
		{"code", "plt.plot([1, 2])\n"},
		{"conversation_history.#", "3\n"},
		{"conversation_history.2.content.0.text", conversation.RepairPrompt("undefined: x") + "\n"},
		{"conversation_history.0.content.0.source.media_type", "image/png\n"},
	}
	for _, tc := range cases {
		t.Run(tc.field, func(t *testing.T) {
			out, err := execute(t, "show", p, "--field", tc.field)
			require.NoError(t, err)
			assert.Equal(t, tc.want, out)
		})
	}

	_, err := execute(t, "show", p, "--field", "nope")
	assert.ErrorContains(t, err, "not found")
}

func TestShow_InvalidJSON(t *testing.T) {
	p := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(p, []byte("{"), 0o644))
	_, err := execute(t, "show", p)
	assert.ErrorContains(t, err, "not valid JSON")
}

func TestSchemaCommand(t *testing.T) {
	out, err := execute(t, "schema")
	require.NoError(t, err)
	var schema map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &schema))
	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "conversation_history")
}

func TestRun_RequiresAPIKey(t *testing.T) {
	img := filepath.Join(t.TempDir(), "chart.png")
	require.NoError(t, os.WriteFile(img, []byte("img"), 0o644))
	_, err := execute(t, "run", img)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "ANTHROPIC_API_KEY"), err.Error())
}

func TestRun_BadConfigFails(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "c.toml")
	require.NoError(t, os.WriteFile(cfg, []byte("max_retries = 0\n"), 0o644))
	_, err := execute(t, "--config", cfg, "schema")
	assert.ErrorContains(t, err, "max_retries")
}
