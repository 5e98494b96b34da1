package conversation

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestMediaTypeFromPath(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"plot.png", "image/png"},
		{"PLOT.PNG", "image/png"},
		{"a/b/c.jpg", "image/jpeg"},
		{"c.JPEG", "image/jpeg"},
		{"anim.gif", "image/gif"},
		{"x.webp", "image/webp"},
	}
	for _, tc := range cases {
		got, err := MediaTypeFromPath(tc.name)
		require.NoError(t, err, tc.name)
		assert.Equal(t, tc.want, got, tc.name)
	}

	for _, bad := range []string{"doc.pdf", "noext", "img.bmp", "img.png.txt"} {
		_, err := MediaTypeFromPath(bad)
		assert.True(t, errors.Is(err, ErrUnsupportedMediaType), bad)
	}
}

func TestInitialize(t *testing.T) {
	c, err := Initialize([]byte("abc"), "image/png", "make it")
	require.NoError(t, err)
	require.Equal(t, 1, c.Len())

	turn := c.Turns()[0]
	assert.Equal(t, RoleUser, turn.Role)
	require.Len(t, turn.Content, 2)
	assert.Equal(t, KindImage, turn.Content[0].Kind)
	assert.Equal(t, "image/png", turn.Content[0].MediaType)
	assert.Equal(t, "YWJj", turn.Content[0].Data)
	assert.Equal(t, TextBlock("make it"), turn.Content[1])
}

func TestInitializeRejectsMediaType(t *testing.T) {
	_, err := Initialize([]byte("abc"), "application/pdf", "x")
	require.ErrorIs(t, err, ErrUnsupportedMediaType)
}

func TestAppendRepairTurn(t *testing.T) {
	c, err := Initialize([]byte("x"), "image/jpeg", "go")
	require.NoError(t, err)

	c.AppendRepairTurn("```python\nbad()\n```", "name 'bad' is not defined")
	require.Equal(t, 3, c.Len())

	turns := c.Turns()
	assert.Equal(t, RoleAssistant, turns[1].Role)
	assert.Equal(t, []ContentBlock{TextBlock("```python\nbad()\n```")}, turns[1].Content)
	assert.Equal(t, RoleUser, turns[2].Role)
	require.Len(t, turns[2].Content, 1)
	assert.Contains(t, turns[2].Content[0].Text, "name 'bad' is not defined")
	assert.Equal(t, RepairPrompt("name 'bad' is not defined"), turns[2].Content[0].Text)
}

func TestAppendRevisionTurn(t *testing.T) {
	c := NewPrompt("hello")
	c.AppendRevisionTurn("code", "use red bars")
	turns := c.Turns()
	require.Len(t, turns, 3)
	assert.Equal(t, "use red bars", turns[2].Content[0].Text)
}

func TestTurnsReturnsCopy(t *testing.T) {
	c := NewPrompt("hello")
	turns := c.Turns()
	turns[0].Role = RoleAssistant
	assert.Equal(t, RoleUser, c.Turns()[0].Role)
}

func TestCloneIsIndependent(t *testing.T) {
	c := NewPrompt("hello")
	cl := c.Clone()
	c.AppendRepairTurn("a", "b")
	assert.Equal(t, 1, cl.Len())
	assert.Equal(t, 3, c.Len())
}

func TestRepairPromptEmbedsMessage(t *testing.T) {
	p := RepairPrompt("ZeroDivisionError")
	assert.Contains(t, p, "ZeroDivisionError")
	assert.Contains(t, p, "fix")
}

func TestJSONLayout(t *testing.T) {
	c, err := Initialize([]byte("abc"), "image/webp", "describe")
	require.NoError(t, err)
	c.AppendRepairTurn("reply", "boom")

	b, err := json.Marshal(c)
	require.NoError(t, err)

	doc := gjson.ParseBytes(b)
	assert.Equal(t, "user", doc.Get("0.role").String())
	assert.Equal(t, "image", doc.Get("0.content.0.type").String())
	assert.Equal(t, "base64", doc.Get("0.content.0.source.type").String())
	assert.Equal(t, "image/webp", doc.Get("0.content.0.source.media_type").String())
	assert.Equal(t, "YWJj", doc.Get("0.content.0.source.data").String())
	assert.Equal(t, "text", doc.Get("0.content.1.type").String())
	assert.Equal(t, "describe", doc.Get("0.content.1.text").String())
	assert.Equal(t, "assistant", doc.Get("1.role").String())
	assert.Equal(t, "reply", doc.Get("1.content.0.text").String())

	var back Conversation
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, c.Turns(), back.Turns())
}

func TestUnmarshalUnknownBlock(t *testing.T) {
	var b ContentBlock
	require.NoError(t, json.Unmarshal([]byte(`{"type":"tool_use","id":"x"}`), &b))
	assert.Equal(t, KindOther, b.Kind)
	assert.Equal(t, "tool_use", b.Type)
}

func TestResponseText(t *testing.T) {
	var nilResp *Response
	_, ok := nilResp.Text()
	assert.False(t, ok)

	_, ok = (&Response{}).Text()
	assert.False(t, ok)

	_, ok = (&Response{Content: []ContentBlock{{Kind: KindOther, Type: "thinking"}}}).Text()
	assert.False(t, ok)

	s, ok := (&Response{Content: []ContentBlock{TextBlock("hi")}}).Text()
	assert.True(t, ok)
	assert.Equal(t, "hi", s)
}
