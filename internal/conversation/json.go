package conversation

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// MarshalJSON encodes a block in the Messages API layout.
func (b ContentBlock) MarshalJSON() ([]byte, error) {
	var (
		out []byte
		err error
	)
	switch b.Kind {
	case KindImage:
		out, err = sjson.SetBytes([]byte(`{}`), "type", "image")
		if err == nil {
			out, err = sjson.SetBytes(out, "source.type", "base64")
		}
		if err == nil {
			out, err = sjson.SetBytes(out, "source.media_type", b.MediaType)
		}
		if err == nil {
			out, err = sjson.SetBytes(out, "source.data", b.Data)
		}
	case KindText:
		out, err = sjson.SetBytes([]byte(`{}`), "type", "text")
		if err == nil {
			out, err = sjson.SetBytes(out, "text", b.Text)
		}
	default:
		out, err = sjson.SetBytes([]byte(`{}`), "type", b.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s block: %w", b.Kind, err)
	}
	return out, nil
}

// UnmarshalJSON decodes a block from the Messages API layout.
func (b *ContentBlock) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("decode block: invalid json")
	}
	v := gjson.ParseBytes(data)
	switch typ := v.Get("type").String(); typ {
	case "image":
		*b = ImageBlock(v.Get("source.media_type").String(), v.Get("source.data").String())
	case "text":
		*b = TextBlock(v.Get("text").String())
	default:
		*b = ContentBlock{Kind: KindOther, Type: typ}
	}
	return nil
}

// MarshalJSON encodes the conversation as an array of turns.
func (c *Conversation) MarshalJSON() ([]byte, error) {
	if c == nil {
		return []byte("[]"), nil
	}
	turns := c.turns
	if turns == nil {
		turns = []Turn{}
	}
	return json.Marshal(turns)
}

// UnmarshalJSON decodes an array of turns.
func (c *Conversation) UnmarshalJSON(data []byte) error {
	var turns []Turn
	if err := json.Unmarshal(data, &turns); err != nil {
		return err
	}
	c.turns = turns
	return nil
}
