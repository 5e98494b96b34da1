package memory

import (
	"reflect"

	"github.com/invopop/jsonschema"

	"github.com/petasbytes/fig2code/internal/conversation"
)

// Schema returns the JSON Schema of Record with definitions inlined.
func Schema() *jsonschema.Schema {
	r := jsonschema.Reflector{
		DoNotReference: true,
		Mapper:         mapBlock,
	}
	s := r.Reflect(&Record{})
	s.Title = "fig2code session record"
	return s
}

var blockType = reflect.TypeOf(conversation.ContentBlock{})

// mapBlock describes ContentBlock by its wire layout, not its Go fields.
func mapBlock(t reflect.Type) *jsonschema.Schema {
	if t != blockType {
		return nil
	}
	source := jsonschema.NewProperties()
	source.Set("type", &jsonschema.Schema{Type: "string", Enum: []any{"base64"}})
	source.Set("media_type", &jsonschema.Schema{Type: "string"})
	source.Set("data", &jsonschema.Schema{Type: "string", Description: "Base64 image bytes."})

	props := jsonschema.NewProperties()
	props.Set("type", &jsonschema.Schema{Type: "string", Enum: []any{"image", "text"}})
	props.Set("text", &jsonschema.Schema{Type: "string"})
	props.Set("source", &jsonschema.Schema{Type: "object", Properties: source})
	return &jsonschema.Schema{
		Type:       "object",
		Properties: props,
		Required:   []string{"type"},
	}
}
