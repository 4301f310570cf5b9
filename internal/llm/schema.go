package llm

import (
	"encoding/json"
	"strings"

	"google.golang.org/genai"
)

// Schema is a small JSON-schema subset that every provider can express.
type Schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Required    []string           `json:"required,omitempty"`
}

// Object builds an object schema whose listed properties are all required.
func Object(props map[string]*Schema, required ...string) *Schema {
	return &Schema{Type: "object", Properties: props, Required: required}
}

// ArrayOf builds an array schema.
func ArrayOf(items *Schema) *Schema { return &Schema{Type: "array", Items: items} }

// String, Integer, Number and Boolean build scalar schemas.
func String(desc string) *Schema  { return &Schema{Type: "string", Description: desc} }
func Integer(desc string) *Schema { return &Schema{Type: "integer", Description: desc} }
func Number(desc string) *Schema  { return &Schema{Type: "number", Description: desc} }
func Boolean(desc string) *Schema { return &Schema{Type: "boolean", Description: desc} }

// JSON returns the schema as a JSON-schema document.
func (s *Schema) JSON() json.RawMessage {
	if s == nil {
		return nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil
	}
	return b
}

var genaiTypes = map[string]genai.Type{
	"object":  genai.TypeObject,
	"array":   genai.TypeArray,
	"string":  genai.TypeString,
	"integer": genai.TypeInteger,
	"number":  genai.TypeNumber,
	"boolean": genai.TypeBoolean,
}

// toGenai converts a schema to the Gen AI SDK representation.
func (s *Schema) toGenai() *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Type:        genaiTypes[strings.ToLower(s.Type)],
		Description: s.Description,
		Required:    s.Required,
		Items:       s.Items.toGenai(),
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for k, v := range s.Properties {
			out.Properties[k] = v.toGenai()
		}
	}
	return out
}
