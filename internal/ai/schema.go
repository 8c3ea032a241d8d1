package ai

import (
	"fmt"

	"google.golang.org/genai"
)

// Type is a JSON schema primitive.
type Type string

const (
	TypeObject  Type = "object"
	TypeArray   Type = "array"
	TypeString  Type = "string"
	TypeInteger Type = "integer"
	TypeNumber  Type = "number"
	TypeBoolean Type = "boolean"
)

// Schema describes the structure a generation call must return.
// Name identifies the request kind and is not sent to providers.
type Schema struct {
	Name        string
	Type        Type
	Description string
	Properties  map[string]*Schema
	Items       *Schema
	Required    []string
}

// Validate checks that v contains every required top-level property.
func (s *Schema) Validate(v Value) error {
	if s == nil {
		return nil
	}
	for _, key := range s.Required {
		if val, ok := v[key]; !ok || val == nil {
			return fmt.Errorf("%w: missing required field %q", ErrSchemaMismatch, key)
		}
	}
	return nil
}

// JSONSchema renders s as a JSON schema document.
func (s *Schema) JSONSchema() map[string]any {
	if s == nil {
		return nil
	}

	out := map[string]any{"type": string(s.Type)}
	if s.Description != "" {
		out["description"] = s.Description
	}
	if len(s.Properties) > 0 {
		props := make(map[string]any, len(s.Properties))
		for name, prop := range s.Properties {
			props[name] = prop.JSONSchema()
		}
		out["properties"] = props
	}
	if s.Items != nil {
		out["items"] = s.Items.JSONSchema()
	}
	if len(s.Required) > 0 {
		out["required"] = s.Required
	}
	return out
}

// genaiSchema converts s into the Gemini response schema.
func (s *Schema) genaiSchema() *genai.Schema {
	if s == nil {
		return nil
	}

	out := &genai.Schema{
		Type:        genaiType(s.Type),
		Description: s.Description,
		Required:    s.Required,
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = prop.genaiSchema()
		}
	}
	if s.Items != nil {
		out.Items = s.Items.genaiSchema()
	}
	return out
}

func genaiType(t Type) genai.Type {
	switch t {
	case TypeObject:
		return genai.TypeObject
	case TypeArray:
		return genai.TypeArray
	case TypeInteger:
		return genai.TypeInteger
	case TypeNumber:
		return genai.TypeNumber
	case TypeBoolean:
		return genai.TypeBoolean
	default:
		return genai.TypeString
	}
}
