package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// URL identifies the compiled document inside the jsonschema compiler.
func (s *Schema) URL() string {
	return "https://envforge.ai/schemas/" + s.Env + ".json"
}

// JSONSchema renders the shape constraints as a draft 2020-12 document.
// Initial values, multisets and pos bounds are not expressible there and are
// checked in Go by the structural validator.
func (s *Schema) JSONSchema() map[string]any {
	props := map[string]any{}
	required := []string{}
	for _, ns := range s.NamespaceNames() {
		fields := map[string]any{}
		var req []string
		for _, p := range s.FieldPaths() {
			fns, key, _ := SplitPath(p)
			if fns != ns {
				continue
			}
			f := s.Namespaces[ns][key]
			fields[key] = f.jsonSchema()
			if f.Required {
				req = append(req, key)
			}
		}
		doc := map[string]any{"type": "object", "properties": fields, "additionalProperties": false}
		if len(req) > 0 {
			doc["required"] = req
		}
		props[ns] = doc
		required = append(required, ns)
	}
	return map[string]any{
		"type":                 "object",
		"required":             required,
		"properties":           props,
		"additionalProperties": false,
	}
}

func (f Field) jsonSchema() map[string]any {
	switch f.Type {
	case TypeList:
		doc := map[string]any{"type": "array", "items": elemSchema(f.Elem, f)}
		if f.Len > 0 {
			doc["minItems"] = f.Len
			doc["maxItems"] = f.Len
		}
		return doc
	case TypeGrid:
		row := map[string]any{
			"type":     "array",
			"minItems": f.Cols,
			"maxItems": f.Cols,
			"items":    elemSchema(f.Elem, f),
		}
		return map[string]any{
			"type":     "array",
			"minItems": f.Rows,
			"maxItems": f.Rows,
			"items":    row,
		}
	case TypePos:
		return map[string]any{
			"type":     "array",
			"minItems": 2,
			"maxItems": 2,
			"items":    map[string]any{"type": "integer", "minimum": 0},
		}
	case TypeMap:
		return map[string]any{"type": "object"}
	}
	return elemSchema(f.Type, f)
}

func elemSchema(t FieldType, f Field) map[string]any {
	doc := map[string]any{}
	switch t {
	case TypeInt:
		doc["type"] = "integer"
	case TypeFloat:
		doc["type"] = "number"
	case TypeString:
		doc["type"] = "string"
	case TypeBool:
		doc["type"] = "boolean"
	default:
		return doc
	}
	if t == TypeString && len(f.Enum) > 0 {
		doc["enum"] = f.Enum
	}
	if t == TypeInt || t == TypeFloat {
		if f.Min != nil {
			doc["minimum"] = *f.Min
		}
		if f.Max != nil {
			doc["maximum"] = *f.Max
		}
	}
	return doc
}

// Compile builds the jsonschema validator for this schema.
func (s *Schema) Compile() (*jsonschema.Schema, error) {
	doc, err := json.Marshal(s.JSONSchema())
	if err != nil {
		return nil, fmt.Errorf("schema %s: render: %w", s.Env, err)
	}
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(s.URL(), bytes.NewReader(doc)); err != nil {
		return nil, fmt.Errorf("schema %s: add resource: %w", s.Env, err)
	}
	compiled, err := c.Compile(s.URL())
	if err != nil {
		return nil, fmt.Errorf("schema %s: compile: %w", s.Env, err)
	}
	return compiled, nil
}
