package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// compiled holds compiled schemas by Schema.Name. Registered schemas are
// stored at package init; anything else is compiled on first use.
var compiled sync.Map // map[string]*jsonschema.Schema

// MustRegisterSchema is RegisterSchema for package-level schema variables.
// It panics when the schema is rejected.
func MustRegisterSchema(s *Schema) *Schema {
	if err := RegisterSchema(s); err != nil {
		panic(err)
	}
	return s
}

// RegisterSchema checks s with CheckStrict, compiles it and caches the
// compiled form for response validation.
func RegisterSchema(s *Schema) error {
	if err := CheckStrict(s); err != nil {
		return err
	}
	c, err := compileSchema(s)
	if err != nil {
		return fmt.Errorf("schema %q: %w", s.Name, err)
	}
	compiled.Store(s.Name, c)
	return nil
}

// CheckStrict reports where s leaves the subset that strict json_schema
// endpoints accept: every object must set additionalProperties to false
// and list each of its properties, and nothing else, as required.
func CheckStrict(s *Schema) error {
	if s == nil || s.Name == "" {
		return errors.New("schema must have a name")
	}
	if err := checkStrictNode(s.Definition, "$"); err != nil {
		return fmt.Errorf("schema %q: %w", s.Name, err)
	}
	return nil
}

func checkStrictNode(node map[string]any, path string) error {
	if node["type"] == "object" {
		if ap, ok := node["additionalProperties"].(bool); !ok || ap {
			return fmt.Errorf("%s: additionalProperties must be false", path)
		}

		props, _ := node["properties"].(map[string]any)
		required := requiredNames(node)
		for _, name := range required {
			if _, ok := props[name]; !ok {
				return fmt.Errorf("%s: required %q is not a property", path, name)
			}
		}
		for _, name := range slices.Sorted(maps.Keys(props)) {
			if !slices.Contains(required, name) {
				return fmt.Errorf("%s: property %q must be required", path, name)
			}
			child, ok := props[name].(map[string]any)
			if !ok {
				return fmt.Errorf("%s.%s: property schema must be an object", path, name)
			}
			if err := checkStrictNode(child, path+"."+name); err != nil {
				return err
			}
		}
	}

	if items, ok := node["items"].(map[string]any); ok {
		return checkStrictNode(items, path+"[]")
	}
	return nil
}

func requiredNames(node map[string]any) []string {
	switch req := node["required"].(type) {
	case []string:
		return req
	case []any:
		names := make([]string, 0, len(req))
		for _, r := range req {
			if s, ok := r.(string); ok {
				names = append(names, s)
			}
		}
		return names
	}
	return nil
}

// validateResponse checks raw model output against schema. A nil schema
// accepts anything. Failures are *ErrInvalidResponse.
func validateResponse(schema *Schema, raw json.RawMessage) error {
	if schema == nil {
		return nil
	}

	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return &ErrInvalidResponse{Content: raw, Err: fmt.Errorf("invalid JSON: %w", err)}
	}

	c, err := lookupSchema(schema)
	if err != nil {
		return &ErrInvalidResponse{Content: raw, Err: fmt.Errorf("compile schema %q: %w", schema.Name, err)}
	}
	if err := c.Validate(parsed); err != nil {
		return &ErrInvalidResponse{Content: raw, Err: fmt.Errorf("%s: %w", schema.Name, err)}
	}
	return nil
}

func lookupSchema(schema *Schema) (*jsonschema.Schema, error) {
	if c, ok := compiled.Load(schema.Name); ok {
		return c.(*jsonschema.Schema), nil
	}
	c, err := compileSchema(schema)
	if err != nil {
		return nil, err
	}
	compiled.Store(schema.Name, c)
	return c, nil
}

func compileSchema(schema *Schema) (*jsonschema.Schema, error) {
	// The compiler wants plain decoded JSON, not Go maps with typed slices.
	b, err := json.Marshal(schema.Definition)
	if err != nil {
		return nil, fmt.Errorf("marshal definition: %w", err)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("parse definition: %w", err)
	}

	url := "schema://" + schema.Name + ".json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, doc); err != nil {
		return nil, err
	}
	return c.Compile(url)
}
