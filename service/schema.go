package service

import (
	"fmt"
	"math"
	"strings"

	"github.com/sashabaranov/go-openai/jsonschema"
)

type Kind string

const (
	KindNumber  Kind = "number"
	KindInteger Kind = "integer"
	KindString  Kind = "string"
	KindBoolean Kind = "boolean"
)

type Field struct {
	Name        string
	Kind        Kind
	Description string
	Required    bool
}

// Schema is the argument contract of a tool: field name to expected kind.
type Schema struct {
	Fields []Field
}

func NewSchema(fields ...Field) Schema {
	return Schema{Fields: fields}
}

// Validate checks args against the schema. Unknown fields are rejected.
func (s Schema) Validate(args map[string]any) error {
	var problems []string
	known := make(map[string]struct{}, len(s.Fields))
	for _, field := range s.Fields {
		known[field.Name] = struct{}{}
		value, exist := args[field.Name]
		if !exist || value == nil {
			if field.Required {
				problems = append(problems, fmt.Sprintf("missing required field %q", field.Name))
			}
			continue
		}
		if !field.Kind.matches(value) {
			problems = append(problems, fmt.Sprintf("field %q must be a %s", field.Name, field.Kind))
		}
	}
	for name := range args {
		if _, ok := known[name]; !ok {
			problems = append(problems, fmt.Sprintf("unexpected field %q", name))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%s", strings.Join(problems, "; "))
	}
	return nil
}

func (k Kind) matches(value any) bool {
	switch k {
	case KindNumber:
		f, ok := value.(float64)
		return ok && !math.IsNaN(f) && !math.IsInf(f, 0)
	case KindInteger:
		f, ok := value.(float64)
		return ok && f == math.Trunc(f) && !math.IsInf(f, 0)
	case KindString:
		_, ok := value.(string)
		return ok
	case KindBoolean:
		_, ok := value.(bool)
		return ok
	}
	return false
}

// Definition renders the schema as a JSON schema object.
func (s Schema) Definition() jsonschema.Definition {
	def := jsonschema.Definition{
		Type:       jsonschema.Object,
		Properties: map[string]jsonschema.Definition{},
	}
	for _, field := range s.Fields {
		def.Properties[field.Name] = jsonschema.Definition{
			Type:        jsonschema.DataType(field.Kind),
			Description: field.Description,
		}
		if field.Required {
			def.Required = append(def.Required, field.Name)
		}
	}
	return def
}
