// Package structured obtains schema-conforming JSON from a language model.
//
// A [Schema] describes the expected shape of a reply. [Generate] asks the
// model for a JSON object, extracts it from whatever prose surrounds it,
// validates it against the schema and, on failure, re-prompts with a
// corrective message until the attempt budget is used. [SafeGenerate] is the
// looser variant that wraps the reply in an {"output": ...} envelope and
// falls back to a fail-safe value instead of returning an error.
package structured

import "sort"

// Kind is the JSON type a [Schema] node accepts.
type Kind int

const (
	KindString Kind = iota
	KindNumber
	KindInteger
	KindBoolean
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindInteger:
		return "integer"
	case KindBoolean:
		return "boolean"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	}
	return "unknown"
}

// Schema is a recursive description of a JSON value. Only the fields
// relevant to Kind are consulted.
type Schema struct {
	Kind        Kind
	Description string

	// Enum restricts a string to the listed values.
	Enum []string

	// Minimum and Maximum bound a number or integer (inclusive). For arrays
	// they bound the element count.
	Minimum *float64
	Maximum *float64

	// Items describes every element of an array.
	Items *Schema

	// Properties describes the members of an object. Members not listed are
	// allowed and not checked.
	Properties map[string]*Schema

	// Required lists object members that must be present.
	Required []string
}

func String() *Schema  { return &Schema{Kind: KindString} }
func Number() *Schema  { return &Schema{Kind: KindNumber} }
func Integer() *Schema { return &Schema{Kind: KindInteger} }
func Boolean() *Schema { return &Schema{Kind: KindBoolean} }

// Array returns an array schema whose elements match items. A nil items
// accepts any element.
func Array(items *Schema) *Schema { return &Schema{Kind: KindArray, Items: items} }

// Object returns an object schema with the given properties. Nothing is
// required until [Schema.Require] is called.
func Object(props map[string]*Schema) *Schema {
	return &Schema{Kind: KindObject, Properties: props}
}

// Between sets an inclusive range.
func (s *Schema) Between(min, max float64) *Schema {
	s.Minimum, s.Maximum = &min, &max
	return s
}

// AtLeast sets an inclusive lower bound.
func (s *Schema) AtLeast(min float64) *Schema {
	s.Minimum = &min
	return s
}

// OneOf restricts a string schema to values.
func (s *Schema) OneOf(values ...string) *Schema {
	s.Enum = append(s.Enum, values...)
	return s
}

// Require marks object members as required.
func (s *Schema) Require(names ...string) *Schema {
	s.Required = append(s.Required, names...)
	return s
}

// Describe sets the description shown to the model.
func (s *Schema) Describe(text string) *Schema {
	s.Description = text
	return s
}

// JSONSchema renders s as a JSON Schema document. The result is suitable
// both for prompting and as function parameters.
func (s *Schema) JSONSchema() map[string]any {
	if s == nil {
		return map[string]any{}
	}
	out := map[string]any{"type": s.Kind.String()}
	if s.Description != "" {
		out["description"] = s.Description
	}
	switch s.Kind {
	case KindString:
		if len(s.Enum) > 0 {
			enum := make([]any, len(s.Enum))
			for i, v := range s.Enum {
				enum[i] = v
			}
			out["enum"] = enum
		}
	case KindNumber, KindInteger:
		if s.Minimum != nil {
			out["minimum"] = *s.Minimum
		}
		if s.Maximum != nil {
			out["maximum"] = *s.Maximum
		}
	case KindArray:
		if s.Items != nil {
			out["items"] = s.Items.JSONSchema()
		}
		if s.Minimum != nil {
			out["minItems"] = int(*s.Minimum)
		}
		if s.Maximum != nil {
			out["maxItems"] = int(*s.Maximum)
		}
	case KindObject:
		props := make(map[string]any, len(s.Properties))
		for name, p := range s.Properties {
			props[name] = p.JSONSchema()
		}
		out["properties"] = props
		if len(s.Required) > 0 {
			req := append([]string(nil), s.Required...)
			sort.Strings(req)
			out["required"] = req
		}
	}
	return out
}
