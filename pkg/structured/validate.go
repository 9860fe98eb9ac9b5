package structured

import (
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/MrWong99/llmgate/pkg/llm"
)

// Validate checks value, as produced by encoding/json decoding into any,
// against s and returns every violation found. A nil schema accepts
// anything.
func Validate(s *Schema, value any) []llm.Violation {
	var out []llm.Violation
	validate(s, value, "$", &out)
	return out
}

func validate(s *Schema, value any, path string, out *[]llm.Violation) {
	if s == nil {
		return
	}
	add := func(format string, args ...any) {
		*out = append(*out, llm.Violation{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	switch s.Kind {
	case KindString:
		v, ok := value.(string)
		if !ok {
			add("expected string, got %s", typeName(value))
			return
		}
		if len(s.Enum) > 0 && !slices.Contains(s.Enum, v) {
			add("value %q not one of %v", v, s.Enum)
		}

	case KindNumber, KindInteger:
		v, ok := value.(float64)
		if !ok {
			add("expected %s, got %s", s.Kind, typeName(value))
			return
		}
		if s.Kind == KindInteger && v != math.Trunc(v) {
			add("expected integer, got %v", v)
		}
		if s.Minimum != nil && v < *s.Minimum {
			add("value %v below minimum %v", v, *s.Minimum)
		}
		if s.Maximum != nil && v > *s.Maximum {
			add("value %v above maximum %v", v, *s.Maximum)
		}

	case KindBoolean:
		if _, ok := value.(bool); !ok {
			add("expected boolean, got %s", typeName(value))
		}

	case KindArray:
		v, ok := value.([]any)
		if !ok {
			add("expected array, got %s", typeName(value))
			return
		}
		if s.Minimum != nil && float64(len(v)) < *s.Minimum {
			add("expected at least %v items, got %d", *s.Minimum, len(v))
		}
		if s.Maximum != nil && float64(len(v)) > *s.Maximum {
			add("expected at most %v items, got %d", *s.Maximum, len(v))
		}
		for i, item := range v {
			validate(s.Items, item, fmt.Sprintf("%s[%d]", path, i), out)
		}

	case KindObject:
		v, ok := value.(map[string]any)
		if !ok {
			add("expected object, got %s", typeName(value))
			return
		}
		for _, name := range s.Required {
			if _, present := v[name]; !present {
				*out = append(*out, llm.Violation{Path: path + "." + name, Message: "required"})
			}
		}
		names := make([]string, 0, len(s.Properties))
		for name := range s.Properties {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if member, present := v[name]; present {
				validate(s.Properties[name], member, path+"."+name, out)
			}
		}
	}
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}
