package validate

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
)

// Violation describes a single schema violation at a field path.
type Violation struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// Error aggregates every violation found in one validation pass.
type Error struct {
	Violations []Violation
}

func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, fmt.Sprintf("%s: %s", v.Field, v.Reason))
	}
	return "invalid parameters: " + strings.Join(parts, "; ")
}

type collector struct {
	violations []Violation
}

func (c *collector) add(field, reason string) {
	c.violations = append(c.violations, Violation{Field: field, Reason: reason})
}

// Validate checks input against schema and returns a normalized copy of the
// input on success. The returned error, if any, is always an *Error carrying
// the full list of violations.
func Validate(schema *jsonschema.Schema, input map[string]any) (map[string]any, *Error) {
	if input == nil {
		input = map[string]any{}
	}
	c := &collector{}
	out := validateObject(c, schema, input, "")
	if len(c.violations) > 0 {
		sort.SliceStable(c.violations, func(i, j int) bool {
			return c.violations[i].Field < c.violations[j].Field
		})
		return nil, &Error{Violations: c.violations}
	}
	return out, nil
}

func joinPath(base, field string) string {
	if base == "" {
		return field
	}
	return base + "." + field
}

func validateObject(c *collector, schema *jsonschema.Schema, input map[string]any, path string) map[string]any {
	out := make(map[string]any, len(input))

	// Unknown fields are rejected outright. Sorted so the violation order
	// is deterministic.
	extra := make([]string, 0)
	for key := range input {
		if _, ok := schema.Properties[key]; !ok {
			extra = append(extra, key)
		}
	}
	sort.Strings(extra)
	for _, key := range extra {
		c.add(joinPath(path, key), "unknown field")
	}

	for _, req := range schema.Required {
		if _, ok := input[req]; !ok {
			c.add(joinPath(path, req), "required field is missing")
		}
	}

	for key, prop := range schema.Properties {
		fieldPath := joinPath(path, key)
		value, present := input[key]
		if !present {
			if def, ok := defaultValue(prop); ok {
				out[key] = def
			}
			continue
		}
		if value == nil {
			c.add(fieldPath, "must not be null")
			continue
		}
		out[key] = validateValue(c, prop, value, fieldPath)
	}
	return out
}

// validateValue checks one value against its property schema and returns the
// value to keep, coerced where the schema calls for an integer.
func validateValue(c *collector, prop *jsonschema.Schema, value any, path string) any {
	switch prop.Type {
	case "string":
		s, ok := value.(string)
		if !ok {
			c.add(path, "must be a string")
			return value
		}
		checkEnum(c, prop, s, path)
		return s

	case "integer":
		n, ok := coerceInt(value)
		if !ok {
			c.add(path, "must be an integer")
			return value
		}
		if prop.Minimum != nil && float64(n) < *prop.Minimum {
			c.add(path, fmt.Sprintf("must be at least %d", int(*prop.Minimum)))
		}
		if prop.Maximum != nil && float64(n) > *prop.Maximum {
			c.add(path, fmt.Sprintf("must be at most %d", int(*prop.Maximum)))
		}
		return n

	case "number":
		f, ok := coerceFloat(value)
		if !ok {
			c.add(path, "must be a number")
			return value
		}
		if prop.Minimum != nil && f < *prop.Minimum {
			c.add(path, fmt.Sprintf("must be at least %v", *prop.Minimum))
		}
		if prop.Maximum != nil && f > *prop.Maximum {
			c.add(path, fmt.Sprintf("must be at most %v", *prop.Maximum))
		}
		return f

	case "boolean":
		b, ok := value.(bool)
		if !ok {
			c.add(path, "must be a boolean")
			return value
		}
		return b

	case "array":
		items, ok := value.([]any)
		if !ok {
			c.add(path, "must be an array")
			return value
		}
		if prop.MinItems != nil && len(items) < *prop.MinItems {
			c.add(path, fmt.Sprintf("must contain at least %d item(s)", *prop.MinItems))
		}
		if prop.Items == nil {
			return items
		}
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = validateValue(c, prop.Items, item, fmt.Sprintf("%s[%d]", path, i))
		}
		return out

	case "object":
		m, ok := value.(map[string]any)
		if !ok {
			c.add(path, "must be an object")
			return value
		}
		if prop.Properties == nil {
			// Free-form object, passed through as is.
			return m
		}
		return validateObject(c, prop, m, path)

	default:
		return value
	}
}

func checkEnum(c *collector, prop *jsonschema.Schema, value string, path string) {
	if len(prop.Enum) == 0 {
		return
	}
	allowed := make([]string, 0, len(prop.Enum))
	for _, e := range prop.Enum {
		s, ok := e.(string)
		if !ok {
			continue
		}
		if s == value {
			return
		}
		allowed = append(allowed, s)
	}
	c.add(path, fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")))
}

// coerceInt accepts JSON numbers that are whole, native ints, and numeric
// strings. Anything else fails.
func coerceInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return int(n), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

func coerceFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func defaultValue(prop *jsonschema.Schema) (any, bool) {
	if len(prop.Default) == 0 {
		return nil, false
	}
	var v any
	if err := json.Unmarshal(prop.Default, &v); err != nil {
		return nil, false
	}
	if prop.Type == "integer" {
		if n, ok := coerceInt(v); ok {
			return n, true
		}
	}
	return v, true
}
