package validate

import (
	"testing"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/damienmail/damien-mcp-server/internal/registry"
)

func schemaFor(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	r, err := registry.Default()
	require.NoError(t, err)
	def, ok := r.Get(name)
	require.True(t, ok)
	return def.InputSchema
}

func TestValidateAppliesDefaults(t *testing.T) {
	schema := schemaFor(t, registry.ToolListEmails)

	out, verr := Validate(schema, map[string]any{"query": "is:unread"})
	require.Nil(t, verr)
	assert.Equal(t, "is:unread", out["query"])
	assert.Equal(t, 10, out["max_results"])
	_, hasPageToken := out["page_token"]
	assert.False(t, hasPageToken)
}

func TestValidateCoercesIntegers(t *testing.T) {
	schema := schemaFor(t, registry.ToolListEmails)

	tests := []struct {
		name  string
		value any
		want  int
	}{
		{"json float", float64(25), 25},
		{"numeric string", "25", 25},
		{"native int", 25, 25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, verr := Validate(schema, map[string]any{"max_results": tt.value})
			require.Nil(t, verr)
			assert.Equal(t, tt.want, out["max_results"])
		})
	}
}

func TestValidateRejectsNonIntegralNumbers(t *testing.T) {
	schema := schemaFor(t, registry.ToolListEmails)

	_, verr := Validate(schema, map[string]any{"max_results": 2.5})
	require.NotNil(t, verr)
	require.Len(t, verr.Violations, 1)
	assert.Equal(t, "max_results", verr.Violations[0].Field)
	assert.Contains(t, verr.Violations[0].Reason, "integer")
}

func TestValidateEnforcesBounds(t *testing.T) {
	schema := schemaFor(t, registry.ToolListEmails)

	_, verr := Validate(schema, map[string]any{"max_results": 500})
	require.NotNil(t, verr)
	require.Len(t, verr.Violations, 1)
	assert.Contains(t, verr.Violations[0].Reason, "at most 100")

	_, verr = Validate(schema, map[string]any{"max_results": 0})
	require.NotNil(t, verr)
	assert.Contains(t, verr.Violations[0].Reason, "at least 1")
}

func TestValidateCollectsAllViolations(t *testing.T) {
	schema := schemaFor(t, registry.ToolMarkEmails)

	// Missing required message_ids, bad enum value, and an unknown field
	// must all surface in one pass.
	_, verr := Validate(schema, map[string]any{
		"mark_as": "starred",
		"extra":   true,
	})
	require.NotNil(t, verr)
	require.Len(t, verr.Violations, 3)

	fields := make([]string, 0, len(verr.Violations))
	for _, v := range verr.Violations {
		fields = append(fields, v.Field)
	}
	assert.Contains(t, fields, "message_ids")
	assert.Contains(t, fields, "mark_as")
	assert.Contains(t, fields, "extra")
}

func TestValidateRejectsUnknownFields(t *testing.T) {
	schema := schemaFor(t, registry.ToolListRules)

	_, verr := Validate(schema, map[string]any{"surprise": 1})
	require.NotNil(t, verr)
	require.Len(t, verr.Violations, 1)
	assert.Equal(t, "surprise", verr.Violations[0].Field)
	assert.Equal(t, "unknown field", verr.Violations[0].Reason)

	out, verr := Validate(schema, map[string]any{})
	require.Nil(t, verr)
	assert.Empty(t, out)
}

func TestValidateRejectsEmptyIDList(t *testing.T) {
	for _, name := range []string{registry.ToolTrashEmails, registry.ToolDeleteEmailsPermanently} {
		t.Run(name, func(t *testing.T) {
			schema := schemaFor(t, name)
			_, verr := Validate(schema, map[string]any{"message_ids": []any{}})
			require.NotNil(t, verr)
			require.Len(t, verr.Violations, 1)
			assert.Equal(t, "message_ids", verr.Violations[0].Field)
			assert.Contains(t, verr.Violations[0].Reason, "at least 1")
		})
	}
}

func TestValidateNestedRuleDefinition(t *testing.T) {
	schema := schemaFor(t, registry.ToolAddRule)

	out, verr := Validate(schema, map[string]any{
		"rule_definition": map[string]any{
			"name": "archive newsletters",
			"conditions": []any{
				map[string]any{"field": "from", "operator": "contains", "value": "newsletter@"},
			},
			"actions": []any{
				map[string]any{"type": "add_label", "label_name": "Newsletters"},
			},
		},
	})
	require.Nil(t, verr)

	rule, ok := out["rule_definition"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "AND", rule["condition_conjunction"])
	assert.Equal(t, true, rule["is_enabled"])
}

func TestValidateNestedViolationPaths(t *testing.T) {
	schema := schemaFor(t, registry.ToolAddRule)

	_, verr := Validate(schema, map[string]any{
		"rule_definition": map[string]any{
			"name": "broken",
			"conditions": []any{
				map[string]any{"field": "body", "operator": "contains", "value": "x"},
			},
			"actions": []any{
				map[string]any{"type": "forward"},
			},
		},
	})
	require.NotNil(t, verr)
	require.Len(t, verr.Violations, 2)
	assert.Equal(t, "rule_definition.actions[0].type", verr.Violations[0].Field)
	assert.Equal(t, "rule_definition.conditions[0].field", verr.Violations[1].Field)
}

func TestValidateNilInput(t *testing.T) {
	schema := schemaFor(t, registry.ToolGetEmailDetails)

	_, verr := Validate(schema, nil)
	require.NotNil(t, verr)
	require.Len(t, verr.Violations, 1)
	assert.Equal(t, "message_id", verr.Violations[0].Field)
}
