package dispatch

import (
	"context"

	"github.com/damienmail/damien-mcp-server/internal/adapter"
	"github.com/damienmail/damien-mcp-server/internal/registry"
	"github.com/damienmail/damien-mcp-server/internal/validate"
)

// toolSpec binds a tool name to its handler and execution traits.
// crossCheck, when set, enforces constraints spanning multiple fields that
// the schema cannot express.
type toolSpec struct {
	handler     func(ctx context.Context, b Backend, input map[string]any) (map[string]any, error)
	readOnly    bool
	destructive bool
	crossCheck  func(input map[string]any) *validate.Error
}

func toolSpecs() map[string]toolSpec {
	return map[string]toolSpec{
		registry.ToolListEmails: {
			readOnly: true,
			handler: func(ctx context.Context, b Backend, input map[string]any) (map[string]any, error) {
				return b.ListEmails(ctx, stringArg(input, "query"), intArg(input, "max_results"), stringArg(input, "page_token"))
			},
		},
		registry.ToolGetEmailDetails: {
			readOnly: true,
			handler: func(ctx context.Context, b Backend, input map[string]any) (map[string]any, error) {
				return b.GetEmailDetails(ctx, stringArg(input, "message_id"), stringArg(input, "format"))
			},
		},
		registry.ToolTrashEmails: {
			destructive: true,
			handler: func(ctx context.Context, b Backend, input map[string]any) (map[string]any, error) {
				return b.TrashEmails(ctx, stringSliceArg(input, "message_ids"))
			},
		},
		registry.ToolLabelEmails: {
			crossCheck: func(input map[string]any) *validate.Error {
				add := stringSliceArg(input, "add_label_names")
				remove := stringSliceArg(input, "remove_label_names")
				if len(add) == 0 && len(remove) == 0 {
					return &validate.Error{Violations: []validate.Violation{{
						Field:  "add_label_names",
						Reason: "at least one of add_label_names or remove_label_names must be provided",
					}}}
				}
				return nil
			},
			handler: func(ctx context.Context, b Backend, input map[string]any) (map[string]any, error) {
				return b.LabelEmails(ctx,
					stringSliceArg(input, "message_ids"),
					stringSliceArg(input, "add_label_names"),
					stringSliceArg(input, "remove_label_names"))
			},
		},
		registry.ToolMarkEmails: {
			handler: func(ctx context.Context, b Backend, input map[string]any) (map[string]any, error) {
				return b.MarkEmails(ctx, stringSliceArg(input, "message_ids"), stringArg(input, "mark_as"))
			},
		},
		registry.ToolApplyRules: {
			handler: func(ctx context.Context, b Backend, input map[string]any) (map[string]any, error) {
				return b.ApplyRules(ctx, adapter.ApplyParams{
					Query:      stringArg(input, "gmail_query_filter"),
					RuleIDs:    stringSliceArg(input, "rule_ids_to_apply"),
					DryRun:     boolArg(input, "dry_run"),
					ScanLimit:  intArg(input, "scan_limit"),
					DateAfter:  stringArg(input, "date_after"),
					DateBefore: stringArg(input, "date_before"),
					AllMail:    boolArg(input, "all_mail"),
				})
			},
		},
		registry.ToolListRules: {
			readOnly: true,
			handler: func(ctx context.Context, b Backend, input map[string]any) (map[string]any, error) {
				return b.ListRules(ctx)
			},
		},
		registry.ToolAddRule: {
			handler: func(ctx context.Context, b Backend, input map[string]any) (map[string]any, error) {
				return b.AddRule(ctx, mapArg(input, "rule_definition"))
			},
		},
		registry.ToolDeleteRule: {
			handler: func(ctx context.Context, b Backend, input map[string]any) (map[string]any, error) {
				return b.DeleteRule(ctx, stringArg(input, "rule_identifier"))
			},
		},
		registry.ToolDeleteEmailsPermanently: {
			destructive: true,
			handler: func(ctx context.Context, b Backend, input map[string]any) (map[string]any, error) {
				return b.DeleteEmailsPermanently(ctx, stringSliceArg(input, "message_ids"))
			},
		},
	}
}

// The arg helpers read values out of validated input, so types are already
// checked; missing optional fields fall back to zero values.

func stringArg(input map[string]any, key string) string {
	s, _ := input[key].(string)
	return s
}

func intArg(input map[string]any, key string) int {
	switch v := input[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

func boolArg(input map[string]any, key string) bool {
	b, _ := input[key].(bool)
	return b
}

func stringSliceArg(input map[string]any, key string) []string {
	raw, ok := input[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func mapArg(input map[string]any, key string) map[string]any {
	m, _ := input[key].(map[string]any)
	return m
}
