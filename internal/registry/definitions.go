package registry

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// Tool names exposed through the execution contract.
const (
	ToolListEmails              = "damien_list_emails"
	ToolGetEmailDetails         = "damien_get_email_details"
	ToolTrashEmails             = "damien_trash_emails"
	ToolLabelEmails             = "damien_label_emails"
	ToolMarkEmails              = "damien_mark_emails"
	ToolApplyRules              = "damien_apply_rules"
	ToolListRules               = "damien_list_rules"
	ToolAddRule                 = "damien_add_rule"
	ToolDeleteRule              = "damien_delete_rule"
	ToolDeleteEmailsPermanently = "damien_delete_emails_permanently"
)

func ptr[T any](v T) *T {
	return &v
}

func stringSchema(description string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Description: description}
}

func stringArraySchema(description string) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "array",
		Description: description,
		Items:       &jsonschema.Schema{Type: "string"},
	}
}

// idListSchema is the schema for message-id lists on destructive and
// mutating tools: the list is required to be non-empty so an empty list can
// never be read as "act on everything".
func idListSchema(description string) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "array",
		Description: description,
		Items:       &jsonschema.Schema{Type: "string"},
		MinItems:    ptr(1),
	}
}

func conditionSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "object",
		Description: "A single rule condition matched against a message.",
		Properties: map[string]*jsonschema.Schema{
			"field": {
				Type:        "string",
				Description: "Message attribute the condition inspects.",
				Enum:        []any{"from", "to", "subject", "label"},
			},
			"operator": {
				Type:        "string",
				Description: "Comparison operator.",
				Enum:        []any{"contains", "not_contains", "equals", "not_equals"},
			},
			"value": stringSchema("Value the field is compared against."),
		},
		Required: []string{"field", "operator", "value"},
	}
}

func actionSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "object",
		Description: "A single rule action. label_name is required for add_label and remove_label.",
		Properties: map[string]*jsonschema.Schema{
			"type": {
				Type:        "string",
				Description: "Kind of action to take on matched messages.",
				Enum:        []any{"trash", "add_label", "remove_label", "mark_read", "mark_unread"},
			},
			"label_name": stringSchema("Label name, for label actions only."),
		},
		Required: []string{"type"},
	}
}

func ruleDefinitionSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "object",
		Description: "Full rule definition.",
		Properties: map[string]*jsonschema.Schema{
			"name":        stringSchema("Unique rule name."),
			"description": stringSchema("Human-readable description of the rule."),
			"is_enabled": {
				Type:        "boolean",
				Description: "Whether the rule participates in apply runs.",
				Default:     json.RawMessage("true"),
			},
			"conditions": {
				Type:        "array",
				Description: "Conditions a message must satisfy.",
				Items:       conditionSchema(),
				MinItems:    ptr(1),
			},
			"condition_conjunction": {
				Type:        "string",
				Description: "How multiple conditions combine.",
				Enum:        []any{"AND", "OR"},
				Default:     json.RawMessage(`"AND"`),
			},
			"actions": {
				Type:        "array",
				Description: "Actions applied to matched messages.",
				Items:       actionSchema(),
				MinItems:    ptr(1),
			},
		},
		Required: []string{"name", "conditions", "actions"},
	}
}

func ruleOutputSchema() *jsonschema.Schema {
	s := ruleDefinitionSchema()
	s.Properties["id"] = stringSchema("Server-generated rule id.")
	s.Properties["created_at"] = stringSchema("Creation timestamp, RFC 3339.")
	s.Properties["updated_at"] = stringSchema("Last update timestamp, RFC 3339.")
	return s
}

func applySummarySchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "object",
		Description: "Summary of a rule application run. Dry runs produce the identical shape with no mailbox changes.",
		Properties: map[string]*jsonschema.Schema{
			"dry_run":                {Type: "boolean"},
			"total_messages_scanned": {Type: "integer"},
			"total_rules_evaluated":  {Type: "integer"},
			"total_messages_matched": {Type: "integer"},
			"total_actions_taken":    {Type: "integer"},
			"rule_results": {
				Type: "array",
				Items: &jsonschema.Schema{
					Type: "object",
					Properties: map[string]*jsonschema.Schema{
						"rule_id":       {Type: "string"},
						"rule_name":     {Type: "string"},
						"matched_count": {Type: "integer"},
						"actions": {
							Type: "array",
							Items: &jsonschema.Schema{
								Type: "object",
								Properties: map[string]*jsonschema.Schema{
									"type":        {Type: "string"},
									"label_name":  {Type: "string"},
									"message_ids": {Type: "array", Items: &jsonschema.Schema{Type: "string"}},
								},
							},
						},
					},
				},
			},
		},
	}
}

func statusOutputSchema(countField string) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			countField:       {Type: "integer"},
			"status_message": {Type: "string"},
		},
		Required: []string{countField, "status_message"},
	}
}

// Default builds the registry with all tools exposed by the server.
func Default() (*Registry, error) {
	r := New()

	defs := []ToolDefinition{
		{
			Name:        ToolListEmails,
			Description: "Lists email messages based on a query, with support for pagination. Provides summaries including ID and thread ID.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"query": stringSchema("Gmail query string to filter emails (e.g., 'is:unread')."),
					"max_results": {
						Type:        "integer",
						Description: "Maximum number of emails to return.",
						Minimum:     ptr(1.0),
						Maximum:     ptr(100.0),
						Default:     json.RawMessage("10"),
					},
					"page_token": stringSchema("Token for retrieving the next page of results."),
				},
			},
			OutputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"email_summaries": {
						Type: "array",
						Items: &jsonschema.Schema{
							Type: "object",
							Properties: map[string]*jsonschema.Schema{
								"id":        stringSchema("The unique ID of the email message."),
								"thread_id": stringSchema("The ID of the email thread."),
							},
							Required: []string{"id"},
						},
					},
					"next_page_token": stringSchema("Token for the next page of results, if any."),
				},
				Required: []string{"email_summaries"},
			},
		},
		{
			Name:        ToolGetEmailDetails,
			Description: "Retrieves the full details of a specific email message, including headers and payload, based on the requested format.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"message_id": stringSchema("The ID of the email message to retrieve."),
					"format": {
						Type:        "string",
						Description: "Format of the email details to retrieve.",
						Enum:        []any{"full", "metadata", "raw"},
						Default:     json.RawMessage(`"full"`),
					},
				},
				Required: []string{"message_id"},
			},
			OutputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"id":            {Type: "string"},
					"thread_id":     {Type: "string"},
					"label_ids":     {Type: "array", Items: &jsonschema.Schema{Type: "string"}},
					"snippet":       {Type: "string"},
					"internal_date": {Type: "string"},
					"size_estimate": {Type: "integer"},
					"payload":       {Type: "object"},
					"raw":           {Type: "string"},
				},
				Required: []string{"id"},
			},
		},
		{
			Name:        ToolTrashEmails,
			Description: "Moves specified emails to the trash folder. Returns a count of trashed emails and a status message.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"message_ids": idListSchema("A list of message IDs to be moved to trash."),
				},
				Required: []string{"message_ids"},
			},
			OutputSchema: statusOutputSchema("trashed_count"),
		},
		{
			Name:        ToolLabelEmails,
			Description: "Adds or removes specified labels from emails. At least one of add_label_names or remove_label_names must be provided.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"message_ids":        idListSchema("A list of message IDs to label."),
					"add_label_names":    stringArraySchema("List of label names to add. Missing labels are created."),
					"remove_label_names": stringArraySchema("List of label names to remove."),
				},
				Required: []string{"message_ids"},
			},
			OutputSchema: statusOutputSchema("modified_count"),
		},
		{
			Name:        ToolMarkEmails,
			Description: "Marks specified emails as read or unread. Returns a count of modified emails and a status message.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"message_ids": idListSchema("A list of message IDs to mark."),
					"mark_as": {
						Type:        "string",
						Description: "Whether to mark messages as 'read' or 'unread'.",
						Enum:        []any{"read", "unread"},
					},
				},
				Required: []string{"message_ids", "mark_as"},
			},
			OutputSchema: statusOutputSchema("modified_count"),
		},
		{
			Name:        ToolApplyRules,
			Description: "Applies filtering rules to emails in the mailbox. Can be run in dry-run mode; the dry-run report has the same shape as a live run.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"gmail_query_filter": stringSchema("Base Gmail query string restricting which messages are scanned."),
					"rule_ids_to_apply":  stringArraySchema("Optional list of specific rule IDs to apply."),
					"dry_run": {
						Type:        "boolean",
						Description: "If true, simulates without making changes.",
						Default:     json.RawMessage("false"),
					},
					"scan_limit": {
						Type:        "integer",
						Description: "Optional limit on messages to scan.",
						Minimum:     ptr(1.0),
					},
					"date_after":  stringSchema("Apply to emails after this date (YYYY/MM/DD)."),
					"date_before": stringSchema("Apply to emails before this date (YYYY/MM/DD)."),
					"all_mail": {
						Type:        "boolean",
						Description: "If true, ignores other filters and scans all mail.",
						Default:     json.RawMessage("false"),
					},
				},
			},
			OutputSchema: applySummarySchema(),
		},
		{
			Name:        ToolListRules,
			Description: "Lists all configured filtering rules, including their definitions (name, conditions, actions).",
			InputSchema: &jsonschema.Schema{
				Type:       "object",
				Properties: map[string]*jsonschema.Schema{},
			},
			OutputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"rules": {Type: "array", Items: ruleOutputSchema()},
				},
				Required: []string{"rules"},
			},
		},
		{
			Name:        ToolAddRule,
			Description: "Adds a new filtering rule. Expects a full rule definition and returns the created rule, including its server-generated ID and timestamps.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"rule_definition": ruleDefinitionSchema(),
				},
				Required: []string{"rule_definition"},
			},
			OutputSchema: ruleOutputSchema(),
		},
		{
			Name:        ToolDeleteRule,
			Description: "Deletes a filtering rule by its ID or name. Returns a status message and the identifier of the deleted rule.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"rule_identifier": stringSchema("The ID or name of the rule to delete."),
				},
				Required: []string{"rule_identifier"},
			},
			OutputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"status_message":          {Type: "string"},
					"deleted_rule_identifier": {Type: "string"},
				},
				Required: []string{"status_message", "deleted_rule_identifier"},
			},
		},
		{
			Name:        ToolDeleteEmailsPermanently,
			Description: "PERMANENTLY deletes specified emails. This action is irreversible and emails cannot be recovered. Requires an explicit, non-empty list of message IDs.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"message_ids": idListSchema("List of message IDs for permanent deletion."),
				},
				Required: []string{"message_ids"},
			},
			OutputSchema: statusOutputSchema("deleted_count"),
		},
	}

	for _, def := range defs {
		if err := r.Register(def); err != nil {
			return nil, fmt.Errorf("failed to build default registry: %w", err)
		}
	}
	return r, nil
}
