package rules

import (
	"fmt"
	"strings"
	"time"
)

// Condition fields.
const (
	FieldFrom    = "from"
	FieldTo      = "to"
	FieldSubject = "subject"
	FieldLabel   = "label"
)

// Condition operators.
const (
	OpContains    = "contains"
	OpNotContains = "not_contains"
	OpEquals      = "equals"
	OpNotEquals   = "not_equals"
)

// Action types.
const (
	ActionTrash       = "trash"
	ActionAddLabel    = "add_label"
	ActionRemoveLabel = "remove_label"
	ActionMarkRead    = "mark_read"
	ActionMarkUnread  = "mark_unread"
)

// Conjunctions for combining conditions.
const (
	ConjunctionAnd = "AND"
	ConjunctionOr  = "OR"
)

// Condition is a single predicate over a message attribute.
type Condition struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

// Action is a single operation applied to matched messages. LabelName is
// only meaningful for add_label and remove_label.
type Action struct {
	Type      string `json:"type"`
	LabelName string `json:"label_name,omitempty"`
}

// Rule is a stored filtering rule.
type Rule struct {
	ID                   string      `json:"id"`
	Name                 string      `json:"name"`
	Description          string      `json:"description,omitempty"`
	IsEnabled            bool        `json:"is_enabled"`
	Conditions           []Condition `json:"conditions"`
	ConditionConjunction string      `json:"condition_conjunction"`
	Actions              []Action    `json:"actions"`
	CreatedAt            time.Time   `json:"created_at"`
	UpdatedAt            time.Time   `json:"updated_at"`
}

// Message is the view of an email message the engine matches conditions
// against.
type Message struct {
	ID      string
	From    string
	To      string
	Subject string
	Labels  []string
}

// Validate checks structural constraints that the wire schema cannot
// express, such as label actions requiring a label name.
func (r Rule) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("rule name must not be empty")
	}
	if len(r.Conditions) == 0 {
		return fmt.Errorf("rule %q has no conditions", r.Name)
	}
	if len(r.Actions) == 0 {
		return fmt.Errorf("rule %q has no actions", r.Name)
	}
	switch r.ConditionConjunction {
	case ConjunctionAnd, ConjunctionOr:
	default:
		return fmt.Errorf("rule %q has invalid conjunction %q", r.Name, r.ConditionConjunction)
	}
	for _, c := range r.Conditions {
		switch c.Field {
		case FieldFrom, FieldTo, FieldSubject, FieldLabel:
		default:
			return fmt.Errorf("rule %q has invalid condition field %q", r.Name, c.Field)
		}
		switch c.Operator {
		case OpContains, OpNotContains, OpEquals, OpNotEquals:
		default:
			return fmt.Errorf("rule %q has invalid condition operator %q", r.Name, c.Operator)
		}
	}
	for _, a := range r.Actions {
		switch a.Type {
		case ActionTrash, ActionMarkRead, ActionMarkUnread:
		case ActionAddLabel, ActionRemoveLabel:
			if strings.TrimSpace(a.LabelName) == "" {
				return fmt.Errorf("rule %q action %s requires a label_name", r.Name, a.Type)
			}
		default:
			return fmt.Errorf("rule %q has invalid action type %q", r.Name, a.Type)
		}
	}
	return nil
}

// Matches reports whether the message satisfies the rule's conditions under
// its conjunction. String comparisons are case-insensitive.
func (r Rule) Matches(msg Message) bool {
	if len(r.Conditions) == 0 {
		return false
	}
	for _, c := range r.Conditions {
		matched := c.matches(msg)
		if r.ConditionConjunction == ConjunctionOr {
			if matched {
				return true
			}
		} else if !matched {
			return false
		}
	}
	return r.ConditionConjunction != ConjunctionOr
}

func (c Condition) matches(msg Message) bool {
	want := strings.ToLower(c.Value)

	if c.Field == FieldLabel {
		return c.matchesLabels(msg.Labels, want)
	}

	var got string
	switch c.Field {
	case FieldFrom:
		got = msg.From
	case FieldTo:
		got = msg.To
	case FieldSubject:
		got = msg.Subject
	default:
		return false
	}
	got = strings.ToLower(got)

	switch c.Operator {
	case OpContains:
		return strings.Contains(got, want)
	case OpNotContains:
		return !strings.Contains(got, want)
	case OpEquals:
		return got == want
	case OpNotEquals:
		return got != want
	default:
		return false
	}
}

// matchesLabels treats contains/equals as "any label matches" and their
// negations as "no label matches".
func (c Condition) matchesLabels(labels []string, want string) bool {
	any := false
	for _, l := range labels {
		got := strings.ToLower(l)
		switch c.Operator {
		case OpContains, OpNotContains:
			if strings.Contains(got, want) {
				any = true
			}
		case OpEquals, OpNotEquals:
			if got == want {
				any = true
			}
		}
	}
	switch c.Operator {
	case OpContains, OpEquals:
		return any
	case OpNotContains, OpNotEquals:
		return !any
	default:
		return false
	}
}
