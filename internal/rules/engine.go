package rules

import (
	"context"
	"fmt"
	"log/slog"
)

// Actioner executes rule actions against the mailbox.
type Actioner interface {
	Trash(ctx context.Context, messageIDs []string) error
	AddLabel(ctx context.Context, labelName string, messageIDs []string) error
	RemoveLabel(ctx context.Context, labelName string, messageIDs []string) error
	MarkRead(ctx context.Context, messageIDs []string) error
	MarkUnread(ctx context.Context, messageIDs []string) error
}

// ActionResult reports one action of one rule and the messages it applied
// to (or would apply to, in a dry run).
type ActionResult struct {
	Type       string   `json:"type"`
	LabelName  string   `json:"label_name,omitempty"`
	MessageIDs []string `json:"message_ids"`
}

// RuleResult reports how one rule fared across the scanned messages.
type RuleResult struct {
	RuleID       string         `json:"rule_id"`
	RuleName     string         `json:"rule_name"`
	MatchedCount int            `json:"matched_count"`
	Actions      []ActionResult `json:"actions"`
}

// Summary is the report for one apply run. Dry runs fill in the same fields
// without touching the mailbox.
type Summary struct {
	DryRun               bool         `json:"dry_run"`
	TotalMessagesScanned int          `json:"total_messages_scanned"`
	TotalRulesEvaluated  int          `json:"total_rules_evaluated"`
	TotalMessagesMatched int          `json:"total_messages_matched"`
	TotalActionsTaken    int          `json:"total_actions_taken"`
	RuleResults          []RuleResult `json:"rule_results"`
}

// Engine evaluates rules over scanned messages and drives an Actioner.
type Engine struct {
	logger *slog.Logger
}

// NewEngine creates an engine. A nil logger falls back to slog.Default.
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// Apply evaluates the given rules against messages and executes their
// actions through actioner unless dryRun is set. Disabled rules are skipped.
// Once a message matched a trash action it is excluded from later rules,
// mirroring what would happen to it in the mailbox.
func (e *Engine) Apply(ctx context.Context, ruleSet []Rule, messages []Message, actioner Actioner, dryRun bool) (Summary, error) {
	summary := Summary{
		DryRun:               dryRun,
		TotalMessagesScanned: len(messages),
		RuleResults:          []RuleResult{},
	}

	matchedAny := make(map[string]bool)
	trashed := make(map[string]bool)

	for _, rule := range ruleSet {
		if !rule.IsEnabled {
			continue
		}
		summary.TotalRulesEvaluated++

		var matchedIDs []string
		for _, msg := range messages {
			if trashed[msg.ID] {
				continue
			}
			if rule.Matches(msg) {
				matchedIDs = append(matchedIDs, msg.ID)
				matchedAny[msg.ID] = true
			}
		}

		result := RuleResult{
			RuleID:       rule.ID,
			RuleName:     rule.Name,
			MatchedCount: len(matchedIDs),
			Actions:      []ActionResult{},
		}

		if len(matchedIDs) > 0 {
			for _, action := range rule.Actions {
				if !dryRun {
					if err := e.execute(ctx, actioner, action, matchedIDs); err != nil {
						return Summary{}, fmt.Errorf("rule %q action %s failed: %w", rule.Name, action.Type, err)
					}
				}
				result.Actions = append(result.Actions, ActionResult{
					Type:       action.Type,
					LabelName:  action.LabelName,
					MessageIDs: matchedIDs,
				})
				summary.TotalActionsTaken += len(matchedIDs)
				if action.Type == ActionTrash {
					for _, id := range matchedIDs {
						trashed[id] = true
					}
				}
			}
			e.logger.Debug("Rule matched messages",
				"rule", rule.Name,
				"matched", len(matchedIDs),
				"dry_run", dryRun)
		}

		summary.RuleResults = append(summary.RuleResults, result)
	}

	summary.TotalMessagesMatched = len(matchedAny)
	return summary, nil
}

func (e *Engine) execute(ctx context.Context, actioner Actioner, action Action, ids []string) error {
	switch action.Type {
	case ActionTrash:
		return actioner.Trash(ctx, ids)
	case ActionAddLabel:
		return actioner.AddLabel(ctx, action.LabelName, ids)
	case ActionRemoveLabel:
		return actioner.RemoveLabel(ctx, action.LabelName, ids)
	case ActionMarkRead:
		return actioner.MarkRead(ctx, ids)
	case ActionMarkUnread:
		return actioner.MarkUnread(ctx, ids)
	default:
		return fmt.Errorf("unknown action type %q", action.Type)
	}
}
