package rules

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingActioner records every call so tests can assert on exactly what
// the engine executed.
type recordingActioner struct {
	calls []string
	ids   map[string][][]string
}

func newRecordingActioner() *recordingActioner {
	return &recordingActioner{ids: make(map[string][][]string)}
}

func (a *recordingActioner) record(op string, ids []string) {
	a.calls = append(a.calls, op)
	a.ids[op] = append(a.ids[op], ids)
}

func (a *recordingActioner) Trash(_ context.Context, ids []string) error {
	a.record(ActionTrash, ids)
	return nil
}

func (a *recordingActioner) AddLabel(_ context.Context, label string, ids []string) error {
	a.record(ActionAddLabel+":"+label, ids)
	return nil
}

func (a *recordingActioner) RemoveLabel(_ context.Context, label string, ids []string) error {
	a.record(ActionRemoveLabel+":"+label, ids)
	return nil
}

func (a *recordingActioner) MarkRead(_ context.Context, ids []string) error {
	a.record(ActionMarkRead, ids)
	return nil
}

func (a *recordingActioner) MarkUnread(_ context.Context, ids []string) error {
	a.record(ActionMarkUnread, ids)
	return nil
}

func engineFixtures() ([]Rule, []Message) {
	ruleSet := []Rule{
		{
			ID:                   "r-1",
			Name:                 "trash newsletters",
			IsEnabled:            true,
			ConditionConjunction: ConjunctionAnd,
			Conditions:           []Condition{{Field: FieldFrom, Operator: OpContains, Value: "news@"}},
			Actions:              []Action{{Type: ActionTrash}},
		},
		{
			ID:                   "r-2",
			Name:                 "label receipts",
			IsEnabled:            true,
			ConditionConjunction: ConjunctionAnd,
			Conditions:           []Condition{{Field: FieldSubject, Operator: OpContains, Value: "receipt"}},
			Actions: []Action{
				{Type: ActionAddLabel, LabelName: "Receipts"},
				{Type: ActionMarkRead},
			},
		},
		{
			ID:        "r-3",
			Name:      "disabled rule",
			IsEnabled: false,
			Conditions: []Condition{
				{Field: FieldFrom, Operator: OpContains, Value: "@"},
			},
			ConditionConjunction: ConjunctionAnd,
			Actions:              []Action{{Type: ActionTrash}},
		},
	}
	messages := []Message{
		{ID: "m1", From: "news@example.com", Subject: "Weekly"},
		{ID: "m2", From: "shop@example.com", Subject: "Your receipt"},
		{ID: "m3", From: "friend@example.com", Subject: "Dinner"},
	}
	return ruleSet, messages
}

func TestEngineApply(t *testing.T) {
	ruleSet, messages := engineFixtures()
	actioner := newRecordingActioner()

	summary, err := NewEngine(nil).Apply(context.Background(), ruleSet, messages, actioner, false)
	require.NoError(t, err)

	assert.False(t, summary.DryRun)
	assert.Equal(t, 3, summary.TotalMessagesScanned)
	assert.Equal(t, 2, summary.TotalRulesEvaluated)
	assert.Equal(t, 2, summary.TotalMessagesMatched)
	assert.Equal(t, 3, summary.TotalActionsTaken)

	require.Len(t, summary.RuleResults, 2)
	assert.Equal(t, "r-1", summary.RuleResults[0].RuleID)
	assert.Equal(t, 1, summary.RuleResults[0].MatchedCount)
	assert.Equal(t, []string{"m1"}, summary.RuleResults[0].Actions[0].MessageIDs)

	assert.Equal(t, []string{ActionTrash, ActionAddLabel + ":Receipts", ActionMarkRead}, actioner.calls)
	assert.Equal(t, [][]string{{"m2"}}, actioner.ids[ActionMarkRead])
}

func TestEngineDryRunTakesNoAction(t *testing.T) {
	ruleSet, messages := engineFixtures()
	actioner := newRecordingActioner()

	dry, err := NewEngine(nil).Apply(context.Background(), ruleSet, messages, actioner, true)
	require.NoError(t, err)
	assert.Empty(t, actioner.calls)

	live, err := NewEngine(nil).Apply(context.Background(), ruleSet, messages, newRecordingActioner(), false)
	require.NoError(t, err)

	// Apart from the dry_run flag the two reports are identical.
	assert.True(t, dry.DryRun)
	dry.DryRun = live.DryRun
	assert.Equal(t, live, dry)
}

func TestEngineTrashedMessagesSkipLaterRules(t *testing.T) {
	ruleSet := []Rule{
		{
			ID:                   "r-1",
			Name:                 "trash newsletters",
			IsEnabled:            true,
			ConditionConjunction: ConjunctionAnd,
			Conditions:           []Condition{{Field: FieldFrom, Operator: OpContains, Value: "news@"}},
			Actions:              []Action{{Type: ActionTrash}},
		},
		{
			ID:                   "r-2",
			Name:                 "mark everything read",
			IsEnabled:            true,
			ConditionConjunction: ConjunctionAnd,
			Conditions:           []Condition{{Field: FieldFrom, Operator: OpContains, Value: "@"}},
			Actions:              []Action{{Type: ActionMarkRead}},
		},
	}
	messages := []Message{
		{ID: "m1", From: "news@example.com"},
		{ID: "m2", From: "friend@example.com"},
	}
	actioner := newRecordingActioner()

	summary, err := NewEngine(nil).Apply(context.Background(), ruleSet, messages, actioner, false)
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"m2"}}, actioner.ids[ActionMarkRead])
	assert.Equal(t, 1, summary.RuleResults[1].MatchedCount)
}

func TestEngineNoMessages(t *testing.T) {
	ruleSet, _ := engineFixtures()

	summary, err := NewEngine(nil).Apply(context.Background(), ruleSet, nil, newRecordingActioner(), false)
	require.NoError(t, err)
	assert.Zero(t, summary.TotalMessagesScanned)
	assert.Zero(t, summary.TotalActionsTaken)
	require.Len(t, summary.RuleResults, 2)
	assert.Empty(t, summary.RuleResults[0].Actions)
}
