package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/damienmail/damien-mcp-server/internal/gmail"
	"github.com/damienmail/damien-mcp-server/internal/instrumentation"
	"github.com/damienmail/damien-mcp-server/internal/rules"
)

const defaultScanLimit = 100

// Mailbox is the slice of the Gmail client the adapter needs.
type Mailbox interface {
	ListMessages(ctx context.Context, query string, maxResults int64, pageToken string) (*gmail.MessagePage, error)
	GetMessage(ctx context.Context, messageID, format string) (*gmailapi.Message, error)
	Trash(ctx context.Context, messageIDs []string) (int, error)
	ModifyLabels(ctx context.Context, messageIDs, addNames, removeNames []string) (int, error)
	Mark(ctx context.Context, messageIDs []string, markAs string) (int, error)
	DeletePermanently(ctx context.Context, messageIDs []string) (int, error)
	ScanMessages(ctx context.Context, query string, limit int64) ([]rules.Message, error)
}

// Adapter executes tool operations against the mailbox and the rule store.
type Adapter struct {
	mailbox    func(ctx context.Context) (Mailbox, error)
	rulesStore *rules.Store
	engine     *rules.Engine
	logger     *slog.Logger
	metrics    *instrumentation.Metrics
}

// New creates an adapter on top of a lazy Gmail provider and a rule store.
// metrics may be nil when instrumentation is disabled.
func New(provider *gmail.Provider, rulesStore *rules.Store, logger *slog.Logger, metrics *instrumentation.Metrics) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		mailbox: func(ctx context.Context) (Mailbox, error) {
			return provider.Client(ctx)
		},
		rulesStore: rulesStore,
		engine:     rules.NewEngine(logger),
		logger:     logger,
		metrics:    metrics,
	}
}

// observe wraps one mailbox call in a client span and a Gmail operation
// metric. The closure receives the span context.
func (a *Adapter) observe(ctx context.Context, operation string, fn func(ctx context.Context) error, attrs ...attribute.KeyValue) error {
	ctx, span := instrumentation.StartGmailSpan(ctx, operation, attrs...)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	if err != nil {
		instrumentation.SetSpanError(span, err)
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	if a.metrics != nil {
		status := instrumentation.StatusSuccess
		if err != nil {
			status = instrumentation.StatusError
		}
		a.metrics.RecordGmailOperation(ctx, operation, status, time.Since(start))
	}
	return err
}

// ListEmails lists message summaries for the query.
func (a *Adapter) ListEmails(ctx context.Context, query string, maxResults int, pageToken string) (map[string]any, error) {
	mb, err := a.mailbox(ctx)
	if err != nil {
		return nil, err
	}
	var page *gmail.MessagePage
	err = a.observe(ctx, instrumentation.OperationList, func(ctx context.Context) error {
		page, err = mb.ListMessages(ctx, query, int64(maxResults), pageToken)
		return err
	})
	if err != nil {
		return nil, err
	}
	return toMap(page)
}

// GetEmailDetails fetches one message in the requested format.
func (a *Adapter) GetEmailDetails(ctx context.Context, messageID, format string) (map[string]any, error) {
	mb, err := a.mailbox(ctx)
	if err != nil {
		return nil, err
	}
	var msg *gmailapi.Message
	err = a.observe(ctx, instrumentation.OperationGet, func(ctx context.Context) error {
		msg, err = mb.GetMessage(ctx, messageID, format)
		return err
	}, instrumentation.NewSpanAttributeBuilder().WithResource("message", messageID).Build()...)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"id":            msg.Id,
		"thread_id":     msg.ThreadId,
		"label_ids":     msg.LabelIds,
		"snippet":       msg.Snippet,
		"internal_date": fmt.Sprintf("%d", msg.InternalDate),
		"size_estimate": msg.SizeEstimate,
		"payload":       msg.Payload,
		"raw":           msg.Raw,
	}, nil
}

// TrashEmails moves the given messages to trash.
func (a *Adapter) TrashEmails(ctx context.Context, messageIDs []string) (map[string]any, error) {
	mb, err := a.mailbox(ctx)
	if err != nil {
		return nil, err
	}
	var count int
	err = a.observe(ctx, instrumentation.OperationTrash, func(ctx context.Context) error {
		count, err = mb.Trash(ctx, messageIDs)
		return err
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"trashed_count":  count,
		"status_message": fmt.Sprintf("Moved %d email(s) to trash.", count),
	}, nil
}

// LabelEmails applies label changes to the given messages. At least one of
// addNames or removeNames must be non-empty; the dispatcher enforces that
// before calling here.
func (a *Adapter) LabelEmails(ctx context.Context, messageIDs, addNames, removeNames []string) (map[string]any, error) {
	mb, err := a.mailbox(ctx)
	if err != nil {
		return nil, err
	}
	var count int
	err = a.observe(ctx, instrumentation.OperationModify, func(ctx context.Context) error {
		count, err = mb.ModifyLabels(ctx, messageIDs, addNames, removeNames)
		return err
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"modified_count": count,
		"status_message": fmt.Sprintf("Updated labels on %d email(s).", count),
	}, nil
}

// MarkEmails sets the read state of the given messages.
func (a *Adapter) MarkEmails(ctx context.Context, messageIDs []string, markAs string) (map[string]any, error) {
	mb, err := a.mailbox(ctx)
	if err != nil {
		return nil, err
	}
	var count int
	err = a.observe(ctx, instrumentation.OperationModify, func(ctx context.Context) error {
		count, err = mb.Mark(ctx, messageIDs, markAs)
		return err
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"modified_count": count,
		"status_message": fmt.Sprintf("Marked %d email(s) as %s.", count, markAs),
	}, nil
}

// DeleteEmailsPermanently irrecoverably deletes the given messages.
func (a *Adapter) DeleteEmailsPermanently(ctx context.Context, messageIDs []string) (map[string]any, error) {
	mb, err := a.mailbox(ctx)
	if err != nil {
		return nil, err
	}
	var count int
	err = a.observe(ctx, instrumentation.OperationDelete, func(ctx context.Context) error {
		count, err = mb.DeletePermanently(ctx, messageIDs)
		return err
	})
	if err != nil {
		return nil, err
	}
	if a.metrics != nil {
		a.metrics.RecordPermanentDeletes(ctx, count)
	}
	a.logger.Warn("Permanently deleted emails", "count", count)
	return map[string]any{
		"deleted_count":  count,
		"status_message": fmt.Sprintf("Permanently deleted %d email(s). This cannot be undone.", count),
	}, nil
}

// ApplyParams are the scan and selection parameters for a rule application
// run.
type ApplyParams struct {
	Query      string
	RuleIDs    []string
	DryRun     bool
	ScanLimit  int
	DateAfter  string
	DateBefore string
	AllMail    bool
}

// ApplyRules scans matching messages and applies the selected rules.
func (a *Adapter) ApplyRules(ctx context.Context, params ApplyParams) (map[string]any, error) {
	selected, err := a.selectRules(params.RuleIDs)
	if err != nil {
		return nil, err
	}

	mb, err := a.mailbox(ctx)
	if err != nil {
		return nil, err
	}

	limit := params.ScanLimit
	if limit <= 0 {
		limit = defaultScanLimit
	}
	var messages []rules.Message
	scanAttrs := instrumentation.NewSpanAttributeBuilder().WithDryRun(params.DryRun).Build()
	err = a.observe(ctx, instrumentation.OperationScan, func(ctx context.Context) error {
		messages, err = mb.ScanMessages(ctx, buildScanQuery(params), int64(limit))
		return err
	}, scanAttrs...)
	if err != nil {
		return nil, err
	}

	applyCtx, span := instrumentation.StartSpan(ctx, "rules.apply", scanAttrs...)
	summary, err := a.engine.Apply(applyCtx, selected, messages, &mailboxActioner{mb: mb}, params.DryRun)
	if err != nil {
		instrumentation.SetSpanError(span, err)
		span.End()
		return nil, err
	}
	instrumentation.SetSpanSuccess(span)
	span.End()

	if a.metrics != nil {
		a.metrics.RecordRuleApplication(ctx, params.DryRun, summary.TotalActionsTaken)
	}
	return toMap(summary)
}

// ListRules returns all stored rules.
func (a *Adapter) ListRules(_ context.Context) (map[string]any, error) {
	all, err := a.rulesStore.List()
	if err != nil {
		return nil, err
	}
	items := make([]any, 0, len(all))
	for _, r := range all {
		m, err := toMap(r)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return map[string]any{"rules": items}, nil
}

// AddRule stores a new rule from its wire definition and returns the stored
// rule including generated fields.
func (a *Adapter) AddRule(_ context.Context, definition map[string]any) (map[string]any, error) {
	data, err := json.Marshal(definition)
	if err != nil {
		return nil, fmt.Errorf("failed to encode rule definition: %w", err)
	}
	var r rules.Rule
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to decode rule definition: %w", err)
	}

	created, err := a.rulesStore.Add(r)
	if err != nil {
		return nil, err
	}
	a.logger.Info("Added rule", "rule", created.Name, "id", created.ID)
	return toMap(created)
}

// DeleteRule removes a rule by id or name.
func (a *Adapter) DeleteRule(_ context.Context, identifier string) (map[string]any, error) {
	deleted, err := a.rulesStore.Delete(identifier)
	if err != nil {
		return nil, err
	}
	a.logger.Info("Deleted rule", "rule", deleted.Name, "id", deleted.ID)
	return map[string]any{
		"status_message":          fmt.Sprintf("Deleted rule %q.", deleted.Name),
		"deleted_rule_identifier": identifier,
	}, nil
}

func (a *Adapter) selectRules(identifiers []string) ([]rules.Rule, error) {
	all, err := a.rulesStore.List()
	if err != nil {
		return nil, err
	}
	if len(identifiers) == 0 {
		return all, nil
	}

	// Ids resolve before names, so a rule named like another rule's id
	// cannot shadow it.
	byID := make(map[string]rules.Rule, len(all))
	byName := make(map[string]rules.Rule, len(all))
	for _, r := range all {
		byID[r.ID] = r
		byName[r.Name] = r
	}

	selected := make([]rules.Rule, 0, len(identifiers))
	seen := make(map[string]bool)
	for _, id := range identifiers {
		r, ok := byID[id]
		if !ok {
			r, ok = byName[id]
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s", rules.ErrRuleNotFound, id)
		}
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		selected = append(selected, r)
	}
	return selected, nil
}

// buildScanQuery combines the base query with date bounds. all_mail wins
// over everything else and scans without a filter.
func buildScanQuery(params ApplyParams) string {
	if params.AllMail {
		return ""
	}
	parts := make([]string, 0, 3)
	if q := strings.TrimSpace(params.Query); q != "" {
		parts = append(parts, q)
	}
	if params.DateAfter != "" {
		parts = append(parts, "after:"+params.DateAfter)
	}
	if params.DateBefore != "" {
		parts = append(parts, "before:"+params.DateBefore)
	}
	return strings.Join(parts, " ")
}

// mailboxActioner adapts the Mailbox to the rule engine's Actioner.
type mailboxActioner struct {
	mb Mailbox
}

func (m *mailboxActioner) Trash(ctx context.Context, ids []string) error {
	_, err := m.mb.Trash(ctx, ids)
	return err
}

func (m *mailboxActioner) AddLabel(ctx context.Context, label string, ids []string) error {
	_, err := m.mb.ModifyLabels(ctx, ids, []string{label}, nil)
	return err
}

func (m *mailboxActioner) RemoveLabel(ctx context.Context, label string, ids []string) error {
	_, err := m.mb.ModifyLabels(ctx, ids, nil, []string{label})
	return err
}

func (m *mailboxActioner) MarkRead(ctx context.Context, ids []string) error {
	_, err := m.mb.Mark(ctx, ids, gmail.MarkRead)
	return err
}

func (m *mailboxActioner) MarkUnread(ctx context.Context, ids []string) error {
	_, err := m.mb.Mark(ctx, ids, gmail.MarkUnread)
	return err
}

// toMap converts a typed value to the generic map shape of tool outputs.
func toMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode result: %w", err)
	}
	return out, nil
}
