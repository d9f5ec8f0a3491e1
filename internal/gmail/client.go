package gmail

import (
	"context"
	"fmt"
	"strings"

	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/damienmail/damien-mcp-server/internal/google"
	"github.com/damienmail/damien-mcp-server/internal/rules"
)

// Client wraps the Gmail Users service.
type Client struct {
	svc *gmail.UsersService
}

// NewClient creates a Gmail client authenticated from the configured
// credential files.
func NewClient(ctx context.Context, cfg google.Config) (*Client, error) {
	httpClient, err := google.GetHTTPClient(ctx, cfg)
	if err != nil {
		return nil, &AuthError{Err: err}
	}

	svc, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	return &Client{svc: svc.Users}, nil
}

// ListMessages lists message summaries matching the query, one page at a
// time.
func (c *Client) ListMessages(ctx context.Context, query string, maxResults int64, pageToken string) (*MessagePage, error) {
	req := c.svc.Messages.List("me").MaxResults(maxResults).Context(ctx)
	if query != "" {
		req = req.Q(query)
	}
	if pageToken != "" {
		req = req.PageToken(pageToken)
	}

	res, err := req.Do()
	if err != nil {
		return nil, classify(err, "message list")
	}

	page := &MessagePage{
		Summaries:     make([]MessageSummary, 0, len(res.Messages)),
		NextPageToken: res.NextPageToken,
	}
	for _, m := range res.Messages {
		page.Summaries = append(page.Summaries, MessageSummary{ID: m.Id, ThreadID: m.ThreadId})
	}
	return page, nil
}

// GetMessage fetches one message in the given format (full, metadata or
// raw).
func (c *Client) GetMessage(ctx context.Context, messageID, format string) (*gmail.Message, error) {
	msg, err := c.svc.Messages.Get("me", messageID).Format(format).Context(ctx).Do()
	if err != nil {
		return nil, classify(err, fmt.Sprintf("message %s", messageID))
	}
	return msg, nil
}

// Trash moves the given messages to the trash and returns how many were
// trashed.
func (c *Client) Trash(ctx context.Context, messageIDs []string) (int, error) {
	for i, id := range messageIDs {
		if _, err := c.svc.Messages.Trash("me", id).Context(ctx).Do(); err != nil {
			return i, classify(err, fmt.Sprintf("message %s", id))
		}
	}
	return len(messageIDs), nil
}

// ModifyLabels adds and removes labels by name on the given messages.
// Labels named in addNames are created when they do not exist yet; labels
// named in removeNames that do not exist are skipped.
func (c *Client) ModifyLabels(ctx context.Context, messageIDs, addNames, removeNames []string) (int, error) {
	byName, err := c.labelIDsByName(ctx)
	if err != nil {
		return 0, err
	}

	var addIDs []string
	for _, name := range addNames {
		id, ok := byName[strings.ToLower(name)]
		if !ok {
			created, err := c.createLabel(ctx, name)
			if err != nil {
				return 0, err
			}
			id = created
			byName[strings.ToLower(name)] = id
		}
		addIDs = append(addIDs, id)
	}

	var removeIDs []string
	for _, name := range removeNames {
		if id, ok := byName[strings.ToLower(name)]; ok {
			removeIDs = append(removeIDs, id)
		}
	}

	if len(addIDs) == 0 && len(removeIDs) == 0 {
		return 0, nil
	}
	return c.batchModify(ctx, messageIDs, addIDs, removeIDs)
}

// Mark sets the read state of the given messages by toggling the UNREAD
// system label.
func (c *Client) Mark(ctx context.Context, messageIDs []string, markAs string) (int, error) {
	switch markAs {
	case MarkRead:
		return c.batchModify(ctx, messageIDs, nil, []string{labelUnread})
	case MarkUnread:
		return c.batchModify(ctx, messageIDs, []string{labelUnread}, nil)
	default:
		return 0, fmt.Errorf("invalid mark state %q", markAs)
	}
}

// DeletePermanently irrecoverably deletes the given messages.
func (c *Client) DeletePermanently(ctx context.Context, messageIDs []string) (int, error) {
	err := c.svc.Messages.BatchDelete("me", &gmail.BatchDeleteMessagesRequest{
		Ids: messageIDs,
	}).Context(ctx).Do()
	if err != nil {
		return 0, classify(err, "message batch")
	}
	return len(messageIDs), nil
}

// ScanMessages fetches up to limit messages matching the query with the
// header metadata rule conditions are matched against.
func (c *Client) ScanMessages(ctx context.Context, query string, limit int64) ([]rules.Message, error) {
	var scanned []rules.Message
	pageToken := ""

	for {
		remaining := limit - int64(len(scanned))
		if remaining <= 0 {
			break
		}
		pageSize := remaining
		if pageSize > 100 {
			pageSize = 100
		}

		req := c.svc.Messages.List("me").MaxResults(pageSize).Context(ctx)
		if query != "" {
			req = req.Q(query)
		}
		if pageToken != "" {
			req = req.PageToken(pageToken)
		}
		res, err := req.Do()
		if err != nil {
			return nil, classify(err, "message list")
		}

		for _, m := range res.Messages {
			msg, err := c.svc.Messages.Get("me", m.Id).
				Format("metadata").
				MetadataHeaders("From", "To", "Subject").
				Context(ctx).Do()
			if err != nil {
				return nil, classify(err, fmt.Sprintf("message %s", m.Id))
			}
			scanned = append(scanned, toRuleMessage(msg))
			if int64(len(scanned)) >= limit {
				break
			}
		}

		if res.NextPageToken == "" || int64(len(scanned)) >= limit {
			break
		}
		pageToken = res.NextPageToken
	}
	return scanned, nil
}

func toRuleMessage(msg *gmail.Message) rules.Message {
	out := rules.Message{
		ID:     msg.Id,
		Labels: msg.LabelIds,
	}
	if msg.Payload == nil {
		return out
	}
	for _, h := range msg.Payload.Headers {
		switch strings.ToLower(h.Name) {
		case "from":
			out.From = h.Value
		case "to":
			out.To = h.Value
		case "subject":
			out.Subject = h.Value
		}
	}
	return out
}

func (c *Client) batchModify(ctx context.Context, messageIDs, addIDs, removeIDs []string) (int, error) {
	err := c.svc.Messages.BatchModify("me", &gmail.BatchModifyMessagesRequest{
		Ids:            messageIDs,
		AddLabelIds:    addIDs,
		RemoveLabelIds: removeIDs,
	}).Context(ctx).Do()
	if err != nil {
		return 0, classify(err, "message batch")
	}
	return len(messageIDs), nil
}

func (c *Client) labelIDsByName(ctx context.Context) (map[string]string, error) {
	res, err := c.svc.Labels.List("me").Context(ctx).Do()
	if err != nil {
		return nil, classify(err, "label list")
	}
	byName := make(map[string]string, len(res.Labels))
	for _, l := range res.Labels {
		byName[strings.ToLower(l.Name)] = l.Id
	}
	return byName, nil
}

func (c *Client) createLabel(ctx context.Context, name string) (string, error) {
	label, err := c.svc.Labels.Create("me", &gmail.Label{
		Name:                  name,
		LabelListVisibility:   "labelShow",
		MessageListVisibility: "show",
	}).Context(ctx).Do()
	if err != nil {
		return "", classify(err, fmt.Sprintf("label %s", name))
	}
	return label.Id, nil
}
