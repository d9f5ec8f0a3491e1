package gmail

// MessageSummary is the lightweight listing view of a message.
type MessageSummary struct {
	ID       string `json:"id"`
	ThreadID string `json:"thread_id,omitempty"`
}

// MessagePage is one page of a message listing.
type MessagePage struct {
	Summaries     []MessageSummary `json:"email_summaries"`
	NextPageToken string           `json:"next_page_token,omitempty"`
}

// Read state values for Mark.
const (
	MarkRead   = "read"
	MarkUnread = "unread"
)

// Well-known Gmail system label IDs.
const (
	labelUnread = "UNREAD"
)
