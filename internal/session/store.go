package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no context exists for the requested key, or
// the stored context has expired.
var ErrNotFound = errors.New("session context not found")

// Interaction records one successful tool invocation within a session.
type Interaction struct {
	ToolResultID  string         `json:"tool_result_id"`
	ToolName      string         `json:"tool_name"`
	Input         map[string]any `json:"input,omitempty"`
	OutputSummary string         `json:"output_summary,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
}

// Context is the per-session state carried across tool invocations.
type Context struct {
	Owner        string        `json:"owner"`
	SessionID    string        `json:"session_id"`
	Interactions []Interaction `json:"interactions"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// Append returns a copy of the context with one more interaction recorded.
func (c Context) Append(in Interaction) Context {
	interactions := make([]Interaction, 0, len(c.Interactions)+1)
	interactions = append(interactions, c.Interactions...)
	interactions = append(interactions, in)
	c.Interactions = interactions
	c.UpdatedAt = in.Timestamp
	return c
}

// Store persists session context with a TTL.
//
// Get returns ErrNotFound for unknown or expired keys. Put overwrites any
// existing context for the same key and resets its TTL.
type Store interface {
	Get(ctx context.Context, owner, sessionID string) (Context, error)
	Put(ctx context.Context, sc Context, ttl time.Duration) error
	Delete(ctx context.Context, owner, sessionID string) error
	Ping(ctx context.Context) error
	Close() error
}
