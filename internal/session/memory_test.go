package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore(time.Minute, nil)
	defer s.Close()
	ctx := context.Background()

	sc := Context{
		Owner:     "agent-a",
		SessionID: "sess-1",
		UpdatedAt: time.Now(),
	}
	require.NoError(t, s.Put(ctx, sc, time.Minute))

	got, err := s.Get(ctx, "agent-a", "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "agent-a", got.Owner)
	assert.Equal(t, "sess-1", got.SessionID)
	assert.Empty(t, got.Interactions)
}

func TestMemoryStoreUnknownKey(t *testing.T) {
	s := NewMemoryStore(time.Minute, nil)
	defer s.Close()

	_, err := s.Get(context.Background(), "agent-a", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreKeysAreScopedByOwner(t *testing.T) {
	s := NewMemoryStore(time.Minute, nil)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, Context{Owner: "agent-a", SessionID: "shared"}, time.Minute))

	_, err := s.Get(ctx, "agent-b", "shared")
	assert.ErrorIs(t, err, ErrNotFound)

	// Different split points of the same concatenation must not collide.
	require.NoError(t, s.Put(ctx, Context{Owner: "ab", SessionID: "c"}, time.Minute))
	_, err = s.Get(ctx, "a", "bc")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreExpiredEntryIsAbsentBeforeSweep(t *testing.T) {
	// A long sweep interval guarantees the sweeper cannot run during the
	// test; expiry must still be enforced on read.
	s := NewMemoryStore(time.Hour, nil)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, Context{Owner: "agent-a", SessionID: "sess-1"}, time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	_, err := s.Get(ctx, "agent-a", "sess-1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, s.Len())
}

func TestMemoryStorePutResetsTTL(t *testing.T) {
	s := NewMemoryStore(time.Hour, nil)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, Context{Owner: "agent-a", SessionID: "sess-1"}, time.Millisecond))
	require.NoError(t, s.Put(ctx, Context{Owner: "agent-a", SessionID: "sess-1"}, time.Minute))
	time.Sleep(5 * time.Millisecond)

	_, err := s.Get(ctx, "agent-a", "sess-1")
	assert.NoError(t, err)
}

func TestMemoryStoreDelete(t *testing.T) {
	s := NewMemoryStore(time.Minute, nil)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, Context{Owner: "agent-a", SessionID: "sess-1"}, time.Minute))
	require.NoError(t, s.Delete(ctx, "agent-a", "sess-1"))

	_, err := s.Get(ctx, "agent-a", "sess-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestContextAppendCopies(t *testing.T) {
	now := time.Now()
	base := Context{Owner: "agent-a", SessionID: "sess-1"}

	first := base.Append(Interaction{ToolResultID: "r1", ToolName: "damien_list_emails", Timestamp: now})
	second := first.Append(Interaction{ToolResultID: "r2", ToolName: "damien_trash_emails", Timestamp: now.Add(time.Second)})

	assert.Empty(t, base.Interactions)
	require.Len(t, first.Interactions, 1)
	require.Len(t, second.Interactions, 2)
	assert.Equal(t, "r1", second.Interactions[0].ToolResultID)
	assert.Equal(t, "r2", second.Interactions[1].ToolResultID)
	assert.Equal(t, now.Add(time.Second), second.UpdatedAt)
}
