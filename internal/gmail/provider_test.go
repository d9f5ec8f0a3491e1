package gmail

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/damienmail/damien-mcp-server/internal/google"
)

func messageWithHeaders(id string, headers map[string]string, labels []string) *gmailapi.Message {
	payload := &gmailapi.MessagePart{}
	for name, value := range headers {
		payload.Headers = append(payload.Headers, &gmailapi.MessagePartHeader{Name: name, Value: value})
	}
	return &gmailapi.Message{Id: id, LabelIds: labels, Payload: payload}
}

func TestProviderInitializesOnce(t *testing.T) {
	var inits atomic.Int32
	p := NewProvider(google.Config{})
	p.newClient = func(_ context.Context, _ google.Config) (*Client, error) {
		inits.Add(1)
		return &Client{}, nil
	}

	var wg sync.WaitGroup
	clients := make([]*Client, 8)
	for i := range clients {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := p.Client(context.Background())
			require.NoError(t, err)
			clients[i] = c
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), inits.Load())
	for _, c := range clients[1:] {
		assert.Same(t, clients[0], c)
	}
}

func TestProviderRetriesAfterFailure(t *testing.T) {
	var inits atomic.Int32
	initErr := errors.New("credentials missing")
	p := NewProvider(google.Config{})
	p.newClient = func(_ context.Context, _ google.Config) (*Client, error) {
		if inits.Add(1) == 1 {
			return nil, initErr
		}
		return &Client{}, nil
	}

	_, err := p.Client(context.Background())
	assert.ErrorIs(t, err, initErr)

	c, err := p.Client(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, c)
	assert.Equal(t, int32(2), inits.Load())
}

func TestToRuleMessage(t *testing.T) {
	msg := messageWithHeaders("m1", map[string]string{
		"From":    "news@example.com",
		"To":      "me@example.com",
		"Subject": "Weekly",
	}, []string{"INBOX", "UNREAD"})

	got := toRuleMessage(msg)
	assert.Equal(t, "m1", got.ID)
	assert.Equal(t, "news@example.com", got.From)
	assert.Equal(t, "me@example.com", got.To)
	assert.Equal(t, "Weekly", got.Subject)
	assert.Equal(t, []string{"INBOX", "UNREAD"}, got.Labels)
}
