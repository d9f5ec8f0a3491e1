package gmail

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want any
	}{
		{"unauthorized", &googleapi.Error{Code: 401}, &AuthError{}},
		{"forbidden", &googleapi.Error{Code: 403}, &AuthError{}},
		{"not found", &googleapi.Error{Code: 404}, &NotFoundError{}},
		{"rate limited", &googleapi.Error{Code: 429}, &APIError{}},
		{"server error", &googleapi.Error{Code: 500}, &APIError{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err, "message m1")
			switch tt.want.(type) {
			case *AuthError:
				var target *AuthError
				assert.ErrorAs(t, got, &target)
			case *NotFoundError:
				var target *NotFoundError
				assert.ErrorAs(t, got, &target)
			case *APIError:
				var target *APIError
				require.ErrorAs(t, got, &target)
			}
		})
	}
}

func TestClassifyWrappedError(t *testing.T) {
	err := fmt.Errorf("call failed: %w", &googleapi.Error{Code: 404})

	got := classify(err, "message m1")
	var nf *NotFoundError
	require.ErrorAs(t, got, &nf)
	assert.Equal(t, "message m1", nf.Resource)
}

func TestClassifyPassesContextErrorsThrough(t *testing.T) {
	assert.ErrorIs(t, classify(context.DeadlineExceeded, "x"), context.DeadlineExceeded)
	assert.ErrorIs(t, classify(context.Canceled, "x"), context.Canceled)
}

func TestClassifyNil(t *testing.T) {
	assert.NoError(t, classify(nil, "x"))
}

func TestAPIErrorKeepsStatusCode(t *testing.T) {
	got := classify(&googleapi.Error{Code: 503}, "x")
	var apiErr *APIError
	require.ErrorAs(t, got, &apiErr)
	assert.Equal(t, 503, apiErr.StatusCode)

	var gerr *googleapi.Error
	assert.True(t, errors.As(got, &gerr))
}
