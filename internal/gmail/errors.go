package gmail

import (
	"errors"
	"fmt"

	"google.golang.org/api/googleapi"
)

// AuthError indicates the Gmail credentials were rejected or missing.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("gmail authentication failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// NotFoundError indicates the requested message or label does not exist.
type NotFoundError struct {
	Resource string
	Err      error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("gmail resource not found: %s", e.Resource)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// APIError wraps any other Gmail API failure.
type APIError struct {
	StatusCode int
	Err        error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gmail API error (status %d): %v", e.StatusCode, e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }

// classify maps a raw Gmail API error onto the package's typed errors.
// Context errors pass through untouched so deadline handling upstream keeps
// working.
func classify(err error, resource string) error {
	if err == nil {
		return nil
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case 401, 403:
			return &AuthError{Err: err}
		case 404:
			return &NotFoundError{Resource: resource, Err: err}
		default:
			return &APIError{StatusCode: gerr.Code, Err: err}
		}
	}
	return err
}
