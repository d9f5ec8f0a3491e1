package dispatch

import (
	"context"
	"errors"

	"github.com/damienmail/damien-mcp-server/internal/gmail"
	"github.com/damienmail/damien-mcp-server/internal/rules"
	"github.com/damienmail/damien-mcp-server/internal/validate"
)

// Error codes returned in ExecutionResult. This set is closed: every
// failure maps onto exactly one of these.
const (
	CodeUnknownTool      = "UNKNOWN_TOOL"
	CodeValidationError  = "VALIDATION_ERROR"
	CodeAuthError        = "AUTH_ERROR"
	CodeRuleNotFound     = "RULE_NOT_FOUND"
	CodeRuleStorageError = "RULE_STORAGE_ERROR"
	CodeBackendTimeout   = "BACKEND_TIMEOUT"
	CodeGmailAPIError    = "GMAIL_API_ERROR"
	CodeInternalError    = "INTERNAL_ERROR"
)

// internalErrorMessage is what callers see for uncategorized failures. The
// underlying error is logged server-side only.
const internalErrorMessage = "an internal error occurred while executing the tool"

// normalize maps any handler error onto an error code and message. The
// fallback is INTERNAL_ERROR, so no error leaves the dispatcher uncoded.
func normalize(err error) (code, message string) {
	var verr *validate.Error
	if errors.As(err, &verr) {
		return CodeValidationError, verr.Error()
	}

	var authErr *gmail.AuthError
	if errors.As(err, &authErr) {
		return CodeAuthError, authErr.Error()
	}

	if errors.Is(err, rules.ErrRuleNotFound) {
		return CodeRuleNotFound, err.Error()
	}
	if errors.Is(err, rules.ErrStorage) {
		return CodeRuleStorageError, err.Error()
	}
	if errors.Is(err, rules.ErrDuplicateRuleName) {
		return CodeValidationError, err.Error()
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return CodeBackendTimeout, "backend operation exceeded its deadline"
	}

	var notFound *gmail.NotFoundError
	if errors.As(err, &notFound) {
		return CodeGmailAPIError, notFound.Error()
	}
	var apiErr *gmail.APIError
	if errors.As(err, &apiErr) {
		return CodeGmailAPIError, apiErr.Error()
	}

	return CodeInternalError, internalErrorMessage
}

// retryable reports whether a read-only operation may be retried. Only
// transient Gmail failures qualify; everything else fails fast.
func retryable(err error) bool {
	var apiErr *gmail.APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	return false
}
