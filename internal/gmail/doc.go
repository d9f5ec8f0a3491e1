// Package gmail wraps the Gmail API for the mailbox operations the server
// exposes: listing and fetching messages, trashing, label changes, read
// state changes, and permanent deletion.
//
// A Provider builds the underlying client lazily on first use and shares it
// across concurrent invocations. A failed initialization is not cached, so a
// later call retries once credentials become available.
//
// API failures are classified into typed errors (AuthError, NotFoundError,
// APIError) so callers can map them without inspecting Google error codes
// themselves.
package gmail
