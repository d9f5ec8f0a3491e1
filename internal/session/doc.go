// Package session stores per-session conversation context for tool
// invocations.
//
// Context is keyed by the pair (owner, session id) so that two callers
// sharing a session id can never read each other's history. Entries carry a
// TTL; the memory store additionally sweeps expired entries in the
// background, and every read re-checks the deadline so an entry past its TTL
// is treated as absent even before the sweeper gets to it.
//
// Two implementations are provided: an in-process memory store and a Valkey
// backed store for deployments that need context to survive restarts.
package session
