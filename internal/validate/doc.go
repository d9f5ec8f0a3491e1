// Package validate checks tool parameters against their declared JSON
// schema before any handler runs.
//
// Validation is strict and total: unknown fields are rejected, and a single
// pass collects every violation rather than stopping at the first one, so a
// caller can fix a malformed request in one round trip. Successful
// validation returns a normalized copy of the input with schema defaults
// filled in and integer-typed fields coerced from JSON numbers and numeric
// strings.
package validate
