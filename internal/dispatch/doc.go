// Package dispatch routes tool invocations through a fixed pipeline:
// tool lookup, input validation, handler execution under a deadline, error
// normalization, and session context recording.
//
// Every invocation produces exactly one ExecutionResult. Failures never
// escape as raw errors; they are mapped onto a closed set of error codes so
// callers can branch on the code without parsing messages. Session writes
// happen only after a successful execution and are advisory: a failing
// session store logs a warning but never fails the invocation.
package dispatch
