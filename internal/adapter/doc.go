// Package adapter implements the tool operations against the Gmail backend
// and the rule store.
//
// Every operation returns its result as a plain map so the dispatcher can
// embed it in the response envelope unchanged. Backend errors bubble up as
// the typed errors of the gmail and rules packages for the dispatcher to
// normalize.
package adapter
