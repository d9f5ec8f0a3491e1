// Package rules implements mailbox filtering rules: their definition,
// durable storage, and evaluation against messages.
//
// A rule pairs a set of conditions (matched against message headers and
// labels, combined with AND or OR) with a list of actions (trash, label
// changes, read state changes). Rules are stored in a single JSON file and
// identified by a server-generated id or by their unique name.
//
// The engine evaluates enabled rules against a batch of scanned messages and
// produces a summary report. A dry run produces a report with the exact same
// shape without performing any action.
package rules
