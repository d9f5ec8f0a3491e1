// Package cmd implements the command-line interface for the Damien MCP
// server.
//
// This package provides the following commands:
//   - serve: Start the server exposing email management tools over HTTP or stdio
//   - apply: Apply filtering rules to the mailbox directly from the CLI
//   - version: Display version information
//   - generate-docs: Generate markdown documentation for all tools
//
// The serve command is the default command when no subcommand is specified.
package cmd
