// Package google loads Google OAuth2 credentials from disk and builds
// authenticated HTTP clients for the Gmail API.
//
// Authentication is non-interactive: the server expects an OAuth client
// secrets file and a previously obtained token file, produced by an external
// authorization flow. Missing or invalid files surface as errors at client
// construction time, never as prompts.
package google
