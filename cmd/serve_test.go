package cmd

import (
	"strings"
	"testing"
	"time"

	"github.com/damienmail/damien-mcp-server/internal/registry"
)

func TestNewSessionStore(t *testing.T) {
	tests := []struct {
		name    string
		config  SessionStorageConfig
		wantErr bool
	}{
		{
			name:    "defaults to memory",
			config:  SessionStorageConfig{SweepInterval: time.Minute},
			wantErr: false,
		},
		{
			name:    "explicit memory",
			config:  SessionStorageConfig{Type: "memory", SweepInterval: time.Minute},
			wantErr: false,
		},
		{
			name:    "valkey without URL",
			config:  SessionStorageConfig{Type: "valkey"},
			wantErr: true,
		},
		{
			name:    "unsupported type",
			config:  SessionStorageConfig{Type: "redis"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := newSessionStore(tt.config)

			if (err != nil) != tt.wantErr {
				t.Errorf("newSessionStore() error = %v, wantErr %v", err, tt.wantErr)
			}
			if store != nil {
				_ = store.Close()
			}
		})
	}
}

func TestGenerateToolsMarkdown(t *testing.T) {
	reg, err := registry.Default()
	if err != nil {
		t.Fatalf("Failed to build registry: %v", err)
	}

	markdown := generateToolsMarkdown(reg.List())

	for _, def := range reg.List() {
		if !strings.Contains(markdown, "### "+def.Name) {
			t.Errorf("markdown missing section for tool %s", def.Name)
		}
	}

	if !strings.Contains(markdown, "## Table of Contents") {
		t.Error("markdown missing table of contents")
	}
	if !strings.Contains(markdown, "`message_ids`") {
		t.Error("markdown missing message_ids argument documentation")
	}
}

func TestServeCommandFlags(t *testing.T) {
	cmd := newServeCmd()

	for _, flag := range []string{
		"transport", "http-addr", "api-key", "request-timeout",
		"gmail-credentials", "gmail-token", "rules-file",
		"session-storage-type", "session-ttl",
		"valkey-url", "valkey-password", "valkey-tls",
		"metrics-enabled", "metrics-addr",
	} {
		if cmd.Flags().Lookup(flag) == nil {
			t.Errorf("serve command missing flag --%s", flag)
		}
	}
}
