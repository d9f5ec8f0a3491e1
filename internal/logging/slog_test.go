package logging

import (
	"strings"
	"testing"
)

func TestAnonymizeSessionID(t *testing.T) {
	tests := []struct {
		name    string
		session string
		wantTag bool
	}{
		{
			name:    "non-empty session id is hashed",
			session: "claude-session-abc123",
			wantTag: true,
		},
		{
			name:    "empty session id stays empty",
			session: "",
			wantTag: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AnonymizeSessionID(tt.session)
			if !tt.wantTag {
				if got != "" {
					t.Errorf("AnonymizeSessionID(%q) = %q, expected empty", tt.session, got)
				}
				return
			}
			if !strings.HasPrefix(got, "session:") {
				t.Errorf("AnonymizeSessionID(%q) = %q, expected session: prefix", tt.session, got)
			}
			if strings.Contains(got, tt.session) {
				t.Errorf("AnonymizeSessionID leaked the raw session id: %q", got)
			}
		})
	}
}

func TestAnonymizeSessionIDStable(t *testing.T) {
	a := AnonymizeSessionID("session-1")
	b := AnonymizeSessionID("session-1")
	if a != b {
		t.Errorf("hashing is not stable: %q != %q", a, b)
	}
	c := AnonymizeSessionID("session-2")
	if a == c {
		t.Errorf("distinct sessions hashed to the same value: %q", a)
	}
}

func TestSanitizeKey(t *testing.T) {
	if got := SanitizeKey(""); got != "<empty>" {
		t.Errorf("SanitizeKey(\"\") = %q", got)
	}
	got := SanitizeKey("super-secret-api-key")
	if strings.Contains(got, "super") {
		t.Errorf("SanitizeKey leaked content: %q", got)
	}
	if got != "[secret:20 chars]" {
		t.Errorf("SanitizeKey = %q, expected length indicator", got)
	}
}

func TestErrNilIsSafe(t *testing.T) {
	attr := Err(nil)
	if attr.Key != "" {
		t.Errorf("Err(nil) should produce an omittable attribute, got key %q", attr.Key)
	}
}
