package browser

import (
	"testing"

	"github.com/pagelens/pagelens/fingerprint"
)

func mustIdentity(t *testing.T) *fingerprint.Identity {
	t.Helper()
	id, err := fingerprint.Synthesise("", nil)
	if err != nil {
		t.Fatalf("Synthesise failed: %v", err)
	}
	return id
}

func TestToHeadersMap(t *testing.T) {
	m := toHeadersMap(map[string]string{
		"Referer":         "https://www.google.com/search?q=example.com",
		"X-Custom-Header": "value",
	})
	if len(m) != 2 {
		t.Fatalf("header map has %d entries, want 2", len(m))
	}
	if got := m["Referer"].Str(); got != "https://www.google.com/search?q=example.com" {
		t.Errorf("Referer = %q", got)
	}
	if got := m["X-Custom-Header"].Str(); got != "value" {
		t.Errorf("X-Custom-Header = %q", got)
	}
}

func TestHostOf(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://Example.com/path", "example.com"},
		{"http://www.google.com/search", "www.google.com"},
		{"://broken", ""},
	}
	for _, tt := range tests {
		if got := hostOf(tt.url); got != tt.want {
			t.Errorf("hostOf(%s) = %q, want %q", tt.url, got, tt.want)
		}
	}
}
