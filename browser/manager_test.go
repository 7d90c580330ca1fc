package browser

import (
	"testing"
	"time"

	"github.com/pagelens/pagelens/config"
)

func testManager() *Manager {
	return NewManager(config.BrowserConfig{
		Headless:      true,
		ShutdownGrace: time.Second,
	})
}

func TestManager_InitialState(t *testing.T) {
	m := testManager()
	if m.State() != "uninitialised" {
		t.Errorf("initial state = %s, want uninitialised", m.State())
	}
	if m.Health() {
		t.Error("uninitialised manager should not report healthy")
	}
	if m.ActiveSessions() != 0 {
		t.Errorf("active sessions = %d, want 0", m.ActiveSessions())
	}
}

func TestManager_ShutdownIdempotent(t *testing.T) {
	m := testManager()
	m.Shutdown()
	if m.State() != "shutdown" {
		t.Errorf("state after shutdown = %s", m.State())
	}
	// Second call must complete without error or panic.
	m.Shutdown()
	if m.State() != "shutdown" {
		t.Errorf("state after second shutdown = %s", m.State())
	}
}

func TestManager_AcquireAfterShutdown(t *testing.T) {
	m := testManager()
	m.Shutdown()
	if _, err := m.ensureReady(); err == nil {
		t.Error("ensureReady after shutdown should fail")
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateUninitialised, "uninitialised"},
		{StateStarting, "starting"},
		{StateReady, "ready"},
		{StateDegraded, "degraded"},
		{StateShutdown, "shutdown"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %s, want %s", tt.state, got, tt.want)
		}
	}
}

func TestIsGoogleHost(t *testing.T) {
	tests := []struct {
		host string
		want bool
	}{
		{"google.com", true},
		{"www.google.com", true},
		{"google.co.uk", true},
		{"google.de", true},
		{"example.com", false},
		{"maps.google.com", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isGoogleHost(tt.host); got != tt.want {
			t.Errorf("isGoogleHost(%s) = %v, want %v", tt.host, got, tt.want)
		}
	}
}

func TestStealthLayers(t *testing.T) {
	id := mustIdentity(t)
	layers, err := stealthLayers(id)
	if err != nil {
		t.Fatalf("stealthLayers failed: %v", err)
	}
	if len(layers) != 2 {
		t.Fatalf("expected 2 stealth layers, got %d", len(layers))
	}
	for i, js := range layers {
		if js == "" {
			t.Errorf("layer %d is empty", i)
		}
	}
}
