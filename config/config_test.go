package config

import (
	"testing"
	"time"
)

func TestLoad_RequiresAuthToken(t *testing.T) {
	t.Setenv("AUTH_TOKEN", "")
	if _, err := Load(); err == nil {
		t.Fatal("Load should fail without AUTH_TOKEN")
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("AUTH_TOKEN", "secret")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 3000 {
		t.Errorf("port = %d, want 3000", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("host = %s", cfg.Server.Host)
	}
	if cfg.Render.DefaultTimeout != 30*time.Second {
		t.Errorf("default timeout = %v", cfg.Render.DefaultTimeout)
	}
	if cfg.Render.ExtraWaitTime != 2*time.Second {
		t.Errorf("extra wait = %v", cfg.Render.ExtraWaitTime)
	}
	if cfg.Render.MaxConcurrency != 3 {
		t.Errorf("max concurrency = %d", cfg.Render.MaxConcurrency)
	}
	if cfg.Render.MaxBatchURLs != 10 {
		t.Errorf("max batch urls = %d", cfg.Render.MaxBatchURLs)
	}
	if cfg.Server.BodyLimit != 10<<20 {
		t.Errorf("body limit = %d, want 10MB", cfg.Server.BodyLimit)
	}
	if !cfg.Browser.Headless {
		t.Error("headless should default to true")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("AUTH_TOKEN", "secret")
	t.Setenv("PORT", "8099")
	t.Setenv("BROWSER_TIMEOUT", "45000")
	t.Setenv("EXTRA_WAIT_TIME", "500")
	t.Setenv("MAX_CONCURRENCY", "5")
	t.Setenv("BODY_LIMIT", "512kb")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 8099 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Render.DefaultTimeout != 45*time.Second {
		t.Errorf("timeout = %v, want 45s from millisecond value", cfg.Render.DefaultTimeout)
	}
	if cfg.Render.ExtraWaitTime != 500*time.Millisecond {
		t.Errorf("extra wait = %v", cfg.Render.ExtraWaitTime)
	}
	if cfg.Render.MaxConcurrency != 5 {
		t.Errorf("max concurrency = %d", cfg.Render.MaxConcurrency)
	}
	if cfg.Server.BodyLimit != 512<<10 {
		t.Errorf("body limit = %d", cfg.Server.BodyLimit)
	}
}

func TestParseBodyLimit(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"10mb", 10 << 20, false},
		{"512KB", 512 << 10, false},
		{"1048576", 1048576, false},
		{"0", 0, true},
		{"-5mb", 0, true},
		{"lots", 0, true},
	}
	for _, tt := range tests {
		got, err := parseBodyLimit(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseBodyLimit(%s) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("parseBodyLimit(%s) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
