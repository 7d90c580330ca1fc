package models

import "testing"

func TestRenderRequest_Defaults(t *testing.T) {
	req := &RenderRequest{URL: "https://example.com"}
	req.Defaults()

	if req.WaitMode != WaitModeNetworkIdle {
		t.Errorf("waitMode = %q, want network-idle", req.WaitMode)
	}
	if req.HardTimeoutMs != DefaultHardTimeoutMs {
		t.Errorf("hardTimeoutMs = %d, want %d", req.HardTimeoutMs, DefaultHardTimeoutMs)
	}
	if req.PostLoadWaitMs != DefaultPostLoadWaitMs {
		t.Errorf("postLoadWaitMs = %d, want %d", req.PostLoadWaitMs, DefaultPostLoadWaitMs)
	}
	if req.Viewport.Width != 1920 || req.Viewport.Height != 1080 {
		t.Errorf("viewport = %+v, want 1920x1080", req.Viewport)
	}
	if req.ScrollToBottom == nil || !*req.ScrollToBottom {
		t.Error("scrollToBottom should default to true")
	}
	if req.ReturnPartialOnTimeout == nil || !*req.ReturnPartialOnTimeout {
		t.Error("returnPartialOnTimeout should default to true")
	}
}

func TestRenderRequest_TimeoutClamp(t *testing.T) {
	req := &RenderRequest{URL: "https://example.com", HardTimeoutMs: 500000}
	req.Defaults()
	if req.HardTimeoutMs != MaxHardTimeoutMs {
		t.Errorf("hardTimeoutMs = %d, want clamp to %d", req.HardTimeoutMs, MaxHardTimeoutMs)
	}
}

func TestRenderRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*RenderRequest)
		wantErr bool
	}{
		{"valid", func(r *RenderRequest) {}, false},
		{"relative url", func(r *RenderRequest) { r.URL = "/foo" }, true},
		{"ftp scheme", func(r *RenderRequest) { r.URL = "ftp://example.com" }, true},
		{"empty host", func(r *RenderRequest) { r.URL = "https://" }, true},
		{"bad wait mode", func(r *RenderRequest) { r.WaitMode = "eventually" }, true},
		{"bad selector", func(r *RenderRequest) { r.WaitForSelectors = []string{"div[" } }, true},
		{"good selector", func(r *RenderRequest) { r.WaitForSelectors = []string{"#main .item"} }, false},
		{"bad samesite", func(r *RenderRequest) {
			r.Cookies = []Cookie{{Name: "a", SameSite: "sometimes"}}
		}, true},
		{"bad screenshot format", func(r *RenderRequest) {
			r.WantScreenshot = &ScreenshotOptions{Format: "webp"}
		}, true},
		{"bad paper size", func(r *RenderRequest) {
			r.WantPDF = &PDFOptions{PaperSize: "napkin"}
		}, true},
		{"letter paper", func(r *RenderRequest) {
			r.WantPDF = &PDFOptions{PaperSize: "Letter"}
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &RenderRequest{URL: "https://example.com"}
			req.Defaults()
			tt.mutate(req)
			err := req.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr = %v", err, tt.wantErr)
			}
			if err != nil {
				re, ok := err.(*RenderError)
				if !ok {
					t.Fatalf("Validate() returned %T, want *RenderError", err)
				}
				if re.Kind != ErrKindInvalidInput {
					t.Errorf("kind = %s, want %s", re.Kind, ErrKindInvalidInput)
				}
			}
		})
	}
}

func TestBatchRequest_Defaults(t *testing.T) {
	b := &BatchRequest{URLs: []string{"https://example.com"}}
	b.Defaults()
	if b.MaxParallel != DefaultBatchParallel {
		t.Errorf("maxParallel = %d, want %d", b.MaxParallel, DefaultBatchParallel)
	}

	b = &BatchRequest{URLs: []string{"https://example.com"}, MaxParallel: 50}
	b.Defaults()
	if b.MaxParallel != MaxBatchParallel {
		t.Errorf("maxParallel = %d, want clamp to %d", b.MaxParallel, MaxBatchParallel)
	}
}

func TestBatchRequest_Validate(t *testing.T) {
	b := &BatchRequest{}
	if err := b.Validate(10); err == nil {
		t.Error("empty batch should fail validation")
	}

	b = &BatchRequest{URLs: []string{"https://a.com", "https://b.com", "https://c.com"}}
	if err := b.Validate(2); err == nil {
		t.Error("batch over the cap should fail validation")
	}
	if err := b.Validate(3); err != nil {
		t.Errorf("batch at the cap should pass, got %v", err)
	}

	b = &BatchRequest{URLs: []string{"not a url"}}
	if err := b.Validate(10); err == nil {
		t.Error("malformed URL should fail validation")
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		kind string
		want int
	}{
		{ErrKindInvalidInput, 400},
		{ErrKindUnauthorized, 401},
		{ErrKindNavigationBlocked, 502},
		{ErrKindNetwork, 502},
		{ErrKindBrowserUnavailable, 503},
		{ErrKindSessionCreation, 503},
		{ErrKindTimeout, 504},
		{ErrKindExtraction, 500},
		{ErrKindInternal, 500},
	}
	for _, tt := range tests {
		if got := HTTPStatus(tt.kind); got != tt.want {
			t.Errorf("HTTPStatus(%s) = %d, want %d", tt.kind, got, tt.want)
		}
	}
}

func TestRenderError_Wrapping(t *testing.T) {
	inner := NewRenderError(ErrKindNetwork, "dns failed", nil)
	outer := NewRenderError(ErrKindTimeout, "render timed out", inner)

	if outer.Unwrap() != inner {
		t.Error("Unwrap did not return the inner error")
	}

	detail := outer.WithSuggestion("retry later").WithRequestID("abc123").ToDetail()
	if detail.Suggestion != "retry later" {
		t.Errorf("suggestion = %q", detail.Suggestion)
	}
	if detail.RequestID != "abc123" {
		t.Errorf("requestId = %q", detail.RequestID)
	}
	if detail.Original == "" {
		t.Error("originalMessage should carry the wrapped error")
	}
}
