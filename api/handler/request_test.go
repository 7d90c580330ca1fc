package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/pagelens/pagelens/models"
)

func ginContext(t *testing.T, method, target string) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, target, nil)
	return c
}

func TestQueryRenderRequest(t *testing.T) {
	c := ginContext(t, http.MethodGet,
		"/api/html?url=https%3A%2F%2Fexample.com&timeout=5000&scrollToBottom=false&width=1366&height=768")

	req, err := queryRenderRequest(c)
	if err != nil {
		t.Fatalf("queryRenderRequest failed: %v", err)
	}
	if req.URL != "https://example.com" {
		t.Errorf("url = %q", req.URL)
	}
	if req.HardTimeoutMs != 5000 {
		t.Errorf("timeout = %d", req.HardTimeoutMs)
	}
	if req.ScrollToBottom == nil || *req.ScrollToBottom {
		t.Error("scrollToBottom=false was not bound")
	}
	if req.Viewport == nil || req.Viewport.Width != 1366 || req.Viewport.Height != 768 {
		t.Errorf("viewport = %+v", req.Viewport)
	}
}

func TestQueryRenderRequest_MissingURL(t *testing.T) {
	c := ginContext(t, http.MethodGet, "/api/html")
	_, err := queryRenderRequest(c)
	if err == nil {
		t.Fatal("missing url should fail")
	}
	re, ok := err.(*models.RenderError)
	if !ok || re.Kind != models.ErrKindInvalidInput {
		t.Errorf("error = %v, want invalid input", err)
	}
}

func TestSanitizeHeader(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Plain Title", "Plain Title"},
		{"multi\nline\r", "multiline"},
		{"ctrl\x01chars\x7f", "ctrlchars"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := sanitizeHeader(tt.in); got != tt.want {
			t.Errorf("sanitizeHeader(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSetArtifactHeaders(t *testing.T) {
	c := ginContext(t, http.MethodGet, "/api/html?url=https://example.com")
	outcome := &models.RenderOutcome{
		FinalURL:              "https://example.com/final",
		Title:                 "A Title",
		WasTimeout:            true,
		IsEmergencyExtraction: true,
		ContentLength:         42,
	}
	setArtifactHeaders(c, outcome)

	h := c.Writer.Header()
	if h.Get("X-Rendered-URL") != "https://example.com/final" {
		t.Errorf("X-Rendered-URL = %q", h.Get("X-Rendered-URL"))
	}
	if h.Get("X-Page-Title") != "A Title" {
		t.Errorf("X-Page-Title = %q", h.Get("X-Page-Title"))
	}
	if h.Get("X-Was-Timeout") != "true" || h.Get("X-Is-Emergency") != "true" {
		t.Error("timeout/emergency flags not set")
	}
	if h.Get("X-Content-Length") != "42" {
		t.Errorf("X-Content-Length = %q", h.Get("X-Content-Length"))
	}
}
