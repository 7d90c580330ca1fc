package renderer

import (
	"context"
	"errors"
	"testing"

	"github.com/pagelens/pagelens/config"
	"github.com/pagelens/pagelens/models"
)

func configForTest() config.RenderConfig {
	return config.RenderConfig{MaxConcurrency: 2, MaxBatchURLs: 10}
}

func TestIsGoogleURL(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://google.com/search?q=x", true},
		{"https://www.google.com", true},
		{"https://google.de/search", true},
		{"https://www.google.co.uk/maps", true},
		{"https://example.com", false},
		{"https://notgoogle.com", false},
		{"https://google.example.com", false},
		{"not a url at all", false},
	}
	for _, tt := range tests {
		if got := isGoogleURL(tt.url); got != tt.want {
			t.Errorf("isGoogleURL(%s) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestHostOfURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://Example.com/path?q=1", "example.com"},
		{"http://example.com:8080/", "example.com"},
		{"https://sub.example.com#frag", "sub.example.com"},
		{"no-scheme", ""},
	}
	for _, tt := range tests {
		if got := hostOfURL(tt.url); got != tt.want {
			t.Errorf("hostOfURL(%s) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"deadline", context.DeadlineExceeded, models.ErrKindTimeout},
		{"canceled", context.Canceled, models.ErrKindTimeout},
		{"dns", errors.New("net::ERR_NAME_NOT_RESOLVED"), models.ErrKindNetwork},
		{"reset", errors.New("net::ERR_CONNECTION_RESET at https://x"), models.ErrKindNetwork},
		{"ssl", errors.New("net::ERR_SSL_PROTOCOL_ERROR"), models.ErrKindNetwork},
		{"other", errors.New("page gone"), models.ErrKindExtraction},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			re := classify(tt.err, "msg")
			if re.Kind != tt.want {
				t.Errorf("classify kind = %s, want %s", re.Kind, tt.want)
			}
		})
	}
}

func TestCloneRequest_DeepCopies(t *testing.T) {
	scroll := true
	shared := &models.RenderRequest{
		Cookies:          []models.Cookie{{Name: "a", Value: "1"}},
		WaitForSelectors: []string{".x"},
		ExtraHeaders:     map[string]string{"X-A": "1"},
		Viewport:         &models.Viewport{Width: 800, Height: 600},
		ScrollToBottom:   &scroll,
	}

	dup := cloneRequest(shared)
	dup.Cookies[0].Value = "mutated"
	dup.WaitForSelectors[0] = ".y"
	dup.ExtraHeaders["X-A"] = "mutated"
	dup.Viewport.Width = 1
	*dup.ScrollToBottom = false

	if shared.Cookies[0].Value != "1" {
		t.Error("cookie slice aliased between clones")
	}
	if shared.WaitForSelectors[0] != ".x" {
		t.Error("selector slice aliased between clones")
	}
	if shared.ExtraHeaders["X-A"] != "1" {
		t.Error("header map aliased between clones")
	}
	if shared.Viewport.Width != 800 {
		t.Error("viewport aliased between clones")
	}
	if !*shared.ScrollToBottom {
		t.Error("scrollToBottom pointer aliased between clones")
	}
}

func TestCloneRequest_Nil(t *testing.T) {
	if cloneRequest(nil) == nil {
		t.Error("cloneRequest(nil) should return an empty request")
	}
}

func TestFailedItem_WrapsPlainErrors(t *testing.T) {
	item := failedItem("https://x.test", 12, errors.New("boom"))
	if item.Status != "failure" {
		t.Errorf("status = %s", item.Status)
	}
	if item.Error == nil || item.Error.Kind != models.ErrKindInternal {
		t.Errorf("plain error not wrapped as internal: %+v", item.Error)
	}

	item = failedItem("https://x.test", 5, models.NewRenderError(models.ErrKindNetwork, "dns", nil))
	if item.Error.Kind != models.ErrKindNetwork {
		t.Errorf("render error kind lost: %+v", item.Error)
	}
}

func TestRender_InvalidInputShortCircuits(t *testing.T) {
	// No browser needed: validation fails before a session is acquired.
	r := New(nil, nil, configForTest())

	_, err := r.Render(context.Background(), &models.RenderRequest{URL: "not-a-url"})
	var re *models.RenderError
	if !errors.As(err, &re) {
		t.Fatalf("expected *RenderError, got %v", err)
	}
	if re.Kind != models.ErrKindInvalidInput {
		t.Errorf("kind = %s, want %s", re.Kind, models.ErrKindInvalidInput)
	}
	if re.RequestID == "" {
		t.Error("validation error missing request-id")
	}
}

func TestNewRequestID_Unique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := newRequestID()
		if len(id) != 16 {
			t.Fatalf("request id %q has unexpected length", id)
		}
		if seen[id] {
			t.Fatalf("duplicate request id %q", id)
		}
		seen[id] = true
	}
}
