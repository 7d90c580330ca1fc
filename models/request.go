package models

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/andybalholm/cascadia"
)

// Default and boundary values for RenderRequest fields.
const (
	DefaultHardTimeoutMs  = 30000
	MaxHardTimeoutMs      = 120000
	DefaultPostLoadWaitMs = 2000
	DefaultViewportWidth  = 1920
	DefaultViewportHeight = 1080

	DefaultBatchParallel = 3
	MaxBatchParallel     = 5
)

// Wait modes accepted by RenderRequest.WaitMode.
const (
	WaitModeLoad        = "load"
	WaitModeDOMReady    = "dom-ready"
	WaitModeNetworkIdle = "network-idle"
)

// Cookie is the wire representation of a cookie to install before navigation.
type Cookie struct {
	Name     string `json:"name" binding:"required"`
	Value    string `json:"value"`
	Domain   string `json:"domain,omitempty"`
	Path     string `json:"path,omitempty"`
	Secure   bool   `json:"secure,omitempty"`
	HTTPOnly bool   `json:"httpOnly,omitempty"`
	SameSite string `json:"sameSite,omitempty"` // Lax, Strict, None
	Expires  int64  `json:"expires,omitempty"`  // epoch seconds
}

// Viewport is the emulated window size.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ScreenshotOptions controls the optional screenshot artifact.
type ScreenshotOptions struct {
	FullPage bool   `json:"fullPage,omitempty"`
	Format   string `json:"format,omitempty"` // png (default) or jpeg
	Quality  int    `json:"quality,omitempty"`
}

// PDFOptions controls the optional PDF artifact.
type PDFOptions struct {
	PaperSize  string  `json:"paperSize,omitempty"` // A4 (default), Letter, Legal
	Background bool    `json:"background,omitempty"`
	MarginIn   float64 `json:"margin,omitempty"` // uniform margin, inches
}

// RenderRequest is the input record for a single render.
type RenderRequest struct {
	// URL is the target page. Required, absolute http(s).
	URL string `json:"url" binding:"required"`

	// WaitMode selects the navigation readiness event:
	// "load", "dom-ready" or "network-idle" (default).
	WaitMode string `json:"waitMode,omitempty"`

	// HardTimeoutMs bounds wall-clock time from session acquisition to
	// artifact emission. Default 30000, clamped to 120000.
	HardTimeoutMs int `json:"timeout,omitempty"`

	// PostLoadWaitMs is the settle dwell after the readiness event fires.
	PostLoadWaitMs int `json:"extraWaitTime,omitempty"`

	UserAgentOverride string            `json:"userAgent,omitempty"`
	Cookies           []Cookie          `json:"cookies,omitempty"`
	ExtraHeaders      map[string]string `json:"headers,omitempty"`
	Viewport          *Viewport         `json:"viewport,omitempty"`

	// ScrollToBottom triggers the eased full-page scroll to force lazy
	// content. Default true; send false to disable.
	ScrollToBottom *bool `json:"scrollToBottom,omitempty"`

	// Soft waits, best-effort clicks and DOM strips, applied in order.
	// Failures are logged but never abort the render.
	WaitForSelectors []string `json:"waitForSelectors,omitempty"`
	ClickSelectors   []string `json:"clickSelectors,omitempty"`
	RemoveSelectors  []string `json:"removeElements,omitempty"`

	// CustomScript is evaluated once after readiness; best-effort.
	CustomScript string `json:"customScript,omitempty"`

	CaptureConsole bool `json:"captureConsole,omitempty"`

	// ReturnPartialOnTimeout gates the emergency-extraction branch.
	// Default true; send false to surface a timeout error instead.
	ReturnPartialOnTimeout *bool `json:"returnPartialOnTimeout,omitempty"`

	WantScreenshot *ScreenshotOptions `json:"screenshot,omitempty"`
	WantPDF        *PDFOptions        `json:"pdf,omitempty"`
}

// Defaults applies default values to unset fields and clamps bounds.
func (r *RenderRequest) Defaults() {
	if r.WaitMode == "" {
		r.WaitMode = WaitModeNetworkIdle
	}
	if r.HardTimeoutMs <= 0 {
		r.HardTimeoutMs = DefaultHardTimeoutMs
	}
	if r.HardTimeoutMs > MaxHardTimeoutMs {
		r.HardTimeoutMs = MaxHardTimeoutMs
	}
	if r.PostLoadWaitMs <= 0 {
		r.PostLoadWaitMs = DefaultPostLoadWaitMs
	}
	if r.Viewport == nil || r.Viewport.Width <= 0 || r.Viewport.Height <= 0 {
		r.Viewport = &Viewport{Width: DefaultViewportWidth, Height: DefaultViewportHeight}
	}
	if r.ScrollToBottom == nil {
		t := true
		r.ScrollToBottom = &t
	}
	if r.ReturnPartialOnTimeout == nil {
		t := true
		r.ReturnPartialOnTimeout = &t
	}
	if r.WantScreenshot != nil && r.WantScreenshot.Format == "" {
		r.WantScreenshot.Format = "png"
	}
	if r.WantPDF != nil && r.WantPDF.PaperSize == "" {
		r.WantPDF.PaperSize = "A4"
	}
}

// Validate checks the request after Defaults has been applied.
// All failures map to ErrKindInvalidInput.
func (r *RenderRequest) Validate() error {
	u, err := url.Parse(r.URL)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return NewRenderError(ErrKindInvalidInput,
			fmt.Sprintf("url must be an absolute http(s) URL, got %q", r.URL), err)
	}

	switch r.WaitMode {
	case WaitModeLoad, WaitModeDOMReady, WaitModeNetworkIdle:
	default:
		return NewRenderError(ErrKindInvalidInput,
			fmt.Sprintf("waitMode must be one of load, dom-ready, network-idle; got %q", r.WaitMode), nil)
	}

	for _, group := range [][]string{r.WaitForSelectors, r.ClickSelectors, r.RemoveSelectors} {
		for _, sel := range group {
			if _, err := cascadia.Parse(sel); err != nil {
				return NewRenderError(ErrKindInvalidInput,
					fmt.Sprintf("invalid CSS selector %q", sel), err)
			}
		}
	}

	for _, c := range r.Cookies {
		switch c.SameSite {
		case "", "Lax", "Strict", "None":
		default:
			return NewRenderError(ErrKindInvalidInput,
				fmt.Sprintf("cookie %q: sameSite must be Lax, Strict or None", c.Name), nil)
		}
	}

	if s := r.WantScreenshot; s != nil {
		if s.Format != "png" && s.Format != "jpeg" {
			return NewRenderError(ErrKindInvalidInput,
				fmt.Sprintf("screenshot format must be png or jpeg, got %q", s.Format), nil)
		}
		if s.Quality < 0 || s.Quality > 100 {
			return NewRenderError(ErrKindInvalidInput, "screenshot quality must be 0-100", nil)
		}
	}

	if p := r.WantPDF; p != nil {
		switch strings.ToUpper(p.PaperSize) {
		case "A4", "A3", "LETTER", "LEGAL", "TABLOID":
		default:
			return NewRenderError(ErrKindInvalidInput,
				fmt.Sprintf("unsupported pdf paperSize %q", p.PaperSize), nil)
		}
	}

	return nil
}

// BatchRequest fans a list of URLs through the renderer with bounded
// parallelism. Per-item options are shared.
type BatchRequest struct {
	URLs        []string       `json:"urls" binding:"required"`
	MaxParallel int            `json:"concurrency,omitempty"`
	Options     *RenderRequest `json:"options,omitempty"`
}

// Defaults clamps MaxParallel to [1, 5] and normalises shared options.
func (b *BatchRequest) Defaults() {
	if b.MaxParallel <= 0 {
		b.MaxParallel = DefaultBatchParallel
	}
	if b.MaxParallel > MaxBatchParallel {
		b.MaxParallel = MaxBatchParallel
	}
	if b.Options == nil {
		b.Options = &RenderRequest{}
	}
	b.Options.Defaults()
}

// Validate checks the batch envelope. maxURLs comes from configuration.
func (b *BatchRequest) Validate(maxURLs int) error {
	if len(b.URLs) == 0 {
		return NewRenderError(ErrKindInvalidInput, "urls must not be empty", nil)
	}
	if maxURLs > 0 && len(b.URLs) > maxURLs {
		return NewRenderError(ErrKindInvalidInput,
			fmt.Sprintf("maximum %d URLs per batch", maxURLs), nil)
	}
	for _, raw := range b.URLs {
		u, err := url.Parse(raw)
		if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return NewRenderError(ErrKindInvalidInput,
				fmt.Sprintf("url must be an absolute http(s) URL, got %q", raw), err)
		}
	}
	return nil
}
