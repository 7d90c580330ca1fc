package browser

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/pagelens/pagelens/fingerprint"
	"github.com/pagelens/pagelens/models"
	"github.com/ysmood/gson"
)

// maxConsoleEntries caps the per-session console buffer.
const maxConsoleEntries = 500

// Session is one isolated rendering context owned by exactly one in-flight
// request. It is never reused: created on request, destroyed on completion
// or abort.
type Session struct {
	Identity  *fingerprint.Identity
	RequestID string

	inc  *rod.Browser // incognito context owning the page
	page *rod.Page    // original page reference, used for cleanup

	targetHost string

	consoleMu sync.Mutex
	console   []models.ConsoleEntry

	closeOnce sync.Once
}

// newSession creates the page inside the isolated context and applies the
// identity: viewport, user-agent, locale/timezone emulation, both stealth
// layers at document start, and the request cookies.
func newSession(ctx context.Context, inc *rod.Browser, id *fingerprint.Identity, req *models.RenderRequest, requestID string) (*Session, error) {
	page, err := inc.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, err
	}

	s := &Session{
		Identity:   id,
		RequestID:  requestID,
		inc:        inc,
		page:       page,
		targetHost: hostOf(req.URL),
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             id.Viewport.Width,
		Height:            id.Viewport.Height,
		DeviceScaleFactor: 1,
		Mobile:            false,
	}); err != nil {
		s.close()
		return nil, err
	}

	if err := (proto.NetworkSetUserAgentOverride{
		UserAgent:      id.UserAgent,
		AcceptLanguage: id.AcceptLanguage(),
		Platform:       id.Platform,
	}).Call(page); err != nil {
		s.close()
		return nil, err
	}

	// Emulation overrides are best-effort: a mismatch only weakens the
	// identity, it does not break rendering.
	if err := (proto.EmulationSetTimezoneOverride{TimezoneID: id.Timezone}).Call(page); err != nil {
		slog.Warn("timezone override failed", "requestId", requestID, "error", err)
	}
	if err := (proto.EmulationSetLocaleOverride{Locale: id.Locale}).Call(page); err != nil {
		slog.Warn("locale override failed", "requestId", requestID, "error", err)
	}

	// Both stealth layers must land before any document starts loading.
	// If the engine refuses the injection the session is unusable.
	layers, err := stealthLayers(id)
	if err != nil {
		s.close()
		return nil, err
	}
	for _, js := range layers {
		if _, err := page.EvalOnNewDocument(js); err != nil {
			s.close()
			return nil, err
		}
	}

	s.setCookies(req.Cookies)
	s.applyExtraHeaders(req.ExtraHeaders)

	if req.CaptureConsole {
		s.collectConsole()
	}

	return s, nil
}

// Page returns the page bound to the given context. The original reference
// stays unbound so cleanup still works after the request context expires.
func (s *Session) Page(ctx context.Context) *rod.Page {
	return s.page.Context(ctx)
}

// RawPage returns the unbound page for cleanup paths.
func (s *Session) RawPage() *rod.Page {
	return s.page
}

// setCookies installs the per-request cookies. Failures are logged and
// skipped: a rejected cookie must not abort the render.
func (s *Session) setCookies(cookies []models.Cookie) {
	for _, c := range cookies {
		domain := c.Domain
		if domain == "" {
			domain = s.targetHost
		}
		path := c.Path
		if path == "" {
			path = "/"
		}
		set := proto.NetworkSetCookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   domain,
			Path:     path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		}
		if c.SameSite != "" {
			set.SameSite = proto.NetworkCookieSameSite(c.SameSite)
		}
		if c.Expires > 0 {
			set.Expires = proto.TimeSinceEpoch(c.Expires)
		}
		if _, err := set.Call(s.page); err != nil {
			slog.Warn("cookie install failed",
				"requestId", s.RequestID, "cookie", c.Name, "error", err)
		}
	}
}

// applyExtraHeaders installs the caller's extra headers at the network
// layer, plus a plausible search Referer when the caller supplied none.
// These form the baseline for any request the interception hook does not
// rewrite; the hook carries them forward on the ones it does.
func (s *Session) applyExtraHeaders(extra map[string]string) {
	headers := make(map[string]string, len(extra)+1)
	if _, hasReferer := extra["Referer"]; !hasReferer {
		headers["Referer"] = "https://www.google.com/search?q=" + url.QueryEscape(s.targetHost)
	}
	for k, v := range extra {
		headers[k] = v
	}
	if len(headers) == 0 {
		return
	}
	if err := (proto.NetworkSetExtraHTTPHeaders{
		Headers: toHeadersMap(headers),
	}).Call(s.page); err != nil {
		slog.Warn("extra header install failed", "requestId", s.RequestID, "error", err)
	}
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

// preloadGoogleConsent plants the consent cookies Google checks before
// serving results, so the interstitial never renders.
func (s *Session) preloadGoogleConsent(host string) {
	parent := strings.TrimPrefix(host, "www.")
	expires := proto.TimeSinceEpoch(time.Now().Add(365 * 24 * time.Hour).Unix())

	for name, value := range map[string]string{
		"CONSENT": "YES+CB.en+V14",
		"SOCS":    "CAI",
	} {
		set := proto.NetworkSetCookie{
			Name:     name,
			Value:    value,
			Domain:   "." + parent,
			Path:     "/",
			Secure:   true,
			SameSite: proto.NetworkCookieSameSiteNone,
			Expires:  expires,
		}
		if _, err := set.Call(s.page); err != nil {
			slog.Warn("consent cookie install failed",
				"requestId", s.RequestID, "cookie", name, "error", err)
		}
	}
}

// collectConsole buffers console API calls until the page closes.
func (s *Session) collectConsole() {
	go s.page.EachEvent(func(e *proto.RuntimeConsoleAPICalled) {
		var parts []string
		for _, arg := range e.Args {
			if arg.Value.Nil() {
				continue
			}
			parts = append(parts, arg.Value.String())
		}
		s.consoleMu.Lock()
		if len(s.console) < maxConsoleEntries {
			s.console = append(s.console, models.ConsoleEntry{
				Level:     string(e.Type),
				Text:      strings.Join(parts, " "),
				Timestamp: time.Now().UnixMilli(),
			})
		}
		s.consoleMu.Unlock()
	})()
}

// ConsoleLogs returns a snapshot of the captured console buffer.
func (s *Session) ConsoleLogs() []models.ConsoleEntry {
	s.consoleMu.Lock()
	defer s.consoleMu.Unlock()
	out := make([]models.ConsoleEntry, len(s.console))
	copy(out, s.console)
	return out
}

// close destroys the page and disposes its incognito context. Idempotent.
func (s *Session) close() {
	s.closeOnce.Do(func() {
		if s.page != nil {
			if err := s.page.Close(); err != nil {
				slog.Debug("page close failed", "requestId", s.RequestID, "error", err)
			}
		}
		if s.inc != nil && s.inc.BrowserContextID != "" {
			err := proto.TargetDisposeBrowserContext{
				BrowserContextID: s.inc.BrowserContextID,
			}.Call(s.inc)
			if err != nil {
				slog.Debug("context dispose failed", "requestId", s.RequestID, "error", err)
			}
		}
	})
}
