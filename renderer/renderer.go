// Package renderer drives single renders through the readiness protocol and
// fans batches over bounded parallelism. One render is strictly sequential:
// navigate, stabilise, mutate, extract; a hard wall-clock budget governs the
// whole path with an emergency-extraction branch on timeout.
package renderer

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/pagelens/pagelens/browser"
	"github.com/pagelens/pagelens/config"
	"github.com/pagelens/pagelens/fingerprint"
	"github.com/pagelens/pagelens/humanize"
	"github.com/pagelens/pagelens/models"
	"github.com/pagelens/pagelens/probe"
)

// Per-stage ceilings from the readiness protocol.
const (
	selectorWaitCeiling  = 30 * time.Second
	clickWaitCeiling     = 20 * time.Second
	clickDwell           = 2 * time.Second
	networkIdleCeiling   = 30 * time.Second
	stabiliseFloor       = 5 * time.Second
	emergencyNavCeiling  = 45 * time.Second
	emergencySettleDwell = 5 * time.Second
	googleRetryDelay     = 10 * time.Second
)

// Renderer orchestrates sessions from the lifecycle manager. Safe for
// concurrent use; in-flight renders are bounded process-wide.
type Renderer struct {
	manager *browser.Manager
	prober  *probe.Prober
	cfg     config.RenderConfig

	slots    chan struct{}
	inFlight atomic.Int32
}

// New creates a Renderer. prober may be nil to disable pre-flight checks.
func New(manager *browser.Manager, prober *probe.Prober, cfg config.RenderConfig) *Renderer {
	maxConc := cfg.MaxConcurrency
	if maxConc <= 0 {
		maxConc = 3
	}
	return &Renderer{
		manager: manager,
		prober:  prober,
		cfg:     cfg,
		slots:   make(chan struct{}, maxConc),
	}
}

// InFlight reports the number of renders currently holding a slot.
func (r *Renderer) InFlight() int {
	return int(r.inFlight.Load())
}

// newRequestID mints the opaque correlation token attached to all log lines
// and error surfaces for one render.
func newRequestID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// Render runs one request through the full state machine.
//
// The wall-clock budget starts at slot acquisition and covers everything up
// to artifact emission. A true timeout (not a caller abort) enters the
// emergency branch when the caller opted into partial results.
func (r *Renderer) Render(ctx context.Context, req *models.RenderRequest) (*models.RenderOutcome, error) {
	requestID := newRequestID()

	// Deployment-level defaults apply before the request's own.
	if req.HardTimeoutMs <= 0 && r.cfg.DefaultTimeout > 0 {
		req.HardTimeoutMs = int(r.cfg.DefaultTimeout.Milliseconds())
	}
	if req.PostLoadWaitMs <= 0 && r.cfg.ExtraWaitTime > 0 {
		req.PostLoadWaitMs = int(r.cfg.ExtraWaitTime.Milliseconds())
	}
	req.Defaults()
	if err := req.Validate(); err != nil {
		var re *models.RenderError
		if errors.As(err, &re) {
			return nil, re.WithRequestID(requestID)
		}
		return nil, err
	}

	// Bound process-wide concurrency before spending a session.
	select {
	case r.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, models.NewRenderError(models.ErrKindInternal,
			"request abandoned while waiting for a render slot", ctx.Err()).
			WithRequestID(requestID)
	}
	defer func() { <-r.slots }()

	r.inFlight.Add(1)
	defer r.inFlight.Add(-1)

	started := time.Now()
	hardTimeout := time.Duration(req.HardTimeoutMs) * time.Millisecond

	budgetCtx, cancel := context.WithTimeout(ctx, hardTimeout)
	defer cancel()

	outcome, err := r.renderPrimary(budgetCtx, req, requestID, started)
	if err == nil {
		outcome.DurationMs = time.Since(started).Milliseconds()
		return outcome, nil
	}

	// Only a true budget exhaustion gates into emergency recovery; a caller
	// abort never does.
	timedOut := budgetCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil
	if !timedOut {
		return nil, r.finalise(err, requestID)
	}

	if !*req.ReturnPartialOnTimeout {
		return nil, models.NewRenderError(models.ErrKindTimeout,
			"render exceeded the hard timeout", err).
			WithSuggestion("raise timeout or set returnPartialOnTimeout").
			WithRequestID(requestID)
	}

	slog.Warn("primary render timed out, entering emergency extraction",
		"requestId", requestID, "url", req.URL, "elapsed", time.Since(started))

	outcome, emErr := r.emergencyExtract(ctx, req, requestID)
	if emErr != nil {
		return nil, models.NewRenderError(models.ErrKindTimeout,
			"render timed out and emergency extraction failed", err).
			WithRequestID(requestID)
	}
	outcome.StartedAt = started.UTC().Format(time.RFC3339)
	outcome.DurationMs = time.Since(started).Milliseconds()
	return outcome, nil
}

// finalise wraps an arbitrary stage error into a classified RenderError.
func (r *Renderer) finalise(err error, requestID string) error {
	var re *models.RenderError
	if errors.As(err, &re) {
		if re.RequestID == "" {
			re.RequestID = requestID
		}
		return re
	}
	return classify(err, "render failed").WithRequestID(requestID)
}

// classify buckets raw engine errors into the error kinds of the API
// surface.
func classify(err error, msg string) *models.RenderError {
	s := ""
	if err != nil {
		s = err.Error()
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewRenderError(models.ErrKindTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewRenderError(models.ErrKindTimeout, "request canceled", err)
	case strings.Contains(s, "ERR_NAME_NOT_RESOLVED"),
		strings.Contains(s, "ERR_CONNECTION"),
		strings.Contains(s, "ERR_ADDRESS_UNREACHABLE"),
		strings.Contains(s, "ERR_INTERNET_DISCONNECTED"),
		strings.Contains(s, "ERR_SSL"),
		strings.Contains(s, "ERR_TIMED_OUT"):
		return models.NewRenderError(models.ErrKindNetwork, msg, err).
			WithSuggestion("verify the URL resolves and is reachable from this host")
	default:
		return models.NewRenderError(models.ErrKindExtraction, msg, err)
	}
}

// isSessionFatal reports engine-level failures that should degrade the
// shared browser.
func isSessionFatal(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "websocket") ||
		strings.Contains(s, "cdp connection") ||
		strings.Contains(s, "target crashed") ||
		strings.Contains(s, "session closed")
}

// renderPrimary is the happy path: ContextReady → Navigating → Stabilising →
// Mutating → Extracting.
func (r *Renderer) renderPrimary(ctx context.Context, req *models.RenderRequest, requestID string, started time.Time) (*models.RenderOutcome, error) {
	identity, err := fingerprint.Synthesise(req.UserAgentOverride, viewportOf(req))
	if err != nil {
		return nil, models.NewRenderError(models.ErrKindInternal, "identity synthesis failed", err)
	}

	session, err := r.manager.AcquireSession(ctx, identity, req, requestID)
	if err != nil {
		return nil, err
	}
	defer r.manager.ReleaseSession(session)

	p := session.Page(ctx)

	router := mountHeaderRewrite(session.RawPage(), identity, hostOfURL(req.URL), req.ExtraHeaders)
	defer func() { _ = router.Stop() }()

	hardTimeout := time.Duration(req.HardTimeoutMs) * time.Millisecond

	// ── Navigating ──────────────────────────────────────────────────
	if err := r.navigate(ctx, p, req, hardTimeout, requestID); err != nil {
		if isSessionFatal(err) {
			r.manager.MarkFatal(err)
		}
		return nil, err
	}

	// ── Stabilising ─────────────────────────────────────────────────
	r.stabilise(ctx, p, req)

	// ── Mutating ────────────────────────────────────────────────────
	r.mutate(ctx, p, req, requestID)

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	// ── Extracting ──────────────────────────────────────────────────
	return r.extract(ctx, p, session, req, started, requestID)
}

func viewportOf(req *models.RenderRequest) *fingerprint.Viewport {
	if req.Viewport == nil {
		return nil
	}
	return &fingerprint.Viewport{Width: req.Viewport.Width, Height: req.Viewport.Height}
}

func hostOfURL(raw string) string {
	if i := strings.Index(raw, "://"); i >= 0 {
		rest := raw[i+3:]
		if j := strings.IndexAny(rest, "/?#"); j >= 0 {
			rest = rest[:j]
		}
		if k := strings.IndexByte(rest, ':'); k >= 0 {
			rest = rest[:k]
		}
		return strings.ToLower(rest)
	}
	return ""
}

// navigate dispatches the goto under the regime selected by the target host.
func (r *Renderer) navigate(ctx context.Context, p *rod.Page, req *models.RenderRequest, hardTimeout time.Duration, requestID string) error {
	if isGoogleURL(req.URL) {
		return r.navigateGoogle(ctx, p, req, hardTimeout, requestID)
	}
	return r.navigateStandard(ctx, p, req, hardTimeout, requestID)
}

// navigateStandard uses the caller's wait mode under a 70%-of-budget
// ceiling, falling back to dom-ready at 50% when the primary wait fails.
func (r *Renderer) navigateStandard(ctx context.Context, p *rod.Page, req *models.RenderRequest, hardTimeout time.Duration, requestID string) error {
	primary := hardTimeout * 7 / 10
	if err := p.Timeout(primary).Navigate(req.URL); err != nil {
		return classify(err, "navigation to target URL failed")
	}

	if err := waitReadiness(p, req.WaitMode, primary); err != nil {
		slog.Warn("primary readiness wait failed, retrying with dom-ready",
			"requestId", requestID, "waitMode", req.WaitMode, "error", err)
		if err := waitReadiness(p, models.WaitModeDOMReady, hardTimeout/2); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Warn("fallback readiness wait failed, continuing with current DOM",
				"requestId", requestID, "error", err)
		}
	}
	return nil
}

// navigateGoogle goes in with dom-ready and a short ceiling, probes for the
// anti-automation interstitial, and reloads once after a cool-off on match.
func (r *Renderer) navigateGoogle(ctx context.Context, p *rod.Page, req *models.RenderRequest, hardTimeout time.Duration, requestID string) error {
	ceiling := 15 * time.Second
	if hardTimeout >= 60*time.Second {
		ceiling = 30 * time.Second
	}

	if err := p.Timeout(ceiling).Navigate(req.URL); err != nil {
		return classify(err, "navigation to google property failed")
	}
	if err := waitReadiness(p, models.WaitModeDOMReady, ceiling); err != nil {
		slog.Warn("google dom-ready wait failed", "requestId", requestID, "error", err)
	}

	if !detectBlockPage(p) {
		return nil
	}

	slog.Warn("anti-automation page detected, cooling off and reloading once",
		"requestId", requestID, "url", req.URL)
	select {
	case <-time.After(googleRetryDelay):
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := p.Timeout(ceiling).Reload(); err != nil {
		return classify(err, "reload after block page failed")
	}
	if err := waitReadiness(p, models.WaitModeDOMReady, ceiling); err != nil {
		slog.Warn("google reload wait failed", "requestId", requestID, "error", err)
	}

	if detectBlockPage(p) {
		return models.NewRenderError(models.ErrKindNavigationBlocked,
			"target served an anti-automation interstitial", nil).
			WithSuggestion("retry later from a different egress IP or supply session cookies")
	}
	return nil
}

// waitReadiness resolves the requested readiness event under a ceiling.
func waitReadiness(p *rod.Page, mode string, ceiling time.Duration) error {
	bound := p.Timeout(ceiling)
	switch mode {
	case models.WaitModeLoad:
		return bound.WaitLoad()
	case models.WaitModeDOMReady:
		return bound.WaitDOMStable(300*time.Millisecond, 0.1)
	default: // network-idle
		if err := bound.WaitLoad(); err != nil {
			return err
		}
		return bound.WaitDOMStable(500*time.Millisecond, 0)
	}
}

// stabilise runs the post-load settle protocol. Everything here is
// best-effort; the budget context is the only abort path.
func (r *Renderer) stabilise(ctx context.Context, p *rod.Page, req *models.RenderRequest) {
	dwell := time.Duration(req.PostLoadWaitMs) * time.Millisecond
	if dwell < stabiliseFloor {
		dwell = stabiliseFloor
	}
	select {
	case <-time.After(dwell):
	case <-ctx.Done():
		return
	}

	humanize.WaitForStylesheetsAndImages(ctx, p)

	// Single-page frameworks keep painting after load; give detected roots
	// extra settle time, then fall back to the idle callback.
	if _, err := p.Eval(`() => new Promise(resolve => {
		const spa = document.querySelector('[data-reactroot], #root, #__next, [data-v-app], #app, [ng-version]');
		if (spa) { setTimeout(resolve, 2000); return; }
		if (window.requestIdleCallback) {
			window.requestIdleCallback(resolve, { timeout: 2000 });
		} else {
			setTimeout(resolve, 2000);
		}
	})`); err != nil {
		slog.Debug("settle wait failed", "error", err)
	}
}

// mutate applies the caller's DOM interactions in order. Every step catches
// its own failure; none of them may abort the render.
func (r *Renderer) mutate(ctx context.Context, p *rod.Page, req *models.RenderRequest, requestID string) {
	for _, sel := range req.WaitForSelectors {
		if ctx.Err() != nil {
			return
		}
		if err := p.Timeout(selectorWaitCeiling).WaitElementsMoreThan(sel, 0); err != nil {
			slog.Warn("soft wait for selector failed",
				"requestId", requestID, "selector", sel, "error", err)
		}
	}

	for _, sel := range req.ClickSelectors {
		if ctx.Err() != nil {
			return
		}
		if err := clickSelector(p, sel); err != nil {
			slog.Warn("best-effort click failed",
				"requestId", requestID, "selector", sel, "error", err)
			continue
		}
		select {
		case <-time.After(clickDwell):
		case <-ctx.Done():
			return
		}
	}

	forceDesktopLayout(p)
	humanize.WaitForFrameworks(ctx, p)
	humanize.SimulateMouse(ctx, p)

	if *req.ScrollToBottom {
		humanize.EasedScrollToBottom(ctx, p)
	}

	if req.WaitMode == models.WaitModeNetworkIdle {
		if err := p.Timeout(networkIdleCeiling).WaitDOMStable(500*time.Millisecond, 0); err != nil {
			slog.Debug("post-interaction idle wait did not converge", "requestId", requestID, "error", err)
		}
	}

	if req.CustomScript != "" {
		if _, err := p.Eval(req.CustomScript); err != nil {
			slog.Warn("custom script failed", "requestId", requestID, "error", err)
		}
	}

	removeElements(p, req.RemoveSelectors, requestID)
}

func clickSelector(p *rod.Page, sel string) error {
	bound := p.Timeout(clickWaitCeiling)
	el, err := bound.Element(sel)
	if err != nil {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

// forceDesktopLayout widens root elements and hides obvious mobile-only
// chrome. Mobile-first sites rendered at desktop widths may lose content to
// the marker hiding; that trade-off is intentional.
func forceDesktopLayout(p *rod.Page) {
	_, err := p.Eval(`() => {
		if (document.getElementById('__force-desktop')) return;
		const style = document.createElement('style');
		style.id = '__force-desktop';
		style.textContent =
			'html, body { min-width: 1920px !important; } ' +
			'[class*="mobile-only"], [class*="mobile-nav"], [class*="hamburger"], ' +
			'[id*="mobile-menu"] { display: none !important; }';
		document.head.appendChild(style);
	}`)
	if err != nil {
		slog.Debug("desktop layout injection failed", "error", err)
	}
}

func removeElements(p *rod.Page, selectors []string, requestID string) {
	for _, sel := range selectors {
		if _, err := p.Eval(`(sel) => {
			document.querySelectorAll(sel).forEach(el => el.remove());
		}`, sel); err != nil {
			slog.Warn("element removal failed",
				"requestId", requestID, "selector", sel, "error", err)
		}
	}
}

// extract reads the artifacts off the settled page and closes out the
// outcome record.
func (r *Renderer) extract(ctx context.Context, p *rod.Page, session *browser.Session, req *models.RenderRequest, started time.Time, requestID string) (*models.RenderOutcome, error) {
	html, err := p.HTML()
	if err != nil {
		if isSessionFatal(err) {
			r.manager.MarkFatal(err)
		}
		return nil, models.NewRenderError(models.ErrKindExtraction,
			"failed to read page HTML", err)
	}

	outcome := &models.RenderOutcome{
		HTML:          html,
		OriginalURL:   req.URL,
		FinalURL:      req.URL,
		StartedAt:     started.UTC().Format(time.RFC3339),
		ContentLength: len(html),
	}

	outcome.Title = evalStringOrEmpty(p, `() => document.title`)
	if outcome.Title == "" {
		outcome.Title = htmlTitle(html)
	}
	if finalURL := evalStringOrEmpty(p, `() => window.location.href`); finalURL != "" {
		outcome.FinalURL = finalURL
	}

	if req.WantScreenshot != nil {
		shot, err := captureScreenshot(p, req.WantScreenshot)
		if err != nil {
			// HTML is already in hand; a lost screenshot downgrades, not
			// aborts.
			slog.Warn("screenshot capture failed", "requestId", requestID, "error", err)
		} else {
			outcome.ScreenshotBytes = shot
			outcome.ScreenshotWidth, outcome.ScreenshotHeight = imageDimensions(shot)
		}
	}

	if req.WantPDF != nil {
		pdf, err := r.renderPDF(ctx, p, req, requestID)
		if err != nil {
			return nil, models.NewRenderError(models.ErrKindExtraction,
				"pdf generation failed", err)
		}
		outcome.PDFBytes = pdf
	}

	if req.CaptureConsole {
		outcome.ConsoleLogs = session.ConsoleLogs()
	}

	return outcome, nil
}

// renderPDF prefers a fresh navigation so print layout sees fully loaded
// stylesheets and images; if the re-navigation fails the current DOM is
// printed as-is.
func (r *Renderer) renderPDF(ctx context.Context, p *rod.Page, req *models.RenderRequest, requestID string) ([]byte, error) {
	target := evalStringOrEmpty(p, `() => window.location.href`)
	if target == "" {
		target = req.URL
	}

	if err := p.Timeout(networkIdleCeiling).Navigate(target); err == nil {
		if err := waitReadiness(p, models.WaitModeNetworkIdle, networkIdleCeiling); err != nil {
			slog.Debug("pdf readiness wait failed", "requestId", requestID, "error", err)
		}
		humanize.WaitForStylesheetsAndImages(ctx, p)
	} else {
		slog.Warn("pdf fresh navigation failed, printing current DOM",
			"requestId", requestID, "error", err)
	}

	return capturePDF(p, req.WantPDF)
}

// evalStringOrEmpty evaluates a JS expression and returns the string result,
// swallowing any errors (useful for optional metadata extraction).
func evalStringOrEmpty(p *rod.Page, js string) string {
	res, err := p.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}
