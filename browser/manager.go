// Package browser owns the process-wide engine singleton and vends isolated
// rendering sessions. At most one engine process is alive at a time; startup
// is serialised, crashes flip the manager into a degraded state and the next
// acquire relaunches.
package browser

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/pagelens/pagelens/config"
	"github.com/pagelens/pagelens/fingerprint"
	"github.com/pagelens/pagelens/models"
	"github.com/pagelens/pagelens/stealth"
)

// Manager owns the engine singleton. Safe for many concurrent acquirers.
type Manager struct {
	cfg config.BrowserConfig

	mu       sync.Mutex
	state    State
	browser  *rod.Browser
	launch   *launcher.Launcher
	sessions map[*Session]struct{}

	startTime time.Time
}

// NewManager creates a Manager without launching anything; the engine starts
// lazily on the first AcquireSession.
func NewManager(cfg config.BrowserConfig) *Manager {
	return &Manager{
		cfg:       cfg,
		sessions:  make(map[*Session]struct{}),
		startTime: time.Now(),
	}
}

// newLauncher builds the launch argument set. The flags disable automation
// disclosure and the blink features that leak it.
func (m *Manager) newLauncher() *launcher.Launcher {
	l := launcher.New().
		Headless(m.cfg.Headless).
		NoSandbox(m.cfg.NoSandbox)

	if m.cfg.BrowserBin != "" {
		l = l.Bin(m.cfg.BrowserBin)
	}
	if m.cfg.DefaultProxy != "" {
		l = l.Proxy(m.cfg.DefaultProxy)
	}

	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI,IsolateOrigins,site-per-process")
	l.Set(flags.Flag("disable-infobars"))
	l.Set(flags.Flag("disable-ipc-flooding-protection"))
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-prompt-on-repost"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))
	l.Set(flags.Flag("hide-scrollbars"))
	l.Set(flags.Flag("mute-audio"))

	return l
}

// ensureReady launches the engine if needed. Callers racing during launch
// block on the manager mutex and observe the same start. One relaunch is
// attempted before giving up.
func (m *Manager) ensureReady() (*rod.Browser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StateShutdown:
		return nil, models.NewRenderError(models.ErrKindBrowserUnavailable,
			"browser manager is shut down", nil)
	case StateReady:
		return m.browser, nil
	case StateDegraded:
		slog.Warn("browser degraded, relaunching")
		m.teardownLocked()
	}

	m.state = StateStarting

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		l := m.newLauncher()
		controlURL, err := l.Launch()
		if err != nil {
			lastErr = err
			slog.Error("browser launch failed", "attempt", attempt+1, "error", err)
			continue
		}

		b := rod.New().ControlURL(controlURL)
		if err := b.Connect(); err != nil {
			lastErr = err
			slog.Error("browser connect failed", "attempt", attempt+1, "error", err)
			l.Kill()
			continue
		}

		m.launch = l
		m.browser = b
		m.state = StateReady
		slog.Info("browser launched", "controlURL", controlURL, "attempt", attempt+1)
		return b, nil
	}

	m.state = StateUninitialised
	return nil, models.NewRenderError(models.ErrKindBrowserUnavailable,
		"failed to launch browser after retry", lastErr).
		WithSuggestion("check that a Chromium binary is installed and BROWSER_BIN points at it")
}

// AcquireSession vends a fresh isolated session: its own incognito context,
// the identity's emulation overrides, both stealth layers installed at
// document start, and the per-request cookies. req.URL drives the Google
// consent preload.
func (m *Manager) AcquireSession(ctx context.Context, id *fingerprint.Identity, req *models.RenderRequest, requestID string) (*Session, error) {
	b, err := m.ensureReady()
	if err != nil {
		return nil, err
	}

	inc, err := b.Incognito()
	if err != nil {
		m.MarkFatal(err)
		return nil, models.NewRenderError(models.ErrKindSessionCreation,
			"failed to create isolated context", err)
	}

	s, err := newSession(ctx, inc, id, req, requestID)
	if err != nil {
		return nil, models.NewRenderError(models.ErrKindSessionCreation,
			"failed to initialise session page", err)
	}

	if host := hostOf(req.URL); isGoogleHost(host) {
		s.preloadGoogleConsent(host)
	}

	m.mu.Lock()
	m.sessions[s] = struct{}{}
	m.mu.Unlock()

	slog.Debug("session acquired",
		"requestId", requestID,
		"family", id.Family,
		"locale", id.Locale,
	)
	return s, nil
}

// ReleaseSession destroys the session's page and context. Idempotent.
func (m *Manager) ReleaseSession(s *Session) {
	if s == nil {
		return
	}
	m.mu.Lock()
	delete(m.sessions, s)
	m.mu.Unlock()
	s.close()
}

// MarkFatal flips the manager into Degraded after a session-fatal engine
// error (crashed tab, lost IPC). Outstanding sessions are closed; the next
// acquire relaunches.
func (m *Manager) MarkFatal(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateReady {
		return
	}
	slog.Error("browser marked degraded", "error", err)
	m.state = StateDegraded
	for s := range m.sessions {
		s.close()
		delete(m.sessions, s)
	}
}

// Health reports whether the engine is connected. In Ready state it issues a
// cheap version call to detect a silently dead process.
func (m *Manager) Health() bool {
	m.mu.Lock()
	state := m.state
	b := m.browser
	m.mu.Unlock()

	if state != StateReady || b == nil {
		return false
	}
	if _, err := b.Version(); err != nil {
		m.MarkFatal(err)
		return false
	}
	return true
}

// State returns the current lifecycle state name.
func (m *Manager) State() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.String()
}

// ActiveSessions returns the number of outstanding sessions.
func (m *Manager) ActiveSessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Uptime reports time since manager creation.
func (m *Manager) Uptime() time.Duration {
	return time.Since(m.startTime)
}

// Shutdown closes all sessions and the engine. Idempotent; completes within
// the configured grace window.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateShutdown {
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for s := range m.sessions {
			s.close()
		}
	}()
	select {
	case <-done:
	case <-time.After(m.cfg.ShutdownGrace):
		slog.Warn("session drain exceeded grace window")
	}
	m.sessions = make(map[*Session]struct{})

	m.teardownLocked()
	m.state = StateShutdown
	slog.Info("browser manager shut down")
}

// teardownLocked closes the engine process. Caller holds m.mu.
func (m *Manager) teardownLocked() {
	if m.browser != nil {
		if err := m.browser.Close(); err != nil {
			slog.Warn("browser close failed", "error", err)
		}
		m.browser = nil
	}
	if m.launch != nil {
		m.launch.Kill()
		m.launch = nil
	}
}

// stealthLayers returns the scripts installed at document start, in order.
func stealthLayers(id *fingerprint.Identity) ([]string, error) {
	overlay, err := stealth.OverlayScript(id)
	if err != nil {
		return nil, err
	}
	return []string{stealth.BaseJS, overlay}, nil
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// isGoogleHost matches google.* and www.google.* apex and country domains.
func isGoogleHost(host string) bool {
	if host == "" {
		return false
	}
	host = strings.TrimPrefix(host, "www.")
	rest, ok := strings.CutPrefix(host, "google.")
	if !ok {
		return false
	}
	labels := strings.Split(rest, ".")
	if len(labels) > 2 {
		return false
	}
	for _, l := range labels {
		if len(l) < 2 || len(l) > 3 {
			return false
		}
	}
	return true
}
