package renderer

import (
	"context"
	"log/slog"
	"time"

	"github.com/pagelens/pagelens/fingerprint"
	"github.com/pagelens/pagelens/models"
)

// emergencyExtract is the lateral recovery branch: the timed-out session is
// already gone, so a fresh session with a freshly synthesised identity gets
// one bounded shot at pulling HTML, title and URL — nothing else.
//
// The 45 s ceiling here is the ε in the service's timeout bound: a render
// returns within hardTimeout + ε or not at all.
func (r *Renderer) emergencyExtract(ctx context.Context, req *models.RenderRequest, requestID string) (*models.RenderOutcome, error) {
	emCtx, cancel := context.WithTimeout(ctx, emergencyNavCeiling)
	defer cancel()

	identity, err := fingerprint.Synthesise("", viewportOf(req))
	if err != nil {
		return nil, models.NewRenderError(models.ErrKindInternal, "identity synthesis failed", err)
	}

	// Strip the request down to navigation essentials; no clicks, scripts
	// or artifacts beyond the HTML.
	slim := &models.RenderRequest{
		URL:     req.URL,
		Cookies: req.Cookies,
	}
	slim.Defaults()

	session, err := r.manager.AcquireSession(emCtx, identity, slim, requestID)
	if err != nil {
		return nil, err
	}
	defer r.manager.ReleaseSession(session)

	p := session.Page(emCtx)

	if err := p.Navigate(req.URL); err != nil {
		return nil, classify(err, "emergency navigation failed")
	}
	if err := waitReadiness(p, models.WaitModeNetworkIdle, emergencyNavCeiling); err != nil {
		slog.Debug("emergency readiness wait failed, extracting anyway",
			"requestId", requestID, "error", err)
	}

	select {
	case <-time.After(emergencySettleDwell):
	case <-emCtx.Done():
	}

	html, err := p.HTML()
	if err != nil {
		return nil, classify(err, "emergency HTML read failed")
	}

	outcome := &models.RenderOutcome{
		HTML:                  html,
		OriginalURL:           req.URL,
		FinalURL:              req.URL,
		ContentLength:         len(html),
		WasTimeout:            true,
		IsEmergencyExtraction: true,
	}
	outcome.Title = evalStringOrEmpty(p, `() => document.title`)
	if outcome.Title == "" {
		outcome.Title = htmlTitle(html)
	}
	if finalURL := evalStringOrEmpty(p, `() => window.location.href`); finalURL != "" {
		outcome.FinalURL = finalURL
	}

	slog.Info("emergency extraction succeeded",
		"requestId", requestID, "url", req.URL, "contentLength", outcome.ContentLength)
	return outcome, nil
}
