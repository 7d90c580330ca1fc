package renderer

import (
	"net/url"
	"strings"

	"github.com/go-rod/rod"
)

// blockMarkers are the body-text fragments Google serves on its
// anti-automation interstitials.
var blockMarkers = []string{
	"unusual traffic",
	"automated queries",
	"are you a robot",
	"recaptcha",
	"g-recaptcha",
	"captcha-form",
}

// isGoogleURL reports whether the target host is a google.* property, which
// switches navigation into the Google-aware regime.
func isGoogleURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(strings.TrimPrefix(u.Hostname(), "www."))
	rest, ok := strings.CutPrefix(host, "google.")
	if !ok {
		return false
	}
	// Only apex and country domains (google.com, google.de, google.co.uk).
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

// detectBlockPage probes the body text for anti-automation markers.
// Probe failures read as "not blocked": the page may simply not have a body
// yet, and a false positive would cost a pointless reload.
func detectBlockPage(p *rod.Page) bool {
	res, err := p.Eval(`() => (document.body && document.body.innerText || '').slice(0, 4000).toLowerCase()`)
	if err != nil {
		return false
	}
	body := res.Value.Str()
	for _, marker := range blockMarkers {
		if strings.Contains(body, marker) {
			return true
		}
	}
	return false
}
