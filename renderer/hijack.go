package renderer

import (
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/pagelens/pagelens/fingerprint"
)

// resourceClass maps a protocol resource type onto the header-table class.
func resourceClass(t proto.NetworkResourceType) string {
	switch t {
	case proto.NetworkResourceTypeDocument:
		return fingerprint.ResourceDocument
	case proto.NetworkResourceTypeStylesheet:
		return fingerprint.ResourceStyle
	case proto.NetworkResourceTypeScript:
		return fingerprint.ResourceScript
	case proto.NetworkResourceTypeImage:
		return fingerprint.ResourceImage
	case proto.NetworkResourceTypeFont:
		return fingerprint.ResourceFont
	default:
		return fingerprint.ResourceOther
	}
}

// mountHeaderRewrite installs the request-interception hook: every outgoing
// request leaves with the canonical, ordered Chrome header table for its
// resource class, consistent with the session identity. Automation-typical
// headers are stripped; Firefox identities never emit sec-ch-ua.
//
// Returns the running router so the caller can defer router.Stop().
func mountHeaderRewrite(page *rod.Page, id *fingerprint.Identity, targetHost string, extraHeaders map[string]string) *rod.HijackRouter {
	router := page.HijackRequests()

	_ = router.Add("*", "", func(hctx *rod.Hijack) {
		class := resourceClass(hctx.Request.Type())
		sameSite := strings.EqualFold(hctx.Request.URL().Hostname(), targetHost)

		table := id.HeaderTable(class, sameSite)
		entries := make([]*proto.FetchHeaderEntry, 0, len(table)+len(extraHeaders)+2)
		for _, h := range table {
			entries = append(entries, &proto.FetchHeaderEntry{Name: h.Name, Value: h.Value})
		}

		// Session cookies and a referer negotiated by the page survive the
		// rewrite; automation-typical headers do not.
		orig := hctx.Request.Req().Header
		for _, keep := range []string{"Cookie", "Referer", "Origin", "Content-Type"} {
			if v := orig.Get(keep); v != "" {
				entries = append(entries, &proto.FetchHeaderEntry{Name: strings.ToLower(keep), Value: v})
			}
		}

		// Caller-supplied headers win on the main document.
		if class == fingerprint.ResourceDocument {
			for k, v := range extraHeaders {
				if isStrippedHeader(k) {
					continue
				}
				entries = append(entries, &proto.FetchHeaderEntry{Name: strings.ToLower(k), Value: v})
			}
		}

		hctx.ContinueRequest(&proto.FetchContinueRequest{Headers: entries})
	})

	// router.Run() blocks, so it must live in its own goroutine. It exits
	// when router.Stop() is called.
	go router.Run()

	return router
}

func isStrippedHeader(name string) bool {
	for _, s := range fingerprint.StripHeaders {
		if strings.EqualFold(name, s) {
			return true
		}
	}
	return false
}
