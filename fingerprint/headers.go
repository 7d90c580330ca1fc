package fingerprint

// Header is one name/value pair. Order matters: Chrome emits its request
// headers in a stable order and header-order checks are a cheap bot signal.
type Header struct {
	Name  string
	Value string
}

// Resource classes for header derivation. They mirror the browser's
// sec-fetch-dest values for the request types we rewrite.
const (
	ResourceDocument = "document"
	ResourceStyle    = "style"
	ResourceScript   = "script"
	ResourceImage    = "image"
	ResourceFont     = "font"
	ResourceOther    = "other"
)

// StripHeaders are headers typical of automation stacks that must never
// reach the target.
var StripHeaders = []string{"x-requested-with", "pragma"}

// acceptFor returns the canonical Chrome accept value per resource class.
func acceptFor(resource string) string {
	switch resource {
	case ResourceDocument:
		return "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8,application/signed-exchange;v=b3;q=0.7"
	case ResourceStyle:
		return "text/css,*/*;q=0.1"
	case ResourceImage:
		return "image/avif,image/webp,image/apng,image/svg+xml,image/*,*/*;q=0.8"
	default:
		return "*/*"
	}
}

func secFetchDest(resource string) string {
	switch resource {
	case ResourceDocument, ResourceStyle, ResourceScript, ResourceImage, ResourceFont:
		return resource
	default:
		return "empty"
	}
}

func secFetchMode(resource string) string {
	if resource == ResourceDocument {
		return "navigate"
	}
	return "no-cors"
}

// HeaderTable builds the ordered, canonical header set for one outgoing
// request, consistent with the identity. isSameSite selects the
// sec-fetch-site value for sub-resources; documents are always "none"
// (address-bar navigation).
func (id *Identity) HeaderTable(resource string, isSameSite bool) []Header {
	h := make([]Header, 0, 16)

	h = append(h, Header{"user-agent", id.UserAgent})
	if resource == ResourceDocument {
		h = append(h, Header{"upgrade-insecure-requests", "1"})
	}
	h = append(h, Header{"accept", acceptFor(resource)})
	h = append(h, Header{"accept-language", id.AcceptLanguage()})
	h = append(h, Header{"accept-encoding", "gzip, deflate, br, zstd"})

	if id.IsChromium() {
		h = append(h,
			Header{"sec-ch-ua", id.Hints.SecChUA()},
			Header{"sec-ch-ua-mobile", "?0"},
			Header{"sec-ch-ua-platform", `"` + id.Hints.Platform + `"`},
		)
	}

	site := "none"
	if resource != ResourceDocument {
		if isSameSite {
			site = "same-origin"
		} else {
			site = "cross-site"
		}
	}
	h = append(h,
		Header{"sec-fetch-site", site},
		Header{"sec-fetch-mode", secFetchMode(resource)},
	)
	if resource == ResourceDocument {
		h = append(h, Header{"sec-fetch-user", "?1"})
	}
	h = append(h, Header{"sec-fetch-dest", secFetchDest(resource)})

	h = append(h,
		Header{"dnt", "1"},
		Header{"connection", "keep-alive"},
	)
	if resource == ResourceDocument {
		h = append(h, Header{"cache-control", "max-age=0"})
	}

	return h
}
