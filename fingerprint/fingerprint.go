// Package fingerprint synthesises coherent per-session browser identities:
// user-agent, locale, hardware claims, client hints and a noise seed. All
// pools are immutable after package init and safe for concurrent reads.
package fingerprint

import (
	"crypto/rand"
	"fmt"
	mrand "math/rand/v2"
	"regexp"
	"strings"
)

// Browser families derived from the user-agent string.
const (
	FamilyChrome  = "chrome"
	FamilyEdge    = "edge"
	FamilyFirefox = "firefox"
)

// Screen describes the claimed physical display.
type Screen struct {
	Width      int `json:"width"`
	Height     int `json:"height"`
	AvailW     int `json:"availWidth"`
	AvailH     int `json:"availHeight"`
	ColorDepth int `json:"colorDepth"`
}

// Viewport is the emulated window size.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// WebGL is the claimed GPU vendor/renderer pair.
type WebGL struct {
	Vendor   string `json:"vendor"`
	Renderer string `json:"renderer"`
}

// Brand is one sec-ch-ua brand/version entry.
type Brand struct {
	Brand   string `json:"brand"`
	Version string `json:"version"`
}

// ClientHints carries the sec-ch-ua triple and its extended sub-values.
// Empty Brands means the family emits no client hints (Firefox).
type ClientHints struct {
	Brands          []Brand `json:"brands"`
	Mobile          bool    `json:"mobile"`
	Platform        string  `json:"platform"`        // "Windows", "macOS", "Linux"
	PlatformVersion string  `json:"platformVersion"` // e.g. "15.0.0"
}

// Identity is the synthetic user profile applied to one session. All fields
// are internally consistent: the client-hint platform agrees with Platform,
// and the brand versions agree with the user-agent major version.
type Identity struct {
	UserAgent string   `json:"userAgent"`
	Family    string   `json:"family"`
	Platform  string   `json:"platform"` // Win32, Linux, MacIntel
	Locale    string   `json:"locale"`   // BCP-47
	Timezone  string   `json:"timezone"` // IANA
	Languages []string `json:"languages"`

	Viewport Viewport `json:"viewport"`
	Screen   Screen   `json:"screen"`

	HardwareConcurrency int `json:"hardwareConcurrency"`
	DeviceMemoryGB      int `json:"deviceMemory"`

	WebGL WebGL       `json:"webgl"`
	Hints ClientHints `json:"clientHints"`

	// Seed drives deterministic canvas/timing noise within the session.
	Seed [32]byte `json:"-"`
}

// localePairing binds a locale to its canonical timezone and language list.
type localePairing struct {
	locale    string
	timezone  string
	languages []string
}

// Curated pools. Kept short on purpose: a small set of common desktop
// profiles blends in better than exotic variety.
var (
	userAgentPool = []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/130.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36 Edg/131.0.0.0",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/130.0.0.0 Safari/537.36 Edg/130.0.0.0",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:132.0) Gecko/20100101 Firefox/132.0",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:131.0) Gecko/20100101 Firefox/131.0",
	}

	localePool = []localePairing{
		{"en-US", "America/New_York", []string{"en-US", "en"}},
		{"en-GB", "Europe/London", []string{"en-GB", "en-US", "en"}},
		{"en-CA", "America/Toronto", []string{"en-CA", "en-US", "en"}},
	}

	hardwareConcurrencyPool = []int{4, 6, 8, 12, 16}
	deviceMemoryPool        = []int{4, 8, 16, 32}

	webglPool = []WebGL{
		{"Google Inc. (NVIDIA)", "ANGLE (NVIDIA, NVIDIA GeForce RTX 3060 Direct3D11 vs_5_0 ps_5_0, D3D11)"},
		{"Google Inc. (NVIDIA)", "ANGLE (NVIDIA, NVIDIA GeForce GTX 1660 SUPER Direct3D11 vs_5_0 ps_5_0, D3D11)"},
		{"Google Inc. (Intel)", "ANGLE (Intel, Intel(R) UHD Graphics 630 Direct3D11 vs_5_0 ps_5_0, D3D11)"},
		{"Google Inc. (Intel)", "ANGLE (Intel, Intel(R) Iris(R) Xe Graphics Direct3D11 vs_5_0 ps_5_0, D3D11)"},
		{"Google Inc. (AMD)", "ANGLE (AMD, AMD Radeon RX 6600 Direct3D11 vs_5_0 ps_5_0, D3D11)"},
	}

	screenPool = []Screen{
		{1920, 1080, 1920, 1040, 24},
		{2560, 1440, 2560, 1400, 24},
		{1920, 1200, 1920, 1160, 24},
	}
)

// PoolSizes reports the pool cardinalities for the status endpoint.
func PoolSizes() (userAgents, webgl int) {
	return len(userAgentPool), len(webglPool)
}

var chromeMajorRe = regexp.MustCompile(`Chrome/(\d+)`)

// Synthesise produces a new Identity. override, when non-empty, replaces the
// pooled user-agent; viewport, when non-nil, replaces the 1920x1080 default.
// The only failure mode is an unavailable entropy source, which the caller
// must treat as fatal.
func Synthesise(override string, viewport *Viewport) (*Identity, error) {
	ua := override
	if ua == "" {
		ua = userAgentPool[mrand.IntN(len(userAgentPool))]
	}

	pairing := localePool[mrand.IntN(len(localePool))]
	screen := screenPool[mrand.IntN(len(screenPool))]

	id := &Identity{
		UserAgent:           ua,
		Family:              familyOf(ua),
		Platform:            platformOf(ua),
		Locale:              pairing.locale,
		Timezone:            pairing.timezone,
		Languages:           pairing.languages,
		Viewport:            Viewport{Width: 1920, Height: 1080},
		Screen:              screen,
		HardwareConcurrency: hardwareConcurrencyPool[mrand.IntN(len(hardwareConcurrencyPool))],
		DeviceMemoryGB:      deviceMemoryPool[mrand.IntN(len(deviceMemoryPool))],
		WebGL:               webglPool[mrand.IntN(len(webglPool))],
	}
	if viewport != nil && viewport.Width > 0 && viewport.Height > 0 {
		id.Viewport = *viewport
	}

	// Screens must be at least as large as the viewport.
	if id.Screen.Width < id.Viewport.Width || id.Screen.Height < id.Viewport.Height {
		id.Screen = Screen{
			Width:      id.Viewport.Width,
			Height:     id.Viewport.Height,
			AvailW:     id.Viewport.Width,
			AvailH:     id.Viewport.Height - 40,
			ColorDepth: 24,
		}
	}

	id.Hints = clientHintsOf(ua, id.Family)

	if _, err := rand.Read(id.Seed[:]); err != nil {
		return nil, fmt.Errorf("fingerprint: entropy unavailable: %w", err)
	}

	return id, nil
}

// familyOf derives the browser family from a user-agent string. Edge must be
// checked before Chrome because Edge UAs carry both tokens.
func familyOf(ua string) string {
	switch {
	case strings.Contains(ua, "Edg/"):
		return FamilyEdge
	case strings.Contains(ua, "Firefox/"):
		return FamilyFirefox
	default:
		return FamilyChrome
	}
}

func platformOf(ua string) string {
	switch {
	case strings.Contains(ua, "Macintosh"):
		return "MacIntel"
	case strings.Contains(ua, "Linux"):
		return "Linux"
	default:
		return "Win32"
	}
}

// clientHintsOf derives the sec-ch-ua triple. Firefox never sends client
// hints, so its Brands list stays empty.
func clientHintsOf(ua, family string) ClientHints {
	if family == FamilyFirefox {
		return ClientHints{}
	}

	major := "131"
	if m := chromeMajorRe.FindStringSubmatch(ua); m != nil {
		major = m[1]
	}

	hints := ClientHints{
		Mobile:          false,
		Platform:        hintPlatform(ua),
		PlatformVersion: "15.0.0",
	}
	hints.Brands = []Brand{
		{Brand: "Chromium", Version: major},
		{Brand: "Not_A Brand", Version: "24"},
	}
	if family == FamilyEdge {
		hints.Brands = append(hints.Brands, Brand{Brand: "Microsoft Edge", Version: major})
	} else {
		hints.Brands = append(hints.Brands, Brand{Brand: "Google Chrome", Version: major})
	}
	return hints
}

func hintPlatform(ua string) string {
	switch platformOf(ua) {
	case "MacIntel":
		return "macOS"
	case "Linux":
		return "Linux"
	default:
		return "Windows"
	}
}

// SecChUA renders the sec-ch-ua header value from the brands list.
func (h ClientHints) SecChUA() string {
	parts := make([]string, 0, len(h.Brands))
	for _, b := range h.Brands {
		parts = append(parts, fmt.Sprintf("%q;v=%q", b.Brand, b.Version))
	}
	return strings.Join(parts, ", ")
}

// AcceptLanguage renders the accept-language header with descending q-values.
func (id *Identity) AcceptLanguage() string {
	var sb strings.Builder
	for i, lang := range id.Languages {
		if i == 0 {
			sb.WriteString(lang)
			continue
		}
		q := 1.0 - 0.1*float64(i)
		sb.WriteString(fmt.Sprintf(",%s;q=%.1f", lang, q))
	}
	return sb.String()
}

// IsChromium reports whether the identity belongs to a Chromium family and
// therefore emits sec-ch-ua headers.
func (id *Identity) IsChromium() bool {
	return id.Family != FamilyFirefox
}
