package fingerprint

import (
	"strings"
	"testing"
)

func TestSynthesise_Coherence(t *testing.T) {
	for i := 0; i < 200; i++ {
		id, err := Synthesise("", nil)
		if err != nil {
			t.Fatalf("Synthesise failed: %v", err)
		}

		if id.Family == FamilyFirefox {
			if len(id.Hints.Brands) != 0 {
				t.Errorf("firefox identity produced client hints: %+v", id.Hints.Brands)
			}
			continue
		}

		// Chromium families: brand version must agree with the UA major.
		major := chromeMajorRe.FindStringSubmatch(id.UserAgent)
		if major == nil {
			t.Fatalf("chromium UA without Chrome token: %s", id.UserAgent)
		}
		found := false
		for _, b := range id.Hints.Brands {
			if b.Brand == "Chromium" && b.Version == major[1] {
				found = true
			}
		}
		if !found {
			t.Errorf("sec-ch-ua Chromium version does not match UA major %s: %+v", major[1], id.Hints.Brands)
		}

		// Hint platform must agree with the navigator platform.
		wantHint := map[string]string{
			"Win32":    "Windows",
			"MacIntel": "macOS",
			"Linux":    "Linux",
		}[id.Platform]
		if id.Hints.Platform != wantHint {
			t.Errorf("hint platform %q disagrees with platform %q", id.Hints.Platform, id.Platform)
		}
	}
}

func TestSynthesise_EdgeBrand(t *testing.T) {
	edgeUA := "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36 Edg/131.0.0.0"
	id, err := Synthesise(edgeUA, nil)
	if err != nil {
		t.Fatalf("Synthesise failed: %v", err)
	}
	if id.Family != FamilyEdge {
		t.Fatalf("family = %q, want edge", id.Family)
	}
	hasEdge := false
	for _, b := range id.Hints.Brands {
		if b.Brand == "Microsoft Edge" {
			hasEdge = true
		}
		if b.Brand == "Google Chrome" {
			t.Errorf("edge identity carries Google Chrome brand")
		}
	}
	if !hasEdge {
		t.Errorf("edge identity missing Microsoft Edge brand: %+v", id.Hints.Brands)
	}
}

func TestSynthesise_HardwarePools(t *testing.T) {
	validConc := map[int]bool{4: true, 6: true, 8: true, 12: true, 16: true}
	validMem := map[int]bool{4: true, 8: true, 16: true, 32: true}

	for i := 0; i < 100; i++ {
		id, err := Synthesise("", nil)
		if err != nil {
			t.Fatalf("Synthesise failed: %v", err)
		}
		if !validConc[id.HardwareConcurrency] {
			t.Errorf("hardwareConcurrency %d outside the realistic set", id.HardwareConcurrency)
		}
		if !validMem[id.DeviceMemoryGB] {
			t.Errorf("deviceMemory %d outside the realistic set", id.DeviceMemoryGB)
		}
	}
}

func TestSynthesise_ScreenCoversViewport(t *testing.T) {
	id, err := Synthesise("", &Viewport{Width: 2560, Height: 1600})
	if err != nil {
		t.Fatalf("Synthesise failed: %v", err)
	}
	if id.Screen.Width < id.Viewport.Width || id.Screen.Height < id.Viewport.Height {
		t.Errorf("screen %dx%d smaller than viewport %dx%d",
			id.Screen.Width, id.Screen.Height, id.Viewport.Width, id.Viewport.Height)
	}
}

func TestSynthesise_SeedsDiffer(t *testing.T) {
	a, err := Synthesise("", nil)
	if err != nil {
		t.Fatalf("Synthesise failed: %v", err)
	}
	b, err := Synthesise("", nil)
	if err != nil {
		t.Fatalf("Synthesise failed: %v", err)
	}
	if a.Seed == b.Seed {
		t.Error("two sessions received identical fingerprint seeds")
	}
}

func TestSynthesise_LocalePairings(t *testing.T) {
	valid := map[string]string{
		"en-US": "America/New_York",
		"en-GB": "Europe/London",
		"en-CA": "America/Toronto",
	}
	for i := 0; i < 50; i++ {
		id, err := Synthesise("", nil)
		if err != nil {
			t.Fatalf("Synthesise failed: %v", err)
		}
		tz, ok := valid[id.Locale]
		if !ok {
			t.Fatalf("unexpected locale %q", id.Locale)
		}
		if id.Timezone != tz {
			t.Errorf("locale %s paired with timezone %s, want %s", id.Locale, id.Timezone, tz)
		}
		if len(id.Languages) == 0 || id.Languages[0] != id.Locale {
			t.Errorf("languages %v do not lead with locale %s", id.Languages, id.Locale)
		}
	}
}

func TestAcceptLanguage(t *testing.T) {
	id := &Identity{Languages: []string{"en-US", "en"}}
	got := id.AcceptLanguage()
	if got != "en-US,en;q=0.9" {
		t.Errorf("AcceptLanguage = %q, want en-US,en;q=0.9", got)
	}
}

func TestSecChUA(t *testing.T) {
	h := ClientHints{Brands: []Brand{
		{Brand: "Chromium", Version: "131"},
		{Brand: "Not_A Brand", Version: "24"},
		{Brand: "Google Chrome", Version: "131"},
	}}
	got := h.SecChUA()
	want := `"Chromium";v="131", "Not_A Brand";v="24", "Google Chrome";v="131"`
	if got != want {
		t.Errorf("SecChUA = %s, want %s", got, want)
	}
}

func TestHeaderTable_Document(t *testing.T) {
	id, err := Synthesise("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36", nil)
	if err != nil {
		t.Fatalf("Synthesise failed: %v", err)
	}

	table := id.HeaderTable(ResourceDocument, false)
	if len(table) == 0 {
		t.Fatal("empty header table")
	}
	if table[0].Name != "user-agent" {
		t.Errorf("first header = %s, want user-agent", table[0].Name)
	}

	byName := map[string]string{}
	for _, h := range table {
		byName[h.Name] = h.Value
	}
	for _, want := range []string{"sec-ch-ua", "sec-fetch-site", "sec-fetch-mode", "sec-fetch-user", "sec-fetch-dest", "upgrade-insecure-requests", "cache-control", "connection"} {
		if _, ok := byName[want]; !ok {
			t.Errorf("document table missing %s", want)
		}
	}
	if byName["sec-fetch-site"] != "none" {
		t.Errorf("document sec-fetch-site = %s, want none", byName["sec-fetch-site"])
	}
	if byName["sec-fetch-mode"] != "navigate" {
		t.Errorf("document sec-fetch-mode = %s, want navigate", byName["sec-fetch-mode"])
	}
	for _, stripped := range StripHeaders {
		if _, ok := byName[stripped]; ok {
			t.Errorf("table carries stripped header %s", stripped)
		}
	}
}

func TestHeaderTable_FirefoxOmitsClientHints(t *testing.T) {
	id, err := Synthesise("Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:132.0) Gecko/20100101 Firefox/132.0", nil)
	if err != nil {
		t.Fatalf("Synthesise failed: %v", err)
	}

	for _, resource := range []string{ResourceDocument, ResourceStyle, ResourceImage, ResourceOther} {
		for _, h := range id.HeaderTable(resource, true) {
			if strings.HasPrefix(h.Name, "sec-ch-ua") {
				t.Errorf("firefox %s table carries %s", resource, h.Name)
			}
		}
	}
}

func TestHeaderTable_SubresourceClasses(t *testing.T) {
	id, err := Synthesise("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36", nil)
	if err != nil {
		t.Fatalf("Synthesise failed: %v", err)
	}

	tests := []struct {
		resource string
		sameSite bool
		wantSite string
		wantDest string
	}{
		{ResourceStyle, true, "same-origin", "style"},
		{ResourceScript, false, "cross-site", "script"},
		{ResourceImage, true, "same-origin", "image"},
		{ResourceOther, false, "cross-site", "empty"},
	}
	for _, tt := range tests {
		byName := map[string]string{}
		for _, h := range id.HeaderTable(tt.resource, tt.sameSite) {
			byName[h.Name] = h.Value
		}
		if byName["sec-fetch-site"] != tt.wantSite {
			t.Errorf("%s: sec-fetch-site = %s, want %s", tt.resource, byName["sec-fetch-site"], tt.wantSite)
		}
		if byName["sec-fetch-dest"] != tt.wantDest {
			t.Errorf("%s: sec-fetch-dest = %s, want %s", tt.resource, byName["sec-fetch-dest"], tt.wantDest)
		}
		if _, ok := byName["upgrade-insecure-requests"]; ok {
			t.Errorf("%s: sub-resource table carries upgrade-insecure-requests", tt.resource)
		}
		if _, ok := byName["cache-control"]; ok {
			t.Errorf("%s: sub-resource table carries cache-control", tt.resource)
		}
	}
}
