package models

// ConsoleEntry is one captured console message.
type ConsoleEntry struct {
	Level     string `json:"level"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"` // epoch milliseconds
}

// RenderOutcome is the output record of a single render.
//
// WasTimeout and IsEmergencyExtraction are explicit discriminants rather than
// a subtype hierarchy: an outcome with WasTimeout=true only exists when the
// caller opted into partial results.
type RenderOutcome struct {
	HTML        string `json:"html"`
	Title       string `json:"title"`
	FinalURL    string `json:"url"`
	OriginalURL string `json:"originalUrl"`

	StartedAt  string `json:"timestamp"` // ISO-8601
	DurationMs int64  `json:"durationMs"`

	WasTimeout            bool `json:"wasTimeout"`
	IsEmergencyExtraction bool `json:"isEmergencyExtraction"`

	ContentLength int `json:"contentLength"`

	ConsoleLogs []ConsoleEntry `json:"consoleLogs,omitempty"`

	// Binary artifacts; base64-encoded on the JSON surface, raw bytes on
	// the dedicated screenshot/pdf endpoints.
	ScreenshotBytes []byte `json:"screenshot,omitempty"`
	PDFBytes        []byte `json:"pdf,omitempty"`

	// Captured pixel dimensions of the screenshot, when one was taken.
	ScreenshotWidth  int `json:"screenshotWidth,omitempty"`
	ScreenshotHeight int `json:"screenshotHeight,omitempty"`
}

// BatchItem is one per-URL result inside a BatchOutcome.
type BatchItem struct {
	URL        string         `json:"url"`
	Status     string         `json:"status"` // "success" or "failure"
	DurationMs int64          `json:"durationMs"`
	Outcome    *RenderOutcome `json:"result,omitempty"`
	Error      *ErrorDetail   `json:"error,omitempty"`
}

// BatchOutcome aggregates a BatchRequest run. Results order matches the
// input URL order.
type BatchOutcome struct {
	Results      []BatchItem `json:"results"`
	SuccessCount int         `json:"successful"`
	FailureCount int         `json:"failed"`
	Total        int         `json:"total"`
	DurationMs   int64       `json:"durationMs"`
}

// HealthResponse is the unauthenticated liveness report.
type HealthResponse struct {
	Status           string `json:"status"` // "healthy" or "degraded"
	BrowserConnected bool   `json:"browserConnected"`
	UptimeSec        int64  `json:"uptimeSec"`
	MemoryBytes      uint64 `json:"memoryBytes"`
	Version          string `json:"version"`
}

// StatusResponse is the authenticated operational report.
type StatusResponse struct {
	BrowserState     string `json:"browserState"`
	BrowserConnected bool   `json:"browserConnected"`
	ActiveSessions   int    `json:"activeSessions"`
	InFlightRenders  int    `json:"inFlightRenders"`
	UptimeSec        int64  `json:"uptimeSec"`
	MemoryBytes      uint64 `json:"memoryBytes"`
	UserAgentPool    int    `json:"userAgentPool"`
	WebGLPool        int    `json:"webglPool"`
}

// RenderResponse is the JSON envelope for POST /api/render.
type RenderResponse struct {
	Success bool           `json:"success"`
	Result  *RenderOutcome `json:"result,omitempty"`
	Error   *ErrorDetail   `json:"error,omitempty"`
}
