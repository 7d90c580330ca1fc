package handler

import (
	"net/http"
	"runtime"

	"github.com/gin-gonic/gin"
	"github.com/pagelens/pagelens/browser"
	"github.com/pagelens/pagelens/fingerprint"
	"github.com/pagelens/pagelens/models"
	"github.com/pagelens/pagelens/renderer"
)

// Version is stamped at build time via -ldflags.
var Version = "0.1.0"

// Health returns the handler for GET /api/health. No auth: monitoring
// probes must always get an answer.
func Health(m *browser.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		connected := m.Health()

		status := "healthy"
		if !connected && m.State() != "uninitialised" {
			status = "degraded"
		}

		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:           status,
			BrowserConnected: connected,
			UptimeSec:        int64(m.Uptime().Seconds()),
			MemoryBytes:      ms.Sys,
			Version:          Version,
		})
	}
}

// Status returns the handler for GET /api/status (authenticated): the full
// operational picture.
func Status(m *browser.Manager, r *renderer.Renderer) gin.HandlerFunc {
	return func(c *gin.Context) {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)

		uaPool, webglPool := fingerprint.PoolSizes()

		c.JSON(http.StatusOK, models.StatusResponse{
			BrowserState:     m.State(),
			BrowserConnected: m.Health(),
			ActiveSessions:   m.ActiveSessions(),
			InFlightRenders:  r.InFlight(),
			UptimeSec:        int64(m.Uptime().Seconds()),
			MemoryBytes:      ms.Sys,
			UserAgentPool:    uaPool,
			WebGLPool:        webglPool,
		})
	}
}
