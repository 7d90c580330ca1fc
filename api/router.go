// Package api wires the HTTP transport around the render core. The
// transport is deliberately thin: parse, authenticate, delegate, encode.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pagelens/pagelens/api/handler"
	"github.com/pagelens/pagelens/api/middleware"
	"github.com/pagelens/pagelens/browser"
	"github.com/pagelens/pagelens/config"
	"github.com/pagelens/pagelens/renderer"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger → BodyLimit
//	API:     Auth → RateLimit
//
// Health stays outside auth so monitoring probes always work.
func NewRouter(m *browser.Manager, r *renderer.Renderer, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	e := gin.New()
	e.Use(gin.Recovery())
	e.Use(gin.Logger())
	e.Use(bodyLimit(cfg.Server.BodyLimit))

	apiGroup := e.Group("/api")

	// Health — no auth required.
	apiGroup.GET("/health", handler.Health(m))

	// Protected group — auth + front-door rate limit.
	protected := apiGroup.Group("")
	protected.Use(middleware.Auth(cfg.Auth.Token))
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	protected.GET("/status", handler.Status(m, r))

	protected.POST("/render", handler.Render(r))

	protected.GET("/html", handler.HTML(r))
	protected.POST("/html", handler.HTML(r))

	protected.GET("/content", handler.Content(r))
	protected.POST("/content", handler.Content(r))

	protected.GET("/markdown", handler.Markdown(r))
	protected.POST("/markdown", handler.Markdown(r))

	protected.GET("/screenshot", handler.Screenshot(r))
	protected.GET("/pdf", handler.PDF(r))

	protected.POST("/batch", handler.Batch(r, cfg.Render.MaxBatchURLs))

	return e
}

// bodyLimit caps request body reads so an oversized payload fails to bind
// (reported as INVALID_INPUT, 400) instead of exhausting memory.
func bodyLimit(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}
