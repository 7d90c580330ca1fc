package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pagelens/pagelens/renderer"
)

// HTML returns the handler for GET|POST /api/html: the rendered document as
// raw UTF-8 with the artifact metadata carried in X- headers.
func HTML(r *renderer.Renderer) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, err := bindRenderRequest(c)
		if err != nil {
			respondError(c, err)
			return
		}

		outcome, err := r.Render(c.Request.Context(), req)
		if err != nil {
			respondError(c, err)
			return
		}

		setArtifactHeaders(c, outcome)
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(outcome.HTML))
	}
}

// Content returns the handler for GET|POST /api/content: the rendered page
// reduced to plain text in reading order.
func Content(r *renderer.Renderer) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, err := bindRenderRequest(c)
		if err != nil {
			respondError(c, err)
			return
		}

		outcome, err := r.Render(c.Request.Context(), req)
		if err != nil {
			respondError(c, err)
			return
		}

		text := renderer.ExtractText(outcome.HTML, outcome.FinalURL, req.RemoveSelectors)

		setArtifactHeaders(c, outcome)
		c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(text))
	}
}

// Markdown returns the handler for GET|POST /api/markdown: the rendered page
// converted to Markdown with links resolved against the final URL.
func Markdown(r *renderer.Renderer) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, err := bindRenderRequest(c)
		if err != nil {
			respondError(c, err)
			return
		}

		outcome, err := r.Render(c.Request.Context(), req)
		if err != nil {
			respondError(c, err)
			return
		}

		md, err := renderer.ToMarkdown(outcome.HTML, outcome.FinalURL)
		if err != nil {
			slog.Warn("markdown conversion failed, serving plain text instead",
				"url", outcome.FinalURL, "error", err)
			md = renderer.ExtractText(outcome.HTML, outcome.FinalURL, req.RemoveSelectors)
		}

		setArtifactHeaders(c, outcome)
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(md))
	}
}
