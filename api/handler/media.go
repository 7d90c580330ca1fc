package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pagelens/pagelens/models"
	"github.com/pagelens/pagelens/renderer"
)

// Screenshot returns the handler for GET /api/screenshot: raw image bytes.
func Screenshot(r *renderer.Renderer) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, err := bindRenderRequest(c)
		if err != nil {
			respondError(c, err)
			return
		}

		shot := &models.ScreenshotOptions{Format: "png"}
		if v := c.Query("fullPage"); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				shot.FullPage = b
			}
		}
		if v := c.Query("format"); v != "" {
			shot.Format = v
		}
		if v := c.Query("quality"); v != "" {
			if q, err := strconv.Atoi(v); err == nil {
				shot.Quality = q
			}
		}
		req.WantScreenshot = shot

		outcome, err := r.Render(c.Request.Context(), req)
		if err != nil {
			respondError(c, err)
			return
		}
		if len(outcome.ScreenshotBytes) == 0 {
			respondError(c, models.NewRenderError(models.ErrKindExtraction,
				"screenshot capture produced no bytes", nil))
			return
		}

		contentType := "image/png"
		if shot.Format == "jpeg" {
			contentType = "image/jpeg"
		}

		setArtifactHeaders(c, outcome)
		if outcome.ScreenshotWidth > 0 && outcome.ScreenshotHeight > 0 {
			c.Header("X-Image-Width", strconv.Itoa(outcome.ScreenshotWidth))
			c.Header("X-Image-Height", strconv.Itoa(outcome.ScreenshotHeight))
		}
		c.Data(http.StatusOK, contentType, outcome.ScreenshotBytes)
	}
}

// PDF returns the handler for GET /api/pdf: application/pdf bytes. The
// render is forced onto the network-idle path so print layout sees settled
// assets.
func PDF(r *renderer.Renderer) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, err := bindRenderRequest(c)
		if err != nil {
			respondError(c, err)
			return
		}

		pdf := &models.PDFOptions{PaperSize: "A4", Background: true}
		if v := c.Query("paperSize"); v != "" {
			pdf.PaperSize = v
		}
		if v := c.Query("margin"); v != "" {
			if m, err := strconv.ParseFloat(v, 64); err == nil {
				pdf.MarginIn = m
			}
		}
		req.WantPDF = pdf
		req.WaitMode = models.WaitModeNetworkIdle

		outcome, err := r.Render(c.Request.Context(), req)
		if err != nil {
			respondError(c, err)
			return
		}
		if len(outcome.PDFBytes) == 0 {
			respondError(c, models.NewRenderError(models.ErrKindExtraction,
				"pdf generation produced no bytes", nil))
			return
		}

		setArtifactHeaders(c, outcome)
		c.Data(http.StatusOK, "application/pdf", outcome.PDFBytes)
	}
}
