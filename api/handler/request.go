package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pagelens/pagelens/models"
)

// bindRenderRequest accepts the request either as a JSON body (POST) or as
// query parameters (GET), so simple renders stay curl-friendly.
func bindRenderRequest(c *gin.Context) (*models.RenderRequest, error) {
	if c.Request.Method == http.MethodPost {
		var req models.RenderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return nil, models.NewRenderError(models.ErrKindInvalidInput, err.Error(), err)
		}
		return &req, nil
	}
	return queryRenderRequest(c)
}

// queryRenderRequest maps the GET query surface onto a RenderRequest.
func queryRenderRequest(c *gin.Context) (*models.RenderRequest, error) {
	req := &models.RenderRequest{
		URL:               c.Query("url"),
		WaitMode:          c.Query("waitMode"),
		UserAgentOverride: c.Query("userAgent"),
	}
	if req.URL == "" {
		return nil, models.NewRenderError(models.ErrKindInvalidInput,
			"url query parameter is required", nil)
	}

	if v := c.Query("timeout"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			req.HardTimeoutMs = ms
		}
	}
	if v := c.Query("extraWaitTime"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			req.PostLoadWaitMs = ms
		}
	}
	if v := c.Query("scrollToBottom"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			req.ScrollToBottom = &b
		}
	}
	if v := c.Query("returnPartialOnTimeout"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			req.ReturnPartialOnTimeout = &b
		}
	}
	if v := c.Query("captureConsole"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			req.CaptureConsole = b
		}
	}
	if w, h := c.Query("width"), c.Query("height"); w != "" && h != "" {
		wi, werr := strconv.Atoi(w)
		hi, herr := strconv.Atoi(h)
		if werr == nil && herr == nil {
			req.Viewport = &models.Viewport{Width: wi, Height: hi}
		}
	}

	return req, nil
}

// respondError maps an internal error onto its HTTP status with the
// structured detail body.
func respondError(c *gin.Context, err error) {
	var re *models.RenderError
	if !errors.As(err, &re) {
		re = models.NewRenderError(models.ErrKindInternal, err.Error(), err)
	}
	c.JSON(models.HTTPStatus(re.Kind), gin.H{"error": re.ToDetail()})
}

// setArtifactHeaders attaches the render metadata headers shared by all raw
// artifact endpoints.
func setArtifactHeaders(c *gin.Context, outcome *models.RenderOutcome) {
	c.Header("X-Rendered-URL", outcome.FinalURL)
	c.Header("X-Page-Title", sanitizeHeader(outcome.Title))
	c.Header("X-Was-Timeout", strconv.FormatBool(outcome.WasTimeout))
	c.Header("X-Is-Emergency", strconv.FormatBool(outcome.IsEmergencyExtraction))
	c.Header("X-Content-Length", strconv.Itoa(outcome.ContentLength))
}

// sanitizeHeader strips characters that are illegal in header values.
func sanitizeHeader(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		b := s[i]
		if b == '\n' || b == '\r' {
			continue
		}
		if b < 0x20 || b == 0x7f {
			continue
		}
		out = append(out, b)
	}
	return string(out)
}
