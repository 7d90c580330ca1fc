package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pagelens/pagelens/models"
	"github.com/pagelens/pagelens/renderer"
)

// Batch returns the handler for POST /api/batch. The batch runs
// synchronously under the caller's request context, so abandoning the
// request cancels all in-flight workers.
func Batch(r *renderer.Renderer, maxBatchURLs int) gin.HandlerFunc {
	return func(c *gin.Context) {
		var breq models.BatchRequest
		if err := c.ShouldBindJSON(&breq); err != nil {
			respondError(c, models.NewRenderError(models.ErrKindInvalidInput, err.Error(), err))
			return
		}

		if err := breq.Validate(maxBatchURLs); err != nil {
			respondError(c, err)
			return
		}

		outcome := r.RenderBatch(c.Request.Context(), &breq)
		c.JSON(http.StatusOK, outcome)
	}
}
