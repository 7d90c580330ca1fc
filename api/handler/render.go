package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pagelens/pagelens/models"
	"github.com/pagelens/pagelens/renderer"
)

// Render returns the handler for POST /api/render: JSON in, the full
// outcome record (including any base64 artifacts) out.
func Render(r *renderer.Renderer) gin.HandlerFunc {
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

		c.JSON(http.StatusOK, models.RenderResponse{
			Success: true,
			Result:  outcome,
		})
	}
}
