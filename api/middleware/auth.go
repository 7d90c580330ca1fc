package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pagelens/pagelens/models"
)

// Auth returns shared-secret authentication middleware.
//
// The token may be presented three ways:
//
//	?token=<secret>
//	X-Token: <secret>
//	Authorization: Bearer <secret>
//
// Comparison is constant-time so the secret cannot be probed byte-by-byte
// through response timing.
func Auth(token string) gin.HandlerFunc {
	secret := []byte(token)

	return func(c *gin.Context) {
		presented := extractToken(c)
		if presented == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": models.ErrorDetail{
					Kind:    models.ErrKindUnauthorized,
					Message: "missing token: provide ?token=, X-Token header or Authorization: Bearer",
				},
			})
			return
		}

		if subtle.ConstantTimeCompare([]byte(presented), secret) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": models.ErrorDetail{
					Kind:    models.ErrKindUnauthorized,
					Message: "invalid token",
				},
			})
			return
		}

		c.Next()
	}
}

// extractToken tries the query parameter first, then the dedicated header,
// then the Authorization bearer form.
func extractToken(c *gin.Context) string {
	if t := c.Query("token"); t != "" {
		return t
	}
	if t := c.GetHeader("X-Token"); t != "" {
		return t
	}
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}
