package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func authRouter(token string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Auth(token))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return r
}

func TestAuth_Presentations(t *testing.T) {
	r := authRouter("s3cret")

	tests := []struct {
		name       string
		prepare    func(*http.Request)
		wantStatus int
	}{
		{"query param", func(req *http.Request) {
			q := req.URL.Query()
			q.Set("token", "s3cret")
			req.URL.RawQuery = q.Encode()
		}, http.StatusOK},
		{"x-token header", func(req *http.Request) {
			req.Header.Set("X-Token", "s3cret")
		}, http.StatusOK},
		{"bearer", func(req *http.Request) {
			req.Header.Set("Authorization", "Bearer s3cret")
		}, http.StatusOK},
		{"missing", func(req *http.Request) {}, http.StatusUnauthorized},
		{"wrong token", func(req *http.Request) {
			req.Header.Set("X-Token", "nope")
		}, http.StatusUnauthorized},
		{"wrong scheme", func(req *http.Request) {
			req.Header.Set("Authorization", "Basic s3cret")
		}, http.StatusUnauthorized},
		{"prefix of secret", func(req *http.Request) {
			req.Header.Set("X-Token", "s3cre")
		}, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			tt.prepare(req)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}
