package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func corsRouter(origins ...string) *gin.Engine {
	router := gin.New()
	router.Use(CORS(DefaultCORSConfig(origins...)))
	router.GET("/api/v1/events", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name       string
		origins    []string
		method     string
		origin     string
		wantStatus int
		wantOrigin string
		wantCreds  string
	}{
		{
			name:       "no origin header",
			method:     http.MethodGet,
			wantStatus: http.StatusOK,
			wantOrigin: "*",
		},
		{
			name:       "wildcard echoes the caller",
			method:     http.MethodGet,
			origin:     "https://tickets.example.com",
			wantStatus: http.StatusOK,
			wantOrigin: "https://tickets.example.com",
			wantCreds:  "true",
		},
		{
			name:       "listed origin",
			origins:    []string{"https://tickets.example.com"},
			method:     http.MethodGet,
			origin:     "https://tickets.example.com",
			wantStatus: http.StatusOK,
			wantOrigin: "https://tickets.example.com",
			wantCreds:  "true",
		},
		{
			name:       "unlisted origin gets no headers",
			origins:    []string{"https://tickets.example.com"},
			method:     http.MethodGet,
			origin:     "https://evil.example.net",
			wantStatus: http.StatusOK,
		},
		{
			name:       "preflight",
			origins:    []string{"https://tickets.example.com"},
			method:     http.MethodOptions,
			origin:     "https://tickets.example.com",
			wantStatus: http.StatusNoContent,
			wantOrigin: "https://tickets.example.com",
			wantCreds:  "true",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/v1/events", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()
			corsRouter(tt.origins...).ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantOrigin, w.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.wantCreds, w.Header().Get("Access-Control-Allow-Credentials"))
			if tt.wantOrigin != "" {
				assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "X-Staff-Session")
			}
		})
	}
}
