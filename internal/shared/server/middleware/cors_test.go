package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

const triggerPath = "/api/v1/ingestions/documents/:id/trigger"

func corsRouter(origins ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS(origins))
	r.POST(triggerPath, func(c *gin.Context) { c.Status(http.StatusAccepted) })
	r.GET("/api/v1/documents/:id/download", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestCORS(t *testing.T) {
	cases := []struct {
		name        string
		origins     []string
		method      string
		path        string
		origin      string
		wantStatus  int
		wantAllowed bool
		wantCreds   bool
	}{
		{"preflight from listed origin", []string{"http://localhost:5173"}, http.MethodOptions, "/api/v1/ingestions/documents/d1/trigger", "http://localhost:5173", http.StatusNoContent, true, true},
		{"trailing slash in config", []string{"http://localhost:5173/"}, http.MethodPost, "/api/v1/ingestions/documents/d1/trigger", "http://localhost:5173", http.StatusAccepted, true, true},
		{"unknown origin", []string{"http://localhost:5173"}, http.MethodGet, "/api/v1/documents/d1/download", "http://evil.example", http.StatusOK, false, false},
		{"wildcard without credentials", []string{"*"}, http.MethodGet, "/api/v1/documents/d1/download", "http://viewer.example", http.StatusOK, true, false},
		{"preflight from unknown origin still short-circuits", nil, http.MethodOptions, "/api/v1/documents/d1/download", "http://evil.example", http.StatusNoContent, false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			req.Header.Set("Origin", tc.origin)
			resp := httptest.NewRecorder()
			corsRouter(tc.origins...).ServeHTTP(resp, req)

			if resp.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d", tc.wantStatus, resp.Code)
			}
			allow := resp.Header().Get("Access-Control-Allow-Origin")
			if tc.wantAllowed && allow != tc.origin {
				t.Fatalf("expected Allow-Origin %q, got %q", tc.origin, allow)
			}
			if !tc.wantAllowed && allow != "" {
				t.Fatalf("expected no Allow-Origin, got %q", allow)
			}
			if creds := resp.Header().Get("Access-Control-Allow-Credentials") == "true"; creds != tc.wantCreds {
				t.Fatalf("credentials advertised = %v, want %v", creds, tc.wantCreds)
			}
			if tc.wantAllowed && resp.Header().Get("Access-Control-Max-Age") != "600" {
				t.Fatalf("expected Max-Age 600, got %q", resp.Header().Get("Access-Control-Max-Age"))
			}
		})
	}
}
