package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"docflow-backend/internal/shared/telemetry"
)

// Keys handlers set on the gin context so the access log can name the
// document or ingestion a request touched.
const (
	DocumentIDKey       = "documentId"
	IngestionIDKey      = "ingestionId"
	StatusTransitionKey = "statusTransition"
)

// quietRoutes are polled by probes and scrapers and only logged on failure.
var quietRoutes = map[string]bool{
	"/metrics":       true,
	"/api/v1/health": true,
}

// Logging writes one request.complete line per request. Server errors log at
// error level and client errors at warn.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		if status < http.StatusBadRequest && quietRoutes[c.FullPath()] {
			return
		}

		fields := map[string]any{
			"request_id":        RequestIDFromContext(c),
			"method":            c.Request.Method,
			"path":              c.Request.URL.Path,
			"route":             c.FullPath(),
			"status":            status,
			"bytes":             c.Writer.Size(),
			"duration_ms":       float64(time.Since(start).Microseconds()) / 1000,
			"user_id":           UserIDFromContext(c),
			"document_id":       c.GetString(DocumentIDKey),
			"ingestion_id":      c.GetString(IngestionIDKey),
			"status_transition": c.GetString(StatusTransitionKey),
			"client_ip":         c.ClientIP(),
		}
		switch {
		case status >= http.StatusInternalServerError:
			telemetry.Error("request.complete", fields)
		case status >= http.StatusBadRequest:
			telemetry.Warn("request.complete", fields)
		default:
			telemetry.Info("request.complete", fields)
		}
	}
}
