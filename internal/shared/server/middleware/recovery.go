package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"docflow-backend/internal/shared/server/respond"
	"docflow-backend/internal/shared/telemetry"
)

// Recovery turns a handler panic into a 500 envelope and an error log that
// carries whatever document or ingestion the handler had tagged.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			telemetry.Error("request.panic", map[string]any{
				"request_id":   RequestIDFromContext(c),
				"route":        c.FullPath(),
				"method":       c.Request.Method,
				"user_id":      UserIDFromContext(c),
				"document_id":  c.GetString(DocumentIDKey),
				"ingestion_id": c.GetString(IngestionIDKey),
				"panic":        fmt.Sprint(rec),
				"stack":        string(debug.Stack()),
			})
			if c.Writer.Written() {
				c.Abort()
				return
			}
			respond.Error(c, http.StatusInternalServerError, "internal", "Unexpected server error", nil)
		}()
		c.Next()
	}
}
