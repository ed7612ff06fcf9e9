package respond

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"docflow-backend/internal/shared/apperr"
	"docflow-backend/internal/shared/telemetry"
)

// ErrorBody defines the standardized error object.
type ErrorBody struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// ErrorResponse wraps the error body.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

const internalMessage = "Unexpected server error"

// Error sends a standardized error response.
func Error(c *gin.Context, status int, code, message string, details interface{}) {
	fields := map[string]any{
		"status":     status,
		"code":       code,
		"message":    message,
		"path":       c.Request.URL.Path,
		"method":     c.Request.Method,
		"request_id": c.GetString("requestId"),
	}
	if userID := c.GetString("userId"); userID != "" {
		fields["user_id"] = userID
	}
	if status >= http.StatusInternalServerError {
		telemetry.Error("http.error", fields)
	} else {
		telemetry.Warn("http.error", fields)
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		Error: ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// FromError maps a typed service error to its HTTP status and body. Untyped
// and internal errors are reported with an opaque message.
func FromError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status, code := StatusOf(kind)
	message := apperr.MessageOf(err)
	if kind == apperr.KindInternal || message == "" {
		if kind == apperr.KindInternal {
			telemetry.Error("http.internal_error", map[string]any{
				"request_id": c.GetString("requestId"),
				"path":       c.Request.URL.Path,
				"error":      err,
			})
			message = internalMessage
		} else {
			message = http.StatusText(status)
		}
	}
	Error(c, status, code, message, nil)
}

// StatusOf returns the HTTP status and error code for a kind.
func StatusOf(kind apperr.Kind) (int, string) {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest, "validation_error"
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized, "unauthorized"
	case apperr.KindForbidden:
		return http.StatusForbidden, "forbidden"
	case apperr.KindNotFound:
		return http.StatusNotFound, "not_found"
	case apperr.KindConflict:
		return http.StatusConflict, "conflict"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// Invalid reports a request binding failure. Validator field errors are
// returned as details keyed by field name.
func Invalid(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			details[fe.Field()] = fe.Tag()
		}
		Error(c, http.StatusBadRequest, "validation_error", "Invalid request", details)
		return
	}
	msg := "Invalid request"
	if err != nil {
		msg = err.Error()
	}
	Error(c, http.StatusBadRequest, "validation_error", msg, nil)
}
