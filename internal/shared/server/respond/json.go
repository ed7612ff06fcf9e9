package respond

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Message is the body of operations that only report an outcome, such as
// document deletes and role changes.
type Message struct {
	Message string `json:"message"`
}

// JSON writes payload with status. A nil payload becomes an empty object so
// clients never have to special-case a "null" body.
func JSON(c *gin.Context, status int, payload any) {
	if payload == nil {
		payload = gin.H{}
	}
	c.JSON(status, payload)
}

func OK(c *gin.Context, payload any)      { JSON(c, http.StatusOK, payload) }
func Created(c *gin.Context, payload any) { JSON(c, http.StatusCreated, payload) }

// Accepted acknowledges work that continues in the background, like a
// triggered ingestion.
func Accepted(c *gin.Context, payload any) { JSON(c, http.StatusAccepted, payload) }

// Text replies with a bare message wrapped in Message.
func Text(c *gin.Context, status int, msg string) { JSON(c, status, Message{Message: msg}) }
