package documents

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"docflow-backend/internal/access"
	"docflow-backend/internal/shared/apperr"
	"docflow-backend/internal/shared/server/middleware"
	"docflow-backend/internal/shared/server/respond"
)

const currentDocumentKey = "currentDocument"

// OwnershipGuard loads the active document named by :id and rejects
// principals that neither own it nor are admins.
func OwnershipGuard(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := middleware.PrincipalFromContext(c)
		if !ok {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "You are not authorized to perform this action", nil)
			return
		}
		id, ok := documentID(c)
		if !ok {
			return
		}
		doc, err := svc.FindBy(c.Request.Context(), Lookup{ID: id})
		if err != nil {
			respond.FromError(c, err)
			return
		}
		if doc == nil {
			respond.FromError(c, apperr.NotFound(msgNotFound))
			return
		}
		if err := access.Check(p, doc.UserID); err != nil {
			respond.FromError(c, err)
			return
		}
		c.Set(currentDocumentKey, *doc)
		c.Next()
	}
}

// CurrentDocument returns the document loaded by OwnershipGuard.
func CurrentDocument(c *gin.Context) (Document, bool) {
	val, ok := c.Get(currentDocumentKey)
	if !ok {
		return Document{}, false
	}
	doc, ok := val.(Document)
	return doc, ok
}

// documentID validates the :id path parameter and records it for request logs.
func documentID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "Invalid Document ID", nil)
		return "", false
	}
	c.Set(middleware.DocumentIDKey, id)
	return id, true
}
