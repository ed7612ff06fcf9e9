package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"docflow-backend/internal/access"
	"docflow-backend/internal/shared/server/middleware"
	"docflow-backend/internal/shared/server/respond"
)

type meResponse struct {
	UserID        string `json:"userId"`
	Email         string `json:"email,omitempty"`
	Role          string `json:"role"`
	CanWrite      bool   `json:"canWrite"`
	CanAdminister bool   `json:"canAdminister"`
}

// registerMeRoutes mounts GET /me. It answers from the verified token alone
// so clients can decide which document actions to offer without a user lookup.
func registerMeRoutes(rg *gin.RouterGroup) {
	rg.GET("/me", func(c *gin.Context) {
		p, ok := middleware.PrincipalFromContext(c)
		if !ok || p.UserID == "" {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}
		respond.OK(c, meResponse{
			UserID:        p.UserID,
			Email:         p.Email,
			Role:          string(p.Role),
			CanWrite:      p.HasRole(access.RoleAdmin, access.RoleEditor),
			CanAdminister: p.IsAdmin(),
		})
	})
}
