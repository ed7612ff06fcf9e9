package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"docflow-backend/internal/access"
	"docflow-backend/internal/shared/auth"
	"docflow-backend/internal/shared/server/respond"
)

const (
	userIDKey    = "userId"
	principalKey = "principal"
)

// TokenVerifier validates bearer tokens.
type TokenVerifier interface {
	Verify(token string) (auth.Claims, error)
}

// Auth validates bearer JWTs and stores the principal in context.
func Auth(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}

		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if !strings.HasPrefix(authHeader, "Bearer ") {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
		if token == "" {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}

		claims, err := verifier.Verify(token)
		if err != nil {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}
		role, ok := access.ParseRole(claims.Role)
		if !ok {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}

		SetPrincipal(c, access.Principal{UserID: claims.Sub, Email: claims.Email, Role: role})
		c.Next()
	}
}

// RequireRoles rejects principals that hold none of roles.
func RequireRoles(roles ...access.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFromContext(c)
		if !ok {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}
		if !p.HasRole(roles...) {
			respond.Error(c, http.StatusForbidden, "forbidden", access.ForbiddenMessage, nil)
			return
		}
		c.Next()
	}
}

// SetPrincipal stores the authenticated principal on the request.
func SetPrincipal(c *gin.Context, p access.Principal) {
	c.Set(principalKey, p)
	c.Set(userIDKey, p.UserID)
}

// PrincipalFromContext fetches the principal set by the auth middleware.
func PrincipalFromContext(c *gin.Context) (access.Principal, bool) {
	if c == nil {
		return access.Principal{}, false
	}
	val, ok := c.Get(principalKey)
	if !ok {
		return access.Principal{}, false
	}
	p, ok := val.(access.Principal)
	return p, ok
}

// UserIDFromContext fetches the user ID set by the auth middleware.
func UserIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	return c.GetString(userIDKey)
}
