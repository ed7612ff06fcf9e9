// Package access decides whether a requester may act on a resource owned by
// another user.
package access

import (
	"strings"

	"docflow-backend/internal/shared/apperr"
)

// Role is a user's authorization role.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// ForbiddenMessage is returned to callers denied by Check.
const ForbiddenMessage = "You do not have permission to perform this action"

// ParseRole maps a stored or claimed role string to a Role.
func ParseRole(raw string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleEditor:
		return RoleEditor, true
	case RoleViewer:
		return RoleViewer, true
	default:
		return "", false
	}
}

// Principal is the authenticated requester.
type Principal struct {
	UserID string
	Email  string
	Role   Role
}

// IsAdmin reports whether the principal holds the admin role.
func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// HasRole reports whether the principal holds any of roles.
func (p Principal) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}

// Allow reports whether the requester owns the resource or is an admin.
func Allow(requesterID string, requesterRole Role, ownerID string) bool {
	if requesterRole == RoleAdmin {
		return true
	}
	return requesterID != "" && requesterID == ownerID
}

// Check returns a forbidden error when p may not act on a resource owned by ownerID.
func Check(p Principal, ownerID string) error {
	if Allow(p.UserID, p.Role, ownerID) {
		return nil
	}
	return apperr.Forbidden(ForbiddenMessage)
}
