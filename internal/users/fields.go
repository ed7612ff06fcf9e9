package users

import (
	"database/sql"

	"docflow-backend/internal/access"
)

// Listable fields and their columns. The password hash is never listable.
var fieldColumns = map[string]string{
	"id":          "id",
	"email":       "email",
	"fullName":    "full_name",
	"role":        "role",
	"lastLoginAt": "last_login_at",
	"createdAt":   "created_at",
	"updatedAt":   "updated_at",
	"deletedAt":   "deleted_at",
}

// AllFields lists every selectable field in response order.
var AllFields = []string{"id", "email", "fullName", "role", "lastLoginAt", "createdAt", "updatedAt", "deletedAt"}

// DefaultFields is the projection used when a listing selects nothing.
var DefaultFields = []string{"id", "fullName", "email", "role"}

type nullables struct {
	role      string
	lastLogin sql.NullTime
	deletedAt sql.NullTime
}

func (n *nullables) apply(u *User) {
	if n.role != "" {
		u.Role, _ = access.ParseRole(n.role)
	}
	if n.lastLogin.Valid {
		t := n.lastLogin.Time
		u.LastLoginAt = &t
	}
	if n.deletedAt.Valid {
		t := n.deletedAt.Time
		u.DeletedAt = &t
	}
}

func scanTarget(u *User, n *nullables, field string) any {
	switch field {
	case "id":
		return &u.ID
	case "email":
		return &u.Email
	case "fullName":
		return &u.FullName
	case "role":
		return &n.role
	case "lastLoginAt":
		return &n.lastLogin
	case "createdAt":
		return &u.CreatedAt
	case "updatedAt":
		return &u.UpdatedAt
	case "deletedAt":
		return &n.deletedAt
	default:
		return new(any)
	}
}

// project keeps only the selected fields of u.
func project(u User, fields []string) User {
	var out User
	for _, field := range fields {
		switch field {
		case "id":
			out.ID = u.ID
		case "email":
			out.Email = u.Email
		case "fullName":
			out.FullName = u.FullName
		case "role":
			out.Role = u.Role
		case "lastLoginAt":
			out.LastLoginAt = u.LastLoginAt
		case "createdAt":
			out.CreatedAt = u.CreatedAt
		case "updatedAt":
			out.UpdatedAt = u.UpdatedAt
		case "deletedAt":
			out.DeletedAt = u.DeletedAt
		}
	}
	return out
}
