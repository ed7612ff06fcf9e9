package users

import (
	"time"

	"docflow-backend/internal/access"
	"docflow-backend/internal/shared/query"
)

// User is a registered account.
type User struct {
	ID           string
	Email        string
	FullName     string
	PasswordHash string
	Role         access.Role
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    *time.Time
}

// Deleted reports whether the account is soft-deleted.
func (u User) Deleted() bool { return u.DeletedAt != nil }

// SignupInput is the caller-supplied part of a new account.
type SignupInput struct {
	FullName string
	Email    string
	Password string
}

// SignupResult identifies a newly created account.
type SignupResult struct {
	ID   string
	Role access.Role
}

// Profile is the public view of an account.
type Profile struct {
	ID       string
	Email    string
	FullName string
	Role     access.Role
}

// ListFilter narrows an account listing. Admin accounts are never listed.
type ListFilter struct {
	FullName  string
	Email     string
	Roles     []access.Role
	Scope     query.Scope
	Select    []string
	Page      int
	Limit     int
	SortOrder query.SortOrder
}

// ListResult is one page of accounts. Only Fields are populated on Items.
type ListResult struct {
	Items      []User
	Fields     []string
	TotalCount int
	TotalPages int
	Page       int
	Limit      int
}
