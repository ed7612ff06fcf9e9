package users

import (
	"context"
	"time"

	"docflow-backend/internal/access"
	"docflow-backend/internal/shared/query"
)

// Repo persists user accounts. Finders return nil, nil when nothing matches.
type Repo interface {
	Create(ctx context.Context, user User) (string, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	// UpdateRole changes the role of an active non-admin account and
	// reports the number of rows changed.
	UpdateRole(ctx context.Context, id string, role access.Role, at time.Time) (int64, error)
	// SoftDelete marks an active non-admin account deleted.
	SoftDelete(ctx context.Context, id string, at time.Time) (int64, error)
	TouchLogin(ctx context.Context, id string, at time.Time) error
	// List returns one page of non-admin accounts projected onto fields,
	// ordered by creation time, and the total match count.
	List(ctx context.Context, f ListFilter, fields []string, page query.Page) ([]User, int, error)
}
