package users

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"docflow-backend/internal/access"
	"docflow-backend/internal/shared/apperr"
	"docflow-backend/internal/shared/query"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu    sync.RWMutex
	users map[string]User
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{users: make(map[string]User)}
}

// Create stores a new account. Emails are unique across all accounts.
func (r *MemoryRepo) Create(ctx context.Context, user User) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == user.Email || existing.ID == user.ID {
			return "", apperr.Conflict(msgEmailTaken)
		}
	}
	r.users[user.ID] = user
	return user.ID, nil
}

// FindByEmail returns the active account registered under email.
func (r *MemoryRepo) FindByEmail(ctx context.Context, email string) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.Email == email && !u.Deleted() {
			out := u
			return &out, nil
		}
	}
	return nil, nil
}

// FindByID returns the active account with id.
func (r *MemoryRepo) FindByID(ctx context.Context, id string) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok || u.Deleted() {
		return nil, nil
	}
	return &u, nil
}

func (r *MemoryRepo) UpdateRole(ctx context.Context, id string, role access.Role, at time.Time) (int64, error) {
	return r.mutate(ctx, id, func(u *User) {
		u.Role = role
		u.UpdatedAt = at
	})
}

func (r *MemoryRepo) SoftDelete(ctx context.Context, id string, at time.Time) (int64, error) {
	return r.mutate(ctx, id, func(u *User) {
		u.DeletedAt = &at
		u.UpdatedAt = at
	})
}

// TouchLogin records the latest successful login.
func (r *MemoryRepo) TouchLogin(ctx context.Context, id string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		u.LastLoginAt = &at
		r.users[id] = u
	}
	return nil
}

func (r *MemoryRepo) List(ctx context.Context, f ListFilter, fields []string, page query.Page) ([]User, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	r.mu.RLock()
	matches := make([]User, 0, len(r.users))
	for _, u := range r.users {
		if matchesFilter(u, f) {
			matches = append(matches, u)
		}
	}
	r.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			if f.SortOrder == query.SortAsc {
				return matches[i].CreatedAt.Before(matches[j].CreatedAt)
			}
			return matches[i].CreatedAt.After(matches[j].CreatedAt)
		}
		return matches[i].ID < matches[j].ID
	})

	start, end := page.Slice(len(matches))
	out := make([]User, 0, end-start)
	for _, u := range matches[start:end] {
		out = append(out, project(u, fields))
	}
	return out, len(matches), nil
}

func matchesFilter(u User, f ListFilter) bool {
	if u.Role == access.RoleAdmin || !f.Scope.Includes(u.Deleted()) {
		return false
	}
	if len(f.Roles) > 0 && !slices.Contains(f.Roles, u.Role) {
		return false
	}
	if f.FullName != "" && !query.ContainsFold(u.FullName, f.FullName) {
		return false
	}
	if f.Email != "" && !query.ContainsFold(u.Email, f.Email) {
		return false
	}
	return true
}

// mutate applies fn to an active non-admin account.
func (r *MemoryRepo) mutate(ctx context.Context, id string, fn func(*User)) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok || u.Deleted() || u.Role == access.RoleAdmin {
		return 0, nil
	}
	fn(&u)
	r.users[id] = u
	return 1, nil
}
