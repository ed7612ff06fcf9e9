package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"docflow-backend/internal/access"
	"docflow-backend/internal/shared/apperr"
	"docflow-backend/internal/shared/query"
	"docflow-backend/internal/shared/storage/db"
)

const userColumns = "id, email, full_name, password_hash, role, last_login_at, created_at, updated_at, deleted_at"

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

func (r *PGRepo) Create(ctx context.Context, user User) (string, error) {
	const stmt = `
INSERT INTO users (id, email, full_name, password_hash, role, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id`
	var id string
	err := r.DB.QueryRowContext(ctx, stmt,
		user.ID,
		user.Email,
		user.FullName,
		user.PasswordHash,
		string(user.Role),
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&id)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return "", apperr.Conflict(msgEmailTaken)
		}
		return "", err
	}
	return id, nil
}

func (r *PGRepo) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.findOne(ctx, "email = $1", email)
}

func (r *PGRepo) FindByID(ctx context.Context, id string) (*User, error) {
	return r.findOne(ctx, "id = $1", id)
}

func (r *PGRepo) UpdateRole(ctx context.Context, id string, role access.Role, at time.Time) (int64, error) {
	const stmt = `
UPDATE users SET role = $1, updated_at = $2
WHERE id = $3 AND role <> 'admin' AND deleted_at IS NULL`
	return r.exec(ctx, stmt, string(role), at, id)
}

func (r *PGRepo) SoftDelete(ctx context.Context, id string, at time.Time) (int64, error) {
	const stmt = `
UPDATE users SET deleted_at = $1, updated_at = $1
WHERE id = $2 AND role <> 'admin' AND deleted_at IS NULL`
	return r.exec(ctx, stmt, at, id)
}

func (r *PGRepo) TouchLogin(ctx context.Context, id string, at time.Time) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE users SET last_login_at = $1 WHERE id = $2`, at, id)
	return err
}

func (r *PGRepo) List(ctx context.Context, f ListFilter, fields []string, page query.Page) ([]User, int, error) {
	where := listWhere(f)

	columns := make([]string, 0, len(fields))
	for _, field := range fields {
		col, ok := fieldColumns[field]
		if !ok {
			return nil, 0, fmt.Errorf("unknown field %q", field)
		}
		columns = append(columns, col)
	}

	order := query.SortDesc
	if f.SortOrder == query.SortAsc {
		order = query.SortAsc
	}

	args := append([]any{}, where.Args()...)
	limitArg := fmt.Sprintf("$%d", len(args)+1)
	offsetArg := fmt.Sprintf("$%d", len(args)+2)
	args = append(args, page.Limit, page.Offset())

	stmt := "SELECT " + strings.Join(columns, ", ") + ", COUNT(*) OVER() FROM users" +
		where.SQL() + " ORDER BY created_at " + string(order) + ", id ASC" +
		" LIMIT " + limitArg + " OFFSET " + offsetArg

	rows, err := r.DB.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	total := 0
	out := []User{}
	for rows.Next() {
		var u User
		var n nullables
		dest := make([]any, 0, len(fields)+1)
		for _, field := range fields {
			dest = append(dest, scanTarget(&u, &n, field))
		}
		dest = append(dest, &total)
		if err := rows.Scan(dest...); err != nil {
			return nil, 0, err
		}
		n.apply(&u)
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	if len(out) == 0 && page.Offset() > 0 {
		countStmt := "SELECT COUNT(*) FROM users" + where.SQL()
		if err := r.DB.QueryRowContext(ctx, countStmt, where.Args()...).Scan(&total); err != nil {
			return nil, 0, err
		}
	}
	return out, total, nil
}

func listWhere(f ListFilter) *query.Where {
	where := &query.Where{}
	where.Raw(f.Scope.Predicate("deleted_at"))
	where.Raw("role <> 'admin'")
	if f.FullName != "" {
		where.Add("full_name ILIKE ?", "%"+escapeLike(f.FullName)+"%")
	}
	if f.Email != "" {
		where.Add("email ILIKE ?", "%"+escapeLike(f.Email)+"%")
	}
	if len(f.Roles) > 0 {
		marks := make([]string, len(f.Roles))
		args := make([]any, len(f.Roles))
		for i, role := range f.Roles {
			marks[i] = "?"
			args[i] = string(role)
		}
		where.Add("role IN ("+strings.Join(marks, ", ")+")", args...)
	}
	return where
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (r *PGRepo) findOne(ctx context.Context, predicate string, arg any) (*User, error) {
	stmt := "SELECT " + userColumns + " FROM users WHERE " + predicate + " AND deleted_at IS NULL LIMIT 1"
	var (
		u         User
		role      string
		lastLogin sql.NullTime
		deletedAt sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx, stmt, arg).Scan(
		&u.ID,
		&u.Email,
		&u.FullName,
		&u.PasswordHash,
		&role,
		&lastLogin,
		&u.CreatedAt,
		&u.UpdatedAt,
		&deletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	u.Role, _ = access.ParseRole(role)
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLoginAt = &t
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		u.DeletedAt = &t
	}
	return &u, nil
}

func (r *PGRepo) exec(ctx context.Context, stmt string, args ...any) (int64, error) {
	res, err := r.DB.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
