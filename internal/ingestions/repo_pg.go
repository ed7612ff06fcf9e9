package ingestions

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"docflow-backend/internal/shared/apperr"
	"docflow-backend/internal/shared/query"
	"docflow-backend/internal/shared/storage/db"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a new ingestion.
func (r *PGRepo) Create(ctx context.Context, ing Ingestion) error {
	const stmt = `
INSERT INTO ingestions (
    id,
    document_id,
    user_id,
    status,
    logs,
    error_message,
    finished_at,
    created_at,
    updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.DB.ExecContext(
		ctx,
		stmt,
		ing.ID,
		ing.DocumentID,
		ing.UserID,
		string(ing.Status),
		nullString(ing.Logs),
		nullStringPtr(ing.ErrorMessage),
		nullTime(ing.FinishedAt),
		ing.CreatedAt,
		ing.UpdatedAt,
	)
	if err != nil {
		switch {
		case db.IsUniqueViolation(err):
			return apperr.Conflict("Ingestion already exists")
		case db.IsForeignKeyViolation(err):
			return apperr.NotFound("Document not found")
		}
		return err
	}
	return nil
}

// FindByID returns the ingestion with id.
func (r *PGRepo) FindByID(ctx context.Context, id string, withDeleted bool) (*Ingestion, error) {
	var where query.Where
	where.Add("id = ?", id)
	if !withDeleted {
		where.Raw(query.ScopeActive.Predicate("deleted_at"))
	}
	stmt := "SELECT " + allColumns + " FROM ingestions" + where.SQL()

	rows, err := r.DB.QueryContext(ctx, stmt, where.Args()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := scanFull(rows)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

// Transition applies a compare-and-set status change and appends its log entry.
func (r *PGRepo) Transition(ctx context.Context, t Transition) (int64, error) {
	const stmt = `
UPDATE ingestions
SET status = $1,
    logs = CONCAT_WS(E'\n', NULLIF(logs, ''), NULLIF($2::text, '')),
    error_message = $3,
    finished_at = $4,
    updated_at = $5
WHERE id = $6 AND status = $7`

	res, err := r.DB.ExecContext(
		ctx,
		stmt,
		string(t.To),
		t.Log,
		nullStringPtr(t.ErrorMessage),
		nullTime(t.FinishedAt),
		t.At,
		t.ID,
		string(t.From),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SoftDelete stamps deleted_at on an active ingestion.
func (r *PGRepo) SoftDelete(ctx context.Context, id string, at time.Time) (int64, error) {
	const stmt = `
UPDATE ingestions
SET deleted_at = $1, updated_at = $1
WHERE id = $2 AND deleted_at IS NULL`
	res, err := r.DB.ExecContext(ctx, stmt, at, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListUnfinished returns active queued or processing records, oldest first.
func (r *PGRepo) ListUnfinished(ctx context.Context) ([]Ingestion, error) {
	stmt := "SELECT " + allColumns + ` FROM ingestions
WHERE deleted_at IS NULL AND status IN ('queued', 'processing')
ORDER BY created_at ASC`

	rows, err := r.DB.QueryContext(ctx, stmt)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFull(rows)
}

// List selects the requested columns of one page and the total match count.
func (r *PGRepo) List(ctx context.Context, f ListFilter, fields []string, page query.Page) ([]Ingestion, int, error) {
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

	stmt := "SELECT " + strings.Join(columns, ", ") + ", COUNT(*) OVER() FROM ingestions" +
		where.SQL() + " ORDER BY updated_at " + string(order) + ", id " + string(order) +
		" LIMIT " + limitArg + " OFFSET " + offsetArg

	rows, err := r.DB.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	total := 0
	out := []Ingestion{}
	for rows.Next() {
		var ing Ingestion
		var n nullables
		dest := make([]any, 0, len(fields)+1)
		for _, field := range fields {
			dest = append(dest, scanTarget(&ing, &n, field))
		}
		dest = append(dest, &total)
		if err := rows.Scan(dest...); err != nil {
			return nil, 0, err
		}
		n.apply(&ing)
		out = append(out, ing)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	if len(out) == 0 && page.Offset() > 0 {
		countStmt := "SELECT COUNT(*) FROM ingestions" + where.SQL()
		if err := r.DB.QueryRowContext(ctx, countStmt, where.Args()...).Scan(&total); err != nil {
			return nil, 0, err
		}
	}
	return out, total, nil
}

func listWhere(f ListFilter) *query.Where {
	where := &query.Where{}
	where.Raw(f.Scope.Predicate("deleted_at"))
	if f.ID != "" {
		where.Add("id = ?", f.ID)
	}
	if f.DocumentID != "" {
		where.Add("document_id = ?", f.DocumentID)
	}
	if f.UserID != "" {
		where.Add("user_id = ?", f.UserID)
	}
	if len(f.Statuses) > 0 {
		placeholders := make([]string, len(f.Statuses))
		args := make([]any, len(f.Statuses))
		for i, s := range f.Statuses {
			placeholders[i] = "?"
			args[i] = string(s)
		}
		where.Add("status IN ("+strings.Join(placeholders, ", ")+")", args...)
	}
	if f.HasLogs != nil {
		if *f.HasLogs {
			where.Raw("(logs IS NOT NULL AND logs <> '')")
		} else {
			where.Raw("(logs IS NULL OR logs = '')")
		}
	}
	if f.HasError != nil {
		if *f.HasError {
			where.Raw("(error_message IS NOT NULL AND error_message <> '')")
		} else {
			where.Raw("(error_message IS NULL OR error_message = '')")
		}
	}
	return where
}

func scanFull(rows *sql.Rows) ([]Ingestion, error) {
	var out []Ingestion
	for rows.Next() {
		var ing Ingestion
		var n nullables
		if err := rows.Scan(
			&ing.ID,
			&ing.DocumentID,
			&ing.UserID,
			&ing.Status,
			&n.logs,
			&n.errorMessage,
			&n.finishedAt,
			&ing.CreatedAt,
			&ing.UpdatedAt,
			&n.deletedAt,
		); err != nil {
			return nil, err
		}
		n.apply(&ing)
		out = append(out, ing)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

var _ Repo = (*PGRepo)(nil)
