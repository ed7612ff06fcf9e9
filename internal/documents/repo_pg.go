package documents

import (
	"context"
	"database/sql"
	"errors"
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

// Create inserts a new document and returns its id.
func (r *PGRepo) Create(ctx context.Context, doc Document) (string, error) {
	const stmt = `
INSERT INTO documents (
    id,
    user_id,
    title,
    description,
    file_name,
    file_path,
    mime_type,
    size_bytes,
    version,
    created_at,
    updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING id`

	var id string
	err := r.DB.QueryRowContext(
		ctx,
		stmt,
		doc.ID,
		doc.UserID,
		doc.Title,
		nullString(doc.Description),
		doc.FileName,
		doc.FilePath,
		doc.MimeType,
		doc.SizeBytes,
		doc.Version,
		doc.CreatedAt,
		doc.UpdatedAt,
	).Scan(&id)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return "", apperr.Conflict("Document already exists")
		}
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return id, nil
}

// FindOne returns the most recently updated document matching l.
func (r *PGRepo) FindOne(ctx context.Context, l Lookup) (*Document, error) {
	var where query.Where
	if l.ID != "" {
		where.Add("id = ?", l.ID)
	}
	if l.UserID != "" {
		where.Add("user_id = ?", l.UserID)
	}
	if !l.WithDeleted {
		where.Raw(query.ScopeActive.Predicate("deleted_at"))
	}

	stmt := "SELECT " + allColumns + " FROM documents" + where.SQL() + " ORDER BY updated_at DESC LIMIT 1"

	var doc Document
	var n nullables
	err := r.DB.QueryRowContext(ctx, stmt, where.Args()...).Scan(
		&doc.ID,
		&doc.UserID,
		&doc.Title,
		&n.description,
		&doc.FileName,
		&doc.FilePath,
		&doc.MimeType,
		&doc.SizeBytes,
		&doc.Version,
		&doc.CreatedAt,
		&doc.UpdatedAt,
		&n.deletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	n.apply(&doc)
	return &doc, nil
}

// Update writes the merged document guarded by its expected version.
func (r *PGRepo) Update(ctx context.Context, doc Document, expectedVersion int) (int64, error) {
	const stmt = `
UPDATE documents
SET title = $1,
    description = $2,
    file_name = $3,
    file_path = $4,
    mime_type = $5,
    size_bytes = $6,
    updated_at = $7,
    version = version + 1
WHERE id = $8 AND version = $9 AND deleted_at IS NULL`

	res, err := r.DB.ExecContext(
		ctx,
		stmt,
		doc.Title,
		nullString(doc.Description),
		doc.FileName,
		doc.FilePath,
		doc.MimeType,
		doc.SizeBytes,
		doc.UpdatedAt,
		doc.ID,
		expectedVersion,
	)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return 0, apperr.Conflict("Document already exists")
		}
		return 0, err
	}
	return res.RowsAffected()
}

// SoftDelete stamps deleted_at on an active document.
func (r *PGRepo) SoftDelete(ctx context.Context, id string, at time.Time) (int64, error) {
	const stmt = `
UPDATE documents
SET deleted_at = $1, updated_at = $1
WHERE id = $2 AND deleted_at IS NULL`
	res, err := r.DB.ExecContext(ctx, stmt, at, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// List selects the requested columns of one page and the total match count.
func (r *PGRepo) List(ctx context.Context, f ListFilter, fields []string, page query.Page) ([]Document, int, error) {
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

	stmt := "SELECT " + strings.Join(columns, ", ") + ", COUNT(*) OVER() FROM documents" +
		where.SQL() + " ORDER BY updated_at " + string(order) + ", id " + string(order) +
		" LIMIT " + limitArg + " OFFSET " + offsetArg

	rows, err := r.DB.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	total := 0
	out := []Document{}
	for rows.Next() {
		var doc Document
		var n nullables
		dest := make([]any, 0, len(fields)+1)
		for _, field := range fields {
			dest = append(dest, scanTarget(&doc, &n, field))
		}
		dest = append(dest, &total)
		if err := rows.Scan(dest...); err != nil {
			return nil, 0, err
		}
		n.apply(&doc)
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	if len(out) == 0 && page.Offset() > 0 {
		countStmt := "SELECT COUNT(*) FROM documents" + where.SQL()
		if err := r.DB.QueryRowContext(ctx, countStmt, where.Args()...).Scan(&total); err != nil {
			return nil, 0, err
		}
	}
	return out, total, nil
}

func listWhere(f ListFilter) *query.Where {
	where := &query.Where{}
	where.Raw(f.Scope.Predicate("deleted_at"))
	if f.UserID != "" {
		where.Add("user_id = ?", f.UserID)
	}
	if f.Title != "" {
		where.Add("title ILIKE ?", "%"+escapeLike(f.Title)+"%")
	}
	if f.MimeType != "" {
		where.Add("mime_type ILIKE ?", "%"+escapeLike(f.MimeType)+"%")
	}
	return where
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

var _ Repo = (*PGRepo)(nil)
