package documents

import (
	"context"
	"time"

	"docflow-backend/internal/shared/query"
)

// Repo defines persistence operations for documents.
type Repo interface {
	// Create inserts doc and returns the id the store reports for it.
	Create(ctx context.Context, doc Document) (string, error)
	// FindOne returns nil without error when nothing matches.
	FindOne(ctx context.Context, l Lookup) (*Document, error)
	// Update writes doc if the stored row is active and still at
	// expectedVersion, bumping its version. It returns the rows affected.
	Update(ctx context.Context, doc Document, expectedVersion int) (int64, error)
	// SoftDelete stamps deleted_at on an active row and returns the rows affected.
	SoftDelete(ctx context.Context, id string, at time.Time) (int64, error)
	// List returns the page of matches with only fields populated, and the
	// total number of matches.
	List(ctx context.Context, f ListFilter, fields []string, page query.Page) ([]Document, int, error)
}
