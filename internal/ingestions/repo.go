package ingestions

import (
	"context"
	"time"

	"docflow-backend/internal/shared/query"
)

// Repo defines persistence operations for ingestions.
type Repo interface {
	Create(ctx context.Context, ing Ingestion) error
	// FindByID returns nil, nil when no matching record exists.
	FindByID(ctx context.Context, id string, withDeleted bool) (*Ingestion, error)
	// Transition applies t only while the record is still in t.From and
	// reports the number of rows changed.
	Transition(ctx context.Context, t Transition) (int64, error)
	SoftDelete(ctx context.Context, id string, at time.Time) (int64, error)
	// ListUnfinished returns active records that have not reached a terminal state.
	ListUnfinished(ctx context.Context) ([]Ingestion, error)
	List(ctx context.Context, f ListFilter, fields []string, page query.Page) ([]Ingestion, int, error)
}
