package ingestions

import (
	"context"
	"sort"
	"sync"
	"time"

	"docflow-backend/internal/shared/apperr"
	"docflow-backend/internal/shared/query"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string]Ingestion
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{data: make(map[string]Ingestion)}
}

// Create stores a new ingestion.
func (r *MemoryRepo) Create(ctx context.Context, ing Ingestion) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[ing.ID]; ok {
		return apperr.Conflict("Ingestion already exists")
	}
	r.data[ing.ID] = clone(ing)
	return nil
}

// FindByID returns the ingestion with id.
func (r *MemoryRepo) FindByID(ctx context.Context, id string, withDeleted bool) (*Ingestion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	ing, ok := r.data[id]
	if !ok || (!withDeleted && ing.Deleted()) {
		return nil, nil
	}
	out := clone(ing)
	return &out, nil
}

// Transition moves a record from t.From to t.To.
func (r *MemoryRepo) Transition(ctx context.Context, t Transition) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	ing, ok := r.data[t.ID]
	if !ok || ing.Status != t.From {
		return 0, nil
	}
	ing.Status = t.To
	ing.Logs = appendLog(ing.Logs, t.Log)
	ing.ErrorMessage = t.ErrorMessage
	ing.FinishedAt = t.FinishedAt
	ing.UpdatedAt = t.At
	r.data[t.ID] = clone(ing)
	return 1, nil
}

// SoftDelete marks an active ingestion as deleted.
func (r *MemoryRepo) SoftDelete(ctx context.Context, id string, at time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	ing, ok := r.data[id]
	if !ok || ing.Deleted() {
		return 0, nil
	}
	ing.DeletedAt = &at
	ing.UpdatedAt = at
	r.data[id] = ing
	return 1, nil
}

// ListUnfinished returns active queued or processing records, oldest first.
func (r *MemoryRepo) ListUnfinished(ctx context.Context) ([]Ingestion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]Ingestion, 0)
	for _, ing := range r.data {
		if !ing.Deleted() && !ing.Status.Terminal() {
			out = append(out, clone(ing))
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// List filters, sorts by UpdatedAt and pages the stored ingestions.
func (r *MemoryRepo) List(ctx context.Context, f ListFilter, fields []string, page query.Page) ([]Ingestion, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	r.mu.RLock()
	matches := make([]Ingestion, 0, len(r.data))
	for _, ing := range r.data {
		if matchesFilter(ing, f) {
			matches = append(matches, clone(ing))
		}
	}
	r.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if f.SortOrder == query.SortAsc {
			return matches[i].UpdatedAt.Before(matches[j].UpdatedAt)
		}
		return matches[i].UpdatedAt.After(matches[j].UpdatedAt)
	})

	start, end := page.Slice(len(matches))
	out := make([]Ingestion, 0, end-start)
	for _, ing := range matches[start:end] {
		out = append(out, project(ing, fields))
	}
	return out, len(matches), nil
}

func matchesFilter(ing Ingestion, f ListFilter) bool {
	if !f.Scope.Includes(ing.Deleted()) {
		return false
	}
	if f.ID != "" && ing.ID != f.ID {
		return false
	}
	if f.DocumentID != "" && ing.DocumentID != f.DocumentID {
		return false
	}
	if f.UserID != "" && ing.UserID != f.UserID {
		return false
	}
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, ing.Status) {
		return false
	}
	if f.HasLogs != nil && (ing.Logs != "") != *f.HasLogs {
		return false
	}
	if f.HasError != nil {
		hasError := ing.ErrorMessage != nil && *ing.ErrorMessage != ""
		if hasError != *f.HasError {
			return false
		}
	}
	return true
}

func containsStatus(list []Status, s Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

var _ Repo = (*MemoryRepo)(nil)
