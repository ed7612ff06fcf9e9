package documents

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
	data map[string]Document
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{data: make(map[string]Document)}
}

// Create stores a new document. File paths are unique.
func (r *MemoryRepo) Create(ctx context.Context, doc Document) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[doc.ID]; ok {
		return "", apperr.Conflict("Document already exists")
	}
	for _, existing := range r.data {
		if existing.FilePath == doc.FilePath {
			return "", apperr.Conflict("Document already exists")
		}
	}
	r.data[doc.ID] = clone(doc)
	return doc.ID, nil
}

// FindOne returns the first document matching l.
func (r *MemoryRepo) FindOne(ctx context.Context, l Lookup) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if l.ID != "" {
		doc, ok := r.data[l.ID]
		if !ok || !matchesLookup(doc, l) {
			return nil, nil
		}
		out := clone(doc)
		return &out, nil
	}
	var best *Document
	for _, doc := range r.data {
		if !matchesLookup(doc, l) {
			continue
		}
		if best == nil || doc.UpdatedAt.After(best.UpdatedAt) {
			d := clone(doc)
			best = &d
		}
	}
	return best, nil
}

// Update replaces an active document still at expectedVersion.
func (r *MemoryRepo) Update(ctx context.Context, doc Document, expectedVersion int) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.data[doc.ID]
	if !ok || stored.Deleted() || stored.Version != expectedVersion {
		return 0, nil
	}
	doc.Version = expectedVersion + 1
	doc.CreatedAt = stored.CreatedAt
	doc.DeletedAt = nil
	r.data[doc.ID] = clone(doc)
	return 1, nil
}

// SoftDelete marks an active document as deleted.
func (r *MemoryRepo) SoftDelete(ctx context.Context, id string, at time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.data[id]
	if !ok || stored.Deleted() {
		return 0, nil
	}
	stored.DeletedAt = &at
	stored.UpdatedAt = at
	r.data[id] = stored
	return 1, nil
}

// List filters, sorts by UpdatedAt and pages the stored documents.
func (r *MemoryRepo) List(ctx context.Context, f ListFilter, fields []string, page query.Page) ([]Document, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	r.mu.RLock()
	matches := make([]Document, 0, len(r.data))
	for _, doc := range r.data {
		if matchesFilter(doc, f) {
			matches = append(matches, clone(doc))
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
	out := make([]Document, 0, end-start)
	for _, doc := range matches[start:end] {
		out = append(out, project(doc, fields))
	}
	return out, len(matches), nil
}

func matchesLookup(doc Document, l Lookup) bool {
	if l.ID != "" && doc.ID != l.ID {
		return false
	}
	if l.UserID != "" && doc.UserID != l.UserID {
		return false
	}
	return l.WithDeleted || !doc.Deleted()
}

func matchesFilter(doc Document, f ListFilter) bool {
	if !f.Scope.Includes(doc.Deleted()) {
		return false
	}
	if f.UserID != "" && doc.UserID != f.UserID {
		return false
	}
	if f.Title != "" && !query.ContainsFold(doc.Title, f.Title) {
		return false
	}
	if f.MimeType != "" && !query.ContainsFold(doc.MimeType, f.MimeType) {
		return false
	}
	return true
}

// project keeps only the selected fields of doc.
func project(doc Document, fields []string) Document {
	var out Document
	for _, field := range fields {
		switch field {
		case "id":
			out.ID = doc.ID
		case "userId":
			out.UserID = doc.UserID
		case "title":
			out.Title = doc.Title
		case "description":
			out.Description = doc.Description
		case "fileName":
			out.FileName = doc.FileName
		case "filePath":
			out.FilePath = doc.FilePath
		case "mimeType":
			out.MimeType = doc.MimeType
		case "size":
			out.SizeBytes = doc.SizeBytes
		case "version":
			out.Version = doc.Version
		case "createdAt":
			out.CreatedAt = doc.CreatedAt
		case "updatedAt":
			out.UpdatedAt = doc.UpdatedAt
		case "deletedAt":
			out.DeletedAt = doc.DeletedAt
		}
	}
	return out
}

func clone(doc Document) Document {
	if doc.Description != nil {
		desc := *doc.Description
		doc.Description = &desc
	}
	if doc.DeletedAt != nil {
		at := *doc.DeletedAt
		doc.DeletedAt = &at
	}
	return doc
}

var _ Repo = (*MemoryRepo)(nil)
