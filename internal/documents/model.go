package documents

import (
	"io"
	"time"

	"docflow-backend/internal/shared/query"
)

// Document is a stored file together with its metadata record.
type Document struct {
	ID          string
	UserID      string
	Title       string
	Description *string
	FileName    string
	FilePath    string
	MimeType    string
	SizeBytes   int64
	Version     int
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   *time.Time
}

// Deleted reports whether the record is soft-deleted.
func (d Document) Deleted() bool { return d.DeletedAt != nil }

// Metadata is the caller-supplied part of a new document.
type Metadata struct {
	Title       string
	Description *string
}

// Changes holds the optional metadata edits of an update.
type Changes struct {
	Title       *string
	Description *string
}

// Lookup selects a single document. At least one of ID or UserID is required.
type Lookup struct {
	ID          string
	UserID      string
	WithDeleted bool
}

// ListFilter narrows a document listing.
type ListFilter struct {
	Title     string
	MimeType  string
	UserID    string
	Scope     query.Scope
	Select    []string
	Page      int
	Limit     int
	SortOrder query.SortOrder
}

// ListResult is one page of documents. Only Fields are populated on Items.
type ListResult struct {
	Items      []Document
	Fields     []string
	TotalCount int
	TotalPages int
	Page       int
	Limit      int
}

// CreateResult reports the id of a newly recorded document.
type CreateResult struct {
	ID      string
	Message string
}

// Download is an open stream of a stored document.
type Download struct {
	Body     io.ReadCloser
	MimeType string
	FileName string
}
