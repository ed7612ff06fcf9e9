package documents

import "database/sql"

// Listable fields and their columns.
var fieldColumns = map[string]string{
	"id":          "id",
	"userId":      "user_id",
	"title":       "title",
	"description": "description",
	"fileName":    "file_name",
	"filePath":    "file_path",
	"mimeType":    "mime_type",
	"size":        "size_bytes",
	"version":     "version",
	"createdAt":   "created_at",
	"updatedAt":   "updated_at",
	"deletedAt":   "deleted_at",
}

// AllFields lists every selectable field in response order.
var AllFields = []string{
	"id", "userId", "title", "description", "fileName", "filePath",
	"mimeType", "size", "version", "createdAt", "updatedAt", "deletedAt",
}

// DefaultFields is the projection used when a listing selects nothing.
var DefaultFields = []string{"id", "title", "description", "fileName", "mimeType", "size"}

// UserDocumentFields is the projection of a user's own document listing.
var UserDocumentFields = []string{"id", "title", "description", "fileName", "mimeType", "size", "createdAt"}

const allColumns = "id, user_id, title, description, file_name, file_path, mime_type, size_bytes, version, created_at, updated_at, deleted_at"

// nullables holds scan targets for nullable columns.
type nullables struct {
	description sql.NullString
	deletedAt   sql.NullTime
}

func (n *nullables) apply(doc *Document) {
	if n.description.Valid {
		desc := n.description.String
		doc.Description = &desc
	}
	if n.deletedAt.Valid {
		at := n.deletedAt.Time
		doc.DeletedAt = &at
	}
}

// scanTarget returns the destination for field on doc.
func scanTarget(doc *Document, n *nullables, field string) any {
	switch field {
	case "id":
		return &doc.ID
	case "userId":
		return &doc.UserID
	case "title":
		return &doc.Title
	case "description":
		return &n.description
	case "fileName":
		return &doc.FileName
	case "filePath":
		return &doc.FilePath
	case "mimeType":
		return &doc.MimeType
	case "size":
		return &doc.SizeBytes
	case "version":
		return &doc.Version
	case "createdAt":
		return &doc.CreatedAt
	case "updatedAt":
		return &doc.UpdatedAt
	case "deletedAt":
		return &n.deletedAt
	default:
		return new(any)
	}
}
