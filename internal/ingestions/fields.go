package ingestions

import "database/sql"

var fieldColumns = map[string]string{
	"id":           "id",
	"documentId":   "document_id",
	"userId":       "user_id",
	"status":       "status",
	"logs":         "logs",
	"errorMessage": "error_message",
	"finishedAt":   "finished_at",
	"createdAt":    "created_at",
	"updatedAt":    "updated_at",
	"deletedAt":    "deleted_at",
}

// AllFields lists every selectable field in response order.
var AllFields = []string{
	"id", "status", "logs", "errorMessage", "documentId", "userId",
	"finishedAt", "createdAt", "updatedAt", "deletedAt",
}

// DefaultFields is the projection used when a listing selects nothing.
var DefaultFields = []string{"id", "status", "logs", "errorMessage", "documentId", "userId", "createdAt", "updatedAt"}

const allColumns = "id, document_id, user_id, status, logs, error_message, finished_at, created_at, updated_at, deleted_at"

type nullables struct {
	logs         sql.NullString
	errorMessage sql.NullString
	finishedAt   sql.NullTime
	deletedAt    sql.NullTime
}

func (n *nullables) apply(ing *Ingestion) {
	if n.logs.Valid {
		ing.Logs = n.logs.String
	}
	if n.errorMessage.Valid {
		msg := n.errorMessage.String
		ing.ErrorMessage = &msg
	}
	if n.finishedAt.Valid {
		at := n.finishedAt.Time
		ing.FinishedAt = &at
	}
	if n.deletedAt.Valid {
		at := n.deletedAt.Time
		ing.DeletedAt = &at
	}
}

func scanTarget(ing *Ingestion, n *nullables, field string) any {
	switch field {
	case "id":
		return &ing.ID
	case "documentId":
		return &ing.DocumentID
	case "userId":
		return &ing.UserID
	case "status":
		return &ing.Status
	case "logs":
		return &n.logs
	case "errorMessage":
		return &n.errorMessage
	case "finishedAt":
		return &n.finishedAt
	case "createdAt":
		return &ing.CreatedAt
	case "updatedAt":
		return &ing.UpdatedAt
	case "deletedAt":
		return &n.deletedAt
	default:
		return new(any)
	}
}

// project keeps only the selected fields of ing.
func project(ing Ingestion, fields []string) Ingestion {
	var out Ingestion
	for _, field := range fields {
		switch field {
		case "id":
			out.ID = ing.ID
		case "documentId":
			out.DocumentID = ing.DocumentID
		case "userId":
			out.UserID = ing.UserID
		case "status":
			out.Status = ing.Status
		case "logs":
			out.Logs = ing.Logs
		case "errorMessage":
			out.ErrorMessage = ing.ErrorMessage
		case "finishedAt":
			out.FinishedAt = ing.FinishedAt
		case "createdAt":
			out.CreatedAt = ing.CreatedAt
		case "updatedAt":
			out.UpdatedAt = ing.UpdatedAt
		case "deletedAt":
			out.DeletedAt = ing.DeletedAt
		}
	}
	return out
}

func clone(ing Ingestion) Ingestion {
	if ing.ErrorMessage != nil {
		msg := *ing.ErrorMessage
		ing.ErrorMessage = &msg
	}
	if ing.FinishedAt != nil {
		at := *ing.FinishedAt
		ing.FinishedAt = &at
	}
	if ing.DeletedAt != nil {
		at := *ing.DeletedAt
		ing.DeletedAt = &at
	}
	return ing
}
