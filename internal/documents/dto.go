package documents

import (
	"time"

	"github.com/gin-gonic/gin"
)

// DocumentResponse is the outward-facing representation of a document.
type DocumentResponse struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	FileName    string     `json:"fileName"`
	MimeType    string     `json:"mimeType"`
	Size        int64      `json:"size"`
	Version     int        `json:"version"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	DeletedAt   *time.Time `json:"deletedAt,omitempty"`
}

// ListResponse is a page of projected documents.
type ListResponse struct {
	Data       []gin.H `json:"data"`
	TotalCount int     `json:"totalCount"`
	TotalPages int     `json:"totalPages"`
	Page       int     `json:"page"`
	Limit      int     `json:"limit"`
}

// CreateResponse is returned after an upload.
type CreateResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

func toResponse(doc Document) DocumentResponse {
	return DocumentResponse{
		ID:          doc.ID,
		UserID:      doc.UserID,
		Title:       doc.Title,
		Description: doc.Description,
		FileName:    doc.FileName,
		MimeType:    doc.MimeType,
		Size:        doc.SizeBytes,
		Version:     doc.Version,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
		DeletedAt:   doc.DeletedAt,
	}
}

// ToListResponse renders only the selected fields of each item.
func ToListResponse(res ListResult) ListResponse {
	data := make([]gin.H, 0, len(res.Items))
	for _, doc := range res.Items {
		data = append(data, projectJSON(doc, res.Fields))
	}
	return ListResponse{
		Data:       data,
		TotalCount: res.TotalCount,
		TotalPages: res.TotalPages,
		Page:       res.Page,
		Limit:      res.Limit,
	}
}

func projectJSON(doc Document, fields []string) gin.H {
	out := make(gin.H, len(fields))
	for _, field := range fields {
		switch field {
		case "id":
			out[field] = doc.ID
		case "userId":
			out[field] = doc.UserID
		case "title":
			out[field] = doc.Title
		case "description":
			out[field] = doc.Description
		case "fileName":
			out[field] = doc.FileName
		case "filePath":
			out[field] = doc.FilePath
		case "mimeType":
			out[field] = doc.MimeType
		case "size":
			out[field] = doc.SizeBytes
		case "version":
			out[field] = doc.Version
		case "createdAt":
			out[field] = doc.CreatedAt
		case "updatedAt":
			out[field] = doc.UpdatedAt
		case "deletedAt":
			out[field] = doc.DeletedAt
		}
	}
	return out
}
