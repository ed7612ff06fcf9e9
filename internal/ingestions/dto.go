package ingestions

import (
	"time"

	"github.com/gin-gonic/gin"
)

// IngestionResponse is the outward-facing representation of an ingestion.
type IngestionResponse struct {
	ID           string     `json:"id"`
	DocumentID   string     `json:"documentId"`
	UserID       string     `json:"userId"`
	Status       Status     `json:"status"`
	Logs         string     `json:"logs"`
	ErrorMessage *string    `json:"errorMessage"`
	FinishedAt   *time.Time `json:"finishedAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// TriggerResponse is returned once an ingestion has been queued.
type TriggerResponse struct {
	Message     string `json:"message"`
	DocumentID  string `json:"documentId"`
	IngestionID string `json:"ingestionId"`
}

// ListResponse is a page of projected ingestions.
type ListResponse struct {
	Data       []gin.H `json:"data"`
	TotalCount int     `json:"totalCount"`
	TotalPages int     `json:"totalPages"`
	Page       int     `json:"page"`
	Limit      int     `json:"limit"`
}

// PendingResponse lists in-flight jobs and retained background failures.
type PendingResponse struct {
	Pending  []PendingJobResponse `json:"pending"`
	Failures []FailureResponse    `json:"failures"`
}

type PendingJobResponse struct {
	IngestionID string    `json:"ingestionId"`
	ScheduledAt time.Time `json:"scheduledAt"`
}

type FailureResponse struct {
	IngestionID string    `json:"ingestionId"`
	Error       string    `json:"error"`
	At          time.Time `json:"at"`
}

func toResponse(ing Ingestion) IngestionResponse {
	return IngestionResponse{
		ID:           ing.ID,
		DocumentID:   ing.DocumentID,
		UserID:       ing.UserID,
		Status:       ing.Status,
		Logs:         ing.Logs,
		ErrorMessage: ing.ErrorMessage,
		FinishedAt:   ing.FinishedAt,
		CreatedAt:    ing.CreatedAt,
		UpdatedAt:    ing.UpdatedAt,
	}
}

func toListResponse(res ListResult) ListResponse {
	data := make([]gin.H, 0, len(res.Items))
	for _, ing := range res.Items {
		row := make(gin.H, len(res.Fields))
		for _, field := range res.Fields {
			switch field {
			case "id":
				row[field] = ing.ID
			case "documentId":
				row[field] = ing.DocumentID
			case "userId":
				row[field] = ing.UserID
			case "status":
				row[field] = ing.Status
			case "logs":
				row[field] = ing.Logs
			case "errorMessage":
				row[field] = ing.ErrorMessage
			case "finishedAt":
				row[field] = ing.FinishedAt
			case "createdAt":
				row[field] = ing.CreatedAt
			case "updatedAt":
				row[field] = ing.UpdatedAt
			case "deletedAt":
				row[field] = ing.DeletedAt
			}
		}
		data = append(data, row)
	}
	return ListResponse{
		Data:       data,
		TotalCount: res.TotalCount,
		TotalPages: res.TotalPages,
		Page:       res.Page,
		Limit:      res.Limit,
	}
}

func toPendingResponse(pending []PendingJob, failures []Failure) PendingResponse {
	out := PendingResponse{
		Pending:  make([]PendingJobResponse, 0, len(pending)),
		Failures: make([]FailureResponse, 0, len(failures)),
	}
	for _, p := range pending {
		out.Pending = append(out.Pending, PendingJobResponse{IngestionID: p.IngestionID, ScheduledAt: p.ScheduledAt})
	}
	for _, f := range failures {
		out.Failures = append(out.Failures, FailureResponse{IngestionID: f.IngestionID, Error: f.Error, At: f.At})
	}
	return out
}
