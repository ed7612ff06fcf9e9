package ingestions

import (
	"strings"
	"time"

	"docflow-backend/internal/shared/query"
)

// Status is the lifecycle state of an ingestion.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// ParseStatus maps user input to a Status.
func ParseStatus(raw string) (Status, bool) {
	switch s := Status(strings.ToLower(strings.TrimSpace(raw))); s {
	case StatusQueued, StatusProcessing, StatusCompleted, StatusFailed:
		return s, true
	default:
		return "", false
	}
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether from -> to is a legal single step.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusQueued:
		return to == StatusProcessing
	case StatusProcessing:
		return to == StatusCompleted || to == StatusFailed
	default:
		return false
	}
}

// Ingestion is one simulated processing run over a document.
type Ingestion struct {
	ID           string
	DocumentID   string
	UserID       string
	Status       Status
	Logs         string
	ErrorMessage *string
	FinishedAt   *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    *time.Time
}

// Deleted reports whether the record is soft-deleted.
func (i Ingestion) Deleted() bool { return i.DeletedAt != nil }

// Transition is a compare-and-set status change. Log is appended to the
// record's log trail.
type Transition struct {
	ID           string
	From         Status
	To           Status
	Log          string
	ErrorMessage *string
	FinishedAt   *time.Time
	At           time.Time
}

// ListFilter narrows an ingestion listing.
type ListFilter struct {
	ID         string
	DocumentID string
	UserID     string
	Statuses   []Status
	HasLogs    *bool
	HasError   *bool
	Scope      query.Scope
	Select     []string
	Page       int
	Limit      int
	SortOrder  query.SortOrder
}

// ListResult is one page of ingestions. Only Fields are populated on Items.
type ListResult struct {
	Items      []Ingestion
	Fields     []string
	TotalCount int
	TotalPages int
	Page       int
	Limit      int
}

// TriggerResult is returned as soon as an ingestion has been queued.
type TriggerResult struct {
	IngestionID string
	DocumentID  string
	Message     string
}

const (
	successThreshold = 0.2
	simulatedFailure = "Simulated ingestion failure"
)

// Outcome is the terminal state chosen for a processing run.
type Outcome struct {
	Status       Status
	Log          string
	ErrorMessage *string
}

// DetermineOutcome turns a draw from [0,1) into a terminal outcome. Draws above
// the threshold complete; the rest fail.
func DetermineOutcome(draw float64, at time.Time) Outcome {
	stamp := at.UTC().Format(time.RFC3339)
	if draw > successThreshold {
		return Outcome{Status: StatusCompleted, Log: "Completed successfully at " + stamp}
	}
	msg := simulatedFailure
	return Outcome{Status: StatusFailed, Log: "Failed at " + stamp, ErrorMessage: &msg}
}

func processingLog(at time.Time) string {
	return "Processing started at " + at.UTC().Format(time.RFC3339)
}

const triggeredLog = "Ingestion triggered"

// appendLog joins a new entry onto an existing trail.
func appendLog(trail, entry string) string {
	if trail == "" {
		return entry
	}
	if entry == "" {
		return trail
	}
	return trail + "\n" + entry
}
