package ingestions

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"docflow-backend/internal/access"
	"docflow-backend/internal/documents"
	"docflow-backend/internal/queue"
	"docflow-backend/internal/shared/apperr"
	"docflow-backend/internal/shared/metrics"
	"docflow-backend/internal/shared/query"
	"docflow-backend/internal/shared/telemetry"
)

const (
	msgDocumentNotFound = "Document not found"
	msgTriggered        = "Triggered ingestion successfully. Current status: queued"
	msgDeleteFailed     = "Something went wrong while deleting the ingestion"
)

var failureMessages = map[string]string{
	"trigger": "Error while triggering the ingestion",
	"details": "Failed to fetch ingestion status",
	"delete":  msgDeleteFailed,
	"list":    "Failed to fetch ingestions",
	"resume":  "Failed to resume ingestions",
}

func notFoundMessage(id string) string {
	return fmt.Sprintf("Ingestion with ID %s not found", id)
}

// DeletedMessage is the confirmation returned after a soft delete.
func DeletedMessage(id string) string {
	return fmt.Sprintf("Ingestion with id %s has been deleted successfully", id)
}

// DocumentFinder looks up documents for the trigger path.
type DocumentFinder interface {
	FindBy(ctx context.Context, l documents.Lookup) (*documents.Document, error)
}

// Service contains business logic for ingestions.
type Service struct {
	Repo      Repo
	Documents DocumentFinder
	Scheduler *Scheduler
	Events    queue.Client
	Options   AdvanceOptions
	Now       func() time.Time
}

// NewService constructs a Service. A nil scheduler gets a default one.
func NewService(repo Repo, docs DocumentFinder, scheduler *Scheduler, events queue.Client, opts AdvanceOptions) *Service {
	if scheduler == nil {
		scheduler = NewScheduler(0)
	}
	return &Service{
		Repo:      repo,
		Documents: docs,
		Scheduler: scheduler,
		Events:    events,
		Options:   opts,
		Now:       time.Now,
	}
}

// Trigger queues an ingestion for a document the principal may act on and
// starts its advancement in the background.
func (s *Service) Trigger(ctx context.Context, p access.Principal, documentID string) (TriggerResult, error) {
	var result TriggerResult
	fields := map[string]any{"document_id": documentID, "user_id": p.UserID}
	err := s.run(ctx, "trigger", fields, func() error {
		doc, err := s.Documents.FindBy(ctx, documents.Lookup{ID: documentID})
		if err != nil {
			return err
		}
		if doc == nil {
			return apperr.NotFound(msgDocumentNotFound)
		}
		if err := access.Check(p, doc.UserID); err != nil {
			return err
		}

		now := s.now()
		ing := Ingestion{
			ID:         uuid.NewString(),
			DocumentID: documentID,
			UserID:     p.UserID,
			Status:     StatusQueued,
			Logs:       triggeredLog,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.Repo.Create(ctx, ing); err != nil {
			return err
		}
		fields["ingestion_id"] = ing.ID
		metrics.IncIngestionTriggered()
		telemetry.Info("ingestion.status", telemetry.Fields(ctx, map[string]any{
			"ingestion_id": ing.ID,
			"document_id":  ing.DocumentID,
			"user_id":      ing.UserID,
			"status":       string(StatusQueued),
		}, 0))
		s.scheduleQueued(ctx, ing)

		result = TriggerResult{IngestionID: ing.ID, DocumentID: documentID, Message: msgTriggered}
		return nil
	})
	return result, err
}

// Details returns an active ingestion.
func (s *Service) Details(ctx context.Context, id string) (Ingestion, error) {
	var out Ingestion
	err := s.run(ctx, "details", map[string]any{"ingestion_id": id}, func() error {
		ing, err := s.Repo.FindByID(ctx, id, false)
		if err != nil {
			return err
		}
		if ing == nil {
			return apperr.NotFound(notFoundMessage(id))
		}
		out = *ing
		return nil
	})
	return out, err
}

// SoftDelete marks an active ingestion as deleted. Background work already
// scheduled for it keeps running.
func (s *Service) SoftDelete(ctx context.Context, id string) error {
	return s.run(ctx, "delete", map[string]any{"ingestion_id": id}, func() error {
		rows, err := s.Repo.SoftDelete(ctx, id, s.now())
		if err != nil {
			return apperr.Internal(msgDeleteFailed, err)
		}
		if rows == 0 {
			return apperr.NotFound(fmt.Sprintf("Ingestion with ID %s not found or already deleted", id))
		}
		return nil
	})
}

// List returns one page of ingestions matching f.
func (s *Service) List(ctx context.Context, f ListFilter) (ListResult, error) {
	var out ListResult
	fields := map[string]any{"document_id": f.DocumentID, "user_id": f.UserID, "scope": string(f.Scope)}
	err := s.run(ctx, "list", fields, func() error {
		selected, err := query.Projection(f.Select, AllFields, DefaultFields)
		if err != nil {
			return apperr.Validation(err.Error())
		}
		page := query.NewPage(f.Page, f.Limit)
		if f.Scope == "" {
			f.Scope = query.ScopeActive
		}
		items, total, err := s.Repo.List(ctx, f, selected, page)
		if err != nil {
			return err
		}
		out = ListResult{
			Items:      items,
			Fields:     selected,
			TotalCount: total,
			TotalPages: page.TotalPages(total),
			Page:       page.Page,
			Limit:      page.Limit,
		}
		return nil
	})
	return out, err
}

// ResumePending schedules every active ingestion that has not finished, as
// after a restart. It returns how many were scheduled.
func (s *Service) ResumePending(ctx context.Context) (int, error) {
	scheduled := 0
	fields := map[string]any{}
	err := s.run(ctx, "resume", fields, func() error {
		items, err := s.Repo.ListUnfinished(ctx)
		if err != nil {
			return err
		}
		for _, ing := range items {
			if s.schedule(ctx, ing.ID) {
				scheduled++
			}
		}
		fields["scheduled"] = scheduled
		return nil
	})
	return scheduled, err
}

// Pending lists the jobs in flight.
func (s *Service) Pending() []PendingJob {
	return s.Scheduler.Pending()
}

// Failures lists retained background failures.
func (s *Service) Failures() []Failure {
	return s.Scheduler.Failures()
}

func (s *Service) schedule(ctx context.Context, id string) bool {
	opts := s.Options
	return s.Scheduler.Schedule(ctx, id, func(ctx context.Context) error {
		return s.Advance(ctx, id, opts)
	})
}

// scheduleQueued announces a fresh ingestion from its background job, so the
// trigger request never waits on the events queue.
func (s *Service) scheduleQueued(ctx context.Context, ing Ingestion) bool {
	opts := s.Options
	requestID := telemetry.RequestIDFromContext(ctx)
	return s.Scheduler.Schedule(ctx, ing.ID, func(ctx context.Context) error {
		s.publish(ctx, ing, "", requestID)
		return s.Advance(ctx, ing.ID, opts)
	})
}

// run executes one operation, logs its outcome and translates untyped errors.
func (s *Service) run(ctx context.Context, op string, fields map[string]any, fn func() error) error {
	err := fn()
	logFields := telemetry.Fields(ctx, fields, 1)
	if err == nil {
		telemetry.Info("ingestion."+op, logFields)
		return nil
	}
	msg, ok := failureMessages[op]
	if !ok {
		msg = fmt.Sprintf("Failed to %s ingestion", op)
	}
	err = apperr.Translate(err, msg)
	logFields["error"] = err
	if apperr.KindOf(err) == apperr.KindInternal {
		telemetry.Error("ingestion."+op+".failed", logFields)
	} else {
		telemetry.Warn("ingestion."+op+".failed", logFields)
	}
	return err
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
