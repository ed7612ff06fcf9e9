package ingestions

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"docflow-backend/internal/queue"
	"docflow-backend/internal/shared/apperr"
	"docflow-backend/internal/shared/metrics"
	"docflow-backend/internal/shared/telemetry"
)

const (
	DefaultQueuedDelay     = 2 * time.Second
	DefaultProcessingDelay = 3 * time.Second
)

// AdvanceOptions controls the timing and randomness of a processing run.
type AdvanceOptions struct {
	Sleep           func(ctx context.Context, d time.Duration) error
	Rand            func() float64
	Now             func() time.Time
	QueuedDelay     time.Duration
	ProcessingDelay time.Duration
}

func (o AdvanceOptions) withDefaults() AdvanceOptions {
	if o.Sleep == nil {
		o.Sleep = sleep
	}
	if o.Rand == nil {
		o.Rand = rand.Float64
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.QueuedDelay <= 0 {
		o.QueuedDelay = DefaultQueuedDelay
	}
	if o.ProcessingDelay <= 0 {
		o.ProcessingDelay = DefaultProcessingDelay
	}
	return o
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Advance drives one ingestion from its stored state to a terminal state. A
// record already past a step resumes from where it is; a terminal record is
// left alone. Soft-deleted records are still advanced.
func (s *Service) Advance(ctx context.Context, id string, opts AdvanceOptions) error {
	opts = opts.withDefaults()

	ing, err := s.Repo.FindByID(ctx, id, true)
	if err != nil {
		return fmt.Errorf("ingestion lookup: %w", err)
	}
	if ing == nil {
		return apperr.NotFound(notFoundMessage(id))
	}

	if ing.Status == StatusQueued {
		if err := opts.Sleep(ctx, opts.QueuedDelay); err != nil {
			return err
		}
		at := opts.Now().UTC()
		err := s.transition(ctx, ing, Transition{
			ID:   id,
			From: StatusQueued,
			To:   StatusProcessing,
			Log:  processingLog(at),
			At:   at,
		})
		if err != nil {
			return err
		}
	}

	if ing.Status == StatusProcessing {
		if err := opts.Sleep(ctx, opts.ProcessingDelay); err != nil {
			return err
		}
		at := opts.Now().UTC()
		outcome := DetermineOutcome(opts.Rand(), at)
		err := s.transition(ctx, ing, Transition{
			ID:           id,
			From:         StatusProcessing,
			To:           outcome.Status,
			Log:          outcome.Log,
			ErrorMessage: outcome.ErrorMessage,
			FinishedAt:   &at,
			At:           at,
		})
		if err != nil {
			return err
		}
		if outcome.Status == StatusCompleted {
			metrics.IncIngestionCompleted()
		} else {
			metrics.IncIngestionFailed()
		}
		metrics.ObserveIngestionDurationMs(float64(at.Sub(ing.CreatedAt).Microseconds()) / 1000.0)
	}
	return nil
}

// transition persists t, then reports it through telemetry and the events
// queue. ing is updated in place on success.
func (s *Service) transition(ctx context.Context, ing *Ingestion, t Transition) error {
	if !CanTransition(t.From, t.To) {
		return fmt.Errorf("illegal transition %s->%s", t.From, t.To)
	}
	rows, err := s.Repo.Transition(ctx, t)
	if err != nil {
		return fmt.Errorf("set %s failed: %w", t.To, err)
	}
	if rows == 0 {
		return apperr.Conflict(fmt.Sprintf("ingestion %s is no longer %s", t.ID, t.From))
	}
	ing.Status = t.To
	ing.Logs = appendLog(ing.Logs, t.Log)
	ing.ErrorMessage = t.ErrorMessage
	ing.FinishedAt = t.FinishedAt
	ing.UpdatedAt = t.At

	requestID := telemetry.RequestIDFromContext(ctx)
	telemetry.Info("ingestion.status", map[string]any{
		"request_id":        requestID,
		"ingestion_id":      ing.ID,
		"document_id":       ing.DocumentID,
		"user_id":           ing.UserID,
		"status":            string(t.To),
		"status_transition": string(t.From) + "->" + string(t.To),
	})
	s.publish(ctx, *ing, t.From, requestID)
	return nil
}

// publish sends a status event. Delivery failures are logged only.
func (s *Service) publish(ctx context.Context, ing Ingestion, from Status, requestID string) {
	if s.Events == nil {
		return
	}
	msg := queue.Message{
		IngestionID:    ing.ID,
		DocumentID:     ing.DocumentID,
		UserID:         ing.UserID,
		Status:         string(ing.Status),
		PreviousStatus: string(from),
		RequestID:      requestID,
		OccurredAt:     ing.UpdatedAt.UTC().Format(time.RFC3339Nano),
		Version:        queue.MessageVersion,
	}
	if ing.ErrorMessage != nil {
		msg.ErrorMessage = *ing.ErrorMessage
	}
	if err := s.Events.Send(ctx, msg); err != nil {
		telemetry.Warn("ingestion.event_publish_failed", map[string]any{
			"request_id":   requestID,
			"ingestion_id": ing.ID,
			"status":       string(ing.Status),
			"error":        err,
		})
	}
}
