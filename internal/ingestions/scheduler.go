package ingestions

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"docflow-backend/internal/shared/metrics"
	"docflow-backend/internal/shared/telemetry"
)

const defaultFailureCapacity = 100

// Job is background work for one ingestion.
type Job func(ctx context.Context) error

// PendingJob describes scheduled work that has not finished yet.
type PendingJob struct {
	IngestionID string
	ScheduledAt time.Time
}

// Failure is a dead-letter entry for background work that returned an error.
type Failure struct {
	IngestionID string
	Error       string
	At          time.Time
}

// Scheduler runs ingestion jobs on their own goroutines, detached from the
// request that scheduled them, and keeps track of what is still in flight.
type Scheduler struct {
	mu       sync.Mutex
	wg       sync.WaitGroup
	pending  map[string]PendingJob
	failures []Failure
	capacity int
	closed   bool
	now      func() time.Time
}

// NewScheduler constructs a Scheduler that retains up to failureCapacity
// dead-letter entries.
func NewScheduler(failureCapacity int) *Scheduler {
	if failureCapacity <= 0 {
		failureCapacity = defaultFailureCapacity
	}
	return &Scheduler{
		pending:  make(map[string]PendingJob),
		capacity: failureCapacity,
		now:      time.Now,
	}
}

// Schedule starts job for ingestionID. It reports false when the scheduler is
// shut down or the ingestion already has a job in flight. Cancelling ctx does
// not stop the job; its values are kept for logging.
func (s *Scheduler) Schedule(ctx context.Context, ingestionID string, job Job) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	if _, busy := s.pending[ingestionID]; busy {
		s.mu.Unlock()
		return false
	}
	s.pending[ingestionID] = PendingJob{IngestionID: ingestionID, ScheduledAt: s.now().UTC()}
	s.wg.Add(1)
	s.mu.Unlock()

	metrics.AddIngestionPending(1)
	go s.run(context.WithoutCancel(ctx), ingestionID, job)
	return true
}

func (s *Scheduler) run(ctx context.Context, ingestionID string, job Job) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.pending, ingestionID)
		s.mu.Unlock()
		metrics.AddIngestionPending(-1)
	}()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return job(ctx)
	}()
	if err != nil {
		s.RecordFailure(ctx, ingestionID, err)
	}
}

// RecordFailure logs a background failure and keeps it as a dead-letter entry.
func (s *Scheduler) RecordFailure(ctx context.Context, ingestionID string, err error) {
	metrics.IncIngestionBackgroundError()
	telemetry.Error("ingestion.background.failed", map[string]any{
		"request_id":   telemetry.RequestIDFromContext(ctx),
		"ingestion_id": ingestionID,
		"error":        err,
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, Failure{IngestionID: ingestionID, Error: err.Error(), At: s.now().UTC()})
	if over := len(s.failures) - s.capacity; over > 0 {
		s.failures = append([]Failure(nil), s.failures[over:]...)
	}
}

// Pending returns the jobs in flight, oldest first.
func (s *Scheduler) Pending() []PendingJob {
	s.mu.Lock()
	out := make([]PendingJob, 0, len(s.pending))
	for _, job := range s.pending {
		out = append(out, job)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].ScheduledAt.Equal(out[j].ScheduledAt) {
			return out[i].IngestionID < out[j].IngestionID
		}
		return out[i].ScheduledAt.Before(out[j].ScheduledAt)
	})
	return out
}

// Failures returns a copy of the retained dead-letter entries.
func (s *Scheduler) Failures() []Failure {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Failure(nil), s.failures...)
}

// Wait blocks until every scheduled job has returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Shutdown stops accepting jobs and waits for in-flight ones until ctx is done.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	inFlight := len(s.pending)
	s.mu.Unlock()

	telemetry.Info("ingestion.scheduler.shutdown", map[string]any{"pending": inFlight})

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler shutdown: %d jobs still running: %w", len(s.Pending()), ctx.Err())
	}
}
