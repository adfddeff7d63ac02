// File: internal/infra/notify/noop.go
package notify

import (
	"context"
	"sync"

	"photo-enhance-pipeline/internal/domain/model"
	"photo-enhance-pipeline/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.NotificationSink = (*NoopSink)(nil)

// NoopSink records events in memory. Used in tests to assert delivery counts.
type NoopSink struct {
	mu      sync.Mutex
	jobs    []*model.Job
	batches []*model.BatchJob
}

func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (s *NoopSink) NotifyJobStatus(_ context.Context, job *model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job)
	return nil
}

func (s *NoopSink) NotifyBatchComplete(_ context.Context, batch *model.BatchJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, batch)
	return nil
}

// JobEvents returns a snapshot of the delivered job notifications.
func (s *NoopSink) JobEvents() []*model.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*model.Job(nil), s.jobs...)
}

// BatchEvents returns a snapshot of the delivered batch notifications.
func (s *NoopSink) BatchEvents() []*model.BatchJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*model.BatchJob(nil), s.batches...)
}
