// File: internal/infra/notify/log.go
package notify

import (
	"context"

	"github.com/rs/zerolog"

	"photo-enhance-pipeline/internal/domain/model"
	"photo-enhance-pipeline/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.NotificationSink = (*LogSink)(nil)

// LogSink writes events to the structured log. It is the default sink for
// deployments that have not wired a webhook yet.
type LogSink struct {
	log zerolog.Logger
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{log: logger.With().Str("component", "log-sink").Logger()}
}

func (s *LogSink) NotifyJobStatus(_ context.Context, job *model.Job) error {
	s.log.Info().
		Str("job_id", job.ID).
		Str("user_id", job.UserID).
		Str("status", string(job.Status)).
		Str("final_key", job.FinalKey).
		Str("error", job.Error).
		Msg("job status notification")
	return nil
}

func (s *LogSink) NotifyBatchComplete(_ context.Context, batch *model.BatchJob) error {
	s.log.Info().
		Str("batch_id", batch.ID).
		Str("user_id", batch.UserID).
		Int("completed", batch.CompletedCount).
		Int("total", batch.TotalCount).
		Msg("batch complete notification")
	return nil
}
