package adapter

import (
	"context"

	"photo-enhance-pipeline/internal/domain/model"
)

// NotificationSink receives terminal pipeline events. Delivery failures are
// logged by callers, never propagated: a lost notification must not fail a
// finished job.
type NotificationSink interface {
	NotifyJobStatus(ctx context.Context, job *model.Job) error
	NotifyBatchComplete(ctx context.Context, batch *model.BatchJob) error
}
