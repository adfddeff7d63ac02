// File: internal/infra/worker/consumer.go
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"photo-enhance-pipeline/internal/domain/model"
	"photo-enhance-pipeline/internal/infra/metrics"
	"photo-enhance-pipeline/internal/infra/queue"
	"photo-enhance-pipeline/internal/usecase"
)

// EventSource is the slice of the queue the consumer needs. Enqueue is used
// to fan a batch event out into per-object job events.
type EventSource interface {
	Enqueue(ctx context.Context, event *queue.UploadEvent) error
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.UploadEvent, bool, error)
	Depth(ctx context.Context) (int64, error)
}

// Consumer pulls upload events off the queue and hands each one to the
// worker pool. Submit blocks when every worker is busy, so the queue itself
// carries the backlog.
type Consumer struct {
	source      EventSource
	jobs        usecase.JobService
	orch        *usecase.Orchestrator
	pool        *Pool
	pollTimeout time.Duration
	log         zerolog.Logger
}

func NewConsumer(
	source EventSource,
	jobs usecase.JobService,
	orch *usecase.Orchestrator,
	pool *Pool,
	pollTimeout time.Duration,
	logger zerolog.Logger,
) *Consumer {
	if pollTimeout <= 0 {
		pollTimeout = 5 * time.Second
	}
	return &Consumer{
		source:      source,
		jobs:        jobs,
		orch:        orch,
		pool:        pool,
		pollTimeout: pollTimeout,
		log:         logger.With().Str("component", "consumer").Logger(),
	}
}

// Run pulls events until the context is canceled.
func (c *Consumer) Run(ctx context.Context) {
	c.log.Info().Msg("consumer started")
	for {
		select {
		case <-ctx.Done():
			c.log.Info().Msg("consumer stopping")
			return
		default:
		}

		event, ok, err := c.source.Dequeue(ctx, c.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Error().Err(err).Msg("dequeue failed")
			metrics.IncEvent("error")
			time.Sleep(time.Second)
			continue
		}
		if depth, derr := c.source.Depth(ctx); derr == nil {
			metrics.SetQueueDepth(depth)
		}
		if !ok {
			continue
		}
		metrics.IncEvent(event.Kind)

		ev := event
		err = c.pool.Submit(ctx, func(ctx context.Context) error {
			return c.handle(ctx, ev)
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Error().Err(err).Str("kind", ev.Kind).Msg("event not submitted")
		}
	}
}

// handle dispatches one event. Errors bubble to the pool, which logs them;
// job-level failures are already persisted by the orchestrator.
func (c *Consumer) handle(ctx context.Context, event *queue.UploadEvent) error {
	switch event.Kind {
	case queue.KindJob:
		job, err := c.jobs.GetJob(ctx, event.JobID)
		if err != nil {
			return fmt.Errorf("load job %s: %w", event.JobID, err)
		}
		return c.orch.Process(ctx, job, event.ObjectKey)

	case queue.KindSubmit:
		job, err := c.jobs.CreateJob(ctx, model.NewJobInput{
			UserID: event.UserID,
			Prompt: event.Prompt,
			Locale: event.Locale,
		})
		if err != nil {
			return fmt.Errorf("create job: %w", err)
		}
		return c.orch.Process(ctx, job, event.ObjectKey)

	case queue.KindBatch:
		return c.handleBatch(ctx, event)

	default:
		return fmt.Errorf("unknown event kind %q", event.Kind)
	}
}

// handleBatch persists the batch with its children, then fans one job event
// per object back onto the queue so any worker can pick them up.
func (c *Consumer) handleBatch(ctx context.Context, event *queue.UploadEvent) error {
	batch, children, err := c.jobs.CreateBatch(ctx, model.NewBatchInput{
		UserID:            event.UserID,
		FileCount:         len(event.ObjectKeys),
		SharedPrompt:      event.SharedPrompt,
		IndividualPrompts: event.Prompts,
	})
	if err != nil {
		return fmt.Errorf("create batch: %w", err)
	}
	for i, child := range children {
		childEvent := &queue.UploadEvent{
			Kind:      queue.KindJob,
			JobID:     child.ID,
			ObjectKey: event.ObjectKeys[i],
		}
		if err := c.source.Enqueue(ctx, childEvent); err != nil {
			return fmt.Errorf("fan out job %s of batch %s: %w", child.ID, batch.ID, err)
		}
	}
	c.log.Info().Str("batch_id", batch.ID).Int("jobs", len(children)).Msg("batch fanned out")
	return nil
}
