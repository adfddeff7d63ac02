// File: internal/infra/notify/webhook.go
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"photo-enhance-pipeline/internal/domain/model"
	"photo-enhance-pipeline/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.NotificationSink = (*WebhookSink)(nil)

const (
	eventJobStatus     = "job.status"
	eventBatchComplete = "batch.completed"
)

// webhookEvent is the wire shape delivered to the configured endpoint. The
// EventID lets receivers deduplicate redelivered events.
type webhookEvent struct {
	EventID string `json:"event_id"`
	Kind    string `json:"kind"`
	SentAt  string `json:"sent_at"`

	JobID          string `json:"job_id,omitempty"`
	BatchID        string `json:"batch_id,omitempty"`
	UserID         string `json:"user_id"`
	Status         string `json:"status"`
	Locale         string `json:"locale,omitempty"`
	FinalKey       string `json:"final_key,omitempty"`
	Error          string `json:"error,omitempty"`
	CompletedCount int    `json:"completed_count,omitempty"`
	TotalCount     int    `json:"total_count,omitempty"`
}

// WebhookSink POSTs pipeline events to a single downstream endpoint.
type WebhookSink struct {
	url    string
	token  string
	client *http.Client
	log    zerolog.Logger
}

func NewWebhookSink(url, token string, timeout time.Duration, logger zerolog.Logger) (*WebhookSink, error) {
	if url == "" {
		return nil, errors.New("webhook: empty url")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookSink{
		url:    url,
		token:  token,
		client: &http.Client{Timeout: timeout},
		log:    logger.With().Str("component", "webhook-sink").Logger(),
	}, nil
}

func (w *WebhookSink) NotifyJobStatus(ctx context.Context, job *model.Job) error {
	return w.send(ctx, webhookEvent{
		EventID:  uuid.NewString(),
		Kind:     eventJobStatus,
		SentAt:   time.Now().UTC().Format(time.RFC3339),
		JobID:    job.ID,
		BatchID:  job.BatchID,
		UserID:   job.UserID,
		Status:   string(job.Status),
		Locale:   job.Locale,
		FinalKey: job.FinalKey,
		Error:    job.Error,
	})
}

func (w *WebhookSink) NotifyBatchComplete(ctx context.Context, batch *model.BatchJob) error {
	return w.send(ctx, webhookEvent{
		EventID:        uuid.NewString(),
		Kind:           eventBatchComplete,
		SentAt:         time.Now().UTC().Format(time.RFC3339),
		BatchID:        batch.ID,
		UserID:         batch.UserID,
		Status:         string(batch.Status),
		CompletedCount: batch.CompletedCount,
		TotalCount:     batch.TotalCount,
	})
}

func (w *WebhookSink) send(ctx context.Context, event webhookEvent) error {
	b, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if w.token != "" {
		req.Header.Set("Authorization", "Bearer "+w.token)
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver %s: %w", event.Kind, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("deliver %s: status %d", event.Kind, resp.StatusCode)
	}
	w.log.Debug().Str("kind", event.Kind).Str("event_id", event.EventID).Msg("event delivered")
	return nil
}
