// File: internal/infra/sched/expiry_sweeper.go
package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"photo-enhance-pipeline/internal/domain/model"
	"photo-enhance-pipeline/internal/domain/ports/repository"
	"photo-enhance-pipeline/internal/infra/metrics"
)

// ExpirySweeper periodically removes jobs and batches whose retention window
// has passed. Cutoff is now: rows carry their own expires_at stamped at
// creation, so the sweeper needs no knowledge of the TTL itself.
type ExpirySweeper struct {
	interval time.Duration
	store    repository.ExpiredDeleter
	log      *zerolog.Logger
}

func NewExpirySweeper(interval time.Duration, store repository.ExpiredDeleter, logger *zerolog.Logger) *ExpirySweeper {
	sweepLog := logger.With().Str("component", "ExpirySweeper").Logger()
	if interval <= 0 {
		interval = time.Hour
	}
	return &ExpirySweeper{
		interval: interval,
		store:    store,
		log:      &sweepLog,
	}
}

func (w *ExpirySweeper) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Dur("retention", model.JobTTL).Msg("Starting expiry sweeper")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping expiry sweeper")
			return ctx.Err()
		case <-ticker.C:
			n, err := w.store.DeleteExpired(ctx, time.Now())
			if err != nil {
				w.log.Error().Err(err).Msg("expiry sweep error")
				continue
			}
			if n > 0 {
				metrics.AddExpired(n)
				w.log.Info().Int64("count", n).Msg("expired records removed")
			}
		}
	}
}
