//go:build !integration

package sched

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"photo-enhance-pipeline/internal/domain"
	"photo-enhance-pipeline/internal/domain/model"
	"photo-enhance-pipeline/internal/infra/db/memory"
)

func TestExpirySweeperRemovesExpiredRecords(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	fresh, err := model.NewJob(model.NewJobInput{UserID: "u-1"})
	if err != nil {
		t.Fatalf("NewJob failed: %v", err)
	}
	stale, err := model.NewJob(model.NewJobInput{UserID: "u-1"})
	if err != nil {
		t.Fatalf("NewJob failed: %v", err)
	}
	stale.ExpiresAt = time.Now().Add(-time.Minute)
	if err := store.CreateJob(ctx, fresh); err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}
	if err := store.CreateJob(ctx, stale); err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}

	logger := zerolog.Nop()
	sweeper := NewExpirySweeper(10*time.Millisecond, store, &logger)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go sweeper.Run(runCtx)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := store.FindJob(ctx, stale.ID); errors.Is(err, domain.ErrNotFound) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if _, err := store.FindJob(ctx, stale.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected stale job removed, but got %v", err)
	}
	if _, err := store.FindJob(ctx, fresh.ID); err != nil {
		t.Errorf("expected fresh job to survive, but got %v", err)
	}
}
