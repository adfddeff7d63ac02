package usecase

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"time"

	"photo-enhance-pipeline/internal/domain/model"
	"photo-enhance-pipeline/internal/domain/ports/adapter"
	"photo-enhance-pipeline/internal/infra/metrics"

	"github.com/rs/zerolog"
)

const (
	// defaultAnalysisPrompt is used when the job carries no user prompt.
	defaultAnalysisPrompt = "Describe the key subjects, lighting, and composition of this photo."
	// defaultAnalysis stands in for the scene description when the analysis
	// provider is down; editing proceeds on generic guidance.
	defaultAnalysis = "A user photo suitable for general enhancement."
	// defaultEditInstructions is the enhancement brief sent with every edit.
	defaultEditInstructions = "Enhance the photo: correct exposure and color balance, reduce noise, and keep the subject natural."
)

// Orchestrator drives one job through the pipeline: optimize, analyze, edit,
// publish, notify, then advance the batch. Provider failures degrade the
// result instead of failing the job; only blob storage or persistence errors
// are fatal. Transient objects are removed no matter which branch ran.
type Orchestrator struct {
	jobs        JobService
	analysis    adapter.AnalysisProvider
	editing     adapter.EditingProvider
	blob        adapter.BlobStore
	keys        adapter.KeyStrategy
	fetcher     adapter.Fetcher
	notifier    adapter.NotificationSink
	tempBucket  string
	finalBucket string
	log         *zerolog.Logger
}

func NewOrchestrator(
	jobs JobService,
	analysis adapter.AnalysisProvider,
	editing adapter.EditingProvider,
	blob adapter.BlobStore,
	keys adapter.KeyStrategy,
	fetcher adapter.Fetcher,
	notifier adapter.NotificationSink,
	tempBucket, finalBucket string,
	logger *zerolog.Logger,
) *Orchestrator {
	l := logger.With().Str("component", "orchestrator").Logger()
	return &Orchestrator{
		jobs:        jobs,
		analysis:    analysis,
		editing:     editing,
		blob:        blob,
		keys:        keys,
		fetcher:     fetcher,
		notifier:    notifier,
		tempBucket:  tempBucket,
		finalBucket: finalBucket,
		log:         &l,
	}
}

// Process runs the pipeline for one queued job whose upload sits at
// uploadedKey in the temp bucket. It returns the error that failed the job,
// or nil once the job is completed.
func (o *Orchestrator) Process(ctx context.Context, job *model.Job, uploadedKey string) error {
	started := time.Now()
	log := o.log.With().Str("job_id", job.ID).Str("user_id", job.UserID).Logger()

	job, err := o.jobs.MarkProcessing(ctx, job.ID, uploadedKey)
	if err != nil {
		// Nothing was claimed, so nothing to clean up or fail.
		return fmt.Errorf("mark processing: %w", err)
	}

	fileName := path.Base(uploadedKey)
	optimizedKey := o.keys.OptimizedKey(job.UserID, job.ID, fileName)
	defer o.removeTransient(ctx, &log, uploadedKey, optimizedKey)

	// Finishing steps run on a context that survives worker drain, so every
	// claimed job still reaches a terminal status; pipeline steps stay
	// cancellable.
	finishCtx := context.WithoutCancel(ctx)

	fail := func(cause error) error {
		log.Error().Err(cause).Msg("job failed")
		if _, ferr := o.jobs.MarkFailed(finishCtx, job.ID, cause.Error()); ferr != nil {
			log.Error().Err(ferr).Msg("mark failed did not land")
		}
		metrics.IncJob(string(model.JobStatusFailed))
		metrics.ObservePipeline(time.Since(started))
		o.advanceBatch(finishCtx, &log, job)
		return cause
	}

	if err := o.blob.OptimizeAndStore(ctx, o.tempBucket, uploadedKey, o.tempBucket, optimizedKey); err != nil {
		return fail(fmt.Errorf("optimize upload: %w", err))
	}

	imageURL, err := o.blob.PresignedDownloadURL(ctx, o.tempBucket, optimizedKey)
	if err != nil {
		return fail(fmt.Errorf("presign optimized object: %w", err))
	}

	analysisText := o.analyze(ctx, &log, job, imageURL)

	if _, err := o.jobs.MarkEditing(ctx, job.ID); err != nil {
		return fail(fmt.Errorf("mark editing: %w", err))
	}

	finalKey := o.keys.FinalKey(job.UserID, job.ID, fileName)
	if err := o.publish(ctx, &log, imageURL, analysisText, optimizedKey, finalKey); err != nil {
		return fail(err)
	}

	completed, err := o.jobs.MarkCompleted(finishCtx, job.ID, finalKey)
	if err != nil {
		return fail(fmt.Errorf("mark completed: %w", err))
	}
	metrics.IncJob(string(model.JobStatusCompleted))
	metrics.ObservePipeline(time.Since(started))

	if err := o.notifier.NotifyJobStatus(finishCtx, completed); err != nil {
		log.Warn().Err(err).Msg("job notification failed")
		metrics.IncNotification("job", false)
	} else {
		metrics.IncNotification("job", true)
	}

	o.advanceBatch(finishCtx, &log, completed)
	log.Info().Str("final_key", finalKey).Dur("took", time.Since(started)).Msg("job completed")
	return nil
}

// analyze runs the analysis provider and falls back to a generic description
// when the provider fails or returns nothing.
func (o *Orchestrator) analyze(ctx context.Context, log *zerolog.Logger, job *model.Job, imageURL string) string {
	prompt := job.Prompt
	if prompt == "" {
		prompt = defaultAnalysisPrompt
	}
	out := o.analysis.Analyze(ctx, adapter.AnalysisRequest{ImageURL: imageURL, Prompt: prompt})
	metrics.ObserveProviderCall("analysis", out.Provider, out.Success, out.DurationMs, out.Resilience.RetryAttempts)
	metrics.SetBreakerState(out.Provider, string(out.Resilience.CircuitBreakerState))
	if !out.Success || out.Payload.Description == "" {
		log.Warn().
			Str("provider", out.Provider).
			Str("error", out.ErrorMessage).
			Int("retries", out.Resilience.RetryAttempts).
			Msg("analysis unavailable, using default description")
		return defaultAnalysis
	}
	return out.Payload.Description
}

// publish produces the final object: the edited rendition when the provider
// delivered one, otherwise a copy of the optimized original.
func (o *Orchestrator) publish(ctx context.Context, log *zerolog.Logger, imageURL, analysisText, optimizedKey, finalKey string) error {
	out := o.editing.Edit(ctx, adapter.EditRequest{
		ImageURL:     imageURL,
		Analysis:     analysisText,
		Instructions: defaultEditInstructions,
	})
	metrics.ObserveProviderCall("editing", out.Provider, out.Success, out.DurationMs, out.Resilience.RetryAttempts)
	metrics.SetBreakerState(out.Provider, string(out.Resilience.CircuitBreakerState))

	if out.Success && out.Payload.OutputURL != "" {
		data, err := o.fetcher.Fetch(ctx, out.Payload.OutputURL)
		if err == nil {
			if perr := o.blob.Put(ctx, o.finalBucket, finalKey, data, http.DetectContentType(data)); perr != nil {
				return fmt.Errorf("upload edited image: %w", perr)
			}
			return nil
		}
		log.Warn().Err(err).Str("provider", out.Provider).Msg("could not fetch edited image, keeping original")
	} else {
		log.Warn().
			Str("provider", out.Provider).
			Str("error", out.ErrorMessage).
			Bool("success", out.Success).
			Msg("no usable edit, keeping original")
	}

	metrics.IncFallback()
	if err := o.blob.Copy(ctx, o.tempBucket, optimizedKey, o.finalBucket, finalKey); err != nil {
		return fmt.Errorf("copy optimized original: %w", err)
	}
	return nil
}

// advanceBatch bumps the parent batch counter once this job is terminal. The
// compare-and-swap inside IncrementBatchProgress guarantees exactly one
// caller observes the transition to completed, so the batch notification
// fires once.
func (o *Orchestrator) advanceBatch(ctx context.Context, log *zerolog.Logger, job *model.Job) {
	if job.BatchID == "" {
		return
	}
	batch, err := o.jobs.IncrementBatchProgress(ctx, job.BatchID)
	if err != nil {
		log.Error().Err(err).Str("batch_id", job.BatchID).Msg("batch progress not recorded")
		return
	}
	if batch.Status == model.JobStatusCompleted {
		metrics.IncBatchCompleted()
		if err := o.notifier.NotifyBatchComplete(ctx, batch); err != nil {
			log.Warn().Err(err).Str("batch_id", batch.ID).Msg("batch notification failed")
			metrics.IncNotification("batch", false)
		} else {
			metrics.IncNotification("batch", true)
		}
	}
}

// removeTransient deletes the working objects. It runs on every exit path
// and survives a cancelled job context.
func (o *Orchestrator) removeTransient(ctx context.Context, log *zerolog.Logger, uploadedKey, optimizedKey string) {
	ctx = context.WithoutCancel(ctx)
	for _, key := range []string{uploadedKey, optimizedKey} {
		if err := o.blob.Delete(ctx, o.tempBucket, key); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("transient object not deleted")
		}
	}
}
