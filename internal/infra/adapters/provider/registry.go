package provider

import (
	"context"
	"fmt"

	"photo-enhance-pipeline/internal/config"
	"photo-enhance-pipeline/internal/domain"
	"photo-enhance-pipeline/internal/domain/ports/adapter"

	"github.com/rs/zerolog"
)

// Registry holds the configured provider per pipeline stage. Stages are
// resolved once at startup from config; an unknown kind fails boot rather
// than the first job.
type Registry struct {
	analysis adapter.AnalysisProvider
	editing  adapter.EditingProvider
}

func NewRegistry(ctx context.Context, cfg config.ProvidersConfig, fetcher adapter.Fetcher, logger *zerolog.Logger) (*Registry, error) {
	r := &Registry{}

	switch cfg.Analysis.Kind {
	case "gemini":
		a, err := NewGeminiAnalysis(ctx, cfg.Analysis, fetcher, logger)
		if err != nil {
			return nil, fmt.Errorf("analysis provider: %w", err)
		}
		r.analysis = a
	case "openai":
		a, err := NewOpenAICompatAnalysis(cfg.Analysis, logger)
		if err != nil {
			return nil, fmt.Errorf("analysis provider: %w", err)
		}
		r.analysis = a
	case "stub":
		r.analysis = NewStubAnalysis(cfg.Analysis)
	default:
		return nil, fmt.Errorf("unknown analysis provider kind %q", cfg.Analysis.Kind)
	}

	switch cfg.Editing.Kind {
	case "seedream":
		e, err := NewSeedreamEditor(cfg.Editing, logger)
		if err != nil {
			return nil, fmt.Errorf("editing provider: %w", err)
		}
		r.editing = e
	case "stub":
		r.editing = NewStubEditor(cfg.Editing)
	default:
		return nil, fmt.Errorf("unknown editing provider kind %q", cfg.Editing.Kind)
	}

	logger.Info().
		Str("analysis", r.analysis.Name()).
		Str("editing", r.editing.Name()).
		Msg("providers registered")
	return r, nil
}

func (r *Registry) Analysis() (adapter.AnalysisProvider, error) {
	if r == nil || r.analysis == nil {
		return nil, fmt.Errorf("analysis: %w", domain.ErrNotRegistered)
	}
	return r.analysis, nil
}

func (r *Registry) Editing() (adapter.EditingProvider, error) {
	if r == nil || r.editing == nil {
		return nil, fmt.Errorf("editing: %w", domain.ErrNotRegistered)
	}
	return r.editing, nil
}

// Health probes every registered provider; used by the ops endpoint.
func (r *Registry) Health(ctx context.Context) map[string]bool {
	out := make(map[string]bool, 2)
	if r.analysis != nil {
		out[r.analysis.Name()] = r.analysis.Healthy(ctx)
	}
	if r.editing != nil {
		out[r.editing.Name()] = r.editing.Healthy(ctx)
	}
	return out
}
