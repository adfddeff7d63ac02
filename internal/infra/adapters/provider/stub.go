package provider

import (
	"context"
	"time"

	"photo-enhance-pipeline/internal/config"
	"photo-enhance-pipeline/internal/domain/ports/adapter"
	"photo-enhance-pipeline/internal/resilience"
)

var (
	_ adapter.AnalysisProvider = (*StubAnalysis)(nil)
	_ adapter.EditingProvider  = (*StubEditor)(nil)
)

const (
	stubDelay       = 50 * time.Millisecond
	stubDescription = "Stub analysis: a centered subject under balanced daylight, straight horizon, mild noise."
)

// StubAnalysis returns a canned description after a fixed delay. It exists
// for local development and tests; no credentials, no network.
type StubAnalysis struct {
	engine *resilience.Engine
}

func NewStubAnalysis(cfg config.ProviderSettings) *StubAnalysis {
	return &StubAnalysis{engine: resilience.NewEngine("stub-analysis", cfg.Resilience)}
}

func (s *StubAnalysis) Name() string { return "stub-analysis" }

func (s *StubAnalysis) Healthy(ctx context.Context) bool { return true }

func (s *StubAnalysis) Analyze(ctx context.Context, req adapter.AnalysisRequest) resilience.Outcome[adapter.AnalysisResult] {
	return resilience.Execute(ctx, s.engine, func(ctx context.Context) (adapter.AnalysisResult, error) {
		select {
		case <-time.After(stubDelay):
		case <-ctx.Done():
			return adapter.AnalysisResult{}, ctx.Err()
		}
		return adapter.AnalysisResult{Description: stubDescription, Model: "stub"}, nil
	})
}

// StubEditor echoes the input image URL as its output, so the pipeline
// exercises the fetch-and-upload path against our own storage.
type StubEditor struct {
	engine *resilience.Engine
}

func NewStubEditor(cfg config.ProviderSettings) *StubEditor {
	return &StubEditor{engine: resilience.NewEngine("stub-editor", cfg.Resilience)}
}

func (s *StubEditor) Name() string { return "stub-editor" }

func (s *StubEditor) Healthy(ctx context.Context) bool { return true }

func (s *StubEditor) Edit(ctx context.Context, req adapter.EditRequest) resilience.Outcome[adapter.EditResult] {
	return resilience.Execute(ctx, s.engine, func(ctx context.Context) (adapter.EditResult, error) {
		select {
		case <-time.After(stubDelay):
		case <-ctx.Done():
			return adapter.EditResult{}, ctx.Err()
		}
		return adapter.EditResult{OutputURL: req.ImageURL, Model: "stub"}, nil
	})
}
