package adapter

import (
	"context"

	"photo-enhance-pipeline/internal/resilience"
)

// AnalysisRequest asks a vision model to describe one image. ImageURL must
// be fetchable by the provider or by us, depending on the adapter.
type AnalysisRequest struct {
	ImageURL string
	Prompt   string
}

type AnalysisResult struct {
	Description string
	Model       string
}

// EditRequest asks an image model to produce an enhanced rendition.
// Analysis is the scene description from the analysis stage and is folded
// into the provider prompt.
type EditRequest struct {
	ImageURL     string
	Analysis     string
	Instructions string
}

// EditResult carries the provider's output reference. An empty OutputURL on
// a successful outcome means the provider produced nothing usable and the
// pipeline falls back to the optimized original.
type EditResult struct {
	OutputURL string
	Model     string
}

// AnalysisProvider is the port for the image understanding stage. Calls
// return a resilience outcome, never a bare error: a provider failure is
// data, not a pipeline abort.
type AnalysisProvider interface {
	Name() string
	Healthy(ctx context.Context) bool
	Analyze(ctx context.Context, req AnalysisRequest) resilience.Outcome[AnalysisResult]
}

// EditingProvider is the port for the image enhancement stage.
type EditingProvider interface {
	Name() string
	Healthy(ctx context.Context) bool
	Edit(ctx context.Context, req EditRequest) resilience.Outcome[EditResult]
}
