package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/genai"

	"photo-enhance-pipeline/internal/config"
	"photo-enhance-pipeline/internal/domain"
	"photo-enhance-pipeline/internal/domain/ports/adapter"
	"photo-enhance-pipeline/internal/resilience"

	"github.com/rs/zerolog"
)

var _ adapter.AnalysisProvider = (*GeminiAnalysis)(nil)

// analysisMaxTokens caps the scene description; providers ramble otherwise.
const analysisMaxTokens = 512

// GeminiAnalysis describes images with the Gemini API through the official
// SDK. The image is fetched locally and sent inline, so presigned URLs never
// leave our infrastructure.
type GeminiAnalysis struct {
	client   *genai.Client
	model    string
	disabled bool
	engine   *resilience.Engine
	fetcher  adapter.Fetcher
	log      *zerolog.Logger
}

func NewGeminiAnalysis(ctx context.Context, cfg config.ProviderSettings, fetcher adapter.Fetcher, logger *zerolog.Logger) (*GeminiAnalysis, error) {
	if cfg.APIKey == "" && !cfg.Disabled {
		return nil, errors.New("gemini: empty api key")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: cfg.BaseURL,
		},
	})
	if err != nil {
		return nil, err
	}
	l := logger.With().Str("component", "gemini_analysis").Logger()
	return &GeminiAnalysis{
		client:   c,
		model:    cfg.Model,
		disabled: cfg.Disabled,
		engine:   resilience.NewEngine("gemini", cfg.Resilience),
		fetcher:  fetcher,
		log:      &l,
	}, nil
}

func (g *GeminiAnalysis) Name() string { return "gemini" }

// Healthy asks for the configured model's metadata; a quick round trip
// proves both reachability and credentials.
func (g *GeminiAnalysis) Healthy(ctx context.Context) bool {
	if g.disabled {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := g.client.Models.Get(ctx, g.model, nil)
	return err == nil
}

func (g *GeminiAnalysis) Analyze(ctx context.Context, req adapter.AnalysisRequest) resilience.Outcome[adapter.AnalysisResult] {
	if g.disabled {
		return resilience.Reject[adapter.AnalysisResult](g.Name(), domain.ErrProviderDisabled, g.engine.State())
	}

	// Fetch once; only the provider call itself is retried.
	data, err := g.fetcher.Fetch(ctx, req.ImageURL)
	if err != nil {
		return resilience.Reject[adapter.AnalysisResult](g.Name(), fmt.Errorf("fetch source image: %w", err), g.engine.State())
	}
	mime := http.DetectContentType(data)

	return resilience.Execute(ctx, g.engine, func(ctx context.Context) (adapter.AnalysisResult, error) {
		contents := []*genai.Content{{
			Role: genai.RoleUser,
			Parts: []*genai.Part{
				{InlineData: &genai.Blob{MIMEType: mime, Data: data}},
				{Text: req.Prompt},
			},
		}}
		resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
			MaxOutputTokens: analysisMaxTokens,
		})
		if err != nil {
			return adapter.AnalysisResult{}, err
		}

		text := ""
		if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil && len(resp.Candidates[0].Content.Parts) > 0 {
			text = resp.Candidates[0].Content.Parts[0].Text
		}
		if text == "" {
			return adapter.AnalysisResult{}, errors.New("gemini: response missing analysis text")
		}
		return adapter.AnalysisResult{Description: text, Model: g.model}, nil
	})
}
