package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"photo-enhance-pipeline/internal/config"
	"photo-enhance-pipeline/internal/domain"
	"photo-enhance-pipeline/internal/domain/ports/adapter"
	"photo-enhance-pipeline/internal/resilience"

	"github.com/rs/zerolog"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.AnalysisProvider = (*OpenAICompatAnalysis)(nil)

// OpenAICompatAnalysis talks to any OpenAI-compatible vision endpoint.
// Chat completions path is the same as OpenAI: /chat/completions
// Authorization: Bearer <API_KEY>
type OpenAICompatAnalysis struct {
	apiKey   string
	base     string
	model    string
	disabled bool
	client   *http.Client
	engine   *resilience.Engine
	log      *zerolog.Logger
}

func NewOpenAICompatAnalysis(cfg config.ProviderSettings, logger *zerolog.Logger) (*OpenAICompatAnalysis, error) {
	if cfg.APIKey == "" && !cfg.Disabled {
		return nil, errors.New("openai-compat: empty api key")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	l := logger.With().Str("component", "openai_analysis").Logger()
	return &OpenAICompatAnalysis{
		apiKey:   cfg.APIKey,
		base:     strings.TrimRight(cfg.BaseURL, "/"),
		model:    cfg.Model,
		disabled: cfg.Disabled,
		client:   &http.Client{Timeout: 60 * time.Second},
		engine:   resilience.NewEngine("openai", cfg.Resilience),
		log:      &l,
	}, nil
}

func (m *OpenAICompatAnalysis) Name() string { return "openai" }

func (m *OpenAICompatAnalysis) Healthy(ctx context.Context) bool {
	if m.disabled {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.base+"/models", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	resp, err := m.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 500
}

// chat completion request/response, vision flavor: content is a list of
// typed parts rather than a plain string.
type chatContentPart struct {
	Type     string `json:"type"` // "text" | "image_url"
	Text     string `json:"text,omitempty"`
	ImageURL *struct {
		URL string `json:"url"`
	} `json:"image_url,omitempty"`
}

type chatMessage struct {
	Role    string            `json:"role"`
	Content []chatContentPart `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (m *OpenAICompatAnalysis) Analyze(ctx context.Context, req adapter.AnalysisRequest) resilience.Outcome[adapter.AnalysisResult] {
	if m.disabled {
		return resilience.Reject[adapter.AnalysisResult](m.Name(), domain.ErrProviderDisabled, m.engine.State())
	}

	body := chatRequest{
		Model: m.model,
		Messages: []chatMessage{{
			Role: "user",
			Content: []chatContentPart{
				{Type: "text", Text: req.Prompt},
				{Type: "image_url", ImageURL: &struct {
					URL string `json:"url"`
				}{URL: req.ImageURL}},
			},
		}},
		MaxTokens: analysisMaxTokens,
	}

	return resilience.Execute(ctx, m.engine, func(ctx context.Context) (adapter.AnalysisResult, error) {
		b, _ := json.Marshal(body)
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.base+"/chat/completions", bytes.NewReader(b))
		if err != nil {
			return adapter.AnalysisResult{}, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+m.apiKey)

		resp, err := m.client.Do(httpReq)
		if err != nil {
			return adapter.AnalysisResult{}, err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			return adapter.AnalysisResult{}, fmt.Errorf("openai-compat http %d", resp.StatusCode)
		}
		var payload chatResponse
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return adapter.AnalysisResult{}, err
		}
		for _, c := range payload.Choices {
			if c.Message.Content != "" {
				return adapter.AnalysisResult{Description: c.Message.Content, Model: m.model}, nil
			}
		}
		return adapter.AnalysisResult{}, errors.New("openai-compat: no choice content")
	})
}
