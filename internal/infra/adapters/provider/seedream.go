package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"photo-enhance-pipeline/internal/config"
	"photo-enhance-pipeline/internal/domain"
	"photo-enhance-pipeline/internal/domain/ports/adapter"
	"photo-enhance-pipeline/internal/resilience"

	"github.com/rs/zerolog"
)

var _ adapter.EditingProvider = (*SeedreamEditor)(nil)

// SeedreamEditor produces enhanced renditions through the Seedream
// image-generation API. It always requests URL delivery; the pipeline
// fetches the output itself and never trusts the provider to host results.
type SeedreamEditor struct {
	apiKey   string
	base     string
	model    string
	disabled bool
	client   *http.Client
	engine   *resilience.Engine
	log      *zerolog.Logger
}

func NewSeedreamEditor(cfg config.ProviderSettings, logger *zerolog.Logger) (*SeedreamEditor, error) {
	if cfg.APIKey == "" && !cfg.Disabled {
		return nil, errors.New("seedream: empty api key")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("seedream: empty base url")
	}
	l := logger.With().Str("component", "seedream_editor").Logger()
	return &SeedreamEditor{
		apiKey:   cfg.APIKey,
		base:     strings.TrimRight(cfg.BaseURL, "/"),
		model:    cfg.Model,
		disabled: cfg.Disabled,
		client:   &http.Client{Timeout: 120 * time.Second},
		engine:   resilience.NewEngine("seedream", cfg.Resilience),
		log:      &l,
	}, nil
}

func (s *SeedreamEditor) Name() string { return "seedream" }

func (s *SeedreamEditor) Healthy(ctx context.Context) bool {
	if s.disabled {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.base, nil)
	if err != nil {
		return false
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 500
}

// Vendor wire types for POST /images/generations.
type seedreamRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	Image          string `json:"image,omitempty"`
	ResponseFormat string `json:"response_format"`
	Size           string `json:"size,omitempty"`
	Watermark      bool   `json:"watermark"`
}

type seedreamResponse struct {
	Model string `json:"model"`
	Data  []struct {
		URL string `json:"url"`
	} `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (s *SeedreamEditor) Edit(ctx context.Context, req adapter.EditRequest) resilience.Outcome[adapter.EditResult] {
	if s.disabled {
		return resilience.Reject[adapter.EditResult](s.Name(), domain.ErrProviderDisabled, s.engine.State())
	}

	body := seedreamRequest{
		Model:          s.model,
		Prompt:         editPrompt(req),
		Image:          req.ImageURL,
		ResponseFormat: "url",
		Size:           "adaptive",
		Watermark:      false,
	}

	return resilience.Execute(ctx, s.engine, func(ctx context.Context) (adapter.EditResult, error) {
		b, _ := json.Marshal(body)
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.base+"/images/generations", bytes.NewReader(b))
		if err != nil {
			return adapter.EditResult{}, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)

		resp, err := s.client.Do(httpReq)
		if err != nil {
			return adapter.EditResult{}, err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			// Error bodies carry a code/message pair worth surfacing.
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			var failed seedreamResponse
			if jerr := json.Unmarshal(raw, &failed); jerr == nil && failed.Error != nil {
				return adapter.EditResult{}, fmt.Errorf("seedream http %d: %s (%s)", resp.StatusCode, failed.Error.Message, failed.Error.Code)
			}
			return adapter.EditResult{}, fmt.Errorf("seedream http %d", resp.StatusCode)
		}

		var payload seedreamResponse
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return adapter.EditResult{}, fmt.Errorf("seedream decode: %w", err)
		}
		if payload.Error != nil {
			return adapter.EditResult{}, fmt.Errorf("seedream: %s (%s)", payload.Error.Message, payload.Error.Code)
		}
		if len(payload.Data) == 0 || payload.Data[0].URL == "" {
			return adapter.EditResult{}, errors.New("seedream: response missing output url")
		}
		model := payload.Model
		if model == "" {
			model = s.model
		}
		return adapter.EditResult{OutputURL: payload.Data[0].URL, Model: model}, nil
	})
}

// editPrompt folds the analysis into the enhancement brief the way the
// vendor expects a single prompt string.
func editPrompt(req adapter.EditRequest) string {
	if req.Analysis == "" {
		return req.Instructions
	}
	return req.Instructions + "\n\nPhoto assessment: " + req.Analysis
}
