// Package ai builds the embedding and LLM adapters selected by settings.
package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	ollamaembed "github.com/custodia-labs/vetrina/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/vetrina/internal/adapters/driven/embedding/openai"
	anthropicllm "github.com/custodia-labs/vetrina/internal/adapters/driven/llm/anthropic"
	"github.com/custodia-labs/vetrina/internal/core/domain"
	"github.com/custodia-labs/vetrina/internal/core/ports/driven"
)

// pingTimeout bounds the connectivity check of the Validate variants.
const pingTimeout = 5 * time.Second

// ErrNotConfigured means the provider lacks settings or an API key.
var ErrNotConfigured = errors.New("provider not configured")

type embedderFunc func(s *domain.EmbeddingSettings, dimensions int) (driven.EmbeddingService, error)

var embedders = map[domain.AIProvider]embedderFunc{
	domain.AIProviderOllama: func(s *domain.EmbeddingSettings, dims int) (driven.EmbeddingService, error) {
		return ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL:    s.BaseURL,
			Model:      s.Model,
			Dimensions: dims,
		}), nil
	},
	domain.AIProviderOpenAI: func(s *domain.EmbeddingSettings, dims int) (driven.EmbeddingService, error) {
		cfg := openaiembed.Config{APIKey: s.APIKey, Model: s.Model, Dimensions: dims}
		// A base URL left at the Ollama default means "use OpenAI's".
		if s.BaseURL != domain.DefaultAppSettings().Embedding.BaseURL {
			cfg.BaseURL = s.BaseURL
		}
		return openaiembed.NewEmbeddingService(cfg)
	},
}

// CreateEmbeddingService builds the embedder named by settings. A positive
// dimensions overrides the model's known vector size.
func CreateEmbeddingService(settings *domain.EmbeddingSettings, dimensions int) (driven.EmbeddingService, error) {
	if settings == nil {
		return nil, ErrNotConfigured
	}
	build, ok := embedders[settings.Provider]
	switch {
	case settings.Provider == domain.AIProviderAnthropic:
		return nil, errors.New("anthropic does not support embeddings, use ollama or openai")
	case !ok || !settings.IsConfigured():
		return nil, fmt.Errorf("embedding %w: provider %q", ErrNotConfigured, settings.Provider)
	}
	if dimensions <= 0 {
		dimensions = domain.EmbeddingDimensions()[settings.Model]
	}
	return build(settings, dimensions)
}

// CreateLLMService builds the chat model client. Only Anthropic is supported.
func CreateLLMService(settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, ErrNotConfigured
	}
	return anthropicllm.NewLLMService(anthropicllm.Config{
		APIKey: settings.APIKey,
		Model:  settings.Model,
	})
}

// CreateAndValidateEmbeddingService is CreateEmbeddingService plus a Ping.
// Failures wrap domain.ErrEmbeddingUnavailable.
func CreateAndValidateEmbeddingService(
	ctx context.Context, settings *domain.EmbeddingSettings, dimensions int,
) (driven.EmbeddingService, error) {
	svc, err := CreateEmbeddingService(settings, dimensions)
	if err != nil {
		return nil, fmt.Errorf("%w: %w. Run 'vetrina settings set embedding.provider ...' to fix",
			domain.ErrEmbeddingUnavailable, err)
	}
	return checked(ctx, svc, domain.ErrEmbeddingUnavailable)
}

// CreateAndValidateLLMService is CreateLLMService plus a Ping.
// Failures wrap domain.ErrLLMUnavailable.
func CreateAndValidateLLMService(ctx context.Context, settings *domain.LLMSettings) (driven.LLMService, error) {
	svc, err := CreateLLMService(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w. Set VETRINA_LLM_API_KEY or llm.api_key",
			domain.ErrLLMUnavailable, err)
	}
	return checked(ctx, svc, domain.ErrLLMUnavailable)
}

type pinger interface {
	Ping(ctx context.Context) error
	Close() error
}

// checked pings svc and closes it on failure.
func checked[S pinger](ctx context.Context, svc S, kind error) (S, error) {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := svc.Ping(ctx); err != nil {
		_ = svc.Close()
		var zero S
		return zero, fmt.Errorf("%w: service unreachable (%w)", kind, err)
	}
	return svc, nil
}
