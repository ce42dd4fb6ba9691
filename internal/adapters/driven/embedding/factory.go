// Package embedding builds the configured embedding provider.
package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/cvsearch/internal/adapters/driven/embedding/ollama"
	"github.com/custodia-labs/cvsearch/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/cvsearch/internal/core/domain"
	"github.com/custodia-labs/cvsearch/internal/core/ports/driven"
)

// pingTimeout is the maximum time to wait for connectivity validation.
const pingTimeout = 5 * time.Second

// Create builds the embedding service for the configured provider.
func Create(settings domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if !settings.IsConfigured() {
		return nil, fmt.Errorf("%w: no embedding provider configured, run 'cvsearch config set embedding.provider ollama'",
			domain.ErrConfiguration)
	}

	model := settings.Model
	if model == "" {
		model = domain.DefaultEmbeddingModels()[settings.Provider]
	}
	dimensions := settings.Dimensions

	switch settings.Provider {
	case domain.AIProviderOllama:
		if dimensions == 0 {
			dimensions = domain.EmbeddingDimensions()[model]
		}
		return ollama.NewEmbeddingService(ollama.Config{
			BaseURL:    settings.BaseURL,
			Model:      model,
			Timeout:    settings.Timeout,
			Dimensions: dimensions,
		})

	case domain.AIProviderOpenAI:
		return openai.NewEmbeddingService(openai.Config{
			APIKey:     settings.APIKey,
			BaseURL:    settings.BaseURL,
			Model:      model,
			Timeout:    settings.Timeout,
			Dimensions: dimensions,
		})

	default:
		return nil, fmt.Errorf("%w: unsupported embedding provider %q", domain.ErrConfiguration, settings.Provider)
	}
}

// CreateAndValidate builds the service and pings it.
func CreateAndValidate(ctx context.Context, settings domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	svc, err := Create(settings)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := svc.Ping(ctx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("embedding service unreachable: %w", err)
	}
	return svc, nil
}
