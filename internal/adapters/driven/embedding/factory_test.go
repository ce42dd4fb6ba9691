package embedding

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/cvsearch/internal/core/domain"
)

func TestCreate(t *testing.T) {
	tests := []struct {
		name      string
		settings  domain.EmbeddingSettings
		wantErr   error
		wantModel string
		wantDims  int
	}{
		{
			name:     "unconfigured",
			settings: domain.EmbeddingSettings{},
			wantErr:  domain.ErrConfiguration,
		},
		{
			name:     "openai without key",
			settings: domain.EmbeddingSettings{Provider: domain.AIProviderOpenAI},
			wantErr:  domain.ErrConfiguration,
		},
		{
			name:      "ollama defaults",
			settings:  domain.EmbeddingSettings{Provider: domain.AIProviderOllama},
			wantModel: "nomic-embed-text",
			wantDims:  768,
		},
		{
			name:      "ollama known model",
			settings:  domain.EmbeddingSettings{Provider: domain.AIProviderOllama, Model: "all-minilm"},
			wantModel: "all-minilm",
			wantDims:  384,
		},
		{
			name:      "openai shortened",
			settings:  domain.EmbeddingSettings{Provider: domain.AIProviderOpenAI, APIKey: "sk", Model: "text-embedding-3-large", Dimensions: 512},
			wantModel: "text-embedding-3-large",
			wantDims:  512,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := Create(tt.settings)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantModel, svc.ModelName())
			assert.Equal(t, tt.wantDims, svc.Dimensions())
			assert.NoError(t, svc.Close())
		})
	}
}

func TestCreateAndValidate(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer up.Close()

	svc, err := CreateAndValidate(context.Background(), domain.EmbeddingSettings{
		Provider: domain.AIProviderOllama,
		BaseURL:  up.URL,
	})
	require.NoError(t, err)
	assert.NotNil(t, svc)

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()

	_, err = CreateAndValidate(context.Background(), domain.EmbeddingSettings{
		Provider: domain.AIProviderOllama,
		BaseURL:  down.URL,
	})
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}
