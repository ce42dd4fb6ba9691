package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestErrors_Existence tests that all error variables exist and are not nil
func TestErrors_Existence(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrNotFound", ErrNotFound},
		{"ErrInvalidInput", ErrInvalidInput},
		{"ErrConfiguration", ErrConfiguration},
		{"ErrEmbeddingUnavailable", ErrEmbeddingUnavailable},
		{"ErrStoreUnavailable", ErrStoreUnavailable},
		{"ErrBadQuery", ErrBadQuery},
		{"ErrUnknownFilterField", ErrUnknownFilterField},
		{"ErrInconsistentState", ErrInconsistentState},
		{"ErrVersionConflict", ErrVersionConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, tt.err)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(fmt.Errorf("%w: timeout", ErrEmbeddingUnavailable)))
	assert.True(t, IsRetryable(fmt.Errorf("qdrant: %w", ErrStoreUnavailable)))
	assert.False(t, IsRetryable(ErrBadQuery))
	assert.False(t, IsRetryable(ErrConfiguration))
	assert.False(t, IsRetryable(nil))
}

func TestStageError(t *testing.T) {
	err := &StageError{DocumentID: "h1", Stage: StageWriteChunks, Err: ErrStoreUnavailable}

	assert.Equal(t, "document h1: write_chunks: store unavailable", err.Error())
	assert.True(t, errors.Is(err, ErrStoreUnavailable))

	var se *StageError
	wrapped := fmt.Errorf("batch item 3: %w", err)
	assert.True(t, errors.As(wrapped, &se))
	assert.Equal(t, StageWriteChunks, se.Stage)
}

func TestStage_Mutating(t *testing.T) {
	assert.False(t, StageChunk.Mutating())
	assert.False(t, StageEmbed.Mutating())
	assert.False(t, StageRead.Mutating())
	assert.True(t, StageDeleteChunks.Mutating())
	assert.True(t, StageWriteChunks.Mutating())
	assert.True(t, StageWriteMetadata.Mutating())
}
