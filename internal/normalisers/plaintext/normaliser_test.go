package plaintext

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/cvsearch/internal/core/domain"
)

func TestExtensions(t *testing.T) {
	assert.Equal(t, []string{".txt", ".text"}, New().Extensions())
}

func TestNormalise(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "plain", input: "Alice\nGo developer", expected: "Alice\nGo developer"},
		{name: "windows line endings", input: "Alice\r\nGo developer\r\n", expected: "Alice\nGo developer\n"},
		{name: "old mac line endings", input: "Alice\rGo", expected: "Alice\nGo"},
		{name: "byte order mark", input: "\xef\xbb\xbfAlice", expected: "Alice"},
		{name: "empty", input: "", expected: ""},
		{name: "unicode", input: "Zoë Müller, São Paulo", expected: "Zoë Müller, São Paulo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, err := New().Normalise(context.Background(), []byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, text)
		})
	}
}

func TestNormalise_Binary(t *testing.T) {
	_, err := New().Normalise(context.Background(), []byte{0x50, 0x4b, 0x03, 0x04, 0x00})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = New().Normalise(context.Background(), []byte{0xff, 0xfe, 0xfd})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
