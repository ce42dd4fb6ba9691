package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIngestRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     IngestRequest
		wantErr bool
	}{
		{"text", IngestRequest{Text: "golang engineer"}, false},
		{"empty with hint", IngestRequest{IDHint: "blank", Text: " "}, false},
		{"empty without hint", IngestRequest{Text: ""}, true},
		{"whitespace without hint", IngestRequest{IDHint: "  ", Text: "\n\t"}, true},
		{"invalid utf8", IngestRequest{IDHint: "x", Text: "go\xffdev"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInput)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
