package markdown

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtensions(t *testing.T) {
	assert.Equal(t, []string{".md", ".markdown"}, New().Extensions())
}

func TestNormalise_Resume(t *testing.T) {
	input := "# Alice Example\r\n" +
		"\r\n" +
		"alice@example.com | [GitHub](https://github.com/alice)\r\n" +
		"\r\n" +
		"## Skills\r\n" +
		"\r\n" +
		"- **Golang**, `Kubernetes`\r\n" +
		"* _PostgreSQL_\r\n" +
		"1. years_experience tracked\r\n" +
		"\r\n" +
		"---\r\n" +
		"\r\n" +
		"> 8 years of experience\r\n"

	text, err := New().Normalise(context.Background(), []byte(input))
	require.NoError(t, err)
	assert.Equal(t, "Alice Example\n\n"+
		"alice@example.com, GitHub\n\n"+
		"Skills\n\n"+
		"Golang, Kubernetes\n"+
		"PostgreSQL\n"+
		"years_experience tracked\n\n"+
		"8 years of experience", text)
}

func TestStripMarkdown(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "image removed", input: "![photo](me.png)Alice", expected: "Alice"},
		{name: "code fence keeps content", input: "```\ngo, rust\n```", expected: "go, rust"},
		{name: "table", input: "| Skill | Years |\n|---|---|\n| Go | 5 |", expected: "Skill, Years\n\nGo, 5"},
		{name: "heading levels", input: "### Experience", expected: "Experience"},
		{name: "plain text untouched", input: "C++ and C# developer", expected: "C++ and C# developer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, stripMarkdown(tt.input))
		})
	}
}
