package html

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtensions(t *testing.T) {
	assert.Equal(t, []string{".html", ".htm"}, New().Extensions())
}

func TestNormalise_Resume(t *testing.T) {
	input := `<!DOCTYPE html>
<html>
<head><title>CV</title><style>body { color: red; }</style></head>
<body>
<!-- generated -->
<h1>Alice   Example</h1>
<p>alice@example.com<br/>Berlin</p>
<ul class="skills">
  <li>Golang</li>
  <li>Kubernetes &amp; Helm</li>
</ul>
<table><tr><td>Acme</td><td>2016&nbsp;-&nbsp;2024</td></tr></table>
<script>track();</script>
</body>
</html>`

	text, err := New().Normalise(context.Background(), []byte(input))
	require.NoError(t, err)
	assert.Equal(t, "Alice Example\n"+
		"alice@example.com\n"+
		"Berlin\n"+
		"Golang\n"+
		"Kubernetes & Helm\n"+
		"Acme 2016 - 2024", text)
}

func TestStripHTML(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "empty", input: "", expected: ""},
		{name: "text only", input: "Go developer", expected: "Go developer"},
		{name: "inline tags", input: "<p>Senior <b>Go</b> <em>engineer</em></p>", expected: "Senior Go engineer"},
		{name: "source newlines", input: "<p>Go\n  developer</p>", expected: "Go developer"},
		{name: "entities", input: "<p>C&#43;&#43; &lt;3</p>", expected: "C++ <3"},
		{name: "paragraph with attributes", input: `<p class="x">a</p><p>b</p>`, expected: "a\nb"},
		{name: "pre is not param", input: "<param>x</param>", expected: "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, stripHTML(tt.input))
		})
	}
}
