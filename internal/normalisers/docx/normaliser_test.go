package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/cvsearch/internal/core/domain"
)

// createTestDOCX creates a minimal DOCX file in memory.
func createTestDOCX(t *testing.T, documentXML string) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)

	contentTypes, err := w.Create("[Content_Types].xml")
	require.NoError(t, err)
	_, err = contentTypes.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="xml" ContentType="application/xml"/>
</Types>`))
	require.NoError(t, err)

	if documentXML != "" {
		doc, err := w.Create("word/document.xml")
		require.NoError(t, err)
		_, err = doc.Write([]byte(documentXML))
		require.NoError(t, err)
	}

	require.NoError(t, w.Close())
	return buf.Bytes()
}

func wrapBody(body string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>` + body + `</w:body>
</w:document>`
}

func TestExtensions(t *testing.T) {
	assert.Equal(t, []string{".docx"}, New().Extensions())
}

func TestNormalise_Paragraphs(t *testing.T) {
	data := createTestDOCX(t, wrapBody(`
<w:p><w:r><w:t>Alice</w:t></w:r><w:r><w:t xml:space="preserve"> Example</w:t></w:r></w:p>
<w:p><w:r><w:t>alice@example.com</w:t><w:br/><w:t>Berlin</w:t></w:r></w:p>
<w:p></w:p>
<w:p><w:r><w:t>Skills:</w:t><w:tab/><w:t>Golang, Kubernetes</w:t></w:r></w:p>`))

	text, err := New().Normalise(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, "Alice Example\nalice@example.com\nBerlin\nSkills:\tGolang, Kubernetes", text)
}

func TestNormalise_Table(t *testing.T) {
	data := createTestDOCX(t, wrapBody(`
<w:p><w:r><w:t>Experience</w:t></w:r></w:p>
<w:tbl>
<w:tr>
<w:tc><w:p><w:r><w:t>Acme</w:t></w:r></w:p></w:tc>
<w:tc><w:p><w:r><w:t>2016 - 2024</w:t></w:r></w:p><w:p><w:r><w:t>Go</w:t></w:r></w:p></w:tc>
</w:tr>
</w:tbl>`))

	text, err := New().Normalise(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, "Experience\nAcme\t2016 - 2024 Go", text)
}

func TestNormalise_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{name: "not a zip", data: []byte("plain text")},
		{name: "missing document", data: createTestDOCX(t, "")},
		{name: "malformed xml", data: createTestDOCX(t, "<w:document><w:body>")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New().Normalise(context.Background(), tt.data)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}
