package normalisers

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/custodia-labs/cvsearch/internal/core/ports/driven"
	"github.com/custodia-labs/cvsearch/internal/normalisers/docx"
	"github.com/custodia-labs/cvsearch/internal/normalisers/html"
	"github.com/custodia-labs/cvsearch/internal/normalisers/markdown"
	"github.com/custodia-labs/cvsearch/internal/normalisers/plaintext"
)

// Registry maps file extensions to normalisers. Later registrations win.
type Registry struct {
	byExt map[string]driven.Normaliser
}

// NewRegistry creates a registry over the given normalisers.
func NewRegistry(ns ...driven.Normaliser) *Registry {
	r := &Registry{byExt: make(map[string]driven.Normaliser)}
	for _, n := range ns {
		r.Register(n)
	}
	return r
}

// Default returns a registry with every built-in format.
func Default() *Registry {
	return NewRegistry(plaintext.New(), markdown.New(), html.New(), docx.New())
}

// Register adds n for each of its extensions.
func (r *Registry) Register(n driven.Normaliser) {
	for _, ext := range n.Extensions() {
		r.byExt[strings.ToLower(ext)] = n
	}
}

// Extensions returns the registered extensions, sorted.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// ForPath returns the normaliser for path's extension.
func (r *Registry) ForPath(path string) (driven.Normaliser, bool) {
	n, ok := r.byExt[strings.ToLower(filepath.Ext(path))]
	return n, ok
}

// Text converts the contents of path to plain text. Files with an
// unregistered extension are read as plain text when they are valid UTF-8.
func (r *Registry) Text(ctx context.Context, path string, data []byte) (string, error) {
	n, ok := r.ForPath(path)
	if !ok {
		n = plaintext.New()
	}
	text, err := n.Normalise(ctx, data)
	if err != nil {
		return "", fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return text, nil
}
