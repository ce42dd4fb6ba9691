package normalisers

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/custodia-labs/cvsearch/internal/core/domain"
)

// MaxArchiveEntrySize is the largest uncompressed file read from an archive.
const MaxArchiveEntrySize = 32 << 20

// Entry is one file converted from an archive.
type Entry struct {
	// Name is the slash-separated path inside the archive.
	Name string
	Text string

	// Err is set when the file could not be read or converted.
	Err error
}

// IsArchive reports whether path names a zip archive.
func IsArchive(p string) bool {
	return strings.EqualFold(path.Ext(p), ".zip")
}

// ExpandZip converts every file in a zip archive whose extension has a
// registered normaliser. Directories, hidden files and other extensions are
// skipped. A file that fails to convert is reported on its entry.
func (r *Registry) ExpandZip(ctx context.Context, data []byte) ([]Entry, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid zip archive: %v", domain.ErrInvalidInput, err)
	}

	var entries []Entry
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if f.FileInfo().IsDir() || hiddenEntry(f.Name) {
			continue
		}
		if _, ok := r.ForPath(f.Name); !ok {
			continue
		}

		e := Entry{Name: f.Name}
		content, err := readEntry(f)
		if err == nil {
			e.Text, err = r.Text(ctx, f.Name, content)
		}
		e.Err = err
		entries = append(entries, e)
	}
	return entries, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	if f.UncompressedSize64 > MaxArchiveEntrySize {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", domain.ErrInvalidInput, f.Name, MaxArchiveEntrySize)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, MaxArchiveEntrySize+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name, err)
	}
	if len(data) > MaxArchiveEntrySize {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", domain.ErrInvalidInput, f.Name, MaxArchiveEntrySize)
	}
	return data, nil
}

// hiddenEntry matches dot files and the resource forks macOS adds to archives.
func hiddenEntry(name string) bool {
	for _, part := range strings.Split(name, "/") {
		if strings.HasPrefix(part, ".") || part == "__MACOSX" {
			return true
		}
	}
	return false
}
