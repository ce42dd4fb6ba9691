// Package filesystem reads résumé files from a directory tree and watches
// it for changes.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/cvsearch/internal/logger"
	"github.com/custodia-labs/cvsearch/internal/normalisers"
)

// DefaultExtensions are the file types read when none are configured:
// every format the built-in normalisers convert.
var DefaultExtensions = normalisers.Default().Extensions()

// ChangeType is the kind of change to a résumé file.
type ChangeType string

const (
	ChangeCreated ChangeType = "created"
	ChangeUpdated ChangeType = "updated"
	ChangeDeleted ChangeType = "deleted"
)

// Change is one file to ingest or remove. Text is empty for deletions.
type Change struct {
	Type       ChangeType
	Path       string
	DocumentID string
	Text       string
}

// Source is a directory of résumé files.
type Source struct {
	root     string
	exts     map[string]bool
	registry *normalisers.Registry

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	closed  bool
}

// New creates a source rooted at root that reads files with the given
// extensions, or DefaultExtensions when none are given.
func New(root string, exts ...string) *Source {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	set := make(map[string]bool, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		set[e] = true
	}
	return &Source{root: root, exts: set, registry: normalisers.Default()}
}

// WithRegistry replaces the normalisers used to convert files to text.
func (s *Source) WithRegistry(r *normalisers.Registry) *Source {
	s.registry = r
	return s
}

// readText reads path and converts it to plain text.
func (s *Source) readText(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return s.registry.Text(ctx, path, data)
}

// Root returns the directory being read.
func (s *Source) Root() string {
	return s.root
}

// DocumentID maps a file to a stable document ID: its slash-separated path
// relative to the root, without extension. Renaming a file therefore
// changes its document.
func (s *Source) DocumentID(path string) string {
	rel, err := filepath.Rel(s.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(path)
	}
	rel = strings.TrimSuffix(rel, filepath.Ext(rel))
	return filepath.ToSlash(rel)
}

// Scan reads every matching file under the root, ordered by path.
func (s *Source) Scan(ctx context.Context) ([]Change, error) {
	if err := s.checkRoot(); err != nil {
		return nil, err
	}

	var changes []Change
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if path != s.root && isHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !s.matches(path) {
			return nil
		}

		text, err := s.readText(ctx, path)
		if err != nil {
			logger.Warn("skipping %s: %v", path, err)
			return nil
		}
		changes = append(changes, Change{
			Type:       ChangeCreated,
			Path:       path,
			DocumentID: s.DocumentID(path),
			Text:       text,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	return changes, nil
}

// Watch emits changes to matching files until ctx is cancelled, then closes
// the channel. Directories created later are watched too.
func (s *Source) Watch(ctx context.Context) (<-chan Change, error) {
	if err := s.checkRoot(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, errors.New("source is closed")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	s.watcher = watcher
	s.mu.Unlock()

	if err := s.addTree(watcher, s.root); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	changes := make(chan Change)
	go func() {
		defer close(changes)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Create) && isDir(event.Name) && !isHidden(event.Name) {
					if err := s.addTree(watcher, event.Name); err != nil {
						logger.Warn("cannot watch %s: %v", event.Name, err)
					}
					continue
				}
				change := s.handleEvent(ctx, event)
				if change == nil {
					continue
				}
				select {
				case changes <- *change:
				case <-ctx.Done():
					return
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("watch %s: %v", s.root, err)
			}
		}
	}()

	return changes, nil
}

// handleEvent converts a filesystem event to a change, or nil when the
// event does not concern a matching file.
func (s *Source) handleEvent(ctx context.Context, event fsnotify.Event) *Change {
	path := event.Name
	if isHidden(path) || !s.matches(path) {
		return nil
	}

	var typ ChangeType
	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return &Change{Type: ChangeDeleted, Path: path, DocumentID: s.DocumentID(path)}
	case event.Has(fsnotify.Create):
		typ = ChangeCreated
	case event.Has(fsnotify.Write):
		typ = ChangeUpdated
	default:
		return nil
	}

	if isDir(path) {
		return nil
	}
	text, err := s.readText(ctx, path)
	if err != nil {
		logger.Debug("skipping %s: %v", path, err)
		return nil
	}
	return &Change{Type: typ, Path: path, DocumentID: s.DocumentID(path), Text: text}
}

// Close stops watching. It is safe to call more than once.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.watcher == nil {
		return nil
	}
	err := s.watcher.Close()
	s.watcher = nil
	return err
}

func (s *Source) addTree(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != s.root && isHidden(path) {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

func (s *Source) checkRoot() error {
	info, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("root path error: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("root path error: %s is not a directory", s.root)
	}
	return nil
}

func (s *Source) matches(path string) bool {
	return s.exts[strings.ToLower(filepath.Ext(path))]
}

func isHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
