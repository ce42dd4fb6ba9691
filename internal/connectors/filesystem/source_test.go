package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/cvsearch/internal/normalisers"
	"github.com/custodia-labs/cvsearch/internal/normalisers/plaintext"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestNew_Extensions(t *testing.T) {
	s := New("/tmp/cv")
	assert.True(t, s.matches("a.txt"))
	assert.True(t, s.matches("a.MD"))
	assert.True(t, s.matches("a.docx"))
	assert.True(t, s.matches("a.html"))
	assert.False(t, s.matches("a.pdf"))

	s = New("/tmp/cv", "rst", " .TXT ", "")
	assert.True(t, s.matches("a.rst"))
	assert.True(t, s.matches("a.txt"))
	assert.False(t, s.matches("a.md"))
}

func TestSource_DocumentID(t *testing.T) {
	root := filepath.Join("/data", "resumes")
	s := New(root)

	assert.Equal(t, "alice", s.DocumentID(filepath.Join(root, "alice.txt")))
	assert.Equal(t, "backend/bob", s.DocumentID(filepath.Join(root, "backend", "bob.md")))
	assert.Equal(t, "carol", s.DocumentID(filepath.Join("/elsewhere", "carol.txt")))
}

func TestSource_Scan(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "b.txt"), "bob")
	writeFile(t, filepath.Join(root, "a.md"), "# alice")
	writeFile(t, filepath.Join(root, "team", "c.html"), "<p>carol</p>")
	writeFile(t, filepath.Join(root, "broken.docx"), "not a zip")
	writeFile(t, filepath.Join(root, "notes.pdf"), "ignored")
	writeFile(t, filepath.Join(root, ".hidden.txt"), "ignored")
	writeFile(t, filepath.Join(root, ".git", "d.txt"), "ignored")

	changes, err := New(root).Scan(context.Background())
	require.NoError(t, err)

	var ids, texts []string
	for _, c := range changes {
		assert.Equal(t, ChangeCreated, c.Type)
		ids = append(ids, c.DocumentID)
		texts = append(texts, c.Text)
	}
	assert.Equal(t, []string{"a", "b", "team/c"}, ids)
	assert.Equal(t, []string{"alice", "bob", "carol"}, texts)
}

func TestSource_ScanErrors(t *testing.T) {
	_, err := New("/non/existent/path").Scan(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "root path error")

	file := filepath.Join(t.TempDir(), "cv.txt")
	writeFile(t, file, "x")
	_, err = New(file).Scan(context.Background())
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), "a")
	_, err = New(root).Scan(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSource_HandleEvent(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "alice.txt")
	writeFile(t, file, "alice content")
	writeFile(t, filepath.Join(root, "other.pdf"), "pdf")
	writeFile(t, filepath.Join(root, ".hidden.txt"), "hidden")
	require.NoError(t, os.Mkdir(filepath.Join(root, "dir.txt"), 0o755))

	tests := []struct {
		name string
		path string
		op   fsnotify.Op
		want ChangeType
	}{
		{"create", file, fsnotify.Create, ChangeCreated},
		{"write", file, fsnotify.Write, ChangeUpdated},
		{"write and chmod", file, fsnotify.Write | fsnotify.Chmod, ChangeUpdated},
		{"remove", filepath.Join(root, "gone.txt"), fsnotify.Remove, ChangeDeleted},
		{"rename", filepath.Join(root, "moved.txt"), fsnotify.Rename, ChangeDeleted},
		{"chmod only", file, fsnotify.Chmod, ""},
		{"other extension", filepath.Join(root, "other.pdf"), fsnotify.Create, ""},
		{"hidden file", filepath.Join(root, ".hidden.txt"), fsnotify.Write, ""},
		{"directory", filepath.Join(root, "dir.txt"), fsnotify.Create, ""},
		{"vanished before read", filepath.Join(root, "vanished.txt"), fsnotify.Create, ""},
	}

	s := New(root)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			change := s.handleEvent(context.Background(), fsnotify.Event{Name: tt.path, Op: tt.op})
			if tt.want == "" {
				assert.Nil(t, change)
				return
			}
			require.NotNil(t, change)
			assert.Equal(t, tt.want, change.Type)
			assert.Equal(t, tt.path, change.Path)
			assert.Equal(t, s.DocumentID(tt.path), change.DocumentID)
			if tt.want != ChangeDeleted {
				assert.Equal(t, "alice content", change.Text)
			}
		})
	}
}

func waitChange(t *testing.T, ch <-chan Change, want ChangeType) Change {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case c, ok := <-ch:
			require.True(t, ok, "channel closed")
			if c.Type == want {
				return c
			}
		case <-deadline:
			t.Fatalf("timeout waiting for %s change", want)
		}
	}
}

func TestSource_Watch(t *testing.T) {
	root := t.TempDir()
	s := New(root)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes, err := s.Watch(ctx)
	require.NoError(t, err)

	file := filepath.Join(root, "alice.txt")
	writeFile(t, file, "alice")
	c := waitChange(t, changes, ChangeCreated)
	assert.Equal(t, "alice", c.DocumentID)

	require.NoError(t, os.Remove(file))
	c = waitChange(t, changes, ChangeDeleted)
	assert.Equal(t, "alice", c.DocumentID)

	sub := filepath.Join(root, "team")
	require.NoError(t, os.Mkdir(sub, 0o755))
	time.Sleep(100 * time.Millisecond)
	writeFile(t, filepath.Join(sub, "bob.txt"), "bob")
	c = waitChange(t, changes, ChangeCreated)
	assert.Equal(t, "team/bob", c.DocumentID)

	cancel()
	for range changes {
	}
}

func TestSource_WatchErrors(t *testing.T) {
	_, err := New("/non/existent/path").Watch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "root path error")

	s := New(t.TempDir())
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	ch, err := s.Watch(context.Background())
	assert.Nil(t, ch)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closed")
}

func TestSource_WithRegistry(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "alice.md"), "# Alice")

	s := New(root, ".md").WithRegistry(normalisers.NewRegistry(plaintext.New()))
	changes, err := s.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, "# Alice", changes[0].Text)
}
