package file

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigStore_Success(t *testing.T) {
	tmpDir := t.TempDir()

	store, err := NewConfigStore(tmpDir)

	require.NoError(t, err)
	require.NotNil(t, store)
	assert.Equal(t, filepath.Join(tmpDir, "config.toml"), store.Path())
}

func TestNewConfigStore_MkdirAllError(t *testing.T) {
	store, err := NewConfigStore("/dev/null/cannot/create/dirs")

	assert.Error(t, err)
	assert.Nil(t, store)
}

func TestNewConfigStore_LoadCorruptedFile(t *testing.T) {
	tmpDir := t.TempDir()
	err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte("this is not valid TOML {{{[["), 0600)
	require.NoError(t, err)

	store, err := NewConfigStore(tmpDir)

	assert.Error(t, err)
	assert.Nil(t, store)
}

func TestConfigStore_TypedGetters(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Set("storage.vector", "qdrant"))
	require.NoError(t, store.Set("chunking.size", 600))
	require.NoError(t, store.Set("ingest.extract", true))
	require.NoError(t, store.Set("schema.fields", []string{"seniority:string"}))
	require.NoError(t, store.Set("planner.max_limit", "50"))
	require.NoError(t, store.Set("ingest.flag", "true"))

	assert.Equal(t, "qdrant", store.GetString("storage.vector"))
	assert.Equal(t, 600, store.GetInt("chunking.size"))
	assert.True(t, store.GetBool("ingest.extract"))
	assert.Equal(t, []string{"seniority:string"}, store.GetStringSlice("schema.fields"))
	assert.Equal(t, 50, store.GetInt("planner.max_limit"))
	assert.True(t, store.GetBool("ingest.flag"))

	assert.Empty(t, store.GetString("missing"))
	assert.Zero(t, store.GetInt("storage.vector"))
	assert.False(t, store.GetBool("missing"))
	assert.Nil(t, store.GetStringSlice("chunking.size"))
}

func TestConfigStore_PersistsNestedTables(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	require.NoError(t, store.Set("storage.vector", "sqlite"))
	require.NoError(t, store.Set("storage.data_dir", "/tmp/cv"))
	require.NoError(t, store.Set("chunking.size", 900))

	raw, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Contains(t, string(raw), "[storage]")
	assert.Contains(t, string(raw), "[chunking]")

	reloaded, err := NewConfigStore(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", reloaded.GetString("storage.vector"))
	assert.Equal(t, "/tmp/cv", reloaded.GetString("storage.data_dir"))
	assert.Equal(t, 900, reloaded.GetInt("chunking.size"))
}

func TestConfigStore_ScalarPrefixConflict(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	require.NoError(t, store.Set("a.b", "deep"))
	require.NoError(t, store.Set("a", "shallow"))

	reloaded, err := NewConfigStore(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, "shallow", reloaded.GetString("a"))
	assert.Equal(t, "deep", reloaded.GetString("a.b"))
}

func TestConfigStore_FilePermissions(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Set("k", "v"))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestConfigStore_SetFailureLeavesValueUnchanged(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Set("k", "v"))

	// Channels cannot be marshalled to TOML.
	assert.Error(t, store.Set("k", make(chan int)))
	assert.Equal(t, "v", store.GetString("k"))

	assert.Error(t, store.Set("new", make(chan int)))
	_, ok := store.Get("new")
	assert.False(t, ok)
}

func TestConfigStore_LoadMissingFileIsEmpty(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Set("k", "v"))
	require.NoError(t, os.Remove(store.Path()))

	require.NoError(t, store.Load())
	_, ok := store.Get("k")
	assert.False(t, ok)
}

func TestConfigStore_Concurrency(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = store.Set("planner.widen_rounds", n)
			_ = store.GetInt("planner.widen_rounds")
		}(i)
	}
	wg.Wait()
	require.NoError(t, store.Save())
}

func TestNestMap(t *testing.T) {
	got := nestMap(map[string]any{"a.b.c": 1, "a.d": 2, "e": 3})
	assert.Equal(t, map[string]any{
		"a": map[string]any{"b": map[string]any{"c": 1}, "d": 2},
		"e": 3,
	}, got)
	assert.Equal(t, map[string]any{"a.b.c": 1, "a.d": 2, "e": 3}, flattenMap(got, ""))
}
