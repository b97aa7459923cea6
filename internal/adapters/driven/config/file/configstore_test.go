package file

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/vetrina/internal/core/domain"
)

func TestNewConfigStore_Success(t *testing.T) {
	tmpDir := t.TempDir()

	store, err := NewConfigStore(tmpDir)

	require.NoError(t, err)
	require.NotNil(t, store)
	assert.Equal(t, filepath.Join(tmpDir, "config.toml"), store.Path())
}

func TestNewConfigStore_NestedDirectory(t *testing.T) {
	nestedPath := filepath.Join(t.TempDir(), "nested", "deep")

	store, err := NewConfigStore(nestedPath)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(nestedPath, "config.toml"), store.Path())

	info, err := os.Stat(nestedPath)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, os.FileMode(0700), info.Mode().Perm())
}

func TestNewConfigStore_MkdirAllError(t *testing.T) {
	store, err := NewConfigStore("/dev/null/cannot/create/dirs")

	assert.Error(t, err)
	assert.Nil(t, store)
}

func TestNewConfigStore_CorruptedFile(t *testing.T) {
	tmpDir := t.TempDir()
	err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte("this is not valid TOML {{{[["), 0600)
	require.NoError(t, err)

	store, err := NewConfigStore(tmpDir)

	assert.Error(t, err)
	assert.Nil(t, store)
}

func TestConfigStore_ReadsHandWrittenTables(t *testing.T) {
	tmpDir := t.TempDir()
	content := `
[catalog]
dir = "/srv/catalog"
backend = "qdrant"

[search]
top_k = 15
min_similarity = 0.25
extra_brands = ["Alfaparf Milano", "Kérastase"]

[llm]
temperature = 1
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(content), 0600))

	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, "/srv/catalog", store.GetString("catalog.dir"))
	assert.Equal(t, "qdrant", store.GetString("catalog.backend"))
	assert.Equal(t, 15, store.GetInt("search.top_k"))
	assert.Equal(t, []string{"Alfaparf Milano", "Kérastase"}, store.GetStringSlice("search.extra_brands"))

	minSim, ok := store.Get("search.min_similarity")
	require.True(t, ok)
	assert.InDelta(t, 0.25, minSim, 1e-9)

	temp, ok := store.Get("llm.temperature")
	require.True(t, ok)
	assert.Equal(t, int64(1), temp)
}

func TestConfigStore_WritesTables(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	require.NoError(t, store.Set("search.top_k", 10))
	require.NoError(t, store.Set("search.extra_brands", []string{"Davines"}))
	require.NoError(t, store.Set("catalog.dir", "/data"))

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), "[search]")
	assert.Contains(t, string(data), "[catalog]")
	assert.NotContains(t, string(data), "'search.top_k'")

	reloaded, err := NewConfigStore(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, 10, reloaded.GetInt("search.top_k"))
	assert.Equal(t, []string{"Davines"}, reloaded.GetStringSlice("search.extra_brands"))
	assert.Equal(t, "/data", reloaded.GetString("catalog.dir"))
}

func TestConfigStore_TypedGetters(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Set("llm.model", "claude"))
	require.NoError(t, store.Set("search.top_k", int64(7)))
	require.NoError(t, store.Set("search.min_similarity", 0.3))
	require.NoError(t, store.Set("llm.temperature", 1))

	assert.Equal(t, "claude", store.GetString("llm.model"))
	assert.Equal(t, "", store.GetString("search.top_k"))
	assert.Equal(t, 7, store.GetInt("search.top_k"))
	assert.Equal(t, 0, store.GetInt("llm.model"))
	assert.Nil(t, store.GetStringSlice("missing"))

	f, ok := store.GetFloat("search.min_similarity")
	assert.True(t, ok)
	assert.InDelta(t, 0.3, f, 1e-9)
	f, ok = store.GetFloat("llm.temperature")
	assert.True(t, ok)
	assert.InDelta(t, 1.0, f, 1e-9)
	_, ok = store.GetFloat("llm.model")
	assert.False(t, ok)

	val, ok := store.Get("missing")
	assert.False(t, ok)
	assert.Nil(t, val)
}

func TestConfigStore_GetStringSliceCopies(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Set("search.extra_brands", []string{"Davines", "Olaplex"}))

	brands := store.GetStringSlice("search.extra_brands")
	brands[0] = "changed"

	assert.Equal(t, []string{"Davines", "Olaplex"}, store.GetStringSlice("search.extra_brands"))
}

func TestConfigStore_UnsetAndKeys(t *testing.T) {
	dir := t.TempDir()
	store, err := NewConfigStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Set("search.top_k", 10))
	require.NoError(t, store.Set("catalog.backend", "qdrant"))
	assert.Equal(t, []string{"catalog.backend", "search.top_k"}, store.Keys())

	require.NoError(t, store.Unset("search.top_k"))
	require.NoError(t, store.Unset("never.set"))
	assert.Equal(t, []string{"catalog.backend"}, store.Keys())

	reloaded, err := NewConfigStore(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"catalog.backend"}, reloaded.Keys())
}

func TestConfigStore_RejectsBadKeys(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Set("search.top_k", 10))

	for _, key := range []string{"", "search.", ".top_k", "a..b", "search", "search.top_k.max"} {
		err := store.Set(key, 1)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, "key %q", key)
	}
	assert.Equal(t, []string{"search.top_k"}, store.Keys())
}

func TestConfigStore_WritesHeader(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Set("search.top_k", 5))

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# vetrina settings"))
}

func TestConfigStore_NoTempFilesLeft(t *testing.T) {
	dir := t.TempDir()
	store, err := NewConfigStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Set("a.b", "x"))
	require.NoError(t, store.Set("a.c", "y"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ConfigFile, entries[0].Name())
}

func TestConfigStore_FilePermissions(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Set("llm.api_key", "secret"))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestConfigStore_WriteErrorRollsBack(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Set("a.b", "value"))

	require.NoError(t, os.Remove(store.Path()))
	require.NoError(t, os.Mkdir(store.Path(), 0700))

	assert.Error(t, store.Set("a.c", "value"))
	assert.Error(t, store.Set("a.b", "other"))
	assert.Error(t, store.Unset("a.b"))

	_, ok := store.Get("a.c")
	assert.False(t, ok)
	assert.Equal(t, "value", store.GetString("a.b"))
}

func TestConfigStore_SetUnmarshallableValue(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	assert.Error(t, store.Set("channel", make(chan int)))
	_, ok := store.Get("channel")
	assert.False(t, ok)
}

func TestConfigStore_Load_CommentOnlyFile(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte("# Just a comment\n\n"), 0600))

	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	_, ok := store.Get("any_key")
	assert.False(t, ok)
}

func TestConfigStore_Concurrency(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			_ = store.Set("search.top_k", n)
		}(i)
		go func() {
			defer wg.Done()
			_ = store.GetInt("search.top_k")
		}()
	}
	wg.Wait()

	_, ok := store.Get("search.top_k")
	assert.True(t, ok)
}

func TestNestMap(t *testing.T) {
	nested := nestMap(map[string]any{
		"a.b.c": 1,
		"a.d":   "x",
		"e":     true,
	})

	assert.Equal(t, map[string]any{
		"a": map[string]any{
			"b": map[string]any{"c": 1},
			"d": "x",
		},
		"e": true,
	}, nested)
	assert.Equal(t, map[string]any{"a.b.c": 1, "a.d": "x", "e": true}, flattenMap(nested, ""))
}
