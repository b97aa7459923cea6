package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/vetrina/internal/core/domain"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "vetrina-test-*")
	require.NoError(t, err)

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	require.NotNil(t, store)

	cleanup := func() {
		assert.NoError(t, store.Close())
		assert.NoError(t, os.RemoveAll(tempDir))
	}

	return store, cleanup
}

func createTestSession(t *testing.T, store *Store, id string, updated time.Time) {
	t.Helper()
	err := store.SessionStore().Create(context.Background(), &domain.Session{
		ID:        id,
		CreatedAt: updated,
		UpdatedAt: updated,
	})
	require.NoError(t, err)
}

// ==================== Store Creation Tests ====================

func TestNewStore_CreatesDatabase(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	assert.Equal(t, "sessions.db", filepath.Base(store.Path()))
	_, err := os.Stat(store.Path())
	assert.NoError(t, err)
}

func TestNewStore_ReopenSkipsAppliedMigrations(t *testing.T) {
	dir := t.TempDir()

	first, err := NewStore(dir)
	require.NoError(t, err)
	createTestSession(t, first, "s1", time.Now())
	require.NoError(t, first.Close())

	second, err := NewStore(dir)
	require.NoError(t, err)
	defer second.Close()

	got, err := second.SessionStore().Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", got.ID)
}

func TestMigrate_RecordsVersionOnce(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	require.NoError(t, store.migrate(migrationFiles))

	var count, version int
	require.NoError(t, store.db.QueryRow("SELECT COUNT(*), MAX(version) FROM schema_migrations").Scan(&count, &version))
	assert.Equal(t, 1, count)
	assert.Equal(t, 1, version)
}

func TestMigrate_FailedScriptRollsBack(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	broken := fstest.MapFS{
		"migrations/002_favourites.up.sql": {Data: []byte(
			"CREATE TABLE favourites (id TEXT PRIMARY KEY); INSERT INTO nowhere VALUES (1);")},
		"migrations/notes.up.sql": {Data: []byte("not a migration")},
	}
	err := store.migrate(broken)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "002_favourites")

	var version int
	require.NoError(t, store.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version))
	assert.Equal(t, 1, version)

	var tables int
	require.NoError(t, store.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'favourites'").Scan(&tables))
	assert.Zero(t, tables)
}

// ==================== Session Store Tests ====================

func TestSessionStore_CreateAndGet(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	now := time.Now().UTC().Truncate(time.Second)
	createTestSession(t, store, "abc", now)

	got, err := store.SessionStore().Get(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", got.ID)
	assert.True(t, got.CreatedAt.Equal(now))
}

func TestSessionStore_CreateRejectsEmptyID(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	err := store.SessionStore().Create(context.Background(), &domain.Session{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSessionStore_GetNotFound(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	_, err := store.SessionStore().Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSessionStore_AppendAndHistory(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	sessions := store.SessionStore()

	start := time.Now().UTC().Truncate(time.Second)
	createTestSession(t, store, "s", start)

	contents := []string{"one", "two", "three", "four"}
	for i, c := range contents {
		role := domain.RoleUser
		if i%2 == 1 {
			role = domain.RoleAssistant
		}
		require.NoError(t, sessions.AppendMessage(ctx, "s", domain.Message{
			Role:      role,
			Content:   c,
			CreatedAt: start.Add(time.Duration(i+1) * time.Minute),
		}))
	}

	all, err := sessions.History(ctx, "s", 0)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "one", all[0].Content)
	assert.Equal(t, domain.RoleAssistant, all[1].Role)

	last, err := sessions.History(ctx, "s", 2)
	require.NoError(t, err)
	require.Len(t, last, 2)
	assert.Equal(t, "three", last[0].Content)
	assert.Equal(t, "four", last[1].Content)

	got, err := sessions.Get(ctx, "s")
	require.NoError(t, err)
	assert.True(t, got.UpdatedAt.Equal(start.Add(4*time.Minute)))
}

func TestSessionStore_AppendErrors(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	err := store.SessionStore().AppendMessage(ctx, "missing", domain.Message{Role: domain.RoleUser, Content: "x"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	createTestSession(t, store, "s", time.Now())
	err = store.SessionStore().AppendMessage(ctx, "s", domain.Message{Role: "system", Content: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSessionStore_DeleteCascadesMessages(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	sessions := store.SessionStore()

	createTestSession(t, store, "s", time.Now())
	require.NoError(t, sessions.AppendMessage(ctx, "s", domain.Message{Role: domain.RoleUser, Content: "hi"}))
	require.NoError(t, sessions.Delete(ctx, "s"))

	_, err := sessions.Get(ctx, "s")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	history, err := sessions.History(ctx, "s", 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestSessionStore_DeleteExpired(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	now := time.Now().UTC()
	createTestSession(t, store, "old", now.Add(-2*time.Hour))
	createTestSession(t, store, "fresh", now)

	n, err := store.SessionStore().DeleteExpired(ctx, now.Add(-30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = store.SessionStore().Get(ctx, "old")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = store.SessionStore().Get(ctx, "fresh")
	assert.NoError(t, err)
}
