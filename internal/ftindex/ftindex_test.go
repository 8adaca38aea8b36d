package ftindex

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memctl/memctl/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager(filepath.Join(t.TempDir(), "index.db"), testLogger())
	m.EnsureIndex()
	require.True(t, m.Ready())
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func record(key, content string) models.MemoryRecord {
	now := time.Now().UTC()
	return models.MemoryRecord{Key: key, Content: content, CreatedAt: now, UpdatedAt: now}
}

func TestEnsureIndex_Idempotent(t *testing.T) {
	m := testManager(t)
	m.EnsureIndex()
	m.EnsureIndex()
	assert.True(t, m.Ready())
}

func TestSearch_UninitializedReportsUnavailable(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "index.db"), testLogger())

	_, err := m.Search("proj", "anything", 10)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, m.Rebuild("proj", nil), ErrUnavailable)
}

func TestUpsertAndSearch(t *testing.T) {
	m := testManager(t)

	m.Upsert("proj", record("auth-setup", "OAuth flows through the gateway service"))
	m.Upsert("proj", record("db-config", "Postgres connection pool sized at twenty"))

	keys, err := m.Search("proj", "gateway", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"auth-setup"}, keys)

	keys, err = m.Search("proj", "postgres pool", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"db-config"}, keys)
}

func TestSearch_ScopedToProject(t *testing.T) {
	m := testManager(t)

	m.Upsert("proj-a", record("note", "shared terminology here"))
	m.Upsert("proj-b", record("note", "shared terminology here"))

	keys, err := m.Search("proj-a", "terminology", 10)
	require.NoError(t, err)
	assert.Len(t, keys, 1)
}

func TestSearch_SanitizesMetacharacters(t *testing.T) {
	m := testManager(t)
	m.Upsert("proj", record("auth-setup", "OAuth flows through the gateway service"))

	// Quotes, wildcards and operators must not reach the MATCH parser.
	keys, err := m.Search("proj", `gateway" OR *`, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"auth-setup"}, keys)
}

func TestSearch_EmptyAfterSanitizationIsUnavailable(t *testing.T) {
	m := testManager(t)
	m.Upsert("proj", record("auth-setup", "OAuth flows through the gateway service"))

	for _, q := range []string{"", "   ", `"*()!`} {
		_, err := m.Search("proj", q, 10)
		assert.ErrorIs(t, err, ErrUnavailable, "query %q", q)
	}
}

func TestSearch_ExcludesArchivedAndExpired(t *testing.T) {
	m := testManager(t)
	past := time.Now().UTC().Add(-time.Hour)

	archived := record("archived-note", "gateway rollout checklist")
	archived.ArchivedAt = &past
	expired := record("expired-note", "gateway temporary override")
	expired.ExpiresAt = &past

	m.Upsert("proj", record("live-note", "gateway production runbook"))
	m.Upsert("proj", archived)
	m.Upsert("proj", expired)

	keys, err := m.Search("proj", "gateway", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"live-note"}, keys)
}

func TestUpsert_UpdatesExistingRow(t *testing.T) {
	m := testManager(t)

	m.Upsert("proj", record("note", "original wording about caching"))
	m.Upsert("proj", record("note", "rewritten wording about sharding"))

	keys, err := m.Search("proj", "sharding", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"note"}, keys)

	keys, err = m.Search("proj", "caching", 10)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestDelete(t *testing.T) {
	m := testManager(t)

	m.Upsert("proj", record("note", "ephemeral gateway detail"))
	m.Delete("proj", "note")

	keys, err := m.Search("proj", "gateway", 10)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestRebuild_ReplacesProjectRows(t *testing.T) {
	m := testManager(t)

	m.Upsert("proj", record("stale-note", "gateway draft one"))
	m.Upsert("other", record("kept-note", "gateway draft two"))

	require.NoError(t, m.Rebuild("proj", []models.MemoryRecord{
		record("fresh-note", "gateway final version"),
	}))

	keys, err := m.Search("proj", "gateway", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh-note"}, keys)

	keys, err = m.Search("other", "gateway", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"kept-note"}, keys)
}

func TestLimit(t *testing.T) {
	m := testManager(t)
	for _, k := range []string{"a1", "a2", "a3", "a4"} {
		m.Upsert("proj", record(k, "gateway entry "+k))
	}

	keys, err := m.Search("proj", "gateway", 2)
	require.NoError(t, err)
	assert.Len(t, keys, 2)
}
