package localcache

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memctl/memctl/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(t.TempDir(), "acme", "widgets", 0, testLogger())
	require.NoError(t, err)
	return c
}

func sampleRecords() []models.MemoryRecord {
	now := time.Now().UTC()
	return []models.MemoryRecord{
		{Key: "auth-setup", Content: "OAuth flows through the gateway service", Priority: 5, CreatedAt: now, UpdatedAt: now},
		{Key: "db-config", Content: "Postgres connection pool sized at 20", Priority: 3, CreatedAt: now, UpdatedAt: now},
	}
}

func TestOpen_MissingFileIsEmptyCache(t *testing.T) {
	c := testCache(t)

	assert.Empty(t, c.List())
	assert.True(t, c.IsStale())
	assert.Nil(t, c.LastSyncedAt())
	assert.Equal(t, models.FreshnessOffline, c.Freshness())
}

func TestOpen_CorruptFileStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "acme", "widgets.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	c, err := Open(dir, "acme", "widgets", 0, testLogger())
	require.NoError(t, err)
	assert.Empty(t, c.List())
}

func TestSync_ReplacesSnapshotAndStampsTime(t *testing.T) {
	c := testCache(t)

	require.NoError(t, c.Sync(sampleRecords()))
	assert.Len(t, c.List(), 2)
	require.NotNil(t, c.LastSyncedAt())
	assert.False(t, c.IsStale())
	assert.Equal(t, models.FreshnessCached, c.Freshness())

	// A later sync replaces, never merges.
	require.NoError(t, c.Sync(sampleRecords()[:1]))
	assert.Len(t, c.List(), 1)
}

func TestGet(t *testing.T) {
	c := testCache(t)
	require.NoError(t, c.Sync(sampleRecords()))

	rec := c.Get("auth-setup")
	require.NotNil(t, rec)
	assert.Equal(t, "OAuth flows through the gateway service", rec.Content)
	assert.Equal(t, 5, rec.Priority)

	assert.Nil(t, c.Get("no-such-key"))
}

func TestSearch_SubstringOverKeyAndContent(t *testing.T) {
	c := testCache(t)
	require.NoError(t, c.Sync(sampleRecords()))

	byKey := c.Search("auth")
	require.Len(t, byKey, 1)
	assert.Equal(t, "auth-setup", byKey[0].Key)

	byContent := c.Search("POSTGRES")
	require.Len(t, byContent, 1)
	assert.Equal(t, "db-config", byContent[0].Key)

	assert.Empty(t, c.Search("kafka"))
}

func TestSearch_SkipsArchivedAndExpired(t *testing.T) {
	c := testCache(t)
	now := time.Now().UTC()
	past := now.Add(-time.Hour)
	records := sampleRecords()
	records[0].ArchivedAt = &past
	records = append(records, models.MemoryRecord{
		Key: "old-note", Content: "Postgres migration scratchpad", ExpiresAt: &past,
	})
	require.NoError(t, c.Sync(records))

	assert.Empty(t, c.Search("auth"))
	results := c.Search("postgres")
	require.Len(t, results, 1)
	assert.Equal(t, "db-config", results[0].Key)
}

func TestGetByPath(t *testing.T) {
	c := testCache(t)
	require.NoError(t, c.Sync(sampleRecords()))

	t.Run("single memory path", func(t *testing.T) {
		res := c.GetByPath("/memories/auth-setup")
		require.NotNil(t, res)
		require.NotNil(t, res.Memory)
		assert.Equal(t, "auth-setup", res.Memory.Key)
		assert.Nil(t, res.Memories)
	})

	t.Run("search path", func(t *testing.T) {
		res := c.GetByPath("/memories?q=auth")
		require.NotNil(t, res)
		require.Len(t, res.Memories, 1)
		assert.Equal(t, "auth-setup", res.Memories[0].Key)
	})

	t.Run("search path with no hits returns empty list", func(t *testing.T) {
		res := c.GetByPath("/memories?q=kafka")
		require.NotNil(t, res)
		assert.NotNil(t, res.Memories)
		assert.Empty(t, res.Memories)
	})

	t.Run("unknown paths", func(t *testing.T) {
		assert.Nil(t, c.GetByPath("/memories/no-such-key"))
		assert.Nil(t, c.GetByPath("/memories"))
		assert.Nil(t, c.GetByPath("/memories/a/b"))
		assert.Nil(t, c.GetByPath("/other"))
	})
}

func TestFreshness_AgesToStale(t *testing.T) {
	c := testCache(t)
	require.NoError(t, c.Sync(sampleRecords()))
	require.Equal(t, models.FreshnessCached, c.Freshness())

	c.now = func() time.Time { return time.Now().UTC().Add(DefaultFreshnessWindow + time.Minute) }
	assert.True(t, c.IsStale())
	assert.Equal(t, models.FreshnessStale, c.Freshness())
}

func TestPendingWrites_FIFOAndClear(t *testing.T) {
	c := testCache(t)

	for _, id := range []string{"w1", "w2", "w3"} {
		require.NoError(t, c.QueueWrite(models.PendingWrite{
			ID: id, Method: "PUT", Path: "/memories/" + id, EnqueuedAt: time.Now().UTC(),
		}))
	}

	queue := c.PendingWrites()
	require.Len(t, queue, 3)
	assert.Equal(t, "w1", queue[0].ID)
	assert.Equal(t, "w2", queue[1].ID)
	assert.Equal(t, "w3", queue[2].ID)

	require.NoError(t, c.ClearPendingWrites())
	assert.Empty(t, c.PendingWrites())
}

func TestPersistenceAcrossOpens(t *testing.T) {
	dir := t.TempDir()

	c1, err := Open(dir, "acme", "widgets", 0, testLogger())
	require.NoError(t, err)
	require.NoError(t, c1.Sync(sampleRecords()))
	require.NoError(t, c1.QueueWrite(models.PendingWrite{ID: "w1", Method: "PUT", Path: "/memories/k"}))

	c2, err := Open(dir, "acme", "widgets", 0, testLogger())
	require.NoError(t, err)
	assert.Len(t, c2.List(), 2)
	require.NotNil(t, c2.Get("auth-setup"))
	require.Len(t, c2.PendingWrites(), 1)
	assert.Equal(t, "w1", c2.PendingWrites()[0].ID)
	assert.False(t, c2.IsStale())
}

func TestOpen_SanitizesPathSegments(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(dir, "acme/evil", "../widgets", 0, testLogger())
	require.NoError(t, err)

	require.NoError(t, c.Sync(nil))
	rel, err := filepath.Rel(dir, c.Path())
	require.NoError(t, err)
	assert.False(t, filepath.IsAbs(rel))
	assert.False(t, strings.HasPrefix(rel, ".."), "cache file escaped its directory: %s", c.Path())
}
