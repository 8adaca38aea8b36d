package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memctl/memctl/internal/extract"
	"github.com/memctl/memctl/internal/ftindex"
	"github.com/memctl/memctl/internal/guard"
	"github.com/memctl/memctl/internal/intent"
	"github.com/memctl/memctl/internal/localcache"
	"github.com/memctl/memctl/internal/models"
	"github.com/memctl/memctl/internal/remote"
	"github.com/memctl/memctl/internal/syncer"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// toolRemote scripts the remote store behind the engine under test.
type toolRemote struct {
	searchResults []models.SearchResult
	createErr     error
	created       []models.MemoryRecord
}

func (f *toolRemote) List(context.Context, int, int) ([]models.MemoryRecord, error) {
	return nil, errors.New("offline")
}

func (f *toolRemote) Search(context.Context, remote.SearchRequest) ([]models.SearchResult, error) {
	if f.searchResults == nil {
		return nil, errors.New("offline")
	}
	return f.searchResults, nil
}

func (f *toolRemote) Create(_ context.Context, rec models.MemoryRecord) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, rec)
	return nil
}

func (f *toolRemote) Do(context.Context, models.PendingWrite) error {
	return errors.New("offline")
}

func (f *toolRemote) Capacity(context.Context) (models.Capacity, error) {
	return models.Capacity{Used: 10, Limit: 500}, nil
}

func newTestServer(t *testing.T, rs *toolRemote) (*Server, *syncer.Engine, *localcache.Cache) {
	t.Helper()
	logger := testLogger()

	dir := t.TempDir()
	cache, err := localcache.Open(dir, "acme", "widgets", 0, logger)
	require.NoError(t, err)

	index := ftindex.NewManager(filepath.Join(dir, "index.db"), logger)
	t.Cleanup(func() { _ = index.Close() })

	engine := syncer.NewEngine(rs, cache, index, guard.NewRateLimiter(0),
		intent.NewClassifier(logger), syncer.Options{Project: "widgets"}, logger)
	return NewServer(engine, extract.NewExtractor(logger), logger), engine, cache
}

func makeReq(name string, args map[string]any) mcpgo.CallToolRequest {
	req := mcpgo.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func textContent(t *testing.T, result *mcpgo.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	tc, ok := result.Content[0].(mcpgo.TextContent)
	require.True(t, ok, "expected text content, got %T", result.Content[0])
	return tc.Text
}

func TestHandleSearch_RequiresQuery(t *testing.T) {
	srv, _, _ := newTestServer(t, &toolRemote{})

	result, err := srv.HandleSearch(context.Background(), makeReq("memory_search", map[string]any{"query": "  "}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, textContent(t, result), "query is required")
}

func TestHandleSearch_ReturnsRankedContext(t *testing.T) {
	now := time.Now().UTC()
	rs := &toolRemote{
		searchResults: []models.SearchResult{
			{Record: models.MemoryRecord{Key: "auth-setup", Content: "OAuth flows through the gateway", UpdatedAt: now}, Score: 2.1},
		},
	}
	srv, _, _ := newTestServer(t, rs)

	result, err := srv.HandleSearch(context.Background(), makeReq("memory_search", map[string]any{
		"query": "auth gateway",
		"limit": 5,
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var payload struct {
		Intent    string                `json:"intent"`
		Source    string                `json:"source"`
		Freshness string                `json:"freshness"`
		Context   string                `json:"context"`
		InBudget  int                   `json:"in_budget"`
		Results   []models.SearchResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(textContent(t, result)), &payload))

	assert.Equal(t, "remote", payload.Source)
	assert.Equal(t, "fresh", payload.Freshness)
	assert.NotEmpty(t, payload.Intent)
	require.Len(t, payload.Results, 1)
	assert.Equal(t, 1, payload.InBudget)
	assert.Contains(t, payload.Context, "OAuth flows through the gateway")
}

func TestHandleGet(t *testing.T) {
	srv, _, cache := newTestServer(t, &toolRemote{})
	require.NoError(t, cache.Sync([]models.MemoryRecord{
		{Key: "db-config", Content: "pool sized at twenty", UpdatedAt: time.Now().UTC()},
	}))

	result, err := srv.HandleGet(context.Background(), makeReq("memory_get", map[string]any{"key": "db-config"}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var payload struct {
		Memory    models.MemoryRecord `json:"memory"`
		Freshness string              `json:"freshness"`
	}
	require.NoError(t, json.Unmarshal([]byte(textContent(t, result)), &payload))
	assert.Equal(t, "pool sized at twenty", payload.Memory.Content)
	assert.Equal(t, "cached", payload.Freshness)

	result, err = srv.HandleGet(context.Background(), makeReq("memory_get", map[string]any{"key": "missing"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleStore_GeneratesKeyWhenOmitted(t *testing.T) {
	rs := &toolRemote{}
	srv, _, _ := newTestServer(t, rs)

	result, err := srv.HandleStore(context.Background(), makeReq("memory_store", map[string]any{
		"content": "always run migrations before deploy",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var payload struct {
		Key    string `json:"key"`
		Stored bool   `json:"stored"`
		Queued bool   `json:"queued"`
	}
	require.NoError(t, json.Unmarshal([]byte(textContent(t, result)), &payload))
	assert.NotEmpty(t, payload.Key)
	assert.True(t, payload.Stored)
	assert.False(t, payload.Queued)

	require.Len(t, rs.created, 1)
	assert.Equal(t, payload.Key, rs.created[0].Key)
}

func TestHandleStore_RequiresContent(t *testing.T) {
	srv, _, _ := newTestServer(t, &toolRemote{})

	result, err := srv.HandleStore(context.Background(), makeReq("memory_store", map[string]any{"key": "k"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, textContent(t, result), "content is required")
}

func TestHandleStore_QueuesWhenOffline(t *testing.T) {
	rs := &toolRemote{createErr: errors.New("connection refused")}
	srv, _, cache := newTestServer(t, rs)

	result, err := srv.HandleStore(context.Background(), makeReq("memory_store", map[string]any{
		"key":     "note",
		"content": "text",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var payload struct {
		Queued bool `json:"queued"`
	}
	require.NoError(t, json.Unmarshal([]byte(textContent(t, result)), &payload))
	assert.True(t, payload.Queued)
	assert.Len(t, cache.PendingWrites(), 1)
}

func TestHandleStatus(t *testing.T) {
	srv, _, _ := newTestServer(t, &toolRemote{})

	result, err := srv.HandleStatus(context.Background(), makeReq("memory_status", nil))
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := textContent(t, result)
	assert.Contains(t, text, "freshness")
	assert.Contains(t, text, "10/500")
}

func TestNilEngineToolsFailGracefully(t *testing.T) {
	srv := NewServer(nil, nil, testLogger())

	result, err := srv.HandleSearch(context.Background(), makeReq("memory_search", map[string]any{"query": "q"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}
