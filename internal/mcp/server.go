// Package mcp implements the Model Context Protocol server for memctl, so
// agents reach the same offline-first engine through tool calls.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	mcpgo "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/memctl/memctl/internal/extract"
	"github.com/memctl/memctl/internal/models"
	"github.com/memctl/memctl/internal/syncer"
	"github.com/memctl/memctl/pkg/tokenizer"
	"github.com/memctl/memctl/pkg/xmlutil"
)

const (
	// defaultSearchLimit is the default number of results for search.
	defaultSearchLimit = 10

	// defaultContextBudget is the default token budget for formatted
	// search context.
	defaultContextBudget = 2000
)

// Server wraps an MCPServer around the retrieval/sync engine.
type Server struct {
	mcp       *mcpserver.MCPServer
	engine    *syncer.Engine
	extractor extract.Extractor
	logger    *slog.Logger
}

// NewServer creates a new MCP server. If engine is nil, tool calls return
// an error response instead of panicking.
func NewServer(engine *syncer.Engine, extractor extract.Extractor, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		engine:    engine,
		extractor: extractor,
		logger:    logger,
	}

	mcpSrv := mcpserver.NewMCPServer(
		"memctl",
		"1.0.0",
		mcpserver.WithToolCapabilities(true),
	)

	mcpSrv.AddTool(buildSearchTool(), s.handleSearch)
	mcpSrv.AddTool(buildGetTool(), s.handleGet)
	mcpSrv.AddTool(buildStoreTool(), s.handleStore)
	mcpSrv.AddTool(buildSyncTool(), s.handleSync)
	mcpSrv.AddTool(buildReplayTool(), s.handleReplay)
	mcpSrv.AddTool(buildExtractTool(), s.handleExtract)
	mcpSrv.AddTool(buildStatusTool(), s.handleStatus)

	s.mcp = mcpSrv
	return s
}

// MCPServer returns the underlying mcp-go MCPServer for use with ServeStdio.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcp
}

// HandleSearch is the exported handler for the "memory_search" tool.
// It is exposed for direct testing without the mcp-go transport layer.
func (s *Server) HandleSearch(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleSearch(ctx, req)
}

// HandleGet is the exported handler for the "memory_get" tool.
func (s *Server) HandleGet(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleGet(ctx, req)
}

// HandleStore is the exported handler for the "memory_store" tool.
func (s *Server) HandleStore(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleStore(ctx, req)
}

// HandleStatus is the exported handler for the "memory_status" tool.
func (s *Server) HandleStatus(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleStatus(ctx, req)
}

// toolResultJSON marshals v to JSON and returns it as a tool text result.
func toolResultJSON(v any) (*mcpgo.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("mcp: marshaling result: %w", err)
	}
	return mcpgo.NewToolResultText(string(b)), nil
}

// --- tool definitions ---

func buildSearchTool() mcpgo.Tool {
	return mcpgo.NewTool("memory_search",
		mcpgo.WithDescription("Search project memories. Classifies the query intent, runs server-side ranked search, and falls back to the local cache when offline. Results carry a freshness tag."),
		mcpgo.WithString("query",
			mcpgo.Required(),
			mcpgo.Description("The free-text query"),
		),
		mcpgo.WithNumber("limit",
			mcpgo.Description("Maximum number of results (default: 10)"),
		),
		mcpgo.WithNumber("budget",
			mcpgo.Description("Token budget for the formatted context block (default: 2000)"),
		),
	)
}

func buildGetTool() mcpgo.Tool {
	return mcpgo.NewTool("memory_get",
		mcpgo.WithDescription("Get a single memory by key from the local snapshot."),
		mcpgo.WithString("key",
			mcpgo.Required(),
			mcpgo.Description("The memory key"),
		),
	)
}

func buildStoreTool() mcpgo.Tool {
	return mcpgo.NewTool("memory_store",
		mcpgo.WithDescription("Store a memory record. Writes go to the remote store when reachable and are queued for replay when offline. Writes are rate limited per session."),
		mcpgo.WithString("key",
			mcpgo.Description("Stable unique key for the record (generated when omitted)"),
		),
		mcpgo.WithString("content",
			mcpgo.Required(),
			mcpgo.Description("The memory text"),
		),
		mcpgo.WithNumber("priority",
			mcpgo.Description("Ranking/eviction priority, higher is more important (default: 0)"),
		),
	)
}

func buildSyncTool() mcpgo.Tool {
	return mcpgo.NewTool("memory_sync",
		mcpgo.WithDescription("Refresh the local snapshot from the remote store and rebuild the full-text index."),
	)
}

func buildReplayTool() mcpgo.Tool {
	return mcpgo.NewTool("memory_pending_replay",
		mcpgo.WithDescription("Replay buffered offline writes against the remote store. The queue is cleared only when every write is acknowledged."),
	)
}

func buildExtractTool() mcpgo.Tool {
	return mcpgo.NewTool("memory_extract",
		mcpgo.WithDescription("Propose memory candidates from a conversation turn. With store=true, admitted candidates go through the ordinary write path."),
		mcpgo.WithString("user_message",
			mcpgo.Description("The user side of the turn"),
		),
		mcpgo.WithString("assistant_message",
			mcpgo.Description("The assistant side of the turn"),
		),
		mcpgo.WithBoolean("store",
			mcpgo.Description("Store admitted candidates instead of only proposing them (default: false)"),
		),
	)
}

func buildStatusTool() mcpgo.Tool {
	return mcpgo.NewTool("memory_status",
		mcpgo.WithDescription("Report cache freshness, pending-write queue depth, index readiness, and capacity guidance."),
	)
}

// --- tool handlers ---

func (s *Server) handleSearch(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.engine == nil {
		return mcpgo.NewToolResultError("engine is unavailable"), nil
	}

	query := req.GetString("query", "")
	if strings.TrimSpace(query) == "" {
		return mcpgo.NewToolResultError("query is required and must not be empty"), nil
	}
	limit := req.GetInt("limit", defaultSearchLimit)
	budget := req.GetInt("budget", defaultContextBudget)

	resp, err := s.engine.Search(ctx, query, limit)
	if err != nil {
		if errors.Is(err, syncer.ErrSuperseded) {
			return mcpgo.NewToolResultError("search superseded by a newer request"), nil
		}
		return mcpgo.NewToolResultErrorf("search failed: %s", err.Error()), nil
	}

	contents := make([]string, 0, len(resp.Results))
	for i := range resp.Results {
		contents = append(contents, resp.Results[i].Record.Content)
	}
	formatted, count := tokenizer.FormatWithBudget(contents, budget)

	result := map[string]any{
		"results":   resp.Results,
		"intent":    resp.Classification.Intent,
		"freshness": resp.Freshness,
		"source":    resp.Source,
		"context":   formatted,
		"in_budget": count,
	}
	return toolResultJSON(result)
}

func (s *Server) handleGet(_ context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.engine == nil {
		return mcpgo.NewToolResultError("engine is unavailable"), nil
	}

	key := req.GetString("key", "")
	if strings.TrimSpace(key) == "" {
		return mcpgo.NewToolResultError("key is required and must not be empty"), nil
	}

	rec, freshness := s.engine.Get(key)
	if rec == nil {
		return mcpgo.NewToolResultErrorf("memory %q not found in local snapshot", key), nil
	}

	result := map[string]any{
		"memory":    rec,
		"freshness": freshness,
	}
	return toolResultJSON(result)
}

func (s *Server) handleStore(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.engine == nil {
		return mcpgo.NewToolResultError("engine is unavailable"), nil
	}

	key := req.GetString("key", "")
	content := req.GetString("content", "")
	if strings.TrimSpace(content) == "" {
		return mcpgo.NewToolResultError("content is required and must not be empty"), nil
	}
	if strings.TrimSpace(key) == "" {
		// Keys are immutable once assigned, so an agent that doesn't care
		// about addressing gets a generated one.
		key = uuid.NewString()
	}
	priority := req.GetInt("priority", 0)

	rec := models.MemoryRecord{
		Key:      key,
		Content:  xmlutil.Escape(content),
		Priority: priority,
	}

	wr, err := s.engine.Write(ctx, rec)
	if err != nil {
		if errors.Is(err, syncer.ErrRateLimited) {
			return mcpgo.NewToolResultError(err.Error()), nil
		}
		return mcpgo.NewToolResultErrorf("store failed: %s", err.Error()), nil
	}

	s.logger.Info("mcp: stored memory", "key", key, "queued", wr.Queued)

	result := map[string]any{
		"key":    key,
		"stored": true,
		"queued": wr.Queued,
	}
	if wr.Warning != "" {
		result["warning"] = wr.Warning
	}
	return toolResultJSON(result)
}

func (s *Server) handleSync(ctx context.Context, _ mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.engine == nil {
		return mcpgo.NewToolResultError("engine is unavailable"), nil
	}

	n, err := s.engine.Sync(ctx)
	if err != nil {
		return mcpgo.NewToolResultErrorf("sync failed: %s", err.Error()), nil
	}
	return toolResultJSON(map[string]any{"synced": n})
}

func (s *Server) handleReplay(ctx context.Context, _ mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.engine == nil {
		return mcpgo.NewToolResultError("engine is unavailable"), nil
	}

	n, err := s.engine.Replay(ctx)
	if err != nil {
		return mcpgo.NewToolResultErrorf("replay failed after %d writes: %s", n, err.Error()), nil
	}
	return toolResultJSON(map[string]any{"replayed": n})
}

func (s *Server) handleExtract(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.engine == nil || s.extractor == nil {
		return mcpgo.NewToolResultError("engine is unavailable"), nil
	}

	in := extract.Input{
		UserMessage:      req.GetString("user_message", ""),
		AssistantMessage: req.GetString("assistant_message", ""),
	}
	if in.UserMessage == "" && in.AssistantMessage == "" {
		return mcpgo.NewToolResultError("at least one of user_message or assistant_message is required"), nil
	}
	store := req.GetBool("store", false)

	result, err := s.engine.ExtractAndStore(ctx, s.extractor, in, store)
	if err != nil {
		return mcpgo.NewToolResultErrorf("extract failed: %s", err.Error()), nil
	}
	return toolResultJSON(result)
}

func (s *Server) handleStatus(ctx context.Context, _ mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.engine == nil {
		return mcpgo.NewToolResultError("engine is unavailable"), nil
	}
	return toolResultJSON(s.engine.Status(ctx))
}
