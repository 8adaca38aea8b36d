// Package syncer orchestrates the offline-first retrieval and write paths:
// snapshot sync from the remote store, ranked search with local fallback,
// write admission, and at-least-once pending-write replay.
package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/memctl/memctl/internal/extract"
	"github.com/memctl/memctl/internal/ftindex"
	"github.com/memctl/memctl/internal/guard"
	"github.com/memctl/memctl/internal/intent"
	"github.com/memctl/memctl/internal/localcache"
	"github.com/memctl/memctl/internal/metrics"
	"github.com/memctl/memctl/internal/models"
	"github.com/memctl/memctl/internal/remote"
)

var (
	// ErrRateLimited is returned when the session write ceiling is reached.
	ErrRateLimited = errors.New("session write limit reached")

	// ErrSuperseded is returned when a newer search replaced this one
	// before it completed. The superseded result must be discarded.
	ErrSuperseded = errors.New("search superseded by a newer request")
)

// RemoteStore is the subset of the remote client the engine needs.
// remote.Client satisfies it; tests substitute fakes.
type RemoteStore interface {
	List(ctx context.Context, limit, offset int) ([]models.MemoryRecord, error)
	Search(ctx context.Context, req remote.SearchRequest) ([]models.SearchResult, error)
	Create(ctx context.Context, rec models.MemoryRecord) error
	Do(ctx context.Context, w models.PendingWrite) error
	Capacity(ctx context.Context) (models.Capacity, error)
}

// Engine wires the cache, index, guard, and remote client into the
// online/offline retrieval and write paths.
type Engine struct {
	remote     RemoteStore
	cache      *localcache.Cache
	index      *ftindex.Manager
	limiter    *guard.RateLimiter
	classifier intent.Classifier
	logger     *slog.Logger

	project    string
	pageSize   int
	maxRecords int

	entropy  *rand.Rand
	searches dispatcher
}

// Options configures an Engine.
type Options struct {
	Project    string
	PageSize   int
	MaxRecords int
}

// NewEngine creates the retrieval/sync engine.
func NewEngine(rs RemoteStore, cache *localcache.Cache, index *ftindex.Manager, limiter *guard.RateLimiter, cls intent.Classifier, opts Options, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 200
	}
	if opts.MaxRecords <= 0 {
		opts.MaxRecords = 2000
	}
	return &Engine{
		remote:     rs,
		cache:      cache,
		index:      index,
		limiter:    limiter,
		classifier: cls,
		logger:     logger,
		project:    opts.Project,
		pageSize:   opts.PageSize,
		maxRecords: opts.MaxRecords,
		entropy:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Sync replaces the local snapshot from the remote store. It pages the
// list endpoint exhaustively until a short page or the record cap, then
// swaps the cache wholesale and rebuilds the shadow index.
func (e *Engine) Sync(ctx context.Context) (int, error) {
	var records []models.MemoryRecord

	for offset := 0; offset < e.maxRecords; offset += e.pageSize {
		limit := e.pageSize
		if remaining := e.maxRecords - offset; remaining < limit {
			limit = remaining
		}

		page, err := e.remote.List(ctx, limit, offset)
		if err != nil {
			return 0, fmt.Errorf("sync: %w", err)
		}
		records = append(records, page...)
		if len(page) < limit {
			break
		}
	}

	if err := e.cache.Sync(records); err != nil {
		return 0, fmt.Errorf("sync: replacing snapshot: %w", err)
	}

	// Index rebuild is best-effort: search falls back to the cache scan
	// when the index is unavailable.
	e.index.EnsureIndex()
	if err := e.index.Rebuild(e.project, records); err != nil {
		e.logger.Warn("sync: index rebuild unavailable", "error", err)
	}

	metrics.Inc(metrics.SyncTotal)
	e.logger.Info("sync complete", "records", len(records))
	return len(records), nil
}

// SearchResponse is the result of one retrieval, carrying the strategy
// that produced it and how current the backing data is.
type SearchResponse struct {
	Results        []models.SearchResult       `json:"results"`
	Classification models.IntentClassification `json:"classification"`
	Weights        intent.Weights              `json:"weights"`
	Freshness      models.Freshness            `json:"freshness"`
	Source         string                      `json:"source"` // "remote" or "cache"
}

// Search classifies the query, attempts the server-side ranked search with
// the intent weights and the lexical key set, and on remote failure falls
// back to a locally ranked cache scan. A newer Search cancels this one;
// superseded calls return ErrSuperseded so stale results never overwrite
// fresher ones.
func (e *Engine) Search(ctx context.Context, query string, limit int) (*SearchResponse, error) {
	if limit <= 0 {
		limit = 10
	}
	ctx, cancel := e.searches.begin(ctx)
	defer cancel()
	metrics.Inc(metrics.SearchTotal)

	classification := e.classifier.Classify(query)
	weights := intent.WeightsFor(classification.Intent)

	e.index.EnsureIndex()
	lexicalKeys, err := e.index.Search(e.project, query, limit*5)
	if err != nil {
		// errors.Is(err, ftindex.ErrUnavailable) always holds here; the
		// index degrades to "no lexical signal", never to a failure.
		metrics.Inc(metrics.IndexUnavailable)
		lexicalKeys = nil
	}

	results, err := e.remote.Search(ctx, remote.SearchRequest{
		Query:       query,
		Intent:      classification.Intent,
		Weights:     weights,
		LexicalKeys: lexicalKeys,
		Types:       classification.SuggestedTypes,
		Limit:       limit,
	})
	if err == nil {
		for i := range results {
			results[i].Freshness = models.FreshnessFresh
		}
		return &SearchResponse{
			Results:        results,
			Classification: classification,
			Weights:        weights,
			Freshness:      models.FreshnessFresh,
			Source:         "remote",
		}, nil
	}

	if ctx.Err() != nil {
		metrics.Inc(metrics.SearchesSuperseded)
		return nil, ErrSuperseded
	}

	e.logger.Warn("search: remote unavailable, using local cache", "error", err)
	metrics.Inc(metrics.SearchFallback)

	freshness := e.cache.Freshness()
	ranked := e.rankOffline(classification, weights, limit)
	for i := range ranked {
		ranked[i].Freshness = freshness
	}

	return &SearchResponse{
		Results:        ranked,
		Classification: classification,
		Weights:        weights,
		Freshness:      freshness,
		Source:         "cache",
	}, nil
}

// rankOffline scores the cache scan with the signals available locally:
// lexical term overlap, recency, and priority, each multiplied by the
// intent's boost. Vector and graph signals are remote-only and contribute
// nothing offline. Ties break by priority descending, then updated_at
// descending.
func (e *Engine) rankOffline(c models.IntentClassification, w intent.Weights, limit int) []models.SearchResult {
	seen := map[string]models.MemoryRecord{}
	for _, term := range c.ExtractedTerms {
		for _, rec := range e.cache.Search(term) {
			seen[rec.Key] = rec
		}
	}

	now := time.Now().UTC()
	results := make([]models.SearchResult, 0, len(seen))
	for _, rec := range seen {
		score := w.Lexical*lexicalScore(rec, c.ExtractedTerms) +
			w.Recency*recencyScore(rec.UpdatedAt, now) +
			w.Priority*priorityScore(rec.Priority)
		results = append(results, models.SearchResult{Record: rec, Score: score})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].Record.Priority != results[j].Record.Priority {
			return results[i].Record.Priority > results[j].Record.Priority
		}
		return results[i].Record.UpdatedAt.After(results[j].Record.UpdatedAt)
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// Get returns a record from the local snapshot with its freshness tag.
func (e *Engine) Get(key string) (*models.MemoryRecord, models.Freshness) {
	return e.cache.Get(key), e.cache.Freshness()
}

// List returns the local snapshot in storage order with its freshness tag.
func (e *Engine) List() ([]models.MemoryRecord, models.Freshness) {
	return e.cache.List(), e.cache.Freshness()
}

// GetByPath resolves a URL-shaped read path against the local snapshot,
// mirroring the remote API's response shapes.
func (e *Engine) GetByPath(path string) *localcache.PathResult {
	return e.cache.GetByPath(path)
}

// WriteResult reports how a write was applied.
type WriteResult struct {
	Queued  bool   `json:"queued"`
	Warning string `json:"warning,omitempty"`
}

// Write admits one record through the guard and applies it: to the remote
// store when reachable, otherwise onto the pending-write queue for later
// replay. Rejection at the ceiling is a hard error with the reason.
func (e *Engine) Write(ctx context.Context, rec models.MemoryRecord) (*WriteResult, error) {
	check := e.limiter.CheckRateLimit()
	if !check.Allowed {
		metrics.Inc(metrics.WritesRejected)
		return nil, fmt.Errorf("%w: %s", ErrRateLimited, check.Warning)
	}

	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	if err := e.remote.Create(ctx, rec); err != nil {
		e.logger.Warn("write: remote unreachable, queueing", "key", rec.Key, "error", err)
		if qErr := e.queue(rec, now); qErr != nil {
			return nil, fmt.Errorf("queueing write: %w", qErr)
		}
		e.limiter.IncrementWriteCount()
		metrics.Inc(metrics.WritesQueued)
		return &WriteResult{Queued: true, Warning: check.Warning}, nil
	}

	e.limiter.IncrementWriteCount()
	metrics.Inc(metrics.WritesTotal)
	return &WriteResult{Warning: check.Warning}, nil
}

// queue appends an upsert-shaped PendingWrite mirroring the remote API.
// The ULID is time-ordered and doubles as the idempotency key on replay.
func (e *Engine) queue(rec models.MemoryRecord, now time.Time) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding record: %w", err)
	}
	return e.cache.QueueWrite(models.PendingWrite{
		ID:         ulid.MustNew(ulid.Timestamp(now), e.entropy).String(),
		Method:     http.MethodPut,
		Path:       "/memories/" + url.PathEscape(rec.Key),
		Body:       body,
		EnqueuedAt: now,
	})
}

// Replay re-sends every pending write in enqueue order. The queue is
// cleared only after every entry is acknowledged; a failure mid-replay
// leaves the whole queue intact, so a later replay re-sends already
// applied writes and relies on the server's upsert-by-key idempotency.
func (e *Engine) Replay(ctx context.Context) (int, error) {
	writes := e.cache.PendingWrites()
	if len(writes) == 0 {
		return 0, nil
	}

	for i, w := range writes {
		if err := e.remote.Do(ctx, w); err != nil {
			return i, fmt.Errorf("replay stopped at write %d of %d: %w", i+1, len(writes), err)
		}
	}

	if err := e.cache.ClearPendingWrites(); err != nil {
		return len(writes), fmt.Errorf("clearing replayed queue: %w", err)
	}
	metrics.Inc(metrics.ReplayTotal)
	e.logger.Info("replayed pending writes", "count", len(writes))
	return len(writes), nil
}

// ExtractResult reports one extraction pass.
type ExtractResult struct {
	Candidates []models.CandidateMemory `json:"candidates"`
	Stored     int                      `json:"stored"`
	Queued     int                      `json:"queued"`
	Warning    string                   `json:"warning,omitempty"`
}

// ExtractAndStore runs candidate extraction over a conversation turn and
// pushes each admitted candidate through the ordinary write path. When
// store is false the candidates are proposed only.
func (e *Engine) ExtractAndStore(ctx context.Context, ex extract.Extractor, in extract.Input, store bool) (*ExtractResult, error) {
	metrics.Inc(metrics.ExtractTotal)
	candidates := ex.Extract(in.UserMessage, in.AssistantMessage)
	result := &ExtractResult{Candidates: candidates}
	if len(candidates) == 0 || !store {
		return result, nil
	}

	now := time.Now().UTC()
	for _, cand := range candidates {
		rec := models.MemoryRecord{
			Key:     fmt.Sprintf("%s-%s", cand.Type, ulid.MustNew(ulid.Timestamp(now), e.entropy).String()),
			Content: cand.Text,
			Metadata: map[string]any{
				"type":       string(cand.Type),
				"confidence": cand.Confidence,
				"source":     "extractor",
			},
		}

		wr, err := e.Write(ctx, rec)
		if err != nil {
			if errors.Is(err, ErrRateLimited) {
				result.Warning = err.Error()
				break
			}
			return result, err
		}
		metrics.Inc(metrics.ExtractCandidates)
		if wr.Queued {
			result.Queued++
		} else {
			result.Stored++
		}
	}

	if w := e.limiter.SessionWriteWarning(); w != "" && result.Warning == "" {
		result.Warning = w
	}
	return result, nil
}

// Status summarizes the engine's view of the world for one project.
type Status struct {
	Freshness    models.Freshness `json:"freshness"`
	LastSyncedAt *time.Time       `json:"last_synced_at,omitempty"`
	Records      int              `json:"records"`
	PendingCount int              `json:"pending_count"`
	IndexReady   bool             `json:"index_ready"`
	Capacity     string           `json:"capacity"`
	SessionNote  string           `json:"session_note,omitempty"`
}

// Status reports cache freshness, queue depth, index readiness, and
// capacity guidance. The capacity probe is best-effort.
func (e *Engine) Status(ctx context.Context) *Status {
	st := &Status{
		Freshness:    e.cache.Freshness(),
		LastSyncedAt: e.cache.LastSyncedAt(),
		Records:      len(e.cache.List()),
		PendingCount: len(e.cache.PendingWrites()),
		IndexReady:   e.index.Ready(),
		SessionNote:  e.limiter.SessionWriteWarning(),
	}

	if quota, err := e.remote.Capacity(ctx); err != nil {
		st.Capacity = "capacity unknown (remote unreachable)"
	} else {
		st.Capacity = guard.FormatCapacityGuidance(quota)
	}
	return st
}

// dispatcher implements latest-wins search arbitration: starting a new
// search cancels the in-flight one so a slow superseded request can never
// land after a fresher result.
type dispatcher struct {
	mu     sync.Mutex
	cancel context.CancelFunc
}

func (d *dispatcher) begin(parent context.Context) (context.Context, context.CancelFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		d.cancel()
	}
	ctx, cancel := context.WithCancel(parent)
	d.cancel = cancel
	return ctx, cancel
}

// --- offline ranking signals ---

// lexicalScore is the fraction of query terms present in the record's key
// or content.
func lexicalScore(rec models.MemoryRecord, terms []string) float64 {
	if len(terms) == 0 {
		return 0
	}
	haystack := strings.ToLower(rec.Key + " " + rec.Content)
	matched := 0
	for _, t := range terms {
		if strings.Contains(haystack, strings.ToLower(t)) {
			matched++
		}
	}
	return float64(matched) / float64(len(terms))
}

// recencyScore uses exponential decay with a half-life of 7 days.
func recencyScore(updatedAt time.Time, now time.Time) float64 {
	if updatedAt.IsZero() {
		return 0.1
	}
	hoursAgo := now.Sub(updatedAt).Hours()
	if hoursAgo < 0 {
		hoursAgo = 0
	}
	const halfLife = 168.0
	return math.Exp(-0.693 * hoursAgo / halfLife)
}

// priorityScore normalizes priority to [0,1] assuming the usual 0-10 range.
func priorityScore(priority int) float64 {
	if priority <= 0 {
		return 0
	}
	return math.Min(1.0, float64(priority)/10.0)
}
