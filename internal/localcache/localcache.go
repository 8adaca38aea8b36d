// Package localcache mirrors a project's memories on disk so reads and
// writes keep working while the remote store is unreachable. One cache file
// exists per (org, project) pair and is owned by a single process by
// convention; no network I/O happens inside this package.
package localcache

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/memctl/memctl/internal/models"
)

// DefaultFreshnessWindow is how long a synced snapshot is considered
// current before results get flagged as stale.
const DefaultFreshnessWindow = 15 * time.Minute

// Cache is the on-disk store for one (org, project) pair: the memory
// snapshot, its staleness clock, and the pending-write queue.
type Cache struct {
	org       string
	project   string
	path      string
	freshness time.Duration
	logger    *slog.Logger
	now       func() time.Time

	state cacheFile
}

// cacheFile is the persisted shape. Records keep storage order and
// PendingWrites keep strict enqueue order.
type cacheFile struct {
	Org           string                `json:"org"`
	Project       string                `json:"project"`
	Records       []models.MemoryRecord `json:"records"`
	LastSyncedAt  *time.Time            `json:"last_synced_at,omitempty"`
	PendingWrites []models.PendingWrite `json:"pending_writes,omitempty"`
}

// PathResult wraps an offline lookup in the same response shape the remote
// API uses, so callers run one code path whether online or offline.
type PathResult struct {
	Memory   *models.MemoryRecord  `json:"memory,omitempty"`
	Memories []models.MemoryRecord `json:"memories,omitempty"`
}

// Open loads (or initializes) the cache file for the given pair under dir.
// A missing file is a valid empty cache, never an error.
func Open(dir, org, project string, freshness time.Duration, logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if freshness <= 0 {
		freshness = DefaultFreshnessWindow
	}

	c := &Cache{
		org:       org,
		project:   project,
		path:      filepath.Join(dir, sanitizeSegment(org), sanitizeSegment(project)+".json"),
		freshness: freshness,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		state:     cacheFile{Org: org, Project: project},
	}

	data, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading cache file: %w", err)
	}
	if err := json.Unmarshal(data, &c.state); err != nil {
		// A corrupt cache is recoverable by re-syncing; start empty rather
		// than failing every offline operation.
		logger.Warn("localcache: cache file corrupt, starting empty", "path", c.path, "error", err)
		c.state = cacheFile{Org: org, Project: project}
	}
	return c, nil
}

// Path returns the backing file location.
func (c *Cache) Path() string {
	return c.path
}

// Sync replaces the entire snapshot atomically and stamps last_synced_at.
// The pending-write queue is untouched.
func (c *Cache) Sync(records []models.MemoryRecord) error {
	now := c.now()
	c.state.Records = append([]models.MemoryRecord(nil), records...)
	c.state.LastSyncedAt = &now
	return c.save()
}

// Get performs an exact key lookup in the current snapshot.
func (c *Cache) Get(key string) *models.MemoryRecord {
	for i := range c.state.Records {
		if c.state.Records[i].Key == key {
			rec := c.state.Records[i]
			return &rec
		}
	}
	return nil
}

// Search does a case-insensitive substring match over key and content.
// It is a deliberately simple offline fallback, not a replacement for
// server-side ranked search. Archived and expired records never match.
func (c *Cache) Search(term string) []models.MemoryRecord {
	needle := strings.ToLower(term)
	now := c.now()

	var out []models.MemoryRecord
	for i := range c.state.Records {
		rec := &c.state.Records[i]
		if !rec.Active(now) {
			continue
		}
		if strings.Contains(strings.ToLower(rec.Key), needle) ||
			strings.Contains(strings.ToLower(rec.Content), needle) {
			out = append(out, *rec)
		}
	}
	return out
}

// List returns the full snapshot in storage order.
func (c *Cache) List() []models.MemoryRecord {
	return append([]models.MemoryRecord(nil), c.state.Records...)
}

// GetByPath translates the two URL-shaped read paths the remote API exposes
// into local operations: /memories/{key} and /memories?q={term}. Returns
// nil for unrecognized paths or a missing key.
func (c *Cache) GetByPath(path string) *PathResult {
	u, err := url.Parse(path)
	if err != nil {
		return nil
	}

	if u.Path == "/memories" {
		term := u.Query().Get("q")
		if term == "" {
			return nil
		}
		results := c.Search(term)
		if results == nil {
			results = []models.MemoryRecord{}
		}
		return &PathResult{Memories: results}
	}

	if key, ok := strings.CutPrefix(u.Path, "/memories/"); ok && key != "" && !strings.Contains(key, "/") {
		rec := c.Get(key)
		if rec == nil {
			return nil
		}
		return &PathResult{Memory: rec}
	}

	return nil
}

// IsStale reports whether the snapshot has never been synced or has aged
// past the freshness window. Advisory only: callers attach a freshness tag
// to responses rather than blocking on it.
func (c *Cache) IsStale() bool {
	if c.state.LastSyncedAt == nil {
		return true
	}
	return c.now().Sub(*c.state.LastSyncedAt) > c.freshness
}

// Freshness classifies the snapshot for response tagging: offline when
// never synced, cached while inside the freshness window, stale after.
// The "fresh" tag is reserved for live remote results.
func (c *Cache) Freshness() models.Freshness {
	if c.state.LastSyncedAt == nil {
		return models.FreshnessOffline
	}
	if c.now().Sub(*c.state.LastSyncedAt) > c.freshness {
		return models.FreshnessStale
	}
	return models.FreshnessCached
}

// LastSyncedAt returns the time of the last successful sync, or nil if
// no sync has ever completed.
func (c *Cache) LastSyncedAt() *time.Time {
	return c.state.LastSyncedAt
}

// QueueWrite appends a write to the pending queue. The queue is strict
// FIFO and append-only until an explicit clear.
func (c *Cache) QueueWrite(w models.PendingWrite) error {
	c.state.PendingWrites = append(c.state.PendingWrites, w)
	return c.save()
}

// PendingWrites returns the queue contents oldest first without mutating it.
func (c *Cache) PendingWrites() []models.PendingWrite {
	return append([]models.PendingWrite(nil), c.state.PendingWrites...)
}

// ClearPendingWrites empties the queue. Call only after every queued write
// was positively acknowledged by the remote store: replay is at-least-once
// and must never partially clear.
func (c *Cache) ClearPendingWrites() error {
	c.state.PendingWrites = nil
	return c.save()
}

// save writes the cache file atomically via temp file + rename.
func (c *Cache) save() error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}

	data, err := json.MarshalIndent(&c.state, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding cache file: %w", err)
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("replacing cache file: %w", err)
	}
	return nil
}

// sanitizeSegment keeps org/project names safe as path components.
func sanitizeSegment(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}, s)
}
