// Package ftindex maintains a tokenized SQLite FTS5 index shadowing the
// memory snapshot. Index availability is strictly best-effort: every engine
// fault is converted to ErrUnavailable at this boundary so callers fall back
// to another ranking path instead of surfacing an error.
package ftindex

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/memctl/memctl/internal/models"
)

// ErrUnavailable is returned whenever the index cannot serve a request:
// the engine never initialized, the query sanitized to nothing, or the
// underlying store failed. Callers treat it as "use a different path",
// never as a user-facing error.
var ErrUnavailable = errors.New("full-text index unavailable")

// Manager owns the shadow index lifecycle: creation, trigger-based
// synchronization with the mirror table, querying, and full rebuild.
type Manager struct {
	dbPath string
	db     *sql.DB
	logger *slog.Logger
}

// NewManager creates an index manager for the database at dbPath.
// The index is not opened until EnsureIndex is called.
func NewManager(dbPath string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{dbPath: dbPath, logger: logger}
}

// schema mirrors the fields search needs plus an FTS5 virtual table kept
// consistent by triggers, so the index never diverges from the mirror
// without an explicit Rebuild.
const schema = `
CREATE TABLE IF NOT EXISTS memories (
	project_id TEXT NOT NULL,
	key        TEXT NOT NULL,
	content    TEXT NOT NULL,
	priority   INTEGER NOT NULL DEFAULT 0,
	archived   INTEGER NOT NULL DEFAULT 0,
	expires_at TEXT,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (project_id, key)
);
CREATE INDEX IF NOT EXISTS idx_memories_project ON memories(project_id);

CREATE VIRTUAL TABLE IF NOT EXISTS memories_fts USING fts5(
	key,
	content,
	content=memories,
	content_rowid=rowid
);

CREATE TRIGGER IF NOT EXISTS memories_ai AFTER INSERT ON memories BEGIN
	INSERT INTO memories_fts(rowid, key, content) VALUES (new.rowid, new.key, new.content);
END;
CREATE TRIGGER IF NOT EXISTS memories_ad AFTER DELETE ON memories BEGIN
	INSERT INTO memories_fts(memories_fts, rowid, key, content) VALUES('delete', old.rowid, old.key, old.content);
END;
CREATE TRIGGER IF NOT EXISTS memories_au AFTER UPDATE ON memories BEGIN
	INSERT INTO memories_fts(memories_fts, rowid, key, content) VALUES('delete', old.rowid, old.key, old.content);
	INSERT INTO memories_fts(rowid, key, content) VALUES (new.rowid, new.key, new.content);
END;
`

// EnsureIndex opens the database and creates the index schema. It is
// idempotent and best-effort: on failure the manager stays uninitialized
// and all other operations report unavailable.
func (m *Manager) EnsureIndex() {
	if m.db != nil {
		return
	}

	if err := os.MkdirAll(filepath.Dir(m.dbPath), 0o755); err != nil {
		m.logger.Warn("ftindex: creating index dir failed, index disabled", "error", err)
		return
	}

	db, err := sql.Open("sqlite", m.dbPath+"?_pragma=journal_mode(wal)")
	if err != nil {
		m.logger.Warn("ftindex: opening index db failed, index disabled", "error", err)
		return
	}

	if _, err := db.Exec(schema); err != nil {
		m.logger.Warn("ftindex: creating index schema failed, index disabled", "error", err)
		_ = db.Close()
		return
	}

	m.db = db
}

// Ready reports whether the index engine initialized successfully.
func (m *Manager) Ready() bool {
	return m.db != nil
}

// ftsMetaRe strips FTS5 query metacharacters before re-tokenizing the
// input as an OR-of-terms query.
var ftsMetaRe = regexp.MustCompile(`[^\pL\pN\s]`)

// sanitizeQuery rewrites free text into a safe OR-of-terms MATCH expression.
// Returns "" when nothing indexable remains.
func sanitizeQuery(raw string) string {
	cleaned := ftsMetaRe.ReplaceAllString(raw, " ")
	terms := strings.Fields(cleaned)
	if len(terms) == 0 {
		return ""
	}
	for i, t := range terms {
		terms[i] = `"` + t + `"`
	}
	return strings.Join(terms, " OR ")
}

// Search returns matching record keys for the project, ranked by the
// engine's native bm25 relevance, excluding archived and expired records.
func (m *Manager) Search(projectID, query string, limit int) ([]string, error) {
	if m.db == nil {
		return nil, ErrUnavailable
	}
	if limit <= 0 {
		limit = 20
	}

	match := sanitizeQuery(query)
	if match == "" {
		// An empty MATCH would either error or match everything; neither
		// is a useful lexical signal.
		return nil, ErrUnavailable
	}

	now := time.Now().UTC().Format(time.RFC3339)
	rows, err := m.db.Query(`
		SELECT m.key
		FROM memories_fts f
		JOIN memories m ON m.rowid = f.rowid
		WHERE memories_fts MATCH ?
		  AND m.project_id = ?
		  AND m.archived = 0
		  AND (m.expires_at IS NULL OR m.expires_at > ?)
		ORDER BY rank
		LIMIT ?`, match, projectID, now, limit)
	if err != nil {
		m.logger.Warn("ftindex: search failed", "error", err)
		return nil, ErrUnavailable
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			m.logger.Warn("ftindex: scanning search row failed", "error", err)
			return nil, ErrUnavailable
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		m.logger.Warn("ftindex: iterating search rows failed", "error", err)
		return nil, ErrUnavailable
	}

	return keys, nil
}

// Upsert mirrors a single record into the index. Failures are swallowed;
// the triggers keep the FTS table in step with the mirror row.
func (m *Manager) Upsert(projectID string, rec models.MemoryRecord) {
	if m.db == nil {
		return
	}

	archived := 0
	if rec.ArchivedAt != nil {
		archived = 1
	}
	var expiresAt any
	if rec.ExpiresAt != nil {
		expiresAt = rec.ExpiresAt.UTC().Format(time.RFC3339)
	}

	_, err := m.db.Exec(`
		INSERT INTO memories (project_id, key, content, priority, archived, expires_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_id, key) DO UPDATE SET
			content = excluded.content,
			priority = excluded.priority,
			archived = excluded.archived,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at`,
		projectID, rec.Key, rec.Content, rec.Priority, archived, expiresAt,
		rec.UpdatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		m.logger.Warn("ftindex: upsert failed", "key", rec.Key, "error", err)
	}
}

// Delete removes a record from the index. Failures are swallowed.
func (m *Manager) Delete(projectID, key string) {
	if m.db == nil {
		return
	}
	if _, err := m.db.Exec(`DELETE FROM memories WHERE project_id = ? AND key = ?`, projectID, key); err != nil {
		m.logger.Warn("ftindex: delete failed", "key", key, "error", err)
	}
}

// Rebuild forces a full resynchronization of the project's index from
// primary data. Used after bulk mutation; idempotent and re-entrant.
func (m *Manager) Rebuild(projectID string, records []models.MemoryRecord) error {
	if m.db == nil {
		return ErrUnavailable
	}

	tx, err := m.db.Begin()
	if err != nil {
		m.logger.Warn("ftindex: rebuild begin failed", "error", err)
		return ErrUnavailable
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM memories WHERE project_id = ?`, projectID); err != nil {
		m.logger.Warn("ftindex: rebuild clear failed", "error", err)
		return ErrUnavailable
	}

	for _, rec := range records {
		archived := 0
		if rec.ArchivedAt != nil {
			archived = 1
		}
		var expiresAt any
		if rec.ExpiresAt != nil {
			expiresAt = rec.ExpiresAt.UTC().Format(time.RFC3339)
		}
		if _, err := tx.Exec(`
			INSERT INTO memories (project_id, key, content, priority, archived, expires_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			projectID, rec.Key, rec.Content, rec.Priority, archived, expiresAt,
			rec.UpdatedAt.UTC().Format(time.RFC3339)); err != nil {
			m.logger.Warn("ftindex: rebuild insert failed", "key", rec.Key, "error", err)
			return ErrUnavailable
		}
	}

	if err := tx.Commit(); err != nil {
		m.logger.Warn("ftindex: rebuild commit failed", "error", err)
		return ErrUnavailable
	}

	m.logger.Debug("ftindex: rebuilt", "project", projectID, "records", len(records))
	return nil
}

// Close releases the underlying database handle.
func (m *Manager) Close() error {
	if m.db == nil {
		return nil
	}
	err := m.db.Close()
	m.db = nil
	if err != nil {
		return fmt.Errorf("closing index db: %w", err)
	}
	return nil
}
