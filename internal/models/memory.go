package models

import (
	"time"
)

// MemoryRecord is the core data structure for a stored memory.
// Key is immutable once assigned; UpdatedAt strictly increases on every mutation.
type MemoryRecord struct {
	Key            string         `json:"key"`
	Content        string         `json:"content"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	Tags           []string       `json:"tags,omitempty"`
	Priority       int            `json:"priority"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	ArchivedAt     *time.Time     `json:"archived_at,omitempty"`
	ExpiresAt      *time.Time     `json:"expires_at,omitempty"`
	PinnedAt       *time.Time     `json:"pinned_at,omitempty"`
	LastAccessedAt *time.Time     `json:"last_accessed_at,omitempty"`
}

// Active reports whether the record participates in search.
// Archived and expired records are excluded from both server search
// and the offline cache scan, but are not physically deleted here.
func (m *MemoryRecord) Active(now time.Time) bool {
	if m.ArchivedAt != nil {
		return false
	}
	if m.ExpiresAt != nil && !m.ExpiresAt.After(now) {
		return false
	}
	return true
}

// PendingWrite is a write buffered locally because the remote store was
// unreachable. Replay is at-least-once: the remote side must apply writes
// idempotently (upsert by key), and ID doubles as an idempotency key for
// any server-side action that cannot key purely on content.
type PendingWrite struct {
	ID         string    `json:"id"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	Body       []byte    `json:"body,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// CandidateType classifies a heuristically proposed memory.
type CandidateType string

const (
	CandidateConstraint    CandidateType = "constraints"
	CandidateLessonLearned CandidateType = "lessons_learned"
	CandidateDecision      CandidateType = "decisions"
	CandidateKnownIssue    CandidateType = "known_issues"
	CandidateUserIdea      CandidateType = "user_ideas"
)

// ValidCandidateTypes is the closed extraction taxonomy.
var ValidCandidateTypes = []CandidateType{
	CandidateConstraint,
	CandidateLessonLearned,
	CandidateDecision,
	CandidateKnownIssue,
	CandidateUserIdea,
}

// IsValid returns true if the candidate type is recognized.
func (ct CandidateType) IsValid() bool {
	for _, v := range ValidCandidateTypes {
		if ct == v {
			return true
		}
	}
	return false
}

// CandidateMemory is a proposed memory extracted from conversation text.
// It is never persisted directly — it must pass capacity admission and the
// ordinary write path before becoming a MemoryRecord.
type CandidateMemory struct {
	Type       CandidateType `json:"type"`
	Text       string        `json:"text"`
	Confidence float64       `json:"confidence"`
}

// Intent is the inferred purpose of a search query, driving ranking weights.
type Intent string

const (
	IntentEntity       Intent = "entity"
	IntentTemporal     Intent = "temporal"
	IntentRelationship Intent = "relationship"
	IntentAspect       Intent = "aspect"
	IntentExploratory  Intent = "exploratory"
)

// ValidIntents is the set of all query intents.
var ValidIntents = []Intent{
	IntentEntity,
	IntentTemporal,
	IntentRelationship,
	IntentAspect,
	IntentExploratory,
}

// IsValid returns true if the intent is recognized.
func (i Intent) IsValid() bool {
	for _, v := range ValidIntents {
		if i == v {
			return true
		}
	}
	return false
}

// IntentClassification is the ephemeral result of classifying a query.
// It is recomputed per query and never stored.
type IntentClassification struct {
	Intent         Intent          `json:"intent"`
	Confidence     float64         `json:"confidence"`
	ExtractedTerms []string        `json:"extracted_terms"`
	SuggestedTypes []CandidateType `json:"suggested_types,omitempty"`
}

// Freshness tags a response with how current the backing data is.
// It is advisory: callers attach it to results rather than blocking on it.
type Freshness string

const (
	FreshnessFresh   Freshness = "fresh"
	FreshnessCached  Freshness = "cached"
	FreshnessStale   Freshness = "stale"
	FreshnessOffline Freshness = "offline"
)

// Capacity is the server-reported memory quota for a project.
type Capacity struct {
	Used          int  `json:"used"`
	Limit         int  `json:"limit"` // <= 0 means unlimited
	IsFull        bool `json:"is_full"`
	IsApproaching bool `json:"is_approaching"`
}

// SearchResult pairs a record with its final ranking score and the
// freshness of the data source that produced it.
type SearchResult struct {
	Record    MemoryRecord `json:"record"`
	Score     float64      `json:"score"`
	Freshness Freshness    `json:"freshness"`
}
