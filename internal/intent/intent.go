// Package intent classifies free-text search queries into ranking intents.
package intent

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/memctl/memctl/internal/models"
)

// Classifier turns a query string into a weighted ranking strategy.
type Classifier interface {
	Classify(query string) models.IntentClassification
}

// HeuristicClassifier uses ordered first-match-wins rules over the query text.
type HeuristicClassifier struct {
	logger *slog.Logger
}

// NewClassifier creates a new heuristic-based query classifier.
func NewClassifier(logger *slog.Logger) *HeuristicClassifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &HeuristicClassifier{logger: logger}
}

// temporalTriggers match queries about recency or change over time.
var temporalTriggers = []string{
	"recent", "latest", "newest", "since", "updated", "changed",
	"yesterday", "today", "last week", "last month", "this week",
	"when did", "history of",
}

// relationshipTriggers match queries about connections between records.
var relationshipTriggers = []string{
	"depends on", "depend on", "dependency", "dependencies",
	"related to", "relates to", "references", "referenced by",
	"connected to", "linked to", "links to", "used by", "what uses",
	"impacts", "affected by",
}

// aspectTriggers match queries about conventions and cross-cutting practice.
var aspectTriggers = []string{
	"convention", "conventions", "pattern", "patterns",
	"best practice", "best practices", "practice", "approach",
	"style", "standard", "standards", "guideline", "guidelines",
	"how we", "how do we",
}

// typeNameTokens maps query tokens to the candidate type they suggest.
// Matching is whole-token, not substring, so short names never fire
// inside unrelated words.
var typeNameTokens = map[string]models.CandidateType{
	"constraint":  models.CandidateConstraint,
	"constraints": models.CandidateConstraint,
	"lesson":      models.CandidateLessonLearned,
	"lessons":     models.CandidateLessonLearned,
	"learned":     models.CandidateLessonLearned,
	"decision":    models.CandidateDecision,
	"decisions":   models.CandidateDecision,
	"issue":       models.CandidateKnownIssue,
	"issues":      models.CandidateKnownIssue,
	"workaround":  models.CandidateKnownIssue,
	"workarounds": models.CandidateKnownIssue,
	"idea":        models.CandidateUserIdea,
	"ideas":       models.CandidateUserIdea,
}

var (
	camelCaseRe = regexp.MustCompile(`^[A-Za-z][a-z0-9]*(?:[A-Z][A-Za-z0-9]*)+$`)
	snakeCaseRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9]*(?:_[A-Za-z0-9]+)+$`)
	fileExtRe   = regexp.MustCompile(`\.[A-Za-z0-9]{1,5}$`)
	termStripRe = regexp.MustCompile(`[^\pL\pN/\\.\-\s]`)
)

// rule is one entry in the ordered classification table. The first rule
// whose predicate matches wins.
type rule struct {
	name  string
	match func(q query) bool
	apply func(q query) models.IntentClassification
}

// query carries the precomputed views of the input each rule needs.
type query struct {
	raw    string
	lower  string
	tokens []string
	terms  []string
}

// rules is evaluated top to bottom; exploratory is the catch-all.
var rules = []rule{
	{
		name:  "path-separator",
		match: func(q query) bool { return strings.ContainsAny(q.raw, `/\`) },
		apply: func(q query) models.IntentClassification {
			return models.IntentClassification{Intent: models.IntentEntity, Confidence: 0.9, ExtractedTerms: q.terms}
		},
	},
	{
		name: "identifier",
		match: func(q query) bool {
			if len(q.tokens) != 1 {
				return false
			}
			t := q.tokens[0]
			return camelCaseRe.MatchString(t) || snakeCaseRe.MatchString(t)
		},
		apply: func(q query) models.IntentClassification {
			return models.IntentClassification{Intent: models.IntentEntity, Confidence: 0.85, ExtractedTerms: q.terms}
		},
	},
	{
		name:  "file-extension",
		match: func(q query) bool { return fileExtRe.MatchString(q.raw) },
		apply: func(q query) models.IntentClassification {
			return models.IntentClassification{Intent: models.IntentEntity, Confidence: 0.8, ExtractedTerms: q.terms}
		},
	},
	{
		name: "short-lookup",
		match: func(q query) bool {
			return len(q.tokens) <= 3 && !containsAny(q.lower, temporalTriggers) &&
				!containsAny(q.lower, relationshipTriggers) && !containsAny(q.lower, aspectTriggers)
		},
		apply: func(q query) models.IntentClassification {
			return models.IntentClassification{Intent: models.IntentEntity, Confidence: 0.6, ExtractedTerms: q.terms}
		},
	},
	{
		name:  "temporal",
		match: func(q query) bool { return containsAny(q.lower, temporalTriggers) },
		apply: func(q query) models.IntentClassification {
			return models.IntentClassification{Intent: models.IntentTemporal, Confidence: 0.85, ExtractedTerms: q.terms}
		},
	},
	{
		name:  "relationship",
		match: func(q query) bool { return containsAny(q.lower, relationshipTriggers) },
		apply: func(q query) models.IntentClassification {
			return models.IntentClassification{Intent: models.IntentRelationship, Confidence: 0.8, ExtractedTerms: q.terms}
		},
	},
	{
		name: "aspect",
		match: func(q query) bool {
			return containsAny(q.lower, aspectTriggers) || len(suggestTypes(q.tokens)) > 0
		},
		apply: func(q query) models.IntentClassification {
			return models.IntentClassification{
				Intent:         models.IntentAspect,
				Confidence:     0.75,
				ExtractedTerms: q.terms,
				SuggestedTypes: suggestTypes(q.tokens),
			}
		},
	},
	{
		name:  "exploratory",
		match: func(q query) bool { return true },
		apply: func(q query) models.IntentClassification {
			return models.IntentClassification{
				Intent:         models.IntentExploratory,
				Confidence:     0.5,
				ExtractedTerms: q.terms,
				SuggestedTypes: suggestTypes(q.tokens),
			}
		},
	},
}

// Classify determines the query intent. It is deterministic, performs no
// I/O, and always returns a result — the worst case is the low-confidence
// exploratory catch-all.
func (c *HeuristicClassifier) Classify(raw string) models.IntentClassification {
	trimmed := strings.TrimSpace(raw)
	q := query{
		raw:    trimmed,
		lower:  strings.ToLower(trimmed),
		tokens: strings.Fields(trimmed),
		terms:  ExtractTerms(trimmed),
	}

	for _, r := range rules {
		if r.match(q) {
			result := r.apply(q)
			c.logger.Debug("classified query", "rule", r.name, "intent", result.Intent, "confidence", result.Confidence)
			return result
		}
	}

	// Unreachable: the exploratory rule always matches.
	return models.IntentClassification{Intent: models.IntentExploratory, Confidence: 0.5, ExtractedTerms: q.terms}
}

// ExtractTerms strips everything but letters, digits, path separators,
// dots and hyphens, splits on whitespace, and drops single-rune tokens.
func ExtractTerms(raw string) []string {
	cleaned := termStripRe.ReplaceAllString(raw, "")
	fields := strings.Fields(cleaned)
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if len([]rune(f)) > 1 {
			terms = append(terms, f)
		}
	}
	return terms
}

func containsAny(lower string, triggers []string) bool {
	for _, t := range triggers {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

// suggestTypes returns candidate types whose names overlap the query
// tokens, in taxonomy order and without duplicates.
func suggestTypes(tokens []string) []models.CandidateType {
	matched := map[models.CandidateType]bool{}
	for _, tok := range tokens {
		if ct, ok := typeNameTokens[strings.ToLower(strings.Trim(tok, ".,!?"))]; ok {
			matched[ct] = true
		}
	}
	if len(matched) == 0 {
		return nil
	}
	out := make([]models.CandidateType, 0, len(matched))
	for _, ct := range models.ValidCandidateTypes {
		if matched[ct] {
			out = append(out, ct)
		}
	}
	return out
}
