// Package extract proposes memory candidates from conversation transcripts.
// Candidates are proposals only: they still pass capacity admission and the
// ordinary write path before anything is persisted.
package extract

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode"

	"github.com/memctl/memctl/internal/models"
)

// MaxCandidates caps extractor output per pass regardless of how many
// patterns matched, bounding write amplification from a single transcript.
const MaxCandidates = 5

// Extractor proposes memory candidates from one conversation turn.
type Extractor interface {
	Extract(userMessage, assistantMessage string) []models.CandidateMemory
}

// Input is one conversation turn. Either side may be empty.
type Input struct {
	UserMessage      string `json:"user_message"`
	AssistantMessage string `json:"assistant_message"`
}

// HeuristicExtractor matches high-signal linguistic patterns against
// transcript sentences. It never fails: generic capability narration
// matches no rule and yields an empty result, which is the common case.
type HeuristicExtractor struct {
	logger *slog.Logger
}

// NewExtractor creates a heuristic transcript extractor.
func NewExtractor(logger *slog.Logger) *HeuristicExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &HeuristicExtractor{logger: logger}
}

// pathLikeRe detects file-path references, required by the lesson rule so
// that generic "I fixed it" chatter without a concrete location is skipped.
var pathLikeRe = regexp.MustCompile(`\S+/\S+|\b\S+\.(go|ts|tsx|js|jsx|py|rs|java|rb|c|h|cpp|md|ya?ml|json|sql|proto|toml)\b`)

// rule maps one phrasing pattern to a candidate type. Rules are evaluated
// top to bottom per sentence; the first match wins and stronger signals
// sit higher in the table.
type rule struct {
	name        string
	ctype       models.CandidateType
	confidence  float64
	pattern     *regexp.Regexp
	requirePath bool
}

var rules = []rule{
	{
		name:       "prohibition",
		ctype:      models.CandidateConstraint,
		confidence: 0.9,
		pattern:    regexp.MustCompile(`(?i)\b(never|do not|don't|must not|must never|should never|forbidden to)\b`),
	},
	{
		name:       "decision",
		ctype:      models.CandidateDecision,
		confidence: 0.85,
		pattern:    regexp.MustCompile(`(?i)\b((we|i|team) (decided|chose|selected|opted)( to)?( use| go with)?|decided to use|going with|settled on)\b`),
	},
	{
		name:        "fix-narration",
		ctype:       models.CandidateLessonLearned,
		confidence:  0.8,
		pattern:     regexp.MustCompile(`(?i)\b(fixed|resolved|debugged|tracked down|root caused?|turned out)\b`),
		requirePath: true,
	},
	{
		name:       "known-issue",
		ctype:      models.CandidateKnownIssue,
		confidence: 0.8,
		pattern:    regexp.MustCompile(`(?i)\b(workaround for|known (issue|bug|limitation)|is flaky|keeps failing)\b`),
	},
	{
		name:       "idea",
		ctype:      models.CandidateUserIdea,
		confidence: 0.7,
		pattern:    regexp.MustCompile(`(?i)\b(we should (add|build|implement|support|consider)|it would be (nice|great|good) to|nice.to.have)\b`),
	},
}

// Extract scans both sides of a conversation turn and returns at most
// MaxCandidates proposals, earliest and strongest matches first.
func (e *HeuristicExtractor) Extract(userMessage, assistantMessage string) []models.CandidateMemory {
	var out []models.CandidateMemory
	seen := map[string]bool{}

	for _, msg := range []string{userMessage, assistantMessage} {
		if msg == "" {
			continue
		}
		for _, sentence := range splitSentences(msg) {
			if len(out) >= MaxCandidates {
				e.logger.Debug("extract: candidate cap reached", "cap", MaxCandidates)
				return out
			}
			cand, ok := matchSentence(sentence)
			if !ok || seen[cand.Text] {
				continue
			}
			seen[cand.Text] = true
			out = append(out, cand)
		}
	}

	e.logger.Debug("extracted candidates", "count", len(out))
	return out
}

// matchSentence applies the rule table to one sentence; first match wins.
func matchSentence(sentence string) (models.CandidateMemory, bool) {
	for _, r := range rules {
		if !r.pattern.MatchString(sentence) {
			continue
		}
		if r.requirePath && !pathLikeRe.MatchString(sentence) {
			continue
		}
		return models.CandidateMemory{
			Type:       r.ctype,
			Text:       sentence,
			Confidence: r.confidence,
		}, true
	}
	return models.CandidateMemory{}, false
}

// splitSentences breaks text on sentence punctuation and newlines,
// dropping fragments too short to carry a standalone fact. A period only
// ends a sentence when followed by whitespace or end of text, so dotted
// tokens like filenames survive into the sentence.
func splitSentences(text string) []string {
	runes := []rune(text)
	var out []string
	start := 0

	flush := func(end int) {
		s := strings.TrimSpace(string(runes[start:end]))
		if len(s) >= 12 {
			out = append(out, s)
		}
	}

	for i, r := range runes {
		switch r {
		case '!', '?', '\n':
			flush(i)
			start = i + 1
		case '.':
			if i+1 == len(runes) || unicode.IsSpace(runes[i+1]) {
				flush(i)
				start = i + 1
			}
		}
	}
	flush(len(runes))
	return out
}
