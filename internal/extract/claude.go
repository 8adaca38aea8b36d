package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/memctl/memctl/internal/models"
	"github.com/memctl/memctl/pkg/xmlutil"
)

// extractionPromptTemplate is the base prompt; user/assistant content is
// injected via XML tags to prevent prompt injection attacks.
const extractionPromptTemplate = `You are a memory extraction system. Analyze the conversation and extract discrete, project-specific memories.

For each memory, provide:
- text: The memory text (concise, standalone, factual)
- type: One of "constraints", "lessons_learned", "decisions", "known_issues", "user_ideas"
  - constraints: Hard rules and prohibitions for this project
  - lessons_learned: Root causes and fixes tied to concrete code
  - decisions: Technology or design choices that were made
  - known_issues: Bugs, limitations, and their workarounds
  - user_ideas: Proposed improvements not yet acted on
- confidence: 0.0-1.0 how confident you are this is a real memory

Generic tool-usage narration is not a memory. Return JSON array; return [] when nothing qualifies.

<user_message>%s</user_message>

<assistant_message>%s</assistant_message>

Extract memories as JSON array:`

// ClaudeExtractor refines candidate extraction with Claude when an API key
// is configured. It is optional: the heuristic extractor remains the
// default, and both feed the identical admission path.
type ClaudeExtractor struct {
	client *anthropic.Client
	model  string
	logger *slog.Logger
}

// NewClaudeExtractor creates a Claude-backed extractor.
func NewClaudeExtractor(apiKey, model string, logger *slog.Logger) *ClaudeExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &ClaudeExtractor{
		client: &client,
		model:  model,
		logger: logger,
	}
}

// Extract asks Claude for candidates from the conversation turn. Output is
// filtered to the closed taxonomy and capped at MaxCandidates like the
// heuristic path.
func (c *ClaudeExtractor) Extract(ctx context.Context, userMessage, assistantMessage string) ([]models.CandidateMemory, error) {
	prompt := fmt.Sprintf(extractionPromptTemplate, xmlutil.Escape(userMessage), xmlutil.Escape(assistantMessage))

	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: 1024,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewTextBlock(prompt),
			),
		},
		System: []anthropic.TextBlockParam{
			{Text: "You are a precise memory extraction system. Output only valid JSON."},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("calling Claude API: %w", err)
	}

	var responseText string
	for i := range resp.Content {
		if resp.Content[i].Type == "text" {
			responseText = resp.Content[i].Text
			break
		}
	}
	if responseText == "" {
		return nil, fmt.Errorf("empty response from Claude")
	}

	var raw []models.CandidateMemory
	if err := json.Unmarshal([]byte(responseText), &raw); err != nil {
		return nil, fmt.Errorf("parsing extraction response: %w (raw: %s)", err, responseText)
	}

	out := make([]models.CandidateMemory, 0, len(raw))
	for _, cand := range raw {
		if !cand.Type.IsValid() {
			c.logger.Warn("claude extraction: unknown candidate type, dropping", "type", cand.Type)
			continue
		}
		if cand.Confidence < 0.5 {
			continue
		}
		out = append(out, cand)
		if len(out) >= MaxCandidates {
			break
		}
	}

	c.logger.Info("claude extraction complete", "raw", len(raw), "kept", len(out))
	return out, nil
}
