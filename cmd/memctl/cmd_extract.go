package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/memctl/memctl/internal/extract"
	"github.com/memctl/memctl/internal/models"
)

func extractCmd() *cobra.Command {
	var (
		userMsg      string
		assistantMsg string
		store        bool
		useLLM       bool
	)

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Propose memory candidates from a conversation turn",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			if userMsg == "" && assistantMsg == "" {
				return fmt.Errorf("extract: at least one of --user or --assistant is required")
			}

			engine, err := newEngine(logger)
			if err != nil {
				return fmt.Errorf("extract: %w", err)
			}

			in := extract.Input{UserMessage: userMsg, AssistantMessage: assistantMsg}
			extractor := newExtractor(ctx, useLLM, logger)

			result, err := engine.ExtractAndStore(ctx, extractor, in, store)
			if err != nil {
				return fmt.Errorf("extract: %w", err)
			}

			for i, c := range result.Candidates {
				fmt.Printf("[%d] (%s, %.2f) %s\n", i+1, c.Type, c.Confidence, truncate(c.Text, 110))
			}
			if len(result.Candidates) == 0 {
				fmt.Println("No candidates found.")
			}
			if store {
				fmt.Printf("Stored %d, queued %d.\n", result.Stored, result.Queued)
			}
			if result.Warning != "" {
				fmt.Println("Warning:", result.Warning)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&userMsg, "user", "", "user message text")
	cmd.Flags().StringVar(&assistantMsg, "assistant", "", "assistant message text")
	cmd.Flags().BoolVar(&store, "store", false, "store admitted candidates through the write path")
	cmd.Flags().BoolVar(&useLLM, "llm", false, "refine extraction with Claude (requires claude.api_key)")
	return cmd
}

// newExtractor picks the transcript extractor: the heuristic rules by
// default, or Claude-refined extraction when requested and configured.
func newExtractor(ctx context.Context, useLLM bool, logger *slog.Logger) extract.Extractor {
	heuristic := extract.NewExtractor(logger)
	if !useLLM || cfg.Claude.APIKey == "" {
		if useLLM {
			logger.Warn("extract: claude.api_key not configured, using heuristic extractor")
		}
		return heuristic
	}
	return &llmExtractor{
		ctx:       ctx,
		claude:    extract.NewClaudeExtractor(cfg.Claude.APIKey, cfg.Claude.Model, logger),
		heuristic: heuristic,
		logger:    logger,
	}
}

// llmExtractor adapts the Claude extractor to the Extractor interface,
// degrading silently to the heuristic rules on API failure.
type llmExtractor struct {
	ctx       context.Context
	claude    *extract.ClaudeExtractor
	heuristic *extract.HeuristicExtractor
	logger    *slog.Logger
}

func (l *llmExtractor) Extract(userMessage, assistantMessage string) []models.CandidateMemory {
	candidates, err := l.claude.Extract(l.ctx, userMessage, assistantMessage)
	if err != nil {
		l.logger.Warn("extract: Claude unavailable, using heuristic rules", "error", err)
		return l.heuristic.Extract(userMessage, assistantMessage)
	}
	return candidates
}
