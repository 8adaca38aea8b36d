// Package tokenizer provides rough token estimates for fitting recalled
// memories into an agent's context budget.
package tokenizer

import (
	"strings"
)

// EstimateTokens provides a rough token count estimate, blending a
// word-based (~1.3 tokens/word) and char-based (~4 chars/token) heuristic.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	words := len(strings.Fields(text))
	chars := len(text)

	wordEstimate := int(float64(words) * 1.3)
	charEstimate := chars / 4

	return (wordEstimate + charEstimate) / 2
}

// FormatWithBudget joins memory contents with separators until the token
// budget is spent. Returns the formatted block and how many entries fit.
func FormatWithBudget(contents []string, budget int) (string, int) {
	if budget <= 0 || len(contents) == 0 {
		return "", 0
	}

	var builder strings.Builder
	count := 0
	used := 0

	for _, c := range contents {
		tokens := EstimateTokens(c) + 2 // +2 for separator
		if used+tokens > budget {
			break
		}
		if count > 0 {
			builder.WriteString("\n---\n")
		}
		builder.WriteString(c)
		used += tokens
		count++
	}

	return builder.String(), count
}
