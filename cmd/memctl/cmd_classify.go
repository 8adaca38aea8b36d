package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/memctl/memctl/internal/intent"
)

func classifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify [query]",
		Short: "Show the intent classification and ranking weights for a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			classification := intent.NewClassifier(logger).Classify(args[0])
			weights := intent.WeightsFor(classification.Intent)

			out := map[string]any{
				"classification": classification,
				"weights":        weights,
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(out); err != nil {
				return fmt.Errorf("classify: encoding output: %w", err)
			}
			return nil
		},
	}
}
