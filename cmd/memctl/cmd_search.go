package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func searchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search memories with intent-weighted ranking",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			engine, err := newEngine(logger)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			resp, err := engine.Search(ctx, args[0], limit)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			fmt.Printf("intent=%s confidence=%.2f source=%s freshness=%s\n",
				resp.Classification.Intent, resp.Classification.Confidence, resp.Source, resp.Freshness)

			for i := range resp.Results {
				r := &resp.Results[i]
				fmt.Printf("[%d] (%.4f) %s: %s\n", i+1, r.Score, r.Record.Key, truncate(r.Record.Content, 120))
			}
			if len(resp.Results) == 0 {
				fmt.Println("No results found.")
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "max results")
	return cmd
}
