package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/memctl/memctl/internal/models"
)

func storeCmd() *cobra.Command {
	var (
		priority int
		tags     []string
	)

	cmd := &cobra.Command{
		Use:   "store [key] [content]",
		Short: "Store a memory record (queued locally when offline)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			engine, err := newEngine(logger)
			if err != nil {
				return fmt.Errorf("store: %w", err)
			}

			rec := models.MemoryRecord{
				Key:      args[0],
				Content:  args[1],
				Priority: priority,
				Tags:     tags,
			}

			result, err := engine.Write(ctx, rec)
			if err != nil {
				return fmt.Errorf("store: %w", err)
			}

			if result.Queued {
				fmt.Printf("Remote unreachable; queued %q for replay.\n", rec.Key)
			} else {
				fmt.Printf("Stored %q.\n", rec.Key)
			}
			if result.Warning != "" {
				fmt.Println("Warning:", result.Warning)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&priority, "priority", 0, "ranking/eviction priority, higher is more important")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "tags for the record (repeatable)")
	return cmd
}
