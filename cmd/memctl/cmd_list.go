package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func listCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the local memory snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			engine, err := newEngine(logger)
			if err != nil {
				return fmt.Errorf("list: %w", err)
			}

			records, freshness := engine.List()
			fmt.Printf("%d record(s), freshness=%s\n", len(records), freshness)
			for i := range records {
				r := &records[i]
				fmt.Printf("%-32s p=%-3d %s\n", r.Key, r.Priority, truncate(r.Content, 90))
			}
			return nil
		},
	}
	return cmd
}
