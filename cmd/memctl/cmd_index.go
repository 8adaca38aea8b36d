package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/memctl/memctl/internal/ftindex"
)

func indexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Manage the local full-text shadow index",
	}
	cmd.AddCommand(indexRebuildCmd(), indexStatusCmd())
	return cmd
}

func indexRebuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild the index from the local snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			cache, err := newCache()
			if err != nil {
				return fmt.Errorf("index rebuild: %w", err)
			}

			index := ftindex.NewManager(cfg.IndexPath(), logger)
			index.EnsureIndex()
			defer func() { _ = index.Close() }()

			records := cache.List()
			if err := index.Rebuild(cfg.Remote.Project, records); err != nil {
				return fmt.Errorf("index rebuild: index engine unavailable")
			}
			fmt.Printf("Rebuilt index from %d record(s).\n", len(records))
			return nil
		},
	}
}

func indexStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report whether the index engine is available",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			index := ftindex.NewManager(cfg.IndexPath(), logger)
			index.EnsureIndex()
			defer func() { _ = index.Close() }()

			if index.Ready() {
				fmt.Printf("Index available at %s.\n", cfg.IndexPath())
			} else {
				fmt.Println("Index unavailable; search falls back to the plain cache scan.")
			}
			return nil
		},
	}
}
