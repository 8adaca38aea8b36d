package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/memctl/memctl/internal/localcache"
)

func pendingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "Inspect and replay writes buffered while offline",
	}
	cmd.AddCommand(pendingListCmd(), pendingReplayCmd(), pendingClearCmd())
	return cmd
}

func newCache() (*localcache.Cache, error) {
	return localcache.Open(cfg.Cache.Dir, cfg.Remote.Org, cfg.Remote.Project, cfg.Cache.FreshnessWindow(), newLogger())
}

func pendingListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the pending-write queue, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := newCache()
			if err != nil {
				return fmt.Errorf("pending list: %w", err)
			}

			writes := cache.PendingWrites()
			if len(writes) == 0 {
				fmt.Println("No pending writes.")
				return nil
			}
			for i, w := range writes {
				fmt.Printf("[%d] %s %s %s (enqueued %s)\n",
					i+1, w.ID, w.Method, w.Path, w.EnqueuedAt.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
}

func pendingReplayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replay",
		Short: "Replay the queue against the remote store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			engine, err := newEngine(logger)
			if err != nil {
				return fmt.Errorf("pending replay: %w", err)
			}

			n, err := engine.Replay(cmd.Context())
			if err != nil {
				// The queue is untouched: replay either clears everything
				// or nothing.
				return fmt.Errorf("pending replay: %w", err)
			}
			fmt.Printf("Replayed %d write(s).\n", n)
			return nil
		},
	}
}

func pendingClearCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Drop the queue without replaying (loses buffered writes)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := newCache()
			if err != nil {
				return fmt.Errorf("pending clear: %w", err)
			}

			n := len(cache.PendingWrites())
			if n == 0 {
				fmt.Println("No pending writes.")
				return nil
			}
			if !force {
				return fmt.Errorf("pending clear: refusing to drop %d unreplayed write(s); use --force or run 'memctl pending replay'", n)
			}
			if err := cache.ClearPendingWrites(); err != nil {
				return fmt.Errorf("pending clear: %w", err)
			}
			fmt.Printf("Dropped %d write(s).\n", n)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "confirm dropping unreplayed writes")
	return cmd
}
