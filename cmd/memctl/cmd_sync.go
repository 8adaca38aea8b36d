package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func syncCmd() *cobra.Command {
	var replayFirst bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Refresh the local snapshot from the remote store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			engine, err := newEngine(logger)
			if err != nil {
				return fmt.Errorf("sync: %w", err)
			}

			if replayFirst {
				n, err := engine.Replay(ctx)
				if err != nil {
					return fmt.Errorf("sync: replaying pending writes: %w", err)
				}
				if n > 0 {
					fmt.Printf("Replayed %d pending write(s).\n", n)
				}
			}

			n, err := engine.Sync(ctx)
			if err != nil {
				return fmt.Errorf("sync: %w", err)
			}

			fmt.Printf("Synced %d record(s) for %s/%s.\n", n, cfg.Remote.Org, cfg.Remote.Project)
			return nil
		},
	}

	cmd.Flags().BoolVar(&replayFirst, "replay", true, "replay pending offline writes before syncing")
	return cmd
}
