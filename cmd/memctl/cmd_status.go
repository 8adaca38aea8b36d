package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report cache freshness, pending writes, index, and capacity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			engine, err := newEngine(logger)
			if err != nil {
				return fmt.Errorf("status: %w", err)
			}

			st := engine.Status(cmd.Context())

			fmt.Printf("project:   %s/%s\n", cfg.Remote.Org, cfg.Remote.Project)
			fmt.Printf("freshness: %s\n", st.Freshness)
			if st.LastSyncedAt != nil {
				fmt.Printf("synced:    %s\n", st.LastSyncedAt.Format("2006-01-02 15:04:05"))
			} else {
				fmt.Println("synced:    never")
			}
			fmt.Printf("records:   %d\n", st.Records)
			fmt.Printf("pending:   %d\n", st.PendingCount)
			fmt.Printf("index:     %v\n", st.IndexReady)
			fmt.Printf("capacity:  %s\n", st.Capacity)
			if st.SessionNote != "" {
				fmt.Printf("note:      %s\n", st.SessionNote)
			}
			return nil
		},
	}
}
