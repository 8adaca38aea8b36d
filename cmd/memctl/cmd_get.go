package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func getCmd() *cobra.Command {
	var byPath bool

	cmd := &cobra.Command{
		Use:   "get [key-or-path]",
		Short: "Get a memory by key from the local snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			engine, err := newEngine(logger)
			if err != nil {
				return fmt.Errorf("get: %w", err)
			}

			if byPath {
				result := engine.GetByPath(args[0])
				if result == nil {
					return fmt.Errorf("get: no match for path %q", args[0])
				}
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}

			rec, freshness := engine.Get(args[0])
			if rec == nil {
				return fmt.Errorf("get: memory %q not found in local snapshot", args[0])
			}

			fmt.Printf("%s (priority=%d, freshness=%s, updated=%s)\n%s\n",
				rec.Key, rec.Priority, freshness, rec.UpdatedAt.Format("2006-01-02 15:04"), rec.Content)
			return nil
		},
	}

	cmd.Flags().BoolVar(&byPath, "path", false, "treat the argument as a URL-shaped path (/memories/{key} or /memories?q={term})")
	return cmd
}
