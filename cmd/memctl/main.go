package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/memctl/memctl/internal/config"
	"github.com/memctl/memctl/internal/ftindex"
	"github.com/memctl/memctl/internal/guard"
	"github.com/memctl/memctl/internal/intent"
	"github.com/memctl/memctl/internal/localcache"
	"github.com/memctl/memctl/internal/remote"
	"github.com/memctl/memctl/internal/syncer"
)

var cfg *config.Config

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	rootCmd := &cobra.Command{
		Use:   "memctl",
		Short: "memctl — offline-first project memory for AI agents",
		Long:  "memctl mirrors a project's memory records locally, classifies query intent for ranked retrieval, and buffers writes made while the remote store is unreachable.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return nil
		},
	}

	rootCmd.AddCommand(
		syncCmd(),
		searchCmd(),
		getCmd(),
		listCmd(),
		storeCmd(),
		extractCmd(),
		pendingCmd(),
		indexCmd(),
		classifyCmd(),
		statusCmd(),
		mcpCmd(),
	)

	rootCmd.SetContext(ctx)

	err := rootCmd.Execute()
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if cfg != nil && cfg.Logging.Level == "debug" {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg != nil && cfg.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// newEngine wires the cache, index, remote client, and guard for the
// configured (org, project) pair.
func newEngine(logger *slog.Logger) (*syncer.Engine, error) {
	cache, err := localcache.Open(cfg.Cache.Dir, cfg.Remote.Org, cfg.Remote.Project, cfg.Cache.FreshnessWindow(), logger)
	if err != nil {
		return nil, fmt.Errorf("opening local cache: %w", err)
	}

	index := ftindex.NewManager(cfg.IndexPath(), logger)
	client := remote.NewClient(cfg.Remote.BaseURL, cfg.Remote.Org, cfg.Remote.Project, cfg.Remote.AuthToken, logger)
	limiter := guard.NewRateLimiter(cfg.Limits.SessionWriteCeiling)
	classifier := intent.NewClassifier(logger)

	return syncer.NewEngine(client, cache, index, limiter, classifier, syncer.Options{
		Project:    cfg.Remote.Project,
		PageSize:   cfg.Sync.PageSize,
		MaxRecords: cfg.Sync.MaxRecords,
	}, logger), nil
}

func truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen]) + "..."
	}
	return s
}
