package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/refract/internal/cache"
	"github.com/conneroisu/refract/internal/config"
	"github.com/conneroisu/refract/internal/logging"
	"github.com/conneroisu/refract/internal/transform"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the transform cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show transform cache statistics",
	RunE:  runCacheStats,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all cached transform results",
	RunE:  runCacheClear,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}

func openStore(cmd *cobra.Command) (*cache.Store, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:  logging.ParseLevel(cfg.LogLevel),
		Format: cfg.LogFormat,
		Output: cmd.ErrOrStderr(),
	})

	store := cache.NewStore(logger)
	transformer := transform.NewExecTransformer(cfg.Transform.Command, cfg.Transform.Args)
	if err := store.Initialize(context.Background(), cfg.Root, cfg.Cache.Dir, transformer.Version()); err != nil {
		return nil, nil, fmt.Errorf("opening cache: %w", err)
	}
	return store, cfg, nil
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	store, cfg, err := openStore(cmd)
	if err != nil {
		return err
	}

	stats := store.GetStats()
	out := struct {
		Dir     string `json:"dir"`
		Entries int    `json:"entries"`
	}{
		Dir:     cfg.CacheDir(),
		Entries: stats.Entries,
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	store, cfg, err := openStore(cmd)
	if err != nil {
		return err
	}
	if err := store.Clear(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Cleared transform cache at %s\n", cfg.CacheDir())
	return nil
}
