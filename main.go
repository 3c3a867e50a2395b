// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

// grepinformant imports the per-world statistics feeds of the game
// service into the tracker database. One invocation runs one mode
// (hourly, daily, islands or cleanup) across every active world and
// exits.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/briantanner/GrepInformant-sub000/feed"
	"github.com/briantanner/GrepInformant-sub000/importer"
	"github.com/briantanner/GrepInformant-sub000/store"
)

type config struct {
	DatabaseURL string
	FeedHost    string
	Workers     int // 0 = per-mode default
}

func loadConfig() (config, error) {
	cfg := config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		FeedHost:    os.Getenv("FEED_HOST"),
	}
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.FeedHost == "" {
		cfg.FeedHost = "grepolis.com"
	}
	if v := os.Getenv("IMPORT_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return cfg, fmt.Errorf("IMPORT_WORKERS must be a positive integer, got %q", v)
		}
		cfg.Workers = n
	}
	return cfg, nil
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	root := &cobra.Command{
		Use:           "grepinformant",
		Short:         "Import game world statistics feeds into the tracker database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	modes := []struct {
		mode  importer.Mode
		short string
	}{
		{importer.ModeHourly, "Full reconciliation: fetch, diff, soft-delete, upsert, delta rows"},
		{importer.ModeDaily, "Roll hourly deltas up into daily rows and purge aged history"},
		{importer.ModeIslands, "Replace the island snapshots (heavy feed, smaller worker pool)"},
		{importer.ModeCleanup, "Soft-delete vanished entities and purge aged history, no state writeback"},
	}
	for _, m := range modes {
		mode := m.mode
		root.AddCommand(&cobra.Command{
			Use:   string(mode),
			Short: m.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runImport(cmd.Context(), mode, logger)
			},
		})
	}

	if err := root.Execute(); err != nil {
		logger.Error("import run failed", "error", err)
		os.Exit(1)
	}
}

func runImport(ctx context.Context, mode importer.Mode, logger *slog.Logger) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	gateway := store.New(pool, logger)
	if err := gateway.InitSchema(ctx); err != nil {
		return fmt.Errorf("initialize schema: %w", err)
	}

	feeds := feed.NewClient(cfg.FeedHost, logger)
	scheduler := importer.NewScheduler(feeds, gateway, cfg.Workers, logger)

	// Per-world failures are already logged and counted by the
	// scheduler; a batch with failed worlds still exits zero and the
	// next scheduled invocation picks those worlds up again.
	_, err = scheduler.Run(ctx, mode)
	return err
}
