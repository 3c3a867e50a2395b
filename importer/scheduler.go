// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package importer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Worker pool bounds. The islands feed is by far the heaviest export,
// so that mode runs with fewer concurrent worlds.
const (
	DefaultWorkers = 5
	IslandsWorkers = 3
)

// Scheduler fans the active worlds out over a bounded worker pool, one
// Importer per world. Worlds are independent: no cross-world ordering
// exists and one world's failure never blocks another or the batch.
type Scheduler struct {
	feeds   FeedSource
	store   Store
	logger  *slog.Logger
	workers int // 0 = per-mode default
}

// NewScheduler returns a Scheduler. workers 0 selects the per-mode
// default pool size. A nil logger falls back to slog.Default().
func NewScheduler(feeds FeedSource, st Store, workers int, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{feeds: feeds, store: st, logger: logger, workers: workers}
}

// Result reports which worlds completed and which failed. Run only
// returns once every world has been attempted.
type Result struct {
	Succeeded []string
	Failed    []string
}

// Run imports every active world in the given mode. World discovery
// failure is the only error Run itself returns; per-world failures are
// logged, counted in the Result and otherwise swallowed so a free
// worker always moves on to the next queued world.
func (s *Scheduler) Run(ctx context.Context, mode Mode) (Result, error) {
	worlds, err := s.store.ActiveWorlds(ctx)
	if err != nil {
		return Result{}, err
	}

	workers := s.workers
	if workers <= 0 {
		workers = DefaultWorkers
		if mode == ModeIslands {
			workers = IslandsWorkers
		}
	}

	s.logger.Info("import batch starting",
		"mode", mode, "worlds", len(worlds), "workers", workers)
	start := time.Now()

	var (
		mu  sync.Mutex
		res Result
	)
	g := new(errgroup.Group)
	g.SetLimit(workers)
	for _, world := range worlds {
		world := world
		g.Go(func() error {
			im := New(world, s.feeds, s.store, s.logger)
			if err := im.Run(ctx, mode); err != nil {
				s.logger.Error("world import failed",
					"mode", mode, "world", world, "error", err)
				mu.Lock()
				res.Failed = append(res.Failed, world)
				mu.Unlock()
				return nil
			}
			mu.Lock()
			res.Succeeded = append(res.Succeeded, world)
			mu.Unlock()
			return nil
		})
	}
	// Workers never return errors; Wait is purely the completion join.
	_ = g.Wait()

	s.logger.Info("import batch complete",
		"mode", mode,
		"succeeded", len(res.Succeeded),
		"failed", len(res.Failed),
		"elapsed", time.Since(start))
	return res, nil
}
