// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package importer

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// cleanupStages reconciles deletions and retention without writing
// entity state back: vanished entities are soft-deleted, pending
// conquest names are backfilled, aged history is purged.
func (im *Importer) cleanupStages() []stage {
	return []stage{
		{"fetch", im.fetchBase},
		{"load snapshots", im.loadSnapshots},
		{"mark deletions", im.markDeletions},
		{"backfill conquer names", im.cleanupConquerNames},
		{"purge", im.purgeAged},
	}
}

// fetchBase retrieves the base feeds only; cleanup needs id sets and
// names, not kill points.
func (im *Importer) fetchBase(ctx context.Context, r *run) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		r.players, err = im.feeds.Players(ctx, r.world)
		return err
	})
	g.Go(func() (err error) {
		r.alliances, err = im.feeds.Alliances(ctx, r.world)
		return err
	})
	g.Go(func() (err error) {
		r.towns, err = im.feeds.Towns(ctx, r.world)
		return err
	})
	g.Go(func() (err error) {
		r.conquers, err = im.feeds.Conquers(ctx, r.world)
		return err
	})
	return g.Wait()
}

func (im *Importer) cleanupConquerNames(ctx context.Context, r *run) error {
	return im.backfillConquerNames(ctx, r, newNameResolver(r))
}

// islandsStages replaces the island snapshot. Islands carry no deltas
// and no soft-delete flag; the feed is heavy, which is why the
// scheduler runs this mode with fewer workers.
func (im *Importer) islandsStages() []stage {
	return []stage{
		{"fetch islands", im.fetchIslands},
		{"upsert islands", im.upsertIslands},
	}
}

func (im *Importer) fetchIslands(ctx context.Context, r *run) error {
	var err error
	r.islands, err = im.feeds.Islands(ctx, r.world)
	return err
}

func (im *Importer) upsertIslands(ctx context.Context, r *run) error {
	return im.store.UpsertIslands(ctx, r.world, r.islands)
}
