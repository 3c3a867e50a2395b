// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package importer

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/briantanner/GrepInformant-sub000/model"
	"github.com/briantanner/GrepInformant-sub000/store"
)

// dailyStages rolls the hourly delta rows since the lastdaily
// watermark up into one daily row per entity, advances the watermark
// and purges aged history.
func (im *Importer) dailyStages() []stage {
	return []stage{
		{"read watermark", im.readDailyWatermark},
		{"fetch", im.fetchPlayersAlliances},
		{"load update window", im.loadUpdateWindow},
		{"insert alliance daily updates", im.insertDailyAllianceUpdates},
		{"insert player daily updates", im.insertDailyPlayerUpdates},
		{"advance watermark", im.advanceDailyWatermark},
		{"purge", im.purgeAged},
	}
}

func (im *Importer) readDailyWatermark(ctx context.Context, r *run) error {
	var err error
	r.lastDaily, err = im.store.Watermark(ctx, store.WatermarkDaily)
	return err
}

func (im *Importer) fetchPlayersAlliances(ctx context.Context, r *run) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		r.players, err = im.feeds.FullPlayers(ctx, r.world)
		return err
	})
	g.Go(func() (err error) {
		r.alliances, err = im.feeds.FullAlliances(ctx, r.world)
		return err
	})
	return g.Wait()
}

func (im *Importer) loadUpdateWindow(ctx context.Context, r *run) error {
	var err error
	if r.playerWindow, err = im.store.PlayerUpdatesSince(ctx, r.world, r.lastDaily); err != nil {
		return err
	}
	r.allianceWindow, err = im.store.AllianceUpdatesSince(ctx, r.world, r.lastDaily)
	return err
}

func (im *Importer) insertDailyAllianceUpdates(ctx context.Context, r *run) error {
	return im.store.InsertDailyAllianceUpdates(ctx,
		rollupAlliances(r.alliances, r.allianceWindow, r))
}

func (im *Importer) insertDailyPlayerUpdates(ctx context.Context, r *run) error {
	return im.store.InsertDailyPlayerUpdates(ctx,
		rollupPlayers(r.players, r.playerWindow, r))
}

func (im *Importer) advanceDailyWatermark(ctx context.Context, r *run) error {
	return im.store.SetWatermark(ctx, store.WatermarkDaily, r.now)
}

// purgeAged trims the append-only tables to their retention windows.
func (im *Importer) purgeAged(ctx context.Context, r *run) error {
	updateCutoff := r.now.Add(-updateRetention)
	for _, table := range []string{
		"player_updates", "alliance_updates",
		"player_updates_daily", "alliance_updates_daily",
	} {
		if err := im.store.PurgeBefore(ctx, table, r.world, updateCutoff); err != nil {
			return err
		}
	}
	return im.store.PurgeBefore(ctx, "alliance_member_changes", r.world,
		r.now.Add(-memberChangeRetention))
}

// rollupPlayers sums the hourly delta rows in the window per player
// and emits one daily row per player that both appears in the window
// and still exists upstream, carrying the current absolute values.
// Players with no hourly rows in the window are skipped.
func rollupPlayers(fresh []model.Player, window []model.PlayerUpdate, r *run) []model.PlayerUpdate {
	sums := make(map[int]model.PlayerUpdate)
	for _, u := range window {
		s := sums[u.ID]
		s.TownsDelta += u.TownsDelta
		s.PointsDelta += u.PointsDelta
		s.ABPDelta += u.ABPDelta
		s.DBPDelta += u.DBPDelta
		sums[u.ID] = s
	}

	var daily []model.PlayerUpdate
	for _, p := range fresh {
		s, ok := sums[p.ID]
		if !ok {
			continue
		}
		daily = append(daily, model.PlayerUpdate{
			World:       p.World,
			ID:          p.ID,
			Time:        r.now,
			TownsDelta:  s.TownsDelta,
			PointsDelta: s.PointsDelta,
			ABPDelta:    s.ABPDelta,
			DBPDelta:    s.DBPDelta,
			Points:      p.Points,
			Towns:       p.Towns,
			ABP:         p.ABP,
			DBP:         p.DBP,
		})
	}
	return daily
}

// rollupAlliances is rollupPlayers for alliances, members included.
func rollupAlliances(fresh []model.Alliance, window []model.AllianceUpdate, r *run) []model.AllianceUpdate {
	sums := make(map[int]model.AllianceUpdate)
	for _, u := range window {
		s := sums[u.ID]
		s.TownsDelta += u.TownsDelta
		s.PointsDelta += u.PointsDelta
		s.MembersDelta += u.MembersDelta
		s.ABPDelta += u.ABPDelta
		s.DBPDelta += u.DBPDelta
		sums[u.ID] = s
	}

	var daily []model.AllianceUpdate
	for _, a := range fresh {
		s, ok := sums[a.ID]
		if !ok {
			continue
		}
		daily = append(daily, model.AllianceUpdate{
			World:        a.World,
			ID:           a.ID,
			Time:         r.now,
			TownsDelta:   s.TownsDelta,
			PointsDelta:  s.PointsDelta,
			MembersDelta: s.MembersDelta,
			ABPDelta:     s.ABPDelta,
			DBPDelta:     s.DBPDelta,
			Points:       a.Points,
			Towns:        a.Towns,
			Members:      a.Members,
			ABP:          a.ABP,
			DBP:          a.DBP,
		})
	}
	return daily
}
