// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package importer

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/briantanner/GrepInformant-sub000/delta"
	"github.com/briantanner/GrepInformant-sub000/model"
	"github.com/briantanner/GrepInformant-sub000/store"
)

// hourlyStages is the full reconciliation pipeline: fetch everything,
// diff against the stored snapshot, soft-delete the vanished, write
// the fresh state back and append the delta rows.
func (im *Importer) hourlyStages() []stage {
	return []stage{
		{"fetch", im.fetchAll},
		{"load snapshots", im.loadSnapshots},
		{"member changes", im.memberChanges},
		{"mark deletions", im.markDeletions},
		{"upsert entities", im.upsertEntities},
		{"upsert conquers", im.upsertConquers},
		{"insert player updates", im.insertPlayerUpdates},
		{"insert alliance updates", im.insertAllianceUpdates},
		{"advance watermark", im.advanceHourlyWatermark},
	}
}

// fetchAll retrieves the four feeds of one world concurrently. The
// enriched player/alliance snapshots each fan out into their own three
// sub-fetches.
func (im *Importer) fetchAll(ctx context.Context, r *run) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		r.players, err = im.feeds.FullPlayers(ctx, r.world)
		return err
	})
	g.Go(func() (err error) {
		r.alliances, err = im.feeds.FullAlliances(ctx, r.world)
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

func (im *Importer) loadSnapshots(ctx context.Context, r *run) error {
	var err error
	if r.storedPlayers, err = im.store.Players(ctx, r.world); err != nil {
		return err
	}
	if r.storedAlliances, err = im.store.Alliances(ctx, r.world); err != nil {
		return err
	}
	r.storedTowns, err = im.store.Towns(ctx, r.world)
	return err
}

func (im *Importer) memberChanges(ctx context.Context, r *run) error {
	changes := delta.MemberChanges(r.players, r.storedPlayers,
		alliancesByID(r.alliances), r.storedAlliances, r.now)
	return im.store.InsertMemberChanges(ctx, changes)
}

// markDeletions soft-deletes every stored id absent from the fresh
// fetch, per entity table. Empty difference sets are no-ops. A fully
// empty fresh set means the feed degraded to "no data" this cycle, not
// that every entity vanished, so that table's marking is skipped.
func (im *Importer) markDeletions(ctx context.Context, r *run) error {
	if len(r.alliances) > 0 {
		if err := im.store.MarkDeleted(ctx, "alliances", r.world,
			delta.MissingIDs(r.storedAlliances, allianceIDSet(r.alliances))); err != nil {
			return err
		}
	}
	if len(r.players) > 0 {
		if err := im.store.MarkDeleted(ctx, "players", r.world,
			delta.MissingIDs(r.storedPlayers, playerIDSet(r.players))); err != nil {
			return err
		}
	}
	if len(r.towns) == 0 {
		return nil
	}
	return im.store.MarkDeleted(ctx, "towns", r.world,
		delta.MissingIDs(r.storedTowns, townIDSet(r.towns)))
}

func (im *Importer) upsertEntities(ctx context.Context, r *run) error {
	if err := im.store.UpsertPlayers(ctx, r.world, r.players); err != nil {
		return err
	}
	if err := im.store.UpsertAlliances(ctx, r.world, r.alliances); err != nil {
		return err
	}
	return im.store.UpsertTowns(ctx, r.world, r.towns)
}

// upsertConquers writes the conquest events at or after the newest
// stored conquest time, with actor names denormalized from the fresh
// snapshots, then backfills names on stored rows that still miss any.
//
// The cutoff is inclusive: a second can hold several conquests and an
// earlier run may have stored only some of them, so events exactly at
// the stored maximum must be resubmitted. The merge on (world, time,
// town) makes the resubmission a no-op for rows already present. An
// event the feed first publishes with a timestamp strictly below the
// stored maximum is still skipped; only dropping the cutoff entirely
// would cover that, at the cost of replaying the full feed history
// every hour.
func (im *Importer) upsertConquers(ctx context.Context, r *run) error {
	last, err := im.store.LastConquerTime(ctx, r.world)
	if err != nil {
		return err
	}

	resolve := newNameResolver(r)
	var fresh []model.Conquer
	for _, c := range r.conquers {
		if !c.Time.Before(last) {
			fresh = append(fresh, resolve.conquer(c))
		}
	}
	if err := im.store.UpsertConquers(ctx, r.world, fresh); err != nil {
		return err
	}
	return im.backfillConquerNames(ctx, r, resolve)
}

func (im *Importer) insertPlayerUpdates(ctx context.Context, r *run) error {
	return im.store.InsertPlayerUpdates(ctx, delta.Players(r.players, r.storedPlayers, r.now))
}

func (im *Importer) insertAllianceUpdates(ctx context.Context, r *run) error {
	return im.store.InsertAllianceUpdates(ctx, delta.Alliances(r.alliances, r.storedAlliances, r.now))
}

func (im *Importer) advanceHourlyWatermark(ctx context.Context, r *run) error {
	return im.store.SetWatermark(ctx, store.WatermarkHourly, r.now)
}

// backfillConquerNames fills empty name columns on stored conquest
// rows from the snapshots of this run. A row that still cannot be
// resolved just stays empty until its actors show up again.
func (im *Importer) backfillConquerNames(ctx context.Context, r *run, resolve *nameResolver) error {
	pending, err := im.store.ConquersNeedingNames(ctx, r.world)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}
	for i := range pending {
		pending[i] = resolve.conquer(pending[i])
	}
	return im.store.FillConquerNames(ctx, pending)
}

// nameResolver denormalizes conquest actor names from one run's
// snapshots, preferring the fresh fetch and falling back to the stored
// one for actors that have since vanished. Unresolvable actors
// (including id 0) stay empty for a later backfill.
type nameResolver struct {
	towns           map[int]model.Town
	players         map[int]model.Player
	alliances       map[int]model.Alliance
	storedTowns     map[int]model.Town
	storedPlayers   map[int]model.Player
	storedAlliances map[int]model.Alliance
}

func newNameResolver(r *run) *nameResolver {
	return &nameResolver{
		towns:           townsByID(r.towns),
		players:         playersByID(r.players),
		alliances:       alliancesByID(r.alliances),
		storedTowns:     r.storedTowns,
		storedPlayers:   r.storedPlayers,
		storedAlliances: r.storedAlliances,
	}
}

func (nr *nameResolver) conquer(c model.Conquer) model.Conquer {
	c.TownName = nr.townName(c.Town)
	c.NewPlayerName = nr.playerName(c.NewPlayer)
	c.OldPlayerName = nr.playerName(c.OldPlayer)
	c.NewAllyName = nr.allianceName(c.NewAlly)
	c.OldAllyName = nr.allianceName(c.OldAlly)
	return c
}

func (nr *nameResolver) townName(id int) string {
	if t, ok := nr.towns[id]; ok {
		return t.Name
	}
	if t, ok := nr.storedTowns[id]; ok {
		return t.Name
	}
	return ""
}

func (nr *nameResolver) playerName(id int) string {
	if p, ok := nr.players[id]; ok {
		return p.Name
	}
	if p, ok := nr.storedPlayers[id]; ok {
		return p.Name
	}
	return ""
}

func (nr *nameResolver) allianceName(id int) string {
	if a, ok := nr.alliances[id]; ok {
		return a.Name
	}
	if a, ok := nr.storedAlliances[id]; ok {
		return a.Name
	}
	return ""
}

func townsByID(towns []model.Town) map[int]model.Town {
	m := make(map[int]model.Town, len(towns))
	for _, t := range towns {
		m[t.ID] = t
	}
	return m
}

func playersByID(players []model.Player) map[int]model.Player {
	m := make(map[int]model.Player, len(players))
	for _, p := range players {
		m[p.ID] = p
	}
	return m
}

func alliancesByID(alliances []model.Alliance) map[int]model.Alliance {
	m := make(map[int]model.Alliance, len(alliances))
	for _, a := range alliances {
		m[a.ID] = a
	}
	return m
}

func playerIDSet(players []model.Player) map[int]struct{} {
	s := make(map[int]struct{}, len(players))
	for _, p := range players {
		s[p.ID] = struct{}{}
	}
	return s
}

func allianceIDSet(alliances []model.Alliance) map[int]struct{} {
	s := make(map[int]struct{}, len(alliances))
	for _, a := range alliances {
		s[a.ID] = struct{}{}
	}
	return s
}

func townIDSet(towns []model.Town) map[int]struct{} {
	s := make(map[int]struct{}, len(towns))
	for _, t := range towns {
		s[t.ID] = struct{}{}
	}
	return s
}
