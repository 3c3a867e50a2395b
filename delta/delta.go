// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

// Package delta diffs a freshly fetched snapshot against the last
// persisted one. It is pure computation: inputs are record slices and
// id-keyed maps, outputs are update rows, membership-change events and
// deletion id sets.
package delta

import (
	"sort"
	"time"

	"github.com/briantanner/GrepInformant-sub000/model"
)

// Players computes one update row per fresh player. When no stored row
// exists the fresh values serve as their own baseline, so a first-ever
// import yields zero deltas rather than spurious ones.
func Players(fresh []model.Player, stored map[int]model.Player, at time.Time) []model.PlayerUpdate {
	updates := make([]model.PlayerUpdate, 0, len(fresh))
	for _, p := range fresh {
		prev, ok := stored[p.ID]
		if !ok {
			prev = p
		}
		updates = append(updates, model.PlayerUpdate{
			World:       p.World,
			ID:          p.ID,
			Time:        at,
			TownsDelta:  p.Towns - prev.Towns,
			PointsDelta: p.Points - prev.Points,
			ABPDelta:    p.ABP - prev.ABP,
			DBPDelta:    p.DBP - prev.DBP,
			Points:      p.Points,
			Towns:       p.Towns,
			ABP:         p.ABP,
			DBP:         p.DBP,
		})
	}
	return updates
}

// Alliances computes one update row per fresh alliance.
//
// The members delta is stored − fresh, the opposite sign of every
// other delta. That matches the long-standing production behavior;
// downstream consumers depend on the sign as-is, so do not flip it
// without auditing them.
func Alliances(fresh []model.Alliance, stored map[int]model.Alliance, at time.Time) []model.AllianceUpdate {
	updates := make([]model.AllianceUpdate, 0, len(fresh))
	for _, a := range fresh {
		prev, ok := stored[a.ID]
		if !ok {
			prev = a
		}
		updates = append(updates, model.AllianceUpdate{
			World:        a.World,
			ID:           a.ID,
			Time:         at,
			TownsDelta:   a.Towns - prev.Towns,
			PointsDelta:  a.Points - prev.Points,
			MembersDelta: prev.Members - a.Members,
			ABPDelta:     a.ABP - prev.ABP,
			DBPDelta:     a.DBP - prev.DBP,
			Points:       a.Points,
			Towns:        a.Towns,
			Members:      a.Members,
			ABP:          a.ABP,
			DBP:          a.DBP,
		})
	}
	return updates
}

// MemberChanges emits one event per player whose alliance id differs
// between the fresh and stored snapshots. Players without a stored row
// emit nothing. Unknown alliance ids (including 0 = none) resolve to
// an empty name.
func MemberChanges(
	fresh []model.Player,
	stored map[int]model.Player,
	freshAlliances map[int]model.Alliance,
	storedAlliances map[int]model.Alliance,
	at time.Time,
) []model.MemberChange {
	var changes []model.MemberChange
	for _, p := range fresh {
		prev, ok := stored[p.ID]
		if !ok || prev.Alliance == p.Alliance {
			continue
		}
		changes = append(changes, model.MemberChange{
			World:           p.World,
			Player:          p.ID,
			PlayerName:      p.Name,
			Time:            at,
			OldAlliance:     prev.Alliance,
			OldAllianceName: storedAlliances[prev.Alliance].Name,
			NewAlliance:     p.Alliance,
			NewAllianceName: freshAlliances[p.Alliance].Name,
		})
	}
	return changes
}

// MissingIDs returns the stored ids absent from the fresh id set, in
// ascending order. These are the rows to soft-delete. Stored maps are
// loaded without already-deleted rows, which keeps soft-deletion
// monotonic: a deleted id never reappears here.
func MissingIDs[T any](stored map[int]T, fresh map[int]struct{}) []int {
	var ids []int
	for id := range stored {
		if _, ok := fresh[id]; !ok {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids
}
