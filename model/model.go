// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

// Package model holds the entity types shared by the feed, delta and
// store layers. All entities are scoped by a world identifier and are
// only unique within their world.
package model

import "time"

// Player is one row of the players table / players feed.
type Player struct {
	World    string // owning world, e.g. "en134"
	ID       int
	Name     string
	Alliance int // alliance id, 0 = none
	Points   int
	Rank     int
	Towns    int
	ABP      int // accumulated offense (attack battle) points
	DBP      int // accumulated defense battle points
	Deleted  bool
}

// Alliance is one row of the alliances table / alliances feed.
type Alliance struct {
	World   string
	ID      int
	Name    string
	Points  int
	Towns   int
	Members int
	Rank    int
	ABP     int
	DBP     int
	Deleted bool
}

// Town is one row of the towns table / towns feed.
type Town struct {
	World    string
	ID       int
	Player   int // owning player id, 0 = ghost town
	Name     string
	X        int
	Y        int
	IslandNo int
	Points   int
	Deleted  bool
}

// Island is one row of the islands table. Islands are replace-only:
// no soft-delete flag and no delta tracking.
type Island struct {
	World          string
	ID             int
	X              int
	Y              int
	Type           int
	AvailableSpots int
	Plus           int
	Minus          int
}

// Conquer is one town capture event. The natural key is
// (world, time, town); the surrogate id comes from a database
// sequence. The four *Name fields are denormalized snapshots of the
// actors at capture time and are backfilled when empty.
type Conquer struct {
	World         string
	Town          int
	Time          time.Time
	NewPlayer     int
	OldPlayer     int
	NewAlly       int
	OldAlly       int
	Points        int
	TownName      string
	NewPlayerName string
	OldPlayerName string
	NewAllyName   string
	OldAllyName   string
}

// KillPoints is one row of a kill-point feed (offense or defense,
// player or alliance scoped).
type KillPoints struct {
	World  string
	Rank   int
	ID     int
	Points int
}

// PlayerUpdate is one append-only delta row for a player, either
// hourly or rolled up daily. Absolute values are only populated for
// daily rows.
type PlayerUpdate struct {
	World       string
	ID          int
	Time        time.Time
	TownsDelta  int
	PointsDelta int
	ABPDelta    int
	DBPDelta    int

	Points int
	Towns  int
	ABP    int
	DBP    int
}

// AllianceUpdate is one append-only delta row for an alliance.
type AllianceUpdate struct {
	World        string
	ID           int
	Time         time.Time
	TownsDelta   int
	PointsDelta  int
	MembersDelta int
	ABPDelta     int
	DBPDelta     int

	Points  int
	Towns   int
	Members int
	ABP     int
	DBP     int
}

// MemberChange records a player moving between alliances (0 = none).
type MemberChange struct {
	World           string
	Player          int
	PlayerName      string
	Time            time.Time
	OldAlliance     int
	OldAllianceName string
	NewAlliance     int
	NewAllianceName string
}
