// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/briantanner/GrepInformant-sub000/model"
)

// Tables that carry the soft-delete flag. MarkDeleted refuses anything
// else so feed data can never steer an identifier.
var softDeleteTables = map[string]bool{
	"players":   true,
	"alliances": true,
	"towns":     true,
}

// Watermark columns of the settings row.
const (
	WatermarkDaily  = "lastdaily"
	WatermarkHourly = "lasthourly"
)

var watermarkColumns = map[string]bool{
	WatermarkDaily:  true,
	WatermarkHourly: true,
}

// Purgeable append-only tables and their time column cutoff.
var purgeTables = map[string]bool{
	"player_updates":          true,
	"alliance_updates":        true,
	"player_updates_daily":    true,
	"alliance_updates_daily":  true,
	"alliance_member_changes": true,
}

// ActiveWorlds returns the worlds the scheduler should import.
func (g *Gateway) ActiveWorlds(ctx context.Context) ([]string, error) {
	rows, err := g.Select(ctx, SelectSpec{
		Table:   "worlds",
		Columns: []string{"world"},
		Where:   "active",
		OrderBy: "world",
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var worlds []string
	for rows.Next() {
		var w string
		if err := rows.Scan(&w); err != nil {
			return nil, &QueryError{Stmt: "scan worlds", Err: err}
		}
		worlds = append(worlds, w)
	}
	if err := rows.Err(); err != nil {
		return nil, &QueryError{Stmt: "read worlds", Err: err}
	}
	return worlds, nil
}

// Players loads the live (non-deleted) player snapshot of one world,
// keyed by id. Deleted rows stay out so they never re-enter diffing.
func (g *Gateway) Players(ctx context.Context, world string) (map[int]model.Player, error) {
	rows, err := g.Select(ctx, SelectSpec{
		Table:   "players",
		Columns: []string{"id", "name", "alliance", "points", "rank", "towns", "abp", "dbp"},
		Where:   "world = $1 AND NOT deleted",
		Args:    []any{world},
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	players := make(map[int]model.Player)
	for rows.Next() {
		p := model.Player{World: world}
		if err := rows.Scan(&p.ID, &p.Name, &p.Alliance, &p.Points, &p.Rank, &p.Towns, &p.ABP, &p.DBP); err != nil {
			return nil, &QueryError{Stmt: "scan players", Err: err}
		}
		players[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, &QueryError{Stmt: "read players", Err: err}
	}
	return players, nil
}

// Alliances loads the live alliance snapshot of one world, keyed by id.
func (g *Gateway) Alliances(ctx context.Context, world string) (map[int]model.Alliance, error) {
	rows, err := g.Select(ctx, SelectSpec{
		Table:   "alliances",
		Columns: []string{"id", "name", "points", "towns", "members", "rank", "abp", "dbp"},
		Where:   "world = $1 AND NOT deleted",
		Args:    []any{world},
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	alliances := make(map[int]model.Alliance)
	for rows.Next() {
		a := model.Alliance{World: world}
		if err := rows.Scan(&a.ID, &a.Name, &a.Points, &a.Towns, &a.Members, &a.Rank, &a.ABP, &a.DBP); err != nil {
			return nil, &QueryError{Stmt: "scan alliances", Err: err}
		}
		alliances[a.ID] = a
	}
	if err := rows.Err(); err != nil {
		return nil, &QueryError{Stmt: "read alliances", Err: err}
	}
	return alliances, nil
}

// Towns loads the live town snapshot of one world, keyed by id.
func (g *Gateway) Towns(ctx context.Context, world string) (map[int]model.Town, error) {
	rows, err := g.Select(ctx, SelectSpec{
		Table:   "towns",
		Columns: []string{"id", "player", "name", "x", "y", "island_no", "points"},
		Where:   "world = $1 AND NOT deleted",
		Args:    []any{world},
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	towns := make(map[int]model.Town)
	for rows.Next() {
		t := model.Town{World: world}
		if err := rows.Scan(&t.ID, &t.Player, &t.Name, &t.X, &t.Y, &t.IslandNo, &t.Points); err != nil {
			return nil, &QueryError{Stmt: "scan towns", Err: err}
		}
		towns[t.ID] = t
	}
	if err := rows.Err(); err != nil {
		return nil, &QueryError{Stmt: "read towns", Err: err}
	}
	return towns, nil
}

// MarkDeleted soft-deletes the given ids in one of the entity tables.
// An empty id set is a no-op, not an error.
func (g *Gateway) MarkDeleted(ctx context.Context, table, world string, ids []int) error {
	if !softDeleteTables[table] {
		return &QueryError{Stmt: "mark deleted", Err: fmt.Errorf("table %q has no deleted flag", table)}
	}
	if len(ids) == 0 {
		return nil
	}
	sql := fmt.Sprintf("UPDATE %s SET deleted = TRUE WHERE world = $1 AND id = ANY($2)", table)
	return g.Exec(ctx, sql, world, ids)
}

// UpsertPlayers writes a fresh player snapshot batch for one world.
func (g *Gateway) UpsertPlayers(ctx context.Context, world string, players []model.Player) error {
	rows := make([]Row, 0, len(players))
	for _, p := range players {
		rows = append(rows, Row{
			Text(world), Int(p.ID), Text(p.Name), Int(p.Alliance), Int(p.Points),
			Int(p.Rank), Int(p.Towns), Int(p.ABP), Int(p.DBP), Bool(false),
		})
	}
	return g.Upsert(ctx, UpsertSpec{
		Table:   "players",
		World:   world,
		Key:     []string{"world", "id"},
		Columns: []string{"world", "id", "name", "alliance", "points", "rank", "towns", "abp", "dbp", "deleted"},
		Rows:    rows,
	})
}

// UpsertAlliances writes a fresh alliance snapshot batch for one world.
func (g *Gateway) UpsertAlliances(ctx context.Context, world string, alliances []model.Alliance) error {
	rows := make([]Row, 0, len(alliances))
	for _, a := range alliances {
		rows = append(rows, Row{
			Text(world), Int(a.ID), Text(a.Name), Int(a.Points), Int(a.Towns),
			Int(a.Members), Int(a.Rank), Int(a.ABP), Int(a.DBP), Bool(false),
		})
	}
	return g.Upsert(ctx, UpsertSpec{
		Table:   "alliances",
		World:   world,
		Key:     []string{"world", "id"},
		Columns: []string{"world", "id", "name", "points", "towns", "members", "rank", "abp", "dbp", "deleted"},
		Rows:    rows,
	})
}

// UpsertTowns writes a fresh town snapshot batch for one world.
func (g *Gateway) UpsertTowns(ctx context.Context, world string, towns []model.Town) error {
	rows := make([]Row, 0, len(towns))
	for _, t := range towns {
		rows = append(rows, Row{
			Text(world), Int(t.ID), Int(t.Player), Text(t.Name), Int(t.X),
			Int(t.Y), Int(t.IslandNo), Int(t.Points), Bool(false),
		})
	}
	return g.Upsert(ctx, UpsertSpec{
		Table:   "towns",
		World:   world,
		Key:     []string{"world", "id"},
		Columns: []string{"world", "id", "player", "name", "x", "y", "island_no", "points", "deleted"},
		Rows:    rows,
	})
}

// UpsertIslands replaces the island snapshot batch for one world.
func (g *Gateway) UpsertIslands(ctx context.Context, world string, islands []model.Island) error {
	rows := make([]Row, 0, len(islands))
	for _, i := range islands {
		rows = append(rows, Row{
			Text(world), Int(i.ID), Int(i.X), Int(i.Y), Int(i.Type),
			Int(i.AvailableSpots), Int(i.Plus), Int(i.Minus),
		})
	}
	return g.Upsert(ctx, UpsertSpec{
		Table:   "islands",
		World:   world,
		Key:     []string{"world", "id"},
		Columns: []string{"world", "id", "x", "y", "island_type", "available_spots", "plus", "minus"},
		Rows:    rows,
	})
}

// UpsertConquers writes conquest events. They merge on the natural key
// (world, time, town); the surrogate id comes from the sequence and is
// never part of the update arm. Name columns only ever move from empty
// to filled.
func (g *Gateway) UpsertConquers(ctx context.Context, world string, conquers []model.Conquer) error {
	rows := make([]Row, 0, len(conquers))
	for _, c := range conquers {
		rows = append(rows, Row{
			Raw("nextval('conquers_id_seq')"),
			Text(world), Int(c.Town), Time(c.Time),
			Int(c.NewPlayer), Int(c.OldPlayer), Int(c.NewAlly), Int(c.OldAlly), Int(c.Points),
			Text(c.TownName), Text(c.NewPlayerName), Text(c.OldPlayerName),
			Text(c.NewAllyName), Text(c.OldAllyName),
		})
	}
	return g.Upsert(ctx, UpsertSpec{
		Table: "conquers",
		World: world,
		Key:   []string{"world", "time", "town"},
		Columns: []string{
			"id", "world", "town", "time",
			"new_player", "old_player", "new_ally", "old_ally", "points",
			"town_name", "new_player_name", "old_player_name", "new_ally_name", "old_ally_name",
		},
		InsertOnly: []string{"id"},
		PreserveOnEmpty: []string{
			"town_name", "new_player_name", "old_player_name", "new_ally_name", "old_ally_name",
		},
		Rows: rows,
	})
}

// LastConquerTime returns the newest stored conquest time for a world,
// or the zero time when none exist.
func (g *Gateway) LastConquerTime(ctx context.Context, world string) (time.Time, error) {
	var last *time.Time
	err := g.pool.QueryRow(ctx,
		"SELECT MAX(time) FROM conquers WHERE world = $1", world).Scan(&last)
	if err != nil {
		return time.Time{}, &QueryError{Stmt: "last conquer time", Err: err}
	}
	if last == nil {
		return time.Time{}, nil
	}
	return *last, nil
}

// ConquersNeedingNames returns stored conquest rows with at least one
// empty denormalized name column. Empty means needs-backfill.
func (g *Gateway) ConquersNeedingNames(ctx context.Context, world string) ([]model.Conquer, error) {
	rows, err := g.Select(ctx, SelectSpec{
		Table: "conquers",
		Columns: []string{
			"town", "time", "new_player", "old_player", "new_ally", "old_ally", "points",
			"town_name", "new_player_name", "old_player_name", "new_ally_name", "old_ally_name",
		},
		Where: `world = $1 AND (town_name = '' OR new_player_name = '' OR old_player_name = ''
			OR new_ally_name = '' OR old_ally_name = '')`,
		Args: []any{world},
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conquers []model.Conquer
	for rows.Next() {
		c := model.Conquer{World: world}
		if err := rows.Scan(&c.Town, &c.Time, &c.NewPlayer, &c.OldPlayer, &c.NewAlly, &c.OldAlly,
			&c.Points, &c.TownName, &c.NewPlayerName, &c.OldPlayerName, &c.NewAllyName, &c.OldAllyName); err != nil {
			return nil, &QueryError{Stmt: "scan conquers", Err: err}
		}
		conquers = append(conquers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, &QueryError{Stmt: "read conquers", Err: err}
	}
	return conquers, nil
}

// FillConquerNames backfills denormalized names on stored conquest
// rows, matched on the natural key. Only empty columns are written.
func (g *Gateway) FillConquerNames(ctx context.Context, conquers []model.Conquer) error {
	if len(conquers) == 0 {
		return nil
	}

	const sql = `UPDATE conquers SET
		town_name       = CASE WHEN town_name = ''       THEN $4 ELSE town_name END,
		new_player_name = CASE WHEN new_player_name = '' THEN $5 ELSE new_player_name END,
		old_player_name = CASE WHEN old_player_name = '' THEN $6 ELSE old_player_name END,
		new_ally_name   = CASE WHEN new_ally_name = ''   THEN $7 ELSE new_ally_name END,
		old_ally_name   = CASE WHEN old_ally_name = ''   THEN $8 ELSE old_ally_name END
	WHERE world = $1 AND time = $2 AND town = $3`

	b := &pgx.Batch{}
	for _, c := range conquers {
		b.Queue(sql, c.World, c.Time, c.Town,
			c.TownName, c.NewPlayerName, c.OldPlayerName, c.NewAllyName, c.OldAllyName)
	}
	if err := g.pool.SendBatch(ctx, b).Close(); err != nil {
		return &QueryError{Stmt: "fill conquer names", Err: err}
	}
	return nil
}

// InsertPlayerUpdates appends hourly player delta rows.
func (g *Gateway) InsertPlayerUpdates(ctx context.Context, updates []model.PlayerUpdate) error {
	rows := make([]Row, 0, len(updates))
	for _, u := range updates {
		rows = append(rows, Row{
			Text(u.World), Int(u.ID), Time(u.Time),
			Int(u.TownsDelta), Int(u.PointsDelta), Int(u.ABPDelta), Int(u.DBPDelta),
		})
	}
	return g.Insert(ctx, InsertSpec{
		Table:   "player_updates",
		Columns: []string{"world", "id", "time", "towns_delta", "points_delta", "abp_delta", "dbp_delta"},
		Rows:    rows,
	})
}

// InsertAllianceUpdates appends hourly alliance delta rows.
func (g *Gateway) InsertAllianceUpdates(ctx context.Context, updates []model.AllianceUpdate) error {
	rows := make([]Row, 0, len(updates))
	for _, u := range updates {
		rows = append(rows, Row{
			Text(u.World), Int(u.ID), Time(u.Time),
			Int(u.TownsDelta), Int(u.PointsDelta), Int(u.MembersDelta), Int(u.ABPDelta), Int(u.DBPDelta),
		})
	}
	return g.Insert(ctx, InsertSpec{
		Table:   "alliance_updates",
		Columns: []string{"world", "id", "time", "towns_delta", "points_delta", "members_delta", "abp_delta", "dbp_delta"},
		Rows:    rows,
	})
}

// InsertDailyPlayerUpdates appends daily roll-up rows, deltas plus the
// absolute values at roll-up time.
func (g *Gateway) InsertDailyPlayerUpdates(ctx context.Context, updates []model.PlayerUpdate) error {
	rows := make([]Row, 0, len(updates))
	for _, u := range updates {
		rows = append(rows, Row{
			Text(u.World), Int(u.ID), Time(u.Time),
			Int(u.TownsDelta), Int(u.PointsDelta), Int(u.ABPDelta), Int(u.DBPDelta),
			Int(u.Points), Int(u.Towns), Int(u.ABP), Int(u.DBP),
		})
	}
	return g.Insert(ctx, InsertSpec{
		Table: "player_updates_daily",
		Columns: []string{
			"world", "id", "time", "towns_delta", "points_delta", "abp_delta", "dbp_delta",
			"points", "towns", "abp", "dbp",
		},
		Rows: rows,
	})
}

// InsertDailyAllianceUpdates appends daily alliance roll-up rows.
func (g *Gateway) InsertDailyAllianceUpdates(ctx context.Context, updates []model.AllianceUpdate) error {
	rows := make([]Row, 0, len(updates))
	for _, u := range updates {
		rows = append(rows, Row{
			Text(u.World), Int(u.ID), Time(u.Time),
			Int(u.TownsDelta), Int(u.PointsDelta), Int(u.MembersDelta), Int(u.ABPDelta), Int(u.DBPDelta),
			Int(u.Points), Int(u.Towns), Int(u.Members), Int(u.ABP), Int(u.DBP),
		})
	}
	return g.Insert(ctx, InsertSpec{
		Table: "alliance_updates_daily",
		Columns: []string{
			"world", "id", "time", "towns_delta", "points_delta", "members_delta", "abp_delta", "dbp_delta",
			"points", "towns", "members", "abp", "dbp",
		},
		Rows: rows,
	})
}

// InsertMemberChanges appends alliance membership change events.
func (g *Gateway) InsertMemberChanges(ctx context.Context, changes []model.MemberChange) error {
	rows := make([]Row, 0, len(changes))
	for _, c := range changes {
		rows = append(rows, Row{
			Text(c.World), Int(c.Player), Text(c.PlayerName), Time(c.Time),
			Int(c.OldAlliance), Text(c.OldAllianceName),
			Int(c.NewAlliance), Text(c.NewAllianceName),
		})
	}
	return g.Insert(ctx, InsertSpec{
		Table: "alliance_member_changes",
		Columns: []string{
			"world", "player", "player_name", "time",
			"old_alliance", "old_alliance_name", "new_alliance", "new_alliance_name",
		},
		Rows: rows,
	})
}

// PlayerUpdatesSince reads the hourly player delta rows of one world
// at or after the given time.
func (g *Gateway) PlayerUpdatesSince(ctx context.Context, world string, since time.Time) ([]model.PlayerUpdate, error) {
	rows, err := g.Select(ctx, SelectSpec{
		Table:   "player_updates",
		Columns: []string{"id", "time", "towns_delta", "points_delta", "abp_delta", "dbp_delta"},
		Where:   "world = $1 AND time >= $2",
		OrderBy: "time",
		Args:    []any{world, since},
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var updates []model.PlayerUpdate
	for rows.Next() {
		u := model.PlayerUpdate{World: world}
		if err := rows.Scan(&u.ID, &u.Time, &u.TownsDelta, &u.PointsDelta, &u.ABPDelta, &u.DBPDelta); err != nil {
			return nil, &QueryError{Stmt: "scan player_updates", Err: err}
		}
		updates = append(updates, u)
	}
	if err := rows.Err(); err != nil {
		return nil, &QueryError{Stmt: "read player_updates", Err: err}
	}
	return updates, nil
}

// AllianceUpdatesSince reads the hourly alliance delta rows of one
// world at or after the given time.
func (g *Gateway) AllianceUpdatesSince(ctx context.Context, world string, since time.Time) ([]model.AllianceUpdate, error) {
	rows, err := g.Select(ctx, SelectSpec{
		Table:   "alliance_updates",
		Columns: []string{"id", "time", "towns_delta", "points_delta", "members_delta", "abp_delta", "dbp_delta"},
		Where:   "world = $1 AND time >= $2",
		OrderBy: "time",
		Args:    []any{world, since},
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var updates []model.AllianceUpdate
	for rows.Next() {
		u := model.AllianceUpdate{World: world}
		if err := rows.Scan(&u.ID, &u.Time, &u.TownsDelta, &u.PointsDelta, &u.MembersDelta, &u.ABPDelta, &u.DBPDelta); err != nil {
			return nil, &QueryError{Stmt: "scan alliance_updates", Err: err}
		}
		updates = append(updates, u)
	}
	if err := rows.Err(); err != nil {
		return nil, &QueryError{Stmt: "read alliance_updates", Err: err}
	}
	return updates, nil
}

// Watermark reads one settings column. A NULL watermark (never run)
// comes back as the zero time.
func (g *Gateway) Watermark(ctx context.Context, name string) (time.Time, error) {
	if !watermarkColumns[name] {
		return time.Time{}, &QueryError{Stmt: "watermark", Err: fmt.Errorf("unknown watermark %q", name)}
	}
	var t *time.Time
	sql := fmt.Sprintf("SELECT %s FROM settings WHERE id = 1", name)
	if err := g.pool.QueryRow(ctx, sql).Scan(&t); err != nil {
		return time.Time{}, &QueryError{Stmt: stmtSummary(sql), Err: err}
	}
	if t == nil {
		return time.Time{}, nil
	}
	return *t, nil
}

// SetWatermark advances one settings column.
func (g *Gateway) SetWatermark(ctx context.Context, name string, t time.Time) error {
	if !watermarkColumns[name] {
		return &QueryError{Stmt: "set watermark", Err: fmt.Errorf("unknown watermark %q", name)}
	}
	sql := fmt.Sprintf("UPDATE settings SET %s = $1 WHERE id = 1", name)
	return g.Exec(ctx, sql, t)
}

// PurgeBefore deletes rows of an append-only table older than the
// cutoff, for one world.
func (g *Gateway) PurgeBefore(ctx context.Context, table, world string, cutoff time.Time) error {
	if !purgeTables[table] {
		return &QueryError{Stmt: "purge", Err: fmt.Errorf("table %q is not purgeable", table)}
	}
	sql := fmt.Sprintf("DELETE FROM %s WHERE world = $1 AND time < $2", table)
	return g.Exec(ctx, sql, world, cutoff)
}
