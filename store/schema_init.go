// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// InitSchema creates the tracker tables if they don't exist. All
// statements are idempotent and run in one transaction.
func (g *Gateway) InitSchema(ctx context.Context) error {
	migrations := []string{
		/*language=postgresql*/ `CREATE TABLE IF NOT EXISTS worlds (
			world  TEXT PRIMARY KEY,
			active BOOLEAN NOT NULL DEFAULT TRUE
		)`,

		/*language=postgresql*/ `CREATE TABLE IF NOT EXISTS players (
			world    TEXT    NOT NULL,
			id       INTEGER NOT NULL,
			name     TEXT    NOT NULL DEFAULT '',
			alliance INTEGER NOT NULL DEFAULT 0,
			points   INTEGER NOT NULL DEFAULT 0,
			rank     INTEGER NOT NULL DEFAULT 0,
			towns    INTEGER NOT NULL DEFAULT 0,
			abp      INTEGER NOT NULL DEFAULT 0,
			dbp      INTEGER NOT NULL DEFAULT 0,
			deleted  BOOLEAN NOT NULL DEFAULT FALSE,
			PRIMARY KEY (world, id)
		)`,

		/*language=postgresql*/ `CREATE TABLE IF NOT EXISTS alliances (
			world   TEXT    NOT NULL,
			id      INTEGER NOT NULL,
			name    TEXT    NOT NULL DEFAULT '',
			points  INTEGER NOT NULL DEFAULT 0,
			towns   INTEGER NOT NULL DEFAULT 0,
			members INTEGER NOT NULL DEFAULT 0,
			rank    INTEGER NOT NULL DEFAULT 0,
			abp     INTEGER NOT NULL DEFAULT 0,
			dbp     INTEGER NOT NULL DEFAULT 0,
			deleted BOOLEAN NOT NULL DEFAULT FALSE,
			PRIMARY KEY (world, id)
		)`,

		/*language=postgresql*/ `CREATE TABLE IF NOT EXISTS towns (
			world     TEXT    NOT NULL,
			id        INTEGER NOT NULL,
			player    INTEGER NOT NULL DEFAULT 0,
			name      TEXT    NOT NULL DEFAULT '',
			x         INTEGER NOT NULL DEFAULT 0,
			y         INTEGER NOT NULL DEFAULT 0,
			island_no INTEGER NOT NULL DEFAULT 0,
			points    INTEGER NOT NULL DEFAULT 0,
			deleted   BOOLEAN NOT NULL DEFAULT FALSE,
			PRIMARY KEY (world, id)
		)`,

		/*language=postgresql*/ `CREATE TABLE IF NOT EXISTS islands (
			world           TEXT    NOT NULL,
			id              INTEGER NOT NULL,
			x               INTEGER NOT NULL DEFAULT 0,
			y               INTEGER NOT NULL DEFAULT 0,
			island_type     INTEGER NOT NULL DEFAULT 0,
			available_spots INTEGER NOT NULL DEFAULT 0,
			plus            INTEGER NOT NULL DEFAULT 0,
			minus           INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (world, id)
		)`,

		// Conquest ids come from the sequence, not the feed; the
		// natural key is (world, time, town).
		/*language=postgresql*/ `CREATE TABLE IF NOT EXISTS conquers (
			id              BIGSERIAL,
			world           TEXT        NOT NULL,
			town            INTEGER     NOT NULL,
			time            TIMESTAMPTZ NOT NULL,
			new_player      INTEGER     NOT NULL DEFAULT 0,
			old_player      INTEGER     NOT NULL DEFAULT 0,
			new_ally        INTEGER     NOT NULL DEFAULT 0,
			old_ally        INTEGER     NOT NULL DEFAULT 0,
			points          INTEGER     NOT NULL DEFAULT 0,
			town_name       TEXT        NOT NULL DEFAULT '',
			new_player_name TEXT        NOT NULL DEFAULT '',
			old_player_name TEXT        NOT NULL DEFAULT '',
			new_ally_name   TEXT        NOT NULL DEFAULT '',
			old_ally_name   TEXT        NOT NULL DEFAULT '',
			PRIMARY KEY (id),
			UNIQUE (world, time, town)
		)`,

		/*language=postgresql*/ `CREATE TABLE IF NOT EXISTS player_updates (
			world        TEXT        NOT NULL,
			id           INTEGER     NOT NULL,
			time         TIMESTAMPTZ NOT NULL,
			towns_delta  INTEGER     NOT NULL DEFAULT 0,
			points_delta INTEGER     NOT NULL DEFAULT 0,
			abp_delta    INTEGER     NOT NULL DEFAULT 0,
			dbp_delta    INTEGER     NOT NULL DEFAULT 0
		)`,
		/*language=postgresql*/ `CREATE INDEX IF NOT EXISTS player_updates_world_time
			ON player_updates (world, time)`,

		/*language=postgresql*/ `CREATE TABLE IF NOT EXISTS alliance_updates (
			world         TEXT        NOT NULL,
			id            INTEGER     NOT NULL,
			time          TIMESTAMPTZ NOT NULL,
			towns_delta   INTEGER     NOT NULL DEFAULT 0,
			points_delta  INTEGER     NOT NULL DEFAULT 0,
			members_delta INTEGER     NOT NULL DEFAULT 0,
			abp_delta     INTEGER     NOT NULL DEFAULT 0,
			dbp_delta     INTEGER     NOT NULL DEFAULT 0
		)`,
		/*language=postgresql*/ `CREATE INDEX IF NOT EXISTS alliance_updates_world_time
			ON alliance_updates (world, time)`,

		/*language=postgresql*/ `CREATE TABLE IF NOT EXISTS player_updates_daily (
			world        TEXT        NOT NULL,
			id           INTEGER     NOT NULL,
			time         TIMESTAMPTZ NOT NULL,
			towns_delta  INTEGER     NOT NULL DEFAULT 0,
			points_delta INTEGER     NOT NULL DEFAULT 0,
			abp_delta    INTEGER     NOT NULL DEFAULT 0,
			dbp_delta    INTEGER     NOT NULL DEFAULT 0,
			points       INTEGER     NOT NULL DEFAULT 0,
			towns        INTEGER     NOT NULL DEFAULT 0,
			abp          INTEGER     NOT NULL DEFAULT 0,
			dbp          INTEGER     NOT NULL DEFAULT 0
		)`,
		/*language=postgresql*/ `CREATE INDEX IF NOT EXISTS player_updates_daily_world_time
			ON player_updates_daily (world, time)`,

		/*language=postgresql*/ `CREATE TABLE IF NOT EXISTS alliance_updates_daily (
			world         TEXT        NOT NULL,
			id            INTEGER     NOT NULL,
			time          TIMESTAMPTZ NOT NULL,
			towns_delta   INTEGER     NOT NULL DEFAULT 0,
			points_delta  INTEGER     NOT NULL DEFAULT 0,
			members_delta INTEGER     NOT NULL DEFAULT 0,
			abp_delta     INTEGER     NOT NULL DEFAULT 0,
			dbp_delta     INTEGER     NOT NULL DEFAULT 0,
			points        INTEGER     NOT NULL DEFAULT 0,
			towns         INTEGER     NOT NULL DEFAULT 0,
			members       INTEGER     NOT NULL DEFAULT 0,
			abp           INTEGER     NOT NULL DEFAULT 0,
			dbp           INTEGER     NOT NULL DEFAULT 0
		)`,
		/*language=postgresql*/ `CREATE INDEX IF NOT EXISTS alliance_updates_daily_world_time
			ON alliance_updates_daily (world, time)`,

		/*language=postgresql*/ `CREATE TABLE IF NOT EXISTS alliance_member_changes (
			world             TEXT        NOT NULL,
			player            INTEGER     NOT NULL,
			player_name       TEXT        NOT NULL DEFAULT '',
			time              TIMESTAMPTZ NOT NULL,
			old_alliance      INTEGER     NOT NULL DEFAULT 0,
			old_alliance_name TEXT        NOT NULL DEFAULT '',
			new_alliance      INTEGER     NOT NULL DEFAULT 0,
			new_alliance_name TEXT        NOT NULL DEFAULT ''
		)`,
		/*language=postgresql*/ `CREATE INDEX IF NOT EXISTS alliance_member_changes_world_time
			ON alliance_member_changes (world, time)`,

		// Single-row watermark store.
		/*language=postgresql*/ `CREATE TABLE IF NOT EXISTS settings (
			id         INTEGER PRIMARY KEY CHECK (id = 1),
			lastdaily  TIMESTAMPTZ,
			lasthourly TIMESTAMPTZ
		)`,
		/*language=postgresql*/ `INSERT INTO settings (id) VALUES (1)
			ON CONFLICT (id) DO NOTHING`,
	}

	return pgx.BeginFunc(ctx, g.pool, func(tx pgx.Tx) error {
		for _, sql := range migrations {
			if _, err := tx.Exec(ctx, sql); err != nil {
				return &QueryError{Stmt: stmtSummary(sql), Err: err}
			}
		}
		return nil
	})
}
