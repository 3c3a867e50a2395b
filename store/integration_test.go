// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/briantanner/GrepInformant-sub000/model"
)

// liveGateway connects to the database named by TEST_DATABASE_URL and
// returns a gateway against it, or skips the test when the variable is
// unset. Each caller gets its own throwaway world so tests can share a
// database without stepping on each other.
func liveGateway(t *testing.T) (*Gateway, *pgxpool.Pool, string) {
	t.Helper()

	databaseURL := os.Getenv("TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, databaseURL)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	g := New(pool, logger)
	require.NoError(t, g.InitSchema(ctx))

	world := fmt.Sprintf("it%d", time.Now().UnixNano()%1_000_000_000)
	t.Cleanup(func() {
		for _, table := range []string{"players", "towns", "conquers"} {
			_, _ = pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE world = $1", table), world)
		}
	})
	return g, pool, world
}

func countRows(t *testing.T, pool *pgxpool.Pool, table, world string) int {
	t.Helper()
	var n int
	err := pool.QueryRow(context.Background(),
		fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE world = $1", table), world).Scan(&n)
	require.NoError(t, err)
	return n
}

func TestUpsertPlayersIsIdempotent(t *testing.T) {
	g, pool, world := liveGateway(t)
	ctx := context.Background()

	batch := []model.Player{
		{World: world, ID: 1, Name: "Pericles", Alliance: 10, Points: 500, Rank: 1, Towns: 2, ABP: 40, DBP: 7},
		{World: world, ID: 2, Name: "Themistocles", Alliance: 10, Points: 300, Rank: 2, Towns: 1, ABP: 12, DBP: 3},
	}
	require.NoError(t, g.UpsertPlayers(ctx, world, batch))
	require.NoError(t, g.UpsertPlayers(ctx, world, batch))

	require.Equal(t, 2, countRows(t, pool, "players", world))
	got, err := g.Players(ctx, world)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, 500, got[1].Points)

	// A changed batch updates in place rather than piling up rows.
	batch[0].Points = 550
	require.NoError(t, g.UpsertPlayers(ctx, world, batch))
	require.Equal(t, 2, countRows(t, pool, "players", world))
	got, err = g.Players(ctx, world)
	require.NoError(t, err)
	require.Equal(t, 550, got[1].Points)
}

func TestUpsertConquersIsIdempotent(t *testing.T) {
	g, pool, world := liveGateway(t)
	ctx := context.Background()

	at := time.Date(2015, 6, 1, 12, 30, 5, 0, time.UTC)
	batch := []model.Conquer{
		{World: world, Town: 100, Time: at, NewPlayer: 1, OldPlayer: 2, Points: 900, TownName: "Athens"},
		{World: world, Town: 101, Time: at, NewPlayer: 3, OldPlayer: 4, Points: 700, TownName: "Sparta"},
	}
	require.NoError(t, g.UpsertConquers(ctx, world, batch))
	require.Equal(t, 2, countRows(t, pool, "conquers", world))

	var firstID int64
	err := pool.QueryRow(ctx,
		"SELECT id FROM conquers WHERE world = $1 AND town = 100", world).Scan(&firstID)
	require.NoError(t, err)

	// Replaying the same events merges on (world, time, town): no new
	// rows, no fresh sequence id, and an empty name in the replay does
	// not blank the stored one.
	batch[0].TownName = ""
	require.NoError(t, g.UpsertConquers(ctx, world, batch))
	require.Equal(t, 2, countRows(t, pool, "conquers", world))

	var replayID int64
	var townName string
	err = pool.QueryRow(ctx,
		"SELECT id, town_name FROM conquers WHERE world = $1 AND town = 100", world).
		Scan(&replayID, &townName)
	require.NoError(t, err)
	require.Equal(t, firstID, replayID)
	require.Equal(t, "Athens", townName)

	last, err := g.LastConquerTime(ctx, world)
	require.NoError(t, err)
	require.True(t, last.Equal(at), "last conquer time %s, want %s", last, at)
}

func TestMarkDeletedIsMonotonic(t *testing.T) {
	g, pool, world := liveGateway(t)
	ctx := context.Background()

	towns := []model.Town{
		{World: world, ID: 100, Player: 1, Name: "Harbor", Points: 200},
		{World: world, ID: 200, Player: 2, Name: "Quarry", Points: 150},
		{World: world, ID: 300, Player: 3, Name: "Mine", Points: 100},
	}
	require.NoError(t, g.UpsertTowns(ctx, world, towns))

	require.NoError(t, g.MarkDeleted(ctx, "towns", world, []int{300}))
	got, err := g.Towns(ctx, world)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.NotContains(t, got, 300)

	// Re-running the same reconciliation changes nothing.
	require.NoError(t, g.MarkDeleted(ctx, "towns", world, []int{300}))
	got, err = g.Towns(ctx, world)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Re-upserting only the still-live towns leaves the flag in place.
	require.NoError(t, g.UpsertTowns(ctx, world, towns[:2]))
	got, err = g.Towns(ctx, world)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, 3, countRows(t, pool, "towns", world))
}
