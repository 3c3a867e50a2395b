// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package feed

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/briantanner/GrepInformant-sub000/model"
)

// atoi parses a feed integer field. Empty or malformed fields
// normalize to 0 rather than surfacing as errors; the exports pad
// absent values with empty strings.
func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

// decodeName undoes the game's URL-style encoding of name fields.
// Percent escapes are decoded and literal '+' becomes a space. A field
// that fails to decode is kept as-is rather than dropped.
func decodeName(s string) string {
	decoded, err := url.PathUnescape(s)
	if err != nil {
		decoded = s
	}
	return strings.ReplaceAll(decoded, "+", " ")
}

// Field positions below follow the fixed column order in
// endpointColumns; fetchCSV guarantees each record has that many
// fields.

func parsePlayer(world string, f []string) model.Player {
	return model.Player{
		World:    world,
		ID:       atoi(f[0]),
		Name:     decodeName(f[1]),
		Alliance: atoi(f[2]),
		Points:   atoi(f[3]),
		Rank:     atoi(f[4]),
		Towns:    atoi(f[5]),
	}
}

func parseAlliance(world string, f []string) model.Alliance {
	return model.Alliance{
		World:   world,
		ID:      atoi(f[0]),
		Name:    decodeName(f[1]),
		Points:  atoi(f[2]),
		Towns:   atoi(f[3]),
		Members: atoi(f[4]),
		Rank:    atoi(f[5]),
	}
}

func parseTown(world string, f []string) model.Town {
	return model.Town{
		World:    world,
		ID:       atoi(f[0]),
		Player:   atoi(f[1]),
		Name:     decodeName(f[2]),
		X:        atoi(f[3]),
		Y:        atoi(f[4]),
		IslandNo: atoi(f[5]),
		Points:   atoi(f[6]),
	}
}

func parseIsland(world string, f []string) model.Island {
	return model.Island{
		World:          world,
		ID:             atoi(f[0]),
		X:              atoi(f[1]),
		Y:              atoi(f[2]),
		Type:           atoi(f[3]),
		AvailableSpots: atoi(f[4]),
		Plus:           atoi(f[5]),
		Minus:          atoi(f[6]),
	}
}

func parseConquer(world string, f []string) model.Conquer {
	return model.Conquer{
		World:     world,
		Town:      atoi(f[0]),
		Time:      time.Unix(int64(atoi(f[1])), 0).UTC(),
		NewPlayer: atoi(f[2]),
		OldPlayer: atoi(f[3]),
		NewAlly:   atoi(f[4]),
		OldAlly:   atoi(f[5]),
		Points:    atoi(f[6]),
	}
}

func parseKillPoints(world string, f []string) model.KillPoints {
	return model.KillPoints{
		World:  world,
		Rank:   atoi(f[0]),
		ID:     atoi(f[1]),
		Points: atoi(f[2]),
	}
}
