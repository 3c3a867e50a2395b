// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package importer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/briantanner/GrepInformant-sub000/model"
)

func TestSchedulerPartialFailureIsolation(t *testing.T) {
	feeds := newFakeFeed()
	for _, w := range []string{"w1", "w2", "w3"} {
		feeds.players[w] = []model.Player{{World: w, ID: 1, Name: "P", Points: 10}}
	}
	feeds.failFull["w2"] = errors.New("upstream schema broke")

	st := newFakeStore()
	st.worlds = []string{"w1", "w2", "w3"}

	s := NewScheduler(feeds, st, 2, nil)
	res, err := s.Run(context.Background(), ModeHourly)

	// The batch completes even though one world failed.
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"w1", "w3"}, res.Succeeded)
	require.Equal(t, []string{"w2"}, res.Failed)

	// The healthy worlds ran their full pipelines.
	require.Len(t, st.upsertPlayers, 2)
}

func TestSchedulerSingleWorkerStillCoversAllWorlds(t *testing.T) {
	feeds := newFakeFeed()
	st := newFakeStore()
	st.worlds = []string{"a", "b", "c", "d"}

	s := NewScheduler(feeds, st, 1, nil)
	res, err := s.Run(context.Background(), ModeIslands)

	require.NoError(t, err)
	require.Len(t, res.Succeeded, 4)
	require.Empty(t, res.Failed)
}

func TestSchedulerWorldDiscoveryFailure(t *testing.T) {
	st := newFakeStore()
	st.failOn["ActiveWorlds"] = errors.New("connection refused")

	s := NewScheduler(newFakeFeed(), st, 0, nil)
	_, err := s.Run(context.Background(), ModeHourly)
	require.Error(t, err)
}

func TestSchedulerNoWorldsIsNoop(t *testing.T) {
	st := newFakeStore()

	s := NewScheduler(newFakeFeed(), st, 0, nil)
	res, err := s.Run(context.Background(), ModeDaily)
	require.NoError(t, err)
	require.Empty(t, res.Succeeded)
	require.Empty(t, res.Failed)
}
