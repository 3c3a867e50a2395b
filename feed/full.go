// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package feed

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/briantanner/GrepInformant-sub000/model"
)

// FullPlayers fetches the players feed together with its offense and
// defense kill-point feeds, all three concurrently, and left-joins the
// kill points onto each player by id. A player absent from a kill feed
// gets 0. A kill feed that degraded to empty joins as all zeros; only
// a failure of the base feed fails the call.
func (c *Client) FullPlayers(ctx context.Context, world string) ([]model.Player, error) {
	var (
		players []model.Player
		att     map[int]int
		def     map[int]int
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		players, err = c.Players(ctx, world)
		return err
	})
	g.Go(func() (err error) {
		att, err = c.killPoints(ctx, world, EndpointPlayerKillsAtt)
		return err
	})
	g.Go(func() (err error) {
		def, err = c.killPoints(ctx, world, EndpointPlayerKillsDef)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i := range players {
		players[i].ABP = att[players[i].ID]
		players[i].DBP = def[players[i].ID]
	}
	return players, nil
}

// FullAlliances is FullPlayers for the alliance feeds.
func (c *Client) FullAlliances(ctx context.Context, world string) ([]model.Alliance, error) {
	var (
		alliances []model.Alliance
		att       map[int]int
		def       map[int]int
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		alliances, err = c.Alliances(ctx, world)
		return err
	})
	g.Go(func() (err error) {
		att, err = c.killPoints(ctx, world, EndpointAllianceKillsAtt)
		return err
	})
	g.Go(func() (err error) {
		def, err = c.killPoints(ctx, world, EndpointAllianceKillsDef)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i := range alliances {
		alliances[i].ABP = att[alliances[i].ID]
		alliances[i].DBP = def[alliances[i].ID]
	}
	return alliances, nil
}
