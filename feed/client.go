// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

// Package feed retrieves and parses the gzip-compressed CSV exports
// published per world by the game service, and aggregates the base
// entity feeds with their kill-point feeds into enriched snapshots.
package feed

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/briantanner/GrepInformant-sub000/model"
)

// Client fetches feed endpoints for any world of one service host.
//
// Upstream outages are deliberately soft: a failed request, a non-2xx
// status or an unexpected content type resolve to an empty record set
// with a warning log, never an error. One endpoint being down must not
// abort a world's import run.
type Client struct {
	host   string
	http   *http.Client
	logger *slog.Logger
}

// NewClient returns a Client for the given service host
// (e.g. "grepolis.com"). A nil logger falls back to slog.Default().
func NewClient(host string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		host:   host,
		http:   &http.Client{Timeout: 2 * time.Minute},
		logger: logger,
	}
}

// fetchCSV retrieves one endpoint for one world and returns its lines
// as field slices, padded to the endpoint's column count. Missing
// trailing fields come back as empty strings.
func (c *Client) fetchCSV(ctx context.Context, world, endpoint string) ([][]string, error) {
	columns, ok := endpointColumns[endpoint]
	if !ok {
		return nil, &ParseError{Endpoint: endpoint}
	}

	url := fmt.Sprintf("http://%s.%s/data/%s.txt.gz", world, c.host, endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("feed: build request for %s: %w", url, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("feed fetch failed, treating as empty",
			"world", world, "endpoint", endpoint, "error", err)
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("feed fetch returned non-OK status, treating as empty",
			"world", world, "endpoint", endpoint, "status", resp.StatusCode)
		return nil, nil
	}
	if ct := resp.Header.Get("Content-Type"); !isFeedContentType(ct) {
		c.logger.Warn("feed fetch returned unexpected content type, treating as empty",
			"world", world, "endpoint", endpoint, "content_type", ct)
		return nil, nil
	}

	gz, err := gzip.NewReader(resp.Body)
	if err != nil {
		c.logger.Warn("feed body is not gzip, treating as empty",
			"world", world, "endpoint", endpoint, "error", err)
		return nil, nil
	}
	defer gz.Close()

	body, err := io.ReadAll(gz)
	if err != nil {
		c.logger.Warn("feed body truncated, treating as empty",
			"world", world, "endpoint", endpoint, "error", err)
		return nil, nil
	}

	var records [][]string
	for _, line := range strings.Split(string(body), "\n") {
		if line = strings.TrimRight(line, "\r"); line == "" {
			continue
		}
		fields := strings.Split(line, ",")
		for len(fields) < len(columns) {
			fields = append(fields, "")
		}
		records = append(records, fields)
	}
	return records, nil
}

func isFeedContentType(ct string) bool {
	switch {
	case strings.HasPrefix(ct, "application/octet-stream"),
		strings.HasPrefix(ct, "application/gzip"),
		strings.HasPrefix(ct, "application/x-gzip"):
		return true
	}
	return false
}

// Players fetches the base players feed for one world.
func (c *Client) Players(ctx context.Context, world string) ([]model.Player, error) {
	records, err := c.fetchCSV(ctx, world, EndpointPlayers)
	if err != nil {
		return nil, err
	}
	players := make([]model.Player, 0, len(records))
	for _, f := range records {
		players = append(players, parsePlayer(world, f))
	}
	return players, nil
}

// Alliances fetches the base alliances feed for one world.
func (c *Client) Alliances(ctx context.Context, world string) ([]model.Alliance, error) {
	records, err := c.fetchCSV(ctx, world, EndpointAlliances)
	if err != nil {
		return nil, err
	}
	alliances := make([]model.Alliance, 0, len(records))
	for _, f := range records {
		alliances = append(alliances, parseAlliance(world, f))
	}
	return alliances, nil
}

// Towns fetches the towns feed for one world.
func (c *Client) Towns(ctx context.Context, world string) ([]model.Town, error) {
	records, err := c.fetchCSV(ctx, world, EndpointTowns)
	if err != nil {
		return nil, err
	}
	towns := make([]model.Town, 0, len(records))
	for _, f := range records {
		towns = append(towns, parseTown(world, f))
	}
	return towns, nil
}

// Islands fetches the islands feed for one world.
func (c *Client) Islands(ctx context.Context, world string) ([]model.Island, error) {
	records, err := c.fetchCSV(ctx, world, EndpointIslands)
	if err != nil {
		return nil, err
	}
	islands := make([]model.Island, 0, len(records))
	for _, f := range records {
		islands = append(islands, parseIsland(world, f))
	}
	return islands, nil
}

// Conquers fetches the conquers feed for one world.
func (c *Client) Conquers(ctx context.Context, world string) ([]model.Conquer, error) {
	records, err := c.fetchCSV(ctx, world, EndpointConquers)
	if err != nil {
		return nil, err
	}
	conquers := make([]model.Conquer, 0, len(records))
	for _, f := range records {
		conquers = append(conquers, parseConquer(world, f))
	}
	return conquers, nil
}

// killPoints fetches one kill-point feed and returns points keyed by
// entity id.
func (c *Client) killPoints(ctx context.Context, world, endpoint string) (map[int]int, error) {
	records, err := c.fetchCSV(ctx, world, endpoint)
	if err != nil {
		return nil, err
	}
	points := make(map[int]int, len(records))
	for _, f := range records {
		kp := parseKillPoints(world, f)
		points[kp.ID] = kp.Points
	}
	return points, nil
}
