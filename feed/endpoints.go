// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package feed

import "fmt"

// Endpoint names of the upstream data exports. Each maps to
// http://{world}.{host}/data/{endpoint}.txt.gz
const (
	EndpointPlayers   = "players"
	EndpointAlliances = "alliances"
	EndpointTowns     = "towns"
	EndpointIslands   = "islands"
	EndpointConquers  = "conquers"

	EndpointPlayerKillsAtt   = "player_kills_att"
	EndpointPlayerKillsDef   = "player_kills_def"
	EndpointAllianceKillsAtt = "alliance_kills_att"
	EndpointAllianceKillsDef = "alliance_kills_def"
)

// endpointColumns is the fixed column order of each feed. The exports
// carry no header row; lines are zipped against these lists by
// position.
var endpointColumns = map[string][]string{
	EndpointPlayers:   {"id", "name", "alliance", "points", "rank", "towns"},
	EndpointAlliances: {"id", "name", "points", "towns", "members", "rank"},
	EndpointTowns:     {"id", "player", "name", "x", "y", "islandNo", "points"},
	EndpointIslands:   {"id", "x", "y", "type", "availableSpots", "plus", "minus"},
	EndpointConquers:  {"town", "time", "newPlayer", "oldPlayer", "newAlly", "oldAlly", "points"},

	EndpointPlayerKillsAtt:   {"rank", "id", "points"},
	EndpointPlayerKillsDef:   {"rank", "id", "points"},
	EndpointAllianceKillsAtt: {"rank", "id", "points"},
	EndpointAllianceKillsDef: {"rank", "id", "points"},
}

// ParseError reports a fetch against an endpoint this package has no
// column schema for. Unlike transient upstream failures it is returned
// to the caller, since it is a programming error rather than an
// outage.
type ParseError struct {
	Endpoint string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("feed: unknown endpoint %q", e.Endpoint)
}
