// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

// Package importer sequences the per-world import pipelines and the
// multi-world scheduler that runs them under a bounded worker pool.
package importer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/briantanner/GrepInformant-sub000/model"
)

// Mode selects which pipeline a run executes.
type Mode string

const (
	ModeHourly  Mode = "hourly"
	ModeDaily   Mode = "daily"
	ModeIslands Mode = "islands"
	ModeCleanup Mode = "cleanup"
)

// ParseMode validates a mode string from the CLI.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeHourly, ModeDaily, ModeIslands, ModeCleanup:
		return m, nil
	default:
		return "", fmt.Errorf("importer: unknown mode %q", s)
	}
}

// Retention windows for the append-only tables.
const (
	updateRetention       = 14 * 24 * time.Hour
	memberChangeRetention = 30 * 24 * time.Hour
)

// FeedSource is the slice of the feed client the pipelines consume.
type FeedSource interface {
	FullPlayers(ctx context.Context, world string) ([]model.Player, error)
	FullAlliances(ctx context.Context, world string) ([]model.Alliance, error)
	Players(ctx context.Context, world string) ([]model.Player, error)
	Alliances(ctx context.Context, world string) ([]model.Alliance, error)
	Towns(ctx context.Context, world string) ([]model.Town, error)
	Islands(ctx context.Context, world string) ([]model.Island, error)
	Conquers(ctx context.Context, world string) ([]model.Conquer, error)
}

// Store is the slice of the relational gateway the pipelines consume.
type Store interface {
	ActiveWorlds(ctx context.Context) ([]string, error)

	Players(ctx context.Context, world string) (map[int]model.Player, error)
	Alliances(ctx context.Context, world string) (map[int]model.Alliance, error)
	Towns(ctx context.Context, world string) (map[int]model.Town, error)

	MarkDeleted(ctx context.Context, table, world string, ids []int) error

	UpsertPlayers(ctx context.Context, world string, players []model.Player) error
	UpsertAlliances(ctx context.Context, world string, alliances []model.Alliance) error
	UpsertTowns(ctx context.Context, world string, towns []model.Town) error
	UpsertIslands(ctx context.Context, world string, islands []model.Island) error
	UpsertConquers(ctx context.Context, world string, conquers []model.Conquer) error

	LastConquerTime(ctx context.Context, world string) (time.Time, error)
	ConquersNeedingNames(ctx context.Context, world string) ([]model.Conquer, error)
	FillConquerNames(ctx context.Context, conquers []model.Conquer) error

	InsertPlayerUpdates(ctx context.Context, updates []model.PlayerUpdate) error
	InsertAllianceUpdates(ctx context.Context, updates []model.AllianceUpdate) error
	InsertDailyPlayerUpdates(ctx context.Context, updates []model.PlayerUpdate) error
	InsertDailyAllianceUpdates(ctx context.Context, updates []model.AllianceUpdate) error
	InsertMemberChanges(ctx context.Context, changes []model.MemberChange) error

	PlayerUpdatesSince(ctx context.Context, world string, since time.Time) ([]model.PlayerUpdate, error)
	AllianceUpdatesSince(ctx context.Context, world string, since time.Time) ([]model.AllianceUpdate, error)

	Watermark(ctx context.Context, name string) (time.Time, error)
	SetWatermark(ctx context.Context, name string, t time.Time) error

	PurgeBefore(ctx context.Context, table, world string, cutoff time.Time) error
}

// StageError wraps the first failure of a pipeline run. It aborts the
// remaining stages of that world only.
type StageError struct {
	World string
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("importer: world %s stage %q: %v", e.World, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// run is the scratch state of exactly one pipeline invocation. It is
// created per call and owned by it; nothing here outlives or is shared
// across runs.
type run struct {
	world string
	now   time.Time

	players   []model.Player
	alliances []model.Alliance
	towns     []model.Town
	islands   []model.Island
	conquers  []model.Conquer

	storedPlayers   map[int]model.Player
	storedAlliances map[int]model.Alliance
	storedTowns     map[int]model.Town

	lastDaily      time.Time
	playerWindow   []model.PlayerUpdate
	allianceWindow []model.AllianceUpdate
}

// stage is one named step of a pipeline.
type stage struct {
	name string
	fn   func(ctx context.Context, r *run) error
}

// Importer drives the pipelines of a single world.
type Importer struct {
	world  string
	feeds  FeedSource
	store  Store
	logger *slog.Logger
}

// New returns an Importer for one world. A nil logger falls back to
// slog.Default().
func New(world string, feeds FeedSource, store Store, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{world: world, feeds: feeds, store: store, logger: logger}
}

// Run executes the pipeline for mode. Stages run strictly in order;
// the first failure short-circuits the rest and comes back wrapped in
// a StageError.
func (im *Importer) Run(ctx context.Context, mode Mode) error {
	var stages []stage
	switch mode {
	case ModeHourly:
		stages = im.hourlyStages()
	case ModeDaily:
		stages = im.dailyStages()
	case ModeIslands:
		stages = im.islandsStages()
	case ModeCleanup:
		stages = im.cleanupStages()
	default:
		return fmt.Errorf("importer: unknown mode %q", mode)
	}

	logger := im.logger.With("world", im.world, "mode", mode, "run_id", uuid.NewString())
	// Literal-rendered rows carry whole-second timestamps; the run time
	// is truncated up front so watermarks written through bind
	// parameters can never land a fraction of a second ahead of the
	// delta rows of the same cycle.
	r := &run{world: im.world, now: time.Now().UTC().Truncate(time.Second)}

	start := time.Now()
	for _, st := range stages {
		stageStart := time.Now()
		if err := st.fn(ctx, r); err != nil {
			return &StageError{World: im.world, Stage: st.name, Err: err}
		}
		logger.Debug("stage complete", "stage", st.name, "elapsed", time.Since(stageStart))
	}
	logger.Info("import complete", "stages", len(stages), "elapsed", time.Since(start))
	return nil
}
