// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package importer

import (
	"context"
	"sync"
	"time"

	"github.com/briantanner/GrepInformant-sub000/model"
)

// fakeFeed serves canned per-world snapshots and can fail selected
// worlds to exercise partial-failure isolation.
type fakeFeed struct {
	mu        sync.Mutex
	players   map[string][]model.Player
	alliances map[string][]model.Alliance
	towns     map[string][]model.Town
	islands   map[string][]model.Island
	conquers  map[string][]model.Conquer
	failFull  map[string]error // FullPlayers failures by world
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{
		players:   map[string][]model.Player{},
		alliances: map[string][]model.Alliance{},
		towns:     map[string][]model.Town{},
		islands:   map[string][]model.Island{},
		conquers:  map[string][]model.Conquer{},
		failFull:  map[string]error{},
	}
}

func (f *fakeFeed) FullPlayers(_ context.Context, world string) ([]model.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFull[world]; err != nil {
		return nil, err
	}
	return f.players[world], nil
}

func (f *fakeFeed) FullAlliances(_ context.Context, world string) ([]model.Alliance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alliances[world], nil
}

func (f *fakeFeed) Players(ctx context.Context, world string) ([]model.Player, error) {
	return f.FullPlayers(ctx, world)
}

func (f *fakeFeed) Alliances(ctx context.Context, world string) ([]model.Alliance, error) {
	return f.FullAlliances(ctx, world)
}

func (f *fakeFeed) Towns(_ context.Context, world string) ([]model.Town, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.towns[world], nil
}

func (f *fakeFeed) Islands(_ context.Context, world string) ([]model.Island, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.islands[world], nil
}

func (f *fakeFeed) Conquers(_ context.Context, world string) ([]model.Conquer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conquers[world], nil
}

// fakeStore records every write the pipelines issue and can fail
// selected methods.
type fakeStore struct {
	mu sync.Mutex

	worlds          []string
	players         map[string]map[int]model.Player
	alliances       map[string]map[int]model.Alliance
	towns           map[string]map[int]model.Town
	watermarks      map[string]time.Time
	lastConquer     map[string]time.Time
	pendingConquers map[string][]model.Conquer

	deleted         map[string][]int // table -> ids
	upsertPlayers   []model.Player
	upsertAlliances []model.Alliance
	upsertTowns     []model.Town
	upsertIslands   []model.Island
	upsertConquers  []model.Conquer
	filledNames     []model.Conquer
	playerUpdates   []model.PlayerUpdate
	allianceUpdates []model.AllianceUpdate
	dailyPlayers    []model.PlayerUpdate
	dailyAlliances  []model.AllianceUpdate
	memberChanges   []model.MemberChange
	playerWindow    []model.PlayerUpdate
	allianceWindow  []model.AllianceUpdate
	purged          []string
	calls           []string

	failOn map[string]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		players:         map[string]map[int]model.Player{},
		alliances:       map[string]map[int]model.Alliance{},
		towns:           map[string]map[int]model.Town{},
		watermarks:      map[string]time.Time{},
		lastConquer:     map[string]time.Time{},
		pendingConquers: map[string][]model.Conquer{},
		deleted:         map[string][]int{},
		failOn:          map[string]error{},
	}
}

func (s *fakeStore) called(method string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, method)
	return s.failOn[method]
}

func (s *fakeStore) ActiveWorlds(context.Context) ([]string, error) {
	if err := s.called("ActiveWorlds"); err != nil {
		return nil, err
	}
	return s.worlds, nil
}

func (s *fakeStore) Players(_ context.Context, world string) (map[int]model.Player, error) {
	if err := s.called("Players"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.players[world], nil
}

func (s *fakeStore) Alliances(_ context.Context, world string) (map[int]model.Alliance, error) {
	if err := s.called("Alliances"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alliances[world], nil
}

func (s *fakeStore) Towns(_ context.Context, world string) (map[int]model.Town, error) {
	if err := s.called("Towns"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.towns[world], nil
}

func (s *fakeStore) MarkDeleted(_ context.Context, table, world string, ids []int) error {
	if err := s.called("MarkDeleted"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted[table] = append(s.deleted[table], ids...)
	return nil
}

func (s *fakeStore) UpsertPlayers(_ context.Context, world string, players []model.Player) error {
	if err := s.called("UpsertPlayers"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertPlayers = append(s.upsertPlayers, players...)
	return nil
}

func (s *fakeStore) UpsertAlliances(_ context.Context, world string, alliances []model.Alliance) error {
	if err := s.called("UpsertAlliances"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertAlliances = append(s.upsertAlliances, alliances...)
	return nil
}

func (s *fakeStore) UpsertTowns(_ context.Context, world string, towns []model.Town) error {
	if err := s.called("UpsertTowns"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertTowns = append(s.upsertTowns, towns...)
	return nil
}

func (s *fakeStore) UpsertIslands(_ context.Context, world string, islands []model.Island) error {
	if err := s.called("UpsertIslands"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertIslands = append(s.upsertIslands, islands...)
	return nil
}

func (s *fakeStore) UpsertConquers(_ context.Context, world string, conquers []model.Conquer) error {
	if err := s.called("UpsertConquers"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertConquers = append(s.upsertConquers, conquers...)
	return nil
}

func (s *fakeStore) LastConquerTime(_ context.Context, world string) (time.Time, error) {
	if err := s.called("LastConquerTime"); err != nil {
		return time.Time{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastConquer[world], nil
}

func (s *fakeStore) ConquersNeedingNames(_ context.Context, world string) ([]model.Conquer, error) {
	if err := s.called("ConquersNeedingNames"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingConquers[world], nil
}

func (s *fakeStore) FillConquerNames(_ context.Context, conquers []model.Conquer) error {
	if err := s.called("FillConquerNames"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filledNames = append(s.filledNames, conquers...)
	return nil
}

func (s *fakeStore) InsertPlayerUpdates(_ context.Context, updates []model.PlayerUpdate) error {
	if err := s.called("InsertPlayerUpdates"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playerUpdates = append(s.playerUpdates, updates...)
	return nil
}

func (s *fakeStore) InsertAllianceUpdates(_ context.Context, updates []model.AllianceUpdate) error {
	if err := s.called("InsertAllianceUpdates"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allianceUpdates = append(s.allianceUpdates, updates...)
	return nil
}

func (s *fakeStore) InsertDailyPlayerUpdates(_ context.Context, updates []model.PlayerUpdate) error {
	if err := s.called("InsertDailyPlayerUpdates"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dailyPlayers = append(s.dailyPlayers, updates...)
	return nil
}

func (s *fakeStore) InsertDailyAllianceUpdates(_ context.Context, updates []model.AllianceUpdate) error {
	if err := s.called("InsertDailyAllianceUpdates"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dailyAlliances = append(s.dailyAlliances, updates...)
	return nil
}

func (s *fakeStore) InsertMemberChanges(_ context.Context, changes []model.MemberChange) error {
	if err := s.called("InsertMemberChanges"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memberChanges = append(s.memberChanges, changes...)
	return nil
}

func (s *fakeStore) PlayerUpdatesSince(_ context.Context, world string, since time.Time) ([]model.PlayerUpdate, error) {
	if err := s.called("PlayerUpdatesSince"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playerWindow, nil
}

func (s *fakeStore) AllianceUpdatesSince(_ context.Context, world string, since time.Time) ([]model.AllianceUpdate, error) {
	if err := s.called("AllianceUpdatesSince"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.allianceWindow, nil
}

func (s *fakeStore) Watermark(_ context.Context, name string) (time.Time, error) {
	if err := s.called("Watermark"); err != nil {
		return time.Time{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watermarks[name], nil
}

func (s *fakeStore) SetWatermark(_ context.Context, name string, t time.Time) error {
	if err := s.called("SetWatermark"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watermarks[name] = t
	return nil
}

func (s *fakeStore) PurgeBefore(_ context.Context, table, world string, cutoff time.Time) error {
	if err := s.called("PurgeBefore"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purged = append(s.purged, table)
	return nil
}
