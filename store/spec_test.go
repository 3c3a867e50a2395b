// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"strings"
	"testing"
	"time"
)

func TestTextEscapesQuotes(t *testing.T) {
	if got := Text("O'Neill's").expr; got != "'O''Neill''s'" {
		t.Fatalf("unexpected literal: %s", got)
	}
}

func TestRawPassesThrough(t *testing.T) {
	if got := Raw("nextval('conquers_id_seq')").expr; got != "nextval('conquers_id_seq')" {
		t.Fatalf("raw value must not be escaped: %s", got)
	}
}

func TestTimeRendersUTC(t *testing.T) {
	loc := time.FixedZone("CEST", 2*3600)
	v := Time(time.Date(2015, 6, 1, 14, 30, 0, 0, loc))
	if v.expr != "'2015-06-01 12:30:00+00'" {
		t.Fatalf("unexpected literal: %s", v.expr)
	}
}

func TestSelectSpecSQL(t *testing.T) {
	spec := SelectSpec{
		Table:   "players",
		Columns: []string{"id", "name"},
		Where:   "world = $1 AND NOT deleted",
		OrderBy: "id",
	}
	want := "SELECT id, name FROM players WHERE world = $1 AND NOT deleted ORDER BY id"
	if got := spec.SQL(); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestInsertSpecBatches(t *testing.T) {
	rows := make([]Row, 250)
	for i := range rows {
		rows[i] = Row{Int(i)}
	}
	stmts := InsertSpec{Table: "t", Columns: []string{"n"}, Rows: rows}.statements()

	if len(stmts) != 3 {
		t.Fatalf("expected 3 statements for 250 rows, got %d", len(stmts))
	}
	if n := strings.Count(stmts[0], "("); n != 101 { // column list + 100 tuples
		t.Fatalf("first batch should hold 100 tuples, counted %d parens", n)
	}
	if n := strings.Count(stmts[2], "("); n != 51 {
		t.Fatalf("last batch should hold 50 tuples, counted %d parens", n)
	}
}

func TestUpsertTempTableScopedPerWorld(t *testing.T) {
	a := UpsertSpec{Table: "players", World: "en1"}
	b := UpsertSpec{Table: "players", World: "de7"}
	if a.tempTable() == b.tempTable() {
		t.Fatalf("temp tables must differ per world")
	}
	if a.tempTable() != "tmp_players_en1" {
		t.Fatalf("unexpected temp table name: %s", a.tempTable())
	}
}

func TestUpsertCreateAndIndexSQL(t *testing.T) {
	spec := UpsertSpec{Table: "players", World: "en1", Key: []string{"world", "id"}}
	if got := spec.createTempSQL(); got != "CREATE TEMP TABLE tmp_players_en1 (LIKE players INCLUDING DEFAULTS)" {
		t.Fatalf("unexpected create: %s", got)
	}
	if got := spec.indexTempSQL(); got != "CREATE INDEX ON tmp_players_en1 (world, id)" {
		t.Fatalf("unexpected index: %s", got)
	}
}

func TestUpsertMergeSQL(t *testing.T) {
	spec := UpsertSpec{
		Table:   "players",
		World:   "en1",
		Key:     []string{"world", "id"},
		Columns: []string{"world", "id", "name", "points"},
	}
	sql := spec.mergeSQL()

	// One update-returning CTE feeding a not-matched insert.
	for _, want := range []string{
		"WITH updated AS (",
		"UPDATE players AS t SET name = s.name, points = s.points",
		"FROM tmp_players_en1 AS s",
		"WHERE t.world = s.world AND t.id = s.id",
		"RETURNING t.world, t.id",
		"INSERT INTO players (world, id, name, points)",
		"WHERE NOT EXISTS (SELECT 1 FROM updated AS u WHERE u.world = s.world AND u.id = s.id)",
	} {
		if !strings.Contains(sql, want) {
			t.Fatalf("merge SQL missing %q:\n%s", want, sql)
		}
	}
	// Key columns never appear in the update arm.
	if strings.Contains(sql, "world = s.world,") || strings.Contains(sql, "SET world") {
		t.Fatalf("key column leaked into SET clause:\n%s", sql)
	}
}

func TestUpsertMergeSQLInsertOnlyAndPreserve(t *testing.T) {
	spec := UpsertSpec{
		Table:           "conquers",
		World:           "en1",
		Key:             []string{"world", "time", "town"},
		Columns:         []string{"id", "world", "town", "time", "points", "town_name"},
		InsertOnly:      []string{"id"},
		PreserveOnEmpty: []string{"town_name"},
	}
	sql := spec.mergeSQL()

	if strings.Contains(sql, "id = s.id") {
		t.Fatalf("insert-only column must stay out of the update arm:\n%s", sql)
	}
	if !strings.Contains(sql, "town_name = CASE WHEN s.town_name = '' THEN t.town_name ELSE s.town_name END") {
		t.Fatalf("preserve-on-empty column must keep existing value:\n%s", sql)
	}
	if !strings.Contains(sql, "INSERT INTO conquers (id, world, town, time, points, town_name)") {
		t.Fatalf("insert arm must carry all columns:\n%s", sql)
	}
}

func TestUpsertInsertTempUsesBatches(t *testing.T) {
	rows := make([]Row, 150)
	for i := range rows {
		rows[i] = Row{Int(i), Text("x")}
	}
	spec := UpsertSpec{
		Table:   "players",
		World:   "en1",
		Key:     []string{"world", "id"},
		Columns: []string{"id", "name"},
		Rows:    rows,
	}
	stmts := spec.insertTempSQL()
	if len(stmts) != 2 {
		t.Fatalf("expected 2 temp insert batches, got %d", len(stmts))
	}
	if !strings.HasPrefix(stmts[0], "INSERT INTO tmp_players_en1 (id, name) VALUES ") {
		t.Fatalf("unexpected temp insert: %s", stmts[0])
	}
}
