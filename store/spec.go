// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"fmt"
	"strings"
	"time"
)

// insertBatchSize bounds how many value tuples go into a single INSERT
// statement.
const insertBatchSize = 100

// Value is one SQL literal destined for a rendered VALUES tuple.
// Construct through Text/Int/Bool/Time, which escape, or Raw, which
// passes an expression through verbatim (sequence defaults like
// nextval need this).
type Value struct {
	expr string
}

// Text renders an escaped, quoted string literal.
func Text(s string) Value {
	return Value{expr: "'" + strings.ReplaceAll(s, "'", "''") + "'"}
}

// Int renders an integer literal.
func Int(n int) Value {
	return Value{expr: fmt.Sprintf("%d", n)}
}

// Bool renders TRUE or FALSE.
func Bool(b bool) Value {
	if b {
		return Value{expr: "TRUE"}
	}
	return Value{expr: "FALSE"}
}

// Time renders a quoted UTC timestamp literal.
func Time(t time.Time) Value {
	return Value{expr: "'" + t.UTC().Format("2006-01-02 15:04:05") + "+00'"}
}

// Raw passes expr through without quoting or escaping. Callers must
// only pass trusted expressions, never feed-derived data.
func Raw(expr string) Value {
	return Value{expr: expr}
}

// Row is one VALUES tuple, positionally matching a spec's Columns.
type Row []Value

// SelectSpec describes a read. Where uses $n placeholders bound to
// Args; rendering never interpolates Args into the SQL text.
type SelectSpec struct {
	Table   string
	Columns []string
	Where   string
	OrderBy string
	Args    []any
}

// SQL renders the SELECT statement.
func (s SelectSpec) SQL() string {
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(s.Columns, ", "))
	b.WriteString(" FROM ")
	b.WriteString(s.Table)
	if s.Where != "" {
		b.WriteString(" WHERE ")
		b.WriteString(s.Where)
	}
	if s.OrderBy != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(s.OrderBy)
	}
	return b.String()
}

// InsertSpec describes a bulk append. Rows are rendered as literal
// tuples and partitioned into statements of at most insertBatchSize
// tuples each.
type InsertSpec struct {
	Table   string
	Columns []string
	Rows    []Row
}

// statements renders the batched INSERT statements.
func (s InsertSpec) statements() []string {
	return renderInserts(s.Table, s.Columns, s.Rows)
}

func renderInserts(table string, columns []string, rows []Row) []string {
	var stmts []string
	for start := 0; start < len(rows); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(rows) {
			end = len(rows)
		}

		var b strings.Builder
		b.WriteString("INSERT INTO ")
		b.WriteString(table)
		b.WriteString(" (")
		b.WriteString(strings.Join(columns, ", "))
		b.WriteString(") VALUES ")
		for i, row := range rows[start:end] {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString("(")
			for j, v := range row {
				if j > 0 {
					b.WriteString(", ")
				}
				b.WriteString(v.expr)
			}
			b.WriteString(")")
		}
		stmts = append(stmts, b.String())
	}
	return stmts
}

// UpsertSpec describes one temp-table upsert call against Table.
//
// Key lists the natural key columns the merge matches on. Columns is
// the full insert column list (key columns included). InsertOnly
// columns are written on insert but never touched by the update arm
// (sequence-assigned ids). PreserveOnEmpty columns keep the existing
// target value when the incoming literal is the empty string, so a
// denormalized name can only go empty→filled.
type UpsertSpec struct {
	Table           string
	World           string
	Key             []string
	Columns         []string
	InsertOnly      []string
	PreserveOnEmpty []string
	Rows            []Row
}

// tempTable is scoped per (table, world) so concurrent upserts into
// the same target from different worlds cannot collide.
func (s UpsertSpec) tempTable() string {
	return "tmp_" + s.Table + "_" + s.World
}

func (s UpsertSpec) createTempSQL() string {
	return fmt.Sprintf("CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS)", s.tempTable(), s.Table)
}

func (s UpsertSpec) indexTempSQL() string {
	return fmt.Sprintf("CREATE INDEX ON %s (%s)", s.tempTable(), strings.Join(s.Key, ", "))
}

func (s UpsertSpec) insertTempSQL() []string {
	return renderInserts(s.tempTable(), s.Columns, s.Rows)
}

func (s UpsertSpec) dropTempSQL() string {
	return "DROP TABLE " + s.tempTable()
}

func (s UpsertSpec) isKey(col string) bool {
	return contains(s.Key, col)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// mergeSQL renders the single statement that applies the temp table to
// the target: a CTE updates every matching row and returns the matched
// keys, then the remainder (keys the CTE did not return) is inserted.
// Each incoming row is therefore updated or inserted exactly once,
// with no separate existence check.
func (s UpsertSpec) mergeSQL() string {
	tmp := s.tempTable()

	var sets []string
	for _, col := range s.Columns {
		if s.isKey(col) || contains(s.InsertOnly, col) {
			continue
		}
		if contains(s.PreserveOnEmpty, col) {
			sets = append(sets, fmt.Sprintf("%s = CASE WHEN s.%s = '' THEN t.%s ELSE s.%s END", col, col, col, col))
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = s.%s", col, col))
	}

	var match []string
	for _, col := range s.Key {
		match = append(match, fmt.Sprintf("t.%s = s.%s", col, col))
	}
	var notMatched []string
	for _, col := range s.Key {
		notMatched = append(notMatched, fmt.Sprintf("u.%s = s.%s", col, col))
	}

	returning := make([]string, len(s.Key))
	selected := make([]string, len(s.Columns))
	for i, col := range s.Key {
		returning[i] = "t." + col
	}
	for i, col := range s.Columns {
		selected[i] = "s." + col
	}

	return fmt.Sprintf(
		`WITH updated AS (
	UPDATE %s AS t SET %s
	FROM %s AS s
	WHERE %s
	RETURNING %s
)
INSERT INTO %s (%s)
SELECT %s FROM %s AS s
WHERE NOT EXISTS (SELECT 1 FROM updated AS u WHERE %s)`,
		s.Table, strings.Join(sets, ", "),
		tmp,
		strings.Join(match, " AND "),
		strings.Join(returning, ", "),
		s.Table, strings.Join(s.Columns, ", "),
		strings.Join(selected, ", "), tmp,
		strings.Join(notMatched, " AND "),
	)
}
