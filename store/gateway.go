// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

// Package store is the relational gateway: a thin pgx pool wrapper
// plus the typed query specs and the temp-table upsert protocol used
// to emulate multi-row upsert.
package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// QueryError wraps any relational-store failure (connection, SQL,
// constraint) behind one type. The gateway never retries; retry policy
// belongs to whoever scheduled the work.
type QueryError struct {
	Stmt string
	Err  error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Stmt, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// stmtSummary keeps logged statement text short.
func stmtSummary(sql string) string {
	const max = 80
	if len(sql) > max {
		return sql[:max] + "..."
	}
	return sql
}

// Gateway executes queries against the shared connection pool. Each
// call acquires and releases its own connection; no transaction spans
// more than one call.
type Gateway struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New returns a Gateway over an existing pool. A nil logger falls back
// to slog.Default().
func New(pool *pgxpool.Pool, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{pool: pool, logger: logger}
}

// Exec runs one statement.
func (g *Gateway) Exec(ctx context.Context, sql string, args ...any) error {
	if _, err := g.pool.Exec(ctx, sql, args...); err != nil {
		return &QueryError{Stmt: stmtSummary(sql), Err: err}
	}
	return nil
}

// Select runs a SelectSpec and returns the row set. The caller owns
// closing the rows.
func (g *Gateway) Select(ctx context.Context, spec SelectSpec) (pgx.Rows, error) {
	sql := spec.SQL()
	rows, err := g.pool.Query(ctx, sql, spec.Args...)
	if err != nil {
		return nil, &QueryError{Stmt: stmtSummary(sql), Err: err}
	}
	return rows, nil
}

// Insert bulk-appends the spec's rows, in statement batches of at most
// 100 tuples. Statements run sequentially; the first failure aborts.
func (g *Gateway) Insert(ctx context.Context, spec InsertSpec) error {
	for _, sql := range spec.statements() {
		if err := g.Exec(ctx, sql); err != nil {
			return err
		}
	}
	return nil
}

// Upsert applies the spec through the temp-table protocol:
//
//  1. create a temp table cloning the target, indexed on the key;
//  2. bulk-insert the batch into it;
//  3. merge: one update-returning CTE feeding a not-matched insert;
//  4. drop the temp table.
//
// The whole protocol runs in a single transaction on one pooled
// connection, so the temp table is visible throughout and any failure
// in steps 2-4 rolls the call back as a unit.
func (g *Gateway) Upsert(ctx context.Context, spec UpsertSpec) error {
	if len(spec.Rows) == 0 {
		return nil
	}

	err := pgx.BeginFunc(ctx, g.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, spec.createTempSQL()); err != nil {
			return &QueryError{Stmt: stmtSummary(spec.createTempSQL()), Err: err}
		}
		if _, err := tx.Exec(ctx, spec.indexTempSQL()); err != nil {
			return &QueryError{Stmt: stmtSummary(spec.indexTempSQL()), Err: err}
		}
		for _, sql := range spec.insertTempSQL() {
			if _, err := tx.Exec(ctx, sql); err != nil {
				return &QueryError{Stmt: stmtSummary(sql), Err: err}
			}
		}
		merge := spec.mergeSQL()
		if _, err := tx.Exec(ctx, merge); err != nil {
			return &QueryError{Stmt: stmtSummary(merge), Err: err}
		}
		if _, err := tx.Exec(ctx, spec.dropTempSQL()); err != nil {
			return &QueryError{Stmt: stmtSummary(spec.dropTempSQL()), Err: err}
		}
		return nil
	})
	if err != nil {
		return err
	}

	g.logger.Debug("upsert applied",
		"table", spec.Table, "world", spec.World, "rows", len(spec.Rows))
	return nil
}
