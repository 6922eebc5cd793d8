/*
Package eventlog
File: postgres.go
Description:
    Postgres dialect and constructor through the pgx database/sql driver.
*/

package eventlog

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

const (
	postgresDriver = "pgx"
	// Used when OpenPostgres is given an empty DSN.
	defaultPostgresDSN = "postgres://localhost/outbreak?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

var postgresDialect = dialect{
	name: "postgres",
	ddl: `CREATE TABLE IF NOT EXISTS events (
		id BIGSERIAL PRIMARY KEY,
		run TEXT NOT NULL,
		step BIGINT NOT NULL,
		kind TEXT NOT NULL,
		source BIGINT,
		target BIGINT NOT NULL,
		distance DOUBLE PRECISION
	)`,
	insert: `INSERT INTO events (run, step, kind, source, target, distance) VALUES ($1, $2, $3, $4, $5, $6)`,
}

// OpenPostgres connects to dsn (falls back to defaultPostgresDSN), checks the
// connection and ensures the events table exists.
func OpenPostgres(ctx context.Context, dsn, run string) (*SQL, error) {
	if dsn == "" {
		dsn = defaultPostgresDSN
	}
	openMu.Lock()
	db, err := sqlOpen(postgresDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return newSQL(ctx, db, postgresDialect, run)
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
