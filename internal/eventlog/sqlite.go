/*
Package eventlog
File: sqlite.go
Description:
    SQLite dialect and constructor (pure Go driver).
*/

package eventlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

var sqliteDialect = dialect{
	name: "sqlite",
	ddl: `CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run TEXT NOT NULL,
		step INTEGER NOT NULL,
		kind TEXT NOT NULL,
		source INTEGER,
		target INTEGER NOT NULL,
		distance REAL
	)`,
	insert: `INSERT INTO events (run, step, kind, source, target, distance) VALUES (?, ?, ?, ?, ?, ?)`,
}

// OpenSQLite opens (creating if needed) an SQLite database at path and
// returns a sink writing to its events table. An empty run gets a random id.
func OpenSQLite(ctx context.Context, path, run string) (*SQL, error) {
	if path == "" {
		path = "outbreak.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return newSQL(ctx, db, sqliteDialect, run)
}
