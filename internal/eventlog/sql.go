/*
Package eventlog
File: sql.go
Description:
    Shared database/sql sink behind the SQLite and Postgres constructors.
    Rows of one step are committed together.
*/

package eventlog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

type dialect struct {
	name   string
	ddl    string
	insert string
}

// SQL appends events to an 'events' table. Rows of one step share a
// transaction that is committed when the next step starts or the log is
// finalized, so a reader never sees a partially written step.
type SQL struct {
	db      *sql.DB
	dialect dialect
	run     string
	t       int
	tx      *sql.Tx
	done    bool
}

func newSQL(ctx context.Context, db *sql.DB, d dialect, run string) (*SQL, error) {
	if run == "" {
		run = uuid.NewString()
	}
	if _, err := db.ExecContext(ctx, d.ddl); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create %s events table: %w", d.name, err)
	}
	return &SQL{db: db, dialect: d, run: run}, nil
}

// Run returns the identifier stamped on every row written by this sink.
func (s *SQL) Run() string { return s.run }

func (s *SQL) SetTime(t int) error {
	if s.done {
		return ErrFinalized
	}
	if err := s.commit(); err != nil {
		return err
	}
	s.t = t
	return nil
}

func (s *SQL) Infected(source, target int, distance float64) error {
	return s.insert(KindInfected, source, target, distance)
}

func (s *SQL) Recovered(target int) error {
	return s.insert(KindRecovered, NoSource, target, 0)
}

func (s *SQL) Died(target int) error {
	return s.insert(KindDied, NoSource, target, 0)
}

func (s *SQL) insert(kind Kind, source, target int, distance float64) error {
	if s.done {
		return ErrFinalized
	}
	ctx := context.Background()
	if s.tx == nil {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin step %d: %w", s.t, err)
		}
		s.tx = tx
	}
	src := sql.NullInt64{Int64: int64(source), Valid: source != NoSource}
	dist := sql.NullFloat64{Float64: distance, Valid: kind == KindInfected}
	if _, err := s.tx.ExecContext(ctx, s.dialect.insert, s.run, s.t, string(kind), src, target, dist); err != nil {
		_ = s.tx.Rollback()
		s.tx = nil
		return fmt.Errorf("insert %s event: %w", kind, err)
	}
	return nil
}

func (s *SQL) commit() error {
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit step %d: %w", s.t, err)
	}
	return nil
}

// Finalize commits the last step and closes the database handle.
func (s *SQL) Finalize() error {
	if s.done {
		return ErrFinalized
	}
	s.done = true
	err := s.commit()
	if cerr := s.db.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close %s: %w", s.dialect.name, cerr)
	}
	return err
}

// Counts returns how many events of each kind this run has committed.
func (s *SQL) Counts(ctx context.Context) (map[Kind]int, error) {
	q := `SELECT kind, COUNT(*) FROM events WHERE run = ? GROUP BY kind`
	if s.dialect.name == "postgres" {
		q = `SELECT kind, COUNT(*) FROM events WHERE run = $1 GROUP BY kind`
	}
	rows, err := s.db.QueryContext(ctx, q, s.run)
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}
	defer func() { _ = rows.Close() }()
	out := make(map[Kind]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out[Kind(kind)] = n
	}
	return out, rows.Err()
}
