// Package sqlite is the Core Store's only implementation (§4.2), backed by
// github.com/ncruces/go-sqlite3 — a cgo-free SQLite driver compiled to
// WebAssembly and run through tetratelabs/wazero, matching the teacher's
// choice of engine. Grounded throughout on the teacher's
// internal/storage/sqlite package: schema.go's single embedded-SQL
// constant, migrations.go's ordered idempotent-migration list,
// collision.go's collision/rename detection, and resurrection.go's
// ancestor-chain recreation, each generalized from issues to tree nodes.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/untoldecay/treehouse/internal/corestore"
	"github.com/untoldecay/treehouse/internal/types"
)

// Store is the sqlite-backed corestore.Store.
type Store struct {
	db *sql.DB

	mu   sync.Mutex // guards the sink pointer
	sink corestore.ChangeSink
}

var _ corestore.Store = (*Store)(nil)

// Open opens (creating if absent) the sqlite database at path and applies
// the base schema plus any pending migrations. path may be ":memory:" for
// tests, matching the teacher's in-memory test fixtures.
func Open(path string) (*Store, error) {
	dsn := "file:" + path
	if path == ":memory:" {
		dsn = "file::memory:?cache=shared"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; matches §5's single-threaded model

	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode = WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply base schema: %w", err)
	}
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) SetChangeSink(sink corestore.ChangeSink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink = sink
}

func (s *Store) publish(ev types.ChangeEvent) {
	s.mu.Lock()
	sink := s.sink
	s.mu.Unlock()
	if sink != nil {
		sink(ev)
	}
}

// NextSeq allocates the next publication sequence number from the single
// seq_counter row, incrementing it atomically.
func (s *Store) NextSeq(ctx context.Context) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, wrapIO("NextSeq", err)
	}
	defer tx.Rollback()

	var next int64
	if err := tx.QueryRowContext(ctx, `SELECT next FROM seq_counter WHERE id = 1`).Scan(&next); err != nil {
		return 0, wrapIO("NextSeq", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE seq_counter SET next = ? WHERE id = 1`, next+1); err != nil {
		return 0, wrapIO("NextSeq", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, wrapIO("NextSeq", err)
	}
	return next, nil
}

func wrapIO(op string, err error) error {
	if err == nil {
		return nil
	}
	return types.NewError(types.KindIO, op, "", err)
}

// withTx runs fn inside a transaction, committing on nil return and
// rolling back otherwise. Grounded on the teacher's withTx closure idiom
// used throughout internal/storage/sqlite.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapIO("withTx", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return wrapIO("withTx", err)
	}
	return nil
}
