package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// dsnParams configure every connection through the go-sqlite3 DSN.
// _txlock=immediate takes the write lock at BEGIN, so the seq read in
// nextSeq and the insert that uses it cannot interleave with another writer.
const dsnParams = "_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_txlock=immediate"

// migration upgrades the catalog by one user_version step.
type migration struct {
	version int
	name    string
	stmt    string
}

// migrations run in version order on top of schema.sql, which holds the
// version 0 tables.
var migrations = []migration{
	{
		version: 1,
		name:    "index pipelines by hash",
		stmt:    `CREATE INDEX IF NOT EXISTS idx_pipelines_hash ON pipelines(hash)`,
	},
}

// schemaVersion is the user_version of a fully migrated catalog.
func schemaVersion() int {
	return migrations[len(migrations)-1].version
}

// Store is a catalog of named pipelines and schemas kept in one SQLite
// file. It is safe for concurrent use.
type Store struct {
	db *sql.DB
}

// Open opens the catalog at path, creating the file and its tables if
// needed and applying pending migrations.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("open catalog: empty path")
	}

	db, err := sql.Open("sqlite3", path+"?"+dsnParams)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection serializes writers and keeps seq allocation linear.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database. Calling it more than once is harmless.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func migrate(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= version {
			continue
		}
		if err := applyMigration(db, m); err != nil {
			return err
		}
	}
	return nil
}

// applyMigration runs m and records its version in one transaction.
func applyMigration(db *sql.DB, m migration) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(m.stmt); err != nil {
		return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
		return fmt.Errorf("migration %d (%s): set user_version: %w", m.version, m.name, err)
	}
	return tx.Commit()
}

// write runs fn in a transaction stamped with the next value of the seq
// clock shared by pipelines and schemas. fn's error aborts the write and is
// returned unchanged.
func (s *Store) write(ctx context.Context, fn func(tx *sql.Tx, seq int64) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	seq, err := nextSeq(ctx, tx)
	if err != nil {
		return err
	}
	if err := fn(tx, seq); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

const lastSeqQuery = `
	SELECT COALESCE(MAX(seq), 0) FROM (
		SELECT seq FROM pipelines
		UNION ALL
		SELECT seq FROM schemas
	)`

// LastSeq returns the highest seq used by any record, 0 for an empty store.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq int64
	if err := s.db.QueryRowContext(ctx, lastSeqQuery).Scan(&seq); err != nil {
		return 0, fmt.Errorf("get last seq: %w", err)
	}
	return seq, nil
}

func nextSeq(ctx context.Context, tx *sql.Tx) (int64, error) {
	var seq int64
	if err := tx.QueryRowContext(ctx, lastSeqQuery).Scan(&seq); err != nil {
		return 0, fmt.Errorf("next seq: %w", err)
	}
	return seq + 1, nil
}

func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}
