package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/pipeql/internal/ir"
)

// ErrNotFound is returned when no record has the requested name.
var ErrNotFound = errors.New("not found")

// Record is a stored pipeline.
type Record struct {
	ID       string // UUIDv7, stable across re-saves of the same name
	Name     string
	Query    string // source query, empty for pipelines saved from JSON
	Pipeline ir.Pipeline
	JSON     string // canonical encoding
	Hash     string // ir.PipelineID of Pipeline
	Seq      int64
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// SavePipeline stores p under name. Saving an existing name replaces the
// stored query and pipeline, keeps the record ID and takes a new seq.
func (s *Store) SavePipeline(ctx context.Context, name, query string, p ir.Pipeline) (Record, error) {
	if name == "" {
		return Record{}, fmt.Errorf("save pipeline: empty name")
	}
	data, err := ir.MarshalPipeline(p)
	if err != nil {
		return Record{}, fmt.Errorf("save pipeline %q: %w", name, err)
	}
	hash, err := ir.PipelineID(p)
	if err != nil {
		return Record{}, fmt.Errorf("save pipeline %q: %w", name, err)
	}

	var rec Record
	err = s.write(ctx, func(tx *sql.Tx, seq int64) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO pipelines (id, name, query, pipeline, hash, seq)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(name) DO UPDATE SET
				query = excluded.query,
				pipeline = excluded.pipeline,
				hash = excluded.hash,
				seq = excluded.seq
		`, newID(), name, query, string(data), hash, seq)
		if err != nil {
			return err
		}
		rec, err = scanPipeline(tx.QueryRowContext(ctx, selectPipeline+` WHERE name = ?`, name))
		return err
	})
	if err != nil {
		return Record{}, fmt.Errorf("save pipeline %q: %w", name, err)
	}
	return rec, nil
}

const selectPipeline = `SELECT id, name, query, pipeline, hash, seq FROM pipelines`

// LoadPipeline returns the pipeline stored under name, decoded through the
// codec. Returns an error wrapping ErrNotFound if there is none.
func (s *Store) LoadPipeline(ctx context.Context, name string) (Record, error) {
	rec, err := scanPipeline(s.db.QueryRowContext(ctx, selectPipeline+` WHERE name = ?`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("pipeline %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return Record{}, fmt.Errorf("load pipeline %q: %w", name, err)
	}
	return rec, nil
}

// ListPipelines returns every stored pipeline ordered by name.
// Returns an empty slice (not nil) if there are none.
func (s *Store) ListPipelines(ctx context.Context) ([]Record, error) {
	return s.queryPipelines(ctx, selectPipeline+` ORDER BY name COLLATE BINARY ASC`)
}

// FindPipelinesByHash returns the pipelines whose canonical encoding has
// the given content hash, ordered by name.
func (s *Store) FindPipelinesByHash(ctx context.Context, hash string) ([]Record, error) {
	return s.queryPipelines(ctx, selectPipeline+` WHERE hash = ? ORDER BY name COLLATE BINARY ASC`, hash)
}

func (s *Store) queryPipelines(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query pipelines: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanPipeline(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pipelines: %w", err)
	}
	return records, nil
}

// DeletePipeline removes the pipeline stored under name.
func (s *Store) DeletePipeline(ctx context.Context, name string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM pipelines WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete pipeline %q: %w", name, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete pipeline %q: rows affected: %w", name, err)
	}
	if n == 0 {
		return fmt.Errorf("pipeline %q: %w", name, ErrNotFound)
	}
	return nil
}

func scanPipeline(row rowScanner) (Record, error) {
	var rec Record
	if err := row.Scan(&rec.ID, &rec.Name, &rec.Query, &rec.JSON, &rec.Hash, &rec.Seq); err != nil {
		return Record{}, err
	}
	p, err := ir.UnmarshalPipeline([]byte(rec.JSON))
	if err != nil {
		return Record{}, fmt.Errorf("stored pipeline %q: %w", rec.Name, err)
	}
	rec.Pipeline = p
	return rec, nil
}
