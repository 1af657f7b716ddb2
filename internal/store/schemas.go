package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/pipeql/internal/ir"
)

// SchemaRecord is a stored input schema.
type SchemaRecord struct {
	ID     string
	Name   string
	Schema ir.Schema
	JSON   string
	Hash   string // ir.SchemaID of Schema
	Seq    int64
}

const selectSchema = `SELECT id, name, schema, hash, seq FROM schemas`

// SaveSchema stores sch under name, replacing any schema already there.
func (s *Store) SaveSchema(ctx context.Context, name string, sch ir.Schema) (SchemaRecord, error) {
	if name == "" {
		return SchemaRecord{}, fmt.Errorf("save schema: empty name")
	}
	data, err := ir.MarshalSchema(sch)
	if err != nil {
		return SchemaRecord{}, fmt.Errorf("save schema %q: %w", name, err)
	}
	hash, err := ir.SchemaID(sch)
	if err != nil {
		return SchemaRecord{}, fmt.Errorf("save schema %q: %w", name, err)
	}

	var rec SchemaRecord
	err = s.write(ctx, func(tx *sql.Tx, seq int64) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO schemas (id, name, schema, hash, seq)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(name) DO UPDATE SET
				schema = excluded.schema,
				hash = excluded.hash,
				seq = excluded.seq
		`, newID(), name, string(data), hash, seq)
		if err != nil {
			return err
		}
		rec, err = scanSchema(tx.QueryRowContext(ctx, selectSchema+` WHERE name = ?`, name))
		return err
	})
	if err != nil {
		return SchemaRecord{}, fmt.Errorf("save schema %q: %w", name, err)
	}
	return rec, nil
}

// LoadSchema returns the schema stored under name.
func (s *Store) LoadSchema(ctx context.Context, name string) (SchemaRecord, error) {
	rec, err := scanSchema(s.db.QueryRowContext(ctx, selectSchema+` WHERE name = ?`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return SchemaRecord{}, fmt.Errorf("schema %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return SchemaRecord{}, fmt.Errorf("load schema %q: %w", name, err)
	}
	return rec, nil
}

// ListSchemas returns every stored schema ordered by name.
func (s *Store) ListSchemas(ctx context.Context) ([]SchemaRecord, error) {
	rows, err := s.db.QueryContext(ctx, selectSchema+` ORDER BY name COLLATE BINARY ASC`)
	if err != nil {
		return nil, fmt.Errorf("query schemas: %w", err)
	}
	defer rows.Close()

	records := []SchemaRecord{}
	for rows.Next() {
		rec, err := scanSchema(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schemas: %w", err)
	}
	return records, nil
}

func scanSchema(row rowScanner) (SchemaRecord, error) {
	var rec SchemaRecord
	if err := row.Scan(&rec.ID, &rec.Name, &rec.JSON, &rec.Hash, &rec.Seq); err != nil {
		return SchemaRecord{}, err
	}
	sch, err := ir.UnmarshalSchema([]byte(rec.JSON))
	if err != nil {
		return SchemaRecord{}, fmt.Errorf("stored schema %q: %w", rec.Name, err)
	}
	rec.Schema = sch
	return rec, nil
}
