package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func userVersion(t *testing.T, db *sql.DB) int {
	t.Helper()
	var v int
	require.NoError(t, db.QueryRow("PRAGMA user_version").Scan(&v))
	return v
}

func indexNames(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()
	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type = 'index' AND tbl_name = ?", table)
	require.NoError(t, err)
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		names = append(names, name)
	}
	require.NoError(t, rows.Err())
	return names
}

func TestOpen_CreatesCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	require.NoError(t, err)

	for _, table := range []string{"pipelines", "schemas"} {
		var n int
		err := s.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n)
		require.NoError(t, err, table)
		assert.Zero(t, n, table)
	}
	assert.Equal(t, schemaVersion(), userVersion(t, s.db))
}

func TestOpen_ReopenKeepsRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.SavePipeline(ctx, "top", "", limitPipeline(3))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	for i := 0; i < 2; i++ {
		s, err = Open(path)
		require.NoError(t, err, "reopen %d", i)

		rec, err := s.LoadPipeline(ctx, "top")
		require.NoError(t, err)
		assert.Equal(t, int64(1), rec.Seq)
		assert.Equal(t, schemaVersion(), userVersion(t, s.db))
		require.NoError(t, s.Close())
	}
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open("")
	assert.EqualError(t, err, "open catalog: empty path")

	_, err = Open(filepath.Join(t.TempDir(), "missing", "catalog.db"))
	assert.Error(t, err)
}

func TestOpen_ConnectionPragmas(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		pragma string
		want   string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"},
		{"busy_timeout", "5000"},
	}

	for _, tt := range tests {
		t.Run(tt.pragma, func(t *testing.T) {
			var got string
			require.NoError(t, s.db.QueryRow("PRAGMA "+tt.pragma).Scan(&got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClose_Twice(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)

	require.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}

func TestMigrate_UpgradesVersionZeroCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(schemaSQL)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO pipelines (id, name, query, pipeline, hash, seq) VALUES ('a', 'old', '', '[]', 'h', 7)`)
	require.NoError(t, err)
	assert.NotContains(t, indexNames(t, db, "pipelines"), "idx_pipelines_hash")
	require.NoError(t, db.Close())

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, schemaVersion(), userVersion(t, s.db))
	assert.Contains(t, indexNames(t, s.db, "pipelines"), "idx_pipelines_hash")

	seq, err := s.LastSeq(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), seq)
}

func TestMigrations_AreOrdered(t *testing.T) {
	require.NotEmpty(t, migrations)
	for i, m := range migrations {
		assert.Equal(t, i+1, m.version, m.name)
		assert.NotEmpty(t, m.stmt, m.name)
	}
}

func TestWrite_AllocatesSeqAndRollsBack(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.SaveSchema(ctx, "orders", ordersSchema())
	require.NoError(t, err)

	boom := errors.New("boom")
	err = s.write(ctx, func(tx *sql.Tx, seq int64) error {
		assert.Equal(t, int64(2), seq)
		_, err := tx.ExecContext(ctx, `INSERT INTO pipelines (id, name, query, pipeline, hash, seq) VALUES ('x', 'lost', '', '[]', 'h', ?)`, seq)
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.LoadPipeline(ctx, "lost")
	assert.ErrorIs(t, err, ErrNotFound)

	last, err := s.LastSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), last)
}

func TestPipelineNameIsUnique(t *testing.T) {
	s := createTestStore(t)

	insert := `INSERT INTO pipelines (id, name, query, pipeline, hash, seq) VALUES (?, 'dup', '', '[]', 'h', 1)`
	_, err := s.db.Exec(insert, "a")
	require.NoError(t, err)
	_, err = s.db.Exec(insert, "b")
	assert.Error(t, err)
}
