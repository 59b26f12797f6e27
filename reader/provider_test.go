package reader

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vegasq/objql/query"
)

func fixtureDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writePeople(t, filepath.Join(dir, "people.parquet"), person{1, "ann"}, person{2, "bob"}, person{3, "cid"})

	require.NoError(t, os.Mkdir(filepath.Join(dir, "batches"), 0o755))
	writePeople(t, filepath.Join(dir, "batches", "1.parquet"), person{10, "x"})
	writePeople(t, filepath.Join(dir, "batches", "2.parquet"), person{20, "y"}, person{30, "z"})

	require.NoError(t, os.Mkdir(filepath.Join(dir, "empty"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))
	return dir
}

func newEngine(t *testing.T, dir string) *query.Engine {
	t.Helper()
	e, err := query.NewEngine(context.Background(), query.WithProvider("", NewProvider(dir)))
	require.NoError(t, err)
	return e
}

func TestProviderTables(t *testing.T) {
	p := NewProvider(fixtureDir(t))
	tables, err := p.Tables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"batches", "people"}, tables)
}

func TestProviderColumns(t *testing.T) {
	p := NewProvider(fixtureDir(t))

	cols, err := p.Columns(context.Background(), "people")
	require.NoError(t, err)
	assert.ElementsMatch(t, []query.ColumnInfo{
		{Name: "id", Type: "BIGINT"},
		{Name: "name", Type: "STRING"},
	}, cols)

	cols, err = p.Columns(context.Background(), "batches")
	require.NoError(t, err)
	require.Len(t, cols, 3)
	assert.Equal(t, query.ColumnInfo{Name: FileColumn, Type: "STRING"}, cols[2])
}

func TestProviderUnknownTable(t *testing.T) {
	p := NewProvider(fixtureDir(t))
	for _, name := range []string{"missing", "empty", "..", "a/b"} {
		_, err := p.Columns(context.Background(), name)
		assert.ErrorIs(t, err, query.ErrUnknownTable, name)
	}
}

func TestProviderQuery(t *testing.T) {
	e := newEngine(t, fixtureDir(t))

	rows, err := e.Query(context.Background(), "FROM people SELECT name WHERE id > 1 ORDER BY id DESC", nil)
	require.NoError(t, err)
	assert.Equal(t, [][]interface{}{{"name"}, {"cid"}, {"bob"}}, rows)
}

func TestProviderDirectoryTable(t *testing.T) {
	e := newEngine(t, fixtureDir(t))

	rows, err := e.Query(context.Background(),
		"FROM batches SELECT COUNT(*) AS n, SUM(id) AS total", nil)
	require.NoError(t, err)
	assert.Equal(t, [][]interface{}{{"n", "total"}, {float64(3), float64(60)}}, rows)

	rows, err = e.Query(context.Background(),
		"FROM batches SELECT _file, COUNT(*) AS n GROUP BY _file ORDER BY _file", nil)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, float64(1), rows[1][1])
	assert.Equal(t, float64(2), rows[2][1])
}

func TestProviderInformationSchema(t *testing.T) {
	e := newEngine(t, fixtureDir(t))

	rows, err := e.Query(context.Background(),
		"FROM information_schema.columns SELECT column_name, data_type WHERE table_name = 'people' ORDER BY column_name", nil)
	require.NoError(t, err)
	assert.Equal(t, [][]interface{}{
		{"column_name", "data_type"},
		{"id", "BIGINT"},
		{"name", "STRING"},
	}, rows)
}
