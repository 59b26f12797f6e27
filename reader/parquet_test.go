package reader

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type person struct {
	ID   int64  `parquet:"id"`
	Name string `parquet:"name"`
}

func writePeople(t *testing.T, path string, people ...person) {
	t.Helper()
	require.NoError(t, parquet.WriteFile(path, people))
}

func TestReaderReadAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "people.parquet")
	writePeople(t, path, person{1, "ann"}, person{2, "bob"})

	r, err := NewReader(path)
	require.NoError(t, err)
	defer r.Close()

	assert.EqualValues(t, 2, r.NumRows())
	rows, err := r.ReadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.EqualValues(t, 1, rows[0]["id"])
	assert.Equal(t, "bob", rows[1]["name"])
}

func TestReaderReadAllCancelled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "people.parquet")
	writePeople(t, path, person{1, "ann"})

	r, err := NewReader(path)
	require.NoError(t, err)
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.ReadAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReaderCloseTwice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "people.parquet")
	writePeople(t, path, person{1, "ann"})

	r, err := NewReader(path)
	require.NoError(t, err)
	assert.NoError(t, r.Close())
	assert.NoError(t, r.Close())
}

func TestNewReaderErrors(t *testing.T) {
	_, err := NewReader(filepath.Join(t.TempDir(), "missing.parquet"))
	assert.ErrorContains(t, err, "failed to open file")
}

func TestReadMultipleFiles(t *testing.T) {
	dir := t.TempDir()
	writePeople(t, filepath.Join(dir, "a.parquet"), person{1, "ann"})
	writePeople(t, filepath.Join(dir, "b.parquet"), person{2, "bob"}, person{3, "cid"})

	rows, err := ReadMultipleFiles(context.Background(), filepath.Join(dir, "*.parquet"))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, filepath.Join(dir, "a.parquet"), rows[0][FileColumn])
	assert.Equal(t, filepath.Join(dir, "b.parquet"), rows[2][FileColumn])

	t.Run("single file is untagged", func(t *testing.T) {
		rows, err := ReadMultipleFiles(context.Background(), filepath.Join(dir, "a.parquet"))
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.NotContains(t, rows[0], FileColumn)
	})

	t.Run("no match", func(t *testing.T) {
		_, err := ReadMultipleFiles(context.Background(), filepath.Join(dir, "*.csv"))
		assert.ErrorContains(t, err, "no files match pattern")
	})
}

func TestExtractSchemaInfo(t *testing.T) {
	type order struct {
		ID    int64    `parquet:"id"`
		Total float64  `parquet:"total"`
		Paid  bool     `parquet:"paid"`
		Note  *string  `parquet:"note,optional"`
		Tags  []string `parquet:"tags"`
	}
	path := filepath.Join(t.TempDir(), "orders.parquet")
	require.NoError(t, parquet.WriteFile(path, []order{{ID: 1, Total: 9.5, Tags: []string{"x"}}}))

	infos, err := ExtractSchemaInfo(path)
	require.NoError(t, err)

	byName := make(map[string]SchemaInfo)
	for _, info := range infos {
		byName[info.Name] = info
	}
	require.Len(t, byName, 5)
	assert.Equal(t, "BIGINT", byName["id"].Type)
	assert.Equal(t, "INT64", byName["id"].PhysicalType)
	assert.Equal(t, "DOUBLE", byName["total"].Type)
	assert.Equal(t, "BOOLEAN", byName["paid"].Type)
	assert.Equal(t, "STRING", byName["note"].Type)
	assert.True(t, byName["note"].Optional)
	assert.Equal(t, "LIST", byName["tags"].Type)
	assert.True(t, byName["tags"].Repeated)
}
