package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vegasq/objql/query"
)

func records(t *testing.T, p *Provider, name string) []interface{} {
	t.Helper()
	rows, err := p.PrimaryTable(context.Background(), &query.ParsedTable{Name: name})
	require.NoError(t, err)
	return rows
}

func TestDemoTables(t *testing.T) {
	p := Demo()
	tables, err := p.Tables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Test", "Users"}, tables)

	rows := records(t, p, "Test")
	require.Len(t, rows, 10)
	assert.Equal(t, map[string]interface{}{"n": 7, "n2": 2, "n3": 2}, rows[7])
}

func TestColumns(t *testing.T) {
	p := New()
	p.AddTable("t", []map[string]interface{}{
		{"b": nil, "a": "x"},
		{"b": 2.5, "c": true},
	})

	cols, err := p.Columns(context.Background(), "t")
	require.NoError(t, err)
	assert.Equal(t, []query.ColumnInfo{
		{Name: "a", Type: "STRING"},
		{Name: "b", Type: "DOUBLE"},
		{Name: "c", Type: "BOOLEAN"},
	}, cols)

	_, err = p.Columns(context.Background(), "missing")
	assert.ErrorIs(t, err, query.ErrUnknownTable)
}

func TestCreateAndDropTable(t *testing.T) {
	ctx := context.Background()
	p := New()

	require.NoError(t, p.CreateTable(ctx, "t", []query.ColumnInfo{{Name: "id", Type: "INTEGER"}}, false))
	assert.ErrorIs(t, p.CreateTable(ctx, "t", nil, false), query.ErrTableExists)
	assert.NoError(t, p.CreateTable(ctx, "t", nil, true))

	require.NoError(t, p.DropTable(ctx, "t", false))
	assert.ErrorIs(t, p.DropTable(ctx, "t", false), query.ErrUnknownTable)
	assert.NoError(t, p.DropTable(ctx, "t", true))
}

func TestInsertDuplicates(t *testing.T) {
	bump := func(rec map[string]interface{}) (map[string]interface{}, error) {
		out := map[string]interface{}{}
		for k, v := range rec {
			out[k] = v
		}
		out["hits"] = rec["hits"].(float64) + 1
		return out, nil
	}

	tests := []struct {
		name     string
		opts     query.InsertOptions
		affected int
		wantErr  error
		hits     interface{}
	}{
		{"error", query.InsertOptions{}, 0, query.ErrDuplicateKey, 1.0},
		{"ignore", query.InsertOptions{OnDuplicate: query.DuplicateIgnore}, 1, nil, 1.0},
		{"update", query.InsertOptions{OnDuplicate: query.DuplicateUpdate, Update: bump}, 2, nil, 2.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			p := New()
			p.AddTable("t", []map[string]interface{}{{"id": 1, "hits": 1.0}})

			n, err := p.InsertIntoTable(ctx, "t", []map[string]interface{}{
				{"id": 2.0, "hits": 1.0},
				{"id": 1.0, "hits": 9.0},
			}, tt.opts)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Len(t, records(t, p, "t"), 1, "failed insert must not change the table")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.affected, n)

			rows := records(t, p, "t")
			require.Len(t, rows, 2)
			assert.Equal(t, tt.hits, rows[0].(map[string]interface{})["hits"])
		})
	}
}

func TestInsertFillsDeclaredColumns(t *testing.T) {
	ctx := context.Background()
	p := New()
	require.NoError(t, p.CreateTable(ctx, "t", []query.ColumnInfo{{Name: "id"}, {Name: "name"}}, false))

	n, err := p.InsertIntoTable(ctx, "t", []map[string]interface{}{{"id": 1.0}}, query.InsertOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, map[string]interface{}{"id": 1.0, "name": nil}, records(t, p, "t")[0])
}

func TestUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	p := Demo()
	even := func(rec map[string]interface{}) (bool, error) { return rec["n"].(int)%2 == 0, nil }

	n, err := p.UpdateTable(ctx, "Test", func(rec map[string]interface{}) (map[string]interface{}, error) {
		return map[string]interface{}{"n": rec["n"], "n2": rec["n2"], "n3": -1}, nil
	}, even)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	rows := records(t, p, "Test")
	assert.Equal(t, -1, rows[4].(map[string]interface{})["n3"])
	assert.Equal(t, 1, rows[5].(map[string]interface{})["n3"])

	n, err = p.DeleteFromTable(ctx, "Test", even)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Len(t, records(t, p, "Test"), 5)

	_, err = p.DeleteFromTable(ctx, "missing", even)
	assert.ErrorIs(t, err, query.ErrUnknownTable)
}

func TestUpdateDoesNotMutateSnapshots(t *testing.T) {
	ctx := context.Background()
	p := Demo()
	before := records(t, p, "Test")

	_, err := p.UpdateTable(ctx, "Test", func(map[string]interface{}) (map[string]interface{}, error) {
		return map[string]interface{}{"n": 100}, nil
	}, func(map[string]interface{}) (bool, error) { return true, nil })
	require.NoError(t, err)

	assert.Equal(t, 0, before[0].(map[string]interface{})["n"])
	assert.Equal(t, 100, records(t, p, "Test")[0].(map[string]interface{})["n"])
}
