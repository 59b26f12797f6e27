package viewstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vegasq/objql/memory"
	"github.com/vegasq/objql/query"
)

func TestLoadMissingFile(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "views.yaml"))
	views, err := s.LoadViews(context.Background())
	require.NoError(t, err)
	assert.Empty(t, views)
}

func TestSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	s := New(filepath.Join(t.TempDir(), "nested", "views.yaml"))
	want := []query.ViewDefinition{
		{Name: "evens", Definition: "FROM Test SELECT n WHERE n % 2 = 0"},
		{Name: "one", Definition: "SELECT 1 AS x"},
	}
	require.NoError(t, s.SaveViews(ctx, want))

	got, err := s.LoadViews(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadRejectsBadEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "views.yaml")
	s := New(path)

	require.NoError(t, os.WriteFile(path, []byte("views:\n  - name: v\n"), 0o644))
	_, err := s.LoadViews(context.Background())
	assert.ErrorContains(t, err, "needs a name and a definition")

	require.NoError(t, os.WriteFile(path, []byte("viewz: []\n"), 0o644))
	_, err = s.LoadViews(context.Background())
	assert.ErrorContains(t, err, "failed to parse view store")
}

func TestEngineViewsPersist(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "views.yaml")
	provider := query.WithProvider("", memory.Demo())

	e, err := query.NewEngine(ctx, provider, query.WithViewStore(New(path)))
	require.NoError(t, err)
	_, err = e.Query(ctx, "CREATE VIEW small AS FROM Test SELECT n WHERE n < 3", nil)
	require.NoError(t, err)

	reopened, err := query.NewEngine(ctx, provider, query.WithViewStore(New(path)))
	require.NoError(t, err)
	rows, err := reopened.Query(ctx, "FROM small SELECT COUNT(*) AS c", nil)
	require.NoError(t, err)
	assert.Equal(t, [][]interface{}{{"c"}, {float64(3)}}, rows)

	_, err = reopened.Query(ctx, "DROP VIEW small", nil)
	require.NoError(t, err)
	views, err := New(path).LoadViews(ctx)
	require.NoError(t, err)
	assert.Empty(t, views)
}
