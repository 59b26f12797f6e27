package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterRowsUnresolvedSymbols(t *testing.T) {
	e, err := NewEngine(context.Background())
	require.NoError(t, err)
	qc := newQueryContext(context.Background(), e, nil)

	stmt := parseStatement(t, "SELECT nope = 1")
	pred := stmt.Clause("SELECT").Children[0]
	rows := []*ResultRow{NewResultRow("0"), NewResultRow("1")}

	kept, err := qc.filterRows(rows, pred, false)
	require.NoError(t, err)
	assert.Len(t, kept, 2, "non-strict keeps rows to re-check later")

	kept, err = qc.filterRows(rows, pred, true)
	require.NoError(t, err)
	assert.Empty(t, kept, "strict drops them")

	stmt = parseStatement(t, "SELECT 1 = 1")
	kept, err = qc.filterRows(rows, stmt.Clause("SELECT").Children[0], true)
	require.NoError(t, err)
	assert.Len(t, kept, 2)
}
