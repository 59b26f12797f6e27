package query

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseStatement(t *testing.T, query string) *Statement {
	t.Helper()
	node, err := Parse(query)
	require.NoError(t, err)
	stmt, ok := node.(*Statement)
	require.True(t, ok, "expected a statement, got %s", node.Kind())
	return stmt
}

func clauseIDs(stmt *Statement) []string {
	ids := make([]string, len(stmt.Clauses))
	for i, c := range stmt.Clauses {
		ids[i] = c.ID
	}
	return ids
}

func TestParseClausesInAnyOrder(t *testing.T) {
	stmt := parseStatement(t, "FROM Test SELECT n WHERE n > 1")
	assert.Equal(t, []string{"FROM", "SELECT", "WHERE"}, clauseIDs(stmt))
	assert.Equal(t, "FROM Test SELECT n WHERE n > 1", stmt.Source)

	ref := stmt.Clause("FROM").Children[0].(*TableRef)
	assert.Equal(t, "Test", ref.Source.(*Symbol).Name)

	where := stmt.Clause("WHERE").Children[0].(*Operator)
	assert.Equal(t, ">", where.Op)
	assert.Equal(t, "n > 1", where.Source)
}

func TestParseSelectAliases(t *testing.T) {
	stmt := parseStatement(t, "SELECT n AS a, n2 b, COUNT(DISTINCT n3)")
	cols := stmt.Clause("SELECT").Children
	require.Len(t, cols, 3)
	assert.Equal(t, "a", cols[0].Meta().Alias)
	assert.Equal(t, "b", cols[1].Meta().Alias)

	call := cols[2].(*FunctionCall)
	assert.Equal(t, "COUNT", call.Name)
	assert.True(t, call.Distinct)
	assert.Equal(t, "COUNT(DISTINCT n3)", call.Source)
}

func TestParsePrecedence(t *testing.T) {
	stmt := parseStatement(t, "SELECT 1 + 2 * 3")
	op := stmt.Clause("SELECT").Children[0].(*Operator)
	assert.Equal(t, "+", op.Op)
	assert.Equal(t, "*", op.Operands[1].(*Operator).Op)

	stmt = parseStatement(t, "SELECT a OR b AND c")
	op = stmt.Clause("SELECT").Children[0].(*Operator)
	assert.Equal(t, "OR", op.Op)
	assert.Equal(t, "AND", op.Operands[1].(*Operator).Op)
}

func TestParseOrderBy(t *testing.T) {
	stmt := parseStatement(t, "FROM t ORDER BY a DESC NULLS LAST, b")
	terms := stmt.Clause("ORDER BY").Children
	require.Len(t, terms, 2)
	assert.True(t, terms[0].Meta().Desc)
	assert.Equal(t, NullsLast, terms[0].Meta().Nulls)
	assert.False(t, terms[1].Meta().Desc)
	assert.Equal(t, NullsDefault, terms[1].Meta().Nulls)
}

func TestParseCompound(t *testing.T) {
	node, err := Parse("FROM a SELECT x UNION ALL FROM b SELECT y EXCEPT FROM c SELECT z")
	require.NoError(t, err)
	outer, ok := node.(*CompoundQuery)
	require.True(t, ok)
	assert.Equal(t, "EXCEPT", outer.Op)
	inner, ok := outer.Left.(*CompoundQuery)
	require.True(t, ok)
	assert.Equal(t, "UNION ALL", inner.Op)
}

func TestParseJoins(t *testing.T) {
	stmt := parseStatement(t, "FROM Users u LEFT JOIN posts p ON p.likes > 5, Test")
	refs := stmt.Clause("FROM").Children
	require.Len(t, refs, 3)

	u := refs[0].(*TableRef)
	assert.Equal(t, "u", u.Alias)
	assert.False(t, u.Left)

	p := refs[1].(*TableRef)
	assert.Equal(t, "p", p.Alias)
	assert.True(t, p.Left)
	require.NotNil(t, p.Predicate)
	assert.Equal(t, "p.likes > 5", p.Predicate.Meta().Source)

	assert.False(t, refs[2].(*TableRef).Left)
}

func TestParseDDL(t *testing.T) {
	stmt := parseStatement(t, "CREATE TABLE IF NOT EXISTS people (id INTEGER, name VARCHAR(20))")
	c := stmt.Clause("CREATE TABLE")
	require.NotNil(t, c)
	assert.Equal(t, "IF NOT EXISTS", c.Modifier)
	require.Len(t, c.Children, 3)
	assert.Equal(t, "people", c.Children[0].(*Symbol).Name)
	assert.Equal(t, "id", c.Children[1].(*Symbol).Name)
	assert.Equal(t, "INTEGER", c.Children[1].Meta().Alias)
	assert.Equal(t, "VARCHAR", c.Children[2].Meta().Alias)

	stmt = parseStatement(t, "INSERT INTO people (id, name) VALUES (1, 'a') ON DUPLICATE KEY UPDATE name = 'b'")
	c = stmt.Clause("INSERT INTO")
	require.NotNil(t, c)
	assert.Equal(t, "UPDATE", c.Modifier)
	assert.Equal(t, []string{"id", "name"}, c.Children[0].Meta().Headers)
	require.Len(t, c.Children, 3)

	stmt = parseStatement(t, "INSERT IGNORE INTO people SELECT 1 AS id")
	assert.Equal(t, "IGNORE", stmt.Clause("INSERT INTO").Modifier)

	stmt = parseStatement(t, "DROP VIEW IF EXISTS v")
	assert.Equal(t, "IF EXISTS", stmt.Clause("DROP VIEW").Modifier)

	stmt = parseStatement(t, "UPDATE people SET name = 'x', id = id + 1 WHERE id = 1")
	assert.Equal(t, []string{"UPDATE", "SET", "WHERE"}, clauseIDs(stmt))
	assert.Len(t, stmt.Clause("SET").Children, 2)
}

func TestParseExplain(t *testing.T) {
	tests := map[string]string{
		"EXPLAIN FROM t":         "",
		"EXPLAIN ANALYZE FROM t": "ANALYSE",
		"EXPLAIN ANALYSE FROM t": "ANALYSE",
		"EXPLAIN AST FROM t":     "AST",
	}
	for query, modifier := range tests {
		t.Run(query, func(t *testing.T) {
			stmt := parseStatement(t, query)
			assert.Equal(t, modifier, stmt.Clause("EXPLAIN").Modifier)
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		offset   int
		expected string
	}{
		{"missing table", "SELECT n FROM", 13, "table name"},
		{"duplicate clause", "SELECT n FROM Test SELECT n", 19, "a single SELECT clause"},
		{"trailing tokens", "FROM Test )", 10, "end of input"},
		{"no clauses", "n = 1", 0, "query clause"},
		{"ignore with update", "INSERT IGNORE INTO t VALUES (1) ON DUPLICATE KEY UPDATE a = 1", 56, "INSERT IGNORE without ON DUPLICATE KEY UPDATE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.query)
			var perr *ParseError
			require.True(t, errors.As(err, &perr), "got %v", err)
			assert.Equal(t, tt.offset, perr.Offset)
			assert.Equal(t, tt.expected, perr.Expected)
		})
	}
}

func TestParseErrorPointer(t *testing.T) {
	_, err := Parse("FROM Test\nWHERE n >")
	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "WHERE n >\n         ^", perr.Pointer())
	assert.Contains(t, err.Error(), "found end of input")
}

func TestParseBetweenBindsTighterThanAnd(t *testing.T) {
	stmt := parseStatement(t, "SELECT n BETWEEN 1 AND 3 AND m")
	op := stmt.Clause("SELECT").Children[0].(*Operator)
	assert.Equal(t, "AND", op.Op)

	between, ok := op.Operands[0].(*Operator)
	require.True(t, ok)
	assert.Equal(t, "BETWEEN", between.Op)
	require.Len(t, between.Operands, 3)
	assert.Equal(t, "m", op.Operands[1].(*Symbol).Name)
}

func TestParseMissingSelectList(t *testing.T) {
	_, err := Parse("SELECT FROM")
	var perr *ParseError
	require.True(t, errors.As(err, &perr), "got %v", err)
	assert.Equal(t, 7, perr.Offset)
}
