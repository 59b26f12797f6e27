package query_test

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/vegasq/objql/memory"
	"github.com/vegasq/objql/query"
)

func newEngine(t *testing.T, opts ...query.Option) *query.Engine {
	t.Helper()
	opts = append([]query.Option{query.WithProvider("", memory.Demo())}, opts...)
	e, err := query.NewEngine(context.Background(), opts...)
	require.NoError(t, err)
	return e
}

func run(t *testing.T, e *query.Engine, q string) [][]interface{} {
	t.Helper()
	table, err := e.Query(context.Background(), q, nil)
	require.NoError(t, err, q)
	return table
}

func rows(values ...[]interface{}) [][]interface{} { return values }

func row(values ...interface{}) []interface{} { return values }

func TestSelect(t *testing.T) {
	e := newEngine(t)

	tests := []struct {
		name  string
		query string
		want  [][]interface{}
	}{
		{
			name:  "count",
			query: "FROM Test SELECT COUNT(*) AS c",
			want:  rows(row("c"), row(10.0)),
		},
		{
			name:  "count distinct",
			query: "FROM Test SELECT COUNT(DISTINCT n2) AS c",
			want:  rows(row("c"), row(5.0)),
		},
		{
			name:  "header defaults to source text",
			query: "FROM Test SELECT COUNT(*)",
			want:  rows(row("COUNT(*)"), row(10.0)),
		},
		{
			name:  "constant select",
			query: "SELECT 1 + 2 * 3 AS x",
			want:  rows(row("x"), row(7.0)),
		},
		{
			name:  "clauses in any order",
			query: "WHERE n2 = 1 ORDER BY n DESC SELECT n FROM Test",
			want:  rows(row("n"), row(6.0), row(1.0)),
		},
		{
			name:  "group by",
			query: "FROM Test SELECT n2, COUNT(*) AS c GROUP BY n2 ORDER BY n2 LIMIT 2",
			want:  rows(row("n2", "c"), row(0.0, 2.0), row(1.0, 2.0)),
		},
		{
			name:  "having",
			query: "FROM Test SELECT n3, SUM(n) AS s GROUP BY n3 HAVING s > 10",
			want:  rows(row("n3", "s"), row(1.0, 12.0), row(2.0, 21.0)),
		},
		{
			name:  "limit and offset",
			query: "FROM Test SELECT n LIMIT 2 OFFSET 7",
			want:  rows(row("n"), row(7.0), row(8.0)),
		},
		{
			name:  "aggregates of no rows",
			query: "FROM Test SELECT SUM(n) AS s, COUNT(*) AS c WHERE n > 100",
			want:  rows(row("s", "c"), row(nil, 0.0)),
		},
		{
			name:  "nested paths",
			query: "FROM Users SELECT name, address.city AS city WHERE age > 30",
			want:  rows(row("name", "city"), row("Alice", "Lisbon"), row("Carol", "Lisbon")),
		},
		{
			name:  "like is case insensitive",
			query: "FROM Users SELECT name WHERE name LIKE 'a%'",
			want:  rows(row("name"), row("Alice")),
		},
		{
			name:  "regexp",
			query: "FROM Users SELECT name WHERE name REGEXP '^b' OR name REGEXP 'ol$'",
			want:  rows(row("name"), row("Bob"), row("Carol")),
		},
		{
			name:  "in list",
			query: "FROM Test SELECT n WHERE n IN (2, 4)",
			want:  rows(row("n"), row(2.0), row(4.0)),
		},
		{
			name:  "case",
			query: "FROM Test SELECT CASE WHEN n < 2 THEN 'low' ELSE 'high' END AS size WHERE n IN (1, 2)",
			want:  rows(row("size"), row("low"), row("high")),
		},
		{
			name:  "concatenation with null",
			query: "SELECT 'a' || 'b' AS ab, 'a' || NULL AS an",
			want:  rows(row("ab", "an"), row("ab", nil)),
		},
		{
			name:  "coalesce operator",
			query: "SELECT NULL ?? 'd' AS x",
			want:  rows(row("x"), row("d")),
		},
		{
			name:  "distinct",
			query: "FROM Test SELECT DISTINCT n3 ORDER BY n3 DESC",
			want:  rows(row("n3"), row(3.0), row(2.0), row(1.0), row(0.0)),
		},
		{
			name:  "non scalar values become null",
			query: "FROM Users SELECT name, address LIMIT 1",
			want:  rows(row("name", "address"), row("Alice", nil)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, run(t, e, tt.query))
		})
	}
}

func TestOrderNulls(t *testing.T) {
	e := newEngine(t)

	tests := map[string][][]interface{}{
		"VALUES (2), (NULL), (1) ORDER BY column1":             rows(row("column1"), row(1.0), row(2.0), row(nil)),
		"VALUES (2), (NULL), (1) ORDER BY column1 NULLS FIRST": rows(row("column1"), row(nil), row(1.0), row(2.0)),
		"VALUES (2), (NULL), (1) ORDER BY column1 DESC":        rows(row("column1"), row(nil), row(2.0), row(1.0)),
		"VALUES (2), (NULL), (1) ORDER BY column1 DESC NULLS LAST": rows(
			row("column1"), row(2.0), row(1.0), row(nil)),
	}
	for q, want := range tests {
		t.Run(q, func(t *testing.T) {
			assert.Equal(t, want, run(t, e, q))
		})
	}
}

func TestWindows(t *testing.T) {
	e := newEngine(t)

	got := run(t, e, "FROM Test SELECT n, ROW_NUMBER() OVER (ORDER BY n DESC) AS rn WHERE n < 3")
	assert.Equal(t, rows(row("n", "rn"), row(0.0, 3.0), row(1.0, 2.0), row(2.0, 1.0)), got)

	got = run(t, e, "FROM Test SELECT n, RANK() OVER (ORDER BY n3) AS r WHERE n < 7")
	assert.Equal(t, rows(row("n", "r"),
		row(0.0, 1.0), row(1.0, 1.0), row(2.0, 1.0),
		row(3.0, 4.0), row(4.0, 4.0), row(5.0, 4.0),
		row(6.0, 7.0),
	), got)

	got = run(t, e, "FROM Test SELECT n, COUNT(*) OVER (PARTITION BY n3) AS c WHERE n > 5")
	assert.Equal(t, rows(row("n", "c"),
		row(6.0, 3.0), row(7.0, 3.0), row(8.0, 3.0), row(9.0, 1.0),
	), got)

	got = run(t, e, "FROM Test SELECT n, SUM(n) OVER (ORDER BY n ROWS BETWEEN 1 PRECEDING AND CURRENT ROW) AS s WHERE n < 4")
	assert.Equal(t, rows(row("n", "s"), row(0.0, 0.0), row(1.0, 1.0), row(2.0, 3.0), row(3.0, 5.0)), got)
}

func TestJoins(t *testing.T) {
	e := newEngine(t)

	got := run(t, e, "FROM Users, posts SELECT name, posts.title")
	assert.Equal(t, rows(row("name", "posts.title"),
		row("Alice", "Hello"), row("Alice", "Parsing"), row("Bob", "Windows"),
	), got)

	got = run(t, e, "FROM Users LEFT JOIN posts SELECT name, posts.title")
	assert.Equal(t, rows(row("name", "posts.title"),
		row("Alice", "Hello"), row("Alice", "Parsing"), row("Bob", "Windows"), row("Carol", nil),
	), got)

	got = run(t, e, "FROM Users, posts SELECT ROWID AS id, posts.likes AS likes")
	assert.Equal(t, rows(row("id", "likes"),
		row("0.0", 5.0), row("0.1", 12.0), row("1.0", 7.0),
	), got)

	got = run(t, e, "FROM Users u, posts p ON p.likes > 6 SELECT u.name AS name, p.title AS title")
	assert.Equal(t, rows(row("name", "title"), row("Alice", "Parsing"), row("Bob", "Windows")), got)

	got = run(t, e, "FROM Users, Test SELECT COUNT(*) AS c")
	assert.Equal(t, rows(row("c"), row(30.0)), got, "unrelated tables cross join")
}

func TestSubqueries(t *testing.T) {
	e := newEngine(t)

	got := run(t, e, "SELECT (FROM Test SELECT MAX(n)) AS m")
	assert.Equal(t, rows(row("m"), row(9.0)), got)

	got = run(t, e, "FROM Users SELECT name WHERE EXISTS(FROM Test SELECT n WHERE n = age - 30)")
	assert.Equal(t, rows(row("name"), row("Alice")), got)

	got = run(t, e, "FROM (FROM Test SELECT n WHERE n > 7) SELECT SUM(n) AS s")
	assert.Equal(t, rows(row("s"), row(17.0)), got)

	got = run(t, e, "WITH small AS (FROM Test SELECT n WHERE n < 3) FROM small SELECT SUM(n) AS s")
	assert.Equal(t, rows(row("s"), row(3.0)), got)

	_, err := e.Query(context.Background(), "SELECT (FROM Test SELECT n) AS m", nil)
	assert.ErrorIs(t, err, query.ErrSubqueryRows)
}

func TestSetOperations(t *testing.T) {
	e := newEngine(t)

	tests := map[string][][]interface{}{
		"FROM Test SELECT n2 WHERE n < 5 INTERSECT FROM Test SELECT n3": rows(
			row("n2"), row(0.0), row(1.0), row(2.0), row(3.0)),
		"FROM Test SELECT n2 WHERE n < 5 EXCEPT FROM Test SELECT n3": rows(
			row("n2"), row(4.0)),
		"FROM Test SELECT n3 WHERE n > 7 UNION FROM Test SELECT n2 WHERE n < 4": rows(
			row("n3"), row(2.0), row(3.0), row(0.0), row(1.0)),
		"FROM Test SELECT n WHERE n < 2 UNION ALL FROM Test SELECT n WHERE n < 2": rows(
			row("n"), row(0.0), row(1.0), row(0.0), row(1.0)),
	}
	for q, want := range tests {
		t.Run(q, func(t *testing.T) {
			assert.Equal(t, want, run(t, e, q))
		})
	}
}

func TestTableFunctions(t *testing.T) {
	e := newEngine(t)

	assert.Equal(t, rows(row("value"), row(0.0), row(1.0), row(2.0)),
		run(t, e, "FROM RANGE(3)"))
	assert.Equal(t, rows(row("value"), row(10.0), row(7.0)),
		run(t, e, "FROM RANGE(10, 4, -3) SELECT value"))
	assert.Equal(t, rows(row("column1", "column2"), row(1.0, "a"), row(2.0, "b")),
		run(t, e, "VALUES (1, 'a'), (2, 'b')"))

	_, err := e.Query(context.Background(), "FROM RANGE(0, 10, 0)", nil)
	assert.Error(t, err)
}

func TestParameters(t *testing.T) {
	e := newEngine(t)

	got, err := e.Query(context.Background(), "FROM Test SELECT n WHERE n = :want", map[string]interface{}{"want": 3.0})
	require.NoError(t, err)
	assert.Equal(t, rows(row("n"), row(3.0)), got)
}

func TestParseErrorFromEngine(t *testing.T) {
	e := newEngine(t)

	_, err := e.Query(context.Background(), "SELECT n FROM", nil)
	var perr *query.ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 13, perr.Offset)
}

func TestUnknownTable(t *testing.T) {
	e := newEngine(t)

	_, err := e.Query(context.Background(), "FROM Nope", nil)
	assert.ErrorIs(t, err, query.ErrUnknownTable)
}

func TestDataModification(t *testing.T) {
	ctx := context.Background()
	e, err := query.NewEngine(ctx, query.WithProvider("", memory.New()))
	require.NoError(t, err)

	affected := func(q string) interface{} {
		t.Helper()
		got := run(t, e, q)
		require.Len(t, got, 2)
		assert.Equal(t, []interface{}{"affected"}, got[0])
		return got[1][0]
	}

	assert.Equal(t, 0.0, affected("CREATE TABLE people (id INTEGER, name STRING)"))
	assert.Equal(t, 2.0, affected("INSERT INTO people (id, name) VALUES (1, 'Ann'), (2, 'Ben')"))

	_, err = e.Query(ctx, "INSERT INTO people (id, name) VALUES (1, 'Dup')", nil)
	assert.ErrorIs(t, err, query.ErrDuplicateKey)

	assert.Equal(t, 0.0, affected("INSERT IGNORE INTO people (id, name) VALUES (1, 'Dup')"))
	assert.Equal(t, 1.0, affected("INSERT INTO people (id, name) VALUES (1, 'Dup') ON DUPLICATE KEY UPDATE name = 'Ann2'"))
	assert.Equal(t, 1.0, affected("UPDATE people SET name = UPPER(name) WHERE id = 2"))

	assert.Equal(t, rows(row("id", "name"), row(1.0, "Ann2"), row(2.0, "BEN")),
		run(t, e, "FROM people SELECT id, name ORDER BY id"))

	assert.Equal(t, 1.0, affected("DELETE FROM people WHERE id = 1"))
	assert.Equal(t, 1.0, affected("DELETE FROM people"))
	assert.Equal(t, rows(row("c"), row(0.0)), run(t, e, "FROM people SELECT COUNT(*) AS c"))

	_, err = e.Query(ctx, "CREATE TABLE people", nil)
	assert.ErrorIs(t, err, query.ErrTableExists)
	assert.Equal(t, 0.0, affected("CREATE TABLE IF NOT EXISTS people"))

	assert.Equal(t, 0.0, affected("DROP TABLE people"))
	_, err = e.Query(ctx, "FROM people", nil)
	assert.ErrorIs(t, err, query.ErrUnknownTable)
	assert.Equal(t, 0.0, affected("DROP TABLE IF EXISTS people"))
}

func TestInsertFromQuery(t *testing.T) {
	ctx := context.Background()
	store := memory.Demo()
	e, err := query.NewEngine(ctx, query.WithProvider("", store))
	require.NoError(t, err)

	run(t, e, "CREATE TABLE small (id INTEGER)")
	assert.Equal(t, rows(row("affected"), row(4.0)),
		run(t, e, "INSERT INTO small FROM Test SELECT n AS id WHERE n < 4"))
	assert.Equal(t, rows(row("s"), row(6.0)), run(t, e, "FROM small SELECT SUM(id) AS s"))
}

func TestCapabilityError(t *testing.T) {
	ctx := context.Background()
	readOnly := query.ProviderFunc(func(context.Context, *query.ParsedTable) ([]interface{}, error) {
		return []interface{}{map[string]interface{}{"a": 1}}, nil
	})
	e, err := query.NewEngine(ctx, query.WithProvider("", readOnly))
	require.NoError(t, err)

	assert.Equal(t, rows(row("a"), row(1.0)), run(t, e, "FROM anything SELECT a"))

	for _, q := range []string{
		"INSERT INTO t VALUES (1)",
		"UPDATE t SET a = 2",
		"DELETE FROM t",
		"CREATE TABLE t (a INTEGER)",
		"DROP TABLE t",
		"DELETE FROM information_schema.tables",
	} {
		t.Run(q, func(t *testing.T) {
			_, err := e.Query(ctx, q, nil)
			var capErr *query.CapabilityError
			assert.True(t, errors.As(err, &capErr), "got %v", err)
		})
	}
}

func TestInformationSchema(t *testing.T) {
	e := newEngine(t, query.WithProvider("demo", memory.Demo()))

	got := run(t, e, "FROM information_schema.tables SELECT table_name WHERE table_schema = 'main' ORDER BY table_name")
	assert.Equal(t, rows(row("table_name"), row("Test"), row("Users")), got)

	got = run(t, e, "FROM information_schema.tables SELECT COUNT(*) AS c WHERE table_schema = 'demo'")
	assert.Equal(t, rows(row("c"), row(2.0)), got)

	got = run(t, e, "FROM information_schema.columns SELECT column_name, ordinal_position, data_type WHERE table_schema = 'main' AND table_name = 'Test'")
	assert.Equal(t, rows(row("column_name", "ordinal_position", "data_type"),
		row("n", 1.0, "INTEGER"), row("n2", 2.0, "INTEGER"), row("n3", 3.0, "INTEGER"),
	), got)

	got = run(t, e, "FROM information_schema.routines SELECT routine_type WHERE routine_name = 'ROW_NUMBER'")
	assert.Equal(t, rows(row("routine_type"), row("WINDOW")), got)

	got = run(t, e, "FROM demo.Test SELECT COUNT(*) AS c")
	assert.Equal(t, rows(row("c"), row(10.0)), got)
}

func TestViews(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	assert.Equal(t, rows(row("affected"), row(0.0)),
		run(t, e, "CREATE VIEW fives AS FROM Test SELECT n WHERE n2 = 0"))
	assert.Equal(t, rows(row("c"), row(2.0)), run(t, e, "FROM fives SELECT COUNT(*) AS c"))

	got := run(t, e, "FROM information_schema.views SELECT table_name, view_definition")
	assert.Equal(t, rows(row("table_name", "view_definition"),
		row("fives", "FROM Test SELECT n WHERE n2 = 0")), got)

	_, err := e.Query(ctx, "CREATE VIEW fives AS FROM Test", nil)
	assert.ErrorIs(t, err, query.ErrTableExists)

	run(t, e, "DROP VIEW fives")
	_, err = e.Query(ctx, "DROP VIEW fives", nil)
	assert.ErrorIs(t, err, query.ErrUnknownTable)
	run(t, e, "DROP VIEW IF EXISTS fives")
}

func TestExplain(t *testing.T) {
	e := newEngine(t)

	got := run(t, e, "EXPLAIN FROM Users, posts SELECT name")
	require.Len(t, got, 3)
	assert.Equal(t, row("name", "alias", "join", "inner", "predicate", "rowCount"), got[0])
	assert.Equal(t, "Users", got[1][0])
	assert.Equal(t, 3.0, got[1][5])
	assert.Equal(t, "posts", got[2][0])
	assert.Equal(t, 3.0, got[2][5])

	got = run(t, e, "EXPLAIN ANALYSE FROM Users, posts")
	require.Len(t, got, 2)
	assert.Equal(t, row("QUERY PLAN"), got[0])
	assert.Contains(t, got[1][0], `"Node Type":"Nested Loop"`)

	got = run(t, e, "EXPLAIN AST FROM Test SELECT n")
	require.Len(t, got, 2)
	assert.Equal(t, row("AST"), got[0])
	assert.Contains(t, got[1][0], `"kind": "STATEMENT"`)
}

func TestConcurrentExecution(t *testing.T) {
	e := newEngine(t)
	node, err := query.Parse("FROM Users, posts SELECT name, SUM(posts.likes) AS likes GROUP BY name ORDER BY name")
	require.NoError(t, err)

	want := rows(row("name", "likes"), row("Alice", 17.0), row("Bob", 7.0))
	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			res, err := e.ExecuteNode(context.Background(), node, nil)
			if err != nil {
				return err
			}
			if !assert.Equal(t, want, res.Table()) {
				return errors.New("unexpected result")
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
}

func TestCancelledContext(t *testing.T) {
	e := newEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Query(ctx, "FROM Test", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestJoinPredicatesAreStrict(t *testing.T) {
	e := newEngine(t)

	tests := map[string][][]interface{}{
		"FROM Users JOIN Test ON Test.nope = Users.id SELECT COUNT(*) AS c": rows(row("c"), row(0.0)),
		"FROM Users JOIN Test USING id SELECT COUNT(*) AS c":                rows(row("c"), row(0.0)),
		"FROM Users JOIN Test ON Test.n = Users.id SELECT COUNT(*) AS c":    rows(row("c"), row(3.0)),
		"FROM Users LEFT JOIN Test ON Test.nope = Users.id SELECT ROWID AS id, name": rows(
			row("id", "name"), row("0.-1", "Alice"), row("1.-1", "Bob"), row("2.-1", "Carol")),
	}
	for q, want := range tests {
		t.Run(q, func(t *testing.T) {
			assert.Equal(t, want, run(t, e, q))
		})
	}
}

// invoiceItems serves Invoices and attaches their items itself through the
// join hooks
type invoiceItems struct {
	invoices []interface{}
	items    [][]interface{}
	joined   []string
}

func (p *invoiceItems) PrimaryTable(_ context.Context, t *query.ParsedTable) ([]interface{}, error) {
	if t.Name == "Invoices" {
		return p.invoices, nil
	}
	return nil, fmt.Errorf("%w: %s", query.ErrUnknownTable, t.Name)
}

func (p *invoiceItems) BeforeJoin(_ context.Context, t *query.ParsedTable, rows []*query.ResultRow) error {
	if t.Name != "items" {
		return nil
	}
	t.Join = &query.Join{Strategy: query.JoinProvided}
	for _, r := range rows {
		i, err := strconv.Atoi(r.ID)
		if err != nil {
			return err
		}
		r.SetSide(t.ID, p.items[i])
	}
	return nil
}

func (p *invoiceItems) AfterJoin(_ context.Context, t *query.ParsedTable, rows []*query.ResultRow) error {
	for _, r := range rows {
		p.joined = append(p.joined, r.ID)
	}
	return nil
}

func TestJoinHooks(t *testing.T) {
	newProvider := func() *invoiceItems {
		return &invoiceItems{
			invoices: []interface{}{
				map[string]interface{}{"id": 1.0},
				map[string]interface{}{"id": 2.0},
				map[string]interface{}{"id": 3.0},
			},
			items: [][]interface{}{
				{map[string]interface{}{"sku": "a"}, map[string]interface{}{"sku": "b"}},
				{},
				{map[string]interface{}{"sku": "c"}},
			},
		}
	}

	t.Run("inner", func(t *testing.T) {
		p := newProvider()
		e, err := query.NewEngine(context.Background(), query.WithProvider("", p))
		require.NoError(t, err)

		got := run(t, e, "FROM Invoices, items SELECT ROWID AS id, Invoices.id AS invoice, items.sku AS sku")
		assert.Equal(t, rows(row("id", "invoice", "sku"),
			row("0.0", 1.0, "a"), row("0.1", 1.0, "b"), row("2.0", 3.0, "c"),
		), got)
		assert.Equal(t, []string{"0.0", "0.1", "2.0"}, p.joined)
	})

	t.Run("left", func(t *testing.T) {
		p := newProvider()
		e, err := query.NewEngine(context.Background(), query.WithProvider("", p))
		require.NoError(t, err)

		got := run(t, e, "FROM Invoices LEFT JOIN items SELECT ROWID AS id, items.sku AS sku")
		assert.Equal(t, rows(row("id", "sku"),
			row("0.0", "a"), row("0.1", "b"), row("1.-1", nil), row("2.0", "c"),
		), got)
		assert.Equal(t, []string{"0.0", "0.1", "1.-1", "2.0"}, p.joined)
	})
}

func TestPartitionedRowNumber(t *testing.T) {
	e := newEngine(t)

	got := run(t, e, "FROM Test SELECT n3, n2,"+
		" ROW_NUMBER() OVER (PARTITION BY n3 ORDER BY n2) AS rn,"+
		" RANK() OVER (PARTITION BY n3 ORDER BY n2) AS r"+
		" ORDER BY n3, n2")
	require.Len(t, got, 11)

	var rn, rank []interface{}
	for _, r := range got[1:] {
		rn = append(rn, r[2])
		rank = append(rank, r[3])
	}
	want := row(1.0, 2.0, 3.0, 1.0, 2.0, 3.0, 1.0, 2.0, 3.0, 1.0)
	assert.Equal(t, want, rn)
	assert.Equal(t, want, rank, "no ties: RANK matches ROW_NUMBER")
}

func TestCTEOverCompoundQuery(t *testing.T) {
	e := newEngine(t)

	direct := run(t, e, "FROM Test UNION ALL FROM Test")
	viaCTE := run(t, e, "WITH cte AS (FROM Test UNION ALL FROM Test) FROM cte")
	require.Len(t, direct, 21)
	require.Len(t, viaCTE, 21)
	assert.Equal(t, direct[1], viaCTE[1])

	assert.Equal(t, rows(row("c"), row(20.0)),
		run(t, e, "WITH cte AS (FROM Test UNION ALL FROM Test) FROM cte SELECT COUNT(*) AS c"))
}

func TestCyclicColumns(t *testing.T) {
	e := newEngine(t)

	_, err := e.Query(context.Background(), "SELECT a AS b, b AS a", nil)
	var cyc *query.CyclicColumnError
	assert.True(t, errors.As(err, &cyc), "got %v", err)
}

func TestBetweenBindsTighterThanAnd(t *testing.T) {
	e := newEngine(t)

	assert.Equal(t, rows(row("c"), row(1.0)),
		run(t, e, "FROM Test SELECT COUNT(*) AS c WHERE n BETWEEN 2 AND 5 AND n2 = 3"))
	assert.Equal(t, rows(row("x"), row(true)),
		run(t, e, "SELECT 3 BETWEEN 1 AND 5 AND 1 = 1 AS x"))
}

func TestUnresolvedWhereDropsRows(t *testing.T) {
	e := newEngine(t)

	assert.Equal(t, rows(row("n")), run(t, e, "FROM Test SELECT n WHERE nope = 1"))
}

func TestRepeatedQueryIsIdempotent(t *testing.T) {
	e := newEngine(t)

	for _, q := range []string{
		"FROM Users, posts SELECT name, posts.title AS title ORDER BY title",
		"FROM Test SELECT n3, SUM(n) AS s GROUP BY n3",
		"FROM Test SELECT n, LAG(n) OVER (ORDER BY n) AS prev",
	} {
		t.Run(q, func(t *testing.T) {
			first := run(t, e, q)
			assert.Equal(t, first, run(t, e, q))
		})
	}
}
