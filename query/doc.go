// Package query implements an embeddable SQL-like query engine over
// pluggable table providers.
//
// Any data source can be queried once it is exposed through the Provider
// interface: records are maps (or any value), and nested maps and arrays
// are joined automatically by discovering paths between tables.
//
// The engine supports:
//   - SELECT [DISTINCT] with aliases that may reference each other
//   - FROM with comma joins (discovered), ON, USING, LEFT and INNER
//   - WHERE, GROUP BY, HAVING, ORDER BY with NULLS FIRST/LAST, LIMIT, OFFSET
//   - UNION [ALL], INTERSECT and EXCEPT
//   - WITH (CTEs), subqueries in FROM, scalar, IN and EXISTS subqueries
//   - Aggregates with DISTINCT, FILTER (WHERE ...) and WITHIN GROUP (ORDER BY ...)
//   - Window functions with PARTITION BY, ORDER BY, ROWS/RANGE/GROUPS frames
//     and named WINDOW definitions
//   - Table-valued functions RANGE and LOAD, standalone VALUES
//   - information_schema.tables, columns, views and routines
//   - Views, CREATE/DROP TABLE, INSERT, UPDATE and DELETE through provider hooks
//   - EXPLAIN, EXPLAIN ANALYSE and EXPLAIN AST
//
// # Basic Usage
//
// Register a provider and run a query:
//
//	engine, err := query.NewEngine(ctx, query.WithProvider("", memory.Demo()))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	rows, err := engine.Query(ctx, "FROM Test SELECT n, n2 WHERE n > :min", map[string]interface{}{
//	    "min": 5,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	// rows[0] is the header row
//
// # Joins
//
// Tables listed in FROM are attached to the rows before them. When a table
// name matches a nested property of an earlier table's records the rows fan
// out over it:
//
//	FROM Users AS u, posts SELECT u.name, posts.title
//
// A provider implementing JoinHooks can take over joining its own tables.
//
// # Custom Functions
//
// Scalar, aggregate, window and table-valued functions register per engine:
//
//	engine.RegisterFunction(&MyFunc{})
//
// # Errors
//
// Parse failures are *ParseError values carrying the offset and a caret
// pointer into the query text. Unknown columns surface as *SymbolError.
// Providers lacking a hook a statement needs produce *CapabilityError.
package query
