package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Result is a materialized query result. Rows hold engine values; Table
// converts them for the result boundary.
type Result struct {
	Headers []string
	Rows    [][]interface{}
}

// records returns the rows as records keyed by header, for use as a table
func (r *Result) records() []interface{} {
	out := make([]interface{}, len(r.Rows))
	for i, row := range r.Rows {
		rec := make(map[string]interface{}, len(r.Headers))
		for j, h := range r.Headers {
			if j < len(row) {
				rec[h] = row[j]
			}
		}
		out[i] = rec
	}
	return out
}

// Table returns the header row followed by the data rows, with every value
// reduced to a scalar
func (r *Result) Table() [][]interface{} {
	out := make([][]interface{}, 0, len(r.Rows)+1)
	header := make([]interface{}, len(r.Headers))
	for i, h := range r.Headers {
		header[i] = h
	}
	out = append(out, header)
	for _, row := range r.Rows {
		values := make([]interface{}, len(row))
		for i, v := range row {
			values[i] = outputValue(v)
		}
		out = append(out, values)
	}
	return out
}

// Records returns the data rows as header-keyed maps of scalar values
func (r *Result) Records() []map[string]interface{} {
	out := make([]map[string]interface{}, len(r.Rows))
	for i, row := range r.Rows {
		rec := make(map[string]interface{}, len(r.Headers))
		for j, h := range r.Headers {
			if j < len(row) {
				rec[h] = outputValue(row[j])
			}
		}
		out[i] = rec
	}
	return out
}

// renamed returns a copy of r whose leading headers are replaced by names
func (r *Result) renamed(names []string) *Result {
	headers := append([]string(nil), r.Headers...)
	for i, n := range names {
		if i < len(headers) {
			headers[i] = n
		}
	}
	return &Result{Headers: headers, Rows: r.Rows}
}

// execute runs a statement or compound query in this context
func (qc *QueryContext) execute(node Node) (*Result, error) {
	if err := qc.checkContext(); err != nil {
		return nil, err
	}
	switch n := node.(type) {
	case *Statement:
		return qc.executeStatement(n)
	case *CompoundQuery:
		return qc.executeCompound(n)
	}
	return nil, fmt.Errorf("cannot execute %s node", node.Kind())
}

// executeStatement runs one statement: WITH and WINDOW definitions first,
// then DDL/DML or the SELECT pipeline, then EXPLAIN over what ran
func (qc *QueryContext) executeStatement(stmt *Statement) (*Result, error) {
	explain := stmt.Clause("EXPLAIN")
	if explain != nil && explain.Modifier == "AST" {
		return explainAST(stmt)
	}

	q, err := nodeToQueryObject(stmt)
	if err != nil {
		return nil, err
	}
	qc.query = q

	if with := q.Clause("with"); with != nil && !qc.isHoisted(with) {
		if err := qc.materializeWith(with); err != nil {
			return nil, fmt.Errorf("failed to materialize CTEs: %w", err)
		}
	}
	if window := q.Clause("window"); window != nil {
		for _, w := range window.Windows {
			qc.windows[w.Name] = w
		}
	}

	if res, ok, err := qc.executeDDL(q); ok || err != nil {
		return res, err
	}

	res, err := qc.executeSelect(q)
	if err != nil {
		return nil, err
	}
	if explain != nil {
		return qc.explainPlan(explain.Modifier == "ANALYSE")
	}
	return res, nil
}

// materializeWith evaluates each CTE in order. Every name is registered up
// front so references to a CTE not yet materialized are reported.
func (qc *QueryContext) materializeWith(with *Clause) error {
	for _, child := range with.Children {
		qc.cteNames[strings.ToLower(child.Meta().Alias)] = true
	}
	for _, child := range with.Children {
		name := child.Meta().Alias
		sub, err := qc.child(nil)
		if err != nil {
			return err
		}
		res, err := sub.execute(child)
		if err != nil {
			return fmt.Errorf("CTE %s: %w", name, err)
		}
		if headers := child.Meta().Headers; len(headers) > 0 {
			res = res.renamed(headers)
		}
		qc.results[strings.ToLower(name)] = res
		qc.engine.logger.Debug("cte materialized", "name", name, "rows", len(res.Rows))
	}
	return nil
}

// executeSelect runs the row pipeline: fetch and join, WHERE, windows,
// grouping and aggregation, projection, HAVING, DISTINCT, ORDER BY and
// LIMIT/OFFSET
func (qc *QueryContext) executeSelect(q *QueryObject) (*Result, error) {
	tables, err := qc.nodesToTables(q.Children("from"))
	if err != nil {
		return nil, err
	}
	if values := q.Clause("values"); values != nil {
		vt, err := qc.valuesTable(values)
		if err != nil {
			return nil, err
		}
		tables = append([]*ParsedTable{vt}, tables...)
	}
	qc.Tables = tables

	rows, err := qc.fetchAndJoin()
	if err != nil {
		return nil, err
	}

	qc.phase = phaseFilter
	sel := q.Clause("select")
	if err := qc.expandColumns(sel, rows); err != nil {
		return nil, err
	}
	for _, r := range rows {
		r.allocateCells(len(qc.Columns))
	}

	if where := q.first("where"); where != nil {
		if rows, err = qc.filterRows(rows, where, true); err != nil {
			return nil, fmt.Errorf("WHERE: %w", err)
		}
	}

	// windows see the filtered rows before grouping
	qc.phase = phaseWindow
	for idx, info := range qc.info {
		if info.window {
			if err := qc.materializeColumn(rows, idx); err != nil {
				return nil, err
			}
		}
	}

	if groupBy := q.Children("group by"); len(groupBy) > 0 {
		if rows, err = qc.groupRows(rows, groupBy); err != nil {
			return nil, err
		}
	} else if qc.aggregated(q) {
		rows = qc.implicitGroup(rows)
	}

	qc.phase = phaseProject
	for idx := range qc.Columns {
		if err := qc.materializeColumn(rows, idx); err != nil {
			return nil, err
		}
	}

	if having := q.first("having"); having != nil {
		if rows, err = qc.filterRows(rows, having, true); err != nil {
			return nil, fmt.Errorf("HAVING: %w", err)
		}
	}
	if sel.Distinct {
		rows = distinctRows(rows)
	}
	if order := q.Children("order by"); len(order) > 0 {
		if err := qc.sortRows(rows, order); err != nil {
			return nil, err
		}
	}
	if rows, err = qc.limitRows(rows, q.first("limit"), q.first("offset")); err != nil {
		return nil, err
	}

	res := &Result{Headers: qc.Headers, Rows: make([][]interface{}, len(rows))}
	for i, r := range rows {
		res.Rows[i] = r.Values()
	}
	return res, nil
}

// expandColumns builds the projected column list. Wildcards expand to one
// column per known column of each table, or of the named table for t.*.
func (qc *QueryContext) expandColumns(sel *Clause, rows []*ResultRow) error {
	qc.Columns, qc.Headers, qc.info = nil, nil, nil
	qc.aliasIndex = make(map[string]int)

	add := func(n Node, header string) {
		idx := len(qc.Columns)
		qc.Columns = append(qc.Columns, n)
		qc.Headers = append(qc.Headers, header)
		qc.info = append(qc.info, columnInfo{
			aggregate: containsCall(n, qc.isAggregateCall),
			window:    containsCall(n, qc.isWindowCall),
		})
		if alias := n.Meta().Alias; alias != "" {
			if _, dup := qc.aliasIndex[alias]; !dup {
				qc.aliasIndex[alias] = idx
			}
		}
	}

	for _, n := range sel.Children {
		sym, ok := n.(*Symbol)
		if !ok || (sym.Name != "*" && !strings.HasSuffix(sym.Name, ".*")) {
			header := n.Meta().Alias
			if header == "" {
				header = n.Meta().Source
			}
			add(n, header)
			continue
		}

		tables := qc.Tables
		if prefix := strings.TrimSuffix(sym.Name, ".*"); prefix != sym.Name {
			t := qc.tableByName(prefix)
			if t == nil {
				return fmt.Errorf("%w: %s", ErrUnknownTable, prefix)
			}
			tables = []*ParsedTable{t}
		}
		for _, t := range tables {
			columns, scalar := qc.tableColumns(t, rows)
			if scalar {
				col := &Symbol{Name: t.Alias}
				col.Source = t.Alias
				add(col, t.Alias)
			}
			for _, c := range columns {
				col := &Symbol{Name: t.Alias + "." + c}
				col.Source = c
				add(col, c)
			}
		}
	}
	return nil
}

// tableColumns returns the columns a wildcard expands to for t: the order
// its source reported, else the keys seen in its records. scalar is set when
// some rows carry non-record values for t.
func (qc *QueryContext) tableColumns(t *ParsedTable, rows []*ResultRow) ([]string, bool) {
	var data []interface{}
	scalar := false
	for _, r := range rows {
		v, ok := r.side[t.ID]
		if !ok || v == nil {
			continue
		}
		if _, isMap := v.(map[string]interface{}); !isMap {
			scalar = true
			continue
		}
		data = append(data, v)
	}
	if len(t.Columns) > 0 {
		return t.Columns, scalar
	}
	if len(data) == 0 && t.loaded {
		data = t.records
	}
	return recordColumns(data), scalar
}

// materializeColumn evaluates column idx on every row. A row whose
// expression references a symbol its data lacks gets null, unless no row
// resolves, which makes the column itself invalid.
func (qc *QueryContext) materializeColumn(rows []*ResultRow, idx int) error {
	failed := 0
	var symErr error
	for _, r := range rows {
		if r.cells[idx].state == cellValue {
			continue
		}
		if _, err := qc.materializeCell(r, idx, rows); err != nil {
			if !IsSymbolError(err) {
				return fmt.Errorf("column %s: %w", qc.Headers[idx], err)
			}
			failed++
			symErr = err
			r.cells[idx] = cell{state: cellValue}
		}
	}
	if failed > 0 && failed == len(rows) {
		return symErr
	}
	return nil
}

// aggregated reports whether the statement needs an implicit single group:
// an aggregate outside a window in the select list, HAVING or ORDER BY
func (qc *QueryContext) aggregated(q *QueryObject) bool {
	for _, info := range qc.info {
		if info.aggregate {
			return true
		}
	}
	nodes := append([]Node{q.first("having")}, q.Children("order by")...)
	for _, n := range nodes {
		if n != nil && containsCall(n, qc.isAggregateCall) {
			return true
		}
	}
	return false
}

// implicitGroup collapses rows into one group. With no rows, only a
// statement that counts still yields a row: COUNT is 0 and the other
// columns are null.
func (qc *QueryContext) implicitGroup(rows []*ResultRow) []*ResultRow {
	if len(rows) > 0 {
		g := qc.newGroupRow(rows[0])
		g.Group = rows
		return []*ResultRow{g}
	}

	isCount := func(call *FunctionCall) bool { return call.Name == "COUNT" && call.Window == nil }
	counts := false
	for _, c := range qc.Columns {
		counts = counts || containsCall(c, isCount)
	}
	if !counts {
		return nil
	}
	g := NewResultRow("0")
	g.Group = []*ResultRow{}
	g.allocateCells(len(qc.Columns))
	for i, c := range qc.Columns {
		if !containsCall(c, isCount) {
			g.cells[i] = cell{state: cellValue}
		}
	}
	return []*ResultRow{g}
}

// valuesTable turns a VALUES clause into a table whose records have the
// columns column1..N
func (qc *QueryContext) valuesTable(values *Clause) (*ParsedTable, error) {
	width := 0
	for _, n := range values.Children {
		if l, ok := n.(*List); ok {
			width = max(width, len(l.Items))
		}
	}
	columns := make([]string, width)
	for i := range columns {
		columns[i] = "column" + strconv.Itoa(i+1)
	}

	records := make([]interface{}, 0, len(values.Children))
	for _, n := range values.Children {
		l, ok := n.(*List)
		if !ok {
			return nil, fmt.Errorf("VALUES expects row lists, found %s", n.Kind())
		}
		rec := make(map[string]interface{}, width)
		for i, item := range l.Items {
			v, err := qc.evaluateConstant(item)
			if err != nil {
				return nil, fmt.Errorf("VALUES: %w", err)
			}
			rec[columns[i]] = v
		}
		records = append(records, rec)
	}

	qc.generated++
	name := "VALUES_" + strconv.Itoa(qc.generated)
	return &ParsedTable{
		ID:      TableID(uuid.NewString()),
		Name:    name,
		Alias:   name,
		Inner:   true,
		Columns: columns,
		records: records,
		loaded:  true,
	}, nil
}
