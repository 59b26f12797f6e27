package query

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// evaluate computes node's value for row. rows is the row set in scope,
// which window functions partition. row may be nil in constant contexts.
func (qc *QueryContext) evaluate(row *ResultRow, node Node, rows []*ResultRow) (interface{}, error) {
	switch n := node.(type) {
	case *Symbol:
		if n.Name == "*" || strings.HasSuffix(n.Name, ".*") {
			return nil, fmt.Errorf("wildcard %s is only allowed in the select list", n.Name)
		}
		return qc.resolveSymbol(row, n.Name, rows)
	case *StringLit:
		if t, ok := parseDateString(n.Value); ok {
			return t, nil
		}
		return n.Value, nil
	case *NumberLit:
		return n.Value, nil
	case *ConstantLit:
		return constantValue(n.Name)
	case *Parameter:
		return qc.parameter(n.Name)
	case *Operator:
		return qc.evaluateOperator(row, n, rows)
	case *List:
		items := make([]interface{}, len(n.Items))
		for i, item := range n.Items {
			v, err := qc.evaluate(row, item, rows)
			if err != nil {
				return nil, err
			}
			items[i] = v
		}
		return items, nil
	case *FunctionCall:
		return qc.evaluateCall(row, n, rows)
	case *Statement, *CompoundQuery:
		return qc.scalarSubquery(row, node, rows)
	}
	return nil, fmt.Errorf("cannot evaluate %s node", node.Kind())
}

// constantValue returns the value of TRUE, FALSE, NULL, NOW or PI
func constantValue(name string) (interface{}, error) {
	switch strings.ToUpper(name) {
	case "TRUE":
		return true, nil
	case "FALSE":
		return false, nil
	case "NULL":
		return nil, nil
	case "NOW":
		return time.Now().UTC(), nil
	case "PI":
		return math.Pi, nil
	}
	return nil, fmt.Errorf("unknown constant %s", name)
}

// symbolLiteral parses symbol text that is itself a literal
func symbolLiteral(name string) (interface{}, bool) {
	switch strings.ToLower(name) {
	case "true":
		return true, true
	case "false":
		return false, true
	case "null":
		return nil, true
	}
	if name != "" && (name[0] >= '0' && name[0] <= '9') {
		if t, ok := parseDateString(name); ok {
			return t, true
		}
		if f, err := strconv.ParseFloat(name, 64); err == nil {
			return f, true
		}
	}
	return nil, false
}

// resolveSymbol resolves a name by, in order: literal text, a projected
// column alias, the ROWID pseudo-column, joined table data, and finally the
// outer row of a correlated subquery
func (qc *QueryContext) resolveSymbol(row *ResultRow, name string, rows []*ResultRow) (interface{}, error) {
	if v, ok := symbolLiteral(name); ok {
		return v, nil
	}

	if row != nil && row.hasCells() {
		if idx, ok := qc.aliasIndex[name]; ok && qc.aliasUsable(row, idx) {
			v, handled, err := qc.columnValue(row, idx, rows)
			if handled {
				return v, err
			}
		}
	}

	if row != nil && strings.EqualFold(name, "ROWID") {
		return row.ID, nil
	}

	if row != nil {
		if v, ok := qc.resolveTablePath(row, name); ok {
			return v, nil
		}
	}

	if qc.outer != nil {
		qc.markCorrelated()
		return qc.outer.Context.resolveSymbol(qc.outer.Row, name, qc.outer.Rows)
	}
	return nil, &SymbolError{Name: name}
}

// aliasUsable reports whether a column alias may be read yet: aggregate
// columns only on group rows and window columns only once windows run
func (qc *QueryContext) aliasUsable(row *ResultRow, idx int) bool {
	if idx >= len(qc.info) {
		return true
	}
	info := qc.info[idx]
	if info.aggregate && !info.window && row.Group == nil {
		return false
	}
	if info.window && qc.phase < phaseWindow {
		return false
	}
	return true
}

// columnValue returns a column's value for row, evaluating it on first use.
// handled is false when the column is the one currently being evaluated, so
// a self-referencing alias reads the underlying table data instead.
func (qc *QueryContext) columnValue(row *ResultRow, idx int, rows []*ResultRow) (interface{}, bool, error) {
	c := &row.cells[idx]
	switch c.state {
	case cellValue:
		return c.value, true, nil
	case cellPending:
		if row.currentColumn() == idx {
			return nil, false, nil
		}
		return nil, true, &CyclicColumnError{Column: qc.Headers[idx]}
	}
	v, err := qc.materializeCell(row, idx, rows)
	return v, true, err
}

// materializeCell evaluates column idx for row and stores the value. A
// failed evaluation leaves the cell unevaluated.
func (qc *QueryContext) materializeCell(row *ResultRow, idx int, rows []*ResultRow) (interface{}, error) {
	c := &row.cells[idx]
	if c.state == cellValue {
		return c.value, nil
	}
	c.state = cellPending
	row.evaluating = append(row.evaluating, idx)
	v, err := qc.evaluate(row, qc.Columns[idx], rows)
	row.evaluating = row.evaluating[:len(row.evaluating)-1]
	if err != nil {
		c.state = cellUnevaluated
		return nil, err
	}
	c.state, c.value = cellValue, v
	return v, nil
}

// resolveTablePath looks a dotted name up in the row's side data: first as
// a table alias or name prefix followed by a path, then as a path inside
// each joined table's record, and last as a whole table
func (qc *QueryContext) resolveTablePath(row *ResultRow, name string) (interface{}, bool) {
	parts := strings.Split(name, ".")

	// an exact table alias names that table's whole record
	for _, t := range qc.Tables {
		if t.Alias == name {
			if data, ok := row.side[t.ID]; ok {
				return data, true
			}
		}
	}

	for k := len(parts) - 1; k >= 1; k-- {
		t := qc.tableByName(strings.Join(parts[:k], "."))
		if t == nil {
			continue
		}
		data, ok := row.side[t.ID]
		if !ok {
			continue
		}
		if data == nil {
			return nil, true
		}
		if v, ok := lookupPath(data, parts[k:]); ok {
			return v, true
		}
	}

	nullSide := false
	for _, t := range qc.Tables {
		data, ok := row.side[t.ID]
		if !ok {
			continue
		}
		if data == nil {
			nullSide = true
			continue
		}
		if v, ok := lookupPath(data, parts); ok {
			return v, true
		}
	}

	if t := qc.tableByName(name); t != nil {
		if data, ok := row.side[t.ID]; ok {
			return data, true
		}
	}

	// a left join that matched nothing contributes nulls for its columns
	if nullSide {
		return nil, true
	}
	return nil, false
}

// lookupPath walks nested maps and arrays along parts. Keys match exactly
// first and case-insensitively second.
func lookupPath(data interface{}, parts []string) (interface{}, bool) {
	cur := normalizeValue(data)
	for _, p := range parts {
		switch val := cur.(type) {
		case map[string]interface{}:
			v, ok := val[p]
			if !ok {
				for k, candidate := range val {
					if strings.EqualFold(k, p) {
						v, ok = candidate, true
						break
					}
				}
			}
			if !ok {
				return nil, false
			}
			cur = normalizeValue(v)
		case []interface{}:
			i, err := strconv.Atoi(p)
			if err != nil || i < 0 || i >= len(val) {
				return nil, false
			}
			cur = normalizeValue(val[i])
		default:
			return nil, false
		}
	}
	return cur, true
}

// evaluateCall dispatches a function call: CASE and EXISTS, window
// functions, aggregates, then scalar functions
func (qc *QueryContext) evaluateCall(row *ResultRow, call *FunctionCall, rows []*ResultRow) (interface{}, error) {
	switch call.Name {
	case "CASE":
		return qc.evaluateCase(row, call, rows)
	case "EXISTS":
		return qc.evaluateExists(row, call, rows)
	}

	if call.Window != nil {
		return qc.evaluateWindow(row, call, rows)
	}
	if agg, ok := qc.engine.aggregates.Get(call.Name); ok {
		if row == nil || row.Group == nil {
			return nil, fmt.Errorf("%w: %s", ErrAggregateContext, call.Name)
		}
		return qc.evaluateAggregate(row, call, agg)
	}
	if _, ok := qc.engine.windowFuncs.Get(call.Name); ok {
		return qc.evaluateWindow(row, call, rows)
	}

	fn, ok := qc.engine.functions.Get(call.Name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFunction, call.Name)
	}
	if err := checkArity(fn, len(call.Args)); err != nil {
		return nil, err
	}

	args := make([]interface{}, len(call.Args))
	for i, a := range call.Args {
		v, err := qc.evaluate(row, a, rows)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return qc.callFunction(fn, args), nil
}

// callFunction invokes a scalar function. Failures, including panics,
// degrade to a null result.
func (qc *QueryContext) callFunction(fn Function, args []interface{}) (result interface{}) {
	defer func() {
		if r := recover(); r != nil {
			qc.engine.logger.Debug("function panicked", "function", fn.Name(), "panic", r)
			result = nil
		}
	}()
	v, err := fn.Evaluate(args)
	if err != nil {
		qc.engine.logger.Debug("function failed", "function", fn.Name(), "error", err)
		return nil
	}
	return normalizeValue(v)
}

// evaluateCase returns the result of the first true condition, else the
// ELSE result or null
func (qc *QueryContext) evaluateCase(row *ResultRow, call *FunctionCall, rows []*ResultRow) (interface{}, error) {
	args := call.Args
	for i := 0; i+1 < len(args); i += 2 {
		cond, err := qc.evaluate(row, args[i], rows)
		if err != nil {
			return nil, err
		}
		if truthy(cond) {
			return qc.evaluate(row, args[i+1], rows)
		}
	}
	if len(args)%2 == 1 {
		return qc.evaluate(row, args[len(args)-1], rows)
	}
	return nil, nil
}

// evaluateExists reports whether a subquery yields any row
func (qc *QueryContext) evaluateExists(row *ResultRow, call *FunctionCall, rows []*ResultRow) (interface{}, error) {
	if len(call.Args) != 1 || !isQueryNode(call.Args[0]) {
		return nil, fmt.Errorf("EXISTS requires a subquery")
	}
	res, err := qc.runSubquery(row, call.Args[0], rows)
	if err != nil {
		return nil, err
	}
	return len(res.Rows) > 0, nil
}

// runSubquery executes a nested query for row. Results that never read the
// outer row are cached for the rest of the statement.
func (qc *QueryContext) runSubquery(row *ResultRow, node Node, rows []*ResultRow) (*Result, error) {
	if res, ok := qc.subqueryCache[node]; ok {
		return res, nil
	}
	child, err := qc.child(&OuterLink{Context: qc, Row: row, Rows: rows})
	if err != nil {
		return nil, err
	}
	res, err := child.execute(node)
	if err != nil {
		return nil, err
	}
	if !child.correlated {
		qc.subqueryCache[node] = res
	}
	return res, nil
}

// scalarSubquery returns the first column of a subquery's single row, or
// null when it yields none
func (qc *QueryContext) scalarSubquery(row *ResultRow, node Node, rows []*ResultRow) (interface{}, error) {
	res, err := qc.runSubquery(row, node, rows)
	if err != nil {
		return nil, err
	}
	switch {
	case len(res.Rows) == 0 || len(res.Headers) == 0:
		return nil, nil
	case len(res.Rows) > 1:
		return nil, fmt.Errorf("%w: %s", ErrSubqueryRows, node.Meta().Source)
	}
	return res.Rows[0][0], nil
}

// evaluateConstant evaluates an expression that may not reference row data
func (qc *QueryContext) evaluateConstant(node Node) (interface{}, error) {
	v, err := qc.constantContext().evaluate(NewResultRow(""), node, nil)
	if err != nil {
		if IsSymbolError(err) {
			return nil, fmt.Errorf("%w: %s", ErrConstantRequired, node.Meta().Source)
		}
		return nil, err
	}
	return v, nil
}

// containsCall reports whether node calls a function matching pred, not
// looking inside nested queries
func containsCall(node Node, pred func(*FunctionCall) bool) bool {
	found := false
	walk(node, false, func(n Node) bool {
		if found {
			return false
		}
		if call, ok := n.(*FunctionCall); ok && pred(call) {
			found = true
			return false
		}
		return true
	})
	return found
}

// isAggregateCall reports whether call is an aggregate evaluated per group
func (qc *QueryContext) isAggregateCall(call *FunctionCall) bool {
	if call.Window != nil {
		return false
	}
	_, ok := qc.engine.aggregates.Get(call.Name)
	return ok
}

// isWindowCall reports whether call is evaluated over a window
func (qc *QueryContext) isWindowCall(call *FunctionCall) bool {
	if call.Window != nil {
		return true
	}
	if _, ok := qc.engine.aggregates.Get(call.Name); ok {
		return false
	}
	_, ok := qc.engine.windowFuncs.Get(call.Name)
	return ok
}
