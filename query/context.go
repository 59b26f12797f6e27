package query

import (
	"context"
	"fmt"
	"strings"
)

// phase is the pipeline stage a context is in. It decides which column
// aliases a symbol may resolve through.
type phase int

const (
	phaseJoin phase = iota
	phaseFilter
	phaseWindow
	phaseProject
)

// OuterLink connects a correlated subquery to the row of the enclosing
// statement it is evaluated for
type OuterLink struct {
	Context *QueryContext
	Row     *ResultRow
	Rows    []*ResultRow
}

// columnInfo records what a projected column's expression contains
type columnInfo struct {
	aggregate bool
	window    bool
}

// QueryContext holds the state of one statement execution: its tables,
// projected columns, named results and caches. Nested queries run in child
// contexts that see their parent's CTEs and, when correlated, the outer row.
type QueryContext struct {
	ctx    context.Context
	engine *Engine
	parent *QueryContext
	outer  *OuterLink
	depth  int
	params map[string]interface{}

	query      *QueryObject
	Tables     []*ParsedTable
	Columns    []Node
	Headers    []string
	aliasIndex map[string]int
	info       []columnInfo
	windows    map[string]*WindowSpec

	// results holds materialized CTEs keyed by lower-cased name
	results map[string]*Result
	// cteNames lists every CTE of the WITH clause, materialized or not
	cteNames map[string]bool

	// hoisted is a WITH clause materialized here on behalf of a compound
	// query's first statement
	hoisted *Clause

	subqueryCache map[Node]*Result
	windowCache   map[*FunctionCall]map[*ResultRow]interface{}
	generated     int
	correlated    bool
	phase         phase
}

// newQueryContext creates the root context of a top-level statement
func newQueryContext(ctx context.Context, engine *Engine, params map[string]interface{}) *QueryContext {
	qc := &QueryContext{
		ctx:    ctx,
		engine: engine,
		params: make(map[string]interface{}, len(params)),
	}
	for k, v := range params {
		qc.params[k] = normalizeValue(v)
	}
	qc.reset()
	return qc
}

// reset clears per-statement state
func (qc *QueryContext) reset() {
	qc.query = nil
	qc.Tables = nil
	qc.Columns = nil
	qc.Headers = nil
	qc.aliasIndex = make(map[string]int)
	qc.info = nil
	qc.windows = make(map[string]*WindowSpec)
	qc.results = make(map[string]*Result)
	qc.cteNames = make(map[string]bool)
	qc.subqueryCache = make(map[Node]*Result)
	qc.windowCache = make(map[*FunctionCall]map[*ResultRow]interface{})
	qc.phase = phaseJoin
}

// isHoisted reports whether an enclosing compound query already
// materialized with
func (qc *QueryContext) isHoisted(with *Clause) bool {
	for c := qc.parent; c != nil; c = c.parent {
		if c.hoisted == with {
			return true
		}
	}
	return false
}

// child creates a context for a nested query. outer is set for correlated
// evaluation (scalar, IN and EXISTS subqueries) and nil for FROM subqueries,
// CTEs and views.
func (qc *QueryContext) child(outer *OuterLink) (*QueryContext, error) {
	limit := qc.engine.maxDepth
	if qc.depth+1 > limit {
		return nil, fmt.Errorf("%w: %d (max %d)", ErrNestingTooDeep, qc.depth+1, limit)
	}
	c := &QueryContext{
		ctx:    qc.ctx,
		engine: qc.engine,
		parent: qc,
		outer:  outer,
		depth:  qc.depth + 1,
		params: qc.params,
	}
	c.reset()
	return c, nil
}

// constantContext creates a context with no tables, rows or outer link, used
// for LIMIT, OFFSET and table function arguments
func (qc *QueryContext) constantContext() *QueryContext {
	c := &QueryContext{
		ctx:    qc.ctx,
		engine: qc.engine,
		parent: qc,
		depth:  qc.depth,
		params: qc.params,
	}
	c.reset()
	return c
}

// lookupResult finds a materialized CTE by name in this context or any
// enclosing one
func (qc *QueryContext) lookupResult(name string) (*Result, bool, error) {
	key := strings.ToLower(name)
	for c := qc; c != nil; c = c.parent {
		if res, ok := c.results[key]; ok {
			return res, true, nil
		}
		if c.cteNames[key] {
			return nil, false, fmt.Errorf("CTE %s referenced before it is defined (circular or forward reference)", name)
		}
	}
	return nil, false, nil
}

// parameter returns a bound :name parameter
func (qc *QueryContext) parameter(name string) (interface{}, error) {
	v, ok := qc.params[name]
	if !ok {
		return nil, fmt.Errorf("parameter :%s is not bound", name)
	}
	return v, nil
}

// markCorrelated records that this context read outer row data, so its
// results cannot be cached by the enclosing context
func (qc *QueryContext) markCorrelated() {
	qc.correlated = true
}

// tableByName finds a joined table by alias, then by name
func (qc *QueryContext) tableByName(name string) *ParsedTable {
	for _, t := range qc.Tables {
		if t.Alias == name {
			return t
		}
	}
	for _, t := range qc.Tables {
		if strings.EqualFold(t.Alias, name) {
			return t
		}
	}
	for _, t := range qc.Tables {
		if strings.EqualFold(t.Name, name) {
			return t
		}
	}
	return nil
}

// checkContext reports cancellation of the caller's context
func (qc *QueryContext) checkContext() error {
	if err := qc.ctx.Err(); err != nil {
		return fmt.Errorf("query cancelled: %w", err)
	}
	return nil
}
