package query

import "strconv"

// TableID is the opaque per-statement identity of a FROM-list table. Rows
// key their side data by it so alias collisions cannot mix tables up.
type TableID string

type cellState uint8

const (
	cellUnevaluated cellState = iota
	cellPending
	cellValue
)

// cell is one lazily evaluated projected column of a row
type cell struct {
	state cellState
	value interface{}
}

// ResultRow is a row moving through the pipeline: projected column cells
// plus the source record each joined table contributed.
type ResultRow struct {
	// ID is the hierarchical row id, one dot-separated index per fan-out
	ID string
	// Group holds the member rows when this row represents a group
	Group []*ResultRow

	cells      []cell
	side       map[TableID]interface{}
	evaluating []int
	orderKey   []interface{}
}

// NewResultRow creates a row with the given id and no side data
func NewResultRow(id string) *ResultRow {
	return &ResultRow{ID: id, side: make(map[TableID]interface{})}
}

// Side returns the record table id contributed to the row
func (r *ResultRow) Side(id TableID) (interface{}, bool) {
	v, ok := r.side[id]
	return v, ok
}

// SetSide attaches a record for a table. Providers use it from BeforeJoin
// to pre-populate join data.
func (r *ResultRow) SetSide(id TableID, record interface{}) {
	r.side[id] = record
}

// clone copies the row for a join fan-out. Side data is shallow-copied;
// records themselves are shared and never mutated.
func (r *ResultRow) clone(id string) *ResultRow {
	c := &ResultRow{ID: id, side: make(map[TableID]interface{}, len(r.side)+1)}
	for k, v := range r.side {
		c.side[k] = v
	}
	return c
}

// fanOutID extends a parent row id by a join index
func fanOutID(parent string, index int) string {
	return parent + "." + strconv.Itoa(index)
}

// allocateCells prepares n unevaluated column cells
func (r *ResultRow) allocateCells(n int) {
	r.cells = make([]cell, n)
	r.orderKey = nil
}

// hasCells reports whether column cells exist yet; they are allocated once
// all joins are done
func (r *ResultRow) hasCells() bool {
	return r.cells != nil
}

// currentColumn returns the column whose expression is being evaluated, or -1
func (r *ResultRow) currentColumn() int {
	if len(r.evaluating) == 0 {
		return -1
	}
	return r.evaluating[len(r.evaluating)-1]
}

// Values returns the evaluated column values
func (r *ResultRow) Values() []interface{} {
	out := make([]interface{}, len(r.cells))
	for i, c := range r.cells {
		out[i] = c.value
	}
	return out
}
