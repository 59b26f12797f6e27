package query

import (
	"fmt"
	"math"
	"sort"
)

// filterRows keeps the rows for which pred is true. Rows whose predicate
// references a symbol that cannot be resolved are kept in non-strict mode,
// since later joins may supply it, and dropped in strict mode.
func (qc *QueryContext) filterRows(rows []*ResultRow, pred Node, strict bool) ([]*ResultRow, error) {
	out := make([]*ResultRow, 0, len(rows))
	for _, r := range rows {
		v, err := qc.evaluate(r, pred, rows)
		if err != nil {
			if IsSymbolError(err) {
				if !strict {
					out = append(out, r)
				}
				continue
			}
			return nil, err
		}
		if truthy(v) {
			out = append(out, r)
		}
	}
	return out, nil
}

// orderTerm is one ORDER BY item
type orderTerm struct {
	node  Node
	desc  bool
	nulls NullsOrder
}

func orderTerms(nodes []Node) []orderTerm {
	terms := make([]orderTerm, len(nodes))
	for i, n := range nodes {
		m := n.Meta()
		terms[i] = orderTerm{node: n, desc: m.Desc, nulls: m.Nulls}
	}
	return terms
}

// compareOrderKeys orders two key tuples term by term. Nulls sort last
// ascending and first descending unless NULLS FIRST/LAST says otherwise.
func (qc *QueryContext) compareOrderKeys(a, b []interface{}, terms []orderTerm) int {
	for i, t := range terms {
		an, bn := isStrictNull(a[i]), isStrictNull(b[i])
		if an || bn {
			if an && bn {
				continue
			}
			nullsFirst := t.nulls == NullsFirst || (t.nulls == NullsDefault && t.desc)
			if an == nullsFirst {
				return -1
			}
			return 1
		}
		c := qc.engine.collator.CompareValues(a[i], b[i])
		if c != 0 {
			if t.desc {
				return -c
			}
			return c
		}
	}
	return 0
}

// columnPosition returns the 0-based column a numeric ORDER BY or GROUP BY
// term refers to, or -1
func (qc *QueryContext) columnPosition(node Node) int {
	num, ok := node.(*NumberLit)
	if !ok || num.Value != math.Trunc(num.Value) {
		return -1
	}
	idx := int(num.Value) - 1
	if idx < 0 || idx >= len(qc.Columns) {
		return -1
	}
	return idx
}

// termValue evaluates an ordering or grouping term for a row, reading a
// projected column for positional references
func (qc *QueryContext) termValue(row *ResultRow, node Node, rows []*ResultRow) (interface{}, error) {
	if idx := qc.columnPosition(node); idx >= 0 && row.hasCells() {
		return qc.materializeCell(row, idx, rows)
	}
	v, err := qc.evaluate(row, node, rows)
	if err != nil && IsSymbolError(err) {
		return nil, nil
	}
	return v, err
}

// sortRows orders rows by ORDER BY terms. Each row's key tuple is computed
// once and memoized on the row.
func (qc *QueryContext) sortRows(rows []*ResultRow, nodes []Node) error {
	if len(rows) < 2 || len(nodes) == 0 {
		return nil
	}
	terms := orderTerms(nodes)
	for _, r := range rows {
		if r.orderKey != nil {
			continue
		}
		key := make([]interface{}, len(terms))
		for i, t := range terms {
			v, err := qc.termValue(r, t.node, rows)
			if err != nil {
				return fmt.Errorf("ORDER BY %s: %w", t.node.Meta().Source, err)
			}
			key[i] = v
		}
		r.orderKey = key
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return qc.compareOrderKeys(rows[i].orderKey, rows[j].orderKey, terms) < 0
	})
	return nil
}

// distinctRows keeps the first row for each distinct first-column value
func distinctRows(rows []*ResultRow) []*ResultRow {
	seen := make(map[string]bool, len(rows))
	out := make([]*ResultRow, 0, len(rows))
	for _, r := range rows {
		var first interface{}
		if len(r.cells) > 0 {
			first = r.cells[0].value
		}
		key := valueKey(first)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}

// limitRows applies OFFSET and LIMIT. Both must be constant expressions; a
// missing OFFSET is 0 and a missing LIMIT runs to the end.
func (qc *QueryContext) limitRows(rows []*ResultRow, limitNode, offsetNode Node) ([]*ResultRow, error) {
	start := 0
	if offsetNode != nil {
		n, err := qc.constantInt(offsetNode)
		if err != nil {
			return nil, fmt.Errorf("OFFSET: %w", err)
		}
		start = max(n, 0)
	}
	if start >= len(rows) {
		return nil, nil
	}

	end := len(rows)
	if limitNode != nil {
		n, err := qc.constantInt(limitNode)
		if err != nil {
			return nil, fmt.Errorf("LIMIT: %w", err)
		}
		end = min(start+max(n, 0), len(rows))
	}
	return rows[start:end], nil
}

func (qc *QueryContext) constantInt(node Node) (int, error) {
	v, err := qc.evaluateConstant(node)
	if err != nil {
		return 0, err
	}
	n, ok := toNumber(v)
	if !ok || math.IsNaN(n) {
		return 0, fmt.Errorf("%w: %s is not a number", ErrConstantRequired, node.Meta().Source)
	}
	if math.IsInf(n, 1) || n > math.MaxInt32 {
		return math.MaxInt32, nil
	}
	return int(n), nil
}
