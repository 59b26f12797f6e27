package query

import (
	"fmt"

	"golang.org/x/sync/errgroup"
)

// executeCompound runs both sides of a set operation and combines them.
// Rows are compared by their first column only. A WITH clause on the
// leftmost statement is materialized here so both sides can read it.
func (qc *QueryContext) executeCompound(cq *CompoundQuery) (*Result, error) {
	if with := leftmostWith(cq); with != nil && !qc.isHoisted(with) {
		if err := qc.materializeWith(with); err != nil {
			return nil, fmt.Errorf("failed to materialize CTEs: %w", err)
		}
		qc.hoisted = with
	}

	left, right, err := qc.executeSides(cq)
	if err != nil {
		return nil, err
	}

	qc.engine.logger.Debug("compound query",
		"op", cq.Op, "left", len(left.Rows), "right", len(right.Rows))
	return combineResults(cq.Op, left, right), nil
}

// executeSides evaluates the two sides in child contexts. Sides of an
// uncorrelated compound run concurrently; inside a correlated subquery they
// share outer rows and run one after the other.
func (qc *QueryContext) executeSides(cq *CompoundQuery) (*Result, *Result, error) {
	var left, right *Result
	run := func(node Node, out **Result) func() error {
		return func() error {
			child, err := qc.child(qc.outer)
			if err != nil {
				return err
			}
			res, err := child.execute(node)
			if err != nil {
				return err
			}
			if child.correlated {
				qc.markCorrelated()
			}
			*out = res
			return nil
		}
	}

	if qc.outer != nil {
		if err := run(cq.Left, &left)(); err != nil {
			return nil, nil, err
		}
		if err := run(cq.Right, &right)(); err != nil {
			return nil, nil, err
		}
		return left, right, nil
	}

	var g errgroup.Group
	g.Go(run(cq.Left, &left))
	g.Go(run(cq.Right, &right))
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return left, right, nil
}

// leftmostWith returns the WITH clause of a compound's first statement
func leftmostWith(cq *CompoundQuery) *Clause {
	node := cq.Left
	for {
		switch n := node.(type) {
		case *CompoundQuery:
			node = n.Left
		case *Statement:
			return n.Clause("WITH")
		default:
			return nil
		}
	}
}

// combineResults applies UNION, UNION ALL, INTERSECT or EXCEPT. Headers
// come from the left side.
func combineResults(op string, left, right *Result) *Result {
	out := &Result{Headers: left.Headers}
	if op == "UNION ALL" {
		out.Rows = append(append([][]interface{}(nil), left.Rows...), right.Rows...)
		return out
	}

	rightKeys := make(map[string]bool, len(right.Rows))
	for _, r := range right.Rows {
		rightKeys[firstKey(r)] = true
	}

	seen := make(map[string]bool)
	keep := func(r []interface{}) {
		k := firstKey(r)
		if seen[k] {
			return
		}
		seen[k] = true
		out.Rows = append(out.Rows, r)
	}

	for _, r := range left.Rows {
		inRight := rightKeys[firstKey(r)]
		switch op {
		case "INTERSECT":
			if inRight {
				keep(r)
			}
		case "EXCEPT":
			if !inRight {
				keep(r)
			}
		default:
			keep(r)
		}
	}
	if op == "UNION" {
		for _, r := range right.Rows {
			keep(r)
		}
	}
	return out
}

func firstKey(row []interface{}) string {
	if len(row) == 0 {
		return valueKey(nil)
	}
	return valueKey(row[0])
}
