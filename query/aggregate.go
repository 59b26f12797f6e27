package query

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
)

// AggregateFunc computes one value over a group. Each input tuple holds the
// evaluated arguments for one member row; when the call has WITHIN GROUP
// (ORDER BY ...) the tuples arrive in that order with the first sort key
// appended as the last element.
type AggregateFunc interface {
	Name() string
	Aggregate(tuples [][]interface{}) (interface{}, error)
}

// AggregateRegistry holds aggregate functions
type AggregateRegistry = Registry[AggregateFunc]

// registerBuiltinAggregates fills r with the built-in aggregates. MIN and
// MAX order values with c.
func registerBuiltinAggregates(r *AggregateRegistry, c *Collator) {
	r.Register(CountAgg{})
	r.Register(SumAgg{})
	r.Register(AvgAgg{})
	r.Register(&ExtremumAgg{name: "MIN", collator: c, want: -1})
	r.Register(&ExtremumAgg{name: "MAX", collator: c, want: 1})
	r.Register(ListAgg{})
	r.Register(JSONArrayAgg{})
	r.Register(JSONObjectAgg{})
	r.Register(VarianceAgg{name: "STDDEV", sample: true, root: true})
	r.Register(VarianceAgg{name: "STDDEV_SAMP", sample: true, root: true})
	r.Register(VarianceAgg{name: "STDDEV_POP", root: true})
	r.Register(VarianceAgg{name: "VAR_SAMP", sample: true})
	r.Register(VarianceAgg{name: "VAR_POP"})
	r.Register(CovarianceAgg{name: "COVAR_SAMP", sample: true})
	r.Register(CovarianceAgg{name: "COVAR_POP"})
	r.Register(&PercentileAgg{name: "PERCENTILE_CONT", collator: c, continuous: true})
	r.Register(&PercentileAgg{name: "PERCENTILE_DISC", collator: c})
}

// CountAgg counts tuples. COUNT(*) contributes true for every row, so only an
// explicit false is left out.
type CountAgg struct{}

func (CountAgg) Name() string { return "COUNT" }

func (CountAgg) Aggregate(tuples [][]interface{}) (interface{}, error) {
	n := 0
	for _, t := range tuples {
		if b, ok := t[0].(bool); ok && !b {
			continue
		}
		n++
	}
	return float64(n), nil
}

// numbers extracts the numeric first elements of tuples
func numbers(tuples [][]interface{}) []float64 {
	out := make([]float64, 0, len(tuples))
	for _, t := range tuples {
		if n, ok := toNumber(t[0]); ok && !math.IsNaN(n) {
			out = append(out, n)
		}
	}
	return out
}

// SumAgg adds numeric inputs; null when there are none
type SumAgg struct{}

func (SumAgg) Name() string { return "SUM" }

func (SumAgg) Aggregate(tuples [][]interface{}) (interface{}, error) {
	nums := numbers(tuples)
	if len(nums) == 0 {
		return nil, nil
	}
	sum := 0.0
	for _, n := range nums {
		sum += n
	}
	return sum, nil
}

// AvgAgg averages numeric inputs
type AvgAgg struct{}

func (AvgAgg) Name() string { return "AVG" }

func (AvgAgg) Aggregate(tuples [][]interface{}) (interface{}, error) {
	nums := numbers(tuples)
	if len(nums) == 0 {
		return nil, nil
	}
	sum := 0.0
	for _, n := range nums {
		sum += n
	}
	return sum / float64(len(nums)), nil
}

// ExtremumAgg implements MIN (want -1) and MAX (want 1) under collation
type ExtremumAgg struct {
	name     string
	collator *Collator
	want     int
}

func (a *ExtremumAgg) Name() string { return a.name }

func (a *ExtremumAgg) Aggregate(tuples [][]interface{}) (interface{}, error) {
	var best interface{}
	for i, t := range tuples {
		if i == 0 || a.collator.CompareValues(t[0], best)*a.want > 0 {
			best = t[0]
		}
	}
	return best, nil
}

// ListAgg joins its inputs with a separator, a comma by default
type ListAgg struct{}

func (ListAgg) Name() string { return "LISTAGG" }

func (ListAgg) Aggregate(tuples [][]interface{}) (interface{}, error) {
	if len(tuples) == 0 {
		return nil, nil
	}
	sep := ","
	if len(tuples[0]) > 1 {
		if s, ok := tuples[0][1].(string); ok {
			sep = s
		}
	}
	parts := make([]string, len(tuples))
	for i, t := range tuples {
		parts[i] = toString(t[0])
	}
	return strings.Join(parts, sep), nil
}

// JSONArrayAgg renders its inputs as a JSON array
type JSONArrayAgg struct{}

func (JSONArrayAgg) Name() string { return "JSON_ARRAYAGG" }

func (JSONArrayAgg) Aggregate(tuples [][]interface{}) (interface{}, error) {
	items := make([]interface{}, len(tuples))
	for i, t := range tuples {
		items[i] = t[0]
	}
	b, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("JSON_ARRAYAGG: %w", err)
	}
	return string(b), nil
}

// JSONObjectAgg renders key/value inputs as a JSON object
type JSONObjectAgg struct{}

func (JSONObjectAgg) Name() string { return "JSON_OBJECTAGG" }

func (JSONObjectAgg) Aggregate(tuples [][]interface{}) (interface{}, error) {
	obj := make(map[string]interface{}, len(tuples))
	for _, t := range tuples {
		if len(t) < 2 {
			return nil, fmt.Errorf("JSON_OBJECTAGG requires a key and a value")
		}
		obj[toString(t[0])] = t[1]
	}
	b, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("JSON_OBJECTAGG: %w", err)
	}
	return string(b), nil
}

// VarianceAgg implements the variance and standard deviation family
type VarianceAgg struct {
	name   string
	sample bool
	root   bool
}

func (a VarianceAgg) Name() string { return a.name }

func (a VarianceAgg) Aggregate(tuples [][]interface{}) (interface{}, error) {
	nums := numbers(tuples)
	n := float64(len(nums))
	if n == 0 || (a.sample && n < 2) {
		return nil, nil
	}
	mean := 0.0
	for _, x := range nums {
		mean += x
	}
	mean /= n
	ss := 0.0
	for _, x := range nums {
		ss += (x - mean) * (x - mean)
	}
	if a.sample {
		n--
	}
	v := ss / n
	if a.root {
		return math.Sqrt(v), nil
	}
	return v, nil
}

// CovarianceAgg implements COVAR_POP and COVAR_SAMP over (y, x) pairs
type CovarianceAgg struct {
	name   string
	sample bool
}

func (a CovarianceAgg) Name() string { return a.name }

func (a CovarianceAgg) Aggregate(tuples [][]interface{}) (interface{}, error) {
	var ys, xs []float64
	for _, t := range tuples {
		if len(t) < 2 {
			return nil, fmt.Errorf("%s requires two arguments", a.name)
		}
		y, ok1 := toNumber(t[0])
		x, ok2 := toNumber(t[1])
		if !ok1 || !ok2 || isStrictNull(t[1]) || math.IsNaN(y) || math.IsNaN(x) {
			continue
		}
		ys, xs = append(ys, y), append(xs, x)
	}
	n := float64(len(ys))
	if n == 0 || (a.sample && n < 2) {
		return nil, nil
	}
	var my, mx float64
	for i := range ys {
		my += ys[i]
		mx += xs[i]
	}
	my, mx = my/n, mx/n
	sum := 0.0
	for i := range ys {
		sum += (ys[i] - my) * (xs[i] - mx)
	}
	if a.sample {
		n--
	}
	return sum / n, nil
}

// PercentileAgg implements PERCENTILE_CONT and PERCENTILE_DISC (fraction)
// WITHIN GROUP (ORDER BY value)
type PercentileAgg struct {
	name       string
	collator   *Collator
	continuous bool
}

func (a *PercentileAgg) Name() string { return a.name }

func (a *PercentileAgg) Aggregate(tuples [][]interface{}) (interface{}, error) {
	if len(tuples) == 0 {
		return nil, nil
	}
	if len(tuples[0]) < 2 {
		return nil, fmt.Errorf("%s requires WITHIN GROUP (ORDER BY ...)", a.name)
	}
	fraction, ok := toNumber(tuples[0][0])
	if !ok || fraction < 0 || fraction > 1 {
		return nil, fmt.Errorf("%s: fraction must be between 0 and 1", a.name)
	}
	values := make([]interface{}, 0, len(tuples))
	for _, t := range tuples {
		if v := t[len(t)-1]; !isStrictNull(v) {
			values = append(values, v)
		}
	}
	if a.continuous {
		return percentileCont(values, fraction), nil
	}
	return percentileDisc(values, fraction), nil
}

// percentileDisc returns the first value whose cumulative distribution
// reaches fraction. values must be sorted.
func percentileDisc(values []interface{}, fraction float64) interface{} {
	if len(values) == 0 {
		return nil
	}
	idx := int(math.Ceil(fraction*float64(len(values)))) - 1
	idx = max(0, min(idx, len(values)-1))
	return values[idx]
}

// percentileCont interpolates linearly between the sorted numeric values
// around fraction
func percentileCont(values []interface{}, fraction float64) interface{} {
	nums := make([]float64, 0, len(values))
	for _, v := range values {
		if n, ok := toNumber(v); ok && !math.IsNaN(n) {
			nums = append(nums, n)
		}
	}
	if len(nums) == 0 {
		return nil
	}
	pos := fraction * float64(len(nums)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return nums[lo]
	}
	return nums[lo] + (nums[hi]-nums[lo])*(pos-float64(lo))
}

// evaluateAggregate computes an aggregate call over the members of row's group
func (qc *QueryContext) evaluateAggregate(row *ResultRow, call *FunctionCall, agg AggregateFunc) (interface{}, error) {
	tuples, err := qc.aggregateInput(call, row.Group)
	if err != nil {
		return nil, err
	}
	v, err := agg.Aggregate(tuples)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", call.Name, err)
	}
	return normalizeValue(v), nil
}

// aggregateInput evaluates an aggregate's argument tuples over members:
// FILTER drops rows, WITHIN GROUP orders them, tuples whose first value is
// null are skipped and DISTINCT keeps the first tuple per value.
func (qc *QueryContext) aggregateInput(call *FunctionCall, members []*ResultRow) ([][]interface{}, error) {
	if call.Filter != nil {
		var err error
		if members, err = qc.filterRows(members, call.Filter, true); err != nil {
			return nil, err
		}
	}

	var orderKeys map[*ResultRow][]interface{}
	if len(call.Order) > 0 {
		var err error
		if members, orderKeys, err = qc.orderMembers(members, call.Order); err != nil {
			return nil, err
		}
	}

	star := len(call.Args) == 0
	if len(call.Args) == 1 {
		if sym, ok := call.Args[0].(*Symbol); ok && sym.Name == "*" {
			star = true
		}
	}

	seen := make(map[string]bool)
	tuples := make([][]interface{}, 0, len(members))
	for _, m := range members {
		var t []interface{}
		if star {
			t = []interface{}{true}
		} else {
			t = make([]interface{}, len(call.Args))
			for i, arg := range call.Args {
				v, err := qc.evaluate(m, arg, members)
				if err != nil && !IsSymbolError(err) {
					return nil, err
				}
				t[i] = v
			}
			if isStrictNull(t[0]) {
				continue
			}
		}
		if call.Distinct {
			key := tupleKey(t)
			if seen[key] {
				continue
			}
			seen[key] = true
		}
		if orderKeys != nil {
			t = append(t, orderKeys[m][0])
		}
		tuples = append(tuples, t)
	}
	return tuples, nil
}

// orderMembers sorts a copy of members by WITHIN GROUP terms, returning each
// row's key tuple
func (qc *QueryContext) orderMembers(members []*ResultRow, order []Node) ([]*ResultRow, map[*ResultRow][]interface{}, error) {
	terms := orderTerms(order)
	keys := make(map[*ResultRow][]interface{}, len(members))
	for _, m := range members {
		key := make([]interface{}, len(terms))
		for i, t := range terms {
			v, err := qc.evaluate(m, t.node, members)
			if err != nil && !IsSymbolError(err) {
				return nil, nil, err
			}
			key[i] = v
		}
		keys[m] = key
	}
	sorted := append([]*ResultRow(nil), members...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return qc.compareOrderKeys(keys[sorted[i]], keys[sorted[j]], terms) < 0
	})
	return sorted, keys, nil
}

// groupRows partitions rows by their GROUP BY key tuple, in first-seen
// order. Each group is represented by a row that keeps its first member's
// table data and carries all members in Group.
func (qc *QueryContext) groupRows(rows []*ResultRow, groupBy []Node) ([]*ResultRow, error) {
	index := make(map[string]*ResultRow)
	var groups []*ResultRow

	for _, r := range rows {
		key := make([]interface{}, len(groupBy))
		for i, g := range groupBy {
			v, err := qc.termValue(r, g, rows)
			if err != nil {
				return nil, fmt.Errorf("GROUP BY %s: %w", g.Meta().Source, err)
			}
			key[i] = v
		}
		k := tupleKey(key)
		g, ok := index[k]
		if !ok {
			g = qc.newGroupRow(r)
			index[k] = g
			groups = append(groups, g)
		}
		g.Group = append(g.Group, r)
	}

	qc.engine.logger.Debug("rows grouped", "rows", len(rows), "groups", len(groups))
	return groups, nil
}

// newGroupRow creates the representative row of a group. Window columns
// were computed over the ungrouped rows, so their values carry over from
// the first member; every other column is evaluated again for the group.
func (qc *QueryContext) newGroupRow(first *ResultRow) *ResultRow {
	g := first.clone(first.ID)
	g.allocateCells(len(qc.Columns))
	for i := range g.cells {
		if i < len(first.cells) && i < len(qc.info) && qc.info[i].window && first.cells[i].state == cellValue {
			g.cells[i] = first.cells[i]
		}
	}
	return g
}
