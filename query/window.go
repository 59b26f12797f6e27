package query

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// WindowFunc computes a value for the current row of an ordered partition
type WindowFunc interface {
	Name() string
	Compute(w *WindowContext) (interface{}, error)
}

// WindowRegistry holds window functions
type WindowRegistry = Registry[WindowFunc]

// WindowContext is what a window function sees for one row
type WindowContext struct {
	// Index is the current row's position in the ordered partition
	Index int
	// Rows is the ordered partition
	Rows []*ResultRow
	// Values holds each partition row's first ORDER BY key
	Values []interface{}
	// FrameStart and FrameEnd bound the frame, FrameEnd exclusive
	FrameStart int
	FrameEnd   int
	// Args are the call's unevaluated arguments
	Args []Node

	peers  []int // peer group of each position
	starts []int // first position of each peer group
	eval   func(row *ResultRow, node Node) (interface{}, error)
}

// Len returns the partition size
func (w *WindowContext) Len() int { return len(w.Rows) }

// Arg evaluates argument i for the partition row at pos. Missing arguments
// yield def.
func (w *WindowContext) Arg(i, pos int, def interface{}) (interface{}, error) {
	if i >= len(w.Args) {
		return def, nil
	}
	return w.eval(w.Rows[pos], w.Args[i])
}

// PeerGroup returns the peer group number of pos, counting from 0
func (w *WindowContext) PeerGroup(pos int) int { return w.peers[pos] }

// PeerStart returns the first position tied with pos
func (w *WindowContext) PeerStart(pos int) int { return w.starts[w.peers[pos]] }

// PeerEnd returns one past the last position tied with pos
func (w *WindowContext) PeerEnd(pos int) int {
	g := w.peers[pos] + 1
	if g < len(w.starts) {
		return w.starts[g]
	}
	return len(w.Rows)
}

func init() {
	windowFunctions = NewRegistry[WindowFunc]()
	for _, f := range []WindowFunc{
		RowNumberWindow{}, RankWindow{}, DenseRankWindow{}, PercentRankWindow{},
		CumeDistWindow{}, NTileWindow{},
		OffsetWindow{name: "LAG", dir: -1}, OffsetWindow{name: "LEAD", dir: 1},
		FrameValueWindow{name: "FIRST_VALUE"}, FrameValueWindow{name: "LAST_VALUE", last: true},
		NthValueWindow{}, CumeSumWindow{}, CumeSumWindow{fraction: true},
		PercentileWindow{name: "PERCENTILE_DISC"}, PercentileWindow{name: "PERCENTILE_CONT", continuous: true},
		FreqWindow{}, MapWindow{},
	} {
		windowFunctions.Register(f)
	}
}

var windowFunctions *WindowRegistry

// RowNumberWindow numbers rows from 1
type RowNumberWindow struct{}

func (RowNumberWindow) Name() string { return "ROW_NUMBER" }

func (RowNumberWindow) Compute(w *WindowContext) (interface{}, error) {
	return float64(w.Index + 1), nil
}

// RankWindow gives peers the same rank, leaving gaps
type RankWindow struct{}

func (RankWindow) Name() string { return "RANK" }

func (RankWindow) Compute(w *WindowContext) (interface{}, error) {
	return float64(w.PeerStart(w.Index) + 1), nil
}

// DenseRankWindow gives peers the same rank without gaps
type DenseRankWindow struct{}

func (DenseRankWindow) Name() string { return "DENSE_RANK" }

func (DenseRankWindow) Compute(w *WindowContext) (interface{}, error) {
	return float64(w.PeerGroup(w.Index) + 1), nil
}

// PercentRankWindow is (rank - 1) / (rows - 1)
type PercentRankWindow struct{}

func (PercentRankWindow) Name() string { return "PERCENT_RANK" }

func (PercentRankWindow) Compute(w *WindowContext) (interface{}, error) {
	if w.Len() < 2 {
		return 0.0, nil
	}
	return float64(w.PeerStart(w.Index)) / float64(w.Len()-1), nil
}

// CumeDistWindow is the fraction of rows ordered at or before the current row
type CumeDistWindow struct{}

func (CumeDistWindow) Name() string { return "CUME_DIST" }

func (CumeDistWindow) Compute(w *WindowContext) (interface{}, error) {
	return float64(w.PeerEnd(w.Index)) / float64(w.Len()), nil
}

// NTileWindow splits the partition into n buckets as evenly as possible
type NTileWindow struct{}

func (NTileWindow) Name() string { return "NTILE" }

func (NTileWindow) Compute(w *WindowContext) (interface{}, error) {
	v, err := w.Arg(0, w.Index, nil)
	if err != nil {
		return nil, err
	}
	n, ok := toNumber(v)
	if !ok || n < 1 {
		return nil, fmt.Errorf("NTILE requires a positive bucket count")
	}
	buckets := int(n)
	size, extra := w.Len()/buckets, w.Len()%buckets
	// the first extra buckets hold size+1 rows
	if big := extra * (size + 1); w.Index < big {
		return float64(w.Index/(size+1) + 1), nil
	} else if size > 0 {
		return float64(extra + (w.Index-big)/size + 1), nil
	}
	return float64(w.Index + 1), nil
}

// OffsetWindow implements LAG (dir -1) and LEAD (dir 1):
// fn(expr [, offset [, default]])
type OffsetWindow struct {
	name string
	dir  int
}

func (f OffsetWindow) Name() string { return f.name }

func (f OffsetWindow) Compute(w *WindowContext) (interface{}, error) {
	offset := 1
	if len(w.Args) > 1 {
		v, err := w.Arg(1, w.Index, nil)
		if err != nil {
			return nil, err
		}
		if n, ok := toNumber(v); ok {
			offset = int(n)
		}
	}
	pos := w.Index + f.dir*offset
	if pos < 0 || pos >= w.Len() {
		return w.Arg(2, w.Index, nil)
	}
	return w.Arg(0, pos, nil)
}

// FrameValueWindow implements FIRST_VALUE and LAST_VALUE over the frame
type FrameValueWindow struct {
	name string
	last bool
}

func (f FrameValueWindow) Name() string { return f.name }

func (f FrameValueWindow) Compute(w *WindowContext) (interface{}, error) {
	if w.FrameStart >= w.FrameEnd {
		return nil, nil
	}
	if f.last {
		return w.Arg(0, w.FrameEnd-1, nil)
	}
	return w.Arg(0, w.FrameStart, nil)
}

// NthValueWindow returns expr for the n-th frame row, counting from 1
type NthValueWindow struct{}

func (NthValueWindow) Name() string { return "NTH_VALUE" }

func (NthValueWindow) Compute(w *WindowContext) (interface{}, error) {
	v, err := w.Arg(1, w.Index, nil)
	if err != nil {
		return nil, err
	}
	n, ok := toNumber(v)
	if !ok || n < 1 {
		return nil, nil
	}
	pos := w.FrameStart + int(n) - 1
	if pos >= w.FrameEnd {
		return nil, nil
	}
	return w.Arg(0, pos, nil)
}

// CumeSumWindow is the running total of expr up to the current row.
// CUME_FRAC divides it by the partition total.
type CumeSumWindow struct {
	fraction bool
}

func (f CumeSumWindow) Name() string {
	if f.fraction {
		return "CUME_FRAC"
	}
	return "CUME_SUM"
}

func (f CumeSumWindow) Compute(w *WindowContext) (interface{}, error) {
	end := w.Index + 1
	if f.fraction {
		end = w.Len()
	}
	var running, total float64
	for i := 0; i < end; i++ {
		v, err := w.Arg(0, i, nil)
		if err != nil {
			return nil, err
		}
		n, ok := toNumber(v)
		if !ok || math.IsNaN(n) {
			continue
		}
		if i <= w.Index {
			running += n
		}
		total += n
	}
	if !f.fraction {
		return running, nil
	}
	if total == 0 {
		return nil, nil
	}
	return running / total, nil
}

// PercentileWindow implements PERCENTILE_DISC and PERCENTILE_CONT
// (fraction) OVER (ORDER BY value)
type PercentileWindow struct {
	name       string
	continuous bool
}

func (f PercentileWindow) Name() string { return f.name }

func (f PercentileWindow) Compute(w *WindowContext) (interface{}, error) {
	v, err := w.Arg(0, w.Index, nil)
	if err != nil {
		return nil, err
	}
	fraction, ok := toNumber(v)
	if !ok || fraction < 0 || fraction > 1 {
		return nil, fmt.Errorf("%s: fraction must be between 0 and 1", f.name)
	}
	values := make([]interface{}, 0, len(w.Values))
	for _, v := range w.Values {
		if !isStrictNull(v) {
			values = append(values, v)
		}
	}
	if f.continuous {
		return percentileCont(values, fraction), nil
	}
	return percentileDisc(values, fraction), nil
}

// FreqWindow counts the partition rows whose value equals the current
// row's: expr when given, otherwise the first ORDER BY key
type FreqWindow struct{}

func (FreqWindow) Name() string { return "FREQ" }

func (FreqWindow) Compute(w *WindowContext) (interface{}, error) {
	value := func(pos int) (interface{}, error) {
		if len(w.Args) > 0 {
			return w.Arg(0, pos, nil)
		}
		return w.Values[pos], nil
	}
	current, err := value(w.Index)
	if err != nil {
		return nil, err
	}
	key := valueKey(current)
	n := 0
	for i := range w.Rows {
		v, err := value(i)
		if err != nil {
			return nil, err
		}
		if valueKey(v) == key {
			n++
		}
	}
	return float64(n), nil
}

// MapWindow collects expr over the frame as a JSON array
type MapWindow struct{}

func (MapWindow) Name() string { return "MAP" }

func (MapWindow) Compute(w *WindowContext) (interface{}, error) {
	items := make([]interface{}, 0, w.FrameEnd-w.FrameStart)
	for i := w.FrameStart; i < w.FrameEnd; i++ {
		v, err := w.Arg(0, i, nil)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	b, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("MAP: %w", err)
	}
	return string(b), nil
}

// evaluateWindow returns a window call's value for row. The call is
// computed once over the rows in scope and cached per row.
func (qc *QueryContext) evaluateWindow(row *ResultRow, call *FunctionCall, rows []*ResultRow) (interface{}, error) {
	cache, ok := qc.windowCache[call]
	if !ok {
		cache = make(map[*ResultRow]interface{}, len(rows))
		qc.windowCache[call] = cache
	}
	if v, ok := cache[row]; ok {
		return v, nil
	}

	scope := rows
	if !containsRow(scope, row) {
		scope = []*ResultRow{row}
	}
	if err := qc.computeWindow(call, scope, cache); err != nil {
		return nil, err
	}
	return cache[row], nil
}

func containsRow(rows []*ResultRow, row *ResultRow) bool {
	for _, r := range rows {
		if r == row {
			return true
		}
	}
	return false
}

// resolveWindowSpec merges a window with the named window it extends
func (qc *QueryContext) resolveWindowSpec(spec *WindowSpec) (*WindowSpec, error) {
	if spec == nil {
		return &WindowSpec{}, nil
	}
	seen := make(map[string]bool)
	resolved := *spec
	for resolved.Base != "" {
		if seen[resolved.Base] {
			return nil, fmt.Errorf("window %s references itself", resolved.Base)
		}
		seen[resolved.Base] = true
		base, ok := qc.lookupWindow(resolved.Base)
		if !ok {
			return nil, fmt.Errorf("unknown window %s", resolved.Base)
		}
		if len(resolved.PartitionBy) == 0 {
			resolved.PartitionBy = base.PartitionBy
		}
		if len(resolved.OrderBy) == 0 {
			resolved.OrderBy = base.OrderBy
		}
		if resolved.Frame == nil {
			resolved.Frame = base.Frame
		}
		resolved.Base = base.Base
	}
	return &resolved, nil
}

func (qc *QueryContext) lookupWindow(name string) (*WindowSpec, bool) {
	for c := qc; c != nil; c = c.parent {
		if w, ok := c.windows[name]; ok {
			return w, true
		}
	}
	return nil, false
}

// computeWindow partitions rows, orders each partition and computes call
// for every row into cache
func (qc *QueryContext) computeWindow(call *FunctionCall, rows []*ResultRow, cache map[*ResultRow]interface{}) error {
	spec, err := qc.resolveWindowSpec(call.Window)
	if err != nil {
		return err
	}

	eval := func(r *ResultRow, n Node) (interface{}, error) {
		v, err := qc.evaluate(r, n, rows)
		if err != nil && IsSymbolError(err) {
			return nil, nil
		}
		return v, err
	}

	var compute func(w *WindowContext) (interface{}, error)
	if agg, ok := qc.engine.aggregates.Get(call.Name); ok {
		compute = func(w *WindowContext) (interface{}, error) {
			tuples, err := qc.aggregateInput(call, w.Rows[w.FrameStart:w.FrameEnd])
			if err != nil {
				return nil, err
			}
			return agg.Aggregate(tuples)
		}
	} else if fn, ok := qc.engine.windowFuncs.Get(call.Name); ok {
		compute = fn.Compute
	} else {
		return fmt.Errorf("%w: %s is not a window function", ErrUnknownFunction, call.Name)
	}

	partitions, err := qc.partitionRows(rows, spec.PartitionBy, eval)
	if err != nil {
		return err
	}

	terms := orderTerms(spec.OrderBy)
	for _, part := range partitions {
		keys := make(map[*ResultRow][]interface{}, len(part))
		for _, r := range part {
			key := make([]interface{}, len(terms))
			for i, t := range terms {
				if key[i], err = eval(r, t.node); err != nil {
					return err
				}
			}
			keys[r] = key
		}
		sort.SliceStable(part, func(i, j int) bool {
			return qc.compareOrderKeys(keys[part[i]], keys[part[j]], terms) < 0
		})

		w := &WindowContext{
			Rows:   part,
			Values: make([]interface{}, len(part)),
			Args:   call.Args,
			peers:  make([]int, len(part)),
			eval:   eval,
		}
		for i, r := range part {
			if len(terms) > 0 {
				w.Values[i] = keys[r][0]
			}
			if i == 0 || qc.compareOrderKeys(keys[part[i-1]], keys[r], terms) != 0 {
				w.starts = append(w.starts, i)
			}
			w.peers[i] = len(w.starts) - 1
		}

		for i, r := range part {
			w.Index = i
			w.FrameStart, w.FrameEnd = qc.frameBounds(w, spec.Frame)
			v, err := compute(w)
			if err != nil {
				return fmt.Errorf("%s: %w", call.Name, err)
			}
			cache[r] = normalizeValue(v)
		}
	}
	return nil
}

// partitionRows splits rows by PARTITION BY values, comparing strings by
// collation key. Partitions keep the order their first rows appear in.
func (qc *QueryContext) partitionRows(rows []*ResultRow, by []Node, eval func(*ResultRow, Node) (interface{}, error)) ([][]*ResultRow, error) {
	if len(by) == 0 {
		return [][]*ResultRow{append([]*ResultRow(nil), rows...)}, nil
	}
	index := make(map[string]int)
	var parts [][]*ResultRow
	for _, r := range rows {
		key := make([]interface{}, len(by))
		for i, n := range by {
			v, err := eval(r, n)
			if err != nil {
				return nil, err
			}
			if s, ok := v.(string); ok {
				v = "c:" + qc.engine.collator.Key(s)
			}
			key[i] = v
		}
		k := tupleKey(key)
		idx, ok := index[k]
		if !ok {
			idx = len(parts)
			index[k] = idx
			parts = append(parts, nil)
		}
		parts[idx] = append(parts[idx], r)
	}
	return parts, nil
}

// frameBounds returns the frame of the current row. Without a frame clause
// the frame is the whole partition.
func (qc *QueryContext) frameBounds(w *WindowContext, frame *WindowFrame) (int, int) {
	n := w.Len()
	if frame == nil {
		return 0, n
	}
	var start, end int
	switch frame.Unit {
	case "GROUPS":
		start = qc.groupsBound(w, frame.Start, false)
		end = qc.groupsBound(w, frame.End, true)
	case "RANGE":
		start = qc.rangeBound(w, frame.Start, false)
		end = qc.rangeBound(w, frame.End, true)
	default:
		start = rowsBound(w, frame.Start)
		end = rowsBound(w, frame.End) + 1
	}
	start = max(0, min(start, n))
	end = max(start, min(end, n))
	return start, end
}

func rowsBound(w *WindowContext, b FrameBound) int {
	switch b.Type {
	case BoundUnboundedPreceding:
		return 0
	case BoundPreceding:
		return w.Index - b.Offset
	case BoundFollowing:
		return w.Index + b.Offset
	case BoundUnboundedFollowing:
		return w.Len() - 1
	}
	return w.Index
}

// groupsBound measures offsets in peer groups. end selects the exclusive
// end of the bounding group rather than its first row.
func (qc *QueryContext) groupsBound(w *WindowContext, b FrameBound, end bool) int {
	groups := len(w.starts)
	g := w.PeerGroup(w.Index)
	switch b.Type {
	case BoundUnboundedPreceding:
		g = 0
	case BoundPreceding:
		g -= b.Offset
	case BoundFollowing:
		g += b.Offset
	case BoundUnboundedFollowing:
		g = groups - 1
	}
	if g < 0 {
		return 0
	}
	if g >= groups {
		return w.Len()
	}
	if end {
		if g+1 < groups {
			return w.starts[g+1]
		}
		return w.Len()
	}
	return w.starts[g]
}

// rangeBound measures numeric offsets on the first ORDER BY key
func (qc *QueryContext) rangeBound(w *WindowContext, b FrameBound, end bool) int {
	switch b.Type {
	case BoundUnboundedPreceding:
		return 0
	case BoundUnboundedFollowing:
		return w.Len()
	case BoundCurrentRow:
		if end {
			return w.PeerEnd(w.Index)
		}
		return w.PeerStart(w.Index)
	}

	current, ok := toNumber(w.Values[w.Index])
	if !ok {
		if end {
			return w.PeerEnd(w.Index)
		}
		return w.PeerStart(w.Index)
	}
	offset := float64(b.Offset)
	if b.Type == BoundPreceding {
		offset = -offset
	}
	limit := current + offset
	if !end {
		for i := range w.Values {
			if v, ok := toNumber(w.Values[i]); ok && v >= limit {
				return i
			}
		}
		return w.Len()
	}
	for i := w.Len() - 1; i >= 0; i-- {
		if v, ok := toNumber(w.Values[i]); ok && v <= limit {
			return i + 1
		}
	}
	return 0
}
