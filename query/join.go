package query

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// fetchAndJoin produces the rows of the FROM list: the first table's
// records, then each further table attached by provider hook, discovered
// path, pluralized path or cross join
func (qc *QueryContext) fetchAndJoin() ([]*ResultRow, error) {
	if len(qc.Tables) == 0 {
		return []*ResultRow{NewResultRow("0")}, nil
	}

	first := qc.Tables[0]
	start := time.Now()
	data, err := qc.primaryRows(first)
	if err != nil {
		return nil, err
	}
	first.Stats.Startup = time.Since(start)
	first.Join = &Join{Strategy: JoinPrimary}

	rows := make([]*ResultRow, 0, len(data))
	for i, rec := range data {
		r := NewResultRow(strconv.Itoa(i))
		r.side[first.ID] = normalizeValue(rec)
		rows = append(rows, r)
	}
	first.Stats.PlanRows = len(rows)
	if first.Predicate != nil {
		if rows, err = qc.filterRows(rows, first.Predicate, false); err != nil {
			return nil, err
		}
	}
	first.Stats.ActualRows = len(rows)
	first.Stats.Total = time.Since(start)

	for i := 1; i < len(qc.Tables); i++ {
		if err := qc.checkContext(); err != nil {
			return nil, err
		}
		if rows, err = qc.joinTable(i, rows); err != nil {
			return nil, err
		}
	}
	return qc.recheckJoins(rows)
}

// recheckJoins applies every join predicate strictly once all tables are
// attached. The first pass keeps rows whose predicate names data that is not
// joined yet; those rows are dropped now unless the predicate holds. A left
// join parent left with no matching rows gets its null row back.
func (qc *QueryContext) recheckJoins(rows []*ResultRow) ([]*ResultRow, error) {
	var err error
	if first := qc.Tables[0]; first.Predicate != nil {
		if rows, err = qc.filterRows(rows, first.Predicate, true); err != nil {
			return nil, err
		}
	}

	for k := 1; k < len(qc.Tables); k++ {
		t := qc.Tables[k]
		if t.Predicate == nil {
			continue
		}

		out := make([]*ResultRow, 0, len(rows))
		var (
			parent  string
			matched bool
			failed  *ResultRow
		)
		flush := func() {
			if failed != nil && !matched && !t.Inner {
				out = append(out, qc.nullJoinRow(failed, k))
			}
		}

		// rows of one parent are contiguous: fan-out appends them in order
		for i, r := range rows {
			segments := strings.Split(r.ID, ".")
			p := strings.Join(segments[:min(k, len(segments))], ".")
			if i == 0 || p != parent {
				flush()
				parent, matched, failed = p, false, nil
			}
			if len(segments) > k && segments[k] == "-1" {
				out = append(out, r)
				matched = true
				continue
			}

			v, err := qc.evaluate(r, t.Predicate, rows)
			if err != nil && !IsSymbolError(err) {
				return nil, fmt.Errorf("join %s: %w", t.Alias, err)
			}
			if err == nil && truthy(v) {
				out = append(out, r)
				matched = true
				continue
			}
			if failed == nil {
				failed = r
			}
		}
		flush()

		rows = out
		t.Stats.ActualRows = len(rows)
	}
	return rows, nil
}

// nullJoinRow derives the left join null row of r's parent for table k:
// table k and every table joined after it contribute null
func (qc *QueryContext) nullJoinRow(r *ResultRow, k int) *ResultRow {
	segments := strings.Split(r.ID, ".")
	id := strings.Join(segments[:min(k, len(segments))], ".")
	for range qc.Tables[k:] {
		id = fanOutID(id, -1)
	}
	c := r.clone(id)
	for _, t := range qc.Tables[k:] {
		c.side[t.ID] = nil
	}
	return c
}

// joinTable attaches table idx to rows
func (qc *QueryContext) joinTable(idx int, rows []*ResultRow) ([]*ResultRow, error) {
	t := qc.Tables[idx]
	prior := qc.Tables[:idx]
	start := time.Now()

	provider := qc.tableProvider(t)
	hooks, hasHooks := provider.(JoinHooks)
	if hasHooks {
		if err := hooks.BeforeJoin(qc.ctx, t, rows); err != nil {
			return nil, fmt.Errorf("join %s: %w", t.Alias, err)
		}
	}

	if t.Using != "" && t.Predicate == nil {
		t.Predicate = usingPredicate(prior[len(prior)-1], t)
	}

	var resolve func(*ResultRow) interface{}
	switch {
	case t.Join != nil && t.Join.Strategy == JoinProvided:
		resolve = func(r *ResultRow) interface{} { return r.side[t.ID] }
	default:
		if t.Subquery == nil && t.Function == nil {
			t.Join = qc.discoverJoin(t, prior, rows)
		}
		if t.Join != nil {
			from, parts := t.Join.From, strings.Split(t.Join.Path, ".")
			resolve = func(r *ResultRow) interface{} {
				v, _ := lookupPath(r.side[from], parts)
				return v
			}
			break
		}

		data, err := qc.primaryRows(t)
		if err != nil {
			return nil, err
		}
		t.Join = &Join{Strategy: JoinCross}
		all := make([]interface{}, len(data))
		copy(all, data)
		resolve = func(*ResultRow) interface{} { return all }
	}
	t.Stats.Startup = time.Since(start)

	qc.engine.logger.Debug("join",
		"table", t.Name, "alias", t.Alias, "strategy", string(t.Join.Strategy), "path", t.Join.Path)

	out, planned, err := qc.applyJoin(t, rows, resolve)
	if err != nil {
		return nil, err
	}

	if hasHooks {
		if err := hooks.AfterJoin(qc.ctx, t, out); err != nil {
			return nil, fmt.Errorf("join %s: %w", t.Alias, err)
		}
	}

	t.Stats.PlanRows = planned
	t.Stats.ActualRows = len(out)
	t.Stats.Total = time.Since(start)
	return out, nil
}

// applyJoin fans each row out over its resolved side data. Arrays produce
// one row per element with ids parent.i; empty arrays and missing data drop
// the row for inner joins and yield one null row parent.-1 for left joins;
// anything else attaches as parent.0. The ON predicate is applied per parent
// so a left join keeps parents none of whose children matched.
func (qc *QueryContext) applyJoin(t *ParsedTable, rows []*ResultRow, resolve func(*ResultRow) interface{}) ([]*ResultRow, int, error) {
	out := make([]*ResultRow, 0, len(rows))
	planned := 0

	for _, r := range rows {
		var children []*ResultRow
		switch v := normalizeValue(resolve(r)).(type) {
		case []interface{}:
			for i, item := range v {
				c := r.clone(fanOutID(r.ID, i))
				c.side[t.ID] = normalizeValue(item)
				children = append(children, c)
			}
		case nil:
		default:
			c := r.clone(fanOutID(r.ID, 0))
			c.side[t.ID] = v
			children = append(children, c)
		}
		planned += len(children)

		if t.Predicate != nil && len(children) > 0 {
			var err error
			if children, err = qc.filterRows(children, t.Predicate, false); err != nil {
				return nil, 0, err
			}
		}

		if len(children) == 0 {
			if !t.Inner {
				c := r.clone(fanOutID(r.ID, -1))
				c.side[t.ID] = nil
				out = append(out, c)
			}
			continue
		}
		out = append(out, children...)
	}
	return out, planned, nil
}

// discoverJoin looks for a nested property named after the table in the
// data of the tables joined so far: first the lower-cased name, then its
// plural as an array. A name prefixed by an earlier alias (u.posts) only
// searches that table.
func (qc *QueryContext) discoverJoin(t *ParsedTable, prior []*ParsedTable, rows []*ResultRow) *Join {
	name := t.Name
	scope := prior
	if i := strings.Index(name, "."); i > 0 {
		prefix := name[:i]
		for _, p := range prior {
			if strings.EqualFold(p.Alias, prefix) || strings.EqualFold(p.Name, prefix) {
				scope = []*ParsedTable{p}
				name = name[i+1:]
				break
			}
		}
	}
	lower := strings.ToLower(name)

	candidates := []struct {
		path     string
		strategy JoinStrategy
	}{
		{lower, JoinPath},
		{lower + "s", JoinPlural},
	}
	for _, cand := range candidates {
		parts := strings.Split(cand.path, ".")
		// most recently joined tables first
		for i := len(scope) - 1; i >= 0; i-- {
			p := scope[i]
			for _, r := range rows {
				v, ok := lookupPath(r.side[p.ID], parts)
				if !ok || v == nil {
					continue
				}
				if _, isArray := v.([]interface{}); cand.strategy == JoinPlural && !isArray {
					continue
				}
				return &Join{Strategy: cand.strategy, From: p.ID, FromName: p.Alias, Path: cand.path}
			}
		}
	}
	return nil
}

// usingPredicate builds prev.col = t.col for JOIN ... USING col
func usingPredicate(prev, t *ParsedTable) Node {
	left := &Symbol{Name: prev.Alias + "." + t.Using}
	left.Source = left.Name
	right := &Symbol{Name: t.Alias + "." + t.Using}
	right.Source = right.Name
	eq := &Operator{Op: "=", Operands: []Node{left, right}}
	eq.Source = left.Name + " = " + right.Name
	return eq
}

// tableProvider returns the provider that serves t, or nil when t comes
// from a subquery, table function, CTE, view or information_schema
func (qc *QueryContext) tableProvider(t *ParsedTable) Provider {
	if t.Subquery != nil || t.Function != nil || t.Schema == informationSchema {
		return nil
	}
	if t.Schema == "" {
		if _, ok, _ := qc.lookupResult(t.Name); ok {
			return nil
		}
		if _, ok := qc.engine.catalog.View(t.Name); ok {
			return nil
		}
	}
	return qc.engine.providers[t.Schema]
}

// primaryRows returns the full record set of t, fetching it once per statement
func (qc *QueryContext) primaryRows(t *ParsedTable) ([]interface{}, error) {
	if t.loaded {
		return t.records, nil
	}
	start := time.Now()
	data, columns, err := qc.fetchPrimary(t)
	if err != nil {
		return nil, err
	}
	if len(t.Headers) > 0 {
		data, columns = renameColumns(data, columns, t.Headers)
	}
	t.records, t.Columns, t.loaded = data, columns, true

	qc.engine.logger.Debug("table fetched",
		"table", t.Name, "alias", t.Alias, "rows", len(data), "duration", time.Since(start))
	return data, nil
}

func (qc *QueryContext) fetchPrimary(t *ParsedTable) ([]interface{}, []string, error) {
	switch {
	case t.Subquery != nil:
		child, err := qc.child(nil)
		if err != nil {
			return nil, nil, err
		}
		res, err := child.execute(t.Subquery)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", t.Name, err)
		}
		return res.records(), res.Headers, nil
	case t.Function != nil:
		return qc.callTableFunction(t)
	case t.Schema == informationSchema:
		return qc.informationSchema(t.Name)
	}

	if t.Schema == "" {
		res, ok, err := qc.lookupResult(t.Name)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			return res.records(), res.Headers, nil
		}
		if view, ok := qc.engine.catalog.View(t.Name); ok {
			res, err := qc.runView(view)
			if err != nil {
				return nil, nil, err
			}
			return res.records(), res.Headers, nil
		}
	}

	p, ok := qc.engine.providers[t.Schema]
	if !ok {
		return nil, nil, fmt.Errorf("%w for table %s", ErrNoProvider, t.Name)
	}
	data, err := p.PrimaryTable(qc.ctx, t)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch %s: %w", t.Name, err)
	}

	var columns []string
	if lister, ok := p.(SchemaLister); ok {
		if infos, err := lister.Columns(qc.ctx, t.Name); err == nil {
			for _, c := range infos {
				columns = append(columns, c.Name)
			}
		}
	}
	return data, columns, nil
}

// runView executes a view definition in a fresh nested context
func (qc *QueryContext) runView(view *View) (*Result, error) {
	child, err := qc.child(nil)
	if err != nil {
		return nil, err
	}
	qc.engine.logger.Debug("view materialized", "view", view.Name)
	res, err := child.execute(view.Node)
	if err != nil {
		return nil, fmt.Errorf("view %s: %w", view.Name, err)
	}
	return res, nil
}

// recordColumns returns the keys of map records in first-seen order, each
// record's keys sorted
func recordColumns(data []interface{}) []string {
	var columns []string
	seen := make(map[string]bool)
	for _, rec := range data {
		m, ok := normalizeValue(rec).(map[string]interface{})
		if !ok {
			continue
		}
		keys := make([]string, 0, len(m))
		for k := range m {
			if !seen[k] {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			seen[k] = true
			columns = append(columns, k)
		}
	}
	return columns
}

// renameColumns applies a FROM-item column list: the i-th column becomes
// headers[i]. Scalar records become single-column records.
func renameColumns(data []interface{}, columns, headers []string) ([]interface{}, []string) {
	if len(columns) == 0 {
		columns = recordColumns(data)
	}
	out := make([]interface{}, len(data))
	for i, rec := range data {
		renamed := make(map[string]interface{}, len(headers))
		switch m := normalizeValue(rec).(type) {
		case map[string]interface{}:
			for j, h := range headers {
				if j < len(columns) {
					renamed[h] = m[columns[j]]
				}
			}
		default:
			renamed[headers[0]] = m
		}
		out[i] = renamed
	}
	return out, append([]string(nil), headers...)
}
