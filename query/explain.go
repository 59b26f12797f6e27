package query

import (
	"encoding/json"
	"fmt"
	"time"
)

// explainHeaders are the columns of a plain EXPLAIN
var explainHeaders = []string{"name", "alias", "join", "inner", "predicate", "rowCount"}

// explainPlan describes the tables of the statement that just ran: one row
// per table, or with analyse a single JSON nested-loop plan
func (qc *QueryContext) explainPlan(analyse bool) (*Result, error) {
	if analyse {
		plan := analysePlan(qc.Tables)
		b, err := json.Marshal([]map[string]*PlanNode{{"Plan": plan}})
		if err != nil {
			return nil, fmt.Errorf("explain: %w", err)
		}
		return &Result{Headers: []string{"QUERY PLAN"}, Rows: [][]interface{}{{string(b)}}}, nil
	}

	res := &Result{Headers: explainHeaders}
	for _, t := range qc.Tables {
		var predicate interface{}
		if t.Predicate != nil {
			predicate = t.Predicate.Meta().Source
		}
		res.Rows = append(res.Rows, []interface{}{
			t.Name, t.Alias, t.Join.String(), t.Inner, predicate, float64(t.Stats.ActualRows),
		})
	}
	return res, nil
}

// PlanNode is one node of an EXPLAIN ANALYSE plan. Costs are milliseconds.
type PlanNode struct {
	NodeType     string      `json:"Node Type"`
	JoinType     string      `json:"Join Type,omitempty"`
	RelationName string      `json:"Relation Name,omitempty"`
	Alias        string      `json:"Alias,omitempty"`
	StartupCost  float64     `json:"Startup Cost"`
	TotalCost    float64     `json:"Total Cost"`
	PlanRows     int         `json:"Plan Rows"`
	ActualRows   int         `json:"Actual Rows"`
	Plans        []*PlanNode `json:"Plans,omitempty"`
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

// analysePlan folds the tables into a left-deep nested-loop tree; each join
// node sums the costs of its children
func analysePlan(tables []*ParsedTable) *PlanNode {
	var plan *PlanNode
	for _, t := range tables {
		scan := &PlanNode{
			NodeType:     "Seq Scan",
			RelationName: t.Name,
			Alias:        t.Alias,
			StartupCost:  millis(t.Stats.Startup),
			TotalCost:    millis(t.Stats.Total),
			PlanRows:     t.Stats.PlanRows,
			ActualRows:   t.Stats.ActualRows,
		}
		if plan == nil {
			plan = scan
			continue
		}
		joinType := "Inner"
		if !t.Inner {
			joinType = "Left"
		}
		plan = &PlanNode{
			NodeType:    "Nested Loop",
			JoinType:    joinType,
			StartupCost: plan.StartupCost + scan.StartupCost,
			TotalCost:   plan.TotalCost + scan.TotalCost,
			PlanRows:    t.Stats.PlanRows,
			ActualRows:  t.Stats.ActualRows,
			Plans:       []*PlanNode{plan, scan},
		}
	}
	if plan == nil {
		plan = &PlanNode{NodeType: "Result", PlanRows: 1, ActualRows: 1}
	}
	return plan
}

// explainAST renders the parsed statement as indented JSON
func explainAST(stmt *Statement) (*Result, error) {
	b, err := json.MarshalIndent(astValue(stmt), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("explain: %w", err)
	}
	return &Result{Headers: []string{"AST"}, Rows: [][]interface{}{{string(b)}}}, nil
}

// astValue converts a node into plain maps and slices for JSON encoding
func astValue(n Node) interface{} {
	if n == nil {
		return nil
	}
	m := n.Meta()
	out := map[string]interface{}{"kind": n.Kind().String()}
	if m.Source != "" {
		out["source"] = m.Source
	}
	if m.Alias != "" {
		out["alias"] = m.Alias
	}
	if len(m.Headers) > 0 {
		out["headers"] = m.Headers
	}
	if m.Desc {
		out["desc"] = true
	}
	switch m.Nulls {
	case NullsFirst:
		out["nulls"] = "FIRST"
	case NullsLast:
		out["nulls"] = "LAST"
	}

	nodes := func(list []Node) []interface{} {
		items := make([]interface{}, len(list))
		for i, c := range list {
			items[i] = astValue(c)
		}
		return items
	}

	switch v := n.(type) {
	case *Statement:
		clauses := make([]interface{}, len(v.Clauses))
		for i, c := range v.Clauses {
			clauses[i] = astValue(c)
		}
		out["children"] = clauses
	case *Clause:
		out["id"] = v.ID
		if len(v.Children) > 0 {
			out["children"] = nodes(v.Children)
		}
		if v.Distinct {
			out["distinct"] = true
		}
		if v.Modifier != "" {
			out["modifier"] = v.Modifier
		}
		if len(v.Windows) > 0 {
			windows := make([]interface{}, len(v.Windows))
			for i, w := range v.Windows {
				windows[i] = windowValue(w)
			}
			out["windows"] = windows
		}
	case *FunctionCall:
		out["id"] = v.Name
		out["children"] = nodes(v.Args)
		if v.Distinct {
			out["distinct"] = true
		}
		if v.Filter != nil {
			out["filter"] = astValue(v.Filter)
		}
		if len(v.Order) > 0 {
			out["order"] = nodes(v.Order)
		}
		if v.Window != nil {
			out["window"] = windowValue(v.Window)
		}
	case *Symbol:
		out["id"] = v.Name
	case *StringLit:
		out["id"] = v.Value
	case *NumberLit:
		out["id"] = v.Value
	case *ConstantLit:
		out["id"] = v.Name
	case *Parameter:
		out["id"] = v.Name
	case *Operator:
		out["id"] = v.Op
		out["children"] = nodes(v.Operands)
	case *List:
		out["children"] = nodes(v.Items)
	case *CompoundQuery:
		out["id"] = v.Op
		out["children"] = []interface{}{astValue(v.Left), astValue(v.Right)}
	case *TableRef:
		out["children"] = []interface{}{astValue(v.Source)}
		if v.Predicate != nil {
			out["predicate"] = astValue(v.Predicate)
		}
		if v.Using != "" {
			out["using"] = v.Using
		}
		out["inner"] = !v.Left
	}
	return out
}

func windowValue(w *WindowSpec) map[string]interface{} {
	out := map[string]interface{}{}
	if w.Name != "" {
		out["name"] = w.Name
	}
	if w.Base != "" {
		out["base"] = w.Base
	}
	if len(w.PartitionBy) > 0 {
		parts := make([]interface{}, len(w.PartitionBy))
		for i, p := range w.PartitionBy {
			parts[i] = astValue(p)
		}
		out["partitionBy"] = parts
	}
	if len(w.OrderBy) > 0 {
		order := make([]interface{}, len(w.OrderBy))
		for i, o := range w.OrderBy {
			order[i] = astValue(o)
		}
		out["orderBy"] = order
	}
	if f := w.Frame; f != nil {
		out["frame"] = map[string]interface{}{
			"unit":  f.Unit,
			"start": map[string]interface{}{"type": int(f.Start.Type), "offset": f.Start.Offset},
			"end":   map[string]interface{}{"type": int(f.End.Type), "offset": f.End.Offset},
		}
	}
	return out
}
