package query

// NodeKind identifies the variant of an AST node
type NodeKind int

const (
	KindStatement NodeKind = iota
	KindClause
	KindFunctionCall
	KindSymbol
	KindString
	KindNumber
	KindConstant
	KindParameter
	KindOperator
	KindList
	KindCompoundQuery
	KindTable
)

var nodeKindNames = [...]string{
	KindStatement:     "STATEMENT",
	KindClause:        "CLAUSE",
	KindFunctionCall:  "FUNCTION_CALL",
	KindSymbol:        "SYMBOL",
	KindString:        "STRING",
	KindNumber:        "NUMBER",
	KindConstant:      "CONSTANT",
	KindParameter:     "PARAMETER",
	KindOperator:      "OPERATOR",
	KindList:          "LIST",
	KindCompoundQuery: "COMPOUND_QUERY",
	KindTable:         "TABLE",
}

func (k NodeKind) String() string {
	if int(k) < len(nodeKindNames) {
		return nodeKindNames[k]
	}
	return "UNKNOWN"
}

// NullsOrder is the requested placement of nulls in an ordering term
type NullsOrder int

const (
	NullsDefault NullsOrder = iota
	NullsFirst
	NullsLast
)

// Node is a parsed query or expression. Nodes are immutable once parsing
// finishes and may be shared between concurrent executions.
type Node interface {
	Kind() NodeKind
	Meta() *NodeMeta
}

// NodeMeta holds the attributes every node variant may carry
type NodeMeta struct {
	// Source is the query text the node was parsed from
	Source string
	// Pos is the byte offset of Source within the query
	Pos int
	// Alias is the AS name of a projected column, table or CTE
	Alias string
	// Headers is a column rename list: name AS alias (a, b, c)
	Headers []string
	// Desc and Nulls are set on ORDER BY terms
	Desc  bool
	Nulls NullsOrder
}

// Meta returns the node's shared attributes
func (m *NodeMeta) Meta() *NodeMeta { return m }

// Statement is a single query made of keyword-led clauses
type Statement struct {
	NodeMeta
	Clauses []*Clause
}

func (*Statement) Kind() NodeKind { return KindStatement }

// Clause returns the clause with the given id, or nil
func (s *Statement) Clause(id string) *Clause {
	for _, c := range s.Clauses {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// Clause is one keyword-led part of a statement, e.g. WHERE or ORDER BY
type Clause struct {
	NodeMeta
	ID       string
	Children []Node
	// Distinct is set for SELECT DISTINCT
	Distinct bool
	// Modifier carries the clause option: ANALYSE or AST for EXPLAIN,
	// IF EXISTS / IF NOT EXISTS for DDL, IGNORE or UPDATE for INSERT
	Modifier string
	// Windows holds the named definitions of a WINDOW clause
	Windows []*WindowSpec
}

func (*Clause) Kind() NodeKind { return KindClause }

// FunctionCall is a scalar, aggregate or window function invocation.
// CASE and EXISTS are represented as calls as well.
type FunctionCall struct {
	NodeMeta
	Name     string
	Args     []Node
	Distinct bool
	// Filter is the FILTER (WHERE ...) predicate of an aggregate
	Filter Node
	// Order is the WITHIN GROUP (ORDER BY ...) list of an aggregate
	Order []Node
	// Window is the OVER clause, inline or by name
	Window *WindowSpec
}

func (*FunctionCall) Kind() NodeKind { return KindFunctionCall }

// Symbol is a column, alias or table reference, possibly dotted
type Symbol struct {
	NodeMeta
	Name string
}

func (*Symbol) Kind() NodeKind { return KindSymbol }

// StringLit is a quoted string literal
type StringLit struct {
	NodeMeta
	Value string
}

func (*StringLit) Kind() NodeKind { return KindString }

// NumberLit is a numeric literal
type NumberLit struct {
	NodeMeta
	Value float64
}

func (*NumberLit) Kind() NodeKind { return KindNumber }

// ConstantLit is one of TRUE, FALSE, NULL, NOW or PI
type ConstantLit struct {
	NodeMeta
	Name string
}

func (*ConstantLit) Kind() NodeKind { return KindConstant }

// Parameter is a bound :name parameter
type Parameter struct {
	NodeMeta
	Name string
}

func (*Parameter) Kind() NodeKind { return KindParameter }

// Operator applies Op to its operands. Unary operators have one operand,
// BETWEEN has three.
type Operator struct {
	NodeMeta
	Op       string
	Operands []Node
}

func (*Operator) Kind() NodeKind { return KindOperator }

// List is a parenthesized list of expressions or a VALUES row
type List struct {
	NodeMeta
	Items []Node
}

func (*List) Kind() NodeKind { return KindList }

// CompoundQuery combines two queries with UNION, UNION ALL, INTERSECT or EXCEPT
type CompoundQuery struct {
	NodeMeta
	Op    string
	Left  Node
	Right Node
}

func (*CompoundQuery) Kind() NodeKind { return KindCompoundQuery }

// TableRef is one FROM-list item
type TableRef struct {
	NodeMeta
	// Source is a *Symbol (table name), *FunctionCall (table-valued
	// function) or a nested query
	Source    Node
	Predicate Node
	Using     string
	Left      bool
}

func (*TableRef) Kind() NodeKind { return KindTable }

// FrameBoundType is the kind of a window frame edge
type FrameBoundType int

const (
	BoundUnboundedPreceding FrameBoundType = iota
	BoundPreceding
	BoundCurrentRow
	BoundFollowing
	BoundUnboundedFollowing
)

// FrameBound is one edge of a window frame
type FrameBound struct {
	Type   FrameBoundType
	Offset int
}

// WindowFrame restricts the rows a window function sees around the current row
type WindowFrame struct {
	// Unit is ROWS, RANGE or GROUPS
	Unit  string
	Start FrameBound
	End   FrameBound
}

// WindowSpec is an OVER clause or a WINDOW clause definition
type WindowSpec struct {
	// Name is set on WINDOW clause definitions
	Name string
	// Base references a named window this window extends
	Base        string
	PartitionBy []Node
	OrderBy     []Node
	Frame       *WindowFrame
}

// isQueryNode reports whether n is a statement or compound query
func isQueryNode(n Node) bool {
	switch n.(type) {
	case *Statement, *CompoundQuery:
		return true
	}
	return false
}

// walk calls fn for n and every node below it, stopping at nested queries
// unless descend is set. fn returning false prunes the subtree.
func walk(n Node, descend bool, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	switch v := n.(type) {
	case *Statement:
		if !descend {
			return
		}
		for _, c := range v.Clauses {
			walk(c, descend, fn)
		}
	case *CompoundQuery:
		if !descend {
			return
		}
		walk(v.Left, descend, fn)
		walk(v.Right, descend, fn)
	case *Clause:
		for _, c := range v.Children {
			walk(c, descend, fn)
		}
	case *FunctionCall:
		for _, a := range v.Args {
			walk(a, descend, fn)
		}
		walk(v.Filter, descend, fn)
		for _, o := range v.Order {
			walk(o, descend, fn)
		}
		if v.Window != nil {
			for _, p := range v.Window.PartitionBy {
				walk(p, descend, fn)
			}
			for _, o := range v.Window.OrderBy {
				walk(o, descend, fn)
			}
		}
	case *Operator:
		for _, o := range v.Operands {
			walk(o, descend, fn)
		}
	case *List:
		for _, i := range v.Items {
			walk(i, descend, fn)
		}
	case *TableRef:
		walk(v.Source, descend, fn)
		walk(v.Predicate, descend, fn)
	}
}
