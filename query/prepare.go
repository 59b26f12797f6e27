package query

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// JoinStrategy is how a table's rows were attached to the rows before it
type JoinStrategy string

const (
	JoinPrimary  JoinStrategy = "primary"
	JoinPath     JoinStrategy = "path"
	JoinPlural   JoinStrategy = "plural"
	JoinCross    JoinStrategy = "cross"
	JoinProvided JoinStrategy = "provided"
)

// Join is a resolved join: for path joins, the nested property Path of the
// records contributed by table From
type Join struct {
	Strategy JoinStrategy
	From     TableID
	FromName string
	Path     string
}

func (j *Join) String() string {
	if j == nil {
		return ""
	}
	switch j.Strategy {
	case JoinPath, JoinPlural:
		return j.FromName + "." + j.Path
	}
	return string(j.Strategy)
}

// TableStats records a table's fetch and join cost for EXPLAIN
type TableStats struct {
	Startup    time.Duration
	Total      time.Duration
	PlanRows   int
	ActualRows int
}

// ParsedTable is one resolved FROM-list entry
type ParsedTable struct {
	ID     TableID
	Name   string
	Schema string
	// Alias is unique within the statement
	Alias string
	// Headers renames the table's columns in order
	Headers []string
	// Columns is the known column order, when the source reports one
	Columns   []string
	Join      *Join
	Predicate Node
	Using     string
	Inner     bool
	// Params are the evaluated arguments of a table-valued function
	Params   []interface{}
	Function *FunctionCall
	Subquery Node
	Stats    TableStats

	records []interface{}
	loaded  bool
}

// QueryObject is a statement's clauses keyed by lower-cased clause id
type QueryObject struct {
	Statement *Statement
	clauses   map[string]*Clause
}

// Clause returns the clause with the given (case-insensitive) id, or nil
func (q *QueryObject) Clause(id string) *Clause {
	return q.clauses[strings.ToLower(id)]
}

// Children returns the children of a clause, or nil when it is absent
func (q *QueryObject) Children(id string) []Node {
	if c := q.Clause(id); c != nil {
		return c.Children
	}
	return nil
}

// first returns the single expression of a WHERE/HAVING/LIMIT/OFFSET clause
func (q *QueryObject) first(id string) Node {
	if children := q.Children(id); len(children) > 0 {
		return children[0]
	}
	return nil
}

var rowProducingClauses = []string{
	"from", "select", "values", "insert into", "update", "delete from",
	"create table", "create view", "drop table", "drop view",
}

// nodeToQueryObject flattens a statement's clauses into a map. It requires
// at least one row-producing or DDL/DML clause and defaults a missing SELECT
// list to a single wildcard.
func nodeToQueryObject(stmt *Statement) (*QueryObject, error) {
	q := &QueryObject{Statement: stmt, clauses: make(map[string]*Clause, len(stmt.Clauses))}
	for _, c := range stmt.Clauses {
		q.clauses[strings.ToLower(c.ID)] = c
	}

	found := false
	for _, id := range rowProducingClauses {
		if q.clauses[id] != nil {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrNoClauses, stmt.Source)
	}

	if q.clauses["select"] == nil {
		star := &Symbol{Name: "*"}
		star.Source = "*"
		q.clauses["select"] = &Clause{ID: "SELECT", Children: []Node{star}}
	}
	return q, nil
}

// nodesToTables converts FROM items into tables with fresh identities and
// statement-unique aliases
func (qc *QueryContext) nodesToTables(from []Node) ([]*ParsedTable, error) {
	tables := make([]*ParsedTable, 0, len(from))
	used := make(map[string]bool, len(from))

	for _, node := range from {
		ref, ok := node.(*TableRef)
		if !ok {
			return nil, fmt.Errorf("unexpected %s in FROM", node.Kind())
		}

		t := &ParsedTable{
			ID:        TableID(uuid.NewString()),
			Alias:     ref.Alias,
			Headers:   ref.Headers,
			Predicate: ref.Predicate,
			Using:     ref.Using,
			Inner:     !ref.Left,
		}

		switch src := ref.Source.(type) {
		case *Symbol:
			t.Schema, t.Name = qc.splitSchema(src.Name)
			if t.Alias == "" {
				t.Alias = t.Name
				if i := strings.LastIndex(t.Alias, "."); i >= 0 {
					t.Alias = t.Alias[i+1:]
				}
			}
		case *FunctionCall:
			t.Name = src.Name
			t.Function = src
			if t.Alias == "" {
				t.Alias = strings.ToLower(src.Name)
			}
		case *Statement, *CompoundQuery:
			qc.generated++
			t.Name = "SUBQUERY_" + strconv.Itoa(qc.generated)
			t.Subquery = src
			if t.Alias == "" {
				t.Alias = t.Name
			}
		default:
			return nil, fmt.Errorf("unexpected %s in FROM", ref.Source.Kind())
		}

		base := t.Alias
		for i := 1; used[strings.ToLower(t.Alias)]; i++ {
			t.Alias = base + "_" + strconv.Itoa(i)
		}
		used[strings.ToLower(t.Alias)] = true

		tables = append(tables, t)
	}

	return tables, nil
}

// splitSchema separates a schema prefix from a table name when the prefix
// names a registered provider or information_schema
func (qc *QueryContext) splitSchema(name string) (string, string) {
	i := strings.Index(name, ".")
	if i <= 0 {
		return "", name
	}
	schema := name[:i]
	if strings.EqualFold(schema, informationSchema) {
		return informationSchema, name[i+1:]
	}
	if _, ok := qc.engine.providers[schema]; ok {
		return schema, name[i+1:]
	}
	return "", name
}
