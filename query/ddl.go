package query

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// affected is the single-column result of DDL and DML statements
func affected(n int) *Result {
	return &Result{Headers: []string{"affected"}, Rows: [][]interface{}{{float64(n)}}}
}

// executeDDL runs a CREATE, DROP, INSERT, UPDATE or DELETE statement. ok is
// false when the statement is a plain query.
func (qc *QueryContext) executeDDL(q *QueryObject) (*Result, bool, error) {
	var (
		n   int
		err error
	)
	switch {
	case q.Clause("create table") != nil:
		err = qc.createTable(q.Clause("create table"))
	case q.Clause("drop table") != nil:
		err = qc.dropTable(q.Clause("drop table"))
	case q.Clause("create view") != nil:
		err = qc.createView(q.Clause("create view"))
	case q.Clause("drop view") != nil:
		c := q.Clause("drop view")
		err = qc.engine.catalog.DropView(qc.ctx, clauseTable(c), c.Modifier == "IF EXISTS")
	case q.Clause("insert into") != nil:
		n, err = qc.insert(q.Clause("insert into"))
	case q.Clause("update") != nil:
		n, err = qc.update(q)
	case q.Clause("delete from") != nil:
		n, err = qc.deleteFrom(q)
	default:
		return nil, false, nil
	}
	if err != nil {
		return nil, true, err
	}
	return affected(n), true, nil
}

// clauseTable returns the table name a DDL/DML clause starts with
func clauseTable(c *Clause) string {
	if len(c.Children) > 0 {
		if sym, ok := c.Children[0].(*Symbol); ok {
			return sym.Name
		}
	}
	return ""
}

// ddlProvider resolves the provider and bare table name for a DDL target
func (qc *QueryContext) ddlProvider(name string) (Provider, string, string, error) {
	schema, table := qc.splitSchema(name)
	if schema == informationSchema {
		return nil, "", "", &CapabilityError{Provider: schema, Op: "modification"}
	}
	p, ok := qc.engine.providers[schema]
	if !ok {
		return nil, "", "", fmt.Errorf("%w for table %s", ErrNoProvider, name)
	}
	return p, schema, table, nil
}

func (qc *QueryContext) createTable(c *Clause) error {
	p, schema, table, err := qc.ddlProvider(clauseTable(c))
	if err != nil {
		return err
	}
	creator, ok := p.(TableCreator)
	if !ok {
		return &CapabilityError{Provider: schema, Op: "CREATE TABLE"}
	}
	var columns []ColumnInfo
	for _, n := range c.Children[1:] {
		if sym, ok := n.(*Symbol); ok {
			columns = append(columns, ColumnInfo{Name: sym.Name, Type: sym.Alias})
		}
	}
	return creator.CreateTable(qc.ctx, table, columns, c.Modifier == "IF NOT EXISTS")
}

func (qc *QueryContext) dropTable(c *Clause) error {
	p, schema, table, err := qc.ddlProvider(clauseTable(c))
	if err != nil {
		return err
	}
	dropper, ok := p.(TableDropper)
	if !ok {
		return &CapabilityError{Provider: schema, Op: "DROP TABLE"}
	}
	return dropper.DropTable(qc.ctx, table, c.Modifier == "IF EXISTS")
}

func (qc *QueryContext) createView(c *Clause) error {
	if len(c.Children) < 2 {
		return fmt.Errorf("CREATE VIEW requires a name and a query")
	}
	name := clauseTable(c)
	def := c.Children[1]
	return qc.engine.catalog.CreateView(qc.ctx, name, def.Meta().Source, def)
}

// insert runs INSERT INTO name [(cols)] query. Without a column list the
// source query's headers name the inserted columns.
func (qc *QueryContext) insert(c *Clause) (int, error) {
	if len(c.Children) < 2 {
		return 0, fmt.Errorf("INSERT requires a target and a source")
	}
	target := c.Children[0].(*Symbol)
	p, schema, table, err := qc.ddlProvider(target.Name)
	if err != nil {
		return 0, err
	}
	inserter, ok := p.(TableInserter)
	if !ok {
		return 0, &CapabilityError{Provider: schema, Op: "INSERT"}
	}

	child, err := qc.child(nil)
	if err != nil {
		return 0, err
	}
	src, err := child.execute(c.Children[1])
	if err != nil {
		return 0, fmt.Errorf("INSERT source: %w", err)
	}

	columns := src.Headers
	if len(target.Headers) > 0 {
		if len(target.Headers) != len(src.Headers) {
			return 0, fmt.Errorf("INSERT has %d columns but the source yields %d", len(target.Headers), len(src.Headers))
		}
		columns = target.Headers
	}
	records := make([]map[string]interface{}, len(src.Rows))
	for i, row := range src.Rows {
		rec := make(map[string]interface{}, len(columns))
		for j, col := range columns {
			rec[col] = outputValue(row[j])
		}
		records[i] = rec
	}

	opts := InsertOptions{}
	switch c.Modifier {
	case "IGNORE":
		opts.OnDuplicate = DuplicateIgnore
	case "UPDATE":
		opts.OnDuplicate = DuplicateUpdate
		scope := qc.recordScope(table)
		opts.Update = scope.mutator(c.Children[2:])
	}
	return inserter.InsertIntoTable(qc.ctx, table, records, opts)
}

func (qc *QueryContext) update(q *QueryObject) (int, error) {
	p, schema, table, err := qc.ddlProvider(clauseTable(q.Clause("update")))
	if err != nil {
		return 0, err
	}
	updater, ok := p.(TableUpdater)
	if !ok {
		return 0, &CapabilityError{Provider: schema, Op: "UPDATE"}
	}
	assignments := q.Children("set")
	if len(assignments) == 0 {
		return 0, fmt.Errorf("UPDATE requires a SET clause")
	}
	scope := qc.recordScope(table)
	return updater.UpdateTable(qc.ctx, table, scope.mutator(assignments), scope.predicate(q.first("where")))
}

func (qc *QueryContext) deleteFrom(q *QueryObject) (int, error) {
	p, schema, table, err := qc.ddlProvider(clauseTable(q.Clause("delete from")))
	if err != nil {
		return 0, err
	}
	deleter, ok := p.(TableDeleter)
	if !ok {
		return 0, &CapabilityError{Provider: schema, Op: "DELETE"}
	}
	scope := qc.recordScope(table)
	return deleter.DeleteFromTable(qc.ctx, table, scope.predicate(q.first("where")))
}

// recordScope evaluates expressions against single records of one table,
// for WHERE and SET of UPDATE and DELETE
type recordScope struct {
	qc    *QueryContext
	table *ParsedTable
}

func (qc *QueryContext) recordScope(name string) *recordScope {
	alias := name
	if i := strings.LastIndex(alias, "."); i >= 0 {
		alias = alias[i+1:]
	}
	c := qc.constantContext()
	t := &ParsedTable{ID: TableID(uuid.NewString()), Name: name, Alias: alias, Inner: true}
	c.Tables = []*ParsedTable{t}
	return &recordScope{qc: c, table: t}
}

func (s *recordScope) evaluate(record map[string]interface{}, node Node) (interface{}, error) {
	r := NewResultRow("0")
	r.side[s.table.ID] = normalizeValue(record)
	return s.qc.evaluate(r, node, []*ResultRow{r})
}

// predicate returns a RowPredicate for where; nil matches every record.
// Records lacking a referenced column do not match.
func (s *recordScope) predicate(where Node) RowPredicate {
	if where == nil {
		return nil
	}
	return func(record map[string]interface{}) (bool, error) {
		v, err := s.evaluate(record, where)
		if err != nil {
			if IsSymbolError(err) {
				return false, nil
			}
			return false, err
		}
		return truthy(v), nil
	}
}

// mutator returns a RowMutator applying col = expr assignments. Every
// expression sees the record as it was before the update.
func (s *recordScope) mutator(assignments []Node) RowMutator {
	return func(record map[string]interface{}) (map[string]interface{}, error) {
		out := make(map[string]interface{}, len(record)+len(assignments))
		for k, v := range record {
			out[k] = v
		}
		for _, a := range assignments {
			op, ok := a.(*Operator)
			if !ok || op.Op != "=" || len(op.Operands) != 2 {
				return nil, fmt.Errorf("invalid assignment %s", a.Meta().Source)
			}
			col, ok := op.Operands[0].(*Symbol)
			if !ok {
				return nil, fmt.Errorf("invalid assignment target %s", op.Operands[0].Meta().Source)
			}
			v, err := s.evaluate(record, op.Operands[1])
			if err != nil {
				return nil, fmt.Errorf("SET %s: %w", col.Name, err)
			}
			out[col.Name] = outputValue(v)
		}
		return out, nil
	}
}
