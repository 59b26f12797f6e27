package query

import "context"

// Provider supplies the records of a table. Records are usually
// map[string]interface{} but any value is accepted; nested maps and slices
// are what join discovery walks.
type Provider interface {
	PrimaryTable(ctx context.Context, table *ParsedTable) ([]interface{}, error)
}

// ProviderFunc adapts a function to the Provider interface
type ProviderFunc func(ctx context.Context, table *ParsedTable) ([]interface{}, error)

// PrimaryTable calls f
func (f ProviderFunc) PrimaryTable(ctx context.Context, table *ParsedTable) ([]interface{}, error) {
	return f(ctx, table)
}

// JoinHooks lets a provider take part in joining its tables. BeforeJoin may
// attach side data to rows with SetSide and mark the table's Join as
// JoinProvided, or set a Predicate, before auto-join discovery runs.
type JoinHooks interface {
	BeforeJoin(ctx context.Context, table *ParsedTable, rows []*ResultRow) error
	AfterJoin(ctx context.Context, table *ParsedTable, rows []*ResultRow) error
}

// ColumnInfo describes one column of a table
type ColumnInfo struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
}

// SchemaLister powers information_schema and wildcard column ordering
type SchemaLister interface {
	Tables(ctx context.Context) ([]string, error)
	Columns(ctx context.Context, table string) ([]ColumnInfo, error)
}

// DuplicatePolicy selects what an insert does when a key already exists
type DuplicatePolicy int

const (
	DuplicateError DuplicatePolicy = iota
	DuplicateIgnore
	DuplicateUpdate
)

func (d DuplicatePolicy) String() string {
	switch d {
	case DuplicateIgnore:
		return "ignore"
	case DuplicateUpdate:
		return "update"
	}
	return "error"
}

// RowPredicate selects records for UPDATE and DELETE
type RowPredicate func(record map[string]interface{}) (bool, error)

// RowMutator returns the updated copy of a record
type RowMutator func(record map[string]interface{}) (map[string]interface{}, error)

// InsertOptions controls duplicate handling for inserts. Update is applied to
// the existing record when OnDuplicate is DuplicateUpdate.
type InsertOptions struct {
	OnDuplicate DuplicatePolicy
	Update      RowMutator
}

// TableCreator powers CREATE TABLE
type TableCreator interface {
	CreateTable(ctx context.Context, name string, columns []ColumnInfo, ifNotExists bool) error
}

// TableInserter powers INSERT
type TableInserter interface {
	InsertIntoTable(ctx context.Context, name string, records []map[string]interface{}, opts InsertOptions) (int, error)
}

// TableUpdater powers UPDATE
type TableUpdater interface {
	UpdateTable(ctx context.Context, name string, mutate RowMutator, where RowPredicate) (int, error)
}

// TableDeleter powers DELETE
type TableDeleter interface {
	DeleteFromTable(ctx context.Context, name string, where RowPredicate) (int, error)
}

// TableDropper powers DROP TABLE
type TableDropper interface {
	DropTable(ctx context.Context, name string, ifExists bool) error
}
