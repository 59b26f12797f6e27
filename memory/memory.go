// Package memory provides an in-memory table provider with the full set of
// DDL and DML hooks: CREATE TABLE, INSERT, UPDATE, DELETE and DROP TABLE.
//
// Records are map[string]interface{} values. The provider never changes a
// stored record in place: UPDATE and ON DUPLICATE KEY UPDATE replace it, so
// record maps handed to a running query stay stable.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/vegasq/objql/query"
)

// DefaultKey is the column duplicate inserts are detected on
const DefaultKey = "id"

// maxWriteAttempts bounds how often UPDATE and DELETE re-evaluate after a
// concurrent write changed the table under them
const maxWriteAttempts = 8

type table struct {
	name    string
	columns []query.ColumnInfo
	records []map[string]interface{}
	version uint64
}

// Provider is an in-memory table store. It is safe for concurrent use.
type Provider struct {
	mu     sync.RWMutex
	tables map[string]*table
	key    string
	logger *slog.Logger
}

// Option configures a Provider
type Option func(*Provider)

// WithKey sets the column duplicate inserts are detected on
func WithKey(column string) Option {
	return func(p *Provider) {
		p.key = column
	}
}

// WithLogger sets the provider's logger
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) {
		p.logger = l
	}
}

// New creates an empty provider
func New(opts ...Option) *Provider {
	p := &Provider{
		tables: make(map[string]*table),
		key:    DefaultKey,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AddTable creates or replaces a table with the given records. Columns, when
// given, fix the table's column order; otherwise it is inferred.
func (p *Provider) AddTable(name string, records []map[string]interface{}, columns ...query.ColumnInfo) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tables[name] = &table{name: name, columns: columns, records: records}
}

func (p *Provider) lookup(name string) (*table, error) {
	t, ok := p.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", query.ErrUnknownTable, name)
	}
	return t, nil
}

// snapshot returns a table's records and version under the read lock
func (p *Provider) snapshot(name string) ([]map[string]interface{}, uint64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	t, err := p.lookup(name)
	if err != nil {
		return nil, 0, err
	}
	return t.records, t.version, nil
}

// PrimaryTable returns the records of the named table
func (p *Provider) PrimaryTable(_ context.Context, t *query.ParsedTable) ([]interface{}, error) {
	records, _, err := p.snapshot(t.Name)
	if err != nil {
		return nil, err
	}
	out := make([]interface{}, len(records))
	for i, r := range records {
		out[i] = r
	}
	return out, nil
}

// Tables lists table names in order
func (p *Provider) Tables(_ context.Context) ([]string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.tables))
	for name := range p.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Columns returns the declared columns of a table, or the columns its
// records use, each typed after its first non-null value
func (p *Provider) Columns(_ context.Context, name string) ([]query.ColumnInfo, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	t, err := p.lookup(name)
	if err != nil {
		return nil, err
	}
	if len(t.columns) > 0 {
		return append([]query.ColumnInfo(nil), t.columns...), nil
	}

	var columns []query.ColumnInfo
	index := make(map[string]int)
	for _, rec := range t.records {
		keys := make([]string, 0, len(rec))
		for k := range rec {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			i, seen := index[k]
			if !seen {
				i = len(columns)
				index[k] = i
				columns = append(columns, query.ColumnInfo{Name: k})
			}
			if columns[i].Type == "" {
				columns[i].Type = typeName(rec[k])
			}
		}
	}
	return columns, nil
}

// CreateTable adds an empty table
func (p *Provider) CreateTable(_ context.Context, name string, columns []query.ColumnInfo, ifNotExists bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.tables[name]; exists {
		if ifNotExists {
			return nil
		}
		return fmt.Errorf("%w: %s", query.ErrTableExists, name)
	}
	p.tables[name] = &table{name: name, columns: columns}
	p.logger.Debug("table created", "table", name, "columns", len(columns))
	return nil
}

// DropTable removes a table
func (p *Provider) DropTable(_ context.Context, name string, ifExists bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.tables[name]; !exists {
		if ifExists {
			return nil
		}
		return fmt.Errorf("%w: %s", query.ErrUnknownTable, name)
	}
	delete(p.tables, name)
	p.logger.Debug("table dropped", "table", name)
	return nil
}

// InsertIntoTable appends records. A record whose key column matches an
// existing record is handled by opts.OnDuplicate. The insert is all or
// nothing: on error the table is unchanged.
func (p *Provider) InsertIntoTable(_ context.Context, name string, records []map[string]interface{}, opts query.InsertOptions) (int, error) {
	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		current, version, err := p.snapshot(name)
		if err != nil {
			return 0, err
		}
		columns := p.declared(name)

		next := append([]map[string]interface{}(nil), current...)
		keys := make(map[string]int, len(next))
		for i, rec := range next {
			if k, ok := p.keyOf(rec); ok {
				keys[k] = i
			}
		}

		affected := 0
		for _, rec := range records {
			rec = complete(rec, columns)
			k, hasKey := p.keyOf(rec)
			i, dup := keys[k]
			if !hasKey || !dup {
				if hasKey {
					keys[k] = len(next)
				}
				next = append(next, rec)
				affected++
				continue
			}

			switch opts.OnDuplicate {
			case query.DuplicateIgnore:
			case query.DuplicateUpdate:
				if opts.Update == nil {
					continue
				}
				updated, err := opts.Update(next[i])
				if err != nil {
					return 0, err
				}
				next[i] = updated
				affected++
			default:
				return 0, fmt.Errorf("%w: %s.%s = %v", query.ErrDuplicateKey, name, p.key, rec[p.key])
			}
		}

		if p.commit(name, version, next) {
			p.logger.Debug("rows inserted", "table", name, "affected", affected, "policy", opts.OnDuplicate.String())
			return affected, nil
		}
	}
	return 0, fmt.Errorf("insert into %s: table changed concurrently", name)
}

// declared returns a table's declared columns
func (p *Provider) declared(name string) []query.ColumnInfo {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if t, ok := p.tables[name]; ok {
		return t.columns
	}
	return nil
}

// UpdateTable replaces every record matching where with mutate's result.
// Predicates and mutators run outside the lock since they may query this
// provider; a concurrent write makes the update start over.
func (p *Provider) UpdateTable(_ context.Context, name string, mutate query.RowMutator, where query.RowPredicate) (int, error) {
	start := time.Now()
	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		records, version, err := p.snapshot(name)
		if err != nil {
			return 0, err
		}

		next := make([]map[string]interface{}, len(records))
		affected := 0
		for i, rec := range records {
			next[i] = rec
			ok, err := matches(where, rec)
			if err != nil {
				return 0, err
			}
			if !ok {
				continue
			}
			updated, err := mutate(rec)
			if err != nil {
				return 0, err
			}
			next[i] = updated
			affected++
		}

		if p.commit(name, version, next) {
			p.logger.Debug("rows updated", "table", name, "affected", affected, "duration", time.Since(start))
			return affected, nil
		}
	}
	return 0, fmt.Errorf("update %s: table changed concurrently", name)
}

// DeleteFromTable removes every record matching where
func (p *Provider) DeleteFromTable(_ context.Context, name string, where query.RowPredicate) (int, error) {
	start := time.Now()
	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		records, version, err := p.snapshot(name)
		if err != nil {
			return 0, err
		}

		next := make([]map[string]interface{}, 0, len(records))
		for _, rec := range records {
			ok, err := matches(where, rec)
			if err != nil {
				return 0, err
			}
			if !ok {
				next = append(next, rec)
			}
		}

		if p.commit(name, version, next) {
			affected := len(records) - len(next)
			p.logger.Debug("rows deleted", "table", name, "affected", affected, "duration", time.Since(start))
			return affected, nil
		}
	}
	return 0, fmt.Errorf("delete from %s: table changed concurrently", name)
}

// matches applies where to rec; a nil predicate matches every record
func matches(where query.RowPredicate, rec map[string]interface{}) (bool, error) {
	if where == nil {
		return true, nil
	}
	return where(rec)
}

// commit stores records if the table is still at version
func (p *Provider) commit(name string, version uint64, records []map[string]interface{}) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.tables[name]
	if !ok || t.version != version {
		return false
	}
	t.records = records
	t.version++
	return true
}

// complete fills declared columns missing from rec with null
func complete(rec map[string]interface{}, columns []query.ColumnInfo) map[string]interface{} {
	if len(columns) == 0 {
		return rec
	}
	out := make(map[string]interface{}, len(rec)+len(columns))
	for k, v := range rec {
		out[k] = v
	}
	for _, c := range columns {
		if _, ok := out[c.Name]; !ok {
			out[c.Name] = nil
		}
	}
	return out
}

// keyOf returns the comparable form of rec's key column
func (p *Provider) keyOf(rec map[string]interface{}) (string, bool) {
	v, ok := rec[p.key]
	if !ok || v == nil {
		return "", false
	}
	switch n := v.(type) {
	case int:
		return formatNumber(float64(n)), true
	case int32:
		return formatNumber(float64(n)), true
	case int64:
		return formatNumber(float64(n)), true
	case float32:
		return formatNumber(float64(n)), true
	case float64:
		return formatNumber(n), true
	case string:
		return "s:" + n, true
	}
	return fmt.Sprintf("%T:%v", v, v), true
}

func formatNumber(f float64) string {
	if math.IsNaN(f) {
		return "n:NaN"
	}
	return "n:" + strconv.FormatFloat(f, 'g', -1, 64)
}

func typeName(v interface{}) string {
	switch v.(type) {
	case nil:
		return ""
	case bool:
		return "BOOLEAN"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return "INTEGER"
	case float32, float64:
		return "DOUBLE"
	case string:
		return "STRING"
	case time.Time:
		return "TIMESTAMP"
	case []interface{}:
		return "LIST"
	case map[string]interface{}:
		return "STRUCT"
	}
	return "ANY"
}
