package reader

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/vegasq/objql/query"
)

const parquetExt = ".parquet"

// Provider serves the parquet files of a directory as tables. Table t is
// either the file <dir>/t.parquet or, when <dir>/t is a directory, every
// parquet file in it with rows tagged by a "_file" column.
type Provider struct {
	dir    string
	logger *slog.Logger
}

// ProviderOption configures a Provider
type ProviderOption func(*Provider)

// WithLogger sets the provider's logger
func WithLogger(l *slog.Logger) ProviderOption {
	return func(p *Provider) {
		p.logger = l
	}
}

// NewProvider serves the parquet files under dir
func NewProvider(dir string, opts ...ProviderOption) *Provider {
	p := &Provider{dir: dir, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Dir returns the directory tables are read from
func (p *Provider) Dir() string { return p.dir }

// PrimaryTable reads every row of the named table
func (p *Provider) PrimaryTable(ctx context.Context, table *query.ParsedTable) ([]interface{}, error) {
	start := time.Now()
	rows, err := p.read(ctx, table.Name)
	if err != nil {
		return nil, err
	}
	out := make([]interface{}, len(rows))
	for i, r := range rows {
		out[i] = r
	}
	p.logger.Debug("parquet table read", "table", table.Name, "rows", len(out), "duration", time.Since(start))
	return out, nil
}

func (p *Provider) read(ctx context.Context, name string) ([]map[string]interface{}, error) {
	file, glob, err := p.locate(name)
	if err != nil {
		return nil, err
	}
	if glob {
		return ReadMultipleFiles(ctx, file)
	}
	return ReadFile(ctx, file)
}

// locate resolves a table name to a file path, or to a glob over a
// directory's parquet files
func (p *Provider) locate(name string) (string, bool, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", false, fmt.Errorf("%w: %q", query.ErrUnknownTable, name)
	}
	file := filepath.Join(p.dir, name+parquetExt)
	if st, err := os.Stat(file); err == nil && st.Mode().IsRegular() {
		return file, false, nil
	}
	dir := filepath.Join(p.dir, name)
	if st, err := os.Stat(dir); err == nil && st.IsDir() {
		return filepath.Join(dir, "*"+parquetExt), true, nil
	}
	return "", false, fmt.Errorf("%w: %s", query.ErrUnknownTable, name)
}

// Tables lists the parquet files and parquet directories in the provider's
// directory
func (p *Provider) Tables(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", p.dir, err)
	}
	var tables []string
	for _, e := range entries {
		name := e.Name()
		switch {
		case e.IsDir():
			matches, _ := filepath.Glob(filepath.Join(p.dir, name, "*"+parquetExt))
			if len(matches) > 0 {
				tables = append(tables, name)
			}
		case strings.HasSuffix(name, parquetExt):
			tables = append(tables, strings.TrimSuffix(name, parquetExt))
		}
	}
	sort.Strings(tables)
	return tables, nil
}

// Columns reports a table's columns from its parquet schema. Directory
// tables use the first file's schema plus the "_file" column.
func (p *Provider) Columns(_ context.Context, table string) ([]query.ColumnInfo, error) {
	file, glob, err := p.locate(table)
	if err != nil {
		return nil, err
	}
	if glob {
		matches, err := filepath.Glob(file)
		if err != nil {
			return nil, fmt.Errorf("invalid glob pattern: %w", err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("%w: %s has no parquet files", query.ErrUnknownTable, table)
		}
		file = matches[0]
	}

	infos, err := ExtractSchemaInfo(file)
	if err != nil {
		return nil, err
	}
	columns := make([]query.ColumnInfo, 0, len(infos)+1)
	for _, info := range infos {
		columns = append(columns, info.ColumnInfo())
	}
	if glob {
		columns = append(columns, query.ColumnInfo{Name: FileColumn, Type: "STRING"})
	}
	return columns, nil
}
