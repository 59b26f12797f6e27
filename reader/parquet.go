// Package reader serves Apache Parquet files as query tables.
//
// It uses the parquet-go library to read parquet files and returns rows as
// maps, the record shape the query engine joins and projects.
package reader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"
)

// FileColumn tags each row read from a multi-file table with its source path
const FileColumn = "_file"

// maxFiles bounds how many files one glob may expand to
const maxFiles = 1000

// cancelCheckInterval is how many rows are read between context checks
const cancelCheckInterval = 1024

// Reader reads parquet files and returns rows as maps.
//
// It maintains both an OS file handle and a parquet file handle to enable
// proper resource cleanup.
type Reader struct {
	file   *os.File
	pqFile *parquet.File
}

// NewReader opens path and validates it as a parquet file.
//
// Example:
//
//	r, err := NewReader("data.parquet")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Close()
func NewReader(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	stat, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	pqFile, err := parquet.OpenFile(file, stat.Size())
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}

	return &Reader{
		file:   file,
		pqFile: pqFile,
	}, nil
}

// NumRows returns the row count recorded in the file metadata
func (r *Reader) NumRows() int64 {
	return r.pqFile.NumRows()
}

// ReadAll reads every row into memory. Reading stops with ctx's error when
// ctx is cancelled.
func (r *Reader) ReadAll(ctx context.Context) ([]map[string]interface{}, error) {
	rows := make([]map[string]interface{}, 0, r.pqFile.NumRows())

	reader := parquet.NewReader(r.pqFile)
	defer func() { _ = reader.Close() }()

	for i := 0; ; i++ {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		row := make(map[string]interface{})
		if err := reader.Read(&row); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to read row %d: %w", i, err)
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// Schema returns the parquet file schema.
func (r *Reader) Schema() *parquet.Schema {
	return r.pqFile.Schema()
}

// Close releases the file handle. It is safe to call Close multiple times.
func (r *Reader) Close() error {
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// ReadFile reads all rows of a single parquet file
func ReadFile(ctx context.Context, path string) ([]map[string]interface{}, error) {
	r, err := NewReader(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()
	return r.ReadAll(ctx)
}

// ReadMultipleFiles reads all rows from the parquet files matching a glob
// pattern, in lexical path order.
//
// Each row is tagged with a "_file" column holding its source path. A
// pattern without wildcards reads the one file untagged. Returns an error if
// no files match or if any file fails to read.
func ReadMultipleFiles(ctx context.Context, pattern string) ([]map[string]interface{}, error) {
	if !strings.ContainsAny(pattern, "*?[") {
		return ReadFile(ctx, pattern)
	}

	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid glob pattern: %w", err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no files match pattern: %s", pattern)
	}
	if len(matches) > maxFiles {
		return nil, fmt.Errorf("glob pattern matched too many files (%d), maximum is %d", len(matches), maxFiles)
	}

	var all []map[string]interface{}
	for _, path := range matches {
		rows, err := ReadFile(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		for _, row := range rows {
			row[FileColumn] = path
		}
		all = append(all, rows...)
	}
	return all, nil
}
