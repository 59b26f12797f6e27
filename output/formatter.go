package output

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Formatter renders a query result. Table rows follow the shape returned by
// query.Engine.Query: the header row first, then the data rows.
type Formatter interface {
	// Format writes the table in the formatter's specific format
	Format(table [][]interface{}) error

	// SetOutput changes the output writer
	SetOutput(w io.Writer)
}

// Formats lists the names New accepts
var Formats = []string{"table", "csv", "json"}

// New returns the formatter registered under name
func New(name string, w io.Writer) (Formatter, error) {
	switch strings.ToLower(name) {
	case "table", "":
		return NewTableFormatter(w), nil
	case "csv":
		return NewCSVFormatter(w), nil
	case "json", "jsonl":
		return NewJSONFormatter(w), nil
	}
	return nil, fmt.Errorf("unknown output format %q (want one of %s)", name, strings.Join(Formats, ", "))
}

// split separates the header row from the data rows
func split(table [][]interface{}) ([]string, [][]interface{}) {
	if len(table) == 0 {
		return nil, nil
	}
	headers := make([]string, len(table[0]))
	for i, h := range table[0] {
		headers[i] = fmt.Sprint(h)
	}
	return headers, table[1:]
}

// formatValue converts a value to its text form; null is the empty string
func formatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", val)
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		return val.Format(time.RFC3339Nano)
	}
	return fmt.Sprintf("%v", v)
}
