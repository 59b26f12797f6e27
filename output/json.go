package output

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// JSONFormatter outputs rows as JSON Lines: one object per row with keys in
// column order
type JSONFormatter struct {
	writer io.Writer
}

// NewJSONFormatter creates a new JSON Lines formatter
func NewJSONFormatter(w io.Writer) *JSONFormatter {
	return &JSONFormatter{writer: w}
}

// SetOutput sets the output writer
func (j *JSONFormatter) SetOutput(w io.Writer) {
	j.writer = w
}

// Format writes the table as JSON Lines
func (j *JSONFormatter) Format(table [][]interface{}) error {
	headers, rows := split(table)
	w := bufio.NewWriter(j.writer)
	for _, row := range rows {
		if err := w.WriteByte('{'); err != nil {
			return err
		}
		for i, h := range headers {
			if i > 0 {
				_ = w.WriteByte(',')
			}
			key, err := json.Marshal(h)
			if err != nil {
				return err
			}
			var v interface{}
			if i < len(row) {
				v = row[i]
			}
			if t, ok := v.(time.Time); ok {
				v = t.Format(time.RFC3339Nano)
			}
			val, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("column %s: %w", h, err)
			}
			_, _ = w.Write(key)
			_ = w.WriteByte(':')
			_, _ = w.Write(val)
		}
		if _, err := w.WriteString("}\n"); err != nil {
			return err
		}
	}
	return w.Flush()
}
