package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// CSVFormatter outputs rows as CSV with a header row
type CSVFormatter struct {
	writer io.Writer
}

// NewCSVFormatter creates a new CSV formatter
func NewCSVFormatter(w io.Writer) *CSVFormatter {
	return &CSVFormatter{writer: w}
}

// SetOutput sets the output writer
func (c *CSVFormatter) SetOutput(w io.Writer) {
	c.writer = w
}

// Format writes the table as CSV. An empty table writes nothing.
func (c *CSVFormatter) Format(table [][]interface{}) error {
	csvWriter := csv.NewWriter(c.writer)

	headers, rows := split(table)
	if headers != nil {
		if err := csvWriter.Write(headers); err != nil {
			return err
		}
	}
	for _, row := range rows {
		record := make([]string, len(headers))
		for i := range record {
			if i < len(row) {
				record[i] = csvValue(row[i])
			}
		}
		if err := csvWriter.Write(record); err != nil {
			return err
		}
	}

	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV writer: %w", err)
	}
	return nil
}

// csvValue formats a cell, prefixing strings that spreadsheet applications
// would run as formulas with a quote
func csvValue(v interface{}) string {
	s, ok := v.(string)
	if !ok || s == "" {
		return formatValue(v)
	}
	switch s[0] {
	case '=', '+', '-', '@', '\t', '\r', '\n', '|':
		return "'" + strings.ReplaceAll(s, "'", "''")
	}
	return s
}
