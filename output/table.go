package output

import (
	"io"

	"github.com/olekukonko/tablewriter"
)

// NullText is how TableFormatter shows null
const NullText = "NULL"

// TableFormatter outputs rows as an aligned text table
type TableFormatter struct {
	writer io.Writer
}

// NewTableFormatter creates a new text table formatter
func NewTableFormatter(w io.Writer) *TableFormatter {
	return &TableFormatter{writer: w}
}

// SetOutput sets the output writer
func (f *TableFormatter) SetOutput(w io.Writer) {
	f.writer = w
}

// Format renders the table with a header and a border. Headers keep their
// case as written in the query.
func (f *TableFormatter) Format(table [][]interface{}) error {
	headers, rows := split(table)
	if headers == nil {
		return nil
	}

	tw := tablewriter.NewWriter(f.writer)
	tw.SetHeader(headers)
	tw.SetAutoFormatHeaders(false)
	tw.SetAutoWrapText(false)
	for _, row := range rows {
		record := make([]string, len(headers))
		for i := range record {
			switch {
			case i >= len(row), row[i] == nil:
				record[i] = NullText
			default:
				record[i] = formatValue(row[i])
			}
		}
		tw.Append(record)
	}
	tw.Render()
	return nil
}
