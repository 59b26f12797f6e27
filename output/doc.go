// Package output renders query results.
//
// Every formatter consumes the shape returned by query.Engine.Query: a
// header row followed by data rows of scalar values.
//
// # Supported Formats
//
//   - table: an aligned text table (tablewriter), nulls shown as NULL
//   - csv: comma-separated values with a header row
//   - json: JSON Lines, one object per row with keys in column order
//
// # Basic Usage
//
//	rows, err := engine.Query(ctx, "FROM Test SELECT n", nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	formatter, err := output.New("csv", os.Stdout)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := formatter.Format(rows); err != nil {
//	    log.Fatal(err)
//	}
package output
