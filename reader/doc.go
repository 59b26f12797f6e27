// Package reader exposes directories of Apache Parquet files to the query
// engine.
//
// # Provider
//
// A Provider serves each file <dir>/<name>.parquet as table <name>. A
// subdirectory holding parquet files is one table too; its rows carry a
// "_file" column naming the file they came from:
//
//	engine, err := query.NewEngine(ctx, query.WithProvider("", reader.NewProvider("data")))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	rows, err := engine.Query(ctx, "FROM events SELECT _file, COUNT(*) GROUP BY _file", nil)
//
// Provider implements query.SchemaLister, so its tables and their parquet
// schemas appear in information_schema.tables and information_schema.columns.
//
// # Reading Files Directly
//
//	r, err := reader.NewReader("data.parquet")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Close()
//
//	rows, err := r.ReadAll(ctx)
//
// ReadMultipleFiles reads every file matching a glob pattern, tagging rows
// with "_file".
package reader
