package query

import (
	"fmt"
	"sort"
	"strings"
)

const informationSchema = "information_schema"

// defaultSchemaName is how information_schema shows the unnamed provider
const defaultSchemaName = "main"

// informationSchema serves the information_schema tables: tables, columns,
// views and routines
func (qc *QueryContext) informationSchema(name string) ([]interface{}, []string, error) {
	switch strings.ToLower(name) {
	case "tables":
		return qc.schemaTables()
	case "columns":
		return qc.schemaColumns()
	case "views":
		return qc.schemaViews()
	case "routines":
		return qc.schemaRoutines()
	}
	return nil, nil, fmt.Errorf("%w: %s.%s", ErrUnknownTable, informationSchema, name)
}

// listers returns the providers that can list their tables, by schema name
func (qc *QueryContext) listers() ([]string, map[string]SchemaLister) {
	out := make(map[string]SchemaLister)
	var schemas []string
	for schema, p := range qc.engine.providers {
		if l, ok := p.(SchemaLister); ok {
			out[schema] = l
			schemas = append(schemas, schema)
		}
	}
	sort.Strings(schemas)
	return schemas, out
}

func schemaName(schema string) string {
	if schema == "" {
		return defaultSchemaName
	}
	return schema
}

func (qc *QueryContext) schemaTables() ([]interface{}, []string, error) {
	columns := []string{"table_schema", "table_name", "table_type"}
	var records []interface{}
	schemas, listers := qc.listers()
	for _, schema := range schemas {
		tables, err := listers[schema].Tables(qc.ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("list tables of %s: %w", schemaName(schema), err)
		}
		for _, t := range tables {
			records = append(records, map[string]interface{}{
				"table_schema": schemaName(schema),
				"table_name":   t,
				"table_type":   "BASE TABLE",
			})
		}
	}
	for _, v := range qc.engine.catalog.Views() {
		records = append(records, map[string]interface{}{
			"table_schema": defaultSchemaName,
			"table_name":   v.Name,
			"table_type":   "VIEW",
		})
	}
	return records, columns, nil
}

func (qc *QueryContext) schemaColumns() ([]interface{}, []string, error) {
	columns := []string{"table_schema", "table_name", "column_name", "ordinal_position", "data_type"}
	var records []interface{}
	schemas, listers := qc.listers()
	for _, schema := range schemas {
		l := listers[schema]
		tables, err := l.Tables(qc.ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("list tables of %s: %w", schemaName(schema), err)
		}
		for _, t := range tables {
			infos, err := l.Columns(qc.ctx, t)
			if err != nil {
				return nil, nil, fmt.Errorf("list columns of %s: %w", t, err)
			}
			for i, c := range infos {
				records = append(records, map[string]interface{}{
					"table_schema":     schemaName(schema),
					"table_name":       t,
					"column_name":      c.Name,
					"ordinal_position": float64(i + 1),
					"data_type":        c.Type,
				})
			}
		}
	}
	return records, columns, nil
}

func (qc *QueryContext) schemaViews() ([]interface{}, []string, error) {
	columns := []string{"table_schema", "table_name", "view_definition"}
	var records []interface{}
	for _, v := range qc.engine.catalog.Views() {
		records = append(records, map[string]interface{}{
			"table_schema":    defaultSchemaName,
			"table_name":      v.Name,
			"view_definition": v.Definition,
		})
	}
	return records, columns, nil
}

func (qc *QueryContext) schemaRoutines() ([]interface{}, []string, error) {
	columns := []string{"routine_name", "routine_type"}
	var records []interface{}
	add := func(names []string, kind string) {
		for _, n := range names {
			records = append(records, map[string]interface{}{"routine_name": n, "routine_type": kind})
		}
	}
	e := qc.engine
	add(e.functions.Names(), "FUNCTION")
	add(e.aggregates.Names(), "AGGREGATE")
	add(e.windowFuncs.Names(), "WINDOW")
	add(e.tables.Names(), "TABLE")
	return records, columns, nil
}
