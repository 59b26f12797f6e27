package reader

import (
	"fmt"

	"github.com/parquet-go/parquet-go"

	"github.com/vegasq/objql/query"
)

// SchemaInfo describes one top-level column of a parquet file.
type SchemaInfo struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	PhysicalType string `json:"physical_type"`
	Optional     bool   `json:"optional"`
	Repeated     bool   `json:"repeated"`
}

// ColumnInfo converts s into the engine's column description
func (s SchemaInfo) ColumnInfo() query.ColumnInfo {
	return query.ColumnInfo{Name: s.Name, Type: s.Type}
}

// ExtractSchemaInfo reads the schema of the parquet file at path.
//
// Nested groups are reported as single STRUCT columns since the engine
// reaches into them through path expressions rather than flattened names.
func ExtractSchemaInfo(path string) ([]SchemaInfo, error) {
	r, err := NewReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer func() { _ = r.Close() }()
	return schemaInfos(r.Schema()), nil
}

func schemaInfos(schema *parquet.Schema) []SchemaInfo {
	fields := schema.Fields()
	infos := make([]SchemaInfo, 0, len(fields))
	for _, f := range fields {
		infos = append(infos, SchemaInfo{
			Name:         f.Name(),
			Type:         columnType(f),
			PhysicalType: physicalType(f),
			Optional:     f.Optional(),
			Repeated:     f.Repeated(),
		})
	}
	return infos
}

// columnType maps a parquet field to the SQL-ish type name shown by
// information_schema.columns
func columnType(f parquet.Field) string {
	if f.Repeated() {
		return "LIST"
	}
	if f.Leaf() {
		return leafType(f.Type())
	}
	if lt := f.Type().LogicalType(); lt != nil {
		switch {
		case lt.List != nil:
			return "LIST"
		case lt.Map != nil:
			return "MAP"
		}
	}
	return "STRUCT"
}

func leafType(t parquet.Type) string {
	if lt := t.LogicalType(); lt != nil {
		switch {
		case lt.UTF8 != nil, lt.Enum != nil:
			return "STRING"
		case lt.UUID != nil:
			return "UUID"
		case lt.Json != nil:
			return "JSON"
		case lt.Date != nil:
			return "DATE"
		case lt.Time != nil:
			return "TIME"
		case lt.Timestamp != nil:
			return "TIMESTAMP"
		case lt.Decimal != nil:
			return "DECIMAL"
		}
	}

	switch t.Kind() {
	case parquet.Boolean:
		return "BOOLEAN"
	case parquet.Int32:
		return "INTEGER"
	case parquet.Int64:
		return "BIGINT"
	case parquet.Int96:
		return "TIMESTAMP"
	case parquet.Float:
		return "FLOAT"
	case parquet.Double:
		return "DOUBLE"
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return "BLOB"
	}
	return "UNKNOWN"
}

func physicalType(f parquet.Field) string {
	if !f.Leaf() {
		return "GROUP"
	}
	switch f.Type().Kind() {
	case parquet.Boolean:
		return "BOOLEAN"
	case parquet.Int32:
		return "INT32"
	case parquet.Int64:
		return "INT64"
	case parquet.Int96:
		return "INT96"
	case parquet.Float:
		return "FLOAT"
	case parquet.Double:
		return "DOUBLE"
	case parquet.ByteArray:
		return "BYTE_ARRAY"
	case parquet.FixedLenByteArray:
		return "FIXED_LEN_BYTE_ARRAY"
	}
	return "UNKNOWN"
}
