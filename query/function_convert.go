package query

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// Type Conversion Functions

// formatLayout translates a SQL date format such as YYYY-MM-DD HH24:MI:SS
// into a Go time layout
var formatLayout = strings.NewReplacer(
	"YYYY", "2006",
	"YY", "06",
	"MONTH", "January",
	"MON", "Jan",
	"MM", "01",
	"DAY", "Monday",
	"DY", "Mon",
	"DD", "02",
	"HH24", "15",
	"HH12", "03",
	"HH", "15",
	"MI", "04",
	"SS", "05",
	"MS", ".000",
	"AM", "PM",
	"PM", "PM",
	"TZ", "MST",
)

// castValue converts value to the named type. format, when not empty, is a
// date format used for string/date conversion.
func castValue(value interface{}, typeName, format string) (interface{}, error) {
	value = normalizeValue(value)
	if isStrictNull(value) {
		return nil, nil
	}

	switch strings.ToUpper(typeName) {
	case "STRING", "TEXT", "VARCHAR", "CHAR", "NVARCHAR":
		if t, ok := value.(time.Time); ok && format != "" {
			return t.Format(formatLayout.Replace(strings.ToUpper(format))), nil
		}
		return toString(value), nil
	case "NUMBER", "FLOAT", "DOUBLE", "REAL", "DECIMAL", "NUMERIC":
		return valueToNumber(value)
	case "INT", "INTEGER", "BIGINT", "SMALLINT", "TINYINT":
		n, err := valueToNumber(value)
		if err != nil {
			return nil, err
		}
		return math.Trunc(n), nil
	case "BOOLEAN", "BOOL":
		if s, ok := value.(string); ok {
			switch strings.ToLower(strings.TrimSpace(s)) {
			case "true", "t", "yes", "y", "1":
				return true, nil
			case "false", "f", "no", "n", "0", "":
				return false, nil
			}
			return nil, fmt.Errorf("cannot convert %q to boolean", s)
		}
		return truthy(value), nil
	case "DATE", "DATETIME", "TIMESTAMP":
		var t time.Time
		if s, ok := value.(string); ok && format != "" {
			parsed, err := time.Parse(formatLayout.Replace(strings.ToUpper(format)), s)
			if err != nil {
				return nil, err
			}
			t = parsed
		} else {
			parsed, err := valueToTime(value)
			if err != nil {
				return nil, err
			}
			t = parsed
		}
		if strings.EqualFold(typeName, "DATE") {
			return startOfDay(t), nil
		}
		return t, nil
	case "JSON":
		if s, ok := value.(string); ok {
			return parseJSONValue(s)
		}
		return value, nil
	}
	return nil, fmt.Errorf("unknown type: %s", typeName)
}

// parseJSONValue decodes JSON text into engine values
func parseJSONValue(s string) (interface{}, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return normalizeJSON(v), nil
}

func normalizeJSON(v interface{}) interface{} {
	switch val := v.(type) {
	case json.Number:
		return normalizeValue(val)
	case []interface{}:
		for i := range val {
			val[i] = normalizeJSON(val[i])
		}
	case map[string]interface{}:
		for k := range val {
			val[k] = normalizeJSON(val[k])
		}
	}
	return v
}

// CastFunc converts a value to a specific type: CAST(value AS type [FORMAT fmt])
type CastFunc struct{}

func (f *CastFunc) Name() string  { return "CAST" }
func (f *CastFunc) MinArity() int { return 2 }
func (f *CastFunc) MaxArity() int { return 3 }
func (f *CastFunc) Evaluate(args []interface{}) (interface{}, error) {
	typeName, err := stringArg("CAST", args, 1, "type")
	if err != nil {
		return nil, err
	}
	format := ""
	if len(args) == 3 {
		if format, err = stringArg("CAST", args, 2, "format"); err != nil {
			return nil, err
		}
	}
	v, err := castValue(args[0], typeName, format)
	if err != nil {
		return nil, fmt.Errorf("CAST: %w", err)
	}
	return v, nil
}

// TryCastFunc converts a value to a specific type, returning null on error
type TryCastFunc struct{}

func (f *TryCastFunc) Name() string  { return "TRY_CAST" }
func (f *TryCastFunc) MinArity() int { return 2 }
func (f *TryCastFunc) MaxArity() int { return 2 }
func (f *TryCastFunc) Evaluate(args []interface{}) (interface{}, error) {
	typeName, err := valueToString(args[1])
	if err != nil {
		return nil, nil
	}
	v, err := castValue(args[0], typeName, "")
	if err != nil {
		return nil, nil
	}
	return v, nil
}

// ToStringFunc converts a value to a string
type ToStringFunc struct{}

func (f *ToStringFunc) Name() string  { return "TO_STRING" }
func (f *ToStringFunc) MinArity() int { return 1 }
func (f *ToStringFunc) MaxArity() int { return 1 }
func (f *ToStringFunc) Evaluate(args []interface{}) (interface{}, error) {
	if isStrictNull(args[0]) {
		return nil, nil
	}
	return toString(args[0]), nil
}

// ToNumberFunc converts a value to a number
type ToNumberFunc struct{}

func (f *ToNumberFunc) Name() string  { return "TO_NUMBER" }
func (f *ToNumberFunc) MinArity() int { return 1 }
func (f *ToNumberFunc) MaxArity() int { return 1 }
func (f *ToNumberFunc) Evaluate(args []interface{}) (interface{}, error) {
	return valueToNumber(args[0])
}

// ToDateFunc converts a value to a date, optionally parsing with a format
type ToDateFunc struct{}

func (f *ToDateFunc) Name() string  { return "TO_DATE" }
func (f *ToDateFunc) MinArity() int { return 1 }
func (f *ToDateFunc) MaxArity() int { return 2 }
func (f *ToDateFunc) Evaluate(args []interface{}) (interface{}, error) {
	format := ""
	if len(args) == 2 {
		var err error
		if format, err = stringArg("TO_DATE", args, 1, "format"); err != nil {
			return nil, err
		}
	}
	v, err := castValue(args[0], "DATE", format)
	if err != nil {
		return nil, fmt.Errorf("TO_DATE: %w", err)
	}
	return v, nil
}

// JSONFunc parses JSON text into a value that paths and joins can traverse
type JSONFunc struct{}

func (f *JSONFunc) Name() string  { return "JSON" }
func (f *JSONFunc) MinArity() int { return 1 }
func (f *JSONFunc) MaxArity() int { return 1 }
func (f *JSONFunc) Evaluate(args []interface{}) (interface{}, error) {
	v, err := castValue(args[0], "JSON", "")
	if err != nil {
		return nil, fmt.Errorf("JSON: %w", err)
	}
	return v, nil
}

// Conditional Functions

// CoalesceFunc returns its first non-null argument
type CoalesceFunc struct{}

func (f *CoalesceFunc) Name() string  { return "COALESCE" }
func (f *CoalesceFunc) MinArity() int { return 1 }
func (f *CoalesceFunc) MaxArity() int { return -1 }
func (f *CoalesceFunc) Evaluate(args []interface{}) (interface{}, error) {
	for _, arg := range args {
		if !isStrictNull(arg) {
			return arg, nil
		}
	}
	return nil, nil
}

// NullIfFunc returns null when both arguments are equal, else the first
type NullIfFunc struct{}

func (f *NullIfFunc) Name() string  { return "NULLIF" }
func (f *NullIfFunc) MinArity() int { return 2 }
func (f *NullIfFunc) MaxArity() int { return 2 }
func (f *NullIfFunc) Evaluate(args []interface{}) (interface{}, error) {
	if equalValues(args[0], args[1]) {
		return nil, nil
	}
	return args[0], nil
}

// IfFunc returns its second argument when the first is true, else the third
type IfFunc struct{}

func (f *IfFunc) Name() string  { return "IF" }
func (f *IfFunc) MinArity() int { return 2 }
func (f *IfFunc) MaxArity() int { return 3 }
func (f *IfFunc) Evaluate(args []interface{}) (interface{}, error) {
	if truthy(args[0]) {
		return args[1], nil
	}
	if len(args) == 3 {
		return args[2], nil
	}
	return nil, nil
}
