package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScalarFunctions(t *testing.T) {
	tests := []struct {
		fn      string
		args    []interface{}
		want    interface{}
		wantErr bool
	}{
		{fn: "UPPER", args: []interface{}{"HeLLo"}, want: "HELLO"},
		{fn: "LOWER", args: []interface{}{"HeLLo"}, want: "hello"},
		{fn: "CONCAT", args: []interface{}{"a", nil, 1.5}, want: "a1.5"},
		{fn: "SUBSTRING", args: []interface{}{"héllo", 2.0, 3.0}, want: "éll"},
		{fn: "SUBSTRING", args: []interface{}{"hello", 9.0}, want: ""},
		{fn: "LEFT", args: []interface{}{"hello", 2.0}, want: "he"},
		{fn: "RIGHT", args: []interface{}{"hello", 10.0}, want: "hello"},
		{fn: "LPAD", args: []interface{}{"7", 3.0, "0"}, want: "007"},
		{fn: "RPAD", args: []interface{}{"ab", 5.0, "xy"}, want: "abxyx"},
		{fn: "REPLACE", args: []interface{}{"a-b-c", "-", "+"}, want: "a+b+c"},
		{fn: "SPLIT", args: []interface{}{"a,b,c", ",", 2.0}, want: "b"},
		{fn: "SPLIT", args: []interface{}{"a,b", ","}, want: []interface{}{"a", "b"}},
		{fn: "REVERSE", args: []interface{}{"abc"}, want: "cba"},
		{fn: "STARTS_WITH", args: []interface{}{"parquet", "par"}, want: true},
		{fn: "REPEAT", args: []interface{}{"ab", 3.0}, want: "ababab"},
		{fn: "REPEAT", args: []interface{}{"ab", -1.0}, wantErr: true},
		{fn: "UPPER", args: []interface{}{nil}, wantErr: true},
		{fn: "ABS", args: []interface{}{-2.5}, want: 2.5},
		{fn: "ROUND", args: []interface{}{2.3456, 2.0}, want: 2.35},
		{fn: "FLOOR", args: []interface{}{-1.5}, want: -2.0},
		{fn: "MOD", args: []interface{}{7.0, 3.0}, want: 1.0},
		{fn: "MOD", args: []interface{}{7.0, 0.0}, wantErr: true},
		{fn: "GREATEST", args: []interface{}{1.0, nil, 4.0, 2.0}, want: 4.0},
		{fn: "LEAST", args: []interface{}{nil}, want: nil},
		{fn: "COALESCE", args: []interface{}{nil, "x", "y"}, want: "x"},
		{fn: "NULLIF", args: []interface{}{1.0, 1.0}, want: nil},
		{fn: "IF", args: []interface{}{false, "a", "b"}, want: "b"},
	}

	for _, tt := range tests {
		t.Run(tt.fn, func(t *testing.T) {
			fn, ok := GetGlobalRegistry().Get(tt.fn)
			require.True(t, ok, "%s is not registered", tt.fn)
			require.NoError(t, checkArity(fn, len(tt.args)))

			got, err := fn.Evaluate(tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFunctionNamesAreCaseInsensitive(t *testing.T) {
	fn, ok := GetGlobalRegistry().Get("upper")
	require.True(t, ok)
	assert.Equal(t, "UPPER", fn.Name())

	_, ok = GetGlobalRegistry().Get("no_such_function")
	assert.False(t, ok)
}

func TestCheckArity(t *testing.T) {
	fn, _ := GetGlobalRegistry().Get("SUBSTRING")
	assert.Error(t, checkArity(fn, 1))
	assert.NoError(t, checkArity(fn, 2))
	assert.NoError(t, checkArity(fn, 3))
	assert.Error(t, checkArity(fn, 4))
}

func TestCastValue(t *testing.T) {
	day := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		value    interface{}
		typeName string
		format   string
		want     interface{}
		wantErr  bool
	}{
		{"string to integer", "42.9", "INTEGER", "", 42.0, false},
		{"number to string", 1.5, "VARCHAR", "", "1.5", false},
		{"yes to boolean", "yes", "BOOLEAN", "", true, false},
		{"bad boolean", "maybe", "BOOL", "", nil, true},
		{"null stays null", nil, "INTEGER", "", nil, false},
		{"formatted date", "05/03/2024", "DATE", "DD/MM/YYYY", day, false},
		{"date to formatted string", day, "STRING", "YYYY-MM-DD", "2024-03-05", false},
		{"json text", `{"a": [1, 2]}`, "JSON", "", map[string]interface{}{"a": []interface{}{1.0, 2.0}}, false},
		{"unknown type", 1.0, "BLOB", "", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := castValue(tt.value, tt.typeName, tt.format)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
