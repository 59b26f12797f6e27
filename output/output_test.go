package output

import (
	"bytes"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() [][]interface{} {
	return [][]interface{}{
		{"id", "name", "score", "ok", "note"},
		{1.0, "ann", 2.5, true, nil},
		{2.0, "=SUM(A1)", nil, false, "x,y"},
	}
}

func golden(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestCSVFormatter_Format(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewCSVFormatter(&buf).Format(sample()))
	golden(t).Assert(t, "csv", buf.Bytes())
}

func TestJSONFormatter_Format(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONFormatter(&buf).Format(sample()))
	golden(t).Assert(t, "json", buf.Bytes())
}

func TestTableFormatter_Format(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewTableFormatter(&buf).Format(sample()))

	out := buf.String()
	assert.Contains(t, out, "name")
	assert.Contains(t, out, "=SUM(A1)")
	assert.Contains(t, out, NullText)
	assert.Contains(t, out, "2.5")
}

func TestFormatters_EmptyTable(t *testing.T) {
	for _, name := range Formats {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			f, err := New(name, &buf)
			require.NoError(t, err)
			require.NoError(t, f.Format(nil))
			assert.Empty(t, buf.String())
		})
	}
}

func TestFormatters_HeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewCSVFormatter(&buf).Format([][]interface{}{{"a", "b"}}))
	assert.Equal(t, "a,b\n", buf.String())

	buf.Reset()
	require.NoError(t, NewJSONFormatter(&buf).Format([][]interface{}{{"a", "b"}}))
	assert.Empty(t, buf.String())
}

func TestNew_UnknownFormat(t *testing.T) {
	_, err := New("xml", &bytes.Buffer{})
	assert.ErrorContains(t, err, `unknown output format "xml"`)
}

func TestSetOutput(t *testing.T) {
	var first, second bytes.Buffer
	f := NewCSVFormatter(&first)
	f.SetOutput(&second)
	require.NoError(t, f.Format(sample()))
	assert.Empty(t, first.String())
	assert.NotEmpty(t, second.String())
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		want string
	}{
		{"null", nil, ""},
		{"integral float", 1e6, "1000000"},
		{"fraction", 0.25, "0.25"},
		{"negative", -3.0, "-3"},
		{"int64", int64(42), "42"},
		{"bool", false, "false"},
		{"time", time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), "2024-03-01T12:00:00Z"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatValue(tt.in))
		})
	}
}

func TestCSVValue_FormulaInjection(t *testing.T) {
	assert.Equal(t, "'=1+1", csvValue("=1+1"))
	assert.Equal(t, "'-x''y", csvValue("-x'y"))
	assert.Equal(t, "plain", csvValue("plain"))
	assert.Equal(t, "", csvValue(""))
}
