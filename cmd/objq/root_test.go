package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vegasq/objql/query"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	empty := filepath.Join(t.TempDir(), "objq.yaml")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	t.Setenv("OBJQ_CONFIG_FILE", empty)
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "objq", cmd.Use)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"query", "tables", "explain"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()
	data := cmd.PersistentFlags().Lookup("data")
	require.NotNil(t, data)
	assert.Equal(t, "d", data.Shorthand)

	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "f", format.Shorthand)
}

func TestQueryCommand(t *testing.T) {
	out, err := execute(t, "-f", "csv", "query", "FROM Test SELECT n WHERE n < 3 ORDER BY n")
	require.NoError(t, err)
	assert.Equal(t, "n\n0\n1\n2\n", out)
}

func TestQueryCommand_Params(t *testing.T) {
	out, err := execute(t, "-f", "csv", "-p", "min=7", "query", "FROM", "Test", "SELECT", "n", "WHERE", "n", ">", ":min", "ORDER", "BY", "n")
	require.NoError(t, err)
	assert.Equal(t, "n\n8\n9\n", out)

	_, err = execute(t, "-p", "broken", "query", "SELECT 1")
	assert.ErrorContains(t, err, "want name=value")
}

func TestQueryCommand_ParseError(t *testing.T) {
	_, err := execute(t, "query", "FROM Test SELECT n WHERE")
	require.Error(t, err)

	var perr *query.ParseError
	require.ErrorAs(t, err, &perr)

	var buf bytes.Buffer
	printError(&buf, err)
	assert.Contains(t, buf.String(), "Error: parse error at offset")
	assert.Contains(t, buf.String(), "FROM Test SELECT n WHERE\n")
	assert.Contains(t, buf.String(), "^")
}

func TestTablesCommand(t *testing.T) {
	out, err := execute(t, "-f", "csv", "tables")
	require.NoError(t, err)
	assert.Equal(t, "table_schema,table_name,table_type\nmain,Test,BASE TABLE\nmain,Users,BASE TABLE\n", out)

	out, err = execute(t, "-f", "csv", "tables", "Test")
	require.NoError(t, err)
	assert.Equal(t, "column_name,data_type\nn,INTEGER\nn2,INTEGER\nn3,INTEGER\n", out)
}

func TestDataDirectory(t *testing.T) {
	type event struct {
		ID   int64  `parquet:"id"`
		Kind string `parquet:"kind"`
	}
	dir := t.TempDir()
	require.NoError(t, parquet.WriteFile(filepath.Join(dir, "events.parquet"), []event{
		{1, "click"}, {2, "view"}, {3, "click"},
	}))

	out, err := execute(t, "-d", dir, "-f", "csv", "query",
		"FROM events SELECT kind, COUNT(*) AS c GROUP BY kind ORDER BY kind")
	require.NoError(t, err)
	assert.Equal(t, "kind,c\nclick,2\nview,1\n", out)

	out, err = execute(t, "-d", dir, "-f", "csv", "query", "FROM demo.Test SELECT COUNT(*) AS c")
	require.NoError(t, err)
	assert.Equal(t, "c\n10\n", out)
}

func TestExplainCommand(t *testing.T) {
	out, err := execute(t, "-f", "json", "explain", "--ast", "FROM Test SELECT n")
	require.NoError(t, err)
	assert.Contains(t, out, `"AST"`)

	_, err = execute(t, "explain", "--ast", "--analyse", "FROM Test SELECT n")
	assert.ErrorContains(t, err, "cannot be used together")
}

func TestViewsFlag(t *testing.T) {
	views := filepath.Join(t.TempDir(), "views.yaml")
	_, err := execute(t, "--views", views, "query", "CREATE VIEW small AS FROM Test SELECT n WHERE n < 2")
	require.NoError(t, err)

	_, err = os.Stat(views)
	require.NoError(t, err)

	out, err := execute(t, "--views", views, "-f", "csv", "query", "FROM small SELECT n ORDER BY n")
	require.NoError(t, err)
	assert.Equal(t, "n\n0\n1\n", out)
}

func TestParamValue(t *testing.T) {
	assert.Equal(t, 5.0, paramValue("5"))
	assert.Equal(t, true, paramValue("true"))
	assert.Equal(t, "abc", paramValue("abc"))
}

func TestQuote(t *testing.T) {
	assert.Equal(t, `'it''s'`, quote("it's"))
}
