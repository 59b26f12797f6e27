package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewTablesCommand creates the tables command.
func NewTablesCommand(rootOpts *RootOptions) *cobra.Command {
	var schema string

	cmd := &cobra.Command{
		Use:   "tables [table]",
		Short: "List tables, or the columns of one table",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return rootOpts.run(cmd,
					"FROM information_schema.tables SELECT table_schema, table_name, table_type ORDER BY table_schema, table_name")
			}
			sql := fmt.Sprintf(
				"FROM information_schema.columns SELECT column_name, data_type WHERE table_schema = %s AND table_name = %s ORDER BY ordinal_position",
				quote(schema), quote(args[0]))
			return rootOpts.run(cmd, sql)
		},
	}

	cmd.Flags().StringVarP(&schema, "schema", "s", "main", "schema of the table")
	return cmd
}

// quote renders s as a string literal
func quote(s string) string {
	out := []byte{'\''}
	for i := 0; i < len(s); i++ {
		if s[i] == '\'' {
			out = append(out, '\'')
		}
		out = append(out, s[i])
	}
	return string(append(out, '\''))
}
