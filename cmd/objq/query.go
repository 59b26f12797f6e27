package main

import (
	"strings"

	"github.com/spf13/cobra"
)

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "query <sql>...",
		Short: "Run a query",
		Long: `Run a query and print its result.

Arguments are joined with spaces, so the query may be quoted or not.`,
		Example: `  objq query "FROM Test SELECT n, n2 WHERE n > :min" -p min=5
  objq -d ./data -f csv query "FROM events SELECT _file, COUNT(*) GROUP BY _file"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, strings.Join(args, " "))
		},
	}
}
