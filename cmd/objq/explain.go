package main

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"
)

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	var analyse, ast bool

	cmd := &cobra.Command{
		Use:   "explain <sql>...",
		Short: "Show how a query would run",
		Long: `Show the join plan of a query.

--analyse runs the query and reports the plan as JSON with actual row
counts. --ast prints the parsed syntax tree instead.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if analyse && ast {
				return errors.New("--analyse and --ast cannot be used together")
			}
			prefix := "EXPLAIN "
			switch {
			case analyse:
				prefix = "EXPLAIN ANALYSE "
			case ast:
				prefix = "EXPLAIN AST "
			}
			return rootOpts.run(cmd, prefix+strings.Join(args, " "))
		},
	}

	cmd.Flags().BoolVar(&analyse, "analyse", false, "run the query and report actual row counts")
	cmd.Flags().BoolVar(&ast, "ast", false, "print the syntax tree")
	return cmd
}
