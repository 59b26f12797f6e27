// Command objq runs SQL-like queries over parquet directories and the
// built-in demo tables.
package main

import (
	"os"
)

func main() {
	cmd := NewRootCommand()
	if err := cmd.Execute(); err != nil {
		printError(cmd.ErrOrStderr(), err)
		os.Exit(1)
	}
}
