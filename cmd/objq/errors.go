package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/vegasq/objql/query"
)

var (
	errorLabel = color.New(color.FgRed, color.Bold)
	caretColor = color.New(color.FgYellow, color.Bold)
)

// printError writes err to w. Parse errors show the query line with a
// caret under the failing offset.
func printError(w io.Writer, err error) {
	var perr *query.ParseError
	if !errors.As(err, &perr) {
		fmt.Fprintf(w, "%s %v\n", errorLabel.Sprint("Error:"), err)
		return
	}

	msg := perr.Error()
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	fmt.Fprintf(w, "%s %s\n", errorLabel.Sprint("Error:"), msg)

	lines := strings.Split(perr.Pointer(), "\n")
	for i, line := range lines {
		if i == len(lines)-1 && strings.TrimSpace(line) == "^" {
			fmt.Fprintln(w, caretColor.Sprint(line))
			continue
		}
		fmt.Fprintln(w, line)
	}
}
