package query

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConstantRequired is returned when LIMIT or OFFSET reference row data
	ErrConstantRequired = errors.New("constant expression required")

	// ErrNoProvider is returned when a table needs a primary fetch but no provider serves it
	ErrNoProvider = errors.New("no table provider")

	// ErrNoClauses is returned when a statement has none of the clauses that produce rows
	ErrNoClauses = errors.New("statement has no FROM, SELECT or VALUES clause")

	// ErrUnknownTable is returned when a table name cannot be resolved
	ErrUnknownTable = errors.New("unknown table")

	// ErrUnknownFunction is returned when a function name is not registered
	ErrUnknownFunction = errors.New("unknown function")

	// ErrSubqueryRows is returned when a scalar subquery yields more than one row
	ErrSubqueryRows = errors.New("scalar subquery returned more than one row")

	// ErrTableExists is returned when creating a table or view whose name is taken
	ErrTableExists = errors.New("table already exists")

	// ErrDuplicateKey is returned when an insert collides with an existing key
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrAggregateContext is returned when an aggregate is evaluated outside a group
	ErrAggregateContext = errors.New("aggregate function used outside of a group")
)

// TokenizeError reports input the tokenizer could not classify
type TokenizeError struct {
	Text   string
	Offset int
	Reason string
}

func (e *TokenizeError) Error() string {
	text := e.Text
	if len(text) > 20 {
		text = text[:20] + "..."
	}
	if e.Reason != "" {
		return fmt.Sprintf("tokenize: %s at offset %d: %q", e.Reason, e.Offset, text)
	}
	return fmt.Sprintf("tokenize: unrecognized input at offset %d: %q", e.Offset, text)
}

// ParseError reports an unexpected token. Source holds the full query text so
// the error can point at the failing offset.
type ParseError struct {
	Expected string
	Found    Token
	Offset   int
	Source   string
}

func (e *ParseError) Error() string {
	found := "end of input"
	if e.Found.Type != TokenEOF {
		found = fmt.Sprintf("%s %q", e.Found.Type, e.Found.Value)
	}
	msg := fmt.Sprintf("parse error at offset %d: expected %s, found %s", e.Offset, e.Expected, found)
	if pointer := e.Pointer(); pointer != "" {
		msg += "\n" + pointer
	}
	return msg
}

// Pointer renders the source line containing the offset with a caret under it.
func (e *ParseError) Pointer() string {
	if e.Source == "" {
		return ""
	}
	offset := e.Offset
	if offset > len(e.Source) {
		offset = len(e.Source)
	}
	start := strings.LastIndexByte(e.Source[:offset], '\n') + 1
	end := strings.IndexByte(e.Source[offset:], '\n')
	if end < 0 {
		end = len(e.Source)
	} else {
		end += offset
	}
	return e.Source[start:end] + "\n" + strings.Repeat(" ", offset-start) + "^"
}

// SymbolError reports a column reference that could not be resolved against
// the data available to the row. Non-strict filters treat it as "not yet known".
type SymbolError struct {
	Name string
}

func (e *SymbolError) Error() string {
	return fmt.Sprintf("unable to resolve symbol: %s", e.Name)
}

// CapabilityError reports a provider that lacks an optional hook a statement needs
type CapabilityError struct {
	Provider string
	Op       string
}

func (e *CapabilityError) Error() string {
	name := e.Provider
	if name == "" {
		name = "default"
	}
	return fmt.Sprintf("provider %q does not support %s", name, e.Op)
}

// CyclicColumnError reports columns whose aliases reference each other in a cycle
type CyclicColumnError struct {
	Column string
}

func (e *CyclicColumnError) Error() string {
	return fmt.Sprintf("cyclic column reference: %s", e.Column)
}

// IsSymbolError reports whether err (or anything it wraps) is a SymbolError
func IsSymbolError(err error) bool {
	var symErr *SymbolError
	return errors.As(err, &symErr)
}
