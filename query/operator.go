package query

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

// evaluateOperator applies an operator to its evaluated operands. AND, OR
// and ?? evaluate their right operand only when needed.
func (qc *QueryContext) evaluateOperator(row *ResultRow, op *Operator, rows []*ResultRow) (interface{}, error) {
	operand := func(i int) (interface{}, error) {
		if i >= len(op.Operands) {
			return nil, fmt.Errorf("operator %s is missing an operand", op.Op)
		}
		return qc.evaluate(row, op.Operands[i], rows)
	}

	switch op.Op {
	case "AND", "BAND":
		left, err := operand(0)
		if err != nil || !truthy(left) {
			return false, err
		}
		right, err := operand(1)
		if err != nil {
			return nil, err
		}
		return truthy(right), nil
	case "OR":
		left, err := operand(0)
		if err != nil {
			return nil, err
		}
		if truthy(left) {
			return true, nil
		}
		right, err := operand(1)
		if err != nil {
			return nil, err
		}
		return truthy(right), nil
	case "??":
		left, err := operand(0)
		if err != nil {
			return nil, err
		}
		if !isStrictNull(left) {
			return left, nil
		}
		return operand(1)
	case "IN", "NOT IN":
		return qc.evaluateIn(row, op, rows)
	}

	left, err := operand(0)
	if err != nil {
		return nil, err
	}

	// unary operators
	switch op.Op {
	case "NOT":
		return !truthy(left), nil
	case "NEG":
		n, _ := toNumber(left)
		return -n, nil
	case "IS NULL":
		return isNullish(left), nil
	case "IS NOT NULL":
		return !isNullish(left), nil
	case "BETWEEN", "NOT BETWEEN":
		lo, err := operand(1)
		if err != nil {
			return nil, err
		}
		hi, err := operand(2)
		if err != nil {
			return nil, err
		}
		if isStrictNull(left) || isStrictNull(lo) || isStrictNull(hi) {
			return false, nil
		}
		c := qc.engine.collator
		in := c.CompareValues(left, lo) >= 0 && c.CompareValues(left, hi) <= 0
		return in == (op.Op == "BETWEEN"), nil
	}

	right, err := operand(1)
	if err != nil {
		return nil, err
	}

	switch op.Op {
	case "=":
		return equalValues(left, right), nil
	case "!=":
		if isStrictNull(left) || isStrictNull(right) {
			return false, nil
		}
		return !equalValues(left, right), nil
	case "<", ">", "<=", ">=":
		if isStrictNull(left) || isStrictNull(right) {
			return false, nil
		}
		c := qc.engine.collator.CompareValues(left, right)
		switch op.Op {
		case "<":
			return c < 0, nil
		case ">":
			return c > 0, nil
		case "<=":
			return c <= 0, nil
		}
		return c >= 0, nil
	case "LIKE", "NOT LIKE":
		if isStrictNull(left) || isStrictNull(right) {
			return false, nil
		}
		re, err := qc.engine.pattern(likePattern(toString(right)))
		if err != nil {
			return nil, nil
		}
		return re.MatchString(toString(left)) == (op.Op == "LIKE"), nil
	case "REGEXP", "NOT REGEXP":
		if isStrictNull(left) || isStrictNull(right) {
			return false, nil
		}
		re, err := qc.engine.pattern("(?i)" + toString(right))
		if err != nil {
			qc.engine.logger.Debug("invalid regular expression", "pattern", toString(right), "error", err)
			return nil, nil
		}
		return re.MatchString(toString(left)) == (op.Op == "REGEXP"), nil
	case "||":
		if isStrictNull(left) || isStrictNull(right) {
			return nil, nil
		}
		return toString(left) + toString(right), nil
	case "+", "-", "*", "/", "%":
		return arithmetic(op.Op, left, right), nil
	}
	return nil, fmt.Errorf("unknown operator %s", op.Op)
}

// arithmetic applies a numeric operator after coercing both sides to numbers
func arithmetic(op string, left, right interface{}) float64 {
	a, _ := toNumber(left)
	b, _ := toNumber(right)
	switch op {
	case "+":
		return a + b
	case "-":
		return a - b
	case "*":
		return a * b
	case "/":
		return a / b
	}
	return math.Mod(a, b)
}

// likePattern translates a LIKE pattern into an anchored, case-insensitive
// regular expression: % matches any run of characters, ? and _ match one
func likePattern(pattern string) string {
	var sb strings.Builder
	sb.WriteString("(?is)^")
	for _, r := range pattern {
		switch r {
		case '%':
			sb.WriteString(".*")
		case '?', '_':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString("$")
	return sb.String()
}

// evaluateIn tests membership in a list, an array value or the first column
// of a subquery
func (qc *QueryContext) evaluateIn(row *ResultRow, op *Operator, rows []*ResultRow) (interface{}, error) {
	if len(op.Operands) != 2 {
		return nil, fmt.Errorf("operator %s requires two operands", op.Op)
	}
	left, err := qc.evaluate(row, op.Operands[0], rows)
	if err != nil {
		return nil, err
	}

	var candidates []interface{}
	switch right := op.Operands[1].(type) {
	case *Statement, *CompoundQuery:
		res, err := qc.runSubquery(row, right, rows)
		if err != nil {
			return nil, err
		}
		for _, r := range res.Rows {
			if len(r) > 0 {
				candidates = append(candidates, r[0])
			}
		}
	default:
		v, err := qc.evaluate(row, right, rows)
		if err != nil {
			return nil, err
		}
		if items, ok := normalizeValue(v).([]interface{}); ok {
			candidates = items
		} else {
			candidates = []interface{}{v}
		}
	}

	if isStrictNull(left) {
		return false, nil
	}
	found := false
	for _, c := range candidates {
		if equalValues(left, c) {
			found = true
			break
		}
	}
	return found == (op.Op == "IN"), nil
}
