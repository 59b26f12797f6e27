package query

import (
	"math"
	"strconv"
	"strings"
)

// Binary operator precedence, higher binds tighter. BAND is the AND of a
// BETWEEN, which must bind tighter than the comparison it belongs to.
var binaryPrecedence = map[string]int{
	"OR":  5,
	"AND": 10,
	"=":   20, "!=": 20, "<": 20, "<=": 20, ">": 20, ">=": 20,
	"LIKE": 20, "NOT LIKE": 20, "REGEXP": 20, "NOT REGEXP": 20,
	"IN": 20, "NOT IN": 20, "BETWEEN": 20, "NOT BETWEEN": 20,
	"BAND": 21,
	"||":   25,
	"+":    30, "-": 30,
	"*": 40, "/": 40, "%": 40,
	"??": 50,
}

var prefixPrecedence = map[string]int{
	"NOT": 12,
	"NEG": 60,
}

const postfixPrecedence = 20

type exprItemKind int

const (
	itemOperand exprItemKind = iota
	itemBinary
	itemPrefix
	itemPostfix
)

// exprItem is one entry of the flat operand/operator run an expression is
// lexed into before precedence is applied. first and last are token indexes.
type exprItem struct {
	kind  exprItemKind
	node  Node
	op    string
	first int
	last  int
}

// parseExpression parses a full expression: a flat run of prefix operators,
// operands, postfix and binary operators, assembled by precedence.
func (p *Parser) parseExpression() (Node, error) {
	if err := p.depthCounter.Enter(); err != nil {
		return nil, err
	}
	defer p.depthCounter.Exit()

	var items []exprItem
	pendingBetween := 0

	for {
		for {
			tok := p.current()
			if tok.Type != TokenOperator || (tok.Value != "NOT" && tok.Value != "-" && tok.Value != "+") {
				break
			}
			p.advance()
			if tok.Value == "+" {
				continue
			}
			op := tok.Value
			if op == "-" {
				op = "NEG"
			}
			items = append(items, exprItem{kind: itemPrefix, op: op, first: p.pos - 1, last: p.pos - 1})
		}

		inList := false
		if n := len(items); n > 0 && items[n-1].kind == itemBinary {
			inList = items[n-1].op == "IN" || items[n-1].op == "NOT IN"
		}

		first := p.pos
		operand, err := p.parseOperand(inList)
		if err != nil {
			return nil, err
		}
		items = append(items, exprItem{kind: itemOperand, node: operand, first: first, last: p.pos - 1})

		for p.current().Type == TokenOperator && (p.current().Value == "IS NULL" || p.current().Value == "IS NOT NULL") {
			op := p.advance().Value
			items = append(items, exprItem{kind: itemPostfix, op: op, first: p.pos - 1, last: p.pos - 1})
		}

		tok := p.current()
		if tok.Type != TokenOperator {
			break
		}
		op := tok.Value
		if _, ok := binaryPrecedence[op]; !ok {
			break
		}
		if op == "AND" && pendingBetween > 0 {
			op = "BAND"
			pendingBetween--
		}
		if op == "BETWEEN" || op == "NOT BETWEEN" {
			pendingBetween++
		}
		p.advance()
		items = append(items, exprItem{kind: itemBinary, op: op, first: p.pos - 1, last: p.pos - 1})
	}

	return p.assemble(items)
}

// assemble builds the tree for a flat item run. The loosest-binding operator
// becomes the root; among equal binary operators the rightmost wins, which
// makes them left associative.
func (p *Parser) assemble(items []exprItem) (Node, error) {
	if len(items) == 1 && items[0].kind == itemOperand {
		return items[0].node, nil
	}
	if len(items) == 0 {
		return nil, p.fail("expression")
	}

	split, best := -1, math.MaxInt
	for i, it := range items {
		if it.kind != itemBinary {
			continue
		}
		if prec := binaryPrecedence[it.op]; prec <= best {
			split, best = i, prec
		}
	}

	last := items[len(items)-1]
	postfix := last.kind == itemPostfix && postfixPrecedence < best
	if postfix {
		best = postfixPrecedence
	}
	if items[0].kind == itemPrefix && prefixPrecedence[items[0].op] < best {
		operand, err := p.assemble(items[1:])
		if err != nil {
			return nil, err
		}
		return p.operator(items, items[0].op, operand), nil
	}
	if postfix {
		operand, err := p.assemble(items[:len(items)-1])
		if err != nil {
			return nil, err
		}
		return p.operator(items, last.op, operand), nil
	}
	if split <= 0 || split == len(items)-1 {
		return nil, p.itemError(items, "operand")
	}

	left, err := p.assemble(items[:split])
	if err != nil {
		return nil, err
	}
	right, err := p.assemble(items[split+1:])
	if err != nil {
		return nil, err
	}

	op := items[split].op
	if op == "BETWEEN" || op == "NOT BETWEEN" {
		band, ok := right.(*Operator)
		if !ok || band.Op != "BAND" {
			return nil, p.itemError(items[split:], "AND")
		}
		return p.operator(items, op, left, band.Operands[0], band.Operands[1]), nil
	}
	return p.operator(items, op, left, right), nil
}

// operator builds an Operator node whose source spans items
func (p *Parser) operator(items []exprItem, op string, operands ...Node) *Operator {
	node := &Operator{Op: op, Operands: operands}
	first := p.tokens[items[0].first]
	last := p.tokens[items[len(items)-1].last]
	node.Pos = first.Start
	node.Source = p.source[first.Start:last.End]
	return node
}

// itemError reports a malformed operator run at its first token
func (p *Parser) itemError(items []exprItem, expected string) error {
	tok := p.tokens[items[0].first]
	return &ParseError{Expected: expected, Found: tok, Offset: tok.Start, Source: p.source}
}

// parseOperand parses a single operand. A parenthesized run is a List only
// when it holds several items or is the right side of IN / NOT IN.
func (p *Parser) parseOperand(inList bool) (Node, error) {
	start := p.pos
	tok := p.current()

	switch tok.Type {
	case TokenBracket:
		if tok.Value != "(" {
			break
		}
		if startsQuery(p.peek()) {
			p.advance()
			query, err := p.parseQueryExpression()
			if err != nil {
				return nil, err
			}
			if err := p.expectBracket(")"); err != nil {
				return nil, err
			}
			return query, nil
		}
		p.advance()
		var items []Node
		if !p.isBracket(")") {
			var err error
			if items, err = p.parseExpressionList(); err != nil {
				return nil, err
			}
		}
		if err := p.expectBracket(")"); err != nil {
			return nil, err
		}
		if len(items) == 1 && !inList {
			return items[0], nil
		}
		list := &List{Items: items}
		p.setSource(&list.NodeMeta, start)
		return list, nil

	case TokenName:
		if next := p.peek(); next.Type == TokenBracket && next.Value == "(" {
			return p.parseFunctionCall()
		}
		p.advance()
		sym := &Symbol{Name: tok.Value}
		p.setSource(&sym.NodeMeta, start)
		return sym, nil

	case TokenString:
		p.advance()
		lit := &StringLit{Value: tok.Value}
		p.setSource(&lit.NodeMeta, start)
		return lit, nil

	case TokenNumber:
		value, err := parseNumberLiteral(tok.Value)
		if err != nil {
			return nil, p.fail("number")
		}
		p.advance()
		lit := &NumberLit{Value: value}
		p.setSource(&lit.NodeMeta, start)
		return lit, nil

	case TokenConstant:
		p.advance()
		lit := &ConstantLit{Name: tok.Value}
		p.setSource(&lit.NodeMeta, start)
		return lit, nil

	case TokenParameter:
		p.advance()
		param := &Parameter{Name: tok.Value}
		p.setSource(&param.NodeMeta, start)
		return param, nil

	case TokenKeyword:
		if tok.Value == "CASE" {
			return p.parseCase()
		}
	}

	return nil, p.fail("expression")
}

// parseNumberLiteral parses decimal, exponent and hex literals
func parseNumberLiteral(text string) (float64, error) {
	lower := strings.ToLower(text)
	if strings.HasPrefix(lower, "0x") || strings.HasPrefix(lower, "-0x") {
		n, err := strconv.ParseInt(lower, 0, 64)
		if err != nil {
			return 0, err
		}
		return float64(n), nil
	}
	return strconv.ParseFloat(text, 64)
}
