package query

import (
	"strconv"
	"strings"
)

// parseFunctionCall parses: name ( [DISTINCT] args ) [WITHIN GROUP (ORDER BY ...)]
// [FILTER (WHERE ...)] [OVER name | OVER (spec)]
func (p *Parser) parseFunctionCall() (Node, error) {
	start := p.pos
	call := &FunctionCall{Name: strings.ToUpper(p.advance().Value)}
	if err := p.expectBracket("("); err != nil {
		return nil, err
	}

	var err error
	switch call.Name {
	case "CAST":
		err = p.parseCastArgs(call)
	case "EXTRACT":
		err = p.parseExtractArgs(call)
	default:
		if !p.isBracket(")") {
			call.Distinct = p.consumeKeyword("DISTINCT")
			for {
				arg, err := p.parseArgument()
				if err != nil {
					return nil, err
				}
				call.Args = append(call.Args, arg)
				if !p.consumeComma() {
					break
				}
			}
		}
	}
	if err != nil {
		return nil, err
	}
	if err := p.expectBracket(")"); err != nil {
		return nil, err
	}

	for {
		switch {
		case p.consumeKeyword("WITHIN GROUP"):
			if err := p.expectBracket("("); err != nil {
				return nil, err
			}
			if err := p.expectKeyword("ORDER BY"); err != nil {
				return nil, err
			}
			if call.Order, err = p.parseOrderList(); err != nil {
				return nil, err
			}
			if err := p.expectBracket(")"); err != nil {
				return nil, err
			}
		case p.consumeKeyword("FILTER"):
			if err := p.expectBracket("("); err != nil {
				return nil, err
			}
			if err := p.expectKeyword("WHERE"); err != nil {
				return nil, err
			}
			if call.Filter, err = p.parseExpression(); err != nil {
				return nil, err
			}
			if err := p.expectBracket(")"); err != nil {
				return nil, err
			}
		case p.consumeKeyword("OVER"):
			if p.current().Type == TokenName {
				call.Window = &WindowSpec{Base: p.advance().Value}
				continue
			}
			if err := p.expectBracket("("); err != nil {
				return nil, err
			}
			if call.Window, err = p.parseWindowSpec(); err != nil {
				return nil, err
			}
		default:
			p.setSource(&call.NodeMeta, start)
			return call, nil
		}
	}
}

// parseArgument parses a function argument, which may be a nested query
func (p *Parser) parseArgument() (Node, error) {
	if startsQuery(p.current()) {
		return p.parseQueryExpression()
	}
	return p.parseExpression()
}

// parseCastArgs parses: expr AS type [FORMAT fmt]. The type becomes a string literal.
func (p *Parser) parseCastArgs(call *FunctionCall) error {
	expr, err := p.parseExpression()
	if err != nil {
		return err
	}
	if err := p.expectKeyword("AS"); err != nil {
		return err
	}

	start := p.pos
	tok := p.current()
	if tok.Type != TokenName && tok.Type != TokenKeyword && tok.Type != TokenString {
		return p.fail("type name")
	}
	p.advance()
	typeName := &StringLit{Value: strings.ToUpper(tok.Value)}
	p.setSource(&typeName.NodeMeta, start)
	// size arguments such as DECIMAL(10, 2) are accepted and ignored
	if p.isBracket("(") {
		for !p.isBracket(")") && p.current().Type != TokenEOF {
			p.advance()
		}
		if err := p.expectBracket(")"); err != nil {
			return err
		}
	}
	call.Args = []Node{expr, typeName}

	if p.consumeWord("FORMAT") {
		format, err := p.parseExpression()
		if err != nil {
			return err
		}
		call.Args = append(call.Args, format)
	}
	return nil
}

// parseExtractArgs parses: part FROM expr. The part becomes a string literal.
func (p *Parser) parseExtractArgs(call *FunctionCall) error {
	start := p.pos
	tok := p.current()
	if tok.Type != TokenName && tok.Type != TokenKeyword && tok.Type != TokenString {
		return p.fail("date part")
	}
	p.advance()
	part := &StringLit{Value: strings.ToUpper(tok.Value)}
	p.setSource(&part.NodeMeta, start)

	if err := p.expectKeyword("FROM"); err != nil {
		return err
	}
	expr, err := p.parseExpression()
	if err != nil {
		return err
	}
	call.Args = []Node{part, expr}
	return nil
}

// parseCase parses both CASE forms into a CASE call whose arguments are
// condition/result pairs followed by an optional ELSE result. The simple
// form's comparisons are expanded into equality conditions.
func (p *Parser) parseCase() (Node, error) {
	start := p.pos
	p.advance()

	var subject Node
	if !p.isKeyword("WHEN") {
		var err error
		if subject, err = p.parseExpression(); err != nil {
			return nil, err
		}
	}

	call := &FunctionCall{Name: "CASE"}
	for p.consumeKeyword("WHEN") {
		cond, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if subject != nil {
			eq := &Operator{Op: "=", Operands: []Node{subject, cond}}
			eq.Source, eq.Pos = cond.Meta().Source, cond.Meta().Pos
			cond = eq
		}
		if err := p.expectKeyword("THEN"); err != nil {
			return nil, err
		}
		result, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, cond, result)
	}
	if len(call.Args) == 0 {
		return nil, p.fail("WHEN")
	}

	if p.consumeKeyword("ELSE") {
		result, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, result)
	}
	if err := p.expectKeyword("END"); err != nil {
		return nil, err
	}

	p.setSource(&call.NodeMeta, start)
	return call, nil
}

// isFrameUnit reports whether word opens a window frame clause
func isFrameUnit(word string) bool {
	switch strings.ToUpper(word) {
	case "ROWS", "RANGE", "GROUPS":
		return true
	}
	return false
}

// parseWindowSpec parses the body of OVER (...) or a WINDOW definition,
// after the opening bracket: [base] [PARTITION BY ...] [ORDER BY ...] [frame] )
func (p *Parser) parseWindowSpec() (*WindowSpec, error) {
	spec := &WindowSpec{}
	var err error

	if tok := p.current(); tok.Type == TokenName && !isFrameUnit(tok.Value) {
		spec.Base = p.advance().Value
	}
	if p.consumeKeyword("PARTITION BY") {
		if spec.PartitionBy, err = p.parseExpressionList(); err != nil {
			return nil, err
		}
	}
	if p.consumeKeyword("ORDER BY") {
		if spec.OrderBy, err = p.parseOrderList(); err != nil {
			return nil, err
		}
	}
	if tok := p.current(); tok.Type == TokenName && isFrameUnit(tok.Value) {
		if spec.Frame, err = p.parseWindowFrame(); err != nil {
			return nil, err
		}
	}

	if err := p.expectBracket(")"); err != nil {
		return nil, err
	}
	return spec, nil
}

// parseWindowFrame parses: ROWS|RANGE|GROUPS [BETWEEN] start [AND end]
func (p *Parser) parseWindowFrame() (*WindowFrame, error) {
	frame := &WindowFrame{Unit: strings.ToUpper(p.advance().Value)}

	between := false
	if tok := p.current(); tok.Type == TokenOperator && tok.Value == "BETWEEN" {
		p.advance()
		between = true
	}

	start, err := p.parseFrameBound()
	if err != nil {
		return nil, err
	}
	frame.Start = start
	frame.End = FrameBound{Type: BoundCurrentRow}

	if between {
		if tok := p.current(); tok.Type != TokenOperator || tok.Value != "AND" {
			return nil, p.fail("AND")
		}
		p.advance()
		end, err := p.parseFrameBound()
		if err != nil {
			return nil, err
		}
		frame.End = end
	}

	if frame.Start.Type == BoundUnboundedFollowing || frame.End.Type == BoundUnboundedPreceding {
		return nil, p.fail("valid frame bounds")
	}
	return frame, nil
}

// parseFrameBound parses: UNBOUNDED PRECEDING | UNBOUNDED FOLLOWING | CURRENT ROW | N PRECEDING | N FOLLOWING
func (p *Parser) parseFrameBound() (FrameBound, error) {
	switch {
	case p.consumeKeyword("UNBOUNDED PRECEDING"):
		return FrameBound{Type: BoundUnboundedPreceding}, nil
	case p.consumeKeyword("UNBOUNDED FOLLOWING"):
		return FrameBound{Type: BoundUnboundedFollowing}, nil
	case p.consumeKeyword("CURRENT ROW"):
		return FrameBound{Type: BoundCurrentRow}, nil
	}

	tok := p.current()
	if tok.Type != TokenNumber {
		return FrameBound{}, p.fail("frame bound")
	}
	offset, err := strconv.Atoi(tok.Value)
	if err != nil || offset < 0 {
		return FrameBound{}, p.fail("non-negative integer frame offset")
	}
	p.advance()

	switch {
	case p.consumeWord("PRECEDING"):
		return FrameBound{Type: BoundPreceding, Offset: offset}, nil
	case p.consumeWord("FOLLOWING"):
		return FrameBound{Type: BoundFollowing, Offset: offset}, nil
	}
	return FrameBound{}, p.fail("PRECEDING or FOLLOWING")
}
