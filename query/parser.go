package query

import (
	"strings"
)

// Parser parses SQL queries into AST
type Parser struct {
	tokens       []Token
	pos          int
	source       string
	depthCounter *ExpressionDepthCounter
}

// NewParser creates a new parser over tokens lexed from source
func NewParser(tokens []Token, source string) *Parser {
	return &Parser{
		tokens:       tokens,
		pos:          0,
		source:       source,
		depthCounter: NewExpressionDepthCounter(),
	}
}

// statementClauses are the keywords that open a clause of a statement
var statementClauses = map[string]bool{
	"SELECT": true, "FROM": true, "WHERE": true, "GROUP BY": true, "HAVING": true,
	"ORDER BY": true, "LIMIT": true, "OFFSET": true, "WINDOW": true, "WITH": true,
	"VALUES": true, "EXPLAIN": true,
	"CREATE TABLE": true, "CREATE VIEW": true, "DROP TABLE": true, "DROP VIEW": true,
	"INSERT INTO": true, "INSERT IGNORE INTO": true, "UPDATE": true, "SET": true,
	"DELETE FROM": true,
}

// Parse parses a query into its root node, a *Statement or *CompoundQuery
func Parse(query string) (Node, error) {
	if err := ValidateQuery(query); err != nil {
		return nil, err
	}

	tokens, err := Tokenize(query)
	if err != nil {
		return nil, err
	}

	if err := ValidateTokens(tokens); err != nil {
		return nil, err
	}

	parser := NewParser(tokens, query)
	node, err := parser.parseQueryExpression()
	if err != nil {
		return nil, err
	}

	if parser.current().Type != TokenEOF {
		return nil, parser.fail("end of input")
	}

	return node, nil
}

// current returns the current token
func (p *Parser) current() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: TokenEOF, Start: len(p.source), End: len(p.source)}
	}
	return p.tokens[p.pos]
}

// peek returns the next token without advancing
func (p *Parser) peek() Token {
	if p.pos+1 >= len(p.tokens) {
		return Token{Type: TokenEOF, Start: len(p.source), End: len(p.source)}
	}
	return p.tokens[p.pos+1]
}

// advance consumes the current token and returns it
func (p *Parser) advance() Token {
	tok := p.current()
	p.pos++
	return tok
}

// fail builds a ParseError for the current token
func (p *Parser) fail(expected string) error {
	tok := p.current()
	return &ParseError{Expected: expected, Found: tok, Offset: tok.Start, Source: p.source}
}

func (p *Parser) isKeyword(value string) bool {
	tok := p.current()
	return tok.Type == TokenKeyword && tok.Value == value
}

func (p *Parser) consumeKeyword(value string) bool {
	if p.isKeyword(value) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) expectKeyword(value string) error {
	if !p.consumeKeyword(value) {
		return p.fail(value)
	}
	return nil
}

func (p *Parser) isBracket(value string) bool {
	tok := p.current()
	return tok.Type == TokenBracket && tok.Value == value
}

func (p *Parser) expectBracket(value string) error {
	if !p.isBracket(value) {
		return p.fail("'" + value + "'")
	}
	p.advance()
	return nil
}

func (p *Parser) consumeComma() bool {
	if p.current().Type == TokenComma {
		p.advance()
		return true
	}
	return false
}

// consumeWord consumes a bare word that is not reserved by the lexer, such
// as ROWS or PRECEDING, matching case-insensitively
func (p *Parser) consumeWord(word string) bool {
	tok := p.current()
	if (tok.Type == TokenName || tok.Type == TokenKeyword) && strings.EqualFold(tok.Value, word) {
		p.advance()
		return true
	}
	return false
}

// expectName consumes an identifier, accepting quoted names and strings
func (p *Parser) expectName(expected string) (string, error) {
	tok := p.current()
	if tok.Type != TokenName && tok.Type != TokenString {
		return "", p.fail(expected)
	}
	p.advance()
	return tok.Value, nil
}

// setSource records the text covered by tokens from start up to the last
// consumed token
func (p *Parser) setSource(m *NodeMeta, start int) {
	end := p.pos - 1
	if start >= len(p.tokens) || end < start {
		return
	}
	if end >= len(p.tokens) {
		end = len(p.tokens) - 1
	}
	m.Pos = p.tokens[start].Start
	m.Source = p.source[p.tokens[start].Start:p.tokens[end].End]
}

// startsQuery reports whether tok opens a nested query
func startsQuery(tok Token) bool {
	if tok.Type != TokenKeyword {
		return false
	}
	switch tok.Value {
	case "SELECT", "FROM", "WITH", "VALUES":
		return true
	}
	return false
}

// parseQueryExpression left-folds set operators over successive statements
func (p *Parser) parseQueryExpression() (Node, error) {
	start := p.pos
	left, err := p.parseQueryTerm()
	if err != nil {
		return nil, err
	}

	for p.current().Type == TokenQueryOperator {
		op := p.advance().Value
		right, err := p.parseQueryTerm()
		if err != nil {
			return nil, err
		}
		compound := &CompoundQuery{Op: op, Left: left, Right: right}
		p.setSource(&compound.NodeMeta, start)
		left = compound
	}

	return left, nil
}

// parseQueryTerm parses a statement or a parenthesized query expression
func (p *Parser) parseQueryTerm() (Node, error) {
	if p.isBracket("(") && (startsQuery(p.peek()) || p.peek().Type == TokenBracket) {
		p.advance()
		node, err := p.parseQueryExpression()
		if err != nil {
			return nil, err
		}
		if err := p.expectBracket(")"); err != nil {
			return nil, err
		}
		return node, nil
	}
	return p.parseStatement()
}

// parseStatement greedily consumes keyword-led clauses
func (p *Parser) parseStatement() (*Statement, error) {
	start := p.pos
	stmt := &Statement{}

	for {
		tok := p.current()
		if tok.Type != TokenKeyword || !statementClauses[tok.Value] {
			break
		}
		clause, err := p.parseClause()
		if err != nil {
			return nil, err
		}
		if stmt.Clause(clause.ID) != nil {
			return nil, &ParseError{
				Expected: "a single " + clause.ID + " clause",
				Found:    tok,
				Offset:   tok.Start,
				Source:   p.source,
			}
		}
		stmt.Clauses = append(stmt.Clauses, clause)
	}

	if len(stmt.Clauses) == 0 {
		return nil, p.fail("query clause")
	}

	p.setSource(&stmt.NodeMeta, start)
	return stmt, nil
}

// parseClause parses one clause, dispatching on its keyword
func (p *Parser) parseClause() (*Clause, error) {
	start := p.pos
	tok := p.advance()
	clause := &Clause{ID: tok.Value}

	var err error
	switch tok.Value {
	case "SELECT":
		clause.Distinct = p.consumeKeyword("DISTINCT")
		err = p.parseSelectList(clause)
	case "FROM":
		err = p.parseFromList(clause)
	case "WHERE", "HAVING", "LIMIT", "OFFSET":
		var expr Node
		expr, err = p.parseExpression()
		clause.Children = []Node{expr}
	case "GROUP BY":
		clause.Children, err = p.parseExpressionList()
	case "ORDER BY":
		clause.Children, err = p.parseOrderList()
	case "WINDOW":
		err = p.parseWindowDefinitions(clause)
	case "WITH":
		err = p.parseWithClause(clause)
	case "VALUES":
		err = p.parseValuesRows(clause)
	case "EXPLAIN":
		switch {
		case p.consumeWord("ANALYSE"), p.consumeWord("ANALYZE"):
			clause.Modifier = "ANALYSE"
		case p.consumeWord("AST"):
			clause.Modifier = "AST"
		}
	case "CREATE TABLE":
		err = p.parseCreateTable(clause)
	case "CREATE VIEW":
		err = p.parseCreateView(clause)
	case "DROP TABLE", "DROP VIEW":
		if p.consumeKeyword("IF EXISTS") {
			clause.Modifier = "IF EXISTS"
		}
		var name *Symbol
		name, err = p.parseTableName()
		clause.Children = []Node{name}
	case "INSERT INTO", "INSERT IGNORE INTO":
		clause.ID = "INSERT INTO"
		if tok.Value == "INSERT IGNORE INTO" {
			clause.Modifier = "IGNORE"
		}
		err = p.parseInsert(clause)
	case "UPDATE", "DELETE FROM":
		var name *Symbol
		name, err = p.parseTableName()
		clause.Children = []Node{name}
	case "SET":
		clause.Children, err = p.parseAssignments()
	}
	if err != nil {
		return nil, err
	}

	p.setSource(&clause.NodeMeta, start)
	return clause, nil
}

// parseSelectList parses the SELECT items, each with an optional alias
func (p *Parser) parseSelectList(clause *Clause) error {
	for {
		expr, err := p.parseAliasedExpression()
		if err != nil {
			return err
		}
		clause.Children = append(clause.Children, expr)
		if !p.consumeComma() {
			return nil
		}
	}
}

// parseAliasedExpression parses: expr [[AS] alias]
func (p *Parser) parseAliasedExpression() (Node, error) {
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}

	if p.consumeKeyword("AS") {
		alias, err := p.expectName("alias")
		if err != nil {
			return nil, err
		}
		expr.Meta().Alias = alias
	} else if p.current().Type == TokenName {
		expr.Meta().Alias = p.advance().Value
	}

	return expr, nil
}

// parseFromList parses comma- or JOIN-separated table references
func (p *Parser) parseFromList(clause *Clause) error {
	for {
		left := false
		if len(clause.Children) > 0 {
			switch {
			case p.consumeComma(), p.consumeKeyword("JOIN"), p.consumeKeyword("INNER JOIN"):
			case p.consumeKeyword("LEFT JOIN"), p.consumeKeyword("LEFT OUTER JOIN"):
				left = true
			default:
				return nil
			}
		}

		ref, err := p.parseTableRef()
		if err != nil {
			return err
		}
		ref.Left = ref.Left || left
		clause.Children = append(clause.Children, ref)
	}
}

// parseTableRef parses one FROM item:
// (subquery) | func(args) | name, then [AS] alias [(headers)], ON, USING, LEFT, INNER
func (p *Parser) parseTableRef() (*TableRef, error) {
	start := p.pos
	ref := &TableRef{}

	tok := p.current()
	switch {
	case tok.Type == TokenBracket && tok.Value == "(":
		if !startsQuery(p.peek()) && p.peek().Type != TokenBracket {
			p.advance()
			return nil, p.fail("subquery")
		}
		source, err := p.parseQueryTerm()
		if err != nil {
			return nil, err
		}
		ref.Source = source
	case tok.Type == TokenName && p.peek().Type == TokenBracket && p.peek().Value == "(":
		call, err := p.parseFunctionCall()
		if err != nil {
			return nil, err
		}
		ref.Source = call
	case tok.Type == TokenName:
		name, err := p.parseTableName()
		if err != nil {
			return nil, err
		}
		ref.Source = name
	default:
		return nil, p.fail("table name")
	}

	hasAlias := false
	if p.consumeKeyword("AS") {
		alias, err := p.expectName("table alias")
		if err != nil {
			return nil, err
		}
		ref.Alias = alias
		hasAlias = true
	} else if p.current().Type == TokenName {
		ref.Alias = p.advance().Value
		hasAlias = true
	}
	if hasAlias && p.isBracket("(") {
		headers, err := p.parseNameList()
		if err != nil {
			return nil, err
		}
		ref.Headers = headers
	}

	for {
		switch {
		case p.consumeKeyword("ON"):
			pred, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			ref.Predicate = pred
		case p.consumeKeyword("USING"):
			if p.isBracket("(") {
				names, err := p.parseNameList()
				if err != nil {
					return nil, err
				}
				ref.Using = names[0]
			} else {
				name, err := p.expectName("column name")
				if err != nil {
					return nil, err
				}
				ref.Using = name
			}
		case p.consumeKeyword("LEFT"):
			ref.Left = true
		case p.consumeKeyword("INNER"):
			ref.Left = false
		default:
			p.setSource(&ref.NodeMeta, start)
			return ref, nil
		}
	}
}

// parseTableName parses a possibly dotted table name
func (p *Parser) parseTableName() (*Symbol, error) {
	start := p.pos
	name, err := p.expectName("table name")
	if err != nil {
		return nil, err
	}
	sym := &Symbol{Name: name}
	p.setSource(&sym.NodeMeta, start)
	return sym, nil
}

// parseNameList parses: ( name, name, ... )
func (p *Parser) parseNameList() ([]string, error) {
	if err := p.expectBracket("("); err != nil {
		return nil, err
	}
	var names []string
	for {
		name, err := p.expectName("column name")
		if err != nil {
			return nil, err
		}
		names = append(names, name)
		if !p.consumeComma() {
			break
		}
	}
	if err := p.expectBracket(")"); err != nil {
		return nil, err
	}
	return names, nil
}

// parseExpressionList parses comma-separated expressions
func (p *Parser) parseExpressionList() ([]Node, error) {
	var nodes []Node
	for {
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, expr)
		if !p.consumeComma() {
			return nodes, nil
		}
	}
}

// parseOrderList parses: expr [ASC|DESC] [NULLS FIRST|LAST], ...
func (p *Parser) parseOrderList() ([]Node, error) {
	var nodes []Node
	for {
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		meta := expr.Meta()
		if p.consumeKeyword("DESC") {
			meta.Desc = true
		} else {
			p.consumeKeyword("ASC")
		}
		if p.consumeKeyword("NULLS FIRST") {
			meta.Nulls = NullsFirst
		} else if p.consumeKeyword("NULLS LAST") {
			meta.Nulls = NullsLast
		}
		nodes = append(nodes, expr)
		if !p.consumeComma() {
			return nodes, nil
		}
	}
}

// parseWithClause parses: name [(cols)] AS (query), ...
func (p *Parser) parseWithClause(clause *Clause) error {
	for {
		name, err := p.expectName("CTE name")
		if err != nil {
			return err
		}
		var headers []string
		if p.isBracket("(") {
			if headers, err = p.parseNameList(); err != nil {
				return err
			}
		}
		if err := p.expectKeyword("AS"); err != nil {
			return err
		}
		if err := p.expectBracket("("); err != nil {
			return err
		}
		query, err := p.parseQueryExpression()
		if err != nil {
			return err
		}
		if err := p.expectBracket(")"); err != nil {
			return err
		}
		query.Meta().Alias = name
		query.Meta().Headers = headers
		clause.Children = append(clause.Children, query)
		if !p.consumeComma() {
			return nil
		}
	}
}

// parseWindowDefinitions parses: name AS (spec), ...
func (p *Parser) parseWindowDefinitions(clause *Clause) error {
	for {
		name, err := p.expectName("window name")
		if err != nil {
			return err
		}
		if err := p.expectKeyword("AS"); err != nil {
			return err
		}
		if err := p.expectBracket("("); err != nil {
			return err
		}
		spec, err := p.parseWindowSpec()
		if err != nil {
			return err
		}
		spec.Name = name
		clause.Windows = append(clause.Windows, spec)
		if !p.consumeComma() {
			return nil
		}
	}
}

// parseValuesRows parses: (expr, ...), (expr, ...)
func (p *Parser) parseValuesRows(clause *Clause) error {
	for {
		start := p.pos
		if err := p.expectBracket("("); err != nil {
			return err
		}
		items, err := p.parseExpressionList()
		if err != nil {
			return err
		}
		if err := p.expectBracket(")"); err != nil {
			return err
		}
		row := &List{Items: items}
		p.setSource(&row.NodeMeta, start)
		clause.Children = append(clause.Children, row)
		if !p.consumeComma() {
			return nil
		}
	}
}

// parseCreateTable parses: [IF NOT EXISTS] name [(col [type], ...)]
// Column definitions become symbols aliased by their declared type.
func (p *Parser) parseCreateTable(clause *Clause) error {
	if p.consumeKeyword("IF NOT EXISTS") {
		clause.Modifier = "IF NOT EXISTS"
	}
	name, err := p.parseTableName()
	if err != nil {
		return err
	}
	clause.Children = []Node{name}

	if !p.isBracket("(") {
		return nil
	}
	p.advance()
	for {
		start := p.pos
		col, err := p.expectName("column name")
		if err != nil {
			return err
		}
		var typeWords []string
		for p.current().Type == TokenName || p.current().Type == TokenKeyword || p.current().Type == TokenConstant {
			typeWords = append(typeWords, strings.ToUpper(p.advance().Value))
		}
		// size arguments such as VARCHAR(20) are accepted and ignored
		if p.isBracket("(") {
			for !p.isBracket(")") && p.current().Type != TokenEOF {
				p.advance()
			}
			if err := p.expectBracket(")"); err != nil {
				return err
			}
		}
		sym := &Symbol{Name: col}
		sym.Alias = strings.Join(typeWords, " ")
		p.setSource(&sym.NodeMeta, start)
		clause.Children = append(clause.Children, sym)
		if !p.consumeComma() {
			break
		}
	}
	return p.expectBracket(")")
}

// parseCreateView parses: name AS query
func (p *Parser) parseCreateView(clause *Clause) error {
	name, err := p.parseTableName()
	if err != nil {
		return err
	}
	if err := p.expectKeyword("AS"); err != nil {
		return err
	}
	query, err := p.parseQueryExpression()
	if err != nil {
		return err
	}
	clause.Children = []Node{name, query}
	return nil
}

// parseInsert parses: name [(cols)] query [ON DUPLICATE KEY UPDATE assignments]
// The column list is carried as the table symbol's headers.
func (p *Parser) parseInsert(clause *Clause) error {
	name, err := p.parseTableName()
	if err != nil {
		return err
	}
	if p.isBracket("(") && !startsQuery(p.peek()) {
		if name.Headers, err = p.parseNameList(); err != nil {
			return err
		}
	}

	source, err := p.parseQueryExpression()
	if err != nil {
		return err
	}
	clause.Children = []Node{name, source}

	if p.consumeKeyword("ON DUPLICATE KEY UPDATE") {
		if clause.Modifier == "IGNORE" {
			return p.fail("INSERT IGNORE without ON DUPLICATE KEY UPDATE")
		}
		clause.Modifier = "UPDATE"
		assignments, err := p.parseAssignments()
		if err != nil {
			return err
		}
		clause.Children = append(clause.Children, assignments...)
	}
	return nil
}

// parseAssignments parses: col = expr, ...
func (p *Parser) parseAssignments() ([]Node, error) {
	var nodes []Node
	for {
		tok := p.current()
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		op, ok := expr.(*Operator)
		if !ok || op.Op != "=" {
			return nil, &ParseError{Expected: "assignment", Found: tok, Offset: tok.Start, Source: p.source}
		}
		if _, ok := op.Operands[0].(*Symbol); !ok {
			return nil, &ParseError{Expected: "column name", Found: tok, Offset: tok.Start, Source: p.source}
		}
		nodes = append(nodes, op)
		if !p.consumeComma() {
			return nodes, nil
		}
	}
}
