package query

import (
	"regexp"
	"strings"
)

// TokenType represents the type of a token
type TokenType int

const (
	TokenBracket TokenType = iota
	TokenComma
	TokenKeyword
	TokenName
	TokenString
	TokenNumber
	TokenOperator
	TokenQueryOperator
	TokenConstant
	TokenParameter
	TokenEOF
)

var tokenTypeNames = [...]string{
	TokenBracket:       "BRACKET",
	TokenComma:         "COMMA",
	TokenKeyword:       "KEYWORD",
	TokenName:          "NAME",
	TokenString:        "STRING",
	TokenNumber:        "NUMBER",
	TokenOperator:      "OPERATOR",
	TokenQueryOperator: "QUERY_OPERATOR",
	TokenConstant:      "CONSTANT",
	TokenParameter:     "PARAMETER",
	TokenEOF:           "EOF",
}

func (t TokenType) String() string {
	if int(t) < len(tokenTypeNames) {
		return tokenTypeNames[t]
	}
	return "UNKNOWN"
}

// Token represents a lexical token. Value is normalized for keywords and
// operators (upper case, single spaces) and unquoted for strings.
type Token struct {
	Type  TokenType
	Value string
	Start int
	End   int
}

// wordPattern compiles a case-insensitive, word-bounded pattern for each
// alternative, in order. Multi-word entries allow any whitespace between words.
func wordPatterns(words ...string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, len(words))
	for i, w := range words {
		parts := strings.Fields(w)
		for j, p := range parts {
			parts[j] = regexp.QuoteMeta(p)
		}
		patterns[i] = regexp.MustCompile(`(?i)^` + strings.Join(parts, `\s+`) + `\b`)
	}
	return patterns
}

var (
	queryOperatorPatterns = wordPatterns("UNION ALL", "UNION", "INTERSECT", "EXCEPT")

	// Longer phrases first so "ORDER BY" wins over a bare "ORDER" name.
	keywordPatterns = wordPatterns(
		"INSERT IGNORE INTO", "INSERT INTO", "DELETE FROM", "ON DUPLICATE KEY UPDATE",
		"CREATE TABLE", "CREATE VIEW", "DROP TABLE", "DROP VIEW", "IF NOT EXISTS", "IF EXISTS",
		"ORDER BY", "GROUP BY", "PARTITION BY", "NULLS FIRST", "NULLS LAST",
		"UNBOUNDED PRECEDING", "UNBOUNDED FOLLOWING", "CURRENT ROW", "WITHIN GROUP",
		"LEFT OUTER JOIN", "LEFT JOIN", "INNER JOIN",
		"SELECT", "FROM", "WHERE", "HAVING", "LIMIT", "OFFSET", "WINDOW", "WITH", "VALUES",
		"EXPLAIN", "AS", "ON", "USING", "LEFT", "INNER", "JOIN", "DISTINCT", "ASC", "DESC",
		"OVER", "FILTER", "CASE", "WHEN", "THEN", "ELSE", "END", "UPDATE", "SET",
	)

	wordOperatorPatterns = wordPatterns(
		"IS NOT NULL", "IS NULL", "NOT BETWEEN", "NOT IN", "NOT LIKE", "NOT REGEXP",
		"BETWEEN", "IN", "LIKE", "REGEXP", "AND", "OR", "NOT",
	)

	constantPatterns = wordPatterns("TRUE", "FALSE", "NULL", "NOW", "PI")

	symbolOperatorPattern = regexp.MustCompile(`^(?:!=|<>|<=|>=|\|\||\?\?|[=<>+\-*/%])`)
	numberPattern         = regexp.MustCompile(`(?i)^-?(?:0x[0-9a-f]+|(?:\d+\.?\d*|\.\d+)(?:e[+-]?\d+)?)`)
	namePattern           = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(?:\.(?:[A-Za-z_][A-Za-z0-9_]*|\*))*`)
	parameterPattern      = regexp.MustCompile(`^:[A-Za-z_][A-Za-z0-9_]*`)
	spacePattern          = regexp.MustCompile(`^\s+`)
)

// retypedKeywords are keywords that double as function names when directly
// followed by an open bracket, e.g. LEFT('abc', 1).
var retypedKeywords = map[string]bool{
	"LEFT": true,
}

// Lexer tokenizes query strings
type Lexer struct {
	input  string
	pos    int
	tokens []Token
}

// NewLexer creates a new lexer
func NewLexer(input string) *Lexer {
	return &Lexer{input: input}
}

// Tokenize returns all tokens from the input. It either consumes the whole
// input or fails with a *TokenizeError.
func Tokenize(input string) ([]Token, error) {
	l := NewLexer(input)
	for {
		tok, err := l.NextToken()
		if err != nil {
			return nil, err
		}
		if tok.Type == TokenEOF {
			break
		}
		l.tokens = append(l.tokens, tok)
	}
	retypeTokens(l.tokens)
	return l.tokens, nil
}

// NextToken returns the next token
func (l *Lexer) NextToken() (Token, error) {
	if err := l.skipIgnored(); err != nil {
		return Token{}, err
	}
	if l.pos >= len(l.input) {
		return Token{Type: TokenEOF, Start: l.pos, End: l.pos}, nil
	}

	rest := l.input[l.pos:]
	switch rest[0] {
	case '(', ')':
		return l.emit(TokenBracket, rest[:1], 1), nil
	case ',':
		return l.emit(TokenComma, ",", 1), nil
	case '\'':
		return l.readQuoted('\'', TokenString)
	case '"', '`':
		return l.readQuoted(rest[0], TokenName)
	case ':':
		if m := parameterPattern.FindString(rest); m != "" {
			return l.emit(TokenParameter, m[1:], len(m)), nil
		}
	case '*':
		if l.expectsOperand() {
			return l.emit(TokenName, "*", 1), nil
		}
	}

	if m := numberPattern.FindString(rest); m != "" {
		// A leading minus after an operand is subtraction: 5-2 is three tokens.
		if m[0] != '-' || l.expectsOperand() {
			return l.emit(TokenNumber, m, len(m)), nil
		}
	}

	for _, re := range queryOperatorPatterns {
		if m := re.FindString(rest); m != "" {
			return l.emit(TokenQueryOperator, normalizeWords(m), len(m)), nil
		}
	}
	for _, re := range keywordPatterns {
		if m := re.FindString(rest); m != "" {
			return l.emit(TokenKeyword, normalizeWords(m), len(m)), nil
		}
	}
	for _, re := range wordOperatorPatterns {
		if m := re.FindString(rest); m != "" {
			return l.emit(TokenOperator, normalizeWords(m), len(m)), nil
		}
	}
	for _, re := range constantPatterns {
		if m := re.FindString(rest); m != "" {
			return l.emit(TokenConstant, strings.ToUpper(m), len(m)), nil
		}
	}
	if m := symbolOperatorPattern.FindString(rest); m != "" {
		if m == "<>" {
			return l.emit(TokenOperator, "!=", len(m)), nil
		}
		return l.emit(TokenOperator, m, len(m)), nil
	}
	if m := namePattern.FindString(rest); m != "" {
		return l.emit(TokenName, m, len(m)), nil
	}

	return Token{}, &TokenizeError{Text: rest, Offset: l.pos}
}

// emit builds a token for the next n bytes of input and advances past them
func (l *Lexer) emit(typ TokenType, value string, n int) Token {
	tok := Token{Type: typ, Value: value, Start: l.pos, End: l.pos + n}
	l.pos += n
	return tok
}

// skipIgnored skips whitespace and comments
func (l *Lexer) skipIgnored() error {
	for l.pos < len(l.input) {
		rest := l.input[l.pos:]
		if m := spacePattern.FindString(rest); m != "" {
			l.pos += len(m)
			continue
		}
		if strings.HasPrefix(rest, "--") {
			end := strings.IndexByte(rest, '\n')
			if end < 0 {
				l.pos = len(l.input)
			} else {
				l.pos += end + 1
			}
			continue
		}
		if strings.HasPrefix(rest, "/*") {
			end := strings.Index(rest[2:], "*/")
			if end < 0 {
				return &TokenizeError{Text: rest, Offset: l.pos, Reason: "unterminated comment"}
			}
			l.pos += end + 4
			continue
		}
		return nil
	}
	return nil
}

// readQuoted reads a quoted literal. A doubled quote character inside the
// literal is an escaped quote.
func (l *Lexer) readQuoted(quote byte, typ TokenType) (Token, error) {
	start := l.pos
	var b strings.Builder
	i := l.pos + 1
	for i < len(l.input) {
		c := l.input[i]
		if c == quote {
			if i+1 < len(l.input) && l.input[i+1] == quote {
				b.WriteByte(quote)
				i += 2
				continue
			}
			l.pos = i + 1
			return Token{Type: typ, Value: b.String(), Start: start, End: l.pos}, nil
		}
		b.WriteByte(c)
		i++
	}
	return Token{}, &TokenizeError{Text: l.input[start:], Offset: start, Reason: "unterminated literal"}
}

// expectsOperand reports whether the previous token leaves the lexer in
// operand position, where '*' is a wildcard and '-' starts a negative number.
func (l *Lexer) expectsOperand() bool {
	if len(l.tokens) == 0 {
		return true
	}
	prev := l.tokens[len(l.tokens)-1]
	switch prev.Type {
	case TokenKeyword, TokenComma, TokenOperator, TokenQueryOperator:
		return true
	case TokenBracket:
		return prev.Value == "("
	}
	return false
}

// retypeTokens fixes up tokens that were ambiguous at lex time: a keyword or
// constant directly followed by '(' is a function name.
func retypeTokens(tokens []Token) {
	for i := 0; i+1 < len(tokens); i++ {
		next := tokens[i+1]
		if next.Type != TokenBracket || next.Value != "(" {
			continue
		}
		switch tokens[i].Type {
		case TokenConstant:
			tokens[i].Type = TokenName
		case TokenKeyword:
			if retypedKeywords[tokens[i].Value] {
				tokens[i].Type = TokenName
			}
		}
	}
}

// normalizeWords upper-cases a matched phrase and collapses inner whitespace
func normalizeWords(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), " "))
}
