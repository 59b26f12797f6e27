package query

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tok struct {
	Type  TokenType
	Value string
}

func lex(t *testing.T, input string) []tok {
	t.Helper()
	tokens, err := Tokenize(input)
	require.NoError(t, err)
	out := make([]tok, len(tokens))
	for i, tk := range tokens {
		out[i] = tok{tk.Type, tk.Value}
	}
	return out
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []tok
	}{
		{
			name:  "select with comment",
			input: "SELECT a <> 'it''s', COUNT(*) FROM t -- trailing",
			want: []tok{
				{TokenKeyword, "SELECT"},
				{TokenName, "a"},
				{TokenOperator, "!="},
				{TokenString, "it's"},
				{TokenComma, ","},
				{TokenName, "COUNT"},
				{TokenBracket, "("},
				{TokenName, "*"},
				{TokenBracket, ")"},
				{TokenKeyword, "FROM"},
				{TokenName, "t"},
			},
		},
		{
			name:  "subtraction is not a negative number",
			input: "5-2",
			want: []tok{
				{TokenNumber, "5"},
				{TokenOperator, "-"},
				{TokenNumber, "2"},
			},
		},
		{
			name:  "negative number after operator",
			input: "1 * -2",
			want: []tok{
				{TokenNumber, "1"},
				{TokenOperator, "*"},
				{TokenNumber, "-2"},
			},
		},
		{
			name:  "multi word keywords are normalized",
			input: "order   by x nulls\tlast",
			want: []tok{
				{TokenKeyword, "ORDER BY"},
				{TokenName, "x"},
				{TokenKeyword, "NULLS LAST"},
			},
		},
		{
			name:  "quoted names and parameters",
			input: "`my col` = :value",
			want: []tok{
				{TokenName, "my col"},
				{TokenOperator, "="},
				{TokenParameter, "value"},
			},
		},
		{
			name:  "keyword used as function",
			input: "LEFT('abc', 1)",
			want: []tok{
				{TokenName, "LEFT"},
				{TokenBracket, "("},
				{TokenString, "abc"},
				{TokenComma, ","},
				{TokenNumber, "1"},
				{TokenBracket, ")"},
			},
		},
		{
			name:  "set operators and block comments",
			input: "a /* skip */ union   all b",
			want: []tok{
				{TokenName, "a"},
				{TokenQueryOperator, "UNION ALL"},
				{TokenName, "b"},
			},
		},
		{
			name:  "dotted paths",
			input: "u.address.city, t.*",
			want: []tok{
				{TokenName, "u.address.city"},
				{TokenComma, ","},
				{TokenName, "t.*"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, lex(t, tt.input))
		})
	}
}

func TestTokenizeOffsets(t *testing.T) {
	tokens, err := Tokenize("FROM  Test")
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, 6, tokens[1].Start)
	assert.Equal(t, 10, tokens[1].End)
}

func TestTokenizeErrors(t *testing.T) {
	for _, input := range []string{"'unterminated", "SELECT /* open", "SELECT #"} {
		t.Run(input, func(t *testing.T) {
			_, err := Tokenize(input)
			var tokErr *TokenizeError
			assert.True(t, errors.As(err, &tokErr), "got %v", err)
		})
	}
}
