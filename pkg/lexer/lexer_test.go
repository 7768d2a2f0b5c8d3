package lexer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kristofer/ionscript/pkg/token"
)

func TestNextToken_BasicTokens(t *testing.T) {
	input := `( ) [ ] { } , : ; . = += -= *= /= + - * / == != > >= < <=`

	tests := []struct {
		expectedKind   token.Kind
		expectedLexeme string
	}{
		{token.LParen, "("},
		{token.RParen, ")"},
		{token.LBracket, "["},
		{token.RBracket, "]"},
		{token.LBrace, "{"},
		{token.RBrace, "}"},
		{token.Comma, ","},
		{token.Colon, ":"},
		{token.Semi, ";"},
		{token.Dot, "."},
		{token.Assign, "="},
		{token.PlusAssign, "+="},
		{token.MinusAssign, "-="},
		{token.StarAssign, "*="},
		{token.SlashAssign, "/="},
		{token.Plus, "+"},
		{token.Minus, "-"},
		{token.Star, "*"},
		{token.Slash, "/"},
		{token.Equals, "=="},
		{token.NotEquals, "!="},
		{token.Greater, ">"},
		{token.GreaterEqual, ">="},
		{token.Less, "<"},
		{token.LessEqual, "<="},
		{token.EOF, ""},
	}

	l := New(input)
	for i, tt := range tests {
		tok, err := l.NextToken()
		require.NoError(t, err)
		require.Equalf(t, tt.expectedKind, tok.Kind, "tests[%d] kind", i)
		require.Equalf(t, tt.expectedLexeme, tok.Lexeme, "tests[%d] lexeme", i)
	}
}

func TestNextToken_Keywords(t *testing.T) {
	input := "if else end while for def return continue break new not and or true false nil foo"
	expected := []token.Kind{
		token.If, token.Else, token.End, token.While, token.For, token.Def,
		token.Return, token.Continue, token.Break, token.New, token.Not,
		token.And, token.Or, token.True, token.False, token.Nil, token.Identifier,
		token.EOF,
	}
	l := New(input)
	for i, want := range expected {
		tok, err := l.NextToken()
		require.NoError(t, err)
		require.Equalf(t, want, tok.Kind, "tests[%d]", i)
	}
}

func TestNextToken_Newline(t *testing.T) {
	l := New("x\ny")
	tok, err := l.NextToken()
	require.NoError(t, err)
	require.Equal(t, token.Identifier, tok.Kind)
	require.Equal(t, 1, tok.Line)

	tok, err = l.NextToken()
	require.NoError(t, err)
	require.Equal(t, token.Newline, tok.Kind)

	tok, err = l.NextToken()
	require.NoError(t, err)
	require.Equal(t, token.Identifier, tok.Kind)
	require.Equal(t, 2, tok.Line)
}

func TestNextToken_Numbers(t *testing.T) {
	tests := []struct {
		input string
		value float64
	}{
		{"0", 0},
		{"42", 42},
		{"3.14", 3.14},
		{"0.5", 0.5},
	}
	for _, tt := range tests {
		l := New(tt.input)
		tok, err := l.NextToken()
		require.NoError(t, err)
		require.Equal(t, token.Number, tok.Kind)
		require.InDelta(t, tt.value, tok.Number, 1e-9)
	}
}

func TestNextToken_NegativeNumberIsMinusThenNumber(t *testing.T) {
	// Unary minus is a parser concern, not a lexer one: -5 lexes as MINUS, NUMBER(5).
	l := New("-5")
	tok, err := l.NextToken()
	require.NoError(t, err)
	require.Equal(t, token.Minus, tok.Kind)
	tok, err = l.NextToken()
	require.NoError(t, err)
	require.Equal(t, token.Number, tok.Kind)
	require.InDelta(t, 5.0, tok.Number, 1e-9)
}

func TestNextToken_String(t *testing.T) {
	l := New(`"hello\nworld"`)
	tok, err := l.NextToken()
	require.NoError(t, err)
	require.Equal(t, token.String, tok.Kind)
	require.Equal(t, "hello\nworld", tok.Lexeme)
}

func TestNextToken_UnterminatedString(t *testing.T) {
	l := New(`"oops`)
	_, err := l.NextToken()
	require.Error(t, err)
	var se *SyntaxError
	require.ErrorAs(t, err, &se)
}

func TestNextToken_Comment(t *testing.T) {
	l := New("x # this is a comment\ny")
	tok, err := l.NextToken()
	require.NoError(t, err)
	require.Equal(t, token.Identifier, tok.Kind)
	require.Equal(t, "x", tok.Lexeme)

	tok, err = l.NextToken()
	require.NoError(t, err)
	require.Equal(t, token.Newline, tok.Kind)

	tok, err = l.NextToken()
	require.NoError(t, err)
	require.Equal(t, "y", tok.Lexeme)
}

func TestNextToken_Illegal(t *testing.T) {
	l := New("@")
	_, err := l.NextToken()
	require.Error(t, err)
}

func TestTokenize(t *testing.T) {
	toks, err := Tokenize("x = 1 + 2")
	require.NoError(t, err)
	require.Equal(t, token.EOF, toks[len(toks)-1].Kind)
}
