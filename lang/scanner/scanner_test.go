package scanner

import (
	"testing"

	"github.com/mna/loxvm/lang/token"
	"github.com/stretchr/testify/require"
)

func scanAll(src string) []Token {
	s := New(src)
	var toks []Token
	for {
		tok := s.Scan()
		toks = append(toks, tok)
		if tok.Kind == token.EOF || tok.Kind == token.ERROR {
			break
		}
	}
	return toks
}

func TestScanPunctuationAndOperators(t *testing.T) {
	toks := scanAll("( ) { } , . - + ; / * ? : ! != = == < <= > >=")
	var kinds []token.Token
	for _, tok := range toks {
		kinds = append(kinds, tok.Kind)
	}
	want := []token.Token{
		token.LPAREN, token.RPAREN, token.LBRACE, token.RBRACE, token.COMMA,
		token.DOT, token.MINUS, token.PLUS, token.SEMI, token.SLASH, token.STAR,
		token.QMARK, token.COLON, token.BANG, token.BANG_EQ, token.EQ, token.EQ_EQ,
		token.LT, token.LT_EQ, token.GT, token.GT_EQ, token.EOF,
	}
	require.Equal(t, want, kinds)
}

func TestScanKeywordsAndIdentifiers(t *testing.T) {
	toks := scanAll("and class else false for fun if nil or print return super this true var while assert foo _bar baz123")
	require.Equal(t, token.AND, toks[0].Kind)
	require.Equal(t, token.WHILE, toks[15].Kind)
	require.Equal(t, token.ASSERT, toks[16].Kind)
	require.Equal(t, token.IDENT, toks[17].Kind)
	require.Equal(t, "foo", toks[17].Lexeme)
	require.Equal(t, token.IDENT, toks[18].Kind)
	require.Equal(t, "_bar", toks[18].Lexeme)
	require.Equal(t, token.IDENT, toks[19].Kind)
	require.Equal(t, "baz123", toks[19].Lexeme)
}

func TestScanNumbers(t *testing.T) {
	toks := scanAll("123 1.23 4.")
	require.Equal(t, token.NUMBER, toks[0].Kind)
	require.Equal(t, "123", toks[0].Lexeme)
	require.Equal(t, token.NUMBER, toks[1].Kind)
	require.Equal(t, "1.23", toks[1].Lexeme)
	// "4." has a trailing dot NOT followed by a digit: the dot is a
	// separate DOT token, not part of the number.
	require.Equal(t, token.NUMBER, toks[2].Kind)
	require.Equal(t, "4", toks[2].Lexeme)
	require.Equal(t, token.DOT, toks[3].Kind)
}

func TestScanStrings(t *testing.T) {
	toks := scanAll(`"hello world" "unterminated`)
	require.Equal(t, token.STRING, toks[0].Kind)
	require.Equal(t, `"hello world"`, toks[0].Lexeme)
	require.Equal(t, token.ERROR, toks[1].Kind)
	require.Equal(t, "Unterminated string.", toks[1].Lexeme)
}

func TestScanSkipsCommentsAndWhitespace(t *testing.T) {
	toks := scanAll("// a comment\n  \t print // trailing\n 1;")
	require.Equal(t, token.PRINT, toks[0].Kind)
	require.Equal(t, 2, toks[0].Line)
	require.Equal(t, token.NUMBER, toks[1].Kind)
	require.Equal(t, 3, toks[1].Line)
}

func TestScanUnexpectedCharacter(t *testing.T) {
	toks := scanAll("@")
	require.Equal(t, token.ERROR, toks[0].Kind)
	require.Equal(t, "Unexpected character.", toks[0].Lexeme)
}

func TestScanEmptySourceReturnsEOF(t *testing.T) {
	toks := scanAll("")
	require.Len(t, toks, 1)
	require.Equal(t, token.EOF, toks[0].Kind)
}
