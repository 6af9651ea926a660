package lexer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seraphic/internal/source"
)

func TestKeywordsAndIdentifiers(t *testing.T) {
	input := "fn let const mut struct enum impl use if else while for in match return break continue as persist aether recover myIdent"
	expected := []TokenType{
		FN, LET, CONST, MUT, STRUCT, ENUM, IMPL, USE, IF, ELSE, WHILE, FOR,
		IN, MATCH, RETURN, BREAK, CONTINUE, AS, PERSIST, AETHER, RECOVER,
		IDENTIFIER,
	}

	tokens, diags := Tokenize("test.sph", input)
	require.False(t, diags.HasErrors())
	require.GreaterOrEqual(t, len(tokens), len(expected))
	for i, exp := range expected {
		assert.Equal(t, exp, tokens[i].Type, "token %d", i)
	}
	assert.Equal(t, EOF, tokens[len(tokens)-1].Type)
}

func TestIntegerLiterals(t *testing.T) {
	cases := []struct {
		input  string
		value  uint64
		suffix Suffix
	}{
		{"42", 42, SuffixNone},
		{"0", 0, SuffixNone},
		{"0x1F", 31, SuffixNone},
		{"0b1010", 10, SuffixNone},
		{"0o777", 511, SuffixNone},
		{"1_000_000", 1000000, SuffixNone},
		{"255u8", 255, SuffixU8},
		{"7i32", 7, SuffixI32},
		{"9u", 9, SuffixU},
		{"0xFF_FFu64", 65535, SuffixU64},
	}
	for _, tc := range cases {
		tokens, diags := Tokenize("test.sph", tc.input)
		require.False(t, diags.HasErrors(), "input %q: %v", tc.input, diags.All())
		require.Equal(t, INT, tokens[0].Type, "input %q", tc.input)
		assert.Equal(t, tc.value, tokens[0].Int, "input %q", tc.input)
		assert.Equal(t, tc.suffix, tokens[0].Suffix, "input %q", tc.input)
	}
}

func TestFloatLiterals(t *testing.T) {
	cases := []struct {
		input string
		value float64
	}{
		{"3.25", 3.25},
		{"1e3", 1000},
		{"2.5e-1", 0.25},
		{"4s", 4},
		{"1.5d", 1.5},
	}
	for _, tc := range cases {
		tokens, diags := Tokenize("test.sph", tc.input)
		require.False(t, diags.HasErrors(), "input %q", tc.input)
		require.Equal(t, FLOAT, tokens[0].Type, "input %q", tc.input)
		assert.InDelta(t, tc.value, tokens[0].Float, 1e-9, "input %q", tc.input)
	}
}

func TestMalformedNumberSuffix(t *testing.T) {
	_, diags := Tokenize("test.sph", "123abc")
	assert.True(t, diags.HasErrors())
}

func TestOperators(t *testing.T) {
	input := "?? !! + - * / % == != <= >= < > && || & | ^ ~ << >> = += -= *= /= %= &= |= ^= -> => :: .. ..= ( ) { } [ ] ; , : . @ #"
	expected := []TokenType{
		QUESTION_QUESTION, BANG_BANG, PLUS, MINUS, STAR, SLASH, PERCENT,
		EQUAL_EQUAL, BANG_EQUAL, LESS_EQUAL, GREATER_EQUAL, LESS, GREATER,
		AND_AND, OR_OR, AMPERSAND, PIPE, CARET, TILDE, SHIFT_LEFT, SHIFT_RIGHT,
		EQUAL, PLUS_EQUAL, MINUS_EQUAL, STAR_EQUAL, SLASH_EQUAL, PERCENT_EQUAL,
		AMP_EQUAL, PIPE_EQUAL, CARET_EQUAL,
		ARROW, FAT_ARROW, DOUBLE_COLON, DOT_DOT, DOT_DOT_EQUAL,
		LEFT_PAREN, RIGHT_PAREN, LEFT_BRACE, RIGHT_BRACE, LEFT_BRACKET, RIGHT_BRACKET,
		SEMICOLON, COMMA, COLON, DOT, AT, POUND,
	}

	tokens, diags := Tokenize("test.sph", input)
	require.False(t, diags.HasErrors())
	require.GreaterOrEqual(t, len(tokens), len(expected))
	for i, exp := range expected {
		assert.Equal(t, exp, tokens[i].Type, "token %d (%s)", i, tokens[i].Lexeme)
	}
}

func TestStringsAndChars(t *testing.T) {
	tokens, diags := Tokenize("test.sph", `"hello\n" 'a' '\n' '\t'`)
	require.False(t, diags.HasErrors())
	require.Equal(t, STRING, tokens[0].Type)
	// Escapes stay raw in the token; lowering expands them.
	assert.Equal(t, `hello\n`, tokens[0].Str)
	assert.Equal(t, byte('a'), tokens[1].Ch)
	assert.Equal(t, byte('\n'), tokens[2].Ch)
	assert.Equal(t, byte('\t'), tokens[3].Ch)
}

func TestUnknownEscapeWarns(t *testing.T) {
	tokens, diags := Tokenize("test.sph", `'\q'`)
	assert.False(t, diags.HasErrors())
	assert.Equal(t, 1, diags.WarningCount())
	assert.Equal(t, byte('q'), tokens[0].Ch)
}

func TestNestedBlockComments(t *testing.T) {
	tokens, diags := Tokenize("test.sph", "a /* outer /* inner */ still comment */ b")
	require.False(t, diags.HasErrors())
	require.GreaterOrEqual(t, len(tokens), 3)
	assert.Equal(t, "a", tokens[0].Lexeme)
	assert.Equal(t, "b", tokens[1].Lexeme)
}

func TestUnterminatedBlockComment(t *testing.T) {
	_, diags := Tokenize("test.sph", "x /* never closed")
	require.Equal(t, 1, diags.ErrorCount())
	d := diags.Recent()
	assert.Equal(t, source.ErrUnterminatedComment, d.Code)
	// Error is located at the opener.
	assert.Equal(t, 3, d.Pos.Column)
}

func TestUnterminatedString(t *testing.T) {
	_, diags := Tokenize("test.sph", "\"no end\nfn")
	assert.True(t, diags.HasErrors())
}

func TestUnknownByteRecovers(t *testing.T) {
	tokens, diags := Tokenize("test.sph", "a $ b")
	assert.Equal(t, 1, diags.ErrorCount())
	// Stream is complete regardless.
	require.GreaterOrEqual(t, len(tokens), 3)
	assert.Equal(t, "a", tokens[0].Lexeme)
	assert.Equal(t, "b", tokens[1].Lexeme)
}

// Concatenating lexemes of the emitted tokens reproduces the non-whitespace
// bytes of a comment-free source.
func TestLexemeRoundTrip(t *testing.T) {
	input := "fn main() -> i64 { let x = 0x2A; return x * 2; }"
	tokens, diags := Tokenize("test.sph", input)
	require.False(t, diags.HasErrors())

	var got strings.Builder
	for _, tok := range tokens {
		got.WriteString(tok.Lexeme)
	}
	want := strings.NewReplacer(" ", "", "\t", "", "\n", "", "\r", "").Replace(input)
	assert.Equal(t, want, got.String())
}

// Offsets advance monotonically over a large input: no re-scanning.
func TestMonotonicOffsets(t *testing.T) {
	input := strings.Repeat("let x = 42;\n", 8000)
	tokens, diags := Tokenize("big.sph", input)
	require.False(t, diags.HasErrors())
	last := -1
	for _, tok := range tokens {
		require.Greater(t, tok.Pos.Offset, last)
		last = tok.Pos.Offset
	}
}

func TestNextTokenMatchesScan(t *testing.T) {
	input := "fn f() { return 1 + 2; }"
	all, _ := Tokenize("test.sph", input)

	s := NewScanner("test.sph", input, source.NewList())
	var streamed []Token
	for {
		tok := s.NextToken()
		streamed = append(streamed, tok)
		if tok.Type == EOF {
			break
		}
	}
	require.Equal(t, len(all), len(streamed))
	for i := range all {
		assert.Equal(t, all[i].Type, streamed[i].Type)
	}
}

func TestEmptySource(t *testing.T) {
	tokens, diags := Tokenize("empty.sph", "")
	require.False(t, diags.HasErrors())
	require.Len(t, tokens, 1)
	assert.Equal(t, EOF, tokens[0].Type)
}
