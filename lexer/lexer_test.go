package lexer

import (
	"reflect"
	"testing"

	"lumen/token"
)

func kinds(tokens []token.Token) []token.TokenType {
	out := make([]token.TokenType, len(tokens))
	for i, tok := range tokens {
		out[i] = tok.TokenType
	}
	return out
}

func TestOperators(t *testing.T) {
	tokens := New("t.lumen", "== != <= >= < > + - * / % = ! && ||").Scan()

	want := []token.TokenType{
		token.EQUAL_EQUAL, token.NOT_EQUAL, token.LESS_EQUAL, token.LARGER_EQUAL,
		token.LESS, token.LARGER, token.ADD, token.SUB, token.MULT, token.DIV,
		token.MOD, token.ASSIGN, token.BANG, token.LOGICAL_AND, token.LOGICAL_OR,
		token.EOF,
	}
	if got := kinds(tokens); !reflect.DeepEqual(got, want) {
		t.Errorf("kinds = %v, want %v", got, want)
	}
}

func TestPunctuation(t *testing.T) {
	tokens := New("t.lumen", "(){}[],;:").Scan()

	want := []token.TokenType{
		token.LPA, token.RPA, token.LCUR, token.RCUR, token.LARR, token.RARR,
		token.COMMA, token.SEMICOLON, token.COLON, token.EOF,
	}
	if got := kinds(tokens); !reflect.DeepEqual(got, want) {
		t.Errorf("kinds = %v, want %v", got, want)
	}
}

func TestKeywordsAndIdentifiers(t *testing.T) {
	tokens := New("t.lumen", "let x = fun(y) { return y; }").Scan()

	want := []token.TokenType{
		token.VAR, token.IDENTIFIER, token.ASSIGN, token.FUNC, token.LPA,
		token.IDENTIFIER, token.RPA, token.LCUR, token.RETURN, token.IDENTIFIER,
		token.SEMICOLON, token.RCUR, token.EOF,
	}
	if got := kinds(tokens); !reflect.DeepEqual(got, want) {
		t.Errorf("kinds = %v, want %v", got, want)
	}
}

func TestNumbers(t *testing.T) {
	tokens := New("t.lumen", "42 3.5").Scan()

	if tokens[0].TokenType != token.INT || tokens[0].Literal != int64(42) {
		t.Errorf("tokens[0] = %+v, want INT 42", tokens[0])
	}
	if tokens[1].TokenType != token.FLOAT || tokens[1].Literal != 3.5 {
		t.Errorf("tokens[1] = %+v, want FLOAT 3.5", tokens[1])
	}
}

func TestStringLiteralEscapesAndDelimiters(t *testing.T) {
	tokens := New("t.lumen", `"a\nb" 'c\'d'`).Scan()

	if tokens[0].TokenType != token.STRING || tokens[0].Literal != "a\nb" {
		t.Errorf("tokens[0] = %+v, want STRING \"a\\nb\"", tokens[0])
	}
	if tokens[1].TokenType != token.STRING || tokens[1].Literal != "c'd" {
		t.Errorf("tokens[1] = %+v, want STRING \"c'd\"", tokens[1])
	}
}

func TestUnknownEscapePassesThroughLiterally(t *testing.T) {
	tokens := New("t.lumen", `"\q"`).Scan()

	if tokens[0].Literal != "q" {
		t.Errorf("tokens[0].Literal = %q, want %q", tokens[0].Literal, "q")
	}
}

func TestUnterminatedStringIsIllegal(t *testing.T) {
	tokens := New("t.lumen", `"abc`).Scan()

	if tokens[0].TokenType != token.ILLEGAL {
		t.Errorf("tokens[0].TokenType = %v, want ILLEGAL", tokens[0].TokenType)
	}
}

func TestLineComment(t *testing.T) {
	tokens := New("t.lumen", "1 // comment\n2").Scan()

	want := []token.TokenType{token.INT, token.INT, token.EOF}
	if got := kinds(tokens); !reflect.DeepEqual(got, want) {
		t.Errorf("kinds = %v, want %v", got, want)
	}
}

func TestBlockComment(t *testing.T) {
	tokens := New("t.lumen", "1 /* multi\nline */ 2").Scan()

	want := []token.TokenType{token.INT, token.INT, token.EOF}
	if got := kinds(tokens); !reflect.DeepEqual(got, want) {
		t.Errorf("kinds = %v, want %v", got, want)
	}
	if tokens[1].Line != 2 {
		t.Errorf("tokens[1].Line = %d, want 2 (block comment should advance the line count)", tokens[1].Line)
	}
}

func TestLoneAmpersandAndPipeAreIllegal(t *testing.T) {
	tokens := New("t.lumen", "& |").Scan()

	want := []token.TokenType{token.ILLEGAL, token.ILLEGAL, token.EOF}
	if got := kinds(tokens); !reflect.DeepEqual(got, want) {
		t.Errorf("kinds = %v, want %v", got, want)
	}
}

func TestPathIsStampedOnEveryToken(t *testing.T) {
	tokens := New("foo.lumen", "1").Scan()

	for _, tok := range tokens {
		if tok.Path != "foo.lumen" {
			t.Errorf("tok.Path = %q, want %q", tok.Path, "foo.lumen")
		}
	}
}
