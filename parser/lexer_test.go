package parser

import "testing"

func TestNextToken(t *testing.T) {
	input := `int x = 42;
double y = 3.14;
if (x >= 10 && y != 0) { x++; }
s[0] = 'a';
p->field;
Point::norm
// a comment
/* block */ x <<= ~0
"hi\n"`

	tests := []struct {
		typ   TokenType
		value string
	}{
		{TOKEN_INT_KW, "int"},
		{TOKEN_IDENTIFIER, "x"},
		{TOKEN_ASSIGN, "="},
		{TOKEN_INT, "42"},
		{TOKEN_SEMICOLON, ";"},
		{TOKEN_DOUBLE, "double"},
		{TOKEN_IDENTIFIER, "y"},
		{TOKEN_ASSIGN, "="},
		{TOKEN_FLOAT, "3.14"},
		{TOKEN_SEMICOLON, ";"},
		{TOKEN_IF, "if"},
		{TOKEN_LPAREN, "("},
		{TOKEN_IDENTIFIER, "x"},
		{TOKEN_GE, ">="},
		{TOKEN_INT, "10"},
		{TOKEN_AND, "&&"},
		{TOKEN_IDENTIFIER, "y"},
		{TOKEN_NE, "!="},
		{TOKEN_INT, "0"},
		{TOKEN_RPAREN, ")"},
		{TOKEN_LBRACE, "{"},
		{TOKEN_IDENTIFIER, "x"},
		{TOKEN_INCR, "++"},
		{TOKEN_SEMICOLON, ";"},
		{TOKEN_RBRACE, "}"},
		{TOKEN_IDENTIFIER, "s"},
		{TOKEN_LBRACKET, "["},
		{TOKEN_INT, "0"},
		{TOKEN_RBRACKET, "]"},
		{TOKEN_ASSIGN, "="},
		{TOKEN_CHAR, "a"},
		{TOKEN_SEMICOLON, ";"},
		{TOKEN_IDENTIFIER, "p"},
		{TOKEN_ARROW, "->"},
		{TOKEN_IDENTIFIER, "field"},
		{TOKEN_SEMICOLON, ";"},
		{TOKEN_IDENTIFIER, "Point"},
		{TOKEN_SCOPE, "::"},
		{TOKEN_IDENTIFIER, "norm"},
		{TOKEN_IDENTIFIER, "x"},
		{TOKEN_LSHIFT, "<<"},
		{TOKEN_ASSIGN, "="},
		{TOKEN_TILDE, "~"},
		{TOKEN_INT, "0"},
		{TOKEN_STRING, "hi\n"},
		{TOKEN_EOF, ""},
	}

	l := NewLexer(input)
	for i, tt := range tests {
		tok := l.NextToken()
		if tok.Type != tt.typ {
			t.Fatalf("token %d: expected type %s, got %s (%q)", i, tt.typ, tok.Type, tok.Value)
		}
		if tok.Value != tt.value {
			t.Fatalf("token %d: expected value %q, got %q", i, tt.value, tok.Value)
		}
	}
}

func TestKeywords(t *testing.T) {
	tests := []struct {
		ident string
		typ   TokenType
	}{
		{"while", TOKEN_WHILE},
		{"return", TOKEN_RETURN},
		{"unsigned", TOKEN_UNSIGNED},
		{"NULL", TOKEN_NULL},
		{"this", TOKEN_THIS},
		{"whileish", TOKEN_IDENTIFIER},
		{"null", TOKEN_IDENTIFIER},
	}
	for _, tt := range tests {
		if got := LookupIdent(tt.ident); got != tt.typ {
			t.Errorf("LookupIdent(%q) = %s, want %s", tt.ident, got, tt.typ)
		}
	}
}

func TestNumberForms(t *testing.T) {
	tests := []struct {
		input string
		typ   TokenType
	}{
		{"0", TOKEN_INT},
		{"123", TOKEN_INT},
		{"1.5", TOKEN_FLOAT},
		{"1e3", TOKEN_FLOAT},
		{"2.5e-2", TOKEN_FLOAT},
		{"0x1f", TOKEN_INT},
	}
	for _, tt := range tests {
		tok := NewLexer(tt.input).NextToken()
		if tok.Type != tt.typ {
			t.Errorf("%q: expected %s, got %s", tt.input, tt.typ, tok.Type)
		}
	}
}

func TestLinePositions(t *testing.T) {
	l := NewLexer("a\nbb\n  c")
	a := l.NextToken()
	b := l.NextToken()
	c := l.NextToken()
	if a.Position.Line != 1 || b.Position.Line != 2 || c.Position.Line != 3 {
		t.Errorf("line positions: got %d, %d, %d", a.Position.Line, b.Position.Line, c.Position.Line)
	}
	if c.Position.Column != 3 {
		t.Errorf("column of c: got %d, want 3", c.Position.Column)
	}
}
