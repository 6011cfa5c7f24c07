package parser

// Lexer tokenizes preprocessed source text
type Lexer struct {
	input        string
	position     int  // current position in input (points to current char)
	readPosition int  // current reading position in input (after current char)
	ch           byte // current char under examination
	line         int
	column       int
}

// NewLexer creates a new Lexer instance
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input:  input,
		line:   1,
		column: 0,
	}
	l.readChar()
	return l
}

// readChar reads the next character and advances position
func (l *Lexer) readChar() {
	if l.readPosition >= len(l.input) {
		l.ch = 0 // ASCII NUL
	} else {
		l.ch = l.input[l.readPosition]
	}
	l.position = l.readPosition
	l.readPosition++
	l.column++
	if l.ch == '\n' {
		l.line++
		l.column = 0
	}
}

// peekChar returns the next character without advancing
func (l *Lexer) peekChar() byte {
	if l.readPosition >= len(l.input) {
		return 0
	}
	return l.input[l.readPosition]
}

// skipWhitespace skips over whitespace characters
func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
		l.readChar()
	}
}

// skipComments skips over // line comments and /* block comments
func (l *Lexer) skipComments() {
	for {
		l.skipWhitespace()
		if l.ch == '/' && l.peekChar() == '/' {
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
			continue
		}
		if l.ch == '/' && l.peekChar() == '*' {
			l.readChar() // consume '/'
			l.readChar() // consume '*'
			for l.ch != 0 {
				if l.ch == '*' && l.peekChar() == '/' {
					l.readChar()
					l.readChar()
					break
				}
				l.readChar()
			}
			continue
		}
		return
	}
}

// NextToken returns the next token from the input
func (l *Lexer) NextToken() Token {
	var tok Token

	l.skipComments()

	tok.Position = Position{
		Line:   l.line,
		Column: l.column,
		Offset: l.position,
	}

	switch l.ch {
	case 0:
		tok.Type = TOKEN_EOF
		tok.Value = ""
	case '(':
		tok = l.single(TOKEN_LPAREN)
	case ')':
		tok = l.single(TOKEN_RPAREN)
	case '{':
		tok = l.single(TOKEN_LBRACE)
	case '}':
		tok = l.single(TOKEN_RBRACE)
	case '[':
		tok = l.single(TOKEN_LBRACKET)
	case ']':
		tok = l.single(TOKEN_RBRACKET)
	case ',':
		tok = l.single(TOKEN_COMMA)
	case ';':
		tok = l.single(TOKEN_SEMICOLON)
	case '?':
		tok = l.single(TOKEN_QUESTION)
	case '~':
		tok = l.single(TOKEN_TILDE)
	case '.':
		if isDigit(l.peekChar()) {
			return l.readNumber()
		}
		tok = l.single(TOKEN_DOT)
	case ':':
		if l.peekChar() == ':' {
			tok = l.double(TOKEN_SCOPE, "::")
		} else {
			tok = l.single(TOKEN_COLON)
		}
	case '+':
		switch l.peekChar() {
		case '+':
			tok = l.double(TOKEN_INCR, "++")
		case '=':
			tok = l.double(TOKEN_PLUS_ASSIGN, "+=")
		default:
			tok = l.single(TOKEN_PLUS)
		}
	case '-':
		switch l.peekChar() {
		case '-':
			tok = l.double(TOKEN_DECR, "--")
		case '=':
			tok = l.double(TOKEN_MINUS_ASSIGN, "-=")
		case '>':
			tok = l.double(TOKEN_ARROW, "->")
		default:
			tok = l.single(TOKEN_MINUS)
		}
	case '*':
		if l.peekChar() == '=' {
			tok = l.double(TOKEN_STAR_ASSIGN, "*=")
		} else {
			tok = l.single(TOKEN_STAR)
		}
	case '/':
		if l.peekChar() == '=' {
			tok = l.double(TOKEN_SLASH_ASSIGN, "/=")
		} else {
			tok = l.single(TOKEN_SLASH)
		}
	case '%':
		if l.peekChar() == '=' {
			tok = l.double(TOKEN_PERCENT_ASSIGN, "%=")
		} else {
			tok = l.single(TOKEN_PERCENT)
		}
	case '=':
		if l.peekChar() == '=' {
			tok = l.double(TOKEN_EQ, "==")
		} else {
			tok = l.single(TOKEN_ASSIGN)
		}
	case '!':
		if l.peekChar() == '=' {
			tok = l.double(TOKEN_NE, "!=")
		} else {
			tok = l.single(TOKEN_NOT)
		}
	case '<':
		switch l.peekChar() {
		case '=':
			tok = l.double(TOKEN_LE, "<=")
		case '<':
			tok = l.double(TOKEN_LSHIFT, "<<")
		default:
			tok = l.single(TOKEN_LT)
		}
	case '>':
		switch l.peekChar() {
		case '=':
			tok = l.double(TOKEN_GE, ">=")
		case '>':
			tok = l.double(TOKEN_RSHIFT, ">>")
		default:
			tok = l.single(TOKEN_GT)
		}
	case '&':
		if l.peekChar() == '&' {
			tok = l.double(TOKEN_AND, "&&")
		} else {
			tok = l.single(TOKEN_AMP)
		}
	case '|':
		if l.peekChar() == '|' {
			tok = l.double(TOKEN_OR, "||")
		} else {
			tok = l.single(TOKEN_PIPE)
		}
	case '^':
		tok = l.single(TOKEN_CARET)
	case '"':
		return l.readString()
	case '\'':
		return l.readCharLiteral()
	default:
		if isLetter(l.ch) {
			return l.readIdentifier()
		}
		if isDigit(l.ch) {
			return l.readNumber()
		}
		tok.Type = TOKEN_ILLEGAL
		tok.Value = string(l.ch)
		l.readChar()
	}

	tok.Position.Line = l.line
	if tok.Position.Line == 0 {
		tok.Position.Line = 1
	}
	return tok
}

// single consumes the current char as a one-character token
func (l *Lexer) single(t TokenType) Token {
	tok := Token{
		Type:     t,
		Value:    string(l.ch),
		Position: Position{Line: l.line, Column: l.column, Offset: l.position},
	}
	l.readChar()
	return tok
}

// double consumes a two-character token
func (l *Lexer) double(t TokenType, value string) Token {
	tok := Token{
		Type:     t,
		Value:    value,
		Position: Position{Line: l.line, Column: l.column, Offset: l.position},
	}
	l.readChar()
	l.readChar()
	return tok
}

// readIdentifier reads an identifier or keyword
func (l *Lexer) readIdentifier() Token {
	pos := Position{Line: l.line, Column: l.column, Offset: l.position}
	start := l.position
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	value := l.input[start:l.position]
	return Token{
		Type:     LookupIdent(value),
		Value:    value,
		Position: pos,
	}
}

// readNumber reads an integer or floating-point literal, including
// hex integers (0x...) and exponent forms (1.5e3)
func (l *Lexer) readNumber() Token {
	pos := Position{Line: l.line, Column: l.column, Offset: l.position}
	start := l.position
	isFloat := false

	if l.ch == '0' && (l.peekChar() == 'x' || l.peekChar() == 'X') {
		l.readChar()
		l.readChar()
		for isHexDigit(l.ch) {
			l.readChar()
		}
		return Token{Type: TOKEN_INT, Value: l.input[start:l.position], Position: pos}
	}

	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		isFloat = true
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	} else if l.ch == '.' && !isLetter(l.peekChar()) && l.peekChar() != '.' {
		// trailing dot: "46." is a float literal
		isFloat = true
		l.readChar()
	}
	if l.ch == 'e' || l.ch == 'E' {
		next := l.peekChar()
		if isDigit(next) || next == '+' || next == '-' {
			isFloat = true
			l.readChar()
			if l.ch == '+' || l.ch == '-' {
				l.readChar()
			}
			for isDigit(l.ch) {
				l.readChar()
			}
		}
	}
	// type suffixes are consumed and ignored (1L, 2.5f)
	if l.ch == 'l' || l.ch == 'L' {
		value := l.input[start:l.position]
		l.readChar()
		return Token{Type: TOKEN_INT, Value: value, Position: pos}
	}
	if l.ch == 'f' || l.ch == 'F' {
		value := l.input[start:l.position]
		l.readChar()
		return Token{Type: TOKEN_FLOAT, Value: value, Position: pos}
	}

	t := TOKEN_INT
	if isFloat {
		t = TOKEN_FLOAT
	}
	return Token{Type: t, Value: l.input[start:l.position], Position: pos}
}

// readString reads a double-quoted string literal with escape sequences
func (l *Lexer) readString() Token {
	pos := Position{Line: l.line, Column: l.column, Offset: l.position}
	l.readChar() // consume opening quote

	var out []byte
	for l.ch != '"' && l.ch != 0 {
		if l.ch == '\\' {
			l.readChar()
			out = append(out, unescape(l.ch))
		} else {
			out = append(out, l.ch)
		}
		l.readChar()
	}
	if l.ch == 0 {
		return Token{Type: TOKEN_ILLEGAL, Value: "unterminated string", Position: pos}
	}
	l.readChar() // consume closing quote
	return Token{Type: TOKEN_STRING, Value: string(out), Position: pos}
}

// readCharLiteral reads a single-quoted character literal
func (l *Lexer) readCharLiteral() Token {
	pos := Position{Line: l.line, Column: l.column, Offset: l.position}
	l.readChar() // consume opening quote

	var c byte
	if l.ch == '\\' {
		l.readChar()
		c = unescape(l.ch)
	} else {
		c = l.ch
	}
	l.readChar()
	if l.ch != '\'' {
		return Token{Type: TOKEN_ILLEGAL, Value: "unterminated character literal", Position: pos}
	}
	l.readChar() // consume closing quote
	return Token{Type: TOKEN_CHAR, Value: string(c), Position: pos}
}

// unescape maps an escape character to its byte value
func unescape(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	case '0':
		return 0
	case 'a':
		return 7
	case 'b':
		return 8
	case 'f':
		return 12
	case 'v':
		return 11
	default:
		return c
	}
}

func isLetter(ch byte) bool {
	return 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z' || ch == '_'
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

func isHexDigit(ch byte) bool {
	return isDigit(ch) || 'a' <= ch && ch <= 'f' || 'A' <= ch && ch <= 'F'
}
