package parser

// TokenType represents different types of lexical tokens
type TokenType int

const (
	// Special tokens
	TOKEN_EOF TokenType = iota
	TOKEN_ILLEGAL

	// Literals
	TOKEN_INT    // 42
	TOKEN_FLOAT  // 3.14
	TOKEN_STRING // "hello"
	TOKEN_CHAR   // 'a'

	// Type keywords
	TOKEN_VOID
	TOKEN_BOOL
	TOKEN_CHAR_KW
	TOKEN_INT_KW
	TOKEN_LONG
	TOKEN_FLOAT_KW
	TOKEN_DOUBLE
	TOKEN_CONST
	TOKEN_UNSIGNED
	TOKEN_EXTERN

	// Statement keywords
	TOKEN_IF
	TOKEN_ELSE
	TOKEN_WHILE
	TOKEN_FOR
	TOKEN_DO
	TOKEN_RETURN
	TOKEN_BREAK
	TOKEN_CONTINUE
	TOKEN_CLASS
	TOKEN_STRUCT
	TOKEN_PUBLIC
	TOKEN_PRIVATE
	TOKEN_TRUE
	TOKEN_FALSE
	TOKEN_NULL
	TOKEN_THIS

	// Identifiers
	TOKEN_IDENTIFIER

	// Operators
	TOKEN_PLUS    // +
	TOKEN_MINUS   // -
	TOKEN_STAR    // *
	TOKEN_SLASH   // /
	TOKEN_PERCENT // %

	TOKEN_EQ // ==
	TOKEN_NE // !=
	TOKEN_LT // <
	TOKEN_GT // >
	TOKEN_LE // <=
	TOKEN_GE // >=

	TOKEN_AND // &&
	TOKEN_OR  // ||
	TOKEN_NOT // !

	TOKEN_AMP    // &
	TOKEN_PIPE   // |
	TOKEN_CARET  // ^
	TOKEN_TILDE  // ~
	TOKEN_LSHIFT // <<
	TOKEN_RSHIFT // >>

	TOKEN_ASSIGN         // =
	TOKEN_PLUS_ASSIGN    // +=
	TOKEN_MINUS_ASSIGN   // -=
	TOKEN_STAR_ASSIGN    // *=
	TOKEN_SLASH_ASSIGN   // /=
	TOKEN_PERCENT_ASSIGN // %=
	TOKEN_INCR           // ++
	TOKEN_DECR           // --

	TOKEN_QUESTION // ?
	TOKEN_COLON    // :
	TOKEN_SCOPE    // ::
	TOKEN_ARROW    // ->
	TOKEN_DOT      // .

	// Delimiters
	TOKEN_LPAREN    // (
	TOKEN_RPAREN    // )
	TOKEN_LBRACE    // {
	TOKEN_RBRACE    // }
	TOKEN_LBRACKET  // [
	TOKEN_RBRACKET  // ]
	TOKEN_COMMA     // ,
	TOKEN_SEMICOLON // ;
)

// tokenNames maps token types to display names for diagnostics
var tokenNames = map[TokenType]string{
	TOKEN_EOF:            "EOF",
	TOKEN_ILLEGAL:        "ILLEGAL",
	TOKEN_INT:            "INT",
	TOKEN_FLOAT:          "FLOAT",
	TOKEN_STRING:         "STRING",
	TOKEN_CHAR:           "CHAR",
	TOKEN_VOID:           "void",
	TOKEN_BOOL:           "bool",
	TOKEN_CHAR_KW:        "char",
	TOKEN_INT_KW:         "int",
	TOKEN_LONG:           "long",
	TOKEN_FLOAT_KW:       "float",
	TOKEN_DOUBLE:         "double",
	TOKEN_CONST:          "const",
	TOKEN_UNSIGNED:       "unsigned",
	TOKEN_EXTERN:         "extern",
	TOKEN_IF:             "if",
	TOKEN_ELSE:           "else",
	TOKEN_WHILE:          "while",
	TOKEN_FOR:            "for",
	TOKEN_DO:             "do",
	TOKEN_RETURN:         "return",
	TOKEN_BREAK:          "break",
	TOKEN_CONTINUE:       "continue",
	TOKEN_CLASS:          "class",
	TOKEN_STRUCT:         "struct",
	TOKEN_PUBLIC:         "public",
	TOKEN_PRIVATE:        "private",
	TOKEN_TRUE:           "true",
	TOKEN_FALSE:          "false",
	TOKEN_NULL:           "NULL",
	TOKEN_THIS:           "this",
	TOKEN_IDENTIFIER:     "IDENTIFIER",
	TOKEN_PLUS:           "+",
	TOKEN_MINUS:          "-",
	TOKEN_STAR:           "*",
	TOKEN_SLASH:          "/",
	TOKEN_PERCENT:        "%",
	TOKEN_EQ:             "==",
	TOKEN_NE:             "!=",
	TOKEN_LT:             "<",
	TOKEN_GT:             ">",
	TOKEN_LE:             "<=",
	TOKEN_GE:             ">=",
	TOKEN_AND:            "&&",
	TOKEN_OR:             "||",
	TOKEN_NOT:            "!",
	TOKEN_AMP:            "&",
	TOKEN_PIPE:           "|",
	TOKEN_CARET:          "^",
	TOKEN_TILDE:          "~",
	TOKEN_LSHIFT:         "<<",
	TOKEN_RSHIFT:         ">>",
	TOKEN_ASSIGN:         "=",
	TOKEN_PLUS_ASSIGN:    "+=",
	TOKEN_MINUS_ASSIGN:   "-=",
	TOKEN_STAR_ASSIGN:    "*=",
	TOKEN_SLASH_ASSIGN:   "/=",
	TOKEN_PERCENT_ASSIGN: "%=",
	TOKEN_INCR:           "++",
	TOKEN_DECR:           "--",
	TOKEN_QUESTION:       "?",
	TOKEN_COLON:          ":",
	TOKEN_SCOPE:          "::",
	TOKEN_ARROW:          "->",
	TOKEN_DOT:            ".",
	TOKEN_LPAREN:         "(",
	TOKEN_RPAREN:         ")",
	TOKEN_LBRACE:         "{",
	TOKEN_RBRACE:         "}",
	TOKEN_LBRACKET:       "[",
	TOKEN_RBRACKET:       "]",
	TOKEN_COMMA:          ",",
	TOKEN_SEMICOLON:      ";",
}

// String returns the display name of a token type
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}

// keywords maps identifier spellings to keyword token types
var keywords = map[string]TokenType{
	"void":     TOKEN_VOID,
	"bool":     TOKEN_BOOL,
	"char":     TOKEN_CHAR_KW,
	"int":      TOKEN_INT_KW,
	"long":     TOKEN_LONG,
	"float":    TOKEN_FLOAT_KW,
	"double":   TOKEN_DOUBLE,
	"const":    TOKEN_CONST,
	"unsigned": TOKEN_UNSIGNED,
	"extern":   TOKEN_EXTERN,
	"if":       TOKEN_IF,
	"else":     TOKEN_ELSE,
	"while":    TOKEN_WHILE,
	"for":      TOKEN_FOR,
	"do":       TOKEN_DO,
	"return":   TOKEN_RETURN,
	"break":    TOKEN_BREAK,
	"continue": TOKEN_CONTINUE,
	"class":    TOKEN_CLASS,
	"struct":   TOKEN_STRUCT,
	"public":   TOKEN_PUBLIC,
	"private":  TOKEN_PRIVATE,
	"true":     TOKEN_TRUE,
	"false":    TOKEN_FALSE,
	"NULL":     TOKEN_NULL,
	"this":     TOKEN_THIS,
}

// LookupIdent returns the keyword token type for an identifier, or
// TOKEN_IDENTIFIER if it is not a keyword
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return TOKEN_IDENTIFIER
}

// Position represents a position in the source code
type Position struct {
	Line   int
	Column int
	Offset int
}

// Token is one lexical token with its source position
type Token struct {
	Type     TokenType
	Value    string
	Position Position
}

// IsTypeToken reports whether the token can begin a type specifier
func (t Token) IsTypeToken() bool {
	switch t.Type {
	case TOKEN_VOID, TOKEN_BOOL, TOKEN_CHAR_KW, TOKEN_INT_KW, TOKEN_LONG,
		TOKEN_FLOAT_KW, TOKEN_DOUBLE, TOKEN_CONST, TOKEN_UNSIGNED:
		return true
	}
	return false
}

// IsAssignOp reports whether the token is an assignment operator
func (t TokenType) IsAssignOp() bool {
	switch t {
	case TOKEN_ASSIGN, TOKEN_PLUS_ASSIGN, TOKEN_MINUS_ASSIGN,
		TOKEN_STAR_ASSIGN, TOKEN_SLASH_ASSIGN, TOKEN_PERCENT_ASSIGN:
		return true
	}
	return false
}
