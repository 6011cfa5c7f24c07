package parser

import (
	"fmt"
	"strconv"

	"cinder/ctype"
)

// Precedence levels for expression parsing, lowest binds weakest
type Precedence int

const (
	PREC_LOWEST Precedence = iota
	PREC_ASSIGN            // = += -= *= /= %=
	PREC_COND              // ?:
	PREC_OR                // ||
	PREC_AND               // &&
	PREC_BITOR             // |
	PREC_BITXOR            // ^
	PREC_BITAND            // &
	PREC_EQUALITY          // == !=
	PREC_RELATIONAL        // < > <= >=
	PREC_SHIFT             // << >>
	PREC_ADDITIVE          // + -
	PREC_MULTIPLICATIVE    // * / %
	PREC_UNARY             // ! ~ - * & ++x --x (type)x
	PREC_POSTFIX           // () . -> [] x++ x--
)

// precedences maps infix operator tokens to their binding strength
var precedences = map[TokenType]Precedence{
	TOKEN_ASSIGN:         PREC_ASSIGN,
	TOKEN_PLUS_ASSIGN:    PREC_ASSIGN,
	TOKEN_MINUS_ASSIGN:   PREC_ASSIGN,
	TOKEN_STAR_ASSIGN:    PREC_ASSIGN,
	TOKEN_SLASH_ASSIGN:   PREC_ASSIGN,
	TOKEN_PERCENT_ASSIGN: PREC_ASSIGN,
	TOKEN_QUESTION:       PREC_COND,
	TOKEN_OR:             PREC_OR,
	TOKEN_AND:            PREC_AND,
	TOKEN_PIPE:           PREC_BITOR,
	TOKEN_CARET:          PREC_BITXOR,
	TOKEN_AMP:            PREC_BITAND,
	TOKEN_EQ:             PREC_EQUALITY,
	TOKEN_NE:             PREC_EQUALITY,
	TOKEN_LT:             PREC_RELATIONAL,
	TOKEN_GT:             PREC_RELATIONAL,
	TOKEN_LE:             PREC_RELATIONAL,
	TOKEN_GE:             PREC_RELATIONAL,
	TOKEN_LSHIFT:         PREC_SHIFT,
	TOKEN_RSHIFT:         PREC_SHIFT,
	TOKEN_PLUS:           PREC_ADDITIVE,
	TOKEN_MINUS:          PREC_ADDITIVE,
	TOKEN_STAR:           PREC_MULTIPLICATIVE,
	TOKEN_SLASH:          PREC_MULTIPLICATIVE,
	TOKEN_PERCENT:        PREC_MULTIPLICATIVE,
	TOKEN_LPAREN:         PREC_POSTFIX,
	TOKEN_LBRACKET:       PREC_POSTFIX,
	TOKEN_DOT:            PREC_POSTFIX,
	TOKEN_ARROW:          PREC_POSTFIX,
	TOKEN_INCR:           PREC_POSTFIX,
	TOKEN_DECR:           PREC_POSTFIX,
}

// Parser parses preprocessed source text into AST items
type Parser struct {
	lexer     *Lexer
	current   Token
	peek      Token
	typeNames map[string]bool // class names visible to this fragment
}

// NewParser creates a new Parser instance
func NewParser(input string) *Parser {
	p := &Parser{
		lexer:     NewLexer(input),
		typeNames: make(map[string]bool),
	}
	// Read two tokens to initialize current and peek
	p.nextToken()
	p.nextToken()
	return p
}

// AddTypeName registers a class name so declarations using it can be
// distinguished from expressions. The engine seeds this from the
// persistent symbol table; the parser adds names from class
// definitions inside the same fragment.
func (p *Parser) AddTypeName(name string) {
	p.typeNames[name] = true
}

// nextToken advances to the next token
func (p *Parser) nextToken() {
	p.current = p.peek
	p.peek = p.lexer.NextToken()
}

// expect consumes the current token if it matches, else errors
func (p *Parser) expect(t TokenType) error {
	if p.current.Type != t {
		return fmt.Errorf("line %d: expected '%s', got '%s'",
			p.current.Position.Line, t, p.current.Value)
	}
	p.nextToken()
	return nil
}

// precedence returns the binding strength of the current token
func (p *Parser) precedence() Precedence {
	if prec, ok := precedences[p.current.Type]; ok {
		return prec
	}
	return PREC_LOWEST
}

// isTypeStart reports whether the current token can begin a type
// specifier: a builtin type keyword or a known class name.
func (p *Parser) isTypeStart() bool {
	if p.current.IsTypeToken() {
		return true
	}
	return p.current.Type == TOKEN_IDENTIFIER && p.typeNames[p.current.Value]
}

// ParseExpression parses an expression with precedence climbing
func (p *Parser) ParseExpression(prec Precedence) (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for p.current.Type != TOKEN_EOF && prec < p.precedence() {
		switch p.current.Type {
		case TOKEN_LPAREN:
			left, err = p.parseCall(left)
		case TOKEN_LBRACKET:
			left, err = p.parseIndex(left)
		case TOKEN_DOT, TOKEN_ARROW:
			left, err = p.parseMember(left)
		case TOKEN_INCR, TOKEN_DECR:
			left = &UnaryExpr{
				Operator: p.current.Type,
				Operand:  left,
				Postfix:  true,
				Position: p.current.Position,
			}
			p.nextToken()
		case TOKEN_QUESTION:
			left, err = p.parseTernary(left)
		default:
			if p.current.Type.IsAssignOp() {
				left, err = p.parseAssign(left)
			} else {
				left, err = p.parseBinary(left)
			}
		}
		if err != nil {
			return nil, err
		}
	}

	return left, nil
}

// parseBinary parses an infix binary operation
func (p *Parser) parseBinary(left Expr) (Expr, error) {
	op := p.current.Type
	pos := p.current.Position
	prec := p.precedence()
	p.nextToken()

	right, err := p.ParseExpression(prec)
	if err != nil {
		return nil, err
	}
	return &BinaryExpr{Operator: op, Left: left, Right: right, Position: pos}, nil
}

// parseAssign parses plain and compound assignment (right associative)
func (p *Parser) parseAssign(left Expr) (Expr, error) {
	switch left.(type) {
	case *IdentifierExpr, *MemberExpr, *IndexExpr:
	case *UnaryExpr:
		u := left.(*UnaryExpr)
		if u.Operator != TOKEN_STAR || u.Postfix {
			return nil, fmt.Errorf("line %d: invalid assignment target", left.Pos().Line)
		}
	default:
		return nil, fmt.Errorf("line %d: invalid assignment target", left.Pos().Line)
	}

	op := p.current.Type
	pos := p.current.Position
	p.nextToken()

	// right associative: parse at one level below assignment
	value, err := p.ParseExpression(PREC_ASSIGN - 1)
	if err != nil {
		return nil, err
	}
	return &AssignExpr{Operator: op, Target: left, Value: value, Position: pos}, nil
}

// parseTernary parses cond ? then : else
func (p *Parser) parseTernary(cond Expr) (Expr, error) {
	pos := p.current.Position
	p.nextToken() // consume '?'

	thenExpr, err := p.ParseExpression(PREC_LOWEST)
	if err != nil {
		return nil, err
	}
	if err := p.expect(TOKEN_COLON); err != nil {
		return nil, err
	}
	elseExpr, err := p.ParseExpression(PREC_COND - 1)
	if err != nil {
		return nil, err
	}
	return &CondExpr{Cond: cond, Then: thenExpr, Else: elseExpr, Position: pos}, nil
}

// parseCall parses a call on the callee expression
func (p *Parser) parseCall(callee Expr) (Expr, error) {
	pos := p.current.Position
	p.nextToken() // consume '('

	var args []Expr
	for p.current.Type != TOKEN_RPAREN {
		arg, err := p.ParseExpression(PREC_LOWEST)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if p.current.Type == TOKEN_COMMA {
			p.nextToken()
			continue
		}
		break
	}
	if err := p.expect(TOKEN_RPAREN); err != nil {
		return nil, err
	}
	return &CallExpr{Callee: callee, Args: args, Position: pos}, nil
}

// parseIndex parses base[index]
func (p *Parser) parseIndex(base Expr) (Expr, error) {
	pos := p.current.Position
	p.nextToken() // consume '['

	index, err := p.ParseExpression(PREC_LOWEST)
	if err != nil {
		return nil, err
	}
	if err := p.expect(TOKEN_RBRACKET); err != nil {
		return nil, err
	}
	return &IndexExpr{Object: base, Index: index, Position: pos}, nil
}

// parseMember parses obj.name and obj->name
func (p *Parser) parseMember(obj Expr) (Expr, error) {
	arrow := p.current.Type == TOKEN_ARROW
	pos := p.current.Position
	p.nextToken() // consume '.' or '->'

	if p.current.Type != TOKEN_IDENTIFIER {
		return nil, fmt.Errorf("line %d: expected member name after '%s'",
			pos.Line, map[bool]string{true: "->", false: "."}[arrow])
	}
	name := p.current.Value
	p.nextToken()
	return &MemberExpr{Object: obj, Name: name, Arrow: arrow, Position: pos}, nil
}

// parseUnary parses prefix operators, literals, and primaries
func (p *Parser) parseUnary() (Expr, error) {
	pos := p.current.Position

	switch p.current.Type {
	case TOKEN_MINUS, TOKEN_NOT, TOKEN_TILDE, TOKEN_STAR, TOKEN_AMP:
		op := p.current.Type
		p.nextToken()
		operand, err := p.ParseExpression(PREC_UNARY - 1)
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Operator: op, Operand: operand, Position: pos}, nil

	case TOKEN_INCR, TOKEN_DECR:
		op := p.current.Type
		p.nextToken()
		operand, err := p.ParseExpression(PREC_UNARY - 1)
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Operator: op, Operand: operand, Position: pos}, nil

	case TOKEN_LPAREN:
		// cast or grouping
		if p.peek.IsTypeToken() || (p.peek.Type == TOKEN_IDENTIFIER && p.typeNames[p.peek.Value]) {
			return p.parseCast()
		}
		p.nextToken() // consume '('
		expr, err := p.ParseExpression(PREC_LOWEST)
		if err != nil {
			return nil, err
		}
		if err := p.expect(TOKEN_RPAREN); err != nil {
			return nil, err
		}
		return expr, nil

	default:
		return p.parsePrimary()
	}
}

// parseCast parses (type)expr
func (p *Parser) parseCast() (Expr, error) {
	pos := p.current.Position
	p.nextToken() // consume '('

	spec, err := p.parseTypeSpec()
	if err != nil {
		return nil, err
	}
	if err := p.expect(TOKEN_RPAREN); err != nil {
		return nil, err
	}
	operand, err := p.ParseExpression(PREC_UNARY - 1)
	if err != nil {
		return nil, err
	}
	return &CastExpr{To: spec, Operand: operand, Position: pos}, nil
}

// parsePrimary parses literals and identifiers
func (p *Parser) parsePrimary() (Expr, error) {
	pos := p.current.Position

	switch p.current.Type {
	case TOKEN_INT:
		return p.parseIntLiteral()
	case TOKEN_FLOAT:
		val, err := strconv.ParseFloat(p.current.Value, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad float literal %q", pos.Line, p.current.Value)
		}
		p.nextToken()
		return &LiteralExpr{Value: ctype.NewDouble(val), Position: pos}, nil
	case TOKEN_STRING:
		val := p.current.Value
		p.nextToken()
		return &LiteralExpr{Value: ctype.NewStr(val), Position: pos}, nil
	case TOKEN_CHAR:
		val := p.current.Value
		p.nextToken()
		if len(val) != 1 {
			return nil, fmt.Errorf("line %d: bad character literal", pos.Line)
		}
		return &LiteralExpr{Value: ctype.NewChar(val[0]), Position: pos}, nil
	case TOKEN_TRUE:
		p.nextToken()
		return &LiteralExpr{Value: ctype.NewBool(true), Position: pos}, nil
	case TOKEN_FALSE:
		p.nextToken()
		return &LiteralExpr{Value: ctype.NewBool(false), Position: pos}, nil
	case TOKEN_NULL:
		p.nextToken()
		return &LiteralExpr{Value: ctype.PtrValue{}, Position: pos}, nil
	case TOKEN_THIS:
		p.nextToken()
		return &IdentifierExpr{Name: "this", Position: pos}, nil
	case TOKEN_IDENTIFIER:
		name := p.current.Value
		p.nextToken()
		return &IdentifierExpr{Name: name, Position: pos}, nil
	default:
		return nil, fmt.Errorf("line %d: unexpected token '%s'", pos.Line, p.current.Value)
	}
}

// parseIntLiteral parses a decimal or hex integer literal
func (p *Parser) parseIntLiteral() (Expr, error) {
	pos := p.current.Position
	text := p.current.Value

	var val int64
	var err error
	if len(text) > 2 && (text[:2] == "0x" || text[:2] == "0X") {
		val, err = strconv.ParseInt(text[2:], 16, 64)
	} else {
		val, err = strconv.ParseInt(text, 10, 64)
	}
	if err != nil {
		return nil, fmt.Errorf("line %d: bad integer literal %q", pos.Line, text)
	}
	p.nextToken()
	return &LiteralExpr{Value: ctype.NewInt(val), Position: pos}, nil
}
