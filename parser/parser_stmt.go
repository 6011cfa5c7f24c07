package parser

import (
	"fmt"
)

// parseStatement parses a single statement
func (p *Parser) parseStatement() (Stmt, error) {
	switch p.current.Type {
	case TOKEN_IF:
		return p.parseIfStatement()
	case TOKEN_WHILE:
		return p.parseWhileStatement()
	case TOKEN_DO:
		return p.parseDoWhileStatement()
	case TOKEN_FOR:
		return p.parseForStatement()
	case TOKEN_RETURN:
		return p.parseReturnStatement()
	case TOKEN_BREAK:
		pos := p.current.Position
		p.nextToken()
		if err := p.expect(TOKEN_SEMICOLON); err != nil {
			return nil, err
		}
		return &BreakStmt{Position: pos}, nil
	case TOKEN_CONTINUE:
		pos := p.current.Position
		p.nextToken()
		if err := p.expect(TOKEN_SEMICOLON); err != nil {
			return nil, err
		}
		return &ContinueStmt{Position: pos}, nil
	case TOKEN_LBRACE:
		return p.parseBlock()
	case TOKEN_SEMICOLON:
		// empty statement
		pos := p.current.Position
		p.nextToken()
		return &ExprStmt{Expr: nil, Position: pos}, nil
	default:
		if p.isTypeStart() && p.declFollows() {
			return p.parseDeclStatement()
		}
		return p.parseExpressionStatement()
	}
}

// declFollows disambiguates a declaration from an expression when the
// current token names a type: "Point p" and "int x" are declarations,
// "Point(1,2)" or a lone class name in an expression are not.
func (p *Parser) declFollows() bool {
	if p.current.IsTypeToken() {
		return true
	}
	// known class name: declaration iff followed by identifier or '*'
	return p.peek.Type == TOKEN_IDENTIFIER || p.peek.Type == TOKEN_STAR
}

// parseBlock parses { stmt* }
func (p *Parser) parseBlock() (*BlockStmt, error) {
	pos := p.current.Position
	if err := p.expect(TOKEN_LBRACE); err != nil {
		return nil, err
	}

	var stmts []Stmt
	for p.current.Type != TOKEN_RBRACE {
		if p.current.Type == TOKEN_EOF {
			return nil, fmt.Errorf("line %d: unexpected end of input, expected '}'", p.current.Position.Line)
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	p.nextToken() // consume '}'
	return &BlockStmt{Stmts: stmts, Position: pos}, nil
}

// parseIfStatement parses if (cond) stmt [else stmt]
func (p *Parser) parseIfStatement() (Stmt, error) {
	pos := p.current.Position
	p.nextToken() // consume 'if'

	if err := p.expect(TOKEN_LPAREN); err != nil {
		return nil, err
	}
	cond, err := p.ParseExpression(PREC_LOWEST)
	if err != nil {
		return nil, err
	}
	if err := p.expect(TOKEN_RPAREN); err != nil {
		return nil, err
	}

	thenStmt, err := p.parseStatement()
	if err != nil {
		return nil, err
	}

	var elseStmt Stmt
	if p.current.Type == TOKEN_ELSE {
		p.nextToken()
		elseStmt, err = p.parseStatement()
		if err != nil {
			return nil, err
		}
	}
	return &IfStmt{Cond: cond, Then: thenStmt, Else: elseStmt, Position: pos}, nil
}

// parseWhileStatement parses while (cond) stmt
func (p *Parser) parseWhileStatement() (Stmt, error) {
	pos := p.current.Position
	p.nextToken() // consume 'while'

	if err := p.expect(TOKEN_LPAREN); err != nil {
		return nil, err
	}
	cond, err := p.ParseExpression(PREC_LOWEST)
	if err != nil {
		return nil, err
	}
	if err := p.expect(TOKEN_RPAREN); err != nil {
		return nil, err
	}

	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	return &WhileStmt{Cond: cond, Body: body, Position: pos}, nil
}

// parseDoWhileStatement parses do stmt while (cond);
func (p *Parser) parseDoWhileStatement() (Stmt, error) {
	pos := p.current.Position
	p.nextToken() // consume 'do'

	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	if err := p.expect(TOKEN_WHILE); err != nil {
		return nil, err
	}
	if err := p.expect(TOKEN_LPAREN); err != nil {
		return nil, err
	}
	cond, err := p.ParseExpression(PREC_LOWEST)
	if err != nil {
		return nil, err
	}
	if err := p.expect(TOKEN_RPAREN); err != nil {
		return nil, err
	}
	if err := p.expect(TOKEN_SEMICOLON); err != nil {
		return nil, err
	}
	return &DoWhileStmt{Body: body, Cond: cond, Position: pos}, nil
}

// parseForStatement parses for (init; cond; post) stmt
func (p *Parser) parseForStatement() (Stmt, error) {
	pos := p.current.Position
	p.nextToken() // consume 'for'

	if err := p.expect(TOKEN_LPAREN); err != nil {
		return nil, err
	}

	var initStmt Stmt
	var err error
	if p.current.Type == TOKEN_SEMICOLON {
		p.nextToken()
	} else if p.isTypeStart() && p.declFollows() {
		initStmt, err = p.parseDeclStatement()
		if err != nil {
			return nil, err
		}
	} else {
		initStmt, err = p.parseExpressionStatement()
		if err != nil {
			return nil, err
		}
	}

	var cond Expr
	if p.current.Type != TOKEN_SEMICOLON {
		cond, err = p.ParseExpression(PREC_LOWEST)
		if err != nil {
			return nil, err
		}
	}
	if err := p.expect(TOKEN_SEMICOLON); err != nil {
		return nil, err
	}

	var post Expr
	if p.current.Type != TOKEN_RPAREN {
		post, err = p.ParseExpression(PREC_LOWEST)
		if err != nil {
			return nil, err
		}
	}
	if err := p.expect(TOKEN_RPAREN); err != nil {
		return nil, err
	}

	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	return &ForStmt{Init: initStmt, Cond: cond, Post: post, Body: body, Position: pos}, nil
}

// parseReturnStatement parses return [expr];
func (p *Parser) parseReturnStatement() (Stmt, error) {
	pos := p.current.Position
	p.nextToken() // consume 'return'

	var value Expr
	var err error
	if p.current.Type != TOKEN_SEMICOLON {
		value, err = p.ParseExpression(PREC_LOWEST)
		if err != nil {
			return nil, err
		}
	}
	if err := p.expect(TOKEN_SEMICOLON); err != nil {
		return nil, err
	}
	return &ReturnStmt{Value: value, Position: pos}, nil
}

// parseExpressionStatement parses expr;
func (p *Parser) parseExpressionStatement() (Stmt, error) {
	pos := p.current.Position
	expr, err := p.ParseExpression(PREC_LOWEST)
	if err != nil {
		return nil, err
	}
	if err := p.expect(TOKEN_SEMICOLON); err != nil {
		return nil, err
	}
	return &ExprStmt{Expr: expr, Position: pos}, nil
}

// parseDeclStatement parses a variable declaration statement:
// type name [= expr | (ctor-args)] [, name ...];
func (p *Parser) parseDeclStatement() (Stmt, error) {
	pos := p.current.Position
	spec, err := p.parseTypeSpec()
	if err != nil {
		return nil, err
	}

	var vars []VarInit
	for {
		// per-declarator pointer depth: "int *p, x"
		extraPtr := 0
		for p.current.Type == TOKEN_STAR {
			extraPtr++
			p.nextToken()
		}
		if p.current.Type != TOKEN_IDENTIFIER {
			return nil, fmt.Errorf("line %d: expected variable name, got '%s'",
				p.current.Position.Line, p.current.Value)
		}
		name := p.current.Value
		p.nextToken()

		v := VarInit{Name: name}
		switch p.current.Type {
		case TOKEN_ASSIGN:
			p.nextToken()
			init, err := p.ParseExpression(PREC_ASSIGN - 1)
			if err != nil {
				return nil, err
			}
			v.Init = init
		case TOKEN_LPAREN:
			p.nextToken()
			for p.current.Type != TOKEN_RPAREN {
				arg, err := p.ParseExpression(PREC_LOWEST)
				if err != nil {
					return nil, err
				}
				v.CtorArgs = append(v.CtorArgs, arg)
				if p.current.Type == TOKEN_COMMA {
					p.nextToken()
				}
			}
			p.nextToken() // consume ')'
		}
		if extraPtr > 0 {
			// fold declarator stars into a per-variable type by widening
			// the shared spec; mixed-pointer declarator lists are rejected
			if len(vars) > 0 && spec.PtrDepth != extraPtr {
				return nil, fmt.Errorf("line %d: mixed pointer declarators are not supported", pos.Line)
			}
			spec.PtrDepth = extraPtr
		}
		vars = append(vars, v)

		if p.current.Type == TOKEN_COMMA {
			p.nextToken()
			continue
		}
		break
	}

	if err := p.expect(TOKEN_SEMICOLON); err != nil {
		return nil, err
	}
	return &DeclStmt{Type: spec, Vars: vars, Position: pos}, nil
}
