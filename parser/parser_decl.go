package parser

import (
	"fmt"
)

// ParseFragment parses one submitted source fragment into a sequence
// of top-level items: declarations and immediately-executable
// statements, in source order.
func (p *Parser) ParseFragment() ([]Item, error) {
	var items []Item
	for p.current.Type != TOKEN_EOF {
		item, err := p.parseTopLevel()
		if err != nil {
			return nil, err
		}
		if item != nil {
			items = append(items, item)
		}
	}
	return items, nil
}

// parseTopLevel parses one top-level declaration or statement
func (p *Parser) parseTopLevel() (Item, error) {
	switch {
	case p.current.Type == TOKEN_CLASS || p.current.Type == TOKEN_STRUCT:
		return p.parseClassDecl()
	case p.current.Type == TOKEN_EXTERN:
		return p.parseExternDecl()
	case p.isTypeStart():
		return p.parseTypedTopLevel()
	default:
		return p.parseStatement()
	}
}

// parseTypeSpec parses a type specifier: [const] [unsigned] base [*]*
// Unsigned folds into the signed representation; the engine's value
// model carries int64 throughout.
func (p *Parser) parseTypeSpec() (TypeSpec, error) {
	spec := TypeSpec{Position: p.current.Position}

	for p.current.Type == TOKEN_CONST || p.current.Type == TOKEN_UNSIGNED {
		if p.current.Type == TOKEN_CONST {
			spec.Const = true
		}
		p.nextToken()
	}

	switch p.current.Type {
	case TOKEN_VOID, TOKEN_BOOL, TOKEN_CHAR_KW, TOKEN_INT_KW,
		TOKEN_FLOAT_KW, TOKEN_DOUBLE:
		spec.Name = p.current.Value
		p.nextToken()
	case TOKEN_LONG:
		spec.Name = "long"
		p.nextToken()
		if p.current.Type == TOKEN_INT_KW {
			p.nextToken() // "long int" == "long"
		}
	case TOKEN_IDENTIFIER:
		// unknown identifiers still parse as type names here; the
		// compiler reports unresolved types with symbol context
		spec.Name = p.current.Value
		p.nextToken()
	default:
		return spec, fmt.Errorf("line %d: expected type name, got '%s'",
			p.current.Position.Line, p.current.Value)
	}

	for p.current.Type == TOKEN_STAR {
		spec.PtrDepth++
		p.nextToken()
	}
	return spec, nil
}

// parseTypedTopLevel parses a top-level item that begins with a type:
// a global variable declaration, a function definition or prototype,
// or an out-of-line method definition (Type Class::name(...)).
func (p *Parser) parseTypedTopLevel() (Item, error) {
	pos := p.current.Position

	// Point::Point(...) and Point::~Point() have no written return type
	if p.current.Type == TOKEN_IDENTIFIER && p.typeNames[p.current.Value] &&
		p.peek.Type == TOKEN_SCOPE {
		className := p.current.Value
		p.nextToken() // class name
		p.nextToken() // '::'
		return p.parseCtorDtorDef(className, pos)
	}

	spec, err := p.parseTypeSpec()
	if err != nil {
		return nil, err
	}

	// out-of-line method: Ret Class::name(params) { ... }
	if p.current.Type == TOKEN_IDENTIFIER && p.peek.Type == TOKEN_SCOPE {
		className := p.current.Value
		p.nextToken() // class name
		p.nextToken() // '::'
		if p.current.Type != TOKEN_IDENTIFIER {
			return nil, fmt.Errorf("line %d: expected method name after '::'", pos.Line)
		}
		name := p.current.Value
		p.nextToken()
		return p.parseFuncRest(spec, className, name, false, pos)
	}

	if p.current.Type != TOKEN_IDENTIFIER {
		return nil, fmt.Errorf("line %d: expected name after type, got '%s'",
			p.current.Position.Line, p.current.Value)
	}

	// function or variable?
	if p.peek.Type == TOKEN_LPAREN {
		name := p.current.Value
		p.nextToken() // name; current is now '('
		if p.funcParamsFollow() {
			return p.parseFuncRest(spec, "", name, false, pos)
		}
		// constructor-style variable: Point p(1, 2);
		return p.parseCtorVarDecl(spec, name, pos)
	}

	return p.parseDeclRest(spec, pos)
}

// funcParamsFollow peeks past the current '(' to decide between a
// parameter list and constructor arguments. Empty parens parse as a
// function prototype, matching C++.
func (p *Parser) funcParamsFollow() bool {
	if p.peek.Type == TOKEN_RPAREN {
		return true
	}
	if p.peek.IsTypeToken() {
		return true
	}
	return p.peek.Type == TOKEN_IDENTIFIER && p.typeNames[p.peek.Value]
}

// parseCtorDtorDef parses the remainder of Class::Class(...) { } or
// Class::~Class() { } after the scope operator has been consumed.
func (p *Parser) parseCtorDtorDef(className string, pos Position) (Item, error) {
	dtor := false
	if p.current.Type == TOKEN_TILDE {
		dtor = true
		p.nextToken()
	}
	if p.current.Type != TOKEN_IDENTIFIER || p.current.Value != className {
		return nil, fmt.Errorf("line %d: expected constructor or destructor of %s", pos.Line, className)
	}
	p.nextToken()

	name := className
	if dtor {
		name = "~" + className
	}
	spec := TypeSpec{Name: "void", Position: pos}
	return p.parseFuncRest(spec, className, name, false, pos)
}

// parseCtorVarDecl parses the remainder of "Point p(args);" where the
// name has been consumed and current is '('.
func (p *Parser) parseCtorVarDecl(spec TypeSpec, name string, pos Position) (Stmt, error) {
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
		}
	}
	p.nextToken() // consume ')'
	if err := p.expect(TOKEN_SEMICOLON); err != nil {
		return nil, err
	}
	return &DeclStmt{
		Type:     spec,
		Vars:     []VarInit{{Name: name, CtorArgs: args}},
		Position: pos,
	}, nil
}

// parseDeclRest parses the declarator list of a variable declaration
// where the type spec is already consumed and current is the first name.
func (p *Parser) parseDeclRest(spec TypeSpec, pos Position) (Stmt, error) {
	var vars []VarInit
	for {
		if p.current.Type != TOKEN_IDENTIFIER {
			return nil, fmt.Errorf("line %d: expected variable name, got '%s'",
				p.current.Position.Line, p.current.Value)
		}
		name := p.current.Value
		p.nextToken()

		v := VarInit{Name: name}
		if p.current.Type == TOKEN_ASSIGN {
			p.nextToken()
			init, err := p.ParseExpression(PREC_ASSIGN - 1)
			if err != nil {
				return nil, err
			}
			v.Init = init
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

// parseFuncRest parses a parameter list and optional body, with the
// return type and name already consumed; current must be '('.
func (p *Parser) parseFuncRest(ret TypeSpec, className, name string, cLinkage bool, pos Position) (*FuncDecl, error) {
	params, err := p.parseParams()
	if err != nil {
		return nil, err
	}

	decl := &FuncDecl{
		Ret:      ret,
		Class:    className,
		Name:     name,
		Params:   params,
		CLinkage: cLinkage,
		Position: pos,
	}

	// const method qualifier
	if p.current.Type == TOKEN_CONST {
		decl.Const = true
		p.nextToken()
	}

	switch p.current.Type {
	case TOKEN_SEMICOLON:
		p.nextToken() // prototype
		return decl, nil
	case TOKEN_LBRACE:
		body, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		decl.Body = body
		return decl, nil
	default:
		return nil, fmt.Errorf("line %d: expected ';' or '{' after parameter list, got '%s'",
			p.current.Position.Line, p.current.Value)
	}
}

// parseParams parses (void), (), or (type name, ...)
func (p *Parser) parseParams() ([]Param, error) {
	if err := p.expect(TOKEN_LPAREN); err != nil {
		return nil, err
	}

	var params []Param
	if p.current.Type == TOKEN_VOID && p.peek.Type == TOKEN_RPAREN {
		p.nextToken() // (void) == ()
	}
	for p.current.Type != TOKEN_RPAREN {
		spec, err := p.parseTypeSpec()
		if err != nil {
			return nil, err
		}
		param := Param{Type: spec}
		if p.current.Type == TOKEN_IDENTIFIER {
			param.Name = p.current.Value
			p.nextToken()
		}
		params = append(params, param)
		if p.current.Type == TOKEN_COMMA {
			p.nextToken()
			continue
		}
		break
	}
	if err := p.expect(TOKEN_RPAREN); err != nil {
		return nil, err
	}
	return params, nil
}

// parseExternDecl parses extern "C" prototypes, either a single
// declaration or a braced group.
func (p *Parser) parseExternDecl() (Item, error) {
	pos := p.current.Position
	p.nextToken() // consume 'extern'

	if p.current.Type != TOKEN_STRING || p.current.Value != "C" {
		return nil, fmt.Errorf("line %d: expected \"C\" after extern", pos.Line)
	}
	p.nextToken()

	if p.current.Type == TOKEN_LBRACE {
		p.nextToken()
		group := &ExternGroup{Position: pos}
		for p.current.Type != TOKEN_RBRACE {
			if p.current.Type == TOKEN_EOF {
				return nil, fmt.Errorf("line %d: unterminated extern \"C\" block", pos.Line)
			}
			decl, err := p.parseExternProto()
			if err != nil {
				return nil, err
			}
			group.Decls = append(group.Decls, decl)
		}
		p.nextToken() // consume '}'
		return group, nil
	}

	return p.parseExternProto()
}

// parseExternProto parses a single prototype with C linkage
func (p *Parser) parseExternProto() (*FuncDecl, error) {
	pos := p.current.Position
	spec, err := p.parseTypeSpec()
	if err != nil {
		return nil, err
	}
	if p.current.Type != TOKEN_IDENTIFIER {
		return nil, fmt.Errorf("line %d: expected function name, got '%s'",
			p.current.Position.Line, p.current.Value)
	}
	name := p.current.Value
	p.nextToken()
	if p.current.Type != TOKEN_LPAREN {
		return nil, fmt.Errorf("line %d: expected '(' in extern \"C\" prototype", pos.Line)
	}
	return p.parseFuncRest(spec, "", name, true, pos)
}

// parseClassDecl parses class/struct Name { members };
func (p *Parser) parseClassDecl() (Decl, error) {
	pos := p.current.Position
	isStruct := p.current.Type == TOKEN_STRUCT
	p.nextToken() // consume 'class' or 'struct'

	if p.current.Type != TOKEN_IDENTIFIER {
		return nil, fmt.Errorf("line %d: expected class name, got '%s'",
			p.current.Position.Line, p.current.Value)
	}
	name := p.current.Value
	p.nextToken()

	// the class name is a type from this point on, including inside
	// its own body (methods returning or taking the class)
	p.AddTypeName(name)

	decl := &ClassDecl{Name: name, IsStruct: isStruct, Position: pos}
	if err := p.expect(TOKEN_LBRACE); err != nil {
		return nil, err
	}

	for p.current.Type != TOKEN_RBRACE {
		if p.current.Type == TOKEN_EOF {
			return nil, fmt.Errorf("line %d: unterminated class body of %s", pos.Line, name)
		}
		if err := p.parseClassMember(decl); err != nil {
			return nil, err
		}
	}
	p.nextToken() // consume '}'
	if err := p.expect(TOKEN_SEMICOLON); err != nil {
		return nil, err
	}
	return decl, nil
}

// parseClassMember parses one field, method, constructor, destructor,
// or access label inside a class body.
func (p *Parser) parseClassMember(decl *ClassDecl) error {
	pos := p.current.Position

	// access labels are parsed and ignored; everything is public
	if p.current.Type == TOKEN_PUBLIC || p.current.Type == TOKEN_PRIVATE {
		p.nextToken()
		return p.expect(TOKEN_COLON)
	}

	// destructor: ~Name() { }
	if p.current.Type == TOKEN_TILDE {
		p.nextToken()
		if p.current.Type != TOKEN_IDENTIFIER || p.current.Value != decl.Name {
			return fmt.Errorf("line %d: expected destructor ~%s", pos.Line, decl.Name)
		}
		p.nextToken()
		fn, err := p.parseFuncRest(TypeSpec{Name: "void", Position: pos}, decl.Name, "~"+decl.Name, false, pos)
		if err != nil {
			return err
		}
		decl.Methods = append(decl.Methods, fn)
		return nil
	}

	// constructor: Name(params) { }
	if p.current.Type == TOKEN_IDENTIFIER && p.current.Value == decl.Name &&
		p.peek.Type == TOKEN_LPAREN {
		p.nextToken() // consume name; current is '('
		fn, err := p.parseFuncRest(TypeSpec{Name: "void", Position: pos}, decl.Name, decl.Name, false, pos)
		if err != nil {
			return err
		}
		decl.Methods = append(decl.Methods, fn)
		return nil
	}

	// field or method: type name [;|(params) {...}]
	spec, err := p.parseTypeSpec()
	if err != nil {
		return err
	}
	if p.current.Type != TOKEN_IDENTIFIER {
		return fmt.Errorf("line %d: expected member name, got '%s'",
			p.current.Position.Line, p.current.Value)
	}
	name := p.current.Value
	p.nextToken()

	if p.current.Type == TOKEN_LPAREN {
		fn, err := p.parseFuncRest(spec, decl.Name, name, false, pos)
		if err != nil {
			return err
		}
		decl.Methods = append(decl.Methods, fn)
		return nil
	}

	decl.Fields = append(decl.Fields, Param{Type: spec, Name: name})
	for p.current.Type == TOKEN_COMMA {
		p.nextToken()
		if p.current.Type != TOKEN_IDENTIFIER {
			return fmt.Errorf("line %d: expected member name after ','", pos.Line)
		}
		decl.Fields = append(decl.Fields, Param{Type: spec, Name: p.current.Value})
		p.nextToken()
	}
	return p.expect(TOKEN_SEMICOLON)
}

// ParseType parses a bare type text like "double" or "const char*".
// Known class names may be supplied so they parse as types.
func ParseType(src string, typeNames []string) (TypeSpec, error) {
	p := NewParser(src)
	for _, name := range typeNames {
		p.AddTypeName(name)
	}
	spec, err := p.parseTypeSpec()
	if err != nil {
		return spec, err
	}
	if p.current.Type != TOKEN_EOF {
		return spec, fmt.Errorf("unexpected %q after type", p.current.Value)
	}
	return spec, nil
}
