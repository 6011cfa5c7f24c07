package vm

import (
	"cinder/ctype"
	"cinder/parser"
)

var binaryOps = map[parser.TokenType]OpCode{
	parser.TOKEN_PLUS:    OP_ADD,
	parser.TOKEN_MINUS:   OP_SUB,
	parser.TOKEN_STAR:    OP_MUL,
	parser.TOKEN_SLASH:   OP_DIV,
	parser.TOKEN_PERCENT: OP_MOD,
	parser.TOKEN_EQ:      OP_EQ,
	parser.TOKEN_NE:      OP_NE,
	parser.TOKEN_LT:      OP_LT,
	parser.TOKEN_LE:      OP_LE,
	parser.TOKEN_GT:      OP_GT,
	parser.TOKEN_GE:      OP_GE,
	parser.TOKEN_AMP:     OP_BITAND,
	parser.TOKEN_PIPE:    OP_BITOR,
	parser.TOKEN_CARET:   OP_BITXOR,
	parser.TOKEN_LSHIFT:  OP_SHL,
	parser.TOKEN_RSHIFT:  OP_SHR,
}

var compoundOps = map[parser.TokenType]OpCode{
	parser.TOKEN_PLUS_ASSIGN:    OP_ADD,
	parser.TOKEN_MINUS_ASSIGN:   OP_SUB,
	parser.TOKEN_STAR_ASSIGN:    OP_MUL,
	parser.TOKEN_SLASH_ASSIGN:   OP_DIV,
	parser.TOKEN_PERCENT_ASSIGN: OP_MOD,
}

func (c *Compiler) compileExpr(expr parser.Expr) error {
	switch e := expr.(type) {
	case *parser.LiteralExpr:
		c.emitConstant(e.Value)
		return nil
	case *parser.IdentifierExpr:
		return c.compileIdentifier(e)
	case *parser.UnaryExpr:
		return c.compileUnary(e)
	case *parser.BinaryExpr:
		return c.compileBinary(e)
	case *parser.AssignExpr:
		return c.compileAssign(e)
	case *parser.CondExpr:
		return c.compileTernary(e)
	case *parser.CallExpr:
		return c.compileCall(e)
	case *parser.MemberExpr:
		return c.compileMember(e)
	case *parser.IndexExpr:
		return c.compileIndex(e)
	case *parser.CastExpr:
		if err := c.compileExpr(e.Operand); err != nil {
			return err
		}
		t, err := c.table.ResolveType(e.To)
		if err != nil {
			return c.errorf(e, "%s", err.Error())
		}
		c.emitOp(OP_CONVERT, c.addType(t))
		return nil
	default:
		return c.errorf(expr, "cannot compile %T", expr)
	}
}

func (c *Compiler) compileIdentifier(e *parser.IdentifierExpr) error {
	if e.Name == "this" {
		if c.class == nil {
			return c.errorf(e, "this outside of a method body")
		}
		c.emit(OP_GET_THIS)
		return nil
	}
	if slot, _, ok := c.resolveVariable(e.Name); ok {
		c.emitOp(OP_GET_LOCAL, slot)
		return nil
	}
	if c.class != nil {
		if idx := c.class.FieldIndex(e.Name); idx >= 0 {
			c.emitOp(OP_GET_THIS_FIELD, idx)
			return nil
		}
	}
	if _, ok := c.table.Global(e.Name); ok {
		c.emitOp(OP_GET_GLOBAL, c.addSymbol(e.Name))
		return nil
	}
	return c.errorf(e, "undefined variable %q", e.Name)
}

func (c *Compiler) compileUnary(e *parser.UnaryExpr) error {
	switch e.Operator {
	case parser.TOKEN_INCR, parser.TOKEN_DECR:
		return c.compileIncDec(e)
	case parser.TOKEN_AMP:
		id, ok := e.Operand.(*parser.IdentifierExpr)
		if !ok {
			return c.errorf(e, "cannot take the address of this expression")
		}
		if _, _, isLocal := c.resolveVariable(id.Name); isLocal {
			return c.errorf(e, "cannot take the address of local %s", id.Name)
		}
		if _, ok := c.table.Global(id.Name); !ok {
			return c.errorf(e, "undefined variable %q", id.Name)
		}
		c.emitOp(OP_ADDR_GLOBAL, c.addSymbol(id.Name))
		return nil
	case parser.TOKEN_STAR:
		if err := c.compileExpr(e.Operand); err != nil {
			return err
		}
		t := c.inferType(e.Operand)
		if t == nil || t.Kind != ctype.KindPtr {
			return c.errorf(e, "cannot dereference a non-pointer expression")
		}
		c.emitOp(OP_LOAD_IND, c.addType(t.Elem))
		return nil
	}

	if err := c.compileExpr(e.Operand); err != nil {
		return err
	}
	switch e.Operator {
	case parser.TOKEN_MINUS:
		c.emit(OP_NEG)
	case parser.TOKEN_PLUS:
		// no-op
	case parser.TOKEN_NOT:
		c.emit(OP_NOT)
	case parser.TOKEN_TILDE:
		c.emit(OP_BITNOT)
	default:
		return c.errorf(e, "unsupported unary operator")
	}
	return nil
}

func (c *Compiler) compileBinary(e *parser.BinaryExpr) error {
	switch e.Operator {
	case parser.TOKEN_AND:
		if err := c.compileExpr(e.Left); err != nil {
			return err
		}
		end := c.emitJump(OP_AND)
		if err := c.compileExpr(e.Right); err != nil {
			return err
		}
		c.emitOp(OP_CONVERT, c.addType(ctype.Bool))
		c.patchJump(end)
		return nil
	case parser.TOKEN_OR:
		if err := c.compileExpr(e.Left); err != nil {
			return err
		}
		end := c.emitJump(OP_OR)
		if err := c.compileExpr(e.Right); err != nil {
			return err
		}
		c.emitOp(OP_CONVERT, c.addType(ctype.Bool))
		c.patchJump(end)
		return nil
	}

	op, ok := binaryOps[e.Operator]
	if !ok {
		return c.errorf(e, "unsupported binary operator")
	}
	if err := c.compileExpr(e.Left); err != nil {
		return err
	}
	if err := c.compileExpr(e.Right); err != nil {
		return err
	}
	c.emit(op)
	return nil
}

func (c *Compiler) compileTernary(e *parser.CondExpr) error {
	if err := c.compileExpr(e.Cond); err != nil {
		return err
	}
	elseJump := c.emitJump(OP_JUMP_IF_FALSE)
	if err := c.compileExpr(e.Then); err != nil {
		return err
	}
	endJump := c.emitJump(OP_JUMP)
	c.patchJump(elseJump)
	if err := c.compileExpr(e.Else); err != nil {
		return err
	}
	c.patchJump(endJump)
	return nil
}

func (c *Compiler) compileCall(e *parser.CallExpr) error {
	switch callee := e.Callee.(type) {
	case *parser.IdentifierExpr:
		name := callee.Name
		// an unqualified call inside a method prefers the sibling method
		if c.class != nil {
			qualified := c.class.Name + "::" + name
			if _, ok := c.table.Func(qualified); ok {
				name = qualified
			}
		}
		for _, a := range e.Args {
			if err := c.compileExpr(a); err != nil {
				return err
			}
		}
		c.emit(OP_CALL)
		c.emitShort(c.addSymbol(name))
		c.emitByte(byte(len(e.Args)))
		return nil
	case *parser.MemberExpr:
		if err := c.compileExpr(callee.Object); err != nil {
			return err
		}
		for _, a := range e.Args {
			if err := c.compileExpr(a); err != nil {
				return err
			}
		}
		c.emit(OP_CALL_METHOD)
		c.emitShort(c.addSymbol(callee.Name))
		c.emitByte(byte(len(e.Args)))
		return nil
	default:
		return c.errorf(e, "expression is not callable")
	}
}

// memberSlot resolves the field slot and type of a member access
func (c *Compiler) memberSlot(e *parser.MemberExpr) (int, *ctype.Type, error) {
	t := c.inferType(e.Object)
	if t == nil || t.Kind != ctype.KindClass {
		return 0, nil, c.errorf(e, "%s is not a member of a known class type", e.Name)
	}
	idx := t.Class.FieldIndex(e.Name)
	if idx < 0 {
		return 0, nil, c.errorf(e, "class %s has no field %s", t.Class.Name, e.Name)
	}
	return idx, t.Class.Fields[idx].Type, nil
}

func (c *Compiler) compileMember(e *parser.MemberExpr) error {
	slot, _, err := c.memberSlot(e)
	if err != nil {
		return err
	}
	if id, ok := e.Object.(*parser.IdentifierExpr); ok && id.Name == "this" {
		c.emitOp(OP_GET_THIS_FIELD, slot)
		return nil
	}
	if err := c.compileExpr(e.Object); err != nil {
		return err
	}
	c.emitOp(OP_GET_FIELD, slot)
	return nil
}

// elementType resolves the element type of an indexing expression
func (c *Compiler) elementType(e *parser.IndexExpr) (*ctype.Type, error) {
	t := c.inferType(e.Object)
	if t == nil || t.Kind != ctype.KindPtr {
		return nil, c.errorf(e, "cannot index a non-pointer expression")
	}
	return t.Elem, nil
}

func (c *Compiler) compileIndex(e *parser.IndexExpr) error {
	elem, err := c.elementType(e)
	if err != nil {
		return err
	}
	if err := c.compileExpr(e.Object); err != nil {
		return err
	}
	if err := c.compileExpr(e.Index); err != nil {
		return err
	}
	c.emitOp(OP_INDEX, c.addType(elem))
	return nil
}

// compileAssign compiles plain and compound assignment. The assigned
// value remains on the stack; expression statements pop it.
func (c *Compiler) compileAssign(e *parser.AssignExpr) error {
	if e.Operator == parser.TOKEN_ASSIGN {
		if err := c.compileExpr(e.Value); err != nil {
			return err
		}
		return c.storeTarget(e, e.Target)
	}

	op, ok := compoundOps[e.Operator]
	if !ok {
		return c.errorf(e, "unsupported assignment operator")
	}
	if err := c.compileExpr(e.Target); err != nil {
		return err
	}
	if err := c.compileExpr(e.Value); err != nil {
		return err
	}
	c.emit(op)
	return c.storeTarget(e, e.Target)
}

// storeTarget emits the store for an assignment target, keeping a
// copy of the stored value on the stack.
func (c *Compiler) storeTarget(at parser.Node, target parser.Expr) error {
	switch t := target.(type) {
	case *parser.IdentifierExpr:
		return c.storeIdentifier(at, t)
	case *parser.MemberExpr:
		slot, ft, err := c.memberSlot(t)
		if err != nil {
			return err
		}
		if ft.Const {
			return c.errorf(at, "assignment to const field %s", t.Name)
		}
		c.emitOp(OP_CONVERT, c.addType(ft))
		c.emit(OP_DUP)
		if id, ok := t.Object.(*parser.IdentifierExpr); ok && id.Name == "this" {
			c.emitOp(OP_SET_THIS_FIELD, slot)
			return nil
		}
		if err := c.compileExpr(t.Object); err != nil {
			return err
		}
		c.emitOp(OP_SET_FIELD, slot)
		return nil
	case *parser.UnaryExpr:
		if t.Operator != parser.TOKEN_STAR {
			return c.errorf(at, "expression is not assignable")
		}
		pt := c.inferType(t.Operand)
		if pt == nil || pt.Kind != ctype.KindPtr {
			return c.errorf(at, "cannot assign through a non-pointer expression")
		}
		if pt.Elem.Const {
			return c.errorf(at, "assignment through a pointer to const")
		}
		c.emitOp(OP_CONVERT, c.addType(pt.Elem))
		c.emit(OP_DUP)
		if err := c.compileExpr(t.Operand); err != nil {
			return err
		}
		c.emitOp(OP_STORE_IND, c.addType(pt.Elem))
		return nil
	case *parser.IndexExpr:
		elem, err := c.elementType(t)
		if err != nil {
			return err
		}
		if elem.Const {
			return c.errorf(at, "assignment to const element")
		}
		c.emitOp(OP_CONVERT, c.addType(elem))
		c.emit(OP_DUP)
		if err := c.compileExpr(t.Object); err != nil {
			return err
		}
		if err := c.compileExpr(t.Index); err != nil {
			return err
		}
		c.emitOp(OP_STORE_IDX, c.addType(elem))
		return nil
	default:
		return c.errorf(at, "expression is not assignable")
	}
}

func (c *Compiler) storeIdentifier(at parser.Node, id *parser.IdentifierExpr) error {
	if slot, vt, ok := c.resolveVariable(id.Name); ok {
		if vt != nil && vt.Const {
			return c.errorf(at, "assignment to const %s", id.Name)
		}
		if vt != nil {
			c.emitOp(OP_CONVERT, c.addType(vt))
		}
		c.emit(OP_DUP)
		c.emitOp(OP_SET_LOCAL, slot)
		return nil
	}
	if c.class != nil {
		if idx := c.class.FieldIndex(id.Name); idx >= 0 {
			ft := c.class.Fields[idx].Type
			if ft.Const {
				return c.errorf(at, "assignment to const field %s", id.Name)
			}
			c.emitOp(OP_CONVERT, c.addType(ft))
			c.emit(OP_DUP)
			c.emitOp(OP_SET_THIS_FIELD, idx)
			return nil
		}
	}
	if g, ok := c.table.Global(id.Name); ok {
		if g.Type.Const {
			return c.errorf(at, "assignment to const %s", id.Name)
		}
		c.emit(OP_DUP)
		c.emitOp(OP_SET_GLOBAL, c.addSymbol(id.Name))
		return nil
	}
	return c.errorf(at, "undefined variable %q", id.Name)
}

// compileIncDec compiles ++ and -- in both positions
func (c *Compiler) compileIncDec(e *parser.UnaryExpr) error {
	op := OP_ADD
	if e.Operator == parser.TOKEN_DECR {
		op = OP_SUB
	}

	switch e.Operand.(type) {
	case *parser.IdentifierExpr, *parser.MemberExpr:
		if !e.Postfix {
			if err := c.compileExpr(e.Operand); err != nil {
				return err
			}
			c.emitConstant(ctype.NewInt(1))
			c.emit(op)
			return c.storeTarget(e, e.Operand)
		}
		// postfix: keep the old value underneath the new one
		if err := c.compileExpr(e.Operand); err != nil {
			return err
		}
		c.emit(OP_DUP)
		c.emitConstant(ctype.NewInt(1))
		c.emit(op)
		if err := c.storeTarget(e, e.Operand); err != nil {
			return err
		}
		c.emit(OP_POP) // drop the stored copy, exposing the old value
		return nil
	default:
		return c.errorf(e, "expression is not incrementable")
	}
}

// inferType determines the static type of an expression when it can
// be known at compile time; nil means unknown.
func (c *Compiler) inferType(expr parser.Expr) *ctype.Type {
	switch e := expr.(type) {
	case *parser.LiteralExpr:
		return e.Value.Type()
	case *parser.IdentifierExpr:
		if e.Name == "this" {
			if c.class != nil {
				return c.class.TypeOf()
			}
			return nil
		}
		if _, vt, ok := c.resolveVariable(e.Name); ok {
			return vt
		}
		if c.class != nil {
			if idx := c.class.FieldIndex(e.Name); idx >= 0 {
				return c.class.Fields[idx].Type
			}
		}
		if g, ok := c.table.Global(e.Name); ok {
			return g.Type
		}
		return nil
	case *parser.UnaryExpr:
		switch e.Operator {
		case parser.TOKEN_NOT:
			return ctype.Bool
		case parser.TOKEN_TILDE:
			return ctype.Int
		case parser.TOKEN_STAR:
			if t := c.inferType(e.Operand); t != nil && t.Kind == ctype.KindPtr {
				return t.Elem
			}
			return nil
		case parser.TOKEN_AMP:
			if t := c.inferType(e.Operand); t != nil {
				return ctype.PointerTo(t)
			}
			return nil
		default:
			return c.inferType(e.Operand)
		}
	case *parser.BinaryExpr:
		switch e.Operator {
		case parser.TOKEN_EQ, parser.TOKEN_NE, parser.TOKEN_LT, parser.TOKEN_LE,
			parser.TOKEN_GT, parser.TOKEN_GE, parser.TOKEN_AND, parser.TOKEN_OR:
			return ctype.Bool
		}
		lt, rt := c.inferType(e.Left), c.inferType(e.Right)
		if lt == nil || rt == nil {
			return nil
		}
		return widerType(lt, rt)
	case *parser.AssignExpr:
		return c.inferType(e.Target)
	case *parser.CondExpr:
		return c.inferType(e.Then)
	case *parser.CallExpr:
		switch callee := e.Callee.(type) {
		case *parser.IdentifierExpr:
			name := callee.Name
			if c.class != nil {
				if _, ok := c.table.Func(c.class.Name + "::" + name); ok {
					name = c.class.Name + "::" + name
				}
			}
			if fn, ok := c.table.Func(name); ok {
				return fn.Ret
			}
		case *parser.MemberExpr:
			if ot := c.inferType(callee.Object); ot != nil && ot.Kind == ctype.KindClass {
				if fn, ok := c.table.Func(ot.Class.Name + "::" + callee.Name); ok {
					return fn.Ret
				}
			}
		}
		return nil
	case *parser.MemberExpr:
		if ot := c.inferType(e.Object); ot != nil && ot.Kind == ctype.KindClass {
			if idx := ot.Class.FieldIndex(e.Name); idx >= 0 {
				return ot.Class.Fields[idx].Type
			}
		}
		return nil
	case *parser.IndexExpr:
		if t := c.inferType(e.Object); t != nil && t.Kind == ctype.KindPtr {
			return t.Elem
		}
		return nil
	case *parser.CastExpr:
		if t, err := c.table.ResolveType(e.To); err == nil {
			return t
		}
		return nil
	default:
		return nil
	}
}

// widerType applies the usual arithmetic conversions to a type pair
func widerType(a, b *ctype.Type) *ctype.Type {
	rank := func(t *ctype.Type) int {
		switch t.Kind {
		case ctype.KindDouble:
			return 4
		case ctype.KindFloat:
			return 3
		case ctype.KindLong:
			return 2
		default:
			return 1
		}
	}
	wide := a
	if rank(b) > rank(a) {
		wide = b
	}
	if rank(wide) == 1 {
		return ctype.Int
	}
	return wide
}
