package vm

import (
	"fmt"

	"cinder/ctype"
	"cinder/parser"
	"cinder/state"
)

// Compiler compiles AST nodes to pcode against a symbol table. One
// compiler produces one Program: either a fragment body or a single
// function body.
type Compiler struct {
	table     *state.Table
	program   *Program
	constants map[string]int // constant pool deduplication
	symbols   map[string]int // symbol table deduplication
	typeIdx   map[string]int // type table deduplication
	scopes    []Scope        // lexical scope stack
	loops     []LoopContext  // loop stack for break/continue
	fn        *state.Func    // non-nil when compiling a function body
	class     *ctype.Class   // receiver class for method bodies
	topLevel  bool           // fragment mode: outermost declarations are globals
	lastLine  int
}

// LoopContext tracks loop compilation state
type LoopContext struct {
	BreakJumps    []int // patch locations jumping past the loop
	ContinueJumps []int // patch locations jumping to the increment
	ScopeDepth    int   // scope depth at loop entry, for destructor emission
}

// Scope tracks variables in a lexical scope
type Scope struct {
	Variables map[string]int
	VarTypes  map[string]*ctype.Type
	ObjSlots  []int // class-typed locals needing destruction
}

// NewCompiler creates a compiler bound to a symbol table
func NewCompiler(table *state.Table) *Compiler {
	return &Compiler{
		table: table,
		program: &Program{
			Code:      make([]byte, 0, 256),
			Constants: make([]ctype.Value, 0, 16),
			LineInfo:  make([]LineEntry, 0, 16),
		},
		constants: make(map[string]int),
		symbols:   make(map[string]int),
		typeIdx:   make(map[string]int),
	}
}

// CompileFragment compiles top-level statements of a fragment. The
// value of a trailing expression statement becomes the fragment's
// result; declarations at the outermost level target session globals.
func CompileFragment(table *state.Table, stmts []parser.Stmt) (*Program, error) {
	c := NewCompiler(table)
	c.topLevel = true
	c.beginScope()

	for i, stmt := range stmts {
		last := i == len(stmts)-1
		if es, ok := stmt.(*parser.ExprStmt); ok && last {
			c.trackLine(es)
			if err := c.compileExpr(es.Expr); err != nil {
				return nil, err
			}
			c.emitDestroyAll()
			c.emit(OP_RETURN)
			c.endScope()
			return c.program, nil
		}
		if err := c.compileStmt(stmt); err != nil {
			return nil, err
		}
	}
	c.emitDestroyAll()
	c.emit(OP_RETURN_VOID)
	c.endScope()
	return c.program, nil
}

// CompileFunc compiles a function or method body. Parameters occupy
// the first local slots.
func CompileFunc(table *state.Table, fn *state.Func) (*Program, error) {
	c := NewCompiler(table)
	c.fn = fn
	c.class = fn.Recv
	c.program.Name = fn.Name
	c.beginScope()

	for _, p := range fn.Params {
		c.declareVariable(p.Name, p.Type)
	}
	for _, stmt := range fn.Body.Stmts {
		if err := c.compileStmt(stmt); err != nil {
			return nil, err
		}
	}
	c.emitDestroyAll()
	c.emit(OP_RETURN_VOID)
	c.endScope()
	return c.program, nil
}

// ---- emission helpers ----

func (c *Compiler) emit(op OpCode) int {
	pos := len(c.program.Code)
	c.program.Code = append(c.program.Code, byte(op))
	return pos
}

func (c *Compiler) emitByte(b byte) {
	c.program.Code = append(c.program.Code, b)
}

func (c *Compiler) emitShort(v int) {
	c.program.Code = append(c.program.Code, byte(v), byte(v>>8))
}

func (c *Compiler) emitOp(op OpCode, operand int) {
	c.emit(op)
	c.emitShort(operand)
}

func (c *Compiler) emitConstant(v ctype.Value) {
	c.emitOp(OP_PUSH, c.addConstant(v))
}

func (c *Compiler) addConstant(v ctype.Value) int {
	key := v.Type().String() + "/" + v.String()
	if idx, ok := c.constants[key]; ok {
		return idx
	}
	idx := len(c.program.Constants)
	c.program.Constants = append(c.program.Constants, v)
	c.constants[key] = idx
	return idx
}

func (c *Compiler) addSymbol(name string) int {
	if idx, ok := c.symbols[name]; ok {
		return idx
	}
	idx := len(c.program.Symbols)
	c.program.Symbols = append(c.program.Symbols, name)
	c.symbols[name] = idx
	return idx
}

func (c *Compiler) addType(t *ctype.Type) int {
	key := t.String()
	if idx, ok := c.typeIdx[key]; ok {
		return idx
	}
	idx := len(c.program.Types)
	c.program.Types = append(c.program.Types, t)
	c.typeIdx[key] = idx
	return idx
}

// emitJump emits a forward jump with a placeholder offset
func (c *Compiler) emitJump(op OpCode) int {
	c.emit(op)
	pos := len(c.program.Code)
	c.emitShort(0xffff)
	return pos
}

// patchJump back-fills a forward jump to land here
func (c *Compiler) patchJump(pos int) {
	offset := len(c.program.Code) - pos - 2
	c.program.Code[pos] = byte(offset)
	c.program.Code[pos+1] = byte(offset >> 8)
}

// emitLoop emits a backward jump to startIP
func (c *Compiler) emitLoop(startIP int) {
	c.emit(OP_LOOP)
	offset := len(c.program.Code) + 2 - startIP
	c.emitShort(offset)
}

func (c *Compiler) trackLine(node parser.Node) {
	line := node.Pos().Line
	if line == 0 || line == c.lastLine {
		return
	}
	c.lastLine = line
	c.program.LineInfo = append(c.program.LineInfo, LineEntry{
		StartIP: len(c.program.Code),
		Line:    line,
	})
}

func (c *Compiler) errorf(node parser.Node, format string, args ...any) error {
	return fmt.Errorf("line %d: %s", node.Pos().Line, fmt.Sprintf(format, args...))
}

// ---- scopes and variables ----

func (c *Compiler) beginScope() {
	c.scopes = append(c.scopes, Scope{
		Variables: make(map[string]int),
		VarTypes:  make(map[string]*ctype.Type),
	})
}

// endScope emits destructors for the scope's objects and drops it
func (c *Compiler) endScope() {
	scope := &c.scopes[len(c.scopes)-1]
	for i := len(scope.ObjSlots) - 1; i >= 0; i-- {
		c.emitOp(OP_DESTROY, scope.ObjSlots[i])
	}
	c.scopes = c.scopes[:len(c.scopes)-1]
}

// emitDestroyAll emits destructors for every live scope without
// dropping any, used before return.
func (c *Compiler) emitDestroyAll() {
	c.emitDestroyDownTo(0)
}

// emitDestroyDownTo emits destructors for scopes deeper than depth
func (c *Compiler) emitDestroyDownTo(depth int) {
	for s := len(c.scopes) - 1; s >= depth; s-- {
		slots := c.scopes[s].ObjSlots
		for i := len(slots) - 1; i >= 0; i-- {
			c.emitOp(OP_DESTROY, slots[i])
		}
	}
}

func (c *Compiler) declareVariable(name string, t *ctype.Type) int {
	slot := c.program.NumLocals
	c.program.NumLocals++
	c.program.VarNames = append(c.program.VarNames, name)
	c.program.VarTypes = append(c.program.VarTypes, t)
	scope := &c.scopes[len(c.scopes)-1]
	scope.Variables[name] = slot
	scope.VarTypes[name] = t
	return slot
}

func (c *Compiler) resolveVariable(name string) (int, *ctype.Type, bool) {
	for i := len(c.scopes) - 1; i >= 0; i-- {
		if slot, ok := c.scopes[i].Variables[name]; ok {
			return slot, c.scopes[i].VarTypes[name], true
		}
	}
	return 0, nil, false
}

// ---- statements ----

func (c *Compiler) compileStmt(stmt parser.Stmt) error {
	c.trackLine(stmt)
	switch s := stmt.(type) {
	case *parser.ExprStmt:
		if err := c.compileExpr(s.Expr); err != nil {
			return err
		}
		c.emit(OP_POP)
		return nil
	case *parser.DeclStmt:
		return c.compileDecl(s)
	case *parser.BlockStmt:
		c.beginScope()
		for _, inner := range s.Stmts {
			if err := c.compileStmt(inner); err != nil {
				return err
			}
		}
		c.endScope()
		return nil
	case *parser.IfStmt:
		return c.compileIf(s)
	case *parser.WhileStmt:
		return c.compileWhile(s)
	case *parser.DoWhileStmt:
		return c.compileDoWhile(s)
	case *parser.ForStmt:
		return c.compileFor(s)
	case *parser.ReturnStmt:
		return c.compileReturn(s)
	case *parser.BreakStmt:
		if len(c.loops) == 0 {
			return c.errorf(s, "break outside of a loop")
		}
		loop := &c.loops[len(c.loops)-1]
		c.emitDestroyDownTo(loop.ScopeDepth)
		loop.BreakJumps = append(loop.BreakJumps, c.emitJump(OP_JUMP))
		return nil
	case *parser.ContinueStmt:
		if len(c.loops) == 0 {
			return c.errorf(s, "continue outside of a loop")
		}
		loop := &c.loops[len(c.loops)-1]
		c.emitDestroyDownTo(loop.ScopeDepth)
		loop.ContinueJumps = append(loop.ContinueJumps, c.emitJump(OP_JUMP))
		return nil
	default:
		return c.errorf(stmt, "cannot compile %T", stmt)
	}
}

// compileDecl compiles a declaration statement. At fragment top level
// it initializes session globals (the engine has already committed
// them to the table); anywhere else it declares locals.
func (c *Compiler) compileDecl(s *parser.DeclStmt) error {
	global := c.topLevel && len(c.scopes) == 1
	for i := range s.Vars {
		v := &s.Vars[i]
		spec := s.Type
		t, err := c.table.ResolveType(spec)
		if err != nil {
			return c.errorf(s, "%s", err.Error())
		}
		if err := c.compileInit(s, v, t, global); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) compileInit(s *parser.DeclStmt, v *parser.VarInit, t *ctype.Type, global bool) error {
	switch {
	case t.Kind == ctype.KindClass:
		// Point p; or Point p(1, 2);
		sym := c.addSymbol(t.Class.Name)
		for _, a := range v.CtorArgs {
			if err := c.compileExpr(a); err != nil {
				return err
			}
		}
		c.emit(OP_NEW)
		c.emitShort(sym)
		c.emitByte(byte(len(v.CtorArgs)))
	case v.Init != nil:
		if err := c.compileExpr(v.Init); err != nil {
			return err
		}
		c.emitOp(OP_CONVERT, c.addType(t))
	default:
		c.emitConstant(ctype.Zero(t))
	}

	if global {
		c.emitOp(OP_SET_GLOBAL, c.addSymbol(v.Name))
		return nil
	}
	if _, ok := c.scopes[len(c.scopes)-1].Variables[v.Name]; ok {
		return c.errorf(s, "%s is already declared in this scope", v.Name)
	}
	slot := c.declareVariable(v.Name, t)
	c.emitOp(OP_SET_LOCAL, slot)
	if t.Kind == ctype.KindClass {
		scope := &c.scopes[len(c.scopes)-1]
		scope.ObjSlots = append(scope.ObjSlots, slot)
	}
	return nil
}

func (c *Compiler) compileIf(s *parser.IfStmt) error {
	if err := c.compileExpr(s.Cond); err != nil {
		return err
	}
	elseJump := c.emitJump(OP_JUMP_IF_FALSE)
	if err := c.compileStmt(s.Then); err != nil {
		return err
	}
	if s.Else != nil {
		endJump := c.emitJump(OP_JUMP)
		c.patchJump(elseJump)
		if err := c.compileStmt(s.Else); err != nil {
			return err
		}
		c.patchJump(endJump)
	} else {
		c.patchJump(elseJump)
	}
	return nil
}

func (c *Compiler) compileWhile(s *parser.WhileStmt) error {
	start := len(c.program.Code)
	if err := c.compileExpr(s.Cond); err != nil {
		return err
	}
	exitJump := c.emitJump(OP_JUMP_IF_FALSE)

	c.beginLoop()
	if err := c.compileStmt(s.Body); err != nil {
		return err
	}
	c.patchContinues(len(c.program.Code))
	c.emitLoop(start)
	c.patchJump(exitJump)
	c.endLoop()
	return nil
}

func (c *Compiler) compileDoWhile(s *parser.DoWhileStmt) error {
	start := len(c.program.Code)
	c.beginLoop()
	if err := c.compileStmt(s.Body); err != nil {
		return err
	}
	c.patchContinues(len(c.program.Code))
	if err := c.compileExpr(s.Cond); err != nil {
		return err
	}
	exitJump := c.emitJump(OP_JUMP_IF_FALSE)
	c.emitLoop(start)
	c.patchJump(exitJump)
	c.endLoop()
	return nil
}

func (c *Compiler) compileFor(s *parser.ForStmt) error {
	c.beginScope()
	if s.Init != nil {
		if err := c.compileStmt(s.Init); err != nil {
			return err
		}
	}
	start := len(c.program.Code)
	exitJump := -1
	if s.Cond != nil {
		if err := c.compileExpr(s.Cond); err != nil {
			return err
		}
		exitJump = c.emitJump(OP_JUMP_IF_FALSE)
	}

	c.beginLoop()
	if err := c.compileStmt(s.Body); err != nil {
		return err
	}
	c.patchContinues(len(c.program.Code))
	if s.Post != nil {
		if err := c.compileExpr(s.Post); err != nil {
			return err
		}
		c.emit(OP_POP)
	}
	c.emitLoop(start)
	if exitJump >= 0 {
		c.patchJump(exitJump)
	}
	c.endLoop()
	c.endScope()
	return nil
}

func (c *Compiler) compileReturn(s *parser.ReturnStmt) error {
	if c.fn != nil && c.fn.Ret != nil && c.fn.Ret.Kind == ctype.KindVoid {
		if s.Value != nil {
			return c.errorf(s, "%s returns void", c.fn.Name)
		}
		c.emitDestroyAll()
		c.emit(OP_RETURN_VOID)
		return nil
	}
	if s.Value == nil {
		c.emitDestroyAll()
		c.emit(OP_RETURN_VOID)
		return nil
	}
	if err := c.compileExpr(s.Value); err != nil {
		return err
	}
	if c.fn != nil && c.fn.Ret != nil {
		c.emitOp(OP_CONVERT, c.addType(c.fn.Ret))
	}
	c.emitDestroyAll()
	c.emit(OP_RETURN)
	return nil
}

// ---- loops ----

func (c *Compiler) beginLoop() {
	c.loops = append(c.loops, LoopContext{ScopeDepth: len(c.scopes)})
}

func (c *Compiler) endLoop() {
	loop := c.loops[len(c.loops)-1]
	for _, pos := range loop.BreakJumps {
		c.patchJump(pos)
	}
	c.loops = c.loops[:len(c.loops)-1]
}

// patchContinues points pending continue jumps at ip
func (c *Compiler) patchContinues(ip int) {
	loop := &c.loops[len(c.loops)-1]
	for _, pos := range loop.ContinueJumps {
		offset := ip - pos - 2
		c.program.Code[pos] = byte(offset)
		c.program.Code[pos+1] = byte(offset >> 8)
	}
	loop.ContinueJumps = nil
}
