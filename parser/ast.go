package parser

import (
	"cinder/ctype"
)

// Node is the interface implemented by all AST nodes
type Node interface {
	Pos() Position
}

// Expr is the interface for expression nodes
type Expr interface {
	Node
	exprNode()
}

// Stmt is the interface for statement nodes
type Stmt interface {
	Node
	stmtNode()
}

// Decl is the interface for top-level declaration nodes
type Decl interface {
	Node
	declNode()
}

// Item is one top-level entry of a fragment: a declaration or a
// statement to be executed immediately.
type Item interface {
	Node
}

// TypeSpec is an unresolved type as written in source. Resolution to a
// *ctype.Type happens during compilation, against the class table.
type TypeSpec struct {
	Name     string // "int", "double", class name, ...
	PtrDepth int    // number of '*'
	Const    bool
	Position Position
}

func (t TypeSpec) Pos() Position { return t.Position }

// String returns the source-level spelling of the type spec
func (t TypeSpec) String() string {
	s := ""
	if t.Const {
		s = "const "
	}
	s += t.Name
	for i := 0; i < t.PtrDepth; i++ {
		s += "*"
	}
	return s
}

// ---- Expressions ----

// LiteralExpr is a literal constant (int, float, string, char, bool, NULL)
type LiteralExpr struct {
	Value    ctype.Value
	Position Position
}

func (e *LiteralExpr) Pos() Position { return e.Position }
func (e *LiteralExpr) exprNode()     {}

// IdentifierExpr is a bare name reference
type IdentifierExpr struct {
	Name     string
	Position Position
}

func (e *IdentifierExpr) Pos() Position { return e.Position }
func (e *IdentifierExpr) exprNode()     {}

// UnaryExpr is a prefix or postfix unary operation. Postfix is only
// meaningful for ++ and --.
type UnaryExpr struct {
	Operator TokenType
	Operand  Expr
	Postfix  bool
	Position Position
}

func (e *UnaryExpr) Pos() Position { return e.Position }
func (e *UnaryExpr) exprNode()     {}

// BinaryExpr is an infix binary operation
type BinaryExpr struct {
	Operator TokenType
	Left     Expr
	Right    Expr
	Position Position
}

func (e *BinaryExpr) Pos() Position { return e.Position }
func (e *BinaryExpr) exprNode()     {}

// AssignExpr is a plain or compound assignment
type AssignExpr struct {
	Operator TokenType // TOKEN_ASSIGN or a compound form
	Target   Expr      // identifier, member access, index, or deref
	Value    Expr
	Position Position
}

func (e *AssignExpr) Pos() Position { return e.Position }
func (e *AssignExpr) exprNode()     {}

// CondExpr is the ternary ?: operator
type CondExpr struct {
	Cond     Expr
	Then     Expr
	Else     Expr
	Position Position
}

func (e *CondExpr) Pos() Position { return e.Position }
func (e *CondExpr) exprNode()     {}

// CallExpr is a function or method call
type CallExpr struct {
	Callee   Expr // IdentifierExpr or MemberExpr
	Args     []Expr
	Position Position
}

func (e *CallExpr) Pos() Position { return e.Position }
func (e *CallExpr) exprNode()     {}

// MemberExpr is obj.name or obj->name
type MemberExpr struct {
	Object   Expr
	Name     string
	Arrow    bool
	Position Position
}

func (e *MemberExpr) Pos() Position { return e.Position }
func (e *MemberExpr) exprNode()     {}

// IndexExpr is base[index], supported on strings
type IndexExpr struct {
	Object   Expr
	Index    Expr
	Position Position
}

func (e *IndexExpr) Pos() Position { return e.Position }
func (e *IndexExpr) exprNode()     {}

// CastExpr is an explicit cast (type)expr
type CastExpr struct {
	To       TypeSpec
	Operand  Expr
	Position Position
}

func (e *CastExpr) Pos() Position { return e.Position }
func (e *CastExpr) exprNode()     {}

// ---- Statements ----

// ExprStmt is an expression used as a statement
type ExprStmt struct {
	Expr     Expr
	Position Position
}

func (s *ExprStmt) Pos() Position { return s.Position }
func (s *ExprStmt) stmtNode()     {}

// VarInit is one declarator in a declaration statement
type VarInit struct {
	Name     string
	Init     Expr   // nil when absent
	CtorArgs []Expr // Point p(1, 2); nil when absent
}

// DeclStmt declares one or more variables of a common base type.
// At top level it declares globals; inside a function, locals.
type DeclStmt struct {
	Type     TypeSpec
	Vars     []VarInit
	Position Position
}

func (s *DeclStmt) Pos() Position { return s.Position }
func (s *DeclStmt) stmtNode()     {}

// BlockStmt is a { ... } block
type BlockStmt struct {
	Stmts    []Stmt
	Position Position
}

func (s *BlockStmt) Pos() Position { return s.Position }
func (s *BlockStmt) stmtNode()     {}

// IfStmt is if/else
type IfStmt struct {
	Cond     Expr
	Then     Stmt
	Else     Stmt // nil when absent
	Position Position
}

func (s *IfStmt) Pos() Position { return s.Position }
func (s *IfStmt) stmtNode()     {}

// WhileStmt is a while loop
type WhileStmt struct {
	Cond     Expr
	Body     Stmt
	Position Position
}

func (s *WhileStmt) Pos() Position { return s.Position }
func (s *WhileStmt) stmtNode()     {}

// DoWhileStmt is a do { } while (cond); loop
type DoWhileStmt struct {
	Body     Stmt
	Cond     Expr
	Position Position
}

func (s *DoWhileStmt) Pos() Position { return s.Position }
func (s *DoWhileStmt) stmtNode()     {}

// ForStmt is a C for loop. Init may be a DeclStmt or ExprStmt; any of
// the three headers may be nil.
type ForStmt struct {
	Init     Stmt
	Cond     Expr
	Post     Expr
	Body     Stmt
	Position Position
}

func (s *ForStmt) Pos() Position { return s.Position }
func (s *ForStmt) stmtNode()     {}

// ReturnStmt returns from the enclosing function
type ReturnStmt struct {
	Value    Expr // nil for bare return
	Position Position
}

func (s *ReturnStmt) Pos() Position { return s.Position }
func (s *ReturnStmt) stmtNode()     {}

// BreakStmt exits the innermost loop
type BreakStmt struct {
	Position Position
}

func (s *BreakStmt) Pos() Position { return s.Position }
func (s *BreakStmt) stmtNode()     {}

// ContinueStmt continues the innermost loop
type ContinueStmt struct {
	Position Position
}

func (s *ContinueStmt) Pos() Position { return s.Position }
func (s *ContinueStmt) stmtNode()     {}

// ---- Declarations ----

// Param is one function parameter
type Param struct {
	Type TypeSpec
	Name string
}

// FuncDecl is a function definition, method definition
// (Class::name), or a bodyless prototype (an import request when it
// appears inside a #lib block).
type FuncDecl struct {
	Ret      TypeSpec
	Class    string // non-empty for Class::name definitions
	Name     string
	Params   []Param
	Body     *BlockStmt // nil for prototypes
	CLinkage bool       // declared extern "C"
	Const    bool       // const method qualifier
	Position Position
}

func (d *FuncDecl) Pos() Position { return d.Position }
func (d *FuncDecl) declNode()     {}

// QualifiedName returns Class::Name for methods, Name otherwise
func (d *FuncDecl) QualifiedName() string {
	if d.Class != "" {
		return d.Class + "::" + d.Name
	}
	return d.Name
}

// ExternGroup is an extern "C" { ... } block of prototypes
type ExternGroup struct {
	Decls    []*FuncDecl
	Position Position
}

func (d *ExternGroup) Pos() Position { return d.Position }
func (d *ExternGroup) declNode()     {}

// ClassDecl is a class or struct definition. Methods with inline
// bodies are carried as FuncDecls with Class set.
type ClassDecl struct {
	Name     string
	IsStruct bool
	Fields   []Param
	Methods  []*FuncDecl // includes constructor and destructor
	Position Position
}

func (d *ClassDecl) Pos() Position { return d.Position }
func (d *ClassDecl) declNode()     {}
