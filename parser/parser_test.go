package parser

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"cinder/ctype"
)

// ignorePos strips source positions from AST comparisons
var ignorePos = cmpopts.IgnoreTypes(Position{})

func parseExpr(t *testing.T, input string) Expr {
	t.Helper()
	p := NewParser(input)
	expr, err := p.ParseExpression(PREC_LOWEST)
	if err != nil {
		t.Fatalf("parse %q: %v", input, err)
	}
	return expr
}

func TestPrecedence(t *testing.T) {
	got := parseExpr(t, "1 + 2 * 3")
	want := &BinaryExpr{
		Operator: TOKEN_PLUS,
		Left:     &LiteralExpr{Value: ctype.NewInt(1)},
		Right: &BinaryExpr{
			Operator: TOKEN_STAR,
			Left:     &LiteralExpr{Value: ctype.NewInt(2)},
			Right:    &LiteralExpr{Value: ctype.NewInt(3)},
		},
	}
	if diff := cmp.Diff(want, got, ignorePos); diff != "" {
		t.Errorf("AST mismatch (-want +got):\n%s", diff)
	}
}

func TestAssignmentIsRightAssociative(t *testing.T) {
	got := parseExpr(t, "a = b = 1")
	want := &AssignExpr{
		Operator: TOKEN_ASSIGN,
		Target:   &IdentifierExpr{Name: "a"},
		Value: &AssignExpr{
			Operator: TOKEN_ASSIGN,
			Target:   &IdentifierExpr{Name: "b"},
			Value:    &LiteralExpr{Value: ctype.NewInt(1)},
		},
	}
	if diff := cmp.Diff(want, got, ignorePos); diff != "" {
		t.Errorf("AST mismatch (-want +got):\n%s", diff)
	}
}

func TestTernary(t *testing.T) {
	expr := parseExpr(t, "a > 0 ? a : -a")
	cond, ok := expr.(*CondExpr)
	if !ok {
		t.Fatalf("expected CondExpr, got %T", expr)
	}
	if _, ok := cond.Cond.(*BinaryExpr); !ok {
		t.Errorf("condition: expected BinaryExpr, got %T", cond.Cond)
	}
	if _, ok := cond.Else.(*UnaryExpr); !ok {
		t.Errorf("else arm: expected UnaryExpr, got %T", cond.Else)
	}
}

func TestMemberAndCall(t *testing.T) {
	expr := parseExpr(t, "p.norm(1, 2)")
	call, ok := expr.(*CallExpr)
	if !ok {
		t.Fatalf("expected CallExpr, got %T", expr)
	}
	member, ok := call.Callee.(*MemberExpr)
	if !ok {
		t.Fatalf("expected MemberExpr callee, got %T", call.Callee)
	}
	if member.Name != "norm" || member.Arrow {
		t.Errorf("member: got %q arrow=%v", member.Name, member.Arrow)
	}
	if len(call.Args) != 2 {
		t.Errorf("args: got %d, want 2", len(call.Args))
	}
}

func TestPostfixIncrement(t *testing.T) {
	expr := parseExpr(t, "n++")
	unary, ok := expr.(*UnaryExpr)
	if !ok {
		t.Fatalf("expected UnaryExpr, got %T", expr)
	}
	if unary.Operator != TOKEN_INCR || !unary.Postfix {
		t.Errorf("got operator %s postfix=%v", unary.Operator, unary.Postfix)
	}
}

func TestCastExpression(t *testing.T) {
	expr := parseExpr(t, "(int)3.9")
	cast, ok := expr.(*CastExpr)
	if !ok {
		t.Fatalf("expected CastExpr, got %T", expr)
	}
	if cast.To.Name != "int" || cast.To.PtrDepth != 0 {
		t.Errorf("cast target: got %s", cast.To)
	}
}

func TestParseFragmentItems(t *testing.T) {
	p := NewParser(`
int x = 5;
int twice(int n) { return 2 * n; }
x + 1;
`)
	items, err := p.ParseFragment()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}

	decl, ok := items[0].(*DeclStmt)
	if !ok {
		t.Fatalf("item 0: expected DeclStmt, got %T", items[0])
	}
	if decl.Type.Name != "int" || len(decl.Vars) != 1 || decl.Vars[0].Name != "x" {
		t.Errorf("item 0: got %s %v", decl.Type, decl.Vars)
	}

	fn, ok := items[1].(*FuncDecl)
	if !ok {
		t.Fatalf("item 1: expected FuncDecl, got %T", items[1])
	}
	if fn.Name != "twice" || fn.Body == nil || len(fn.Params) != 1 {
		t.Errorf("item 1: got %s body=%v params=%d", fn.Name, fn.Body != nil, len(fn.Params))
	}

	if _, ok := items[2].(*ExprStmt); !ok {
		t.Fatalf("item 2: expected ExprStmt, got %T", items[2])
	}
}

func TestParseClass(t *testing.T) {
	p := NewParser(`
class Point {
  double x, y;
  Point(double ax, double ay) { x = ax; y = ay; }
  ~Point() { }
  double norm() { return x; }
};
`)
	items, err := p.ParseFragment()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	cls, ok := items[0].(*ClassDecl)
	if !ok {
		t.Fatalf("expected ClassDecl, got %T", items[0])
	}
	if cls.Name != "Point" || len(cls.Fields) != 2 || len(cls.Methods) != 3 {
		t.Fatalf("got name=%s fields=%d methods=%d", cls.Name, len(cls.Fields), len(cls.Methods))
	}
	if cls.Methods[0].Name != "Point" || cls.Methods[0].Class != "Point" {
		t.Errorf("constructor: got %s::%s", cls.Methods[0].Class, cls.Methods[0].Name)
	}
	if cls.Methods[1].Name != "~Point" {
		t.Errorf("destructor: got %s", cls.Methods[1].Name)
	}
}

func TestParseOutOfLineMethod(t *testing.T) {
	p := NewParser("double Point::norm() { return 0; }")
	p.AddTypeName("Point")
	items, err := p.ParseFragment()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	fn, ok := items[0].(*FuncDecl)
	if !ok {
		t.Fatalf("expected FuncDecl, got %T", items[0])
	}
	if fn.Class != "Point" || fn.Name != "norm" || fn.QualifiedName() != "Point::norm" {
		t.Errorf("got class=%s name=%s", fn.Class, fn.Name)
	}
}

func TestParseExternGroup(t *testing.T) {
	p := NewParser(`extern "C" {
  int isalpha(int c);
  double sqrt(double x);
}`)
	items, err := p.ParseFragment()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	group, ok := items[0].(*ExternGroup)
	if !ok {
		t.Fatalf("expected ExternGroup, got %T", items[0])
	}
	if len(group.Decls) != 2 {
		t.Fatalf("expected 2 prototypes, got %d", len(group.Decls))
	}
	for _, d := range group.Decls {
		if !d.CLinkage {
			t.Errorf("%s: expected C linkage", d.Name)
		}
		if d.Body != nil {
			t.Errorf("%s: expected a bare prototype", d.Name)
		}
	}
}

func TestParseType(t *testing.T) {
	tests := []struct {
		input    string
		name     string
		ptrDepth int
		isConst  bool
	}{
		{"int", "int", 0, false},
		{"double", "double", 0, false},
		{"char*", "char", 1, false},
		{"const char*", "char", 1, true},
		{"void**", "void", 2, false},
	}
	for _, tt := range tests {
		spec, err := ParseType(tt.input, nil)
		if err != nil {
			t.Errorf("%q: %v", tt.input, err)
			continue
		}
		if spec.Name != tt.name || spec.PtrDepth != tt.ptrDepth || spec.Const != tt.isConst {
			t.Errorf("%q: got %+v", tt.input, spec)
		}
	}
	if _, err := ParseType("int junk", nil); err == nil {
		t.Error("expected error for trailing tokens")
	}
}

func TestParseErrors(t *testing.T) {
	tests := []string{
		"int broken( {",
		"1 + ;",
		"class X { int y };",
		"if (1 { }",
	}
	for _, input := range tests {
		p := NewParser(input)
		if _, err := p.ParseFragment(); err == nil {
			t.Errorf("%q: expected parse error", input)
		}
	}
}
