package vm

import (
	"strings"
	"testing"
	"unsafe"

	"cinder/ctype"
	"cinder/parser"
	"cinder/state"
)

// commit parses a fragment of definitions into the table: functions,
// classes and globals, the way a session would commit them.
func commit(t *testing.T, table *state.Table, src string) {
	t.Helper()
	p := parser.NewParser(src)
	for _, n := range table.TypeNames() {
		p.AddTypeName(n)
	}
	items, err := p.ParseFragment()
	if err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}
	for _, item := range items {
		switch d := item.(type) {
		case *parser.FuncDecl:
			commitFunc(t, table, d)
		case *parser.ClassDecl:
			class := &ctype.Class{Name: d.Name}
			for _, f := range d.Fields {
				ft, err := table.ResolveType(f.Type)
				if err != nil {
					t.Fatal(err)
				}
				class.Fields = append(class.Fields, ctype.Field{Name: f.Name, Type: ft})
			}
			if err := table.DefineClass(class); err != nil {
				t.Fatal(err)
			}
			for _, m := range d.Methods {
				commitFunc(t, table, m)
			}
		case *parser.DeclStmt:
			typ, err := table.ResolveType(d.Type)
			if err != nil {
				t.Fatal(err)
			}
			for i := range d.Vars {
				if _, err := table.DefineGlobal(d.Vars[i].Name, typ); err != nil {
					t.Fatal(err)
				}
			}
			runStmts(t, table, []parser.Stmt{d})
		default:
			t.Fatalf("unexpected item %T in commit fragment", item)
		}
	}
}

func commitFunc(t *testing.T, table *state.Table, d *parser.FuncDecl) {
	t.Helper()
	ret, err := table.ResolveType(d.Ret)
	if err != nil {
		t.Fatal(err)
	}
	fn := &state.Func{Name: d.QualifiedName(), Ret: ret, Const: d.Const, Body: d.Body}
	if d.Class != "" {
		class, ok := table.Class(d.Class)
		if !ok {
			t.Fatalf("unknown class %q", d.Class)
		}
		fn.Recv = class
	}
	for _, p := range d.Params {
		pt, err := table.ResolveType(p.Type)
		if err != nil {
			t.Fatal(err)
		}
		fn.Params = append(fn.Params, state.Param{Name: p.Name, Type: pt})
	}
	if err := table.DefineFunc(fn); err != nil {
		t.Fatal(err)
	}
}

func runStmts(t *testing.T, table *state.Table, stmts []parser.Stmt) ctype.Value {
	t.Helper()
	prog, err := CompileFragment(table, stmts)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	val, err := NewVM(table).Run(prog)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	return val
}

// eval compiles and runs one statement fragment against the table
func eval(t *testing.T, table *state.Table, src string) ctype.Value {
	t.Helper()
	return runStmts(t, table, mustStmts(t, table, src))
}

func evalErr(t *testing.T, table *state.Table, src string) error {
	t.Helper()
	prog, err := CompileFragment(table, mustStmts(t, table, src))
	if err != nil {
		return err
	}
	_, err = NewVM(table).Run(prog)
	return err
}

func TestExpressionResults(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"2 + 3 * 4;", "14"},
		{"20*2.3;", "46"},
		{"(1 + 2) * (3 + 4);", "21"},
		{"7 / 2;", "3"},
		{"7.5 / 2.5;", "3"},
		{"10 % 3;", "1"},
		{"-5 + 2;", "-3"},
		{"1 < 2;", "true"},
		{"2 == 2.0;", "true"},
		{"!true;", "false"},
		{"~0 & 255;", "255"},
		{"1 << 10;", "1024"},
		{"true ? 'y' : 'n';", "y"},
		{"(int)9.7;", "9"},
		{"(double)3;", "3"},
		{"\"abc\"[2];", "c"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			table := state.NewTable()
			if got := eval(t, table, tt.src).String(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLocalsAndControlFlow(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"locals", "{ int a = 3; int b = 4; a * b; }", ""},
		{"while_sum", `int total = 0;
int i = 1;
while (i <= 4) { total = total + i; i = i + 1; }
total;`, "10"},
		{"for_product", `int prod = 1;
for (int i = 1; i <= 5; i++) prod = prod * i;
prod;`, "120"},
		{"if_else", `int r = 0;
if (3 > 2) r = 1; else r = 2;
r;`, "1"},
		{"break_continue", `int n = 0;
for (int i = 0; i < 100; i++) {
  if (i % 2 == 0) continue;
  if (i > 8) break;
  n = n + i;
}
n;`, "16"},
		{"do_while", `int k = 0;
do { k++; } while (k < 3);
k;`, "3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := state.NewTable()
			got := eval(t, table, tt.src)
			if tt.want == "" {
				return
			}
			if got.String() != tt.want {
				t.Errorf("got %q, want %q", got.String(), tt.want)
			}
		})
	}
}

func TestGlobalsPersistAcrossPrograms(t *testing.T) {
	table := state.NewTable()
	commit(t, table, "int x = 5;")
	if got := eval(t, table, "x + 1;").String(); got != "6" {
		t.Fatalf("first read: got %q", got)
	}
	eval(t, table, "x = x * 3;")
	if got := eval(t, table, "x;").String(); got != "15" {
		t.Fatalf("after assignment: got %q", got)
	}
}

func TestGlobalAssignmentConverts(t *testing.T) {
	table := state.NewTable()
	commit(t, table, "int x;")
	eval(t, table, "x = 3.9;")
	got := eval(t, table, "x;")
	if got.String() != "3" {
		t.Errorf("got %q, want 3", got.String())
	}
	if got.Type().Kind != ctype.KindInt {
		t.Errorf("got kind %v, want int", got.Type().Kind)
	}
}

func TestFunctionCalls(t *testing.T) {
	table := state.NewTable()
	commit(t, table, `
int add(int a, int b) { return a + b; }
int fact(int n) { if (n < 2) return 1; return n * fact(n - 1); }
double halve(double x) { return x / 2; }
`)
	tests := []struct {
		src  string
		want string
	}{
		{"add(2, 3);", "5"},
		{"fact(5);", "120"},
		{"halve(7);", "3.5"},
		{"add(halve(8), 1);", "5"},
	}
	for _, tt := range tests {
		if got := eval(t, table, tt.src).String(); got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.src, got, tt.want)
		}
	}
}

func TestRedefinitionIsPickedUpByCompiledCallers(t *testing.T) {
	table := state.NewTable()
	commit(t, table, `
int base() { return 1; }
int caller() { return base() + 10; }
`)
	if got := eval(t, table, "caller();").String(); got != "11" {
		t.Fatalf("before redefinition: got %q", got)
	}
	commit(t, table, "int base() { return 2; }")
	if got := eval(t, table, "caller();").String(); got != "12" {
		t.Fatalf("after redefinition: got %q", got)
	}
}

func TestBuiltinCall(t *testing.T) {
	table := state.NewTable()
	table.Funcs["half"] = &state.Func{
		Name:   "half",
		Ret:    ctype.Double,
		Params: []state.Param{{Name: "x", Type: ctype.Double}},
		Builtin: func(args []ctype.Value) (ctype.Value, error) {
			f, _ := ctype.AsFloat(args[0])
			return ctype.NewDouble(f / 2), nil
		},
	}
	if got := eval(t, table, "half(9);").String(); got != "4.5" {
		t.Errorf("got %q", got)
	}
}

func TestClassesAndMethods(t *testing.T) {
	table := state.NewTable()
	commit(t, table, `
class Point {
  double x, y;
  Point(double ax, double ay) { x = ax; y = ay; }
  double dot() { return x*x + y*y; }
  double scaledDot(double s) { return s * dot(); }
};
`)
	commit(t, table, "Point p(3, 4);")
	tests := []struct {
		src  string
		want string
	}{
		{"p.x;", "3"},
		{"p.dot();", "25"},
		{"p.scaledDot(2);", "50"},
	}
	for _, tt := range tests {
		if got := eval(t, table, tt.src).String(); got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.src, got, tt.want)
		}
	}

	eval(t, table, "p.y = 0;")
	if got := eval(t, table, "p.dot();").String(); got != "9" {
		t.Errorf("after field write: got %q", got)
	}
}

func TestDestructorOnScopeExit(t *testing.T) {
	table := state.NewTable()
	commit(t, table, `
int count = 0;
class Probe {
  int pad;
  Probe() { pad = 0; }
  ~Probe() { count = count + 1; }
};
void touch() { Probe a; Probe b; }
`)
	eval(t, table, "touch();")
	if got := eval(t, table, "count;").String(); got != "2" {
		t.Errorf("destructor count: got %q", got)
	}
}

func TestAliasedGlobal(t *testing.T) {
	table := state.NewTable()
	var radius float64 = 2
	var area float64
	if _, err := table.Alias("radius", ctype.Double, unsafe.Pointer(&radius)); err != nil {
		t.Fatal(err)
	}
	if _, err := table.Alias("area", ctype.Double, unsafe.Pointer(&area)); err != nil {
		t.Fatal(err)
	}

	eval(t, table, "area = 2*3.1412*radius*radius;")
	want := 2 * 3.1412 * 2.0 * 2.0
	if area != want {
		t.Errorf("host storage: got %v, want %v", area, want)
	}

	radius = 3
	got := eval(t, table, "radius;")
	f, _ := ctype.AsFloat(got)
	if f != 3 {
		t.Errorf("host write not visible: got %v", f)
	}
}

func TestRuntimeFaults(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"div_by_zero", "1 / 0;", "division by zero"},
		{"undefined_call", "missing();", "undefined function"},
		{"bad_operand", `"abc" * 2;`, "numeric operands"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := state.NewTable()
			err := evalErr(t, table, tt.src)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("got %q, want substring %q", err.Error(), tt.want)
			}
		})
	}
}

func TestArityAndConversionChecks(t *testing.T) {
	table := state.NewTable()
	commit(t, table, "int id(int n) { return n; }")
	if err := evalErr(t, table, "id(1, 2);"); err == nil {
		t.Error("expected arity error")
	}
	if err := evalErr(t, table, "id(\"nope\");"); err == nil {
		t.Error("expected conversion error")
	}
}

func TestStepLimit(t *testing.T) {
	table := state.NewTable()
	commit(t, table, "void spin() { while (true) { } }")
	prog, err := CompileFragment(table, mustStmts(t, table, "spin();"))
	if err != nil {
		t.Fatal(err)
	}
	machine := NewVM(table)
	machine.StepLimit = 10000
	if _, err := machine.Run(prog); err == nil {
		t.Fatal("expected step-limit fault")
	} else if !strings.Contains(err.Error(), "step limit") {
		t.Errorf("got %q", err.Error())
	}
}

// mustStmts parses a statement fragment, committing the globals of
// any top-level declaration first so SET_GLOBAL resolves, the way the
// host pipeline does.
func mustStmts(t *testing.T, table *state.Table, src string) []parser.Stmt {
	t.Helper()
	p := parser.NewParser(src)
	for _, n := range table.TypeNames() {
		p.AddTypeName(n)
	}
	items, err := p.ParseFragment()
	if err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}
	var stmts []parser.Stmt
	for _, item := range items {
		s, ok := item.(parser.Stmt)
		if !ok {
			t.Fatalf("%q: expected statements, got %T", src, item)
		}
		if d, ok := item.(*parser.DeclStmt); ok {
			typ, err := table.ResolveType(d.Type)
			if err != nil {
				t.Fatal(err)
			}
			for i := range d.Vars {
				if _, err := table.DefineGlobal(d.Vars[i].Name, typ); err != nil {
					t.Fatal(err)
				}
			}
		}
		stmts = append(stmts, s)
	}
	return stmts
}

func TestCallFunctionFromHost(t *testing.T) {
	table := state.NewTable()
	commit(t, table, `
int add(int a, int b) { return a + b; }
void noop() { }
`)
	machine := NewVM(table)
	r, err := machine.CallFunction("add", []ctype.Value{ctype.NewInt(4), ctype.NewInt(5)})
	if err != nil {
		t.Fatal(err)
	}
	if r.String() != "9" {
		t.Errorf("got %q", r.String())
	}

	r, err = machine.CallFunction("noop", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := r.(ctype.VoidValue); !ok {
		t.Errorf("void callee returned %T", r)
	}
}

func TestNestedCallKeepsStepAccounting(t *testing.T) {
	table := state.NewTable()
	commit(t, table, `
int inner() { return 1; }
void outer() {
  int i = 0;
  while (i < 1000) { poke(); i = i + 1; }
}
`)
	machine := NewVM(table)
	table.Funcs["poke"] = &state.Func{
		Name: "poke",
		Ret:  ctype.Int,
		Builtin: func(args []ctype.Value) (ctype.Value, error) {
			return machine.CallFunction("inner", nil)
		},
	}
	machine.StepLimit = 2000
	prog, err := CompileFragment(table, mustStmts(t, table, "outer();"))
	if err != nil {
		t.Fatal(err)
	}
	_, err = machine.Run(prog)
	if err == nil {
		t.Fatal("the loop runs far past the step limit and must fault")
	}
	if !strings.Contains(err.Error(), "step limit") {
		t.Errorf("got %q", err.Error())
	}
}

func TestFaultCarriesLocation(t *testing.T) {
	table := state.NewTable()
	commit(t, table, `int boom() {
  int a = 1;
  return a / 0;
}`)
	err := evalErr(t, table, "boom();")
	if err == nil {
		t.Fatal("expected fault")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("fault should name the function: %q", err.Error())
	}
}

func TestDisassembleSmoke(t *testing.T) {
	table := state.NewTable()
	prog, err := CompileFragment(table, mustStmts(t, table, "1 + 2;"))
	if err != nil {
		t.Fatal(err)
	}
	text := prog.Disassemble()
	for _, want := range []string{"PUSH", "ADD", "RETURN"} {
		if !strings.Contains(text, want) {
			t.Errorf("disassembly missing %s:\n%s", want, text)
		}
	}
}
