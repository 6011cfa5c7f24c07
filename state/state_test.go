package state

import (
	"testing"
	"unsafe"

	"cinder/ctype"
	"cinder/parser"
)

func TestResolveType(t *testing.T) {
	table := NewTable()
	table.Classes["Point"] = &ctype.Class{Name: "Point"}

	tests := []struct {
		spec parser.TypeSpec
		want string
	}{
		{parser.TypeSpec{Name: "int"}, "int"},
		{parser.TypeSpec{Name: "unsigned"}, "int"},
		{parser.TypeSpec{Name: "double"}, "double"},
		{parser.TypeSpec{Name: "char", PtrDepth: 1}, "char*"},
		{parser.TypeSpec{Name: "void", PtrDepth: 2}, "void**"},
		{parser.TypeSpec{Name: "Point"}, "Point"},
		{parser.TypeSpec{Name: "Point", PtrDepth: 1}, "Point*"},
	}
	for _, tt := range tests {
		typ, err := table.ResolveType(tt.spec)
		if err != nil {
			t.Errorf("%v: %v", tt.spec, err)
			continue
		}
		if typ.String() != tt.want {
			t.Errorf("%v: got %s, want %s", tt.spec, typ, tt.want)
		}
	}

	if _, err := table.ResolveType(parser.TypeSpec{Name: "NoSuch"}); err == nil {
		t.Error("expected error for unknown type")
	}
}

func TestDefineClassRejectsRedefinition(t *testing.T) {
	table := NewTable()
	if err := table.DefineClass(&ctype.Class{Name: "Point"}); err != nil {
		t.Fatal(err)
	}
	if err := table.DefineClass(&ctype.Class{Name: "Point"}); err == nil {
		t.Error("expected redefinition error")
	}
}

func TestDefineFuncReplacement(t *testing.T) {
	table := NewTable()
	first := &Func{
		Name:   "twice",
		Ret:    ctype.Int,
		Params: []Param{{Name: "n", Type: ctype.Int}},
	}
	if err := table.DefineFunc(first); err != nil {
		t.Fatal(err)
	}

	// same signature replaces
	second := &Func{
		Name:   "twice",
		Ret:    ctype.Int,
		Params: []Param{{Name: "m", Type: ctype.Int}},
	}
	if err := table.DefineFunc(second); err != nil {
		t.Fatalf("same-signature redefinition: %v", err)
	}
	got, _ := table.Func("twice")
	if got != second {
		t.Error("redefinition did not install the new function")
	}

	// signature change is rejected
	third := &Func{
		Name:   "twice",
		Ret:    ctype.Double,
		Params: []Param{{Name: "n", Type: ctype.Double}},
	}
	if err := table.DefineFunc(third); err == nil {
		t.Error("expected conflicting-redefinition error")
	}
}

func TestDefineGlobal(t *testing.T) {
	table := NewTable()
	g, err := table.DefineGlobal("x", ctype.Int)
	if err != nil {
		t.Fatal(err)
	}
	if g.Val.String() != "0" {
		t.Errorf("fresh global value: %s", g.Val)
	}

	g.Val = ctype.NewInt(7)
	again, err := table.DefineGlobal("x", ctype.Int)
	if err != nil {
		t.Fatal(err)
	}
	if again != g || again.Val.String() != "7" {
		t.Error("redeclaration must return the existing global with its value")
	}

	if _, err := table.DefineGlobal("x", ctype.Double); err == nil {
		t.Error("expected type-change error")
	}
}

func TestAlias(t *testing.T) {
	table := NewTable()
	var host float64
	g, err := table.Alias("radius", ctype.Double, unsafe.Pointer(&host))
	if err != nil {
		t.Fatal(err)
	}
	if !g.Aliased() {
		t.Error("alias not marked as host-backed")
	}
	if _, err := table.Alias("radius", ctype.Int, unsafe.Pointer(&host)); err == nil {
		t.Error("expected type mismatch error")
	}
}

func TestSignatureRendering(t *testing.T) {
	f := &Func{
		Name:   "Point::norm",
		Ret:    ctype.Double,
		Params: []Param{{Name: "scale", Type: ctype.Double}},
	}
	if got := f.Signature(); got != "double Point::norm(double)" {
		t.Errorf("got %q", got)
	}

	deduced := &Func{Name: "__compiled1"}
	if got := deduced.Signature(); got != "auto __compiled1()" {
		t.Errorf("got %q", got)
	}
}

func TestMarkIncluded(t *testing.T) {
	table := NewTable()
	if !table.MarkIncluded("/abs/defs.h") {
		t.Error("first inclusion must report true")
	}
	if table.MarkIncluded("/abs/defs.h") {
		t.Error("second inclusion must report false")
	}
}

func TestTypeNamesSorted(t *testing.T) {
	table := NewTable()
	table.Classes["Zeta"] = &ctype.Class{Name: "Zeta"}
	table.Classes["Alpha"] = &ctype.Class{Name: "Alpha"}
	names := table.TypeNames()
	if len(names) != 2 || names[0] != "Alpha" || names[1] != "Zeta" {
		t.Errorf("got %v", names)
	}
}
