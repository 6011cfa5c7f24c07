// Package state holds the persistent program state a session
// accumulates across fragments: classes, functions, globals, open
// link blocks, and the set of included files. Compilation of any
// fragment happens against this table, and successful declarations
// commit into it.
package state

import (
	"fmt"
	"sort"
	"unsafe"

	"cinder/ctype"
	"cinder/interop"
	"cinder/parser"
)

// BuiltinFunc is a host-side function exposed to scripts.
type BuiltinFunc func(args []ctype.Value) (ctype.Value, error)

// Param is a resolved function parameter.
type Param struct {
	Name string
	Type *ctype.Type
}

// Func is one callable: a scripted function or method, a native
// import, or a host builtin. Exactly one of Body, Native, Builtin is
// set.
type Func struct {
	Name   string       // qualified: "sqr" or "Point::norm"
	Recv   *ctype.Class // non-nil for methods
	Ret    *ctype.Type
	Params []Param
	Const  bool // const method qualifier

	// Variadic marks host builtins like printf that take any trailing
	// arguments after the declared parameters.
	Variadic bool

	Body *parser.BlockStmt // scripted definition
	// Code caches the compiled body. It is owned by the compiler,
	// which knows its concrete type; keeping it opaque here avoids a
	// dependency from state onto the code generator.
	Code any

	Native  *interop.Binding
	Builtin BuiltinFunc
}

// Scripted reports whether the function has a script body.
func (f *Func) Scripted() bool { return f.Body != nil }

// Signature renders the function header for diagnostics.
func (f *Func) Signature() string {
	ret := "auto"
	if f.Ret != nil {
		ret = f.Ret.String()
	}
	s := ret + " " + f.Name + "("
	for i, p := range f.Params {
		if i > 0 {
			s += ", "
		}
		s += p.Type.String()
	}
	return s + ")"
}

// Global is one session-lifetime variable. Addr is non-nil when the
// variable aliases host memory; the VM then reads and writes through
// the pointer instead of Val.
type Global struct {
	Name string
	Type *ctype.Type
	Val  ctype.Value
	Addr unsafe.Pointer
}

// Aliased reports whether the global is backed by host memory.
func (g *Global) Aliased() bool { return g.Addr != nil }

// Table is the session's symbol table.
type Table struct {
	Classes map[string]*ctype.Class
	Funcs   map[string]*Func
	Globals map[string]*Global

	// Included maps canonical include paths already processed.
	Included map[string]bool

	globalOrder []string
	links       []*interop.Link
	stubs       []*interop.Stub
}

// NewTable creates an empty symbol table.
func NewTable() *Table {
	return &Table{
		Classes:  make(map[string]*ctype.Class),
		Funcs:    make(map[string]*Func),
		Globals:  make(map[string]*Global),
		Included: make(map[string]bool),
	}
}

// ResolveType turns a parsed type spec into a concrete type. Class
// names must already be defined.
func (t *Table) ResolveType(ts parser.TypeSpec) (*ctype.Type, error) {
	var base *ctype.Type
	switch ts.Name {
	case "void":
		base = ctype.Void
	case "bool":
		base = ctype.Bool
	case "char":
		base = ctype.Char
	case "int", "unsigned":
		base = ctype.Int
	case "long":
		base = ctype.Long
	case "float":
		base = ctype.Float
	case "double":
		base = ctype.Double
	default:
		c, ok := t.Classes[ts.Name]
		if !ok {
			return nil, fmt.Errorf("unknown type %q", ts.Name)
		}
		base = c.TypeOf()
	}
	if ts.Const && ts.PtrDepth == 0 {
		base = base.WithConst()
	}
	for i := 0; i < ts.PtrDepth; i++ {
		if i == 0 && ts.Const {
			base = base.WithConst()
		}
		base = ctype.PointerTo(base)
	}
	return base, nil
}

// DefineClass installs a class. Redefinition is an error; incremental
// work redefines functions, not layouts other code may depend on.
func (t *Table) DefineClass(c *ctype.Class) error {
	if _, ok := t.Classes[c.Name]; ok {
		return fmt.Errorf("class %q is already defined", c.Name)
	}
	t.Classes[c.Name] = c
	return nil
}

// Class looks up a class by name.
func (t *Table) Class(name string) (*ctype.Class, bool) {
	c, ok := t.Classes[name]
	return c, ok
}

// DefineFunc installs or replaces a callable. Replacing an existing
// definition is the core of incremental development: callers compiled
// earlier pick up the new body because calls resolve through the
// table at run time.
func (t *Table) DefineFunc(f *Func) error {
	if old, ok := t.Funcs[f.Name]; ok {
		if !sameSignature(old, f) {
			return fmt.Errorf("%s: conflicting redefinition of %s", f.Name, old.Signature())
		}
	}
	t.Funcs[f.Name] = f
	return nil
}

// Func looks up a callable by qualified name.
func (t *Table) Func(name string) (*Func, bool) {
	f, ok := t.Funcs[name]
	return f, ok
}

func sameSignature(a, b *Func) bool {
	if !a.Ret.Same(b.Ret) || len(a.Params) != len(b.Params) {
		return false
	}
	for i := range a.Params {
		if !a.Params[i].Type.Same(b.Params[i].Type) {
			return false
		}
	}
	return true
}

// DefineGlobal installs a global, or returns the existing one when a
// redeclaration carries the same type. A type change is an error; the
// variable keeps its value either way.
func (t *Table) DefineGlobal(name string, typ *ctype.Type) (*Global, error) {
	if g, ok := t.Globals[name]; ok {
		if !g.Type.Same(typ) {
			return nil, fmt.Errorf("%s: redeclared as %s, was %s", name, typ, g.Type)
		}
		return g, nil
	}
	g := &Global{Name: name, Type: typ, Val: ctype.Zero(typ)}
	t.Globals[name] = g
	t.globalOrder = append(t.globalOrder, name)
	return g, nil
}

// Global looks up a global by name.
func (t *Table) Global(name string) (*Global, bool) {
	g, ok := t.Globals[name]
	return g, ok
}

// GlobalNames returns globals in declaration order.
func (t *Table) GlobalNames() []string {
	out := make([]string, len(t.globalOrder))
	copy(out, t.globalOrder)
	return out
}

// Alias binds a global to host memory. A fresh global is declared
// when the name is unknown; an existing one must match the type.
func (t *Table) Alias(name string, typ *ctype.Type, addr unsafe.Pointer) (*Global, error) {
	g, err := t.DefineGlobal(name, typ)
	if err != nil {
		return nil, err
	}
	g.Addr = addr
	return g, nil
}

// MarkIncluded records an include; it reports false when the path was
// already processed.
func (t *Table) MarkIncluded(canonical string) bool {
	if t.Included[canonical] {
		return false
	}
	t.Included[canonical] = true
	return true
}

// AddLink takes ownership of an opened library link.
func (t *Table) AddLink(l *interop.Link) {
	t.links = append(t.links, l)
}

// AddStub takes ownership of a generated native stub.
func (t *Table) AddStub(s *interop.Stub) {
	t.stubs = append(t.stubs, s)
}

// TypeNames returns every defined class name, sorted, for seeding the
// parser's type-name set.
func (t *Table) TypeNames() []string {
	names := make([]string, 0, len(t.Classes))
	for n := range t.Classes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Close releases every stub and library link the table owns.
func (t *Table) Close() error {
	var first error
	for _, s := range t.stubs {
		s.Release()
	}
	t.stubs = nil
	for _, l := range t.links {
		if err := l.Close(); err != nil && first == nil {
			first = err
		}
	}
	t.links = nil
	return first
}
