package engine

import (
	"fmt"
	"unsafe"

	"cinder/ctype"
	"cinder/interop"
	"cinder/interop/mangle"
	"cinder/parser"
	"cinder/state"
	"cinder/vm"
)

// Compiled is a host handle to a function compiled once and callable
// many times. The return type is deduced from the body's return
// statements at run time.
type Compiled struct {
	s    *Session
	name string
}

// Compile builds an anonymous callable from a parameter list and a
// body. The body may use and extend every previously committed
// declaration.
func (s *Session) Compile(params, body string) (*Compiled, error) {
	if s.closed {
		return nil, ErrClosed
	}
	fn, err := s.compileUnit(params, body)
	if err != nil {
		return nil, err
	}
	return &Compiled{s: s, name: fn.Name}, nil
}

// compileUnit parses and commits one synthesized callable. A nil
// return type marks it value-deducing: whatever a return statement
// yields comes back unconverted.
func (s *Session) compileUnit(params, body string) (*state.Func, error) {
	s.compiled++
	name := fmt.Sprintf("__compiled%d", s.compiled)
	src := fmt.Sprintf("void %s(%s) {\n%s\n}", name, params, body)

	items, err := s.parseItems(src)
	if err != nil {
		return nil, compileErrf("%s", err.Error())
	}
	if len(items) != 1 {
		return nil, compileErrf("expected a single callable body")
	}
	d, ok := items[0].(*parser.FuncDecl)
	if !ok {
		return nil, compileErrf("expected a single callable body")
	}
	_, _, ps, err := s.signatureFor(d, "")
	if err != nil {
		return nil, err
	}
	fn := &state.Func{
		Name:   name,
		Params: ps,
		Body:   d.Body,
	}
	if err := s.table.DefineFunc(fn); err != nil {
		return nil, compileErrf("%s", err.Error())
	}
	prog, err := vm.CompileFunc(s.table, fn)
	if err != nil {
		return nil, compileErrf("%s", err.Error())
	}
	fn.Code = prog
	return fn, nil
}

// Call invokes the compiled body with host-native arguments
func (c *Compiled) Call(args ...any) (ctype.Value, error) {
	if c.s.closed {
		return nil, ErrClosed
	}
	vals := make([]ctype.Value, len(args))
	for i, a := range args {
		v, err := hostValue(a)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		vals[i] = v
	}
	r, err := c.s.machine.CallFunction(c.name, vals)
	if err != nil {
		return nil, faultErr(err)
	}
	return r, nil
}

// hostValue converts a Go value into a scripting value
func hostValue(a any) (ctype.Value, error) {
	switch v := a.(type) {
	case ctype.Value:
		return v, nil
	case int:
		return ctype.NewInt(int64(v)), nil
	case int32:
		return ctype.NewInt(int64(v)), nil
	case int64:
		return ctype.NewLong(v), nil
	case float64:
		return ctype.NewDouble(v), nil
	case float32:
		return ctype.NewFloat(float64(v)), nil
	case string:
		return ctype.NewStr(v), nil
	case bool:
		return ctype.NewBool(v), nil
	case byte:
		return ctype.NewChar(v), nil
	case unsafe.Pointer:
		return ctype.PtrValue{Addr: v, T: ctype.PointerTo(ctype.Void)}, nil
	default:
		return nil, fmt.Errorf("unsupported host argument type %T", a)
	}
}

// CompileNative builds a callable like Compile and additionally
// synthesizes a native entry point for it, so host code (or a native
// library expecting a callback) can invoke the scripted body through a
// plain function pointer. The return type is explicit because the
// native call frame needs a static layout.
func (s *Session) CompileNative(ret, params, body string, conv interop.Convention) (uintptr, error) {
	if s.closed {
		return 0, ErrClosed
	}
	if !interop.Available() {
		return 0, linkErrf("%s", interop.ErrUnavailable.Error())
	}
	fn, err := s.compileUnit(params, body)
	if err != nil {
		return 0, err
	}
	spec, err := parser.ParseType(ret, s.table.TypeNames())
	if err != nil {
		return 0, compileErrf("%s: %s", ret, err.Error())
	}
	rt, err := s.table.ResolveType(spec)
	if err != nil {
		return 0, compileErrf("%s", err.Error())
	}
	fn.Ret = rt
	fn.Code = nil // recompile under the now-known return type

	sig := mangle.Signature{Name: fn.Name, Ret: rt, CLinkage: true}
	for _, p := range fn.Params {
		sig.Params = append(sig.Params, p.Type)
	}
	name := fn.Name
	stub, err := interop.NewStub(sig, conv, func(args []ctype.Value) (ctype.Value, error) {
		return s.machine.CallFunction(name, args)
	})
	if err != nil {
		return 0, linkErrf("%s", err.Error())
	}
	s.table.AddStub(stub)
	s.log.Debug("native stub built", "name", name, "entry", fmt.Sprintf("%#x", stub.Entry))
	return stub.Entry, nil
}
