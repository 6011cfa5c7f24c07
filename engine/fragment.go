package engine

import (
	"errors"

	"cinder/ctype"
	"cinder/interop"
	"cinder/interop/mangle"
	"cinder/parser"
	"cinder/preproc"
	"cinder/state"
	"cinder/vm"
)

// run drives one fragment through the preprocessor and then through
// compile-and-execute, segment by segment. Declarations commit as they
// are reached, so a failure partway leaves earlier commits in place.
func (s *Session) run(fragment string) error {
	segments, err := s.pre.Process(fragment)
	if err != nil {
		return compileErrf("%s", err.Error())
	}
	for _, seg := range segments {
		if seg.Link != nil {
			err = s.linkSegment(seg)
		} else {
			err = s.execSegment(seg)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// execSegment parses ordinary source text and processes its items in
// order. Statements execute immediately; definitions commit to the
// persistent state.
func (s *Session) execSegment(seg preproc.Segment) error {
	items, err := s.parseItems(seg.Text)
	if err != nil {
		return compileErrf("%s", err.Error())
	}
	for _, item := range items {
		if err := s.execItem(item); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) execItem(item parser.Item) error {
	switch d := item.(type) {
	case *parser.ClassDecl:
		return s.commitClass(d)

	case *parser.FuncDecl:
		if d.Body == nil {
			return linkErrf("line %d: prototype %s may only appear inside a #lib block",
				d.Pos().Line, d.QualifiedName())
		}
		return s.commitFunc(d)

	case *parser.ExternGroup:
		return linkErrf("line %d: extern \"C\" prototypes may only appear inside a #lib block",
			d.Pos().Line)

	case *parser.DeclStmt:
		// commit the globals, then run their initializers
		t, err := s.table.ResolveType(d.Type)
		if err != nil {
			return compileErrf("line %d: %s", d.Pos().Line, err.Error())
		}
		for i := range d.Vars {
			if _, err := s.table.DefineGlobal(d.Vars[i].Name, t); err != nil {
				return compileErrf("line %d: %s", d.Pos().Line, err.Error())
			}
		}
		return s.runStmts([]parser.Stmt{d})

	case parser.Stmt:
		return s.runStmts([]parser.Stmt{d})

	default:
		return compileErrf("line %d: unexpected top-level construct", item.Pos().Line)
	}
}

// runStmts compiles statements as an immediate fragment and executes
// the pcode. A non-void result is captured as the fragment's value.
func (s *Session) runStmts(stmts []parser.Stmt) error {
	prog, err := vm.CompileFragment(s.table, stmts)
	if err != nil {
		return compileErrf("%s", err.Error())
	}
	val, err := s.machine.Run(prog)
	if err != nil {
		return faultErr(err)
	}
	if _, void := val.(ctype.VoidValue); !void && val != nil {
		s.terse = val.String()
		s.verbose = ctype.Verbose(val)
	}
	return nil
}

// commitFunc installs a function or out-of-line method definition.
// The body compiles immediately so definition errors surface now, not
// at first call.
func (s *Session) commitFunc(d *parser.FuncDecl) error {
	var recv *ctype.Class
	if d.Class != "" {
		c, ok := s.table.Class(d.Class)
		if !ok {
			return compileErrf("line %d: unknown class %q", d.Pos().Line, d.Class)
		}
		recv = c
	}
	_, ret, params, err := s.signatureFor(d, d.Class)
	if err != nil {
		return err
	}
	fn := &state.Func{
		Name:   d.QualifiedName(),
		Recv:   recv,
		Ret:    ret,
		Params: params,
		Const:  d.Const,
		Body:   d.Body,
	}
	if err := s.table.DefineFunc(fn); err != nil {
		return compileErrf("line %d: %s", d.Pos().Line, err.Error())
	}
	prog, err := vm.CompileFunc(s.table, fn)
	if err != nil {
		return compileErrf("%s", err.Error())
	}
	fn.Code = prog
	s.log.Debug("function defined", "signature", fn.Signature())
	return nil
}

// commitClass installs a class definition and its inline methods
func (s *Session) commitClass(d *parser.ClassDecl) error {
	class := &ctype.Class{Name: d.Name}
	for _, f := range d.Fields {
		ft, err := s.table.ResolveType(f.Type)
		if err != nil {
			return compileErrf("line %d: field %s: %s", d.Pos().Line, f.Name, err.Error())
		}
		class.Fields = append(class.Fields, ctype.Field{Name: f.Name, Type: ft})
	}
	if err := s.table.DefineClass(class); err != nil {
		return compileErrf("line %d: %s", d.Pos().Line, err.Error())
	}
	for _, m := range d.Methods {
		if m.Body == nil {
			return compileErrf("line %d: method %s::%s has no body",
				m.Pos().Line, d.Name, m.Name)
		}
		if err := s.commitFunc(m); err != nil {
			return err
		}
	}
	s.log.Debug("class defined", "name", d.Name, "fields", len(class.Fields),
		"methods", len(d.Methods))
	return nil
}

// linkSegment resolves the prototypes of one #lib block against the
// named module and installs the resulting bindings as callables. The
// block is atomic: no binding installs unless every prototype in it
// resolved. Class layouts commit during resolution since method
// signatures may refer to them.
func (s *Session) linkSegment(seg preproc.Segment) error {
	link, err := s.openLink(seg.Link)
	if err != nil {
		return err
	}
	items, err := s.parseItems(seg.Text)
	if err != nil {
		return compileErrf("%s", err.Error())
	}
	var pending []resolvedProto
	for _, item := range items {
		switch d := item.(type) {
		case *parser.FuncDecl:
			if d.Body != nil {
				return compileErrf("line %d: definitions are not allowed inside a #lib block",
					d.Pos().Line)
			}
			r, err := s.resolveProto(link, d)
			if err != nil {
				return err
			}
			pending = append(pending, r)
		case *parser.ExternGroup:
			for _, p := range d.Decls {
				r, err := s.resolveProto(link, p)
				if err != nil {
					return err
				}
				pending = append(pending, r)
			}
		case *parser.ClassDecl:
			rs, err := s.linkClass(link, d)
			if err != nil {
				return err
			}
			pending = append(pending, rs...)
		default:
			return compileErrf("line %d: only declarations may appear in a #lib block",
				item.Pos().Line)
		}
	}
	for _, r := range pending {
		if err := s.installResolved(r); err != nil {
			return err
		}
	}
	return nil
}

// resolvedProto is one prototype that resolved against its link but is
// not yet installed in the table.
type resolvedProto struct {
	decl    *parser.FuncDecl
	ret     *ctype.Type
	params  []state.Param
	binding *interop.Binding
}

func (s *Session) installResolved(r resolvedProto) error {
	if r.decl.Class != "" {
		return s.installMethod(r.decl.Class, r.decl, r.ret, r.params, r.binding)
	}
	return s.installNative(r.decl.Name, r.ret, r.params, r.binding)
}

// openLink opens a library link, reusing an existing handle for the
// same target. A '*' link targets the host process itself.
func (s *Session) openLink(spec *preproc.LinkSpec) (*interop.Link, error) {
	key := spec.Path
	if spec.Self {
		key = "*"
	}
	key += "|" + spec.Scheme
	if l, ok := s.links[key]; ok {
		return l, nil
	}
	l, err := interop.Open(spec.Path, spec.Self, spec.Scheme)
	if err != nil {
		if errors.Is(err, mangle.ErrSchemeUnsupported) {
			return nil, linkErrf("line %d: %s", spec.Line, err.Error())
		}
		return nil, linkErrf("line %d: cannot link %s: %s", spec.Line, spec.Path, err.Error())
	}
	s.links[key] = l
	s.table.AddLink(l)
	s.log.Info("library linked", "target", l.Target(), "scheme", spec.Scheme)
	return l, nil
}

// resolveProto resolves a single prototype against the link
func (s *Session) resolveProto(link *interop.Link, d *parser.FuncDecl) (resolvedProto, error) {
	sig, ret, params, err := s.signatureFor(d, d.Class)
	if err != nil {
		return resolvedProto{}, err
	}
	binding, err := link.Resolve(sig, interop.Cdecl)
	if err != nil {
		return resolvedProto{}, linkErrf("line %d: %s", d.Pos().Line, err.Error())
	}
	s.log.Debug("symbol resolved", "name", d.QualifiedName(), "symbol", binding.Symbol)
	return resolvedProto{decl: d, ret: ret, params: params, binding: binding}, nil
}

// linkClass registers a native class layout and resolves its method
// prototypes under the link's mangling scheme.
func (s *Session) linkClass(link *interop.Link, d *parser.ClassDecl) ([]resolvedProto, error) {
	class := &ctype.Class{Name: d.Name}
	for _, f := range d.Fields {
		ft, err := s.table.ResolveType(f.Type)
		if err != nil {
			return nil, compileErrf("line %d: field %s: %s", d.Pos().Line, f.Name, err.Error())
		}
		class.Fields = append(class.Fields, ctype.Field{Name: f.Name, Type: ft})
	}
	if err := s.table.DefineClass(class); err != nil {
		return nil, compileErrf("line %d: %s", d.Pos().Line, err.Error())
	}
	var out []resolvedProto
	for _, m := range d.Methods {
		if m.Body != nil {
			return nil, compileErrf("line %d: definitions are not allowed inside a #lib block",
				m.Pos().Line)
		}
		r, err := s.resolveProto(link, m)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// installMethod commits a native binding under a class scope
func (s *Session) installMethod(className string, d *parser.FuncDecl, ret *ctype.Type, params []state.Param, binding *interop.Binding) error {
	class, ok := s.table.Class(className)
	if !ok {
		return compileErrf("line %d: unknown class %q", d.Pos().Line, className)
	}
	fn := &state.Func{
		Name:   className + "::" + d.Name,
		Recv:   class,
		Ret:    ret,
		Params: params,
		Const:  d.Const,
		Native: binding,
	}
	if err := s.table.DefineFunc(fn); err != nil {
		return compileErrf("%s", err.Error())
	}
	return nil
}
