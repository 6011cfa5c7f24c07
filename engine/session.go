// Package engine is the host-facing surface of the scripting core. A
// Session owns one persistent program state: the host feeds it source
// fragments at arbitrary times, each compiled incrementally against
// everything committed before it and executed immediately.
package engine

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unsafe"

	"cinder/ctype"
	"cinder/interop"
	"cinder/interop/mangle"
	"cinder/parser"
	"cinder/preproc"
	"cinder/state"
	"cinder/vm"
)

// Options configures a new session.
type Options struct {
	// Bootstrap preloads the baseline declarations: stdio, math and
	// string prototypes backed by host builtins.
	Bootstrap bool

	// Logger receives structured engine logs; nil selects
	// slog.Default().
	Logger *slog.Logger

	// IncludePath lists directories searched by #include and Include
	// after the literal path itself.
	IncludePath []string

	// StepLimit bounds pcode steps per execution; 0 means unlimited.
	StepLimit int64
}

// Session is one scripting environment with a persistent program
// state. It is single-threaded: the host serializes all calls.
type Session struct {
	log     *slog.Logger
	table   *state.Table
	machine *vm.VM
	pre     *preproc.Processor

	includePath []string
	out         *lineBuffer
	links       map[string]*interop.Link

	verbose  string // last result, "(type) value"
	terse    string // last result, value only
	lastErr  string
	compiled int // names for Compile units
	closed   bool
}

// Open creates a session.
func Open(opts Options) (*Session, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	s := &Session{
		log:         log,
		table:       state.NewTable(),
		includePath: opts.IncludePath,
		out:         newLineBuffer(),
		links:       make(map[string]*interop.Link),
	}
	s.machine = vm.NewVM(s.table)
	s.machine.StepLimit = opts.StepLimit
	s.pre = &preproc.Processor{
		Macros:   preproc.NewTable(),
		Included: s.table.Included,
		Open:     s.openInclude,
	}
	s.pre.Macros.Define(&preproc.Macro{Name: "__CINDER__", Body: "1"})

	if opts.Bootstrap {
		if err := s.bootstrap(); err != nil {
			return nil, fmt.Errorf("bootstrap: %w", err)
		}
	}
	log.Info("session opened", "bootstrap", opts.Bootstrap,
		"native", interop.Available())
	return s, nil
}

// openInclude resolves an include path against the search path and
// returns the file content plus a canonical identity for idempotent
// inclusion.
func (s *Session) openInclude(path string) (string, string, error) {
	candidates := []string{path}
	for _, dir := range s.includePath {
		candidates = append(candidates, filepath.Join(dir, path))
	}
	for _, cand := range candidates {
		data, err := os.ReadFile(cand)
		if err != nil {
			continue
		}
		canonical, err := filepath.Abs(cand)
		if err != nil {
			canonical = cand
		}
		return string(data), canonical, nil
	}
	return "", "", fmt.Errorf("cannot open %q", path)
}

// Exec compiles and runs one fragment. On failure the error text is
// also retrievable through LastError; on success the formatted result
// of a trailing expression statement is retrievable through Result.
func (s *Session) Exec(fragment string) error {
	if s.closed {
		return ErrClosed
	}
	s.verbose, s.terse, s.lastErr = "", "", ""
	err := s.run(fragment)
	if err != nil {
		s.lastErr = err.Error()
		s.log.Debug("exec failed", "error", err)
	}
	return err
}

// Eval executes a fragment and returns the terse result text. A
// trailing statement terminator is not required.
func (s *Session) Eval(fragment string) (string, error) {
	trimmed := strings.TrimSpace(fragment)
	if trimmed != "" && !strings.HasSuffix(trimmed, ";") && !strings.HasSuffix(trimmed, "}") {
		trimmed += ";"
	}
	if err := s.Exec(trimmed); err != nil {
		return "", err
	}
	return s.terse, nil
}

// Result returns the last formatted result, verbose form: "(type) value".
func (s *Session) Result() string { return s.verbose }

// Value returns the last result's bare value text, no type prefix
func (s *Session) Value() string { return s.terse }

// LastError returns the last failure's message, empty after success.
func (s *Session) LastError() string { return s.lastErr }

// ResultInto copies the last verbose result into buf, truncating to
// capacity, and returns the number of bytes written.
func (s *Session) ResultInto(buf []byte) int {
	return copy(buf, s.verbose)
}

// ErrorInto copies the last error message into buf, truncating to
// capacity, and returns the number of bytes written.
func (s *Session) ErrorInto(buf []byte) int {
	return copy(buf, s.lastErr)
}

// Include processes a file-inclusion directive, honoring idempotent
// inclusion: a path already included is a no-op.
func (s *Session) Include(path string) error {
	return s.Exec(fmt.Sprintf("#include %q\n", path))
}

// Load compiles and runs a whole file. Unlike Include it always
// processes the file, regardless of the included set.
func (s *Session) Load(path string) error {
	if s.closed {
		return ErrClosed
	}
	content, _, err := s.openInclude(path)
	if err != nil {
		return compileErrf("%s", err.Error())
	}
	return s.Exec(content)
}

// SetQuoted assigns literal text to an existing string-typed scripted
// variable without the host escaping quote characters.
func (s *Session) SetQuoted(name, literal string) error {
	if s.closed {
		return ErrClosed
	}
	g, ok := s.table.Global(name)
	if !ok {
		return compileErrf("undefined variable %q", name)
	}
	if !g.Type.IsString() {
		return compileErrf("%s is %s, not a string", name, g.Type)
	}
	if g.Aliased() {
		return compileErrf("%s aliases host memory; assign through the host instead", name)
	}
	g.Val = ctype.NewStr(literal)
	return nil
}

// InitRef binds a scripted name to host memory. Reads and writes
// dereference addr as the declared type; the engine allocates no
// storage and never validates the pointer.
func (s *Session) InitRef(typeText, name string, addr unsafe.Pointer) error {
	if s.closed {
		return ErrClosed
	}
	spec, err := parser.ParseType(typeText, s.table.TypeNames())
	if err != nil {
		return compileErrf("%s: %s", typeText, err.Error())
	}
	t, err := s.table.ResolveType(spec)
	if err != nil {
		return compileErrf("%s", err.Error())
	}
	if _, err := s.table.Alias(name, t, addr); err != nil {
		return compileErrf("%s", err.Error())
	}
	s.log.Debug("host alias bound", "name", name, "type", t.String())
	return nil
}

// Import registers a host-supplied address directly as a native
// binding, bypassing library-link resolution. A function prototype
// installs a callable; a variable declaration installs a host alias.
// The reserved name __printer installs an output sink.
func (s *Session) Import(signature string, addr unsafe.Pointer) error {
	if s.closed {
		return ErrClosed
	}
	items, err := s.parseItems(signature)
	if err != nil {
		return compileErrf("%s", err.Error())
	}
	if len(items) != 1 {
		return compileErrf("import expects exactly one declaration")
	}
	switch d := items[0].(type) {
	case *parser.FuncDecl:
		if d.Body != nil {
			return compileErrf("import expects a prototype, not a definition")
		}
		sig, ret, params, err := s.signatureFor(d, "")
		if err != nil {
			return err
		}
		binding, err := interop.BindAddress(sig, addr, interop.Cdecl)
		if err != nil {
			return linkErrf("%s: %s", d.Name, err.Error())
		}
		return s.installNative(d.Name, ret, params, binding)
	case *parser.DeclStmt:
		if len(d.Vars) != 1 || d.Vars[0].Init != nil || d.Vars[0].CtorArgs != nil {
			return compileErrf("import expects a single bare variable declaration")
		}
		t, err := s.table.ResolveType(d.Type)
		if err != nil {
			return compileErrf("%s", err.Error())
		}
		if _, err := s.table.Alias(d.Vars[0].Name, t, addr); err != nil {
			return compileErrf("%s", err.Error())
		}
		return nil
	default:
		return compileErrf("cannot import %T", items[0])
	}
}

// SetOutput registers a Go host sink for scripted output; nil
// restores the default console stream.
func (s *Session) SetOutput(sink func(line string)) {
	if sink == nil {
		s.out.sink = consoleSink
		return
	}
	s.out.sink = sink
}

// Flush delivers any buffered partial output line to the sink.
func (s *Session) Flush() {
	s.out.Flush()
}

// SetTracer installs a pcode tracer on the machine; nil removes it
func (s *Session) SetTracer(t vm.Tracer) {
	s.machine.Tracer = t
}

// Table exposes the session's symbol table to embedding code that
// registers builtins of its own.
func (s *Session) Table() *state.Table { return s.table }

// Close tears the session down: stubs are released and library links
// closed. Any later use of the session returns ErrClosed.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.table.Close()
	s.log.Info("session closed")
	return err
}

// parseItems parses preprocessed text with the table's class names
// visible as types.
func (s *Session) parseItems(text string) ([]parser.Item, error) {
	p := parser.NewParser(text)
	for _, name := range s.table.TypeNames() {
		p.AddTypeName(name)
	}
	return p.ParseFragment()
}

// signatureFor resolves a prototype's types into a mangling signature
func (s *Session) signatureFor(d *parser.FuncDecl, class string) (mangle.Signature, *ctype.Type, []state.Param, error) {
	ret, err := s.table.ResolveType(d.Ret)
	if err != nil {
		return mangle.Signature{}, nil, nil, compileErrf("%s: %s", d.Name, err.Error())
	}
	params := make([]state.Param, len(d.Params))
	sig := mangle.Signature{
		Name:     d.Name,
		Class:    class,
		Ret:      ret,
		Const:    d.Const,
		CLinkage: d.CLinkage,
	}
	for i, p := range d.Params {
		t, err := s.table.ResolveType(p.Type)
		if err != nil {
			return mangle.Signature{}, nil, nil, compileErrf("%s: %s", d.Name, err.Error())
		}
		name := p.Name
		if name == "" {
			name = fmt.Sprintf("__arg%d", i)
		}
		params[i] = state.Param{Name: name, Type: t}
		sig.Params = append(sig.Params, t)
	}
	return sig, ret, params, nil
}

// installNative commits a resolved binding as a callable, handling
// the reserved __printer sink name.
func (s *Session) installNative(name string, ret *ctype.Type, params []state.Param, binding *interop.Binding) error {
	fn := &state.Func{
		Name:   name,
		Ret:    ret,
		Params: params,
		Native: binding,
	}
	if err := s.table.DefineFunc(fn); err != nil {
		return compileErrf("%s", err.Error())
	}
	if name == printerName {
		s.out.sink = func(line string) {
			if _, err := binding.Call([]ctype.Value{ctype.NewStr(line)}); err != nil {
				s.log.Warn("output sink failed", "error", err)
			}
		}
		s.log.Debug("output sink replaced", "symbol", binding.Symbol)
	}
	return nil
}

// printerName is the reserved import that redirects scripted output
const printerName = "__printer"
