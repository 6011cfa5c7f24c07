// Package interop resolves declared prototypes against native modules
// and calls the resolved functions across the ABI boundary. Library
// handles, symbol lookup and foreign calls run through libffi and the
// platform loader on supported builds; elsewhere every operation
// reports ErrUnavailable.
package interop

import (
	"errors"
	"fmt"
	"strings"
	"unsafe"

	"cinder/ctype"
	"cinder/interop/mangle"
)

// Convention selects the native calling convention of an import or a
// generated stub.
type Convention int

const (
	Cdecl Convention = iota
	Stdcall
)

// String returns the conventional name
func (c Convention) String() string {
	if c == Stdcall {
		return "stdcall"
	}
	return "cdecl"
}

var (
	// ErrSymbolNotFound: no candidate symbol resolved in the module.
	ErrSymbolNotFound = errors.New("symbol not found")

	// ErrAmbiguousSymbol: more than one mangling candidate resolved.
	ErrAmbiguousSymbol = errors.New("ambiguous symbol")

	// ErrUnavailable: this build has no native interop support.
	ErrUnavailable = errors.New("native interop not available on this platform")
)

// Link is one opened native module: a shared library path, or the
// hosting process's own export table when Self is set.
type Link struct {
	Path   string
	Self   bool
	scheme mangle.Scheme
	handle unsafe.Pointer
	closed bool
}

// Open loads a native module and fixes its mangling scheme. The empty
// scheme name selects the default. Opening the self-process link
// requires the host to have exported its symbols (a precondition the
// engine documents but cannot enforce).
func Open(path string, self bool, schemeName string) (*Link, error) {
	scheme, err := mangle.ByName(schemeName)
	if err != nil {
		return nil, err
	}
	h, err := dlOpen(path, self)
	if err != nil {
		return nil, err
	}
	return &Link{Path: path, Self: self, scheme: scheme, handle: h}, nil
}

// Target names the link for diagnostics
func (l *Link) Target() string {
	if l.Self {
		return "<self>"
	}
	return l.Path
}

// Resolve binds one declared prototype to exactly one exported symbol.
// C-linkage prototypes look up the exact name; otherwise every
// mangling candidate of the link's scheme is probed, and anything
// other than exactly one hit is an error.
func (l *Link) Resolve(sig mangle.Signature, conv Convention) (*Binding, error) {
	if l.closed {
		return nil, fmt.Errorf("resolve %s: link %s is closed", sig.Name, l.Target())
	}

	var candidates []string
	if sig.CLinkage {
		candidates = []string{sig.Name}
	} else {
		var err error
		candidates, err = l.scheme.Mangle(sig)
		if err != nil {
			return nil, err
		}
	}

	var hits []string
	var addr unsafe.Pointer
	for _, name := range candidates {
		p, err := dlSym(l.handle, name)
		if err != nil || p == nil {
			continue
		}
		hits = append(hits, name)
		addr = p
	}

	switch len(hits) {
	case 0:
		return nil, fmt.Errorf("%w: %s in %s (tried %s)",
			ErrSymbolNotFound, sig.Name, l.Target(), strings.Join(candidates, ", "))
	case 1:
		b := &Binding{Sig: sig, Symbol: hits[0], Addr: addr, Conv: conv}
		if err := b.prepare(); err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, fmt.Errorf("%w: %s in %s matches %s",
			ErrAmbiguousSymbol, sig.Name, l.Target(), strings.Join(hits, " and "))
	}
}

// Close releases the module handle. Bindings resolved from the link
// keep their addresses; unloading the module behind them is a host
// and OS level concern.
func (l *Link) Close() error {
	if l.closed {
		return nil
	}
	l.closed = true
	return dlClose(l.handle, l.Self)
}

// Binding is one resolved native import: declared signature, resolved
// address, calling convention. It is usable by the VM as an ordinary
// callable.
type Binding struct {
	Sig    mangle.Signature
	Symbol string
	Addr   unsafe.Pointer
	Conv   Convention

	call *callSite // prepared libffi call interface
}

// BindAddress installs a host-supplied function address directly as a
// binding, bypassing library resolution. This is how a host registers
// its own callbacks, including the reserved output sink.
func BindAddress(sig mangle.Signature, addr unsafe.Pointer, conv Convention) (*Binding, error) {
	if addr == nil {
		return nil, fmt.Errorf("bind %s: nil address", sig.Name)
	}
	b := &Binding{Sig: sig, Symbol: sig.Name, Addr: addr, Conv: conv}
	if err := b.prepare(); err != nil {
		return nil, err
	}
	return b, nil
}

// Call invokes the native function with the given argument values,
// converting them to the declared parameter types first. A conversion
// failure is a runtime fault; what the native code does with a
// mismatched ABI is out of the engine's hands.
func (b *Binding) Call(args []ctype.Value) (ctype.Value, error) {
	if len(args) != len(b.Sig.Params) {
		return nil, fmt.Errorf("%s: expected %d arguments, got %d",
			b.Sig.Name, len(b.Sig.Params), len(args))
	}
	conv := make([]ctype.Value, len(args))
	for i, a := range args {
		c, ok := ctype.Convert(a, b.Sig.Params[i])
		if !ok {
			return nil, fmt.Errorf("%s: argument %d: cannot convert %s to %s",
				b.Sig.Name, i+1, a.Type(), b.Sig.Params[i])
		}
		conv[i] = c
	}
	return b.invoke(conv)
}
