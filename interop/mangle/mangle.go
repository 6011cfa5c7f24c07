// Package mangle encapsulates native-toolchain name-mangling rules.
// Each supported toolchain is one Scheme; the interop layer picks a
// scheme per library link, so resolution logic never needs to know
// how a particular compiler spells symbols.
package mangle

import (
	"errors"
	"fmt"

	"cinder/ctype"
)

// ErrSchemeUnsupported is returned when a link requests a mangling
// scheme no registered toolchain provides. It is distinct from a
// symbol lookup failure.
var ErrSchemeUnsupported = errors.New("unsupported mangling scheme")

// Signature is the declared prototype to resolve. The return type is
// carried but excluded from mangling, per both supported conventions.
type Signature struct {
	Name     string
	Class    string // enclosing class scope, empty for free functions
	Ret      *ctype.Type
	Params   []*ctype.Type
	Const    bool // const-qualified method
	CLinkage bool // extern "C": resolved by exact name, no mangling
}

// String formats the signature the way it was declared
func (s Signature) String() string {
	name := s.Name
	if s.Class != "" {
		name = s.Class + "::" + s.Name
	}
	out := fmt.Sprintf("%s %s(", s.Ret, name)
	for i, p := range s.Params {
		if i > 0 {
			out += ", "
		}
		out += p.String()
	}
	return out + ")"
}

// Scheme mangles a prototype into the candidate symbol names a native
// module built by that toolchain may export for it. Multiple
// candidates arise from const-qualification variants on pointer
// parameters; a link resolving more than one of them is ambiguous.
type Scheme interface {
	Name() string
	Mangle(sig Signature) ([]string, error)
}

// schemes is the registry of supported toolchains
var schemes = map[string]Scheme{
	"itanium": Itanium{},
	"gcc":     Itanium{},
	"msvc":    MSVC{},
}

// DefaultScheme is used when a #lib directive names no scheme
const DefaultScheme = "itanium"

// ByName returns the scheme registered under name; the empty string
// selects the default. Unknown names are ErrSchemeUnsupported.
func ByName(name string) (Scheme, error) {
	if name == "" {
		name = DefaultScheme
	}
	s, ok := schemes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSchemeUnsupported, name)
	}
	return s, nil
}

// paramVariants expands const-qualification variants of a parameter
// list: for every pointer parameter whose pointee is not explicitly
// const, both the plain and the const-pointee spelling are candidates.
// The cartesian expansion is bounded to keep probing cheap.
func paramVariants(params []*ctype.Type) [][]*ctype.Type {
	variants := [][]*ctype.Type{nil}
	for _, p := range params {
		alts := []*ctype.Type{p}
		if p.Kind == ctype.KindPtr && p.Elem != nil && !p.Elem.Const {
			constElem := p.Elem.WithConst()
			alts = append(alts, ctype.PointerTo(constElem))
			// PointerTo canonicalizes char*; rebuild explicitly
			alts[1] = &ctype.Type{Kind: ctype.KindPtr, Elem: constElem}
		}
		var next [][]*ctype.Type
		for _, v := range variants {
			for _, alt := range alts {
				if len(next) >= 16 {
					break
				}
				row := make([]*ctype.Type, len(v), len(v)+1)
				copy(row, v)
				next = append(next, append(row, alt))
			}
		}
		variants = next
	}
	return variants
}
