package mangle

import (
	"fmt"
	"strings"

	"cinder/ctype"
)

// MSVC implements Microsoft Visual C++ name decoration for the subset
// language's type vocabulary. Free functions decorate as
// ?name@@YA<ret><params>@Z (cdecl); methods as
// ?name@Class@@QAE<ret><params>@Z, with QBE for const methods.
type MSVC struct{}

// Name returns the scheme identifier
func (MSVC) Name() string { return "msvc" }

// Mangle encodes the signature
func (MSVC) Mangle(sig Signature) ([]string, error) {
	ret, err := msvcType(sig.Ret)
	if err != nil {
		return nil, err
	}

	var out []string
	seen := make(map[string]bool)
	for _, params := range paramVariants(sig.Params) {
		var b strings.Builder
		b.WriteString("?")
		b.WriteString(sig.Name)
		b.WriteString("@")
		if sig.Class != "" {
			b.WriteString(sig.Class)
			b.WriteString("@@")
			if sig.Const {
				b.WriteString("QBE")
			} else {
				b.WriteString("QAE")
			}
		} else {
			b.WriteString("@YA")
		}
		b.WriteString(ret)
		if len(params) == 0 {
			// an empty list is the single code X with no terminator '@'
			b.WriteString("XZ")
		} else {
			for _, p := range params {
				enc, err := msvcType(p)
				if err != nil {
					return nil, err
				}
				b.WriteString(enc)
			}
			b.WriteString("@Z")
		}
		s := b.String()
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out, nil
}

// msvcType encodes one type
func msvcType(t *ctype.Type) (string, error) {
	switch t.Kind {
	case ctype.KindVoid:
		return "X", nil
	case ctype.KindBool:
		return "_N", nil
	case ctype.KindChar:
		return "D", nil
	case ctype.KindInt:
		return "H", nil
	case ctype.KindLong:
		return "J", nil
	case ctype.KindFloat:
		return "M", nil
	case ctype.KindDouble:
		return "N", nil
	case ctype.KindPtr:
		inner, err := msvcType(t.Elem)
		if err != nil {
			return "", err
		}
		if t.Elem.Const {
			return "PB" + inner, nil
		}
		return "PA" + inner, nil
	case ctype.KindClass:
		if t.Class == nil {
			return "", fmt.Errorf("msvc: class type without descriptor")
		}
		return "V" + t.Class.Name + "@@", nil
	default:
		return "", fmt.Errorf("msvc: cannot mangle type %s", t)
	}
}
