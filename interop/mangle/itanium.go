package mangle

import (
	"fmt"
	"strings"

	"cinder/ctype"
)

// Itanium implements the Itanium C++ ABI name mangling used by GCC
// and Clang. Only the subset language's type vocabulary is encoded.
type Itanium struct{}

// Name returns the scheme identifier
func (Itanium) Name() string { return "itanium" }

// Mangle encodes the signature. Free functions encode as
// _Z<len><name><params>; methods as _ZN[K]<len><class><len><name>E<params>.
// An empty parameter list encodes as 'v'.
func (Itanium) Mangle(sig Signature) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	for _, params := range paramVariants(sig.Params) {
		var b strings.Builder
		b.WriteString("_Z")
		if sig.Class != "" {
			b.WriteString("N")
			if sig.Const {
				b.WriteString("K")
			}
			fmt.Fprintf(&b, "%d%s%d%s", len(sig.Class), sig.Class, len(sig.Name), sig.Name)
			b.WriteString("E")
		} else {
			fmt.Fprintf(&b, "%d%s", len(sig.Name), sig.Name)
		}
		if len(params) == 0 {
			b.WriteString("v")
		} else {
			for _, p := range params {
				enc, err := itaniumType(p)
				if err != nil {
					return nil, err
				}
				b.WriteString(enc)
			}
		}
		s := b.String()
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out, nil
}

// itaniumType encodes one parameter type
func itaniumType(t *ctype.Type) (string, error) {
	switch t.Kind {
	case ctype.KindVoid:
		return "v", nil
	case ctype.KindBool:
		return "b", nil
	case ctype.KindChar:
		return "c", nil
	case ctype.KindInt:
		return "i", nil
	case ctype.KindLong:
		return "l", nil
	case ctype.KindFloat:
		return "f", nil
	case ctype.KindDouble:
		return "d", nil
	case ctype.KindPtr:
		inner, err := itaniumType(t.Elem)
		if err != nil {
			return "", err
		}
		if t.Elem.Const {
			return "PK" + inner, nil
		}
		return "P" + inner, nil
	case ctype.KindClass:
		if t.Class == nil {
			return "", fmt.Errorf("itanium: class type without descriptor")
		}
		return fmt.Sprintf("%d%s", len(t.Class.Name), t.Class.Name), nil
	default:
		return "", fmt.Errorf("itanium: cannot mangle type %s", t)
	}
}
