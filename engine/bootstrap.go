package engine

import (
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"cinder/ctype"
	"cinder/state"
)

// bootstrap installs the baseline host builtins: stdio, math, string
// helpers and a few odds and ends scripted code habitually reaches
// for. All of them are ordinary table entries; a later redefinition
// shadows them like any other function.
func (s *Session) bootstrap() error {
	out := func(text string) { s.out.WriteString(text) }

	// stdio
	s.builtin("printf", ctype.Int, []*ctype.Type{ctype.CharPtr}, true,
		func(args []ctype.Value) (ctype.Value, error) {
			text, err := formatC(args[0].String(), args[1:])
			if err != nil {
				return nil, err
			}
			out(text)
			return ctype.NewInt(int64(len(text))), nil
		})
	s.builtin("puts", ctype.Int, []*ctype.Type{ctype.CharPtr}, false,
		func(args []ctype.Value) (ctype.Value, error) {
			out(args[0].String() + "\n")
			return ctype.NewInt(0), nil
		})
	s.builtin("putchar", ctype.Int, []*ctype.Type{ctype.Int}, false,
		func(args []ctype.Value) (ctype.Value, error) {
			n, _ := ctype.AsInt(args[0])
			out(string(rune(n)))
			return args[0], nil
		})

	// math
	for name, f := range map[string]func(float64) float64{
		"sqrt": math.Sqrt, "sin": math.Sin, "cos": math.Cos,
		"tan": math.Tan, "atan": math.Atan, "exp": math.Exp,
		"log": math.Log, "fabs": math.Abs, "floor": math.Floor,
		"ceil": math.Ceil,
	} {
		fn := f
		s.builtin(name, ctype.Double, []*ctype.Type{ctype.Double}, false,
			func(args []ctype.Value) (ctype.Value, error) {
				x, _ := ctype.AsFloat(args[0])
				return ctype.NewDouble(fn(x)), nil
			})
	}
	for name, f := range map[string]func(a, b float64) float64{
		"pow": math.Pow, "atan2": math.Atan2,
	} {
		fn := f
		s.builtin(name, ctype.Double, []*ctype.Type{ctype.Double, ctype.Double}, false,
			func(args []ctype.Value) (ctype.Value, error) {
				a, _ := ctype.AsFloat(args[0])
				b, _ := ctype.AsFloat(args[1])
				return ctype.NewDouble(fn(a, b)), nil
			})
	}
	s.builtin("abs", ctype.Int, []*ctype.Type{ctype.Int}, false,
		func(args []ctype.Value) (ctype.Value, error) {
			n, _ := ctype.AsInt(args[0])
			if n < 0 {
				n = -n
			}
			return ctype.NewInt(n), nil
		})

	// strings
	s.builtin("strlen", ctype.Int, []*ctype.Type{ctype.CharPtr}, false,
		func(args []ctype.Value) (ctype.Value, error) {
			return ctype.NewInt(int64(len(args[0].String()))), nil
		})
	s.builtin("strcmp", ctype.Int, []*ctype.Type{ctype.CharPtr, ctype.CharPtr}, false,
		func(args []ctype.Value) (ctype.Value, error) {
			return ctype.NewInt(int64(strings.Compare(args[0].String(), args[1].String()))), nil
		})
	s.builtin("atoi", ctype.Int, []*ctype.Type{ctype.CharPtr}, false,
		func(args []ctype.Value) (ctype.Value, error) {
			n, _ := strconv.ParseInt(strings.TrimSpace(args[0].String()), 10, 64)
			return ctype.NewInt(n), nil
		})
	s.builtin("atof", ctype.Double, []*ctype.Type{ctype.CharPtr}, false,
		func(args []ctype.Value) (ctype.Value, error) {
			f, _ := strconv.ParseFloat(strings.TrimSpace(args[0].String()), 64)
			return ctype.NewDouble(f), nil
		})

	// misc
	rng := rand.New(rand.NewSource(1))
	s.builtin("rand", ctype.Int, nil, false,
		func(args []ctype.Value) (ctype.Value, error) {
			return ctype.NewInt(int64(rng.Int31())), nil
		})
	s.builtin("srand", ctype.Void, []*ctype.Type{ctype.Int}, false,
		func(args []ctype.Value) (ctype.Value, error) {
			seed, _ := ctype.AsInt(args[0])
			rng = rand.New(rand.NewSource(seed))
			return nil, nil
		})
	s.builtin("crypt", ctype.CharPtr, []*ctype.Type{ctype.CharPtr, ctype.CharPtr}, false,
		func(args []ctype.Value) (ctype.Value, error) {
			return cryptPassword(args[0].String(), args[1].String())
		})

	return nil
}

// builtin registers one host-implemented function
func (s *Session) builtin(name string, ret *ctype.Type, params []*ctype.Type, variadic bool, impl state.BuiltinFunc) {
	fn := &state.Func{
		Name:     name,
		Ret:      ret,
		Variadic: variadic,
		Builtin:  impl,
	}
	for i, t := range params {
		fn.Params = append(fn.Params, state.Param{Name: fmt.Sprintf("__arg%d", i), Type: t})
	}
	// bootstrap entries install unconditionally
	s.table.Funcs[name] = fn
}

// cryptPassword hashes or verifies a password. If salt is itself a
// bcrypt hash the call verifies: a match echoes the hash back, a
// mismatch yields the empty string. Any other salt produces a fresh
// hash of key.
func cryptPassword(key, salt string) (ctype.Value, error) {
	if strings.HasPrefix(salt, "$2") {
		if bcrypt.CompareHashAndPassword([]byte(salt), []byte(key)) == nil {
			return ctype.NewStr(salt), nil
		}
		return ctype.NewStr(""), nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("crypt: %w", err)
	}
	return ctype.NewStr(string(hash)), nil
}

// formatC renders a C-style format string against scripting values
func formatC(format string, args []ctype.Value) (string, error) {
	var b strings.Builder
	next := 0
	take := func(verb byte) (ctype.Value, error) {
		if next >= len(args) {
			return nil, fmt.Errorf("printf: missing argument for %%%c", verb)
		}
		v := args[next]
		next++
		return v, nil
	}

	for i := 0; i < len(format); i++ {
		ch := format[i]
		if ch != '%' {
			b.WriteByte(ch)
			continue
		}
		// copy flags, width and precision through to Go's formatter
		spec := "%"
		i++
		for i < len(format) && strings.IndexByte("-+ #0123456789.", format[i]) >= 0 {
			spec += string(format[i])
			i++
		}
		if i >= len(format) {
			return "", fmt.Errorf("printf: trailing %%")
		}
		// length modifiers are parsed and ignored
		for i < len(format) && (format[i] == 'l' || format[i] == 'h') {
			i++
		}
		verb := format[i]
		switch verb {
		case '%':
			b.WriteByte('%')
		case 'd', 'i':
			v, err := take(verb)
			if err != nil {
				return "", err
			}
			n, _ := ctype.AsInt(v)
			fmt.Fprintf(&b, spec+"d", n)
		case 'u':
			v, err := take(verb)
			if err != nil {
				return "", err
			}
			n, _ := ctype.AsInt(v)
			fmt.Fprintf(&b, spec+"d", uint64(n))
		case 'x', 'X', 'o':
			v, err := take(verb)
			if err != nil {
				return "", err
			}
			n, _ := ctype.AsInt(v)
			fmt.Fprintf(&b, spec+string(verb), n)
		case 'f', 'e', 'E', 'g', 'G':
			v, err := take(verb)
			if err != nil {
				return "", err
			}
			f, _ := ctype.AsFloat(v)
			fmt.Fprintf(&b, spec+string(verb), f)
		case 's':
			v, err := take(verb)
			if err != nil {
				return "", err
			}
			fmt.Fprintf(&b, spec+"s", v.String())
		case 'c':
			v, err := take(verb)
			if err != nil {
				return "", err
			}
			n, _ := ctype.AsInt(v)
			fmt.Fprintf(&b, spec+"c", rune(n))
		case 'p':
			v, err := take(verb)
			if err != nil {
				return "", err
			}
			fmt.Fprintf(&b, spec+"s", v.String())
		default:
			return "", fmt.Errorf("printf: unsupported conversion %%%c", verb)
		}
	}
	return b.String(), nil
}
