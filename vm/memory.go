package vm

import (
	"fmt"
	"unsafe"

	"cinder/ctype"
)

// loadHost reads a value of type t from raw host memory. Aliased
// globals and pointer dereference both come through here; the caller
// vouches for the address.
func loadHost(addr unsafe.Pointer, t *ctype.Type) (ctype.Value, error) {
	if addr == nil {
		return nil, fmt.Errorf("null pointer dereference")
	}
	switch t.Kind {
	case ctype.KindBool:
		return ctype.NewBool(*(*byte)(addr) != 0), nil
	case ctype.KindChar:
		return ctype.NewChar(*(*byte)(addr)), nil
	case ctype.KindInt:
		return ctype.NewInt(int64(*(*int32)(addr))), nil
	case ctype.KindLong:
		return ctype.NewLong(*(*int64)(addr)), nil
	case ctype.KindFloat:
		return ctype.NewFloat(float64(*(*float32)(addr))), nil
	case ctype.KindDouble:
		return ctype.NewDouble(*(*float64)(addr)), nil
	case ctype.KindPtr:
		p := *(*unsafe.Pointer)(addr)
		return ctype.PtrValue{Addr: p, T: t}, nil
	default:
		return nil, fmt.Errorf("cannot read %s from host memory", t)
	}
}

// storeHost writes a value of type t into raw host memory. The value
// must already be converted to t.
func storeHost(addr unsafe.Pointer, t *ctype.Type, v ctype.Value) error {
	if addr == nil {
		return fmt.Errorf("null pointer dereference")
	}
	switch t.Kind {
	case ctype.KindBool:
		b := byte(0)
		if v.Truthy() {
			b = 1
		}
		*(*byte)(addr) = b
	case ctype.KindChar:
		i, _ := ctype.AsInt(v)
		*(*byte)(addr) = byte(i)
	case ctype.KindInt:
		i, _ := ctype.AsInt(v)
		*(*int32)(addr) = int32(i)
	case ctype.KindLong:
		i, _ := ctype.AsInt(v)
		*(*int64)(addr) = i
	case ctype.KindFloat:
		f, _ := ctype.AsFloat(v)
		*(*float32)(addr) = float32(f)
	case ctype.KindDouble:
		f, _ := ctype.AsFloat(v)
		*(*float64)(addr) = f
	case ctype.KindPtr:
		p, ok := v.(ctype.PtrValue)
		if !ok {
			return fmt.Errorf("cannot store %s into host pointer slot", v.Type())
		}
		*(*unsafe.Pointer)(addr) = p.Addr
	default:
		return fmt.Errorf("cannot write %s to host memory", t)
	}
	return nil
}

// hostSize returns the in-memory width of a type, for indexing into
// host arrays.
func hostSize(t *ctype.Type) (uintptr, error) {
	switch t.Kind {
	case ctype.KindBool, ctype.KindChar:
		return 1, nil
	case ctype.KindInt:
		return 4, nil
	case ctype.KindLong:
		return 8, nil
	case ctype.KindFloat:
		return 4, nil
	case ctype.KindDouble:
		return 8, nil
	case ctype.KindPtr:
		return unsafe.Sizeof(uintptr(0)), nil
	default:
		return 0, fmt.Errorf("%s has no host representation", t)
	}
}
