package vm

import (
	"fmt"

	"cinder/ctype"
)

// arithKind decides the common type of a binary arithmetic operation
// under the usual conversions: any double operand makes the result
// double, any float makes it float, a long makes it long, and
// everything narrower computes as int.
func arithKind(a, b ctype.Value) ctype.Kind {
	ka, kb := a.Type().Kind, b.Type().Kind
	switch {
	case ka == ctype.KindDouble || kb == ctype.KindDouble:
		return ctype.KindDouble
	case ka == ctype.KindFloat || kb == ctype.KindFloat:
		return ctype.KindFloat
	case ka == ctype.KindLong || kb == ctype.KindLong:
		return ctype.KindLong
	default:
		return ctype.KindInt
	}
}

func numericOperands(op OpCode, a, b ctype.Value) error {
	if !a.Type().Kind.Numeric() || !b.Type().Kind.Numeric() {
		return fmt.Errorf("operator %s needs numeric operands, got %s and %s",
			op, a.Type(), b.Type())
	}
	return nil
}

// binaryArith evaluates +, -, *, / and % with C result typing
func binaryArith(op OpCode, a, b ctype.Value) (ctype.Value, error) {
	if err := numericOperands(op, a, b); err != nil {
		return nil, err
	}
	kind := arithKind(a, b)

	if kind == ctype.KindDouble || kind == ctype.KindFloat {
		if op == OP_MOD {
			return nil, fmt.Errorf("operator %% needs integral operands, got %s and %s",
				a.Type(), b.Type())
		}
		x, _ := ctype.AsFloat(a)
		y, _ := ctype.AsFloat(b)
		var r float64
		switch op {
		case OP_ADD:
			r = x + y
		case OP_SUB:
			r = x - y
		case OP_MUL:
			r = x * y
		case OP_DIV:
			if y == 0 {
				return nil, fmt.Errorf("division by zero")
			}
			r = x / y
		}
		if kind == ctype.KindFloat {
			return ctype.NewFloat(float64(float32(r))), nil
		}
		return ctype.NewDouble(r), nil
	}

	x, _ := ctype.AsInt(a)
	y, _ := ctype.AsInt(b)
	var r int64
	switch op {
	case OP_ADD:
		r = x + y
	case OP_SUB:
		r = x - y
	case OP_MUL:
		r = x * y
	case OP_DIV:
		if y == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		r = x / y
	case OP_MOD:
		if y == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		r = x % y
	}
	if kind == ctype.KindLong {
		return ctype.NewLong(r), nil
	}
	return ctype.NewInt(int64(int32(r))), nil
}

// compare evaluates the relational and equality operators
func compare(op OpCode, a, b ctype.Value) (ctype.Value, error) {
	// String contents compare directly; pointer identity for the rest
	// of the non-numeric values.
	if _, ok := a.(ctype.StrValue); ok {
		if s, ok := b.(ctype.StrValue); ok {
			return compareOrdered(op, cmpStr(a.(ctype.StrValue).Val, s.Val))
		}
	}
	if pa, ok := a.(ctype.PtrValue); ok {
		if pb, ok := b.(ctype.PtrValue); ok {
			switch op {
			case OP_EQ:
				return ctype.NewBool(pa.Addr == pb.Addr), nil
			case OP_NE:
				return ctype.NewBool(pa.Addr != pb.Addr), nil
			}
			return nil, fmt.Errorf("operator %s is not defined on pointers", op)
		}
	}
	if err := numericOperands(op, a, b); err != nil {
		return nil, err
	}

	kind := arithKind(a, b)
	if kind == ctype.KindDouble || kind == ctype.KindFloat {
		x, _ := ctype.AsFloat(a)
		y, _ := ctype.AsFloat(b)
		switch {
		case x < y:
			return compareOrdered(op, -1)
		case x > y:
			return compareOrdered(op, 1)
		default:
			return compareOrdered(op, 0)
		}
	}
	x, _ := ctype.AsInt(a)
	y, _ := ctype.AsInt(b)
	switch {
	case x < y:
		return compareOrdered(op, -1)
	case x > y:
		return compareOrdered(op, 1)
	default:
		return compareOrdered(op, 0)
	}
}

func cmpStr(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareOrdered(op OpCode, c int) (ctype.Value, error) {
	var r bool
	switch op {
	case OP_EQ:
		r = c == 0
	case OP_NE:
		r = c != 0
	case OP_LT:
		r = c < 0
	case OP_LE:
		r = c <= 0
	case OP_GT:
		r = c > 0
	case OP_GE:
		r = c >= 0
	}
	return ctype.NewBool(r), nil
}

// binaryBits evaluates the bitwise and shift operators; operands must
// be integral and the result is typed like arithmetic.
func binaryBits(op OpCode, a, b ctype.Value) (ctype.Value, error) {
	if !a.Type().Kind.Integral() || !b.Type().Kind.Integral() {
		return nil, fmt.Errorf("operator %s needs integral operands, got %s and %s",
			op, a.Type(), b.Type())
	}
	x, _ := ctype.AsInt(a)
	y, _ := ctype.AsInt(b)
	var r int64
	switch op {
	case OP_BITAND:
		r = x & y
	case OP_BITOR:
		r = x | y
	case OP_BITXOR:
		r = x ^ y
	case OP_SHL:
		if y < 0 || y > 63 {
			return nil, fmt.Errorf("shift count %d out of range", y)
		}
		r = x << uint(y)
	case OP_SHR:
		if y < 0 || y > 63 {
			return nil, fmt.Errorf("shift count %d out of range", y)
		}
		r = x >> uint(y)
	}
	if arithKind(a, b) == ctype.KindLong {
		return ctype.NewLong(r), nil
	}
	return ctype.NewInt(int64(int32(r))), nil
}

// negate evaluates unary minus
func negate(a ctype.Value) (ctype.Value, error) {
	switch a.Type().Kind {
	case ctype.KindDouble:
		f, _ := ctype.AsFloat(a)
		return ctype.NewDouble(-f), nil
	case ctype.KindFloat:
		f, _ := ctype.AsFloat(a)
		return ctype.NewFloat(-f), nil
	case ctype.KindLong:
		i, _ := ctype.AsInt(a)
		return ctype.NewLong(-i), nil
	case ctype.KindInt, ctype.KindChar, ctype.KindBool:
		i, _ := ctype.AsInt(a)
		return ctype.NewInt(-i), nil
	}
	return nil, fmt.Errorf("operator - needs a numeric operand, got %s", a.Type())
}

// complement evaluates bitwise NOT
func complement(a ctype.Value) (ctype.Value, error) {
	if !a.Type().Kind.Integral() {
		return nil, fmt.Errorf("operator ~ needs an integral operand, got %s", a.Type())
	}
	i, _ := ctype.AsInt(a)
	if a.Type().Kind == ctype.KindLong {
		return ctype.NewLong(^i), nil
	}
	return ctype.NewInt(int64(int32(^i))), nil
}
