package ctype

// Kind identifies a category of type in the subset language.
type Kind int

const (
	KindVoid Kind = iota
	KindBool
	KindChar
	KindInt
	KindLong
	KindFloat
	KindDouble
	KindPtr
	KindClass
)

// String returns the source-level spelling of the kind.
func (k Kind) String() string {
	switch k {
	case KindVoid:
		return "void"
	case KindBool:
		return "bool"
	case KindChar:
		return "char"
	case KindInt:
		return "int"
	case KindLong:
		return "long"
	case KindFloat:
		return "float"
	case KindDouble:
		return "double"
	case KindPtr:
		return "pointer"
	case KindClass:
		return "class"
	default:
		return "unknown"
	}
}

// Integral reports whether the kind is an integer-family kind.
func (k Kind) Integral() bool {
	switch k {
	case KindBool, KindChar, KindInt, KindLong:
		return true
	}
	return false
}

// Floating reports whether the kind is a floating-point kind.
func (k Kind) Floating() bool {
	return k == KindFloat || k == KindDouble
}

// Numeric reports whether the kind participates in arithmetic.
func (k Kind) Numeric() bool {
	return k.Integral() || k.Floating()
}
