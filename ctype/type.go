package ctype

// Type describes a type in the subset language: a basic type, a pointer
// to another type, or a class.
type Type struct {
	Kind  Kind
	Elem  *Type  // element type when Kind == KindPtr
	Class *Class // class descriptor when Kind == KindClass
	Const bool   // const-qualified (tracked for mangling, not enforced)
}

// Basic type singletons. Pointer and class types are built on demand.
var (
	Void   = &Type{Kind: KindVoid}
	Bool   = &Type{Kind: KindBool}
	Char   = &Type{Kind: KindChar}
	Int    = &Type{Kind: KindInt}
	Long   = &Type{Kind: KindLong}
	Float  = &Type{Kind: KindFloat}
	Double = &Type{Kind: KindDouble}

	// CharPtr is the canonical char* type, used for string literals.
	CharPtr = &Type{Kind: KindPtr, Elem: Char}

	// ConstCharPtr is const char*, the type of string literals proper.
	ConstCharPtr = &Type{Kind: KindPtr, Elem: &Type{Kind: KindChar, Const: true}}
)

// PointerTo returns a pointer type with the given element type.
func PointerTo(elem *Type) *Type {
	if elem == Char {
		return CharPtr
	}
	return &Type{Kind: KindPtr, Elem: elem}
}

// WithConst returns a const-qualified copy of t.
func (t *Type) WithConst() *Type {
	if t.Const {
		return t
	}
	c := *t
	c.Const = true
	return &c
}

// String returns the source-level spelling of the type.
func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	prefix := ""
	if t.Const {
		prefix = "const "
	}
	switch t.Kind {
	case KindPtr:
		return t.Elem.String() + "*"
	case KindClass:
		if t.Class != nil {
			return prefix + t.Class.Name
		}
		return prefix + "class"
	default:
		return prefix + t.Kind.String()
	}
}

// Same reports structural equality ignoring const qualification.
func (t *Type) Same(other *Type) bool {
	if t == nil || other == nil {
		return t == other
	}
	if t.Kind != other.Kind {
		return false
	}
	switch t.Kind {
	case KindPtr:
		return t.Elem.Same(other.Elem)
	case KindClass:
		return t.Class == other.Class
	default:
		return true
	}
}

// IsString reports whether the type behaves as a string (char* family).
func (t *Type) IsString() bool {
	return t.Kind == KindPtr && t.Elem != nil && t.Elem.Kind == KindChar
}

// Field is one data member of a class.
type Field struct {
	Name string
	Type *Type
}

// Class describes a class or struct declared in script source. Method
// bodies live in the program state's function table, keyed by qualified
// name; the class itself carries only layout.
type Class struct {
	Name    string
	Fields  []Field
	HasCtor bool
	HasDtor bool
}

// FieldIndex returns the index of a named field, or -1.
func (c *Class) FieldIndex(name string) int {
	for i, f := range c.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// TypeOf returns a class-valued Type for c.
func (c *Class) TypeOf() *Type {
	return &Type{Kind: KindClass, Class: c}
}
