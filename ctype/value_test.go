package ctype

import "testing"

func TestValueStrings(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{NewInt(42), "42"},
		{NewInt(-1), "-1"},
		{NewLong(1 << 40), "1099511627776"},
		{NewDouble(46), "46"},
		{NewDouble(3.5), "3.5"},
		{NewDouble(2.3 * 2.3), "5.29"},
		{NewDouble(1.0 / 3.0), "0.333333"},
		{NewDouble(10000000), "1e+07"},
		{NewBool(true), "true"},
		{NewBool(false), "false"},
		{NewChar('A'), "A"},
		{NewStr("hi"), "hi"},
	}
	for _, tt := range tests {
		if got := tt.v.String(); got != tt.want {
			t.Errorf("%T: got %q, want %q", tt.v, got, tt.want)
		}
	}
}

func TestVerbose(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{NewInt(5), "(int) 5"},
		{NewDouble(46), "(double) 46"},
		{NewBool(true), "(bool) true"},
		{NewStr("hi"), "(char*) hi"},
		{VoidValue{}, ""},
	}
	for _, tt := range tests {
		if got := Verbose(tt.v); got != tt.want {
			t.Errorf("%T: got %q, want %q", tt.v, got, tt.want)
		}
	}
}

func TestConvertNumeric(t *testing.T) {
	tests := []struct {
		v    Value
		to   *Type
		want string
		ok   bool
	}{
		{NewInt(5), Double, "5", true},
		{NewDouble(3.9), Int, "3", true},
		{NewDouble(3.9), Bool, "true", true},
		{NewInt(0), Bool, "false", true},
		{NewBool(true), Int, "1", true},
		{NewInt(65), Char, "A", true},
		{NewChar('A'), Int, "65", true},
		{NewDouble(2.5), Float, "2.5", true},
		{NewStr("x"), Int, "", false},
		{NewInt(1), CharPtr, "", false},
	}
	for _, tt := range tests {
		got, ok := Convert(tt.v, tt.to)
		if ok != tt.ok {
			t.Errorf("Convert(%v, %s): ok=%v, want %v", tt.v, tt.to, ok, tt.ok)
			continue
		}
		if ok && got.String() != tt.want {
			t.Errorf("Convert(%v, %s): got %q, want %q", tt.v, tt.to, got.String(), tt.want)
		}
		if ok && got.Type().Kind != tt.to.Kind {
			t.Errorf("Convert(%v, %s): result kind %v", tt.v, tt.to, got.Type().Kind)
		}
	}
}

func TestConvertSameTypeIsIdentity(t *testing.T) {
	v := NewInt(7)
	got, ok := Convert(v, Int)
	if !ok || got.String() != "7" {
		t.Fatalf("got %v, %v", got, ok)
	}
}

func TestZero(t *testing.T) {
	tests := []struct {
		t    *Type
		want string
	}{
		{Int, "0"},
		{Long, "0"},
		{Double, "0"},
		{Bool, "false"},
		{CharPtr, ""},
	}
	for _, tt := range tests {
		if got := Zero(tt.t).String(); got != tt.want {
			t.Errorf("Zero(%s): got %q, want %q", tt.t, got, tt.want)
		}
	}
}

func TestTypeString(t *testing.T) {
	tests := []struct {
		t    *Type
		want string
	}{
		{Int, "int"},
		{Double, "double"},
		{CharPtr, "char*"},
		{PointerTo(Int), "int*"},
		{PointerTo(PointerTo(Void)), "void**"},
	}
	for _, tt := range tests {
		if got := tt.t.String(); got != tt.want {
			t.Errorf("got %q, want %q", got, tt.want)
		}
	}
}

func TestClassFieldIndex(t *testing.T) {
	c := &Class{
		Name: "Point",
		Fields: []Field{
			{Name: "x", Type: Double},
			{Name: "y", Type: Double},
		},
	}
	if i := c.FieldIndex("y"); i != 1 {
		t.Errorf("FieldIndex(y) = %d", i)
	}
	if i := c.FieldIndex("z"); i != -1 {
		t.Errorf("FieldIndex(z) = %d", i)
	}
}

func TestIsString(t *testing.T) {
	if !CharPtr.IsString() {
		t.Error("char* should be a string type")
	}
	if PointerTo(Int).IsString() {
		t.Error("int* is not a string type")
	}
	if Char.IsString() {
		t.Error("char is not a string type")
	}
}
