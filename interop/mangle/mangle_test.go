package mangle

import (
	"errors"
	"testing"

	"cinder/ctype"
)

func pointType() *ctype.Type {
	return &ctype.Type{Kind: ctype.KindClass, Class: &ctype.Class{Name: "Point"}}
}

func TestByName(t *testing.T) {
	s, err := ByName("")
	if err != nil {
		t.Fatal(err)
	}
	if s.Name() != "itanium" {
		t.Errorf("default scheme: got %q", s.Name())
	}

	s, err = ByName("gcc")
	if err != nil {
		t.Fatal(err)
	}
	if s.Name() != "itanium" {
		t.Errorf("gcc alias: got %q", s.Name())
	}

	if _, err = ByName("msvc"); err != nil {
		t.Errorf("msvc: %v", err)
	}

	_, err = ByName("borland")
	if !errors.Is(err, ErrSchemeUnsupported) {
		t.Errorf("unknown scheme: got %v, want ErrSchemeUnsupported", err)
	}
}

func TestItaniumMangle(t *testing.T) {
	tests := []struct {
		name string
		sig  Signature
		want []string
	}{
		{
			name: "free_two_ints",
			sig: Signature{
				Name:   "add",
				Ret:    ctype.Int,
				Params: []*ctype.Type{ctype.Int, ctype.Int},
			},
			want: []string{"_Z3addii"},
		},
		{
			name: "free_empty_params",
			sig:  Signature{Name: "reset", Ret: ctype.Void},
			want: []string{"_Z5resetv"},
		},
		{
			name: "free_mixed_scalars",
			sig: Signature{
				Name:   "mix",
				Ret:    ctype.Double,
				Params: []*ctype.Type{ctype.Char, ctype.Long, ctype.Float, ctype.Bool},
			},
			want: []string{"_Z3mixclfb"},
		},
		{
			name: "const_char_ptr_is_single_candidate",
			sig: Signature{
				Name:   "strlen",
				Ret:    ctype.Int,
				Params: []*ctype.Type{ctype.ConstCharPtr},
			},
			want: []string{"_Z6strlenPKc"},
		},
		{
			name: "plain_char_ptr_probes_const_variant",
			sig: Signature{
				Name:   "strlen",
				Ret:    ctype.Int,
				Params: []*ctype.Type{ctype.CharPtr},
			},
			want: []string{"_Z6strlenPc", "_Z6strlenPKc"},
		},
		{
			name: "method",
			sig: Signature{
				Name:   "set",
				Class:  "Point",
				Ret:    ctype.Void,
				Params: []*ctype.Type{ctype.Double},
			},
			want: []string{"_ZN5Point3setEd"},
		},
		{
			name: "const_method_empty_params",
			sig: Signature{
				Name:  "norm",
				Class: "Point",
				Ret:   ctype.Double,
				Const: true,
			},
			want: []string{"_ZNK5Point4normEv"},
		},
		{
			name: "class_by_value",
			sig: Signature{
				Name:   "dist",
				Ret:    ctype.Double,
				Params: []*ctype.Type{pointType()},
			},
			want: []string{"_Z4dist5Point"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := (Itanium{}).Mangle(tt.sig)
			if err != nil {
				t.Fatal(err)
			}
			assertSymbols(t, got, tt.want)
		})
	}
}

func TestMSVCMangle(t *testing.T) {
	tests := []struct {
		name string
		sig  Signature
		want []string
	}{
		{
			name: "free_two_ints",
			sig: Signature{
				Name:   "add",
				Ret:    ctype.Int,
				Params: []*ctype.Type{ctype.Int, ctype.Int},
			},
			want: []string{"?add@@YAHHH@Z"},
		},
		{
			name: "free_empty_params",
			sig:  Signature{Name: "reset", Ret: ctype.Void},
			want: []string{"?reset@@YAXXZ"},
		},
		{
			name: "const_char_ptr",
			sig: Signature{
				Name:   "strlen",
				Ret:    ctype.Int,
				Params: []*ctype.Type{ctype.ConstCharPtr},
			},
			want: []string{"?strlen@@YAHPBD@Z"},
		},
		{
			name: "plain_char_ptr_probes_const_variant",
			sig: Signature{
				Name:   "strlen",
				Ret:    ctype.Int,
				Params: []*ctype.Type{ctype.CharPtr},
			},
			want: []string{"?strlen@@YAHPAD@Z", "?strlen@@YAHPBD@Z"},
		},
		{
			name: "method",
			sig: Signature{
				Name:   "set",
				Class:  "Point",
				Ret:    ctype.Void,
				Params: []*ctype.Type{ctype.Double},
			},
			want: []string{"?set@Point@@QAEXN@Z"},
		},
		{
			name: "const_method_empty_params",
			sig: Signature{
				Name:  "norm",
				Class: "Point",
				Ret:   ctype.Double,
				Const: true,
			},
			want: []string{"?norm@Point@@QBENXZ"},
		},
		{
			name: "class_by_value",
			sig: Signature{
				Name:   "dist",
				Ret:    ctype.Double,
				Params: []*ctype.Type{pointType()},
			},
			want: []string{"?dist@@YANVPoint@@@Z"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := (MSVC{}).Mangle(tt.sig)
			if err != nil {
				t.Fatal(err)
			}
			assertSymbols(t, got, tt.want)
		})
	}
}

func TestSignatureString(t *testing.T) {
	sig := Signature{
		Name:   "norm",
		Class:  "Point",
		Ret:    ctype.Double,
		Params: []*ctype.Type{ctype.Double, ctype.CharPtr},
	}
	if got := sig.String(); got != "double Point::norm(double, char*)" {
		t.Errorf("got %q", got)
	}
}

func assertSymbols(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d candidates %v, want %v", len(got), got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("candidate %d: got %q, want %q", i, got[i], want[i])
		}
	}
}
