package interop

import (
	"errors"
	"testing"

	"cinder/ctype"
	"cinder/interop/mangle"
)

func TestConventionString(t *testing.T) {
	if got := Cdecl.String(); got != "cdecl" {
		t.Errorf("got %q", got)
	}
	if got := Stdcall.String(); got != "stdcall" {
		t.Errorf("got %q", got)
	}
}

func TestOpenRejectsUnknownScheme(t *testing.T) {
	_, err := Open("libm.so.6", false, "watcom")
	if !errors.Is(err, mangle.ErrSchemeUnsupported) {
		t.Fatalf("got %v, want ErrSchemeUnsupported", err)
	}
}

func TestOpenMissingLibrary(t *testing.T) {
	if _, err := Open("no/such/library.so", false, ""); err == nil {
		t.Fatal("expected an error")
	}
}

func TestBindAddressRejectsNil(t *testing.T) {
	sig := mangle.Signature{Name: "cb", Ret: ctype.Void, CLinkage: true}
	if _, err := BindAddress(sig, nil, Cdecl); err == nil {
		t.Fatal("expected an error")
	}
}

func TestResolveAgainstLibm(t *testing.T) {
	if !Available() {
		t.Skip("native interop not available on this platform")
	}
	link, err := Open("libm.so.6", false, "")
	if err != nil {
		t.Skipf("cannot open libm: %v", err)
	}
	defer link.Close()

	sig := mangle.Signature{
		Name:     "cbrt",
		Ret:      ctype.Double,
		Params:   []*ctype.Type{ctype.Double},
		CLinkage: true,
	}
	b, err := link.Resolve(sig, Cdecl)
	if err != nil {
		t.Fatal(err)
	}
	if b.Symbol != "cbrt" {
		t.Errorf("resolved %q", b.Symbol)
	}

	v, err := b.Call([]ctype.Value{ctype.NewDouble(27)})
	if err != nil {
		t.Fatal(err)
	}
	f, _ := ctype.AsFloat(v)
	if f != 3 {
		t.Errorf("cbrt(27) = %v", f)
	}

	sig.Name = "definitely_not_exported"
	if _, err := link.Resolve(sig, Cdecl); !errors.Is(err, ErrSymbolNotFound) {
		t.Errorf("got %v, want ErrSymbolNotFound", err)
	}

	// arity mismatch is caught before the foreign call
	if _, err := b.Call(nil); err == nil {
		t.Error("expected arity error")
	}
}

func TestStubRoundTrip(t *testing.T) {
	if !Available() {
		t.Skip("native interop not available on this platform")
	}
	sig := mangle.Signature{
		Name:     "double_it",
		Ret:      ctype.Int,
		Params:   []*ctype.Type{ctype.Int},
		CLinkage: true,
	}
	stub, err := NewStub(sig, Cdecl, func(args []ctype.Value) (ctype.Value, error) {
		n, _ := ctype.AsInt(args[0])
		return ctype.NewInt(n * 2), nil
	})
	if err != nil {
		t.Skipf("cannot build stub: %v", err)
	}
	defer stub.Release()
	if stub.Entry == 0 {
		t.Fatal("stub has no entry address")
	}
}
