//go:build !linux || !cgo

package interop

import (
	"unsafe"

	"cinder/ctype"
	"cinder/interop/mangle"
)

func dlOpen(path string, self bool) (unsafe.Pointer, error) {
	return nil, ErrUnavailable
}

func dlSym(h unsafe.Pointer, name string) (unsafe.Pointer, error) {
	return nil, ErrUnavailable
}

func dlClose(h unsafe.Pointer, self bool) error {
	return nil
}

type callSite struct{}

func (b *Binding) prepare() error {
	return ErrUnavailable
}

func (b *Binding) invoke(args []ctype.Value) (ctype.Value, error) {
	return nil, ErrUnavailable
}

// Stub is unavailable on this platform.
type Stub struct {
	Sig   mangle.Signature
	Conv  Convention
	Entry uintptr
}

func NewStub(sig mangle.Signature, conv Convention, call func(args []ctype.Value) (ctype.Value, error)) (*Stub, error) {
	return nil, ErrUnavailable
}

func (s *Stub) Release() {}

// Available reports whether this build carries native interop
func Available() bool { return false }
