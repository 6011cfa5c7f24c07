//go:build linux

package interop

/*
#cgo LDFLAGS: -ldl
#cgo pkg-config: libffi
#include <ffi.h>
#include <dlfcn.h>
#include <stdlib.h>
#include <string.h>
#include <stdint.h>

static void* cd_dlopen(const char* path) {
	return dlopen(path, RTLD_LAZY | RTLD_LOCAL);
}
static void* cd_dlopen_self(void) {
	return dlopen(NULL, RTLD_LAZY | RTLD_GLOBAL);
}
static const char* cd_dlerror(void) {
	return dlerror();
}
// Clear dlerror, look the symbol up, and report any error alongside.
static void* cd_dlsym_clear(void* h, const char* name, char** err) {
	dlerror();
	void* p = dlsym(h, name);
	char* e = dlerror();
	if (e) { if (err) *err = e; return NULL; }
	if (err) *err = NULL;
	return p;
}
static int cd_dlclose(void* h) {
	return dlclose(h);
}

// Allocate the cif on the C heap so it outlives any Go stack frame.
static ffi_cif* cd_alloc_cif(void) {
	return (ffi_cif*)malloc(sizeof(ffi_cif));
}
static int cd_prep_cif(ffi_cif* cif, int abi, unsigned int nargs,
                       ffi_type* rtype, ffi_type** atypes) {
	return ffi_prep_cif(cif, (ffi_abi)abi, nargs, rtype, atypes);
}
// ffi_call wrapper taking a generic void* fn, avoiding cgo's
// function-pointer type constraints at the call site.
static void cd_call(ffi_cif* cif, void* fn, void* rvalue, void** avalue) {
	ffi_call(cif, (void (*)(void))fn, rvalue, avalue);
}
static int cd_default_abi(void) {
	return FFI_DEFAULT_ABI;
}
static int cd_stdcall_abi(void) {
#if defined(__i386__)
	return FFI_STDCALL;
#else
	// stdcall collapses to the default convention off 32-bit x86
	return FFI_DEFAULT_ABI;
#endif
}

// -------- libffi closure helpers (native stubs) ----------
static void* cd_closure_alloc(void** executable) {
	return ffi_closure_alloc(sizeof(ffi_closure), executable);
}
extern void cinderStubInvoke(ffi_cif*, void*, void**, uintptr_t);
static void cd_stub_thunk(ffi_cif* cif, void* ret, void** args, void* user) {
	cinderStubInvoke(cif, ret, args, (uintptr_t)user);
}
static int cd_prep_closure(void* closure, ffi_cif* cif, void* userdata, void* executable) {
	return ffi_prep_closure_loc((ffi_closure*)closure, cif, cd_stub_thunk, userdata, executable);
}
static void cd_closure_free(void* closure) {
	ffi_closure_free((ffi_closure*)closure);
}
*/
import "C"

import (
	"fmt"
	"runtime/cgo"
	"unsafe"

	"cinder/ctype"
	"cinder/interop/mangle"
)

// dlerr returns the last dlerror as a Go string
func dlerr() string {
	e := C.cd_dlerror()
	if e != nil {
		return C.GoString(e)
	}
	return "unknown dlerror"
}

// dlOpen opens a shared library, or the hosting process itself
func dlOpen(path string, self bool) (unsafe.Pointer, error) {
	if self {
		h := C.cd_dlopen_self()
		if h == nil {
			return nil, fmt.Errorf("dlopen(self) failed: %s", dlerr())
		}
		return unsafe.Pointer(h), nil
	}
	cs := C.CString(path)
	defer C.free(unsafe.Pointer(cs))
	h := C.cd_dlopen(cs)
	if h == nil {
		return nil, fmt.Errorf("dlopen(%q) failed: %s", path, dlerr())
	}
	return unsafe.Pointer(h), nil
}

// dlSym resolves one symbol; a missing symbol is an error, which the
// caller treats as a probe miss.
func dlSym(h unsafe.Pointer, name string) (unsafe.Pointer, error) {
	cs := C.CString(name)
	defer C.free(unsafe.Pointer(cs))
	var cerr *C.char
	p := C.cd_dlsym_clear(h, cs, &cerr)
	if cerr != nil {
		return nil, fmt.Errorf("dlsym(%q): %s", name, C.GoString(cerr))
	}
	return unsafe.Pointer(p), nil
}

// dlClose releases a library handle
func dlClose(h unsafe.Pointer, self bool) error {
	if h == nil {
		return nil
	}
	if int(C.cd_dlclose(h)) != 0 {
		return fmt.Errorf("dlclose failed: %s", dlerr())
	}
	return nil
}

// abiFor maps a Convention to the libffi ABI constant
func abiFor(conv Convention) C.int {
	if conv == Stdcall {
		return C.cd_stdcall_abi()
	}
	return C.cd_default_abi()
}

// ffiType maps a subset-language type to its libffi descriptor
func ffiType(t *ctype.Type) (*C.ffi_type, error) {
	switch t.Kind {
	case ctype.KindVoid:
		return &C.ffi_type_void, nil
	case ctype.KindBool:
		return &C.ffi_type_uint8, nil
	case ctype.KindChar:
		return &C.ffi_type_sint8, nil
	case ctype.KindInt:
		return &C.ffi_type_sint32, nil
	case ctype.KindLong:
		return &C.ffi_type_sint64, nil
	case ctype.KindFloat:
		return &C.ffi_type_float, nil
	case ctype.KindDouble:
		return &C.ffi_type_double, nil
	case ctype.KindPtr:
		return &C.ffi_type_pointer, nil
	default:
		return nil, fmt.Errorf("type %s cannot cross the native boundary", t)
	}
}

// callSite is the prepared libffi call interface for one binding
type callSite struct {
	cif    *C.ffi_cif
	atypes unsafe.Pointer // ffi_type* array on the C heap
}

// prepare builds the cif for the binding's declared signature
func (b *Binding) prepare() error {
	rtype, err := ffiType(b.Sig.Ret)
	if err != nil {
		return fmt.Errorf("%s: return %w", b.Sig.Name, err)
	}

	n := len(b.Sig.Params)
	var atypes unsafe.Pointer
	if n > 0 {
		atypes = C.malloc(C.size_t(n) * C.size_t(unsafe.Sizeof(uintptr(0))))
		vec := (*[1 << 20]*C.ffi_type)(atypes)[:n:n]
		for i, p := range b.Sig.Params {
			t, err := ffiType(p)
			if err != nil {
				C.free(atypes)
				return fmt.Errorf("%s: parameter %d: %w", b.Sig.Name, i+1, err)
			}
			vec[i] = t
		}
	}

	cif := C.cd_alloc_cif()
	st := C.cd_prep_cif(cif, abiFor(b.Conv), C.uint(n), rtype, (**C.ffi_type)(atypes))
	if st != C.FFI_OK {
		C.free(unsafe.Pointer(cif))
		if atypes != nil {
			C.free(atypes)
		}
		return fmt.Errorf("%s: ffi_prep_cif failed: %d", b.Sig.Name, int(st))
	}
	b.call = &callSite{cif: cif, atypes: atypes}
	return nil
}

// invoke performs the prepared call with already-converted arguments
func (b *Binding) invoke(args []ctype.Value) (ctype.Value, error) {
	if b.call == nil {
		if err := b.prepare(); err != nil {
			return nil, err
		}
	}

	n := len(args)
	var argv unsafe.Pointer
	var bufs []unsafe.Pointer
	var cstrs []unsafe.Pointer
	free := func() {
		for _, p := range bufs {
			C.free(p)
		}
		for _, p := range cstrs {
			C.free(p)
		}
		if argv != nil {
			C.free(argv)
		}
	}
	defer free()

	if n > 0 {
		argv = C.malloc(C.size_t(n) * C.size_t(unsafe.Sizeof(uintptr(0))))
		vec := (*[1 << 20]unsafe.Pointer)(argv)[:n:n]
		for i, a := range args {
			buf := C.malloc(8)
			bufs = append(bufs, buf)
			if err := storeArg(buf, a, b.Sig.Params[i], &cstrs); err != nil {
				return nil, fmt.Errorf("%s: argument %d: %w", b.Sig.Name, i+1, err)
			}
			vec[i] = buf
		}
	}

	// libffi widens integral returns to a full ffi_arg slot
	ret := C.malloc(16)
	defer C.free(ret)
	C.memset(ret, 0, 16)

	C.cd_call(b.call.cif, b.Addr, ret, (*unsafe.Pointer)(argv))

	return loadRet(ret, b.Sig.Ret), nil
}

// storeArg writes one argument value into its C buffer
func storeArg(buf unsafe.Pointer, v ctype.Value, t *ctype.Type, cstrs *[]unsafe.Pointer) error {
	switch t.Kind {
	case ctype.KindBool:
		b := byte(0)
		if v.Truthy() {
			b = 1
		}
		*(*byte)(buf) = b
	case ctype.KindChar:
		i, _ := ctype.AsInt(v)
		*(*int8)(buf) = int8(i)
	case ctype.KindInt:
		i, _ := ctype.AsInt(v)
		*(*int32)(buf) = int32(i)
	case ctype.KindLong:
		i, _ := ctype.AsInt(v)
		*(*int64)(buf) = i
	case ctype.KindFloat:
		f, _ := ctype.AsFloat(v)
		*(*float32)(buf) = float32(f)
	case ctype.KindDouble:
		f, _ := ctype.AsFloat(v)
		*(*float64)(buf) = f
	case ctype.KindPtr:
		switch x := v.(type) {
		case ctype.StrValue:
			cs := unsafe.Pointer(C.CString(x.Val))
			*cstrs = append(*cstrs, cs)
			*(*unsafe.Pointer)(buf) = cs
		case ctype.PtrValue:
			*(*unsafe.Pointer)(buf) = x.Addr
		default:
			return fmt.Errorf("cannot pass %s as %s", v.Type(), t)
		}
	default:
		return fmt.Errorf("cannot pass %s", t)
	}
	return nil
}

// loadRet reads the native return buffer as the declared return type
func loadRet(ret unsafe.Pointer, t *ctype.Type) ctype.Value {
	switch t.Kind {
	case ctype.KindVoid:
		return ctype.VoidValue{}
	case ctype.KindBool:
		return ctype.NewBool(*(*byte)(ret) != 0)
	case ctype.KindChar:
		return ctype.NewChar(byte(*(*int8)(ret)))
	case ctype.KindInt:
		return ctype.NewInt(int64(*(*int32)(ret)))
	case ctype.KindLong:
		return ctype.NewLong(*(*int64)(ret))
	case ctype.KindFloat:
		return ctype.NewFloat(float64(*(*float32)(ret)))
	case ctype.KindDouble:
		return ctype.NewDouble(*(*float64)(ret))
	case ctype.KindPtr:
		p := *(*unsafe.Pointer)(ret)
		if t.IsString() {
			if p == nil {
				return ctype.StrValue{}
			}
			return ctype.NewStr(C.GoString((*C.char)(p)))
		}
		return ctype.PtrValue{Addr: p, T: t}
	default:
		return ctype.VoidValue{}
	}
}

// Stub is a generated machine-code trampoline exposing a scripted
// function as an ordinary native function pointer. The closure's
// executable code is emitted by libffi from the convention descriptor;
// this is the only path in the engine that produces executable bytes.
type Stub struct {
	Sig      mangle.Signature
	Conv     Convention
	Entry    uintptr // the native-callable address
	call     func(args []ctype.Value) (ctype.Value, error)
	closure  unsafe.Pointer
	cif      *C.ffi_cif
	atypes   unsafe.Pointer
	handle   cgo.Handle
	released bool
}

// NewStub generates a trampoline for the given signature and calling
// convention. Invocations marshal native arguments into engine
// values, run the supplied callback (the VM entry), and marshal the
// return value back out. Convention correctness against the actual
// caller is an unchecked precondition.
func NewStub(sig mangle.Signature, conv Convention, call func(args []ctype.Value) (ctype.Value, error)) (*Stub, error) {
	rtype, err := ffiType(sig.Ret)
	if err != nil {
		return nil, fmt.Errorf("stub %s: return %w", sig.Name, err)
	}
	n := len(sig.Params)
	var atypes unsafe.Pointer
	if n > 0 {
		atypes = C.malloc(C.size_t(n) * C.size_t(unsafe.Sizeof(uintptr(0))))
		vec := (*[1 << 20]*C.ffi_type)(atypes)[:n:n]
		for i, p := range sig.Params {
			t, err := ffiType(p)
			if err != nil {
				C.free(atypes)
				return nil, fmt.Errorf("stub %s: parameter %d: %w", sig.Name, i+1, err)
			}
			vec[i] = t
		}
	}

	cif := C.cd_alloc_cif()
	if st := C.cd_prep_cif(cif, abiFor(conv), C.uint(n), rtype, (**C.ffi_type)(atypes)); st != C.FFI_OK {
		C.free(unsafe.Pointer(cif))
		if atypes != nil {
			C.free(atypes)
		}
		return nil, fmt.Errorf("stub %s: ffi_prep_cif failed: %d", sig.Name, int(st))
	}

	var entry unsafe.Pointer
	closure := C.cd_closure_alloc(&entry)
	if closure == nil {
		C.free(unsafe.Pointer(cif))
		if atypes != nil {
			C.free(atypes)
		}
		return nil, fmt.Errorf("stub %s: closure allocation failed", sig.Name)
	}

	s := &Stub{
		Sig:    sig,
		Conv:   conv,
		call:   call,
		closure: closure,
		cif:    cif,
		atypes: atypes,
	}
	s.handle = cgo.NewHandle(s)

	if st := C.cd_prep_closure(closure, cif, unsafe.Pointer(uintptr(s.handle)), entry); st != C.FFI_OK {
		s.Release()
		return nil, fmt.Errorf("stub %s: ffi_prep_closure failed: %d", sig.Name, int(st))
	}
	s.Entry = uintptr(entry)
	return s, nil
}

// Release frees the trampoline. Calling the entry pointer afterwards
// is undefined, exactly like calling into an unloaded module.
func (s *Stub) Release() {
	if s.released {
		return
	}
	s.released = true
	if s.closure != nil {
		C.cd_closure_free(s.closure)
	}
	if s.cif != nil {
		C.free(unsafe.Pointer(s.cif))
	}
	if s.atypes != nil {
		C.free(s.atypes)
	}
	s.handle.Delete()
}

//export cinderStubInvoke
func cinderStubInvoke(_ *C.ffi_cif, ret unsafe.Pointer, args *unsafe.Pointer, user C.uintptr_t) {
	h := cgo.Handle(uintptr(user))
	s, ok := h.Value().(*Stub)
	if !ok || s.released {
		return
	}

	n := len(s.Sig.Params)
	var argv []unsafe.Pointer
	if n > 0 {
		argv = unsafe.Slice(args, n)
	}

	vals := make([]ctype.Value, n)
	for i, p := range s.Sig.Params {
		vals[i] = loadArg(argv[i], p)
	}

	out, err := s.call(vals)
	if err != nil {
		// a fault inside a native-called scripted function cannot
		// propagate across the ABI; the stub returns the zero value
		out = ctype.Zero(s.Sig.Ret)
	}
	storeStubRet(ret, out, s.Sig.Ret)
}

// loadArg reads one native argument slot as an engine value
func loadArg(p unsafe.Pointer, t *ctype.Type) ctype.Value {
	switch t.Kind {
	case ctype.KindBool:
		return ctype.NewBool(*(*byte)(p) != 0)
	case ctype.KindChar:
		return ctype.NewChar(byte(*(*int8)(p)))
	case ctype.KindInt:
		return ctype.NewInt(int64(*(*int32)(p)))
	case ctype.KindLong:
		return ctype.NewLong(*(*int64)(p))
	case ctype.KindFloat:
		return ctype.NewFloat(float64(*(*float32)(p)))
	case ctype.KindDouble:
		return ctype.NewDouble(*(*float64)(p))
	case ctype.KindPtr:
		q := *(*unsafe.Pointer)(p)
		if t.IsString() {
			if q == nil {
				return ctype.StrValue{}
			}
			return ctype.NewStr(C.GoString((*C.char)(q)))
		}
		return ctype.PtrValue{Addr: q, T: t}
	default:
		return ctype.VoidValue{}
	}
}

// storeStubRet writes the scripted return value into the native
// return slot. Integral values fill the whole ffi_arg slot per the
// libffi closure contract.
func storeStubRet(ret unsafe.Pointer, v ctype.Value, t *ctype.Type) {
	switch t.Kind {
	case ctype.KindVoid:
	case ctype.KindBool:
		i, _ := ctype.AsInt(v)
		*(*uint64)(ret) = uint64(i & 1)
	case ctype.KindChar, ctype.KindInt, ctype.KindLong:
		i, _ := ctype.AsInt(v)
		*(*int64)(ret) = i
	case ctype.KindFloat:
		f, _ := ctype.AsFloat(v)
		*(*float32)(ret) = float32(f)
	case ctype.KindDouble:
		f, _ := ctype.AsFloat(v)
		*(*float64)(ret) = f
	case ctype.KindPtr:
		if p, ok := v.(ctype.PtrValue); ok {
			*(*unsafe.Pointer)(ret) = p.Addr
		} else {
			*(*unsafe.Pointer)(ret) = nil
		}
	}
}

// Available reports whether this build carries native interop
func Available() bool { return true }
