package vm

import (
	"unsafe"

	"cinder/ctype"
	"cinder/state"
)

func unsafeAdd(p unsafe.Pointer, off uintptr) unsafe.Pointer {
	return unsafe.Add(p, off)
}

// callNamed dispatches a call to a scripted function, a native
// import, or a host builtin. Calls resolve through the symbol table
// at run time, so a redefinition is picked up by previously compiled
// callers.
func (vm *VM) callNamed(name string, argc int, recv *ctype.Object, discard bool) error {
	fn, ok := vm.Table.Func(name)
	if !ok {
		return vm.fault("undefined function %q", name)
	}

	// an unqualified call to a sibling method inherits the receiver
	if fn.Recv != nil && recv == nil {
		if f := vm.currentFrame(); f != nil {
			recv = f.This
		}
		if recv == nil {
			return vm.fault("method %s needs a receiver", name)
		}
	}

	if fn.Variadic {
		if argc < len(fn.Params) {
			return vm.fault("%s takes at least %d argument(s), got %d", name, len(fn.Params), argc)
		}
	} else if len(fn.Params) != argc {
		return vm.fault("%s takes %d argument(s), got %d", name, len(fn.Params), argc)
	}

	args := vm.popArgs(argc)
	for i, p := range fn.Params {
		cv, ok := ctype.Convert(args[i], p.Type)
		if !ok {
			return vm.fault("%s: argument %d: cannot convert %s to %s",
				name, i+1, args[i].Type(), p.Type)
		}
		args[i] = cv
	}

	switch {
	case fn.Builtin != nil:
		r, err := fn.Builtin(args)
		if err != nil {
			return vm.wrap(err)
		}
		if r == nil {
			r = ctype.VoidValue{}
		}
		if !discard {
			vm.Push(r)
		}
		return nil

	case fn.Native != nil:
		if fn.Recv != nil {
			return vm.fault("native method %s needs a host-allocated receiver", name)
		}
		r, err := fn.Native.Call(args)
		if err != nil {
			return vm.wrap(err)
		}
		if !discard {
			vm.Push(r)
		}
		return nil

	case fn.Body != nil:
		prog, err := vm.scriptProgram(fn)
		if err != nil {
			return vm.wrap(err)
		}
		if len(vm.Frames) >= maxFrames {
			return vm.fault("call stack overflow in %s", name)
		}
		frame := &Frame{
			Program:       prog,
			Locals:        zeroLocals(prog),
			This:          recv,
			DiscardResult: discard,
		}
		copy(frame.Locals, args)
		vm.pushFrame(frame)
		return nil

	default:
		return vm.fault("%q is declared but has no definition", name)
	}
}

// scriptProgram returns the compiled body of a scripted function,
// compiling it on first call. Redefinition installs a fresh Func, so
// a stale cache cannot survive.
func (vm *VM) scriptProgram(fn *state.Func) (*Program, error) {
	if prog, ok := fn.Code.(*Program); ok && prog != nil {
		return prog, nil
	}
	prog, err := CompileFunc(vm.Table, fn)
	if err != nil {
		return nil, err
	}
	fn.Code = prog
	return prog, nil
}

// construct allocates a class instance and runs its constructor. The
// instance is on the stack underneath the constructor frame, so the
// value remains after the frame unwinds.
func (vm *VM) construct(className string, argc int) error {
	class, ok := vm.Table.Class(className)
	if !ok {
		return vm.fault("unknown class %q", className)
	}
	obj := &ctype.Object{Class: class, Fields: make([]ctype.Value, len(class.Fields))}
	for i, f := range class.Fields {
		obj.Fields[i] = ctype.Zero(f.Type)
	}

	ctorName := className + "::" + className
	if _, ok := vm.Table.Func(ctorName); !ok {
		if argc != 0 {
			return vm.fault("class %s has no constructor", className)
		}
		vm.Push(ctype.ObjectValue{Obj: obj})
		return nil
	}

	// reorder so the object value sits below the constructor frame
	args := vm.popArgs(argc)
	vm.Push(ctype.ObjectValue{Obj: obj})
	vm.pushArgs(args)
	return vm.callNamed(ctorName, argc, obj, true)
}

// destroy runs the destructor for an object, when the class has one
func (vm *VM) destroy(obj *ctype.Object) error {
	dtorName := obj.Class.Name + "::~" + obj.Class.Name
	if _, ok := vm.Table.Func(dtorName); !ok {
		return nil
	}
	return vm.callNamed(dtorName, 0, obj, true)
}

// CallFunction invokes a callable from the host with already-built
// argument values and runs it to completion. This is the entry used
// for compiled-call handles and for native stub trampolines.
func (vm *VM) CallFunction(name string, args []ctype.Value) (ctype.Value, error) {
	base := len(vm.Frames)
	// a nested invocation mid-run keeps the outer step accounting
	if base == 0 {
		vm.steps = 0
		vm.result = ctype.VoidValue{}
	}

	vm.pushArgs(args)
	if err := vm.callNamed(name, len(args), nil, false); err != nil {
		vm.unwind()
		return nil, err
	}

	// a builtin or native call completes synchronously
	if len(vm.Frames) == base {
		if vm.SP > 0 {
			return vm.Pop(), nil
		}
		return ctype.VoidValue{}, nil
	}

	for len(vm.Frames) > base {
		if err := vm.Step(); err != nil {
			vm.unwind()
			return nil, err
		}
		vm.steps++
		if vm.StepLimit > 0 && vm.steps > vm.StepLimit {
			vm.unwind()
			return nil, vm.fault("step limit of %d exceeded", vm.StepLimit)
		}
	}
	// the final Return on an idle machine delivers through vm.result,
	// not the operand stack
	if base == 0 {
		return vm.result, nil
	}
	if vm.SP > 0 {
		return vm.Pop(), nil
	}
	return ctype.VoidValue{}, nil
}
