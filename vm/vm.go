package vm

import (
	"fmt"

	"cinder/ctype"
	"cinder/state"
)

// Fault is a runtime error with source attribution
type Fault struct {
	Msg  string
	Func string // enclosing function, "" for fragment code
	Line int
}

func (f *Fault) Error() string {
	where := f.Func
	if where == "" {
		where = "<fragment>"
	}
	return fmt.Sprintf("%s:%d: %s", where, f.Line, f.Msg)
}

// Tracer observes instruction execution when installed
type Tracer interface {
	Instruction(fn string, ip int, op OpCode, line int)
	Call(fn string, depth int)
}

const maxFrames = 256

// VM represents the pcode virtual machine. Execution state lives on
// the VM; persistent program state lives on the symbol table.
type VM struct {
	Stack     []ctype.Value
	SP        int
	Frames    []*Frame
	Table     *state.Table
	StepLimit int64 // 0 means unlimited
	Tracer    Tracer

	steps  int64
	result ctype.Value
}

// Frame represents one call frame
type Frame struct {
	Program       *Program
	IP            int
	BasePointer   int
	Locals        []ctype.Value
	This          *ctype.Object
	DiscardResult bool // constructor and destructor frames
}

// NewVM creates a virtual machine bound to a symbol table
func NewVM(table *state.Table) *VM {
	return &VM{
		Stack:  make([]ctype.Value, 0, 256),
		Frames: make([]*Frame, 0, 16),
		Table:  table,
	}
}

// Run executes a fragment program to completion and returns its
// result value; statements with no value yield void.
func (vm *VM) Run(prog *Program) (ctype.Value, error) {
	vm.steps = 0
	vm.result = ctype.VoidValue{}
	vm.pushFrame(&Frame{
		Program: prog,
		Locals:  zeroLocals(prog),
	})

	for len(vm.Frames) > 0 {
		if err := vm.Step(); err != nil {
			vm.unwind()
			return nil, err
		}
		vm.steps++
		if vm.StepLimit > 0 && vm.steps > vm.StepLimit {
			vm.unwind()
			return nil, fmt.Errorf("step limit of %d exceeded", vm.StepLimit)
		}
	}
	return vm.result, nil
}

func zeroLocals(prog *Program) []ctype.Value {
	locals := make([]ctype.Value, prog.NumLocals)
	for i := range locals {
		if i < len(prog.VarTypes) && prog.VarTypes[i] != nil {
			locals[i] = ctype.Zero(prog.VarTypes[i])
		} else {
			locals[i] = ctype.NewInt(0)
		}
	}
	return locals
}

// unwind drops all frames and stack after a fault
func (vm *VM) unwind() {
	vm.Frames = vm.Frames[:0]
	vm.Stack = vm.Stack[:0]
	vm.SP = 0
}

func (vm *VM) currentFrame() *Frame {
	if len(vm.Frames) == 0 {
		return nil
	}
	return vm.Frames[len(vm.Frames)-1]
}

func (vm *VM) pushFrame(f *Frame) {
	f.BasePointer = vm.SP
	vm.Frames = append(vm.Frames, f)
	if vm.Tracer != nil {
		vm.Tracer.Call(f.Program.Name, len(vm.Frames))
	}
}

// Push places a value on the operand stack
func (vm *VM) Push(v ctype.Value) {
	if vm.SP < len(vm.Stack) {
		vm.Stack[vm.SP] = v
	} else {
		vm.Stack = append(vm.Stack, v)
	}
	vm.SP++
}

// Pop removes and returns the top of the operand stack
func (vm *VM) Pop() ctype.Value {
	vm.SP--
	return vm.Stack[vm.SP]
}

// Peek returns the value n slots from the top without removing it
func (vm *VM) Peek(n int) ctype.Value {
	return vm.Stack[vm.SP-1-n]
}

// Return pops the current frame, truncates its stack segment, and
// delivers the result to the caller.
func (vm *VM) Return(v ctype.Value) {
	frame := vm.currentFrame()
	vm.SP = frame.BasePointer
	vm.Stack = vm.Stack[:vm.SP]
	vm.Frames = vm.Frames[:len(vm.Frames)-1]
	if len(vm.Frames) == 0 {
		vm.result = v
		return
	}
	if !frame.DiscardResult {
		vm.Push(v)
	}
}

// fault builds a Fault at the current instruction
func (vm *VM) fault(format string, args ...any) error {
	frame := vm.currentFrame()
	f := &Fault{Msg: fmt.Sprintf(format, args...)}
	if frame != nil {
		f.Func = frame.Program.Name
		f.Line = frame.Program.LineForIP(frame.IP)
	}
	return f
}

// wrap attaches source attribution to a plain operation error
func (vm *VM) wrap(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*Fault); ok {
		return err
	}
	return vm.fault("%s", err.Error())
}

// ReadUint16 reads a two-byte little-endian operand
func (vm *VM) ReadUint16() int {
	frame := vm.currentFrame()
	v := int(frame.Program.Code[frame.IP]) | int(frame.Program.Code[frame.IP+1])<<8
	frame.IP += 2
	return v
}

// ReadByte reads a one-byte operand
func (vm *VM) ReadByte() int {
	frame := vm.currentFrame()
	v := int(frame.Program.Code[frame.IP])
	frame.IP++
	return v
}

// Step executes a single instruction
func (vm *VM) Step() error {
	frame := vm.currentFrame()
	if frame == nil {
		return fmt.Errorf("no active frame")
	}
	if frame.IP >= len(frame.Program.Code) {
		vm.Return(ctype.VoidValue{})
		return nil
	}

	op := OpCode(frame.Program.Code[frame.IP])
	if vm.Tracer != nil {
		vm.Tracer.Instruction(frame.Program.Name, frame.IP, op,
			frame.Program.LineForIP(frame.IP))
	}
	frame.IP++
	return vm.Execute(op)
}

// Execute dispatches an opcode
func (vm *VM) Execute(op OpCode) error {
	switch op {
	case OP_PUSH:
		idx := vm.ReadUint16()
		vm.Push(vm.currentFrame().Program.Constants[idx])

	case OP_POP:
		vm.Pop()

	case OP_DUP:
		vm.Push(vm.Peek(0))

	case OP_GET_LOCAL:
		slot := vm.ReadUint16()
		vm.Push(vm.currentFrame().Locals[slot])

	case OP_SET_LOCAL:
		slot := vm.ReadUint16()
		vm.currentFrame().Locals[slot] = vm.Pop()

	case OP_GET_GLOBAL:
		name := vm.symbol(vm.ReadUint16())
		g, ok := vm.Table.Global(name)
		if !ok {
			return vm.fault("undefined variable %q", name)
		}
		if g.Aliased() {
			v, err := loadHost(g.Addr, g.Type)
			if err != nil {
				return vm.wrap(err)
			}
			vm.Push(v)
		} else {
			vm.Push(g.Val)
		}

	case OP_SET_GLOBAL:
		name := vm.symbol(vm.ReadUint16())
		g, ok := vm.Table.Global(name)
		if !ok {
			return vm.fault("undefined variable %q", name)
		}
		v, ok := ctype.Convert(vm.Pop(), g.Type)
		if !ok {
			return vm.fault("cannot assign to %s %s", g.Type, g.Name)
		}
		if g.Aliased() {
			if err := storeHost(g.Addr, g.Type, v); err != nil {
				return vm.wrap(err)
			}
		} else {
			g.Val = v
		}

	case OP_GET_FIELD:
		slot := vm.ReadUint16()
		obj, err := vm.popObject()
		if err != nil {
			return err
		}
		vm.Push(obj.Fields[slot])

	case OP_SET_FIELD:
		slot := vm.ReadUint16()
		obj, err := vm.popObject()
		if err != nil {
			return err
		}
		obj.Fields[slot] = vm.Pop()

	case OP_GET_THIS_FIELD:
		slot := vm.ReadUint16()
		this := vm.currentFrame().This
		if this == nil {
			return vm.fault("no receiver in this context")
		}
		vm.Push(this.Fields[slot])

	case OP_SET_THIS_FIELD:
		slot := vm.ReadUint16()
		this := vm.currentFrame().This
		if this == nil {
			return vm.fault("no receiver in this context")
		}
		this.Fields[slot] = vm.Pop()

	case OP_GET_THIS:
		this := vm.currentFrame().This
		if this == nil {
			return vm.fault("no receiver in this context")
		}
		vm.Push(ctype.ObjectValue{Obj: this})

	case OP_ADD, OP_SUB, OP_MUL, OP_DIV, OP_MOD:
		b, a := vm.Pop(), vm.Pop()
		r, err := binaryArith(op, a, b)
		if err != nil {
			return vm.wrap(err)
		}
		vm.Push(r)

	case OP_NEG:
		r, err := negate(vm.Pop())
		if err != nil {
			return vm.wrap(err)
		}
		vm.Push(r)

	case OP_EQ, OP_NE, OP_LT, OP_LE, OP_GT, OP_GE:
		b, a := vm.Pop(), vm.Pop()
		r, err := compare(op, a, b)
		if err != nil {
			return vm.wrap(err)
		}
		vm.Push(r)

	case OP_NOT:
		vm.Push(ctype.NewBool(!vm.Pop().Truthy()))

	case OP_AND:
		offset := vm.ReadUint16()
		if !vm.Peek(0).Truthy() {
			vm.Pop()
			vm.Push(ctype.NewBool(false))
			vm.currentFrame().IP += offset
		} else {
			vm.Pop()
		}

	case OP_OR:
		offset := vm.ReadUint16()
		if vm.Peek(0).Truthy() {
			vm.Pop()
			vm.Push(ctype.NewBool(true))
			vm.currentFrame().IP += offset
		} else {
			vm.Pop()
		}

	case OP_BITAND, OP_BITOR, OP_BITXOR, OP_SHL, OP_SHR:
		b, a := vm.Pop(), vm.Pop()
		r, err := binaryBits(op, a, b)
		if err != nil {
			return vm.wrap(err)
		}
		vm.Push(r)

	case OP_BITNOT:
		r, err := complement(vm.Pop())
		if err != nil {
			return vm.wrap(err)
		}
		vm.Push(r)

	case OP_CONVERT:
		t := vm.typeAt(vm.ReadUint16())
		v := vm.Pop()
		cv, ok := ctype.Convert(v, t)
		if !ok {
			return vm.fault("cannot convert %s to %s", v.Type(), t)
		}
		vm.Push(cv)

	case OP_JUMP:
		offset := vm.ReadUint16()
		vm.currentFrame().IP += offset

	case OP_JUMP_IF_FALSE:
		offset := vm.ReadUint16()
		if !vm.Pop().Truthy() {
			vm.currentFrame().IP += offset
		}

	case OP_JUMP_IF_TRUE:
		offset := vm.ReadUint16()
		if vm.Pop().Truthy() {
			vm.currentFrame().IP += offset
		}

	case OP_LOOP:
		offset := vm.ReadUint16()
		vm.currentFrame().IP -= offset

	case OP_RETURN:
		vm.Return(vm.Pop())

	case OP_RETURN_VOID:
		vm.Return(ctype.VoidValue{})

	case OP_CALL:
		name := vm.symbol(vm.ReadUint16())
		argc := vm.ReadByte()
		return vm.callNamed(name, argc, nil, false)

	case OP_CALL_METHOD:
		name := vm.symbol(vm.ReadUint16())
		argc := vm.ReadByte()
		args := vm.popArgs(argc)
		obj, err := vm.popObject()
		if err != nil {
			return err
		}
		vm.pushArgs(args)
		return vm.callNamed(obj.Class.Name+"::"+name, argc, obj, false)

	case OP_NEW:
		name := vm.symbol(vm.ReadUint16())
		argc := vm.ReadByte()
		return vm.construct(name, argc)

	case OP_DESTROY:
		slot := vm.ReadUint16()
		v := vm.currentFrame().Locals[slot]
		if ov, ok := v.(ctype.ObjectValue); ok && ov.Obj != nil {
			return vm.destroy(ov.Obj)
		}

	case OP_LOAD_IND:
		t := vm.typeAt(vm.ReadUint16())
		return vm.loadIndirect(t)

	case OP_STORE_IND:
		t := vm.typeAt(vm.ReadUint16())
		ptr := vm.Pop()
		val := vm.Pop()
		p, ok := ptr.(ctype.PtrValue)
		if !ok {
			return vm.fault("cannot assign through %s", ptr.Type())
		}
		cv, ok := ctype.Convert(val, t)
		if !ok {
			return vm.fault("cannot convert %s to %s", val.Type(), t)
		}
		if err := storeHost(p.Addr, t, cv); err != nil {
			return vm.wrap(err)
		}

	case OP_ADDR_GLOBAL:
		name := vm.symbol(vm.ReadUint16())
		g, ok := vm.Table.Global(name)
		if !ok {
			return vm.fault("undefined variable %q", name)
		}
		if !g.Aliased() {
			return vm.fault("cannot take the address of %s: not backed by host memory", name)
		}
		vm.Push(ctype.PtrValue{Addr: g.Addr, T: ctype.PointerTo(g.Type)})

	case OP_INDEX:
		t := vm.typeAt(vm.ReadUint16())
		return vm.index(t)

	case OP_STORE_IDX:
		t := vm.typeAt(vm.ReadUint16())
		idxv := vm.Pop()
		ptr := vm.Pop()
		val := vm.Pop()
		idx, ok := ctype.AsInt(idxv)
		if !ok {
			return vm.fault("index must be integral, got %s", idxv.Type())
		}
		p, ok := ptr.(ctype.PtrValue)
		if !ok {
			return vm.fault("cannot assign to an element of %s", ptr.Type())
		}
		cv, ok := ctype.Convert(val, t)
		if !ok {
			return vm.fault("cannot convert %s to %s", val.Type(), t)
		}
		size, err := hostSize(t)
		if err != nil {
			return vm.wrap(err)
		}
		if err := storeHost(unsafeAdd(p.Addr, uintptr(idx)*size), t, cv); err != nil {
			return vm.wrap(err)
		}

	default:
		return vm.fault("unknown opcode %d", byte(op))
	}
	return nil
}

func (vm *VM) symbol(idx int) string {
	return vm.currentFrame().Program.Symbols[idx]
}

func (vm *VM) typeAt(idx int) *ctype.Type {
	return vm.currentFrame().Program.Types[idx]
}

func (vm *VM) popObject() (*ctype.Object, error) {
	v := vm.Pop()
	ov, ok := v.(ctype.ObjectValue)
	if !ok || ov.Obj == nil {
		return nil, vm.fault("%s is not an object", v.Type())
	}
	return ov.Obj, nil
}

func (vm *VM) popArgs(argc int) []ctype.Value {
	args := make([]ctype.Value, argc)
	for i := argc - 1; i >= 0; i-- {
		args[i] = vm.Pop()
	}
	return args
}

func (vm *VM) pushArgs(args []ctype.Value) {
	for _, a := range args {
		vm.Push(a)
	}
}

// loadIndirect implements unary * on the top of stack
func (vm *VM) loadIndirect(t *ctype.Type) error {
	v := vm.Pop()
	switch p := v.(type) {
	case ctype.StrValue:
		if len(p.Val) == 0 {
			vm.Push(ctype.NewChar(0))
		} else {
			vm.Push(ctype.NewChar(p.Val[0]))
		}
	case ctype.PtrValue:
		r, err := loadHost(p.Addr, t)
		if err != nil {
			return vm.wrap(err)
		}
		vm.Push(r)
	default:
		return vm.fault("cannot dereference %s", v.Type())
	}
	return nil
}

// index implements base[i]; t is the element type
func (vm *VM) index(t *ctype.Type) error {
	idxv := vm.Pop()
	base := vm.Pop()
	idx, ok := ctype.AsInt(idxv)
	if !ok {
		return vm.fault("index must be integral, got %s", idxv.Type())
	}
	switch b := base.(type) {
	case ctype.StrValue:
		if idx < 0 || idx > int64(len(b.Val)) {
			return vm.fault("index %d out of range for string of length %d", idx, len(b.Val))
		}
		if idx == int64(len(b.Val)) {
			vm.Push(ctype.NewChar(0)) // the terminating NUL
		} else {
			vm.Push(ctype.NewChar(b.Val[idx]))
		}
	case ctype.PtrValue:
		size, err := hostSize(t)
		if err != nil {
			return vm.wrap(err)
		}
		addr := unsafeAdd(b.Addr, uintptr(idx)*size)
		r, err := loadHost(addr, t)
		if err != nil {
			return vm.wrap(err)
		}
		vm.Push(r)
	default:
		return vm.fault("cannot index %s", base.Type())
	}
	return nil
}
