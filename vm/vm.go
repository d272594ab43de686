// Package vm implements the stack-based virtual machine that executes
// compiled Lox bytecode: the value stack, call-frame stack, open-upvalue
// list, global table, string-intern table, and the bytecode dispatch loop
// itself.
package vm

import (
	"fmt"
	"io"
	"os"

	"github.com/dolthub/swiss"
	"golang.org/x/exp/slices"

	"github.com/mna/loxvm/lang/compiler"
	"github.com/mna/loxvm/lang/debug"
	"github.com/mna/loxvm/lang/value"
)

// framesMax bounds the call-frame stack: a 512-deep call chain is ok, a
// 513th nested call overflows.
const framesMax = 512

// stackMax is the value stack's fixed capacity, framesMax * 256 slots (one
// function's locals never exceed 256 entries; see lang/compiler.maxLocals).
const stackMax = framesMax * 256

// Status is the outcome of a VM run, returned to the driver so it can pick
// an exit code.
type Status int

const (
	// StatusOK means source compiled and ran to completion.
	StatusOK Status = iota
	// StatusCompileError means compilation failed; nothing ran.
	StatusCompileError
	// StatusRuntimeError means a runtime error aborted execution.
	StatusRuntimeError
)

// frame is one in-progress function activation: the executing closure, its
// instruction pointer, and the stack slot its locals begin at.
type frame struct {
	closure *value.ObjClosure
	ip      int
	base    int
}

// VM executes compiled Lox bytecode. It is not safe for concurrent use: it
// runs single-threaded, synchronously, and never suspends mid-instruction.
type VM struct {
	Stdout io.Writer
	Stderr io.Writer

	// Trace, when non-nil, receives one disassembled line per executed
	// instruction (the --trace CLI flag's instruction tracer).
	Trace io.Writer

	stack        []value.Value
	frames       []frame
	globals      *swiss.Map[string, value.Value]
	strings      *swiss.Map[string, *value.ObjString]
	openUpvalues *value.ObjUpvalue
	objects      value.Obj
}

// New returns a VM ready to Interpret source, with its standard environment
// (clock()) already defined.
func New() *VM {
	vm := &VM{
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		stack:   make([]value.Value, 0, stackMax),
		frames:  make([]frame, 0, framesMax),
		globals: swiss.NewMap[string, value.Value](64),
		strings: swiss.NewMap[string, *value.ObjString](64),
	}
	vm.defineNative("clock", nativeClock)
	return vm
}

// Intern canonicalizes s to a single shared *value.ObjString, satisfying
// the compiler.Interner interface so the same table backs both
// compile-time literals and runtime-created strings: interning the same
// string twice always returns the identical object.
func (vm *VM) Intern(s string) *value.ObjString {
	if existing, ok := vm.strings.Get(s); ok {
		return existing
	}
	obj := value.NewObjString(s)
	vm.track(obj)
	vm.strings.Put(s, obj)
	return obj
}

// track links obj into the VM's intrusive heap-object list, the sole
// ownership anchor for every allocation.
func (vm *VM) track(obj value.Obj) {
	obj.SetNext(vm.objects)
	vm.objects = obj
}

func (vm *VM) defineNative(name string, fn value.NativeFn) {
	nativeName := vm.Intern(name)
	native := value.NewObjNative(name, fn)
	vm.track(native)
	vm.globals.Put(nativeName.Chars, value.FromObj(native))
}

// ---- value stack ----

func (vm *VM) push(v value.Value) { vm.stack = append(vm.stack, v) }

func (vm *VM) pop() value.Value {
	v := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return v
}

func (vm *VM) peek(distance int) value.Value {
	return vm.stack[len(vm.stack)-1-distance]
}

func (vm *VM) resetStack() {
	vm.stack = vm.stack[:0]
	vm.frames = vm.frames[:0]
	vm.openUpvalues = nil
}

// Interpret compiles and runs source, writing print output to vm.Stdout and
// compile and runtime errors (including failed asserts) to vm.Stderr, and
// returns the resulting Status.
func (vm *VM) Interpret(source string) Status {
	fn, err := compiler.Compile(source, vm)
	if err != nil {
		fmt.Fprintln(vm.Stderr, err)
		return StatusCompileError
	}

	closure := value.NewObjClosure(fn)
	vm.track(closure)
	vm.push(value.FromObj(closure))
	vm.callValue(value.FromObj(closure), 0)

	return vm.run()
}

func (vm *VM) currentFrame() *frame { return &vm.frames[len(vm.frames)-1] }

func (vm *VM) readByte(f *frame) byte {
	b := f.closure.Function.Chunk.Code[f.ip]
	f.ip++
	return b
}

func (vm *VM) readU16(f *frame) int {
	hi := vm.readByte(f)
	lo := vm.readByte(f)
	return int(hi)<<8 | int(lo)
}

func (vm *VM) readConstant(f *frame) value.Value {
	idx := vm.readByte(f)
	return f.closure.Function.Chunk.Constants[idx]
}

func (vm *VM) readString(f *frame) *value.ObjString {
	return vm.readConstant(f).AsString()
}

// run is the bytecode dispatch loop.
func (vm *VM) run() Status {
	f := vm.currentFrame()

	for {
		if vm.Trace != nil {
			debug.DisassembleInstruction(vm.Trace, &f.closure.Function.Chunk, f.ip)
		}

		op := value.OpCode(vm.readByte(f))
		switch op {
		case value.OpConstant:
			vm.push(vm.readConstant(f))

		case value.OpConstantLong:
			lo := int(vm.readByte(f))
			mid := int(vm.readByte(f))
			hi := int(vm.readByte(f))
			idx := lo | mid<<8 | hi<<16
			vm.push(f.closure.Function.Chunk.Constants[idx])

		case value.OpNil:
			vm.push(value.Nil)
		case value.OpTrue:
			vm.push(value.Bool(true))
		case value.OpFalse:
			vm.push(value.Bool(false))
		case value.OpPop:
			vm.pop()

		case value.OpGetLocal:
			slot := int(vm.readByte(f))
			vm.push(vm.stack[f.base+slot])
		case value.OpSetLocal:
			slot := int(vm.readByte(f))
			vm.stack[f.base+slot] = vm.peek(0)

		case value.OpGetGlobal:
			name := vm.readString(f)
			v, ok := vm.globals.Get(name.Chars)
			if !ok {
				return vm.runtimeError("Undefined variable %s.", name.Chars)
			}
			vm.push(v)
		case value.OpDefineGlobal:
			name := vm.readString(f)
			vm.globals.Put(name.Chars, vm.peek(0))
			vm.pop()
		case value.OpSetGlobal:
			name := vm.readString(f)
			if _, ok := vm.globals.Get(name.Chars); !ok {
				return vm.runtimeError("Undefined variable %s.", name.Chars)
			}
			vm.globals.Put(name.Chars, vm.peek(0))

		case value.OpGetUpvalue:
			slot := int(vm.readByte(f))
			vm.push(*f.closure.Upvalues[slot].Location)
		case value.OpSetUpvalue:
			slot := int(vm.readByte(f))
			*f.closure.Upvalues[slot].Location = vm.peek(0)

		case value.OpEqual:
			b := vm.pop()
			a := vm.pop()
			vm.push(value.Bool(value.Equal(a, b)))
		case value.OpGreater:
			if st := vm.binaryCompare(func(a, b float64) bool { return a > b }); st != StatusOK {
				return st
			}
		case value.OpLess:
			if st := vm.binaryCompare(func(a, b float64) bool { return a < b }); st != StatusOK {
				return st
			}

		case value.OpNot:
			vm.push(value.Bool(vm.pop().IsFalsey()))
		case value.OpNegate:
			if !vm.peek(0).IsNumber() {
				return vm.runtimeError("Operand must be a number.")
			}
			vm.push(value.Number(-vm.pop().AsNumber()))

		case value.OpAdd:
			if st := vm.add(); st != StatusOK {
				return st
			}
		case value.OpSubtract:
			if st := vm.binaryArith(func(a, b float64) float64 { return a - b }); st != StatusOK {
				return st
			}
		case value.OpMultiply:
			if st := vm.binaryArith(func(a, b float64) float64 { return a * b }); st != StatusOK {
				return st
			}
		case value.OpDivide:
			if st := vm.binaryArith(func(a, b float64) float64 { return a / b }); st != StatusOK {
				return st
			}

		case value.OpPrint:
			fmt.Fprintln(vm.Stdout, vm.pop().String())
		case value.OpAssert:
			v := vm.pop()
			if v.IsFalsey() {
				return vm.runtimeError("Assertion failed.")
			}

		case value.OpJump:
			offset := vm.readU16(f)
			f.ip += offset
		case value.OpJumpIfFalse:
			offset := vm.readU16(f)
			if vm.peek(0).IsFalsey() {
				f.ip += offset
			}
		case value.OpLoop:
			offset := vm.readU16(f)
			f.ip -= offset

		case value.OpCall:
			argCount := int(vm.readByte(f))
			if !vm.callValue(vm.peek(argCount), argCount) {
				return StatusRuntimeError
			}
			f = vm.currentFrame()

		case value.OpClosure:
			fn := vm.readConstant(f).AsObj().(*value.ObjFunction)
			closure := value.NewObjClosure(fn)
			vm.track(closure)
			for i := 0; i < fn.UpvalueCount; i++ {
				isLocal := vm.readByte(f)
				index := int(vm.readByte(f))
				if isLocal != 0 {
					closure.Upvalues[i] = vm.captureUpvalue(f.base + index)
				} else {
					closure.Upvalues[i] = f.closure.Upvalues[index]
				}
			}
			vm.push(value.FromObj(closure))

		case value.OpCloseUpvalue:
			vm.closeUpvalues(len(vm.stack) - 1)
			vm.pop()

		case value.OpReturn:
			result := vm.pop()
			vm.closeUpvalues(f.base)
			vm.frames = vm.frames[:len(vm.frames)-1]
			if len(vm.frames) == 0 {
				vm.pop()
				return StatusOK
			}
			vm.stack = vm.stack[:f.base]
			vm.push(result)
			f = vm.currentFrame()

		default:
			return vm.runtimeError("Unknown opcode %d.", byte(op))
		}
	}
}

func (vm *VM) binaryArith(op func(a, b float64) float64) Status {
	if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
		return vm.runtimeError("Operands must be numbers.")
	}
	b := vm.pop().AsNumber()
	a := vm.pop().AsNumber()
	vm.push(value.Number(op(a, b)))
	return StatusOK
}

func (vm *VM) binaryCompare(op func(a, b float64) bool) Status {
	if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
		return vm.runtimeError("Operands must be numbers.")
	}
	b := vm.pop().AsNumber()
	a := vm.pop().AsNumber()
	vm.push(value.Bool(op(a, b)))
	return StatusOK
}

// add implements ADD overloading: two numbers sum, at least one string
// coerces the other side and concatenates. Both operands are kept on the
// stack until the new string exists so a future collector would see them
// as roots.
func (vm *VM) add() Status {
	b := vm.peek(0)
	a := vm.peek(1)

	switch {
	case a.IsNumber() && b.IsNumber():
		vm.pop()
		vm.pop()
		vm.push(value.Number(a.AsNumber() + b.AsNumber()))
		return StatusOK
	case a.IsString() || b.IsString():
		as, ok := coerceToString(a)
		if !ok {
			return vm.runtimeError("Operands must be two numbers or at least one string.")
		}
		bs, ok := coerceToString(b)
		if !ok {
			return vm.runtimeError("Operands must be two numbers or at least one string.")
		}
		vm.pop()
		vm.pop()
		result := vm.Intern(as + bs)
		vm.push(value.FromObj(result))
		return StatusOK
	default:
		return vm.runtimeError("Operands must be two numbers or at least one string.")
	}
}

// coerceToString implements the non-string-side coercion rules for ADD:
// Number becomes its decimal representation, Bool becomes true/false, Nil
// becomes "nil"; any other object value cannot be coerced.
func coerceToString(v value.Value) (string, bool) {
	switch {
	case v.IsString():
		return v.AsString().Chars, true
	case v.IsNumber(), v.IsBool(), v.IsNil():
		return v.String(), true
	default:
		return "", false
	}
}

// callValue dispatches CALL argc against the value at peek(argCount),
// whether a closure or a native. It returns false if a runtime error was
// raised.
func (vm *VM) callValue(callee value.Value, argCount int) bool {
	if callee.IsObj() {
		switch obj := callee.AsObj().(type) {
		case *value.ObjClosure:
			return vm.callClosure(obj, argCount) == StatusOK
		case *value.ObjNative:
			args := vm.stack[len(vm.stack)-argCount:]
			result := obj.Fn(args)
			vm.stack = vm.stack[:len(vm.stack)-argCount-1]
			vm.push(result)
			return true
		}
	}
	vm.runtimeError("Can only call functions and classes.")
	return false
}

func (vm *VM) callClosure(closure *value.ObjClosure, argCount int) Status {
	if argCount != closure.Function.Arity {
		return vm.runtimeError("Expected %d arguments but got %d.", closure.Function.Arity, argCount)
	}
	if len(vm.frames) >= framesMax {
		return vm.runtimeError("Stack overflow.")
	}
	vm.frames = append(vm.frames, frame{
		closure: closure,
		base:    len(vm.stack) - argCount - 1,
	})
	return StatusOK
}

// captureUpvalue returns the open upvalue for the stack slot at index,
// reusing an existing one if the VM's open-upvalue list (sorted by
// descending slot index) already has one for that exact slot, otherwise
// inserting a new one in sorted position.
func (vm *VM) captureUpvalue(slot int) *value.ObjUpvalue {
	var prev *value.ObjUpvalue
	cur := vm.openUpvalues
	for cur != nil && cur.Slot > slot {
		prev = cur
		cur = cur.NextOpen
	}
	if cur != nil && cur.Slot == slot {
		return cur
	}

	created := value.NewObjUpvalue(&vm.stack[slot], slot)
	vm.track(created)
	created.NextOpen = cur
	if prev == nil {
		vm.openUpvalues = created
	} else {
		prev.NextOpen = created
	}
	vm.checkOpenUpvalueOrder()
	return created
}

// checkOpenUpvalueOrder panics if the open-upvalue list is not in strictly
// descending order by slot, the invariant every insertion in
// captureUpvalue is supposed to maintain.
func (vm *VM) checkOpenUpvalueOrder() {
	var slots []int
	for cur := vm.openUpvalues; cur != nil; cur = cur.NextOpen {
		slots = append(slots, cur.Slot)
	}
	descending := slices.IsSortedFunc(slots, func(a, b int) int { return b - a })
	distinct := len(slices.Compact(slices.Clone(slots))) == len(slots)
	if !descending || !distinct {
		panic(fmt.Sprintf("open-upvalue list out of order: %v", slots))
	}
}

// closeUpvalues closes every open upvalue whose slot is at or above last,
// detaching it from the stack it used to alias.
func (vm *VM) closeUpvalues(last int) {
	for vm.openUpvalues != nil && vm.openUpvalues.Slot >= last {
		uv := vm.openUpvalues
		uv.Close()
		vm.openUpvalues = uv.NextOpen
	}
}

// runtimeError formats msg, writes it plus a top-down stack trace to
// vm.Stderr, resets the value stack, and returns StatusRuntimeError.
func (vm *VM) runtimeError(format string, args ...any) Status {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(vm.Stderr, msg)

	for i := len(vm.frames) - 1; i >= 0; i-- {
		fr := vm.frames[i]
		fn := fr.closure.Function
		line := fn.Chunk.LineOf(fr.ip - 1)
		name := "script"
		if fn.Name != nil {
			name = fn.Name.Chars + "()"
		}
		fmt.Fprintf(vm.Stderr, "[line %d] in %s\n", line, name)
	}

	vm.resetStack()
	return StatusRuntimeError
}
