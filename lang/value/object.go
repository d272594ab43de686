package value

import "fmt"

// ObjKind discriminates the concrete type of a heap object.
type ObjKind uint8

const (
	ObjKindString ObjKind = iota
	ObjKindFunction
	ObjKindNative
	ObjKindClosure
	ObjKindUpvalue
)

func (k ObjKind) String() string {
	switch k {
	case ObjKindString:
		return "string"
	case ObjKindFunction:
		return "function"
	case ObjKindNative:
		return "native"
	case ObjKindClosure:
		return "closure"
	case ObjKindUpvalue:
		return "upvalue"
	default:
		return "unknown"
	}
}

// Obj is implemented by every heap-allocated object kind (String, Function,
// Native, Closure, Upvalue). Every object shares a Header carrying its Kind
// and a Next pointer threading the VM's intrusive list of every live
// allocation -- the sole ownership anchor used for bulk teardown and, in the
// future, for mark-sweep collection.
type Obj interface {
	Kind() ObjKind
	Next() Obj
	SetNext(Obj)
	String() string
	TypeName() string
}

// Header is embedded by every concrete Obj implementation.
type Header struct {
	kind ObjKind
	next Obj
}

func (h *Header) Kind() ObjKind  { return h.kind }
func (h *Header) Next() Obj      { return h.next }
func (h *Header) SetNext(o Obj)  { h.next = o }
func (h *Header) TypeName() string { return h.kind.String() }

// ObjString is an immutable, interned byte sequence. At most one ObjString
// exists per distinct byte sequence in a given VM; reference equality is
// therefore sound as value equality.
type ObjString struct {
	Header
	Chars string
	Hash  uint32
}

func (s *ObjString) String() string { return s.Chars }

// FNV1a32 computes the 32-bit FNV-1a hash of s, the algorithm used to hash
// interned strings and look them up in the intern table.
func FNV1a32(s string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}

// NewObjString constructs an ObjString for chars, computing its hash. It does
// not intern; interning is the VM's responsibility (see vm.VM.Intern).
func NewObjString(chars string) *ObjString {
	s := &ObjString{Chars: chars, Hash: FNV1a32(chars)}
	s.kind = ObjKindString
	return s
}

// ObjFunction is a compiled unit: either a user-defined `fun`, or the
// top-level script itself (name "<script>", arity 0).
type ObjFunction struct {
	Header
	Arity        int
	UpvalueCount int
	Name         *ObjString // nil for the top-level script, which prints as "<script>"
	Chunk        Chunk
}

func NewObjFunction() *ObjFunction {
	f := &ObjFunction{}
	f.kind = ObjKindFunction
	return f
}

func (f *ObjFunction) String() string {
	if f.Name == nil {
		return "<script>"
	}
	return fmt.Sprintf("<fn %s>", f.Name.Chars)
}

// NativeFn is a host-provided function exposed to Lox code as a Native
// object, e.g. clock().
type NativeFn func(args []Value) Value

// ObjNative wraps a host function so it can be called like any other Lox
// callable.
type ObjNative struct {
	Header
	Name string
	Fn   NativeFn
}

func NewObjNative(name string, fn NativeFn) *ObjNative {
	n := &ObjNative{Name: name, Fn: fn}
	n.kind = ObjKindNative
	return n
}

func (n *ObjNative) String() string { return "<native fn>" }

// ObjUpvalue is the mechanism that promotes a stack-allocated local to
// heap-lifetime storage once a closure captures it. While open, Location
// points directly at the live stack slot; Close moves the value into Closed
// and redirects Location to point at it, so every reader -- whether it
// captured the upvalue before or after closing -- observes the same cell.
type ObjUpvalue struct {
	Header
	Location *Value
	Closed   Value
	NextOpen *ObjUpvalue // next entry in the VM's open-upvalue list, sorted by descending stack address

	// Slot is the value stack index Location currently aliases. It is only
	// meaningful while the upvalue is open; Go has no pointer arithmetic to
	// recover a slice index from Location alone, so the VM records it here
	// when the upvalue is created.
	Slot int
}

func NewObjUpvalue(slot *Value, slotIndex int) *ObjUpvalue {
	u := &ObjUpvalue{Location: slot, Slot: slotIndex}
	u.kind = ObjKindUpvalue
	return u
}

func (u *ObjUpvalue) String() string { return "upvalue" }

// Close moves the pointed-to value into the upvalue's own storage and
// redirects Location there, detaching it from the stack slot it used to
// alias.
func (u *ObjUpvalue) Close() {
	u.Closed = *u.Location
	u.Location = &u.Closed
}

// ObjClosure pairs a compiled Function with the Upvalues it captured at the
// point its OP_CLOSURE instruction ran.
type ObjClosure struct {
	Header
	Function *ObjFunction
	Upvalues []*ObjUpvalue
}

func NewObjClosure(fn *ObjFunction) *ObjClosure {
	c := &ObjClosure{
		Function: fn,
		Upvalues: make([]*ObjUpvalue, fn.UpvalueCount),
	}
	c.kind = ObjKindClosure
	return c
}

func (c *ObjClosure) String() string { return c.Function.String() }
