// Package backend defines the small IR-backend capability spec.md §9
// calls for: "hide the backend behind a small capability trait (build
// types, build functions, get function pointer, add pass) so AOT and
// JIT share the translator verbatim." Nothing in this package performs
// optimisation or codegen itself — spec.md §1 places the backend IR
// library itself out of scope, referenced only by interface.
//
// Grounded on the teacher's vm.go frame/interpreter loop
// (_examples/daimatz-gojvm/pkg/vm/vm.go), whose switch-based opcode
// execution plays the role a real backend's instruction builder would
// play; this package generalises that into the builder API
// pkg/translator drives instead of interpreting directly, the way
// tetratelabs/wazero's internal/wasm compiler hides its own backend
// behind a narrow builder interface (grounded on the pack's ymm135-go
// retrieval, whose go.mod pulls in the wazero-adjacent x86/arch tooling
// this module also uses in pkg/isolate).
package backend

import "context"

// Type is an opaque backend type handle (integer/float/pointer/struct/
// array), per spec.md §6's "The core relies only on: integer/float/
// pointer/struct/array types, basic blocks, PHI nodes, ...".
type Type interface {
	String() string
}

// Value is an opaque SSA value handle — the result of any IR
// instruction, or a function/basic-block argument.
type Value interface {
	Type() Type
}

// Block is an opaque basic block handle.
type Block interface {
	Name() string
}

// TypeRegistry builds the fixed set of backend types the core needs.
type TypeRegistry interface {
	Int(bits int) Type
	Float32() Type
	Float64() Type
	Pointer(elem Type) Type
	Struct(name string, fields []Type) Type
	Array(elem Type, count int) Type
	Void() Type
}

// FunctionBuilder assembles one function's IR body. Every method that
// emits an instruction returns the produced Value (or nil for
// control-flow terminators and stores).
type FunctionBuilder interface {
	Name() string
	Param(i int) Value

	NewBlock(name string) Block
	SetInsertPoint(b Block)

	// Arithmetic / comparison.
	Add(a, b Value) Value
	Sub(a, b Value) Value
	Mul(a, b Value) Value
	SDiv(a, b Value) Value
	SRem(a, b Value) Value
	ICmp(pred string, a, b Value) Value // pred: "eq","ne","slt","sle","sgt","sge"
	FCmp(pred string, a, b Value) Value
	Select(cond, ifTrue, ifFalse Value) Value

	// Memory.
	Load(ptr Value, ty Type) Value
	Store(ptr, val Value)
	GEP(base Value, offsets ...int64) Value // fixed-offset pointer arithmetic only, matching the core's "no dynamic field lookup" model

	// Control flow.
	Br(target Block)
	CondBr(cond Value, ifTrue, ifFalse Block)
	Phi(ty Type, incoming map[Block]Value) Value
	Ret(v Value)
	RetVoid()

	// Calls.
	Call(target Value, args []Value) Value
	CallSymbol(symbol string, args []Value) Value // named runtime intrinsic, see pkg/intrinsics
	Invoke(target Value, args []Value, normal, unwind Block) Value

	// Atomics and GC.
	AtomicCAS(ptr, expected, new Value) Value // sequentially-consistent, per spec.md §5's thin-lock requirement
	DeclareGCRoot(slot Value)

	// Constants.
	ConstInt(ty Type, v int64) Value
	ConstFloat(ty Type, v float64) Value
	Null(ty Type) Value
}

// Module is a unit of compilation: one translation unit's worth of
// functions and global constants, matching the AOT mode's "each
// resolvable entity ... is materialised as a typed constant in a
// translation unit" (spec.md §4.5).
type Module interface {
	TypeRegistry
	DefineFunction(name string, paramTypes []Type, retType Type) FunctionBuilder
	DeclareFunction(name string, paramTypes []Type, retType Type) Value
	DefineConstant(name string, ty Type, init []byte) Value
	AddPass(name string)
}

// ExecutionEngine is the JIT half of the capability: it takes finished
// modules and returns machine addresses, supporting the lazy
// materialisation spec.md §4.5 describes ("function bodies are left as
// declarations until first invocation").
type ExecutionEngine interface {
	// Materialise compiles fn (already built against a Module) and
	// returns its callable machine address. Blocking: the caller (the
	// JIT's materialiser hook) holds the single global IR lock spec.md
	// §5 requires around any IR mutation.
	Materialise(ctx context.Context, fn FunctionBuilder) (uintptr, error)

	// PatchSlot atomically overwrites a single VT/IC slot word with a
	// newly materialised address, the "single word write, atomic on all
	// supported architectures" spec.md §5 calls for.
	PatchSlot(slot *uintptr, addr uintptr)
}

// Factory returns the process's single backend Module, together with its
// ExecutionEngine. A real build wires this to the concrete backend the
// host project depends on; here it is the seam pkg/compiler drives
// through, per spec.md §9.
type Factory func() (Module, ExecutionEngine)
