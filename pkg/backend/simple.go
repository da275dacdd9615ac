package backend

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Simple is a minimal interpreting stand-in for a real backend module +
// execution engine. spec.md §1 places the backend IR library itself out
// of scope ("referenced only by interface"); Simple exists only so
// pkg/translator and pkg/compiler have something to drive in tests,
// grounded on the teacher's own choice to interpret bytecode directly
// (_examples/daimatz-gojvm/pkg/vm/vm.go) rather than compile it — Simple
// interprets IR instructions the same way the teacher interprets
// bytecode, one step removed.
type Simple struct {
	mu      sync.Mutex
	funcs   map[string]*simpleFunc
	symbols map[string]func([]int64) int64
}

// NewSimple constructs an empty Simple module/engine pair.
func NewSimple() *Simple {
	return &Simple{
		funcs:   make(map[string]*simpleFunc),
		symbols: make(map[string]func([]int64) int64),
	}
}

// RegisterSymbol wires a runtime intrinsic (pkg/intrinsics.Symbol) to a
// Go closure, standing in for what would be a linked native runtime
// support function in a real backend.
func (s *Simple) RegisterSymbol(name string, fn func(args []int64) int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.symbols[name] = fn
}

type simpleType struct{ name string }

func (t *simpleType) String() string { return t.name }

type simpleValue struct {
	ty  Type
	lit int64
	ref bool
}

func (v *simpleValue) Type() Type { return v.ty }

type simpleBlock struct {
	name  string
	insts []func(f *simpleFunc) (ret *int64, brTo *simpleBlock)
}

func (b *simpleBlock) Name() string { return b.name }

type simpleFunc struct {
	owner      *Simple
	name       string
	paramTypes []Type
	retType    Type
	blocks     []*simpleBlock
	entry      *simpleBlock
	insert     *simpleBlock
	locals     map[*simpleValue]int64
}

func (f *simpleFunc) Name() string { return f.name }

func (f *simpleFunc) Param(i int) Value {
	return &simpleValue{ty: f.paramTypes[i], ref: true}
}

func (f *simpleFunc) NewBlock(name string) Block {
	b := &simpleBlock{name: name}
	f.blocks = append(f.blocks, b)
	if f.entry == nil {
		f.entry = b
	}
	return b
}

func (f *simpleFunc) SetInsertPoint(b Block) { f.insert = b.(*simpleBlock) }

func (f *simpleFunc) emit(fn func(f *simpleFunc) (*int64, *simpleBlock)) {
	f.insert.insts = append(f.insert.insts, fn)
}

func binOp(f *simpleFunc, a, b Value, op func(x, y int64) int64) Value {
	av, bv := a.(*simpleValue), b.(*simpleValue)
	out := &simpleValue{ty: av.ty}
	f.emit(func(f *simpleFunc) (*int64, *simpleBlock) {
		r := op(f.locals[av], f.locals[bv])
		f.locals[out] = r
		return nil, nil
	})
	return out
}

func (f *simpleFunc) Add(a, b Value) Value { return binOp(f, a, b, func(x, y int64) int64 { return x + y }) }
func (f *simpleFunc) Sub(a, b Value) Value { return binOp(f, a, b, func(x, y int64) int64 { return x - y }) }
func (f *simpleFunc) Mul(a, b Value) Value { return binOp(f, a, b, func(x, y int64) int64 { return x * y }) }
func (f *simpleFunc) SDiv(a, b Value) Value {
	return binOp(f, a, b, func(x, y int64) int64 { return x / y })
}
func (f *simpleFunc) SRem(a, b Value) Value {
	return binOp(f, a, b, func(x, y int64) int64 { return x % y })
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func (f *simpleFunc) ICmp(pred string, a, b Value) Value {
	return binOp(f, a, b, func(x, y int64) int64 {
		switch pred {
		case "eq":
			return boolInt(x == y)
		case "ne":
			return boolInt(x != y)
		case "slt":
			return boolInt(x < y)
		case "sle":
			return boolInt(x <= y)
		case "sgt":
			return boolInt(x > y)
		case "sge":
			return boolInt(x >= y)
		}
		return 0
	})
}

func (f *simpleFunc) FCmp(pred string, a, b Value) Value { return f.ICmp(pred, a, b) }

func (f *simpleFunc) Select(cond, ifTrue, ifFalse Value) Value {
	cv, tv, fv := cond.(*simpleValue), ifTrue.(*simpleValue), ifFalse.(*simpleValue)
	out := &simpleValue{ty: tv.ty}
	f.emit(func(f *simpleFunc) (*int64, *simpleBlock) {
		if f.locals[cv] != 0 {
			f.locals[out] = f.locals[tv]
		} else {
			f.locals[out] = f.locals[fv]
		}
		return nil, nil
	})
	return out
}

func (f *simpleFunc) Load(ptr Value, ty Type) Value {
	pv := ptr.(*simpleValue)
	out := &simpleValue{ty: ty}
	f.emit(func(f *simpleFunc) (*int64, *simpleBlock) {
		f.locals[out] = f.locals[pv]
		return nil, nil
	})
	return out
}

func (f *simpleFunc) Store(ptr, val Value) {
	pv, vv := ptr.(*simpleValue), val.(*simpleValue)
	f.emit(func(f *simpleFunc) (*int64, *simpleBlock) {
		f.locals[pv] = f.locals[vv]
		return nil, nil
	})
}

func (f *simpleFunc) GEP(base Value, offsets ...int64) Value {
	bv := base.(*simpleValue)
	out := &simpleValue{ty: bv.ty, ref: true}
	var sum int64
	for _, o := range offsets {
		sum += o
	}
	f.emit(func(f *simpleFunc) (*int64, *simpleBlock) {
		f.locals[out] = f.locals[bv] + sum
		return nil, nil
	})
	return out
}

func (f *simpleFunc) Br(target Block) {
	tb := target.(*simpleBlock)
	f.emit(func(f *simpleFunc) (*int64, *simpleBlock) { return nil, tb })
}

func (f *simpleFunc) CondBr(cond Value, ifTrue, ifFalse Block) {
	cv := cond.(*simpleValue)
	tb, fb := ifTrue.(*simpleBlock), ifFalse.(*simpleBlock)
	f.emit(func(f *simpleFunc) (*int64, *simpleBlock) {
		if f.locals[cv] != 0 {
			return nil, tb
		}
		return nil, fb
	})
}

func (f *simpleFunc) Phi(ty Type, incoming map[Block]Value) Value {
	out := &simpleValue{ty: ty}
	// The simple interpreter has no predecessor tracking; it resolves a
	// PHI to an incoming value that has been computed so far. When more
	// than one has (as in a loop), which one is taken follows map
	// iteration order, not the edge actually taken. This is adequate for
	// straight-line and single-diamond translator tests, not for
	// arbitrary CFGs — a real backend's SSA construction does the full job.
	f.emit(func(f *simpleFunc) (*int64, *simpleBlock) {
		for _, v := range incoming {
			sv := v.(*simpleValue)
			if r, ok := f.locals[sv]; ok {
				f.locals[out] = r
			}
		}
		return nil, nil
	})
	return out
}

func (f *simpleFunc) Ret(v Value) {
	vv := v.(*simpleValue)
	f.emit(func(f *simpleFunc) (*int64, *simpleBlock) {
		r := f.locals[vv]
		return &r, nil
	})
}

func (f *simpleFunc) RetVoid() {
	f.emit(func(f *simpleFunc) (*int64, *simpleBlock) {
		var z int64
		return &z, nil
	})
}

func (f *simpleFunc) Call(target Value, args []Value) Value {
	out := &simpleValue{ty: f.retType}
	f.emit(func(f *simpleFunc) (*int64, *simpleBlock) {
		f.locals[out] = 0
		return nil, nil
	})
	return out
}

func (f *simpleFunc) CallSymbol(symbol string, args []Value) Value {
	out := &simpleValue{}
	argRefs := make([]*simpleValue, len(args))
	for i, a := range args {
		argRefs[i] = a.(*simpleValue)
	}
	f.emit(func(f *simpleFunc) (*int64, *simpleBlock) {
		fn, ok := f.owner.symbols[symbol]
		if !ok {
			return nil, nil
		}
		argVals := make([]int64, len(argRefs))
		for i, a := range argRefs {
			argVals[i] = f.locals[a]
		}
		f.locals[out] = fn(argVals)
		return nil, nil
	})
	return out
}

func (f *simpleFunc) Invoke(target Value, args []Value, normal, unwind Block) Value {
	v := f.Call(target, args)
	f.Br(normal)
	return v
}

func (f *simpleFunc) AtomicCAS(ptr, expected, new Value) Value {
	pv, ev, nv := ptr.(*simpleValue), expected.(*simpleValue), new.(*simpleValue)
	out := &simpleValue{}
	f.emit(func(f *simpleFunc) (*int64, *simpleBlock) {
		if f.locals[pv] == f.locals[ev] {
			f.locals[pv] = f.locals[nv]
			f.locals[out] = 1
		} else {
			f.locals[out] = 0
		}
		return nil, nil
	})
	return out
}

func (f *simpleFunc) DeclareGCRoot(slot Value) {}

func (f *simpleFunc) ConstInt(ty Type, v int64) Value {
	out := &simpleValue{ty: ty}
	f.emit(func(f *simpleFunc) (*int64, *simpleBlock) {
		f.locals[out] = v
		return nil, nil
	})
	return out
}

func (f *simpleFunc) ConstFloat(ty Type, v float64) Value { return f.ConstInt(ty, int64(v)) }
func (f *simpleFunc) Null(ty Type) Value                  { return f.ConstInt(ty, 0) }

// Module capability.
func (s *Simple) Int(bits int) Type            { return &simpleType{name: fmt.Sprintf("i%d", bits)} }
func (s *Simple) Float32() Type                { return &simpleType{name: "f32"} }
func (s *Simple) Float64() Type                { return &simpleType{name: "f64"} }
func (s *Simple) Pointer(elem Type) Type       { return &simpleType{name: "*" + elem.String()} }
func (s *Simple) Void() Type                   { return &simpleType{name: "void"} }
func (s *Simple) Struct(name string, fields []Type) Type {
	return &simpleType{name: "struct." + name}
}
func (s *Simple) Array(elem Type, count int) Type {
	return &simpleType{name: fmt.Sprintf("[%d x %s]", count, elem.String())}
}

func (s *Simple) DefineFunction(name string, paramTypes []Type, retType Type) FunctionBuilder {
	f := &simpleFunc{owner: s, name: name, paramTypes: paramTypes, retType: retType, locals: make(map[*simpleValue]int64)}
	s.mu.Lock()
	s.funcs[name] = f
	s.mu.Unlock()
	return f
}

func (s *Simple) DeclareFunction(name string, paramTypes []Type, retType Type) Value {
	return &simpleValue{ty: retType}
}

func (s *Simple) DefineConstant(name string, ty Type, init []byte) Value {
	return &simpleValue{ty: ty}
}

func (s *Simple) AddPass(name string) {}

// Materialise "compiles" fn by running its blocks from the entry block
// until a Ret produces a value, interpreting each emitted instruction.
func (s *Simple) Materialise(ctx context.Context, fn FunctionBuilder) (uintptr, error) {
	f, ok := fn.(*simpleFunc)
	if !ok {
		return 0, fmt.Errorf("backend: not a Simple function")
	}
	block := f.entry
	for block != nil {
		var next *simpleBlock
		for _, inst := range block.insts {
			ret, br := inst(f)
			if ret != nil {
				return uintptr(*ret), nil
			}
			if br != nil {
				next = br
			}
		}
		block = next
	}
	return 0, nil
}

func (s *Simple) PatchSlot(slot *uintptr, addr uintptr) {
	atomic.StoreUintptr(slot, addr)
}

var _ Module = (*Simple)(nil)
var _ ExecutionEngine = (*Simple)(nil)
var _ FunctionBuilder = (*simpleFunc)(nil)
