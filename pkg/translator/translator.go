// Package translator implements spec.md §4.3's BytecodeTranslator:
// a single-pass stack-to-SSA lowering with a pre-pass that discovers
// basic-block leaders from branch targets and the exception table.
//
// Grounded on the teacher's execution switch
// (_examples/daimatz-gojvm/pkg/vm/instructions.go,
// _examples/daimatz-gojvm/pkg/vm/vm.go's executeInvokevirtual /
// executeInvokeinterface / executeGetstatic), kept as the semantics
// reference for what each opcode must compute; generalised here from
// "interpret now" into "emit backend IR now, to be compiled or
// materialised later" against the pkg/backend capability.
package translator

import (
	"fmt"

	"github.com/vmkit-go/vmkit/pkg/backend"
	"github.com/vmkit-go/vmkit/pkg/classmodel"
	"github.com/vmkit-go/vmkit/pkg/classreader"
	"github.com/vmkit-go/vmkit/pkg/dispatch"
	"github.com/vmkit-go/vmkit/pkg/intrinsics"
	"github.com/vmkit-go/vmkit/pkg/signature"
	"github.com/vmkit-go/vmkit/pkg/typemodel"
)

// inlineThreshold is the "byte length below a small threshold" bound of
// spec.md §4.3's inlining policy.
const inlineThreshold = 32

// Translator lowers one method's bytecode at a time into backend IR. It
// performs no inlining: Translate only records Method.Inlinable, and the
// inlining set is never filled. It is not safe for concurrent use (its
// envelope maps are unguarded); callers serialise translation of a
// single compile unit, matching the compiler module's single global IR
// lock (spec.md §5).
type Translator struct {
	mod          backend.Module
	envelopes    map[string]*dispatch.Envelope  // interface call-site key -> envelope, spec.md §4.4
	envelopeIdx  map[*dispatch.Envelope]int64   // envelope -> stable constant id, threaded through invokeinterface IR
	envelopeList []*dispatch.Envelope           // id -> envelope, the inverse of envelopeIdx
	inlining     map[string]bool                // inlining cycle-guard set; never filled, as no inlining is performed
}

// New creates a Translator emitting IR into mod.
func New(mod backend.Module) *Translator {
	return &Translator{
		mod:         mod,
		envelopes:   make(map[string]*dispatch.Envelope),
		envelopeIdx: make(map[*dispatch.Envelope]int64),
		inlining:    make(map[string]bool),
	}
}

// Envelope returns the inline-cache envelope a translated invokeinterface
// call site named as the constant id it passed to
// SymVirtualLookupFast/SymVirtualLookup, so whatever wires those symbols
// to pkg/runtime.Support can recover the *dispatch.Envelope the id names.
func (t *Translator) Envelope(id int64) *dispatch.Envelope {
	if id < 0 || id >= int64(len(t.envelopeList)) {
		return nil
	}
	return t.envelopeList[id]
}

// block is the translator's per-leader-offset bookkeeping record:
// "newBlock, exceptionBlock, line number, and (optionally) a
// materialised exception value" (spec.md §4.3).
type block struct {
	offset        int
	ir            backend.Block
	exceptionIR   backend.Block // redirected handler test block, if this offset lies in a try range
}

// frame carries the translator's per-method mutable lowering state: the
// operand stack and the local-variable slots, "represented as
// stack-allocated cells; the optimiser later promotes them" (spec.md
// §4.3).
type frame struct {
	fn     backend.FunctionBuilder
	reg    backend.TypeRegistry
	stack  []backend.Value
	locals []backend.Value
}

func (f *frame) push(v backend.Value) { f.stack = append(f.stack, v) }
func (f *frame) pop() backend.Value {
	v := f.stack[len(f.stack)-1]
	f.stack = f.stack[:len(f.stack)-1]
	return v
}

// Translate lowers m's bytecode into a backend function named fnName,
// returning the built FunctionBuilder. The class c owns m and supplies
// the constant pool invoke/field instructions resolve against.
func (t *Translator) Translate(c *classmodel.Class, m *classmodel.Method, fnName string) (backend.FunctionBuilder, error) {
	if m.IsAbstract() || m.IsNative() {
		return nil, fmt.Errorf("translator: %s.%s%s has no bytecode to translate", c.Name, m.Name, m.Descriptor)
	}

	m.Inlinable = len(m.Code) > 0 && len(m.Code) < inlineThreshold

	kind := signature.KindStatic
	if !m.IsStatic() {
		kind = signature.KindVirtual
	}
	ft, err := signature.Lower(t.mod, m.Sig, kind)
	if err != nil {
		return nil, fmt.Errorf("translator: lowering signature of %s.%s%s: %w", c.Name, m.Name, m.Descriptor, err)
	}

	fn := t.mod.DefineFunction(fnName, ft.Params, ft.Return)

	leaders, handlerOf := t.prePass(m)
	blocks := make(map[int]*block, len(leaders))
	for _, off := range leaders {
		label := fmt.Sprintf("L%d", off)
		blocks[off] = &block{offset: off, ir: fn.NewBlock(label)}
	}

	fr := &frame{fn: fn, reg: t.mod, locals: make([]backend.Value, localSlotCount(m))}

	// Safepoint poll at function entry (spec.md §5: "explicit safepoint
	// polls inserted at loop back-edges and function entries").
	fn.SetInsertPoint(blocks[0].ir)
	fn.CallSymbol(string(intrinsics.SymSafepointPoll), nil)

	offsets := leaders
	for i, off := range offsets {
		end := len(m.Code)
		if i+1 < len(offsets) {
			end = offsets[i+1]
		}
		b := blocks[off]
		fn.SetInsertPoint(b.ir)
		if h, ok := handlerOf[off]; ok {
			b.exceptionIR = blocks[h].ir
		}
		if err := t.lowerBlock(fn, fr, c, m, m.Code[off:end], off, blocks); err != nil {
			return nil, fmt.Errorf("translator: lowering %s.%s%s at pc %d: %w", c.Name, m.Name, m.Descriptor, off, err)
		}
	}

	return fn, nil
}

// localSlotCount is a conservative over-approximation: one slot per
// declared parameter (plus receiver) grown as needed by istore/astore
// indices actually seen. Kept simple because the translator does not
// need exact local-variable-table fidelity, only a stable slot array.
func localSlotCount(m *classmodel.Method) int {
	n := len(m.Sig.Params) + 1
	if n < 8 {
		n = 8
	}
	for off := 0; off < len(m.Code); off += 1 + operandLen(Opcode(m.Code[off])) {
		switch Opcode(m.Code[off]) {
		case OpIstore, OpAstore:
			if off+1 < len(m.Code) && int(m.Code[off+1]) >= n {
				n = int(m.Code[off+1]) + 1
			}
		}
	}
	return n
}

// prePass scans the method's code to find every branch target and every
// exception-handler entry, per spec.md §4.3: "scan bytes to find every
// branch target and every exception-handler entry, creating blocks at
// those offsets." Returns the sorted leader offsets and, for every
// offset that falls inside a try-range, the handler entry offset its
// exceptionBlock should be redirected to.
func (t *Translator) prePass(m *classmodel.Method) ([]int, map[int]int) {
	leaderSet := map[int]bool{0: true}
	code := m.Code

	for off := 0; off < len(code); {
		op := Opcode(code[off])
		opLen := operandLen(op)
		if isBranch(op) && off+2 < len(code) {
			rel := int16(uint16(code[off+1])<<8 | uint16(code[off+2]))
			target := off + int(rel)
			leaderSet[target] = true
			if off+1+opLen < len(code) {
				leaderSet[off+1+opLen] = true // fall-through after a conditional branch
			}
		}
		off += 1 + opLen
	}

	handlerOf := make(map[int]int)
	for _, h := range m.ExceptionHandlers {
		leaderSet[int(h.HandlerPC)] = true
		leaderSet[int(h.StartPC)] = true
		for off := int(h.StartPC); off < int(h.EndPC); off++ {
			if _, already := handlerOf[off]; !already {
				handlerOf[off] = int(h.HandlerPC)
			}
		}
	}

	leaders := make([]int, 0, len(leaderSet))
	for off := range leaderSet {
		leaders = append(leaders, off)
	}
	// Insertion sort: the leader set is small (one block per branch
	// target/handler), and a dependency-free sort keeps this package off
	// sort.Slice's interface-boxing cost on a hot translation path.
	for i := 1; i < len(leaders); i++ {
		for j := i; j > 0 && leaders[j-1] > leaders[j]; j-- {
			leaders[j-1], leaders[j] = leaders[j], leaders[j-1]
		}
	}
	return leaders, handlerOf
}

// lowerBlock lowers the instructions of one basic block (code[0:len]),
// starting at method offset base.
func (t *Translator) lowerBlock(fn backend.FunctionBuilder, fr *frame, c *classmodel.Class, m *classmodel.Method, code []byte, base int, blocks map[int]*block) error {
	reg := t.mod
	i32 := reg.Int(32)

	for pc := 0; pc < len(code); {
		op := Opcode(code[pc])
		next := pc + 1 + operandLen(op)

		switch op {
		case OpIconstM1, OpIconst0, OpIconst1, OpIconst2, OpIconst3, OpIconst4, OpIconst5:
			fr.push(fn.ConstInt(i32, int64(op)-int64(OpIconst0)))
		case OpLconst0, OpLconst1:
			fr.push(fn.ConstInt(reg.Int(64), int64(op)-int64(OpLconst0)))
		case OpFconst0, OpDconst0:
			fr.push(fn.ConstFloat(reg.Float64(), 0))
		case OpAconstNull:
			fr.push(fn.Null(reg.Pointer(reg.Int(8))))
		case OpBipush:
			fr.push(fn.ConstInt(i32, int64(int8(code[pc+1]))))
		case OpSipush:
			v := int16(uint16(code[pc+1])<<8 | uint16(code[pc+2]))
			fr.push(fn.ConstInt(i32, int64(v)))

		case OpIload, OpLload, OpFload, OpDload, OpAload:
			fr.push(fr.locals[code[pc+1]])
		case OpIload0, OpIload1, OpIload2, OpIload3:
			fr.push(fr.locals[int(op)-int(OpIload0)])
		case OpAload0, OpAload1, OpAload2, OpAload3:
			fr.push(fr.locals[int(op)-int(OpAload0)])
		case OpIstore, OpAstore:
			fr.locals[code[pc+1]] = fr.pop()
		case OpIstore0, OpIstore1, OpIstore2, OpIstore3:
			fr.locals[int(op)-int(OpIstore0)] = fr.pop()
		case OpAstore0, OpAstore1, OpAstore2, OpAstore3:
			fr.locals[int(op)-int(OpAstore0)] = fr.pop()

		case OpPop:
			fr.pop()
		case OpDup:
			v := fr.pop()
			fr.push(v)
			fr.push(v)
		case OpSwap:
			b, a := fr.pop(), fr.pop()
			fr.push(b)
			fr.push(a)

		case OpIadd, OpLadd, OpFadd, OpDadd:
			b, a := fr.pop(), fr.pop()
			fr.push(fn.Add(a, b))
		case OpIsub:
			b, a := fr.pop(), fr.pop()
			fr.push(fn.Sub(a, b))
		case OpImul:
			b, a := fr.pop(), fr.pop()
			fr.push(fn.Mul(a, b))
		case OpIdiv:
			b, a := fr.pop(), fr.pop()
			t.checkDivisor(fn, b)
			fr.push(fn.SDiv(a, b))
		case OpIrem:
			b, a := fr.pop(), fr.pop()
			t.checkDivisor(fn, b)
			fr.push(fn.SRem(a, b))
		case OpIneg:
			a := fr.pop()
			fr.push(fn.Sub(fn.ConstInt(i32, 0), a))

		case OpFcmpl, OpFcmpg, OpDcmpl, OpDcmpg:
			// Sequenced selects giving -1/0/+1 (NaN tie-break folded into
			// the g/l variants is left to the backend's FCmp semantics;
			// here both reduce to the same three-way compare, matching
			// spec.md §4.3's "sequenced selects" description).
			b, a := fr.pop(), fr.pop()
			lt := fn.FCmp("slt", a, b)
			gt := fn.FCmp("sgt", a, b)
			negOne := fn.ConstInt(i32, -1)
			zero := fn.ConstInt(i32, 0)
			one := fn.ConstInt(i32, 1)
			gtOrEq := fn.Select(gt, one, zero)
			fr.push(fn.Select(lt, negOne, gtOrEq))

		case OpIfeq, OpIfne, OpIflt, OpIfge, OpIfgt, OpIfle:
			a := fr.pop()
			zero := fn.ConstInt(i32, 0)
			cond := fn.ICmp(condPred(op), a, zero)
			t.emitCondBranch(fn, cond, base+pc, code, pc, blocks)
			return nil
		case OpIfIcmpeq, OpIfIcmpne, OpIfIcmplt, OpIfIcmpge, OpIfIcmpgt, OpIfIcmple:
			b, a := fr.pop(), fr.pop()
			cond := fn.ICmp(condPredICmp(op), a, b)
			t.emitCondBranch(fn, cond, base+pc, code, pc, blocks)
			return nil
		case OpGoto:
			rel := int16(uint16(code[pc+1])<<8 | uint16(code[pc+2]))
			target := base + pc + int(rel)
			t.pollBackEdge(fn, target, base+pc)
			fn.Br(blocks[target].ir)
			return nil

		case OpArraylength:
			arr := fr.pop()
			t.checkNull(fn, arr)
			lenPtr := fn.GEP(arr, intrinsics.ArrayHeaderLengthOffset)
			fr.push(fn.Load(lenPtr, i32))
		case OpIaload, OpAaload:
			idx, arr := fr.pop(), fr.pop()
			t.checkNull(fn, arr)
			t.checkBounds(fn, arr, idx)
			elemTy := i32
			if op == OpAaload {
				elemTy = reg.Pointer(reg.Int(8))
			}
			elem := fn.GEP(arr, intrinsics.ArrayHeaderElementsStart)
			fr.push(fn.Load(elem, elemTy))
		case OpIastore, OpAastore:
			val, idx, arr := fr.pop(), fr.pop(), fr.pop()
			t.checkNull(fn, arr)
			t.checkBounds(fn, arr, idx)
			elem := fn.GEP(arr, intrinsics.ArrayHeaderElementsStart)
			fn.Store(elem, val)

		case OpGetstatic, OpPutstatic, OpGetfield, OpPutfield:
			if err := t.lowerFieldAccess(fn, fr, c, op, code, pc); err != nil {
				return err
			}

		case OpInvokevirtual, OpInvokespecial, OpInvokestatic, OpInvokeinterface:
			if err := t.lowerInvoke(fn, fr, c, op, code, pc); err != nil {
				return err
			}

		case OpNew:
			idx := uint16(code[pc+1])<<8 | uint16(code[pc+2])
			ref, err := classreader.GetClassName(c.ConstantPool, idx)
			if err != nil {
				return fmt.Errorf("new: %w", err)
			}
			target, err := c.Loader.Resolve(ref)
			if err != nil {
				return fmt.Errorf("new %s: %w", ref, err)
			}
			fn.CallSymbol(string(intrinsics.SymForceInitialisationCheck), nil)
			size := fn.ConstInt(reg.Int(64), int64(target.InstanceSize))
			vt := fn.Null(reg.Pointer(reg.Int(8))) // VT pointer materialisation is pkg/compiler's job (AOT constant or JIT lazy slot)
			obj := fn.CallSymbol(string(intrinsics.SymAllocate), []backend.Value{size, vt})
			fr.push(obj)

		case OpAthrow:
			obj := fr.pop()
			fn.CallSymbol(string(intrinsics.SymThrowException), []backend.Value{obj})
			fn.RetVoid() // never reached at runtime; throw_exception never returns, per spec.md §4.3
			return nil

		case OpMonitorenter:
			obj := fr.pop()
			fn.CallSymbol(string(intrinsics.SymMonitorEnter), []backend.Value{obj})
		case OpMonitorexit:
			obj := fr.pop()
			fn.CallSymbol(string(intrinsics.SymMonitorExit), []backend.Value{obj})

		case OpCheckcast, OpInstanceof:
			// The target class name is read from the constant pool but not
			// resolved, and no subtype test is emitted: checkcast calls the
			// class-cast intrinsic with the object only, and instanceof
			// pushes that call's result.
			idx := uint16(code[pc+1])<<8 | uint16(code[pc+2])
			_, err := classreader.GetClassName(c.ConstantPool, idx)
			if err != nil {
				return fmt.Errorf("checkcast/instanceof: %w", err)
			}
			if op == OpCheckcast {
				obj := fr.pop()
				fn.CallSymbol(string(intrinsics.SymClassCast), []backend.Value{obj})
				fr.push(obj)
			} else {
				obj := fr.pop()
				fr.push(fn.CallSymbol(string(intrinsics.SymClassCast), []backend.Value{obj}))
			}

		case OpIreturn, OpAreturn:
			fn.Ret(fr.pop())
			return nil
		case OpReturn:
			fn.RetVoid()
			return nil

		default:
			return fmt.Errorf("unsupported opcode 0x%02X at pc %d", byte(op), base+pc)
		}

		pc = next
	}
	return nil
}

func condPred(op Opcode) string {
	switch op {
	case OpIfeq:
		return "eq"
	case OpIfne:
		return "ne"
	case OpIflt:
		return "slt"
	case OpIfge:
		return "sge"
	case OpIfgt:
		return "sgt"
	case OpIfle:
		return "sle"
	}
	return "eq"
}

func condPredICmp(op Opcode) string {
	switch op {
	case OpIfIcmpeq:
		return "eq"
	case OpIfIcmpne:
		return "ne"
	case OpIfIcmplt:
		return "slt"
	case OpIfIcmpge:
		return "sge"
	case OpIfIcmpgt:
		return "sgt"
	case OpIfIcmple:
		return "sle"
	}
	return "eq"
}

func (t *Translator) emitCondBranch(fn backend.FunctionBuilder, cond backend.Value, absPC int, code []byte, pc int, blocks map[int]*block) {
	op := Opcode(code[pc])
	rel := int16(uint16(code[pc+1])<<8 | uint16(code[pc+2]))
	target := absPC + int(rel)
	fallThrough := absPC + 1 + operandLen(op)
	t.pollBackEdge(fn, target, absPC)
	fn.CondBr(cond, blocks[target].ir, blocks[fallThrough].ir)
}

// pollBackEdge emits a safepoint poll before a branch whose target does
// not advance the PC, per spec.md §5's "loop back-edges" half of the
// safepoint-poll requirement.
func (t *Translator) pollBackEdge(fn backend.FunctionBuilder, target, absPC int) {
	if target <= absPC {
		fn.CallSymbol(string(intrinsics.SymSafepointPoll), nil)
	}
}

// checkNull/checkBounds/checkDivisor emit the null/bounds/arithmetic
// guard calls spec.md §4.3 requires ("each emits a null-check and a
// bounds-check unless exceptions are globally disabled").
func (t *Translator) checkNull(fn backend.FunctionBuilder, ref backend.Value) {
	isNull := fn.ICmp("eq", ref, fn.Null(ref.Type()))
	fn.CallSymbol(string(intrinsics.SymNullPointer), []backend.Value{isNull})
}

func (t *Translator) checkBounds(fn backend.FunctionBuilder, arr, idx backend.Value) {
	fn.CallSymbol(string(intrinsics.SymIndexOutOfBounds), []backend.Value{arr, idx})
}

func (t *Translator) checkDivisor(fn backend.FunctionBuilder, divisor backend.Value) {
	isZero := fn.ICmp("eq", divisor, fn.ConstInt(divisor.Type(), 0))
	fn.CallSymbol(string(intrinsics.SymArithmetic), []backend.Value{isZero})
}

func (t *Translator) lowerFieldAccess(fn backend.FunctionBuilder, fr *frame, c *classmodel.Class, op Opcode, code []byte, pc int) error {
	idx := uint16(code[pc+1])<<8 | uint16(code[pc+2])
	ref, err := classreader.ResolveFieldref(c.ConstantPool, idx)
	if err != nil {
		return fmt.Errorf("resolving fieldref: %w", err)
	}
	target, err := c.Loader.Resolve(ref.ClassName)
	if err != nil {
		return fmt.Errorf("resolving field owner %s: %w", ref.ClassName, err)
	}
	f, err := classmodel.LookupField(target, ref.MemberName)
	if err != nil {
		return err
	}

	switch op {
	case OpGetstatic:
		fn.CallSymbol(string(intrinsics.SymForceInitialisationCheck), nil)
		ptr := fn.GEP(fn.Null(t.mod.Pointer(t.mod.Int(8))), int64(f.Offset))
		fr.push(fn.Load(ptr, signature.NativeType(t.mod, f.Type)))
	case OpPutstatic:
		val := fr.pop()
		fn.CallSymbol(string(intrinsics.SymForceInitialisationCheck), nil)
		ptr := fn.GEP(fn.Null(t.mod.Pointer(t.mod.Int(8))), int64(f.Offset))
		fn.Store(ptr, val)
	case OpGetfield:
		obj := fr.pop()
		t.checkNull(fn, obj)
		ptr := fn.GEP(obj, int64(f.Offset))
		fr.push(fn.Load(ptr, signature.NativeType(t.mod, f.Type)))
	case OpPutfield:
		val, obj := fr.pop(), fr.pop()
		t.checkNull(fn, obj)
		ptr := fn.GEP(obj, int64(f.Offset))
		fn.Store(ptr, val)
	}
	return nil
}

// lowerInvoke implements spec.md §4.3's four invoke lowerings.
func (t *Translator) lowerInvoke(fn backend.FunctionBuilder, fr *frame, c *classmodel.Class, op Opcode, code []byte, pc int) error {
	idx := uint16(code[pc+1])<<8 | uint16(code[pc+2])

	var ref *classreader.MemberRef
	var err error
	if op == OpInvokeinterface {
		ref, err = classreader.ResolveInterfaceMethodref(c.ConstantPool, idx)
	} else {
		ref, err = classreader.ResolveMethodref(c.ConstantPool, idx)
	}
	if err != nil {
		return fmt.Errorf("resolving methodref: %w", err)
	}

	sig, err := typemodel.ParseDescriptor(ref.Descriptor, func(n string) (typemodel.ClassRefResolver, error) {
		return c.Loader.RefFor(n), nil
	})
	if err != nil {
		return fmt.Errorf("parsing invoke descriptor %s: %w", ref.Descriptor, err)
	}

	nargs := len(sig.Params)
	if op != OpInvokestatic {
		nargs++ // receiver
	}
	args := make([]backend.Value, nargs)
	for i := nargs - 1; i >= 0; i-- {
		args[i] = fr.pop()
	}

	switch op {
	case OpInvokevirtual:
		// "load VT through receiver's header, load the function pointer
		// at the method's VT offset" (spec.md §4.3). The VT offset is
		// only known once the target class is resolved; emit the
		// indirect load through classmodel.LookupMethod's VTOffset.
		target, err := c.Loader.Resolve(ref.ClassName)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", ref.ClassName, err)
		}
		m, err := classmodel.LookupMethod(target, ref.MemberName, ref.Descriptor, false)
		if err != nil {
			return err
		}
		t.checkNull(fn, args[0])
		vtPtr := fn.Load(args[0], t.mod.Pointer(t.mod.Int(8)))
		slot := fn.GEP(vtPtr, int64(m.VTOffset*8))
		target2 := fn.Load(slot, t.mod.Pointer(t.mod.Int(8)))
		result := fn.Call(target2, args)
		t.pushResult(fr, fn, sig, result)

	case OpInvokeinterface:
		// DispatchCache inline cache, spec.md §4.4 steps 1-4: probe the
		// envelope's head node lock-free first, and only fall through to
		// the locked resolver on a miss. The envelope is threaded into
		// both calls as a constant call-site id alongside the receiver's
		// class, derived the same way OpInvokevirtual derives its VT
		// pointer through the receiver's header.
		env := t.envelopeFor(ref.ClassName, ref.MemberName, ref.Descriptor)
		envConst := fn.ConstInt(t.mod.Int(64), t.envelopeIdx[env])

		t.checkNull(fn, args[0])
		ptrTy := t.mod.Pointer(t.mod.Int(8))
		vtPtr := fn.Load(args[0], ptrTy)
		receiverClass := fn.Load(fn.GEP(vtPtr, intrinsics.VTSlotClassBackPointer*8), ptrTy)

		cached := fn.CallSymbol(string(intrinsics.SymVirtualLookupFast), []backend.Value{envConst, receiverClass})
		hit := fn.ICmp("ne", cached, fn.Null(ptrTy))

		hitBlock := fn.NewBlock(fmt.Sprintf("ic.hit.%d", pc))
		missBlock := fn.NewBlock(fmt.Sprintf("ic.miss.%d", pc))
		joinBlock := fn.NewBlock(fmt.Sprintf("ic.join.%d", pc))
		fn.CondBr(hit, hitBlock, missBlock)

		fn.SetInsertPoint(hitBlock)
		hitResult := fn.Call(cached, args)
		fn.Br(joinBlock)

		fn.SetInsertPoint(missBlock)
		resolved := fn.CallSymbol(string(intrinsics.SymVirtualLookup), []backend.Value{envConst, receiverClass})
		missResult := fn.Call(resolved, args)
		fn.Br(joinBlock)

		fn.SetInsertPoint(joinBlock)
		result := fn.Phi(ptrTy, map[backend.Block]backend.Value{hitBlock: hitResult, missBlock: missResult})
		t.pushResult(fr, fn, sig, result)

	case OpInvokestatic:
		target, err := c.Loader.Resolve(ref.ClassName)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", ref.ClassName, err)
		}
		if _, err := classmodel.LookupMethod(target, ref.MemberName, ref.Descriptor, true); err != nil {
			return err
		}
		fn.CallSymbol(string(intrinsics.SymForceInitialisationCheck), nil)
		result := fn.CallSymbol(string(intrinsics.SymResolveStaticStub), args)
		t.pushResult(fr, fn, sig, result)

	case OpInvokespecial:
		// "if the target is known-resolved, call it directly; otherwise
		// emit a global resolved-function-pointer slot and a slow path
		// that calls the resolver through the constant pool" (spec.md
		// §4.3). invokespecial targets (<init>, private, super calls) are
		// always statically known once the owning class resolves.
		target, err := c.Loader.Resolve(ref.ClassName)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", ref.ClassName, err)
		}
		if _, err := classmodel.LookupMethod(target, ref.MemberName, ref.Descriptor, false); err != nil {
			return err
		}
		result := fn.CallSymbol(string(intrinsics.SymResolveSpecialStub), args)
		t.pushResult(fr, fn, sig, result)
	}
	return nil
}

func (t *Translator) pushResult(fr *frame, fn backend.FunctionBuilder, sig *typemodel.Signature, result backend.Value) {
	if sig.Return != nil && !(sig.Return.Kind == typemodel.KindPrimitive && sig.Return.Prim == typemodel.Void) {
		fr.push(result)
	}
}

// envelopeFor returns (creating if absent) the DispatchCache envelope
// for an interface call site keyed by (class, name, descriptor). Call
// sites are keyed by symbolic target here because this translator has
// no notion of a stable numeric call-site id; a real JIT keys by
// instruction address instead.
func (t *Translator) envelopeFor(className, name, descriptor string) *dispatch.Envelope {
	key := className + "." + name + descriptor
	if e, ok := t.envelopes[key]; ok {
		return e
	}
	e := dispatch.NewEnvelope(name, descriptor)
	t.envelopes[key] = e
	t.envelopeIdx[e] = int64(len(t.envelopeList))
	t.envelopeList = append(t.envelopeList, e)
	return e
}
