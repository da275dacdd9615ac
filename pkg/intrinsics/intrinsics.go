// Package intrinsics names the runtime-provided symbols and fixed
// struct offsets the translator and compiler emit calls/loads against,
// per spec.md §2's IRIntrinsics component: "named runtime symbols,
// fixed field offsets, opaque struct layout of runtime objects".
//
// Grounded on the teacher's vm.go constants for object-header shape
// (_examples/daimatz-gojvm/pkg/vm/object.go) and on
// _examples/original_source's JavaObject.h / VirtualTable.h field
// ordering (listed in original_source/_INDEX.md), generalised from
// hard-coded Go struct field access into named offset constants a
// backend.FunctionBuilder indexes through, the way compiled code would.
package intrinsics

// Symbol is the name of a runtime entry point the translator lowers a
// call to. Kept as a distinct string type (not bare string) so a
// misspelled call target is a type error at the call site, not a typo
// that silently resolves to the zero value.
type Symbol string

// Runtime support entry points (spec.md §4.6).
const (
	SymAllocate                  Symbol = "vmkit_allocate"
	SymArrayMultiNew             Symbol = "vmkit_array_multi_new"
	SymArrayLength                Symbol = "vmkit_array_length"
	SymMonitorEnter               Symbol = "vmkit_monitor_enter"
	SymMonitorExit                Symbol = "vmkit_monitor_exit"
	SymInitialiseClass            Symbol = "vmkit_initialise_class"
	SymForceInitialisationCheck   Symbol = "vmkit_force_initialisation_check"
	SymThrowException             Symbol = "vmkit_throw_exception"
	SymNullPointer                Symbol = "vmkit_null_pointer"
	SymIndexOutOfBounds           Symbol = "vmkit_index_oob"
	SymClassCast                  Symbol = "vmkit_class_cast"
	SymNegativeArraySize          Symbol = "vmkit_negative_array_size"
	SymArithmetic                 Symbol = "vmkit_arithmetic"
	SymOutOfMemory                Symbol = "vmkit_out_of_memory"
	SymStackOverflow               Symbol = "vmkit_stack_overflow"
	SymResolveVirtualStub          Symbol = "vmkit_resolve_virtual_stub"
	SymResolveSpecialStub          Symbol = "vmkit_resolve_special_stub"
	SymResolveStaticStub           Symbol = "vmkit_resolve_static_stub"
	SymVirtualLookupFast           Symbol = "vmkit_virtual_lookup_fast" // lock-free envelope head-node probe, spec.md §4.4 step 1
	SymVirtualLookup               Symbol = "vmkit_virtual_lookup"      // DispatchCache miss handler, spec.md §4.4 steps 2-4
	SymInitCheck                   Symbol = "vmkit_init_check"      // not emitted; the translator's pre-access checks call SymForceInitialisationCheck
	SymSafepointPoll               Symbol = "vmkit_safepoint_poll"  // cooperative do_yield check, spec.md §5
)

// Math intrinsics recognised by (declaring class, method name) pair and
// lowered directly to backend IR intrinsics instead of a call, per
// spec.md §4.3's "Math intrinsics".
type MathIntrinsic struct {
	Class  string
	Method string
	IRName string
}

var mathIntrinsics = []MathIntrinsic{
	{Class: "java/lang/Math", Method: "sqrt", IRName: "llvm.sqrt.f64"},
	{Class: "java/lang/Math", Method: "sin", IRName: "llvm.sin.f64"},
	{Class: "java/lang/Math", Method: "cos", IRName: "llvm.cos.f64"},
	{Class: "java/lang/Math", Method: "abs", IRName: "llvm.fabs.f64"},
	{Class: "java/lang/Math", Method: "pow", IRName: "llvm.pow.f64"},
	{Class: "java/lang/Math", Method: "min", IRName: "llvm.minnum.f64"},
	{Class: "java/lang/Math", Method: "max", IRName: "llvm.maxnum.f64"},
	{Class: "System", Method: "Sqrt", IRName: "llvm.sqrt.f64"}, // N3's System.Math surface
}

// LookupMathIntrinsic reports whether (class, method) names a recognised
// math intrinsic, per spec.md §4.3.
func LookupMathIntrinsic(class, method string) (MathIntrinsic, bool) {
	for _, mi := range mathIntrinsics {
		if mi.Class == class && mi.Method == method {
			return mi, true
		}
	}
	return MathIntrinsic{}, false
}

// Object header offsets, word-sized (spec.md §3's "Object header — two
// words: VT pointer and a lock word").
const (
	ObjectHeaderVTOffset   = 0
	ObjectHeaderLockOffset = 8
	ObjectHeaderSize       = 16
)

// Array header offsets: object header, then a length word, then inline
// elements (spec.md §3's "Array header — object header + length word +
// inline elements").
const (
	ArrayHeaderLengthOffset  = ObjectHeaderSize
	ArrayHeaderElementsStart = ObjectHeaderSize + 8
)

// Thin-lock word layout (spec.md §3's lock-word encoding; bit ranges
// preserved verbatim from the open question in spec.md §9 about 64-bit
// vs 32-bit target layouts — not re-derived here, only carried).
const (
	LockWordHashBits       = 4
	LockWordGCBits         = 8
	LockWordReservedBits   = LockWordHashBits + LockWordGCBits // 12
	LockWordRecursionShift = LockWordReservedBits
	LockWordRecursionBits  = 8 // bits [12,20)
	LockWordOwnerShift     = LockWordRecursionShift + LockWordRecursionBits
	LockWordFatBit         = uint64(1) << 63
)

// VirtualTable fixed leading slot indices, in the order spec.md §3 lists
// them: "destructor, delete, tracer, specialised tracers[N], class
// back-pointer, depth, offset-in-display, cache field, display[D],
// nbSecondaryTypes, secondaryTypes-array, baseClassVT, IMT". Go's
// VirtualTable struct (pkg/classmodel/vtable.go) holds these as named
// fields rather than a raw slot array. The constants count no
// specialised tracer slots; pkg/translator's invokeinterface lowering
// loads the receiver's class through VTSlotClassBackPointer, and
// pkg/compiler's AOT path emits no VT.
const (
	VTSlotDestructor = iota
	VTSlotDelete
	VTSlotTracer
	VTSlotClassBackPointer
	VTSlotDepth
	VTSlotOffsetInDisplay
	VTSlotCacheField
	VTSlotDisplayBase
)

// DisplayLen is Cohen's display-array bound (spec.md §3/§4.2/§8).
const DisplayLen = 8

// IMTSize is the fixed power-of-two slot count of the Interface Method
// Table (spec.md §3: "typically 32").
const IMTSize = 32
