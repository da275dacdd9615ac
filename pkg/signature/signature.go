// Package signature lowers a guest method signature (pkg/typemodel's
// Signature) into the native function types and resolver stubs spec.md
// §4.1 describes: four call-shape lowerings (virtual, static, native,
// call-buf/AP) plus three stub generators (virtual, special, static).
//
// Grounded on the teacher's callMethod/invoke* helpers
// (_examples/daimatz-gojvm/pkg/vm/vm.go), which build a Go call frame
// from a descriptor's parsed parameter/return types before dispatching;
// this package generalises "build a native call shape from a
// descriptor" from an ad hoc per-call frame into the four named,
// reusable lowerings spec.md asks for, expressed as backend.Type lists
// a pkg/backend.Module can build functions against.
package signature

import (
	"fmt"

	"github.com/vmkit-go/vmkit/pkg/backend"
	"github.com/vmkit-go/vmkit/pkg/intrinsics"
	"github.com/vmkit-go/vmkit/pkg/typemodel"
)

// Kind names one of the four function-type lowerings of spec.md §4.1.
type Kind int

const (
	KindVirtual Kind = iota
	KindStatic
	KindNative
	KindCallBuf
)

func (k Kind) String() string {
	switch k {
	case KindVirtual:
		return "virtual"
	case KindStatic:
		return "static"
	case KindNative:
		return "native"
	case KindCallBuf:
		return "callbuf"
	default:
		return "unknown"
	}
}

// NativeType lowers a single TypeDescriptor to a backend.Type, assigning
// the native scalar / pointer-to-scalar shape spec.md §4.1 requires: "For
// each guest primitive the lowerer assigns: native scalar,
// pointer-to-scalar, and a log-size in bytes".
func NativeType(reg backend.TypeRegistry, td *typemodel.TypeDescriptor) backend.Type {
	if td == nil {
		return reg.Void()
	}
	switch td.Kind {
	case typemodel.KindPrimitive:
		switch td.Prim {
		case typemodel.Void:
			return reg.Void()
		case typemodel.Bool, typemodel.Byte:
			return reg.Int(8)
		case typemodel.Short, typemodel.Char:
			return reg.Int(16)
		case typemodel.Int, typemodel.Float:
			if td.Prim == typemodel.Float {
				return reg.Float32()
			}
			return reg.Int(32)
		case typemodel.Long, typemodel.Double:
			if td.Prim == typemodel.Double {
				return reg.Float64()
			}
			return reg.Int(64)
		}
	case typemodel.KindReference, typemodel.KindArray:
		return reg.Pointer(reg.Int(8)) // opaque object pointer; real layout lives behind the object header
	case typemodel.KindPointer:
		return reg.Pointer(NativeType(reg, td.Pointee))
	}
	return reg.Pointer(reg.Int(8))
}

// PointerToScalar returns the pointer-to-scalar type for td, used by
// handle slots (native call shape) and GEP-addressed locals.
func PointerToScalar(reg backend.TypeRegistry, td *typemodel.TypeDescriptor) backend.Type {
	return reg.Pointer(NativeType(reg, td))
}

// FunctionType is the lowered native call shape: ordered parameter types
// plus a return type, tagged with which of the four kinds produced it.
type FunctionType struct {
	Kind    Kind
	Params  []backend.Type
	Return  backend.Type
}

// Lower produces a FunctionType for sig under kind, per spec.md §4.1's
// four shapes:
//   - Virtual:  (this, args…) → ret
//   - Static:   (args…) → ret
//   - Native:   (env, class_or_receiver, arg_refs_as_handles…) → ret_handle_or_scalar
//   - CallBuf:  (ctp, fn_ptr, serialised_args_ptr_or_va_list) → ret; always
//     these three parameters, with no separate receiver parameter
func Lower(reg backend.TypeRegistry, sig *typemodel.Signature, kind Kind) (*FunctionType, error) {
	if sig == nil {
		return nil, fmt.Errorf("signature: nil signature")
	}
	ret := NativeType(reg, sig.Return)
	opaquePtr := reg.Pointer(reg.Int(8))

	switch kind {
	case KindVirtual:
		params := make([]backend.Type, 0, len(sig.Params)+1)
		params = append(params, opaquePtr) // this
		for _, p := range sig.Params {
			params = append(params, NativeType(reg, p))
		}
		return &FunctionType{Kind: kind, Params: params, Return: ret}, nil

	case KindStatic:
		params := make([]backend.Type, 0, len(sig.Params))
		for _, p := range sig.Params {
			params = append(params, NativeType(reg, p))
		}
		return &FunctionType{Kind: kind, Params: params, Return: ret}, nil

	case KindNative:
		params := make([]backend.Type, 0, len(sig.Params)+2)
		params = append(params, opaquePtr) // env
		params = append(params, opaquePtr) // class_or_receiver
		for _, p := range sig.Params {
			if p.IsReference() {
				params = append(params, opaquePtr) // handle slot, not the raw reference
			} else {
				params = append(params, NativeType(reg, p))
			}
		}
		nret := ret
		if sig.Return != nil && sig.Return.IsReference() {
			nret = opaquePtr // ret_handle
		}
		return &FunctionType{Kind: kind, Params: params, Return: nret}, nil

	case KindCallBuf:
		params := []backend.Type{opaquePtr, opaquePtr} // ctp, fn_ptr
		params = append(params, opaquePtr)              // serialised_args_ptr_or_va_list
		return &FunctionType{Kind: kind, Params: params, Return: ret}, nil
	}
	return nil, fmt.Errorf("signature: unknown lowering kind %v", kind)
}

// StubKind names one of the three stub shapes spec.md §4.1 generates per
// signature.
type StubKind int

const (
	StubVirtual StubKind = iota
	StubSpecial
	StubStatic
)

func (stub StubKind) resolverSymbol() intrinsics.Symbol {
	switch stub {
	case StubVirtual:
		return intrinsics.SymResolveVirtualStub
	case StubSpecial:
		return intrinsics.SymResolveSpecialStub
	default:
		return intrinsics.SymResolveStaticStub
	}
}

// GenerateStub emits a stub function: it calls the resolver intrinsic
// with the caller's arguments, and on a non-null result tail-calls the
// resolved function with those same arguments; on null it falls through
// to a null-return slot. Matches spec.md §4.1's "A stub calls a runtime
// resolver with the caller's arguments; the resolver returns a real
// function pointer, after which the stub tail-calls that function. If
// the resolver returns null, the stub falls through to a null-return
// slot."
func GenerateStub(mod backend.Module, name string, ft *FunctionType, stub StubKind) backend.FunctionBuilder {
	fn := mod.DefineFunction(name, ft.Params, ft.Return)

	entry := fn.NewBlock("entry")
	resolved := fn.NewBlock("resolved")
	nullRet := fn.NewBlock("null_ret")
	fn.SetInsertPoint(entry)

	args := make([]backend.Value, len(ft.Params))
	for i := range ft.Params {
		args[i] = fn.Param(i)
	}

	target := fn.CallSymbol(string(stub.resolverSymbol()), args)
	isNull := fn.ICmp("eq", target, fn.Null(ft.Return))
	fn.CondBr(isNull, nullRet, resolved)

	fn.SetInsertPoint(resolved)
	result := fn.Call(target, args)
	fn.Ret(result)

	fn.SetInsertPoint(nullRet)
	fn.Ret(fn.Null(ft.Return))

	return fn
}
