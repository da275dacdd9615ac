package compiler

import (
	"context"

	"github.com/pkg/errors"

	"github.com/vmkit-go/vmkit/pkg/backend"
	"github.com/vmkit-go/vmkit/pkg/classmodel"
	"github.com/vmkit-go/vmkit/pkg/signature"
)

// JIT implements spec.md §4.5's lazy materialisation pipeline: a
// method starts out as a stub (pkg/signature.GenerateStub) installed
// in its VT/IC slot, and is only translated and materialised to native
// code on first invocation, at which point the slot is patched to the
// real address via ExecutionEngine.PatchSlot.
//
// Grounded on the teacher's lazy class resolution
// (_examples/daimatz-gojvm/pkg/vm/classloader.go resolves a referenced
// class only when first touched, not at load time); JIT generalises
// that "resolve on first use" posture from classes to individual
// method bodies.
type JIT struct {
	*Compiler
}

// NewJIT wraps an existing Compiler for just-in-time materialisation.
func NewJIT(co *Compiler) *JIT {
	return &JIT{Compiler: co}
}

// StubKindFor maps a method's dispatch shape (the same classification
// pkg/translator's lowerInvoke performs) to the stub shape
// pkg/signature.GenerateStub needs.
func StubKindFor(m *classmodel.Method, viaInterface, viaSpecial bool) signature.StubKind {
	switch {
	case m.IsStatic():
		return signature.StubStatic
	case viaSpecial:
		return signature.StubSpecial
	default:
		return signature.StubVirtual
	}
}

// InstallStub emits a resolver stub for m and returns its backend
// function, for installation into m's VT slot (or an interface's IMT
// slot) ahead of any real translation. The stub, once called, resolves
// and materialises the real body through Materialise below.
func (j *JIT) InstallStub(c *classmodel.Class, m *classmodel.Method, kind signature.StubKind) (backend.FunctionBuilder, error) {
	j.irMu.Lock()
	defer j.irMu.Unlock()

	ft, err := signature.Lower(j.mod, m.Sig, sigKindFor(kind))
	if err != nil {
		return nil, errors.Wrapf(err, "jit: lower signature for %s.%s%s", c.Name, m.Name, m.Descriptor)
	}
	return signature.GenerateStub(j.mod, symbolFor(c, m)+".$stub", ft, kind), nil
}

func sigKindFor(stub signature.StubKind) signature.Kind {
	switch stub {
	case signature.StubStatic:
		return signature.KindStatic
	default:
		return signature.KindVirtual
	}
}

// Materialise translates m (if not already translated) and compiles it
// to a native address through the ExecutionEngine, then patches slot
// to point at that address. This is the "stub calls resolver, resolver
// materialises and patches" half of spec.md §4.1/§4.5's protocol; the
// stub side lives in pkg/runtime's resolver intrinsics, which call back
// into this method.
func (j *JIT) Materialise(ctx context.Context, c *classmodel.Class, m *classmodel.Method, slot *uintptr) (uintptr, error) {
	fn, err := j.translate(c, m)
	if err != nil {
		return 0, errors.Wrapf(err, "jit: translate %s.%s%s", c.Name, m.Name, m.Descriptor)
	}

	j.irMu.Lock()
	addr, err := j.eng.Materialise(ctx, fn)
	j.irMu.Unlock()
	if err != nil {
		return 0, errors.Wrapf(err, "jit: materialise %s.%s%s", c.Name, m.Name, m.Descriptor)
	}

	m.CodePtr = addr
	if slot != nil {
		j.eng.PatchSlot(slot, addr)
	}
	return addr, nil
}
