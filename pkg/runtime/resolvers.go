package runtime

import (
	"github.com/pkg/errors"

	"github.com/vmkit-go/vmkit/pkg/classmodel"
	"github.com/vmkit-go/vmkit/pkg/dispatch"
)

// ResolveStaticStub implements spec.md §4.1/§4.5's static resolver stub
// body: resolve the target method exactly once, force its class ready,
// and report the native entry point a JIT's PatchSlot then writes into
// the call site (AOT instead emits a direct call once the symbol is
// known at link time; spec.md §4.5 "assume-compiled vs callback-stub
// modes").
func (s *Support) ResolveStaticStub(owner *classmodel.Class, name, descriptor string, threadID int64, run classmodel.ClinitRunner) (uintptr, error) {
	m, err := classmodel.LookupMethod(owner, name, descriptor, true)
	if err != nil {
		return 0, errors.Wrap(err, "resolve_static_stub")
	}
	if err := s.InitialiseClass(owner, threadID, run); err != nil {
		return 0, err
	}
	return m.CodePtr, nil
}

// ResolveSpecialStub implements the invokespecial resolver stub body:
// <init>, private, and super calls are statically known once the
// owning class resolves, so this never needs dispatch (no receiver
// class to observe).
func (s *Support) ResolveSpecialStub(owner *classmodel.Class, name, descriptor string) (uintptr, error) {
	m, err := classmodel.LookupMethod(owner, name, descriptor, false)
	if err != nil {
		return 0, errors.Wrap(err, "resolve_special_stub")
	}
	return m.CodePtr, nil
}

// ResolveVirtualStub implements spec.md §4.1's virtual resolver stub
// body: given a concrete receiver class, looks up the overriding method
// through the class's VT (classmodel.LookupMethod with static=false
// walks the VT-backed override chain) and reports its entry point.
// pkg/dispatch's Resolver does not call it: on a cache miss it calls
// classmodel.LookupMethod itself.
func (s *Support) ResolveVirtualStub(receiver *classmodel.Class, name, descriptor string) (uintptr, error) {
	m, err := classmodel.LookupMethod(receiver, name, descriptor, false)
	if err != nil {
		return 0, errors.Wrap(err, "resolve_virtual_stub")
	}
	return m.CodePtr, nil
}

// VirtualLookup implements spec.md §4.4's virtual_lookup: the
// DispatchCache miss handler, delegating to a pkg/dispatch Resolver,
// which resolves through classmodel.LookupMethod rather than through
// ResolveVirtualStub.
func (s *Support) VirtualLookup(e *dispatch.Envelope, receiver *classmodel.Class) (*dispatch.CacheNode, error) {
	r := dispatch.NewResolver()
	node, err := r.VirtualLookup(e, receiver)
	if err != nil {
		return nil, errors.Wrap(err, "virtual_lookup")
	}
	return node, nil
}
