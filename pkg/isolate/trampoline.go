package isolate

import (
	"reflect"
	"sync/atomic"

	"github.com/pkg/errors"
)

// raiseIsolateDead is the Go-level landing pad a patched prolog or a
// scrubbed return address both jump to: spec.md §4.7's "trampoline that
// raises an 'interrupted' exception on return to the doomed method".
// Its own address (taken via reflect, the portable way to get a
// callable Go function's entry point without cgo) is what
// buildTrampoline assembles a jump to on amd64, and what
// deadIsolateTrampolineAddr hands back for a scrubbed return slot on
// every architecture.
func raiseIsolateDead() {
	panic(&isolateDeadPanic{})
}

// isolateDeadPanic is the value raiseIsolateDead panics with. No code in
// this module recovers it or converts it into a *runtime.GuestError, and
// nothing raises runtime.KindIsolateDead.
type isolateDeadPanic struct{}

func deadIsolateTrampolineAddr() (uintptr, error) {
	return reflect.ValueOf(raiseIsolateDead).Pointer(), nil
}

func atomicPatchSlot(slot *uintptr, addr uintptr) {
	atomic.StoreUintptr(slot, addr)
}

func errWrapShort(have, want int) error {
	return errors.Errorf("isolate: code region too short to decode a %d-byte prolog (have %d bytes)", want, have)
}
