package runtime

import (
	"unsafe"

	"github.com/sirupsen/logrus"

	"github.com/vmkit-go/vmkit/pkg/classmodel"
	"github.com/vmkit-go/vmkit/pkg/intrinsics"
	"github.com/vmkit-go/vmkit/pkg/vmcontext"
)

// GC is spec.md §6's garbage-collector collaborator: "Allocate,
// AddFinalizationCandidate, Collect, IsLive, MarkAndTraceRoot, a
// per-function StackMap". Out of scope per §1 ("the GC implementation");
// Support only calls through this interface.
type GC interface {
	Allocate(size int) (uintptr, error)
	AddFinalizationCandidate(obj uintptr)
	Collect()
	IsLive(obj uintptr) bool
	MarkAndTraceRoot(slot *uintptr)
}

// Env is spec.md §6's native interop collaborator (JNI-shaped): the
// handle a native method body receives to call back into the guest
// runtime. Out of scope per §1 ("standard-library native method
// bodies"); Support exposes just enough surface for Allocate/throw calls
// originating from native code.
type Env interface {
	NewObject(class string) (uintptr, error)
	Throw(err *GuestError)
}

// Support bundles the collaborators the runtime-entry-point functions
// below close over: a GC, the owning VMContext (for thread/safepoint
// state), and the loader whose classes this VM instance runs. Grounded
// on the teacher's VM struct (_examples/daimatz-gojvm/pkg/vm/vm.go),
// which bundles its ClassLoader, object table, and Stdout the same way
// rather than reaching for package globals.
type Support struct {
	GC     GC
	VM     *vmcontext.VMContext
	Loader *classmodel.Loader
}

// NewSupport creates a Support bundle.
func NewSupport(gc GC, vm *vmcontext.VMContext, loader *classmodel.Loader) *Support {
	return &Support{GC: gc, VM: vm, Loader: loader}
}

func (s *Support) log() *logrus.Entry {
	if s.VM != nil && s.VM.Log != nil {
		return s.VM.Log
	}
	return logrus.NewEntry(logrus.New())
}

// Allocate implements spec.md §4.6's allocate: request size bytes from
// the GC and stamp the object header's VT pointer, the generalisation of
// the teacher's executeNew (_examples/daimatz-gojvm/pkg/vm/vm.go), which
// zero-filled a Go struct instead of a raw buffer because the teacher
// never had a VT to stamp.
func (s *Support) Allocate(size int, vt uintptr) (uintptr, error) {
	addr, err := s.GC.Allocate(size)
	if err != nil {
		return 0, newGuestError(KindOutOfMemory, "allocate %d bytes: %v", size, err)
	}
	*(*uintptr)(ptrAt(addr, intrinsics.ObjectHeaderVTOffset)) = vt
	return addr, nil
}

// ArrayMultiNew implements spec.md §4.6's array_multi_new: allocates a
// multi-dimensional array by recursively allocating one dimension at a
// time, each negative-size-checked dimension raising KindNegativeSize.
func (s *Support) ArrayMultiNew(dims []int, elemVT uintptr, elemSize int) (uintptr, error) {
	if len(dims) == 0 {
		return 0, newGuestError(KindNegativeSize, "array_multi_new called with zero dimensions")
	}
	n := dims[0]
	if n < 0 {
		return 0, newGuestError(KindNegativeSize, "array length %d", n)
	}
	size := intrinsics.ArrayHeaderElementsStart + n*elemSize
	addr, err := s.Allocate(size, elemVT)
	if err != nil {
		return 0, err
	}
	*(*int)(ptrAt(addr, intrinsics.ArrayHeaderLengthOffset)) = n

	if len(dims) > 1 {
		for i := 0; i < n; i++ {
			sub, err := s.ArrayMultiNew(dims[1:], elemVT, elemSize)
			if err != nil {
				return 0, err
			}
			*(*uintptr)(ptrAt(addr, intrinsics.ArrayHeaderElementsStart+i*elemSize)) = sub
		}
	}
	return addr, nil
}

// ArrayLength implements spec.md §4.6's array_length: load the length
// word, null-checked first.
func (s *Support) ArrayLength(arr uintptr) (int, error) {
	if arr == 0 {
		return 0, newGuestError(KindNullDereference, "arraylength on null")
	}
	return *(*int)(ptrAt(arr, intrinsics.ArrayHeaderLengthOffset)), nil
}

// ptrAt is this package's one deliberate use of unsafe: object/array
// headers are raw-memory structures by definition (spec.md §3), and the
// GC collaborator (out of scope per §1) is assumed to hand back real
// addressable memory. Every other package in this module stays
// unsafe-free.
func ptrAt(base uintptr, offset int) unsafe.Pointer {
	return unsafe.Pointer(base + uintptr(offset))
}
