package runtime

// The functions below are the exception-raising intrinsics of spec.md
// §4.6, each a thin named-symbol wrapper the translator's per-opcode
// guard calls (pkg/translator's checkNull/checkBounds/checkDivisor and
// its checkcast lowering) target via backend.FunctionBuilder.CallSymbol;
// athrow calls SymThrowException, which has no wrapper here. Grounded on the teacher's
// NewJavaException (_examples/daimatz-gojvm/pkg/vm/vm.go), generalised
// from "always construct a java/lang/Throwable" into "return the typed
// GuestError the closed error-kind table of spec.md §7 requires".

// NullPointer raises KindNullDereference when cond is true, matching the
// translator's emitted "if null then raise" guard shape.
func (s *Support) NullPointer(cond bool) error {
	if !cond {
		return nil
	}
	return newGuestError(KindNullDereference, "null pointer")
}

// IndexOutOfBounds raises KindBounds when idx is outside [0, length).
func (s *Support) IndexOutOfBounds(arr uintptr, idx int) error {
	length, err := s.ArrayLength(arr)
	if err != nil {
		return err
	}
	if idx < 0 || idx >= length {
		return newGuestError(KindBounds, "index %d out of bounds for length %d", idx, length)
	}
	return nil
}

// ClassCast raises KindClassCast unconditionally: it performs no subtype
// test and only shapes the failure into a GuestError. The translator's
// checkcast lowering reads the target class name but emits no subtype
// test of its own.
func (s *Support) ClassCast(from, to string) error {
	return newGuestError(KindClassCast, "cannot cast %s to %s", from, to)
}

// NegativeArraySize raises KindNegativeSize.
func (s *Support) NegativeArraySize(n int) error {
	return newGuestError(KindNegativeSize, "negative array size %d", n)
}

// Arithmetic raises KindArithmetic, e.g. integer division by zero.
func (s *Support) Arithmetic(detail string) error {
	return newGuestError(KindArithmetic, "%s", detail)
}

// OutOfMemory raises KindOutOfMemory.
func (s *Support) OutOfMemory(requested int) error {
	return newGuestError(KindOutOfMemory, "out of memory allocating %d bytes", requested)
}

// StackOverflow raises KindStackOverflow, the guard a compiled method's
// prolog calls when the stack-depth check (spec.md §5) trips.
func (s *Support) StackOverflow() error {
	return newGuestError(KindStackOverflow, "stack overflow")
}

// ArrayStore raises KindArrayStore: storing a reference of the wrong
// element type into a covariant array.
func (s *Support) ArrayStore(elemClass, arrayElemClass string) error {
	return newGuestError(KindArrayStore, "array element type %s not assignable to %s", elemClass, arrayElemClass)
}
