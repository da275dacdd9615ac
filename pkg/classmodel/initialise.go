package classmodel

// ClinitRunner executes a class's static initialiser (its <clinit>
// method, or N3's equivalent static constructor). It is supplied by
// pkg/compiler/pkg/runtime, not implemented here: running bytecode is the
// translator's and compiler's job, not the class model's.
type ClinitRunner func(c *Class) error

// Initialise implements spec.md §4.2's initialise(C): runs the class
// initialiser exactly once under a per-class lock; re-entrance by the
// same thread returns immediately; failure marks the class Erroneous and
// every future access raises the stored error.
//
// Grounded on the teacher's ensureInitialized
// (_examples/daimatz-gojvm/pkg/vm/vm.go), generalised from a
// single-threaded "map of already-initialised class names" (safe only
// because the teacher's VM never runs two goroutines) into the
// thread-owned per-class lock spec.md §5 requires ("Resolving /
// Initialising is owned by exactly one thread and blocks all others").
func Initialise(c *Class, threadID int64, run ClinitRunner) error {
	super := superOf(c)
	if super != nil {
		if err := Initialise(super, threadID, run); err != nil {
			return err
		}
	}

	r := c.self
	r.mu.Lock()
	for {
		switch r.state {
		case Ready:
			r.mu.Unlock()
			return nil
		case Erroneous:
			err := r.err
			r.mu.Unlock()
			return err
		case Initialising:
			if r.hasInitOwner && r.initOwner == threadID {
				// Re-entrant call from the thread already running
				// <clinit> (e.g. a static method called from within the
				// initialiser itself): return immediately, per spec.md.
				r.mu.Unlock()
				return nil
			}
			r.cond.Wait()
			continue
		default: // Resolved: this thread becomes the initialiser.
			r.state = Initialising
			r.initOwner = threadID
			r.hasInitOwner = true
			r.mu.Unlock()

			err := run(c)

			r.mu.Lock()
			r.hasInitOwner = false
			if err != nil {
				r.state = Erroneous
				r.err = classErrorFrom(c.Name, err)
				r.cond.Broadcast()
				retErr := error(r.err)
				r.mu.Unlock()
				return retErr
			}
			r.state = Ready
			r.cond.Broadcast()
			r.mu.Unlock()
			return nil
		}
	}
}

// ForceInitialisationCheck is the no-op fast path of spec.md §4.6's
// force_initialisation_check: callers on the hot path (field access,
// `new`, static call) should call this first and only fall into the
// slower Initialise when it reports not-yet-ready.
func ForceInitialisationCheck(c *Class) bool {
	return c.self.State() == Ready
}
