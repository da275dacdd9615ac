package isolate

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/vmkit-go/vmkit/pkg/classmodel"
)

// maxConcurrentScrubs bounds how many thread stacks phase 3 scrubs at
// once via golang.org/x/sync/semaphore, so a terminate against an
// isolate with many live threads doesn't fan out one goroutine per
// thread unbounded.
const maxConcurrentScrubs = 8

// Terminate runs spec.md §4.7's four-phase termination pipeline against
// the isolate identified by id, across every thread stack the Manager
// knows about.
//
// Grounded on JnjvmIsolateTerm.cpp's Jnjvm::denyIsolateExecutionInThread
// (phases 2-3, run per thread) and Jnjvm::denyClassExecution (phase 4,
// run per class). The manager lock is held only while marking the
// isolate and snapshotting the thread stacks (phase 1), while collecting
// the isolate's code regions (phase 4), and while freeing the slot at
// the end; phases 2 and 3 take each ThreadStack.mu in turn.
func Terminate(m *Manager, id int32, log *logrus.Entry) error {
	if log == nil {
		log = logrus.NewEntry(logrus.New())
	}

	iso, err := m.IsolateByID(id)
	if err != nil {
		return errors.Wrap(err, "isolate: terminate")
	}

	// Phase 1: freeze writes. Mark the isolate DenyExecution and snapshot
	// the thread stacks under the manager lock. PushFrame does not consult
	// the isolate state, so it does not refuse frames pushed afterwards.
	m.mu.Lock()
	iso.State |= DenyExecution
	threads := make([]*ThreadStack, 0, len(m.threads))
	for _, ts := range m.threads {
		threads = append(threads, ts)
	}
	m.mu.Unlock()

	// Phase 2: prune exception handlers belonging to the dying isolate.
	for _, ts := range threads {
		pruneExceptionHandlers(ts, id, log)
	}

	// Phase 3: scrub every thread's stack, capped at maxConcurrentScrubs
	// concurrent workers so a wide thread set doesn't spawn one goroutine
	// per thread. Each scrubStack call takes its own ThreadStack.mu, so
	// workers never contend with each other on the same stack.
	sem := semaphore.NewWeighted(maxConcurrentScrubs)
	g, gctx := errgroup.WithContext(context.Background())
	for _, ts := range threads {
		ts := ts
		if err := sem.Acquire(gctx, 1); err != nil {
			return errors.Wrap(err, "isolate: acquire scrub slot")
		}
		g.Go(func() error {
			defer sem.Release(1)
			return scrubStack(m, ts, id, log)
		})
	}
	if err := g.Wait(); err != nil {
		return errors.Wrap(err, "isolate: scrub stack")
	}

	if err := patchDoomedMethods(m, iso, log); err != nil {
		return errors.Wrap(err, "isolate: patch method prologs")
	}

	m.mu.Lock()
	iso.State = Free
	iso.Loader = nil
	m.mu.Unlock()
	return nil
}

// pruneExceptionHandlers implements phase 2: remove exception-handler
// frames whose handler method belongs to the dying isolate, the Go
// analogue of Jnjvm::removeExceptionHandlersInThread's ExceptionBuffer
// unlinking.
func pruneExceptionHandlers(ts *ThreadStack, id int32, log *logrus.Entry) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	kept := ts.handlers[:0]
	for _, h := range ts.handlers {
		if h.IsolateID == id {
			log.WithField("method", methodName(h.Method)).Debug("disabling exception handler in terminating isolate")
			continue
		}
		kept = append(kept, h)
	}
	ts.handlers = kept
}

// scrubStack implements phase 3: for every frame belonging to the dying
// isolate, patch its return slot to point at the "interrupted"
// trampoline, the Go analogue of
// Jnjvm::denyIsolateExecutionInMethodFrame's on-stack return-address
// patch.
func scrubStack(m *Manager, ts *ThreadStack, id int32, log *logrus.Entry) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	trampoline, err := deadIsolateTrampolineAddr()
	if err != nil {
		return err
	}

	for _, f := range ts.frames {
		if isolateOf(f.Method) != id {
			continue
		}
		log.WithField("method", methodName(f.Method)).Debug("scrubbing stack frame of terminating isolate")
		if f.ReturnSlot != nil {
			atomicPatchSlot(f.ReturnSlot, trampoline)
		}
	}
	return nil
}

// patchDoomedMethods implements phase 4: overwrite the generated-code
// prolog of every registered method belonging to the dying isolate, the
// Go analogue of Jnjvm::denyClassExecution + denyMethodExecution.
// Iterating the Manager's own code registry (rather than walking the
// loader's class table) means a method is patched once it has been
// registered through Manager.RegisterCode, with no dependency
// on how the class graph itself is traversed.
func patchDoomedMethods(m *Manager, iso *Isolate, log *logrus.Entry) error {
	trampoline, err := buildTrampoline()
	if err != nil {
		// No decoder/assembler for this architecture: degrade to
		// cooperative-only shutdown (spec.md's REDESIGN FLAGS note)
		// rather than failing termination outright — phases 1-3 already
		// ran and remain effective.
		log.WithError(err).Warn("method prolog patching unavailable, isolate shutdown is cooperative only")
		return nil
	}

	m.mu.Lock()
	targets := make(map[*classmodel.Method]*CodeRegion)
	for method, region := range m.codeByMethod {
		if isolateOf(method) == iso.ID {
			targets[method] = region
		}
	}
	m.mu.Unlock()

	for method, region := range targets {
		if region == nil || len(region.Bytes) == 0 {
			continue // not yet materialised: nothing resident to patch
		}
		n, err := prologLength(region.Bytes, len(trampoline))
		if err != nil {
			return errors.Wrapf(err, "isolate: decode prolog of %s", methodName(method))
		}
		if n > len(region.Bytes) {
			return errors.Errorf("isolate: trampoline (%d bytes) longer than %s's code region (%d bytes)", n, methodName(method), len(region.Bytes))
		}
		log.WithField("method", methodName(method)).Info("patching method prolog for terminated isolate")
		copy(region.Bytes[:len(trampoline)], trampoline)
	}
	return nil
}

func methodName(m *classmodel.Method) string {
	if m == nil || m.Class == nil {
		return "<unknown>"
	}
	return m.Class.Name + "." + m.Name + m.Descriptor
}
