package runtime

import "github.com/pkg/errors"

// SafepointPoll implements spec.md §5's cooperative safepoint: the
// check a compiled method's poll IR calls at loop back-edges and
// function entries. A set do_yield flag raises KindInterrupted instead
// of clearing itself, matching scenario 5's "the loop exits at its next
// safepoint poll" — the requester (Thread.interrupt, a GC, an isolate
// stop) is responsible for clearing the flag once it has observed the
// thread stop, via vmcontext.Thread.ClearYield.
func (s *Support) SafepointPoll(threadID int64) error {
	if s.VM == nil {
		return nil
	}
	th := s.VM.Thread(threadID)
	if th == nil || !th.YieldRequested() {
		return nil
	}
	return errors.WithStack(newGuestError(KindInterrupted, "thread %d interrupted at safepoint", threadID))
}
