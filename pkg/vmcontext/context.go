// Package vmcontext holds the explicit per-VM context (logger and thread
// table) and the per-thread descriptors that stand in for the original
// VMKit's thread-local key and frame-address mask (spec.md §9 "Global
// mutable state"). The object-lock table is not part of it (pkg/runtime
// keeps it in package-level variables), and there is no interned UTF-8
// table.
package vmcontext

import (
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Thread is the per-goroutine analogue of the original's "thread object
// embedded at the base of its own stack". Since Go gives no portable way
// to recover a descriptor from a frame pointer, every entry point that
// would have used the frame-pointer trick instead receives a *Thread
// (or its id, looked up with VMContext.Thread) explicitly; there is no
// goroutine-local lookup.
type Thread struct {
	ID int64

	// DoYield is polled at safepoints (spec.md §5). Set by a GC or an
	// isolate wanting to stop this thread cooperatively.
	DoYield int32 // atomic

	// Uncooperative is non-nil while the thread is inside
	// enter/leave_uncooperative_code (spec.md §5); it records the saved
	// frame marker so a conservative stack walk can stop at the boundary.
	Uncooperative *UncooperativeMarker

	// IsolateID is the id of the loader whose code this thread is
	// currently executing. pkg/isolate does not read it: stack scrubbing
	// takes a frame's isolate from its method's Loader.IsolateID.
	IsolateID int32

	// Pending holds a guest exception raised by compiled code and not
	// yet consumed by an unwinder (spec.md §5, "exception-propagation
	// is orthogonal to the scheduler").
	Pending error

	mu sync.Mutex
}

// UncooperativeMarker is the guard value of spec.md §9's "coroutine-shaped
// native transitions" design note: construction saves a stack marker,
// destruction (via Leave) clears it.
type UncooperativeMarker struct {
	FrameMarker uintptr
}

// RequestYield sets the thread's safepoint-poll flag (spec.md §5),
// called by a GC or an isolate wanting this thread to stop cooperatively
// at its next poll.
func (t *Thread) RequestYield() {
	atomic.StoreInt32(&t.DoYield, 1)
}

// ClearYield resets the safepoint-poll flag once the requester's
// condition has been observed and handled.
func (t *Thread) ClearYield() {
	atomic.StoreInt32(&t.DoYield, 0)
}

// YieldRequested reports whether the thread's safepoint-poll flag is
// set, the check a compiled method's poll IR performs at loop
// back-edges and function entries (spec.md §5).
func (t *Thread) YieldRequested() bool {
	return atomic.LoadInt32(&t.DoYield) != 0
}

// EnterUncooperative records that the thread is about to call into code
// that may block (native interop, I/O, park) and so cannot poll
// safepoints. The GC treats the thread as stopped-at-boundary until
// LeaveUncooperative runs.
func (t *Thread) EnterUncooperative(frameMarker uintptr) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Uncooperative = &UncooperativeMarker{FrameMarker: frameMarker}
}

// LeaveUncooperative clears the marker set by EnterUncooperative.
func (t *Thread) LeaveUncooperative() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Uncooperative = nil
}

// VMContext is the single explicit handle a compiled program threads
// through calls instead of reaching for package-level globals.
type VMContext struct {
	Log *logrus.Entry

	threadsMu sync.RWMutex
	threads   map[int64]*Thread
	nextID    int64
}

// New creates a VMContext with the given base logger.
func New(log *logrus.Logger) *VMContext {
	if log == nil {
		log = logrus.New()
	}
	return &VMContext{
		Log:     logrus.NewEntry(log),
		threads: make(map[int64]*Thread),
	}
}

// NewThread registers and returns a new Thread descriptor.
func (c *VMContext) NewThread() *Thread {
	c.threadsMu.Lock()
	defer c.threadsMu.Unlock()
	c.nextID++
	t := &Thread{ID: c.nextID}
	c.threads[t.ID] = t
	return t
}

// Thread returns the descriptor registered under id, or nil if it has
// since been forgotten.
func (c *VMContext) Thread(id int64) *Thread {
	c.threadsMu.RLock()
	defer c.threadsMu.RUnlock()
	return c.threads[id]
}

func (c *VMContext) forgetThread(id int64) {
	c.threadsMu.Lock()
	defer c.threadsMu.Unlock()
	delete(c.threads, id)
}

// ForgetThread removes a terminated thread's descriptor from the context.
func (c *VMContext) ForgetThread(t *Thread) {
	c.forgetThread(t.ID)
}

// Snapshot returns a copy of the live thread descriptor slice. The
// isolate termination pipeline does not use it; it walks
// isolate.Manager's own thread stacks.
func (c *VMContext) Snapshot() []*Thread {
	c.threadsMu.RLock()
	defer c.threadsMu.RUnlock()
	out := make([]*Thread, 0, len(c.threads))
	for _, t := range c.threads {
		out = append(out, t)
	}
	return out
}
