// Package isolate implements spec.md §4.7's J3-only IsolateManager: a
// fixed isolate table and the four-phase termination pipeline (freeze
// writes, exception-table pruning, stack scrubbing, method prolog
// patching) that lets one isolate be stopped without tearing down the
// process.
//
// This package has no direct teacher analogue — daimatz/gojvm has no
// isolation concept at all — so it is grounded directly on
// _examples/original_source/lib/j3/VMCore/JnjvmIsolateTerm.cpp, the
// only place in the retrieval pack that describes this protocol,
// reimplemented the way idiomatic Go expresses a C++ StackWalker +
// architecture-specific asm trampoline: explicit per-thread frame
// slices instead of a raw stack walk, and golang-asm/x86asm (see
// trampoline.go) standing in for the hand-written x86 asm blocks.
package isolate

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/vmkit-go/vmkit/pkg/classmodel"
)

// State is JnjvmIsolate.h's isolate state bitset (spec.md §3: "State is
// a bitset: Running | ResetReferences | DenyExecution | Free").
type State uint32

const (
	Free State = 1 << iota
	Running
	DenyExecution
	ResetReferences
)

func (s State) Has(bit State) bool { return s&bit != 0 }

// NumIsolates bounds the isolate table, mirroring JnjvmIsolate.h's
// fixed-size NR_ISOLATES array rather than a growable map, so isolate
// ids stay small integers usable directly as table indices.
const NumIsolates = 64

// Isolate is one entry of the isolate table: a state and the class
// loader that owns it.
type Isolate struct {
	ID     int32
	State  State
	Loader *classmodel.Loader
}

// Manager owns the isolate table and the per-thread frame stacks that
// stand in for the C++ StackWalker, plus the registered native code
// regions method prolog patching needs.
type Manager struct {
	mu           sync.Mutex
	table        [NumIsolates]Isolate
	threads      map[int64]*ThreadStack
	codeByMethod map[*classmodel.Method]*CodeRegion
}

// NewManager returns an empty isolate table, every slot Free.
func NewManager() *Manager {
	m := &Manager{
		threads:      make(map[int64]*ThreadStack),
		codeByMethod: make(map[*classmodel.Method]*CodeRegion),
	}
	for i := range m.table {
		m.table[i] = Isolate{ID: int32(i), State: Free}
	}
	return m
}

// Register claims the first Free table slot for loader and marks it
// Running.
func (m *Manager) Register(loader *classmodel.Loader) (*Isolate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.table {
		if m.table[i].State == Free {
			m.table[i] = Isolate{ID: int32(i), State: Running, Loader: loader}
			return &m.table[i], nil
		}
	}
	return nil, errors.New("isolate: table full")
}

// IsolateByID looks a table entry up by id.
func (m *Manager) IsolateByID(id int32) (*Isolate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id < 0 || int(id) >= len(m.table) {
		return nil, errors.Errorf("isolate: id %d out of range", id)
	}
	if m.table[id].State == Free {
		return nil, errors.Errorf("isolate: id %d is not registered", id)
	}
	return &m.table[id], nil
}

// ThreadStack models one goroutine's Java-method call stack: the Go
// analogue of the C++ StackWalker's frame sequence, built explicitly by
// the caller's Enter/Leave calls (pkg/translator's call sequences, or a
// test) instead of walked off the native stack, since Go provides no
// portable way to inspect another goroutine's raw stack frames.
type ThreadStack struct {
	mu     sync.Mutex
	frames []Frame

	// handlers is the Go analogue of JavaThread::lastExceptionBuffer: a
	// LIFO list of exception handlers currently active on this thread,
	// pruned during phase 2 of termination.
	handlers []HandlerFrame
}

// Frame is one active call: the method running, and the slot holding
// its return address (a *uintptr the way pkg/backend's VT/IC slots are
// *uintptr, so PatchSlot-style atomic overwrite applies uniformly).
type Frame struct {
	Method     *classmodel.Method
	ReturnSlot *uintptr
}

// HandlerFrame is one active exception handler: the isolate that
// installed it and the method whose code the handler address resolves
// into.
type HandlerFrame struct {
	IsolateID int32
	Method    *classmodel.Method
}

// ThreadStackFor returns (creating if absent) the frame stack for
// threadID, the isolate manager's view of a vmcontext.Thread.
func (m *Manager) ThreadStackFor(threadID int64) *ThreadStack {
	m.mu.Lock()
	defer m.mu.Unlock()
	ts, ok := m.threads[threadID]
	if !ok {
		ts = &ThreadStack{}
		m.threads[threadID] = ts
	}
	return ts
}

// PushFrame records entry into method, called by translated code (or a
// test) on method entry.
func (ts *ThreadStack) PushFrame(f Frame) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.frames = append(ts.frames, f)
}

// PopFrame records return from the most recent frame.
func (ts *ThreadStack) PopFrame() {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if n := len(ts.frames); n > 0 {
		ts.frames = ts.frames[:n-1]
	}
}

// PushHandler records an active exception handler, the analogue of
// installing an ExceptionBuffer on try-block entry.
func (ts *ThreadStack) PushHandler(h HandlerFrame) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.handlers = append(ts.handlers, h)
}

// PopHandler unwinds the most recently installed handler.
func (ts *ThreadStack) PopHandler() {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if n := len(ts.handlers); n > 0 {
		ts.handlers = ts.handlers[:n-1]
	}
}

// CodeRegion is the native code bytes backing a compiled method, the
// portable stand-in for the raw executable memory JnjvmIsolateTerm.cpp
// patches in place with redirectMethodProlog. A real deployment backs
// this with an mmap'd executable page; tests back it with a plain byte
// slice.
type CodeRegion struct {
	Bytes []byte
	Base  uintptr
}

// RegisterCode associates m's generated native code with the region
// method prolog patching will later overwrite. Phase 4 of Terminate
// patches only methods registered here; pkg/compiler does not call it.
func (m *Manager) RegisterCode(method *classmodel.Method, region *CodeRegion) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codeByMethod[method] = region
}

func isolateOf(method *classmodel.Method) int32 {
	if method == nil || method.Class == nil || method.Class.Loader == nil {
		return 0
	}
	return method.Class.Loader.IsolateID
}
