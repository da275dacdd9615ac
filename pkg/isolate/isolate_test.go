package isolate_test

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmkit-go/vmkit/pkg/classmodel"
	"github.com/vmkit-go/vmkit/pkg/isolate"
)

func newTestLoader(isolateID int32) *classmodel.Loader {
	l := classmodel.NewLoader("isolate-test", nil, nil)
	l.IsolateID = isolateID
	return l
}

func TestRegisterAssignsFreeSlot(t *testing.T) {
	m := isolate.NewManager()
	loader := newTestLoader(0)
	iso, err := m.Register(loader)
	require.NoError(t, err)
	assert.Equal(t, isolate.Running, iso.State)

	got, err := m.IsolateByID(iso.ID)
	require.NoError(t, err)
	assert.Same(t, iso, got)
}

func TestIsolateByIDRejectsFreeSlot(t *testing.T) {
	m := isolate.NewManager()
	_, err := m.IsolateByID(3)
	require.Error(t, err)
}

// TestTerminatePrunesHandlersAndScrubsStack exercises phases 1-3 without
// relying on any architecture-specific code patching: a thread has one
// frame and one handler belonging to the dying isolate, plus one of
// each belonging to a surviving isolate, and only the dying isolate's
// entries are touched.
func TestTerminatePrunesHandlersAndScrubsStack(t *testing.T) {
	m := isolate.NewManager()
	dying := newTestLoader(0)
	survivor := newTestLoader(0)

	dyingIso, err := m.Register(dying)
	require.NoError(t, err)
	survivorIso, err := m.Register(survivor)
	require.NoError(t, err)
	survivor.IsolateID = survivorIso.ID
	dying.IsolateID = dyingIso.ID

	dyingMethod := &classmodel.Method{Name: "loop", Descriptor: "()V", Class: &classmodel.Class{Name: "Doomed", Loader: dying}}
	survivorMethod := &classmodel.Method{Name: "run", Descriptor: "()V", Class: &classmodel.Class{Name: "Fine", Loader: survivor}}

	ts := m.ThreadStackFor(1)
	var dyingReturn, survivorReturn uintptr = 0x1000, 0x2000
	ts.PushFrame(isolate.Frame{Method: survivorMethod, ReturnSlot: &survivorReturn})
	ts.PushFrame(isolate.Frame{Method: dyingMethod, ReturnSlot: &dyingReturn})
	ts.PushHandler(isolate.HandlerFrame{IsolateID: survivorIso.ID, Method: survivorMethod})
	ts.PushHandler(isolate.HandlerFrame{IsolateID: dyingIso.ID, Method: dyingMethod})

	require.NoError(t, isolate.Terminate(m, dyingIso.ID, nil))

	assert.NotEqual(t, uintptr(0x1000), dyingReturn, "dying frame's return slot should have been patched")
	assert.Equal(t, uintptr(0x2000), survivorReturn, "surviving frame's return slot must be untouched")

	_, err = m.IsolateByID(dyingIso.ID)
	assert.Error(t, err, "terminated isolate slot should be Free again")
}

// TestBuildTrampolineProducesMachineCode only runs on amd64, where
// golang-asm/x86asm actually assemble and decode real x86-64
// instructions; other architectures degrade to cooperative shutdown,
// exercised separately by TestTerminatePrunesHandlersAndScrubsStack.
func TestBuildTrampolineProducesMachineCode(t *testing.T) {
	if runtime.GOARCH != "amd64" {
		t.Skip("trampoline assembly only implemented for amd64")
	}

	m := isolate.NewManager()
	loader := newTestLoader(0)
	iso, err := m.Register(loader)
	require.NoError(t, err)
	loader.IsolateID = iso.ID

	class := &classmodel.Class{Name: "Doomed", Loader: loader}
	method := &classmodel.Method{Name: "spin", Descriptor: "()V", Class: class}

	code := make([]byte, 64)
	m.RegisterCode(method, &isolate.CodeRegion{Bytes: code})

	require.NoError(t, isolate.Terminate(m, iso.ID, nil))

	allZero := true
	for _, b := range code {
		if b != 0 {
			allZero = false
			break
		}
	}
	assert.False(t, allZero, "method prolog should have been patched with trampoline bytes")
}
