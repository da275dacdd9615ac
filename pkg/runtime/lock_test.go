package runtime_test

import (
	"sync"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmkit-go/vmkit/pkg/runtime"
)

// stubGC keeps every allocated buffer referenced for the test's
// lifetime: Allocate hands back a raw uintptr, which (unlike a real
// unsafe.Pointer) does not itself keep the backing array alive, so the
// slice must stay reachable through gc.bufs or the GC could reclaim it
// out from under a later ptrAt dereference.
type stubGC struct {
	bufs [][]byte
}

func (g *stubGC) Allocate(size int) (uintptr, error) {
	buf := make([]byte, size)
	g.bufs = append(g.bufs, buf)
	return uintptr(unsafe.Pointer(&buf[0])), nil
}
func (g *stubGC) AddFinalizationCandidate(uintptr)  {}
func (g *stubGC) Collect()                          {}
func (g *stubGC) IsLive(uintptr) bool               { return true }
func (g *stubGC) MarkAndTraceRoot(slot *uintptr)    {}

func newSupport(t *testing.T) (*runtime.Support, uintptr) {
	t.Helper()
	gc := &stubGC{}
	s := runtime.NewSupport(gc, nil, nil)
	obj, err := s.Allocate(16, 0xdead)
	require.NoError(t, err)
	return s, obj
}

func TestMonitorEnterExitIsReentrant(t *testing.T) {
	s, obj := newSupport(t)
	require.NoError(t, s.MonitorEnter(obj, 1))
	require.NoError(t, s.MonitorEnter(obj, 1)) // same thread, recursive
	require.NoError(t, s.MonitorExit(obj, 1))
	require.NoError(t, s.MonitorExit(obj, 1))
}

func TestMonitorEnterNullIsGuestError(t *testing.T) {
	s, _ := newSupport(t)
	err := s.MonitorEnter(0, 1)
	require.Error(t, err)
	var ge *runtime.GuestError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, runtime.KindNullDereference, ge.Kind)
}

func TestMonitorEnterContendedSerialisesThreads(t *testing.T) {
	s, obj := newSupport(t)
	var wg sync.WaitGroup
	var mu sync.Mutex
	order := make([]int, 0, 4)

	for i := 1; i <= 4; i++ {
		wg.Add(1)
		go func(tid uint64) {
			defer wg.Done()
			require.NoError(t, s.MonitorEnter(obj, tid))
			mu.Lock()
			order = append(order, int(tid))
			mu.Unlock()
			require.NoError(t, s.MonitorExit(obj, tid))
		}(uint64(i))
	}
	wg.Wait()
	assert.Len(t, order, 4)
}
