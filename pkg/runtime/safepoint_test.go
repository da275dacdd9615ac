package runtime_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmkit-go/vmkit/pkg/runtime"
	"github.com/vmkit-go/vmkit/pkg/vmcontext"
)

// TestSafepointPollInterruptsAtRequestedYield is scenario 5's end-to-end
// check: a thread's do_yield flag is set out-of-band, and the next
// safepoint poll (the call the translator emits at loop back-edges and
// function entries) observes it and raises KindInterrupted instead of
// continuing, the loop-exits-at-its-next-safepoint behaviour.
func TestSafepointPollInterruptsAtRequestedYield(t *testing.T) {
	vm := vmcontext.New(nil)
	th := vm.NewThread()
	s := runtime.NewSupport(nil, vm, nil)

	require.NoError(t, s.SafepointPoll(th.ID), "no yield requested yet")

	th.RequestYield()
	err := s.SafepointPoll(th.ID)
	require.Error(t, err)
	var ge *runtime.GuestError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, runtime.KindInterrupted, ge.Kind)

	th.ClearYield()
	assert.NoError(t, s.SafepointPoll(th.ID), "poll after the requester clears the flag must succeed")
}

func TestSafepointPollUnknownThreadIsNoop(t *testing.T) {
	vm := vmcontext.New(nil)
	s := runtime.NewSupport(nil, vm, nil)
	assert.NoError(t, s.SafepointPoll(99), "a forgotten or never-registered thread id must not fault the caller")
}
