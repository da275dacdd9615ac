package runtime_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmkit-go/vmkit/pkg/runtime"
)

func TestArrayMultiNewAndLengthRoundTrip(t *testing.T) {
	s, _ := newSupport(t)
	arr, err := s.ArrayMultiNew([]int{3}, 0, 8)
	require.NoError(t, err)

	n, err := s.ArrayLength(arr)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestArrayMultiNewRejectsNegativeLength(t *testing.T) {
	s, _ := newSupport(t)
	_, err := s.ArrayMultiNew([]int{-1}, 0, 8)
	require.Error(t, err)
	var ge *runtime.GuestError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, runtime.KindNegativeSize, ge.Kind)
}

func TestIndexOutOfBoundsDetectsViolation(t *testing.T) {
	s, _ := newSupport(t)
	arr, err := s.ArrayMultiNew([]int{2}, 0, 8)
	require.NoError(t, err)

	assert.NoError(t, s.IndexOutOfBounds(arr, 0))
	assert.NoError(t, s.IndexOutOfBounds(arr, 1))

	err = s.IndexOutOfBounds(arr, 2)
	require.Error(t, err)
	var ge *runtime.GuestError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, runtime.KindBounds, ge.Kind)
}
