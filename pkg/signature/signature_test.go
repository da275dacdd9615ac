package signature

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmkit-go/vmkit/pkg/backend"
	"github.com/vmkit-go/vmkit/pkg/typemodel"
)

func intSig() *typemodel.Signature {
	return &typemodel.Signature{
		Params: []*typemodel.TypeDescriptor{typemodel.NewPrimitive(typemodel.Int)},
		Return: typemodel.NewPrimitive(typemodel.Int),
	}
}

func TestLowerVirtualPrependsReceiver(t *testing.T) {
	sim := backend.NewSimple()
	ft, err := Lower(sim, intSig(), KindVirtual)
	require.NoError(t, err)
	require.Len(t, ft.Params, 2, "this + one int param")
	assert.Equal(t, "*i8", ft.Params[0].String())
}

func TestLowerStaticOmitsReceiver(t *testing.T) {
	sim := backend.NewSimple()
	ft, err := Lower(sim, intSig(), KindStatic)
	require.NoError(t, err)
	require.Len(t, ft.Params, 1)
}

func TestLowerNativeIndirectsReferenceArgs(t *testing.T) {
	sim := backend.NewSimple()
	sig := &typemodel.Signature{
		Params: []*typemodel.TypeDescriptor{typemodel.NewReference(stubResolver{"java/lang/String"})},
		Return: typemodel.NewReference(stubResolver{"java/lang/Object"}),
	}
	ft, err := Lower(sim, sig, KindNative)
	require.NoError(t, err)
	require.Len(t, ft.Params, 3, "env, class_or_receiver, one handle")
	assert.Equal(t, "*i8", ft.Return.String(), "reference return becomes a handle, not a raw pointer type distinction in Simple")
}

func TestLowerCallBufFixedShape(t *testing.T) {
	sim := backend.NewSimple()
	ft, err := Lower(sim, intSig(), KindCallBuf)
	require.NoError(t, err)
	assert.Len(t, ft.Params, 3)
}

func TestGenerateStubFallsThroughToNullOnMiss(t *testing.T) {
	sim := backend.NewSimple()
	sim.RegisterSymbol(string(StubVirtual.resolverSymbol()), func(args []int64) int64 { return 0 })

	ft, err := Lower(sim, intSig(), KindVirtual)
	require.NoError(t, err)

	fn := GenerateStub(sim, "stub_test", ft, StubVirtual)
	addr, err := sim.Materialise(nil, fn)
	require.NoError(t, err)
	assert.Equal(t, uintptr(0), addr, "resolver miss falls through to the null-return slot")
}

type stubResolver struct{ name string }

func (s stubResolver) Name() string { return s.name }
