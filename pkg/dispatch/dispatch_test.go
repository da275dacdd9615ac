package dispatch_test

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmkit-go/vmkit/pkg/classmodel"
	"github.com/vmkit-go/vmkit/pkg/classreader"
	"github.com/vmkit-go/vmkit/pkg/dispatch"
)

// buildMinimalClass hand-encodes a field/method-free .class byte stream
// for (name, super), mirroring classmodel's own internal fixture builder
// at the reduced scope this package's tests need.
func buildMinimalClass(t *testing.T, name, super string) []byte {
	t.Helper()
	var pool [][2]interface{} // (tag, payload)
	utf8Index := map[string]uint16{}
	addUtf8 := func(s string) uint16 {
		if idx, ok := utf8Index[s]; ok {
			return idx
		}
		pool = append(pool, [2]interface{}{uint8(classreader.TagUtf8), s})
		idx := uint16(len(pool))
		utf8Index[s] = idx
		return idx
	}
	addClass := func(n string) uint16 {
		ni := addUtf8(n)
		pool = append(pool, [2]interface{}{uint8(classreader.TagClass), ni})
		return uint16(len(pool))
	}

	thisIdx := addClass(name)
	var superIdx uint16
	if super != "" {
		superIdx = addClass(super)
	}

	var buf bytes.Buffer
	w := func(vs ...interface{}) {
		for _, v := range vs {
			require.NoError(t, binary.Write(&buf, binary.BigEndian, v))
		}
	}
	w(uint32(0xCAFEBABE), uint16(0), uint16(61))
	w(uint16(len(pool) + 1))
	for _, e := range pool {
		tag := e[0].(uint8)
		switch tag {
		case classreader.TagUtf8:
			s := e[1].(string)
			w(uint8(classreader.TagUtf8), uint16(len(s)))
			buf.WriteString(s)
		case classreader.TagClass:
			w(uint8(classreader.TagClass), e[1].(uint16))
		}
	}
	w(uint16(0x0021), thisIdx, superIdx)
	w(uint16(0)) // interfaces
	w(uint16(0)) // fields
	w(uint16(0)) // methods
	w(uint16(0)) // class attributes
	return buf.Bytes()
}

func newLoader(t *testing.T, names ...string) *classmodel.Loader {
	byName := map[string][]byte{"java/lang/Object": buildMinimalClass(t, "java/lang/Object", "")}
	for _, n := range names {
		byName[n] = buildMinimalClass(t, n, "java/lang/Object")
	}
	return classmodel.NewLoader("test", nil, func(name string) (classreader.Cursor, error) {
		b, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("no fixture for %s", name)
		}
		return classreader.NewCursor(b), nil
	})
}

func TestNewEnvelopeIsEmpty(t *testing.T) {
	e := dispatch.NewEnvelope("f", "()I")
	assert.Nil(t, e.Head())
	assert.Empty(t, e.Observed())
}

// TestVirtualLookupErrorsOnUnimplementedMethod exercises spec.md §7's
// Linkage/Resolution row: a receiver class with no matching method
// surfaces classmodel's typed NoSuchMethod error through the resolver
// miss path instead of the call site ever observing a bogus node.
func TestVirtualLookupErrorsOnUnimplementedMethod(t *testing.T) {
	l := newLoader(t, "Plain")
	plain, err := l.Resolve("Plain")
	require.NoError(t, err)

	r := dispatch.NewResolver()
	e := dispatch.NewEnvelope("missing", "()V")
	_, err = r.VirtualLookup(e, plain)
	require.Error(t, err)
	assert.Empty(t, e.Observed(), "a failed resolution must not link a bogus node")
}
