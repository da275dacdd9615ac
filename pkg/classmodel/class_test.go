package classmodel

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmkit-go/vmkit/pkg/classreader"
)

// newFixtureLoader builds a Loader whose Source serves a fixed set of
// classFixtures from memory, mirroring the teacher's test pattern of
// driving the loader from byte slices rather than the filesystem
// (_examples/daimatz-gojvm/pkg/vm/classloader_test.go).
func newFixtureLoader(t *testing.T, fixtures ...classFixture) *Loader {
	t.Helper()
	byName := make(map[string][]byte, len(fixtures))
	for _, f := range fixtures {
		byName[f.name] = buildClassBytes(t, f)
	}
	return NewLoader("test", nil, func(name string) (classreader.Cursor, error) {
		b, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("no fixture for %s", name)
		}
		return classreader.NewCursor(b), nil
	})
}

func TestResolveVirtualFieldOffsetsMonotonic(t *testing.T) {
	l := newFixtureLoader(t,
		classFixture{
			name: "java/lang/Object",
		},
		classFixture{
			name:  "Base",
			super: "java/lang/Object",
			fields: []fixtureField{
				{name: "a", descriptor: "I"},
				{name: "b", descriptor: "J"},
			},
		},
		classFixture{
			name:  "Derived",
			super: "Base",
			fields: []fixtureField{
				{name: "c", descriptor: "I"},
			},
		},
	)

	base, err := l.Resolve("Base")
	require.NoError(t, err)
	derived, err := l.Resolve("Derived")
	require.NoError(t, err)

	// Inherited fields keep their parent-assigned offsets: a subclass's own
	// fields start only after the parent's layout.
	assert.GreaterOrEqual(t, base.InstanceSize, ObjectHeaderSize)
	for _, f := range base.VirtualFields {
		assert.GreaterOrEqual(t, f.Offset, ObjectHeaderSize)
	}
	assert.GreaterOrEqual(t, derived.VirtualFields[0].Offset, base.InstanceSize)
	assert.Greater(t, derived.InstanceSize, base.InstanceSize)
}

func TestResolveVirtualOverridesAndDisplay(t *testing.T) {
	l := newFixtureLoader(t,
		classFixture{name: "java/lang/Object"},
		classFixture{
			name:  "Base",
			super: "java/lang/Object",
			methods: []fixtureMethod{
				{name: "greet", descriptor: "()V"},
			},
		},
		classFixture{
			name:  "Derived",
			super: "Base",
			methods: []fixtureMethod{
				{name: "greet", descriptor: "()V"},
			},
		},
	)

	base, err := l.Resolve("Base")
	require.NoError(t, err)
	derived, err := l.Resolve("Derived")
	require.NoError(t, err)

	require.Len(t, base.VT.Methods, 1)
	require.Len(t, derived.VT.Methods, 1)
	assert.NotSame(t, base.VT.Methods[0], derived.VT.Methods[0], "derived must override, not reuse, the base slot")
	assert.Equal(t, base.VT.Methods[0].VTOffset, derived.VT.Methods[0].VTOffset)

	assert.Equal(t, base.Depth+1, derived.Depth)
	assert.Contains(t, derived.Display, derived)
	assert.Contains(t, derived.Display, base)
}

func TestSubClassOfReflexiveAndTransitive(t *testing.T) {
	l := newFixtureLoader(t,
		classFixture{name: "java/lang/Object"},
		classFixture{name: "A", super: "java/lang/Object"},
		classFixture{name: "B", super: "A"},
		classFixture{name: "C", super: "B"},
	)

	a, err := l.Resolve("A")
	require.NoError(t, err)
	b, err := l.Resolve("B")
	require.NoError(t, err)
	c, err := l.Resolve("C")
	require.NoError(t, err)
	obj, err := l.Resolve("java/lang/Object")
	require.NoError(t, err)

	assert.True(t, SubClassOf(c, c), "reflexive")
	assert.True(t, SubClassOf(c, b))
	assert.True(t, SubClassOf(c, a), "transitive")
	assert.True(t, SubClassOf(c, obj))
	assert.False(t, SubClassOf(a, c), "antisymmetric")
	assert.False(t, SubClassOf(obj, c))
}

func TestIMTDispatchThroughInterface(t *testing.T) {
	l := newFixtureLoader(t,
		classFixture{name: "java/lang/Object"},
		classFixture{
			name:  "Runnable",
			iface: true,
			methods: []fixtureMethod{
				{name: "run", descriptor: "()V", abstract: true},
			},
		},
		classFixture{
			name:       "Task",
			super:      "java/lang/Object",
			interfaces: []string{"Runnable"},
			methods: []fixtureMethod{
				{name: "run", descriptor: "()V"},
			},
		},
	)

	task, err := l.Resolve("Task")
	require.NoError(t, err)

	m := task.VT.IMT.Lookup("run", "()V")
	require.NotNil(t, m)
	assert.Equal(t, "Task", m.Class.Name)

	assert.Nil(t, task.VT.IMT.Lookup("missing", "()V"))
}

func TestSubClassOfInterfaceTarget(t *testing.T) {
	l := newFixtureLoader(t,
		classFixture{name: "java/lang/Object"},
		classFixture{
			name:  "Runnable",
			iface: true,
			methods: []fixtureMethod{
				{name: "run", descriptor: "()V", abstract: true},
			},
		},
		classFixture{
			name:       "Task",
			super:      "java/lang/Object",
			interfaces: []string{"Runnable"},
			methods: []fixtureMethod{
				{name: "run", descriptor: "()V"},
			},
		},
		classFixture{name: "Other", super: "java/lang/Object"},
	)

	task, err := l.Resolve("Task")
	require.NoError(t, err)
	runnable, err := l.Resolve("Runnable")
	require.NoError(t, err)
	other, err := l.Resolve("Other")
	require.NoError(t, err)

	assert.True(t, SubClassOf(task, runnable), "Task directly implements Runnable")
	assert.True(t, AssignableFrom(runnable, task))
	assert.True(t, InstanceOf(task, runnable))
	assert.False(t, SubClassOf(other, runnable), "Other does not implement Runnable")
}

func TestLookupMethodWalksSuperclassThenInterfaces(t *testing.T) {
	l := newFixtureLoader(t,
		classFixture{name: "java/lang/Object"},
		classFixture{
			name:  "Comparable",
			iface: true,
			methods: []fixtureMethod{
				{name: "compareTo", descriptor: "(I)I", abstract: true},
			},
		},
		classFixture{
			name:       "Base",
			super:      "java/lang/Object",
			interfaces: []string{"Comparable"},
			methods: []fixtureMethod{
				{name: "compareTo", descriptor: "(I)I"},
			},
		},
		classFixture{
			name:  "Derived",
			super: "Base",
		},
	)

	derived, err := l.Resolve("Derived")
	require.NoError(t, err)

	m, err := LookupMethod(derived, "compareTo", "(I)I", false)
	require.NoError(t, err)
	assert.Equal(t, "Base", m.Class.Name)

	_, err = LookupMethod(derived, "nope", "()V", false)
	assert.Error(t, err)
	ce, ok := err.(*ClassError)
	require.True(t, ok)
	assert.Equal(t, NoSuchMethod, ce.Kind)
}

func TestInitialiseRunsOnceAndIsIdempotent(t *testing.T) {
	l := newFixtureLoader(t,
		classFixture{name: "java/lang/Object"},
		classFixture{name: "Config", super: "java/lang/Object"},
	)

	class, err := l.Resolve("Config")
	require.NoError(t, err)

	var runs int32
	runner := func(c *Class) error {
		atomic.AddInt32(&runs, 1)
		return nil
	}

	var wg sync.WaitGroup
	for i := int64(0); i < 8; i++ {
		wg.Add(1)
		go func(tid int64) {
			defer wg.Done()
			assert.NoError(t, Initialise(class, tid, runner))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&runs), "clinit must run exactly once under concurrent callers")
	assert.True(t, ForceInitialisationCheck(class))
}

func TestInitialiseMarksErroneousOnFailure(t *testing.T) {
	l := newFixtureLoader(t,
		classFixture{name: "java/lang/Object"},
		classFixture{name: "Broken", super: "java/lang/Object"},
	)

	class, err := l.Resolve("Broken")
	require.NoError(t, err)

	boom := fmt.Errorf("clinit exploded")
	// Only Broken's initialiser fails; its superclass initialises normally.
	err = Initialise(class, 1, func(c *Class) error {
		if c == class {
			return boom
		}
		return nil
	})
	require.Error(t, err)

	// A second call must see the stored failure without re-running.
	err2 := Initialise(class, 2, func(c *Class) error {
		t.Fatal("clinit must not re-run once Erroneous")
		return nil
	})
	require.Error(t, err2)
	assert.False(t, ForceInitialisationCheck(class))
}

func TestLoadUnknownClassIsNoClassDefFound(t *testing.T) {
	l := newFixtureLoader(t, classFixture{name: "java/lang/Object"})
	_, err := l.Resolve("Missing")
	require.Error(t, err)
	ce, ok := err.(*ClassError)
	require.True(t, ok)
	assert.Equal(t, NoClassDefFound, ce.Kind)
}
