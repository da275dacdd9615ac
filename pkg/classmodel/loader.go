package classmodel

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"github.com/vmkit-go/vmkit/pkg/classreader"
)

// Source resolves a class's raw bytes by fully-qualified name. A real J3
// or N3 front end supplies this; classmodel never reads files itself
// (spec.md §6: class-file/PE-CLI input is an external collaborator).
// Grounded on the teacher's JmodClassLoader/UserClassLoader
// (_examples/daimatz-gojvm/pkg/vm/classloader.go), generalised from "two
// concrete loader structs" into "one Loader whose Source is injected".
type Source func(name string) (classreader.Cursor, error)

// Loader is spec.md §3's ClassLoader: owner of a namespace of classes. A
// class's identity is (loader, fully-qualified-name).
type Loader struct {
	Name      string
	IsolateID int32
	Parent    *Loader
	Source    Source

	mu      sync.RWMutex
	classes map[string]*ClassRef
}

// NewLoader creates a Loader. parent may be nil for the bootstrap loader.
func NewLoader(name string, parent *Loader, source Source) *Loader {
	return &Loader{
		Name:    name,
		Parent:  parent,
		Source:  source,
		classes: make(map[string]*ClassRef),
	}
}

// ClassRef is spec.md §3's weak handle: a name-keyed entry in the
// loader's map, carrying the lifecycle state machine. "Resolving /
// Initialising is owned by exactly one thread and blocks all others" is
// implemented with a per-ref mutex and condition variable: other callers
// wait until the owner moves the ref out of Resolving or Initialising.
// Only Initialising records its owning thread (initOwner), so the
// owner's own re-entrant Initialise returns at once; resolution records
// no owner (ownerID/hasOwner are not set), and a re-entrant resolve of a
// ref still in Resolving waits like any other caller.
type ClassRef struct {
	loader *Loader
	name   string

	mu       sync.Mutex
	cond     *sync.Cond
	state    State
	class    *Class
	err      *ClassError
	ownerID  int64
	hasOwner bool

	// initOwner/hasInitOwner track which thread is running <clinit>, for
	// the re-entrance rule of spec.md §4.2's initialise(C).
	initOwner    int64
	hasInitOwner bool
}

// Name returns the fully-qualified class name; satisfies
// typemodel.ClassRefResolver.
func (r *ClassRef) Name() string { return r.name }

// Loader returns the owning loader.
func (r *ClassRef) Loader() *Loader { return r.loader }

// State returns the current lifecycle state.
func (r *ClassRef) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// refFor returns the ClassRef for name, creating a Hashed entry if this is
// the first time the loader has seen it. Never triggers resolution.
func (l *Loader) refFor(name string) *ClassRef {
	l.mu.RLock()
	if r, ok := l.classes[name]; ok {
		l.mu.RUnlock()
		return r
	}
	l.mu.RUnlock()

	l.mu.Lock()
	defer l.mu.Unlock()
	if r, ok := l.classes[name]; ok {
		return r
	}
	r := &ClassRef{loader: l, name: name, state: Hashed}
	r.cond = sync.NewCond(&r.mu)
	l.classes[name] = r
	return r
}

// Load parses and records a class's raw structure without resolving its
// layout (spec.md §3: Hashed → Loaded). Idempotent.
func (l *Loader) Load(name string) (*ClassRef, error) {
	r := l.refFor(name)

	r.mu.Lock()
	if r.state != Hashed {
		r.mu.Unlock()
		if r.state == Erroneous {
			return r, r.err
		}
		return r, nil
	}
	r.mu.Unlock()

	if l.Source == nil {
		return r, l.fail(r, newClassError(NoClassDefFound, name, "loader has no class source", nil))
	}
	cursor, err := l.Source(name)
	if err != nil {
		return r, l.fail(r, newClassError(NoClassDefFound, name, "", err))
	}
	cf, err := classreader.Parse(cursor)
	if err != nil {
		return r, l.fail(r, newClassError(ClassFormatError, name, "", err))
	}

	class, err := newClassFromFile(l, r, cf)
	if err != nil {
		return r, l.fail(r, newClassError(ClassFormatError, name, "building class from file", err))
	}

	r.mu.Lock()
	r.class = class
	r.state = Loaded
	r.cond.Broadcast()
	r.mu.Unlock()
	return r, nil
}

func (l *Loader) fail(r *ClassRef, ce *ClassError) error {
	r.mu.Lock()
	r.state = Erroneous
	r.err = ce
	r.cond.Broadcast()
	r.mu.Unlock()
	return ce
}

// Resolve loads (if needed) and resolves a class by name, running
// resolve_virtual/resolve_static, per spec.md §4.2. It does not run
// <clinit>; see Initialise.
func (l *Loader) Resolve(name string) (*Class, error) {
	r, err := l.Load(name)
	if err != nil {
		return nil, err
	}
	return l.resolveRef(r)
}

func (l *Loader) resolveRef(r *ClassRef) (*Class, error) {
	r.mu.Lock()
	switch r.state {
	case Resolved, Initialising, Ready:
		class := r.class
		r.mu.Unlock()
		return class, nil
	case Erroneous:
		err := r.err
		r.mu.Unlock()
		return nil, err
	case Resolving:
		for r.state == Resolving {
			r.cond.Wait()
		}
		class, err := r.class, r.err
		r.mu.Unlock()
		if err != nil {
			return nil, err
		}
		return class, nil
	}
	// state == Loaded: this goroutine performs the resolution.
	r.state = Resolving
	r.mu.Unlock()

	class := r.class
	if err := resolveVirtual(class); err != nil {
		return nil, l.fail(r, classErrorFrom(r.name, err))
	}
	resolveStatic(class)

	r.mu.Lock()
	r.state = Resolved
	r.cond.Broadcast()
	r.mu.Unlock()
	return class, nil
}

func classErrorFrom(name string, err error) *ClassError {
	if ce, ok := err.(*ClassError); ok {
		return ce
	}
	return newClassError(LinkageError, name, "", errors.WithStack(err))
}

// LoadClass is the minimal ClassLoader-shaped entry point other packages
// reach for when they only need a fully-resolved (but not necessarily
// initialised) class, mirroring the teacher's ClassLoader.LoadClass
// signature (_examples/daimatz-gojvm/pkg/vm/classloader.go) while doing
// the full resolve_virtual/resolve_static work instead of a bare parse.
func (l *Loader) LoadClass(name string) (*Class, error) {
	return l.Resolve(name)
}

// RefFor exposes refFor for callers (e.g. pkg/compiler) that need to hold
// a ClassRef before a class is necessarily loaded, such as building an
// unresolved stub target.
func (l *Loader) RefFor(name string) *ClassRef { return l.refFor(name) }

// String implements a compact debug representation.
func (r *ClassRef) String() string {
	return fmt.Sprintf("%s/%s@%s", r.loader.Name, r.name, r.State())
}
