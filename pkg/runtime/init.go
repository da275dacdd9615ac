package runtime

import (
	"github.com/pkg/errors"

	"github.com/vmkit-go/vmkit/pkg/classmodel"
)

// ForceInitialisationCheck implements spec.md §4.6's hot-path check: the
// fast path the translator emits before a getstatic/putstatic/new/
// invokestatic (pkg/translator's lowerFieldAccess and lowerInvoke call
// this symbol first, per the teacher's ensureInitialized fast-path
// check in _examples/daimatz-gojvm/pkg/vm/vm.go).
func (s *Support) ForceInitialisationCheck(c *classmodel.Class) bool {
	return classmodel.ForceInitialisationCheck(c)
}

// InitialiseClass implements spec.md §4.6's initialise_class: the slow
// path ForceInitialisationCheck falls through to, running <clinit>
// exactly once under c's per-class lock.
//
// run executes the class's static initialiser bytecode; callers thread
// in whatever wraps pkg/compiler's materialised StaticInitializer
// function, so this package never itself depends on pkg/compiler
// (keeping the dependency direction Compiler -> Runtime, not the
// reverse, as spec.md §2's data flow requires).
func (s *Support) InitialiseClass(c *classmodel.Class, threadID int64, run classmodel.ClinitRunner) error {
	if err := classmodel.Initialise(c, threadID, run); err != nil {
		return errors.Wrapf(err, "initialise_class(%s)", c.Name)
	}
	return nil
}
