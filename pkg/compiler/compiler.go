// Package compiler implements spec.md §4.5's Compiler: the two-mode
// orchestrator (AOT and JIT) that shares pkg/translator and
// pkg/signature through the pkg/backend capability, rather than each
// mode owning its own lowering logic.
//
// Grounded on the teacher's direct interpretation
// (_examples/daimatz-gojvm/pkg/vm/vm.go executes bytecode immediately,
// one frame at a time); this package generalises that single mode into
// "translate once, then either emit constants ahead of time or
// materialise lazily behind a stub", per spec.md §4.5's two named
// pipelines.
package compiler

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/vmkit-go/vmkit/pkg/backend"
	"github.com/vmkit-go/vmkit/pkg/classmodel"
	"github.com/vmkit-go/vmkit/pkg/translator"
)

// Mode names spec.md §4.5's two compilation strategies.
type Mode int

const (
	ModeAOT Mode = iota
	ModeJIT
)

func (m Mode) String() string {
	if m == ModeAOT {
		return "aot"
	}
	return "jit"
}

// Compiler is the shared orchestrator both modes embed. It owns the
// single global IR lock spec.md §5 requires around any IR mutation
// ("compiler module/IR lock" in the Shared-resource rules), since the
// backend.Module this Compiler drives is not itself safe for concurrent
// building from multiple goroutines.
type Compiler struct {
	mod  backend.Module
	eng  backend.ExecutionEngine
	tr   *translator.Translator
	log  *logrus.Entry
	irMu sync.Mutex

	// byMethod caches translated-but-not-yet-materialised functions so a
	// method is never lowered twice, matching the teacher's
	// already-resolved-class cache in pkg/vm/classloader.go, generalised
	// from "cache resolved classes" to "cache lowered functions".
	byMethod map[*classmodel.Method]backend.FunctionBuilder
}

// New creates a Compiler over the given backend factory output.
func New(mod backend.Module, eng backend.ExecutionEngine, log *logrus.Entry) *Compiler {
	if log == nil {
		log = logrus.NewEntry(logrus.New())
	}
	return &Compiler{
		mod:      mod,
		eng:      eng,
		tr:       translator.New(mod),
		log:      log,
		byMethod: make(map[*classmodel.Method]backend.FunctionBuilder),
	}
}

// Lookup returns the backend function already translated for m, if
// any. A linker stage (or a test) uses this to resolve a method's
// compiled body by identity after CompileClass/Materialise has run,
// without needing the FunctionBuilder threaded back out of those
// calls.
func (co *Compiler) Lookup(m *classmodel.Method) (backend.FunctionBuilder, bool) {
	co.irMu.Lock()
	defer co.irMu.Unlock()
	fn, ok := co.byMethod[m]
	return fn, ok
}

// symbolFor names the backend function a compiled method lowers into,
// keeping names stable across AOT and JIT so a JIT-produced module and
// an AOT-produced one can both be handed the same inline-cache/VT-slot
// wiring code.
func symbolFor(c *classmodel.Class, m *classmodel.Method) string {
	return c.Name + "." + m.Name + m.Descriptor
}

// translate lowers m exactly once, holding the IR lock for the
// duration of the translator call (the only point that mutates the
// shared backend.Module).
func (co *Compiler) translate(c *classmodel.Class, m *classmodel.Method) (backend.FunctionBuilder, error) {
	co.irMu.Lock()
	defer co.irMu.Unlock()

	if fn, ok := co.byMethod[m]; ok {
		return fn, nil
	}
	fn, err := co.tr.Translate(c, m, symbolFor(c, m))
	if err != nil {
		return nil, err
	}
	co.byMethod[m] = fn
	return fn, nil
}
