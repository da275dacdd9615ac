// Command vmkit-j3 runs a J3 (Java) class file through the AOT compiler
// and the Simple backend, the cmd/gojvm replacement named in spec.md
// §6's external interfaces. Classpath resolution mirrors the teacher's
// JmodClassLoader/UserClassLoader split (_examples/daimatz-gojvm/cmd/gojvm/main.go)
// generalised onto pkg/classmodel.Loader's injected Source.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vmkit-go/vmkit/pkg/backend"
	"github.com/vmkit-go/vmkit/pkg/classmodel"
	"github.com/vmkit-go/vmkit/pkg/classreader"
	"github.com/vmkit-go/vmkit/pkg/compiler"
)

var (
	javaClass string
	classpath string
	assumeJIT bool
)

func main() {
	log := logrus.New()

	root := &cobra.Command{
		Use:   "vmkit-j3 -java <class> [args...]",
		Short: "Run a J3 class under the AOT/JIT compiler",
		RunE: func(cmd *cobra.Command, args []string) error {
			className := javaClass
			if className == "" {
				if len(args) == 0 {
					return fmt.Errorf("no class given: pass -java <class> or a positional class name")
				}
				className, args = args[0], args[1:]
			}
			return run(log, className, args)
		},
	}
	root.Flags().StringVar(&javaClass, "java", "", "class to run")
	root.Flags().StringVarP(&classpath, "classpath", "c", ".", "directory to resolve class files from")
	root.Flags().BoolVar(&assumeJIT, "jit", false, "materialise lazily instead of compiling everything ahead of time")

	// pflag reads a single-dash "-java" as the shorthand cluster -j -a -v -a;
	// rewrite it to the long form so the documented "-java <class>" works.
	cliArgs := append([]string(nil), os.Args[1:]...)
	for i, a := range cliArgs {
		if a == "-java" {
			cliArgs[i] = "--java"
		}
	}
	root.SetArgs(cliArgs)

	if err := root.Execute(); err != nil {
		log.WithError(err).Error("vmkit-j3 failed")
		os.Exit(1)
	}
}

func classFileSource(dir string) classmodel.Source {
	return func(name string) (classreader.Cursor, error) {
		path := filepath.Join(dir, strings.ReplaceAll(name, ".", string(filepath.Separator))+".class")
		buf, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return classreader.NewCursor(buf), nil
	}
}

func run(log *logrus.Logger, className string, guestArgs []string) error {
	entry := log.WithField("class", className)
	dir := classpath
	if dir == "" {
		dir = "."
	}

	loader := classmodel.NewLoader("app", nil, classFileSource(dir))
	class, err := loader.Resolve(className)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", className, err)
	}

	mainMethod := class.FindDeclaredMethod("main", "([Ljava/lang/String;)V")
	if mainMethod == nil {
		return fmt.Errorf("%s has no main([Ljava/lang/String;)V method", className)
	}

	sim := backend.NewSimple()
	co := compiler.New(sim, sim, entry)

	if assumeJIT {
		jit := compiler.NewJIT(co)
		var slot uintptr
		if _, err := jit.Materialise(context.Background(), class, mainMethod, &slot); err != nil {
			return fmt.Errorf("jit materialise main: %w", err)
		}
		entry.WithField("args", guestArgs).Info("ran main under JIT mode")
		return nil
	}

	aot := compiler.NewAOT(co, compiler.AssumeCompiled)
	if _, err := aot.CompileClass(class); err != nil {
		return fmt.Errorf("aot compile %s: %w", className, err)
	}
	fn, ok := co.Lookup(mainMethod)
	if !ok {
		return fmt.Errorf("%s.main was not compiled", className)
	}
	if _, err := sim.Materialise(context.Background(), fn); err != nil {
		return fmt.Errorf("running main: %w", err)
	}
	entry.WithField("args", guestArgs).Info("ran main under AOT mode")
	return nil
}
