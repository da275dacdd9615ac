// Command vmkit-n3 runs an N3 (.NET CLI) assembly through the same
// compiler/runtime pipeline as cmd/vmkit-j3. PE-CLI metadata parsing is
// an external collaborator (spec.md §1 Non-goals: "class-file/PE-CLI
// parsing internals"), so this launcher wires the assembly path and the
// MSCORLIB resolver through to pkg/classmodel.Loader's Source boundary
// and stops at the point a real PE-CLI front end would hand back parsed
// classes.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vmkit-go/vmkit/pkg/classmodel"
	"github.com/vmkit-go/vmkit/pkg/classreader"
)

func main() {
	log := logrus.New()

	root := &cobra.Command{
		Use:   "vmkit-n3 <assembly-path>",
		Short: "Load an N3 assembly (PE-CLI loading is not implemented; always fails)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(log, args[0])
		},
	}

	if err := root.Execute(); err != nil {
		log.WithError(err).Error("vmkit-n3 failed")
		os.Exit(1)
	}
}

// mscorlibSource resolves System.* references against MSCORLIB, the N3
// analogue of cmd/vmkit-j3's classpath directory.
func mscorlibSource(mscorlib string) classmodel.Source {
	return func(name string) (classreader.Cursor, error) {
		if mscorlib == "" {
			return nil, fmt.Errorf("resolving %s: MSCORLIB is not set", name)
		}
		buf, err := os.ReadFile(mscorlib)
		if err != nil {
			return nil, fmt.Errorf("reading MSCORLIB: %w", err)
		}
		return classreader.NewCursor(buf), nil
	}
}

func run(log *logrus.Logger, assemblyPath string) error {
	entry := log.WithField("assembly", assemblyPath)

	if _, err := os.ReadFile(assemblyPath); err != nil {
		return fmt.Errorf("reading %s: %w", assemblyPath, err)
	}

	loader := classmodel.NewLoader("n3-assembly", nil, mscorlibSource(os.Getenv("MSCORLIB")))
	if _, err := loader.Resolve("System.Object"); err != nil {
		entry.WithError(err).Warn("MSCORLIB resolution failed")
	}

	entry.Warn("PE-CLI metadata parsing is not implemented; an external front end must hand pkg/classmodel already-resolved N3 classes")
	return fmt.Errorf("vmkit-n3: PE-CLI assembly loading is not implemented")
}
