package main

import (
	"fmt"
	"io"
	"os"

	"github.com/nqlang/nq/compiler"
	"github.com/nqlang/nq/manifest"
	"github.com/nqlang/nq/vm"
)

// handleCheckCommand processes the `nq check` subcommand: it runs every
// [[check]] entry in nq.toml with its scripted input and requires the
// default output port to receive exactly the expected values.
func handleCheckCommand(args []string, stdout, stderr io.Writer) int {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}

	m, err := manifest.FindAndLoad(dir)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading manifest: %v\n", err)
		return 1
	}
	if m == nil {
		fmt.Fprintf(stderr, "Error: no %s found\n", manifest.FileName)
		return 1
	}
	if len(m.Checks) == 0 {
		fmt.Fprintf(stdout, "%s: no checks configured\n", m.Project.Name)
		return 0
	}

	vocab, err := m.LoadVocabulary()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	failed := 0
	for _, c := range m.Checks {
		if err := runCheck(m, c, vocab); err != nil {
			failed++
			fmt.Fprintf(stdout, "FAIL %s: %v\n", c.File, err)
			continue
		}
		fmt.Fprintf(stdout, "ok   %s\n", c.File)
	}

	if failed > 0 {
		fmt.Fprintf(stdout, "%d of %d checks failed\n", failed, len(m.Checks))
		return 1
	}
	return 0
}

// runCheck compiles and runs one check.
func runCheck(m *manifest.Manifest, c manifest.Check, vocab *compiler.Vocabulary) error {
	data, err := os.ReadFile(m.CheckPath(c))
	if err != nil {
		return err
	}
	prog, err := compileSource(string(data), vocab)
	if err != nil {
		return err
	}
	expected, err := c.ExpectValues()
	if err != nil {
		return err
	}

	out := vm.NewExpectQueue(expected...)
	machine := vm.New(
		vm.WithOutput(vm.DefaultPort, out),
		vm.WithInput(vm.DefaultPort, vm.NewQueueInput(c.InputValues()...)),
	)
	if _, err := machine.Run(prog.code); err != nil {
		return err
	}
	if rest := out.Remaining(); len(rest) > 0 {
		return fmt.Errorf("%d expected values never delivered (next %s)", len(rest), rest[0])
	}
	return nil
}
