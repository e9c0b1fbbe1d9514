// nq CLI - compile, inspect and run nq programs
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/nqlang/nq/compiler"
	"github.com/nqlang/nq/vm"

	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("nq.cli")

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run is main without the process exit, so tests can drive the CLI.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) > 0 {
		switch args[0] {
		case "build":
			return handleBuildCommand(args[1:], stdout, stderr)
		case "check":
			return handleCheckCommand(args[1:], stdout, stderr)
		case "lsp":
			return handleLSPCommand(args[1:], stderr)
		}
	}

	fs := flag.NewFlagSet("nq", flag.ContinueOnError)
	fs.SetOutput(stderr)
	showTokens := fs.Bool("tokens", false, "Print the token stream")
	showTree := fs.Bool("tree", false, "Print the statement tree")
	showIR := fs.Bool("ir", false, "Print the lowered instructions")
	vocabPath := fs.String("vocab", "", "Vocabulary file (TOML); default vocabulary if empty")
	verbosity := fs.Int("v", 0, "Log verbosity (0 notice, 1 info, 2 debug)")
	trace := fs.Bool("trace", false, "Log every executed instruction")
	input := fs.String("input", "none", "Default input port: none or console")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: nq [options] file.nq|file.nqc\n")
		fmt.Fprintf(stderr, "       nq build [-o out] [-vocab path] [file.nq]\n")
		fmt.Fprintf(stderr, "       nq check [dir]\n")
		fmt.Fprintf(stderr, "       nq lsp [-vocab path]\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  nq fib.nq                 # Run a program\n")
		fmt.Fprintf(stderr, "  nq -ir -tree fib.nq       # Show the tree and IR, then run\n")
		fmt.Fprintf(stderr, "  nq -input console echo.nq # Read \"in\" values from stdin\n")
		fmt.Fprintf(stderr, "  nq build -o fib.nqc fib.nq && nq fib.nqc\n")
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}

	level := *verbosity
	if *trace && level < 2 {
		level = 2
	}
	commonlog.Configure(level, nil)

	inputPort, err := inputPortFor(*input, stdin, stdout)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	path := fs.Arg(0)
	vocab, err := loadVocabulary(*vocabPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	prog, err := loadProgram(path, vocab)
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", path, err)
		return 1
	}

	if *showTokens {
		if prog.image != nil && prog.source == "" {
			fmt.Fprintf(stderr, "%s: image carries no source\n", path)
		} else {
			for _, tok := range compiler.Tokenize(prog.source, vocab.Words) {
				fmt.Fprintf(stdout, "%d:%d\t%s\n", tok.Pos.Line, tok.Pos.Column, tok)
			}
		}
	}
	if *showTree {
		if prog.tree == nil {
			fmt.Fprintf(stderr, "%s: image carries no source\n", path)
		} else {
			fmt.Fprintln(stdout, compiler.FormatTree(prog.tree))
		}
	}
	if *showIR {
		if len(prog.code) > 0 {
			fmt.Fprintln(stdout, vm.Disassemble(prog.code))
		}
	}

	machine := vm.New(
		vm.WithOutput(vm.DefaultPort, vm.NewConsoleOutput(stdout)),
		vm.WithInput(vm.DefaultPort, inputPort),
		vm.WithTrace(*trace),
	)
	results, err := machine.Run(prog.code)
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", path, err)
		return 1
	}
	if len(results) > 0 {
		parts := make([]string, len(results))
		for i, r := range results {
			parts[i] = r.String()
		}
		log.Infof("%s left %s", path, strings.Join(parts, " "))
	}
	return 0
}

func inputPortFor(name string, stdin io.Reader, prompt io.Writer) (vm.InputPort, error) {
	switch name {
	case "none":
		return vm.NopInput{}, nil
	case "console":
		return vm.NewConsoleInput(stdin, prompt), nil
	}
	return nil, fmt.Errorf("unknown input %q (want none or console)", name)
}
