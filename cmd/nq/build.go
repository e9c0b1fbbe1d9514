package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nqlang/nq/compiler"
	"github.com/nqlang/nq/manifest"
	"github.com/nqlang/nq/vm"
)

// handleBuildCommand processes the `nq build` subcommand.
// Usage:
//
//	nq build                  # entry from nq.toml -> [image] output
//	nq build fib.nq           # ./fib.nqc
//	nq build -o out.nqc fib.nq
func handleBuildCommand(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("nq build", flag.ContinueOnError)
	fs.SetOutput(stderr)
	output := fs.String("o", "", "Output image path")
	vocabPath := fs.String("vocab", "", "Vocabulary file (TOML)")
	includeSource := fs.Bool("include-source", false, "Embed the source text in the image")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() > 1 {
		fmt.Fprintln(stderr, "Error: nq build takes at most one source file")
		return 2
	}

	var (
		srcPath string
		vocab   *compiler.Vocabulary
		err     error
	)
	outPath := *output

	if fs.NArg() == 1 {
		srcPath = fs.Arg(0)
		vocab, err = loadVocabulary(*vocabPath)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		if outPath == "" {
			outPath = strings.TrimSuffix(srcPath, filepath.Ext(srcPath)) + vm.ImageExt
		}
	} else {
		// Load manifest
		m, err := manifest.FindAndLoad(".")
		if err != nil {
			fmt.Fprintf(stderr, "Error loading manifest: %v\n", err)
			return 1
		}
		if m == nil {
			fmt.Fprintf(stderr, "Error: no %s found and no source file given\n", manifest.FileName)
			return 1
		}
		srcPath, err = m.EntryPath()
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		if *vocabPath != "" {
			vocab, err = loadVocabulary(*vocabPath)
		} else {
			vocab, err = m.LoadVocabulary()
		}
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		if outPath == "" {
			outPath = m.ImagePath()
		}
		*includeSource = *includeSource || m.Image.IncludeSource
	}

	img, err := buildImage(srcPath, vocab, *includeSource)
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", srcPath, err)
		return 1
	}
	if err := writeImage(outPath, img); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "wrote %s (%d instructions, id %s)\n", outPath, len(img.Code), img.ID)
	return 0
}

// buildImage compiles the source file at path into an image.
func buildImage(path string, vocab *compiler.Vocabulary, includeSource bool) (*vm.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	prog, err := compileSource(string(data), vocab)
	if err != nil {
		return nil, err
	}
	source := ""
	if includeSource {
		source = prog.source
	}
	return vm.NewImage(source, vocab.Name, prog.code), nil
}

// writeImage encodes img to path, creating parent directories as needed.
func writeImage(path string, img *vm.Image) error {
	data, err := vm.MarshalImage(img)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write image: %w", err)
	}
	log.Infof("wrote image %s (%d bytes)", path, len(data))
	return nil
}
