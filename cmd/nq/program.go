package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/nqlang/nq/compiler"
	"github.com/nqlang/nq/vm"
)

// program is a loaded source file or image, ready to run.
type program struct {
	source string
	tree   *compiler.Block // nil for images
	code   []vm.Instruction
	image  *vm.Image // nil for source files
}

// loadVocabulary loads the vocabulary at path, or the default one if path
// is empty.
func loadVocabulary(path string) (*compiler.Vocabulary, error) {
	if path == "" {
		return compiler.DefaultVocabulary(), nil
	}
	return compiler.LoadVocabulary(path)
}

// loadProgram reads path as an image if it carries the image magic or the
// image extension, and as nq source otherwise.
func loadProgram(path string, vocab *compiler.Vocabulary) (*program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.HasSuffix(path, vm.ImageExt) || vm.IsImage(data) {
		img, err := vm.UnmarshalImage(data)
		if err != nil {
			return nil, fmt.Errorf("load image: %w", err)
		}
		log.Debugf("loaded image %s (%d instructions)", img.ID, len(img.Code))
		return &program{source: img.Source, code: img.Code, image: img}, nil
	}
	return compileSource(string(data), vocab)
}

// compileSource parses and lowers src.
func compileSource(src string, vocab *compiler.Vocabulary) (*program, error) {
	tree, err := compiler.ParseSource(src, vocab.Words)
	if err != nil {
		return nil, err
	}
	return &program{source: src, tree: tree, code: compiler.Lower(tree)}, nil
}
