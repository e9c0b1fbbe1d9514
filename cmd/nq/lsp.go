package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/tliron/commonlog"

	"github.com/nqlang/nq/compiler"
	"github.com/nqlang/nq/manifest"
	"github.com/nqlang/nq/server"
)

// handleLSPCommand processes the `nq lsp` subcommand. The vocabulary comes
// from -vocab, else from the nearest nq.toml, else the default.
func handleLSPCommand(args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("nq lsp", flag.ContinueOnError)
	fs.SetOutput(stderr)
	vocabPath := fs.String("vocab", "", "Vocabulary file (TOML)")
	verbosity := fs.Int("v", 0, "Log verbosity")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	// stdout carries the protocol; the simple backend logs to stderr.
	commonlog.Configure(*verbosity, nil)

	vocab, err := lspVocabulary(*vocabPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	log.Infof("starting language server (vocabulary %s)", vocab.Name)
	if err := server.NewLSP(vocab).Run(); err != nil {
		fmt.Fprintf(stderr, "LSP server error: %v\n", err)
		return 1
	}
	return 0
}

func lspVocabulary(path string) (*compiler.Vocabulary, error) {
	if path != "" {
		return loadVocabulary(path)
	}
	m, err := manifest.FindAndLoad(".")
	if err != nil {
		return nil, err
	}
	if m == nil {
		return compiler.DefaultVocabulary(), nil
	}
	return m.LoadVocabulary()
}
