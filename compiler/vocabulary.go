package compiler

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// ---------------------------------------------------------------------------
// Vocabulary: word -> mark code configuration
// ---------------------------------------------------------------------------

//go:embed default_vocabulary.toml
var defaultVocabularyTOML string

// DefaultVocabularyName is the parent name that refers to the embedded
// default vocabulary.
const DefaultVocabularyName = "default"

// maxSymbolLen bounds the length of punctuation words.
const maxSymbolLen = 3

// Vocabulary assigns mark codes to words. Words are either runs of letters
// (matched case-insensitively) or short runs of punctuation.
type Vocabulary struct {
	Name  string
	Words map[string]int
}

type vocabularyFile struct {
	Name   string         `toml:"name"`
	Parent string         `toml:"parent"`
	Words  map[string]int `toml:"words"`
}

// DefaultVocabulary returns a fresh copy of the embedded default vocabulary.
func DefaultVocabulary() *Vocabulary {
	v, err := ParseVocabulary([]byte(defaultVocabularyTOML), "")
	if err != nil {
		panic(fmt.Sprintf("compiler: embedded vocabulary: %v", err))
	}
	return v
}

// LoadVocabulary reads a vocabulary file. A parent named in the file is
// loaded first, relative to the file's directory, and the child's words
// override it.
func LoadVocabulary(path string) (*Vocabulary, error) {
	return loadVocabulary(path, map[string]bool{})
}

func loadVocabulary(path string, seen map[string]bool) (*Vocabulary, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}
	if seen[abs] {
		return nil, fmt.Errorf("vocabulary %s: parent cycle", path)
	}
	seen[abs] = true

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	var f vocabularyFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if f.Name == "" {
		f.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	var parent *Vocabulary
	switch f.Parent {
	case "":
	case DefaultVocabularyName:
		parent = DefaultVocabulary()
	default:
		parentPath := f.Parent
		if filepath.Ext(parentPath) != ".toml" {
			parentPath += ".toml"
		}
		if !filepath.IsAbs(parentPath) {
			parentPath = filepath.Join(filepath.Dir(path), parentPath)
		}
		parent, err = loadVocabulary(parentPath, seen)
		if err != nil {
			return nil, fmt.Errorf("vocabulary %s: %w", f.Name, err)
		}
	}
	return build(f, parent)
}

// ParseVocabulary parses vocabulary TOML. Only the "default" parent can be
// resolved without a file system; any other parent is an error.
func ParseVocabulary(data []byte, name string) (*Vocabulary, error) {
	var f vocabularyFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse error in vocabulary: %w", err)
	}
	if f.Name == "" {
		f.Name = name
	}
	var parent *Vocabulary
	switch f.Parent {
	case "":
	case DefaultVocabularyName:
		parent = DefaultVocabulary()
	default:
		return nil, fmt.Errorf("vocabulary %s: cannot resolve parent %q", f.Name, f.Parent)
	}
	return build(f, parent)
}

func build(f vocabularyFile, parent *Vocabulary) (*Vocabulary, error) {
	v := &Vocabulary{Name: f.Name, Words: map[string]int{}}
	if parent != nil {
		for w, c := range parent.Words {
			v.Words[w] = c
		}
	}
	for _, w := range sortedKeys(f.Words) {
		code := f.Words[w]
		if err := validateWord(w, code); err != nil {
			return nil, fmt.Errorf("vocabulary %s: %w", f.Name, err)
		}
		v.Words[normalizeWord(w)] = code
	}
	return v, nil
}

func validateWord(w string, code int) error {
	if MarkName(code) == "" {
		return fmt.Errorf("word %q: invalid mark code %d", w, code)
	}
	switch {
	case w == "":
		return fmt.Errorf("empty word")
	case isLetterWord(w):
		if _, ok := keywords[strings.ToLower(w)]; ok {
			return fmt.Errorf("word %q: shadows a keyword", w)
		}
	case isSymbolWord(w):
		if len(w) > maxSymbolLen {
			return fmt.Errorf("word %q: longer than %d symbols", w, maxSymbolLen)
		}
	default:
		return fmt.Errorf("word %q: must be all letters or all symbols", w)
	}
	return nil
}

func normalizeWord(w string) string {
	if isLetterWord(w) {
		return strings.ToLower(w)
	}
	return w
}

func isLetterWord(w string) bool {
	for _, r := range w {
		if !isLetter(r) {
			return false
		}
	}
	return w != ""
}

func isSymbolWord(w string) bool {
	for _, r := range w {
		if !isSymbolChar(r) {
			return false
		}
	}
	return w != ""
}

// String lists the vocabulary one word per line, sorted by word.
func (v *Vocabulary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "vocabulary %s\n", v.Name)
	for _, w := range sortedKeys(v.Words) {
		fmt.Fprintf(&b, "  %-6s %2d %s\n", w, v.Words[w], MarkName(v.Words[w]))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
