// Package manifest handles nq.toml project configuration.
package manifest

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/nqlang/nq/compiler"
	"github.com/nqlang/nq/vm"
)

// FileName is the manifest file looked up in a project directory.
const FileName = "nq.toml"

// SourceExt is the extension of nq source files.
const SourceExt = ".nq"

// Manifest represents an nq.toml project configuration.
type Manifest struct {
	Project    Project     `toml:"project"`
	Source     Source      `toml:"source"`
	Vocabulary string      `toml:"vocabulary"`
	Image      ImageConfig `toml:"image"`
	Checks     []Check     `toml:"check"`

	// Dir is the directory containing the nq.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Source configures source file locations.
type Source struct {
	Dirs  []string `toml:"dirs"`
	Entry string   `toml:"entry"`
}

// ImageConfig configures image output.
type ImageConfig struct {
	Output        string `toml:"output"`
	IncludeSource bool   `toml:"include-source"`
}

// Check runs one source file with scripted input and requires its default
// output port to receive exactly Expect, in order. Expect entries are
// integers, booleans or nested arrays (tuples).
type Check struct {
	File   string  `toml:"file"`
	Expect []any   `toml:"expect"`
	Input  []int64 `toml:"input"`
}

// Load parses an nq.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	// Defaults
	if len(m.Source.Dirs) == 0 {
		m.Source.Dirs = []string{"src"}
	}
	if m.Project.Name == "" {
		m.Project.Name = filepath.Base(m.Dir)
	}

	for i, c := range m.Checks {
		if c.File == "" {
			return nil, fmt.Errorf("%s: check %d has no file", path, i+1)
		}
		if _, err := c.ExpectValues(); err != nil {
			return nil, fmt.Errorf("%s: check %d (%s): %w", path, i+1, c.File, err)
		}
	}

	return &m, nil
}

// FindAndLoad walks up from startDir to find an nq.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// SourceDirPaths returns absolute paths for the configured source directories.
func (m *Manifest) SourceDirPaths() []string {
	var paths []string
	for _, d := range m.Source.Dirs {
		paths = append(paths, m.resolve(d))
	}
	return paths
}

// SourceFiles returns every .nq file under the source directories, sorted.
// Missing source directories are skipped.
func (m *Manifest) SourceFiles() ([]string, error) {
	var files []string
	for _, dir := range m.SourceDirPaths() {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if path == dir && os.IsNotExist(err) {
					return filepath.SkipDir
				}
				return err
			}
			if !d.IsDir() && strings.HasSuffix(path, SourceExt) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", dir, err)
		}
	}
	sort.Strings(files)
	return files, nil
}

// EntryPath returns the absolute path of the entry source file. The entry
// is resolved against the project directory first and then against each
// source directory.
func (m *Manifest) EntryPath() (string, error) {
	if m.Source.Entry == "" {
		return "", fmt.Errorf("%s: no [source] entry configured", m.Project.Name)
	}
	candidates := []string{m.resolve(m.Source.Entry)}
	for _, d := range m.SourceDirPaths() {
		candidates = append(candidates, filepath.Join(d, m.Source.Entry))
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}
	return "", fmt.Errorf("entry %s not found", m.Source.Entry)
}

// ImagePath returns where "nq build" writes the compiled image.
func (m *Manifest) ImagePath() string {
	if m.Image.Output != "" {
		return m.resolve(m.Image.Output)
	}
	return filepath.Join(m.Dir, m.Project.Name+vm.ImageExt)
}

// LoadVocabulary returns the project's vocabulary, or the default one if
// none is configured.
func (m *Manifest) LoadVocabulary() (*compiler.Vocabulary, error) {
	if m.Vocabulary == "" {
		return compiler.DefaultVocabulary(), nil
	}
	return compiler.LoadVocabulary(m.resolve(m.Vocabulary))
}

// CheckPath returns the absolute path of a check's source file.
func (m *Manifest) CheckPath(c Check) string {
	return m.resolve(c.File)
}

func (m *Manifest) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}

// ---------------------------------------------------------------------------
// Check values
// ---------------------------------------------------------------------------

// ExpectValues converts the check's expectations to VM values.
func (c Check) ExpectValues() ([]vm.Value, error) {
	out := make([]vm.Value, 0, len(c.Expect))
	for _, e := range c.Expect {
		v, err := toValue(e)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// InputValues converts the check's scripted input to VM values.
func (c Check) InputValues() []vm.Value {
	out := make([]vm.Value, len(c.Input))
	for i, n := range c.Input {
		out[i] = vm.NumValue(n)
	}
	return out
}

func toValue(e any) (vm.Value, error) {
	switch x := e.(type) {
	case int64:
		return vm.NumValue(x), nil
	case bool:
		return vm.BoolValue(x), nil
	case []any:
		items := make([]vm.Value, len(x))
		for i, item := range x {
			v, err := toValue(item)
			if err != nil {
				return vm.Value{}, err
			}
			items[i] = v
		}
		return vm.Collapse(items), nil
	default:
		return vm.Value{}, fmt.Errorf("unsupported expected value %v (%T)", e, e)
	}
}
