package server

import (
	"errors"
	"sort"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/nqlang/nq/compiler"
	"github.com/nqlang/nq/vm"
)

// BindingKind distinguishes plain assignments from procedure definitions.
type BindingKind int

const (
	BindVariable BindingKind = iota
	BindProcedure
)

func (k BindingKind) String() string {
	if k == BindProcedure {
		return "procedure"
	}
	return "variable"
}

// Binding is one statement in a document that binds a name.
type Binding struct {
	Name string
	Kind BindingKind
	Span compiler.Span    // the binding statement
	Code []vm.Instruction // procedure body, for BindProcedure
}

// Analysis is everything the server knows about one version of a document.
type Analysis struct {
	Text    string
	Tokens  []compiler.Token
	Program *compiler.Block       // nil on syntax fault
	Err     *compiler.SyntaxError // nil on success
	Code    []vm.Instruction      // lowered program, nil on syntax fault

	Bindings map[string][]Binding       // in source order
	Uses     map[string][]compiler.Span // loads and calls
}

// Analyze lexes, parses and lowers text.
func Analyze(text string, words map[string]int) *Analysis {
	a := &Analysis{
		Text:     text,
		Tokens:   compiler.Tokenize(text, words),
		Bindings: make(map[string][]Binding),
		Uses:     make(map[string][]compiler.Span),
	}

	prog, err := compiler.Parse(a.Tokens)
	if err != nil {
		var se *compiler.SyntaxError
		if errors.As(err, &se) {
			a.Err = se
		} else {
			a.Err = &compiler.SyntaxError{Msg: err.Error()}
		}
		return a
	}
	a.Program = prog
	a.Code = compiler.Lower(prog)

	compiler.Walk(prog, func(s compiler.Stmt) bool {
		switch n := s.(type) {
		case *compiler.Set:
			b := Binding{Name: n.Name, Kind: BindVariable, Span: n.Span()}
			if q, ok := n.Value.(*compiler.Quote); ok {
				b.Kind = BindProcedure
				b.Code = compiler.Lower(q)[0].Code
			}
			a.Bindings[n.Name] = append(a.Bindings[n.Name], b)
		case *compiler.Define:
			a.Bindings[n.Alias] = append(a.Bindings[n.Alias], Binding{
				Name: n.Alias,
				Kind: BindProcedure,
				Span: n.Span(),
				Code: compiler.Lower(n)[0].Code,
			})
		case *compiler.Name:
			a.Uses[n.Name] = append(a.Uses[n.Name], n.Span())
		case *compiler.Call:
			a.Uses[n.Name] = append(a.Uses[n.Name], n.Span())
		}
		return true
	})
	return a
}

// Names returns every bound name, sorted.
func (a *Analysis) Names() []string {
	names := make([]string, 0, len(a.Bindings))
	for name := range a.Bindings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Unbound returns the names that are used but never bound in the document,
// sorted. Running the document faults on the first of them it reaches.
func (a *Analysis) Unbound() []string {
	var names []string
	for name := range a.Uses {
		if _, ok := a.Bindings[name]; !ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// TokenAt returns the token covering offset. A cursor just past the end of
// a token also selects it.
func (a *Analysis) TokenAt(offset int) (compiler.Token, bool) {
	var best compiler.Token
	found := false
	for _, tok := range a.Tokens {
		if tok.Type == compiler.TokenEOF {
			break
		}
		start, end := tok.Pos.Offset, tok.End().Offset
		if offset >= start && offset < end {
			return tok, true
		}
		if offset == end {
			best, found = tok, true
		}
	}
	return best, found
}

// ---------------------------------------------------------------------------
// Position conversion
// ---------------------------------------------------------------------------

// offsetAt converts a 0-based line and a character counted in UTF-16 code
// units into a byte offset, clamping to the end of the line.
func offsetAt(text string, line, char int) int {
	off := 0
	for i := 0; i < line; i++ {
		nl := strings.IndexByte(text[off:], '\n')
		if nl < 0 {
			return len(text)
		}
		off += nl + 1
	}
	for units := 0; units < char && off < len(text) && text[off] != '\n'; {
		r, size := utf8.DecodeRuneInString(text[off:])
		units += utf16.RuneLen(r)
		off += size
	}
	return off
}
