package server

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/nqlang/nq/compiler"
	"github.com/nqlang/nq/vm"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "nq-lsp"

var log = commonlog.GetLogger("nq.lsp")

// LspServer bridges LSP editor features to the nq compiler via Worker.
type LspServer struct {
	worker *Worker

	mu   sync.Mutex
	docs map[string]string // URI → full document content

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a new LSP server that lexes documents with vocab. A nil
// vocabulary selects the default one.
func NewLSP(vocab *compiler.Vocabulary) *LspServer {
	s := &LspServer{
		worker:  NewWorker(NewWorkspace(vocab)),
		docs:    make(map[string]string),
		version: "0.1.0",
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
		TextDocumentDefinition: s.textDocumentDefinition,
		TextDocumentReferences: s.textDocumentReferences,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	log.Info("nq LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{
		TriggerCharacters: []string{"@", "%", "$"},
	}

	capabilities.HoverProvider = true
	capabilities.DefinitionProvider = true
	capabilities.ReferencesProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	s.worker.Stop()
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	text := params.TextDocument.Text

	s.mu.Lock()
	s.docs[string(uri)] = text
	s.mu.Unlock()

	s.publishDiagnostics(ctx, uri, text)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			s.mu.Lock()
			s.docs[string(uri)] = whole.Text
			text := whole.Text
			s.mu.Unlock()

			s.publishDiagnostics(ctx, uri, text)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	_, _ = s.worker.Do(func(ws *Workspace) any {
		ws.Close(string(uri))
		return nil
	})

	// Clear diagnostics for the closed document
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	text, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}

	prefix := extractPrefix(text, params.Position)
	uri := string(params.TextDocument.URI)
	result, err := s.worker.Do(func(ws *Workspace) any {
		return complete(ws, ws.Analysis(uri), prefix)
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	if _, ok := s.document(params.TextDocument.URI); !ok {
		return nil, nil
	}

	uri := string(params.TextDocument.URI)
	pos := params.Position
	result, err := s.worker.Do(func(ws *Workspace) any {
		a := ws.Analysis(uri)
		if a == nil {
			return nil
		}
		return hover(ws, a, offsetAt(a.Text, int(pos.Line), int(pos.Character)))
	})
	if err != nil || result == nil {
		return nil, nil
	}

	return result.(*protocol.Hover), nil
}

func (s *LspServer) textDocumentDefinition(ctx *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	text, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}

	word := extractWord(text, params.Position)
	if word == "" {
		return nil, nil
	}

	uri := params.TextDocument.URI
	result, err := s.worker.Do(func(ws *Workspace) any {
		a := ws.Analysis(string(uri))
		if a == nil {
			return nil
		}
		return definition(uri, a, word)
	})
	if err != nil || result == nil {
		return nil, nil
	}

	return result, nil
}

func (s *LspServer) textDocumentReferences(ctx *glsp.Context, params *protocol.ReferenceParams) ([]protocol.Location, error) {
	text, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}

	word := extractWord(text, params.Position)
	if word == "" {
		return nil, nil
	}

	uri := params.TextDocument.URI
	includeDecl := params.Context.IncludeDeclaration
	result, err := s.worker.Do(func(ws *Workspace) any {
		a := ws.Analysis(string(uri))
		if a == nil {
			return nil
		}
		return references(uri, a, word, includeDecl)
	})
	if err != nil || result == nil {
		return nil, nil
	}

	return result.([]protocol.Location), nil
}

func (s *LspServer) document(uri protocol.DocumentUri) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.docs[string(uri)]
	return text, ok
}

// --- Workspace-backed logic (called on worker goroutine) ---

func complete(ws *Workspace, a *Analysis, prefix string) []protocol.CompletionItem {
	var items []protocol.CompletionItem
	seen := make(map[string]bool)
	lowerPrefix := strings.ToLower(prefix)

	add := func(label string, kind protocol.CompletionItemKind, detail string) {
		if seen[label] || !strings.HasPrefix(strings.ToLower(label), lowerPrefix) {
			return
		}
		seen[label] = true
		labelCopy := label
		items = append(items, protocol.CompletionItem{
			Label:      label,
			Kind:       &kind,
			Detail:     &detail,
			InsertText: &labelCopy,
		})
	}

	// Names bound in the document
	if a != nil {
		for _, name := range a.Names() {
			kind := protocol.CompletionItemKindVariable
			b := a.Bindings[name][0]
			if b.Kind == BindProcedure {
				kind = protocol.CompletionItemKindFunction
			}
			add(name, kind, b.Kind.String())
		}
	}

	// Keywords
	for _, kw := range compiler.Keywords() {
		add(kw, protocol.CompletionItemKindKeyword, "keyword")
	}

	// Vocabulary words spelled with letters
	vocab := ws.Vocabulary()
	words := make([]string, 0, len(vocab.Words))
	for w := range vocab.Words {
		words = append(words, w)
	}
	sort.Strings(words)
	for _, w := range words {
		r := []rune(w)
		if len(r) == 0 || !unicode.IsLetter(r[0]) {
			continue
		}
		add(w, protocol.CompletionItemKindOperator, compiler.MarkName(vocab.Words[w]))
	}

	// Limit results
	const maxItems = 100
	if len(items) > maxItems {
		items = items[:maxItems]
	}

	return items
}

func hover(ws *Workspace, a *Analysis, offset int) *protocol.Hover {
	tok, ok := a.TokenAt(offset)
	if !ok {
		return nil
	}

	var b strings.Builder
	switch tok.Type {
	case compiler.TokenName:
		bindings := a.Bindings[tok.Literal]
		if len(bindings) == 0 {
			fmt.Fprintf(&b, "**%s**\n\nnever bound in this document", tok.Literal)
			break
		}
		last := bindings[len(bindings)-1]
		fmt.Fprintf(&b, "**%s** %s", tok.Literal, last.Kind)
		if len(bindings) > 1 {
			fmt.Fprintf(&b, ", bound %d times", len(bindings))
		}
		first := bindings[0].Span.Start
		fmt.Fprintf(&b, "\n\nfirst bound at %d:%d", first.Line, first.Column)
		if last.Kind == BindProcedure {
			fmt.Fprintf(&b, "\n\n```\n%s\n```", strings.TrimSuffix(vm.Disassemble(last.Code), "\n"))
		}
	case compiler.TokenMark, compiler.TokenBool:
		fmt.Fprintf(&b, "`%s` %s (vocabulary %s)", tok.Literal, compiler.MarkName(tok.Code), ws.Vocabulary().Name)
	case compiler.TokenSign, compiler.TokenComparison:
		fmt.Fprintf(&b, "`%s` operator", tok.Literal)
	case compiler.TokenKeyword:
		fmt.Fprintf(&b, "`%s` keyword", strings.ToLower(tok.Literal))
	default:
		return nil
	}

	rng := spanRange(a.Text, compiler.MakeSpan(tok.Pos, tok.End()))
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: b.String(),
		},
		Range: &rng,
	}
}

func definition(uri protocol.DocumentUri, a *Analysis, word string) []protocol.Location {
	bindings := a.Bindings[word]
	if len(bindings) == 0 {
		return nil
	}
	locations := make([]protocol.Location, len(bindings))
	for i, b := range bindings {
		locations[i] = protocol.Location{URI: uri, Range: spanRange(a.Text, b.Span)}
	}
	return locations
}

func references(uri protocol.DocumentUri, a *Analysis, word string, includeDecl bool) []protocol.Location {
	var locations []protocol.Location
	if includeDecl {
		locations = definition(uri, a, word)
	}
	for _, sp := range a.Uses[word] {
		locations = append(locations, protocol.Location{URI: uri, Range: spanRange(a.Text, sp)})
	}
	return locations
}

// --- Diagnostics ---

// diagnostics reports the syntax fault of a document, or a warning for
// every use of a name the document never binds.
func diagnostics(a *Analysis) []protocol.Diagnostic {
	source := lspName
	diags := []protocol.Diagnostic{}

	if a.Err != nil {
		severity := protocol.DiagnosticSeverityError
		diags = append(diags, protocol.Diagnostic{
			Range:    spanRange(a.Text, compiler.MakeSpan(a.Err.Pos, a.Err.Token.End())),
			Severity: &severity,
			Source:   &source,
			Message:  a.Err.Msg,
		})
		return diags
	}

	for _, name := range a.Unbound() {
		for _, sp := range a.Uses[name] {
			severity := protocol.DiagnosticSeverityWarning
			diags = append(diags, protocol.Diagnostic{
				Range:    spanRange(a.Text, sp),
				Severity: &severity,
				Source:   &source,
				Message:  fmt.Sprintf("%s is never bound; running this faults with %s", name, vm.UnboundName),
			})
		}
	}
	return diags
}

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	result, err := s.worker.Do(func(ws *Workspace) any {
		return diagnostics(ws.Update(string(uri), text))
	})
	if err != nil {
		log.Errorf("analyze %s: %s", uri, err)
		return
	}

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: result.([]protocol.Diagnostic),
	})
}

// --- Text extraction helpers ---

func spanRange(text string, sp compiler.Span) protocol.Range {
	return protocol.Range{
		Start: lspPosition(text, sp.Start),
		End:   lspPosition(text, sp.End),
	}
}

// lspPosition converts a source position to a 0-based line and a
// character counted in UTF-16 code units, as the protocol requires.
func lspPosition(text string, p compiler.Position) protocol.Position {
	off := min(max(p.Offset, 0), len(text))
	lineStart := strings.LastIndexByte(text[:off], '\n') + 1
	line := strings.Count(text[:lineStart], "\n")
	char := 0
	for _, r := range text[lineStart:off] {
		char += utf16.RuneLen(r)
	}
	return protocol.Position{Line: protocol.UInteger(line), Character: protocol.UInteger(char)}
}

// isWordChar matches the ASCII characters names are made of.
func isWordChar(ch rune) bool {
	return ch < utf8.RuneSelf && (unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_')
}

// cursorOffset maps pos to a byte offset in text. ok is false when the
// line is past the end of the document.
func cursorOffset(text string, pos protocol.Position) (int, bool) {
	if int(pos.Line) > strings.Count(text, "\n") {
		return 0, false
	}
	return offsetAt(text, int(pos.Line), int(pos.Character)), true
}

func wordStart(text string, off int) int {
	for off > 0 {
		r, size := utf8.DecodeLastRuneInString(text[:off])
		if !isWordChar(r) {
			break
		}
		off -= size
	}
	return off
}

func wordEnd(text string, off int) int {
	for off < len(text) {
		r, size := utf8.DecodeRuneInString(text[off:])
		if !isWordChar(r) {
			break
		}
		off += size
	}
	return off
}

// extractPrefix returns the word fragment before the cursor for completion.
func extractPrefix(text string, pos protocol.Position) string {
	off, ok := cursorOffset(text, pos)
	if !ok {
		return ""
	}
	return text[wordStart(text, off):off]
}

// extractWord returns the full identifier under the cursor.
func extractWord(text string, pos protocol.Position) string {
	off, ok := cursorOffset(text, pos)
	if !ok {
		return ""
	}
	return text[wordStart(text, off):wordEnd(text, off)]
}

func boolPtr(b bool) *bool {
	return &b
}
