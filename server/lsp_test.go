package server

import (
	"strings"
	"testing"
	"time"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/nqlang/nq/compiler"
)

const loopDoc = `% n -- 3,
$ {out n, % n -- n - 1, ? n > 0 @loop} -- loop,
@loop, out total`

func analyzeDoc(t *testing.T, text string) (*Workspace, *Analysis) {
	t.Helper()
	ws := NewWorkspace(nil)
	return ws, ws.Update("file:///test.nq", text)
}

func hoverText(t *testing.T, h *protocol.Hover) string {
	t.Helper()
	if h == nil {
		t.Fatal("hover returned nil")
	}
	mc, ok := h.Contents.(protocol.MarkupContent)
	if !ok {
		t.Fatal("hover contents should be MarkupContent")
	}
	if mc.Kind != protocol.MarkupKindMarkdown {
		t.Errorf("hover markup kind = %q, want %q", mc.Kind, protocol.MarkupKindMarkdown)
	}
	return mc.Value
}

// ---------------------------------------------------------------------------
// Analysis
// ---------------------------------------------------------------------------

func TestAnalyze_BindingsAndUses(t *testing.T) {
	_, a := analyzeDoc(t, loopDoc)
	if a.Err != nil {
		t.Fatalf("unexpected syntax fault: %v", a.Err)
	}
	if len(a.Code) == 0 {
		t.Error("analysis did not lower the program")
	}

	if n := len(a.Bindings["n"]); n != 2 {
		t.Errorf("n bound %d times, want 2", n)
	}
	loop := a.Bindings["loop"]
	if len(loop) != 1 || loop[0].Kind != BindProcedure || len(loop[0].Code) == 0 {
		t.Errorf("loop bindings = %+v", loop)
	}
	if got := strings.Join(a.Names(), " "); got != "loop n" {
		t.Errorf("Names = %q, want %q", got, "loop n")
	}

	if n := len(a.Uses["n"]); n != 3 {
		t.Errorf("n used %d times, want 3", n)
	}
	if n := len(a.Uses["loop"]); n != 2 {
		t.Errorf("loop used %d times, want 2", n)
	}
	if got := a.Unbound(); len(got) != 1 || got[0] != "total" {
		t.Errorf("Unbound = %v, want [total]", got)
	}
}

func TestAnalyze_QuoteIsProcedure(t *testing.T) {
	_, a := analyzeDoc(t, "% p -- ^{1, 2}, % q -- 3")
	if b := a.Bindings["p"]; len(b) != 1 || b[0].Kind != BindProcedure || len(b[0].Code) != 2 {
		t.Errorf("p = %+v", b)
	}
	if b := a.Bindings["q"]; len(b) != 1 || b[0].Kind != BindVariable {
		t.Errorf("q = %+v", b)
	}
}

func TestAnalyze_SyntaxFault(t *testing.T) {
	_, a := analyzeDoc(t, "% x -- 1,\nout x +")
	if a.Err == nil {
		t.Fatal("expected a syntax fault")
	}
	if a.Program != nil || a.Code != nil {
		t.Error("faulted analysis kept a program")
	}
	if a.Err.Pos.Line != 2 {
		t.Errorf("fault on line %d, want 2", a.Err.Pos.Line)
	}
}

func TestAnalyze_TokenAt(t *testing.T) {
	_, a := analyzeDoc(t, "out total")
	tests := []struct {
		offset int
		lit    string
	}{
		{0, "out"},
		{2, "out"},
		{3, "out"}, // just past the end
		{4, "total"},
		{9, "total"},
	}
	for _, tt := range tests {
		tok, ok := a.TokenAt(tt.offset)
		if !ok || tok.Literal != tt.lit {
			t.Errorf("TokenAt(%d) = %v %v, want %q", tt.offset, tok, ok, tt.lit)
		}
	}
}

func TestOffsetAt(t *testing.T) {
	text := "ab\ncde\n\nf"
	tests := []struct {
		line, char, want int
	}{
		{0, 0, 0},
		{0, 2, 2},
		{0, 9, 2}, // clamped to end of line
		{1, 1, 4},
		{2, 0, 7},
		{3, 1, 9},
		{7, 0, 9},
	}
	for _, tt := range tests {
		if got := offsetAt(text, tt.line, tt.char); got != tt.want {
			t.Errorf("offsetAt(%d, %d) = %d, want %d", tt.line, tt.char, got, tt.want)
		}
	}
}

// ---------------------------------------------------------------------------
// Diagnostics
// ---------------------------------------------------------------------------

func TestDiagnostics_SyntaxFault(t *testing.T) {
	_, a := analyzeDoc(t, "3 +")
	diags := diagnostics(a)
	if len(diags) != 1 {
		t.Fatalf("got %d diagnostics, want 1", len(diags))
	}
	d := diags[0]
	if d.Severity == nil || *d.Severity != protocol.DiagnosticSeverityError {
		t.Error("syntax fault should be an error")
	}
	if !strings.Contains(d.Message, "unexpected end of input") {
		t.Errorf("message = %q", d.Message)
	}
	if d.Range.Start.Line != 0 || d.Range.Start.Character != 3 {
		t.Errorf("range = %+v, want start 0:3", d.Range)
	}
}

func TestDiagnostics_UnboundNames(t *testing.T) {
	_, a := analyzeDoc(t, loopDoc)
	diags := diagnostics(a)
	if len(diags) != 1 {
		t.Fatalf("got %d diagnostics, want 1", len(diags))
	}
	d := diags[0]
	if d.Severity == nil || *d.Severity != protocol.DiagnosticSeverityWarning {
		t.Error("unbound name should be a warning")
	}
	if !strings.Contains(d.Message, "total") {
		t.Errorf("message = %q", d.Message)
	}
	want := protocol.Range{
		Start: protocol.Position{Line: 2, Character: 11},
		End:   protocol.Position{Line: 2, Character: 16},
	}
	if d.Range != want {
		t.Errorf("range = %+v, want %+v", d.Range, want)
	}
}

func TestDiagnostics_Clean(t *testing.T) {
	_, a := analyzeDoc(t, "% x -- 1, out x")
	if diags := diagnostics(a); len(diags) != 0 {
		t.Errorf("got %d diagnostics for a clean document", len(diags))
	}
}

// ---------------------------------------------------------------------------
// Language features
// ---------------------------------------------------------------------------

func TestLSP_Complete(t *testing.T) {
	ws, a := analyzeDoc(t, loopDoc)
	tests := []struct {
		prefix string
		label  string
		kind   protocol.CompletionItemKind
	}{
		{"lo", "loop", protocol.CompletionItemKindFunction},
		{"n", "n", protocol.CompletionItemKindVariable},
		{"o", "out", protocol.CompletionItemKindKeyword},
		{"AG", "again", protocol.CompletionItemKindKeyword},
		{"mo", "mod", protocol.CompletionItemKindOperator},
		{"tr", "true", protocol.CompletionItemKindOperator},
	}
	for _, tt := range tests {
		items := complete(ws, a, tt.prefix)
		found := false
		for _, item := range items {
			if !strings.HasPrefix(strings.ToLower(item.Label), strings.ToLower(tt.prefix)) {
				t.Errorf("complete(%q) returned %q", tt.prefix, item.Label)
			}
			if item.Label == tt.label {
				found = true
				if item.Kind == nil || *item.Kind != tt.kind {
					t.Errorf("%s completion has kind %v, want %v", tt.label, item.Kind, tt.kind)
				}
			}
		}
		if !found {
			t.Errorf("complete(%q) should include %q", tt.prefix, tt.label)
		}
	}
}

func TestLSP_CompleteWithoutAnalysis(t *testing.T) {
	items := complete(NewWorkspace(nil), nil, "st")
	if len(items) != 1 || items[0].Label != "stop" {
		t.Errorf("complete(st) = %+v, want [stop]", items)
	}
}

func TestLSP_Hover_Procedure(t *testing.T) {
	ws, a := analyzeDoc(t, loopDoc)
	// "loop" in "@loop" on the last line
	text := hoverText(t, hover(ws, a, offsetAt(a.Text, 2, 2)))
	if !strings.Contains(text, "**loop** procedure") {
		t.Errorf("hover = %q", text)
	}
	if !strings.Contains(text, "OUTPUT") || !strings.Contains(text, "```") {
		t.Errorf("hover should show the procedure body, got %q", text)
	}
}

func TestLSP_Hover_Variable(t *testing.T) {
	ws, a := analyzeDoc(t, loopDoc)
	text := hoverText(t, hover(ws, a, offsetAt(a.Text, 0, 2)))
	if !strings.Contains(text, "**n** variable, bound 2 times") || !strings.Contains(text, "1:1") {
		t.Errorf("hover = %q", text)
	}
}

func TestLSP_Hover_Marks(t *testing.T) {
	ws, a := analyzeDoc(t, loopDoc)
	text := hoverText(t, hover(ws, a, offsetAt(a.Text, 1, 24)))
	if !strings.Contains(text, "`?` if") || !strings.Contains(text, "default") {
		t.Errorf("hover on ? = %q", text)
	}
	text = hoverText(t, hover(ws, a, offsetAt(a.Text, 2, 8)))
	if !strings.Contains(text, "keyword") {
		t.Errorf("hover on out = %q", text)
	}
}

func TestLSP_Hover_Unbound(t *testing.T) {
	ws, a := analyzeDoc(t, loopDoc)
	text := hoverText(t, hover(ws, a, offsetAt(a.Text, 2, 13)))
	if !strings.Contains(text, "never bound") {
		t.Errorf("hover on total = %q", text)
	}
}

func TestLSP_Hover_Whitespace(t *testing.T) {
	ws, a := analyzeDoc(t, "1,   2")
	if h := hover(ws, a, 4); h != nil {
		t.Errorf("hover over whitespace = %+v, want nil", h)
	}
}

func TestLSP_Definition(t *testing.T) {
	_, a := analyzeDoc(t, loopDoc)
	uri := protocol.DocumentUri("file:///test.nq")

	locations := definition(uri, a, "n")
	if len(locations) != 2 {
		t.Fatalf("definition(n) returned %d locations, want 2", len(locations))
	}
	if locations[0].URI != uri || locations[0].Range.Start != (protocol.Position{Line: 0, Character: 0}) {
		t.Errorf("first definition = %+v", locations[0])
	}

	if locations := definition(uri, a, "total"); len(locations) != 0 {
		t.Errorf("definition(total) = %v, want none", locations)
	}
}

func TestLSP_References(t *testing.T) {
	_, a := analyzeDoc(t, loopDoc)
	uri := protocol.DocumentUri("file:///test.nq")

	if got := len(references(uri, a, "loop", true)); got != 3 {
		t.Errorf("references(loop, decl) = %d, want 3", got)
	}
	if got := len(references(uri, a, "loop", false)); got != 2 {
		t.Errorf("references(loop) = %d, want 2", got)
	}
	if got := len(references(uri, a, "nothing", true)); got != 0 {
		t.Errorf("references(nothing) = %d, want 0", got)
	}
}

// ---------------------------------------------------------------------------
// LSP document synchronization
// ---------------------------------------------------------------------------

func notifyContext() (*glsp.Context, chan protocol.PublishDiagnosticsParams) {
	ch := make(chan protocol.PublishDiagnosticsParams, 8)
	ctx := &glsp.Context{
		Notify: func(method string, params any) {
			if method == protocol.ServerTextDocumentPublishDiagnostics {
				ch <- params.(protocol.PublishDiagnosticsParams)
			}
		},
	}
	return ctx, ch
}

func waitDiagnostics(t *testing.T, ch chan protocol.PublishDiagnosticsParams) protocol.PublishDiagnosticsParams {
	t.Helper()
	select {
	case p := <-ch:
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("no diagnostics published")
	}
	return protocol.PublishDiagnosticsParams{}
}

func TestLSP_DocumentLifecycle(t *testing.T) {
	lsp := NewLSP(nil)
	defer lsp.worker.Stop()
	ctx, ch := notifyContext()
	uri := protocol.DocumentUri("file:///life.nq")

	err := lsp.textDocumentDidOpen(ctx, &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: uri, LanguageID: "nq", Version: 1, Text: "3 +"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if p := waitDiagnostics(t, ch); p.URI != uri || len(p.Diagnostics) != 1 {
		t.Errorf("open diagnostics = %+v", p)
	}

	err = lsp.textDocumentDidChange(ctx, &protocol.DidChangeTextDocumentParams{
		TextDocument: protocol.VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: uri},
			Version:                2,
		},
		ContentChanges: []any{protocol.TextDocumentContentChangeEventWhole{Text: "out 1"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if p := waitDiagnostics(t, ch); len(p.Diagnostics) != 0 {
		t.Errorf("change diagnostics = %+v, want none", p)
	}

	h, err := lsp.textDocumentHover(ctx, &protocol.HoverParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: uri},
			Position:     protocol.Position{Line: 0, Character: 1},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if text := hoverText(t, h); !strings.Contains(text, "`out` keyword") {
		t.Errorf("hover = %q", text)
	}

	if err := lsp.textDocumentDidClose(ctx, &protocol.DidCloseTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: uri},
	}); err != nil {
		t.Fatal(err)
	}
	if p := waitDiagnostics(t, ch); len(p.Diagnostics) != 0 {
		t.Errorf("close diagnostics = %+v, want none", p)
	}
	if _, ok := lsp.document(uri); ok {
		t.Error("document should be removed after close")
	}
	if h, _ := lsp.textDocumentHover(ctx, &protocol.HoverParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: uri},
		},
	}); h != nil {
		t.Error("hover on a closed document should return nil")
	}
}

// ---------------------------------------------------------------------------
// Text extraction helpers
// ---------------------------------------------------------------------------

func TestOffsetAtCountsUTF16(t *testing.T) {
	text := "é😀x\ny"
	tests := []struct {
		char, want int
	}{
		{0, 0},
		{1, 2}, // é is one unit, two bytes
		{3, 6}, // 😀 is a surrogate pair, four bytes
		{4, 7},
		{9, 7},
	}
	for _, tt := range tests {
		if got := offsetAt(text, 0, tt.char); got != tt.want {
			t.Errorf("offsetAt(0, %d) = %d, want %d", tt.char, got, tt.want)
		}
	}
}

func TestLSPPosition(t *testing.T) {
	text := "# é😀\nab😀cd"
	tests := []struct {
		offset     int
		line, char uint32
	}{
		{0, 0, 0},
		{8, 0, 5},  // end of the comment line
		{9, 1, 0},  // a
		{11, 1, 2}, // the emoji
		{15, 1, 4}, // c
		{17, 1, 6}, // end of text
	}
	for _, tt := range tests {
		got := lspPosition(text, compiler.Position{Offset: tt.offset})
		if got.Line != tt.line || got.Character != tt.char {
			t.Errorf("lspPosition(%d) = %d:%d, want %d:%d", tt.offset, got.Line, got.Character, tt.line, tt.char)
		}
	}
}

func TestDiagnosticsAfterNonASCII(t *testing.T) {
	ws := NewWorkspace(nil)
	a := ws.Update("file:///u.nq", "# größe\nout ö")
	diags := diagnostics(a)
	if len(diags) != 1 {
		t.Fatalf("diagnostics = %+v, want one syntax fault", diags)
	}
	r := diags[0].Range
	if r.Start.Line != 1 || r.Start.Character != 4 || r.End.Character != 5 {
		t.Errorf("range = %+v, want 1:4-1:5", r)
	}
}

func TestExtractPrefix(t *testing.T) {
	tests := []struct {
		text string
		line uint32
		char uint32
		want string
	}{
		{"out total", 0, 9, "total"},
		{"out tot", 0, 7, "tot"},
		{"", 0, 0, ""},
		{"first\nsecond @fi", 1, 10, "fi"},
		{"hello", 0, 0, ""},
		{"single", 5, 0, ""},
		{"% n_2", 0, 5, "n_2"},
		{"ö tot", 0, 5, "tot"},
		{"# é\nout größe tot", 1, 14, "tot"},
		{"😀 tot", 0, 6, "tot"},
		{"😀 tot", 0, 5, "to"},
	}
	for _, tt := range tests {
		pos := protocol.Position{Line: tt.line, Character: tt.char}
		if got := extractPrefix(tt.text, pos); got != tt.want {
			t.Errorf("extractPrefix(%q, %d:%d) = %q, want %q", tt.text, tt.line, tt.char, got, tt.want)
		}
	}
}

func TestExtractWord(t *testing.T) {
	tests := []struct {
		text string
		char uint32
		want string
	}{
		{"hello world", 3, "hello"},
		{"hello world", 5, "hello"},
		{"hello world", 6, "world"},
		{"@fib,", 2, "fib"},
		{"a + b", 2, ""},
		{"é @fib", 4, "fib"},
		{"😀 @fib, x", 5, "fib"},
		{"ü total", 1, ""},
	}
	for _, tt := range tests {
		pos := protocol.Position{Line: 0, Character: tt.char}
		if got := extractWord(tt.text, pos); got != tt.want {
			t.Errorf("extractWord(%q, %d) = %q, want %q", tt.text, tt.char, got, tt.want)
		}
	}
}
