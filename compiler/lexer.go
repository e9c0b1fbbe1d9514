package compiler

import (
	"strings"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Lexer
// ---------------------------------------------------------------------------

// Lexer tokenizes nq source code. Marks are recognized through a
// vocabulary (word -> mark code); signs, comparisons, brackets, separators
// and keywords are fixed.
type Lexer struct {
	input     string
	pos       int  // current position in input
	readPos   int  // reading position (after current char)
	ch        rune // current character
	line      int  // current line (1-based)
	col       int  // current column (1-based)
	lineStart int  // offset of current line start

	words   map[string]int   // letter words, lowercased
	symbols map[string]Token // punctuation words, builtins and vocabulary
}

// NewLexer creates a lexer for input. A nil words map selects the default
// vocabulary.
func NewLexer(input string, words map[string]int) *Lexer {
	if words == nil {
		words = DefaultVocabulary().Words
	}
	l := &Lexer{
		input:   input,
		line:    1,
		col:     0,
		words:   map[string]int{},
		symbols: map[string]Token{},
	}
	for s, tok := range builtinSymbols {
		l.symbols[s] = tok
	}
	for w, code := range words {
		if isLetterWord(w) {
			l.words[strings.ToLower(w)] = code
		} else {
			l.symbols[w] = markToken(code)
		}
	}
	l.readChar()
	return l
}

// Tokenize returns every token of input up to and including EOF. Lexing
// does not stop at an ERROR token; the parser reports it.
func Tokenize(input string, words map[string]int) []Token {
	l := NewLexer(input, words)
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			return tokens
		}
	}
}

func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0
		l.pos = l.readPos
		l.col++
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
	if l.ch == '\n' {
		l.line++
		l.col = 0
		l.lineStart = l.readPos
	}
	l.ch = r
	l.pos = l.readPos
	l.readPos += size
	l.col++
}

func (l *Lexer) position() Position {
	return Position{Offset: l.pos, Line: l.line, Column: l.col}
}

// NextToken returns the next token.
func (l *Lexer) NextToken() Token {
	l.skipWhitespaceAndComments()

	pos := l.position()
	if l.pos >= len(l.input) {
		return Token{Type: TokenEOF, Pos: pos}
	}

	switch ch := l.ch; {
	case isDigit(ch):
		return l.readNumber(pos)
	case isLetter(ch):
		return l.readWord(pos)
	case ch == ',':
		l.readChar()
		return Token{Type: TokenComma, Literal: ",", Pos: pos}
	case ch == '.':
		l.readChar()
		return Token{Type: TokenDot, Literal: ".", Pos: pos}
	case ch == '(' || ch == '[' || ch == '{':
		l.readChar()
		return Token{Type: TokenOpen, Code: bracketID(ch), Literal: string(ch), Pos: pos}
	case ch == ')' || ch == ']' || ch == '}':
		l.readChar()
		return Token{Type: TokenClose, Code: bracketID(ch), Literal: string(ch), Pos: pos}
	case isSymbolChar(ch):
		return l.readSymbol(pos)
	}

	lit := string(l.ch)
	l.readChar()
	return Token{Type: TokenError, Literal: lit, Pos: pos}
}

func (l *Lexer) skipWhitespaceAndComments() {
	for l.pos < len(l.input) {
		switch {
		case l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r':
			l.readChar()
		case l.ch == '#':
			for l.pos < len(l.input) && l.ch != '\n' {
				l.readChar()
			}
		default:
			return
		}
	}
}

func (l *Lexer) readNumber(pos Position) Token {
	start := l.pos
	for l.pos < len(l.input) && isDigit(l.ch) {
		l.readChar()
	}
	return Token{Type: TokenNumber, Literal: l.input[start:l.pos], Pos: pos}
}

// readWord reads a letter-initial run and classifies it as a keyword, a
// vocabulary word or a name.
func (l *Lexer) readWord(pos Position) Token {
	start := l.pos
	for l.pos < len(l.input) && (isLetter(l.ch) || isDigit(l.ch) || l.ch == '_') {
		l.readChar()
	}
	lit := l.input[start:l.pos]
	lower := strings.ToLower(lit)

	if code, ok := keywords[lower]; ok {
		return Token{Type: TokenKeyword, Code: code, Literal: lit, Pos: pos}
	}
	if code, ok := l.words[lower]; ok {
		tok := markToken(code)
		tok.Literal = lit
		tok.Pos = pos
		return tok
	}
	return Token{Type: TokenName, Literal: lit, Pos: pos}
}

// readSymbol takes the longest known punctuation word at the current
// position.
func (l *Lexer) readSymbol(pos Position) Token {
	end := l.pos
	for end < len(l.input) && end-l.pos < maxSymbolLen && isSymbolChar(rune(l.input[end])) {
		end++
	}
	for n := end - l.pos; n > 0; n-- {
		lit := l.input[l.pos : l.pos+n]
		if tok, ok := l.symbols[lit]; ok {
			for i := 0; i < n; i++ {
				l.readChar()
			}
			tok.Literal = lit
			tok.Pos = pos
			return tok
		}
	}
	lit := string(l.ch)
	l.readChar()
	return Token{Type: TokenError, Literal: lit, Pos: pos}
}

func bracketID(ch rune) int {
	switch ch {
	case '(', ')':
		return BracketParen
	case '[', ']':
		return BracketSquare
	}
	return BracketCurly
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// isSymbolChar reports whether r may appear in a punctuation word.
func isSymbolChar(r rune) bool {
	return strings.ContainsRune("!@$%^&?|=-<>+*/~:;", r)
}
