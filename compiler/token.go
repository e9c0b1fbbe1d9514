package compiler

import (
	"fmt"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Token types
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError

	// Literals
	TokenNumber // 42
	TokenBool   // == (true), !! (false)
	TokenName   // fib, total_2

	// Operators and marks; Code carries the variant
	TokenSign       // + - * / mod
	TokenComparison // = > < != >= <=
	TokenMark       // ! @ $ % ^ & ? | !- --
	TokenKeyword    // in out do again stop

	// Delimiters; Code carries the bracket id
	TokenOpen  // ( [ {
	TokenClose // ) ] }
	TokenComma // ,
	TokenDot   // .
)

var tokenNames = map[TokenType]string{
	TokenEOF:        "EOF",
	TokenError:      "ERROR",
	TokenNumber:     "NUMBER",
	TokenBool:       "BOOL",
	TokenName:       "NAME",
	TokenSign:       "SIGN",
	TokenComparison: "COMPARISON",
	TokenMark:       "MARK",
	TokenKeyword:    "KEYWORD",
	TokenOpen:       "OPEN",
	TokenClose:      "CLOSE",
	TokenComma:      ",",
	TokenDot:        ".",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// Token represents a lexical token. Code identifies the variant of signs,
// comparisons, marks, keywords, booleans and brackets.
type Token struct {
	Type    TokenType
	Code    int
	Literal string   // the raw text
	Pos     Position // start position
}

func (t Token) String() string {
	if t.Type == TokenEOF {
		return "EOF"
	}
	if t.Type == TokenError {
		return fmt.Sprintf("ERROR(%s)", t.Literal)
	}
	if len(t.Literal) > 20 {
		return fmt.Sprintf("%s(%q...)", t.Type, t.Literal[:20])
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
}

// Is reports whether the token has the given type and code.
func (t Token) Is(typ TokenType, code int) bool {
	return t.Type == typ && t.Code == code
}

// End returns the position just past the token's text.
func (t Token) End() Position {
	return Position{
		Offset: t.Pos.Offset + len(t.Literal),
		Line:   t.Pos.Line,
		Column: t.Pos.Column + utf8.RuneCountInString(t.Literal),
	}
}

// ---------------------------------------------------------------------------
// Codes
// ---------------------------------------------------------------------------

// Mark codes. These are the integer codes a vocabulary assigns to words.
const (
	MarkNot    = 1
	MarkCall   = 2
	MarkDefine = 4
	MarkAssign = 5
	MarkQuote  = 6
	MarkAnd    = 7
	MarkIf     = 8
	MarkOr     = 9
	MarkFalse  = 10
	MarkTrue   = 11
	MarkElse   = 12
	MarkChain  = 14
	MarkMod    = 15
)

var markNames = map[int]string{
	MarkNot:    "not",
	MarkCall:   "call",
	MarkDefine: "define",
	MarkAssign: "assign",
	MarkQuote:  "quote",
	MarkAnd:    "and",
	MarkIf:     "if",
	MarkOr:     "or",
	MarkFalse:  "false",
	MarkTrue:   "true",
	MarkElse:   "else",
	MarkChain:  "chain",
	MarkMod:    "mod",
}

// MarkName returns the meaning of a mark code, or "" if the code is unknown.
func MarkName(code int) string { return markNames[code] }

// Sign codes.
const (
	SignAdd = 1
	SignSub = 2
	SignMul = 3
	SignDiv = 4
	SignMod = 5
)

// Comparison codes.
const (
	CompareEq = 1
	CompareGt = 2
	CompareLt = 3
	CompareNe = 4
	CompareGe = 5
	CompareLe = 6
)

// Keyword codes.
const (
	KeywordIn = iota + 1
	KeywordOut
	KeywordDo
	KeywordAgain
	KeywordStop
)

// Keywords are matched case-insensitively.
var keywords = map[string]int{
	"in":    KeywordIn,
	"out":   KeywordOut,
	"do":    KeywordDo,
	"again": KeywordAgain,
	"stop":  KeywordStop,
}

// Keywords returns the reserved words in sorted order.
func Keywords() []string {
	return sortedKeys(keywords)
}

// Bracket ids.
const (
	BracketParen  = 1 // ( )
	BracketSquare = 2 // [ ]
	BracketCurly  = 3 // { }
)

// Fixed operator spellings. Marks come from the vocabulary instead.
var builtinSymbols = map[string]Token{
	"+":  {Type: TokenSign, Code: SignAdd},
	"-":  {Type: TokenSign, Code: SignSub},
	"*":  {Type: TokenSign, Code: SignMul},
	"/":  {Type: TokenSign, Code: SignDiv},
	"=":  {Type: TokenComparison, Code: CompareEq},
	">":  {Type: TokenComparison, Code: CompareGt},
	"<":  {Type: TokenComparison, Code: CompareLt},
	"!=": {Type: TokenComparison, Code: CompareNe},
	"=!": {Type: TokenComparison, Code: CompareNe},
	">=": {Type: TokenComparison, Code: CompareGe},
	"=>": {Type: TokenComparison, Code: CompareGe},
	"<=": {Type: TokenComparison, Code: CompareLe},
	"=<": {Type: TokenComparison, Code: CompareLe},
}

// markToken turns a vocabulary code into the token it stands for. Boolean
// and mod codes become literal and sign tokens.
func markToken(code int) Token {
	switch code {
	case MarkTrue, MarkFalse:
		return Token{Type: TokenBool, Code: code}
	case MarkMod:
		return Token{Type: TokenSign, Code: SignMod}
	}
	return Token{Type: TokenMark, Code: code}
}
