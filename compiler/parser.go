package compiler

import (
	"fmt"
	"strconv"

	"github.com/nqlang/nq/vm"
)

// ---------------------------------------------------------------------------
// Parser: precedence climbing over the token stream
// ---------------------------------------------------------------------------

// Binary operator priorities; higher binds tighter. Unary not parses its
// operand with floor priorityAdditive, so comparisons and boolean operators
// apply to the negated value.
const (
	priorityOr         = 1
	priorityAnd        = 2
	priorityComparison = 4
	priorityAdditive   = 5
	priorityMultiply   = 6
)

// SyntaxError is the syntax fault raised by the parser. Parsing stops at
// the first one.
type SyntaxError struct {
	Pos   Position
	Token Token
	Msg   string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%d:%d: syntax fault: %s (at %s)", e.Pos.Line, e.Pos.Column, e.Msg, e.Token)
}

// Parser consumes a token slice front to back.
type Parser struct {
	tokens  []Token
	pos     int
	prevEnd Position
	err     *SyntaxError // first fault; parsing stops once set
}

// Parse builds the program block from tokens. On success every token up to
// EOF has been consumed.
func Parse(tokens []Token) (*Block, error) {
	p := &Parser{tokens: tokens}
	prog := p.parseProgram()
	if p.err != nil {
		return nil, p.err
	}
	return prog, nil
}

// ParseSource tokenizes and parses src with the given vocabulary words
// (nil selects the default vocabulary).
func ParseSource(src string, words map[string]int) (*Block, error) {
	return Parse(Tokenize(src, words))
}

// ---------------------------------------------------------------------------
// Token stream helpers
// ---------------------------------------------------------------------------

// cur returns the current token. An error token records a fault.
func (p *Parser) cur() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: TokenEOF, Pos: p.prevEnd}
	}
	tok := p.tokens[p.pos]
	if tok.Type == TokenError {
		p.errorf(tok, "unexpected character %q", tok.Literal)
	}
	return tok
}

func (p *Parser) advance() Token {
	tok := p.cur()
	if tok.Type != TokenEOF {
		p.pos++
		p.prevEnd = tok.End()
	}
	return tok
}

// errorf records a syntax fault at tok. Only the first one is kept.
func (p *Parser) errorf(tok Token, format string, args ...any) {
	if p.err == nil {
		p.err = &SyntaxError{Pos: tok.Pos, Token: tok, Msg: fmt.Sprintf(format, args...)}
	}
}

func (p *Parser) expectName(context string) (string, bool) {
	tok := p.cur()
	if tok.Type != TokenName {
		p.errorf(tok, "expected name %s, found %s", context, tok)
		return "", false
	}
	p.advance()
	return tok.Literal, true
}

func (p *Parser) expectChain(context string) bool {
	tok := p.cur()
	if !tok.Is(TokenMark, MarkChain) {
		p.errorf(tok, "expected -- %s, found %s", context, tok)
		return false
	}
	p.advance()
	return true
}

func (p *Parser) spanFrom(start Position) Span {
	return MakeSpan(start, p.prevEnd)
}

func closeLiteral(bracket int) string {
	switch bracket {
	case BracketParen:
		return ")"
	case BracketSquare:
		return "]"
	case BracketCurly:
		return "}"
	}
	return "end of input"
}

// ---------------------------------------------------------------------------
// Blocks
// ---------------------------------------------------------------------------

func (p *Parser) parseProgram() *Block {
	start := p.cur().Pos
	stmts, trailingComma := p.parseBody(0)
	if p.err != nil {
		return nil
	}
	kind := Evaluate
	if trailingComma {
		kind = Draft
	}
	return &Block{SpanVal: p.spanFrom(start), Stmts: stmts, Kind: kind}
}

// parseBody parses separated statements up to the closing bracket (left
// unconsumed) or, for bracket 0, up to EOF. It reports whether the last
// separator was a comma directly before the end.
func (p *Parser) parseBody(bracket int) (stmts []Stmt, trailingComma bool) {
	atEnd := func(tok Token) bool {
		if bracket == 0 {
			return tok.Type == TokenEOF
		}
		return tok.Type == TokenClose && tok.Code == bracket
	}
	for p.err == nil {
		tok := p.cur()
		if p.err != nil {
			break
		}
		if atEnd(tok) {
			return stmts, trailingComma
		}
		if !p.checkDelimiter(tok, bracket) {
			break
		}

		stmt := p.parseStatement()
		if p.err != nil {
			break
		}
		stmts = append(stmts, stmt)

		tok = p.cur()
		switch {
		case p.err != nil:
		case tok.Type == TokenComma || tok.Type == TokenDot:
			p.advance()
			trailingComma = tok.Type == TokenComma && atEnd(p.cur())
		case atEnd(tok):
			return stmts, false
		default:
			if p.checkDelimiter(tok, bracket) {
				p.errorf(tok, "expected , or . before %s, found %s", closeLiteral(bracket), tok)
			}
		}
	}
	return nil, false
}

// checkDelimiter reports end of input inside a bracket and closing
// brackets that do not match the open one. It returns false after
// recording a fault.
func (p *Parser) checkDelimiter(tok Token, bracket int) bool {
	switch {
	case tok.Type == TokenEOF && bracket != 0:
		p.errorf(tok, "missing closing %s", closeLiteral(bracket))
	case tok.Type == TokenClose && bracket == 0:
		p.errorf(tok, "unmatched %s", tok.Literal)
	case tok.Type == TokenClose && tok.Code != bracket:
		p.errorf(tok, "mismatched bracket: expected %s, found %s", closeLiteral(bracket), tok.Literal)
	default:
		return true
	}
	return false
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// parseStatement returns nil once a fault is recorded, as do the other
// parse functions below.
func (p *Parser) parseStatement() Stmt {
	tok := p.cur()
	if p.err != nil {
		return nil
	}
	start := tok.Pos
	switch {
	case tok.Is(TokenMark, MarkIf):
		p.advance()
		cond := p.parseStatement()
		if cond == nil {
			return nil
		}
		then := p.parseStatement()
		if then == nil {
			return nil
		}
		n := &If{Cond: cond, Then: then}
		if p.cur().Is(TokenMark, MarkElse) {
			p.advance()
			if n.Else = p.parseStatement(); n.Else == nil {
				return nil
			}
		}
		n.SpanVal = p.spanFrom(start)
		return n

	case tok.Is(TokenMark, MarkDefine):
		p.advance()
		link := p.parseExpression(priorityOr)
		if link == nil || !p.expectChain("before the defined name") {
			return nil
		}
		alias, ok := p.expectName("to define")
		if !ok {
			return nil
		}
		return &Define{SpanVal: p.spanFrom(start), Link: link, Alias: alias}

	case tok.Is(TokenMark, MarkAssign):
		p.advance()
		name, ok := p.expectName("to assign")
		if !ok || !p.expectChain("after the assigned name") {
			return nil
		}
		value := p.parseStatement()
		if value == nil {
			return nil
		}
		return &Set{SpanVal: p.spanFrom(start), Name: name, Value: value}

	case tok.Type == TokenKeyword:
		return p.parseKeywordStatement(tok)
	}
	return p.parseExpression(priorityOr)
}

func (p *Parser) parseKeywordStatement(tok Token) Stmt {
	start := tok.Pos
	p.advance()
	switch tok.Code {
	case KeywordIn:
		n := &In{}
		if p.cur().Is(TokenMark, MarkChain) {
			p.advance()
			from, ok := p.expectName("of the input port")
			if !ok {
				return nil
			}
			n.From = from
		}
		n.SpanVal = p.spanFrom(start)
		return n

	case KeywordOut:
		expr := p.parseStatement()
		if expr == nil {
			return nil
		}
		n := &Out{Expr: expr}
		if p.cur().Is(TokenMark, MarkChain) {
			p.advance()
			to, ok := p.expectName("of the output port")
			if !ok {
				return nil
			}
			n.To = to
		}
		n.SpanVal = p.spanFrom(start)
		return n

	case KeywordDo:
		next := p.cur()
		switch {
		case next.Is(TokenKeyword, KeywordAgain):
			p.advance()
			return &Jump{SpanVal: p.spanFrom(start), Repeat: true}
		case next.Is(TokenKeyword, KeywordStop):
			p.advance()
			return &Jump{SpanVal: p.spanFrom(start), Repeat: false}
		}
		p.errorf(next, "expected again or stop after do, found %s", next)
		return nil
	}
	p.errorf(tok, "%s can only follow do", tok.Literal)
	return nil
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// binaryPriority returns the priority of tok as a binary operator, or 0 if
// it is not one.
func binaryPriority(tok Token) int {
	switch tok.Type {
	case TokenMark:
		switch tok.Code {
		case MarkOr:
			return priorityOr
		case MarkAnd:
			return priorityAnd
		}
	case TokenComparison:
		return priorityComparison
	case TokenSign:
		if tok.Code == SignAdd || tok.Code == SignSub {
			return priorityAdditive
		}
		return priorityMultiply
	}
	return 0
}

// parseExpression parses a primary followed by binary operators whose
// priority is at least min. Right operands use floor priority+1, so equal
// priorities associate to the left.
func (p *Parser) parseExpression(min int) Stmt {
	left := p.parsePrimary()
	for left != nil {
		op := p.cur()
		if p.err != nil {
			return nil
		}
		prio := binaryPriority(op)
		if prio == 0 || prio < min {
			return left
		}
		p.advance()
		right := p.parseExpression(prio + 1)
		if right == nil {
			return nil
		}
		left = binary(op, left, right)
	}
	return nil
}

var comparisonOps = map[int]vm.Opcode{
	CompareEq: vm.OpEq,
	CompareNe: vm.OpNe,
	CompareLt: vm.OpLt,
	CompareGt: vm.OpGt,
	CompareLe: vm.OpLe,
	CompareGe: vm.OpGe,
}

var signOps = map[int]vm.ArithOp{
	SignAdd: vm.ArithAdd,
	SignSub: vm.ArithSub,
	SignMul: vm.ArithMul,
	SignDiv: vm.ArithDiv,
	SignMod: vm.ArithMod,
}

func binary(op Token, left, right Stmt) Stmt {
	span := MakeSpan(left.Span().Start, right.Span().End)
	switch op.Type {
	case TokenComparison:
		return &Comparison{SpanVal: span, Op: comparisonOps[op.Code], Left: left, Right: right}
	case TokenSign:
		return &OperationNumber{SpanVal: span, Op: signOps[op.Code], Left: left, Right: right}
	}
	boolOp := vm.OpOr
	if op.Code == MarkAnd {
		boolOp = vm.OpAnd
	}
	return &OperationBool{SpanVal: span, Op: boolOp, Left: left, Right: right}
}

func (p *Parser) parsePrimary() Stmt {
	tok := p.cur()
	if p.err != nil {
		return nil
	}
	start := tok.Pos
	switch tok.Type {
	case TokenNumber:
		p.advance()
		n, err := strconv.ParseInt(tok.Literal, 10, 64)
		if err != nil {
			p.errorf(tok, "number %s out of range", tok.Literal)
			return nil
		}
		return &Number{SpanVal: p.spanFrom(start), Value: n}

	case TokenBool:
		p.advance()
		return &Bool{SpanVal: p.spanFrom(start), Value: tok.Code == MarkTrue}

	case TokenName:
		p.advance()
		return &Name{SpanVal: p.spanFrom(start), Name: tok.Literal}

	case TokenOpen:
		p.advance()
		return p.parseBracketed(tok)

	case TokenMark:
		switch tok.Code {
		case MarkNot:
			p.advance()
			operand := p.parseExpression(priorityAdditive)
			if operand == nil {
				return nil
			}
			return &OperationBool{SpanVal: p.spanFrom(start), Op: vm.OpNot, Left: operand}
		case MarkQuote:
			p.advance()
			body := p.parsePrimary()
			if body == nil {
				return nil
			}
			return &Quote{SpanVal: p.spanFrom(start), Body: body}
		case MarkCall:
			p.advance()
			name, ok := p.expectName("to call")
			if !ok {
				return nil
			}
			return &Call{SpanVal: p.spanFrom(start), Name: name}
		}

	case TokenEOF:
		p.errorf(tok, "unexpected end of input")
		return nil

	case TokenClose:
		p.errorf(tok, "unexpected %s", tok.Literal)
		return nil
	}
	p.errorf(tok, "unexpected %s", tok)
	return nil
}

// parseBracketed parses what follows an opening bracket, including the
// matching close.
func (p *Parser) parseBracketed(open Token) Stmt {
	start := open.Pos
	if open.Code == BracketParen {
		if p.cur().Is(TokenClose, BracketParen) {
			p.advance()
			return &Nil{SpanVal: p.spanFrom(start)}
		}
		inner := p.parseStatement()
		if inner == nil {
			return nil
		}
		tok := p.cur()
		if !tok.Is(TokenClose, BracketParen) {
			if p.checkDelimiter(tok, BracketParen) {
				p.errorf(tok, "expected ), found %s", tok)
			}
			return nil
		}
		p.advance()
		return inner
	}

	stmts, trailingComma := p.parseBody(open.Code)
	if p.err != nil {
		return nil
	}
	p.advance()
	kind := Evaluate
	if open.Code == BracketSquare || trailingComma {
		kind = Draft
	}
	return &Block{SpanVal: p.spanFrom(start), Stmts: stmts, Kind: kind}
}
