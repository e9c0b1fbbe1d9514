package compiler

import "github.com/nqlang/nq/vm"

// ---------------------------------------------------------------------------
// AST: statement tree
// ---------------------------------------------------------------------------

// Position represents a source location.
type Position struct {
	Offset int // byte offset
	Line   int // 1-based line number
	Column int // 1-based column number
}

// Span represents a range in source code.
type Span struct {
	Start Position
	End   Position
}

// MakeSpan creates a span from start and end positions.
func MakeSpan(start, end Position) Span {
	return Span{Start: start, End: end}
}

// Contains reports whether offset lies within the span.
func (s Span) Contains(offset int) bool {
	return offset >= s.Start.Offset && offset < s.End.Offset
}

// Stmt is implemented by every node of the statement tree. Expressions are
// statements too.
type Stmt interface {
	Span() Span
	stmt() // marker method
}

// BlockKind selects how a block is evaluated.
type BlockKind int

const (
	// Evaluate blocks run their statements for effect and splice whatever
	// they leave on the stack into the caller.
	Evaluate BlockKind = iota
	// Draft blocks produce one value: the sole statement's value, or a
	// tuple of every statement's value.
	Draft
)

func (k BlockKind) String() string {
	if k == Draft {
		return "draft"
	}
	return "evaluate"
}

// Block is a separated statement list.
type Block struct {
	SpanVal Span
	Stmts   []Stmt
	Kind    BlockKind
}

// Number is an integer literal.
type Number struct {
	SpanVal Span
	Value   int64
}

// Bool is a boolean literal.
type Bool struct {
	SpanVal Span
	Value   bool
}

// Nil is the empty statement "()".
type Nil struct {
	SpanVal Span
}

// Name is a reference to a bound name.
type Name struct {
	SpanVal Span
	Name    string
}

// Comparison is a binary comparison; Op is one of vm.OpEq through vm.OpGe.
type Comparison struct {
	SpanVal     Span
	Op          vm.Opcode
	Left, Right Stmt
}

// OperationBool is a logical operation; Op is vm.OpNot, vm.OpAnd or vm.OpOr.
// Right is nil for OpNot.
type OperationBool struct {
	SpanVal     Span
	Op          vm.Opcode
	Left, Right Stmt
}

// OperationNumber is an arithmetic operation.
type OperationNumber struct {
	SpanVal     Span
	Op          vm.ArithOp
	Left, Right Stmt
}

// If runs Then when Cond yields true, otherwise Else if present.
type If struct {
	SpanVal Span
	Cond    Stmt
	Then    Stmt
	Else    Stmt // may be nil
}

// Set binds Name to the value of Value ("% name -- value").
type Set struct {
	SpanVal Span
	Name    string
	Value   Stmt
}

// Define binds Alias to a procedure built from Link ("$ link -- alias").
type Define struct {
	SpanVal Span
	Link    Stmt
	Alias   string
}

// Out delivers the value of Expr to the output port To ("" is the default).
type Out struct {
	SpanVal Span
	Expr    Stmt
	To      string
}

// In reads a value from the input port From ("" is the default).
type In struct {
	SpanVal Span
	From    string
}

// Jump restarts the current block (Repeat) or leaves it.
type Jump struct {
	SpanVal Span
	Repeat  bool
}

// Call runs the procedure bound to Name ("@name").
type Call struct {
	SpanVal Span
	Name    string
}

// Quote yields a procedure value built from Body ("^body").
type Quote struct {
	SpanVal Span
	Body    Stmt
}

func (n *Block) Span() Span           { return n.SpanVal }
func (n *Number) Span() Span          { return n.SpanVal }
func (n *Bool) Span() Span            { return n.SpanVal }
func (n *Nil) Span() Span             { return n.SpanVal }
func (n *Name) Span() Span            { return n.SpanVal }
func (n *Comparison) Span() Span      { return n.SpanVal }
func (n *OperationBool) Span() Span   { return n.SpanVal }
func (n *OperationNumber) Span() Span { return n.SpanVal }
func (n *If) Span() Span              { return n.SpanVal }
func (n *Set) Span() Span             { return n.SpanVal }
func (n *Define) Span() Span          { return n.SpanVal }
func (n *Out) Span() Span             { return n.SpanVal }
func (n *In) Span() Span              { return n.SpanVal }
func (n *Jump) Span() Span            { return n.SpanVal }
func (n *Call) Span() Span            { return n.SpanVal }
func (n *Quote) Span() Span           { return n.SpanVal }

func (*Block) stmt()           {}
func (*Number) stmt()          {}
func (*Bool) stmt()            {}
func (*Nil) stmt()             {}
func (*Name) stmt()            {}
func (*Comparison) stmt()      {}
func (*OperationBool) stmt()   {}
func (*OperationNumber) stmt() {}
func (*If) stmt()              {}
func (*Set) stmt()             {}
func (*Define) stmt()          {}
func (*Out) stmt()             {}
func (*In) stmt()              {}
func (*Jump) stmt()            {}
func (*Call) stmt()            {}
func (*Quote) stmt()           {}

// ---------------------------------------------------------------------------
// Traversal
// ---------------------------------------------------------------------------

// Children returns the direct sub-statements of s in source order.
func Children(s Stmt) []Stmt {
	var out []Stmt
	add := func(c Stmt) {
		if c != nil {
			out = append(out, c)
		}
	}
	switch n := s.(type) {
	case *Block:
		return n.Stmts
	case *Comparison:
		add(n.Left)
		add(n.Right)
	case *OperationBool:
		add(n.Left)
		add(n.Right)
	case *OperationNumber:
		add(n.Left)
		add(n.Right)
	case *If:
		add(n.Cond)
		add(n.Then)
		add(n.Else)
	case *Set:
		add(n.Value)
	case *Define:
		add(n.Link)
	case *Out:
		add(n.Expr)
	case *Quote:
		add(n.Body)
	}
	return out
}

// Walk calls fn for s and every statement below it, depth first. If fn
// returns false the children of that statement are skipped.
func Walk(s Stmt, fn func(Stmt) bool) {
	if s == nil || !fn(s) {
		return
	}
	for _, c := range Children(s) {
		Walk(c, fn)
	}
}
