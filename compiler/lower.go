package compiler

import (
	"fmt"

	"github.com/nqlang/nq/vm"
)

// ---------------------------------------------------------------------------
// Lowering: statement tree -> instruction vector
// ---------------------------------------------------------------------------

// Lower compiles a program. An Evaluate program block is lowered inline,
// so "do again" at top level restarts the program; a Draft program is
// lowered to a single Pack. Any other statement is lowered as by LowerInto.
func Lower(s Stmt) []vm.Instruction {
	var out []vm.Instruction
	if b, ok := s.(*Block); ok && b.Kind == Evaluate {
		for _, st := range b.Stmts {
			LowerInto(st, &out)
		}
		return out
	}
	LowerInto(s, &out)
	return out
}

// LowerInto appends the instructions for s to out. Jump targets are
// absolute indices into *out and are computed from its length at emission
// time.
func LowerInto(s Stmt, out *[]vm.Instruction) {
	emit := func(in vm.Instruction) { *out = append(*out, in) }

	switch n := s.(type) {
	case *Number:
		emit(vm.Num(n.Value))
	case *Bool:
		emit(vm.Bool(n.Value))
	case *Nil:
		emit(vm.NilOp())
	case *Name:
		emit(vm.Load(n.Name))

	case *Comparison:
		LowerInto(n.Left, out)
		LowerInto(n.Right, out)
		emit(vm.Simple(n.Op))
	case *OperationNumber:
		LowerInto(n.Left, out)
		LowerInto(n.Right, out)
		emit(vm.BinOp(n.Op))
	case *OperationBool:
		LowerInto(n.Left, out)
		if n.Right != nil {
			LowerInto(n.Right, out)
		}
		emit(vm.Simple(n.Op))

	case *Block:
		code := lowerList(n.Stmts)
		if n.Kind == Draft {
			emit(vm.Pack(code))
		} else {
			emit(vm.InlineBlock(code))
		}

	case *If:
		LowerInto(n.Cond, out)
		hasElse := n.Else != nil
		emit(vm.Case([]vm.Pattern{vm.ValuePattern(vm.Bool(true))}, caseFailTarget(len(*out), hasElse)))
		emit(lowerBranch(n.Then))
		if hasElse {
			emit(vm.Jump(elseSkipTarget(len(*out))))
			emit(lowerBranch(n.Else))
		}

	case *Set:
		LowerInto(n.Value, out)
		emit(vm.Store(n.Name))
	case *Define:
		emit(vm.Define(n.Alias, procedureBody(n.Link)))
	case *Quote:
		emit(vm.Proc(procedureBody(n.Body)))
	case *Call:
		emit(vm.Exec(n.Name))

	case *Out:
		LowerInto(n.Expr, out)
		emit(vm.Output(n.To))
	case *In:
		emit(vm.Input(n.From))

	case *Jump:
		if n.Repeat {
			emit(vm.Jump(0))
		} else {
			emit(vm.Jump(vm.JumpExit))
		}

	default:
		panic(fmt.Sprintf("compiler: cannot lower %T", s))
	}
}

func lowerList(stmts []Stmt) []vm.Instruction {
	code := []vm.Instruction{}
	for _, st := range stmts {
		LowerInto(st, &code)
	}
	return code
}

// lowerBranch lowers an If branch to exactly one instruction.
func lowerBranch(s Stmt) vm.Instruction {
	code := lowerList([]Stmt{s})
	if len(code) == guardFootprint {
		return code[0]
	}
	return vm.InlineBlock(code)
}

// procedureBody returns the code stored for "$ link -- name" and "^link".
// An Evaluate block contributes its statements directly, so running the
// procedure splices whatever they leave on the stack.
func procedureBody(link Stmt) []vm.Instruction {
	if b, ok := link.(*Block); ok && b.Kind == Evaluate {
		return lowerList(b.Stmts)
	}
	return lowerList([]Stmt{link})
}

// Compile tokenizes, parses and lowers src.
func Compile(src string, words map[string]int) ([]vm.Instruction, error) {
	prog, err := ParseSource(src, words)
	if err != nil {
		return nil, err
	}
	return Lower(prog), nil
}
