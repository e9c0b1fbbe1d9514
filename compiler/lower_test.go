package compiler

import (
	"testing"

	"github.com/nqlang/nq/vm"
)

func mustLower(t *testing.T, src string) []vm.Instruction {
	t.Helper()
	code, err := Compile(src, nil)
	if err != nil {
		t.Fatalf("Compile(%q): %v", src, err)
	}
	return code
}

func assertCode(t *testing.T, src string, got, want []vm.Instruction) {
	t.Helper()
	if !vm.CodeEqual(got, want) {
		t.Errorf("%q lowered to:\n%s\nwant:\n%s", src, vm.Disassemble(got), vm.Disassemble(want))
	}
}

// ---------------------------------------------------------------------------
// Jump arithmetic
// ---------------------------------------------------------------------------

func TestJumpTargets(t *testing.T) {
	tests := []struct {
		length  int
		hasElse bool
		fail    int
	}{
		{0, false, 2},
		{0, true, 3},
		{5, false, 7},
		{5, true, 8},
	}
	for _, tt := range tests {
		if got := caseFailTarget(tt.length, tt.hasElse); got != tt.fail {
			t.Errorf("caseFailTarget(%d, %v) = %d, want %d", tt.length, tt.hasElse, got, tt.fail)
		}
	}
	if got := elseSkipTarget(5); got != 7 {
		t.Errorf("elseSkipTarget(5) = %d, want 7", got)
	}
}

// The fail target of every Case emitted for an If must land on the first
// instruction after the then branch, and the else Jump just past the else
// branch, however much code precedes the If.
func TestJumpTargetsMatchLayout(t *testing.T) {
	for _, prefix := range []string{"", "1, ", "% a -- 1, % b -- 2, "} {
		for _, hasElse := range []bool{false, true} {
			src := prefix + "? a > b {out a, out b}"
			if hasElse {
				src += " !- out 3"
			}
			code := mustLower(t, src)

			caseAt := -1
			for i, in := range code {
				if in.Op == vm.OpCase {
					caseAt = i
				}
			}
			if caseAt < 0 {
				t.Fatalf("%q: no CASE in\n%s", src, vm.Disassemble(code))
			}
			fail := code[caseAt].Target
			if hasElse {
				if fail != caseAt+3 || code[caseAt+2].Op != vm.OpJump || code[caseAt+2].Target != len(code) {
					t.Errorf("%q: bad layout\n%s", src, vm.Disassemble(code))
				}
			} else if fail != caseAt+2 || fail != len(code) {
				t.Errorf("%q: bad layout\n%s", src, vm.Disassemble(code))
			}
		}
	}
}

// ---------------------------------------------------------------------------
// Lowering table
// ---------------------------------------------------------------------------

func TestLowerExpressions(t *testing.T) {
	tests := []struct {
		src  string
		want []vm.Instruction
	}{
		{"3 + 4 * 5", []vm.Instruction{vm.Num(3), vm.Num(4), vm.Num(5), vm.BinOp(vm.ArithMul), vm.BinOp(vm.ArithAdd)}},
		{"a = !!", []vm.Instruction{vm.Load("a"), vm.Bool(false), vm.Simple(vm.OpEq)}},
		{"! a & b", []vm.Instruction{vm.Load("a"), vm.Simple(vm.OpNot), vm.Load("b"), vm.Simple(vm.OpAnd)}},
		{"x mod 2", []vm.Instruction{vm.Load("x"), vm.Num(2), vm.BinOp(vm.ArithMod)}},
		{"()", []vm.Instruction{vm.NilOp()}},
	}
	for _, tt := range tests {
		assertCode(t, tt.src, mustLower(t, tt.src), tt.want)
	}
}

func TestLowerStatements(t *testing.T) {
	tests := []struct {
		src  string
		want []vm.Instruction
	}{
		{"% x -- 1", []vm.Instruction{vm.Num(1), vm.Store("x")}},
		{"@f", []vm.Instruction{vm.Exec("f")}},
		{"out 1", []vm.Instruction{vm.Num(1), vm.Output("")}},
		{"out 1 -- log", []vm.Instruction{vm.Num(1), vm.Output("log")}},
		{"in", []vm.Instruction{vm.Input("")}},
		{"in -- keys", []vm.Instruction{vm.Input("keys")}},
		{"do again", []vm.Instruction{vm.Jump(0)}},
		{"do stop", []vm.Instruction{vm.Jump(vm.JumpExit)}},
		{"{1, 2}", []vm.Instruction{vm.InlineBlock([]vm.Instruction{vm.Num(1), vm.Num(2)})}},
		{"[1, 2]", []vm.Instruction{vm.Pack([]vm.Instruction{vm.Num(1), vm.Num(2)})}},
		{"[]", []vm.Instruction{vm.Pack(nil)}},
		{"$ {out 1} -- f", []vm.Instruction{vm.Define("f", []vm.Instruction{vm.Num(1), vm.Output("")})}},
		{"$ [1, 2] -- pair", []vm.Instruction{vm.Define("pair", []vm.Instruction{vm.Pack([]vm.Instruction{vm.Num(1), vm.Num(2)})})}},
		{"$ x + 1 -- next", []vm.Instruction{vm.Define("next", []vm.Instruction{vm.Load("x"), vm.Num(1), vm.BinOp(vm.ArithAdd)})}},
		{"^{1}", []vm.Instruction{vm.Proc([]vm.Instruction{vm.Num(1)})}},
		{"1, 2,", []vm.Instruction{vm.Pack([]vm.Instruction{vm.Num(1), vm.Num(2)})}},
	}
	for _, tt := range tests {
		assertCode(t, tt.src, mustLower(t, tt.src), tt.want)
	}
}

func TestLowerIf(t *testing.T) {
	isTrue := []vm.Pattern{vm.ValuePattern(vm.Bool(true))}
	tests := []struct {
		src  string
		want []vm.Instruction
	}{
		{"? c @f", []vm.Instruction{
			vm.Load("c"),
			vm.Case(isTrue, 3),
			vm.Exec("f"),
		}},
		{"? c @f !- @g", []vm.Instruction{
			vm.Load("c"),
			vm.Case(isTrue, 4),
			vm.Exec("f"),
			vm.Jump(5),
			vm.Exec("g"),
		}},
		{"? 1 > 0 out 10 !- out 20", []vm.Instruction{
			vm.Num(1), vm.Num(0), vm.Simple(vm.OpGt),
			vm.Case(isTrue, 6),
			vm.InlineBlock([]vm.Instruction{vm.Num(10), vm.Output("")}),
			vm.Jump(7),
			vm.InlineBlock([]vm.Instruction{vm.Num(20), vm.Output("")}),
		}},
		{"? c do again", []vm.Instruction{
			vm.Load("c"),
			vm.Case(isTrue, 3),
			vm.Jump(0),
		}},
	}
	for _, tt := range tests {
		assertCode(t, tt.src, mustLower(t, tt.src), tt.want)
	}
}

func TestLowerDoesNotMutateTree(t *testing.T) {
	prog := mustParse(t, "? a > 1 {out a} !- out 2")
	before := FormatTree(prog)
	first := Lower(prog)
	second := Lower(prog)
	if FormatTree(prog) != before {
		t.Error("Lower changed the tree")
	}
	if !vm.CodeEqual(first, second) {
		t.Error("lowering the same tree twice gave different code")
	}
}

func TestLowerIntoAppends(t *testing.T) {
	out := []vm.Instruction{vm.Num(1), vm.Num(2)}
	LowerInto(&If{Cond: &Bool{Value: true}, Then: &Number{Value: 3}}, &out)
	want := []vm.Instruction{
		vm.Num(1), vm.Num(2),
		vm.Bool(true),
		vm.Case([]vm.Pattern{vm.ValuePattern(vm.Bool(true))}, 5),
		vm.Num(3),
	}
	assertCode(t, "if appended", out, want)
}
