package vm

import (
	"fmt"
	"math"
	"strings"
)

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// Opcode identifies the kind of an Instruction.
type Opcode byte

// Literals
const (
	OpNil  Opcode = 0x00 // no operation; an empty statement
	OpNum  Opcode = 0x01 // push Num
	OpBool Opcode = 0x02 // push Bool
	OpProc Opcode = 0x03 // push a Procedure built from Code
)

// Operators
const (
	OpBinOp Opcode = 0x10 // pop a, pop b, push b <Arith> a
	OpNot   Opcode = 0x11 // pop a, push not a
	OpOr    Opcode = 0x12 // pop a, pop b, push b or a
	OpAnd   Opcode = 0x13 // pop a, pop b, push b and a
)

// Comparisons
const (
	OpEq Opcode = 0x20
	OpNe Opcode = 0x21
	OpLt Opcode = 0x22
	OpGt Opcode = 0x23
	OpLe Opcode = 0x24
	OpGe Opcode = 0x25
)

// Environment
const (
	OpStore  Opcode = 0x30 // pop, bind Name
	OpLoad   Opcode = 0x31 // push value bound to Name
	OpDefine Opcode = 0x32 // bind Name to a Procedure built from Code
)

// Control flow
const (
	OpJump        Opcode = 0x40 // continue at Target
	OpExec        Opcode = 0x41 // run the Procedure bound to Name, splice results
	OpInlineBlock Opcode = 0x42 // run Code, splice results
	OpPack        Opcode = 0x43 // run Code, push results collapsed to one value
	OpCase        Opcode = 0x44 // match Patterns against the stack, else continue at Target
)

// Ports
const (
	OpInput  Opcode = 0x50 // push a value read from input port Name
	OpOutput Opcode = 0x51 // pop, deliver to output port Name
)

// JumpExit is the jump target used for "leave the current block". Any
// target at or past the end of an instruction vector halts it normally.
const JumpExit = math.MaxInt32

// ---------------------------------------------------------------------------
// Opcode metadata
// ---------------------------------------------------------------------------

// OpcodeInfo holds metadata about an opcode.
type OpcodeInfo struct {
	Name        string // human-readable name
	StackEffect int    // net effect on stack (-99 = variable)
}

const variableEffect = -99

var opcodeTable = map[Opcode]OpcodeInfo{
	OpNil:  {"NIL", 0},
	OpNum:  {"NUM", 1},
	OpBool: {"BOOL", 1},
	OpProc: {"PROC", 1},

	OpBinOp: {"BINOP", -1},
	OpNot:   {"NOT", 0},
	OpOr:    {"OR", -1},
	OpAnd:   {"AND", -1},

	OpEq: {"EQ", -1},
	OpNe: {"NE", -1},
	OpLt: {"LT", -1},
	OpGt: {"GT", -1},
	OpLe: {"LE", -1},
	OpGe: {"GE", -1},

	OpStore:  {"STORE", -1},
	OpLoad:   {"LOAD", 1},
	OpDefine: {"DEFINE", 0},

	OpJump:        {"JUMP", 0},
	OpExec:        {"EXEC", variableEffect},
	OpInlineBlock: {"INLINE", variableEffect},
	OpPack:        {"PACK", 1},
	OpCase:        {"CASE", variableEffect},

	OpInput:  {"INPUT", 1},
	OpOutput: {"OUTPUT", -1},
}

// Info returns the metadata for an opcode.
func (op Opcode) Info() OpcodeInfo {
	if info, ok := opcodeTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN_%02X", byte(op)), StackEffect: 0}
}

func (op Opcode) String() string {
	return op.Info().Name
}

// ---------------------------------------------------------------------------
// Arithmetic operators carried by OpBinOp
// ---------------------------------------------------------------------------

// ArithOp selects the operation of an OpBinOp instruction.
type ArithOp byte

const (
	ArithAdd ArithOp = iota + 1
	ArithSub
	ArithMul
	ArithDiv
	ArithMod
)

var arithNames = map[ArithOp]string{
	ArithAdd: "add",
	ArithSub: "sub",
	ArithMul: "mul",
	ArithDiv: "div",
	ArithMod: "mod",
}

func (a ArithOp) String() string {
	if name, ok := arithNames[a]; ok {
		return name
	}
	return fmt.Sprintf("arith(%d)", a)
}

// ---------------------------------------------------------------------------
// Patterns
// ---------------------------------------------------------------------------

// PatternKind distinguishes the three Case pattern forms.
type PatternKind byte

const (
	PatternBind     PatternKind = iota + 1 // pop and bind to Name
	PatternValue                           // pop and compare with the result of Code
	PatternWildcard                        // pop and discard
)

// Pattern is one element of a Case instruction's pattern list.
type Pattern struct {
	Kind PatternKind   `cbor:"1,keyasint"`
	Name string        `cbor:"2,keyasint,omitempty"`
	Code []Instruction `cbor:"3,keyasint,omitempty"`
}

// BindPattern returns a pattern that binds the matched value to name.
func BindPattern(name string) Pattern {
	return Pattern{Kind: PatternBind, Name: name}
}

// ValuePattern returns a pattern requiring the matched value to equal the
// value computed by code.
func ValuePattern(code ...Instruction) Pattern {
	return Pattern{Kind: PatternValue, Code: code}
}

// WildcardPattern returns a pattern that discards one value.
func WildcardPattern() Pattern {
	return Pattern{Kind: PatternWildcard}
}

func (p Pattern) String() string {
	switch p.Kind {
	case PatternBind:
		return "bind " + p.Name
	case PatternValue:
		parts := make([]string, len(p.Code))
		for i, in := range p.Code {
			parts[i] = in.String()
		}
		return "value [" + strings.Join(parts, "; ") + "]"
	case PatternWildcard:
		return "_"
	}
	return fmt.Sprintf("pattern(%d)", p.Kind)
}

// ---------------------------------------------------------------------------
// Instruction
// ---------------------------------------------------------------------------

// Instruction is a single IR instruction. Its position in the enclosing
// vector is its address. Only the fields relevant to Op are set.
type Instruction struct {
	Op       Opcode        `cbor:"1,keyasint"`
	Num      int64         `cbor:"2,keyasint,omitempty"`
	Bool     bool          `cbor:"3,keyasint,omitempty"`
	Arith    ArithOp       `cbor:"4,keyasint,omitempty"`
	Name     string        `cbor:"5,keyasint,omitempty"`
	Target   int           `cbor:"6,keyasint,omitempty"`
	Code     []Instruction `cbor:"7,keyasint,omitempty"`
	Patterns []Pattern     `cbor:"8,keyasint,omitempty"`
}

// Constructors, one per instruction form.

func Num(n int64) Instruction                      { return Instruction{Op: OpNum, Num: n} }
func Bool(b bool) Instruction                      { return Instruction{Op: OpBool, Bool: b} }
func NilOp() Instruction                           { return Instruction{Op: OpNil} }
func BinOp(a ArithOp) Instruction                  { return Instruction{Op: OpBinOp, Arith: a} }
func Simple(op Opcode) Instruction                 { return Instruction{Op: op} }
func Store(name string) Instruction                { return Instruction{Op: OpStore, Name: name} }
func Load(name string) Instruction                 { return Instruction{Op: OpLoad, Name: name} }
func Jump(target int) Instruction                  { return Instruction{Op: OpJump, Target: target} }
func Exec(name string) Instruction                 { return Instruction{Op: OpExec, Name: name} }
func Input(port string) Instruction                { return Instruction{Op: OpInput, Name: port} }
func Output(port string) Instruction               { return Instruction{Op: OpOutput, Name: port} }
func InlineBlock(code []Instruction) Instruction   { return Instruction{Op: OpInlineBlock, Code: code} }
func Pack(code []Instruction) Instruction          { return Instruction{Op: OpPack, Code: code} }
func Proc(code []Instruction) Instruction          { return Instruction{Op: OpProc, Code: code} }
func Define(name string, code []Instruction) Instruction {
	return Instruction{Op: OpDefine, Name: name, Code: code}
}
func Case(patterns []Pattern, failTarget int) Instruction {
	return Instruction{Op: OpCase, Patterns: patterns, Target: failTarget}
}

// String renders a one-line form of the instruction. Nested code is
// summarized by its length; use Disassemble for a full listing.
func (in Instruction) String() string {
	name := in.Op.String()
	switch in.Op {
	case OpNum:
		return fmt.Sprintf("%s %d", name, in.Num)
	case OpBool:
		return fmt.Sprintf("%s %t", name, in.Bool)
	case OpBinOp:
		return fmt.Sprintf("%s %s", name, in.Arith)
	case OpStore, OpLoad, OpExec:
		return fmt.Sprintf("%s %s", name, in.Name)
	case OpInput, OpOutput:
		if in.Name == "" {
			return name
		}
		return fmt.Sprintf("%s %s", name, in.Name)
	case OpJump:
		if in.Target >= JumpExit {
			return name + " exit"
		}
		return fmt.Sprintf("%s %d", name, in.Target)
	case OpDefine:
		return fmt.Sprintf("%s %s <%d>", name, in.Name, len(in.Code))
	case OpProc, OpInlineBlock, OpPack:
		return fmt.Sprintf("%s <%d>", name, len(in.Code))
	case OpCase:
		parts := make([]string, len(in.Patterns))
		for i, p := range in.Patterns {
			parts[i] = p.String()
		}
		return fmt.Sprintf("%s {%s} else %d", name, strings.Join(parts, ", "), in.Target)
	}
	return name
}

// Equal reports whether two instructions are structurally identical,
// including nested code and patterns.
func (in Instruction) Equal(other Instruction) bool {
	if in.Op != other.Op || in.Num != other.Num || in.Bool != other.Bool ||
		in.Arith != other.Arith || in.Name != other.Name || in.Target != other.Target {
		return false
	}
	if !CodeEqual(in.Code, other.Code) || len(in.Patterns) != len(other.Patterns) {
		return false
	}
	for i := range in.Patterns {
		a, b := in.Patterns[i], other.Patterns[i]
		if a.Kind != b.Kind || a.Name != b.Name || !CodeEqual(a.Code, b.Code) {
			return false
		}
	}
	return true
}

// CodeEqual reports whether two instruction vectors are structurally identical.
func CodeEqual(a, b []Instruction) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// CloneCode returns a deep copy of an instruction vector.
func CloneCode(code []Instruction) []Instruction {
	if code == nil {
		return nil
	}
	out := make([]Instruction, len(code))
	for i, in := range code {
		out[i] = in
		out[i].Code = CloneCode(in.Code)
		if in.Patterns != nil {
			out[i].Patterns = make([]Pattern, len(in.Patterns))
			for j, p := range in.Patterns {
				out[i].Patterns[j] = Pattern{Kind: p.Kind, Name: p.Name, Code: CloneCode(p.Code)}
			}
		}
	}
	return out
}
