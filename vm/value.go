package vm

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind is the tag of a runtime Value.
type Kind byte

const (
	KindNum Kind = iota + 1
	KindBool
	KindTuple
	KindProcedure
)

func (k Kind) String() string {
	switch k {
	case KindNum:
		return "num"
	case KindBool:
		return "bool"
	case KindTuple:
		return "tuple"
	case KindProcedure:
		return "procedure"
	}
	return "invalid"
}

// Value is a runtime value: a number, a boolean, a tuple of values or a
// procedure holding its own copy of an instruction vector. The zero Value
// is invalid and never produced by the VM.
type Value struct {
	kind  Kind
	num   int64
	b     bool
	items []Value
	code  []Instruction
}

// ---------------------------------------------------------------------------
// Constructors and accessors
// ---------------------------------------------------------------------------

func NumValue(n int64) Value { return Value{kind: KindNum, num: n} }

func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }

// TupleValue builds a tuple. The items slice is copied.
func TupleValue(items ...Value) Value {
	out := make([]Value, len(items))
	copy(out, items)
	return Value{kind: KindTuple, items: out}
}

// ProcedureValue builds a procedure from a deep copy of code, so later
// changes to the caller's vector never reach the stored procedure.
func ProcedureValue(code []Instruction) Value {
	return Value{kind: KindProcedure, code: CloneCode(code)}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNum() bool       { return v.kind == KindNum }
func (v Value) IsBool() bool      { return v.kind == KindBool }
func (v Value) IsTuple() bool     { return v.kind == KindTuple }
func (v Value) IsProcedure() bool { return v.kind == KindProcedure }

// Num returns the integer held by a Num value and zero otherwise.
func (v Value) Num() int64 { return v.num }

// Bool returns the flag held by a Bool value and false otherwise.
func (v Value) Bool() bool { return v.b }

// Items returns the elements of a Tuple value.
func (v Value) Items() []Value { return v.items }

// Code returns the instructions of a Procedure value.
func (v Value) Code() []Instruction { return v.code }

// Collapse turns the results of a value-producing block into one value:
// nothing becomes the empty tuple, a single result is returned as is and
// several results become a tuple in order.
func Collapse(results []Value) Value {
	if len(results) == 1 {
		return results[0]
	}
	return TupleValue(results...)
}

func (v Value) String() string {
	switch v.kind {
	case KindNum:
		return strconv.FormatInt(v.num, 10)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindTuple:
		parts := make([]string, len(v.items))
		for i, item := range v.items {
			parts[i] = item.String()
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case KindProcedure:
		return fmt.Sprintf("<procedure %d>", len(v.code))
	}
	return "<invalid>"
}

// ---------------------------------------------------------------------------
// Equality
// ---------------------------------------------------------------------------

// Equal reports structural equality. Values of different kinds are never
// equal.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNum:
		return a.num == b.num
	case KindBool:
		return a.b == b.b
	case KindTuple:
		if len(a.items) != len(b.items) {
			return false
		}
		for i := range a.items {
			if !Equal(a.items[i], b.items[i]) {
				return false
			}
		}
		return true
	case KindProcedure:
		return CodeEqual(a.code, b.code)
	}
	return false
}

// ---------------------------------------------------------------------------
// Arithmetic and logic
// ---------------------------------------------------------------------------

func mismatch(op string, a, b Value) *Fault {
	return newFault(TypeMismatch, "%s %s %s", a.kind, op, b.kind)
}

func overflow(op string, a, b int64) *Fault {
	return newFault(Overflow, "%d %s %d", a, op, b)
}

// Add sums two numbers, or ors two booleans.
func Add(a, b Value) (Value, error) {
	switch {
	case a.kind == KindNum && b.kind == KindNum:
		sum := a.num + b.num
		if (a.num^sum)&(b.num^sum) < 0 {
			return Value{}, overflow("+", a.num, b.num)
		}
		return NumValue(sum), nil
	case a.kind == KindBool && b.kind == KindBool:
		return BoolValue(a.b || b.b), nil
	}
	return Value{}, mismatch("+", a, b)
}

// Sub subtracts two numbers.
func Sub(a, b Value) (Value, error) {
	if a.kind == KindNum && b.kind == KindNum {
		diff := a.num - b.num
		if (a.num^b.num)&(a.num^diff) < 0 {
			return Value{}, overflow("-", a.num, b.num)
		}
		return NumValue(diff), nil
	}
	return Value{}, mismatch("-", a, b)
}

// Mul multiplies two numbers, or ands two booleans.
func Mul(a, b Value) (Value, error) {
	switch {
	case a.kind == KindNum && b.kind == KindNum:
		prod := a.num * b.num
		if a.num != 0 && (prod/a.num != b.num || (a.num == -1 && b.num == math.MinInt64)) {
			return Value{}, overflow("*", a.num, b.num)
		}
		return NumValue(prod), nil
	case a.kind == KindBool && b.kind == KindBool:
		return BoolValue(a.b && b.b), nil
	}
	return Value{}, mismatch("*", a, b)
}

// Div divides two numbers, truncating toward zero.
func Div(a, b Value) (Value, error) {
	if a.kind != KindNum || b.kind != KindNum {
		return Value{}, mismatch("/", a, b)
	}
	if b.num == 0 {
		return Value{}, newFault(DivisionByZero, "%d / 0", a.num)
	}
	if a.num == math.MinInt64 && b.num == -1 {
		return Value{}, overflow("/", a.num, b.num)
	}
	return NumValue(a.num / b.num), nil
}

// Mod returns the remainder of a truncated division; its sign follows a.
func Mod(a, b Value) (Value, error) {
	if a.kind != KindNum || b.kind != KindNum {
		return Value{}, mismatch("mod", a, b)
	}
	if b.num == 0 {
		return Value{}, newFault(DivisionByZero, "%d mod 0", a.num)
	}
	return NumValue(a.num % b.num), nil
}

// Negate flips a boolean or arithmetically negates a number.
func Negate(a Value) (Value, error) {
	switch a.kind {
	case KindBool:
		return BoolValue(!a.b), nil
	case KindNum:
		if a.num == math.MinInt64 {
			return Value{}, newFault(Overflow, "not %d", a.num)
		}
		return NumValue(-a.num), nil
	}
	return Value{}, newFault(TypeMismatch, "not %s", a.kind)
}

// Or is the boolean-only disjunction used by the | operator.
func Or(a, b Value) (Value, error) {
	if a.kind == KindBool && b.kind == KindBool {
		return BoolValue(a.b || b.b), nil
	}
	return Value{}, mismatch("|", a, b)
}

// And is the boolean-only conjunction used by the & operator.
func And(a, b Value) (Value, error) {
	if a.kind == KindBool && b.kind == KindBool {
		return BoolValue(a.b && b.b), nil
	}
	return Value{}, mismatch("&", a, b)
}

// Arith applies the operation selected by an OpBinOp instruction.
func Arith(op ArithOp, a, b Value) (Value, error) {
	switch op {
	case ArithAdd:
		return Add(a, b)
	case ArithSub:
		return Sub(a, b)
	case ArithMul:
		return Mul(a, b)
	case ArithDiv:
		return Div(a, b)
	case ArithMod:
		return Mod(a, b)
	}
	return Value{}, newFault(ShapeInvariant, "unknown arithmetic operation %s", op)
}

// ---------------------------------------------------------------------------
// Comparison
// ---------------------------------------------------------------------------

var comparisonSymbols = map[Opcode]string{
	OpEq: "=", OpNe: "!=", OpLt: "<", OpGt: ">", OpLe: "<=", OpGe: ">=",
}

// Compare evaluates a comparison opcode on a and b. Equality works on any
// pair of values; ordering is defined for numbers only.
func Compare(op Opcode, a, b Value) (Value, error) {
	switch op {
	case OpEq:
		return BoolValue(Equal(a, b)), nil
	case OpNe:
		return BoolValue(!Equal(a, b)), nil
	}
	sym, ok := comparisonSymbols[op]
	if !ok {
		return Value{}, newFault(ShapeInvariant, "%s is not a comparison", op)
	}
	if a.kind != KindNum || b.kind != KindNum {
		return Value{}, mismatch(sym, a, b)
	}
	switch op {
	case OpLt:
		return BoolValue(a.num < b.num), nil
	case OpGt:
		return BoolValue(a.num > b.num), nil
	case OpLe:
		return BoolValue(a.num <= b.num), nil
	default:
		return BoolValue(a.num >= b.num), nil
	}
}
