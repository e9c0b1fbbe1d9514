package vm

import (
	"errors"
	"strings"
)

// ---------------------------------------------------------------------------
// Operand stack
// ---------------------------------------------------------------------------

type operandStack []Value

func (s *operandStack) push(v Value) {
	*s = append(*s, v)
}

func (s *operandStack) pop() (Value, error) {
	n := len(*s)
	if n == 0 {
		return Value{}, newFault(StackUnderflow, "pop from empty stack")
	}
	v := (*s)[n-1]
	*s = (*s)[:n-1]
	return v, nil
}

// pop2 pops a and then b, returning them as (b, a) so that b is the left
// operand in source order.
func (s *operandStack) pop2() (Value, Value, error) {
	a, err := s.pop()
	if err != nil {
		return Value{}, Value{}, err
	}
	b, err := s.pop()
	if err != nil {
		return Value{}, Value{}, err
	}
	return b, a, nil
}

// ---------------------------------------------------------------------------
// Execution
// ---------------------------------------------------------------------------

// Execute runs code against env and returns the operand stack left when the
// instruction pointer runs past the end. Nested procedures, inline blocks
// and pattern values are executed recursively against the same env. Any
// fault aborts the whole run; no partial stack is returned.
func (v *VM) Execute(code []Instruction, env *Environment) ([]Value, error) {
	var stack operandStack
	ip := 0
	for ip < len(code) {
		in := code[ip]
		if v.trace {
			v.log.Debugf("%s%04d %s", strings.Repeat("  ", v.depth), ip, in)
		}

		next, err := v.step(code, ip, &stack, env)
		if err != nil {
			return nil, v.fail(err, ip, in)
		}
		if next < 0 {
			return nil, newFault(ShapeInvariant, "negative target %d", next).at(ip, in)
		}
		ip = next
	}
	return stack, nil
}

// step executes code[ip] and returns the index of the next instruction.
func (v *VM) step(code []Instruction, ip int, stack *operandStack, env *Environment) (int, error) {
	in := code[ip]
	switch in.Op {
	case OpNil:

	case OpNum:
		stack.push(NumValue(in.Num))
	case OpBool:
		stack.push(BoolValue(in.Bool))
	case OpProc:
		stack.push(ProcedureValue(in.Code))

	case OpBinOp:
		b, a, err := stack.pop2()
		if err != nil {
			return 0, err
		}
		r, err := Arith(in.Arith, b, a)
		if err != nil {
			return 0, err
		}
		stack.push(r)
	case OpNot:
		a, err := stack.pop()
		if err != nil {
			return 0, err
		}
		r, err := Negate(a)
		if err != nil {
			return 0, err
		}
		stack.push(r)
	case OpOr, OpAnd:
		b, a, err := stack.pop2()
		if err != nil {
			return 0, err
		}
		op := Or
		if in.Op == OpAnd {
			op = And
		}
		r, err := op(b, a)
		if err != nil {
			return 0, err
		}
		stack.push(r)
	case OpEq, OpNe, OpLt, OpGt, OpLe, OpGe:
		b, a, err := stack.pop2()
		if err != nil {
			return 0, err
		}
		r, err := Compare(in.Op, b, a)
		if err != nil {
			return 0, err
		}
		stack.push(r)

	case OpStore:
		val, err := stack.pop()
		if err != nil {
			return 0, err
		}
		env.Set(in.Name, val)
	case OpLoad:
		val, ok := env.Lookup(in.Name)
		if !ok {
			return 0, &Fault{Kind: UnboundName, Index: -1, Name: in.Name}
		}
		stack.push(val)
	case OpDefine:
		env.Set(in.Name, ProcedureValue(in.Code))

	case OpJump:
		return in.Target, nil
	case OpExec:
		proc, ok := env.Lookup(in.Name)
		if !ok {
			return 0, &Fault{Kind: UnboundName, Index: -1, Name: in.Name}
		}
		if !proc.IsProcedure() {
			return 0, &Fault{Kind: TypeMismatch, Index: -1, Name: in.Name,
				Detail: "exec of " + proc.Kind().String()}
		}
		results, err := v.nested(proc.Code(), env)
		if err != nil {
			return 0, err
		}
		*stack = append(*stack, results...)
	case OpInlineBlock:
		results, err := v.nested(in.Code, env)
		if err != nil {
			return 0, err
		}
		*stack = append(*stack, results...)
	case OpPack:
		results, err := v.nested(in.Code, env)
		if err != nil {
			return 0, err
		}
		stack.push(Collapse(results))
	case OpCase:
		matched, err := v.match(in, len(code), stack, env)
		if err != nil {
			return 0, err
		}
		if !matched {
			return in.Target, nil
		}

	case OpInput:
		port, ok := v.input(in.Name)
		if !ok {
			return 0, &Fault{Kind: PortFailure, Index: -1, Name: in.Name, Detail: "no such input port"}
		}
		val, err := port.Read()
		if err != nil {
			return 0, &Fault{Kind: PortFailure, Index: -1, Name: in.Name, Err: err}
		}
		stack.push(val)
	case OpOutput:
		val, err := stack.pop()
		if err != nil {
			return 0, err
		}
		port, ok := v.output(in.Name)
		if !ok {
			return 0, &Fault{Kind: PortFailure, Index: -1, Name: in.Name, Detail: "no such output port"}
		}
		if !port.Deliver(val) {
			return 0, &Fault{Kind: PortRejected, Index: -1, Name: in.Name, Detail: val.String()}
		}

	default:
		return 0, newFault(ShapeInvariant, "unknown opcode %s", in.Op)
	}
	return ip + 1, nil
}

// nested runs an inner instruction vector one trace level deeper.
func (v *VM) nested(code []Instruction, env *Environment) ([]Value, error) {
	v.depth++
	defer func() { v.depth-- }()
	return v.Execute(code, env)
}

// match applies a Case instruction's patterns to the top of the stack,
// topmost value first. It stops at the first mismatch.
func (v *VM) match(in Instruction, codeLen int, stack *operandStack, env *Environment) (bool, error) {
	if len(in.Patterns) > len(*stack) {
		return false, newFault(StackUnderflow, "%d patterns against stack depth %d", len(in.Patterns), len(*stack))
	}
	if in.Target < 0 || in.Target > codeLen {
		return false, newFault(ShapeInvariant, "case target %d outside vector of length %d", in.Target, codeLen)
	}
	for _, p := range in.Patterns {
		val, err := stack.pop()
		if err != nil {
			return false, err
		}
		switch p.Kind {
		case PatternBind:
			env.Set(p.Name, val)
		case PatternValue:
			results, err := v.nested(p.Code, env)
			if err != nil {
				return false, err
			}
			if !Equal(val, Collapse(results)) {
				return false, nil
			}
		case PatternWildcard:
		default:
			return false, newFault(ShapeInvariant, "unknown pattern kind %d", p.Kind)
		}
	}
	return true, nil
}

// fail converts err into a *Fault positioned at the failing instruction.
func (v *VM) fail(err error, ip int, in Instruction) error {
	var f *Fault
	if !errors.As(err, &f) {
		f = &Fault{Kind: PortFailure, Index: -1, Err: err}
	}
	f.at(ip, in)
	if v.depth == 0 {
		v.log.Debugf("run aborted: %s", f)
	}
	return f
}
