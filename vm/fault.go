package vm

import (
	"errors"
	"fmt"
)

// FaultKind classifies a fatal execution fault.
type FaultKind int

const (
	SyntaxFault FaultKind = iota + 1
	UnboundName
	TypeMismatch
	StackUnderflow
	ShapeInvariant
	DivisionByZero
	PortRejected
	PortFailure
	Overflow
)

var faultNames = map[FaultKind]string{
	SyntaxFault:    "syntax fault",
	UnboundName:    "unbound name",
	TypeMismatch:   "type mismatch",
	StackUnderflow: "stack underflow",
	ShapeInvariant: "shape invariant",
	DivisionByZero: "division by zero",
	PortRejected:   "port rejected value",
	PortFailure:    "port failure",
	Overflow:       "integer overflow",
}

func (k FaultKind) String() string {
	if name, ok := faultNames[k]; ok {
		return name
	}
	return fmt.Sprintf("fault(%d)", int(k))
}

// Fault is the error returned for every fatal condition raised while
// executing IR. Index is -1 when the fault was raised outside an
// instruction vector (for example by a value operation called directly).
type Fault struct {
	Kind   FaultKind
	Index  int
	Instr  *Instruction
	Name   string
	Detail string
	Err    error
}

func newFault(kind FaultKind, format string, args ...any) *Fault {
	return &Fault{Kind: kind, Index: -1, Detail: fmt.Sprintf(format, args...)}
}

func (f *Fault) Error() string {
	msg := f.Kind.String()
	if f.Index >= 0 && f.Instr != nil {
		msg += fmt.Sprintf(" at %d (%s)", f.Index, f.Instr)
	}
	if f.Name != "" {
		msg += fmt.Sprintf(": %q", f.Name)
	}
	if f.Detail != "" {
		msg += ": " + f.Detail
	}
	if f.Err != nil {
		msg += ": " + f.Err.Error()
	}
	return msg
}

func (f *Fault) Unwrap() error { return f.Err }

// at records the position of the faulting instruction unless an inner
// execution already did.
func (f *Fault) at(index int, in Instruction) *Fault {
	if f.Instr == nil {
		f.Index = index
		f.Instr = &in
	}
	return f
}

// FaultKindOf reports the kind of the first Fault in err's chain, or 0.
func FaultKindOf(err error) FaultKind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	return 0
}
