package vm

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// OutputPort receives values emitted by Output instructions. Returning
// false rejects the value, which faults the run.
type OutputPort interface {
	Deliver(v Value) bool
}

// InputPort supplies values to Input instructions. Read may block.
type InputPort interface {
	Read() (Value, error)
}

// ---------------------------------------------------------------------------
// Console ports
// ---------------------------------------------------------------------------

// ConsoleOutput writes each delivered value on its own line.
type ConsoleOutput struct {
	w io.Writer
}

func NewConsoleOutput(w io.Writer) *ConsoleOutput {
	return &ConsoleOutput{w: w}
}

// Deliver always accepts. Write errors are not reported to the program.
func (c *ConsoleOutput) Deliver(v Value) bool {
	fmt.Fprintln(c.w, v.String())
	return true
}

// ConsoleInput reads one integer per line. If prompt is non-nil a "> "
// prompt is written before each read.
type ConsoleInput struct {
	scanner *bufio.Scanner
	prompt  io.Writer
}

func NewConsoleInput(r io.Reader, prompt io.Writer) *ConsoleInput {
	return &ConsoleInput{scanner: bufio.NewScanner(r), prompt: prompt}
}

func (c *ConsoleInput) Read() (Value, error) {
	if c.prompt != nil {
		fmt.Fprint(c.prompt, "> ")
	}
	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return Value{}, err
		}
		return Value{}, io.EOF
	}
	line := strings.TrimSpace(c.scanner.Text())
	n, err := strconv.ParseInt(line, 10, 64)
	if err != nil {
		return Value{}, fmt.Errorf("reading integer: %w", err)
	}
	return NumValue(n), nil
}

// NopInput answers every read with Num(0).
type NopInput struct{}

func (NopInput) Read() (Value, error) { return NumValue(0), nil }

// ---------------------------------------------------------------------------
// Scripted ports
// ---------------------------------------------------------------------------

// ExpectQueue is an output port that accepts a value only if it equals the
// next expected value. Each delivery consumes one expectation.
type ExpectQueue struct {
	expected []Value
	got      []Value
}

func NewExpectQueue(expected ...Value) *ExpectQueue {
	return &ExpectQueue{expected: append([]Value(nil), expected...)}
}

func (q *ExpectQueue) Deliver(v Value) bool {
	q.got = append(q.got, v)
	if len(q.expected) == 0 {
		return false
	}
	want := q.expected[0]
	q.expected = q.expected[1:]
	return Equal(want, v)
}

// Remaining returns the expectations not yet consumed.
func (q *ExpectQueue) Remaining() []Value { return q.expected }

// Delivered returns every value delivered so far, accepted or not.
func (q *ExpectQueue) Delivered() []Value { return q.got }

// QueueInput replays a fixed list of values and then reports io.EOF.
type QueueInput struct {
	values []Value
}

func NewQueueInput(values ...Value) *QueueInput {
	return &QueueInput{values: append([]Value(nil), values...)}
}

func (q *QueueInput) Read() (Value, error) {
	if len(q.values) == 0 {
		return Value{}, io.EOF
	}
	v := q.values[0]
	q.values = q.values[1:]
	return v, nil
}

// Recorder is an output port that accepts and keeps every value.
type Recorder struct {
	Values []Value
}

func (r *Recorder) Deliver(v Value) bool {
	r.Values = append(r.Values, v)
	return true
}
