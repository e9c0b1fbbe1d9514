package vm

import (
	"os"

	"github.com/tliron/commonlog"
)

// ---------------------------------------------------------------------------
// VM: ports, logging and entry points
// ---------------------------------------------------------------------------

// DefaultPort is the port name used by Input and Output instructions that
// do not name one.
const DefaultPort = ""

// VM executes instruction vectors. It holds only the capabilities a run may
// use (ports and a logger); all program state lives in the Environment
// passed to Execute and in the operand stack of each activation.
type VM struct {
	outputs map[string]OutputPort
	inputs  map[string]InputPort

	log   commonlog.Logger
	trace bool
	depth int
}

// Option configures a VM.
type Option func(*VM)

// WithOutput registers an output port under name.
func WithOutput(name string, port OutputPort) Option {
	return func(v *VM) { v.outputs[name] = port }
}

// WithInput registers an input port under name.
func WithInput(name string, port InputPort) Option {
	return func(v *VM) { v.inputs[name] = port }
}

// WithTrace logs every executed instruction at debug level.
func WithTrace(on bool) Option {
	return func(v *VM) { v.trace = on }
}

// WithLogger replaces the "nq.vm" logger.
func WithLogger(log commonlog.Logger) Option {
	return func(v *VM) { v.log = log }
}

// New creates a VM. Unless overridden, the default output port writes to
// stdout and the default input port always reads Num(0).
func New(opts ...Option) *VM {
	v := &VM{
		outputs: map[string]OutputPort{DefaultPort: NewConsoleOutput(os.Stdout)},
		inputs:  map[string]InputPort{DefaultPort: NopInput{}},
		log:     commonlog.GetLogger("nq.vm"),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// SetOutput registers or replaces an output port.
func (v *VM) SetOutput(name string, port OutputPort) { v.outputs[name] = port }

// SetInput registers or replaces an input port.
func (v *VM) SetInput(name string, port InputPort) { v.inputs[name] = port }

// Run executes code against a fresh environment and returns the final
// operand stack.
func (v *VM) Run(code []Instruction) ([]Value, error) {
	return v.Execute(code, NewEnvironment())
}

func (v *VM) output(name string) (OutputPort, bool) {
	p, ok := v.outputs[name]
	return p, ok
}

func (v *VM) input(name string) (InputPort, bool) {
	p, ok := v.inputs[name]
	return p, ok
}
