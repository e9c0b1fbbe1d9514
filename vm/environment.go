package vm

import "sort"

// Environment is the single name table shared by a run and every procedure
// it executes. There are no frames: a callee reads and writes the same
// bindings as its caller.
type Environment struct {
	bindings map[string]Value
}

// NewEnvironment returns an empty environment.
func NewEnvironment() *Environment {
	return &Environment{bindings: make(map[string]Value)}
}

// Set binds name to v, replacing any earlier binding.
func (e *Environment) Set(name string, v Value) {
	e.bindings[name] = v
}

// Lookup returns the value bound to name.
func (e *Environment) Lookup(name string) (Value, bool) {
	v, ok := e.bindings[name]
	return v, ok
}

// Len returns the number of bound names.
func (e *Environment) Len() int { return len(e.bindings) }

// Names returns the bound names in sorted order.
func (e *Environment) Names() []string {
	names := make([]string, 0, len(e.bindings))
	for name := range e.bindings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
