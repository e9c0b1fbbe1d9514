// Package vm implements the nq virtual machine.
//
// This package contains:
//   - Instruction set and disassembly
//   - Runtime values and the flat variable environment
//   - Stack interpreter with Case dispatch and procedure execution
//   - Input and output ports
//   - CBOR-encoded program images
package vm
