package vm

import (
	"fmt"
	"strings"
)

// Disassemble returns a listing of code, one instruction per line in the
// form "0003  INSTR". Nested code (procedures, blocks, pattern values) is
// listed below its owner, indented by two spaces per level.
func Disassemble(code []Instruction) string {
	var b strings.Builder
	disassemble(&b, code, 0)
	return strings.TrimSuffix(b.String(), "\n")
}

// DisassembleInstruction formats a single instruction at position pos.
func DisassembleInstruction(pos int, in Instruction) string {
	s := fmt.Sprintf("%04d  %s", pos, in)
	if in.Op == OpJump || in.Op == OpCase {
		if in.Target < JumpExit {
			s += fmt.Sprintf(" (-> %04d)", in.Target)
		}
	}
	return s
}

func disassemble(b *strings.Builder, code []Instruction, level int) {
	indent := strings.Repeat("  ", level)
	for i, in := range code {
		b.WriteString(indent)
		b.WriteString(DisassembleInstruction(i, in))
		b.WriteByte('\n')
		if len(in.Code) > 0 {
			disassemble(b, in.Code, level+1)
		}
		for j, p := range in.Patterns {
			if p.Kind != PatternValue {
				continue
			}
			fmt.Fprintf(b, "%s  pattern %d:\n", indent, j)
			disassemble(b, p.Code, level+2)
		}
	}
}
