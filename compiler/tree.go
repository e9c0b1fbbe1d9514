package compiler

import (
	"fmt"
	"strings"
)

// FormatTree renders a statement tree, one node per line, children
// indented by two spaces.
func FormatTree(s Stmt) string {
	var b strings.Builder
	formatTree(&b, s, 0)
	return strings.TrimSuffix(b.String(), "\n")
}

func formatTree(b *strings.Builder, s Stmt, depth int) {
	indent := strings.Repeat("  ", depth)
	line := func(format string, args ...any) {
		b.WriteString(indent)
		fmt.Fprintf(b, format, args...)
		b.WriteByte('\n')
	}
	child := func(label string, c Stmt) {
		if label != "" {
			b.WriteString(indent)
			b.WriteString("  " + label + ":\n")
			formatTree(b, c, depth+2)
			return
		}
		formatTree(b, c, depth+1)
	}

	switch n := s.(type) {
	case *Block:
		line("Block %s (%d)", n.Kind, len(n.Stmts))
		for _, st := range n.Stmts {
			child("", st)
		}
	case *Number:
		line("Number %d", n.Value)
	case *Bool:
		line("Bool %t", n.Value)
	case *Nil:
		line("Nil")
	case *Name:
		line("Name %s", n.Name)
	case *Comparison:
		line("Comparison %s", n.Op)
		child("", n.Left)
		child("", n.Right)
	case *OperationNumber:
		line("OperationNumber %s", n.Op)
		child("", n.Left)
		child("", n.Right)
	case *OperationBool:
		line("OperationBool %s", n.Op)
		child("", n.Left)
		if n.Right != nil {
			child("", n.Right)
		}
	case *If:
		line("If")
		child("cond", n.Cond)
		child("then", n.Then)
		if n.Else != nil {
			child("else", n.Else)
		}
	case *Set:
		line("Set %s", n.Name)
		child("", n.Value)
	case *Define:
		line("Define %s", n.Alias)
		child("", n.Link)
	case *Out:
		if n.To != "" {
			line("Out -> %s", n.To)
		} else {
			line("Out")
		}
		child("", n.Expr)
	case *In:
		if n.From != "" {
			line("In <- %s", n.From)
		} else {
			line("In")
		}
	case *Jump:
		if n.Repeat {
			line("Jump again")
		} else {
			line("Jump stop")
		}
	case *Call:
		line("Call %s", n.Name)
	case *Quote:
		line("Quote")
		child("", n.Body)
	default:
		line("%T", s)
	}
}
