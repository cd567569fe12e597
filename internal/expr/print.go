package expr

import (
	"fmt"
	"strings"
)

// String renders a tree as an s-expression for diagnostics.
func String(n Node) string {
	var sb strings.Builder
	write(&sb, n)
	return sb.String()
}

func write(sb *strings.Builder, n Node) {
	switch n := n.(type) {
	case nil:
		sb.WriteString("nil")
	case *Constant:
		if s, ok := n.Value.(string); ok {
			fmt.Fprintf(sb, "%q", s)
			return
		}
		fmt.Fprintf(sb, "%v", n.Value)
	case *Parameter:
		sb.WriteString(n.Name)
	case *Lambda:
		sb.WriteString("(lambda")
		if n.Name != "" {
			sb.WriteString(" " + n.Name)
		}
		sb.WriteString(" (")
		writeParams(sb, n.Params)
		sb.WriteString(") ")
		write(sb, n.Body)
		sb.WriteByte(')')
	case *Block:
		sb.WriteString("(block (")
		writeParams(sb, n.Vars)
		sb.WriteByte(')')
		for _, b := range n.Body {
			sb.WriteByte(' ')
			write(sb, b)
		}
		sb.WriteByte(')')
	case *Binary:
		fmt.Fprintf(sb, "(%s ", n.Op)
		write(sb, n.Left)
		sb.WriteByte(' ')
		write(sb, n.Right)
		sb.WriteByte(')')
	case *Assign:
		sb.WriteString("(set! ")
		write(sb, n.Target)
		sb.WriteByte(' ')
		write(sb, n.Value)
		sb.WriteByte(')')
	case *Conditional:
		sb.WriteString("(if ")
		write(sb, n.Test)
		sb.WriteByte(' ')
		write(sb, n.Then)
		if n.Else != nil {
			sb.WriteByte(' ')
			write(sb, n.Else)
		}
		sb.WriteByte(')')
	case *Try:
		sb.WriteString("(try ")
		write(sb, n.Body)
		for _, h := range n.Handlers {
			sb.WriteByte(' ')
			write(sb, h)
		}
		if n.Finally != nil {
			sb.WriteString(" (finally ")
			write(sb, n.Finally)
			sb.WriteByte(')')
		}
		sb.WriteByte(')')
	case *Catch:
		sb.WriteString("(catch ")
		if n.Var != nil {
			sb.WriteString(n.Var.Name + " ")
		}
		write(sb, n.Body)
		sb.WriteByte(')')
	case *Throw:
		sb.WriteString("(throw ")
		write(sb, n.Value)
		sb.WriteByte(')')
	case *Invoke:
		sb.WriteString("(invoke ")
		write(sb, n.Target)
		for _, a := range n.Args {
			sb.WriteByte(' ')
			write(sb, a)
		}
		sb.WriteByte(')')
	case *RuntimeVariables:
		sb.WriteString("(vars")
		for _, v := range n.Vars {
			sb.WriteString(" " + v.Name)
		}
		sb.WriteByte(')')
	case *MergeVariables:
		sb.WriteString("(merge ")
		write(sb, n.Local)
		fmt.Fprintf(sb, " <%d hoisted> %v)", n.Hoisted.Count(), n.Indexes)
	case *CellValue:
		fmt.Fprintf(sb, "(cell %v)", n.Cell.Load())
	case *Slot:
		sb.WriteString("(slot ")
		write(sb, n.Record)
		fmt.Fprintf(sb, " %d)", n.Index)
	default:
		fmt.Fprintf(sb, "<%T>", n)
	}
}

func writeParams(sb *strings.Builder, params []*Parameter) {
	for i, p := range params {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(p.Name)
	}
}
