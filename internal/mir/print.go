package mir

import (
	"fmt"
	"io"
	"strings"

	"ptrperm/internal/lty"
)

// DumpFunc writes a human-readable representation of f.
func DumpFunc(w io.Writer, f *Func) error {
	if w == nil || f == nil {
		return nil
	}
	if _, err := fmt.Fprintf(w, "fn %s(args=%d):\n", f.Name, f.ArgCount); err != nil {
		return err
	}

	fmt.Fprintf(w, "  locals:\n")
	for i := range f.Locals {
		l := &f.Locals[i]
		id := LocalID(i) //nolint:gosec // G115: bounded by local count
		line := fmt.Sprintf("    _%d: %s %s name=%s", i, lty.String(l.Ty), f.LocalKind(id), f.LocalName(id))
		if l.AddrOf.IsValid() {
			line += fmt.Sprintf(" addr_of=%s", l.AddrOf)
		}
		fmt.Fprintln(w, line)
	}

	for i := range f.Blocks {
		bb := &f.Blocks[i]
		fmt.Fprintf(w, "  bb%d:\n", bb.ID)
		for j := range bb.Stmts {
			fmt.Fprintf(w, "    %s\n", FormatStmt(&bb.Stmts[j]))
		}
		fmt.Fprintf(w, "    %s\n", FormatTerm(&bb.Term))
	}
	return nil
}

// FormatStmt renders one statement.
func FormatStmt(st *Stmt) string {
	if st == nil {
		return "<stmt?>"
	}
	switch st.Kind {
	case StmtAssign:
		return fmt.Sprintf("%s = %s", FormatPlace(st.Assign.Dst), FormatRValue(&st.Assign.Src))
	case StmtStorageLive:
		return fmt.Sprintf("storage_live _%d", st.Local)
	case StmtStorageDead:
		return fmt.Sprintf("storage_dead _%d", st.Local)
	case StmtNop:
		return "nop"
	default:
		return "<stmt?>"
	}
}

// FormatRValue renders a right-hand side.
func FormatRValue(rv *RValue) string {
	if rv == nil {
		return "<rvalue?>"
	}
	switch rv.Kind {
	case RValueUse:
		return formatOperand(&rv.Use)
	case RValueRef:
		if rv.Borrow.Mut {
			return "&mut " + FormatPlace(rv.Borrow.Place)
		}
		return "&" + FormatPlace(rv.Borrow.Place)
	case RValueAddressOf:
		if rv.Borrow.Mut {
			return "&raw mut " + FormatPlace(rv.Borrow.Place)
		}
		return "&raw const " + FormatPlace(rv.Borrow.Place)
	case RValueCast:
		return fmt.Sprintf("%s as %s", formatOperand(&rv.Cast.Value), lty.String(rv.Cast.TargetTy))
	case RValueBinaryOp:
		return fmt.Sprintf("%s %s %s", formatOperand(&rv.Binary.Left), rv.Binary.Op, formatOperand(&rv.Binary.Right))
	case RValueUnaryOp:
		return fmt.Sprintf("%s%s", rv.Unary.Op, formatOperand(&rv.Unary.Operand))
	case RValueAggregate:
		return "(" + formatOperands(rv.Aggregate.Elems) + ")"
	case RValueLen:
		return fmt.Sprintf("len(%s)", FormatPlace(rv.Len))
	case RValueOpaque:
		if rv.Opaque == "" {
			return "opaque"
		}
		return "opaque " + rv.Opaque
	default:
		return "<rvalue?>"
	}
}

// FormatTerm renders a terminator.
func FormatTerm(term *Terminator) string {
	if term == nil {
		return "unreachable"
	}
	switch term.Kind {
	case TermNone:
		return "<unterminated>"
	case TermReturn:
		return "return"
	case TermGoto:
		return fmt.Sprintf("goto bb%d", term.Goto.Target)
	case TermSwitchInt:
		var sb strings.Builder
		fmt.Fprintf(&sb, "switch_int %s [", formatOperand(&term.SwitchInt.Discr))
		for i, t := range term.SwitchInt.Targets {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%d: bb%d", i, t)
		}
		fmt.Fprintf(&sb, ", otherwise: bb%d]", term.SwitchInt.Otherwise)
		return sb.String()
	case TermCall:
		dst := ""
		if term.Call.HasDst {
			dst = FormatPlace(term.Call.Dst) + " = "
		}
		out := fmt.Sprintf("%scall %s(%s)", dst, term.Call.Func, formatOperands(term.Call.Args))
		if term.Call.Target != NoBlockID {
			out += fmt.Sprintf(" -> bb%d", term.Call.Target)
		}
		return out
	case TermDrop:
		return fmt.Sprintf("drop %s -> bb%d", FormatPlace(term.Drop.Place), term.Drop.Target)
	case TermUnreachable:
		return "unreachable"
	default:
		return "<term?>"
	}
}

func formatOperands(ops []Operand) string {
	parts := make([]string, len(ops))
	for i := range ops {
		parts[i] = formatOperand(&ops[i])
	}
	return strings.Join(parts, ", ")
}

func formatOperand(op *Operand) string {
	if op == nil {
		return "<op?>"
	}
	switch op.Kind {
	case OperandConst:
		return "const " + op.Const
	case OperandCopy:
		return "copy " + FormatPlace(op.Place)
	case OperandMove:
		return "move " + FormatPlace(op.Place)
	default:
		return "<op?>"
	}
}
