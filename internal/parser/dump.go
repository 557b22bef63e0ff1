package parser

import (
	"fmt"
	"strings"
)

// Dump renders the unit as an indented tree, one item per branch.
func (cu *CompUnit) Dump() string {
	var sb strings.Builder
	sb.WriteString("CompUnit\n")
	for _, item := range cu.Items {
		sb.WriteString("└── ")
		switch it := item.(type) {
		case *Decl:
			sb.WriteString(dumpDecl(it))
		case *FuncDef:
			sb.WriteString(dumpFuncDef(it))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func dumpDecl(d *Decl) string {
	var sb strings.Builder
	if d.Const {
		sb.WriteString("const ")
	}
	sb.WriteString(d.Ty.String())
	sb.WriteString(" ")
	for i, def := range d.Defs {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(def.Ident)
		for _, dim := range def.Dims {
			fmt.Fprintf(&sb, "[%s]", DumpExp(dim))
		}
		if def.Init != nil {
			sb.WriteString(" = ")
			sb.WriteString(DumpExp(def.Init))
		}
	}
	return sb.String()
}

func dumpFuncDef(fd *FuncDef) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "FuncDef %s %s(", fd.RetTy, fd.Ident)
	for i, param := range fd.Params {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s %s", param.Ty, param.Ident)
		if param.IsArray {
			sb.WriteString("[]")
			for _, dim := range param.Dims {
				fmt.Fprintf(&sb, "[%s]", DumpExp(dim))
			}
		}
	}
	sb.WriteString(")\n")
	sb.WriteString(indent(dumpBlock(fd.Body), "  "))
	return sb.String()
}

func dumpBlock(b *Block) string {
	var sb strings.Builder
	sb.WriteString("Block {\n")
	for _, item := range b.Items {
		sb.WriteString(indent(dumpBlockItem(item), "    "))
		sb.WriteString("\n")
	}
	sb.WriteString("}")
	return sb.String()
}

func dumpBlockItem(item BlockItem) string {
	switch it := item.(type) {
	case *Decl:
		return dumpDecl(it)
	case Stmt:
		return DumpStmt(it)
	}
	return "?"
}

// DumpStmt renders a single statement.
func DumpStmt(s Stmt) string {
	switch st := s.(type) {
	case *AssignStmt:
		return fmt.Sprintf("%s = %s", DumpExp(st.LVal), DumpExp(st.Exp))
	case *ExpStmt:
		if st.Exp == nil {
			return ";"
		}
		return DumpExp(st.Exp)
	case *BlockStmt:
		return dumpBlock(st.Block)
	case *IfStmt:
		out := fmt.Sprintf("if (%s) %s", DumpExp(st.Cond), DumpStmt(st.Then))
		if st.Else != nil {
			out += " else " + DumpStmt(st.Else)
		}
		return out
	case *WhileStmt:
		return fmt.Sprintf("while (%s) %s", DumpExp(st.Cond), DumpStmt(st.Body))
	case *BreakStmt:
		return "break"
	case *ContinueStmt:
		return "continue"
	case *ReturnStmt:
		if st.Exp == nil {
			return "return"
		}
		return "return " + DumpExp(st.Exp)
	}
	return "?"
}

// DumpExp renders an expression with full parenthesization.
func DumpExp(e Exp) string {
	switch ex := e.(type) {
	case *ConstExp:
		return ex.Val.String()
	case *BinaryExp:
		return fmt.Sprintf("(%s %s %s)", DumpExp(ex.Lhs), ex.Op, DumpExp(ex.Rhs))
	case *UnaryExp:
		return fmt.Sprintf("%s%s", ex.Op, DumpExp(ex.Operand))
	case *CallExp:
		args := make([]string, len(ex.Args))
		for i, a := range ex.Args {
			args[i] = DumpExp(a)
		}
		return fmt.Sprintf("%s(%s)", ex.Ident, strings.Join(args, ", "))
	case *LValExp:
		out := ex.Ident
		for _, idx := range ex.Indices {
			out += fmt.Sprintf("[%s]", DumpExp(idx))
		}
		return out
	case *InitListExp:
		elems := make([]string, len(ex.Elems))
		for i, el := range ex.Elems {
			elems[i] = DumpExp(el)
		}
		return "{" + strings.Join(elems, ", ") + "}"
	case *CoercionExp:
		return DumpExp(ex.Inner)
	}
	return "?"
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}
