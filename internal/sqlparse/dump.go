package sqlparse

import (
	"fmt"
	"strings"
)

// Dump renders a statement as an indented tree. The output is stable and
// used by golden tests; it is not meant to be parsed back.
func Dump(stmt Statement) string {
	var sb strings.Builder
	switch s := stmt.(type) {
	case *SelectStmt:
		fmt.Fprintf(&sb, "Select distinct=%v\n", s.Distinct)
		for _, it := range s.Projection {
			fmt.Fprintf(&sb, "  project %s\n", it)
		}
		fmt.Fprintf(&sb, "  from %s\n", s.From)
		for _, j := range s.Joins {
			fmt.Fprintf(&sb, "  join %s on %s = %s\n", j.Table, j.Left, j.Right)
		}
		if s.Where != nil {
			sb.WriteString("  where\n")
			dumpExpr(&sb, s.Where, 2)
		}
		for _, o := range s.OrderBy {
			dir := "asc"
			if o.Desc {
				dir = "desc"
			}
			fmt.Fprintf(&sb, "  order %s %s\n", o.Column, dir)
		}
		if s.Limit != nil {
			fmt.Fprintf(&sb, "  limit %s\n", s.Limit)
		}
	case *InsertStmt:
		fmt.Fprintf(&sb, "Insert into %s\n", s.Table)
		for _, c := range s.Columns {
			fmt.Fprintf(&sb, "  column %s\n", c)
		}
		for _, row := range s.Rows {
			parts := make([]string, len(row))
			for i, lit := range row {
				parts[i] = lit.String()
			}
			fmt.Fprintf(&sb, "  row (%s)\n", strings.Join(parts, ", "))
		}
	case *DeleteStmt:
		fmt.Fprintf(&sb, "Delete from %s\n", s.Table)
		if s.Where != nil {
			sb.WriteString("  where\n")
			dumpExpr(&sb, s.Where, 2)
		}
	case *UpdateStmt:
		fmt.Fprintf(&sb, "Update %s\n", s.Table)
		for _, a := range s.Set {
			fmt.Fprintf(&sb, "  set %s = %s\n", a.Column, a.Value)
		}
		if s.Where != nil {
			sb.WriteString("  where\n")
			dumpExpr(&sb, s.Where, 2)
		}
	case *SetStmt:
		fmt.Fprintf(&sb, "Set %s = %s\n", s.Name, s.Value)
	case *ShowStmt:
		fmt.Fprintf(&sb, "Show %s\n", s.Name)
	default:
		fmt.Fprintf(&sb, "unknown statement %T\n", stmt)
	}
	return sb.String()
}

func dumpExpr(sb *strings.Builder, e Expr, depth int) {
	indent := strings.Repeat("  ", depth)
	switch ex := e.(type) {
	case And:
		fmt.Fprintf(sb, "%sand\n", indent)
		dumpExpr(sb, ex.Left, depth+1)
		dumpExpr(sb, ex.Right, depth+1)
	case Or:
		fmt.Fprintf(sb, "%sor\n", indent)
		dumpExpr(sb, ex.Left, depth+1)
		dumpExpr(sb, ex.Right, depth+1)
	case Compare:
		fmt.Fprintf(sb, "%scmp %s\n", indent, ex.Op)
		dumpExpr(sb, ex.Left, depth+1)
		dumpExpr(sb, ex.Right, depth+1)
	case ColumnExpr:
		fmt.Fprintf(sb, "%scol %s\n", indent, ex.Ref)
	case Literal:
		fmt.Fprintf(sb, "%slit %s\n", indent, ex)
	default:
		fmt.Fprintf(sb, "%sunknown expr %T\n", indent, e)
	}
}
