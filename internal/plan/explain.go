package plan

import (
	"fmt"
	"strings"
)

// Explain renders the logical plan as an indented tree, root first.
func Explain(q *Query) string {
	var sb strings.Builder
	sb.WriteString(q.Kind.String())
	sb.WriteByte('\n')
	writeNode(&sb, q.Root, 1)
	return sb.String()
}

func writeNode(sb *strings.Builder, n Node, depth int) {
	ind := strings.Repeat("  ", depth)
	switch x := n.(type) {
	case *Scan:
		fmt.Fprintf(sb, "%sscan %s\n", ind, x.Table.Name)
	case *Filter:
		fmt.Fprintf(sb, "%sfilter %s\n", ind, x.Pred)
		writeNode(sb, x.Input, depth+1)
	case *Join:
		fmt.Fprintf(sb, "%sjoin %s on %s = %s.%s\n",
			ind, x.Table.Name, x.LeftKey, x.Table.Name, x.Table.Columns[x.RightKey].Name)
		writeNode(sb, x.Left, depth+1)
	case *Project:
		if x.Star >= 0 {
			fmt.Fprintf(sb, "%sproject %s.*\n", ind, tableOfSlot(x.Input, x.Star))
		} else {
			names := make([]string, len(x.Cols))
			for i, c := range x.Cols {
				names[i] = c.String()
			}
			d := ""
			if x.Distinct {
				d = "distinct "
			}
			fmt.Fprintf(sb, "%sproject %s%s\n", ind, d, strings.Join(names, ", "))
		}
		writeNode(sb, x.Input, depth+1)
	case *Aggregate:
		items := make([]string, len(x.Items))
		for i, it := range x.Items {
			items[i] = it.String()
		}
		fmt.Fprintf(sb, "%saggregate %s\n", ind, strings.Join(items, ", "))
		writeNode(sb, x.Input, depth+1)
	case *Sort:
		keys := make([]string, len(x.Keys))
		for i, k := range x.Keys {
			dir := "asc"
			if k.Desc {
				dir = "desc"
			}
			keys[i] = k.Col.String() + " " + dir
		}
		fmt.Fprintf(sb, "%ssort %s\n", ind, strings.Join(keys, ", "))
		writeNode(sb, x.Input, depth+1)
	case *Limit:
		fmt.Fprintf(sb, "%slimit %d\n", ind, x.N)
		writeNode(sb, x.Input, depth+1)
	}
}

// tableOfSlot names the table occupying a tuple slot by walking the
// left-deep chain.
func tableOfSlot(n Node, slot int) string {
	switch x := n.(type) {
	case *Scan:
		if x.Slot == slot {
			return x.Table.Name
		}
	case *Filter:
		return tableOfSlot(x.Input, slot)
	case *Join:
		if x.Slot == slot {
			return x.Table.Name
		}
		return tableOfSlot(x.Left, slot)
	}
	return fmt.Sprintf("t%d", slot)
}
