package sqlparse

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Statement is the sealed interface over parsed statements.
// Only types in this package implement it; the marker method enables
// exhaustive type switches in the binder and the DML executor.
type Statement interface {
	stmtNode()
	// String re-serializes the statement to query text. The output is not
	// byte-identical to the input, but re-parsing it yields an equal AST.
	String() string
}

// Ident is an identifier together with its quoting form.
// Unquoted identifiers arrive case-folded from the lexer; quoted
// identifiers compare case-sensitively.
type Ident struct {
	Name   string
	Quoted bool
	Pos    Pos
}

func (id Ident) String() string {
	if id.Quoted {
		return `"` + strings.ReplaceAll(id.Name, `"`, `""`) + `"`
	}
	return id.Name
}

// Zero reports whether the identifier is absent (e.g. no table qualifier).
func (id Ident) Zero() bool { return id.Name == "" }

// ColumnRef is a possibly table-qualified column reference.
type ColumnRef struct {
	Table  Ident // zero when unqualified
	Column Ident
}

func (c ColumnRef) String() string {
	if c.Table.Zero() {
		return c.Column.String()
	}
	return c.Table.String() + "." + c.Column.String()
}

// LitKind tags the lexical form of a literal; its concrete type is
// inferred at bind time from the paired column.
type LitKind int

const (
	LitInt LitKind = iota + 1
	LitFloat
	LitString
	LitHex
	LitBool
)

// Literal is an untyped literal as written in the query.
type Literal struct {
	Kind  LitKind
	Text  string // integer/float digits as written
	Str   string // string contents, quotes removed
	Bytes []byte // hex payload
	Bool  bool
	Pos   Pos
}

func (l Literal) expr() {}

func (l Literal) String() string {
	switch l.Kind {
	case LitInt, LitFloat:
		return l.Text
	case LitString:
		return "'" + strings.ReplaceAll(l.Str, "'", "''") + "'"
	case LitHex:
		return "0x" + hex.EncodeToString(l.Bytes)
	case LitBool:
		if l.Bool {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("Literal(%d)", l.Kind)
	}
}

// Expr is the sealed interface over WHERE-clause expressions.
type Expr interface {
	expr()
	String() string
}

// ColumnExpr wraps a column reference as an expression operand.
type ColumnExpr struct {
	Ref ColumnRef
}

func (ColumnExpr) expr()            {}
func (e ColumnExpr) String() string { return e.Ref.String() }

// CmpOp is a binary comparison operator. All comparison operators have
// equal precedence and comparisons do not chain.
type CmpOp int

const (
	OpEq CmpOp = iota + 1
	OpNeq
	OpLt
	OpGt
	OpLe
	OpGe
)

func (op CmpOp) String() string {
	switch op {
	case OpEq:
		return "="
	case OpNeq:
		return "!="
	case OpLt:
		return "<"
	case OpGt:
		return ">"
	case OpLe:
		return "<="
	case OpGe:
		return ">="
	default:
		return fmt.Sprintf("CmpOp(%d)", int(op))
	}
}

// Compare is a binary comparison between two operands.
type Compare struct {
	Op    CmpOp
	Left  Expr
	Right Expr
	Pos   Pos
}

func (Compare) expr() {}

func (e Compare) String() string {
	return fmt.Sprintf("%s %s %s", e.Left, e.Op, e.Right)
}

// And is a conjunction. AND binds tighter than OR.
type And struct {
	Left  Expr
	Right Expr
}

func (And) expr() {}

func (e And) String() string {
	return fmt.Sprintf("%s AND %s", parenthesizeOr(e.Left), parenthesizeOr(e.Right))
}

// Or is a disjunction. Permitted in the ad hoc dialect only; the binder
// rejects it for subscriptions.
type Or struct {
	Left  Expr
	Right Expr
	Pos   Pos
}

func (Or) expr() {}

func (e Or) String() string {
	return fmt.Sprintf("%s OR %s", e.Left, e.Right)
}

func parenthesizeOr(e Expr) string {
	if _, ok := e.(Or); ok {
		return "(" + e.String() + ")"
	}
	return e.String()
}

// AggFunc identifies an aggregate call.
type AggFunc int

const (
	AggCountStar AggFunc = iota + 1
	AggCountDistinct
	AggSum
)

// SelectItem is one projection entry: a star, a column, or an aggregate.
// Exactly one of Star/Column/Agg forms is populated.
type SelectItem struct {
	// Star projection: `*` (StarTable zero) or `table.*`.
	Star      bool
	StarTable Ident

	// Column projection with optional alias.
	Column *ColumnRef
	Alias  Ident

	// Aggregate call: COUNT(*), COUNT(DISTINCT col), SUM(col).
	Agg    AggFunc
	AggCol *ColumnRef
}

func (it SelectItem) String() string {
	var s string
	switch {
	case it.Star && it.StarTable.Zero():
		return "*"
	case it.Star:
		return it.StarTable.String() + ".*"
	case it.Column != nil:
		s = it.Column.String()
	case it.Agg == AggCountStar:
		s = "COUNT(*)"
	case it.Agg == AggCountDistinct:
		s = fmt.Sprintf("COUNT(DISTINCT %s)", it.AggCol)
	case it.Agg == AggSum:
		s = fmt.Sprintf("SUM(%s)", it.AggCol)
	}
	if !it.Alias.Zero() {
		s += " AS " + it.Alias.String()
	}
	return s
}

// JoinClause is one `JOIN table ON left = right` clause.
// The dialect restricts ON to a single column equality; additional
// conditions belong in WHERE.
type JoinClause struct {
	Table Ident
	Left  ColumnRef
	Right ColumnRef
	Pos   Pos
}

// OrderItem is one ORDER BY key. Ascending is the default.
type OrderItem struct {
	Column ColumnRef
	Desc   bool
}

// SelectStmt is a parsed SELECT.
type SelectStmt struct {
	Distinct   bool
	Projection []SelectItem
	From       Ident
	Joins      []JoinClause
	Where      Expr // nil when absent
	OrderBy    []OrderItem
	Limit      *Literal // nil when absent; negative rejected at bind time
	Pos        Pos
}

func (*SelectStmt) stmtNode() {}

func (s *SelectStmt) String() string {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	if s.Distinct {
		sb.WriteString("DISTINCT ")
	}
	for i, it := range s.Projection {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(it.String())
	}
	sb.WriteString(" FROM ")
	sb.WriteString(s.From.String())
	for _, j := range s.Joins {
		fmt.Fprintf(&sb, " JOIN %s ON %s = %s", j.Table, j.Left, j.Right)
	}
	if s.Where != nil {
		sb.WriteString(" WHERE ")
		sb.WriteString(s.Where.String())
	}
	if len(s.OrderBy) > 0 {
		sb.WriteString(" ORDER BY ")
		for i, o := range s.OrderBy {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(o.Column.String())
			if o.Desc {
				sb.WriteString(" DESC")
			}
		}
	}
	if s.Limit != nil {
		sb.WriteString(" LIMIT ")
		sb.WriteString(s.Limit.String())
	}
	return sb.String()
}

// InsertStmt is a parsed INSERT.
type InsertStmt struct {
	Table   Ident
	Columns []Ident // empty means declaration order
	Rows    [][]Literal
	Pos     Pos
}

func (*InsertStmt) stmtNode() {}

func (s *InsertStmt) String() string {
	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(s.Table.String())
	if len(s.Columns) > 0 {
		sb.WriteString(" (")
		for i, c := range s.Columns {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(c.String())
		}
		sb.WriteString(")")
	}
	sb.WriteString(" VALUES ")
	for i, row := range s.Rows {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for j, lit := range row {
			if j > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(lit.String())
		}
		sb.WriteString(")")
	}
	return sb.String()
}

// DeleteStmt is a parsed DELETE.
type DeleteStmt struct {
	Table Ident
	Where Expr // nil deletes all rows
	Pos   Pos
}

func (*DeleteStmt) stmtNode() {}

func (s *DeleteStmt) String() string {
	out := "DELETE FROM " + s.Table.String()
	if s.Where != nil {
		out += " WHERE " + s.Where.String()
	}
	return out
}

// Assignment is one `col = literal` pair in UPDATE ... SET.
type Assignment struct {
	Column Ident
	Value  Literal
}

// UpdateStmt is a parsed UPDATE.
type UpdateStmt struct {
	Table Ident
	Set   []Assignment
	Where Expr
	Pos   Pos
}

func (*UpdateStmt) stmtNode() {}

func (s *UpdateStmt) String() string {
	var sb strings.Builder
	sb.WriteString("UPDATE ")
	sb.WriteString(s.Table.String())
	sb.WriteString(" SET ")
	for i, a := range s.Set {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s = %s", a.Column, a.Value)
	}
	if s.Where != nil {
		sb.WriteString(" WHERE ")
		sb.WriteString(s.Where.String())
	}
	return sb.String()
}

// SetStmt assigns a system variable.
type SetStmt struct {
	Name  Ident
	Value Literal
	Pos   Pos
}

func (*SetStmt) stmtNode() {}

func (s *SetStmt) String() string {
	return fmt.Sprintf("SET %s = %s", s.Name, s.Value)
}

// ShowStmt reads a system variable.
type ShowStmt struct {
	Name Ident
	Pos  Pos
}

func (*ShowStmt) stmtNode() {}

func (s *ShowStmt) String() string { return "SHOW " + s.Name.String() }
