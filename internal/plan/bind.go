package plan

import (
	"errors"
	"fmt"

	"github.com/roach88/liveql/internal/catalog"
	"github.com/roach88/liveql/internal/sqlparse"
	"github.com/roach88/liveql/internal/value"
)

// BindError reports a query that parsed but violates resolution, typing,
// or dialect rules. Bound queries never reach execution with one.
type BindError struct {
	Pos sqlparse.Pos
	Msg string
}

func (e *BindError) Error() string {
	return fmt.Sprintf("bind error at line %d col %d: %s", e.Pos.Line, e.Pos.Col, e.Msg)
}

func bindErrorf(pos sqlparse.Pos, format string, args ...any) error {
	return &BindError{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

type binder struct {
	store  catalog.Store
	kind   Kind
	tables []*catalog.Table
}

// BindSelect resolves and validates a parsed SELECT under the given
// dialect and lowers it to a logical plan.
func BindSelect(store catalog.Store, stmt *sqlparse.SelectStmt, kind Kind) (*Query, error) {
	b := &binder{store: store, kind: kind}

	if kind == Subscription {
		if stmt.Distinct {
			return nil, bindErrorf(stmt.Pos, "DISTINCT is not allowed in subscription queries")
		}
		if len(stmt.OrderBy) > 0 {
			return nil, bindErrorf(stmt.Pos, "ORDER BY is not allowed in subscription queries")
		}
		if stmt.Limit != nil {
			return nil, bindErrorf(stmt.Pos, "LIMIT is not allowed in subscription queries")
		}
	}

	if err := b.addTable(stmt.From); err != nil {
		return nil, err
	}
	var joins []*Join
	for _, jc := range stmt.Joins {
		j, err := b.bindJoin(jc)
		if err != nil {
			return nil, err
		}
		joins = append(joins, j)
	}

	// Place each WHERE conjunct at the lowest point in the left-deep
	// chain where all its columns are in scope.
	levels := make([]Expr, len(b.tables))
	if stmt.Where != nil {
		if err := b.placeConjuncts(stmt.Where, levels); err != nil {
			return nil, err
		}
	}

	root := Node(&Scan{Slot: 0, Table: b.tables[0]})
	if levels[0] != nil {
		root = &Filter{Input: root, Pred: levels[0]}
	}
	for i, j := range joins {
		j.Left = root
		root = j
		if levels[i+1] != nil {
			root = &Filter{Input: root, Pred: levels[i+1]}
		}
	}

	if kind == Subscription {
		return b.finishSubscription(stmt, root)
	}
	return b.finishAdHoc(stmt, root)
}

func (b *binder) finishSubscription(stmt *sqlparse.SelectStmt, root Node) (*Query, error) {
	if len(stmt.Projection) != 1 || !stmt.Projection[0].Star {
		return nil, bindErrorf(stmt.Pos, "subscription projection must be * or table.*")
	}
	it := stmt.Projection[0]

	// A bare * returns rows of the first FROM table; table.* names the
	// returned table explicitly.
	ret := 0
	if !it.StarTable.Zero() {
		slot, ok := b.tableSlot(it.StarTable)
		if !ok {
			return nil, bindErrorf(it.StarTable.Pos, "table %q is not in scope", it.StarTable.Name)
		}
		ret = slot
	}

	cols, err := b.wholeRowColumns(ret, stmt.Pos)
	if err != nil {
		return nil, err
	}
	return &Query{
		Kind:    Subscription,
		SQL:     stmt.String(),
		Root:    &Project{Input: root, Star: ret},
		Tables:  b.tables,
		Return:  ret,
		Columns: cols,
	}, nil
}

func (b *binder) finishAdHoc(stmt *sqlparse.SelectStmt, root Node) (*Query, error) {
	var hasAgg, hasCol bool
	for _, it := range stmt.Projection {
		if it.Agg != 0 {
			hasAgg = true
		} else {
			hasCol = true
		}
	}
	if hasAgg && hasCol {
		return nil, bindErrorf(stmt.Pos, "aggregates and column projections are mutually exclusive")
	}
	if hasAgg {
		return b.finishAggregate(stmt, root)
	}

	var cols []ColExpr
	var outs []OutputColumn
	for _, it := range stmt.Projection {
		switch {
		case it.Star && it.StarTable.Zero():
			for slot := range b.tables {
				expanded, err := b.expandStar(slot, stmt.Pos)
				if err != nil {
					return nil, err
				}
				cols = append(cols, expanded...)
			}
		case it.Star:
			slot, ok := b.tableSlot(it.StarTable)
			if !ok {
				return nil, bindErrorf(it.StarTable.Pos, "table %q is not in scope", it.StarTable.Name)
			}
			expanded, err := b.expandStar(slot, it.StarTable.Pos)
			if err != nil {
				return nil, err
			}
			cols = append(cols, expanded...)
		default:
			col, err := b.resolveColumn(*it.Column)
			if err != nil {
				return nil, err
			}
			if !it.Alias.Zero() {
				col.Name = it.Alias.Name
			}
			cols = append(cols, col)
		}
	}
	for _, c := range cols {
		outs = append(outs, OutputColumn{Name: c.Name, Type: c.Type})
	}

	if stmt.Distinct {
		for _, c := range cols {
			if !c.Type.Orderable() {
				return nil, bindErrorf(stmt.Pos, "DISTINCT cannot deduplicate %s values (%s)", c.Type, c)
			}
		}
	}

	if len(stmt.OrderBy) > 0 {
		var keys []SortKey
		for _, o := range stmt.OrderBy {
			col, err := b.resolveColumn(o.Column)
			if err != nil {
				return nil, err
			}
			if !col.Type.Orderable() {
				return nil, bindErrorf(o.Column.Column.Pos, "ORDER BY requires an orderable column, %s is %s", col, col.Type)
			}
			keys = append(keys, SortKey{Col: col, Desc: o.Desc})
		}
		root = &Sort{Input: root, Keys: keys}
	}

	root = &Project{Input: root, Star: -1, Cols: cols, Distinct: stmt.Distinct}
	if stmt.Limit != nil {
		n, err := bindLimit(stmt.Limit)
		if err != nil {
			return nil, err
		}
		root = &Limit{Input: root, N: n}
	}

	return &Query{
		Kind:    AdHoc,
		SQL:     stmt.String(),
		Root:    root,
		Tables:  b.tables,
		Return:  -1,
		Columns: outs,
	}, nil
}

func (b *binder) finishAggregate(stmt *sqlparse.SelectStmt, root Node) (*Query, error) {
	if stmt.Distinct {
		return nil, bindErrorf(stmt.Pos, "DISTINCT cannot be combined with aggregates")
	}
	if len(stmt.OrderBy) > 0 {
		return nil, bindErrorf(stmt.Pos, "ORDER BY cannot be combined with aggregates")
	}

	var items []AggItem
	var outs []OutputColumn
	for _, it := range stmt.Projection {
		item := AggItem{Func: it.Agg}
		switch it.Agg {
		case sqlparse.AggCountStar:
			item.Name, item.Type = "count", value.TypeI64
		case sqlparse.AggCountDistinct:
			col, err := b.resolveColumn(*it.AggCol)
			if err != nil {
				return nil, err
			}
			item.Col, item.Name, item.Type = &col, "count", value.TypeI64
		case sqlparse.AggSum:
			col, err := b.resolveColumn(*it.AggCol)
			if err != nil {
				return nil, err
			}
			if !col.Type.Numeric() {
				return nil, bindErrorf(it.AggCol.Column.Pos, "SUM requires a numeric column, %s is %s", col, col.Type)
			}
			item.Col, item.Name, item.Type = &col, "sum", widen(col.Type)
		}
		if !it.Alias.Zero() {
			item.Name = it.Alias.Name
		}
		items = append(items, item)
		outs = append(outs, OutputColumn{Name: item.Name, Type: item.Type})
	}

	root = &Aggregate{Input: root, Items: items}
	if stmt.Limit != nil {
		n, err := bindLimit(stmt.Limit)
		if err != nil {
			return nil, err
		}
		root = &Limit{Input: root, N: n}
	}

	return &Query{
		Kind:    AdHoc,
		SQL:     stmt.String(),
		Root:    root,
		Tables:  b.tables,
		Return:  -1,
		Columns: outs,
	}, nil
}

// widen maps a numeric column type to its accumulator type.
func widen(t value.Type) value.Type {
	switch t.Kind {
	case value.KindInt:
		return value.TypeI64
	case value.KindUint:
		return value.TypeU64
	default:
		return value.TypeF64
	}
}

func bindLimit(lit *sqlparse.Literal) (int, error) {
	if lit.Kind != sqlparse.LitInt {
		return 0, bindErrorf(lit.Pos, "LIMIT must be an integer")
	}
	n, err := intFromText(lit.Text)
	if err != nil {
		return 0, bindErrorf(lit.Pos, "%s", err)
	}
	if n < 0 {
		return 0, bindErrorf(lit.Pos, "LIMIT must not be negative")
	}
	return int(n), nil
}

func (b *binder) addTable(id sqlparse.Ident) error {
	t, err := b.store.LookupTable(id.Name, id.Quoted)
	if err != nil {
		var nf *catalog.TableNotFoundError
		if errors.As(err, &nf) {
			return bindErrorf(id.Pos, "table %q not found", id.Name)
		}
		return err
	}
	for _, prev := range b.tables {
		if prev == t {
			return bindErrorf(id.Pos, "table %s is referenced twice", t.Name)
		}
	}
	b.tables = append(b.tables, t)
	return nil
}

func (b *binder) bindJoin(jc sqlparse.JoinClause) (*Join, error) {
	if err := b.addTable(jc.Table); err != nil {
		return nil, err
	}
	slot := len(b.tables) - 1
	t := b.tables[slot]

	l, err := b.resolveColumn(jc.Left)
	if err != nil {
		return nil, err
	}
	r, err := b.resolveColumn(jc.Right)
	if err != nil {
		return nil, err
	}
	if l.Slot == slot {
		l, r = r, l
	}
	if r.Slot != slot || l.Slot == slot {
		return nil, bindErrorf(jc.Pos, "join condition must relate %s to an earlier table", t.Name)
	}
	if l.Type != r.Type {
		return nil, bindErrorf(jc.Pos, "cannot join %s (%s) with %s (%s)", l, l.Type, r, r.Type)
	}

	j := &Join{Slot: slot, Table: t, LeftKey: l, RightKey: r.Ord}
	leftTbl := b.tables[l.Slot]
	if ix, ok := leftTbl.IndexOn(l.Ord); ok {
		j.LeftIx = ix
	}
	if ix, ok := t.IndexOn(r.Ord); ok {
		j.RightIx = ix
	}
	if b.kind == Subscription {
		if j.LeftIx == nil {
			return nil, bindErrorf(jc.Pos, "subscription join requires an index on %s", l)
		}
		if j.RightIx == nil {
			return nil, bindErrorf(jc.Pos, "subscription join requires an index on %s", r)
		}
	}
	return j, nil
}

func (b *binder) tableSlot(id sqlparse.Ident) (int, bool) {
	for i, t := range b.tables {
		if t.Quoted || id.Quoted {
			if t.Name == id.Name {
				return i, true
			}
		} else if value.FoldIdent(t.Name) == id.Name {
			return i, true
		}
	}
	return 0, false
}

func (b *binder) resolveColumn(ref sqlparse.ColumnRef) (ColExpr, error) {
	if !ref.Table.Zero() {
		slot, ok := b.tableSlot(ref.Table)
		if !ok {
			return ColExpr{}, bindErrorf(ref.Table.Pos, "table %q is not in scope", ref.Table.Name)
		}
		ord, ok := b.tables[slot].ColumnIndex(ref.Column.Name, ref.Column.Quoted)
		if !ok {
			return ColExpr{}, bindErrorf(ref.Column.Pos, "column %q not found in table %s", ref.Column.Name, b.tables[slot].Name)
		}
		return b.colExpr(slot, ord, ref.Column.Pos)
	}

	found, foundOrd := -1, 0
	for i, t := range b.tables {
		if ord, ok := t.ColumnIndex(ref.Column.Name, ref.Column.Quoted); ok {
			if found >= 0 {
				return ColExpr{}, bindErrorf(ref.Column.Pos, "column %q is ambiguous; qualify it with a table name", ref.Column.Name)
			}
			found, foundOrd = i, ord
		}
	}
	if found < 0 {
		return ColExpr{}, bindErrorf(ref.Column.Pos, "column %q not found", ref.Column.Name)
	}
	return b.colExpr(found, foundOrd, ref.Column.Pos)
}

func (b *binder) colExpr(slot, ord int, pos sqlparse.Pos) (ColExpr, error) {
	t := b.tables[slot]
	c := t.Columns[ord]
	if c.Nullable {
		return ColExpr{}, bindErrorf(pos, "column %s.%s is nullable; nullable columns are not supported in queries", t.Name, c.Name)
	}
	return ColExpr{Slot: slot, Ord: ord, Table: t.Name, Name: c.Name, Type: c.Type}, nil
}

// expandStar resolves every column of one table, in declaration order.
func (b *binder) expandStar(slot int, pos sqlparse.Pos) ([]ColExpr, error) {
	t := b.tables[slot]
	out := make([]ColExpr, 0, len(t.Columns))
	for ord := range t.Columns {
		col, err := b.colExpr(slot, ord, pos)
		if err != nil {
			return nil, err
		}
		out = append(out, col)
	}
	return out, nil
}

// wholeRowColumns builds the output schema of a whole-row projection.
func (b *binder) wholeRowColumns(slot int, pos sqlparse.Pos) ([]OutputColumn, error) {
	cols, err := b.expandStar(slot, pos)
	if err != nil {
		return nil, err
	}
	out := make([]OutputColumn, len(cols))
	for i, c := range cols {
		out[i] = OutputColumn{Name: c.Name, Type: c.Type}
	}
	return out, nil
}

func (b *binder) placeConjuncts(e sqlparse.Expr, levels []Expr) error {
	if a, ok := e.(sqlparse.And); ok {
		if err := b.placeConjuncts(a.Left, levels); err != nil {
			return err
		}
		return b.placeConjuncts(a.Right, levels)
	}
	bound, err := b.bindExpr(e)
	if err != nil {
		return err
	}
	lvl := maxSlot(bound)
	if levels[lvl] == nil {
		levels[lvl] = bound
	} else {
		levels[lvl] = AndExpr{Left: levels[lvl], Right: bound}
	}
	return nil
}

func maxSlot(e Expr) int {
	switch x := e.(type) {
	case ColExpr:
		return x.Slot
	case CmpExpr:
		return max(maxSlot(x.Left), maxSlot(x.Right))
	case AndExpr:
		return max(maxSlot(x.Left), maxSlot(x.Right))
	case OrExpr:
		return max(maxSlot(x.Left), maxSlot(x.Right))
	default:
		return 0
	}
}

func (b *binder) bindExpr(e sqlparse.Expr) (Expr, error) {
	switch x := e.(type) {
	case sqlparse.And:
		l, err := b.bindExpr(x.Left)
		if err != nil {
			return nil, err
		}
		r, err := b.bindExpr(x.Right)
		if err != nil {
			return nil, err
		}
		return AndExpr{Left: l, Right: r}, nil
	case sqlparse.Or:
		if b.kind == Subscription {
			return nil, bindErrorf(x.Pos, "OR is not allowed in subscription queries")
		}
		l, err := b.bindExpr(x.Left)
		if err != nil {
			return nil, err
		}
		r, err := b.bindExpr(x.Right)
		if err != nil {
			return nil, err
		}
		return OrExpr{Left: l, Right: r}, nil
	case sqlparse.Compare:
		return b.bindCompare(x)
	default:
		return nil, bindErrorf(exprPos(e), "expression is not a predicate")
	}
}

func (b *binder) bindCompare(c sqlparse.Compare) (Expr, error) {
	if c.Op == sqlparse.OpNeq && b.kind == Subscription {
		return nil, bindErrorf(c.Pos, "!= is not allowed in subscription queries")
	}

	lc, lcok := c.Left.(sqlparse.ColumnExpr)
	rc, rcok := c.Right.(sqlparse.ColumnExpr)
	ll, llok := c.Left.(sqlparse.Literal)
	rl, rlok := c.Right.(sqlparse.Literal)

	switch {
	case lcok && rcok:
		l, err := b.resolveColumn(lc.Ref)
		if err != nil {
			return nil, err
		}
		r, err := b.resolveColumn(rc.Ref)
		if err != nil {
			return nil, err
		}
		if l.Type != r.Type {
			return nil, bindErrorf(c.Pos, "cannot compare %s (%s) with %s (%s)", l, l.Type, r, r.Type)
		}
		return finishCompare(c, l, r)
	case lcok && rlok:
		l, err := b.resolveColumn(lc.Ref)
		if err != nil {
			return nil, err
		}
		v, err := LiteralValue(rl, l.Type)
		if err != nil {
			return nil, bindErrorf(rl.Pos, "%s", err)
		}
		return finishCompare(c, l, LitExpr{V: v})
	case llok && rcok:
		r, err := b.resolveColumn(rc.Ref)
		if err != nil {
			return nil, err
		}
		v, err := LiteralValue(ll, r.Type)
		if err != nil {
			return nil, bindErrorf(ll.Pos, "%s", err)
		}
		return finishCompare(c, LitExpr{V: v}, r)
	case llok && rlok:
		return nil, bindErrorf(c.Pos, "comparison must reference at least one column")
	default:
		return nil, bindErrorf(c.Pos, "comparison operands must be columns or literals")
	}
}

func finishCompare(c sqlparse.Compare, l, r Expr) (Expr, error) {
	if c.Op != sqlparse.OpEq && c.Op != sqlparse.OpNeq {
		t := operandType(l)
		if !t.Orderable() {
			return nil, bindErrorf(c.Pos, "%s values do not support ordering comparisons", t)
		}
	}
	return CmpExpr{Op: c.Op, Left: l, Right: r}, nil
}

func operandType(e Expr) value.Type {
	switch x := e.(type) {
	case ColExpr:
		return x.Type
	case LitExpr:
		return x.V.Type()
	default:
		return value.Type{}
	}
}

func exprPos(e sqlparse.Expr) sqlparse.Pos {
	switch x := e.(type) {
	case sqlparse.ColumnExpr:
		return x.Ref.Column.Pos
	case sqlparse.Literal:
		return x.Pos
	case sqlparse.Compare:
		return x.Pos
	case sqlparse.Or:
		return x.Pos
	case sqlparse.And:
		return exprPos(x.Left)
	default:
		return sqlparse.Pos{}
	}
}
