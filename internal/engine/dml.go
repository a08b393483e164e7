package engine

import (
	"fmt"

	"github.com/roach88/liveql/internal/catalog"
	"github.com/roach88/liveql/internal/plan"
	"github.com/roach88/liveql/internal/sqlparse"
	"github.com/roach88/liveql/internal/value"
)

// Result is the outcome of one ad hoc statement. SELECT and SHOW fill
// Columns and Rows; DML fills Affected and the subscription Updates its
// commit produced.
type Result struct {
	Columns  []plan.OutputColumn
	Rows     []value.Row
	Affected int
	Updates  []Update
}

// ExecuteAdHoc parses and executes one statement of the ad hoc dialect.
func (e *Engine) ExecuteAdHoc(sql string) (*Result, error) {
	stmt, err := sqlparse.Parse(sql)
	if err != nil {
		return nil, err
	}
	switch x := stmt.(type) {
	case *sqlparse.SelectStmt:
		return e.execSelect(x)
	case *sqlparse.InsertStmt:
		return e.execInsert(x)
	case *sqlparse.DeleteStmt:
		return e.execDelete(x)
	case *sqlparse.UpdateStmt:
		return e.execUpdate(x)
	case *sqlparse.SetStmt:
		return e.execSet(x)
	case *sqlparse.ShowStmt:
		return e.execShow(x)
	default:
		return nil, fmt.Errorf("unsupported statement %T", stmt)
	}
}

// execSelect binds, admits, and runs a read-only query against one
// consistent snapshot. Reads run concurrently with commit processing.
func (e *Engine) execSelect(stmt *sqlparse.SelectStmt) (*Result, error) {
	q, err := plan.BindSelect(e.store, stmt, plan.AdHoc)
	if err != nil {
		return nil, err
	}
	if err := Admit(e.store, q, e.vars.RowLimit()); err != nil {
		return nil, err
	}

	var rows []value.Row
	err = e.store.View(func(s catalog.Store) error {
		var err error
		rows, err = Execute(s, q)
		return err
	})
	if err != nil {
		return nil, &RuntimeError{Op: "execute query", Err: err}
	}
	return &Result{Columns: q.Columns, Rows: rows}, nil
}

func (e *Engine) execInsert(stmt *sqlparse.InsertStmt) (*Result, error) {
	e.applyMu.Lock()
	defer e.applyMu.Unlock()

	t, err := e.lookupTable(stmt.Table)
	if err != nil {
		return nil, err
	}

	// Resolve the column order. Without a column list, VALUES tuples
	// follow declaration order; with one, every column must be named
	// exactly once since the dialect has no defaults.
	ordinals := make([]int, len(t.Columns))
	if len(stmt.Columns) == 0 {
		for i := range ordinals {
			ordinals[i] = i
		}
	} else {
		if len(stmt.Columns) != len(t.Columns) {
			return nil, &plan.BindError{Pos: stmt.Pos,
				Msg: fmt.Sprintf("INSERT into %s must name all %d columns", t.Name, len(t.Columns))}
		}
		seen := make(map[int]bool, len(t.Columns))
		for i, id := range stmt.Columns {
			ord, ok := t.ColumnIndex(id.Name, id.Quoted)
			if !ok {
				return nil, &plan.BindError{Pos: id.Pos,
					Msg: fmt.Sprintf("column %q not found in table %s", id.Name, t.Name)}
			}
			if seen[ord] {
				return nil, &plan.BindError{Pos: id.Pos,
					Msg: fmt.Sprintf("column %q named twice", id.Name)}
			}
			seen[ord] = true
			ordinals[i] = ord
		}
	}

	tx := e.store.Begin()
	for _, lits := range stmt.Rows {
		if len(lits) != len(ordinals) {
			return nil, &plan.BindError{Pos: stmt.Pos,
				Msg: fmt.Sprintf("VALUES tuple has %d values, want %d", len(lits), len(ordinals))}
		}
		row := make(value.Row, len(t.Columns))
		for i, lit := range lits {
			ord := ordinals[i]
			v, err := plan.LiteralValue(lit, t.Columns[ord].Type)
			if err != nil {
				return nil, &plan.BindError{Pos: lit.Pos, Msg: err.Error()}
			}
			row[ord] = v
		}
		if err := tx.Insert(t, row); err != nil {
			return nil, &RuntimeError{Op: "stage insert", Err: err}
		}
	}
	return e.commitLocked(tx, len(stmt.Rows))
}

func (e *Engine) execDelete(stmt *sqlparse.DeleteStmt) (*Result, error) {
	e.applyMu.Lock()
	defer e.applyMu.Unlock()

	t, rows, err := e.matchRows(stmt.Table, stmt.Where, stmt.Pos)
	if err != nil {
		return nil, err
	}

	tx := e.store.Begin()
	for _, r := range rows {
		if err := tx.Delete(t, r); err != nil {
			return nil, &RuntimeError{Op: "stage delete", Err: err}
		}
	}
	return e.commitLocked(tx, len(rows))
}

func (e *Engine) execUpdate(stmt *sqlparse.UpdateStmt) (*Result, error) {
	e.applyMu.Lock()
	defer e.applyMu.Unlock()

	t, rows, err := e.matchRows(stmt.Table, stmt.Where, stmt.Pos)
	if err != nil {
		return nil, err
	}

	type assign struct {
		ord int
		val value.Value
	}
	assigns := make([]assign, 0, len(stmt.Set))
	for _, a := range stmt.Set {
		ord, ok := t.ColumnIndex(a.Column.Name, a.Column.Quoted)
		if !ok {
			return nil, &plan.BindError{Pos: a.Column.Pos,
				Msg: fmt.Sprintf("column %q not found in table %s", a.Column.Name, t.Name)}
		}
		v, err := plan.LiteralValue(a.Value, t.Columns[ord].Type)
		if err != nil {
			return nil, &plan.BindError{Pos: a.Value.Pos, Msg: err.Error()}
		}
		assigns = append(assigns, assign{ord: ord, val: v})
	}

	// Row identity is content-based, so an update is a delete of the old
	// row and an insert of the new one. Assignments that change nothing
	// cancel inside the transaction.
	tx := e.store.Begin()
	for _, old := range rows {
		next := make(value.Row, len(old))
		copy(next, old)
		for _, a := range assigns {
			next[a.ord] = a.val
		}
		if err := tx.Delete(t, old); err != nil {
			return nil, &RuntimeError{Op: "stage update", Err: err}
		}
		if err := tx.Insert(t, next); err != nil {
			return nil, &RuntimeError{Op: "stage update", Err: err}
		}
	}
	return e.commitLocked(tx, len(rows))
}

func (e *Engine) execSet(stmt *sqlparse.SetStmt) (*Result, error) {
	v, err := plan.LiteralValue(stmt.Value, value.TypeI64)
	if err != nil {
		return nil, &plan.BindError{Pos: stmt.Value.Pos, Msg: err.Error()}
	}
	if err := e.vars.Set(stmt.Name.Name, v); err != nil {
		return nil, &plan.BindError{Pos: stmt.Name.Pos, Msg: err.Error()}
	}
	e.log.Info("system variable set", "name", stmt.Name.Name, "value", v.(value.Int).V)
	return &Result{}, nil
}

func (e *Engine) execShow(stmt *sqlparse.ShowStmt) (*Result, error) {
	v, err := e.vars.Get(stmt.Name.Name)
	if err != nil {
		return nil, &plan.BindError{Pos: stmt.Name.Pos, Msg: err.Error()}
	}
	return &Result{
		Columns: []plan.OutputColumn{{Name: stmt.Name.Name, Type: value.TypeI64}},
		Rows:    []value.Row{{v}},
	}, nil
}

func (e *Engine) lookupTable(id sqlparse.Ident) (*catalog.Table, error) {
	t, err := e.store.LookupTable(id.Name, id.Quoted)
	if err != nil {
		return nil, &plan.BindError{Pos: id.Pos, Msg: fmt.Sprintf("table %q not found", id.Name)}
	}
	return t, nil
}

// matchRows evaluates a DML WHERE clause (binding it as an ad hoc
// single-table query) and returns the affected rows. A nil WHERE
// matches the whole table. Caller holds applyMu, so the match and the
// subsequent commit form one atomic read-modify-write.
func (e *Engine) matchRows(table sqlparse.Ident, where sqlparse.Expr, pos sqlparse.Pos) (*catalog.Table, []value.Row, error) {
	sel := &sqlparse.SelectStmt{
		Projection: []sqlparse.SelectItem{{Star: true}},
		From:       table,
		Where:      where,
		Pos:        pos,
	}
	q, err := plan.BindSelect(e.store, sel, plan.AdHoc)
	if err != nil {
		return nil, nil, err
	}
	rows, err := Execute(e.store, q)
	if err != nil {
		return nil, nil, &RuntimeError{Op: "match rows", Err: err}
	}
	return q.Tables[0], rows, nil
}
