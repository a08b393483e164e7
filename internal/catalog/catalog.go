// Package catalog holds table metadata and the storage-engine boundary.
//
// The query core consumes storage through the Store interface: snapshot
// scans, index probes, and row-count/index statistics. Mem provides the
// in-process implementation; a durable commit log can rebuild it on open
// (see internal/store).
package catalog

import (
	"fmt"

	"github.com/roach88/liveql/internal/value"
)

// Column is one declared table column.
// Name is stored as declared; Quoted selects the comparison rule
// (case-sensitive for quoted declarations, case-folded otherwise).
type Column struct {
	Name     string
	Quoted   bool
	Type     value.Type
	Nullable bool
}

// matches reports whether a reference (name, quoted) resolves to this
// column. A quoted party on either side forces exact comparison.
func (c Column) matches(name string, quoted bool) bool {
	if c.Quoted || quoted {
		return c.Name == name
	}
	return value.FoldIdent(c.Name) == name
}

// Index is an ordered set of one or more columns of a single table,
// declared independently of queries. Probes are keyed by the leading
// column, which is what the subscription join requirement covers.
type Index struct {
	Name    string
	Columns []int // column ordinals, leading column first
}

// Covers reports whether the index can serve equality probes on the
// given column ordinal.
func (ix *Index) Covers(col int) bool {
	return len(ix.Columns) > 0 && ix.Columns[0] == col
}

// Table is the read-only metadata for one table.
type Table struct {
	Name    string
	Quoted  bool
	Columns []Column
	Indexes []*Index
}

// Key returns the canonical lookup key for the table name.
func (t *Table) Key() string {
	return tableKey(t.Name, t.Quoted)
}

func tableKey(name string, quoted bool) string {
	if quoted {
		return name
	}
	return value.FoldIdent(name)
}

// ColumnIndex resolves a column reference to its ordinal.
func (t *Table) ColumnIndex(name string, quoted bool) (int, bool) {
	for i, c := range t.Columns {
		if c.matches(name, quoted) {
			return i, true
		}
	}
	return 0, false
}

// IndexOn returns an index able to serve probes on the column ordinal.
func (t *Table) IndexOn(col int) (*Index, bool) {
	for _, ix := range t.Indexes {
		if ix.Covers(col) {
			return ix, true
		}
	}
	return nil, false
}

// Validate checks declaration invariants: at least one column, no two
// columns comparing equal under the active case rule, index ordinals in
// range.
func (t *Table) Validate() error {
	if len(t.Columns) == 0 {
		return fmt.Errorf("table %s: no columns", t.Name)
	}
	for i, a := range t.Columns {
		for _, b := range t.Columns[i+1:] {
			same := a.Name == b.Name
			if !a.Quoted && !b.Quoted {
				same = value.FoldIdent(a.Name) == value.FoldIdent(b.Name)
			}
			if same {
				return fmt.Errorf("table %s: duplicate column %q", t.Name, b.Name)
			}
		}
	}
	for _, ix := range t.Indexes {
		if len(ix.Columns) == 0 {
			return fmt.Errorf("table %s: index %s has no columns", t.Name, ix.Name)
		}
		for _, col := range ix.Columns {
			if col < 0 || col >= len(t.Columns) {
				return fmt.Errorf("table %s: index %s references column %d out of range", t.Name, ix.Name, col)
			}
		}
	}
	return nil
}

// TableNotFoundError reports an unresolved table name.
type TableNotFoundError struct {
	Name string
}

func (e *TableNotFoundError) Error() string {
	return fmt.Sprintf("table %q not found", e.Name)
}

// Store is the read side of the storage engine consumed by the
// evaluators and the cardinality governor. Implementations must present
// snapshot-consistent results for the duration of one View call.
type Store interface {
	// LookupTable resolves a table name under the active case rule.
	LookupTable(name string, quoted bool) (*Table, error)

	// Scan returns all current rows of a table.
	Scan(t *Table) ([]value.Row, error)

	// IndexLookup returns the rows whose indexed column equals key.
	IndexLookup(t *Table, ix *Index, key value.Value) ([]value.Row, error)

	// RowCount returns the current number of rows in a table.
	RowCount(t *Table) (int, error)

	// IndexStats returns the number of distinct keys in an index, when
	// the statistic is available.
	IndexStats(t *Table, ix *Index) (distinct int, ok bool)
}
