package catalog

import (
	"fmt"

	"github.com/roach88/liveql/internal/value"
)

// TableDelta is the insert/delete row sets attributable to one committed
// transaction for one table.
type TableDelta struct {
	Table    string // canonical table key
	Inserted value.Set
	Deleted  value.Set
}

// Empty reports whether the delta carries no changes.
func (d *TableDelta) Empty() bool {
	return len(d.Inserted) == 0 && len(d.Deleted) == 0
}

// Commit is the full row-delta batch of one committed transaction,
// attributed to that transaction's snapshot boundary via Seq.
type Commit struct {
	Seq    uint64
	Tables map[string]*TableDelta
}

// Touches reports whether the commit modifies the given table.
func (c *Commit) Touches(tableKey string) bool {
	d, ok := c.Tables[tableKey]
	return ok && !d.Empty()
}

// Empty reports whether the commit changes nothing.
func (c *Commit) Empty() bool {
	for _, d := range c.Tables {
		if !d.Empty() {
			return false
		}
	}
	return true
}

// ContradictionError reports a row present in both the inserted and
// deleted set of one table within one commit. Such a delta is corrupt
// and must never be applied.
type ContradictionError struct {
	Table string
	Key   value.Key
}

func (e *ContradictionError) Error() string {
	return fmt.Sprintf("contradictory delta for table %q: row %.12s… both inserted and deleted", e.Table, string(e.Key))
}

// Validate rejects contradictory commits. Transactions built through Tx
// net out cancelling changes before commit, so a contradiction here
// means the batch came from a corrupt source.
func (c *Commit) Validate() error {
	for table, d := range c.Tables {
		for k := range d.Inserted {
			if _, dup := d.Deleted[k]; dup {
				return &ContradictionError{Table: table, Key: k}
			}
		}
	}
	return nil
}
