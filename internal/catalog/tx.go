package catalog

import (
	"fmt"

	"github.com/roach88/liveql/internal/value"
)

// Tx stages row insertions and deletions for one transaction.
//
// Staging is unsynchronized and private to the creating goroutine;
// Commit applies the net change under the store's write lock and returns
// the resulting row-delta batch. Changes that cancel out (insert then
// delete of the same row, or vice versa) net to zero and never appear in
// the emitted Commit, so a Tx-produced batch is contradiction-free by
// construction.
type Tx struct {
	m      *Mem
	staged map[string]*stagedTable
	done   bool
}

type stagedTable struct {
	meta     *Table
	inserted value.Set
	deleted  value.Set
}

// Begin starts a transaction against the store.
func (m *Mem) Begin() *Tx {
	return &Tx{m: m, staged: make(map[string]*stagedTable)}
}

func (tx *Tx) stagedFor(t *Table) *stagedTable {
	key := t.Key()
	st, ok := tx.staged[key]
	if !ok {
		st = &stagedTable{meta: t, inserted: make(value.Set), deleted: make(value.Set)}
		tx.staged[key] = st
	}
	return st
}

// checkRow validates arity and column types against the table.
func checkRow(t *Table, row value.Row) error {
	if len(row) != len(t.Columns) {
		return fmt.Errorf("table %s: row has %d cells, want %d", t.Name, len(row), len(t.Columns))
	}
	for i, cell := range row {
		if cell == nil {
			return fmt.Errorf("table %s: column %s: nil cell", t.Name, t.Columns[i].Name)
		}
		if cell.Type() != t.Columns[i].Type {
			return fmt.Errorf("table %s: column %s: have %s, want %s",
				t.Name, t.Columns[i].Name, cell.Type(), t.Columns[i].Type)
		}
	}
	return nil
}

// Insert stages a row insertion. Inserting a row staged for deletion
// cancels the deletion.
func (tx *Tx) Insert(t *Table, row value.Row) error {
	if tx.done {
		return fmt.Errorf("transaction already committed")
	}
	if err := checkRow(t, row); err != nil {
		return err
	}
	key, err := value.RowKey(row)
	if err != nil {
		return err
	}
	st := tx.stagedFor(t)
	if _, ok := st.deleted[key]; ok {
		delete(st.deleted, key)
		return nil
	}
	st.inserted[key] = row
	return nil
}

// Delete stages a row deletion. Deleting a row staged for insertion
// cancels the insertion.
func (tx *Tx) Delete(t *Table, row value.Row) error {
	if tx.done {
		return fmt.Errorf("transaction already committed")
	}
	if err := checkRow(t, row); err != nil {
		return err
	}
	key, err := value.RowKey(row)
	if err != nil {
		return err
	}
	st := tx.stagedFor(t)
	if _, ok := st.inserted[key]; ok {
		delete(st.inserted, key)
		return nil
	}
	st.deleted[key] = row
	return nil
}

// Commit applies the staged changes and returns the effective row-delta
// batch. Insertions of rows already present and deletions of absent rows
// are dropped from the emitted delta: the batch reflects the actual
// state change, which the incremental evaluator's correctness contract
// depends on.
func (tx *Tx) Commit() (*Commit, error) {
	if tx.done {
		return nil, fmt.Errorf("transaction already committed")
	}
	tx.done = true

	tx.m.mu.Lock()
	defer tx.m.mu.Unlock()

	tx.m.seq++
	commit := &Commit{Seq: tx.m.seq, Tables: make(map[string]*TableDelta)}

	for key, st := range tx.staged {
		mt := tx.m.tables[key]
		if mt == nil {
			return nil, &TableNotFoundError{Name: st.meta.Name}
		}

		d := &TableDelta{Table: key, Inserted: make(value.Set), Deleted: make(value.Set)}
		for k, row := range st.deleted {
			if _, present := mt.rows[k]; present {
				mt.deleteLocked(k, row)
				d.Deleted[k] = row
			}
		}
		for k, row := range st.inserted {
			if _, present := mt.rows[k]; !present {
				mt.insertLocked(k, row)
				d.Inserted[k] = row
			}
		}
		if !d.Empty() {
			commit.Tables[key] = d
		}
	}

	return commit, nil
}

// ApplyCommit applies an externally produced commit batch (commit-log
// replay, replication). The batch is validated first; a contradictory
// batch is rejected without touching any table.
func (m *Mem) ApplyCommit(c *Commit) error {
	if err := c.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for key, d := range c.Tables {
		mt := m.tables[key]
		if mt == nil {
			return &TableNotFoundError{Name: key}
		}
		for k, row := range d.Deleted {
			if err := checkRow(mt.meta, row); err != nil {
				return err
			}
			mt.deleteLocked(k, row)
		}
		for k, row := range d.Inserted {
			if err := checkRow(mt.meta, row); err != nil {
				return err
			}
			mt.insertLocked(k, row)
		}
	}
	if c.Seq > m.seq {
		m.seq = c.Seq
	}
	return nil
}

// Seq returns the sequence number of the most recent commit.
func (m *Mem) Seq() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.seq
}
