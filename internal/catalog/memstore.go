package catalog

import (
	"fmt"
	"sync"

	"github.com/roach88/liveql/internal/value"
)

// Mem is the in-memory storage engine.
//
// Reads take the read lock per call; multi-read snapshot consistency is
// provided by View, which holds the read lock across a callback. Commits
// take the write lock and are totally ordered by the commit sequence
// number. Indexes reflect exactly the pre- or post-commit state, never a
// partial one.
type Mem struct {
	mu     sync.RWMutex
	tables map[string]*memTable
	seq    uint64
}

type memTable struct {
	meta    *Table
	rows    value.Set
	indexes []*memIndex // parallel to meta.Indexes
}

type memIndex struct {
	def *Index
	// byKey maps the canonical encoding of the leading column value to
	// the set of rows carrying it.
	byKey map[string]value.Set
}

// NewMem builds a storage engine for the given table set.
func NewMem(tables ...*Table) (*Mem, error) {
	m := &Mem{tables: make(map[string]*memTable, len(tables))}
	for _, t := range tables {
		if err := t.Validate(); err != nil {
			return nil, err
		}
		key := t.Key()
		if _, dup := m.tables[key]; dup {
			return nil, fmt.Errorf("duplicate table %q", t.Name)
		}
		mt := &memTable{meta: t, rows: make(value.Set)}
		for _, ix := range t.Indexes {
			mt.indexes = append(mt.indexes, &memIndex{def: ix, byKey: make(map[string]value.Set)})
		}
		m.tables[key] = mt
	}
	return m, nil
}

// Tables returns the table metadata in no particular order.
func (m *Mem) Tables() []*Table {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Table, 0, len(m.tables))
	for _, mt := range m.tables {
		out = append(out, mt.meta)
	}
	return out
}

// View runs fn against a consistent snapshot: the read lock is held for
// the duration, so no commit can interleave. fn must not call Commit.
func (m *Mem) View(fn func(s Store) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn((*memView)(m))
}

// LookupTable implements Store.
func (m *Mem) LookupTable(name string, quoted bool) (*Table, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return (*memView)(m).LookupTable(name, quoted)
}

// Scan implements Store.
func (m *Mem) Scan(t *Table) ([]value.Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return (*memView)(m).Scan(t)
}

// IndexLookup implements Store.
func (m *Mem) IndexLookup(t *Table, ix *Index, key value.Value) ([]value.Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return (*memView)(m).IndexLookup(t, ix, key)
}

// RowCount implements Store.
func (m *Mem) RowCount(t *Table) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return (*memView)(m).RowCount(t)
}

// IndexStats implements Store.
func (m *Mem) IndexStats(t *Table, ix *Index) (int, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return (*memView)(m).IndexStats(t, ix)
}

// memView is the unlocked Store implementation used inside View and by
// the locking wrappers above.
type memView Mem

func (v *memView) table(t *Table) (*memTable, error) {
	mt, ok := v.tables[t.Key()]
	if !ok || mt.meta != t {
		return nil, &TableNotFoundError{Name: t.Name}
	}
	return mt, nil
}

func (v *memView) LookupTable(name string, quoted bool) (*Table, error) {
	mt, ok := v.tables[tableKey(name, quoted)]
	if !ok {
		return nil, &TableNotFoundError{Name: name}
	}
	// A quoted reference to an unquoted declaration (or vice versa) must
	// still respect the declared comparison rule.
	if quoted && !mt.meta.Quoted && mt.meta.Name != name {
		if _, exact := v.tables[name]; !exact {
			return nil, &TableNotFoundError{Name: name}
		}
	}
	return mt.meta, nil
}

func (v *memView) Scan(t *Table) ([]value.Row, error) {
	mt, err := v.table(t)
	if err != nil {
		return nil, err
	}
	out := make([]value.Row, 0, len(mt.rows))
	for _, r := range mt.rows {
		out = append(out, r)
	}
	return out, nil
}

func (v *memView) IndexLookup(t *Table, ix *Index, key value.Value) ([]value.Row, error) {
	mt, err := v.table(t)
	if err != nil {
		return nil, err
	}
	mi := mt.index(ix)
	if mi == nil {
		return nil, fmt.Errorf("table %s: unknown index %s", t.Name, ix.Name)
	}
	canon, err := value.Canonical(key)
	if err != nil {
		return nil, fmt.Errorf("index key: %w", err)
	}
	set := mi.byKey[string(canon)]
	out := make([]value.Row, 0, len(set))
	for _, r := range set {
		out = append(out, r)
	}
	return out, nil
}

func (v *memView) RowCount(t *Table) (int, error) {
	mt, err := v.table(t)
	if err != nil {
		return 0, err
	}
	return len(mt.rows), nil
}

func (v *memView) IndexStats(t *Table, ix *Index) (int, bool) {
	mt, err := v.table(t)
	if err != nil {
		return 0, false
	}
	mi := mt.index(ix)
	if mi == nil {
		return 0, false
	}
	return len(mi.byKey), true
}

func (mt *memTable) index(ix *Index) *memIndex {
	for _, mi := range mt.indexes {
		if mi.def == ix {
			return mi
		}
	}
	return nil
}

// insertLocked adds a row to the table and its indexes.
// Caller holds the write lock; the row is already validated.
func (mt *memTable) insertLocked(key value.Key, row value.Row) {
	mt.rows[key] = row
	for _, mi := range mt.indexes {
		canon, err := value.Canonical(row[mi.def.Columns[0]])
		if err != nil {
			continue // unencodable cells cannot reach here past validation
		}
		set := mi.byKey[string(canon)]
		if set == nil {
			set = make(value.Set)
			mi.byKey[string(canon)] = set
		}
		set[key] = row
	}
}

func (mt *memTable) deleteLocked(key value.Key, row value.Row) {
	delete(mt.rows, key)
	for _, mi := range mt.indexes {
		canon, err := value.Canonical(row[mi.def.Columns[0]])
		if err != nil {
			continue
		}
		if set := mi.byKey[string(canon)]; set != nil {
			delete(set, key)
			if len(set) == 0 {
				delete(mi.byKey, string(canon))
			}
		}
	}
}
