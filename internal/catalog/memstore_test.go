package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/liveql/internal/value"
)

func inventoryTable() *Table {
	return &Table{
		Name: "Inventory",
		Columns: []Column{
			{Name: "item_id", Type: value.TypeU64},
			{Name: "item_name", Type: value.TypeString},
		},
		Indexes: []*Index{{Name: "by_item_id", Columns: []int{0}}},
	}
}

func invRow(id uint64, name string) value.Row {
	return value.Row{value.Uint{Bits: 64, V: id}, value.String(name)}
}

func newInventoryMem(t *testing.T) *Mem {
	t.Helper()
	m, err := NewMem(inventoryTable())
	require.NoError(t, err)
	return m
}

func TestTable_ColumnResolution(t *testing.T) {
	tbl := &Table{
		Name: "T",
		Columns: []Column{
			{Name: "Plain", Type: value.TypeI64},
			{Name: "Exact", Quoted: true, Type: value.TypeI64},
		},
	}
	require.NoError(t, tbl.Validate())

	// Unquoted references fold.
	i, ok := tbl.ColumnIndex(value.FoldIdent("PLAIN"), false)
	require.True(t, ok)
	assert.Equal(t, 0, i)

	// Quoted declarations compare case-sensitively.
	_, ok = tbl.ColumnIndex("exact", true)
	assert.False(t, ok)
	i, ok = tbl.ColumnIndex("Exact", true)
	require.True(t, ok)
	assert.Equal(t, 1, i)
}

func TestTable_Validate_DuplicateColumns(t *testing.T) {
	tbl := &Table{
		Name: "T",
		Columns: []Column{
			{Name: "a", Type: value.TypeI64},
			{Name: "A", Type: value.TypeI64},
		},
	}
	assert.Error(t, tbl.Validate(), "unquoted names collide under folding")

	tbl.Columns[1].Quoted = true
	assert.NoError(t, tbl.Validate(), "a quoted declaration is a distinct identity")
}

func TestMem_InsertScanIndex(t *testing.T) {
	m := newInventoryMem(t)
	tbl, err := m.LookupTable("inventory", false)
	require.NoError(t, err)

	tx := m.Begin()
	require.NoError(t, tx.Insert(tbl, invRow(1, "a")))
	require.NoError(t, tx.Insert(tbl, invRow(2, "b")))
	commit, err := tx.Commit()
	require.NoError(t, err)
	require.True(t, commit.Touches(tbl.Key()))
	assert.Len(t, commit.Tables[tbl.Key()].Inserted, 2)

	rows, err := m.Scan(tbl)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	n, err := m.RowCount(tbl)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	ix, ok := tbl.IndexOn(0)
	require.True(t, ok)
	hits, err := m.IndexLookup(tbl, ix, value.Uint{Bits: 64, V: 2})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, value.String("b"), hits[0][1])

	distinct, ok := m.IndexStats(tbl, ix)
	require.True(t, ok)
	assert.Equal(t, 2, distinct)
}

func TestTx_CancellingChangesNetToZero(t *testing.T) {
	m := newInventoryMem(t)
	tbl, _ := m.LookupTable("inventory", false)

	tx := m.Begin()
	require.NoError(t, tx.Insert(tbl, invRow(1, "a")))
	require.NoError(t, tx.Delete(tbl, invRow(1, "a")))
	commit, err := tx.Commit()
	require.NoError(t, err)
	assert.True(t, commit.Empty(), "insert then delete of the same row cancels")

	n, _ := m.RowCount(tbl)
	assert.Equal(t, 0, n)
}

func TestTx_NoOpChangesExcludedFromDelta(t *testing.T) {
	m := newInventoryMem(t)
	tbl, _ := m.LookupTable("inventory", false)

	tx := m.Begin()
	require.NoError(t, tx.Insert(tbl, invRow(1, "a")))
	_, err := tx.Commit()
	require.NoError(t, err)

	// Re-inserting an existing row and deleting an absent one changes
	// nothing, so the delta must be empty.
	tx = m.Begin()
	require.NoError(t, tx.Insert(tbl, invRow(1, "a")))
	require.NoError(t, tx.Delete(tbl, invRow(9, "ghost")))
	commit, err := tx.Commit()
	require.NoError(t, err)
	assert.True(t, commit.Empty())
}

func TestTx_TypeChecked(t *testing.T) {
	m := newInventoryMem(t)
	tbl, _ := m.LookupTable("inventory", false)

	tx := m.Begin()
	err := tx.Insert(tbl, value.Row{value.Int{Bits: 64, V: 1}, value.String("a")})
	assert.Error(t, err, "i64 cell in a u64 column")

	err = tx.Insert(tbl, value.Row{value.Uint{Bits: 64, V: 1}})
	assert.Error(t, err, "arity mismatch")
}

func TestCommit_ValidateContradiction(t *testing.T) {
	row := invRow(1, "a")
	key := value.MustRowKey(row)
	c := &Commit{
		Seq: 1,
		Tables: map[string]*TableDelta{
			"inventory": {
				Table:    "inventory",
				Inserted: value.Set{key: row},
				Deleted:  value.Set{key: row},
			},
		},
	}

	err := c.Validate()
	var ce *ContradictionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "inventory", ce.Table)

	m := newInventoryMem(t)
	assert.Error(t, m.ApplyCommit(c), "contradictory batch must not be applied")
	tbl, _ := m.LookupTable("inventory", false)
	n, _ := m.RowCount(tbl)
	assert.Equal(t, 0, n)
}

func TestMem_ApplyCommitReplay(t *testing.T) {
	m := newInventoryMem(t)
	tbl, _ := m.LookupTable("inventory", false)

	row := invRow(7, "seven")
	c := &Commit{
		Seq: 3,
		Tables: map[string]*TableDelta{
			tbl.Key(): {
				Table:    tbl.Key(),
				Inserted: value.Set{value.MustRowKey(row): row},
				Deleted:  value.Set{},
			},
		},
	}
	require.NoError(t, m.ApplyCommit(c))

	n, _ := m.RowCount(tbl)
	assert.Equal(t, 1, n)
	assert.Equal(t, uint64(3), m.Seq(), "replay advances the commit sequence")
}

func TestMem_ViewSnapshot(t *testing.T) {
	m := newInventoryMem(t)
	tbl, _ := m.LookupTable("inventory", false)

	tx := m.Begin()
	require.NoError(t, tx.Insert(tbl, invRow(1, "a")))
	_, err := tx.Commit()
	require.NoError(t, err)

	err = m.View(func(s Store) error {
		rows, err := s.Scan(tbl)
		require.NoError(t, err)
		assert.Len(t, rows, 1)
		n, err := s.RowCount(tbl)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		return nil
	})
	require.NoError(t, err)
}

func TestMem_LookupTableUnknown(t *testing.T) {
	m := newInventoryMem(t)
	_, err := m.LookupTable("nope", false)
	var nf *TableNotFoundError
	require.ErrorAs(t, err, &nf)
}
