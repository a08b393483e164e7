package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/liveql/internal/catalog"
	"github.com/roach88/liveql/internal/value"
)

func openTestLog(t *testing.T) *Log {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "commits.db"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func invRow(id uint64, name string) value.Row {
	return value.Row{value.Uint{Bits: 64, V: id}, value.String(name)}
}

func deltaSet(rows ...value.Row) value.Set {
	s := make(value.Set, len(rows))
	for _, r := range rows {
		s[value.MustRowKey(r)] = r
	}
	return s
}

func testCommit(seq uint64, inserted, deleted []value.Row) *catalog.Commit {
	return &catalog.Commit{Seq: seq, Tables: map[string]*catalog.TableDelta{
		"inventory": {
			Table:    "inventory",
			Inserted: deltaSet(inserted...),
			Deleted:  deltaSet(deleted...),
		},
	}}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "commits.db")
	l, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, l.Close())

	l, err = Open(path)
	require.NoError(t, err)
	require.NoError(t, l.Close())
}

func TestAppendReplay_RoundTrip(t *testing.T) {
	ctx := context.Background()
	l := openTestLog(t)

	c1 := testCommit(1, []value.Row{invRow(1, "gear"), invRow(2, "sprocket")}, nil)
	c2 := testCommit(2, []value.Row{invRow(3, "cog")}, []value.Row{invRow(2, "sprocket")})
	require.NoError(t, l.Append(c1))
	require.NoError(t, l.Append(c2))

	seq, err := l.LastSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), seq)

	n, err := l.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var replayed []*catalog.Commit
	require.NoError(t, l.Replay(ctx, func(c *catalog.Commit) error {
		replayed = append(replayed, c)
		return nil
	}))
	require.Len(t, replayed, 2)
	assert.Equal(t, c1, replayed[0])
	assert.Equal(t, c2, replayed[1])
}

func TestAppend_Idempotent(t *testing.T) {
	ctx := context.Background()
	l := openTestLog(t)

	c := testCommit(7, []value.Row{invRow(1, "gear")}, nil)
	require.NoError(t, l.Append(c))
	require.NoError(t, l.Append(c))

	n, err := l.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	count := 0
	require.NoError(t, l.Replay(ctx, func(*catalog.Commit) error {
		count++
		return nil
	}))
	assert.Equal(t, 1, count)
}

func TestReplay_SequenceOrder(t *testing.T) {
	ctx := context.Background()
	l := openTestLog(t)

	// Out-of-order appends still replay in sequence order.
	require.NoError(t, l.Append(testCommit(2, []value.Row{invRow(2, "b")}, nil)))
	require.NoError(t, l.Append(testCommit(1, []value.Row{invRow(1, "a")}, nil)))

	var seqs []uint64
	require.NoError(t, l.Replay(ctx, func(c *catalog.Commit) error {
		seqs = append(seqs, c.Seq)
		return nil
	}))
	assert.Equal(t, []uint64{1, 2}, seqs)
}

func TestReplay_RebuildsStore(t *testing.T) {
	ctx := context.Background()
	l := openTestLog(t)

	require.NoError(t, l.Append(testCommit(1, []value.Row{invRow(1, "gear"), invRow(2, "sprocket")}, nil)))
	require.NoError(t, l.Append(testCommit(2, nil, []value.Row{invRow(1, "gear")})))

	table := &catalog.Table{
		Name: "Inventory",
		Columns: []catalog.Column{
			{Name: "item_id", Type: value.TypeU64},
			{Name: "item_name", Type: value.TypeString},
		},
	}
	m, err := catalog.NewMem(table)
	require.NoError(t, err)
	require.NoError(t, l.Replay(ctx, m.ApplyCommit))

	rows, err := m.Scan(table)
	require.NoError(t, err)
	assert.Equal(t, []value.Row{invRow(2, "sprocket")}, rows)
	assert.Equal(t, uint64(2), m.Seq())
}

func TestReplay_StopsOnError(t *testing.T) {
	ctx := context.Background()
	l := openTestLog(t)

	require.NoError(t, l.Append(testCommit(1, []value.Row{invRow(1, "a")}, nil)))
	require.NoError(t, l.Append(testCommit(2, []value.Row{invRow(2, "b")}, nil)))

	calls := 0
	err := l.Replay(ctx, func(*catalog.Commit) error {
		calls++
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, calls)
}
