package store

import (
	"context"
	"fmt"

	"github.com/roach88/liveql/internal/catalog"
	"github.com/roach88/liveql/internal/value"
)

// Replay streams the logged commits in sequence order, invoking fn once
// per commit. Replay stops at the first fn error.
//
// Rebuilding a storage engine on open is the expected use:
//
//	log.Replay(ctx, func(c *catalog.Commit) error { return mem.ApplyCommit(c) })
func (l *Log) Replay(ctx context.Context, fn func(c *catalog.Commit) error) error {
	rows, err := l.db.QueryContext(ctx, `
		SELECT seq, table_key, op, row FROM commit_rows
		ORDER BY seq ASC, id ASC
	`)
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}
	defer rows.Close()

	var current *catalog.Commit
	flush := func() error {
		if current == nil {
			return nil
		}
		err := fn(current)
		current = nil
		return err
	}

	for rows.Next() {
		var (
			seq      uint64
			tableKey string
			op       int
			encoded  []byte
		)
		if err := rows.Scan(&seq, &tableKey, &op, &encoded); err != nil {
			return fmt.Errorf("replay: scan: %w", err)
		}

		if current != nil && current.Seq != seq {
			if err := flush(); err != nil {
				return err
			}
		}
		if current == nil {
			current = &catalog.Commit{Seq: seq, Tables: make(map[string]*catalog.TableDelta)}
		}

		row, err := value.DecodeRow(encoded)
		if err != nil {
			return fmt.Errorf("replay: seq %d: decode row: %w", seq, err)
		}
		key, err := value.RowKey(row)
		if err != nil {
			return fmt.Errorf("replay: seq %d: row key: %w", seq, err)
		}

		d := current.Tables[tableKey]
		if d == nil {
			d = &catalog.TableDelta{Table: tableKey, Inserted: make(value.Set), Deleted: make(value.Set)}
			current.Tables[tableKey] = d
		}
		switch op {
		case opInsert:
			d.Inserted[key] = row
		case opDelete:
			d.Deleted[key] = row
		default:
			return fmt.Errorf("replay: seq %d: unknown op %d", seq, op)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("replay: iterate: %w", err)
	}
	return flush()
}

// LastSeq returns the highest sequence number in the log, zero when the
// log is empty. Used on open to resume the commit counter.
func (l *Log) LastSeq(ctx context.Context) (uint64, error) {
	var seq uint64
	err := l.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM commits
	`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq, nil
}

// Len returns the number of logged commits.
func (l *Log) Len(ctx context.Context) (int, error) {
	var n int
	err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM commits`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("log length: %w", err)
	}
	return n, nil
}
