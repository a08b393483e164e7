package store

import (
	"database/sql"
	"fmt"
	"sort"

	"github.com/roach88/liveql/internal/catalog"
	"github.com/roach88/liveql/internal/value"
)

const (
	opInsert = 0
	opDelete = 1
)

// Append persists one commit batch atomically.
// Uses ON CONFLICT(seq) DO NOTHING for idempotency - a commit already in
// the log is silently skipped, so re-appending after a crash between
// log write and acknowledgement is safe.
func (l *Log) Append(c *catalog.Commit) error {
	tx, err := l.db.Begin()
	if err != nil {
		return fmt.Errorf("append commit: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	res, err := tx.Exec(`
		INSERT INTO commits (seq) VALUES (?)
		ON CONFLICT(seq) DO NOTHING
	`, c.Seq)
	if err != nil {
		return fmt.Errorf("append commit: insert commit: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("append commit: rows affected: %w", err)
	}
	if affected == 0 {
		// Already logged; the delta rows were written in the same tx.
		return tx.Commit()
	}

	stmt, err := tx.Prepare(`
		INSERT INTO commit_rows (seq, table_key, op, row) VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("append commit: prepare: %w", err)
	}
	defer stmt.Close()

	// Deterministic write order: tables by key, rows by identity.
	for _, key := range sortedTableKeys(c) {
		d := c.Tables[key]
		if err := writeRows(stmt, c.Seq, key, opDelete, d.Deleted); err != nil {
			return err
		}
		if err := writeRows(stmt, c.Seq, key, opInsert, d.Inserted); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("append commit: commit tx: %w", err)
	}
	return nil
}

func writeRows(stmt *sql.Stmt, seq uint64, tableKey string, op int, rows value.Set) error {
	for _, k := range sortedRowKeys(rows) {
		encoded, err := value.EncodeRow(rows[k])
		if err != nil {
			return fmt.Errorf("append commit: encode row: %w", err)
		}
		if _, err := stmt.Exec(seq, tableKey, op, encoded); err != nil {
			return fmt.Errorf("append commit: insert row: %w", err)
		}
	}
	return nil
}

func sortedTableKeys(c *catalog.Commit) []string {
	keys := make([]string, 0, len(c.Tables))
	for k := range c.Tables {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedRowKeys(rows value.Set) []value.Key {
	keys := make([]value.Key, 0, len(rows))
	for k := range rows {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
