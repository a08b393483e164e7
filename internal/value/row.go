package value

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// Domain prefix for content-addressed row identity.
// The version suffix enables future encoding migration.
const rowDomain = "liveql/row/v1"

// Row is an ordered tuple of cell values, one per table column.
type Row []Value

// Key is the content address of a row: hex SHA-256 over the row's
// canonical encoding with domain separation. Two rows with the same
// key are the same row for set-membership purposes.
type Key string

// EncodeRow returns the canonical encoding of a row.
func EncodeRow(r Row) ([]byte, error) {
	dst := binary.AppendUvarint(nil, uint64(len(r)))
	var err error
	for i, v := range r {
		if v == nil {
			return nil, fmt.Errorf("column %d: nil value", i)
		}
		dst, err = AppendCanonical(dst, v)
		if err != nil {
			return nil, fmt.Errorf("column %d: %w", i, err)
		}
	}
	return dst, nil
}

// DecodeRow decodes a canonical row encoding produced by EncodeRow.
func DecodeRow(b []byte) (Row, error) {
	n, read := binary.Uvarint(b)
	if read <= 0 {
		return nil, fmt.Errorf("truncated row header")
	}
	b = b[read:]

	row := make(Row, 0, n)
	for i := uint64(0); i < n; i++ {
		var (
			v   Value
			err error
		)
		v, b, err = decodeValue(b)
		if err != nil {
			return nil, fmt.Errorf("column %d: %w", i, err)
		}
		row = append(row, v)
	}
	if len(b) != 0 {
		return nil, fmt.Errorf("%d trailing bytes after row", len(b))
	}
	return row, nil
}

// RowKey computes the content address of a row.
func RowKey(r Row) (Key, error) {
	canon, err := EncodeRow(r)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write([]byte(rowDomain))
	h.Write([]byte{0x00}) // null separator prevents domain/data ambiguity
	h.Write(canon)
	return Key(hex.EncodeToString(h.Sum(nil))), nil
}

// MustRowKey is RowKey for rows already validated by the storage layer.
// Panics on encoding failure, which can only happen on a nil cell.
func MustRowKey(r Row) Key {
	k, err := RowKey(r)
	if err != nil {
		panic(fmt.Sprintf("row key: %v", err))
	}
	return k
}

// Set is a content-addressed row set.
type Set map[Key]Row

// Clone returns a shallow copy of the set (rows are immutable by
// convention and shared).
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for k, r := range s {
		out[k] = r
	}
	return out
}
