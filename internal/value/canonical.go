package value

import (
	"encoding/binary"
	"fmt"
	"math"

	"golang.org/x/text/unicode/norm"
)

// Canonical encoding of cell values and rows.
//
// The encoding is the ONLY serialization used for row identity hashing and
// for index keys, so it must be deterministic:
//   - every value is tagged with its kind (and width where applicable)
//   - strings are NFC normalized before encoding
//   - integers are fixed-width big endian
//   - floats are IEEE 754 bit patterns (no textual formatting)
//
// The encoding is also self-describing and decodable, which the commit log
// relies on for replay.

// AppendCanonical appends the canonical encoding of v to dst.
func AppendCanonical(dst []byte, v Value) ([]byte, error) {
	t := v.Type()
	dst = append(dst, byte(t.Kind), t.Bits)

	switch val := v.(type) {
	case Bool:
		if val {
			return append(dst, 1), nil
		}
		return append(dst, 0), nil
	case Int:
		return binary.BigEndian.AppendUint64(dst, uint64(val.V)), nil
	case Uint:
		return binary.BigEndian.AppendUint64(dst, val.V), nil
	case Float:
		return binary.BigEndian.AppendUint64(dst, math.Float64bits(val.V)), nil
	case String:
		s := norm.NFC.String(string(val))
		dst = binary.AppendUvarint(dst, uint64(len(s)))
		return append(dst, s...), nil
	case Identity:
		dst = binary.AppendUvarint(dst, uint64(len(val)))
		return append(dst, val...), nil
	case Address:
		dst = binary.AppendUvarint(dst, uint64(len(val)))
		return append(dst, val...), nil
	case Product:
		dst = binary.AppendUvarint(dst, uint64(len(val)))
		return append(dst, val...), nil
	case Sum:
		dst = binary.AppendUvarint(dst, uint64(len(val)))
		return append(dst, val...), nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

// Canonical returns the canonical encoding of a single value.
func Canonical(v Value) ([]byte, error) {
	return AppendCanonical(nil, v)
}

// decodeValue decodes one value from b, returning the value and the
// remaining bytes.
func decodeValue(b []byte) (Value, []byte, error) {
	if len(b) < 2 {
		return nil, nil, fmt.Errorf("truncated value header")
	}
	kind, bits := Kind(b[0]), b[1]
	b = b[2:]

	switch kind {
	case KindBool:
		if len(b) < 1 {
			return nil, nil, fmt.Errorf("truncated bool")
		}
		return Bool(b[0] != 0), b[1:], nil
	case KindInt:
		if len(b) < 8 {
			return nil, nil, fmt.Errorf("truncated i%d", bits)
		}
		return Int{Bits: bits, V: int64(binary.BigEndian.Uint64(b))}, b[8:], nil
	case KindUint:
		if len(b) < 8 {
			return nil, nil, fmt.Errorf("truncated u%d", bits)
		}
		return Uint{Bits: bits, V: binary.BigEndian.Uint64(b)}, b[8:], nil
	case KindFloat:
		if len(b) < 8 {
			return nil, nil, fmt.Errorf("truncated f%d", bits)
		}
		return Float{Bits: bits, V: math.Float64frombits(binary.BigEndian.Uint64(b))}, b[8:], nil
	case KindString, KindIdentity, KindAddress, KindProduct, KindSum:
		n, read := binary.Uvarint(b)
		if read <= 0 || uint64(len(b)-read) < n {
			return nil, nil, fmt.Errorf("truncated %v payload", kind)
		}
		payload := b[read : read+int(n)]
		rest := b[read+int(n):]
		switch kind {
		case KindString:
			return String(payload), rest, nil
		case KindIdentity:
			return Identity(append([]byte(nil), payload...)), rest, nil
		case KindAddress:
			return Address(append([]byte(nil), payload...)), rest, nil
		case KindProduct:
			return Product(append([]byte(nil), payload...)), rest, nil
		default:
			return Sum(append([]byte(nil), payload...)), rest, nil
		}
	default:
		return nil, nil, fmt.Errorf("unknown value kind %d", kind)
	}
}
