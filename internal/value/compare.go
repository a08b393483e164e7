package value

import (
	"bytes"
	"fmt"
)

// Equal reports structural equality of two values.
// Both operands must have the same type; comparing across types is a
// binder bug and returns an error rather than false.
func Equal(a, b Value) (bool, error) {
	if a.Type() != b.Type() {
		return false, fmt.Errorf("type mismatch: %s vs %s", a.Type(), b.Type())
	}

	switch av := a.(type) {
	case Bool:
		return av == b.(Bool), nil
	case Int:
		return av.V == b.(Int).V, nil
	case Uint:
		return av.V == b.(Uint).V, nil
	case Float:
		return av.V == b.(Float).V, nil
	case String:
		return av == b.(String), nil
	case Identity:
		return bytes.Equal(av, b.(Identity)), nil
	case Address:
		return bytes.Equal(av, b.(Address)), nil
	case Product:
		return bytes.Equal(av, b.(Product)), nil
	case Sum:
		return bytes.Equal(av, b.(Sum)), nil
	default:
		return false, fmt.Errorf("unsupported value type %T", a)
	}
}

// Compare orders two values of the same type.
// Returns -1, 0, or 1. Product and sum values have no defined order and
// return an error; the binder rejects them for ORDER BY before execution,
// so hitting that path at runtime indicates a bug.
func Compare(a, b Value) (int, error) {
	if a.Type() != b.Type() {
		return 0, fmt.Errorf("type mismatch: %s vs %s", a.Type(), b.Type())
	}

	switch av := a.(type) {
	case Bool:
		bv := b.(Bool)
		switch {
		case av == bv:
			return 0, nil
		case bool(av): // true > false
			return 1, nil
		default:
			return -1, nil
		}
	case Int:
		return cmpOrdered(av.V, b.(Int).V), nil
	case Uint:
		return cmpOrdered(av.V, b.(Uint).V), nil
	case Float:
		return cmpOrdered(av.V, b.(Float).V), nil
	case String:
		return cmpOrdered(string(av), string(b.(String))), nil
	case Identity:
		return bytes.Compare(av, b.(Identity)), nil
	case Address:
		return bytes.Compare(av, b.(Address)), nil
	case Product, Sum:
		return 0, fmt.Errorf("%s values have no defined ordering", a.Type())
	default:
		return 0, fmt.Errorf("unsupported value type %T", a)
	}
}

func cmpOrdered[T int64 | uint64 | float64 | string](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
