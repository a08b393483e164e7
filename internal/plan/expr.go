package plan

import (
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/roach88/liveql/internal/sqlparse"
	"github.com/roach88/liveql/internal/value"
)

// Expr is the sealed interface over typed predicate expressions.
// The binder produces these; both evaluators walk them with exhaustive
// type switches.
type Expr interface {
	expr()
	String() string
}

// ColExpr is a resolved column reference. Slot indexes the query's table
// list, Ord the column ordinal within that table.
type ColExpr struct {
	Slot  int
	Ord   int
	Table string
	Name  string
	Type  value.Type
}

func (ColExpr) expr()            {}
func (e ColExpr) String() string { return e.Table + "." + e.Name }

// LitExpr is a literal typed from its paired column at bind time.
type LitExpr struct {
	V value.Value
}

func (LitExpr) expr()            {}
func (e LitExpr) String() string { return litString(e.V) }

// CmpExpr is a typed binary comparison.
type CmpExpr struct {
	Op    sqlparse.CmpOp
	Left  Expr
	Right Expr
}

func (CmpExpr) expr() {}

func (e CmpExpr) String() string {
	return fmt.Sprintf("%s %s %s", e.Left, e.Op, e.Right)
}

// AndExpr is a typed conjunction.
type AndExpr struct {
	Left  Expr
	Right Expr
}

func (AndExpr) expr() {}

func (e AndExpr) String() string {
	return parenOr(e.Left) + " and " + parenOr(e.Right)
}

// OrExpr is a typed disjunction. Never present in a subscription plan.
type OrExpr struct {
	Left  Expr
	Right Expr
}

func (OrExpr) expr() {}

func (e OrExpr) String() string {
	return e.Left.String() + " or " + e.Right.String()
}

func parenOr(e Expr) string {
	if _, ok := e.(OrExpr); ok {
		return "(" + e.String() + ")"
	}
	return e.String()
}

// EvalPredicate evaluates a boolean predicate against a tuple of rows
// aligned with the query's table slots.
func EvalPredicate(e Expr, tuple []value.Row) (bool, error) {
	switch x := e.(type) {
	case AndExpr:
		l, err := EvalPredicate(x.Left, tuple)
		if err != nil || !l {
			return false, err
		}
		return EvalPredicate(x.Right, tuple)
	case OrExpr:
		l, err := EvalPredicate(x.Left, tuple)
		if err != nil || l {
			return l, err
		}
		return EvalPredicate(x.Right, tuple)
	case CmpExpr:
		l, err := EvalValue(x.Left, tuple)
		if err != nil {
			return false, err
		}
		r, err := EvalValue(x.Right, tuple)
		if err != nil {
			return false, err
		}
		switch x.Op {
		case sqlparse.OpEq:
			return value.Equal(l, r)
		case sqlparse.OpNeq:
			eq, err := value.Equal(l, r)
			return !eq, err
		default:
			c, err := value.Compare(l, r)
			if err != nil {
				return false, err
			}
			switch x.Op {
			case sqlparse.OpLt:
				return c < 0, nil
			case sqlparse.OpGt:
				return c > 0, nil
			case sqlparse.OpLe:
				return c <= 0, nil
			default:
				return c >= 0, nil
			}
		}
	default:
		return false, fmt.Errorf("expression %s is not a predicate", e)
	}
}

// EvalValue evaluates a scalar operand against a tuple.
func EvalValue(e Expr, tuple []value.Row) (value.Value, error) {
	switch x := e.(type) {
	case ColExpr:
		return tuple[x.Slot][x.Ord], nil
	case LitExpr:
		return x.V, nil
	default:
		return nil, fmt.Errorf("expression %s is not a scalar", e)
	}
}

// LiteralValue types an untyped literal from its paired column type.
// Integer and float widths come from the column; hex payloads must match
// the declared identity/address length exactly.
func LiteralValue(lit sqlparse.Literal, t value.Type) (value.Value, error) {
	switch t.Kind {
	case value.KindBool:
		if lit.Kind != sqlparse.LitBool {
			return nil, convErr(lit, t)
		}
		return value.Bool(lit.Bool), nil

	case value.KindInt:
		if lit.Kind != sqlparse.LitInt {
			return nil, convErr(lit, t)
		}
		n, err := intFromText(lit.Text)
		if err != nil {
			return nil, err
		}
		if t.Bits < 64 {
			lo := -(int64(1) << (t.Bits - 1))
			hi := int64(1)<<(t.Bits-1) - 1
			if n < lo || n > hi {
				return nil, fmt.Errorf("literal %s out of range for %s", lit.Text, t)
			}
		}
		return value.Int{Bits: t.Bits, V: n}, nil

	case value.KindUint:
		if lit.Kind != sqlparse.LitInt {
			return nil, convErr(lit, t)
		}
		n, err := uintFromText(lit.Text)
		if err != nil {
			return nil, err
		}
		if t.Bits < 64 && n > uint64(1)<<t.Bits-1 {
			return nil, fmt.Errorf("literal %s out of range for %s", lit.Text, t)
		}
		return value.Uint{Bits: t.Bits, V: n}, nil

	case value.KindFloat:
		if lit.Kind != sqlparse.LitInt && lit.Kind != sqlparse.LitFloat {
			return nil, convErr(lit, t)
		}
		f, err := strconv.ParseFloat(lit.Text, int(t.Bits))
		if err != nil {
			return nil, fmt.Errorf("literal %s out of range for %s", lit.Text, t)
		}
		return value.Float{Bits: t.Bits, V: f}, nil

	case value.KindString:
		if lit.Kind != sqlparse.LitString {
			return nil, convErr(lit, t)
		}
		return value.String(lit.Str), nil

	case value.KindIdentity:
		if lit.Kind != sqlparse.LitHex {
			return nil, convErr(lit, t)
		}
		if len(lit.Bytes) != value.IdentityLen {
			return nil, fmt.Errorf("identity literal must be %d bytes, got %d", value.IdentityLen, len(lit.Bytes))
		}
		return value.Identity(lit.Bytes), nil

	case value.KindAddress:
		if lit.Kind != sqlparse.LitHex {
			return nil, convErr(lit, t)
		}
		if len(lit.Bytes) != value.AddressLen {
			return nil, fmt.Errorf("address literal must be %d bytes, got %d", value.AddressLen, len(lit.Bytes))
		}
		return value.Address(lit.Bytes), nil

	default:
		return nil, fmt.Errorf("%s columns have no literal form", t)
	}
}

func convErr(lit sqlparse.Literal, t value.Type) error {
	return fmt.Errorf("literal %s is not comparable with a %s column", lit, t)
}

// intFromText parses an integer literal, expanding a non-negative
// exponent suffix (1e3 is 1000).
func intFromText(text string) (int64, error) {
	mant, exp, err := splitExponent(text)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(mant, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("integer literal %s out of range", text)
	}
	for ; exp > 0; exp-- {
		if n > math.MaxInt64/10 || n < math.MinInt64/10 {
			return 0, fmt.Errorf("integer literal %s out of range", text)
		}
		n *= 10
	}
	return n, nil
}

func uintFromText(text string) (uint64, error) {
	mant, exp, err := splitExponent(text)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(mant, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("literal %s is not a valid unsigned integer", text)
	}
	for ; exp > 0; exp-- {
		if n > math.MaxUint64/10 {
			return 0, fmt.Errorf("integer literal %s out of range", text)
		}
		n *= 10
	}
	return n, nil
}

func splitExponent(text string) (mant string, exp int, err error) {
	i := strings.IndexAny(text, "eE")
	if i < 0 {
		return text, 0, nil
	}
	exp, err = strconv.Atoi(text[i+1:])
	if err != nil {
		return "", 0, fmt.Errorf("bad exponent in literal %s", text)
	}
	if exp < 0 {
		return "", 0, fmt.Errorf("integer literal %s has a negative exponent", text)
	}
	return text[:i], exp, nil
}

// litString renders a typed value in query-literal form, for plan display.
func litString(v value.Value) string {
	switch x := v.(type) {
	case value.Bool:
		if x {
			return "true"
		}
		return "false"
	case value.Int:
		return strconv.FormatInt(x.V, 10)
	case value.Uint:
		return strconv.FormatUint(x.V, 10)
	case value.Float:
		return strconv.FormatFloat(x.V, 'g', -1, 64)
	case value.String:
		return "'" + strings.ReplaceAll(string(x), "'", "''") + "'"
	case value.Identity:
		return "0x" + hex.EncodeToString(x)
	case value.Address:
		return "0x" + hex.EncodeToString(x)
	case value.Product:
		return "0x" + hex.EncodeToString(x)
	case value.Sum:
		return "0x" + hex.EncodeToString(x)
	default:
		return "?"
	}
}
