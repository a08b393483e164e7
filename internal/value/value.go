package value

import "fmt"

// Kind identifies the algebraic type of a column or cell value.
type Kind uint8

const (
	KindBool Kind = iota + 1
	KindInt
	KindUint
	KindFloat
	KindString
	KindIdentity
	KindAddress
	KindProduct
	KindSum
)

// Type is the declared algebraic type of a column. Bits carries the width
// for integer and float kinds (8/16/32/64) and is zero for everything else.
type Type struct {
	Kind Kind
	Bits uint8
}

// Common types, exported for convenience in the binder and tests.
var (
	TypeBool     = Type{Kind: KindBool}
	TypeI8       = Type{Kind: KindInt, Bits: 8}
	TypeI16      = Type{Kind: KindInt, Bits: 16}
	TypeI32      = Type{Kind: KindInt, Bits: 32}
	TypeI64      = Type{Kind: KindInt, Bits: 64}
	TypeU8       = Type{Kind: KindUint, Bits: 8}
	TypeU16      = Type{Kind: KindUint, Bits: 16}
	TypeU32      = Type{Kind: KindUint, Bits: 32}
	TypeU64      = Type{Kind: KindUint, Bits: 64}
	TypeF32      = Type{Kind: KindFloat, Bits: 32}
	TypeF64      = Type{Kind: KindFloat, Bits: 64}
	TypeString   = Type{Kind: KindString}
	TypeIdentity = Type{Kind: KindIdentity}
	TypeAddress  = Type{Kind: KindAddress}
	TypeProduct  = Type{Kind: KindProduct}
	TypeSum      = Type{Kind: KindSum}
)

// typeNames maps the schema-language spelling to a Type.
var typeNames = map[string]Type{
	"bool":     TypeBool,
	"i8":       TypeI8,
	"i16":      TypeI16,
	"i32":      TypeI32,
	"i64":      TypeI64,
	"u8":       TypeU8,
	"u16":      TypeU16,
	"u32":      TypeU32,
	"u64":      TypeU64,
	"f32":      TypeF32,
	"f64":      TypeF64,
	"string":   TypeString,
	"identity": TypeIdentity,
	"address":  TypeAddress,
	"product":  TypeProduct,
	"sum":      TypeSum,
}

// ParseType resolves a schema type name ("i64", "string", ...) to a Type.
func ParseType(name string) (Type, error) {
	t, ok := typeNames[name]
	if !ok {
		return Type{}, fmt.Errorf("unknown column type %q", name)
	}
	return t, nil
}

// String returns the schema-language spelling of the type.
func (t Type) String() string {
	switch t.Kind {
	case KindBool:
		return "bool"
	case KindInt:
		return fmt.Sprintf("i%d", t.Bits)
	case KindUint:
		return fmt.Sprintf("u%d", t.Bits)
	case KindFloat:
		return fmt.Sprintf("f%d", t.Bits)
	case KindString:
		return "string"
	case KindIdentity:
		return "identity"
	case KindAddress:
		return "address"
	case KindProduct:
		return "product"
	case KindSum:
		return "sum"
	default:
		return fmt.Sprintf("Type(%d)", t.Kind)
	}
}

// Orderable reports whether values of this type support a total order.
// Product and sum cells are opaque payloads: equality is structural but
// no ordering is defined, so ORDER BY and DISTINCT reject them.
func (t Type) Orderable() bool {
	switch t.Kind {
	case KindProduct, KindSum:
		return false
	default:
		return true
	}
}

// Numeric reports whether the type participates in SUM aggregation.
func (t Type) Numeric() bool {
	switch t.Kind {
	case KindInt, KindUint, KindFloat:
		return true
	default:
		return false
	}
}

// Value is a sealed interface over the cell value variants.
// Only the types in this package implement it; the marker method enables
// exhaustive type switches in the evaluators and the canonical encoder.
type Value interface {
	value()
	Type() Type
}

// Bool is a boolean cell value.
type Bool bool

func (Bool) value()     {}
func (Bool) Type() Type { return TypeBool }

// Int is a signed integer cell value of a declared width.
// The payload is always carried as int64; Bits records the declared width.
type Int struct {
	Bits uint8
	V    int64
}

func (Int) value()       {}
func (v Int) Type() Type { return Type{Kind: KindInt, Bits: v.Bits} }

// Uint is an unsigned integer cell value of a declared width.
type Uint struct {
	Bits uint8
	V    uint64
}

func (Uint) value()       {}
func (v Uint) Type() Type { return Type{Kind: KindUint, Bits: v.Bits} }

// Float is a floating-point cell value (f32 or f64).
type Float struct {
	Bits uint8
	V    float64
}

func (Float) value()       {}
func (v Float) Type() Type { return Type{Kind: KindFloat, Bits: v.Bits} }

// String is a UTF-8 string cell value.
type String string

func (String) value()     {}
func (String) Type() Type { return TypeString }

// Identity is a 32-byte hex identity value.
type Identity []byte

func (Identity) value()     {}
func (Identity) Type() Type { return TypeIdentity }

// Address is a 16-byte hex address value.
type Address []byte

func (Address) value()     {}
func (Address) Type() Type { return TypeAddress }

// Product is an opaque product-typed cell, carried as its canonical
// encoding. Structural equality is byte equality of the payload.
type Product []byte

func (Product) value()     {}
func (Product) Type() Type { return TypeProduct }

// Sum is an opaque sum-typed cell, carried as its canonical encoding.
type Sum []byte

func (Sum) value()     {}
func (Sum) Type() Type { return TypeSum }

// IdentityLen and AddressLen are the required payload lengths.
const (
	IdentityLen = 32
	AddressLen  = 16
)
