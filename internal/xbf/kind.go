package xbf

import (
	"fmt"
	"io"

	"goXBF/internal/wire"
)

// PrimitiveKind identifies one of the scalar kinds. Its numeric value is the
// kind's discriminant on the wire, so the declaration order below must never
// change. Reordering silently corrupts stored data.
type PrimitiveKind uint8

const (
	KindBool PrimitiveKind = iota
	KindU8
	KindU16
	KindU32
	KindU64
	KindU128
	KindU256
	KindI8
	KindI16
	KindI32
	KindI64
	KindI128
	KindI256
	KindF32
	KindF64
	KindString
)

// NumPrimitiveKinds is the size of the primitive discriminant space.
const NumPrimitiveKinds = int(KindString) + 1

// The composite families follow the primitive kinds in one contiguous tag
// space: primitives, then vector, then record.
const (
	VecDiscriminant    = byte(NumPrimitiveKinds)
	RecordDiscriminant = VecDiscriminant + 1
)

var kindNames = [NumPrimitiveKinds]string{
	KindBool:   "bool",
	KindU8:     "u8",
	KindU16:    "u16",
	KindU32:    "u32",
	KindU64:    "u64",
	KindU128:   "u128",
	KindU256:   "u256",
	KindI8:     "i8",
	KindI16:    "i16",
	KindI32:    "i32",
	KindI64:    "i64",
	KindI128:   "i128",
	KindI256:   "i256",
	KindF32:    "f32",
	KindF64:    "f64",
	KindString: "string",
}

// kindSizes holds the encoded width of each fixed-width kind; String is
// variable and reported as -1.
var kindSizes = [NumPrimitiveKinds]int{
	KindBool:   1,
	KindU8:     1,
	KindU16:    2,
	KindU32:    4,
	KindU64:    8,
	KindU128:   16,
	KindU256:   32,
	KindI8:     1,
	KindI16:    2,
	KindI32:    4,
	KindI64:    8,
	KindI128:   16,
	KindI256:   32,
	KindF32:    4,
	KindF64:    8,
	KindString: -1,
}

// Valid reports whether k is one of the declared kinds.
func (k PrimitiveKind) Valid() bool {
	return int(k) < NumPrimitiveKinds
}

func (k PrimitiveKind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
	return kindNames[k]
}

// Size returns the number of bytes a value of kind k occupies on the wire,
// or -1 for String.
func (k PrimitiveKind) Size() int {
	if !k.Valid() {
		return -1
	}
	return kindSizes[k]
}

// Discriminant returns the tag byte that introduces k in a metadata stream.
func (k PrimitiveKind) Discriminant() byte {
	return byte(k)
}

// EncodeMetadata writes the single discriminant byte for k.
func (k PrimitiveKind) EncodeMetadata(w io.Writer) error {
	if !k.Valid() {
		return formatErrorf(ErrUnknownDiscriminant, "encode metadata: unrecognized primitive kind %d", uint8(k))
	}
	if err := wire.WriteU8(w, k.Discriminant()); err != nil {
		return fmt.Errorf("xbf: encode %s metadata: %w", k, err)
	}
	return nil
}

func (k PrimitiveKind) Equal(other Metadata) bool {
	o, ok := other.(PrimitiveKind)
	return ok && o == k
}

func (PrimitiveKind) sealedMetadata() {}

// ParseKind maps a kind name as printed by String back to its kind.
func ParseKind(name string) (PrimitiveKind, bool) {
	for i, n := range kindNames {
		if n == name {
			return PrimitiveKind(i), true
		}
	}
	return 0, false
}
