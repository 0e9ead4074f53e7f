package xbf

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"goXBF/internal/wire"
)

// Primitive is a scalar value tagged with its kind.
//
// Numeric payloads live in limbs: unsigned kinds zero-extended, signed kinds
// sign-extended across the kind's own limbs, floats as their IEEE bits. Only
// the accessor matching Kind returns ok.
type Primitive struct {
	kind  PrimitiveKind
	limbs [4]uint64
	str   string
}

func Bool(v bool) Primitive {
	p := Primitive{kind: KindBool}
	if v {
		p.limbs[0] = 1
	}
	return p
}

func U8(v uint8) Primitive   { return Primitive{kind: KindU8, limbs: [4]uint64{uint64(v)}} }
func U16(v uint16) Primitive { return Primitive{kind: KindU16, limbs: [4]uint64{uint64(v)}} }
func U32(v uint32) Primitive { return Primitive{kind: KindU32, limbs: [4]uint64{uint64(v)}} }
func U64(v uint64) Primitive { return Primitive{kind: KindU64, limbs: [4]uint64{v}} }

func I8(v int8) Primitive   { return Primitive{kind: KindI8, limbs: [4]uint64{uint64(int64(v))}} }
func I16(v int16) Primitive { return Primitive{kind: KindI16, limbs: [4]uint64{uint64(int64(v))}} }
func I32(v int32) Primitive { return Primitive{kind: KindI32, limbs: [4]uint64{uint64(int64(v))}} }
func I64(v int64) Primitive { return Primitive{kind: KindI64, limbs: [4]uint64{uint64(v)}} }

func U128Of(v U128) Primitive { return Primitive{kind: KindU128, limbs: [4]uint64{v[0], v[1]}} }
func I128Of(v I128) Primitive { return Primitive{kind: KindI128, limbs: [4]uint64{v[0], v[1]}} }
func U256Of(v U256) Primitive { return Primitive{kind: KindU256, limbs: v} }
func I256Of(v I256) Primitive { return Primitive{kind: KindI256, limbs: v} }

func F32(v float32) Primitive {
	return Primitive{kind: KindF32, limbs: [4]uint64{uint64(math.Float32bits(v))}}
}

func F64(v float64) Primitive {
	return Primitive{kind: KindF64, limbs: [4]uint64{math.Float64bits(v)}}
}

func String(v string) Primitive { return Primitive{kind: KindString, str: v} }

// Kind returns the primitive's kind.
func (p Primitive) Kind() PrimitiveKind { return p.kind }

func (p Primitive) AsBool() (bool, bool) {
	return p.limbs[0] != 0, p.kind == KindBool
}

// AsUint returns the value of any unsigned kind up to 64 bits.
func (p Primitive) AsUint() (uint64, bool) {
	switch p.kind {
	case KindU8, KindU16, KindU32, KindU64:
		return p.limbs[0], true
	}
	return 0, false
}

// AsInt returns the value of any signed kind up to 64 bits.
func (p Primitive) AsInt() (int64, bool) {
	switch p.kind {
	case KindI8, KindI16, KindI32, KindI64:
		return int64(p.limbs[0]), true
	}
	return 0, false
}

// AsFloat returns the value of F32 or F64, widened to float64.
func (p Primitive) AsFloat() (float64, bool) {
	switch p.kind {
	case KindF32:
		return float64(math.Float32frombits(uint32(p.limbs[0]))), true
	case KindF64:
		return math.Float64frombits(p.limbs[0]), true
	}
	return 0, false
}

func (p Primitive) AsU128() (U128, bool) { return U128{p.limbs[0], p.limbs[1]}, p.kind == KindU128 }
func (p Primitive) AsI128() (I128, bool) { return I128{p.limbs[0], p.limbs[1]}, p.kind == KindI128 }
func (p Primitive) AsU256() (U256, bool) { return U256(p.limbs), p.kind == KindU256 }
func (p Primitive) AsI256() (I256, bool) { return I256(p.limbs), p.kind == KindI256 }

func (p Primitive) AsString() (string, bool) { return p.str, p.kind == KindString }

// EncodeValue writes the raw little-endian representation of p.
func (p Primitive) EncodeValue(w io.Writer) error {
	var err error
	switch p.kind {
	case KindBool, KindU8, KindI8:
		err = wire.WriteU8(w, uint8(p.limbs[0]))
	case KindU16, KindI16:
		err = wire.WriteU16(w, uint16(p.limbs[0]))
	case KindU32, KindI32, KindF32:
		err = wire.WriteU32(w, uint32(p.limbs[0]))
	case KindU64, KindI64, KindF64:
		err = wire.WriteU64(w, p.limbs[0])
	case KindU128, KindI128:
		err = wire.WriteLimbs(w, p.limbs[:2])
	case KindU256, KindI256:
		err = wire.WriteLimbs(w, p.limbs[:])
	case KindString:
		err = wire.WriteString(w, p.str)
	default:
		return formatErrorf(ErrUnknownDiscriminant, "encode value: unrecognized primitive kind %d", uint8(p.kind))
	}
	if err != nil {
		return fmt.Errorf("xbf: encode %s: %w", p.kind, err)
	}
	return nil
}

// DecodePrimitive reads one value of the given kind, consuming exactly the
// bytes EncodeValue writes for it. Any non-zero Bool byte decodes as true.
func DecodePrimitive(kind PrimitiveKind, r io.Reader) (Primitive, error) {
	return NewDecoder(r).DecodePrimitive(kind)
}

func readPrimitive(kind PrimitiveKind, r io.Reader) (Primitive, error) {
	switch kind {
	case KindBool:
		b, err := wire.ReadU8(r)
		return Bool(b != 0), err
	case KindU8:
		b, err := wire.ReadU8(r)
		return U8(b), err
	case KindI8:
		b, err := wire.ReadU8(r)
		return I8(int8(b)), err
	case KindU16:
		v, err := wire.ReadU16(r)
		return U16(v), err
	case KindI16:
		v, err := wire.ReadU16(r)
		return I16(int16(v)), err
	case KindU32:
		v, err := wire.ReadU32(r)
		return U32(v), err
	case KindI32:
		v, err := wire.ReadU32(r)
		return I32(int32(v)), err
	case KindF32:
		v, err := wire.ReadF32(r)
		return F32(v), err
	case KindU64:
		v, err := wire.ReadU64(r)
		return U64(v), err
	case KindI64:
		v, err := wire.ReadU64(r)
		return I64(int64(v)), err
	case KindF64:
		v, err := wire.ReadF64(r)
		return F64(v), err
	case KindU128:
		var v U128
		err := wire.ReadLimbs(r, v[:])
		return U128Of(v), err
	case KindI128:
		var v I128
		err := wire.ReadLimbs(r, v[:])
		return I128Of(v), err
	case KindU256:
		var v U256
		err := wire.ReadLimbs(r, v[:])
		return U256Of(v), err
	case KindI256:
		var v I256
		err := wire.ReadLimbs(r, v[:])
		return I256Of(v), err
	case KindString:
		s, err := wire.ReadString(r)
		return String(s), err
	}
	return Primitive{}, formatErrorf(ErrUnknownDiscriminant, "decode value: unrecognized primitive kind %d", uint8(kind))
}

// Equal reports whether other is a Primitive of the same kind and value.
// Floats compare with ==, so NaN is never equal to itself.
func (p Primitive) Equal(other Value) bool {
	o, ok := other.(Primitive)
	if !ok || o.kind != p.kind {
		return false
	}
	switch p.kind {
	case KindF32, KindF64:
		a, _ := p.AsFloat()
		b, _ := o.AsFloat()
		return a == b
	case KindString:
		return p.str == o.str
	}
	return p.limbs == o.limbs
}

func (p Primitive) String() string {
	switch p.kind {
	case KindBool:
		return strconv.FormatBool(p.limbs[0] != 0)
	case KindU8, KindU16, KindU32, KindU64:
		return strconv.FormatUint(p.limbs[0], 10)
	case KindI8, KindI16, KindI32, KindI64:
		return strconv.FormatInt(int64(p.limbs[0]), 10)
	case KindF32:
		f, _ := p.AsFloat()
		return strconv.FormatFloat(f, 'g', -1, 32)
	case KindF64:
		f, _ := p.AsFloat()
		return strconv.FormatFloat(f, 'g', -1, 64)
	case KindU128:
		v, _ := p.AsU128()
		return v.String()
	case KindI128:
		v, _ := p.AsI128()
		return v.String()
	case KindU256:
		v, _ := p.AsU256()
		return v.String()
	case KindI256:
		v, _ := p.AsI256()
		return v.String()
	case KindString:
		return strconv.Quote(p.str)
	}
	return "<invalid>"
}

func (p Primitive) metadata() Metadata { return p.kind }

func (Primitive) sealedValue() {}
