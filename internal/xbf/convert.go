package xbf

// PrimitiveOf wraps a Go scalar in the Primitive of the matching kind. It
// reports false for types with no exact kind, including int and uint whose
// width depends on the platform.
func PrimitiveOf(x any) (Primitive, bool) {
	switch x := x.(type) {
	case Primitive:
		return x, true
	case bool:
		return Bool(x), true
	case uint8:
		return U8(x), true
	case uint16:
		return U16(x), true
	case uint32:
		return U32(x), true
	case uint64:
		return U64(x), true
	case U128:
		return U128Of(x), true
	case U256:
		return U256Of(x), true
	case int8:
		return I8(x), true
	case int16:
		return I16(x), true
	case int32:
		return I32(x), true
	case int64:
		return I64(x), true
	case I128:
		return I128Of(x), true
	case I256:
		return I256Of(x), true
	case float32:
		return F32(x), true
	case float64:
		return F64(x), true
	case string:
		return String(x), true
	}
	return Primitive{}, false
}

// Primitives lifts a list of Go scalars into values, stopping at the first
// one PrimitiveOf rejects and returning its index.
func Primitives(xs ...any) ([]Value, int, bool) {
	out := make([]Value, 0, len(xs))
	for i, x := range xs {
		p, ok := PrimitiveOf(x)
		if !ok {
			return nil, i, false
		}
		out = append(out, p)
	}
	return out, -1, true
}
