// Package bridge converts between XBF values and plain Go data, the shape
// YAML, JSON and CBOR libraries produce and consume.
package bridge

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strconv"

	"goXBF/internal/xbf"
)

// Member is one named entry of an Object.
type Member struct {
	Name  string
	Value any
}

// Object is a record in native form. Unlike a map it keeps field order,
// so YAML and JSON output lists fields as the schema declares them.
type Object []Member

// Get returns the value of the first member called name.
func (o Object) Get(name string) (any, bool) {
	for _, m := range o {
		if m.Name == name {
			return m.Value, true
		}
	}
	return nil, false
}

// Map flattens o into a map. Later duplicates win.
func (o Object) Map() map[string]any {
	out := make(map[string]any, len(o))
	for _, m := range o {
		out[m.Name] = m.Value
	}
	return out
}

// ToNative converts v into plain Go data. Integers up to 64 bits keep their
// Go width, wider ones become decimal strings. Vectors become []any and
// records become Object.
func ToNative(v xbf.Value) any {
	switch v := v.(type) {
	case xbf.Primitive:
		return primitiveToNative(v)
	case xbf.Vector:
		out := make([]any, v.Len())
		for i := range out {
			out[i] = ToNative(v.At(i))
		}
		return out
	case xbf.Record:
		meta := v.Metadata()
		out := make(Object, v.Len())
		for i := range out {
			out[i] = Member{Name: meta.Field(i).Name, Value: ToNative(v.Value(i))}
		}
		return out
	}
	return nil
}

func primitiveToNative(p xbf.Primitive) any {
	switch k := p.Kind(); k {
	case xbf.KindBool:
		b, _ := p.AsBool()
		return b
	case xbf.KindU8:
		u, _ := p.AsUint()
		return uint8(u)
	case xbf.KindU16:
		u, _ := p.AsUint()
		return uint16(u)
	case xbf.KindU32:
		u, _ := p.AsUint()
		return uint32(u)
	case xbf.KindU64:
		u, _ := p.AsUint()
		return u
	case xbf.KindI8:
		i, _ := p.AsInt()
		return int8(i)
	case xbf.KindI16:
		i, _ := p.AsInt()
		return int16(i)
	case xbf.KindI32:
		i, _ := p.AsInt()
		return int32(i)
	case xbf.KindI64:
		i, _ := p.AsInt()
		return i
	case xbf.KindF32:
		f, _ := p.AsFloat()
		return float32(f)
	case xbf.KindF64:
		f, _ := p.AsFloat()
		return f
	case xbf.KindString:
		s, _ := p.AsString()
		return s
	case xbf.KindU128, xbf.KindU256, xbf.KindI128, xbf.KindI256:
		// Primitive.String renders wide integers in decimal.
		return p.String()
	}
	return nil
}

// FromNative builds a value of shape meta from plain Go data, such as the
// result of unmarshaling YAML, JSON or CBOR into an any. Every record field
// must be present and unknown keys are rejected.
func FromNative(meta xbf.Metadata, x any) (xbf.Value, error) {
	return fromNative(meta, x, "")
}

func at(path string) string {
	if path == "" {
		return "value"
	}
	return path
}

func fromNative(meta xbf.Metadata, x any, path string) (xbf.Value, error) {
	switch m := meta.(type) {
	case nil:
		return nil, fmt.Errorf("bridge: %s: %w", at(path), xbf.ErrNil)
	case xbf.PrimitiveKind:
		p, err := primitiveFromNative(m, x)
		if err != nil {
			return nil, fmt.Errorf("bridge: %s: %w", at(path), err)
		}
		return p, nil
	case xbf.VectorMetadata:
		// A YAML "tags:" with no value reads as nil, an empty vector.
		items, ok := x.([]any)
		if !ok && x != nil {
			return nil, fmt.Errorf("bridge: %s: cannot use %T as %s", at(path), x, m)
		}
		elems := make([]xbf.Value, len(items))
		for i, item := range items {
			e, err := fromNative(m.Elem(), item, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			elems[i] = e
		}
		v, err := xbf.NewVector(m, elems...)
		if err != nil {
			return nil, fmt.Errorf("bridge: %s: %w", at(path), err)
		}
		return v, nil
	case xbf.RecordMetadata:
		return recordFromNative(m, x, path)
	}
	return nil, fmt.Errorf("bridge: %s: unsupported metadata %T", at(path), meta)
}

func recordFromNative(m xbf.RecordMetadata, x any, path string) (xbf.Value, error) {
	var fields map[string]any
	switch x := x.(type) {
	case map[string]any:
		fields = x
	case Object:
		fields = x.Map()
	case map[any]any:
		fields = make(map[string]any, len(x))
		for k, v := range x {
			ks, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("bridge: %s: non-string key %v", at(path), k)
			}
			fields[ks] = v
		}
	default:
		return nil, fmt.Errorf("bridge: %s: cannot use %T as %s", at(path), x, m)
	}
	if path == "" {
		path = m.Name()
	}

	values := make([]xbf.Value, m.NumFields())
	for i := range values {
		f := m.Field(i)
		raw, ok := fields[f.Name]
		if !ok {
			return nil, fmt.Errorf("bridge: %s: missing field %q", path, f.Name)
		}
		v, err := fromNative(f.Metadata, raw, path+"."+f.Name)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	for name := range fields {
		if _, ok := m.FieldIndex(name); !ok {
			return nil, fmt.Errorf("bridge: %s: unknown field %q", path, name)
		}
	}
	rec, err := xbf.NewRecord(m, values...)
	if err != nil {
		return nil, fmt.Errorf("bridge: %s: %w", path, err)
	}
	return rec, nil
}

func primitiveFromNative(k xbf.PrimitiveKind, x any) (xbf.Primitive, error) {
	switch k {
	case xbf.KindBool:
		b, ok := x.(bool)
		if !ok {
			return xbf.Primitive{}, fmt.Errorf("cannot use %T as bool", x)
		}
		return xbf.Bool(b), nil
	case xbf.KindString:
		s, ok := x.(string)
		if !ok {
			return xbf.Primitive{}, fmt.Errorf("cannot use %T as string", x)
		}
		return xbf.String(s), nil
	case xbf.KindF32, xbf.KindF64:
		f, err := toFloat(x)
		if err != nil {
			return xbf.Primitive{}, err
		}
		if k == xbf.KindF32 {
			if !math.IsInf(f, 0) && !math.IsNaN(f) && math.Abs(f) > math.MaxFloat32 {
				return xbf.Primitive{}, fmt.Errorf("%v overflows f32", f)
			}
			return xbf.F32(float32(f)), nil
		}
		return xbf.F64(f), nil
	}

	n, err := toBig(x)
	if err != nil {
		return xbf.Primitive{}, fmt.Errorf("%w for %s", err, k)
	}
	return integerOf(k, n)
}

func integerOf(k xbf.PrimitiveKind, n *big.Int) (xbf.Primitive, error) {
	fitsUint := func(bits int) bool { return n.Sign() >= 0 && n.BitLen() <= bits }
	fitsInt := func(bits int) bool {
		if !n.IsInt64() {
			return false
		}
		i := n.Int64()
		return i >= -1<<(bits-1) && i <= 1<<(bits-1)-1
	}
	switch k {
	case xbf.KindU8:
		if fitsUint(8) {
			return xbf.U8(uint8(n.Uint64())), nil
		}
	case xbf.KindU16:
		if fitsUint(16) {
			return xbf.U16(uint16(n.Uint64())), nil
		}
	case xbf.KindU32:
		if fitsUint(32) {
			return xbf.U32(uint32(n.Uint64())), nil
		}
	case xbf.KindU64:
		if fitsUint(64) {
			return xbf.U64(n.Uint64()), nil
		}
	case xbf.KindI8:
		if fitsInt(8) {
			return xbf.I8(int8(n.Int64())), nil
		}
	case xbf.KindI16:
		if fitsInt(16) {
			return xbf.I16(int16(n.Int64())), nil
		}
	case xbf.KindI32:
		if fitsInt(32) {
			return xbf.I32(int32(n.Int64())), nil
		}
	case xbf.KindI64:
		if n.IsInt64() {
			return xbf.I64(n.Int64()), nil
		}
	case xbf.KindU128:
		if v, ok := xbf.U128FromBig(n); ok {
			return xbf.U128Of(v), nil
		}
	case xbf.KindI128:
		if v, ok := xbf.I128FromBig(n); ok {
			return xbf.I128Of(v), nil
		}
	case xbf.KindU256:
		if v, ok := xbf.U256FromBig(n); ok {
			return xbf.U256Of(v), nil
		}
	case xbf.KindI256:
		if v, ok := xbf.I256FromBig(n); ok {
			return xbf.I256Of(v), nil
		}
	default:
		return xbf.Primitive{}, fmt.Errorf("unknown kind %s", k)
	}
	return xbf.Primitive{}, fmt.Errorf("%s overflows %s", n, k)
}

// toBig accepts every integer form the YAML, JSON and CBOR decoders
// produce, plus decimal strings for values wider than 64 bits.
func toBig(x any) (*big.Int, error) {
	switch x := x.(type) {
	case int:
		return big.NewInt(int64(x)), nil
	case int8:
		return big.NewInt(int64(x)), nil
	case int16:
		return big.NewInt(int64(x)), nil
	case int32:
		return big.NewInt(int64(x)), nil
	case int64:
		return big.NewInt(x), nil
	case uint:
		return new(big.Int).SetUint64(uint64(x)), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(x)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(x)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(x)), nil
	case uint64:
		return new(big.Int).SetUint64(x), nil
	case *big.Int:
		return new(big.Int).Set(x), nil
	case float64:
		if math.IsInf(x, 0) || math.IsNaN(x) || x != math.Trunc(x) {
			return nil, fmt.Errorf("non-integral number %v", x)
		}
		n, _ := big.NewFloat(x).Int(nil)
		return n, nil
	case json.Number:
		return parseInteger(string(x))
	case string:
		return parseInteger(x)
	}
	return nil, fmt.Errorf("cannot use %T as an integer", x)
}

func parseInteger(s string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", s)
	}
	return n, nil
}

func toFloat(x any) (float64, error) {
	switch x := x.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case json.Number:
		return x.Float64()
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number %q", x)
		}
		return f, nil
	}
	n, err := toBig(x)
	if err != nil {
		return 0, fmt.Errorf("cannot use %T as a float", x)
	}
	f, _ := new(big.Float).SetInt(n).Float64()
	return f, nil
}
