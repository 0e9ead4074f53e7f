package xbf

import (
	"bytes"
	"fmt"
	"io"
)

// Value is a Primitive, Vector or Record. The set is closed.
type Value interface {
	// EncodeValue writes the value body. Metadata is never written.
	EncodeValue(w io.Writer) error

	// Equal reports deep structural equality of shape and content.
	Equal(other Value) bool

	String() string

	metadata() Metadata
	sealedValue()
}

var (
	_ Value = Primitive{}
	_ Value = Vector{}
	_ Value = Record{}
)

// MetadataOf derives the metadata of v without consuming it. It returns
// nil for a nil value.
func MetadataOf(v Value) Metadata {
	if v == nil {
		return nil
	}
	return v.metadata()
}

// ValueEqual reports whether a and b are structurally equal. Two nil values
// are equal.
func ValueEqual(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(b)
}

// AsValue lifts any concrete value into the unified form.
func AsValue[V Value](v V) Value {
	return v
}

// EncodeValue writes the body of v to w.
func EncodeValue(w io.Writer, v Value) error {
	if v == nil {
		return fmt.Errorf("xbf: encode value: %w", ErrNil)
	}
	return v.EncodeValue(w)
}

// MarshalValue returns the encoded body of v.
func MarshalValue(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeValue(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeValue reads a value of shape m from r using the default decoder.
// There is no way to decode a value without its metadata.
func DecodeValue(m Metadata, r io.Reader) (Value, error) {
	return NewDecoder(r).DecodeValue(m)
}

// VectorLengths lists the element count of every vector inside v in the
// order a Decoder asks for them: depth first, a vector's own count before
// its elements. If v is itself a vector its count comes first.
func VectorLengths(v Value) []int {
	var out []int
	collectLengths(v, &out)
	return out
}

func collectLengths(v Value, out *[]int) {
	switch v := v.(type) {
	case Vector:
		*out = append(*out, len(v.elems))
		for _, e := range v.elems {
			collectLengths(e, out)
		}
	case Record:
		for _, f := range v.values {
			collectLengths(f, out)
		}
	}
}

// ContainsVector reports whether values of shape m include a vector
// anywhere, and therefore need element counts to decode.
func ContainsVector(m Metadata) bool {
	switch m := m.(type) {
	case VectorMetadata:
		return true
	case RecordMetadata:
		for _, f := range m.fields {
			if ContainsVector(f.Metadata) {
				return true
			}
		}
	}
	return false
}

func describeValue(v Value) string {
	if v == nil {
		return "<nil>"
	}
	return v.String()
}
