package xbf

import (
	"bytes"
	"fmt"
	"io"
)

// Metadata describes the shape of a value: a PrimitiveKind, a
// VectorMetadata or a RecordMetadata. The set is closed.
//
// Metadata is immutable once built and may be shared freely between values
// and goroutines.
type Metadata interface {
	// Discriminant is the tag byte that starts the encoded metadata.
	Discriminant() byte

	// EncodeMetadata writes the discriminant followed by the family's body.
	EncodeMetadata(w io.Writer) error

	// Equal reports structural equality.
	Equal(other Metadata) bool

	String() string

	sealedMetadata()
}

var (
	_ Metadata = PrimitiveKind(0)
	_ Metadata = VectorMetadata{}
	_ Metadata = RecordMetadata{}
)

// MetadataEqual reports whether a and b describe the same shape. Two nil
// metadata are equal.
func MetadataEqual(a, b Metadata) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(b)
}

// AsMetadata lifts any concrete metadata into the unified form.
func AsMetadata[M Metadata](m M) Metadata {
	return m
}

// EncodeMetadata writes m to w.
func EncodeMetadata(w io.Writer, m Metadata) error {
	if m == nil {
		return fmt.Errorf("xbf: encode metadata: %w", ErrNil)
	}
	return m.EncodeMetadata(w)
}

// MarshalMetadata returns the encoded form of m.
func MarshalMetadata(m Metadata) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeMetadata(&buf, m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeMetadata reads one metadata blob of any family from r using the
// default decoder limits.
func DecodeMetadata(r io.Reader) (Metadata, error) {
	return NewDecoder(r).DecodeMetadata()
}

// UnmarshalMetadata decodes a metadata blob and fails if bytes remain.
func UnmarshalMetadata(data []byte) (Metadata, error) {
	r := bytes.NewReader(data)
	m, err := DecodeMetadata(r)
	if err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("xbf: %d trailing bytes after metadata", r.Len())
	}
	return m, nil
}
