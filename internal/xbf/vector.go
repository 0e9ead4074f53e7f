package xbf

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"goXBF/internal/wire"
)

// VectorMetadata describes a homogeneous sequence whose elements all share
// one shape.
type VectorMetadata struct {
	elem Metadata
}

// NewVectorMetadata returns the metadata for a vector of elem.
func NewVectorMetadata(elem Metadata) VectorMetadata {
	return VectorMetadata{elem: elem}
}

// Elem returns the element metadata.
func (m VectorMetadata) Elem() Metadata { return m.elem }

func (VectorMetadata) Discriminant() byte { return VecDiscriminant }

// EncodeMetadata writes the vector discriminant followed by the element
// metadata.
func (m VectorMetadata) EncodeMetadata(w io.Writer) error {
	if m.elem == nil {
		return fmt.Errorf("xbf: encode vector metadata: element: %w", ErrNil)
	}
	if err := wire.WriteU8(w, VecDiscriminant); err != nil {
		return fmt.Errorf("xbf: encode vector metadata: %w", err)
	}
	return m.elem.EncodeMetadata(w)
}

func (m VectorMetadata) Equal(other Metadata) bool {
	o, ok := other.(VectorMetadata)
	return ok && MetadataEqual(m.elem, o.elem)
}

func (m VectorMetadata) String() string {
	return "vec<" + describe(m.elem) + ">"
}

func (VectorMetadata) sealedMetadata() {}

// DecodeVectorMetadata reads the body of vector metadata. The discriminant
// must already have been consumed; use DecodeMetadata when the family is not
// known in advance.
func DecodeVectorMetadata(r io.Reader) (VectorMetadata, error) {
	d := NewDecoder(r)
	return d.decodeVectorMetadata()
}

// Vector is an ordered sequence of values of one declared element shape.
type Vector struct {
	meta  VectorMetadata
	elems []Value
}

// NewVector builds a vector, failing with a *MismatchError on the first
// element whose shape differs from the declared element metadata.
func NewVector(meta VectorMetadata, elems ...Value) (Vector, error) {
	for i, e := range elems {
		var actual Metadata
		if e != nil {
			actual = MetadataOf(e)
		}
		if actual == nil || !MetadataEqual(meta.elem, actual) {
			return Vector{}, &MismatchError{Index: i, Expected: meta.elem, Actual: actual}
		}
	}
	return NewVectorUnchecked(meta, elems...), nil
}

// NewVectorUnchecked builds a vector without checking element shapes.
func NewVectorUnchecked(meta VectorMetadata, elems ...Value) Vector {
	return Vector{meta: meta, elems: slices.Clone(elems)}
}

// Metadata returns the vector's declared metadata.
func (v Vector) Metadata() VectorMetadata { return v.meta }

func (v Vector) Len() int { return len(v.elems) }

func (v Vector) At(i int) Value { return v.elems[i] }

// Elems returns a copy of the elements.
func (v Vector) Elems() []Value { return slices.Clone(v.elems) }

// EncodeValue writes each element back to back. No element count is
// written; decoders must learn it from elsewhere.
func (v Vector) EncodeValue(w io.Writer) error {
	for i, e := range v.elems {
		if err := EncodeValue(w, e); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	return nil
}

// DecodeVector reads exactly n elements of meta's element shape. Vectors
// nested inside the elements have no count of their own, so DecodeVector
// only handles element shapes free of vectors; use a Decoder with a length
// source for the general case.
func DecodeVector(meta VectorMetadata, n int, r io.Reader) (Vector, error) {
	return NewDecoder(r).DecodeVector(meta, n)
}

func (v Vector) Equal(other Value) bool {
	o, ok := other.(Vector)
	if !ok || !v.meta.Equal(o.meta) || len(v.elems) != len(o.elems) {
		return false
	}
	for i := range v.elems {
		if !ValueEqual(v.elems[i], o.elems[i]) {
			return false
		}
	}
	return true
}

func (v Vector) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, e := range v.elems {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(describeValue(e))
	}
	b.WriteByte(']')
	return b.String()
}

func (v Vector) metadata() Metadata { return v.meta }

func (Vector) sealedValue() {}
