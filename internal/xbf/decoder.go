package xbf

import (
	"errors"
	"fmt"
	"io"
	"slices"

	"goXBF/internal/wire"
)

// DefaultMaxDepth bounds how deeply vectors and records may nest while
// decoding. Every level of vector metadata costs one input byte, so without
// a bound a short hostile input could exhaust the stack.
const DefaultMaxDepth = 64

// LengthFunc supplies the element count of a vector met while decoding a
// value. path locates the vector, e.g. "order.lines[2].tags".
type LengthFunc func(path string, meta VectorMetadata) (int, error)

// Decoder reads metadata and values from a byte stream.
//
// Vector values carry no element count on the wire. A Decoder learns counts
// for vectors nested inside a value from WithVectorLengths or
// WithLengthFunc; without either, decoding such a value fails with
// ErrVectorLength.
//
// A Decoder is not safe for concurrent use. On error the stream position is
// undefined and the Decoder should be discarded.
type Decoder struct {
	r        io.Reader
	maxDepth int
	depth    int
	lengthFn LengthFunc
	counts   []int
}

type DecoderOption func(*Decoder)

// WithMaxDepth sets the nesting limit. n <= 0 removes the limit.
func WithMaxDepth(n int) DecoderOption {
	return func(d *Decoder) { d.maxDepth = n }
}

// WithVectorLengths queues element counts, consumed in the order
// VectorLengths produces them.
func WithVectorLengths(counts ...int) DecoderOption {
	return func(d *Decoder) { d.counts = slices.Clone(counts) }
}

// WithLengthFunc asks fn for each vector's element count. It takes
// precedence over WithVectorLengths.
func WithLengthFunc(fn LengthFunc) DecoderOption {
	return func(d *Decoder) { d.lengthFn = fn }
}

func NewDecoder(r io.Reader, opts ...DecoderOption) *Decoder {
	d := &Decoder{r: r, maxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Decoder) enter(what string) error {
	if d.maxDepth > 0 && d.depth+1 > d.maxDepth {
		return formatErrorf(ErrMaxDepth, "decode %s: nesting deeper than %d", what, d.maxDepth)
	}
	d.depth++
	return nil
}

func (d *Decoder) leave() { d.depth-- }

// ioErr marks a clean EOF as a truncation once decoding is inside a
// composite, since bytes of the enclosing item were already consumed.
func (d *Decoder) ioErr(err error) error {
	if d.depth > 0 && errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

func (d *Decoder) readText(what string) (string, error) {
	s, err := wire.ReadString(d.r)
	if err != nil {
		if errors.Is(err, wire.ErrInvalidText) {
			return "", formatErrorf(ErrInvalidText, "decode %s: string is not valid UTF-8", what)
		}
		return "", fmt.Errorf("xbf: decode %s: %w", what, d.ioErr(err))
	}
	return s, nil
}

// DecodeMetadata reads one discriminant byte and the body of whichever
// family it selects.
func (d *Decoder) DecodeMetadata() (Metadata, error) {
	tag, err := wire.ReadU8(d.r)
	if err != nil {
		return nil, fmt.Errorf("xbf: decode metadata: %w", d.ioErr(err))
	}
	switch {
	case int(tag) < NumPrimitiveKinds:
		return PrimitiveKind(tag), nil
	case tag == VecDiscriminant:
		m, err := d.decodeVectorMetadata()
		if err != nil {
			return nil, err
		}
		return m, nil
	case tag == RecordDiscriminant:
		m, err := d.decodeRecordMetadata()
		if err != nil {
			return nil, err
		}
		return m, nil
	}
	return nil, formatErrorf(ErrUnknownDiscriminant, "decode metadata: unrecognized discriminant %d", tag)
}

func (d *Decoder) decodeVectorMetadata() (VectorMetadata, error) {
	if err := d.enter("vector metadata"); err != nil {
		return VectorMetadata{}, err
	}
	defer d.leave()

	elem, err := d.DecodeMetadata()
	if err != nil {
		return VectorMetadata{}, err
	}
	return VectorMetadata{elem: elem}, nil
}

func (d *Decoder) decodeRecordMetadata() (RecordMetadata, error) {
	if err := d.enter("record metadata"); err != nil {
		return RecordMetadata{}, err
	}
	defer d.leave()

	name, err := d.readText("record name")
	if err != nil {
		return RecordMetadata{}, err
	}
	n, err := wire.ReadU16(d.r)
	if err != nil {
		return RecordMetadata{}, fmt.Errorf("xbf: decode record %q field count: %w", name, d.ioErr(err))
	}
	fields := make([]Field, 0, n)
	for i := 0; i < int(n); i++ {
		fieldName, err := d.readText("field name")
		if err != nil {
			return RecordMetadata{}, fmt.Errorf("record %q: %w", name, err)
		}
		m, err := d.DecodeMetadata()
		if err != nil {
			return RecordMetadata{}, fmt.Errorf("record %q field %q: %w", name, fieldName, err)
		}
		fields = append(fields, Field{Name: fieldName, Metadata: m})
	}
	return RecordMetadata{name: name, fields: fields}, nil
}

// DecodePrimitive reads one primitive of the given kind.
func (d *Decoder) DecodePrimitive(kind PrimitiveKind) (Primitive, error) {
	p, err := readPrimitive(kind, d.r)
	if err != nil {
		var fe *FormatError
		switch {
		case errors.As(err, &fe):
			return Primitive{}, err
		case errors.Is(err, wire.ErrInvalidText):
			return Primitive{}, formatErrorf(ErrInvalidText, "decode %s: string is not valid UTF-8", kind)
		}
		return Primitive{}, fmt.Errorf("xbf: decode %s: %w", kind, d.ioErr(err))
	}
	return p, nil
}

// DecodeValue reads a value of shape m. If m is a vector its own element
// count is taken from the decoder's length source.
func (d *Decoder) DecodeValue(m Metadata) (Value, error) {
	path := ""
	if rm, ok := m.(RecordMetadata); ok {
		path = rm.name
	}
	return d.decodeValue(m, path)
}

func (d *Decoder) decodeValue(m Metadata, path string) (Value, error) {
	switch m := m.(type) {
	case nil:
		return nil, fmt.Errorf("xbf: decode value: %w", ErrNil)
	case PrimitiveKind:
		p, err := d.DecodePrimitive(m)
		if err != nil {
			return nil, err
		}
		return p, nil
	case VectorMetadata:
		n, err := d.nextLength(path, m)
		if err != nil {
			return nil, err
		}
		v, err := d.decodeVector(m, n, path)
		if err != nil {
			return nil, err
		}
		return v, nil
	case RecordMetadata:
		rec, err := d.decodeRecord(m, path)
		if err != nil {
			return nil, err
		}
		return rec, nil
	}
	return nil, fmt.Errorf("xbf: decode value: unsupported metadata %T", m)
}

func (d *Decoder) nextLength(path string, m VectorMetadata) (int, error) {
	where := path
	if where == "" {
		where = m.String()
	}
	var n int
	switch {
	case d.lengthFn != nil:
		var err error
		if n, err = d.lengthFn(path, m); err != nil {
			return 0, fmt.Errorf("xbf: vector %s: %w", where, err)
		}
	case len(d.counts) > 0:
		n, d.counts = d.counts[0], d.counts[1:]
	default:
		return 0, fmt.Errorf("xbf: vector %s: %w", where, ErrVectorLength)
	}
	if n < 0 {
		return 0, fmt.Errorf("xbf: vector %s: negative element count %d", where, n)
	}
	return n, nil
}

// DecodeVector reads exactly n elements of meta's element shape.
func (d *Decoder) DecodeVector(meta VectorMetadata, n int) (Vector, error) {
	if n < 0 {
		return Vector{}, fmt.Errorf("xbf: decode vector: negative element count %d", n)
	}
	return d.decodeVector(meta, n, "")
}

func (d *Decoder) decodeVector(meta VectorMetadata, n int, path string) (Vector, error) {
	if meta.elem == nil {
		return Vector{}, fmt.Errorf("xbf: decode vector: element: %w", ErrNil)
	}
	if err := d.enter("vector"); err != nil {
		return Vector{}, err
	}
	defer d.leave()

	// n may come from untrusted input; let append grow past this.
	elems := make([]Value, 0, min(n, 1024))
	for i := 0; i < n; i++ {
		e, err := d.decodeValue(meta.elem, fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return Vector{}, fmt.Errorf("element %d: %w", i, err)
		}
		elems = append(elems, e)
	}
	return Vector{meta: meta, elems: elems}, nil
}

// DecodeRecord reads one value for each field of meta, in field order.
func (d *Decoder) DecodeRecord(meta RecordMetadata) (Record, error) {
	return d.decodeRecord(meta, meta.name)
}

func (d *Decoder) decodeRecord(meta RecordMetadata, path string) (Record, error) {
	if err := d.enter("record"); err != nil {
		return Record{}, err
	}
	defer d.leave()

	values := make([]Value, 0, len(meta.fields))
	for _, f := range meta.fields {
		v, err := d.decodeValue(f.Metadata, path+"."+f.Name)
		if err != nil {
			return Record{}, fmt.Errorf("field %q: %w", f.Name, err)
		}
		values = append(values, v)
	}
	return Record{meta: meta, values: values}, nil
}
