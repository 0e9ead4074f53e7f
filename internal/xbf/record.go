package xbf

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"goXBF/internal/wire"
)

// Field is one named, typed slot of a record.
type Field struct {
	Name     string
	Metadata Metadata
}

// RecordMetadata describes a named record: an ordered list of fields whose
// order is the wire order. Name and field order both take part in equality.
type RecordMetadata struct {
	name   string
	fields []Field
}

// NewRecordMetadata returns record metadata with a private copy of fields.
func NewRecordMetadata(name string, fields ...Field) RecordMetadata {
	return RecordMetadata{name: name, fields: slices.Clone(fields)}
}

func (m RecordMetadata) Name() string { return m.name }

func (m RecordMetadata) NumFields() int { return len(m.fields) }

func (m RecordMetadata) Field(i int) Field { return m.fields[i] }

// Fields returns a copy of the field list.
func (m RecordMetadata) Fields() []Field { return slices.Clone(m.fields) }

// FieldIndex returns the position of the first field called name.
func (m RecordMetadata) FieldIndex(name string) (int, bool) {
	for i, f := range m.fields {
		if f.Name == name {
			return i, true
		}
	}
	return -1, false
}

func (RecordMetadata) Discriminant() byte { return RecordDiscriminant }

// EncodeMetadata writes the record discriminant, the name, a 16-bit field
// count and then each field's name and metadata in declared order.
func (m RecordMetadata) EncodeMetadata(w io.Writer) error {
	if len(m.fields) > 0xFFFF {
		return fmt.Errorf("xbf: encode record %q metadata: %w", m.name, ErrTooManyFields)
	}
	if err := wire.WriteU8(w, RecordDiscriminant); err != nil {
		return fmt.Errorf("xbf: encode record %q metadata: %w", m.name, err)
	}
	if err := wire.WriteString(w, m.name); err != nil {
		return fmt.Errorf("xbf: encode record %q metadata: name: %w", m.name, err)
	}
	if err := wire.WriteU16(w, uint16(len(m.fields))); err != nil {
		return fmt.Errorf("xbf: encode record %q metadata: %w", m.name, err)
	}
	for _, f := range m.fields {
		if err := wire.WriteString(w, f.Name); err != nil {
			return fmt.Errorf("xbf: encode record %q metadata: field name: %w", m.name, err)
		}
		if f.Metadata == nil {
			return fmt.Errorf("xbf: encode record %q metadata: field %q: %w", m.name, f.Name, ErrNil)
		}
		if err := f.Metadata.EncodeMetadata(w); err != nil {
			return fmt.Errorf("field %q: %w", f.Name, err)
		}
	}
	return nil
}

func (m RecordMetadata) Equal(other Metadata) bool {
	o, ok := other.(RecordMetadata)
	if !ok || m.name != o.name || len(m.fields) != len(o.fields) {
		return false
	}
	for i := range m.fields {
		if m.fields[i].Name != o.fields[i].Name || !MetadataEqual(m.fields[i].Metadata, o.fields[i].Metadata) {
			return false
		}
	}
	return true
}

func (m RecordMetadata) String() string {
	var b strings.Builder
	b.WriteString("struct ")
	b.WriteString(m.name)
	b.WriteString(" {")
	for i, f := range m.fields {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, " %s: %s", f.Name, describe(f.Metadata))
	}
	b.WriteString(" }")
	return b.String()
}

func (RecordMetadata) sealedMetadata() {}

// DecodeRecordMetadata reads the body of record metadata. The discriminant
// must already have been consumed; use DecodeMetadata when the family is not
// known in advance.
func DecodeRecordMetadata(r io.Reader) (RecordMetadata, error) {
	d := NewDecoder(r)
	return d.decodeRecordMetadata()
}

// Record is a value of a RecordMetadata: one value per declared field, in
// field order.
type Record struct {
	meta   RecordMetadata
	values []Value
}

// NewRecord builds a record after checking each value against the declared
// field at the same position. It fails with a *MismatchError on the first
// disagreement, including a value list shorter or longer than the fields.
func NewRecord(meta RecordMetadata, values ...Value) (Record, error) {
	for i, f := range meta.fields {
		if i >= len(values) || values[i] == nil {
			return Record{}, &MismatchError{Field: f.Name, Index: i, Expected: f.Metadata}
		}
		actual := MetadataOf(values[i])
		if !MetadataEqual(f.Metadata, actual) {
			return Record{}, &MismatchError{Field: f.Name, Index: i, Expected: f.Metadata, Actual: actual}
		}
	}
	if len(values) > len(meta.fields) {
		i := len(meta.fields)
		return Record{}, &MismatchError{Index: i, Actual: MetadataOf(values[i])}
	}
	return NewRecordUnchecked(meta, values...), nil
}

// NewRecordUnchecked builds a record trusting that values line up with the
// metadata. Decoders use it since they produce values from the metadata
// itself.
func NewRecordUnchecked(meta RecordMetadata, values ...Value) Record {
	return Record{meta: meta, values: slices.Clone(values)}
}

// Metadata returns the record's declared metadata.
func (r Record) Metadata() RecordMetadata { return r.meta }

func (r Record) Name() string { return r.meta.name }

func (r Record) Len() int { return len(r.values) }

func (r Record) Value(i int) Value { return r.values[i] }

// Values returns a copy of the field values.
func (r Record) Values() []Value { return slices.Clone(r.values) }

// Get returns the value of the field called name.
func (r Record) Get(name string) (Value, bool) {
	i, ok := r.meta.FieldIndex(name)
	if !ok || i >= len(r.values) {
		return nil, false
	}
	return r.values[i], true
}

// EncodeValue writes each field value in declared order with no framing.
// The metadata is not written.
func (r Record) EncodeValue(w io.Writer) error {
	for i, v := range r.values {
		if err := EncodeValue(w, v); err != nil {
			name := ""
			if i < len(r.meta.fields) {
				name = r.meta.fields[i].Name
			}
			return fmt.Errorf("field %q: %w", name, err)
		}
	}
	return nil
}

// DecodeRecord reads one value for each field of meta. Records with vector
// fields need a Decoder with a length source.
func DecodeRecord(meta RecordMetadata, r io.Reader) (Record, error) {
	return NewDecoder(r).DecodeRecord(meta)
}

func (r Record) Equal(other Value) bool {
	o, ok := other.(Record)
	if !ok || !r.meta.Equal(o.meta) || len(r.values) != len(o.values) {
		return false
	}
	for i := range r.values {
		if !ValueEqual(r.values[i], o.values[i]) {
			return false
		}
	}
	return true
}

func (r Record) String() string {
	var b strings.Builder
	b.WriteString(r.meta.name)
	b.WriteString(" {")
	for i, v := range r.values {
		if i > 0 {
			b.WriteByte(',')
		}
		name := "?"
		if i < len(r.meta.fields) {
			name = r.meta.fields[i].Name
		}
		fmt.Fprintf(&b, " %s: %s", name, describeValue(v))
	}
	b.WriteString(" }")
	return b.String()
}

func (r Record) metadata() Metadata { return r.meta }

func (Record) sealedValue() {}
