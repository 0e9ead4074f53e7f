// Package xbf implements a self-describing binary encoding for structured
// data.
//
// Every value has metadata that fully describes its shape: a primitive
// kind, a vector of some element shape, or a named record of typed fields.
// Metadata can be encoded on its own and decoded without any shared schema;
// values are encoded without framing and always decode against known
// metadata.
//
// Wire layout, little-endian throughout:
//
//	primitive metadata   1 byte kind discriminant (0..15)
//	vector metadata      1 byte VecDiscriminant, element metadata
//	record metadata      1 byte RecordDiscriminant, name, u16 field count,
//	                     per field: name, field metadata
//	text                 u16 byte length, raw UTF-8 bytes
//	record/vector value  field or element values back to back
//	128-bit integer      16 raw bytes
//	256-bit integer      4 x u64 limbs, ascending significance
//
// Vector values carry no element count; see Decoder.
package xbf
