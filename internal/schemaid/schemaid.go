// Package schemaid derives stable fingerprints for XBF metadata.
//
// A fingerprint is the BLAKE3 keyed hash of the encoded metadata. Two
// schemas have the same fingerprint exactly when they encode to the same
// bytes, which for XBF means they are structurally equal.
package schemaid

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"

	"goXBF/internal/xbf"
)

// Size is the length of an ID in bytes.
const Size = 32

// ID is a schema fingerprint.
type ID [Size]byte

// domainKey keeps schema fingerprints distinct from any other BLAKE3 use of
// the same bytes. Changing it invalidates every stored fingerprint.
var domainKey = [32]byte{
	'x', 'b', 'f', '.', 's', 'c', 'h', 'e', 'm', 'a', '.', 'v', '1',
}

// Of fingerprints m.
func Of(m xbf.Metadata) (ID, error) {
	data, err := xbf.MarshalMetadata(m)
	if err != nil {
		return ID{}, fmt.Errorf("schemaid: %w", err)
	}
	return Sum(data), nil
}

// Sum fingerprints an already encoded metadata blob.
func Sum(encoded []byte) ID {
	hasher, err := blake3.NewKeyed(domainKey[:])
	if err != nil {
		panic("schemaid: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(encoded)
	var id ID
	copy(id[:], hasher.Sum(nil))
	return id
}

func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// Short returns the first 12 hex digits, for display.
func (id ID) Short() string {
	return id.String()[:12]
}

func (id ID) IsZero() bool {
	return id == ID{}
}

// MarshalText implements encoding.TextMarshaler.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Parse reads the hex form produced by String.
func Parse(s string) (ID, error) {
	if len(s) != hex.EncodedLen(Size) {
		return ID{}, fmt.Errorf("schemaid: invalid length %d, want %d hex digits", len(s), hex.EncodedLen(Size))
	}
	var id ID
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return ID{}, fmt.Errorf("schemaid: %w", err)
	}
	return id, nil
}
