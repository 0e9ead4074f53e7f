// Package wire holds the fixed-width little-endian read/write helpers the
// XBF codec is built on, plus the 16-bit length-prefixed text encoding.
//
// Every reader helper consumes exactly the bytes its writer counterpart
// produced. Short reads return io.EOF when nothing was read and
// io.ErrUnexpectedEOF when the source ended mid-value.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"unicode/utf8"
)

// MaxStringLen is the longest text the 16-bit length prefix can describe.
const MaxStringLen = 0xFFFF

var (
	// ErrStringTooLong is returned when writing text longer than MaxStringLen bytes.
	ErrStringTooLong = errors.New("wire: string longer than 65535 bytes")

	// ErrInvalidText is returned when a length-prefixed string is not valid UTF-8.
	ErrInvalidText = errors.New("wire: string is not valid UTF-8")
)

func writeFull(w io.Writer, b []byte) error {
	_, err := w.Write(b)
	return err
}

func readFull(r io.Reader, b []byte) error {
	_, err := io.ReadFull(r, b)
	return err
}

func WriteU8(w io.Writer, v uint8) error {
	return writeFull(w, []byte{v})
}

func ReadU8(r io.Reader) (uint8, error) {
	var b [1]byte
	if err := readFull(r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func WriteU16(w io.Writer, v uint16) error {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	return writeFull(w, b[:])
}

func ReadU16(r io.Reader) (uint16, error) {
	var b [2]byte
	if err := readFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b[:]), nil
}

func WriteU32(w io.Writer, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return writeFull(w, b[:])
}

func ReadU32(r io.Reader) (uint32, error) {
	var b [4]byte
	if err := readFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func WriteU64(w io.Writer, v uint64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return writeFull(w, b[:])
}

func ReadU64(r io.Reader) (uint64, error) {
	var b [8]byte
	if err := readFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

func WriteF32(w io.Writer, v float32) error {
	return WriteU32(w, math.Float32bits(v))
}

func ReadF32(r io.Reader) (float32, error) {
	bits, err := ReadU32(r)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(bits), nil
}

func WriteF64(w io.Writer, v float64) error {
	return WriteU64(w, math.Float64bits(v))
}

func ReadF64(r io.Reader) (float64, error) {
	bits, err := ReadU64(r)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(bits), nil
}

// WriteLimbs writes 64-bit limbs in slice order, each little-endian. Callers
// pass limbs in ascending significance, so a 128-bit value written as two
// limbs is byte-identical to its 16-byte little-endian form.
func WriteLimbs(w io.Writer, limbs []uint64) error {
	b := make([]byte, 8*len(limbs))
	for i, l := range limbs {
		binary.LittleEndian.PutUint64(b[8*i:], l)
	}
	return writeFull(w, b)
}

// ReadLimbs fills limbs from 8*len(limbs) bytes of input.
func ReadLimbs(r io.Reader, limbs []uint64) error {
	b := make([]byte, 8*len(limbs))
	if err := readFull(r, b); err != nil {
		return err
	}
	for i := range limbs {
		limbs[i] = binary.LittleEndian.Uint64(b[8*i:])
	}
	return nil
}

// WriteString writes a 16-bit byte length followed by the raw bytes of s.
func WriteString(w io.Writer, s string) error {
	if len(s) > MaxStringLen {
		return fmt.Errorf("%w: %d bytes", ErrStringTooLong, len(s))
	}
	if err := WriteU16(w, uint16(len(s))); err != nil {
		return err
	}
	return writeFull(w, []byte(s))
}

// ReadString reads text written by WriteString.
func ReadString(r io.Reader) (string, error) {
	n, err := ReadU16(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if err := readFull(r, buf); err != nil {
		// The prefix was read, so running dry here is always a truncation.
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return "", err
	}
	if !utf8.Valid(buf) {
		return "", ErrInvalidText
	}
	return string(buf), nil
}
