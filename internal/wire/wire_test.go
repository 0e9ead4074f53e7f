package wire

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/go-quicktest/qt"
)

func TestFixedWidthLittleEndian(t *testing.T) {
	var buf bytes.Buffer
	qt.Assert(t, qt.IsNil(WriteU8(&buf, 0xAB)))
	qt.Assert(t, qt.IsNil(WriteU16(&buf, 0x0102)))
	qt.Assert(t, qt.IsNil(WriteU32(&buf, 0x01020304)))
	qt.Assert(t, qt.IsNil(WriteU64(&buf, 0x0102030405060708)))

	want := []byte{
		0xAB,
		0x02, 0x01,
		0x04, 0x03, 0x02, 0x01,
		0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01,
	}
	qt.Assert(t, qt.DeepEquals(buf.Bytes(), want))

	r := bytes.NewReader(buf.Bytes())
	u8, err := ReadU8(r)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(u8, uint8(0xAB)))
	u16, err := ReadU16(r)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(u16, uint16(0x0102)))
	u32, err := ReadU32(r)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(u32, uint32(0x01020304)))
	u64, err := ReadU64(r)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(u64, uint64(0x0102030405060708)))
	qt.Assert(t, qt.Equals(r.Len(), 0))
}

func TestFloats(t *testing.T) {
	var buf bytes.Buffer
	qt.Assert(t, qt.IsNil(WriteF32(&buf, 1.5)))
	qt.Assert(t, qt.IsNil(WriteF64(&buf, -2.25)))
	qt.Assert(t, qt.Equals(buf.Len(), 12))

	f32, err := ReadF32(&buf)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(f32, float32(1.5)))
	f64, err := ReadF64(&buf)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(f64, -2.25))
}

func TestLimbs(t *testing.T) {
	var buf bytes.Buffer
	qt.Assert(t, qt.IsNil(WriteLimbs(&buf, []uint64{1, 2, 3, 4})))
	qt.Assert(t, qt.Equals(buf.Len(), 32))
	qt.Assert(t, qt.Equals(buf.Bytes()[0], byte(1)))
	qt.Assert(t, qt.Equals(buf.Bytes()[8], byte(2)))

	got := make([]uint64, 4)
	qt.Assert(t, qt.IsNil(ReadLimbs(&buf, got)))
	qt.Assert(t, qt.DeepEquals(got, []uint64{1, 2, 3, 4}))
}

func TestString(t *testing.T) {
	var buf bytes.Buffer
	qt.Assert(t, qt.IsNil(WriteString(&buf, "hello world")))
	qt.Assert(t, qt.DeepEquals(buf.Bytes()[:2], []byte{11, 0}))

	s, err := ReadString(&buf)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(s, "hello world"))
}

func TestStringTooLong(t *testing.T) {
	var buf bytes.Buffer
	err := WriteString(&buf, strings.Repeat("x", MaxStringLen+1))
	qt.Assert(t, qt.ErrorIs(err, ErrStringTooLong))
	qt.Assert(t, qt.Equals(buf.Len(), 0))

	qt.Assert(t, qt.IsNil(WriteString(&buf, strings.Repeat("x", MaxStringLen))))
}

func TestStringInvalidUTF8(t *testing.T) {
	_, err := ReadString(bytes.NewReader([]byte{2, 0, 0xff, 0xfe}))
	qt.Assert(t, qt.ErrorIs(err, ErrInvalidText))
}

func TestShortReads(t *testing.T) {
	_, err := ReadU32(bytes.NewReader(nil))
	qt.Assert(t, qt.ErrorIs(err, io.EOF))

	_, err = ReadU32(bytes.NewReader([]byte{1, 2}))
	qt.Assert(t, qt.ErrorIs(err, io.ErrUnexpectedEOF))

	_, err = ReadString(bytes.NewReader([]byte{5, 0}))
	qt.Assert(t, qt.ErrorIs(err, io.ErrUnexpectedEOF))
}
