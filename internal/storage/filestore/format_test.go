package filestore

import (
	"bytes"
	"errors"
	"testing"

	"goXBF/internal/schemaid"
	"goXBF/internal/storage/storagetest"
	"goXBF/internal/xbf"
)

func TestHeader_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	written, err := writeHeader(&buf, storagetest.UsersSchema())
	if err != nil {
		t.Fatalf("writeHeader failed: %v", err)
	}
	if written.size != int64(buf.Len()) {
		t.Fatalf("header size %d, wrote %d bytes", written.size, buf.Len())
	}
	want, err := schemaid.Of(storagetest.UsersSchema())
	if err != nil {
		t.Fatalf("schemaid.Of failed: %v", err)
	}
	if written.id != want {
		t.Fatalf("header fingerprint %s, want %s", written.id, want)
	}

	// Trailing page bytes must not be consumed.
	buf.WriteString("PAGEDATA")
	r := bytes.NewReader(buf.Bytes())
	read, err := readHeader(r)
	if err != nil {
		t.Fatalf("readHeader failed: %v", err)
	}
	if read.size != written.size || read.id != written.id || !read.schema.Equal(written.schema) {
		t.Fatalf("readHeader = %+v, want %+v", read, written)
	}
	if r.Len() != len("PAGEDATA") {
		t.Fatalf("readHeader consumed page bytes, %d left", r.Len())
	}
}

func TestHeader_Errors(t *testing.T) {
	var buf bytes.Buffer
	if _, err := writeHeader(&buf, storagetest.UsersSchema()); err != nil {
		t.Fatalf("writeHeader failed: %v", err)
	}
	good := buf.Bytes()

	badMagic := bytes.Clone(good)
	copy(badMagic, "ABCD1")
	if _, err := readHeader(bytes.NewReader(badMagic)); !errors.Is(err, errBadMagic) {
		t.Fatalf("expected errBadMagic, got %v", err)
	}

	badSum := bytes.Clone(good)
	badSum[len(fileMagic)] ^= 1
	if _, err := readHeader(bytes.NewReader(badSum)); !errors.Is(err, errSchemaChecksum) {
		t.Fatalf("expected errSchemaChecksum, got %v", err)
	}

	if _, err := readHeader(bytes.NewReader(good[:len(good)-1])); err == nil {
		t.Fatalf("expected error for truncated header")
	}

	// A header holding valid metadata that is not a record.
	blob, err := xbf.MarshalMetadata(xbf.KindU8)
	if err != nil {
		t.Fatal(err)
	}
	id := schemaid.Sum(blob)
	var prim bytes.Buffer
	prim.WriteString(fileMagic)
	prim.Write(id[:])
	prim.Write([]byte{byte(len(blob)), 0, 0, 0})
	prim.Write(blob)
	if _, err := readHeader(&prim); err == nil {
		t.Fatalf("expected error for non-record schema")
	}
}

func TestFrame_RoundTrip(t *testing.T) {
	elem := xbf.NewVectorMetadata(xbf.KindU8)
	schema := xbf.NewRecordMetadata("grid",
		xbf.Field{Name: "name", Metadata: xbf.KindString},
		xbf.Field{Name: "rows", Metadata: xbf.NewVectorMetadata(elem)},
	)
	mk := func(bs ...byte) xbf.Vector {
		vals := make([]xbf.Value, len(bs))
		for i, b := range bs {
			vals[i] = xbf.U8(b)
		}
		v, err := xbf.NewVector(elem, vals...)
		if err != nil {
			t.Fatal(err)
		}
		return v
	}
	rows, err := xbf.NewVector(schema.Field(1).Metadata.(xbf.VectorMetadata), mk(1, 2, 3), mk(), mk(9))
	if err != nil {
		t.Fatal(err)
	}
	row, err := xbf.NewRecord(schema, xbf.String("g"), rows)
	if err != nil {
		t.Fatal(err)
	}

	frame := mustFrame(t, row)
	// 3 lengths are stored for the outer vector, and 3 inner ones: 4 counts.
	if frame[0] != 4 || frame[1] != 0 {
		t.Fatalf("expected 4 stored lengths, frame starts %v", frame[:2])
	}

	got, err := decodeFrame(frame, schema, xbf.DefaultMaxDepth)
	if err != nil {
		t.Fatalf("decodeFrame failed: %v", err)
	}
	if !got.Equal(row) {
		t.Fatalf("decodeFrame = %v, want %v", got, row)
	}

	if _, err := decodeFrame(append(bytes.Clone(frame), 0), schema, xbf.DefaultMaxDepth); err == nil {
		t.Fatalf("expected trailing bytes error")
	}
	if _, err := decodeFrame(frame[:len(frame)-1], schema, xbf.DefaultMaxDepth); err == nil {
		t.Fatalf("expected error for truncated frame")
	}
	if _, err := decodeFrame([]byte{0xFF, 0xFF, 1}, schema, xbf.DefaultMaxDepth); err == nil {
		t.Fatalf("expected error for impossible length count")
	}
	if _, err := decodeFrame(frame, schema, 1); !errors.Is(err, xbf.ErrMaxDepth) {
		t.Fatalf("expected ErrMaxDepth with depth limit 1, got %v", err)
	}
}
