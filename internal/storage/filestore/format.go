package filestore

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"

	"goXBF/internal/schemaid"
	"goXBF/internal/wire"
	"goXBF/internal/xbf"
)

const (
	fileMagic = "XBFT1" // 5 bytes magic

	// maxSchemaSize bounds the metadata blob read from a table header.
	maxSchemaSize = 1 << 20
)

var (
	errBadMagic       = errors.New("invalid file magic, not an XBF table file")
	errSchemaChecksum = errors.New("schema fingerprint does not match stored metadata")
)

// tableHeader is the decoded prefix of a table file.
type tableHeader struct {
	schema xbf.RecordMetadata
	id     schemaid.ID
	size   int64 // bytes from file start to the first page
}

// writeHeader writes the table schema to the beginning of the file:
//
//	magic:       5 bytes "XBFT1"
//	fingerprint: 32 bytes, schemaid of the metadata blob
//	metaLen:     uint32
//	metadata:    metaLen bytes, XBF record metadata
func writeHeader(w io.Writer, schema xbf.RecordMetadata) (tableHeader, error) {
	blob, err := xbf.MarshalMetadata(schema)
	if err != nil {
		return tableHeader{}, err
	}
	if len(blob) > maxSchemaSize {
		return tableHeader{}, fmt.Errorf("schema of %d bytes exceeds %d", len(blob), maxSchemaSize)
	}
	id := schemaid.Sum(blob)

	var buf bytes.Buffer
	buf.WriteString(fileMagic)
	buf.Write(id[:])
	if err := wire.WriteU32(&buf, uint32(len(blob))); err != nil {
		return tableHeader{}, err
	}
	buf.Write(blob)
	if _, err := w.Write(buf.Bytes()); err != nil {
		return tableHeader{}, err
	}
	return tableHeader{schema: schema, id: id, size: int64(buf.Len())}, nil
}

// readHeader reads the schema from the beginning of the file and leaves
// the file position at the start of the first page.
func readHeader(r io.Reader) (tableHeader, error) {
	magicBuf := make([]byte, len(fileMagic))
	if _, err := io.ReadFull(r, magicBuf); err != nil {
		return tableHeader{}, err
	}
	if string(magicBuf) != fileMagic {
		return tableHeader{}, errBadMagic
	}

	var id schemaid.ID
	if _, err := io.ReadFull(r, id[:]); err != nil {
		return tableHeader{}, err
	}
	n, err := wire.ReadU32(r)
	if err != nil {
		return tableHeader{}, err
	}
	if n > maxSchemaSize {
		return tableHeader{}, fmt.Errorf("schema of %d bytes exceeds %d", n, maxSchemaSize)
	}
	blob := make([]byte, n)
	if _, err := io.ReadFull(r, blob); err != nil {
		return tableHeader{}, err
	}
	if schemaid.Sum(blob) != id {
		return tableHeader{}, errSchemaChecksum
	}

	m, err := xbf.UnmarshalMetadata(blob)
	if err != nil {
		return tableHeader{}, err
	}
	schema, ok := m.(xbf.RecordMetadata)
	if !ok {
		return tableHeader{}, fmt.Errorf("table schema is %s, not a record", m)
	}
	return tableHeader{
		schema: schema,
		id:     id,
		size:   int64(len(fileMagic) + schemaid.Size + 4 + len(blob)),
	}, nil
}

// encodeFrame encodes a row as stored in a page slot or WAL record:
//
//	numLengths: uint16
//	lengths:    numLengths x uint32, vector element counts in decode order
//	body:       XBF value encoding of the record
//
// XBF vector values carry no element count, so the counts travel
// alongside the body.
func encodeFrame(row xbf.Record) ([]byte, error) {
	counts := xbf.VectorLengths(row)
	if len(counts) > math.MaxUint16 {
		return nil, fmt.Errorf("row has %d vectors, at most %d are supported", len(counts), math.MaxUint16)
	}

	var buf bytes.Buffer
	if err := wire.WriteU16(&buf, uint16(len(counts))); err != nil {
		return nil, err
	}
	for _, c := range counts {
		if uint64(c) > math.MaxUint32 {
			return nil, fmt.Errorf("vector of %d elements is too long", c)
		}
		if err := wire.WriteU32(&buf, uint32(c)); err != nil {
			return nil, err
		}
	}
	if err := row.EncodeValue(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeFrame is the inverse of encodeFrame. The whole frame must be
// consumed.
func decodeFrame(frame []byte, schema xbf.RecordMetadata, maxDepth int) (xbf.Record, error) {
	r := bytes.NewReader(frame)
	n, err := wire.ReadU16(r)
	if err != nil {
		return xbf.Record{}, fmt.Errorf("read frame: %w", err)
	}
	if int(n)*4 > r.Len() {
		return xbf.Record{}, fmt.Errorf("read frame: %d vector lengths do not fit in %d bytes", n, r.Len())
	}
	counts := make([]int, n)
	for i := range counts {
		c, err := wire.ReadU32(r)
		if err != nil {
			return xbf.Record{}, fmt.Errorf("read frame: %w", err)
		}
		counts[i] = int(c)
	}

	dec := xbf.NewDecoder(r, xbf.WithVectorLengths(counts...), xbf.WithMaxDepth(maxDepth))
	rec, err := dec.DecodeRecord(schema)
	if err != nil {
		return xbf.Record{}, err
	}
	if r.Len() != 0 {
		return xbf.Record{}, fmt.Errorf("read frame: %d trailing bytes", r.Len())
	}
	return rec, nil
}
