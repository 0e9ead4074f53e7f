package filestore

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"goXBF/internal/schemaid"
	"goXBF/internal/wire"
)

const (
	walMagic    = "XBFWAL01" // 8 bytes
	walFileName = "wal.log"

	walRecBegin      uint8 = 1
	walRecCommit     uint8 = 2
	walRecRollback   uint8 = 3
	walRecInsert     uint8 = 4
	walRecReplaceAll uint8 = 5
)

var errWALClosed = errors.New("wal: closed")

// walLogger is a redo-only write-ahead log:
//
// File layout:
//
//	[magic "XBFWAL01"]
//	[records...]
//
// Each record:
//
//	recType:      uint8
//	txID:         uint64
//
// INSERT and REPLACEALL records continue with:
//
//	table:        uint16 length + UTF-8 name
//	fingerprint:  32 bytes, schemaid of the table schema
//	rowCount:     uint32
//	rows:         rowCount x (uint32 frame length + row frame)
//
// A record is built in memory and appended with a single write.
type walLogger struct {
	mu   sync.Mutex
	f    *os.File
	path string
}

// newWAL opens or creates the WAL file in append mode and ensures the magic
// header.
func newWAL(dir string) (*walLogger, error) {
	path := filepath.Join(dir, walFileName)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("wal: open: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("wal: stat: %w", err)
	}

	if info.Size() == 0 {
		if _, err := f.Write([]byte(walMagic)); err != nil {
			f.Close()
			return nil, fmt.Errorf("wal: write magic: %w", err)
		}
	} else {
		magicBuf := make([]byte, len(walMagic))
		if _, err := f.ReadAt(magicBuf, 0); err != nil {
			f.Close()
			return nil, fmt.Errorf("wal: read magic: %w", err)
		}
		if string(magicBuf) != walMagic {
			f.Close()
			return nil, fmt.Errorf("wal: invalid magic, not an XBF WAL file")
		}
	}

	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		f.Close()
		return nil, fmt.Errorf("wal: seek end: %w", err)
	}

	return &walLogger{
		f:    f,
		path: path,
	}, nil
}

// Close closes the WAL file.
func (w *walLogger) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return err
}

// Sync flushes WAL to disk.
func (w *walLogger) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return errWALClosed
	}
	return w.f.Sync()
}

// truncate drops everything after size bytes, used by recovery to cut a
// torn final record.
func (w *walLogger) truncate(size int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return errWALClosed
	}
	if err := w.f.Truncate(size); err != nil {
		return fmt.Errorf("wal: truncate: %w", err)
	}
	if _, err := w.f.Seek(size, io.SeekStart); err != nil {
		return fmt.Errorf("wal: seek: %w", err)
	}
	return nil
}

func (w *walLogger) append(rec []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return errWALClosed
	}
	if _, err := w.f.Write(rec); err != nil {
		return fmt.Errorf("wal: append: %w", err)
	}
	return nil
}

func recordHeader(recType uint8, txID uint64) *bytes.Buffer {
	var buf bytes.Buffer
	buf.WriteByte(recType)
	_ = wire.WriteU64(&buf, txID)
	return &buf
}

func (w *walLogger) appendBegin(txID uint64) error {
	return w.append(recordHeader(walRecBegin, txID).Bytes())
}

func (w *walLogger) appendCommit(txID uint64) error {
	return w.append(recordHeader(walRecCommit, txID).Bytes())
}

func (w *walLogger) appendRollback(txID uint64) error {
	return w.append(recordHeader(walRecRollback, txID).Bytes())
}

func (w *walLogger) appendInsert(txID uint64, table string, id schemaid.ID, frame []byte) error {
	rec, err := rowsRecord(walRecInsert, txID, table, id, [][]byte{frame})
	if err != nil {
		return err
	}
	return w.append(rec)
}

func (w *walLogger) appendReplaceAll(txID uint64, table string, id schemaid.ID, frames [][]byte) error {
	rec, err := rowsRecord(walRecReplaceAll, txID, table, id, frames)
	if err != nil {
		return err
	}
	return w.append(rec)
}

func rowsRecord(recType uint8, txID uint64, table string, id schemaid.ID, frames [][]byte) ([]byte, error) {
	buf := recordHeader(recType, txID)
	if err := wire.WriteString(buf, table); err != nil {
		return nil, fmt.Errorf("wal: table name: %w", err)
	}
	buf.Write(id[:])
	if err := wire.WriteU32(buf, uint32(len(frames))); err != nil {
		return nil, err
	}
	for _, fr := range frames {
		if err := wire.WriteU32(buf, uint32(len(fr))); err != nil {
			return nil, err
		}
		buf.Write(fr)
	}
	return buf.Bytes(), nil
}

// walRecord is one decoded WAL record.
type walRecord struct {
	typ    uint8
	txID   uint64
	table  string
	id     schemaid.ID
	frames [][]byte
}

// readRecord decodes the next record from r. It returns io.EOF at a clean
// end of log and io.ErrUnexpectedEOF for a torn final record.
func readRecord(r io.Reader) (walRecord, error) {
	recType, err := wire.ReadU8(r)
	if err != nil {
		return walRecord{}, err
	}
	txID, err := wire.ReadU64(r)
	if err != nil {
		return walRecord{}, unexpected(err)
	}
	rec := walRecord{typ: recType, txID: txID}

	switch recType {
	case walRecBegin, walRecCommit, walRecRollback:
		return rec, nil
	case walRecInsert, walRecReplaceAll:
	default:
		return walRecord{}, fmt.Errorf("wal: unknown record type %d", recType)
	}

	if rec.table, err = wire.ReadString(r); err != nil {
		return walRecord{}, unexpected(err)
	}
	if _, err := io.ReadFull(r, rec.id[:]); err != nil {
		return walRecord{}, unexpected(err)
	}
	rowCount, err := wire.ReadU32(r)
	if err != nil {
		return walRecord{}, unexpected(err)
	}
	for i := uint32(0); i < rowCount; i++ {
		n, err := wire.ReadU32(r)
		if err != nil {
			return walRecord{}, unexpected(err)
		}
		if n > MaxFrameSize {
			return walRecord{}, fmt.Errorf("wal: frame of %d bytes in tx %d exceeds %d", n, txID, MaxFrameSize)
		}
		frame := make([]byte, n)
		if _, err := io.ReadFull(r, frame); err != nil {
			return walRecord{}, unexpected(err)
		}
		rec.frames = append(rec.frames, frame)
	}
	return rec, nil
}

func unexpected(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
