package filestore

import (
	"fmt"
	"slices"

	"goXBF/internal/storage"
	"goXBF/internal/xbf"
)

type walOpType int

const (
	walOpInsert walOpType = iota
	walOpReplaceAll
)

// walOp is one logged write. rows is kept so the transaction can read its
// own writes. Recovery only has frames.
type walOp struct {
	typ    walOpType
	table  string
	rows   []xbf.Record
	frames [][]byte
}

// fileTx implements storage.Tx for FileEngine. Writes are logged to the WAL
// as they happen and applied to table files on Commit.
type fileTx struct {
	eng      *FileEngine
	readOnly bool
	closed   bool
	id       uint64 // 0 = no WAL tracking (read-only)
	ops      []walOp
}

func (tx *fileTx) check(write bool) error {
	if tx.closed {
		return fmt.Errorf("filestore: %w", storage.ErrTxClosed)
	}
	if write && tx.readOnly {
		return fmt.Errorf("filestore: %w", storage.ErrReadOnly)
	}
	return nil
}

// encodeRows checks rows against the table schema and encodes them to
// page frames.
func (tx *fileTx) encodeRows(tableName string, rows []xbf.Record) (tableHeader, [][]byte, error) {
	hdr, err := tx.eng.header(tableName)
	if err != nil {
		return tableHeader{}, nil, err
	}
	frames := make([][]byte, len(rows))
	for i, r := range rows {
		if err := storage.CheckRow(hdr.schema, r); err != nil {
			return tableHeader{}, nil, fmt.Errorf("row %d: %w", i, err)
		}
		fr, err := encodeFrame(r)
		if err != nil {
			return tableHeader{}, nil, fmt.Errorf("row %d: %w", i, err)
		}
		if len(fr) > MaxFrameSize {
			return tableHeader{}, nil, fmt.Errorf("row %d: encoded size %d exceeds page capacity %d", i, len(fr), MaxFrameSize)
		}
		frames[i] = fr
	}
	return hdr, frames, nil
}

// Insert logs row to the WAL and buffers it until Commit.
func (tx *fileTx) Insert(tableName string, row xbf.Record) error {
	if err := tx.check(true); err != nil {
		return err
	}
	hdr, frames, err := tx.encodeRows(tableName, []xbf.Record{row})
	if err != nil {
		return fmt.Errorf("filestore: insert into %s: %w", tableName, err)
	}

	if err := tx.eng.wal.appendInsert(tx.id, tableName, hdr.id, frames[0]); err != nil {
		return fmt.Errorf("filestore: WAL appendInsert: %w", err)
	}
	tx.ops = append(tx.ops, walOp{
		typ:    walOpInsert,
		table:  tableName,
		rows:   []xbf.Record{row},
		frames: frames,
	})
	return nil
}

// ReplaceAll logs the new table contents and buffers them until Commit.
func (tx *fileTx) ReplaceAll(tableName string, rows []xbf.Record) error {
	if err := tx.check(true); err != nil {
		return err
	}
	hdr, frames, err := tx.encodeRows(tableName, rows)
	if err != nil {
		return fmt.Errorf("filestore: replace %s: %w", tableName, err)
	}

	if err := tx.eng.wal.appendReplaceAll(tx.id, tableName, hdr.id, frames); err != nil {
		return fmt.Errorf("filestore: WAL appendReplaceAll: %w", err)
	}
	tx.ops = append(tx.ops, walOp{
		typ:    walOpReplaceAll,
		table:  tableName,
		rows:   slices.Clone(rows),
		frames: frames,
	})
	return nil
}

// Scan reads all committed rows from the table file, then applies this
// transaction's own pending writes.
func (tx *fileTx) Scan(tableName string) (xbf.RecordMetadata, []xbf.Record, error) {
	if err := tx.check(false); err != nil {
		return xbf.RecordMetadata{}, nil, err
	}

	schema, rows, err := tx.eng.readTable(tableName)
	if err != nil {
		return xbf.RecordMetadata{}, nil, err
	}

	for _, op := range tx.ops {
		if op.table != tableName {
			continue
		}
		switch op.typ {
		case walOpInsert:
			rows = append(rows, op.rows...)
		case walOpReplaceAll:
			rows = slices.Clone(op.rows)
		}
	}
	return schema, rows, nil
}
