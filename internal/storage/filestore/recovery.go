package filestore

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
)

type walTxState struct {
	id        uint64
	ops       []walOp
	committed bool
	rolled    bool
}

// countingReader tracks how many bytes of the WAL have been consumed, so a
// torn tail can be cut at the end of the last whole record.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// recoverFromWAL rebuilds every table from the committed records in the
// WAL. Tables are truncated to their headers and transactions are replayed
// in COMMIT order, which is the order Commit applied them live.
func (e *FileEngine) recoverFromWAL() error {
	f, err := os.Open(e.wal.path)
	if err != nil {
		return fmt.Errorf("recovery: open WAL: %w", err)
	}
	defer f.Close()

	// Skip magic
	if _, err := f.Seek(int64(len(walMagic)), io.SeekStart); err != nil {
		return fmt.Errorf("recovery: seek WAL: %w", err)
	}
	cr := &countingReader{r: f}
	br := bufio.NewReader(cr)

	txStates := make(map[uint64]*walTxState)
	var commitOrder []uint64
	var maxTxID uint64
	getTx := func(id uint64) *walTxState {
		if s, ok := txStates[id]; ok {
			return s
		}
		s := &walTxState{id: id}
		txStates[id] = s
		return s
	}

	good := int64(len(walMagic))
	records := 0
	for {
		rec, err := readRecord(br)
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			// A crash mid-append leaves a partial record. Nothing after it
			// was ever acknowledged, so the log ends at the last whole one.
			var size int64
			if fi, err := f.Stat(); err == nil {
				size = fi.Size()
			}
			e.log.Warn("recovery: torn WAL tail, truncating",
				"offset", good, "dropped", size-good)
			if err := e.wal.truncate(good); err != nil {
				return fmt.Errorf("recovery: %w", err)
			}
			break
		}
		if err != nil {
			return fmt.Errorf("recovery: record at offset %d: %w", good, err)
		}
		good = int64(len(walMagic)) + cr.n - int64(br.Buffered())
		records++

		maxTxID = max(maxTxID, rec.txID)
		txState := getTx(rec.txID)
		switch rec.typ {
		case walRecBegin:
			// nothing more in payload
		case walRecCommit:
			if !txState.committed {
				txState.committed = true
				commitOrder = append(commitOrder, rec.txID)
			}
		case walRecRollback:
			txState.rolled = true
		case walRecInsert, walRecReplaceAll:
			opType := walOpInsert
			if rec.typ == walRecReplaceAll {
				opType = walOpReplaceAll
			}
			txState.ops = append(txState.ops, walOp{
				typ:    opType,
				table:  rec.table,
				frames: rec.frames,
			})
			if hdr, ok := e.tables[rec.table]; ok && hdr.id != rec.id {
				return fmt.Errorf("recovery: tx %d writes %q with schema %s, table has %s",
					rec.txID, rec.table, rec.id.Short(), hdr.id.Short())
			}
		}
	}
	e.nextTxID = maxTxID + 1

	if records == 0 {
		return nil
	}

	e.tablesMu.Lock()
	defer e.tablesMu.Unlock()

	// Truncate data for all tables (keep header).
	for name, hdr := range e.tables {
		if err := os.Truncate(e.tablePath(name), hdr.size); err != nil {
			return fmt.Errorf("recovery: truncate table %q: %w", name, err)
		}
	}

	// Apply committed txs in commit order (ignore rolled back or incomplete txs).
	applied := 0
	for _, txID := range commitOrder {
		s := txStates[txID]
		if s.rolled {
			continue
		}
		ops := s.ops[:0:0]
		for _, op := range s.ops {
			if _, ok := e.tables[op.table]; !ok {
				e.log.Warn("recovery: skipping write to missing table", "tx", txID, "table", op.table)
				continue
			}
			ops = append(ops, op)
		}
		if err := e.applyOps(ops); err != nil {
			return fmt.Errorf("recovery: apply tx %d: %w", txID, err)
		}
		applied++
	}

	e.log.Info("recovery complete", "records", records, "committed", applied, "next_tx", e.nextTxID)
	return nil
}
