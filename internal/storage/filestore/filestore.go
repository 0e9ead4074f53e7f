package filestore

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"goXBF/internal/storage"
	"goXBF/internal/xbf"
)

const tableExt = ".xbft"

// FileEngine is a simple on-disk storage engine.
// It stores one file per table in the given directory.
//
// Layout:
//
//	[header][page 0][page 1]...
//
// The header holds the table's XBF record metadata and its schemaid
// fingerprint (see writeHeader). Pages are PageSize slotted heap pages whose
// slots hold row frames (see encodeFrame).
//
// Every write is logged to wal.log first. Table files only change on
// Commit, and on open they are rebuilt from the committed WAL records.
type FileEngine struct {
	dir      string
	wal      *walLogger
	log      *slog.Logger
	maxDepth int

	// tablesMu guards table files and the header cache.
	tablesMu sync.RWMutex
	tables   map[string]tableHeader

	// tx ID generator (for write tx only)
	mu       sync.Mutex
	nextTxID uint64
}

type Option func(*FileEngine)

// WithLogger sets the logger used for recovery and commit events.
func WithLogger(l *slog.Logger) Option {
	return func(e *FileEngine) { e.log = l }
}

// WithMaxDepth sets the nesting limit used when decoding stored rows.
func WithMaxDepth(n int) Option {
	return func(e *FileEngine) { e.maxDepth = n }
}

// New opens (or creates) a FileEngine storing all tables in dir and replays
// the WAL.
func New(dir string, opts ...Option) (*FileEngine, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("filestore: create dir: %w", err)
	}

	e := &FileEngine{
		dir:      dir,
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		maxDepth: xbf.DefaultMaxDepth,
		tables:   make(map[string]tableHeader),
		nextTxID: 1,
	}
	for _, opt := range opts {
		opt(e)
	}

	if err := e.loadTables(); err != nil {
		return nil, err
	}

	w, err := newWAL(dir)
	if err != nil {
		return nil, fmt.Errorf("filestore: init WAL: %w", err)
	}
	e.wal = w

	// Recover database state from WAL on startup.
	if err := e.recoverFromWAL(); err != nil {
		w.Close()
		return nil, fmt.Errorf("filestore: recovery failed: %w", err)
	}

	return e, nil
}

// Close releases the WAL. The engine must not be used afterwards.
func (e *FileEngine) Close() error {
	return e.wal.Close()
}

func (e *FileEngine) tablePath(name string) string {
	return filepath.Join(e.dir, name+tableExt)
}

func (e *FileEngine) loadTables() error {
	names, err := e.ListTables()
	if err != nil {
		return err
	}
	for _, name := range names {
		f, err := os.Open(e.tablePath(name))
		if err != nil {
			return fmt.Errorf("filestore: open table %q: %w", name, err)
		}
		hdr, err := readHeader(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("filestore: read header of %q: %w", name, err)
		}
		e.tables[name] = hdr
	}
	return nil
}

// ListTables returns the names of all *.xbft files in the storage
// directory, sorted.
func (e *FileEngine) ListTables() ([]string, error) {
	entries, err := os.ReadDir(e.dir)
	if err != nil {
		return nil, fmt.Errorf("filestore: list tables: %w", err)
	}

	var tables []string
	for _, ent := range entries {
		name := ent.Name()
		if ent.Type().IsRegular() && strings.HasSuffix(name, tableExt) {
			tables = append(tables, strings.TrimSuffix(name, tableExt))
		}
	}
	slices.Sort(tables)
	return tables, nil
}

func (e *FileEngine) header(name string) (tableHeader, error) {
	e.tablesMu.RLock()
	defer e.tablesMu.RUnlock()
	hdr, ok := e.tables[name]
	if !ok {
		return tableHeader{}, fmt.Errorf("filestore: %w: %s", storage.ErrNoTable, name)
	}
	return hdr, nil
}

// TableSchema returns the record metadata stored in the table header.
func (e *FileEngine) TableSchema(name string) (xbf.RecordMetadata, error) {
	hdr, err := e.header(name)
	if err != nil {
		return xbf.RecordMetadata{}, err
	}
	return hdr.schema, nil
}

// CreateTable creates a new table file with the given schema.
func (e *FileEngine) CreateTable(name string, schema xbf.RecordMetadata) error {
	if err := storage.ValidateTableName(name); err != nil {
		return fmt.Errorf("filestore: %w", err)
	}

	e.tablesMu.Lock()
	defer e.tablesMu.Unlock()

	if _, ok := e.tables[name]; ok {
		return fmt.Errorf("filestore: %w: %s", storage.ErrTableExists, name)
	}
	path := e.tablePath(name)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("filestore: %w: %s", storage.ErrTableExists, name)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("filestore: check existing table: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("filestore: create table file: %w", err)
	}

	hdr, err := writeHeader(f, schema)
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("filestore: write header: %w", err)
	}

	e.tables[name] = hdr
	e.log.Debug("table created", "table", name, "schema", hdr.id.Short())
	return nil
}

// Begin starts a new transaction. Only write transactions get a txID and a
// BEGIN record.
func (e *FileEngine) Begin(readOnly bool) (storage.Tx, error) {
	tx := &fileTx{
		eng:      e,
		readOnly: readOnly,
	}

	if !readOnly {
		e.mu.Lock()
		txID := e.nextTxID
		e.nextTxID++
		e.mu.Unlock()

		tx.id = txID

		if err := e.wal.appendBegin(txID); err != nil {
			return nil, fmt.Errorf("filestore: WAL BEGIN: %w", err)
		}
	}

	return tx, nil
}

func (e *FileEngine) validateTx(tx storage.Tx) (*fileTx, error) {
	if tx == nil {
		return nil, fmt.Errorf("filestore: transaction is nil")
	}
	ft, ok := tx.(*fileTx)
	if !ok || ft == nil {
		return nil, fmt.Errorf("filestore: invalid transaction type %T", tx)
	}
	if ft.eng != e {
		return nil, fmt.Errorf("filestore: transaction belongs to another engine")
	}
	if ft.closed {
		return nil, fmt.Errorf("filestore: %w", storage.ErrTxClosed)
	}
	return ft, nil
}

// Commit appends COMMIT, syncs the WAL and then applies the buffered writes
// to the table files. The table lock is held across both steps so the order
// of COMMIT records matches the order writes reach the files.
func (e *FileEngine) Commit(tx storage.Tx) error {
	ft, err := e.validateTx(tx)
	if err != nil {
		return err
	}
	ft.closed = true
	if ft.readOnly {
		return nil
	}

	e.tablesMu.Lock()
	defer e.tablesMu.Unlock()

	if err := e.wal.appendCommit(ft.id); err != nil {
		return fmt.Errorf("filestore: WAL COMMIT: %w", err)
	}
	if err := e.wal.Sync(); err != nil {
		return fmt.Errorf("filestore: WAL sync on commit: %w", err)
	}
	if err := e.applyOps(ft.ops); err != nil {
		return fmt.Errorf("filestore: apply tx %d: %w", ft.id, err)
	}
	e.log.Debug("tx committed", "tx", ft.id, "ops", len(ft.ops))
	return nil
}

// Rollback logs ROLLBACK and discards the buffered writes.
func (e *FileEngine) Rollback(tx storage.Tx) error {
	ft, err := e.validateTx(tx)
	if err != nil {
		return err
	}
	ft.closed = true
	ft.ops = nil
	if ft.readOnly {
		return nil
	}

	if err := e.wal.appendRollback(ft.id); err != nil {
		return fmt.Errorf("filestore: WAL ROLLBACK: %w", err)
	}
	if err := e.wal.Sync(); err != nil {
		return fmt.Errorf("filestore: WAL sync on rollback: %w", err)
	}
	return nil
}

// applyOps writes ops to the table files. Callers hold tablesMu.
func (e *FileEngine) applyOps(ops []walOp) error {
	for _, op := range ops {
		hdr, ok := e.tables[op.table]
		if !ok {
			return fmt.Errorf("%w: %s", storage.ErrNoTable, op.table)
		}
		if err := e.applyOp(hdr, op); err != nil {
			return err
		}
	}
	return nil
}

func (e *FileEngine) applyOp(hdr tableHeader, op walOp) error {
	f, err := os.OpenFile(e.tablePath(op.table), os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("open table %q: %w", op.table, err)
	}
	defer f.Close()

	if op.typ == walOpReplaceAll {
		if err := f.Truncate(hdr.size); err != nil {
			return fmt.Errorf("truncate table %q: %w", op.table, err)
		}
	}
	if err := appendFrames(f, hdr.size, op.frames); err != nil {
		return fmt.Errorf("table %q: %w", op.table, err)
	}
	return f.Sync()
}

// numPages returns how many whole pages follow the header.
func numPages(f *os.File, headerEnd int64) (uint32, error) {
	fi, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat: %w", err)
	}
	dataBytes := fi.Size() - headerEnd
	if dataBytes < 0 {
		return 0, fmt.Errorf("corrupt file, size < header")
	}
	if dataBytes%PageSize != 0 {
		return 0, fmt.Errorf("corrupt data section (not multiple of page size)")
	}
	return uint32(dataBytes / PageSize), nil
}

// appendFrames fills the last page and then as many new pages as needed.
func appendFrames(f *os.File, headerEnd int64, frames [][]byte) error {
	if len(frames) == 0 {
		return nil
	}
	n, err := numPages(f, headerEnd)
	if err != nil {
		return err
	}

	writePage := func(p pageBuf) error {
		offset := headerEnd + int64(p.pageID())*PageSize
		if _, err := f.WriteAt(p, offset); err != nil {
			return fmt.Errorf("write page %d: %w", p.pageID(), err)
		}
		return nil
	}

	var cur pageBuf
	if n > 0 {
		cur = make(pageBuf, PageSize)
		if _, err := f.ReadAt(cur, headerEnd+int64(n-1)*PageSize); err != nil {
			return fmt.Errorf("read last page: %w", err)
		}
		if err := cur.validate(n - 1); err != nil {
			return err
		}
	} else {
		cur = newEmptyHeapPage(0)
		n = 1
	}

	for _, fr := range frames {
		_, err := cur.insertFrame(fr)
		if errors.Is(err, errPageFull) {
			if err := writePage(cur); err != nil {
				return err
			}
			cur = newEmptyHeapPage(n)
			n++
			_, err = cur.insertFrame(fr)
		}
		if err != nil {
			return err
		}
	}
	return writePage(cur)
}

// readTable decodes every committed row of a table in page and slot order.
func (e *FileEngine) readTable(name string) (xbf.RecordMetadata, []xbf.Record, error) {
	e.tablesMu.RLock()
	defer e.tablesMu.RUnlock()

	hdr, ok := e.tables[name]
	if !ok {
		return xbf.RecordMetadata{}, nil, fmt.Errorf("filestore: %w: %s", storage.ErrNoTable, name)
	}

	f, err := os.Open(e.tablePath(name))
	if err != nil {
		return xbf.RecordMetadata{}, nil, fmt.Errorf("filestore: open table for scan: %w", err)
	}
	defer f.Close()

	n, err := numPages(f, hdr.size)
	if err != nil {
		return xbf.RecordMetadata{}, nil, fmt.Errorf("filestore: scan %s: %w", name, err)
	}

	var rows []xbf.Record
	p := make(pageBuf, PageSize)
	for pageID := uint32(0); pageID < n; pageID++ {
		offset := hdr.size + int64(pageID)*PageSize
		if _, err := f.ReadAt(p, offset); err != nil && !errors.Is(err, io.EOF) {
			return xbf.RecordMetadata{}, nil, fmt.Errorf("filestore: read page %d: %w", pageID, err)
		}
		if err := p.validate(pageID); err != nil {
			return xbf.RecordMetadata{}, nil, fmt.Errorf("filestore: scan %s: %w", name, err)
		}

		err := p.iterateFrames(func(slot uint16, frame []byte) error {
			r, err := decodeFrame(frame, hdr.schema, e.maxDepth)
			if err != nil {
				return fmt.Errorf("slot %d: %w", slot, err)
			}
			rows = append(rows, r)
			return nil
		})
		if err != nil {
			return xbf.RecordMetadata{}, nil, fmt.Errorf("filestore: iterate rows in page %d: %w", pageID, err)
		}
	}

	return hdr.schema, rows, nil
}
