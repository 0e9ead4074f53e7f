package memstore

import (
	"fmt"
	"slices"
	"sort"
	"sync"

	"goXBF/internal/storage"
	"goXBF/internal/xbf"
)

type table struct {
	name   string
	schema xbf.RecordMetadata
	rows   []xbf.Record
}

type memEngine struct {
	mu     sync.RWMutex
	tables map[string]*table
}

// New creates a new in-memory storage engine.
func New() storage.Engine {
	return &memEngine{
		tables: make(map[string]*table),
	}
}

// pending is the uncommitted state of one table inside a transaction.
type pending struct {
	replaced bool
	rows     []xbf.Record // full contents if replaced, else rows to append
}

// memTx represents a transaction on top of memEngine.
type memTx struct {
	eng      *memEngine
	readOnly bool
	closed   bool
	writes   map[string]*pending
	order    []string
}

func (tx *memTx) check(write bool) error {
	if tx.closed {
		return fmt.Errorf("memstore: %w", storage.ErrTxClosed)
	}
	if write && tx.readOnly {
		return fmt.Errorf("memstore: %w", storage.ErrReadOnly)
	}
	return nil
}

func (tx *memTx) schema(tableName string) (xbf.RecordMetadata, error) {
	tx.eng.mu.RLock()
	defer tx.eng.mu.RUnlock()

	t, ok := tx.eng.tables[tableName]
	if !ok {
		return xbf.RecordMetadata{}, fmt.Errorf("memstore: %w: %s", storage.ErrNoTable, tableName)
	}
	return t.schema, nil
}

func (tx *memTx) pendingFor(tableName string) *pending {
	p, ok := tx.writes[tableName]
	if !ok {
		p = &pending{}
		tx.writes[tableName] = p
		tx.order = append(tx.order, tableName)
	}
	return p
}

// Insert adds a row into a table inside this transaction.
func (tx *memTx) Insert(tableName string, row xbf.Record) error {
	if err := tx.check(true); err != nil {
		return err
	}
	schema, err := tx.schema(tableName)
	if err != nil {
		return err
	}
	if err := storage.CheckRow(schema, row); err != nil {
		return fmt.Errorf("memstore: insert into %s: %w", tableName, err)
	}

	p := tx.pendingFor(tableName)
	p.rows = append(p.rows, row)
	return nil
}

func (tx *memTx) ReplaceAll(tableName string, rows []xbf.Record) error {
	if err := tx.check(true); err != nil {
		return err
	}
	schema, err := tx.schema(tableName)
	if err != nil {
		return err
	}
	if err := storage.CheckRows(schema, rows); err != nil {
		return fmt.Errorf("memstore: replace %s: %w", tableName, err)
	}

	p := tx.pendingFor(tableName)
	p.replaced = true
	p.rows = slices.Clone(rows)
	return nil
}

func (tx *memTx) Scan(tableName string) (xbf.RecordMetadata, []xbf.Record, error) {
	if err := tx.check(false); err != nil {
		return xbf.RecordMetadata{}, nil, err
	}

	tx.eng.mu.RLock()
	t, ok := tx.eng.tables[tableName]
	if !ok {
		tx.eng.mu.RUnlock()
		return xbf.RecordMetadata{}, nil, fmt.Errorf("memstore: %w: %s", storage.ErrNoTable, tableName)
	}
	// Records are immutable, so a shallow copy of the slice is enough.
	rows := slices.Clone(t.rows)
	schema := t.schema
	tx.eng.mu.RUnlock()

	if p, ok := tx.writes[tableName]; ok {
		rows = p.apply(rows)
	}
	return schema, rows, nil
}

func (p *pending) apply(rows []xbf.Record) []xbf.Record {
	if p.replaced {
		return slices.Clone(p.rows)
	}
	return append(rows, p.rows...)
}

// Begin starts a new transaction.
func (e *memEngine) Begin(readOnly bool) (storage.Tx, error) {
	return &memTx{
		eng:      e,
		readOnly: readOnly,
		writes:   make(map[string]*pending),
	}, nil
}

func (e *memEngine) validateTx(tx storage.Tx) (*memTx, error) {
	mt, ok := tx.(*memTx)
	if !ok || mt == nil {
		return nil, fmt.Errorf("memstore: invalid transaction type %T", tx)
	}
	if mt.eng != e {
		return nil, fmt.Errorf("memstore: transaction belongs to another engine")
	}
	if mt.closed {
		return nil, fmt.Errorf("memstore: %w", storage.ErrTxClosed)
	}
	return mt, nil
}

// Commit publishes the transaction's writes in the order tables were first
// touched.
func (e *memEngine) Commit(tx storage.Tx) error {
	mt, err := e.validateTx(tx)
	if err != nil {
		return err
	}
	mt.closed = true
	if len(mt.order) == 0 {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, name := range mt.order {
		t, ok := e.tables[name]
		if !ok {
			return fmt.Errorf("memstore: commit: %w: %s", storage.ErrNoTable, name)
		}
		t.rows = mt.writes[name].apply(t.rows)
	}
	return nil
}

// Rollback discards the transaction's writes.
func (e *memEngine) Rollback(tx storage.Tx) error {
	mt, err := e.validateTx(tx)
	if err != nil {
		return err
	}
	mt.closed = true
	mt.writes = nil
	mt.order = nil
	return nil
}

// CreateTable registers a new empty table.
func (e *memEngine) CreateTable(name string, schema xbf.RecordMetadata) error {
	if err := storage.ValidateTableName(name); err != nil {
		return fmt.Errorf("memstore: %w", err)
	}
	if _, err := xbf.MarshalMetadata(schema); err != nil {
		return fmt.Errorf("memstore: schema for %s: %w", name, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.tables[name]; exists {
		return fmt.Errorf("memstore: %w: %s", storage.ErrTableExists, name)
	}

	e.tables[name] = &table{
		name:   name,
		schema: schema,
	}

	return nil
}

func (e *memEngine) ListTables() ([]string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	names := make([]string, 0, len(e.tables))
	for name := range e.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (e *memEngine) TableSchema(name string) (xbf.RecordMetadata, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	t, ok := e.tables[name]
	if !ok {
		return xbf.RecordMetadata{}, fmt.Errorf("memstore: %w: %s", storage.ErrNoTable, name)
	}
	return t.schema, nil
}
