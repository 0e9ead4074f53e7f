package engine

import (
	"errors"
	"fmt"

	"goXBF/internal/storage"
	"goXBF/internal/xbf"
)

var errNotStarted = errors.New("engine not started")

// DBEngine is the main database engine struct. It sits on top of a
// storage.Engine and runs every call either in the open session
// transaction (see Begin) or in a one-off transaction of its own.
type DBEngine struct {
	started bool
	store   storage.Engine
	inTx    bool
	currTx  storage.Tx
}

// New creates a new DBEngine over store. Call Start before use.
func New(store storage.Engine) *DBEngine {
	return &DBEngine{
		started: false,
		store:   store,
		inTx:    false,
	}
}

// Start runs initialization steps for the engine.
func (e *DBEngine) Start() error {
	if e.started {
		return fmt.Errorf("engine already started")
	}
	e.started = true
	return nil
}

// CreateTable creates a new table in the underlying storage engine.
func (e *DBEngine) CreateTable(name string, schema xbf.RecordMetadata) error {
	if !e.started {
		return errNotStarted
	}
	return e.store.CreateTable(name, schema)
}

// InsertRow inserts a single row into the given table.
func (e *DBEngine) InsertRow(tableName string, row xbf.Record) error {
	return e.write(func(tx storage.Tx) error {
		if err := tx.Insert(tableName, row); err != nil {
			return fmt.Errorf("insert: %w", err)
		}
		return nil
	})
}

// InsertRecord builds a record of the table's schema from values, in field
// order, and inserts it. The record is returned on success.
func (e *DBEngine) InsertRecord(tableName string, values ...xbf.Value) (xbf.Record, error) {
	if !e.started {
		return xbf.Record{}, errNotStarted
	}
	schema, err := e.store.TableSchema(tableName)
	if err != nil {
		return xbf.Record{}, err
	}
	rec, err := xbf.NewRecord(schema, values...)
	if err != nil {
		return xbf.Record{}, fmt.Errorf("insert into %s: %w", tableName, err)
	}
	if err := e.InsertRow(tableName, rec); err != nil {
		return xbf.Record{}, err
	}
	return rec, nil
}

// SelectAll returns the schema and all rows of the given table. Inside a
// session the session's own writes are visible.
func (e *DBEngine) SelectAll(tableName string) (xbf.RecordMetadata, []xbf.Record, error) {
	var (
		schema xbf.RecordMetadata
		rows   []xbf.Record
	)
	err := e.read(func(tx storage.Tx) error {
		var err error
		schema, rows, err = tx.Scan(tableName)
		if err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		return nil
	})
	if err != nil {
		return xbf.RecordMetadata{}, nil, err
	}
	return schema, rows, nil
}

// ListTables returns the names of all tables in the storage engine.
func (e *DBEngine) ListTables() ([]string, error) {
	if !e.started {
		return nil, errNotStarted
	}
	return e.store.ListTables()
}

// TableSchema returns the record metadata of a table.
func (e *DBEngine) TableSchema(name string) (xbf.RecordMetadata, error) {
	if !e.started {
		return xbf.RecordMetadata{}, errNotStarted
	}
	return e.store.TableSchema(name)
}

// write runs fn in the session transaction, or in a one-off read-write
// transaction that is committed when fn succeeds and rolled back otherwise.
func (e *DBEngine) write(fn func(tx storage.Tx) error) error {
	if !e.started {
		return errNotStarted
	}
	if e.inTx {
		return fn(e.currTx)
	}

	tx, err := e.store.Begin(false)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = e.store.Rollback(tx)
		return err
	}
	if err := e.store.Commit(tx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// read is write for read-only work.
func (e *DBEngine) read(fn func(tx storage.Tx) error) error {
	if !e.started {
		return errNotStarted
	}
	if e.inTx {
		return fn(e.currTx)
	}

	tx, err := e.store.Begin(true)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = e.store.Rollback(tx)
		return err
	}
	if err := e.store.Commit(tx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
