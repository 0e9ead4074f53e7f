package storage

import (
	"errors"
	"fmt"

	"goXBF/internal/xbf"
)

// Tx represents a storage-level transaction.
//
// Writes made through a Tx are visible to its own Scan immediately and to
// other transactions only after Commit.
type Tx interface {
	// Insert appends row to the table. The row's shape must equal the
	// table schema.
	Insert(tableName string, row xbf.Record) error

	// Scan returns the table schema and every row in insertion order.
	Scan(tableName string) (xbf.RecordMetadata, []xbf.Record, error)

	// ReplaceAll swaps the table contents for rows.
	ReplaceAll(tableName string, rows []xbf.Record) error
}

// Engine is a storage engine that can create and manage transactions.
//
// Different implementations are possible:
//   - in-memory (for tests and scratch work)
//   - on-disk with pages and WAL
type Engine interface {
	// Begin starts a new transaction.
	// readOnly = true means the transaction must not perform writes.
	Begin(readOnly bool) (Tx, error)

	// Commit finishes a transaction and makes changes durable/visible.
	Commit(tx Tx) error

	// Rollback aborts a transaction and discards its changes.
	Rollback(tx Tx) error

	// CreateTable creates a new empty table whose rows are records of
	// schema.
	CreateTable(name string, schema xbf.RecordMetadata) error

	// ListTables returns table names in lexical order.
	ListTables() ([]string, error)

	// TableSchema returns the record metadata a table was created with.
	TableSchema(name string) (xbf.RecordMetadata, error)
}

var (
	ErrTableExists   = errors.New("table already exists")
	ErrNoTable       = errors.New("table does not exist")
	ErrReadOnly      = errors.New("read-only transaction")
	ErrTxClosed      = errors.New("transaction is closed")
	ErrInvalidName   = errors.New("invalid table name")
	ErrShapeMismatch = errors.New("row does not match table schema")
)

// ValidateTableName accepts names made of ASCII letters, digits, '_' and
// '-'. Table names become file names, so nothing else is allowed.
func ValidateTableName(name string) error {
	if name == "" || len(name) > 128 {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return fmt.Errorf("%w: %q", ErrInvalidName, name)
		}
	}
	return nil
}

// CheckRow verifies that row is a well-formed record of schema. Records
// built with the unchecked constructors may carry metadata that disagrees
// with their contents, so the whole tree is walked.
func CheckRow(schema xbf.RecordMetadata, row xbf.Record) error {
	if !row.Metadata().Equal(schema) {
		return fmt.Errorf("%w: got %s, want %s", ErrShapeMismatch, row.Metadata(), schema)
	}
	if err := checkValue(row); err != nil {
		return fmt.Errorf("%w: %w", ErrShapeMismatch, err)
	}
	return nil
}

// CheckRows runs CheckRow on each row.
func CheckRows(schema xbf.RecordMetadata, rows []xbf.Record) error {
	for i, r := range rows {
		if err := CheckRow(schema, r); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
	}
	return nil
}

func checkValue(v xbf.Value) error {
	switch v := v.(type) {
	case xbf.Record:
		if _, err := xbf.NewRecord(v.Metadata(), v.Values()...); err != nil {
			return err
		}
		for i := 0; i < v.Len(); i++ {
			if err := checkValue(v.Value(i)); err != nil {
				return fmt.Errorf("field %q: %w", v.Metadata().Field(i).Name, err)
			}
		}
	case xbf.Vector:
		if _, err := xbf.NewVector(v.Metadata(), v.Elems()...); err != nil {
			return err
		}
		for i := 0; i < v.Len(); i++ {
			if err := checkValue(v.At(i)); err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
		}
	}
	return nil
}
