package engine

import (
	"fmt"

	"goXBF/internal/storage"
	"goXBF/internal/xbf"
)

// applyUpdate returns a new rowset where every row pred matches is replaced
// by fn's result, and the count of affected rows. Replacement rows must
// still be records of schema.
func applyUpdate(schema xbf.RecordMetadata, rows []xbf.Record, pred Predicate, fn Updater) ([]xbf.Record, int, error) {
	newRows := make([]xbf.Record, len(rows))
	affected := 0

	for i, r := range rows {
		ok, err := pred(r)
		if err != nil {
			return nil, 0, fmt.Errorf("row %d: %w", i, err)
		}
		if !ok {
			newRows[i] = r
			continue
		}
		nr, err := fn(r)
		if err != nil {
			return nil, 0, fmt.Errorf("update row %d: %w", i, err)
		}
		if err := storage.CheckRow(schema, nr); err != nil {
			return nil, 0, fmt.Errorf("update row %d: %w", i, err)
		}
		newRows[i] = nr
		affected++
	}

	return newRows, affected, nil
}

// applyDelete returns a new rowset without the rows pred matches, and the
// count of deleted rows.
func applyDelete(rows []xbf.Record, pred Predicate) ([]xbf.Record, int, error) {
	out := make([]xbf.Record, 0, len(rows))
	deleted := 0

	for i, r := range rows {
		ok, err := pred(r)
		if err != nil {
			return nil, 0, fmt.Errorf("row %d: %w", i, err)
		}
		if ok {
			deleted++
			continue
		}
		out = append(out, r)
	}

	return out, deleted, nil
}

// DeleteWhere removes the rows pred matches and returns how many were
// removed. The table is left untouched when nothing matches.
func (e *DBEngine) DeleteWhere(tableName string, pred Predicate) (int, error) {
	if pred == nil {
		return 0, fmt.Errorf("delete from %s: predicate is required", tableName)
	}
	var deleted int
	err := e.write(func(tx storage.Tx) error {
		_, rows, err := tx.Scan(tableName)
		if err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		newRows, n, err := applyDelete(rows, pred)
		if err != nil {
			return fmt.Errorf("delete from %s: %w", tableName, err)
		}
		if n == 0 {
			return nil
		}
		if err := tx.ReplaceAll(tableName, newRows); err != nil {
			return fmt.Errorf("replaceAll: %w", err)
		}
		deleted = n
		return nil
	})
	return deleted, err
}

// UpdateWhere replaces each row pred matches with fn(row) and returns how
// many rows changed. Replacement rows are checked against the table schema.
func (e *DBEngine) UpdateWhere(tableName string, pred Predicate, fn Updater) (int, error) {
	if pred == nil || fn == nil {
		return 0, fmt.Errorf("update %s: predicate and updater are required", tableName)
	}
	var updated int
	err := e.write(func(tx storage.Tx) error {
		schema, rows, err := tx.Scan(tableName)
		if err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		newRows, n, err := applyUpdate(schema, rows, pred, fn)
		if err != nil {
			return fmt.Errorf("update %s: %w", tableName, err)
		}
		if n == 0 {
			return nil
		}
		if err := tx.ReplaceAll(tableName, newRows); err != nil {
			return fmt.Errorf("replaceAll: %w", err)
		}
		updated = n
		return nil
	})
	return updated, err
}

// SetField returns an Updater that replaces one field of the row with v.
// The result is built with checked construction, so v must match the
// field's shape.
func SetField(name string, v xbf.Value) Updater {
	return func(row xbf.Record) (xbf.Record, error) {
		idx, ok := row.Metadata().FieldIndex(name)
		if !ok {
			return xbf.Record{}, fmt.Errorf("unknown field %q in %s", name, row.Metadata())
		}
		vals := row.Values()
		vals[idx] = v
		return xbf.NewRecord(row.Metadata(), vals...)
	}
}
