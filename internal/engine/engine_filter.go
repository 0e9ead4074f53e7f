package engine

import (
	"fmt"

	"goXBF/internal/xbf"
)

// Predicate reports whether a row matches.
type Predicate func(row xbf.Record) (bool, error)

// Updater returns the replacement for a matched row.
type Updater func(row xbf.Record) (xbf.Record, error)

// FieldEquals matches rows whose field name holds a value equal to want
// (same shape and contents). Naming a field the row does not have is an
// error rather than a silent non-match.
func FieldEquals(name string, want xbf.Value) Predicate {
	return func(row xbf.Record) (bool, error) {
		v, ok := row.Get(name)
		if !ok {
			return false, fmt.Errorf("unknown field %q in %s", name, row.Metadata())
		}
		return xbf.ValueEqual(v, want), nil
	}
}

// All matches every row.
func All(xbf.Record) (bool, error) { return true, nil }

// And matches rows that every p matches.
func And(ps ...Predicate) Predicate {
	return func(row xbf.Record) (bool, error) {
		for _, p := range ps {
			ok, err := p(row)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	}
}

// filterRows returns the rows pred matches, in order.
func filterRows(rows []xbf.Record, pred Predicate) ([]xbf.Record, error) {
	var out []xbf.Record
	for i, row := range rows {
		ok, err := pred(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		if ok {
			out = append(out, row)
		}
	}
	return out, nil
}

// projectFields returns records holding only the requested fields, in that
// order. The projected metadata keeps the table's record name.
func projectFields(schema xbf.RecordMetadata, rows []xbf.Record, names []string) (xbf.RecordMetadata, []xbf.Record, error) {
	indexes := make([]int, len(names))
	fields := make([]xbf.Field, len(names))
	seen := make(map[string]bool, len(names))
	for i, name := range names {
		idx, ok := schema.FieldIndex(name)
		if !ok {
			return xbf.RecordMetadata{}, nil, fmt.Errorf("unknown field %q in select list", name)
		}
		if seen[name] {
			return xbf.RecordMetadata{}, nil, fmt.Errorf("duplicate field %q in select list", name)
		}
		seen[name] = true
		indexes[i] = idx
		fields[i] = schema.Field(idx)
	}
	proj := xbf.NewRecordMetadata(schema.Name(), fields...)

	out := make([]xbf.Record, 0, len(rows))
	for _, r := range rows {
		vals := make([]xbf.Value, len(indexes))
		for i, idx := range indexes {
			vals[i] = r.Value(idx)
		}
		rec, err := xbf.NewRecord(proj, vals...)
		if err != nil {
			return xbf.RecordMetadata{}, nil, fmt.Errorf("internal error: %w", err)
		}
		out = append(out, rec)
	}
	return proj, out, nil
}

// Select returns the rows of a table that pred matches (all rows when pred
// is nil), projected to fields when any are named.
func (e *DBEngine) Select(tableName string, pred Predicate, fields ...string) (xbf.RecordMetadata, []xbf.Record, error) {
	schema, rows, err := e.SelectAll(tableName)
	if err != nil {
		return xbf.RecordMetadata{}, nil, err
	}
	if pred != nil {
		if rows, err = filterRows(rows, pred); err != nil {
			return xbf.RecordMetadata{}, nil, err
		}
	}
	if len(fields) == 0 {
		return schema, rows, nil
	}
	return projectFields(schema, rows, fields)
}
