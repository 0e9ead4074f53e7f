// Package storagetest holds behaviour every storage.Engine must share.
package storagetest

import (
	"errors"
	"testing"

	"goXBF/internal/storage"
	"goXBF/internal/xbf"
)

// UsersSchema is the table shape used throughout the suite. The tags field
// makes rows carry vector counts.
func UsersSchema() xbf.RecordMetadata {
	return xbf.NewRecordMetadata("user",
		xbf.Field{Name: "id", Metadata: xbf.KindI64},
		xbf.Field{Name: "name", Metadata: xbf.KindString},
		xbf.Field{Name: "active", Metadata: xbf.KindBool},
		xbf.Field{Name: "tags", Metadata: xbf.NewVectorMetadata(xbf.KindString)},
	)
}

// User builds a row of UsersSchema.
func User(t testing.TB, id int64, name string, active bool, tags ...string) xbf.Record {
	t.Helper()
	schema := UsersSchema()
	elems := make([]xbf.Value, len(tags))
	for i, tag := range tags {
		elems[i] = xbf.String(tag)
	}
	vec, err := xbf.NewVector(schema.Field(3).Metadata.(xbf.VectorMetadata), elems...)
	if err != nil {
		t.Fatalf("build tags: %v", err)
	}
	rec, err := xbf.NewRecord(schema, xbf.I64(id), xbf.String(name), xbf.Bool(active), vec)
	if err != nil {
		t.Fatalf("build user: %v", err)
	}
	return rec
}

// RequireRows fails unless rows equal want, in order.
func RequireRows(t testing.TB, rows []xbf.Record, want ...xbf.Record) {
	t.Helper()
	if len(rows) != len(want) {
		t.Fatalf("expected %d rows, got %d: %v", len(want), len(rows), rows)
	}
	for i := range want {
		if !rows[i].Equal(want[i]) {
			t.Fatalf("row %d: expected %v, got %v", i, want[i], rows[i])
		}
	}
}

// ScanAll reads a table in its own read-only transaction.
func ScanAll(t testing.TB, eng storage.Engine, table string) []xbf.Record {
	t.Helper()
	tx, err := eng.Begin(true)
	if err != nil {
		t.Fatalf("Begin(readOnly) failed: %v", err)
	}
	_, rows, err := tx.Scan(table)
	if err != nil {
		t.Fatalf("Scan(%s) failed: %v", table, err)
	}
	if err := eng.Commit(tx); err != nil {
		t.Fatalf("Commit(readOnly) failed: %v", err)
	}
	return rows
}

// Insert writes rows in one committed transaction.
func Insert(t testing.TB, eng storage.Engine, table string, rows ...xbf.Record) {
	t.Helper()
	tx, err := eng.Begin(false)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	for _, r := range rows {
		if err := tx.Insert(table, r); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}
	if err := eng.Commit(tx); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
}

// Run exercises newEngine against the storage.Engine contract. newEngine
// must return a fresh, empty engine on every call.
func Run(t *testing.T, newEngine func(t *testing.T) storage.Engine) {
	t.Run("CreateInsertScan", func(t *testing.T) { testCreateInsertScan(t, newEngine(t)) })
	t.Run("CreateTableErrors", func(t *testing.T) { testCreateTableErrors(t, newEngine(t)) })
	t.Run("ShapeChecked", func(t *testing.T) { testShapeChecked(t, newEngine(t)) })
	t.Run("ReadOnly", func(t *testing.T) { testReadOnly(t, newEngine(t)) })
	t.Run("Rollback", func(t *testing.T) { testRollback(t, newEngine(t)) })
	t.Run("Isolation", func(t *testing.T) { testIsolation(t, newEngine(t)) })
	t.Run("ReplaceAll", func(t *testing.T) { testReplaceAll(t, newEngine(t)) })
	t.Run("ClosedTx", func(t *testing.T) { testClosedTx(t, newEngine(t)) })
	t.Run("ListTables", func(t *testing.T) { testListTables(t, newEngine(t)) })
}

func testCreateInsertScan(t *testing.T, eng storage.Engine) {
	if err := eng.CreateTable("users", UsersSchema()); err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}
	alice := User(t, 1, "Alice", true, "admin", "ops")
	bob := User(t, 2, "Bob", false)
	Insert(t, eng, "users", alice, bob)

	tx, err := eng.Begin(true)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	schema, rows, err := tx.Scan("users")
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if !schema.Equal(UsersSchema()) {
		t.Fatalf("schema: expected %v, got %v", UsersSchema(), schema)
	}
	RequireRows(t, rows, alice, bob)
	if err := eng.Commit(tx); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	got, err := eng.TableSchema("users")
	if err != nil {
		t.Fatalf("TableSchema failed: %v", err)
	}
	if !got.Equal(UsersSchema()) {
		t.Fatalf("TableSchema: expected %v, got %v", UsersSchema(), got)
	}
}

func testCreateTableErrors(t *testing.T, eng storage.Engine) {
	if err := eng.CreateTable("users", UsersSchema()); err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}
	if err := eng.CreateTable("users", UsersSchema()); !errors.Is(err, storage.ErrTableExists) {
		t.Fatalf("expected ErrTableExists, got %v", err)
	}
	for _, name := range []string{"", "../etc", "a b", "x.y"} {
		if err := eng.CreateTable(name, UsersSchema()); !errors.Is(err, storage.ErrInvalidName) {
			t.Fatalf("CreateTable(%q): expected ErrInvalidName, got %v", name, err)
		}
	}
	if _, err := eng.TableSchema("missing"); !errors.Is(err, storage.ErrNoTable) {
		t.Fatalf("expected ErrNoTable, got %v", err)
	}

	tx, err := eng.Begin(false)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if err := tx.Insert("missing", User(t, 1, "a", true)); !errors.Is(err, storage.ErrNoTable) {
		t.Fatalf("Insert into missing table: expected ErrNoTable, got %v", err)
	}
	if _, _, err := tx.Scan("missing"); !errors.Is(err, storage.ErrNoTable) {
		t.Fatalf("Scan of missing table: expected ErrNoTable, got %v", err)
	}
	if err := eng.Rollback(tx); err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}
}

func testShapeChecked(t *testing.T, eng storage.Engine) {
	if err := eng.CreateTable("users", UsersSchema()); err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}
	tx, err := eng.Begin(false)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	defer eng.Rollback(tx)

	other := xbf.NewRecordMetadata("user", xbf.Field{Name: "id", Metadata: xbf.KindI32})
	wrong, err := xbf.NewRecord(other, xbf.I32(1))
	if err != nil {
		t.Fatalf("build row: %v", err)
	}
	if err := tx.Insert("users", wrong); !errors.Is(err, storage.ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch, got %v", err)
	}

	// Right metadata, wrong contents.
	schema := UsersSchema()
	tags := xbf.NewVectorUnchecked(schema.Field(3).Metadata.(xbf.VectorMetadata), xbf.U8(1))
	forged := xbf.NewRecordUnchecked(schema, xbf.I64(1), xbf.String("x"), xbf.Bool(true), tags)
	if err := tx.Insert("users", forged); !errors.Is(err, storage.ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch for forged vector, got %v", err)
	}
	if err := tx.ReplaceAll("users", []xbf.Record{User(t, 1, "ok", true), forged}); !errors.Is(err, storage.ErrShapeMismatch) {
		t.Fatalf("ReplaceAll: expected ErrShapeMismatch, got %v", err)
	}
}

func testReadOnly(t *testing.T, eng storage.Engine) {
	if err := eng.CreateTable("users", UsersSchema()); err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}
	tx, err := eng.Begin(true)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if err := tx.Insert("users", User(t, 1, "a", true)); !errors.Is(err, storage.ErrReadOnly) {
		t.Fatalf("Insert: expected ErrReadOnly, got %v", err)
	}
	if err := tx.ReplaceAll("users", nil); !errors.Is(err, storage.ErrReadOnly) {
		t.Fatalf("ReplaceAll: expected ErrReadOnly, got %v", err)
	}
	if err := eng.Commit(tx); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
}

func testRollback(t *testing.T, eng storage.Engine) {
	if err := eng.CreateTable("users", UsersSchema()); err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}
	alice := User(t, 1, "Alice", true)
	Insert(t, eng, "users", alice)

	tx, err := eng.Begin(false)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if err := tx.Insert("users", User(t, 2, "Bob", false)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := tx.ReplaceAll("users", nil); err != nil {
		t.Fatalf("ReplaceAll failed: %v", err)
	}
	if err := eng.Rollback(tx); err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}

	RequireRows(t, ScanAll(t, eng, "users"), alice)
}

func testIsolation(t *testing.T, eng storage.Engine) {
	if err := eng.CreateTable("users", UsersSchema()); err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}
	alice := User(t, 1, "Alice", true, "x")

	tx, err := eng.Begin(false)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if err := tx.Insert("users", alice); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	// The writer sees its own row, nobody else does yet.
	_, own, err := tx.Scan("users")
	if err != nil {
		t.Fatalf("Scan in tx failed: %v", err)
	}
	RequireRows(t, own, alice)
	RequireRows(t, ScanAll(t, eng, "users"))

	if err := eng.Commit(tx); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	RequireRows(t, ScanAll(t, eng, "users"), alice)
}

func testReplaceAll(t *testing.T, eng storage.Engine) {
	if err := eng.CreateTable("users", UsersSchema()); err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}
	Insert(t, eng, "users", User(t, 1, "a", true), User(t, 2, "b", true))

	carol := User(t, 3, "Carol", false, "new")
	tx, err := eng.Begin(false)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if err := tx.ReplaceAll("users", []xbf.Record{carol}); err != nil {
		t.Fatalf("ReplaceAll failed: %v", err)
	}
	dave := User(t, 4, "Dave", true)
	if err := tx.Insert("users", dave); err != nil {
		t.Fatalf("Insert after ReplaceAll failed: %v", err)
	}
	if err := eng.Commit(tx); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	RequireRows(t, ScanAll(t, eng, "users"), carol, dave)

	tx, err = eng.Begin(false)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if err := tx.ReplaceAll("users", nil); err != nil {
		t.Fatalf("ReplaceAll(nil) failed: %v", err)
	}
	if err := eng.Commit(tx); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	RequireRows(t, ScanAll(t, eng, "users"))
}

func testClosedTx(t *testing.T, eng storage.Engine) {
	if err := eng.CreateTable("users", UsersSchema()); err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}
	tx, err := eng.Begin(false)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if err := eng.Commit(tx); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if err := eng.Commit(tx); !errors.Is(err, storage.ErrTxClosed) {
		t.Fatalf("second Commit: expected ErrTxClosed, got %v", err)
	}
	if err := eng.Rollback(tx); !errors.Is(err, storage.ErrTxClosed) {
		t.Fatalf("Rollback after Commit: expected ErrTxClosed, got %v", err)
	}
	if err := tx.Insert("users", User(t, 1, "a", true)); !errors.Is(err, storage.ErrTxClosed) {
		t.Fatalf("Insert after Commit: expected ErrTxClosed, got %v", err)
	}
}

func testListTables(t *testing.T, eng storage.Engine) {
	names, err := eng.ListTables()
	if err != nil {
		t.Fatalf("ListTables failed: %v", err)
	}
	if len(names) != 0 {
		t.Fatalf("expected no tables, got %v", names)
	}
	for _, name := range []string{"zeta", "alpha", "mid_1"} {
		if err := eng.CreateTable(name, UsersSchema()); err != nil {
			t.Fatalf("CreateTable(%s) failed: %v", name, err)
		}
	}
	names, err = eng.ListTables()
	if err != nil {
		t.Fatalf("ListTables failed: %v", err)
	}
	want := []string{"alpha", "mid_1", "zeta"}
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, names)
		}
	}
}
