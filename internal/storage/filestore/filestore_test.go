package filestore

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"goXBF/internal/storage"
	"goXBF/internal/storage/storagetest"
	"goXBF/internal/xbf"
)

func openEngine(t *testing.T, dir string, opts ...Option) *FileEngine {
	t.Helper()
	fs, err := New(dir, opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { fs.Close() })
	return fs
}

func TestFilestoreContract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Engine {
		return openEngine(t, t.TempDir())
	})
}

// Basic: create table, verify file exists, read schema.
func TestFilestore_CreateTableAndSchema(t *testing.T) {
	dir := t.TempDir()
	fs := openEngine(t, dir)

	if err := fs.CreateTable("users", storagetest.UsersSchema()); err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}

	tables, err := fs.ListTables()
	if err != nil {
		t.Fatalf("ListTables failed: %v", err)
	}
	if len(tables) != 1 || tables[0] != "users" {
		t.Fatalf("unexpected tables: %v", tables)
	}

	// And file must exist, starting with the table magic.
	data, err := os.ReadFile(filepath.Join(dir, "users.xbft"))
	if err != nil {
		t.Fatalf("table file not created: %v", err)
	}
	if !bytes.HasPrefix(data, []byte(fileMagic)) {
		t.Fatalf("table file does not start with %q", fileMagic)
	}

	// A fresh engine reads the schema back from the header.
	fs.Close()
	fs2 := openEngine(t, dir)
	schema, err := fs2.TableSchema("users")
	if err != nil {
		t.Fatalf("TableSchema failed: %v", err)
	}
	if !schema.Equal(storagetest.UsersSchema()) {
		t.Fatalf("unexpected schema: %v", schema)
	}
}

// ListTables ignores files that are not tables.
func TestFilestore_ListTablesIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	fs := openEngine(t, dir)
	if err := fs.CreateTable("b", storagetest.UsersSchema()); err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "dir.xbft"), 0o755); err != nil {
		t.Fatal(err)
	}
	tables, err := fs.ListTables()
	if err != nil {
		t.Fatalf("ListTables failed: %v", err)
	}
	if len(tables) != 1 || tables[0] != "b" {
		t.Fatalf("unexpected tables: %v", tables)
	}
}

// Insert enough rows to spill over several pages and read them back, in
// order, after a reopen.
func TestFilestore_InsertSpansPages(t *testing.T) {
	dir := t.TempDir()
	fs := openEngine(t, dir)
	if err := fs.CreateTable("users", storagetest.UsersSchema()); err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}

	var want []xbf.Record
	long := strings.Repeat("x", 300)
	for i := 0; i < 40; i++ {
		want = append(want, storagetest.User(t, int64(i), fmt.Sprintf("user-%d-%s", i, long), i%2 == 0, "t1", "t2"))
	}
	// Two transactions so the second one has to continue the last page.
	storagetest.Insert(t, fs, "users", want[:15]...)
	storagetest.Insert(t, fs, "users", want[15:]...)

	info, err := os.Stat(filepath.Join(dir, "users.xbft"))
	if err != nil {
		t.Fatal(err)
	}
	hdr, err := fs.header("users")
	if err != nil {
		t.Fatal(err)
	}
	if pages := (info.Size() - hdr.size) / PageSize; pages < 3 {
		t.Fatalf("expected rows to span several pages, got %d", pages)
	}

	storagetest.RequireRows(t, storagetest.ScanAll(t, fs, "users"), want...)

	fs.Close()
	fs2 := openEngine(t, dir)
	storagetest.RequireRows(t, storagetest.ScanAll(t, fs2, "users"), want...)
}

func TestFilestore_RowTooLarge(t *testing.T) {
	fs := openEngine(t, t.TempDir())
	if err := fs.CreateTable("users", storagetest.UsersSchema()); err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}
	tx, err := fs.Begin(false)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	defer fs.Rollback(tx)

	big := storagetest.User(t, 1, strings.Repeat("y", PageSize), true)
	if err := tx.Insert("users", big); err == nil {
		t.Fatalf("expected error for row larger than a page")
	}
}

// Rollback must not touch the table file.
func TestFilestore_RollbackLeavesFileUntouched(t *testing.T) {
	dir := t.TempDir()
	fs := openEngine(t, dir)
	if err := fs.CreateTable("users", storagetest.UsersSchema()); err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}
	storagetest.Insert(t, fs, "users", storagetest.User(t, 1, "Alice", true))

	path := filepath.Join(dir, "users.xbft")
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	tx, err := fs.Begin(false)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if err := tx.Insert("users", storagetest.User(t, 2, "Bob", false)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := fs.Rollback(tx); err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(before, after) {
		t.Fatalf("table file changed by a rolled-back transaction")
	}
}

func TestFilestore_ForeignTx(t *testing.T) {
	a := openEngine(t, t.TempDir())
	b := openEngine(t, t.TempDir())
	tx, err := a.Begin(false)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if err := b.Commit(tx); err == nil {
		t.Fatalf("expected error committing a transaction from another engine")
	}
	if err := a.Commit(tx); err != nil {
		t.Fatalf("Commit on owning engine failed: %v", err)
	}
	if err := a.Commit(nil); err == nil {
		t.Fatalf("expected error for nil transaction")
	}
}

func TestFilestore_CorruptHeaderFailsOpen(t *testing.T) {
	dir := t.TempDir()
	fs := openEngine(t, dir)
	if err := fs.CreateTable("users", storagetest.UsersSchema()); err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}
	fs.Close()

	path := filepath.Join(dir, "users.xbft")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	data[len(data)-1] ^= 0xFF // flip a byte of the schema blob
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := New(dir); err == nil {
		t.Fatalf("expected New to fail on a corrupt table header")
	}
}
