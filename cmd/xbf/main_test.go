package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-quicktest/qt"
	"github.com/google/go-cmp/cmp"

	"goXBF/internal/schemaid"
	"goXBF/internal/xbf"
)

const usersSchema = `
name: user
fields:
  - {name: id, type: i64}
  - {name: name, type: string}
  - {name: active, type: bool}
  - {name: tags, type: {vec: string}}
`

const usersRows = `
- {id: 1, name: Alice, active: true, tags: [admin, ops]}
- {id: 2, name: Bob, active: false, tags: []}
- {id: 3, name: "007", active: true, tags: [x]}
`

// xbfCmd runs the tool against dataDir and returns stdout.
func xbfCmd(t *testing.T, dataDir string, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	full := append([]string{"--data-dir", dataDir, "--log-level", "error"}, args...)
	err := run(full, &stdout, &stderr)
	return stdout.String(), err
}

func mustRun(t *testing.T, dataDir string, args ...string) string {
	t.Helper()
	out, err := xbfCmd(t, dataDir, args...)
	qt.Assert(t, qt.IsNil(err), qt.Commentf("xbf %s", strings.Join(args, " ")))
	return out
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	qt.Assert(t, qt.IsNil(os.WriteFile(path, []byte(content), 0o644)))
	return path
}

func scanJSON(t *testing.T, dataDir string, args ...string) []map[string]any {
	t.Helper()
	out := mustRun(t, dataDir, append([]string{"table", "scan", "--out", "json"}, args...)...)
	var rows []map[string]any
	qt.Assert(t, qt.IsNil(json.Unmarshal([]byte(out), &rows)), qt.Commentf("output %q", out))
	return rows
}

func TestSchemaEncodeShowFingerprint(t *testing.T) {
	t.Setenv("XBF_CONFIG", "")
	dir := t.TempDir()
	schemaPath := writeFile(t, dir, "user.yaml", usersSchema)
	blobPath := filepath.Join(dir, "user.xbf")

	mustRun(t, dir, "schema", "encode", schemaPath, "-o", blobPath)
	blob, err := os.ReadFile(blobPath)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(blob[0], xbf.RecordDiscriminant))

	m, err := xbf.UnmarshalMetadata(blob)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(m.String(), "struct user { id: i64, name: string, active: bool, tags: vec<string> }"))

	// Fingerprints agree for the YAML document and its blob.
	fromYAML := mustRun(t, dir, "schema", "fingerprint", schemaPath)
	fromBlob := mustRun(t, dir, "schema", "fingerprint", blobPath)
	qt.Assert(t, qt.Equals(fromYAML, fromBlob))
	qt.Assert(t, qt.Equals(fromYAML, schemaid.Sum(blob).String()+"\n"))

	shown := mustRun(t, dir, "schema", "show", "--out", "yaml", blobPath)
	qt.Assert(t, qt.StringContains(shown, "name: user\n"))
	qt.Assert(t, qt.StringContains(shown, "vec: string"))

	// Encoding to stdout writes the raw blob.
	raw := mustRun(t, dir, "schema", "encode", schemaPath)
	qt.Assert(t, qt.Equals(raw, string(blob)))
}

func TestSchemaShowErrors(t *testing.T) {
	t.Setenv("XBF_CONFIG", "")
	dir := t.TempDir()

	bad := writeFile(t, dir, "bad.xbf", string([]byte{xbf.VecDiscriminant, 200}))
	_, err := xbfCmd(t, dir, "schema", "show", bad)
	qt.Assert(t, qt.ErrorMatches(err, `.*bad.xbf: xbf: decode metadata: unrecognized discriminant 200`))

	notSchema := writeFile(t, dir, "bad.yaml", "name: p\nfields: [{name: x, type: nope}]\n")
	_, err = xbfCmd(t, dir, "schema", "show", notSchema)
	qt.Assert(t, qt.ErrorMatches(err, `.*unknown type "nope".*`))

	_, err = xbfCmd(t, dir, "schema", "show", "--out", "xml", writeFile(t, dir, "ok.yaml", usersSchema))
	qt.Assert(t, qt.ErrorMatches(err, `bridge: unknown format "xml".*`))
}

func TestTableLifecycle(t *testing.T) {
	t.Setenv("XBF_CONFIG", "")
	dir := t.TempDir()
	data := filepath.Join(dir, "data")
	schemaPath := writeFile(t, dir, "user.yaml", usersSchema)
	rowsPath := writeFile(t, dir, "rows.yaml", usersRows)

	out := mustRun(t, data, "table", "create", "users", schemaPath)
	qt.Assert(t, qt.StringContains(out, "created users"))

	_, err := xbfCmd(t, data, "table", "create", "users", schemaPath)
	qt.Assert(t, qt.ErrorMatches(err, `.*table already exists.*`))

	out = mustRun(t, data, "table", "list")
	qt.Assert(t, qt.Equals(out, "users\tstruct user { id: i64, name: string, active: bool, tags: vec<string> }\n"))

	out = mustRun(t, data, "table", "insert", "users", rowsPath)
	qt.Assert(t, qt.Equals(out, "inserted 3 rows into users\n"))

	want := []map[string]any{
		{"id": 1.0, "name": "Alice", "active": true, "tags": []any{"admin", "ops"}},
		{"id": 2.0, "name": "Bob", "active": false, "tags": []any{}},
		{"id": 3.0, "name": "007", "active": true, "tags": []any{"x"}},
	}
	if diff := cmp.Diff(want, scanJSON(t, data, "users")); diff != "" {
		t.Fatalf("scan mismatch (-want +got):\n%s", diff)
	}

	// String fields match literally.
	got := scanJSON(t, data, "users", "--field", "name", "--equals", "007", "--fields", "id")
	if diff := cmp.Diff([]map[string]any{{"id": 3.0}}, got); diff != "" {
		t.Fatalf("filtered scan mismatch (-want +got):\n%s", diff)
	}

	out = mustRun(t, data, "table", "update", "users", "--field", "id", "--equals", "2", "--set", "tags", "--to", "[new]")
	qt.Assert(t, qt.Equals(out, "updated 1 rows in users\n"))

	out = mustRun(t, data, "table", "delete", "users", "--field", "active", "--equals", "true")
	qt.Assert(t, qt.Equals(out, "deleted 2 rows from users\n"))

	want = []map[string]any{
		{"id": 2.0, "name": "Bob", "active": false, "tags": []any{"new"}},
	}
	if diff := cmp.Diff(want, scanJSON(t, data, "users")); diff != "" {
		t.Fatalf("scan after delete mismatch (-want +got):\n%s", diff)
	}
}

func TestTableInsertRejectsBadRows(t *testing.T) {
	t.Setenv("XBF_CONFIG", "")
	dir := t.TempDir()
	data := filepath.Join(dir, "data")
	mustRun(t, data, "table", "create", "users", writeFile(t, dir, "user.yaml", usersSchema))

	bad := writeFile(t, dir, "bad.json", `[{"id": 1, "name": "a", "active": true, "tags": []}, {"id": "x", "name": "b", "active": true, "tags": []}]`)
	_, err := xbfCmd(t, data, "table", "insert", "users", bad)
	qt.Assert(t, qt.ErrorMatches(err, `.*row 1: .*invalid integer "x".*`))

	// Nothing from the failed file was stored.
	qt.Assert(t, qt.HasLen(scanJSON(t, data, "users"), 0))

	_, err = xbfCmd(t, data, "table", "delete", "users", "--field", "nope", "--equals", "1")
	qt.Assert(t, qt.ErrorMatches(err, `table schema user has no field "nope"`))

	_, err = xbfCmd(t, data, "table", "scan", "missing")
	qt.Assert(t, qt.ErrorMatches(err, `.*table does not exist.*`))
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "xbf.yaml", "data_dir: tables\noutput:\n  format: json\nlog:\n  level: warn\n")
	t.Setenv("XBF_CONFIG", cfgPath)

	var stdout, stderr bytes.Buffer
	err := run([]string{"table", "create", "users", writeFile(t, dir, "user.yaml", usersSchema)}, &stdout, &stderr)
	qt.Assert(t, qt.IsNil(err))

	// data_dir is resolved against the config file's directory.
	_, err = os.Stat(filepath.Join(dir, "tables", "users.xbft"))
	qt.Assert(t, qt.IsNil(err))

	stdout.Reset()
	err = run([]string{"table", "scan", "users"}, &stdout, &stderr)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(strings.TrimSpace(stdout.String()), "[]"))

	err = run([]string{"--log-level", "loud", "table", "list"}, &stdout, &stderr)
	qt.Assert(t, qt.ErrorMatches(err, `config: log.level: .*`))
}
