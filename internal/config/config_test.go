package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-quicktest/qt"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	return writeConfigAs(t, "xbf.yaml", content)
}

func writeConfigAs(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	qt.Assert(t, qt.IsNil(cfg.Validate()))
	qt.Assert(t, qt.Equals(cfg.MaxDepth, 64))
	qt.Assert(t, qt.Equals(cfg.Output.Format, "yaml"))

	level, err := cfg.LogLevel()
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(level, slog.LevelInfo))
}

func TestLoadWithoutFile(t *testing.T) {
	t.Setenv(EnvVar, "")
	cfg, err := Load("")
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.DeepEquals(cfg, Default()))
}

func TestLoadFromEnv(t *testing.T) {
	path := writeConfig(t, "max_depth: 8\nlog:\n  level: debug\n")
	t.Setenv(EnvVar, path)

	cfg, err := Load("")
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(cfg.MaxDepth, 8))
	qt.Assert(t, qt.Equals(cfg.Log.Level, "debug"))
	// Unset keys keep their defaults.
	qt.Assert(t, qt.Equals(cfg.Output.Format, "yaml"))
	qt.Assert(t, qt.Equals(cfg.DataDir, "./data"))
}

func TestLoadResolvesDataDir(t *testing.T) {
	path := writeConfig(t, "data_dir: tables\n")
	cfg, err := Load(path)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(cfg.DataDir, filepath.Join(filepath.Dir(path), "tables")))

	t.Setenv("XBF_TEST_ROOT", "/srv/xbf")
	path = writeConfig(t, "data_dir: ${XBF_TEST_ROOT}/db\n")
	cfg, err = Load(path)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(cfg.DataDir, "/srv/xbf/db"))
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
		err     string
	}{
		{"format", "output:\n  format: xml\n", `.*output.format: bridge: unknown format "xml".*`},
		{"level", "log:\n  level: loud\n", `.*log.level: .*`},
		{"store", "store: s3\n", `.*store must be file or memory, got "s3"`},
		{"syntax", "max_depth: [\n", `config: parse .*`},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := LoadFile(writeConfig(t, test.content))
			qt.Assert(t, qt.ErrorMatches(err, test.err))
		})
	}
}

func TestLoadTOML(t *testing.T) {
	path := writeConfigAs(t, "xbf.toml", `
data_dir = "tables"
store = "memory"

[output]
format = "json"
`)
	cfg, err := Load(path)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(cfg.Store, "memory"))
	qt.Assert(t, qt.Equals(cfg.Output.Format, "json"))
	qt.Assert(t, qt.Equals(cfg.DataDir, filepath.Join(filepath.Dir(path), "tables")))
	// Unset keys keep their defaults.
	qt.Assert(t, qt.Equals(cfg.MaxDepth, 64))
	qt.Assert(t, qt.Equals(cfg.Log.Level, "info"))

	_, err = LoadFile(writeConfigAs(t, "bad.toml", "max_depth = [\n"))
	qt.Assert(t, qt.ErrorMatches(err, `config: parse .*`))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	qt.Assert(t, qt.ErrorIs(err, os.ErrNotExist))
}
