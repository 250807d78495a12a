package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/funvibe/symtab/internal/config"
	"github.com/funvibe/symtab/internal/symbols"
)

// project writes a symtab.yaml with a one-directory search path and
// returns the settings file.
func project(t *testing.T, database bool) string {
	t.Helper()
	root := t.TempDir()
	lib := filepath.Join(root, "lib")
	require.NoError(t, os.MkdirAll(filepath.Join(lib, "@shape"), 0o755))
	files := map[string]string{
		"foo.m":         "function y = foo (x)\n  y = bar (x);\nend\n\nfunction r = bar (x)\n  r = x;\nend\n",
		"setup.m":       "x = 1;\n",
		"@shape/area.m": "function a = area (s)\n  a = 0;\nend\n",
	}
	for name, src := range files {
		require.NoError(t, os.WriteFile(filepath.Join(lib, name), []byte(src), 0o644))
	}

	yaml := "path:\n  - lib\nlog:\n  level: error\n"
	if database {
		yaml += "autoload:\n  database: state/autoload.db\n"
	}
	cfg := filepath.Join(root, "symtab.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte(yaml), 0o644))
	return cfg
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	err := cmd.Execute()
	return out.String(), err
}

func TestWhich(t *testing.T) {
	cfg := project(t, false)
	lib := filepath.Join(filepath.Dir(cfg), "lib")

	out, err := run(t, "", "--config", cfg, "which", "foo", "setup", "foo>bar")
	require.NoError(t, err)
	assert.Contains(t, out, "'foo' is a function on path from the file "+filepath.Join(lib, "foo.m"))
	assert.Contains(t, out, "'setup' is a script from the file "+filepath.Join(lib, "setup.m"))
	assert.Contains(t, out, "'foo>bar' is a subfunction")

	out, err = run(t, "", "--config", cfg, "which", "area", "--class", "shape")
	require.NoError(t, err)
	assert.Contains(t, out, "class method from the file "+filepath.Join(lib, "@shape", "area.m"))

	out, err = run(t, "", "--config", cfg, "which", "--builtin", "__current_scope__")
	require.NoError(t, err)
	assert.Equal(t, "'__current_scope__' is a built-in function\n", out)

	out, err = run(t, "", "--config", cfg, "which", "--builtin", "foo", "area")
	require.Error(t, err)
	assert.Contains(t, out, "'foo' is a function on path from the file "+filepath.Join(lib, "foo.m"))
	assert.Contains(t, out, "'area' is undefined", "--builtin never dispatches to class methods")

	out, err = run(t, "", "--config", cfg, "which", "nope")
	require.Error(t, err)
	assert.Contains(t, out, "'nope' is undefined")
}

func TestExtraPathShadows(t *testing.T) {
	cfg := project(t, false)
	front := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(front, "foo.m"), []byte("function foo ()\nend\n"), 0o644))

	out, err := run(t, "", "--config", cfg, "--path", front, "which", "foo")
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(front, "foo.m"))
}

func TestDump(t *testing.T) {
	cfg := project(t, false)

	out, err := run(t, "", "--config", cfg, "dump", "functions", "--load", "foo")
	require.NoError(t, err)
	assert.Contains(t, out, "*** dumping globally visible functions")
	assert.Contains(t, out, "foo")
	assert.NotContains(t, out, "\x1b[", "no color when not writing to a terminal")

	out, err = run(t, "", "--config", cfg, "dump")
	require.NoError(t, err)
	assert.Contains(t, out, "*** symbol table ")

	_, err = run(t, "", "--config", cfg, "dump", "999")
	require.ErrorIs(t, err, symbols.ErrInvalidScope)
	_, err = run(t, "", "--config", cfg, "dump", "everything")
	require.Error(t, err)
}

func TestTimestamp(t *testing.T) {
	cfg := project(t, false)

	out, err := run(t, "", "--config", cfg, "timestamp")
	require.NoError(t, err)
	assert.Equal(t, "system\n", out)

	out, err = run(t, "", "--config", cfg, "timestamp", "none")
	require.NoError(t, err)
	assert.Equal(t, "system\n", out, "prints the previous mode")

	// Later commands start from the recorded mode.
	out, err = run(t, "", "--config", cfg, "timestamp")
	require.NoError(t, err)
	assert.Equal(t, "none\n", out)
	settings, err := config.LoadSettings(cfg)
	require.NoError(t, err)
	assert.Equal(t, "none", settings.IgnoreFunctionTimeStamp)
	assert.Equal(t, "error", settings.Log.Level, "rest of the file is kept")

	_, err = run(t, "", "--config", cfg, "timestamp", "sometimes")
	require.Error(t, err)
	out, err = run(t, "", "--config", cfg, "timestamp")
	require.NoError(t, err)
	assert.Equal(t, "none\n", out)

	out, err = run(t, "", "--config", cfg, "which", "foo")
	require.NoError(t, err)
	assert.Contains(t, out, "'foo' is a function on path")
}

func TestTimestampWithoutSettingsFile(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := run(t, "", "timestamp", "all")
	require.ErrorIs(t, err, errNoSettingsFile)
}

func TestAutoload(t *testing.T) {
	cfg := project(t, true)
	extra := filepath.Join(t.TempDir(), "helper.m")
	require.NoError(t, os.WriteFile(extra, []byte("function helper ()\nend\n"), 0o644))

	_, err := run(t, "", "--config", cfg, "autoload", "add", "helper", extra)
	require.NoError(t, err)

	out, err := run(t, "", "--config", cfg, "autoload", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "helper")
	assert.Contains(t, out, extra)

	out, err = run(t, "", "--config", cfg, "which", "helper")
	require.NoError(t, err)
	assert.Contains(t, out, "autoload function from the file "+extra)

	_, err = run(t, "", "--config", cfg, "autoload", "remove", "helper")
	require.NoError(t, err)
	_, err = run(t, "", "--config", cfg, "autoload", "remove", "helper")
	require.Error(t, err)
}

func TestAutoloadWithoutDatabase(t *testing.T) {
	cfg := project(t, false)
	_, err := run(t, "", "--config", cfg, "autoload", "add", "x", "/tmp/x.m")
	require.ErrorIs(t, err, errNoDatabase)
}

func TestWatchResolvesStdin(t *testing.T) {
	cfg := project(t, false)

	out, err := run(t, "foo\n\nmissing\n", "--config", cfg, "watch")
	require.NoError(t, err)
	assert.Contains(t, out, "'foo' is a function on path")
	assert.Contains(t, out, "'missing' is undefined")
}

func TestHeaderWriter(t *testing.T) {
	var buf bytes.Buffer
	w := &headerWriter{w: &buf}
	n, err := w.Write([]byte("*** title\n  body\n*** last"))
	require.NoError(t, err)
	assert.Equal(t, 25, n)
	assert.Equal(t, ansiBold+"*** title"+ansiReset+"\n  body\n"+ansiBold+"*** last"+ansiReset, buf.String())
}
