package loader

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/funvibe/symtab/internal/symbols"
)

func write(t *testing.T, path, src string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func fixedNow() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }

func TestLoadFunctionFile(t *testing.T) {
	dir := t.TempDir()
	file := write(t, filepath.Join(dir, "area.m"), `function a = area (w, h)
  a = w * scale (h);
  function s = scale (v)
    s = v;
  end
end

function r = helper ()
  r = 1;
end
`)
	l := New(Options{Now: fixedNow})
	fn, err := l.Load(symbols.LoadRequest{File: file, Dir: dir})
	require.NoError(t, err)

	assert.Equal(t, "area", fn.Name)
	assert.Equal(t, "area", fn.CanonicalName)
	assert.Equal(t, dir, fn.Dir)
	assert.Equal(t, []string{"w", "h"}, fn.Params)
	assert.Equal(t, []string{"a"}, fn.Outputs)
	assert.Equal(t, fixedNow(), fn.TimeParsed)
	assert.Equal(t, fixedNow(), fn.TimeChecked)
	assert.False(t, fn.Relative)
	assert.False(t, fn.Script)
	assert.Contains(t, fn.Text, "function a = area (w, h)")

	require.Len(t, fn.Nested, 1)
	assert.Equal(t, "scale", fn.Nested[0].Name)
	require.Len(t, fn.Subfunctions, 1)
	assert.Equal(t, "helper", fn.Subfunctions[0].Name)
	assert.Equal(t, []string{"r"}, fn.Subfunctions[0].Outputs)
}

func TestLoadPackageFunction(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "+geom")
	file := write(t, filepath.Join(dir, "dist.m"), "function d = dist (p, q)\n  d = norm (p - q);\n")

	fn, err := New(Options{}).Load(symbols.LoadRequest{File: file, Dir: dir, Package: "geom"})
	require.NoError(t, err)
	assert.Equal(t, "geom", fn.Package)
	assert.Equal(t, "geom.dist", fn.CanonicalName)
}

func TestLoadScript(t *testing.T) {
	dir := t.TempDir()
	src := "x = 1;\ndisp (x)\n"
	file := write(t, filepath.Join(dir, "setup.m"), src)

	fn, err := New(Options{}).Load(symbols.LoadRequest{File: file})
	require.NoError(t, err)
	assert.True(t, fn.Script)
	assert.Equal(t, src, fn.Text)
	assert.Equal(t, dir, fn.Dir, "directory defaults to the file's")
}

func TestLoadClassdef(t *testing.T) {
	dir := t.TempDir()
	file := write(t, filepath.Join(dir, "Point.m"), `classdef Point < handle & Base
  properties
    x
  end
  methods
    function obj = Point (x)
      obj.x = x;
    end
    function d = norm (obj)
      d = abs (obj.x);
    end
  end
end

function r = util ()
  r = 0;
end
`)
	l := New(Options{Now: fixedNow})
	fn, err := l.Load(symbols.LoadRequest{File: file, Dir: dir})
	require.NoError(t, err)
	assert.True(t, fn.ClassdefConstructor)
	assert.Equal(t, []string{"handle", "Base"}, fn.SuperClasses)
	assert.Equal(t, []string{"x"}, fn.Params)
	assert.Equal(t, []string{"obj"}, fn.Outputs)
	require.Len(t, fn.Subfunctions, 1)
	assert.Equal(t, "util", fn.Subfunctions[0].Name)

	pf, err := l.Outline(file)
	require.NoError(t, err)
	m := Method(pf.Class.Methods[1], "Point", file, fixedNow())
	assert.Equal(t, "norm", m.Name)
	assert.Equal(t, "Point", m.DispatchClass)
	assert.Equal(t, "Point.norm", m.CanonicalName)
	assert.Equal(t, dir, m.Dir)
	assert.Equal(t, 1, l.Parses(), "outline should come from the cache")
}

func TestLoadClassdefNameMismatch(t *testing.T) {
	file := write(t, filepath.Join(t.TempDir(), "Shape.m"), "classdef Circle\nend\n")

	_, err := New(Options{}).Load(symbols.LoadRequest{File: file})
	var le *symbols.LoadError
	require.True(t, errors.As(err, &le), "got %v", err)
	assert.Equal(t, 1, le.Line)
	assert.Contains(t, le.Reason, "Circle.m")
}

func TestLoadNameMismatchWarns(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	file := write(t, filepath.Join(t.TempDir(), "bar.m"), "function foo ()\nend\n")

	fn, err := New(Options{Logger: zap.New(core)}).Load(symbols.LoadRequest{File: file})
	require.NoError(t, err)
	assert.Equal(t, "bar", fn.Name, "the file name wins")
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "foo", logs.All()[0].ContextMap()["function"])
}

func TestLoadSyntaxError(t *testing.T) {
	file := write(t, filepath.Join(t.TempDir(), "broken.m"), "function broken ()\n  if true\n    x = 1;\n  for i = 1:2\n  end\n")

	_, err := New(Options{}).Load(symbols.LoadRequest{File: file})
	var le *symbols.LoadError
	require.True(t, errors.As(err, &le), "got %v", err)
	assert.Equal(t, file, le.File)
	assert.Equal(t, 2, le.Line)
	assert.Contains(t, le.Error(), "missing its end")
}

func TestLoadMissingFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "gone.m")
	_, err := New(Options{}).Load(symbols.LoadRequest{File: file})
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = New(Options{}).Load(symbols.LoadRequest{File: filepath.Join(t.TempDir(), "notes.txt")})
	var le *symbols.LoadError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, "not a function file", le.Reason)
}

func TestLoadCompiledFile(t *testing.T) {
	dir := t.TempDir()
	file := write(t, filepath.Join(dir, "fast.oct"), "\x7fELF not really")

	l := New(Options{})
	fn, err := l.Load(symbols.LoadRequest{File: file, Dir: dir})
	require.NoError(t, err)
	assert.Equal(t, "fast", fn.Name)
	assert.Empty(t, fn.Text)
	assert.Zero(t, l.Parses(), "compiled files are not outlined")
}

func TestLoadSystemAndRelative(t *testing.T) {
	root := t.TempDir()
	file := write(t, filepath.Join(root, "scripts", "general", "sum2.m"), "function s = sum2 (x)\n  s = x;\n")

	fn, err := New(Options{SystemRoot: root}).Load(symbols.LoadRequest{File: file})
	require.NoError(t, err)
	assert.True(t, fn.System)

	fn, err = New(Options{SystemRoot: filepath.Join(root, "elsewhere")}).Load(symbols.LoadRequest{File: file})
	require.NoError(t, err)
	assert.False(t, fn.System)

	t.Chdir(filepath.Join(root, "scripts"))
	fn, err = New(Options{}).Load(symbols.LoadRequest{File: filepath.Join("general", "sum2.m")})
	require.NoError(t, err)
	assert.True(t, fn.Relative)
}

func TestOutlineCache(t *testing.T) {
	file := write(t, filepath.Join(t.TempDir(), "f.m"), "function f ()\nend\n")
	l := New(Options{})

	first, err := l.Outline(file)
	require.NoError(t, err)
	second, err := l.Outline(file)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, l.Parses())

	write(t, file, "function f (x)\nend\n")
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(file, later, later))
	third, err := l.Outline(file)
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, third.Functions[0].Params)
	assert.Equal(t, 2, l.Parses())

	l.Forget(file)
	_, err = l.Outline(file)
	require.NoError(t, err)
	assert.Equal(t, 3, l.Parses())
}
