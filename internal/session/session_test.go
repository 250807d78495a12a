package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/funvibe/symtab/internal/config"
	"github.com/funvibe/symtab/internal/symbols"
	"github.com/funvibe/symtab/internal/timestamp"
)

type env struct {
	t     *testing.T
	root  string
	clock *timestamp.ManualClock
	start time.Time
}

func newEnv(t *testing.T) *env {
	start := time.Now().Truncate(time.Second)
	return &env{t: t, root: t.TempDir(), clock: timestamp.NewManualClock(start), start: start}
}

// write creates a file under root with the given modification time.
func (e *env) write(rel, src string, mtime time.Time) string {
	e.t.Helper()
	path := filepath.Join(e.root, rel)
	require.NoError(e.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(e.t, os.WriteFile(path, []byte(src), 0o644))
	require.NoError(e.t, os.Chtimes(path, mtime, mtime))
	return path
}

func (e *env) open(settings *config.Settings) *Session {
	e.t.Helper()
	s, err := Open(context.Background(), settings, zaptest.NewLogger(e.t),
		WithOracle(timestamp.NewWithClock(e.clock.Now)))
	require.NoError(e.t, err)
	e.t.Cleanup(func() { s.Close() })
	return s
}

// which resolves name and fails the test on an error.
func which(t *testing.T, s *Session, name string, classes []string, builtinOnly bool) *symbols.Function {
	t.Helper()
	fn, err := s.Which(name, classes, builtinOnly)
	require.NoError(t, err)
	return fn
}

func (e *env) dir(rel string) string {
	path := filepath.Join(e.root, rel)
	require.NoError(e.t, os.MkdirAll(path, 0o755))
	return path
}

func TestReloadAfterEdit(t *testing.T) {
	e := newEnv(t)
	file := e.write("lib/foo.m", "function y = foo (x)\n  y = x;\nend\n", e.start.Add(-time.Minute))
	s := e.open(&config.Settings{Path: []string{e.dir("lib")}, IgnoreFunctionTimeStamp: "none"})

	fn := which(t, s, "foo", nil, false)
	require.NotNil(t, fn)
	assert.Equal(t, file, fn.File)
	assert.Equal(t, symbols.PathFunction, fn.Category)
	assert.Equal(t, []string{"x"}, fn.Params)
	s.Breakpoints.Add("foo", 2)

	e.write("lib/foo.m", "function y = foo (x, z)\n  y = x + z;\nend\n", e.start.Add(30*time.Second))
	assert.Same(t, fn, which(t, s, "foo", nil, false), "no recheck before the next prompt")

	e.clock.Advance(time.Minute)
	s.Prompt()
	reloaded := which(t, s, "foo", nil, false)
	require.NotNil(t, reloaded)
	assert.NotSame(t, fn, reloaded)
	assert.Equal(t, []string{"x", "z"}, reloaded.Params)
	assert.Empty(t, s.Breakpoints.Lines("foo"), "reloading clears breakpoints")
}

func TestIgnoreAllTimestamps(t *testing.T) {
	e := newEnv(t)
	e.write("lib/foo.m", "function foo ()\nend\n", e.start.Add(-time.Minute))
	s := e.open(&config.Settings{Path: []string{e.dir("lib")}, IgnoreFunctionTimeStamp: "all"})

	fn := which(t, s, "foo", nil, false)
	require.NotNil(t, fn)
	e.write("lib/foo.m", "function foo (x)\nend\n", e.start.Add(30*time.Second))
	e.clock.Advance(time.Minute)
	s.Prompt()
	assert.Same(t, fn, which(t, s, "foo", nil, false))

	prev, err := s.Registry.SetTimestampMode("none")
	require.NoError(t, err)
	assert.Equal(t, "all", prev)
	e.clock.Advance(time.Minute)
	s.Prompt()
	assert.Equal(t, []string{"x"}, which(t, s, "foo", nil, false).Params)
}

func TestShadowingFileWins(t *testing.T) {
	e := newEnv(t)
	front := e.dir("front")
	e.write("back/foo.m", "function foo ()\nend\n", e.start.Add(-time.Minute))
	s := e.open(&config.Settings{Path: []string{front, e.dir("back")}, IgnoreFunctionTimeStamp: "none"})

	fn := which(t, s, "foo", nil, false)
	require.NotNil(t, fn)
	assert.Equal(t, filepath.Join(e.root, "back", "foo.m"), fn.File)

	shadow := e.write("front/foo.m", "function foo ()\nend\n", e.start)
	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(front, later, later))
	e.clock.Advance(time.Minute)
	s.Prompt()

	fn = which(t, s, "foo", nil, false)
	require.NotNil(t, fn)
	assert.Equal(t, shadow, fn.File)
}

func TestMethodDispatchAndBuiltins(t *testing.T) {
	e := newEnv(t)
	e.write("lib/@Shape/area.m", "function a = area (s)\n  a = 0;\nend\n", e.start)
	e.write("lib/area.m", "function a = area (x)\n  a = x;\nend\n", e.start)
	s := e.open(&config.Settings{Path: []string{e.dir("lib")}})

	fn := which(t, s, "area", []string{"Shape"}, false)
	require.NotNil(t, fn)
	assert.Equal(t, filepath.Join(e.root, "lib", "@Shape", "area.m"), fn.File)
	assert.Equal(t, symbols.ClassMethod, fn.Category)

	fn = which(t, s, "area", []string{"double"}, false)
	require.NotNil(t, fn)
	assert.Equal(t, filepath.Join(e.root, "lib", "area.m"), fn.File)

	builtin := which(t, s, config.DumpSymtabInfoFuncName, nil, true)
	require.NotNil(t, builtin)
	assert.True(t, builtin.IsBuiltin())

	// Without a built-in of that name the path function is next; class
	// methods are never considered.
	fn = which(t, s, "area", []string{"Shape"}, true)
	require.NotNil(t, fn)
	assert.Equal(t, symbols.PathFunction, fn.Category)
	assert.Equal(t, filepath.Join(e.root, "lib", "area.m"), fn.File)
	assert.Nil(t, which(t, s, "nosuch", nil, true))
}

func TestAutoloads(t *testing.T) {
	e := newEnv(t)
	fromSettings := e.write("extra/helper.m", "function helper ()\nend\n", e.start)
	fromDB := e.write("extra/stored.m", "function stored ()\nend\n", e.start)
	s := e.open(&config.Settings{
		Path: []string{e.dir("lib")},
		Autoload: config.AutoloadSettings{
			Database: filepath.Join(e.root, "state", "autoload.db"),
			Entries:  map[string]string{"helper": fromSettings},
		},
	})

	fn := which(t, s, "helper", nil, false)
	require.NotNil(t, fn)
	assert.Equal(t, symbols.Autoload, fn.Category)
	assert.Equal(t, fromSettings, fn.File)

	assert.Nil(t, which(t, s, "stored", nil, false))
	require.NoError(t, s.Index.Add(context.Background(), "stored", fromDB))
	fn = which(t, s, "stored", nil, false)
	require.NotNil(t, fn)
	assert.Equal(t, fromDB, fn.File)
}

func TestOpenFromSettingsFile(t *testing.T) {
	e := newEnv(t)
	e.write("proj/lib/foo.m", "function foo ()\nend\n", e.start)
	cfgPath := e.write("proj/symtab.yaml", "path:\n  - lib\nignore_function_time_stamp: none\n", e.start)

	settings, err := config.LoadSettings(cfgPath)
	require.NoError(t, err)
	s := e.open(settings)
	assert.Equal(t, "none", s.Registry.TimestampMode())
	fn := which(t, s, "foo", nil, false)
	require.NotNil(t, fn)
	assert.Equal(t, filepath.Join(e.root, "proj", "lib", "foo.m"), fn.File)
}

func TestOpenRejectsBadMode(t *testing.T) {
	_, err := Open(context.Background(), &config.Settings{IgnoreFunctionTimeStamp: "sometimes"}, nil)
	require.ErrorIs(t, err, timestamp.ErrInvalidMode)
}

func TestChdirMarksEpoch(t *testing.T) {
	e := newEnv(t)
	t.Chdir(e.root)
	s := e.open(nil)

	e.clock.Advance(time.Second)
	require.NoError(t, s.Chdir(e.dir("elsewhere")))
	assert.Equal(t, e.clock.Now(), s.Oracle.LastChdirTime())
	require.Error(t, s.Chdir(filepath.Join(e.root, "missing")))
}

func TestWatch(t *testing.T) {
	defer goleak.VerifyNone(t)

	e := newEnv(t)
	lib := e.dir("lib")
	s, err := Open(context.Background(), &config.Settings{Path: []string{lib}}, zaptest.NewLogger(t))
	require.NoError(t, err)

	changed := make(chan string, 16)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Watch(ctx, func(path string) {
		select {
		case changed <- path:
		default:
		}
	}))
	require.NoError(t, s.Watch(ctx, nil), "second call is a no-op")

	file := e.write("lib/fresh.m", "function fresh ()\nend\n", time.Now())
	select {
	case path := <-changed:
		assert.Equal(t, file, path)
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}
	assert.True(t, s.Path.Dirty())

	s.Prompt()
	assert.NotNil(t, which(t, s, "fresh", nil, false))
	require.NoError(t, s.Close())
}
