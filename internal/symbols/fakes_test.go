package symbols

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/funvibe/symtab/internal/debug"
	"github.com/funvibe/symtab/internal/timestamp"
)

// fakeFile is a function file in the in-memory filesystem used by the
// registry tests.
type fakeFile struct {
	mtime    time.Time
	system   bool
	relative bool
	broken   bool
	illegal  bool
	classdef bool
	// build adds subfunctions or nested functions to each freshly loaded
	// copy.
	build func(fn *Function)
}

// fakeEnv plays every collaborator of the registry: search path, loader,
// autoload index, clock and breakpoint table.
type fakeEnv struct {
	*timestamp.Oracle
	clock *timestamp.ManualClock

	files     map[string]*fakeFile
	path      map[string]string
	methods   map[string]string
	private   map[string]string
	autoloads map[string]string

	loads   int
	updates int
	bps     *debug.Table
}

func newFakeEnv() *fakeEnv {
	clock := timestamp.NewManualClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	return &fakeEnv{
		Oracle:    timestamp.NewWithClock(clock.Now),
		clock:     clock,
		files:     make(map[string]*fakeFile),
		path:      make(map[string]string),
		methods:   make(map[string]string),
		private:   make(map[string]string),
		autoloads: make(map[string]string),
		bps:       debug.NewTable(),
	}
}

func (e *fakeEnv) registry(t *testing.T) *Registry {
	t.Helper()
	return New(Options{
		Resolver:      e,
		Loader:        e,
		Oracle:        e,
		Autoloads:     e,
		Breakpoints:   e.bps,
		Logger:        zaptest.NewLogger(t),
		TimestampMode: timestamp.IgnoreNone,
	})
}

// addFile creates a file last modified one second ago.
func (e *fakeEnv) addFile(file string) *fakeFile {
	f := &fakeFile{mtime: e.clock.Now().Add(-time.Second)}
	e.files[file] = f
	return f
}

func (e *fakeEnv) onPath(name, file string) *fakeFile {
	e.path[name] = file
	return e.addFile(file)
}

// method registers file as @class/name.
func (e *fakeEnv) method(class, name, file string) *fakeFile {
	e.methods[class+"/"+name] = file
	return e.addFile(file)
}

// touch moves the clock forward and stamps file with the new time.
func (e *fakeEnv) touch(file string) {
	e.clock.Advance(time.Second)
	e.files[file].mtime = e.clock.Now()
}

// prompt moves the clock forward and records a prompt.
func (e *fakeEnv) prompt() {
	e.clock.Advance(time.Second)
	e.MarkPrompt()
}

func (e *fakeEnv) FindFcn(name, pkg string) (string, string) {
	if pkg != "" {
		name = pkg + "." + name
	}
	file := e.path[name]
	if file == "" {
		return "", ""
	}
	return file, filepath.Dir(file)
}

func (e *fakeEnv) FindMethod(class, name, pkg string) (string, string) {
	file := e.methods[class+"/"+name]
	if file == "" {
		return "", ""
	}
	return file, filepath.Dir(file)
}

func (e *fakeEnv) FindPrivateFcn(dir, name string) string {
	return e.private[dir+"/"+name]
}

func (e *fakeEnv) Update() error {
	e.updates++
	return nil
}

func (e *fakeEnv) Lookup(name string) string { return e.autoloads[name] }

func (e *fakeEnv) Load(req LoadRequest) (*Function, error) {
	e.loads++
	f, ok := e.files[req.File]
	if !ok {
		return nil, &LoadError{File: req.File, Reason: "no such file"}
	}
	if f.broken {
		return nil, &LoadError{File: req.File, Line: 1, Reason: "parse error"}
	}
	if f.illegal {
		decl := &DeclarationError{Name: "x", Reason: "can't make nested function variable global"}
		return nil, &LoadError{File: req.File, Line: 2, Err: decl}
	}
	name := strings.TrimSuffix(filepath.Base(req.File), filepath.Ext(req.File))
	now := e.clock.Now()
	fn := &Function{
		Name:                name,
		Package:             req.Package,
		File:                req.File,
		Dir:                 req.Dir,
		DispatchClass:       req.DispatchType,
		CanonicalName:       name,
		TimeParsed:          now,
		TimeChecked:         now,
		Relative:            f.relative,
		System:              f.system,
		ClassdefConstructor: f.classdef,
	}
	if req.CanonicalName != "" {
		fn.CanonicalName = req.CanonicalName
	}
	if f.build != nil {
		f.build(fn)
	}
	return fn, nil
}

func (e *fakeEnv) FileModTime(path string) (time.Time, bool) {
	f, ok := e.files[path]
	if !ok {
		return time.Time{}, false
	}
	return f.mtime, true
}

func (e *fakeEnv) SameFile(a, b string) bool { return a == b }
