// Package loader turns function files into symbols.Function values. It
// reads just enough of each file to know which functions it defines, how
// they nest and what their signatures are.
package loader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/funvibe/symtab/internal/config"
	"github.com/funvibe/symtab/internal/symbols"
	"github.com/funvibe/symtab/internal/utils"
)

// Options configures a FileLoader.
type Options struct {
	// SystemRoot marks files under it as system files.
	SystemRoot string
	// Now stamps the parse time. Defaults to time.Now.
	Now    func() time.Time
	Logger *zap.Logger
}

type cached struct {
	mtime time.Time
	size  int64
	file  *File
}

// FileLoader loads .m files by outlining them and treats .oct and .mex
// files as opaque compiled functions. Outlines are cached by path until
// the file's modification time or size changes.
type FileLoader struct {
	systemRoot string
	now        func() time.Time
	logger     *zap.Logger
	cache      map[string]*cached
	parses     int
}

// New creates a FileLoader.
func New(opts Options) *FileLoader {
	l := &FileLoader{
		systemRoot: opts.SystemRoot,
		now:        opts.Now,
		logger:     opts.Logger,
		cache:      make(map[string]*cached),
	}
	if l.now == nil {
		l.now = time.Now
	}
	if l.logger == nil {
		l.logger = zap.NewNop()
	}
	l.logger = l.logger.Named("loader")
	return l
}

// Parses counts the files actually read, for tests and diagnostics.
func (l *FileLoader) Parses() int { return l.parses }

// Outline returns the parsed outline of file, reading it only if it
// changed since the last call.
func (l *FileLoader) Outline(file string) (*File, error) {
	fi, err := os.Stat(file)
	if err != nil {
		return nil, &symbols.LoadError{File: file, Err: err}
	}
	if c, ok := l.cache[file]; ok && c.mtime.Equal(fi.ModTime()) && c.size == fi.Size() {
		return c.file, nil
	}

	src, err := os.ReadFile(file)
	if err != nil {
		return nil, &symbols.LoadError{File: file, Err: err}
	}
	l.parses++
	pf, err := Parse(src)
	if err != nil {
		var se *SyntaxError
		if errors.As(err, &se) {
			return nil, &symbols.LoadError{File: file, Line: se.Line, Reason: se.Msg}
		}
		return nil, &symbols.LoadError{File: file, Err: err}
	}
	l.cache[file] = &cached{mtime: fi.ModTime(), size: fi.Size(), file: pf}
	return pf, nil
}

// Forget drops the cached outline of file.
func (l *FileLoader) Forget(file string) { delete(l.cache, file) }

// Load implements symbols.Loader.
func (l *FileLoader) Load(req symbols.LoadRequest) (*symbols.Function, error) {
	if !config.HasFunctionFileExt(req.File) {
		return nil, &symbols.LoadError{File: req.File, Reason: "not a function file"}
	}

	name := utils.FunctionName(req.File)
	now := l.now()
	fn := &symbols.Function{
		Name:          name,
		Package:       req.Package,
		File:          req.File,
		Dir:           req.Dir,
		DispatchClass: req.DispatchType,
		CanonicalName: req.CanonicalName,
		TimeParsed:    now,
		TimeChecked:   now,
		Relative:      !filepath.IsAbs(req.File),
	}
	if fn.Dir == "" {
		fn.Dir = filepath.Dir(req.File)
	}
	if fn.CanonicalName == "" {
		fn.CanonicalName = fn.FullName()
	}
	if abs, err := filepath.Abs(req.File); err == nil {
		fn.System = utils.IsUnder(abs, l.systemRoot)
	}

	// Compiled functions carry no outline.
	if filepath.Ext(req.File) != config.FunctionFileExt {
		if _, err := os.Stat(req.File); err != nil {
			return nil, &symbols.LoadError{File: req.File, Err: err}
		}
		return fn, nil
	}

	pf, err := l.Outline(req.File)
	if err != nil {
		return nil, err
	}

	switch pf.Kind {
	case KindScript:
		fn.Script = true
		fn.Text = pf.Source
	case KindFunction:
		primary := pf.Functions[0]
		if primary.Name != name {
			l.logger.Warn("function name does not agree with function filename",
				zap.String("function", primary.Name), zap.String("file", req.File))
		}
		fill(fn, primary)
		for _, sub := range pf.Functions[1:] {
			fn.Subfunctions = append(fn.Subfunctions, build(sub))
		}
	case KindClassdef:
		cls := pf.Class
		if cls.Name != name {
			return nil, &symbols.LoadError{File: req.File, Line: cls.Line,
				Reason: fmt.Sprintf("classdef %s must be defined in %s%s", cls.Name, cls.Name, config.FunctionFileExt)}
		}
		fn.ClassdefConstructor = true
		fn.SuperClasses = cls.Parents
		for _, m := range cls.Methods {
			if m.Name == cls.Name {
				fn.Params = m.Params
				fn.Outputs = m.Outputs
			}
		}
		for _, sub := range pf.Functions {
			fn.Subfunctions = append(fn.Subfunctions, build(sub))
		}
	}

	l.logger.Debug("loaded",
		zap.String("file", req.File),
		zap.Stringer("kind", pf.Kind),
		zap.Int("subfunctions", len(fn.Subfunctions)))
	return fn, nil
}

// Method builds the function for one method of a classdef outline.
func Method(decl *FuncDecl, class, file string, parsed time.Time) *symbols.Function {
	fn := build(decl)
	fn.DispatchClass = class
	fn.File = file
	fn.Dir = filepath.Dir(file)
	fn.CanonicalName = class + "." + decl.Name
	fn.TimeParsed = parsed
	fn.TimeChecked = parsed
	return fn
}

func fill(fn *symbols.Function, decl *FuncDecl) {
	fn.Params = decl.Params
	fn.Outputs = decl.Outputs
	fn.Text = decl.Text
	for _, nf := range decl.Nested {
		fn.Nested = append(fn.Nested, build(nf))
	}
}

func build(decl *FuncDecl) *symbols.Function {
	fn := &symbols.Function{Name: decl.Name}
	fill(fn, decl)
	return fn
}
