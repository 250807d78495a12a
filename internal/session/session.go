// Package session assembles a symbol registry and everything it consults
// from a settings file: search path, loader, class manager, autoload index,
// staleness oracle and breakpoint table.
package session

import (
	"context"
	"fmt"
	"os"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/funvibe/symtab/internal/autoload"
	"github.com/funvibe/symtab/internal/classdef"
	"github.com/funvibe/symtab/internal/config"
	"github.com/funvibe/symtab/internal/debug"
	"github.com/funvibe/symtab/internal/loader"
	"github.com/funvibe/symtab/internal/loadpath"
	"github.com/funvibe/symtab/internal/symbols"
	"github.com/funvibe/symtab/internal/timestamp"
	"github.com/funvibe/symtab/internal/value"
)

// Session owns one registry and its collaborators. Like the registry it
// is meant for a single goroutine; only the optional watcher runs on its
// own, and it only marks the search path dirty.
type Session struct {
	Settings    *config.Settings
	Registry    *symbols.Registry
	Path        *loadpath.LoadPath
	Loader      *loader.FileLoader
	Classes     *classdef.Manager
	Oracle      *timestamp.Oracle
	Breakpoints *debug.Table

	// Autoloads holds the entries from the settings file.
	Autoloads *autoload.Map
	// Index is the persistent autoload table, nil without a database.
	Index *autoload.SQLiteIndex

	watcher *loadpath.Watcher
	logger  *zap.Logger
}

// The registry's own commands are always present as built-ins.
var introspection = []string{
	config.CurrentScopeFuncName,
	config.DumpSymtabInfoFuncName,
	config.GetCmdlineFcnTxtName,
	config.IgnoreTimeStampFuncName,
}

// Option customizes a Session.
type Option func(*options)

type options struct {
	oracle *timestamp.Oracle
}

// WithOracle replaces the wall-clock oracle, for tests.
func WithOracle(o *timestamp.Oracle) Option {
	return func(opts *options) { opts.oracle = o }
}

// Open builds a session from settings.
func Open(ctx context.Context, settings *config.Settings, logger *zap.Logger, opts ...Option) (*Session, error) {
	if settings == nil {
		settings = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.oracle == nil {
		o.oracle = timestamp.New()
	}

	mode, err := timestamp.ParseMode(settings.IgnoreFunctionTimeStamp)
	if err != nil {
		return nil, err
	}

	lp := loadpath.New(settings.Path, logger)
	if err := lp.Update(); err != nil {
		return nil, fmt.Errorf("scanning search path: %w", err)
	}

	ld := loader.New(loader.Options{
		SystemRoot: settings.SystemRoot,
		Now:        o.oracle.Now,
		Logger:     logger,
	})
	classes := classdef.New(lp, ld, logger)
	classes.SetClock(o.oracle.Now)

	s := &Session{
		Settings:    settings,
		Path:        lp,
		Loader:      ld,
		Classes:     classes,
		Oracle:      o.oracle,
		Breakpoints: debug.NewTable(),
		Autoloads:   autoload.NewMap(settings.Autoload.Entries),
		logger:      logger,
	}

	index := autoload.Chain{s.Autoloads}
	if settings.Autoload.Database != "" {
		s.Index, err = autoload.Open(ctx, settings.Autoload.Database, logger)
		if err != nil {
			return nil, err
		}
		index = append(index, s.Index)
	}

	s.Registry = symbols.New(symbols.Options{
		Resolver:      lp,
		Loader:        ld,
		Oracle:        o.oracle,
		Autoloads:     index,
		Classes:       classes,
		Breakpoints:   s.Breakpoints,
		Logger:        logger,
		TimestampMode: mode,
	})
	classes.Attach(s.Registry)
	for _, name := range introspection {
		s.Registry.InstallBuiltin(symbols.NewBuiltin(name))
	}

	logger.Debug("session opened",
		zap.Stringer("registry", s.Registry.ID()),
		zap.Strings("path", lp.Dirs()),
		zap.Stringer("timestamps", mode))
	return s, nil
}

// Prompt marks the start of a new command. The search path picks up
// directory changes and functions loaded before now are checked against
// their files again on next use.
func (s *Session) Prompt() {
	if err := s.Path.Update(); err != nil {
		s.logger.Warn("search path update failed", zap.Error(err))
	}
	s.Registry.MarkPrompt()
}

// Chdir changes the working directory and invalidates functions that
// were found through relative paths.
func (s *Session) Chdir(dir string) error {
	if err := os.Chdir(dir); err != nil {
		return err
	}
	s.Registry.MarkChdir()
	return nil
}

// Which resolves name the way a call would. classes, when given, are the
// classes of the call's arguments. With builtinOnly a built-in of that name
// wins over everything else and class dispatch is skipped. A nil function
// with a nil error means undefined; an error means a definition was found
// but is illegal.
func (s *Session) Which(name string, classes []string, builtinOnly bool) (*symbols.Function, error) {
	if builtinOnly {
		return s.Registry.ResolveBuiltin(name)
	}
	args := make([]value.Value, 0, len(classes))
	for _, c := range classes {
		args = append(args, value.Sample(c))
	}
	return s.Registry.Resolve(name, args, false)
}

// Watch starts a filesystem watcher over the search path. onChange, if
// not nil, runs on the watcher goroutine after each change.
func (s *Session) Watch(ctx context.Context, onChange func(path string)) error {
	if s.watcher != nil {
		return nil
	}
	w, err := loadpath.NewWatcher(s.Path, s.logger, func(ev fsnotify.Event) {
		if onChange != nil {
			onChange(ev.Name)
		}
	})
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	if err := w.Start(ctx); err != nil {
		return err
	}
	s.watcher = w
	return nil
}

// Close stops the watcher and closes the autoload database.
func (s *Session) Close() error {
	var err error
	if s.watcher != nil {
		s.watcher.Stop()
		s.watcher = nil
	}
	if s.Index != nil {
		err = s.Index.Close()
		s.Index = nil
	}
	s.Registry.Cleanup()
	return err
}
