// Package classdef serves the methods declared inside classdef blocks and
// the functions that live in packages.
package classdef

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/funvibe/symtab/internal/loader"
	"github.com/funvibe/symtab/internal/symbols"
	"github.com/funvibe/symtab/internal/utils"
)

// Outliner loads function files and exposes their outlines.
type Outliner interface {
	symbols.Loader
	Outline(file string) (*loader.File, error)
}

// Registrar is the part of the registry a Manager reports to.
type Registrar interface {
	LoadedFunction(fn *symbols.Function) error
	AddToParentMap(class string, parents []string)
}

// Class is a classdef class known to the manager.
type Class struct {
	Name       string
	File       string
	Parents    []string
	Properties []string
	Methods    map[string]*symbols.Function

	outline *loader.File
}

// Manager implements symbols.ClassManager on top of a search path and a
// file loader. Classes are read on first use and reread when their file's
// outline changes.
type Manager struct {
	resolver symbols.Resolver
	loader   Outliner
	registry Registrar
	now      func() time.Time
	logger   *zap.Logger

	classes map[string]*Class
}

// New creates a Manager. Attach must be called before the manager is
// used by a registry.
func New(resolver symbols.Resolver, ld Outliner, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		resolver: resolver,
		loader:   ld,
		now:      time.Now,
		logger:   logger.Named("classdef"),
		classes:  make(map[string]*Class),
	}
}

// Attach connects the manager to the registry that adopts its functions.
func (m *Manager) Attach(r Registrar) { m.registry = r }

// SetClock replaces the clock used to stamp loaded methods.
func (m *Manager) SetClock(now func() time.Time) { m.now = now }

// Class returns the classdef class named name, loading it if needed. It
// returns nil if name is not a classdef class.
func (m *Manager) Class(name string) *Class {
	pkg, base := utils.SplitQualified(name)

	file, _ := m.resolver.FindMethod(base, base, pkg)
	if file == "" {
		file, _ = m.resolver.FindFcn(base, pkg)
	}
	if file == "" {
		delete(m.classes, name)
		return nil
	}

	pf, err := m.loader.Outline(file)
	if err != nil {
		m.logger.Debug("cannot outline class file", zap.String("class", name), zap.Error(err))
		delete(m.classes, name)
		return nil
	}
	if cls, ok := m.classes[name]; ok && cls.File == file && cls.outline == pf {
		return cls
	}
	if pf.Kind != loader.KindClassdef {
		delete(m.classes, name)
		return nil
	}

	cls, err := m.build(name, file, pf)
	if err != nil {
		m.logger.Debug("cannot load class", zap.String("class", name), zap.Error(err))
		delete(m.classes, name)
		return nil
	}
	m.classes[name] = cls
	return cls
}

func (m *Manager) build(name, file string, pf *loader.File) (*Class, error) {
	cls := &Class{
		Name:       name,
		File:       file,
		Parents:    pf.Class.Parents,
		Properties: pf.Class.Properties,
		Methods:    make(map[string]*symbols.Function),
		outline:    pf,
	}

	parsed := m.now()
	for _, decl := range pf.Class.Methods {
		// The constructor is found through the search path.
		if decl.Name == pf.Class.Name {
			continue
		}
		fn := loader.Method(decl, name, file, parsed)
		fn.Category = symbols.ClassMethod
		if m.registry != nil {
			if err := m.registry.LoadedFunction(fn); err != nil {
				return nil, fmt.Errorf("method %s.%s: %w", name, decl.Name, err)
			}
		}
		cls.Methods[decl.Name] = fn
	}

	if m.registry != nil {
		m.registry.AddToParentMap(name, cls.Parents)
	}
	m.logger.Debug("loaded class",
		zap.String("class", name),
		zap.Strings("parents", cls.Parents),
		zap.Int("methods", len(cls.Methods)))
	return cls, nil
}

// FindMethodSymbol implements symbols.ClassManager. It looks at the
// methods block of class and then at those of its ancestors.
func (m *Manager) FindMethodSymbol(name, class string) *symbols.Function {
	return m.findMethod(name, class, make(map[string]bool))
}

func (m *Manager) findMethod(name, class string, seen map[string]bool) *symbols.Function {
	if seen[class] {
		return nil
	}
	seen[class] = true

	cls := m.Class(class)
	if cls == nil {
		return nil
	}
	if fn, ok := cls.Methods[name]; ok {
		return fn
	}
	for _, parent := range cls.Parents {
		if fn := m.findMethod(name, parent, seen); fn != nil {
			return fn
		}
	}
	return nil
}

// FindPackageSymbol implements symbols.ClassManager for names of the form
// pkg.name.
func (m *Manager) FindPackageSymbol(fullName string) *symbols.Function {
	pkg, name := utils.SplitQualified(fullName)
	if pkg == "" {
		return nil
	}

	file, dir := m.resolver.FindFcn(name, pkg)
	if file == "" {
		return nil
	}
	fn, err := m.loader.Load(symbols.LoadRequest{File: file, Dir: dir, Package: pkg})
	if err != nil {
		m.logger.Debug("cannot load package function", zap.String("name", fullName), zap.Error(err))
		return nil
	}
	fn.Category = symbols.Package
	if m.registry != nil {
		if err := m.registry.LoadedFunction(fn); err != nil {
			m.logger.Debug("cannot load package function", zap.String("name", fullName), zap.Error(err))
			return nil
		}
	}
	return fn
}

// Classes lists the names of the classes loaded so far.
func (m *Manager) Classes() []string {
	names := make([]string, 0, len(m.classes))
	for name := range m.classes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
