package symbols

import "time"

// The symbol table never touches the filesystem, the parser or the class
// system directly. Everything it needs from the outside world comes through
// the narrow interfaces below; New substitutes inert implementations for
// any that are left nil.

// Resolver maps names to candidate files on the search path.
// An empty file name means "not found".
type Resolver interface {
	// FindFcn locates NAME (inside package PKG when non-empty) and returns
	// the file and the path element it was found under.
	FindFcn(name, pkg string) (file, dir string)
	// FindMethod locates a method of CLASS in an @CLASS directory.
	FindMethod(class, name, pkg string) (file, dir string)
	// FindPrivateFcn looks in DIR/private.
	FindPrivateFcn(dir, name string) string
	// Update rescans the filesystem.
	Update() error
}

// LoadRequest describes one file to turn into a Function.
type LoadRequest struct {
	File         string
	Dir          string
	DispatchType string
	Package      string
	// CanonicalName overrides the name derived from the file (autoloads).
	CanonicalName string
	Autoload      bool
}

// Loader parses a function file. It fails on parse errors, permission
// errors and missing files.
type Loader interface {
	Load(req LoadRequest) (*Function, error)
}

// Oracle answers the time questions behind the staleness check.
type Oracle interface {
	Now() time.Time
	LastPromptTime() time.Time
	LastChdirTime() time.Time
	FileModTime(path string) (time.Time, bool)
	SameFile(a, b string) bool
}

// AutoloadIndex maps a name to the file registered for it.
type AutoloadIndex interface {
	Lookup(name string) string
}

// ClassManager resolves symbols owned by classdef classes and packages.
type ClassManager interface {
	FindMethodSymbol(name, class string) *Function
	FindPackageSymbol(fullName string) *Function
}

// Breakpoints is the part of the debugger the cache has to keep in sync.
type Breakpoints interface {
	RemoveAllInFile(canonicalName string)
}

type epochMarker interface {
	MarkPrompt()
	MarkChdir()
}

type nopResolver struct{}

func (nopResolver) FindFcn(string, string) (string, string)            { return "", "" }
func (nopResolver) FindMethod(string, string, string) (string, string) { return "", "" }
func (nopResolver) FindPrivateFcn(string, string) string               { return "" }
func (nopResolver) Update() error                                      { return nil }

type nopLoader struct{}

func (nopLoader) Load(req LoadRequest) (*Function, error) {
	return nil, &LoadError{File: req.File, Reason: "no loader configured"}
}

type wallOracle struct{}

func (wallOracle) Now() time.Time            { return time.Now() }
func (wallOracle) LastPromptTime() time.Time { return time.Time{} }
func (wallOracle) LastChdirTime() time.Time  { return time.Time{} }
func (wallOracle) FileModTime(string) (time.Time, bool) {
	return time.Time{}, false
}
func (wallOracle) SameFile(a, b string) bool { return a == b }

type nopAutoloads struct{}

func (nopAutoloads) Lookup(string) string { return "" }

type nopClasses struct{}

func (nopClasses) FindMethodSymbol(string, string) *Function { return nil }
func (nopClasses) FindPackageSymbol(string) *Function        { return nil }

type nopBreakpoints struct{}

func (nopBreakpoints) RemoveAllInFile(string) {}
