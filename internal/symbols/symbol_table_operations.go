package symbols

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/funvibe/symtab/internal/config"
	"github.com/funvibe/symtab/internal/value"
)

// Find resolves name from the current scope: a variable unless
// skipVariables, otherwise a function. A nil result means undefined.
func (r *Registry) Find(name string, args []value.Value, skipVariables, localFuncs bool) value.Value {
	s := r.scopes[r.currentScope]
	if s == nil {
		return nil
	}
	return s.find(name, args, skipVariables, localFuncs)
}

// findFcn consults the function cache. A new cache entry is only kept
// when the lookup through it found something.
func (r *Registry) findFcn(name string, args []value.Value, localFuncs bool) *Function {
	r.fatal = nil
	if fi, ok := r.fcnTable[name]; ok {
		return fi.Find(args, localFuncs)
	}
	fi := newFcnInfo(r, name)
	fn := fi.Find(args, localFuncs)
	if fn != nil {
		r.fcnTable[name] = fi
	}
	return fn
}

// withFcnInfo runs lookup on the entry for name, creating a transient
// entry that is kept only if lookup succeeded.
func (r *Registry) withFcnInfo(name string, lookup func(*FcnInfo) *Function) *Function {
	r.fatal = nil
	if fi, ok := r.fcnTable[name]; ok {
		return lookup(fi)
	}
	fi := newFcnInfo(r, name)
	fn := lookup(fi)
	if fn != nil {
		r.fcnTable[name] = fi
	}
	return fn
}

// fcnInfo returns the entry for name, creating and storing it.
func (r *Registry) fcnInfo(name string) *FcnInfo {
	fi, ok := r.fcnTable[name]
	if !ok {
		fi = newFcnInfo(r, name)
		r.fcnTable[name] = fi
	}
	return fi
}

// FindFunction resolves a function name, skipping variables. Besides plain
// names it accepts "@class/method" for a class method and "parent>sub"
// for a subfunction of parent.
func (r *Registry) FindFunction(name string, args []value.Value, localFuncs bool) *Function {
	if strings.HasPrefix(name, config.ClassDirPrefix) {
		rest := name[1:]
		class := rest
		method := ""
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			class = rest[:i]
		}
		if i := strings.LastIndexByte(name, '/'); i >= 0 {
			method = name[i+1:]
		}
		return r.FindMethod(method, class)
	}

	i := strings.IndexByte(name, config.FileMarker)
	if i < 0 {
		v := r.Find(name, args, true, localFuncs)
		fn, _ := v.(*Function)
		return fn
	}
	return r.findInParent(name[:i], name[i+1:], args)
}

// findInParent resolves sub as seen from inside the function parent.
func (r *Registry) findInParent(parentName, sub string, args []value.Value) *Function {
	stored := r.currentScope
	defer func() { r.currentScope = stored }()

	r.currentScope = TopScope
	parent := r.FindFunction(parentName, nil, false)
	if parent == nil {
		return nil
	}
	r.currentScope = parent.scope
	if r.currentScope <= TopScope {
		return nil
	}
	return r.FindFunction(sub, args, true)
}

// Resolve is FindFunction for callers that must tell "undefined" apart
// from a definition that exists but is illegal. The error is a
// *DeclarationError wrapped with the file that was being loaded.
func (r *Registry) Resolve(name string, args []value.Value, localFuncs bool) (*Function, error) {
	r.fatal = nil
	fn := r.FindFunction(name, args, localFuncs)
	if err := r.fatal; err != nil {
		r.fatal = nil
		return nil, err
	}
	return fn, nil
}

// ResolveBuiltin is BuiltinFind with the same error reporting as Resolve.
func (r *Registry) ResolveBuiltin(name string) (*Function, error) {
	r.fatal = nil
	fn := r.BuiltinFind(name)
	if err := r.fatal; err != nil {
		r.fatal = nil
		return nil, err
	}
	return fn, nil
}

// FindSubmethod resolves "@class/method>sub".
func (r *Registry) FindSubmethod(name, dispatchType string) *Function {
	full := config.ClassDirPrefix + dispatchType + "/" + name
	i := strings.IndexByte(full, config.FileMarker)
	if i < 0 {
		return nil
	}
	return r.findInParent(full[:i], full[i+1:], nil)
}

// FindMethod resolves the method name of class dispatchType.
func (r *Registry) FindMethod(name, dispatchType string) *Function {
	return r.withFcnInfo(name, func(fi *FcnInfo) *Function { return fi.FindMethod(dispatchType) })
}

// BuiltinFind resolves name with built-ins taking priority over everything.
func (r *Registry) BuiltinFind(name string) *Function {
	return r.withFcnInfo(name, (*FcnInfo).BuiltinFind)
}

// FindBuiltinFunction returns the built-in itself, never loading anything.
func (r *Registry) FindBuiltinFunction(name string) *Function {
	if fi, ok := r.fcnTable[name]; ok {
		return fi.builtin
	}
	return nil
}

func (r *Registry) FindAutoload(name string) *Function {
	return r.withFcnInfo(name, (*FcnInfo).FindAutoload)
}

func (r *Registry) FindCmdlineFunction(name string) *Function {
	if fi, ok := r.fcnTable[name]; ok {
		return fi.cmdline
	}
	return nil
}

func (r *Registry) FindUserFunction(name string) *Function {
	return r.withFcnInfo(name, (*FcnInfo).FindUserFunction)
}

// InstallBuiltin registers a built-in function under its full name.
func (r *Registry) InstallBuiltin(fn *Function) {
	fn.Category = BuiltIn
	r.fcnInfo(fn.FullName()).installBuiltin(fn)
}

// InstallCmdlineFunction registers a function typed at the prompt,
// replacing any earlier definition. Command-line functions have no file
// and are never reloaded.
func (r *Registry) InstallCmdlineFunction(fn *Function) error {
	fn.Category = CommandLine
	if err := r.LoadedFunction(fn); err != nil {
		return fmt.Errorf("installing %s: %w", fn.FullName(), err)
	}
	r.fcnInfo(fn.FullName()).installCmdline(fn)
	return nil
}

// InstallSubfunction makes fn visible as name from scope and the scopes
// nested below it.
func (r *Registry) InstallSubfunction(name string, fn *Function, scope ScopeID) {
	r.fcnInfo(name).installSubfunction(fn, scope)
}

// InstallNestFunction installs fn as a subfunction of parentScope and
// links its scope into the nest tree so that UpdateNest can share
// variables between them.
func (r *Registry) InstallNestFunction(name string, fn *Function, parentScope ScopeID) error {
	parent := r.scopes[parentScope]
	if parent == nil {
		return ErrInvalidScope
	}
	if !r.owns(fn) {
		fn.Category = Subfunction
		fn.parentScope = parentScope
		r.AllocScope(fn, "")
	}
	r.InstallSubfunction(name, fn, parentScope)
	if child := r.scopes[fn.scope]; child != nil && child.nestParent != parentScope {
		parent.addNestChild(child)
	}
	fn.nested = true
	return nil
}

// ClearFunction forgets the user-defined versions of name: the autoload,
// path and command-line slots, unless locked.
func (r *Registry) ClearFunction(name string) {
	r.ClearUserFunction(name)
}

func (r *Registry) ClearUserFunction(name string) {
	if fi, ok := r.fcnTable[name]; ok {
		fi.clearUserFunction(false)
	}
}

// ClearFunctionPattern clears user functions whose names match a glob.
func (r *Registry) ClearFunctionPattern(pattern string) {
	for name, fi := range r.fcnTable {
		if ok, _ := path.Match(pattern, name); ok {
			fi.clearUserFunction(false)
		}
	}
}

// ClearFunctions clears every file-backed slot of every entry.
func (r *Registry) ClearFunctions(force bool) {
	for _, fi := range r.fcnTable {
		fi.clear(force)
	}
}

// ClearAll clears the current scope's variables, all globals and all
// functions.
func (r *Registry) ClearAll(force bool) {
	if s := r.scopes[r.currentScope]; s != nil {
		s.ClearVariables()
	}
	r.ClearGlobalPattern("*")
	r.ClearFunctions(force)
}

// Mlock locks the function name against non-forced clears.
func (r *Registry) Mlock(name string) error {
	fn := r.FindFunction(name, nil, true)
	if fn == nil {
		return fmt.Errorf("mlock: '%s': %w", name, ErrNoSuchFunction)
	}
	fn.Lock()
	return nil
}

func (r *Registry) Munlock(name string) error {
	fn := r.FindFunction(name, nil, true)
	if fn == nil {
		return fmt.Errorf("munlock: '%s': %w", name, ErrNoSuchFunction)
	}
	fn.Unlock()
	return nil
}

func (r *Registry) IsLocked(name string) bool {
	fn := r.FindFunction(name, nil, true)
	return fn != nil && fn.IsLocked()
}

// LockSubfunctions locks every subfunction defined in scope.
func (r *Registry) LockSubfunctions(scope ScopeID) {
	for _, fi := range r.fcnTable {
		if fn, ok := fi.subfunctions[scope]; ok {
			fn.Lock()
		}
	}
}

func (r *Registry) UnlockSubfunctions(scope ScopeID) {
	for _, fi := range r.fcnTable {
		if fn, ok := fi.subfunctions[scope]; ok {
			fn.Unlock()
		}
	}
}

// UserFunctionNames lists names with a function loaded from the path.
func (r *Registry) UserFunctionNames() []string {
	return r.namesWhere(func(fi *FcnInfo) bool { return fi.onPath != nil })
}

func (r *Registry) BuiltinFunctionNames() []string {
	return r.namesWhere(func(fi *FcnInfo) bool { return fi.builtin != nil })
}

func (r *Registry) CmdlineFunctionNames() []string {
	return r.namesWhere(func(fi *FcnInfo) bool { return fi.cmdline != nil })
}

// SubfunctionsDefinedInScope lists the subfunctions installed for scope.
func (r *Registry) SubfunctionsDefinedInScope(scope ScopeID) []string {
	return r.namesWhere(func(fi *FcnInfo) bool {
		_, ok := fi.subfunctions[scope]
		return ok
	})
}

// StashDirNameForSubfunctions records dir as the directory of every
// subfunction of scope.
func (r *Registry) StashDirNameForSubfunctions(scope ScopeID, dir string) {
	for _, fi := range r.fcnTable {
		if fn, ok := fi.subfunctions[scope]; ok {
			fn.Dir = dir
		}
	}
}

// MarkSubfunctionsInScopeAsPrivate marks the subfunctions of a private
// function file private as well.
func (r *Registry) MarkSubfunctionsInScopeAsPrivate(scope ScopeID, class string) {
	for _, fi := range r.fcnTable {
		if fn, ok := fi.subfunctions[scope]; ok {
			fn.MarkPrivate(class)
		}
	}
}

// CmdlineFunctionText returns the source of a command-line function.
func (r *Registry) CmdlineFunctionText(name string) (string, bool) {
	fn := r.FindCmdlineFunction(name)
	if fn == nil {
		return "", false
	}
	return fn.Text, true
}

func (r *Registry) namesWhere(pred func(*FcnInfo) bool) []string {
	var names []string
	for name, fi := range r.fcnTable {
		if pred(fi) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
