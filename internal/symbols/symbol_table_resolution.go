package symbols

import (
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/funvibe/symtab/internal/utils"
	"github.com/funvibe/symtab/internal/value"
)

// FcnInfo caches every kind of callable known under one name. Each
// category has its own slot; private functions, subfunctions and class
// methods are keyed by directory, scope and dispatch type.
type FcnInfo struct {
	registry *Registry
	name     string
	pkg      string

	subfunctions      map[ScopeID]*Function
	privateFunctions  map[string]*Function
	classConstructors map[string]*Function
	classMethods      map[string]*Function

	cmdline  *Function
	autoload *Function
	onPath   *Function
	pkgFcn   *Function
	builtin  *Function
}

func newFcnInfo(r *Registry, fullName string) *FcnInfo {
	pkg, name := utils.SplitQualified(fullName)
	return &FcnInfo{
		registry:          r,
		name:              name,
		pkg:               pkg,
		subfunctions:      make(map[ScopeID]*Function),
		privateFunctions:  make(map[string]*Function),
		classConstructors: make(map[string]*Function),
		classMethods:      make(map[string]*Function),
	}
}

func (fi *FcnInfo) Name() string    { return fi.name }
func (fi *FcnInfo) Package() string { return fi.pkg }

func (fi *FcnInfo) FullName() string {
	if fi.pkg == "" {
		return fi.name
	}
	return fi.pkg + "." + fi.name
}

// Find resolves the name for a call with args. When nothing is found the
// search path is rescanned once and the lookup retried.
func (fi *FcnInfo) Find(args []value.Value, localFuncs bool) *Function {
	if fn := fi.xfind(args, localFuncs); fn != nil || fi.halted() {
		return fn
	}
	fi.registry.updatePath()
	return fi.xfind(args, localFuncs)
}

func (fi *FcnInfo) xfind(args []value.Value, localFuncs bool) *Function {
	r := fi.registry

	if localFuncs {
		if fn := fi.findSubfunction(); fn != nil {
			return fn
		}
		if fn := fi.findPrivate(); fn != nil || fi.halted() {
			return fn
		}
	}

	// Class methods need an argument to dispatch on.
	if len(args) > 0 {
		if dt := r.DispatchType(args); dt != "" {
			if fn := fi.FindMethod(dt); fn != nil || fi.halted() {
				return fn
			}
		}
	}

	// Class constructors share the class name.
	if fn := fi.findClassConstructor(); fn != nil || fi.halted() {
		return fn
	}

	if fi.cmdline != nil {
		return fi.cmdline
	}

	if fn := fi.FindAutoload(); fn != nil || fi.halted() {
		return fn
	}

	if fn := fi.FindUserFunction(); fn != nil || fi.halted() {
		return fn
	}

	if fn := fi.findPackage(); fn != nil || fi.halted() {
		return fn
	}

	return fi.builtin
}

// BuiltinFind is the lookup behind "which built-in is this". Built-ins win
// outright and class dispatch is never consulted; this order differs from
// Find on purpose.
func (fi *FcnInfo) BuiltinFind() *Function {
	if fn := fi.xBuiltinFind(); fn != nil || fi.halted() {
		return fn
	}
	fi.registry.updatePath()
	return fi.xBuiltinFind()
}

func (fi *FcnInfo) xBuiltinFind() *Function {
	if fi.builtin != nil {
		return fi.builtin
	}
	if fn := fi.FindUserFunction(); fn != nil || fi.halted() {
		return fn
	}
	if fn := fi.FindAutoload(); fn != nil || fi.halted() {
		return fn
	}
	if fi.cmdline != nil {
		return fi.cmdline
	}
	if fn := fi.findPrivate(); fn != nil || fi.halted() {
		return fn
	}
	return fi.findSubfunction()
}

// halted reports whether a fatal load error has stopped the lookup.
func (fi *FcnInfo) halted() bool { return fi.registry.fatal != nil }

// findSubfunction walks from the current scope through each enclosing
// function's parent scope.
func (fi *FcnInfo) findSubfunction() *Function {
	r := fi.registry
	for scope := r.currentScope; scope >= 0; {
		if fn, ok := fi.subfunctions[scope]; ok {
			return fn
		}
		curr := r.currFcn(scope)
		if curr == nil || curr.parentScope == scope {
			break
		}
		scope = curr.parentScope
	}
	return nil
}

// findPrivate looks in the private directory next to the file of the
// running function.
func (fi *FcnInfo) findPrivate() *Function {
	r := fi.registry
	curr := r.currFcn(r.currentScope)
	if curr == nil || curr.Dir == "" {
		return nil
	}
	dir := curr.Dir

	if old, ok := fi.privateFunctions[dir]; ok {
		fn := fi.check(old, "", false, func(f *Function) { setSlot(fi.privateFunctions, dir, f) })
		if fn != nil {
			return fn
		}
	}
	return fi.loadPrivateFunction(dir)
}

func (fi *FcnInfo) loadPrivateFunction(dir string) *Function {
	r := fi.registry
	file := r.resolver.FindPrivateFcn(dir, fi.name)
	if file == "" {
		return nil
	}
	fn := r.load(LoadRequest{File: file, Dir: dir}, PrivateFunction)
	if fn == nil {
		return nil
	}

	// A private directory inside @class belongs to that class.
	class, _ := utils.ClassFromDir(dir)
	fn.MarkPrivate(class)
	fi.privateFunctions[dir] = fn
	return fn
}

// FindMethod resolves the method for dispatchType, loading it on first use.
func (fi *FcnInfo) FindMethod(dispatchType string) *Function {
	return fi.findMethod(dispatchType, map[string]bool{})
}

func (fi *FcnInfo) findMethod(dispatchType string, seen map[string]bool) *Function {
	if old, ok := fi.classMethods[dispatchType]; ok {
		fn := fi.check(old, dispatchType, true, func(f *Function) { setSlot(fi.classMethods, dispatchType, f) })
		if fn != nil {
			return fn
		}
	}
	return fi.loadClassMethod(dispatchType, seen)
}

func (fi *FcnInfo) loadClassMethod(dispatchType string, seen map[string]bool) *Function {
	r := fi.registry
	if fi.FullName() == dispatchType {
		return fi.loadClassConstructor()
	}
	seen[dispatchType] = true

	// Methods defined inside a classdef block are owned by the class
	// manager and are not cached here.
	if fn := r.classes.FindMethodSymbol(fi.name, dispatchType); fn != nil {
		return fn
	}

	if file, dir := r.resolver.FindMethod(dispatchType, fi.name, ""); file != "" {
		if fn := r.load(LoadRequest{File: file, Dir: dir, DispatchType: dispatchType}, ClassMethod); fn != nil {
			fi.classMethods[dispatchType] = fn
			return fn
		}
		if fi.halted() {
			return nil
		}
	}

	for _, parent := range r.ParentClasses(dispatchType) {
		if seen[parent] {
			continue
		}
		fn := fi.findMethod(parent, seen)
		if fi.halted() {
			return nil
		}
		if fn != nil {
			fi.classMethods[dispatchType] = fn
			return fn
		}
	}

	// Built-ins may declare that they implement a method for a class.
	if fi.builtin != nil && fi.builtin.HandlesDispatchClass(dispatchType) {
		fi.classMethods[dispatchType] = fi.builtin
		return fi.builtin
	}
	return nil
}

func (fi *FcnInfo) findClassConstructor() *Function {
	if old, ok := fi.classConstructors[fi.name]; ok {
		fn := fi.check(old, fi.name, true, func(f *Function) { setSlot(fi.classConstructors, fi.name, f) })
		if fn != nil {
			return fn
		}
	}
	return fi.loadClassConstructor()
}

func (fi *FcnInfo) loadClassConstructor() *Function {
	r := fi.registry

	if file, dir := r.resolver.FindMethod(fi.name, fi.name, fi.pkg); file != "" {
		fn := r.load(LoadRequest{File: file, Dir: dir, DispatchType: fi.name, Package: fi.pkg}, ClassConstructor)
		if fn == nil {
			return nil
		}
		fi.classConstructors[fi.name] = fn
		fi.classMethods[fi.name] = fn
		return fn
	}

	// Classdef constructors can live anywhere on the path, not only in
	// @class directories. Load the plain function and keep it here if it
	// turns out to be one; the path slot goes back to what it was.
	saved := fi.onPath
	fn := fi.FindUserFunction()
	if fn == nil || !fn.ClassdefConstructor {
		return nil
	}
	fn.Category = ClassConstructor
	fi.classConstructors[fi.name] = fn
	fi.classMethods[fi.name] = fn
	fi.onPath = saved
	return fn
}

// FindAutoload returns the function registered for this name in the
// autoload index, loading it under the registered name.
func (fi *FcnInfo) FindAutoload() *Function {
	r := fi.registry
	if fi.autoload != nil {
		fi.check(fi.autoload, "", true, func(f *Function) { fi.autoload = f })
	}
	if fi.autoload == nil {
		file := r.autoloads.Lookup(fi.name)
		if file == "" {
			return nil
		}
		fi.autoload = r.load(LoadRequest{
			File:          file,
			Dir:           filepath.Dir(file),
			CanonicalName: fi.name,
			Autoload:      true,
		}, Autoload)
	}
	return fi.autoload
}

// FindUserFunction returns the function file found on the search path.
func (fi *FcnInfo) FindUserFunction() *Function {
	r := fi.registry
	if fi.onPath != nil {
		fi.check(fi.onPath, "", true, func(f *Function) { fi.onPath = f })
	}
	if fi.onPath == nil {
		file, dir := r.resolver.FindFcn(fi.name, fi.pkg)
		if file == "" {
			return nil
		}
		fi.onPath = r.load(LoadRequest{File: file, Dir: dir, Package: fi.pkg}, PathFunction)
	}
	return fi.onPath
}

func (fi *FcnInfo) findPackage() *Function {
	r := fi.registry
	if fi.pkgFcn != nil {
		fi.check(fi.pkgFcn, "", true, func(f *Function) { fi.pkgFcn = f })
	}
	if fi.pkgFcn == nil {
		fn := r.classes.FindPackageSymbol(fi.FullName())
		if fn == nil {
			return nil
		}
		if fn.Category == Undefined {
			fn.Category = Package
		}
		fi.pkgFcn = fn
	}
	return fi.pkgFcn
}

// check runs the staleness check on a cached function and stores the
// outcome through store when it changed. The replaced function is retired
// once nothing caches it.
func (fi *FcnInfo) check(old *Function, dispatchType string, checkRelative bool, store func(*Function)) *Function {
	r := fi.registry
	fn := r.outOfDateCheck(old, dispatchType, checkRelative)
	if fn != old {
		store(fn)
		r.release(old)
	}
	return fn
}

func setSlot[K comparable](m map[K]*Function, k K, fn *Function) {
	if fn == nil {
		delete(m, k)
		return
	}
	m[k] = fn
}

func (fi *FcnInfo) installBuiltin(fn *Function) { fi.builtin = fn }

func (fi *FcnInfo) installCmdline(fn *Function) {
	old := fi.cmdline
	fi.cmdline = fn
	if old != nil && old != fn {
		fi.registry.release(old)
	}
}

func (fi *FcnInfo) installSubfunction(fn *Function, scope ScopeID) {
	fi.subfunctions[scope] = fn
}

// InstallBuiltinDispatch records that the built-in implements a method for
// class. A second registration for the same class is skipped.
func (fi *FcnInfo) InstallBuiltinDispatch(class string) error {
	if fi.builtin == nil {
		return ErrNotBuiltin
	}
	if fi.builtin.HandlesDispatchClass(class) {
		fi.registry.logger.Warn("install_built_in_dispatch: already defined for class",
			zap.String("name", fi.FullName()),
			zap.String("class", class))
		return nil
	}
	fi.builtin.PushDispatchClass(class)
	return nil
}

// clearMap drops unlocked entries, or all of them when forced.
func clearMap[K comparable](r *Registry, m map[K]*Function, force bool) {
	for k, fn := range m {
		if force || !fn.IsLocked() {
			delete(m, k)
			r.release(fn)
		}
	}
}

func (fi *FcnInfo) clearAutoload(force bool) {
	if fn := fi.autoload; fn != nil && (force || !fn.IsLocked()) {
		fi.autoload = nil
		fi.registry.release(fn)
	}
}

// clearUserFunction drops the autoload, path and command-line slots unless
// the function is locked.
func (fi *FcnInfo) clearUserFunction(force bool) {
	fi.clearAutoload(force)
	if fn := fi.onPath; fn != nil && (force || !fn.IsLocked()) {
		fi.onPath = nil
		fi.registry.release(fn)
	}
	if fn := fi.cmdline; fn != nil && (force || !fn.IsLocked()) {
		fi.cmdline = nil
		fi.registry.release(fn)
	}
}

// clear empties every slot loaded from a file. Subfunctions stay with the
// scope that defines them and built-ins are permanent.
func (fi *FcnInfo) clear(force bool) {
	r := fi.registry
	clearMap(r, fi.privateFunctions, force)
	clearMap(r, fi.classConstructors, force)
	clearMap(r, fi.classMethods, force)
	fi.clearUserFunction(force)
	fi.pkgFcn = nil
}

// holds reports whether any slot caches fn.
func (fi *FcnInfo) holds(fn *Function) bool {
	if fi.cmdline == fn || fi.autoload == fn || fi.onPath == fn || fi.pkgFcn == fn || fi.builtin == fn {
		return true
	}
	for _, f := range fi.subfunctions {
		if f == fn {
			return true
		}
	}
	for _, f := range fi.privateFunctions {
		if f == fn {
			return true
		}
	}
	for _, f := range fi.classConstructors {
		if f == fn {
			return true
		}
	}
	for _, f := range fi.classMethods {
		if f == fn {
			return true
		}
	}
	return false
}

func (fi *FcnInfo) empty() bool {
	return fi.cmdline == nil && fi.autoload == nil && fi.onPath == nil && fi.pkgFcn == nil && fi.builtin == nil &&
		len(fi.subfunctions) == 0 && len(fi.privateFunctions) == 0 &&
		len(fi.classConstructors) == 0 && len(fi.classMethods) == 0
}

// dump writes the entry in the __dump_symtab_info__ layout.
func (fi *FcnInfo) dump(b *strings.Builder, prefix string) {
	b.WriteString(prefix + fi.FullName() + " [")
	if fi.cmdline != nil {
		b.WriteString("c")
	}
	if fi.builtin != nil {
		b.WriteString("b")
	}
	if fi.pkgFcn != nil {
		b.WriteString("p")
	}
	b.WriteString("]\n")

	tprefix := prefix + "  "
	if fi.autoload != nil {
		b.WriteString(tprefix + "autoload: " + fi.autoload.File + "\n")
	}
	if fi.onPath != nil {
		b.WriteString(tprefix + "function from path: " + fi.onPath.File + "\n")
	}

	scopes := make([]ScopeID, 0, len(fi.subfunctions))
	for id := range fi.subfunctions {
		scopes = append(scopes, id)
	}
	sort.Slice(scopes, func(i, j int) bool { return scopes[i] < scopes[j] })
	for _, id := range scopes {
		b.WriteString(tprefix + "subfunction: " + fi.subfunctions[id].File + " [" + strconv.Itoa(int(id)) + "]\n")
	}

	dumpKeyed(b, tprefix, "private", fi.privateFunctions)
	dumpKeyed(b, tprefix, "constructor", fi.classConstructors)
	dumpKeyed(b, tprefix, "method", fi.classMethods)
}

func dumpKeyed(b *strings.Builder, prefix, label string, m map[string]*Function) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(prefix + label + ": " + m[k].File + " [" + k + "]\n")
	}
}
