package symbols

import (
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/funvibe/symtab/internal/config"
	"github.com/funvibe/symtab/internal/timestamp"
)

// outOfDateCheck decides whether a cached function still reflects the file
// it was loaded from. It returns the function to keep caching: fn itself,
// a freshly loaded replacement, or nil when the file is gone or no longer
// loads.
func (r *Registry) outOfDateCheck(fn *Function, dispatchType string, checkRelative bool) *Function {
	// Subfunctions are checked through the file that defines them.
	if fn == nil || fn.IsSubfunction() || fn.File == "" {
		return fn
	}

	// A check at the very instant of the prompt still counts as before it.
	tc := fn.TimeChecked
	relative := checkRelative && fn.Relative
	if tc.After(r.oracle.LastPromptTime()) && !(relative && tc.Before(r.oracle.LastChdirTime())) {
		return fn
	}

	var (
		file     string
		dir      string
		sameFile bool
	)
	if checkRelative {
		if isFunctionFile(fn.Name) {
			file = fn.Name
		} else {
			if dispatchType != "" {
				file, dir = r.resolver.FindMethod(dispatchType, fn.Name, fn.Package)
				if file == "" {
					for _, parent := range r.ParentClasses(dispatchType) {
						if file, dir = r.resolver.FindMethod(parent, fn.Name, ""); file != "" {
							break
						}
					}
				}
			}
			// Maybe it's an autoload?
			if file == "" {
				file = r.autoloads.Lookup(fn.Name)
			}
			if file == "" {
				file, dir = r.resolver.FindFcn(fn.Name, fn.Package)
			}
		}
		if file != "" {
			sameFile = r.oracle.SameFile(file, fn.File)
		}
	} else {
		sameFile = true
		file = fn.File
	}

	result := fn
	clearBreakpoints := false
	switch {
	case file == "":
		// No longer visible from here.
		r.logger.Info("function no longer on path", zap.String("name", fn.FullName()), zap.String("file", fn.File))
		result = nil
		clearBreakpoints = true

	case sameFile:
		parsed := fn.TimeParsed
		fn.MarkUpToDate(r.oracle.Now())
		if r.timestampMode == timestamp.IgnoreAll || (r.timestampMode == timestamp.IgnoreSystem && fn.System) {
			break
		}
		mtime, ok := r.oracle.FileModTime(fn.File)
		if !ok {
			r.logger.Info("function file vanished", zap.String("name", fn.FullName()), zap.String("file", fn.File))
			result = nil
			clearBreakpoints = true
			break
		}
		if mtime.After(parsed) {
			result = r.reload(fn, fn.File, dir, dispatchType)
			clearBreakpoints = true
		}

	default:
		// A different file now shadows the old one: treat it as a move.
		result = r.reload(fn, file, dir, dispatchType)
		clearBreakpoints = true
	}

	if clearBreakpoints {
		name := fn.CanonicalName
		if name == "" {
			name = fn.Name
		}
		r.breakpoints.RemoveAllInFile(name)
	}
	return result
}

// reload loads file in place of old, keeping how old was classified.
func (r *Registry) reload(old *Function, file, dir, dispatchType string) *Function {
	if dir == "" {
		dir = old.Dir
	}
	req := LoadRequest{
		File:         file,
		Dir:          dir,
		DispatchType: dispatchType,
		Package:      old.Package,
	}
	if old.Category == Autoload {
		req.CanonicalName = old.CanonicalName
		req.Autoload = true
	}
	fn := r.load(req, old.Category)
	if fn == nil {
		return nil
	}
	if old.private {
		fn.MarkPrivate(old.PrivateClass)
	}
	if old.locked {
		fn.Lock()
	}
	r.logger.Info("reloaded function",
		zap.String("name", fn.FullName()),
		zap.String("file", fn.File),
		zap.Time("parsed", fn.TimeParsed))
	return fn
}

func isFunctionFile(name string) bool {
	return filepath.IsAbs(name) && config.HasFunctionFileExt(name)
}

// load asks the loader for a function and adopts it. Most failures are not
// errors here: the slot stays empty and resolution moves on. A file with
// illegal declarations is fatal instead; it is recorded for Resolve and
// stops the lookup.
func (r *Registry) load(req LoadRequest, category Category) *Function {
	fn, err := r.loader.Load(req)
	if err == nil && fn != nil {
		fn.Category = category
		err = r.LoadedFunction(fn)
	}
	if err != nil {
		var declErr *DeclarationError
		if errors.As(err, &declErr) {
			if r.fatal == nil {
				r.fatal = fmt.Errorf("loading %s: %w", req.File, err)
			}
			r.logger.Warn("illegal declaration", zap.String("file", req.File), zap.Error(err))
			return nil
		}
		r.logger.Debug("load failed", zap.String("file", req.File), zap.Error(err))
		return nil
	}
	if fn == nil {
		return nil
	}
	r.logger.Debug("loaded function",
		zap.String("name", fn.FullName()),
		zap.String("file", fn.File),
		zap.Stringer("category", category))
	return fn
}

// updatePath rescans the search path before a retry.
func (r *Registry) updatePath() {
	if err := r.resolver.Update(); err != nil {
		r.logger.Warn("search path update failed", zap.Error(err))
	}
}

// owns reports whether fn has been adopted by this registry.
func (r *Registry) owns(fn *Function) bool {
	if fn.scope <= TopScope {
		return false
	}
	s := r.scopes[fn.scope]
	return s != nil && s.fcn == fn
}

// LoadedFunction adopts a function produced by a loader: it gets a scope,
// its subfunctions and nested functions are installed, and nested
// variables are bound. A program with illegal declarations is rejected and
// leaves nothing behind.
func (r *Registry) LoadedFunction(fn *Function) error {
	if r.owns(fn) {
		return nil
	}
	fn.parentScope = NoScope
	if fn.Script {
		// Scripts run in the caller's workspace.
		fn.scope = NoScope
		return nil
	}
	r.AllocScope(fn, "")
	tops := r.adoptChildren(fn)
	for _, id := range append([]ScopeID{fn.scope}, tops...) {
		if err := r.UpdateNest(id); err != nil {
			r.retire(fn)
			return err
		}
	}
	return nil
}

// adoptChildren installs the subfunctions and nested functions of fn and
// returns the scopes of the subfunctions, which are nest roots themselves.
func (r *Registry) adoptChildren(fn *Function) []ScopeID {
	var tops []ScopeID
	for _, sub := range fn.Subfunctions {
		r.adoptChild(sub, fn)
		r.InstallSubfunction(sub.Name, sub, fn.scope)
		r.adoptChildren(sub)
		tops = append(tops, sub.scope)
	}
	for _, nf := range fn.Nested {
		r.adoptChild(nf, fn)
		r.InstallNestFunction(nf.Name, nf, fn.scope)
		r.adoptChildren(nf)
	}
	return tops
}

func (r *Registry) adoptChild(child, parent *Function) {
	child.Category = Subfunction
	child.parentScope = parent.scope
	if child.Package == "" {
		child.Package = parent.Package
	}
	if child.File == "" {
		child.File = parent.File
		child.Dir = parent.Dir
		child.TimeParsed = parent.TimeParsed
		child.TimeChecked = parent.TimeChecked
	}
	if !r.owns(child) {
		r.AllocScope(child, "")
	}
}

// release retires fn once no cache slot refers to it.
func (r *Registry) release(fn *Function) {
	if fn == nil || !r.owns(fn) {
		return
	}
	for _, fi := range r.fcnTable {
		if fi.holds(fn) {
			return
		}
	}
	r.retire(fn)
}

// retire erases the scopes of fn and everything defined inside it, along
// with the subfunction entries keyed by those scopes.
func (r *Registry) retire(fn *Function) {
	if !r.owns(fn) {
		return
	}
	for _, sub := range fn.Subfunctions {
		r.retire(sub)
	}
	ids := r.scopeSubtree(fn.scope)
	for name, fi := range r.fcnTable {
		removed := false
		for _, id := range ids {
			if _, ok := fi.subfunctions[id]; ok {
				delete(fi.subfunctions, id)
				removed = true
			}
		}
		if removed && fi.empty() {
			delete(r.fcnTable, name)
		}
	}
	if err := r.EraseScope(fn.scope); err != nil {
		r.logger.Debug("erase scope", zap.Int("scope", int(fn.scope)), zap.Error(err))
	}
	fn.scope = NoScope
}
