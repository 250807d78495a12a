package symbols

import (
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/funvibe/symtab/internal/timestamp"
	"github.com/funvibe/symtab/internal/value"
)

// Options wires a Registry to its collaborators. Nil fields get inert
// defaults, which is enough for tests that only install built-ins and
// command-line functions.
type Options struct {
	Resolver      Resolver
	Loader        Loader
	Oracle        Oracle
	Autoloads     AutoloadIndex
	Classes       ClassManager
	Breakpoints   Breakpoints
	Logger        *zap.Logger
	TimestampMode timestamp.Mode
}

// New creates a registry holding the global and top-level scopes, with
// the top level current.
func New(opts Options) *Registry {
	r := &Registry{
		id:              uuid.New(),
		logger:          opts.Logger,
		resolver:        opts.Resolver,
		loader:          opts.Loader,
		oracle:          opts.Oracle,
		autoloads:       opts.Autoloads,
		classes:         opts.Classes,
		breakpoints:     opts.Breakpoints,
		timestampMode:   opts.TimestampMode,
		fcnTable:        make(map[string]*FcnInfo),
		scopes:          make(map[ScopeID]*Scope),
		globals:         make(map[string]value.Value),
		classPrecedence: make(map[string]map[string]struct{}),
		parentMap:       make(map[string][]string),
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	if r.resolver == nil {
		r.resolver = nopResolver{}
	}
	if r.loader == nil {
		r.loader = nopLoader{}
	}
	if r.oracle == nil {
		r.oracle = wallOracle{}
	}
	if r.autoloads == nil {
		r.autoloads = nopAutoloads{}
	}
	if r.classes == nil {
		r.classes = nopClasses{}
	}
	if r.breakpoints == nil {
		r.breakpoints = nopBreakpoints{}
	}
	r.logger = r.logger.With(zap.String("registry", r.id.String()))

	r.nextScope = TopScope + 1
	r.initScopes()
	return r
}

func (r *Registry) initScopes() {
	r.scopes[GlobalScope] = newScope(r, GlobalScope, "global scope", nil)
	r.scopes[TopScope] = newScope(r, TopScope, "top scope", nil)
	r.currentScope = TopScope
	r.currentContext = 0
}

// AllocScope creates a scope table for fn (which may be nil) and returns
// its id.
func (r *Registry) AllocScope(fn *Function, name string) ScopeID {
	id := r.nextScope
	r.nextScope++
	if name == "" && fn != nil {
		name = fn.FullName()
	}
	r.scopes[id] = newScope(r, id, name, fn)
	if fn != nil {
		fn.scope = id
	}
	return id
}

// EraseScope removes a scope and every scope nested under it. The global
// and top-level scopes cannot be erased.
func (r *Registry) EraseScope(id ScopeID) error {
	if id == GlobalScope || id == TopScope {
		return ErrInvalidScope
	}
	s := r.scopes[id]
	if s == nil {
		return ErrInvalidScope
	}
	if parent := s.parent(); parent != nil {
		kept := parent.nestChildren[:0]
		for _, c := range parent.nestChildren {
			if c != id {
				kept = append(kept, c)
			}
		}
		parent.nestChildren = kept
	}

	// Collect the subtree first, then sweep the arena.
	for _, d := range r.scopeSubtree(id) {
		sc := r.scopes[d]
		r.scopes[d] = nil
		if sc != nil {
			sc.release()
		}
		delete(r.scopes, d)
		if d == r.currentScope {
			r.currentScope = TopScope
			r.currentContext = 0
		}
	}
	return nil
}

// scopeSubtree lists id and every scope nested below it.
func (r *Registry) scopeSubtree(id ScopeID) []ScopeID {
	ids := []ScopeID{id}
	for i := 0; i < len(ids); i++ {
		if sc := r.scopes[ids[i]]; sc != nil {
			ids = append(ids, sc.nestChildren...)
		}
	}
	return ids
}

// SetScope makes id the current scope, resetting the context.
func (r *Registry) SetScope(id ScopeID) error {
	if id == GlobalScope || r.scopes[id] == nil {
		return ErrInvalidScope
	}
	if id != r.currentScope {
		r.currentScope = id
		r.currentContext = 0
	}
	return nil
}

// SetScopeAndContext makes id current with the given context.
func (r *Registry) SetScopeAndContext(id ScopeID, ctx ContextID) error {
	if id == GlobalScope || r.scopes[id] == nil {
		return ErrInvalidScope
	}
	r.currentScope = id
	r.currentContext = ctx
	return nil
}

// PushContext opens a new context in the current scope. It is not valid
// for the global or top-level scope.
func (r *Registry) PushContext() error {
	if r.currentScope == GlobalScope || r.currentScope == TopScope {
		return ErrInvalidScope
	}
	s := r.scopes[r.currentScope]
	if s == nil {
		return ErrInvalidScope
	}
	s.PushContext()
	return nil
}

func (r *Registry) PopContext() error {
	if r.currentScope == GlobalScope || r.currentScope == TopScope {
		return ErrInvalidScope
	}
	s := r.scopes[r.currentScope]
	if s == nil {
		return ErrInvalidScope
	}
	s.PopContext()
	return nil
}

// Scopes lists live scope ids in ascending order.
func (r *Registry) Scopes() []ScopeID {
	ids := make([]ScopeID, 0, len(r.scopes))
	for id := range r.scopes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// currFcn is the function executing in scope id, or nil.
func (r *Registry) currFcn(id ScopeID) *Function {
	if s := r.scopes[id]; s != nil {
		return s.fcn
	}
	return nil
}

// CurrentFunction is the function executing in the current scope.
func (r *Registry) CurrentFunction() *Function { return r.currFcn(r.currentScope) }

// Cleanup tears the registry down and leaves fresh global and top-level
// scopes behind. Each arena entry is zeroed before its scope is released
// so that a release with side effects can never reach a scope twice.
func (r *Registry) Cleanup() {
	r.ClearAll(true)

	for _, id := range r.Scopes() {
		sc := r.scopes[id]
		r.scopes[id] = nil
		if sc != nil {
			sc.release()
		}
	}

	r.globals = make(map[string]value.Value)
	r.fcnTable = make(map[string]*FcnInfo)
	r.classPrecedence = make(map[string]map[string]struct{})
	r.parentMap = make(map[string][]string)
	r.scopes = make(map[ScopeID]*Scope)
	r.initScopes()
	r.logger.Debug("symbol table cleaned up")
}
