package symbols

import (
	"path"
	"sort"

	"github.com/funvibe/symtab/internal/value"
)

// Scope is one scope table: the variables of a function (or of the global
// and top-level workspaces) plus its place in a tree of nested functions.
// Nest links are scope ids into the registry arena, never pointers.
type Scope struct {
	id         ScopeID
	name       string
	registry   *Registry
	table      map[string]*SymbolRecord
	persistent map[string]value.Value
	fcn        *Function

	nestParent      ScopeID
	nestChildren    []ScopeID
	staticWorkspace bool
}

func newScope(r *Registry, id ScopeID, name string, fn *Function) *Scope {
	return &Scope{
		id:         id,
		name:       name,
		registry:   r,
		table:      make(map[string]*SymbolRecord),
		persistent: make(map[string]value.Value),
		fcn:        fn,
		nestParent: NoScope,
	}
}

func (s *Scope) ID() ScopeID                { return s.id }
func (s *Scope) Name() string               { return s.name }
func (s *Scope) Function() *Function        { return s.fcn }
func (s *Scope) NestParent() ScopeID        { return s.nestParent }
func (s *Scope) IsStaticWorkspace() bool    { return s.staticWorkspace }
func (s *Scope) NestChildren() []ScopeID    { return append([]ScopeID(nil), s.nestChildren...) }
func (s *Scope) Lookup(name string) (*SymbolRecord, bool) {
	sr, ok := s.table[name]
	return sr, ok
}

// Insert returns the record for name, creating it if needed. A new name in
// a nested function that the nest parent can already see is shared with
// the parent instead of being created locally.
func (s *Scope) Insert(name string) *SymbolRecord {
	if sr, ok := s.table[name]; ok {
		return sr
	}
	if parent := s.parent(); parent != nil {
		if sr, ok := parent.lookNonlocal(name); ok {
			s.table[name] = sr
			return sr
		}
	}
	sr := newSymbolRecord(s.registry, s.id, name)
	sr.setCurrFcn(s.fcn)
	s.table[name] = sr
	return sr
}

func (s *Scope) parent() *Scope {
	if s.nestParent == NoScope {
		return nil
	}
	return s.registry.scopes[s.nestParent]
}

// lookNonlocal finds a non-automatic variable visible from this scope,
// walking up the nest parents.
func (s *Scope) lookNonlocal(name string) (*SymbolRecord, bool) {
	sr, ok := s.table[name]
	if !ok {
		if parent := s.parent(); parent != nil {
			return parent.lookNonlocal(name)
		}
		return nil, false
	}
	if sr.IsAutomatic() {
		return nil, false
	}
	return sr, true
}

// Assign binds name in this scope.
func (s *Scope) Assign(name string, v value.Value) {
	s.Insert(name).Assign(v)
}

// Varval returns the value of name, or nil.
func (s *Scope) Varval(name string) value.Value {
	if sr, ok := s.table[name]; ok {
		return sr.Varval()
	}
	return nil
}

func (s *Scope) IsVariable(name string) bool {
	sr, ok := s.table[name]
	return ok && (sr.IsGlobal() || sr.IsPersistent() || sr.IsDefined())
}

// declare returns a record owned by this scope for a global or persistent
// declaration. A variable already shared with the nest parent cannot be
// redeclared.
func (s *Scope) declare(name string) (*SymbolRecord, error) {
	sr, ok := s.table[name]
	if !ok {
		sr = newSymbolRecord(s.registry, s.id, name)
		sr.setCurrFcn(s.fcn)
		s.table[name] = sr
		return sr, nil
	}
	if sr.scope != s.id {
		return nil, &DeclarationError{Name: name, Reason: "global and persistent may only be used in the topmost level in which a nested variable is used"}
	}
	return sr, nil
}

// MarkGlobal declares name global. The variable then reads and writes the
// registry's global map.
func (s *Scope) MarkGlobal(name string) error {
	sr, err := s.declare(name)
	if err != nil {
		return err
	}
	if sr.IsPersistent() {
		return &DeclarationError{Name: name, Reason: "can't make persistent variable global"}
	}
	sr.mark(Global)
	return nil
}

// MarkPersistent declares name persistent across invocations.
func (s *Scope) MarkPersistent(name string) error {
	sr, err := s.declare(name)
	if err != nil {
		return err
	}
	if sr.IsGlobal() {
		return &DeclarationError{Name: name, Reason: "can't make global variable persistent"}
	}
	sr.mark(Persistent)
	return nil
}

func (s *Scope) MarkFormal(name string)    { s.Insert(name).mark(Formal) }
func (s *Scope) MarkAutomatic(name string) { s.Insert(name).mark(Automatic) }
func (s *Scope) MarkHidden(name string)    { s.Insert(name).mark(Hidden) }
func (s *Scope) MarkInherited(name string) { s.Insert(name).mark(Inherited) }

// ClearVariables empties every record declared in this scope.
func (s *Scope) ClearVariables() {
	for _, sr := range s.table {
		sr.clear(s.id)
	}
}

func (s *Scope) ClearVariable(name string) {
	if sr, ok := s.table[name]; ok {
		sr.clear(s.id)
	}
}

// ClearVariablePattern clears variables whose names match a glob pattern.
func (s *Scope) ClearVariablePattern(pattern string) {
	for name, sr := range s.table {
		if sr.IsDefined() || sr.IsGlobal() {
			if ok, _ := path.Match(pattern, name); ok {
				sr.clear(s.id)
			}
		}
	}
}

// VariableNames lists defined variables in sorted order.
func (s *Scope) VariableNames() []string {
	names := make([]string, 0, len(s.table))
	for name, sr := range s.table {
		if sr.IsDefined() {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// PushContext opens a fresh value slot for every local record.
func (s *Scope) PushContext() {
	for _, sr := range s.table {
		sr.pushContext(s.id)
	}
}

// PopContext discards the innermost slot and drops records left empty.
func (s *Scope) PopContext() {
	for name, sr := range s.table {
		if sr.popContext(s.id) == 0 {
			delete(s.table, name)
		}
	}
}

// find resolves name from this scope: variables first, unless skipped,
// then the function cache.
func (s *Scope) find(name string, args []value.Value, skipVariables, localFuncs bool) value.Value {
	r := s.registry
	if !skipVariables {
		if sr, ok := s.table[name]; ok {
			if sr.IsGlobal() {
				return r.GlobalVarval(name)
			}
			if v := sr.Varval(); v != nil {
				return v
			}
		}
	}
	return fnValue(r.findFcn(name, args, localFuncs))
}

// WorkspaceElement summarizes one visible variable.
type WorkspaceElement struct {
	Storage byte
	Name    string
	Class   string
	Value   string
	Dims    string
	Complex bool
}

// WorkspaceInfo describes the non-hidden, defined variables, sorted by name.
func (s *Scope) WorkspaceInfo() []WorkspaceElement {
	var out []WorkspaceElement
	for _, name := range s.sortedNames() {
		sr := s.table[name]
		if sr.IsHidden() {
			continue
		}
		v := sr.Varval()
		if v == nil {
			continue
		}
		storage := byte(' ')
		switch {
		case sr.IsGlobal():
			storage = 'g'
		case sr.IsPersistent():
			storage = 'p'
		case sr.IsAutomatic():
			storage = 'a'
		case sr.IsFormal():
			storage = 'f'
		case sr.IsInherited():
			storage = 'i'
		}
		out = append(out, WorkspaceElement{
			Storage: storage,
			Name:    name,
			Class:   v.ClassName(),
			Value:   v.String(),
			Dims:    value.Dims(v),
			Complex: value.IsComplex(v),
		})
	}
	return out
}

func (s *Scope) sortedNames() []string {
	names := make([]string, 0, len(s.table))
	for name := range s.table {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Scope) addNestChild(child *Scope) {
	child.nestParent = s.id
	s.nestChildren = append(s.nestChildren, child.id)
}

// release drops all storage; the arena entry is removed by the caller.
func (s *Scope) release() {
	s.table = nil
	s.persistent = nil
	s.nestChildren = nil
	s.fcn = nil
}
