package symbols

import (
	"path"
	"sort"

	"github.com/funvibe/symtab/internal/value"
)

// Variable operations on the current scope.

func (r *Registry) current() *Scope { return r.scopes[r.currentScope] }

// Assign binds name in the current scope.
func (r *Registry) Assign(name string, v value.Value) error {
	s := r.current()
	if s == nil {
		return ErrInvalidScope
	}
	s.Assign(name, v)
	return nil
}

func (r *Registry) Varval(name string) value.Value {
	if s := r.current(); s != nil {
		return s.Varval(name)
	}
	return nil
}

func (r *Registry) IsVariable(name string) bool {
	s := r.current()
	return s != nil && s.IsVariable(name)
}

// Insert returns the record for name in the current scope.
func (r *Registry) Insert(name string) *SymbolRecord {
	if s := r.current(); s != nil {
		return s.Insert(name)
	}
	return nil
}

func (r *Registry) MarkGlobal(name string) error {
	s := r.current()
	if s == nil {
		return ErrInvalidScope
	}
	return s.MarkGlobal(name)
}

func (r *Registry) MarkPersistent(name string) error {
	s := r.current()
	if s == nil {
		return ErrInvalidScope
	}
	return s.MarkPersistent(name)
}

func (r *Registry) MarkFormal(name string) {
	if s := r.current(); s != nil {
		s.MarkFormal(name)
	}
}

func (r *Registry) MarkAutomatic(name string) {
	if s := r.current(); s != nil {
		s.MarkAutomatic(name)
	}
}

func (r *Registry) MarkHidden(name string) {
	if s := r.current(); s != nil {
		s.MarkHidden(name)
	}
}

func (r *Registry) ClearVariables() {
	if s := r.current(); s != nil {
		s.ClearVariables()
	}
}

func (r *Registry) ClearVariable(name string) {
	if s := r.current(); s != nil {
		s.ClearVariable(name)
	}
}

func (r *Registry) ClearVariablePattern(pattern string) {
	if s := r.current(); s != nil {
		s.ClearVariablePattern(pattern)
	}
}

func (r *Registry) VariableNames() []string {
	if s := r.current(); s != nil {
		return s.VariableNames()
	}
	return nil
}

func (r *Registry) WorkspaceInfo() []WorkspaceElement {
	if s := r.current(); s != nil {
		return s.WorkspaceInfo()
	}
	return nil
}

// GlobalAssign sets a global variable directly.
func (r *Registry) GlobalAssign(name string, v value.Value) {
	r.globals[name] = v
}

// GlobalVarval returns a global variable, or nil.
func (r *Registry) GlobalVarval(name string) value.Value {
	return r.globals[name]
}

// TopLevelAssign and TopLevelVarval work on the top-level workspace
// regardless of the current scope.
func (r *Registry) TopLevelAssign(name string, v value.Value) {
	if s := r.scopes[TopScope]; s != nil {
		s.Assign(name, v)
	}
}

func (r *Registry) TopLevelVarval(name string) value.Value {
	if s := r.scopes[TopScope]; s != nil {
		return s.Varval(name)
	}
	return nil
}

// ClearGlobal removes a global variable; the current scope's record for it
// stops being global.
func (r *Registry) ClearGlobal(name string) {
	if s := r.current(); s != nil {
		if sr, ok := s.table[name]; ok && sr.IsGlobal() {
			sr.unmark(Global)
		}
	}
	delete(r.globals, name)
}

func (r *Registry) ClearGlobalPattern(pattern string) {
	if s := r.current(); s != nil {
		for name, sr := range s.table {
			if !sr.IsGlobal() {
				continue
			}
			if ok, _ := path.Match(pattern, name); ok {
				sr.unmark(Global)
			}
		}
	}
	for name := range r.globals {
		if ok, _ := path.Match(pattern, name); ok {
			delete(r.globals, name)
		}
	}
}

func (r *Registry) GlobalVariableNames() []string {
	names := make([]string, 0, len(r.globals))
	for name := range r.globals {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
